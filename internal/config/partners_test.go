package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePartnerFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "partners.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPartners(t *testing.T) {
	path := writePartnerFile(t, `
partners:
  - name: bpl
    display_name: Digital Commonwealth
    enabled: true
  - name: ohio
    display_name: Ohio Digital Network
    enabled: false
`)

	partners, err := LoadPartners(path)
	require.NoError(t, err)

	require.Len(t, partners, 2)
	assert.Equal(t, "bpl", partners[0].Name)
	assert.Equal(t, "Digital Commonwealth", partners[0].DisplayName)
	assert.True(t, partners[0].Enabled)
	assert.False(t, partners[1].Enabled)
}

func TestLoadPartnersRejectsInvalidNames(t *testing.T) {
	// Partner names become storage prefixes; uppercase and punctuation are out.
	path := writePartnerFile(t, `
partners:
  - name: "Not Valid"
    display_name: Broken
    enabled: true
`)

	_, err := LoadPartners(path)
	assert.Error(t, err)
}

func TestLoadPartnersRejectsMissingDisplayName(t *testing.T) {
	path := writePartnerFile(t, `
partners:
  - name: bpl
    enabled: true
`)

	_, err := LoadPartners(path)
	assert.Error(t, err)
}

func TestLoadPartnersRejectsEmptyRegistry(t *testing.T) {
	path := writePartnerFile(t, `partners: []`)

	_, err := LoadPartners(path)
	assert.Error(t, err)
}

func TestLoadPartnersMissingFile(t *testing.T) {
	_, err := LoadPartners(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFindPartner(t *testing.T) {
	partners := []Partner{
		{Name: "bpl", DisplayName: "Digital Commonwealth", Enabled: true},
		{Name: "ohio", DisplayName: "Ohio Digital Network", Enabled: false},
	}

	p, err := FindPartner(partners, "BPL")
	require.NoError(t, err)
	assert.Equal(t, "bpl", p.Name)

	_, err = FindPartner(partners, "ohio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	_, err = FindPartner(partners, "texas")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}
