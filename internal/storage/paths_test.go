package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemPrefix(t *testing.T) {
	tests := []struct {
		name    string
		partner string
		id      string
		want    string
	}{
		{
			name:    "standard id fans out over four levels",
			partner: "bpl",
			id:      "0a1b2c3d4e5f",
			want:    "bpl/images/0/a/1/b/0a1b2c3d4e5f",
		},
		{
			name:    "short id falls back to flat layout",
			partner: "bpl",
			id:      "ab",
			want:    "bpl/images/ab",
		},
		{
			name:    "four character id still fans out",
			partner: "ohio",
			id:      "abcd",
			want:    "ohio/images/a/b/c/d/abcd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ItemPrefix(tt.partner, tt.id))
		})
	}
}

func TestMediaKeyIsDeterministic(t *testing.T) {
	first := MediaKey("bpl", "0a1b2c3d", 1)
	second := MediaKey("bpl", "0a1b2c3d", 1)
	assert.Equal(t, first, second)
	assert.Equal(t, "bpl/images/0/a/1/b/0a1b2c3d/1_0a1b2c3d", first)

	// Different ordinals land next to each other under the same prefix.
	assert.Equal(t, "bpl/images/0/a/1/b/0a1b2c3d/2_0a1b2c3d", MediaKey("bpl", "0a1b2c3d", 2))
}

func TestSideFileKeys(t *testing.T) {
	assert.Equal(t, "bpl/images/0/a/1/b/0a1b2c3d/dpla-map.json", MetadataKey("bpl", "0a1b2c3d"))
	assert.Equal(t, "bpl/images/0/a/1/b/0a1b2c3d/iiif.json", ManifestKey("bpl", "0a1b2c3d"))
	assert.Equal(t, "bpl/images/0/a/1/b/0a1b2c3d/file-list.txt", FileListKey("bpl", "0a1b2c3d"))
}

func TestIsSideFile(t *testing.T) {
	assert.True(t, IsSideFile(MetadataKey("bpl", "0a1b2c3d")))
	assert.True(t, IsSideFile(ManifestKey("bpl", "0a1b2c3d")))
	assert.True(t, IsSideFile(FileListKey("bpl", "0a1b2c3d")))
	assert.False(t, IsSideFile(MediaKey("bpl", "0a1b2c3d", 1)))
}
