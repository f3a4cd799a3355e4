package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Partner is one hub whose records may be ingested. The name doubles as the
// top-level object-store prefix for everything stored on the hub's behalf.
type Partner struct {
	Name        string `yaml:"name" validate:"required,lowercase,alphanum"`
	DisplayName string `yaml:"display_name" validate:"required"`
	Enabled     bool   `yaml:"enabled"`
}

type partnerFile struct {
	Partners []Partner `yaml:"partners" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadPartners reads and validates the partner registry.
func LoadPartners(path string) ([]Partner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading partner registry %s: %w", path, err)
	}

	var file partnerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parsing partner registry %s: %w", path, err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("config: invalid partner registry %s: %w", path, err)
	}
	return file.Partners, nil
}

// FindPartner resolves a partner by name, case-insensitively. An unknown or
// disabled partner is a startup error: the process must abort before any
// record is processed.
func FindPartner(partners []Partner, name string) (Partner, error) {
	for _, p := range partners {
		if strings.EqualFold(p.Name, name) {
			if !p.Enabled {
				return Partner{}, fmt.Errorf("config: partner %s is disabled", p.Name)
			}
			return p, nil
		}
	}
	return Partner{}, fmt.Errorf("config: unknown partner %s", name)
}
