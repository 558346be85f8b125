package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/agri-identity/agrigate/internal/scope"
	"github.com/agri-identity/agrigate/internal/util"

	"gopkg.in/yaml.v3"
)

// ServiceDefinition is one entry of the service registry file.
type ServiceDefinition struct {
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"client_secret"`
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	AllowedScopes   []string `yaml:"allowed_scopes"`
	MandatoryScopes []string `yaml:"mandatory_scopes"`
	RedirectURIs    []string `yaml:"redirect_uris"`
	Active          *bool    `yaml:"active"`
}

// IsActive reports whether the entry is enabled. Entries are active unless
// they say otherwise.
func (d ServiceDefinition) IsActive() bool {
	return d.Active == nil || *d.Active
}

// Registry is the on-disk service catalogue.
type Registry struct {
	Services []ServiceDefinition `yaml:"services"`
}

// LoadRegistryFile reads and validates a YAML service registry.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service registry %s: %w", path, err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse service registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks every entry and normalises scope lists in place.
func (r *Registry) Validate() error {
	seen := make(map[string]struct{}, len(r.Services))
	for i := range r.Services {
		def := &r.Services[i]
		if def.ClientID == "" {
			return fmt.Errorf("service #%d: client_id is required", i+1)
		}
		if _, dup := seen[def.ClientID]; dup {
			return fmt.Errorf("service %s: duplicate client_id", def.ClientID)
		}
		seen[def.ClientID] = struct{}{}

		if def.Name == "" {
			return fmt.Errorf("service %s: name is required", def.ClientID)
		}

		def.AllowedScopes = scope.Normalize(def.AllowedScopes)
		def.MandatoryScopes = scope.Normalize(def.MandatoryScopes)
		if len(def.AllowedScopes) == 0 {
			return fmt.Errorf("service %s: allowed_scopes must not be empty", def.ClientID)
		}
		if missing := scope.Missing(def.MandatoryScopes, def.AllowedScopes); len(missing) > 0 {
			return fmt.Errorf(
				"service %s: mandatory scopes %v are not in allowed_scopes",
				def.ClientID, missing,
			)
		}

		if len(def.RedirectURIs) == 0 {
			return fmt.Errorf("service %s: at least one redirect_uri is required", def.ClientID)
		}
		for _, uri := range def.RedirectURIs {
			if err := util.ValidateRedirectURI(uri); err != nil {
				return fmt.Errorf("service %s: %w", def.ClientID, err)
			}
		}
	}
	if len(r.Services) == 0 {
		return errors.New("service registry contains no services")
	}
	return nil
}
