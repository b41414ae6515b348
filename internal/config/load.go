package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultInstanceNamePrefix is used when the template leaves the prefix empty.
const DefaultInstanceNamePrefix = "director"

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(data)
}

// Load parses configuration from raw YAML bytes, applies defaults and validates.
func Load(data []byte) (*Config, error) {
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenStack
	}
	if c.Template.InstanceNamePrefix == "" {
		c.Template.InstanceNamePrefix = DefaultInstanceNamePrefix
	}
	if db := c.Template.Database; db != nil && db.Datastore == "" {
		db.Datastore = DefaultDatastore
	}

	switch c.Provider {
	case ProviderHCloud:
		if c.HCloud.Token == "" {
			c.HCloud.Token = os.Getenv("HCLOUD_TOKEN")
		}
	case ProviderOpenStack, ProviderTrove:
		osc := &c.OpenStack
		fillFromEnv(&osc.IdentityEndpoint, "OS_AUTH_URL")
		fillFromEnv(&osc.Username, "OS_USERNAME")
		fillFromEnv(&osc.Password, "OS_PASSWORD")
		fillFromEnv(&osc.DomainName, "OS_USER_DOMAIN_NAME")
		fillFromEnv(&osc.TenantName, "OS_PROJECT_NAME")
		fillFromEnv(&osc.TenantID, "OS_PROJECT_ID")
		fillFromEnv(&osc.Region, "OS_REGION_NAME")
	}
}

func fillFromEnv(field *string, envVar string) {
	if *field == "" {
		*field = os.Getenv(envVar)
	}
}
