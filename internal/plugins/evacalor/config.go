package evacalor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the Agua IOT account credentials for the Eva Calor plugin.
type Config struct {
	// Email and Password are the credentials of the Agua IOT account the
	// stove is registered to.
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// UUID identifies this installation to the cloud, like the vendor app
	// does. Any stable unique string works.
	UUID string `yaml:"uuid"`

	// APIRoot overrides the production endpoint. Leave empty outside tests.
	APIRoot string `yaml:"api_root"`
}

// LoadConfig loads the plugin configuration from a YAML file and applies
// environment variable overrides. A missing file is not an error as long as
// the environment provides the required values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Environment variables win over the file
	if v := os.Getenv("EVACALOR_EMAIL"); v != "" {
		config.Email = v
	}
	if v := os.Getenv("EVACALOR_PASSWORD"); v != "" {
		config.Password = v
	}
	if v := os.Getenv("EVACALOR_UUID"); v != "" {
		config.UUID = v
	}
	if v := os.Getenv("EVACALOR_API_ROOT"); v != "" {
		config.APIRoot = v
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the required credential fields are present.
func (c *Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("email is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.UUID == "" {
		return fmt.Errorf("uuid is required")
	}
	return nil
}
