package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models designflow.yml.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		TokenTTL   string `yaml:"token_ttl"`
		AllowedAud string `yaml:"allowed_audience"`
	} `yaml:"auth"`
	Bootstrap struct {
		AdminName  string `yaml:"admin_name"`
		AdminEmail string `yaml:"admin_email"`
	} `yaml:"bootstrap"`
	Institutions []InstitutionSeed `yaml:"institutions"`
	Webhooks     []Webhook         `yaml:"webhooks"`
}

// InstitutionSeed pre-registers a client institution at startup.
type InstitutionSeed struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
}

// Webhook forwards activity entries to an external endpoint.
type Webhook struct {
	URL       string `yaml:"url"`
	Secret    string `yaml:"secret"`
	ProjectID string `yaml:"project_id"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with designflow init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config.server.port %d out of range", c.Server.Port)
	}
	if c.Bootstrap.AdminEmail == "" {
		return fmt.Errorf("config.bootstrap.admin_email is required")
	}
	seen := map[string]bool{}
	for i, inst := range c.Institutions {
		if inst.Name == "" {
			return fmt.Errorf("config.institutions[%d] has empty name", i)
		}
		if inst.ID != "" {
			if seen[inst.ID] {
				return fmt.Errorf("config.institutions has duplicate id %s", inst.ID)
			}
			seen[inst.ID] = true
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.webhooks[%d] has empty url", i)
		}
	}
	return nil
}

// Addr returns the listen address, with defaults applied.
func (c *Config) Addr() string {
	host := c.Server.Host
	port := c.Server.Port
	if port == 0 {
		port = 8484
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "designflow.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(adminEmail string) string {
	return fmt.Sprintf(defaultTemplate, adminEmail)
}

// Default returns the default Config struct.
func Default(adminEmail string) *Config {
	cfg, err := FromYAML([]byte(GenerateDefault(adminEmail)))
	if err != nil {
		var c Config
		c.Bootstrap.AdminEmail = adminEmail
		return &c
	}
	return cfg
}

const defaultTemplate = `server:
  host: ""
  port: 8484

auth:
  jwt_secret: ""
  token_ttl: 24h

bootstrap:
  admin_name: Administrator
  admin_email: %s

institutions:
  - id: printshop
    name: "In-house Print Shop"

webhooks: []
`
