package mcpserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the MCP server configuration loaded from mcp.yaml.
type Config struct {
	APIURL       string                    `yaml:"api_url"`
	Instructions string                    `yaml:"instructions"`
	Defaults     map[string]MethodDefaults `yaml:"defaults"`
	Overrides    map[string]ToolOverride   `yaml:"overrides"`
	Disabled     []string                  `yaml:"disabled"`
}

// MethodDefaults defines default MCP annotations for an HTTP method.
type MethodDefaults struct {
	ReadOnly    *bool `yaml:"readonly"`
	Destructive *bool `yaml:"destructive"`
	Idempotent  *bool `yaml:"idempotent"`
}

// ToolOverride allows per-tool customization.
type ToolOverride struct {
	Description string `yaml:"description"`
	ReadOnly    *bool  `yaml:"readonly"`
	Destructive *bool  `yaml:"destructive"`
	Idempotent  *bool  `yaml:"idempotent"`
}

// LoadConfig reads and parses the configuration file. An empty path yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return ParseConfig(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses mcp.yaml configuration from raw bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mcp config: %w", err)
	}

	if cfg.APIURL == "" {
		cfg.APIURL = "http://127.0.0.1:8090"
	}
	if cfg.Instructions == "" {
		cfg.Instructions = "Peacock provisioning: inspect provisions, press lifecycle buttons and report child instance status."
	}
	if cfg.Defaults == nil {
		cfg.Defaults = map[string]MethodDefaults{
			"GET":    {ReadOnly: boolPtr(true), Idempotent: boolPtr(true)},
			"POST":   {ReadOnly: boolPtr(false)},
			"DELETE": {ReadOnly: boolPtr(false), Destructive: boolPtr(true)},
		}
	}

	for _, name := range cfg.Disabled {
		if _, ok := operationByName(name); !ok {
			return nil, fmt.Errorf("parse mcp config: unknown tool %q in disabled", name)
		}
	}
	for name := range cfg.Overrides {
		if _, ok := operationByName(name); !ok {
			return nil, fmt.Errorf("parse mcp config: unknown tool %q in overrides", name)
		}
	}

	return &cfg, nil
}

func (c *Config) disabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
