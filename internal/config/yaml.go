package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level manager configuration file.
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
	MCP      MCPConfig      `yaml:"mcp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RateLimit       int        `yaml:"rate_limit"` // requests per minute per credential, 0 disables
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// APIConfig controls list endpoint defaults.
type APIConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// StorageConfig selects the resource store backend.
type StorageConfig struct {
	Driver       string `yaml:"driver"` // sqlite, postgres, mysql, mssql
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Values missing from the file keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	// yaml.v3 merges into non-nil maps, so variant properties must start
	// empty or the defaults would leak into the file's variants.
	cfg.Security = SecurityConfig{}
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${NAME} references with environment values. Bare $NAME
// is left alone so bcrypt hashes survive.
func ExpandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// HasEnvRef reports whether s still contains an unexpanded ${NAME} reference.
func HasEnvRef(s string) bool {
	return envRef.MatchString(s)
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
// Security ships disabled; the variant blocks are filled in so that flipping
// security.enabled is enough to turn it on.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8100,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		API: APIConfig{
			DefaultPageSize: 1000,
			MaxPageSize:     1000,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Security: DefaultSecurityConfig(),
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      3001,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ShutdownTimeoutDuration parses the shutdown timeout, falling back to 30s.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// WriteDefaultConfig writes the default configuration to a YAML file, along
// with a default roles_config.yaml next to it.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	rolesPath := filepath.Join(filepath.Dir(path), DefaultRolesConfigFileName)
	if _, err := os.Stat(rolesPath); err == nil {
		return nil
	}
	rolesData, err := yaml.Marshal(DefaultRolesConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(rolesPath, rolesData, 0644)
}
