package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deploykit/manager/internal/model"
)

// SecurityConfig selects and parameterizes the security components. Each
// component is a tagged variant: Type names one of a closed set of
// strategies and Properties carries that strategy's settings.
type SecurityConfig struct {
	Enabled                 bool             `yaml:"enabled"`
	UserStore               VariantConfig    `yaml:"userstore"`
	AuthenticationProviders []ProviderConfig `yaml:"authentication_providers"`
	TokenGenerator          VariantConfig    `yaml:"token_generator"`
	AuthorizationProvider   VariantConfig    `yaml:"authorization_provider"`
	RoleLoader              VariantConfig    `yaml:"role_loader"`
}

// VariantConfig is a variant tag plus its untyped properties. The security
// package decodes Properties into the typed struct of the selected variant.
type VariantConfig struct {
	Type       string                 `yaml:"type"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// ProviderConfig configures one entry of the authentication chain.
type ProviderConfig struct {
	Name          string `yaml:"name"`
	VariantConfig `yaml:",inline"`
}

// UserStoreDocument is the users/groups document consumed by the user store,
// either inline in the security config or in a separate file.
type UserStoreDocument struct {
	Users  []model.User  `yaml:"users" mapstructure:"users"`
	Groups []model.Group `yaml:"groups" mapstructure:"groups"`
}

// DefaultSecurityConfig returns the security section written by
// "manager config init": password then token authentication against an
// inline user store, role based authorization from roles_config.yaml.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		Enabled: false,
		UserStore: VariantConfig{
			Type: "simple",
			Properties: map[string]interface{}{
				"users": []interface{}{
					map[string]interface{}{
						"username": "admin",
						"password": "${MANAGER_ADMIN_PASSWORD}",
						"groups":   []interface{}{"admins"},
					},
				},
				"groups": []interface{}{
					map[string]interface{}{
						"name":  "admins",
						"roles": []interface{}{"administrator"},
					},
				},
			},
		},
		AuthenticationProviders: []ProviderConfig{
			{
				Name: "password",
				VariantConfig: VariantConfig{
					Type:       "password",
					Properties: map[string]interface{}{"password_hash": "plaintext"},
				},
			},
			{
				Name: "token",
				VariantConfig: VariantConfig{
					Type:       "token",
					Properties: map[string]interface{}{"secret_key": "${MANAGER_SECRET_KEY}"},
				},
			},
		},
		TokenGenerator: VariantConfig{
			Type: "token",
			Properties: map[string]interface{}{
				"secret_key":         "${MANAGER_SECRET_KEY}",
				"expires_in_seconds": 600,
			},
		},
		AuthorizationProvider: VariantConfig{
			Type: "role_based",
			Properties: map[string]interface{}{
				"roles_config_file_name": DefaultRolesConfigFileName,
			},
		},
		RoleLoader: VariantConfig{Type: "default"},
	}
}

// ExpandEnv returns a copy of c with ${NAME} references expanded in every
// string property. LoadYAMLConfig expands the file text; this covers
// configurations that never went through a file, such as the defaults.
func (c SecurityConfig) ExpandEnv() SecurityConfig {
	out := c
	out.UserStore = c.UserStore.expandEnv()
	out.TokenGenerator = c.TokenGenerator.expandEnv()
	out.AuthorizationProvider = c.AuthorizationProvider.expandEnv()
	out.RoleLoader = c.RoleLoader.expandEnv()
	out.AuthenticationProviders = make([]ProviderConfig, len(c.AuthenticationProviders))
	for i, pc := range c.AuthenticationProviders {
		pc.VariantConfig = pc.VariantConfig.expandEnv()
		out.AuthenticationProviders[i] = pc
	}
	return out
}

func (v VariantConfig) expandEnv() VariantConfig {
	if v.Properties != nil {
		v.Properties = expandValue(v.Properties).(map[string]interface{})
	}
	return v
}

func expandValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return ExpandEnv(t)
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = expandValue(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = expandValue(val)
		}
		return s
	default:
		return v
	}
}

// LoadUserStoreFile reads a users/groups YAML document from disk.
func LoadUserStoreFile(path string) (*UserStoreDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read userstore file: %w", err)
	}
	var doc UserStoreDocument
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &doc); err != nil {
		return nil, fmt.Errorf("parse userstore file: %w", err)
	}
	return &doc, nil
}
