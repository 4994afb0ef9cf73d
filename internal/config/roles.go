package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// DefaultRolesConfigFileName is the conventional name of the roles document.
const DefaultRolesConfigFileName = "roles_config.yaml"

// RolesConfig maps role names to the actions they permit. Actions have the
// form "<collection>:<verb>"; permissions may use glob patterns, so "*"
// grants everything and "*:list" grants every list endpoint.
type RolesConfig struct {
	Roles map[string]RoleDefinition `yaml:"roles"`
}

// RoleDefinition is one role's entry in the roles document.
type RoleDefinition struct {
	Description string   `yaml:"description,omitempty"`
	Permissions []string `yaml:"permissions"`
}

// LoadRolesConfig reads and validates a roles document.
func LoadRolesConfig(p string) (*RolesConfig, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read roles config: %w", err)
	}
	var cfg RolesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse roles config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects malformed permission patterns.
func (c *RolesConfig) Validate() error {
	for role, def := range c.Roles {
		if role == "" {
			return fmt.Errorf("roles config: empty role name")
		}
		for _, perm := range def.Permissions {
			if perm == "" {
				return fmt.Errorf("roles config: role %q has an empty permission", role)
			}
			if _, err := path.Match(perm, ""); err != nil {
				return fmt.Errorf("roles config: role %q permission %q: %w", role, perm, err)
			}
		}
	}
	return nil
}

// DefaultRolesConfig is the roles document written by "manager config init".
func DefaultRolesConfig() *RolesConfig {
	return &RolesConfig{
		Roles: map[string]RoleDefinition{
			"administrator": {
				Description: "Full access to every endpoint",
				Permissions: []string{"*"},
			},
			"deployer": {
				Description: "Works with blueprints, deployments and executions",
				Permissions: []string{
					"blueprints:*",
					"deployments:*",
					"executions:*",
					"nodes:*",
					"node-instances:*",
					"deployment-modifications:*",
					"events:list",
					"tokens:issue",
					"status:get",
				},
			},
			"viewer": {
				Description: "Read-only access",
				Permissions: []string{"*:list", "*:get", "tokens:issue"},
			},
		},
	}
}
