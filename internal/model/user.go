package model

// User is an account in the user store. Password holds credential material
// whose encoding depends on the configured hash policy.
type User struct {
	Username string   `json:"username" yaml:"username" mapstructure:"username"`
	Password string   `json:"-" yaml:"password" mapstructure:"password"`
	Groups   []string `json:"groups" yaml:"groups" mapstructure:"groups"`
	Roles    []string `json:"roles,omitempty" yaml:"roles" mapstructure:"roles"`
}

// Group grants its roles to every member.
type Group struct {
	Name  string   `json:"name" yaml:"name" mapstructure:"name"`
	Roles []string `json:"roles" yaml:"roles" mapstructure:"roles"`
}

// Authentication methods recorded on an Identity.
const (
	AuthMethodPassword = "password"
	AuthMethodToken    = "token"
)

// Identity is the principal produced by successful authentication. Roles is
// the effective role set: direct roles plus roles inherited through groups.
type Identity struct {
	Username   string   `json:"username"`
	Groups     []string `json:"groups"`
	Roles      []string `json:"roles"`
	AuthMethod string   `json:"auth_method"`
}
