package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
)

// Service is the assembled security pipeline. It is built once by Build and
// is read-only afterwards, so it is safe for concurrent use.
type Service struct {
	enabled bool
	users   *UserStore
	chain   *Chain
	tokens  *TokenGenerator
	authz   AuthorizationProvider
	logger  *slog.Logger
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	now func() time.Time
}

// WithClock overrides the clock used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) { o.now = now }
}

// Disabled returns a service that performs no authentication or
// authorization.
func Disabled(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Build constructs the security pipeline from configuration. Relative file
// names in the configuration are resolved against baseDir.
func Build(cfg config.SecurityConfig, baseDir string, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return Disabled(logger), nil
	}

	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	users, err := buildUserStore(cfg.UserStore, baseDir)
	if err != nil {
		return nil, err
	}

	tokens, err := buildTokenGenerator(cfg.TokenGenerator, bo.now)
	if err != nil {
		return nil, err
	}

	roles, err := buildRoleLoader(cfg.RoleLoader, users)
	if err != nil {
		return nil, err
	}

	if len(cfg.AuthenticationProviders) == 0 {
		return nil, errors.New("security: at least one authentication provider is required")
	}
	authenticators := make([]Authenticator, 0, len(cfg.AuthenticationProviders))
	for _, pc := range cfg.AuthenticationProviders {
		a, err := buildAuthenticator(pc, users, tokens, bo.now)
		if err != nil {
			return nil, err
		}
		authenticators = append(authenticators, a)
	}

	authz, err := buildAuthorizationProvider(cfg.AuthorizationProvider, baseDir)
	if err != nil {
		return nil, err
	}

	chain := NewChain(roles, authenticators...)
	logger.Info("security enabled",
		"users", users.Len(),
		"authenticators", chain.Len(),
		"authorization", cfg.AuthorizationProvider.Type,
		"token_ttl", tokens.TTL(),
	)

	return &Service{
		enabled: true,
		users:   users,
		chain:   chain,
		tokens:  tokens,
		authz:   authz,
		logger:  logger,
	}, nil
}

// Enabled reports whether requests must be authenticated.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Authenticate runs the authentication chain. The returned error, if any,
// satisfies errors.Is(err, ErrAuthentication); its specific cause is logged
// but should not be shown to clients.
func (s *Service) Authenticate(ctx context.Context, header http.Header) (*model.Identity, error) {
	if !s.enabled {
		return &model.Identity{Username: "anonymous"}, nil
	}
	id, err := s.chain.Authenticate(ctx, header)
	if err != nil {
		s.logger.Debug("authentication failed", "reason", err.Error())
		return nil, err
	}
	return id, nil
}

// Authorize returns ErrAuthorization unless the identity's roles permit
// action.
func (s *Service) Authorize(identity *model.Identity, action string) error {
	if !s.enabled {
		return nil
	}
	if identity == nil || !s.authz.Authorize(identity.Roles, action) {
		username := ""
		if identity != nil {
			username = identity.Username
		}
		s.logger.Debug("authorization denied", "user", username, "action", action)
		return fmt.Errorf("%w: %s", ErrAuthorization, action)
	}
	return nil
}

// IssueToken issues a session token for an authenticated identity.
func (s *Service) IssueToken(identity *model.Identity) (Token, error) {
	if !s.enabled {
		return Token{}, ErrSecurityDisabled
	}
	return s.tokens.Issue(identity)
}

// ---------------------------------------------------------------------------
// Variant construction
// ---------------------------------------------------------------------------

type fileUserStoreProperties struct {
	Path string `mapstructure:"path"`
}

type passwordProperties struct {
	PasswordHash string `mapstructure:"password_hash"`
}

type tokenAuthProperties struct {
	SecretKey string `mapstructure:"secret_key"`
}

type tokenGeneratorProperties struct {
	SecretKey        string `mapstructure:"secret_key"`
	ExpiresInSeconds int    `mapstructure:"expires_in_seconds"`
}

type rolesProperties struct {
	RolesConfigFileName string              `mapstructure:"roles_config_file_name"`
	Roles               map[string][]string `mapstructure:"roles"`
}

// decodeProperties decodes variant properties into a typed struct,
// rejecting keys the variant does not know.
func decodeProperties(component, variant string, props map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(props); err != nil {
		return fmt.Errorf("security: %s %q properties: %w", component, variant, err)
	}
	return nil
}

func resolvePath(baseDir, name string) string {
	if name == "" || filepath.IsAbs(name) || baseDir == "" {
		return name
	}
	return filepath.Join(baseDir, name)
}

func buildUserStore(vc config.VariantConfig, baseDir string) (*UserStore, error) {
	var doc config.UserStoreDocument
	switch vc.Type {
	case "simple":
		if err := decodeProperties("userstore", vc.Type, vc.Properties, &doc); err != nil {
			return nil, err
		}
	case "file":
		var props fileUserStoreProperties
		if err := decodeProperties("userstore", vc.Type, vc.Properties, &props); err != nil {
			return nil, err
		}
		if props.Path == "" {
			return nil, errors.New("security: userstore \"file\" requires a path")
		}
		loaded, err := config.LoadUserStoreFile(resolvePath(baseDir, props.Path))
		if err != nil {
			return nil, err
		}
		doc = *loaded
	default:
		return nil, fmt.Errorf("%w: userstore %q (supported: simple, file)", ErrUnknownVariant, vc.Type)
	}
	return NewUserStore(doc.Users, doc.Groups)
}

func buildTokenGenerator(vc config.VariantConfig, now func() time.Time) (*TokenGenerator, error) {
	if vc.Type != "token" {
		return nil, fmt.Errorf("%w: token_generator %q (supported: token)", ErrUnknownVariant, vc.Type)
	}
	var props tokenGeneratorProperties
	if err := decodeProperties("token_generator", vc.Type, vc.Properties, &props); err != nil {
		return nil, err
	}
	return NewTokenGenerator(props.SecretKey, time.Duration(props.ExpiresInSeconds)*time.Second, now)
}

func buildRoleLoader(vc config.VariantConfig, users *UserStore) (RoleLoader, error) {
	switch vc.Type {
	case "", "default":
		if err := decodeProperties("role_loader", "default", vc.Properties, &struct{}{}); err != nil {
			return nil, err
		}
		return NewDefaultRoleLoader(users), nil
	default:
		return nil, fmt.Errorf("%w: role_loader %q (supported: default)", ErrUnknownVariant, vc.Type)
	}
}

func buildAuthenticator(pc config.ProviderConfig, users *UserStore, tokens *TokenGenerator, now func() time.Time) (Authenticator, error) {
	switch pc.Type {
	case "password":
		var props passwordProperties
		if err := decodeProperties("authentication provider", pc.Name, pc.Properties, &props); err != nil {
			return nil, err
		}
		hasher, err := NewPasswordHasher(props.PasswordHash)
		if err != nil {
			return nil, err
		}
		return NewPasswordAuthenticator(users, hasher), nil
	case "token":
		var props tokenAuthProperties
		if err := decodeProperties("authentication provider", pc.Name, pc.Properties, &props); err != nil {
			return nil, err
		}
		verifier := tokens
		if props.SecretKey != "" && props.SecretKey != string(tokens.secret) {
			v, err := NewTokenGenerator(props.SecretKey, tokens.TTL(), now)
			if err != nil {
				return nil, err
			}
			verifier = v
		}
		return NewTokenAuthenticator(users, verifier), nil
	default:
		return nil, fmt.Errorf("%w: authentication provider %q type %q (supported: password, token)", ErrUnknownVariant, pc.Name, pc.Type)
	}
}

func buildAuthorizationProvider(vc config.VariantConfig, baseDir string) (AuthorizationProvider, error) {
	if vc.Type != "role_based" && vc.Type != "casbin" {
		return nil, fmt.Errorf("%w: authorization_provider %q (supported: role_based, casbin)", ErrUnknownVariant, vc.Type)
	}

	var props rolesProperties
	if err := decodeProperties("authorization_provider", vc.Type, vc.Properties, &props); err != nil {
		return nil, err
	}

	var roles *config.RolesConfig
	switch {
	case len(props.Roles) > 0:
		roles = &config.RolesConfig{Roles: make(map[string]config.RoleDefinition, len(props.Roles))}
		for name, perms := range props.Roles {
			roles.Roles[name] = config.RoleDefinition{Permissions: perms}
		}
		if err := roles.Validate(); err != nil {
			return nil, err
		}
	default:
		name := props.RolesConfigFileName
		if name == "" {
			name = config.DefaultRolesConfigFileName
		}
		loaded, err := config.LoadRolesConfig(resolvePath(baseDir, name))
		if err != nil {
			return nil, err
		}
		roles = loaded
	}

	if vc.Type == "casbin" {
		return NewCasbinProvider(roles)
	}
	return NewRoleBasedProvider(roles), nil
}
