package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/security"
)

// loadConfig returns the effective configuration: the YAML file viper found
// (or the defaults), with viper overrides from flags and MANAGER_*
// environment variables applied on top. The second result is the directory
// relative security file names resolve against.
func loadConfig() (*config.YAMLConfig, string, error) {
	cfg := config.DefaultYAMLConfig()
	baseDir := "."

	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
		baseDir = filepath.Dir(path)
	} else {
		cfg.Security = cfg.Security.ExpandEnv()
	}

	if viper.IsSet("server.host") {
		cfg.Server.Host = config.ExpandEnv(viper.GetString("server.host"))
	}
	if viper.IsSet("server.port") {
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("storage.driver") {
		cfg.Storage.Driver = config.ExpandEnv(viper.GetString("storage.driver"))
	}
	if viper.IsSet("storage.dsn") {
		cfg.Storage.DSN = config.ExpandEnv(viper.GetString("storage.dsn"))
	}
	if viper.IsSet("security.enabled") {
		cfg.Security.Enabled = viper.GetBool("security.enabled")
	}
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = viper.GetString("logging.level")
	}
	return cfg, baseDir, nil
}

// newLogger builds the process logger from the logging section. dev forces
// debug level.
func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	return newLoggerTo(os.Stderr, cfg, dev)
}

func newLoggerTo(w io.Writer, cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore opens the resource store named by the storage section.
func openStore(cfg *config.YAMLConfig) (*config.Store, error) {
	store, err := config.OpenFromConfig(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	return store, nil
}

// buildSecurity assembles the security service from the security section.
func buildSecurity(cfg *config.YAMLConfig, baseDir string, logger *slog.Logger) (*security.Service, error) {
	sec, err := security.Build(cfg.Security, baseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("security configuration: %w", err)
	}
	return sec, nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
