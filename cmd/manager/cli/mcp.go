package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/deploykit/manager/internal/config"
	mmcp "github.com/deploykit/manager/internal/mcp"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/security"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
		username  string
		password  string
		token     string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes read-only list and get
tools over the resource store. Supports stdio (default) and HTTP transports.

In stdio mode the given credentials are checked at startup and again on every
tool call, so an expired --token stops working. In HTTP mode the flags are not
used: each request must carry its own Authorization or Authentication-Token
header.`,
		Example: `  manager mcp --username viewer --password secret      # stdio mode
  manager mcp --transport http --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, baseDir, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("transport") && cfg.MCP.Transport != "" {
				transport = cfg.MCP.Transport
			}
			if !cmd.Flags().Changed("port") && cfg.MCP.Port > 0 {
				port = cfg.MCP.Port
			}
			return runMCP(cmd.Context(), cfg, baseDir, transport, port, mcpCredentials{username, password, token})
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")
	cmd.Flags().StringVar(&username, "username", "", "User to authenticate as")
	cmd.Flags().StringVar(&password, "password", "", "Password for --username (prompted when omitted)")
	cmd.Flags().StringVar(&token, "token", "", "Session token to authenticate with instead of a password")

	return cmd
}

type mcpCredentials struct {
	username string
	password string
	token    string
}

// header builds the request headers the authentication chain expects.
func (c mcpCredentials) header() (http.Header, error) {
	switch {
	case c.username != "":
		password := c.password
		if password == "" {
			pw, err := promptPassword("Password: ")
			if err != nil {
				return nil, err
			}
			password = pw
		}
		return basicHeader(c.username, password), nil
	case c.token != "":
		return tokenHeader(c.token), nil
	default:
		return http.Header{}, nil
	}
}

func runMCP(ctx context.Context, cfg *config.YAMLConfig, baseDir, transport string, port int, creds mcpCredentials) error {
	logger := newLogger(cfg.Logging, false)
	if ctx == nil {
		ctx = context.Background()
	}

	sec, err := buildSecurity(cfg, baseDir, logger)
	if err != nil {
		return err
	}
	var header http.Header
	switch transport {
	case "stdio":
		identity, h, err := mcpIdentity(ctx, sec, creds)
		if err != nil {
			return err
		}
		logger.Info("mcp stdio credentials verified", "user", identity.Username)
		header = h
	case "http":
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mcpSrv := mmcp.NewMCPServer(store, sec, query.NewEngine(query.DefaultVersionPolicy), mmcp.Options{
		Version:     versionString(),
		Page:        query.ParseOptions{DefaultSize: cfg.API.DefaultPageSize, MaxSize: cfg.API.MaxPageSize},
		Credentials: header,
	}, logger)

	if transport == "http" {
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	}
	return mcpSrv.ServeStdio()
}

// mcpIdentity checks the stdio credentials once up front and returns the
// headers later tool calls re-authenticate with.
func mcpIdentity(ctx context.Context, sec *security.Service, creds mcpCredentials) (*model.Identity, http.Header, error) {
	if !sec.Enabled() {
		id, err := sec.Authenticate(ctx, http.Header{})
		return id, http.Header{}, err
	}
	if creds.username == "" && creds.token == "" {
		return nil, nil, errors.New("security is enabled: pass --username or --token")
	}
	header, err := creds.header()
	if err != nil {
		return nil, nil, err
	}
	identity, err := sec.Authenticate(ctx, header)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp: %w", err)
	}
	return identity, header, nil
}
