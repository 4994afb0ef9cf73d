package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/security"
)

func newTokenCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token",
		Long: `Authenticate with a username and password against the configured user store
and print a session token. The token is accepted in the Authentication-Token
header until it expires.`,
		Example: `  manager token --username admin            # prompts for the password
  manager token --username admin --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				pw, err := promptPassword("Password: ")
				if err != nil {
					return err
				}
				password = pw
			}

			cfg, baseDir, err := loadConfig()
			if err != nil {
				return err
			}
			sec, err := buildSecurity(cfg, baseDir, newLogger(cfg.Logging, false))
			if err != nil {
				return err
			}

			resp, err := issueToken(cmd.Context(), sec, username, password)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "User to authenticate as")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")

	return cmd
}

func issueToken(ctx context.Context, sec *security.Service, username, password string) (*model.TokenResponse, error) {
	if !sec.Enabled() {
		return nil, security.ErrSecurityDisabled
	}
	if ctx == nil {
		ctx = context.Background()
	}
	identity, err := sec.Authenticate(ctx, basicHeader(username, password))
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", username, err)
	}
	tok, err := sec.IssueToken(identity)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{
		Value:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Username:  identity.Username,
	}, nil
}

func basicHeader(username, password string) http.Header {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(username, password)
	return req.Header
}

func tokenHeader(token string) http.Header {
	h := http.Header{}
	h.Set(security.HeaderToken, token)
	return h
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for a users file",
		Long:  "Prompt for a password and print its bcrypt hash, for use with password_hash: bcrypt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := promptPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if pw != confirm {
				return errors.New("passwords do not match")
			}
			hash, err := security.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
