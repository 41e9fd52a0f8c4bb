package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/auth"
	"github.com/frahmantamala/hrms-identity/internal/token"
	userPostgres "github.com/frahmantamala/hrms-identity/internal/user/postgres"
)

var (
	inspectVerify bool
	inspectType   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Operator tooling for tokens",
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue [username]",
	Short: "Mint an access and refresh token for an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.Server.Mode != internal.ModeAuth {
			return errors.New("tokens can only be issued with an auth mode configuration")
		}
		lg := setupLogger(cfg.Observability.Logging)

		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		gdb, err := openGorm(db)
		if err != nil {
			return err
		}

		identity, err := userPostgres.NewUserRepository(gdb).FindByUsername(ctx, args[0])
		if err != nil {
			return fmt.Errorf("lookup %s: %w", args[0], err)
		}
		if !identity.CanLogin() {
			lg.Warn("issuing tokens for an account that cannot log in", "username", identity.Username)
		}

		signer, err := buildSigner(cfg.Security)
		if err != nil {
			return err
		}
		issuer, err := buildIssuer(cfg.Security, signer)
		if err != nil {
			return err
		}
		subject := auth.SubjectFromIdentity(identity)
		access, err := issuer.IssueAccessToken(subject)
		if err != nil {
			return err
		}
		refresh, err := issuer.IssueRefreshToken(subject)
		if err != nil {
			return err
		}

		return writeJSON(cmd.OutOrStdout(), auth.AuthenticationResponse{
			AccessToken:  access.Value,
			RefreshToken: refresh.Value,
			TokenType:    auth.TokenTypeBearer,
			ExpiresIn:    issuer.AccessTTL().Milliseconds(),
			Username:     identity.Username,
			Email:        identity.Email,
		})
	},
}

var inspectTokenCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Print the claims of a token",
	Long:  `Decode a token's claims without checking it. With --verify the signature, issuer, type and validity window are checked against the configured key.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := token.StripBearer(args[0])

		if inspectVerify {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			signer, err := buildSigner(cfg.Security)
			if err != nil {
				return err
			}
			verifier, err := token.NewVerifier(signer, cfg.Security.Issuer)
			if err != nil {
				return err
			}
			claims, err := verifier.Verify(raw, token.Type(inspectType))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), claims)
		}

		claims, err := decodeUnverified(raw)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), claims)
	},
}

func decodeUnverified(raw string) (*token.Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected three segments", token.ErrDecode)
	}
	return token.Decode(parts[1])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	inspectTokenCmd.Flags().BoolVar(&inspectVerify, "verify", false, "verify the token against the configured key")
	inspectTokenCmd.Flags().StringVar(&inspectType, "type", string(token.TypeAccess), "expected token type when verifying (access or refresh)")

	tokenCmd.AddCommand(issueTokenCmd)
	tokenCmd.AddCommand(inspectTokenCmd)
	rootCmd.AddCommand(tokenCmd)
}
