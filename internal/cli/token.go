package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/pkg/api"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		reviewer string
		secret   string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a reviewer access token for the review server",
		Long: `Token signs a reviewer JWT with the server secret. The secret is read
from --secret or the GOPHSYNC_JWT_SECRET environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv(config.EnvJWTSecret)
			}
			if secret == "" {
				return fmt.Errorf("secret is required: use --secret or %s", config.EnvJWTSecret)
			}

			token, expiresIn, err := handlers.GenerateAccessToken(handlers.JWTConfig{
				Secret:         []byte(secret),
				AccessTokenTTL: ttl,
			}, reviewer)
			if err != nil {
				return err
			}

			resp := api.TokenResponse{AccessToken: token, Reviewer: reviewer, ExpiresIn: expiresIn}
			return opts.emit(cmd, resp, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", os.Getenv("USER"), "reviewer name stored in the token subject")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret shared with the server")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
