package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// Переменные окружения команд remote
const (
	EnvServer = "GOPHSYNC_SERVER"
	EnvToken  = "GOPHSYNC_TOKEN"
)

type remoteOptions struct {
	server string
	token  string
}

func (r *remoteOptions) client() (*client.Client, error) {
	if r.token == "" {
		return nil, fmt.Errorf("token is required: use --token or %s", EnvToken)
	}
	return client.NewClient(r.server, r.token), nil
}

// NewRemoteCommand creates the remote command group for the review server.
func NewRemoteCommand(opts *RootOptions) *cobra.Command {
	remote := &remoteOptions{}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Work with conflicts on a gophsync review server",
	}

	server := os.Getenv(EnvServer)
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&remote.server, "server", server, "review server URL")
	cmd.PersistentFlags().StringVar(&remote.token, "token", os.Getenv(EnvToken), "reviewer access token")

	cmd.AddCommand(
		newRemotePushCommand(opts, remote),
		newRemoteListCommand(opts, remote),
		newRemoteShowCommand(opts, remote),
		newRemoteResolveCommand(opts, remote),
		newRemoteDismissCommand(remote),
	)

	return cmd
}

func newRemotePushCommand(opts *RootOptions, remote *remoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <records.json>",
		Short: "Send record snapshots to the server for reconciliation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}
			records, err := readRecords(args[0])
			if err != nil {
				return err
			}

			resp, err := c.Reconcile(cmd.Context(), records)
			if err != nil {
				return err
			}
			return opts.emit(cmd, resp, func(w io.Writer) {
				fmt.Fprintf(w, "Received %d: created %d, fast-forwarded %d, unchanged %d\n",
					resp.Received, resp.Created, resp.FastForwarded, resp.Unchanged)
				fmt.Fprintf(w, "Conflicts %d: resolved %d, escalated %d, skipped %d\n",
					resp.Conflicts, resp.Resolved, resp.Escalated, resp.Skipped)
			})
		},
	}
}

func newRemoteListCommand(opts *RootOptions, remote *remoteOptions) *cobra.Command {
	var unresolved bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conflicts recorded on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}

			resp, err := c.ListConflicts(cmd.Context(), unresolved)
			if err != nil {
				return err
			}
			return opts.emit(cmd, resp, func(w io.Writer) {
				if resp.Total == 0 {
					fmt.Fprintln(w, "No conflicts")
					return
				}
				for _, e := range resp.Entries {
					printConflict(w, &e.Conflict)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only conflicts awaiting resolution")

	return cmd
}

func newRemoteShowCommand(opts *RootOptions, remote *remoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conflict-id>",
		Short: "Show a server conflict with per-field suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}

			resp, err := c.GetConflict(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.emit(cmd, resp, func(w io.Writer) {
				printConflict(w, &resp.Entry.Conflict)
				printFields(w, resp.Fields)
			})
		},
	}
}

func newRemoteResolveCommand(opts *RootOptions, remote *remoteOptions) *cobra.Command {
	var (
		req           api.ResolveRequest
		strategyName  string
		overridesPath string
	)

	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Submit a manual decision to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}

			req.Strategy = models.Strategy(strategyName)
			if overridesPath != "" {
				if req.FieldOverrides, err = readFields(overridesPath); err != nil {
					return err
				}
			}

			res, err := c.Resolve(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return opts.emit(cmd, api.ResolveResponse{Resolution: res}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Conflict %s resolved by %s: %s (%s)\n", res.ConflictID, res.ResolvedBy, res.Winner, res.Strategy)
			})
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", string(models.StrategyKeepLocal), "keep_local, keep_remote or custom_merge")
	cmd.Flags().StringVar(&overridesPath, "overrides", "", "JSON file with field overrides for custom_merge")
	cmd.Flags().StringVar(&req.ResolvedBy, "by", "", "reviewer name (defaults to the token subject)")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "free-form notes stored with the resolution")

	return cmd
}

func newRemoteDismissCommand(remote *remoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <conflict-id>",
		Short: "Hide a server conflict from the default list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}
			return c.Dismiss(cmd.Context(), args[0])
		},
	}
}
