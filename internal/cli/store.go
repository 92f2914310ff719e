package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/advisor"
	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/internal/storage"
	"github.com/iudanet/gophsync/internal/storage/boltdb"
	"github.com/iudanet/gophsync/internal/sync"
	"github.com/iudanet/gophsync/pkg/api"
)

// withStore открывает локальное хранилище на время выполнения fn
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, s *boltdb.Storage) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := o.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			o.logger(cmd).Error("Failed to close database", "error", err)
		}
	}()

	return fn(ctx, s)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	var strategyName string

	cmd := &cobra.Command{
		Use:   "sync <remote.json>",
		Short: "Reconcile remote snapshots into the local database",
		Long: `Sync merges remote snapshots into the local database. New records are
created, causally newer records replace local ones, and concurrent edits are
recorded in the conflict history and resolved with the batch strategy.
Conflicts that fail to resolve or save stay open and are retried next time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := opts.registry()
			if err != nil {
				return err
			}
			remotes, err := readRecords(args[0])
			if err != nil {
				return err
			}

			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				logger := opts.logger(cmd)
				service := sync.NewService(s, s,
					conflict.NewDetector(registry, logger),
					resolve.NewEngine(registry, logger),
					audit.NewCollector(logger, nil), nil,
					models.Strategy(strategyName), logger)

				result, err := service.Reconcile(ctx, remotes)
				if err != nil {
					return fmt.Errorf("synchronization failed: %w", err)
				}

				return opts.emit(cmd, result, func(w io.Writer) {
					fmt.Fprintln(w, "✓ Synchronization completed")
					fmt.Fprintf(w, "Received:        %d\n", result.Received)
					fmt.Fprintf(w, "Created:         %d\n", result.Created)
					fmt.Fprintf(w, "Fast-forwarded:  %d\n", result.FastForwarded)
					fmt.Fprintf(w, "Unchanged:       %d\n", result.Unchanged)
					fmt.Fprintf(w, "Conflicts:       %d\n", result.Conflicts)
					fmt.Fprintf(w, "Resolved:        %d\n", result.Resolved)
					if result.Reapplied > 0 {
						fmt.Fprintf(w, "Reapplied:       %d\n", result.Reapplied)
					}
					if result.Escalated > 0 {
						fmt.Fprintf(w, "Awaiting review: %d\n", result.Escalated)
					}
					if result.Skipped > 0 {
						fmt.Fprintf(w, "Skipped:         %d\n", result.Skipped)
					}
				})
			})
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", string(models.StrategyManual), "batch strategy")

	return cmd
}

// NewReviewCommand creates the review command group.
func NewReviewCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve conflicts from the history",
	}

	cmd.AddCommand(
		newReviewListCommand(opts),
		newReviewShowCommand(opts),
		newReviewApplyCommand(opts),
		newReviewReadCommand(opts),
		newReviewDismissCommand(opts),
	)

	return cmd
}

func newReviewListCommand(opts *RootOptions) *cobra.Command {
	var filter storage.HistoryFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conflict history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				entries, err := s.ListEntries(ctx, filter)
				if err != nil {
					return err
				}

				return opts.emit(cmd, api.ConflictListResponse{Entries: entries, Total: len(entries)}, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No conflicts")
						return
					}
					for _, e := range entries {
						state := "open"
						if e.IsResolved() {
							state = "resolved:" + string(e.Resolution.Winner)
						}
						if e.Dismissed {
							state += ",dismissed"
						}
						marker := "*"
						if e.Read {
							marker = " "
						}
						fmt.Fprintf(w, "%s %s  %-20s ", marker, e.CreatedAt.Format(time.DateTime), state)
						printConflict(w, &e.Conflict)
					}
				})
			})
		},
	}

	cmd.Flags().BoolVar(&filter.UnresolvedOnly, "unresolved", false, "only conflicts awaiting resolution")
	cmd.Flags().BoolVar(&filter.IncludeDismissed, "all", false, "include dismissed entries")
	cmd.Flags().StringVar(&filter.EntityType, "type", "", "only this entity type")

	return cmd
}

func newReviewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conflict-id>",
		Short: "Show a conflict with per-field suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := opts.registry()
			if err != nil {
				return err
			}

			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				entry, err := s.GetEntry(ctx, args[0])
				if err != nil {
					return err
				}
				fields, err := api.NewFieldConflicts(advisor.New(registry, opts.logger(cmd)).FieldConflicts(&entry.Conflict))
				if err != nil {
					return err
				}

				return opts.emit(cmd, api.ConflictResponse{Entry: entry, Fields: fields}, func(w io.Writer) {
					printConflict(w, &entry.Conflict)
					printFields(w, fields)
					if entry.IsResolved() {
						fmt.Fprintf(w, "Resolved %s by %s (%s)\n",
							entry.Resolution.ResolvedAt.Format(time.DateTime), entry.Resolution.ResolvedBy, entry.Resolution.Strategy)
					}
				})
			})
		},
	}
}

func newReviewApplyCommand(opts *RootOptions) *cobra.Command {
	var (
		decision      resolve.Decision
		strategyName  string
		overridesPath string
	)

	cmd := &cobra.Command{
		Use:   "apply <conflict-id>",
		Short: "Apply a manual decision to an open conflict",
		Long: `Apply resolves an open conflict with keep_local, keep_remote or
custom_merge. custom_merge starts from the local version and replaces the
fields given in --overrides (a JSON object of tagged values).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := opts.registry()
			if err != nil {
				return err
			}

			decision.ConflictID = args[0]
			decision.Strategy = models.Strategy(strategyName)
			if overridesPath != "" {
				if decision.FieldOverrides, err = readFields(overridesPath); err != nil {
					return err
				}
			}
			if decision.ResolvedBy == "" {
				decision.ResolvedBy = os.Getenv("USER")
			}

			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				res, err := applyDecision(ctx, s, resolve.NewEngine(registry, opts.logger(cmd)), decision)
				if err != nil {
					return err
				}

				return opts.emit(cmd, api.ResolveResponse{Resolution: res}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Conflict %s resolved: %s (%s)\n", res.ConflictID, res.Winner, res.Strategy)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", string(models.StrategyKeepLocal), "keep_local, keep_remote or custom_merge")
	cmd.Flags().StringVar(&overridesPath, "overrides", "", "JSON file with field overrides for custom_merge")
	cmd.Flags().StringVar(&decision.ResolvedBy, "by", "", "reviewer name (defaults to $USER)")
	cmd.Flags().StringVar(&decision.Notes, "notes", "", "free-form notes stored with the resolution")

	return cmd
}

// applyDecision применяет ручное решение: запись сохраняется до отметки в истории
func applyDecision(ctx context.Context, s *boltdb.Storage, engine *resolve.Engine, d resolve.Decision) (*models.ConflictResolution, error) {
	entry, err := s.GetEntry(ctx, d.ConflictID)
	if err != nil {
		return nil, err
	}
	if entry.IsResolved() {
		return nil, fmt.Errorf("conflict %s: %w", d.ConflictID, storage.ErrAlreadyResolved)
	}

	res, err := engine.ApplyManual(&entry.Conflict, d)
	if err != nil {
		return nil, err
	}
	if err := s.SaveRecord(ctx, res.Record); err != nil {
		return nil, fmt.Errorf("failed to save resolved record: %w", err)
	}
	if err := s.MarkResolved(ctx, res); err != nil && !errors.Is(err, storage.ErrAlreadyResolved) {
		return nil, err
	}
	return res, nil
}

func newReviewReadCommand(opts *RootOptions) *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "read <conflict-id>",
		Short: "Mark a conflict as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				if err := s.SetRead(ctx, args[0], !unread); err != nil {
					return err
				}
				return opts.emit(cmd, map[string]any{"id": args[0], "read": !unread}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ %s read=%t\n", args[0], !unread)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "mark as unread instead")

	return cmd
}

func newReviewDismissCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <conflict-id>",
		Short: "Hide a conflict from the default review list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				if err := s.Dismiss(ctx, args[0]); err != nil {
					return err
				}
				return opts.emit(cmd, map[string]any{"id": args[0], "dismissed": true}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ %s dismissed\n", args[0])
				})
			})
		},
	}
}
