package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/advisor"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/pkg/api"
)

// NewDetectCommand creates the detect command.
func NewDetectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <local.json> <remote.json>",
		Short: "Detect conflicts between two snapshot files",
		Long: `Detect compares local and remote snapshots (a record or an array of
records per file) and prints every conflicting pair with its kind,
severity and conflicting fields.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := opts.registry()
			if err != nil {
				return err
			}
			locals, remotes, err := readPair(args[0], args[1])
			if err != nil {
				return err
			}

			logger := opts.logger(cmd)
			conflicts := detectAll(conflict.NewDetector(registry, logger), locals, remotes, logger)
			if conflicts == nil {
				conflicts = []*models.DetectedConflict{}
			}

			return opts.emit(cmd, conflicts, func(w io.Writer) {
				if len(conflicts) == 0 {
					fmt.Fprintln(w, "No conflicts found")
					return
				}
				fmt.Fprintf(w, "Found %d conflict(s)\n\n", len(conflicts))
				for _, c := range conflicts {
					printConflict(w, c)
				}
			})
		},
	}
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(opts *RootOptions) *cobra.Command {
	var (
		strategyName string
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "resolve <local.json> <remote.json>",
		Short: "Detect and resolve conflicts between two snapshot files",
		Long: `Resolve detects conflicts like detect and resolves them with a batch
strategy: auto_lww, auto_merge, local_wins, remote_wins or manual
(critical conflicts are escalated, the rest are merged).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := opts.registry()
			if err != nil {
				return err
			}
			locals, remotes, err := readPair(args[0], args[1])
			if err != nil {
				return err
			}

			logger := opts.logger(cmd)
			conflicts := detectAll(conflict.NewDetector(registry, logger), locals, remotes, logger)

			batch, err := resolve.NewEngine(registry, logger).ResolveBatch(conflicts, models.Strategy(strategyName))
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := writeResolved(outPath, batch.Resolved); err != nil {
					return err
				}
			}

			return opts.emit(cmd, batch, func(w io.Writer) {
				s := batch.Stats
				fmt.Fprintf(w, "Conflicts:  %d\n", s.Total)
				fmt.Fprintf(w, "Resolved:   %d\n", s.Resolved)
				fmt.Fprintf(w, "Escalated:  %d\n", s.Escalated)
				fmt.Fprintf(w, "Failed:     %d\n", s.Failed)
				for _, r := range batch.Resolved {
					fmt.Fprintf(w, "  ✓ %s  %s -> %s %s\n", r.ConflictID, r.Record.ID, r.Winner, strings.Join(r.MergedFields, ","))
				}
				for _, o := range batch.Unresolved {
					fmt.Fprintf(w, "  ! %s  %s: %s\n", o.Conflict.ID, o.Conflict.EntityID, o.Reason)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", string(models.StrategyAutoMerge), "batch strategy")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write resolved records to this JSON file")

	return cmd
}

// NewAdviseCommand creates the advise command.
func NewAdviseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "advise <local.json> <remote.json>",
		Short: "Show per-field suggestions for manual review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := opts.registry()
			if err != nil {
				return err
			}
			locals, remotes, err := readPair(args[0], args[1])
			if err != nil {
				return err
			}

			logger := opts.logger(cmd)
			conflicts := detectAll(conflict.NewDetector(registry, logger), locals, remotes, logger)
			adv := advisor.New(registry, logger)

			out := make([]api.ConflictResponse, 0, len(conflicts))
			for _, c := range conflicts {
				fields, err := api.NewFieldConflicts(adv.FieldConflicts(c))
				if err != nil {
					return err
				}
				out = append(out, api.ConflictResponse{
					Entry:  asEntry(c),
					Fields: fields,
				})
			}

			return opts.emit(cmd, out, func(w io.Writer) {
				if len(out) == 0 {
					fmt.Fprintln(w, "No conflicts found")
					return
				}
				for _, item := range out {
					printConflict(w, &item.Entry.Conflict)
					printFields(w, item.Fields)
					fmt.Fprintln(w)
				}
			})
		},
	}
}

// asEntry оборачивает конфликт в запись истории для вывода
func asEntry(c *models.DetectedConflict) *models.HistoryEntry {
	return &models.HistoryEntry{Conflict: *c, CreatedAt: c.DetectedAt, UpdatedAt: c.DetectedAt}
}

func writeResolved(path string, resolved []*models.ConflictResolution) error {
	records := make([]*models.Record, 0, len(resolved))
	for _, r := range resolved {
		records = append(records, r.Record)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode resolved records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printConflict(w io.Writer, c *models.DetectedConflict) {
	fmt.Fprintf(w, "%s  %s/%s  %s  %s", c.ID, c.EntityType, c.EntityID, c.Kind, c.Severity)
	if len(c.ConflictingFields) > 0 {
		fmt.Fprintf(w, "  [%s]", strings.Join(c.ConflictingFields, ", "))
	}
	fmt.Fprintln(w)
}

func printFields(w io.Writer, fields []api.FieldConflict) {
	for _, f := range fields {
		fmt.Fprintf(w, "  %-16s local=%s remote=%s", f.Field, f.LocalValue, f.RemoteValue)
		if f.Policy != "" {
			fmt.Fprintf(w, " policy=%s", f.Policy)
		}
		if f.CanAutoResolve {
			fmt.Fprintf(w, " suggested=%s", f.SuggestedValue)
		}
		fmt.Fprintln(w)
	}
}
