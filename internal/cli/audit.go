package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/storage"
	"github.com/iudanet/gophsync/internal/storage/boltdb"
)

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Summarise the conflict history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				entries, err := s.ListEntries(ctx, storage.HistoryFilter{IncludeDismissed: true})
				if err != nil {
					return err
				}
				m := audit.ComputeHistory(entries, 0)

				return opts.emit(cmd, m, func(w io.Writer) {
					fmt.Fprintf(w, "Conflicts:        %d\n", m.Total)
					fmt.Fprintf(w, "Resolved:         %d (auto %d, manual %d)\n", m.Resolved, m.AutoResolved, m.ManualResolved)
					fmt.Fprintf(w, "Unresolved:       %d\n", m.Unresolved)
					fmt.Fprintf(w, "Auto rate:        %.2f\n", m.AutoResolutionRate)
					fmt.Fprintf(w, "Mean latency:     %s\n", m.MeanResolutionLatency)
					for _, kind := range []models.ConflictKind{models.ConcurrentUpdate, models.DeleteUpdate, models.StructuralConflict} {
						fmt.Fprintf(w, "  %-20s %d\n", kind, m.ByKind[kind])
					}
					for _, sev := range []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical} {
						fmt.Fprintf(w, "  %-20s %d\n", sev, m.BySeverity[sev])
					}
				})
			})
		},
	}
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(opts *RootOptions) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove resolved history entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *boltdb.Storage) error {
				removed, err := audit.NewTrail(s, retention, opts.logger(cmd)).Prune(ctx, time.Now())
				if err != nil {
					return err
				}
				return opts.emit(cmd, map[string]int{"removed": removed}, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Removed %d history entries\n", removed)
				})
			})
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", audit.DefaultRetention, "keep resolved entries for this long")

	return cmd
}
