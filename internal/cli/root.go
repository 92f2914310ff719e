// Package cli реализует команды gophsync: офлайн-разбор снимков записей,
// согласование с локальным хранилищем и ручной разбор конфликтов.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/storage/boltdb"
	"github.com/iudanet/gophsync/internal/strategy"
)

// Форматы вывода
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidFormats допустимые значения --format
var ValidFormats = []string{FormatText, FormatJSON}

// RootOptions глобальные флаги всех команд
type RootOptions struct {
	Strategies string // путь к YAML со стратегиями; пусто - встроенные
	Format     string // "text" | "json"
	DB         string // путь к локальной BoltDB
	Verbose    bool
}

// NewRootCommand создает корневую команду gophsync
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gophsync",
		Short: "Conflict detection and resolution for offline-first records",
		Long: `gophsync reconciles independently edited copies of records.

It detects concurrent edits with vector clocks, classifies them, resolves
them with per-field merge policies and keeps an audit history for manual review.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Strategies, "strategies", "", "merge strategies YAML file (built-in defaults if empty)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "gophsync.db", "path to local database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging to stderr")

	cmd.AddCommand(
		NewDetectCommand(opts),
		NewResolveCommand(opts),
		NewAdviseCommand(opts),
		NewSyncCommand(opts),
		NewReviewCommand(opts),
		NewMetricsCommand(opts),
		NewPruneCommand(opts),
		NewTokenCommand(opts),
		NewRemoteCommand(opts),
	)

	return cmd
}

func (o *RootOptions) registry() (*strategy.Registry, error) {
	if o.Strategies == "" {
		return strategy.DefaultRegistry(), nil
	}
	r, err := strategy.LoadFile(o.Strategies, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load strategies: %w", err)
	}
	return r, nil
}

// logger пишет в stderr, чтобы не портить JSON вывод
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) openStore(ctx context.Context) (*boltdb.Storage, error) {
	s, err := boltdb.New(ctx, o.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}

// emit выводит data как JSON или вызывает text для текстового формата
func (o *RootOptions) emit(cmd *cobra.Command, data any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if o.Format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(w)
	return nil
}
