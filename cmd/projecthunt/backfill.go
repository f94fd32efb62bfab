package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var forceBackfill bool

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed entries that are missing a vector",
	Long: `Embed every entry whose embedding never completed. With --force every
entry is re-embedded, which is needed after switching the vector backend or
the embedding model.

Examples:
  # Fill in missing embeddings
  projecthunt backfill

  # Rebuild the whole vector index
  projecthunt backfill --force`,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().BoolVar(&forceBackfill, "force", false, "re-embed every entry")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = a.Logger.Sync() }()

	stats, err := a.Indexer.Run(ctx, a.IndexerConfig(forceBackfill))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "processed: %d\n", stats.EntriesProcessed)
	fmt.Fprintf(out, "skipped:   %d\n", stats.EntriesSkipped)
	fmt.Fprintf(out, "failed:    %d\n", stats.EntriesFailed)
	fmt.Fprintf(out, "duration:  %s\n", stats.Duration)
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
	if stats.EntriesFailed > 0 {
		return fmt.Errorf("%d entries failed", stats.EntriesFailed)
	}
	return nil
}
