package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/stixkit/internal/store"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [runs|documents|prune]",
	Short: "Show past runs and per-document outcomes",
	Long: `Show the run history recorded by fix and validate.

Examples:
  # Most recent runs
  stixkit history runs

  # Documents of one run, only failures
  stixkit history documents --run-id run_123 --status failed

  # Drop runs older than 30 days
  stixkit history prune --older-than 720h`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historyRunID     string
	historyStatus    string
	historyLimit     int
	historyOlderThan time.Duration
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyRunID, "run-id", "", "Run ID for listing documents")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Only documents with this status (fixed, unchanged, failed, valid, invalid, error)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of items to show")
	historyCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age cutoff for prune")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	target := "runs"
	if len(args) > 0 {
		target = strings.ToLower(args[0])
	}

	out := cmd.OutOrStdout()
	switch target {
	case "runs":
		return listRuns(ctx, out, st, historyLimit)
	case "documents", "docs":
		return listDocuments(ctx, out, st, historyRunID, historyStatus, historyLimit)
	case "prune":
		n, err := st.DeleteRunsBefore(ctx, time.Now().Add(-historyOlderThan))
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		fmt.Fprintf(out, "Removed %d runs older than %s\n", n, historyOlderThan)
		return nil
	default:
		return fmt.Errorf("unknown history type: %s (use 'runs', 'documents' or 'prune')", target)
	}
}

func listRuns(ctx context.Context, out io.Writer, st *store.Store, limit int) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d runs:\n\n", len(runs))
	for i, r := range runs {
		mode := ""
		if r.DryRun {
			mode = " (dry run)"
		}
		fmt.Fprintf(out, "%d. [%s] %s%s\n", i+1, strings.ToUpper(r.Status), r.Command, mode)
		fmt.Fprintf(out, "   ID: %s\n", r.ID)
		fmt.Fprintf(out, "   Dir: %s\n", r.Dir)
		fmt.Fprintf(out, "   Documents: %d processed, %d failed\n", r.Processed, r.Failed)
		fmt.Fprintf(out, "   Started: %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
		if !r.FinishedAt.IsZero() {
			fmt.Fprintf(out, "   Finished: %s\n", r.FinishedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func listDocuments(ctx context.Context, out io.Writer, st *store.Store, runID, status string, limit int) error {
	docs, err := st.GetDocuments(ctx, runID, status, limit)
	if err != nil {
		return fmt.Errorf("failed to get documents: %w", err)
	}
	if runID != "" {
		fmt.Fprintf(out, "Documents for run %s:\n\n", runID)
	} else {
		fmt.Fprintln(out, "Recent documents:")
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}

	for i, d := range docs {
		fmt.Fprintf(out, "%d. [%s] %s\n", i+1, strings.ToUpper(d.Status), d.Path)
		fmt.Fprintf(out, "   Run: %s\n", d.RunID)
		fmt.Fprintf(out, "   Time: %s\n", d.ProcessedAt.Format("2006-01-02 15:04:05"))
		if d.Objects > 0 {
			fmt.Fprintf(out, "   Objects: %d, remapped ids: %d\n", d.Objects, d.Remapped)
		}
		for name, n := range d.Fixups {
			fmt.Fprintf(out, "   Fixup %s: %d\n", name, n)
		}
		if d.Error != "" {
			fmt.Fprintf(out, "   Error: %s\n", strings.ReplaceAll(d.Error, "\n", "\n          "))
		}
		fmt.Fprintln(out)
	}
	return nil
}
