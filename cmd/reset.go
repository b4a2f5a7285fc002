package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/stixkit/internal/bus"
)

var (
	confirmReset bool
	resetRedis   bool
	resetDB      bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the run history and/or the Redis notification stream",
	Long: `Reset removes the SQLite run history and deletes the stixkit:documents
Redis stream. Documents on disk are never touched.

By default both are reset. Use --redis-only or --db-only to pick one.

Examples:
  # Reset both (asks for confirmation)
  stixkit reset

  # Reset with automatic confirmation
  stixkit reset --yes

  # Only the run history
  stixkit reset --db-only`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetRedis, "redis-only", false, "Reset only the Redis stream")
	resetCmd.Flags().BoolVar(&resetDB, "db-only", false, "Reset only the run history database")
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	doRedis, doDB := resetRedis, resetDB
	if !doRedis && !doDB {
		doRedis, doDB = true, true
	}
	if doRedis && cfg.Redis.URL == "" {
		if !doDB {
			return fmt.Errorf("no Redis URL configured (--redis or redis.url)")
		}
		doRedis = false
	}

	var targets []string
	if doRedis {
		targets = append(targets, "Redis notification stream")
	}
	if doDB {
		targets = append(targets, "run history database")
	}
	fmt.Fprintf(out, "This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset && !confirm(cmd.InOrStdin(), out, "Are you sure you want to continue? (y/N): ") {
		fmt.Fprintln(out, "Reset operation cancelled.")
		return nil
	}

	if doRedis {
		if err := resetRedisStream(ctx, cfg.Redis.URL); err != nil {
			if !doDB {
				return fmt.Errorf("failed to reset Redis stream: %w", err)
			}
			fmt.Fprintf(out, "Warning: failed to reset Redis stream: %v\n", err)
		} else {
			fmt.Fprintln(out, "✓ Redis stream cleared")
		}
	}

	if doDB {
		removed, err := resetDatabase(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		if len(removed) == 0 {
			fmt.Fprintln(out, "No database files found to remove")
		} else {
			fmt.Fprintf(out, "✓ Removed database files: %s\n", strings.Join(removed, ", "))
		}
	}

	fmt.Fprintln(out, "Reset operation completed successfully!")
	return nil
}

func resetRedisStream(ctx context.Context, url string) error {
	rb, err := bus.NewRedisBus(url, nil)
	if err != nil {
		return err
	}
	defer rb.Close()
	return rb.Clear(ctx)
}

// resetDatabase removes the SQLite file and its WAL companions.
func resetDatabase(dbPath string) ([]string, error) {
	var removed []string
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := os.Remove(file); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", file, err)
		}
		removed = append(removed, filepath.Base(file))
	}
	return removed, nil
}
