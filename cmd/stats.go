package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/stixkit/internal/stats"
	"github.com/Ashfaaq98/stixkit/internal/ui"
)

var (
	statsDir      string
	statsFormat   string
	statsTUI      bool
	statsForceTUI bool
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count STIX object types across a directory",
	Long: `Count object types in every .json file directly under a directory.

Custom x- types are not counted. The report lists totals, the official STIX
types that never appear, a per-file breakdown and any unreadable files.

Examples:
  stixkit stats --dir ./bundles
  stixkit stats --dir ./bundles --format yaml
  stixkit stats --dir ./bundles --tui`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsDir, "dir", "", "Directory containing STIX documents (required)")
	statsCmd.MarkFlagRequired("dir")
	statsCmd.Flags().StringVar(&statsFormat, "format", "text", "Output format: text, yaml, json")
	statsCmd.Flags().BoolVar(&statsTUI, "tui", false, "Browse the report in a terminal viewer")
	statsCmd.Flags().BoolVar(&statsForceTUI, "force-tui", false, "Open the viewer even if the terminal looks unsuitable")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	logger, err := newLogger(cfg.Log.Level, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rep, err := stats.Collect(ctx, statsDir, logger)
	if err != nil {
		return fmt.Errorf("stats error: %w", err)
	}

	if statsTUI {
		if tuiUsable(statsForceTUI) {
			return showModel(ctx, ui.StatsModel(rep), cfg)
		}
		logger.Warn("terminal too small or not a terminal, printing text report")
	}
	return rep.Render(cmd.OutOrStdout(), statsFormat)
}
