package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/stixkit/internal/bus"
	"github.com/Ashfaaq98/stixkit/internal/store"
	"github.com/Ashfaaq98/stixkit/internal/ui"
	"github.com/Ashfaaq98/stixkit/internal/validate"
)

var (
	validateDir      string
	validateFormat   string
	validateTUI      bool
	validateForceTUI bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate STIX 2.1 documents against the structural schema",
	Long: `Walk a directory tree and validate every .json file against the embedded
STIX 2.1 structural schema. Files are classified as valid, invalid, or as
processing errors when they cannot be read or parsed.

Examples:
  stixkit validate --dir ./bundles
  stixkit validate --dir ./bundles --format json
  stixkit validate --dir ./bundles --tui`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateDir, "dir", "", "Root directory to walk (required)")
	validateCmd.MarkFlagRequired("dir")
	validateCmd.Flags().StringVar(&validateFormat, "format", "text", "Output format: text, yaml, json")
	validateCmd.Flags().BoolVar(&validateTUI, "tui", false, "Browse the results in a terminal viewer")
	validateCmd.Flags().BoolVar(&validateForceTUI, "force-tui", false, "Open the viewer even if the terminal looks unsuitable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	logger, err := newLogger(cfg.Log.Level, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	notify := bus.NewBus(cfg.Redis.URL, logger)
	defer notify.Close()

	v, err := validate.New(st, notify, logger)
	if err != nil {
		return err
	}
	rep, err := v.ValidateDir(ctx, validateDir)
	if err != nil {
		return fmt.Errorf("validate error: %w", err)
	}

	if validateTUI {
		if tuiUsable(validateForceTUI) {
			return showModel(ctx, ui.ValidationModel(rep), cfg)
		}
		logger.Warn("terminal too small or not a terminal, printing text report")
	}
	return rep.Render(cmd.OutOrStdout(), validateFormat)
}
