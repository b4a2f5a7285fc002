package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Ashfaaq98/stixkit/internal/batch"
	"github.com/Ashfaaq98/stixkit/internal/bus"
	"github.com/Ashfaaq98/stixkit/internal/remap"
	"github.com/Ashfaaq98/stixkit/internal/stix"
	"github.com/Ashfaaq98/stixkit/internal/store"
)

var (
	fixWatch  bool
	fixDryRun bool
)

// fixCmd represents the fix command
var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Apply fixups and regenerate identifiers for every document in a directory",
	Long: `Rewrite every matching STIX document in a directory in place.

Each document gets, in order: TLP:CLEAR markings replaced by TLP:WHITE,
relationship stop_time repaired, CVE external references normalized, URLs
sanitized, optional fields removed, and finally fresh identifiers for every
object except marking definitions, with all references rewritten.

Examples:
  # One-shot over a directory
  stixkit fix --dir ./bundles

  # Four workers, keep watching for new or changed files
  stixkit fix --dir ./bundles --workers 4 --watch

  # Drop OpenCTI ids and keep identity ids stable
  stixkit fix --dir ./bundles --remove-field x_opencti_id --exempt-type identity

  # Show what would change without writing
  stixkit fix --dir ./bundles --dry-run --log-level debug`,
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)

	fixCmd.Flags().String("dir", "", "Directory containing STIX documents (required unless fix.dir is configured)")
	fixCmd.Flags().StringSlice("pattern", []string{"*.json"}, "Glob patterns for document names, matched case-sensitively")
	fixCmd.Flags().Int("workers", 1, "Number of documents processed in parallel")
	fixCmd.Flags().StringSlice("remove-field", nil, "Top-level key to delete from every object (repeatable)")
	fixCmd.Flags().StringSlice("exempt-type", nil, "Object type whose identifiers are kept (repeatable); any x- type exempts all custom types")
	fixCmd.Flags().Int("max-depth", remap.DefaultMaxDepth, "Maximum nesting depth walked when rewriting references")
	fixCmd.Flags().BoolVar(&fixWatch, "watch", false, "Keep watching the directory and reprocess changed files")
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "Process documents but do not write them back")

	viper.BindPFlag("fix.dir", fixCmd.Flags().Lookup("dir"))
	viper.BindPFlag("fix.patterns", fixCmd.Flags().Lookup("pattern"))
	viper.BindPFlag("fix.workers", fixCmd.Flags().Lookup("workers"))
	viper.BindPFlag("fix.remove_fields", fixCmd.Flags().Lookup("remove-field"))
	viper.BindPFlag("fix.exempt_types", fixCmd.Flags().Lookup("exempt-type"))
	viper.BindPFlag("fix.max_depth", fixCmd.Flags().Lookup("max-depth"))
}

// parseExemptKinds maps configured type names onto kinds, rejecting names
// that are neither a known STIX type nor a custom x- type.
func parseExemptKinds(types []string) ([]stix.Kind, error) {
	var kinds []stix.Kind
	for _, t := range types {
		k := stix.KindOf(t)
		if k == stix.KindUnknown {
			return nil, fmt.Errorf("unknown STIX type %q for --exempt-type", t)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// pipelineFromConfig builds the per-document pipeline shared by fix and serve.
func pipelineFromConfig(fc FixConfig) (batch.Pipeline, error) {
	exempt, err := parseExemptKinds(fc.ExemptTypes)
	if err != nil {
		return batch.Pipeline{}, err
	}
	return batch.DefaultPipeline(fc.RemoveFields, remap.Options{
		Exempt:   exempt,
		MaxDepth: fc.MaxDepth,
	}), nil
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	if cfg.Fix.Dir == "" {
		return errors.New("--dir is required")
	}
	pipeline, err := pipelineFromConfig(cfg.Fix)
	if err != nil {
		return err
	}

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

	opts := batch.Options{
		Dir:      cfg.Fix.Dir,
		Patterns: cfg.Fix.Patterns,
		Watch:    fixWatch,
		Workers:  cfg.Fix.Workers,
		DryRun:   fixDryRun,
		Pipeline: pipeline,
		Logger:   logger,
		Progress: batch.NewLogProgress(logger),
	}

	logger.Info("starting fix",
		zap.String("dir", opts.Dir),
		zap.Strings("patterns", opts.Patterns),
		zap.Int("workers", opts.Workers),
		zap.Bool("watch", opts.Watch),
		zap.Bool("dry_run", opts.DryRun))

	sum, err := batch.NewProcessor(st, notify, opts).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("fix error: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d documents: %d fixed, %d unchanged, %d failed\n",
		sum.Processed, sum.Fixed, sum.Unchanged, sum.Failed)
	if fixDryRun {
		fmt.Fprintln(out, "Dry run: no files were written.")
	}
	for _, derr := range sum.Errors {
		fmt.Fprintf(out, "  failed: %v\n", derr)
	}
	if sum.RunID != "" {
		fmt.Fprintf(out, "Run ID: %s\n", sum.RunID)
	}
	return nil
}
