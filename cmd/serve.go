package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/stixkit/internal/api"
	"github.com/Ashfaaq98/stixkit/internal/bus"
	"github.com/Ashfaaq98/stixkit/internal/validate"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fix pipeline and validator over HTTP",
	Long: `Start an HTTP server that runs single documents through the same
pipeline as the fix command, without touching the filesystem.

Endpoints:
  POST /v1/fix       body is a STIX document, response is the fixed document
  POST /v1/validate  body is a STIX document, response lists schema errors
  GET  /healthz

The server runs until interrupted (Ctrl+C).

Examples:
  # Local only, no auth
  stixkit serve

  # Require a bearer token and limit to 5 requests per second
  stixkit serve --bind 0.0.0.0:8081 --token s3cret --rps 5

  # Keep identity ids stable for every request
  stixkit serve --exempt-type identity`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind", "127.0.0.1:8081", "Bind address for the HTTP server")
	serveCmd.Flags().String("token", "", "Bearer token required on every request (optional)")
	serveCmd.Flags().Int("rps", 10, "Max requests per second (0 disables rate limiting)")
	serveCmd.Flags().Int("burst", 20, "Burst size for the rate limiter")
	serveCmd.Flags().Int64("max-body", 10*1024*1024, "Maximum request body size in bytes")
	serveCmd.Flags().StringSlice("remove-field", nil, "Top-level key to delete from every object (repeatable)")
	serveCmd.Flags().StringSlice("exempt-type", nil, "Object type whose identifiers are kept (repeatable)")

	viper.BindPFlag("serve.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("serve.token", serveCmd.Flags().Lookup("token"))
	viper.BindPFlag("serve.rps", serveCmd.Flags().Lookup("rps"))
	viper.BindPFlag("serve.burst", serveCmd.Flags().Lookup("burst"))
	viper.BindPFlag("serve.max_body_bytes", serveCmd.Flags().Lookup("max-body"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	// serve shares the fix.* keys but has its own flags for them
	if f := cmd.Flags().Lookup("remove-field"); f.Changed {
		cfg.Fix.RemoveFields, _ = cmd.Flags().GetStringSlice("remove-field")
	}
	if f := cmd.Flags().Lookup("exempt-type"); f.Changed {
		cfg.Fix.ExemptTypes, _ = cmd.Flags().GetStringSlice("exempt-type")
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

	notify := bus.NewBus(cfg.Redis.URL, logger)
	defer notify.Close()

	v, err := validate.New(nil, notify, logger)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Options{
		Bind:         cfg.Serve.Bind,
		Token:        cfg.Serve.Token,
		RPS:          cfg.Serve.RPS,
		Burst:        cfg.Serve.Burst,
		MaxBodyBytes: cfg.Serve.MaxBodyBytes,
		Pipeline:     pipeline,
		Validator:    v,
		Bus:          notify,
		Logger:       logger,
	})
	addr, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", addr)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
