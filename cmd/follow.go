package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/stixkit/internal/bus"
)

var followGroup string

// followCmd represents the follow command
var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print processed-document notifications from Redis as they arrive",
	Long: `Consume the stixkit:documents Redis stream and print one line per
processed document. Requires --redis or redis.url.

Example:
  stixkit follow --redis redis://localhost:6379`,
	RunE: runFollow,
}

func init() {
	rootCmd.AddCommand(followCmd)
	followCmd.Flags().StringVar(&followGroup, "group", "stixkit-follow", "Consumer group name")
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	logger, err := newLogger(cfg.Log.Level, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Redis.URL == "" {
		return errors.New("follow requires a Redis URL (--redis or redis.url)")
	}
	rb, err := bus.NewRedisBus(cfg.Redis.URL, logger)
	if err != nil {
		return err
	}
	defer rb.Close()

	host, _ := os.Hostname()
	consumer := fmt.Sprintf("%s-%d", host, os.Getpid())
	out := cmd.OutOrStdout()

	err = rb.ReadDocumentsStream(ctx, followGroup, consumer, func(_ context.Context, msg bus.DocumentMessage) error {
		fmt.Fprintln(out, formatDocumentMessage(msg))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func formatDocumentMessage(msg bus.DocumentMessage) string {
	ts := time.Unix(msg.Timestamp, 0).Format("15:04:05")
	line := fmt.Sprintf("%s %-9s %-8s %s", ts, msg.Command, msg.Status, msg.Path)
	if msg.Objects > 0 {
		line += fmt.Sprintf(" objects=%d remapped=%d", msg.Objects, msg.Remapped)
	}
	if msg.Error != "" {
		line += " error=" + fmt.Sprintf("%q", msg.Error)
	}
	return line
}
