package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	dbPath   string
	redisURL string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stixkit",
	Short: "Batch fixer and identifier remapper for STIX 2.1 documents",
	Long: `stixkit rewrites directories of STIX 2.1 JSON documents so they can be
re-imported cleanly: every object gets a fresh identifier, every reference to
it is rewritten, and a set of fixups is applied on the way.

Features:
- Two-phase identifier remapping with deep reference rewriting
- TLP:CLEAR, relationship time, CVE reference and URL fixups
- Watch mode with atomic in-place rewrites
- Type statistics and structural schema validation
- SQLite run history and optional Redis Streams notifications`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stixkit.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/stixkit.db", "SQLite run history path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis connection URL for notifications (empty disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory and cwd with name ".stixkit" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stixkit")
	}

	viper.SetEnvPrefix("STIXKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("database.path", "./data/stixkit.db")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("fix.workers", 1)
	viper.SetDefault("fix.patterns", []string{"*.json"})
	viper.SetDefault("fix.max_depth", 1000)
	viper.SetDefault("ui.theme", "dark")
	viper.SetDefault("serve.bind", "127.0.0.1:8081")
	viper.SetDefault("serve.rps", 10)
	viper.SetDefault("serve.burst", 20)
	viper.SetDefault("serve.max_body_bytes", 10*1024*1024)
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
		Fix: FixConfig{
			Dir:          viper.GetString("fix.dir"),
			Workers:      viper.GetInt("fix.workers"),
			Patterns:     viper.GetStringSlice("fix.patterns"),
			RemoveFields: viper.GetStringSlice("fix.remove_fields"),
			ExemptTypes:  viper.GetStringSlice("fix.exempt_types"),
			MaxDepth:     viper.GetInt("fix.max_depth"),
		},
		UI: UIConfig{
			Theme: viper.GetString("ui.theme"),
		},
		Serve: ServeConfig{
			Bind:         viper.GetString("serve.bind"),
			Token:        viper.GetString("serve.token"),
			RPS:          viper.GetInt("serve.rps"),
			Burst:        viper.GetInt("serve.burst"),
			MaxBodyBytes: viper.GetInt64("serve.max_body_bytes"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Fix      FixConfig      `mapstructure:"fix"`
	UI       UIConfig       `mapstructure:"ui"`
	Serve    ServeConfig    `mapstructure:"serve"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type FixConfig struct {
	Dir          string   `mapstructure:"dir"`
	Workers      int      `mapstructure:"workers"`
	Patterns     []string `mapstructure:"patterns"`
	RemoveFields []string `mapstructure:"remove_fields"`
	ExemptTypes  []string `mapstructure:"exempt_types"`
	MaxDepth     int      `mapstructure:"max_depth"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

type ServeConfig struct {
	Bind         string `mapstructure:"bind"`
	Token        string `mapstructure:"token"`
	RPS          int    `mapstructure:"rps"`
	Burst        int    `mapstructure:"burst"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}
