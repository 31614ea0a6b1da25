package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maxsxu/settings-repository-plus/internal/settings/config"
	"github.com/maxsxu/settings-repository-plus/internal/version"
)

var (
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "setsyncd",
	Short:   "Synchronize structured settings against a remote git repository",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if envPath := os.Getenv("SETSYNC_CONFIG_PATH"); envPath != "" && !cmd.Flag("config").Changed {
		path = envPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Credentials may come from the environment instead of the config file.
	env := viper.New()
	env.SetEnvPrefix("SETSYNC")
	env.AutomaticEnv()
	if username := env.GetString("username"); username != "" {
		cfg.Username = username
	}
	if token := env.GetString("token"); token != "" {
		cfg.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

func showHeader() {
	fmt.Fprintf(os.Stderr, "%s %s\n", cyan(version.AppName), green(version.Short()))
}

func main() {
	cobra.OnInitialize(func() {
		debug, _ := rootCmd.PersistentFlags().GetBool("debug")
		setupLogging(debug)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
