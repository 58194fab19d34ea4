package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	cfgPath  string
)

var rootCmd = &cobra.Command{
	Use:   "ratefit",
	Short: "Calibrate a growth-rate constant by implicit filtering",
	Long: `RateFit recovers the rate constant of a linear growth model by
minimizing the squared error between a simulated trajectory and its
closed-form target, using derivative-free implicit filtering (with a
mayfly swarm available as a baseline backend).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
}

// setupLogging configures the default slog handler. Logs go to stderr
// as JSON; the default level is warn so the iteration table stays
// readable.
func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file")
}
