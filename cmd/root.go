package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/icco/pocketseq/internal/config"
)

var (
	configPath string
	debug      bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "pocketseq",
	Short: "A real-time multi-track step sequencer",
	Long: `pocketseq is a multi-track step sequencer with built-in synth, sampler, FM and
noise instruments.

Tracks, samples and tempo come from a YAML kit file (see "pocketseq config").
Patterns are stored as Standard MIDI Files, one track per MIDI channel.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "kit file (default: built-in kit)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger builds the process logger. Without a log file, quiet discards
// everything so logs cannot corrupt a full screen UI.
func initLogger(quiet bool) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f.Close
	case quiet:
		w = io.Discard
	}

	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log, closer, nil
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
