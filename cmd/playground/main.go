// Package main is the playground binary: the coordinator server, the worker
// entry point used by process mode, and local run/check commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kast-lang/playground/internal/common/config"
	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/engine/kast"
)

var rootCmd = &cobra.Command{
	Use:           "playground",
	Short:         "Kast playground coordinator and worker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.Version = kast.Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)

	rootCmd.PersistentFlags().String("config", "", "directory searched first for config.yaml")

	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		os.Exit(exitCode(err))
	}
}

// exitError carries a process exit status without printing anything more.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitCode(err error) int {
	if e, ok := err.(*exitError); ok {
		return e.code
	}
	return 1
}

// bootstrap loads configuration and installs the process logger. Commands
// that own stdout force logging onto stderr.
func bootstrap(cmd *cobra.Command, forceStderr bool) (*config.Config, *logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithPath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cfg.Logging.OutputPath
	if forceStderr && (out == "" || out == "stdout") {
		out = "stderr"
	}
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: out,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)
	return cfg, log, nil
}
