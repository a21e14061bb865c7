package main

import (
	"fmt"
	"os"

	"github.com/kast-lang/playground/internal/common/config"
	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/engine/kast"
	"github.com/kast-lang/playground/internal/worker/protocol"
	"github.com/kast-lang/playground/internal/worker/spawner"
)

// newSpawner builds the worker spawner selected by worker.mode.
func newSpawner(cfg config.WorkerConfig, log *logger.Logger) (spawner.Spawner, error) {
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case config.WorkerModeInProcess:
		return &spawner.InProcess{NewEngine: kast.New, Codec: codec, Logger: log}, nil
	case config.WorkerModeProcess:
		command, err := workerCommand(cfg)
		if err != nil {
			return nil, err
		}
		return &spawner.Process{Command: command, Codec: codec, Logger: log}, nil
	default:
		return nil, fmt.Errorf("unknown worker mode %q", cfg.Mode)
	}
}

// workerCommand defaults to re-running this executable as "worker" with the
// configured codec.
func workerCommand(cfg config.WorkerConfig) ([]string, error) {
	if len(cfg.Command) > 0 {
		return cfg.Command, nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve worker executable: %w", err)
	}
	return []string{self, "worker", "--codec", codecName(cfg.Codec)}, nil
}

func codecName(name string) string {
	if name == "" {
		return "json"
	}
	return name
}
