package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kast-lang/playground/internal/common/tracing"
	"github.com/kast-lang/playground/internal/engine/kast"
	"github.com/kast-lang/playground/internal/worker/host"
	"github.com/kast-lang/playground/internal/worker/protocol"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve one coordinator on stdin/stdout (started by process mode)",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().String("codec", "json", "frame encoding (json|msgpack)")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	// stdout carries frames
	_, log, err := bootstrap(cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	name, _ := cmd.Flags().GetString("codec")
	codec, err := protocol.CodecByName(name)
	if err != nil {
		return err
	}

	tracing.Configure(tracing.Options{Role: "worker", EngineVersion: kast.Version, Codec: name})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Debug("worker starting", zap.String("codec", name), zap.String("engine", kast.Version))
	return host.Serve(ctx, host.Stdio(), codec, kast.New(), log)
}
