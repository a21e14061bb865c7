package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kast-lang/playground/internal/common/config"
	"github.com/kast-lang/playground/internal/common/logger"
	"github.com/kast-lang/playground/internal/common/tracing"
	"github.com/kast-lang/playground/internal/engine/kast"
	"github.com/kast-lang/playground/internal/events"
	gateway "github.com/kast-lang/playground/internal/gateway/websocket"
	"github.com/kast-lang/playground/internal/share"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator: editor websocket gateway and share relay",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap(cmd, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing.Configure(tracing.Options{
		Role:          "coordinator",
		EngineVersion: kast.Version,
		WorkerMode:    cfg.Worker.Mode,
		Codec:         codecName(cfg.Worker.Codec),
	})
	log.Info("starting kast playground",
		zap.String("worker_mode", cfg.Worker.Mode),
		zap.String("codec", codecName(cfg.Worker.Codec)))

	eventBus, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer closeBus()

	workers, err := newSpawner(cfg.Worker, log)
	if err != nil {
		return err
	}

	shares, closeShares, err := newShareService(cfg.Share, log)
	if err != nil {
		return err
	}
	defer closeShares()

	gw := gateway.NewGateway(gateway.WorkspaceConfig{
		Analysis:         workers,
		Runs:             workers,
		HandshakeTimeout: cfg.Worker.HandshakeTimeoutDuration(),
		Bus:              eventBus,
	}, log)

	router := newRouter(cfg, gw, share.NewHandlers(shares))
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", server.Addr), zap.String("websocket", "/ws"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown error", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info("kast playground stopped")
	return err
}

func newRouter(cfg *config.Config, gw *gateway.Gateway, shares *share.Handlers) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	gw.SetupRoutes(router)
	shares.RegisterRoutes(router)
	return router
}

// newShareService opens the share history and, when a token is configured,
// the gist client.
func newShareService(cfg config.ShareConfig, log *logger.Logger) (*share.Service, func(), error) {
	store, err := share.OpenStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close share store", zap.Error(err))
		}
	}

	var client share.GistClient
	if cfg.Enabled() {
		client = share.NewPATClient(cfg.GitHubToken, cfg.APIBase, cfg.Description)
	} else {
		log.Warn("no GitHub token configured; sharing is disabled")
	}
	return share.NewService(client, store, cfg.DefaultFilename, log), closeStore, nil
}

// corsMiddleware lets the editor page call the relay from another origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version, Sec-WebSocket-Protocol")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
