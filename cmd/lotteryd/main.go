package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/gelotto/lottery-engine/internal/config"
	"github.com/gelotto/lottery-engine/internal/engine"
	"github.com/gelotto/lottery-engine/internal/events"
	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/common/logger"
	"github.com/gelotto/lottery-engine/pkg/infra"
	"github.com/gelotto/lottery-engine/pkg/kvstore"
	"github.com/gelotto/lottery-engine/pkg/retry"
)

const version = "0.3.0"

func main() {
	var configPath string
	var debug bool

	root := &cobra.Command{
		Use:   "lotteryd",
		Short: "Lottery settlement engine",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logs")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the settlement engine with its HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, debug)
		},
	}
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Failed to load config", "err", err)
		return err
	}
	logger.Info("Config loaded", "game", cfg.Game.ID)

	kv, err := kvstore.NewBadgerStore(cfg.KVStore.Badger.Directory, cfg.KVStore.Badger.Prefix, infra.JSON)
	if err != nil {
		logger.Error("Failed to open kvstore", "err", err)
		return err
	}
	defer kv.Close()

	var emitter events.Emitter = events.NopEmitter{}
	if cfg.NATS.URL != "" {
		var conn *nats.Conn
		err := retry.Exponential(func() error {
			var connErr error
			conn, connErr = infra.GetNATSConnection(cfg.NATS.URL)
			return connErr
		}, retry.ExponentialConfig{
			InitialInterval: time.Second,
			MaxElapsedTime:  30 * time.Second,
			OnRetry: func(err error, next time.Duration) {
				logger.Warn("NATS connect failed, retrying", "err", err, "next", next)
			},
		})
		if err != nil {
			logger.Error("Failed to connect to NATS", "err", err)
			return err
		}
		subject := cfg.NATS.Subject
		if subject == "" {
			subject = "lottery.registry"
		}
		emitter = events.NewEmitter(conn, subject)
	}
	defer emitter.Close()

	clock := clockwork.NewRealClock()
	eng := engine.New(kv, cfg.Game.ID, cfg.Game.ContractAddress, logger.L())

	if err := ensureGame(eng, cfg, clock); err != nil {
		logger.Error("Failed to instantiate game", "err", err)
		return err
	}

	handler := NewHTTPHandler(eng, emitter, clock, version)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := cfg.HTTP.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("HTTP surface listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// ensureGame instantiates the singleton game on first boot; restarts find
// it already persisted.
func ensureGame(eng *engine.Engine, cfg *config.Config, clock clockwork.Clock) error {
	_, err := eng.Game()
	if err == nil {
		logger.Info("Game already instantiated", "game", cfg.Game.ID)
		return nil
	}
	if !errors.Is(err, game.ErrGameNotFound) {
		return err
	}

	params, err := cfg.Game.Params()
	if err != nil {
		return err
	}
	now := clock.Now()
	_, err = eng.Instantiate(engine.TxContext{
		Sender:      cfg.Game.Owner,
		BlockHeight: hostHeight(now),
		BlockTime:   now,
	}, params)
	return err
}

// hostHeight is this standalone host's block-height analogue: the clock's
// unix second. Monotonic for the purposes of seeding and the same-block
// suspicion check.
func hostHeight(t time.Time) uint64 {
	return uint64(t.Unix())
}
