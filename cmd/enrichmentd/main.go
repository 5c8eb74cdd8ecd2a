package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/richtraceroute/enrichmentd/internal/broker"
	"github.com/richtraceroute/enrichmentd/internal/config"
	"github.com/richtraceroute/enrichmentd/internal/consumer"
	"github.com/richtraceroute/enrichmentd/internal/dispatch"
	"github.com/richtraceroute/enrichmentd/internal/enrich"
	"github.com/richtraceroute/enrichmentd/internal/extsource"
	"github.com/richtraceroute/enrichmentd/internal/housekeeper"
	"github.com/richtraceroute/enrichmentd/internal/httpapi"
	"github.com/richtraceroute/enrichmentd/internal/ixp"
	"github.com/richtraceroute/enrichmentd/internal/iptrie"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
	"github.com/richtraceroute/enrichmentd/internal/notify"
	"github.com/richtraceroute/enrichmentd/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "migrate":
		runMigrate()
	case "ixp-update":
		runIXPUpdateOnce()
	case "housekeep":
		runHousekeepOnce()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: enrichmentd <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the consumers, schedulers, and HTTP server")
	fmt.Println("  migrate      Run database migrations")
	fmt.Println("  ixp-update   Run a single IXP networks refresh and exit")
	fmt.Println("  housekeep    Run a single retention sweep and exit")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}

func connectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Store, func()) {
	pool, err := store.NewPool(ctx, cfg.DSN(), cfg.DB.MaxConns, cfg.DB.MinConns, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	return store.New(pool, logger.Named("store")), func() { pool.Close() }
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting enrichmentd",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DSN(), cfg.DB.MaxConns, cfg.DB.MinConns, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	st := store.New(pool, logger.Named("store"))

	conn, err := broker.Dial(ctx, cfg.RabbitMQ.AMQPURL(), logger.Named("broker"))
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer conn.Close()

	// EnrichmentJobs are published by the (external, out of scope) web
	// submission front-end; this process only consumes them.
	ipInfoDispatcher, err := dispatch.NewIPInfoDispatcher(ctx, conn, logger.Named("dispatch.ipinfo"))
	if err != nil {
		logger.Fatal("failed to open ip-info dispatcher", zap.Error(err))
	}

	emitter, err := notify.NewEmitter(conn, logger.Named("notify"))
	if err != nil {
		logger.Fatal("failed to open notification channel", zap.Error(err))
	}

	ripestatClient := extsource.NewRIPEStatClient(logger.Named("extsource.ripestat"))
	resolver := enrich.NewResolver(nil, logger.Named("enrich.dns"))

	for wi := 0; wi < cfg.Workers.Consumers; wi++ {
		trie := iptrie.New()
		enrichers := make([]*enrich.Enricher, 0, cfg.Workers.Enrichers)
		for ei := 0; ei < cfg.Workers.Enrichers; ei++ {
			name := fmt.Sprintf("consumer-%d.enricher-%d", wi, ei)
			e := enrich.New(name, trie, resolver, ripestatClient, st, ipInfoDispatcher, emitter, logger.Named("enrich").Named(name))
			enrichers = append(enrichers, e)
		}

		w, err := consumer.NewWorker(fmt.Sprintf("consumer-%d", wi), conn, enrichers, logger.Named("consumer"))
		if err != nil {
			logger.Fatal("failed to start consumer", zap.Int("consumer", wi), zap.Error(err))
		}

		go func(w *consumer.Worker) {
			if err := w.Run(ctx); err != nil {
				logger.Error("consumer stopped", zap.Error(err))
			}
		}(w)
	}

	peeringdbClient := extsource.NewPeeringDBClient(logger.Named("extsource.peeringdb"))
	ixpUpdater := ixp.New(peeringdbClient, st, ipInfoDispatcher, logger.Named("ixp"))
	go ixpUpdater.Run(ctx)

	hk := housekeeper.New(st, logger.Named("housekeeper"))
	go hk.Run(ctx)

	httpServer := httpapi.NewServer(cfg.Service.HTTPListen, pool, conn, logger.Named("httpapi"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("enrichmentd started",
		zap.Int("consumers", cfg.Workers.Consumers),
		zap.Int("enrichers_per_consumer", cfg.Workers.Enrichers),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	logger.Info("enrichmentd stopped")
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	logger.Info("running migrations")

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DSN(), cfg.DB.MaxConns, cfg.DB.MinConns, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := store.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func runIXPUpdateOnce() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	ctx := context.Background()
	st, closePool := connectStore(ctx, cfg, logger)
	defer closePool()

	conn, err := broker.Dial(ctx, cfg.RabbitMQ.AMQPURL(), logger.Named("broker"))
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer conn.Close()

	ipInfoDispatcher, err := dispatch.NewIPInfoDispatcher(ctx, conn, logger.Named("dispatch.ipinfo"))
	if err != nil {
		logger.Fatal("failed to open ip-info dispatcher", zap.Error(err))
	}

	peeringdbClient := extsource.NewPeeringDBClient(logger.Named("extsource.peeringdb"))
	updater := ixp.New(peeringdbClient, st, ipInfoDispatcher, logger.Named("ixp"))

	if err := updater.Update(ctx); err != nil {
		logger.Fatal("ixp update failed", zap.Error(err))
	}

	// Give the dispatcher's 1s publish ticker a chance to drain before exit.
	time.Sleep(2 * time.Second)
	logger.Info("ixp update complete")
}

func runHousekeepOnce() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	ctx := context.Background()
	st, closePool := connectStore(ctx, cfg, logger)
	defer closePool()

	hk := housekeeper.New(st, logger.Named("housekeeper"))
	hk.Sweep(ctx)

	logger.Info("housekeeper sweep complete")
}
