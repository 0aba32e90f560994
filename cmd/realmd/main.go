// Package main provides the realm server binary: the websocket-facing
// session and presence layer backed by a pluggable persistence gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/config"
	"github.com/openrealm/realmd/internal/frontend/ws"
	"github.com/openrealm/realmd/internal/game/world"
	"github.com/openrealm/realmd/internal/observability"
	"github.com/openrealm/realmd/internal/realmserver"
	"github.com/openrealm/realmd/internal/server"
	"github.com/openrealm/realmd/internal/storage"
	"github.com/openrealm/realmd/internal/storage/memory"
	"github.com/openrealm/realmd/internal/storage/postgres"
	"github.com/openrealm/realmd/internal/storage/redis"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	mapsDir := flag.String("maps", "", "path to map YAML files directory (overrides config)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting realm server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Backend),
	)

	// Load the map catalog
	dir := cfg.World.MapsDir
	if *mapsDir != "" {
		dir = *mapsDir
	}
	catalogStart := time.Now()
	catalog, err := world.LoadCatalogFromDir(dir)
	if err != nil {
		logger.Fatal("loading map catalog", zap.Error(err))
	}
	logger.Info("map catalog loaded",
		zap.Int("maps", catalog.Count()),
		zap.Int("default_map", catalog.DefaultMap().ID),
		zap.Duration("elapsed", time.Since(catalogStart)),
	)

	// Open the persistence gateway
	gateway, pool, err := openGateway(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("opening storage gateway", zap.Error(err))
	}

	core, err := realmserver.NewCore(ctx, gateway, catalog, cfg.Server, logger)
	if err != nil {
		logger.Fatal("initializing realm core", zap.Error(err))
	}

	acceptor := ws.NewAcceptor(cfg.Server, core, logger)

	// Wire lifecycle: storage stops last so disconnect cleanup triggered by
	// the acceptor stopping can still persist records.
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("storage", &server.FuncService{
		StartFn: func() error {
			if pool == nil {
				return nil
			}
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			if err := gateway.Close(); err != nil {
				logger.Warn("closing storage gateway", zap.Error(err))
			}
		},
	})

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("realm server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// openGateway builds the configured persistence gateway. The postgres pool
// is returned separately so the lifecycle can run its health loop.
func openGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Gateway, *postgres.Pool, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		return postgres.NewGateway(pool, logger), pool, nil
	case "redis":
		gw, err := redis.New(cfg.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Info("redis connected", zap.String("url", cfg.Redis.URL))
		return gw, nil, nil
	case "memory":
		logger.Warn("using in-memory storage, records will not survive a restart")
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
