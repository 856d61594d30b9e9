package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"gt06gateway/internal/api/router"
	"gt06gateway/internal/broadcast"
	"gt06gateway/internal/cache"
	"gt06gateway/internal/config"
	"gt06gateway/internal/core/repository"
	"gt06gateway/internal/core/service"
	"gt06gateway/internal/logger"
	"gt06gateway/internal/protocol/gt06"
	"gt06gateway/internal/protocol/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Gateway stopped with error")
	}
	log.Info().Msg("Gateway stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log = log.With().Str("gateway_id", cfg.Server.GatewayID).Logger()

	devices, mongoClient, err := openRegistry(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	if mongoClient != nil {
		defer mongoClient.Disconnect(context.Background())
	}

	var positions repository.PositionRepository
	if cfg.Postgres.DSN != "" {
		db, err := openLocationStore(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		positions = repository.NewPostgresPositionRepository(db)
		log.Info().Msg("Location store ready")
	} else {
		log.Warn().Msg("DATABASE_URL not provided, location history disabled")
	}

	redisCache, err := cache.Connect(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer redisCache.Close()

	var queue server.CommandQueue
	if redisCache.Enabled() {
		queue = redisCache
	}

	var (
		nc  *nats.Conn
		bus service.Broadcaster
	)
	if cfg.NATS.URL != "" {
		nc, err = broadcast.Connect(cfg.NATS, log)
		if err != nil {
			return err
		}
		defer nc.Drain()
		bus = broadcast.NewPublisher(nc, cfg.NATS.SubjectPrefix, log)
	} else {
		log.Warn().Msg("NATS URL not provided, broadcast and command downlink disabled")
	}

	lookup := service.NewLastPositionLookup(redisCache, positions)
	tracking := service.NewTrackingService(devices, positions, redisCache, bus, log)

	srv := server.NewTCPServer(cfg.Server, gt06.NewDecoder(lookup, log), gt06.NewEncoder(), tracking, queue, log)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router.NewRouter(srv, lookup, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Ops HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if nc != nil {
		downlink := broadcast.NewCommandSubscriber(nc, srv, cfg.NATS.SubjectPrefix, log)
		g.Go(func() error {
			return downlink.Start(gctx)
		})
	}

	return g.Wait()
}

// openRegistry connects the Mongo device registry, or falls back to an empty
// in-memory registry when no URI is configured.
func openRegistry(ctx context.Context, cfg config.MongoConfig, log zerolog.Logger) (repository.DeviceRepository, *mongo.Client, error) {
	if cfg.URI == "" {
		log.Warn().Msg("MONGODB_URI not provided, using an empty in-memory device registry")
		return repository.NewInMemoryDeviceRepository(), nil, nil
	}

	client, db, err := config.ConnectMongoDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("database", cfg.Database).Msg("Device registry connected")
	return repository.NewMongoDeviceRepository(db), client, nil
}

func openLocationStore(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := repository.OpenPostgres(ctx, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	if err != nil {
		return nil, err
	}
	if err := repository.NewPostgresPositionRepository(db).EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure location schema: %w", err)
	}
	return db, nil
}
