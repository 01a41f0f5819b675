package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/cache"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/config"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/logger"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging/kafka"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging/watermill"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/metrics"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository/gormstore"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository/memory"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository/postgres"
)

// app holds what every subcommand needs: configuration, logging, metrics and
// the resources to release on exit.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	channel *watermill.Channel
	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newApp(overrides ...config.Override) (*app, error) {
	cfg, err := config.Load(configPath, overrides...)
	if err != nil {
		return nil, err
	}
	l, logCloser, err := logger.Init(cfg.Log.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{cfg: cfg, logger: l.With("service", cfg.Service), metrics: metrics.New(reg)}
	a.onClose(logCloser)
	return a, nil
}

func (a *app) onClose(c io.Closer) {
	a.closers = append(a.closers, c)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) pool() postgres.PoolConfig {
	return postgres.PoolConfig{
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	}
}

// openCatalog returns the writer store and, where the driver supports it,
// the outbox over the same database.
func (a *app) openCatalog(ctx context.Context) (repository.CatalogRepository, repository.OutboxRepository, error) {
	db := a.cfg.Database
	switch db.Driver {
	case config.DriverMemory:
		store := memory.NewCatalogStore()
		return store, store, nil
	case config.DriverPostgres, config.DriverPgx:
		sqlDB, err := postgres.Open(ctx, db.Driver, db.DSN, a.pool())
		if err != nil {
			return nil, nil, err
		}
		a.onClose(sqlDB)
		if err := postgres.Migrate(ctx, sqlDB, postgres.CatalogSchema, postgres.OutboxSchema); err != nil {
			return nil, nil, err
		}
		return postgres.NewCatalogRepository(sqlDB), postgres.NewOutboxRepository(sqlDB), nil
	case config.DriverMySQL:
		gdb, err := gormstore.Open(ctx, db.DSN, gormstore.PoolConfig(a.pool()), a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(closerFunc(func() error { return gormstore.Close(gdb) }))
		if err := gormstore.MigrateCatalog(ctx, gdb); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate catalog: %w", err)
		}
		return gormstore.NewCatalogRepository(gdb), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", db.Driver)
}

func (a *app) openProjection(ctx context.Context) (repository.ProjectionRepository, error) {
	db := a.cfg.Database
	var repo repository.ProjectionRepository
	switch db.Driver {
	case config.DriverMemory:
		repo = memory.NewProjectionStore()
	case config.DriverPostgres, config.DriverPgx:
		sqlDB, err := postgres.Open(ctx, db.Driver, db.DSN, a.pool())
		if err != nil {
			return nil, err
		}
		a.onClose(sqlDB)
		if err := postgres.Migrate(ctx, sqlDB, postgres.ProjectionSchema); err != nil {
			return nil, err
		}
		repo = postgres.NewProjectionRepository(sqlDB)
	case config.DriverMySQL:
		gdb, err := gormstore.Open(ctx, db.DSN, gormstore.PoolConfig(a.pool()), a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose(closerFunc(func() error { return gormstore.Close(gdb) }))
		if err := gormstore.MigrateProjection(ctx, gdb); err != nil {
			return nil, fmt.Errorf("failed to migrate projection: %w", err)
		}
		repo = gormstore.NewProjectionRepository(gdb)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}

	if a.cfg.Redis.Addr == "" {
		return repo, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.onClose(client)
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("Redis unreachable, reads fall through to the store", "addr", a.cfg.Redis.Addr, "err", err)
	}
	return cache.NewProjectionCache(repo, client, cache.WithTTL(a.cfg.Redis.TTL), cache.WithLogger(a.logger)), nil
}

func (a *app) inProcessChannel() *watermill.Channel {
	if a.channel == nil {
		a.channel = watermill.NewChannel(a.logger)
		a.onClose(a.channel)
	}
	return a.channel
}

func (a *app) newPublisher() (messaging.Publisher, error) {
	k := a.cfg.Kafka
	var (
		pub messaging.Publisher
		err error
	)
	switch k.Client {
	case config.ClientKafkaGo:
		pub, err = kafka.NewPublisher(kafka.Config{Brokers: k.Brokers, Logger: a.logger})
	case config.ClientWatermill:
		pub, err = watermill.NewKafkaPublisher(watermill.KafkaConfig{Brokers: k.Brokers, Logger: a.logger})
	case config.ClientGoChannel:
		// The channel is closed with the app, not with the publisher.
		return a.inProcessChannel().Publisher(), nil
	default:
		return nil, fmt.Errorf("unsupported kafka client %q", k.Client)
	}
	if err != nil {
		return nil, err
	}
	a.onClose(pub)
	return pub, nil
}

func (a *app) newSubscriber() (messaging.Subscriber, error) {
	k := a.cfg.Kafka
	switch k.Client {
	case config.ClientKafkaGo:
		return kafka.NewSubscriber(kafka.Config{Brokers: k.Brokers, GroupID: k.GroupID, Logger: a.logger})
	case config.ClientWatermill:
		return watermill.NewKafkaSubscriber(watermill.KafkaConfig{Brokers: k.Brokers, GroupID: k.GroupID, Logger: a.logger})
	case config.ClientGoChannel:
		return a.inProcessChannel().Subscriber(), nil
	}
	return nil, fmt.Errorf("unsupported kafka client %q", k.Client)
}

// serve runs an HTTP server until ctx is done.
func serve(ctx context.Context, logger *slog.Logger, name, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "server", name, "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s HTTP server: %w", name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down %s HTTP server: %w", name, err)
	}
	return nil
}

// runAll runs each fn until one fails or ctx is cancelled, then cancels the
// rest and waits for them. The first error wins.
func runAll(ctx context.Context, fns ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(fns))
	for _, fn := range fns {
		go func() { errCh <- fn(ctx) }()
	}

	var first error
	for range fns {
		if err := <-errCh; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}
