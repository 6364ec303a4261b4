package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ozonelife/clinic/internal/config"
	"github.com/ozonelife/clinic/internal/domain/appointments"
	"github.com/ozonelife/clinic/internal/domain/catalog"
	"github.com/ozonelife/clinic/internal/domain/dashboard"
	"github.com/ozonelife/clinic/internal/domain/entities"
	"github.com/ozonelife/clinic/internal/domain/patients"
	"github.com/ozonelife/clinic/internal/domain/sales"
	"github.com/ozonelife/clinic/internal/platform/db"
	"github.com/ozonelife/clinic/internal/platform/events"
	"github.com/ozonelife/clinic/internal/platform/querycache"
	"github.com/ozonelife/clinic/internal/platform/sandbox"
	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/internal/platform/store/boltstore"
	"github.com/ozonelife/clinic/internal/platform/store/pgstore"
	"github.com/ozonelife/clinic/internal/platform/telemetry"
)

// app holds the storage backend and the domain services built on it. It is
// shared by the serve, seed and sweep commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics

	provider  store.Provider
	pool      *pgxpool.Pool
	cache     querycache.Cache
	publisher events.Publisher
	closers   []io.Closer

	catalog      *catalog.Catalog
	patients     *patients.Service
	appointments *appointments.Service
	sales        *sales.Service
	dashboard    *dashboard.Service
	registry     *entities.Registry
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: telemetry.NewMetrics()}
	if err := a.openBackend(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.openCache(ctx)
	a.openPublisher()
	if err := a.buildServices(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openBackend(ctx context.Context) error {
	switch a.cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      a.cfg.DatabaseURL,
			MaxConns: a.cfg.DBMaxConns,
			MinConns: a.cfg.DBMinConns,
		})
		if err != nil {
			return err
		}
		a.pool = pool
		a.provider = pgstore.New(pool)

		applied, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.logger.Info().Int("applied", applied).Msg("connected to postgres")
	default:
		bolt, err := boltstore.Open(a.cfg.BoltPath)
		if err != nil {
			return err
		}
		a.provider = bolt
		a.logger.Info().Str("path", bolt.Path()).Msg("opened bolt store")
	}
	return nil
}

// openCache uses Redis when configured and reachable, otherwise a process
// local cache.
func (a *app) openCache(ctx context.Context) {
	a.cache = querycache.NewMemory()
	if a.cfg.RedisURL == "" {
		return
	}
	rdb, err := querycache.NewRedis(a.cfg.RedisURL, a.cfg.CacheTTL)
	if err != nil {
		a.logger.Warn().Err(err).Msg("redis cache disabled")
		return
	}
	if err := rdb.Ping(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("redis unreachable, using in-memory cache")
		rdb.Close()
		return
	}
	a.cache = rdb
	a.closers = append(a.closers, rdb)
	a.logger.Info().Msg("query cache backed by redis")
}

func (a *app) openPublisher() {
	var sink events.Publisher = events.NewLogPublisher(a.logger)
	if brokers := events.SplitBrokers(a.cfg.KafkaBrokers); len(brokers) > 0 {
		sink = events.NewKafkaPublisher(brokers, a.cfg.KafkaTopic)
		a.logger.Info().Strs("brokers", brokers).Str("topic", a.cfg.KafkaTopic).Msg("publishing changes to kafka")
	}
	a.publisher = events.Multi(sink, events.PublisherFunc(func(_ context.Context, c events.Change) error {
		a.metrics.RecordChange(c.Collection, c.Op)
		return nil
	}))
}

// repository binds schema on the backend behind the query cache and change
// notifications.
func (a *app) repository(schema store.Schema) (store.EntityRepository, error) {
	base, err := a.provider.Repository(schema)
	if err != nil {
		return nil, err
	}
	cached := querycache.Wrap(base, a.cache, a.logger)
	return events.Wrap(cached, a.publisher, a.logger), nil
}

func (a *app) buildServices() error {
	repos := make(map[string]store.EntityRepository)
	for _, schema := range []store.Schema{
		catalog.ServiceSchema, catalog.ProductSchema, patients.Schema, appointments.Schema, sales.Schema,
	} {
		repo, err := a.repository(schema)
		if err != nil {
			return err
		}
		repos[schema.Collection] = repo
	}

	loc := a.cfg.Location()
	a.catalog = catalog.NewCatalog(repos[catalog.CollectionServices], repos[catalog.CollectionProducts])
	a.patients = patients.NewService(repos[patients.Collection])
	a.appointments = appointments.NewService(repos[appointments.Collection], a.patients, appointments.Options{
		Location: loc,
		Grace:    a.cfg.PendingGrace,
		OnSweep:  a.metrics.RecordSweep,
	})
	a.sales = sales.NewService(repos[sales.Collection], a.catalog, sales.Options{Location: loc})
	a.dashboard = dashboard.NewService(a.catalog, a.patients, a.appointments, a.sales)
	a.registry = entities.NewRegistry(
		a.catalog.Services(),
		a.catalog.Products(),
		a.patients.Repository(),
		a.appointments.Repository(),
		a.sales.Repository(),
	)
	return nil
}

// seedTargets are the rule-enforcing repositories demo data goes through.
func (a *app) seedTargets() sandbox.Targets {
	return sandbox.Targets{
		Services:     a.catalog.Services(),
		Products:     a.catalog.Products(),
		Patients:     a.patients.Repository(),
		Appointments: a.appointments.Repository(),
		Sales:        a.sales.Repository(),
	}
}

func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	return errors.Join(errs...)
}
