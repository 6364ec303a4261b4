package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ozonelife/clinic/internal/config"
	"github.com/ozonelife/clinic/internal/platform/auth"
	"github.com/ozonelife/clinic/internal/platform/db"
	"github.com/ozonelife/clinic/internal/platform/jobs"
	"github.com/ozonelife/clinic/internal/platform/logging"
	"github.com/ozonelife/clinic/internal/platform/sandbox"
	"github.com/ozonelife/clinic/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Ozone therapy clinic back-office API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, zerolog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.IsDev(),
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	return cfg, logger, func() { closer.Close() }, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	openMigrator := func(ctx context.Context) (*db.Migrator, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if cfg.StoreBackend != config.BackendPostgres {
			return nil, nil, fmt.Errorf("migrations apply to STORE_BACKEND=%s only", config.BackendPostgres)
		}
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
		if err != nil {
			return nil, nil, err
		}
		return db.NewMigrator(pool, db.Migrations()), pool.Close, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, done, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer done()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, done, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer done()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default catalog, and optionally demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			demo, _ := cmd.Flags().GetInt("demo")
			seed, _ := cmd.Flags().GetInt64("seed")

			cfg, logger, done, err := setup()
			if err != nil {
				return err
			}
			defer done()

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")

			res, err := a.catalog.Seed(ctx)
			if err != nil {
				return err
			}
			if err := out.Encode(res); err != nil {
				return err
			}
			if demo <= 0 {
				return nil
			}

			sc := sandbox.DefaultSeedConfig()
			sc.Patients = demo
			sc.Sales = demo * 3 / 2
			sc.Seed = seed
			result, err := sandbox.NewSeeder(sc, a.seedTargets(), nil).Run(ctx)
			if err != nil {
				return err
			}
			return out.Encode(result)
		},
	}
	cmd.Flags().Int("demo", 0, "Number of demo patients to generate, with their appointments and sales")
	cmd.Flags().Int64("seed", 0, "Random seed for demo data (0 picks one)")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark stale pending appointments as not completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, done, err := setup()
			if err != nil {
				return err
			}
			defer done()

			ctx := logger.WithContext(cmd.Context())
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.appointments.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d appointment(s).\n", n)
			return nil
		},
	}
}

func runServer() error {
	cfg, logger, done, err := setup()
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSamplingRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer a.Close()

	if cfg.SeedOnStart {
		res, err := a.catalog.Seed(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to seed catalog")
		}
		logger.Info().Int("services", res.Services).Int("products", res.Products).Msg("catalog seeded")
	}

	revoked := auth.NewTokenRevocationStore(0)
	defer revoked.Close()
	authn, err := a.authenticator(revoked)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure authentication")
	}
	blobs, err := a.blobStore()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open upload store")
	}

	scheduler := jobs.New(cfg.Location(), time.Minute, logger)
	if err := scheduler.Add("appointments.sweep", cfg.SweepSchedule, func(ctx context.Context) error {
		_, err := a.appointments.Sweep(ctx)
		return err
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule sweep")
	}
	scheduler.Start()

	e := a.server(authn, blobs)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.StoreBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
