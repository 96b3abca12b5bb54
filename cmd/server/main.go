package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"custodia/internal/audit"
	"custodia/internal/audit/mirror"
	"custodia/internal/consent"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	platformredis "custodia/internal/platform/redis"
	"custodia/internal/retention"
	httptransport "custodia/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err).Fatal("Could not load configuration")
	}
	logger.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	auditStore, err := audit.NewFileStore(cfg.Audit.LogDir)
	if err != nil {
		log.WithField("error", err).Fatal("Could not open audit log directory")
	}

	auditOpts := []audit.Option{}
	var mirrorWorker *mirror.Worker
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := mirror.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.WithField("error", err).Fatal("Could not connect audit mirror to Kafka")
		}
		defer sink.Close()

		inbox := make(chan audit.Event, 256)
		mirrorWorker = mirror.NewWorker(sink, inbox)
		auditOpts = append(auditOpts, audit.WithMirror(inbox))
	}
	auditLog := audit.NewLog(auditStore, m, auditOpts...)

	consentStore, cleanup, err := buildConsentStore(ctx, cfg.Consent)
	if err != nil {
		log.WithField("error", err).Fatal("Could not open consent store")
	}
	defer cleanup()

	consents := consent.NewService(consentStore, auditLog, m,
		consent.WithDefaultRetentionDays(cfg.Consent.DefaultRetentionDays))

	coordinatorOpts := []retention.Option{retention.WithInterval(cfg.Retention.Interval)}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.WithField("error", err).Fatal("Could not connect to Redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
		coordinatorOpts = append(coordinatorOpts, retention.WithLocker(retention.NewRedisLocker(redisClient)))
	}
	coordinator := retention.New(consents, auditLog, m, cfg.Audit.RetentionDays, coordinatorOpts...)

	consentHandler := httptransport.NewConsentHandler(consents, auditLog)
	auditHandler := httptransport.NewAuditHandler(auditLog, coordinator)
	router := httptransport.NewRouter(consentHandler, auditHandler)
	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("addr", cfg.Server.Addr).Info("Compliance service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := coordinator.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if mirrorWorker != nil {
		group.Go(func() error {
			err := mirrorWorker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.WithField("error", err).Fatal("Service exited with error")
	}
	log.Info("Compliance service stopped")
}

// buildConsentStore picks the consent backend: Postgres when DATABASE_URL is
// set (running migrations first), otherwise the file-per-subject store.
func buildConsentStore(ctx context.Context, cfg config.Consent) (consent.Store, func(), error) {
	noop := func() {}

	if cfg.DatabaseURL == "" {
		store, err := consent.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("dir", cfg.Dir).Info("Using file-backed consent store")
		return store, noop, nil
	}

	migrator, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		return nil, noop, err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, noop, err
	}
	log.Info("Database migration finished successfully.")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, noop, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, noop, err
	}
	log.Info("Using Postgres consent store")
	return consent.NewPostgresStore(pool), pool.Close, nil
}
