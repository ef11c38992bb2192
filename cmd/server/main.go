// Command server runs the appointment booking engine: HTTP API, audit outbox
// relay, notification dispatcher, and retention sweeper in one process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"govbook/internal/booking"
	"govbook/internal/cascade"
	"govbook/internal/directory"
	"govbook/internal/document"
	jwttoken "govbook/internal/jwt_token"
	"govbook/internal/notification"
	"govbook/internal/platform/config"
	"govbook/internal/platform/httpserver"
	"govbook/internal/platform/logger"
	"govbook/internal/platform/metrics"
	"govbook/internal/platform/postgres"
	"govbook/internal/platform/redis"
	"govbook/internal/scheduler"
	"govbook/internal/slotcache"
	"govbook/internal/sweeper"
	httptransport "govbook/internal/transport/http"
	"govbook/pkg/platform/audit"
	"govbook/pkg/platform/audit/publisher"
	auditpostgres "govbook/pkg/platform/audit/store/postgres"
	"govbook/pkg/platform/audit/worker"
	"govbook/pkg/platform/circuit"
	txcontext "govbook/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		log.Warn("redis not configured, slot availability served uncached")
	}

	m := metrics.New()
	runner := txcontext.NewPgxRunner(pool)

	auditStore := auditpostgres.New(pool)
	recorder := audit.NewRecorder(auditStore)

	dirStore := directory.NewPostgresStore(pool)
	bookingStore := booking.NewPostgresStore(pool)
	noteStore := notification.NewPostgresStore(pool)
	docStore := document.NewPostgresStore(pool)

	dir := directory.New(dirStore, recorder, runner, log)
	notes := notification.NewService(noteStore, recorder, runner, log)
	cache := slotcache.New(bookingStore, redisClient, cfg.Redis.CacheTTL, log)

	bookings := booking.NewService(
		bookingStore, directory.NewBookingAdapter(dirStore), notes, cache,
		recorder, runner, m, log,
	)
	engine := cascade.NewEngine(dirStore, bookings, noteStore, cache, recorder, runner, m, log)
	documents := document.NewService(
		docStore, bookingStore, dirStore, engine, notes, recorder, runner, log,
	)
	schedule := scheduler.New(bookingStore, dirStore, runner, log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)

	server := httptransport.NewServer(
		dir, bookings, engine, documents, notes, schedule, auditStore,
		jwtService, jwtService, cfg.TokenTTL, m, log,
	)
	srv := httpserver.New(cfg.Addr, server.Handler())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := publisher.New(ctx, publisher.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			log.Error("kafka publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer pub.Close()

		relay := worker.New(pool, pub, log, 0)
		g.Go(func() error { return ignoreCancel(relay.Run(gctx)) })
	} else {
		log.Warn("kafka not configured, audit outbox will accumulate unrelayed")
	}

	channels := []notification.Channel{notification.NewLogChannel(log)}
	if cfg.Notify.SMTPHost != "" {
		smtpBreaker := circuit.New("smtp", circuit.WithFailureThreshold(3))
		channels = append(channels, notification.Guard(notification.NewSMTPChannel(cfg.Notify), smtpBreaker, log))
	}
	dispatcher := notification.NewDispatcher(
		noteStore, directory.NewContactAdapter(dirStore), channels, runner, 0, log,
	)
	g.Go(func() error { return ignoreCancel(dispatcher.Run(gctx)) })

	sweep := sweeper.New(auditStore, noteStore, cfg.SweepInterval, cfg.AuditRetention, log)
	g.Go(func() error { return ignoreCancel(sweep.Run(gctx)) })

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// ignoreCancel treats context cancellation as a clean shutdown.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
