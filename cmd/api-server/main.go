package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campusclinic/booking-service/internal/api"
	"github.com/campusclinic/booking-service/internal/booking"
	"github.com/campusclinic/booking-service/internal/config"
	"github.com/campusclinic/booking-service/internal/db"
	"github.com/campusclinic/booking-service/internal/identity"
	"github.com/campusclinic/booking-service/internal/logger"
	"github.com/campusclinic/booking-service/internal/metrics"
	redisclient "github.com/campusclinic/booking-service/internal/redis"
	"github.com/campusclinic/booking-service/internal/slot"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zlog.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zlog.Warn("error closing redis", zap.Error(err))
		}
	}()
	zlog.Info("connected to Redis")

	catalog, err := slot.NewCatalog(slot.Config{
		Open:        cfg.ClinicOpen,
		Close:       cfg.ClinicClose,
		SlotMinutes: cfg.SlotMinutes,
		BreakStart:  cfg.BreakStart,
		BreakEnd:    cfg.BreakEnd,
		Capacity:    cfg.SlotCapacity,
		Grace:       time.Duration(cfg.GraceMinutes) * time.Minute,
		ClosedDays:  cfg.ClosedDays,
	})
	if err != nil {
		zlog.Fatal("invalid clinic schedule", zap.Error(err))
	}

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	bookingMetrics := metrics.NewBookingMetrics(nil)
	svc := booking.NewService(repo, catalog, locker, bookingMetrics, zlog)
	profiles := identity.NewClient(cfg.IdentityBaseURL)

	handler := api.NewRouter(api.RouterConfig{
		Service:            svc,
		Profiles:           profiles,
		PgPool:             pgPool,
		Redis:              rdb,
		Logger:             zlog,
		Env:                cfg.Env,
		Version:            version,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		BookingRatePerMin:  cfg.BookingRatePerMin,
		StaffJWTSecret:     cfg.StaffJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zlog.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server stopped")
}
