package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusclinic/booking-service/internal/booking"
	"github.com/campusclinic/booking-service/internal/identity"
)

// BookingService is the surface of the booking ledger the handlers consume.
type BookingService interface {
	CreateBooking(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	CheckIn(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	ActiveBooking(ctx context.Context, email string) (*booking.Booking, error)
	BookingsForDate(ctx context.Context, date string) ([]booking.Booking, error)
	AvailabilityForDate(ctx context.Context, date string) (map[string]booking.SlotAvailability, error)
	MonthStatus(ctx context.Context, year int, month time.Month) (map[string]string, error)
	RecentVisits(ctx context.Context, limit int) ([]booking.ClinicVisit, error)
}

// ProfileSource looks up patient profiles in the external identity store.
type ProfileSource interface {
	Lookup(ctx context.Context, email string) (*identity.Profile, error)
}

type RouterConfig struct {
	Service            BookingService
	Profiles           ProfileSource
	PgPool             *pgxpool.Pool
	Redis              *redis.Client
	Logger             *zap.Logger
	Env                string
	Version            string
	CORSAllowedOrigins []string
	BookingRatePerMin  int
	StaffJWTSecret     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BookingRatePerMin <= 0 {
		cfg.BookingRatePerMin = 30
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints need live pools; tests build routers without them.
	if cfg.PgPool != nil && cfg.Redis != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	r.Handle("/metrics", promhttp.Handler())

	// Availability reads
	r.Get("/time-slots", timeSlotsHandler(cfg.Service))
	r.Get("/time-slots/month", monthStatusHandler(cfg.Service))

	// Patient-facing booking endpoints
	r.Route("/api", func(r chi.Router) {
		r.With(httprate.LimitByIP(cfg.BookingRatePerMin, time.Minute)).
			Post("/bookings", createBookingHandler(cfg.Service, cfg.Profiles))
		r.Post("/cancel_booking", cancelBookingHandler(cfg.Service))
		r.Get("/active_booking", activeBookingHandler(cfg.Service))

		// Staff endpoints
		r.Group(func(r chi.Router) {
			r.Use(StaffJWT(cfg.StaffJWTSecret))
			r.Get("/admin/bookings", staffBookingsHandler(cfg.Service))
			r.Post("/admin/check_in", checkInHandler(cfg.Service))
			r.Get("/patient/checkin/recent", recentVisitsHandler(cfg.Service))
		})
	})

	return r
}
