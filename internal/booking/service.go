package booking

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/campusclinic/booking-service/internal/metrics"
	redisclient "github.com/campusclinic/booking-service/internal/redis"
	"github.com/campusclinic/booking-service/internal/slot"
)

var tracer = otel.Tracer("clinic.internal.booking")

// Service is the booking ledger: it owns booking creation, cancellation,
// check-in, and the availability reads derived from the ledger.
type Service struct {
	repo     Repository
	catalog  *slot.Catalog
	locker   redisclient.Locker
	metrics  *metrics.BookingMetrics
	logger   *zap.Logger
	validate *validator.Validate

	// now is swappable so tests can pin the clock for past-slot rules.
	now func() time.Time
}

func NewService(repo Repository, catalog *slot.Catalog, locker redisclient.Locker, m *metrics.BookingMetrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		repo:     repo,
		catalog:  catalog,
		locker:   locker,
		metrics:  m,
		logger:   logger,
		validate: v,
		now:      time.Now,
	}
}

// CreateBooking reserves one slot for one patient. The capacity check and
// insert run under a per-slot Redis lock; the storage layer re-checks both
// invariants regardless, so a lost lock only costs the caller a retry.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.visit_date", req.VisitDate),
		attribute.String("clinic.visit_time", req.VisitTime),
	)

	start := s.now()
	created, err := s.createBooking(ctx, req)
	s.metrics.ObserveCreate(createOutcome(err), s.now().Sub(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", created.ID.String()),
		zap.String("visit_date", created.VisitDate),
		zap.String("visit_time", created.VisitTime),
	)
	return created, nil
}

func (s *Service) createBooking(ctx context.Context, req CreateRequest) (*Booking, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: field %s failed on %s", ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	date, err := slot.ParseDate(req.VisitDate)
	if err != nil {
		return nil, fmt.Errorf("%w: visit_date must be formatted %s", ErrValidation, slot.DateFormat)
	}

	ts, ok := s.catalog.Slot(date, req.VisitTime)
	if !ok {
		return nil, fmt.Errorf("%w: visit_time %s does not match a clinic time slot", ErrValidation, req.VisitTime)
	}

	if s.catalog.IsPast(date, ts.Start, s.now()) {
		return nil, ErrSlotInPast
	}

	// Friendly fast path; the partial unique index enforces this under race.
	if existing, err := s.repo.ActiveByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, ErrActiveBookingExists
	} else if err != nil && !errors.Is(err, ErrNoActiveBooking) {
		return nil, fmt.Errorf("check active booking: %w", err)
	}

	b := &Booking{
		PatientName:        req.PatientName,
		StudentStaffNumber: req.StudentStaffNumber,
		Email:              req.Email,
		PhoneNumber:        req.PhoneNumber,
		VisitDate:          req.VisitDate,
		VisitTime:          ts.Start,
	}

	var created *Booking
	err = s.locker.WithSlotLock(ctx, slotKey(req.VisitDate, ts.Start), func(lockCtx context.Context) error {
		inserted, err := s.repo.Create(lockCtx, b, ts.Capacity)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	return created, nil
}

// CancelBooking transitions active -> cancelled, freeing the slot unit.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking_id", id.String()))

	updated, err := s.repo.UpdateStatus(ctx, id, StatusActive, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			err = s.resolveTransitionFailure(ctx, id)
		}
		s.metrics.ObserveCancel(outcomeLabel(err))
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveCancel("ok")
	s.logger.Info("booking cancelled",
		zap.String("booking_id", updated.ID.String()),
		zap.String("visit_date", updated.VisitDate),
		zap.String("visit_time", updated.VisitTime),
	)
	return updated, nil
}

// CheckIn marks a booking as attended. The repository appends the clinic
// visit in the same transaction, so a repeat call fails ErrInvalidState and
// never duplicates the visit record.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.checkin")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking_id", id.String()))

	updated, err := s.repo.CheckIn(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			err = s.resolveTransitionFailure(ctx, id)
		}
		s.metrics.ObserveCheckIn(outcomeLabel(err))
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveCheckIn("ok")
	s.logger.Info("booking checked in",
		zap.String("booking_id", updated.ID.String()),
		zap.String("visit_date", updated.VisitDate),
		zap.String("visit_time", updated.VisitTime),
	)
	return updated, nil
}

// resolveTransitionFailure distinguishes a missing booking from one that is
// merely not active any more.
func (s *Service) resolveTransitionFailure(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("load booking: %w", err)
	}
	if existing.Status != StatusActive {
		return ErrInvalidState
	}
	return ErrBookingNotFound
}

// ActiveBooking returns the patient's single active booking, or nil when the
// patient has none.
func (s *Service) ActiveBooking(ctx context.Context, email string) (*Booking, error) {
	b, err := s.repo.ActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoActiveBooking) {
			return nil, nil
		}
		return nil, fmt.Errorf("load active booking: %w", err)
	}
	return b, nil
}

// BookingsForDate lists active and checked-in bookings for staff views.
func (s *Service) BookingsForDate(ctx context.Context, date string) ([]Booking, error) {
	if _, err := slot.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: date must be formatted %s", ErrValidation, slot.DateFormat)
	}
	list, err := s.repo.ListForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings for date: %w", err)
	}
	return list, nil
}

// AvailabilityForDate merges the catalog with live counts. Remaining is
// always recomputed from the ledger and clamped to [0, capacity]; a negative
// computed value is a data anomaly worth reporting.
func (s *Service) AvailabilityForDate(ctx context.Context, date string) (map[string]SlotAvailability, error) {
	day, err := slot.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be formatted %s", ErrValidation, slot.DateFormat)
	}

	slots := s.catalog.SlotsForDate(day)
	out := make(map[string]SlotAvailability, len(slots))
	if len(slots) == 0 {
		return out, nil
	}

	counts, err := s.repo.SlotCounts(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("count slot bookings: %w", err)
	}

	now := s.now()
	for _, ts := range slots {
		out[ts.Start] = s.mergeSlot(ts, day, counts[ts.Start], now, date)
	}
	return out, nil
}

func (s *Service) mergeSlot(ts slot.TimeSlot, day time.Time, count int, now time.Time, date string) SlotAvailability {
	remaining := ts.Capacity - count
	if remaining < 0 {
		s.metrics.ObserveNegativeRemaining()
		s.logger.Warn("slot booked past capacity",
			zap.String("visit_date", date),
			zap.String("visit_time", ts.Start),
			zap.Int("capacity", ts.Capacity),
			zap.Int("booked", count),
		)
		remaining = 0
	}
	return SlotAvailability{
		Start:     ts.Start,
		End:       ts.End,
		Capacity:  ts.Capacity,
		Remaining: remaining,
		Past:      s.catalog.IsPast(day, ts.Start, now),
	}
}

// MonthStatus flags each day of the month that is fully booked. Days with no
// defined slots are omitted entirely.
func (s *Service) MonthStatus(ctx context.Context, year int, month time.Month) (map[string]string, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	last := first.AddDate(0, 1, -1)

	counts, err := s.repo.SlotCountsRange(ctx, first.Format(slot.DateFormat), last.Format(slot.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("count month bookings: %w", err)
	}

	status := make(map[string]string)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		slots := s.catalog.SlotsForDate(day)
		if len(slots) == 0 {
			continue
		}
		dateStr := day.Format(slot.DateFormat)
		fully := true
		for _, ts := range slots {
			if ts.Capacity-counts[dateStr][ts.Start] > 0 {
				fully = false
				break
			}
		}
		if fully {
			status[dateStr] = DayStatusFullyBooked
		}
	}
	return status, nil
}

// RecentVisits returns the append-only check-in log, most recent first.
func (s *Service) RecentVisits(ctx context.Context, limit int) ([]ClinicVisit, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	visits, err := s.repo.RecentVisits(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent visits: %w", err)
	}
	return visits, nil
}

func slotKey(date, start string) string {
	return date + "@" + start
}

func createOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrActiveBookingExists):
		return "active_exists"
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrSlotInPast):
		return "slot_past"
	case errors.Is(err, ErrSlotBusy):
		return "slot_busy"
	default:
		return "error"
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBookingNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}
