package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrNoActiveBooking = errors.New("no active booking for email")
)

// Repository contains all ledger storage interactions needed by the service.
// Implementations must make Create atomic with respect to both invariants:
// per-slot capacity and one active booking per email.
type Repository interface {
	// Create inserts an active booking if and only if fewer than capacity
	// bookings (active or checked-in) exist for the slot. Returns ErrSlotFull
	// when capacity is already consumed and ErrActiveBookingExists when the
	// email already holds an active booking.
	Create(ctx context.Context, b *Booking, capacity int) (*Booking, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ActiveByEmail(ctx context.Context, email string) (*Booking, error)

	// ListForDate returns active and checked-in bookings ordered by slot time.
	ListForDate(ctx context.Context, date string) ([]Booking, error)

	// SlotCounts returns visit_time -> count of active/checked-in bookings.
	SlotCounts(ctx context.Context, date string) (map[string]int, error)
	// SlotCountsRange is SlotCounts over [from, to] keyed by date then time.
	SlotCountsRange(ctx context.Context, from, to string) (map[string]map[string]int, error)

	// UpdateStatus performs a conditional transition and returns the updated
	// row, or ErrBookingNotFound when no row matched id+from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error)

	// CheckIn transitions active -> checked-in and appends the clinic visit
	// in the same transaction.
	CheckIn(ctx context.Context, id uuid.UUID) (*Booking, error)

	RecentVisits(ctx context.Context, limit int) ([]ClinicVisit, error)
}
