package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

const bookingColumns = `
	id, patient_name, student_staff_number, email, phone_number,
	to_char(visit_date, 'YYYY-MM-DD'), to_char(visit_time, 'HH24:MI'),
	status, created_at, updated_at`

// Helpers

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.PatientName,
		&b.StudentStaffNumber,
		&b.Email,
		&b.PhoneNumber,
		&b.VisitDate,
		&b.VisitTime,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func scanVisit(row pgx.Row) (*ClinicVisit, error) {
	var v ClinicVisit
	err := row.Scan(
		&v.ID,
		&v.BookingID,
		&v.PatientName,
		&v.StudentStaffNumber,
		&v.Email,
		&v.VisitDate,
		&v.TimeSlot,
		&v.CheckedInAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

// Create inserts the booking only when the slot still has headroom. The
// count-and-insert runs as one statement so it sees a single snapshot; the
// partial unique index on active emails backstops the per-patient invariant
// even without the caller's slot lock.
func (r *PgRepository) Create(ctx context.Context, b *Booking, capacity int) (*Booking, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, patient_name, student_staff_number, email, phone_number, visit_date, visit_time, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6::date, $7::time, 'active', now(), now()
		WHERE (
			SELECT count(*) FROM bookings
			WHERE visit_date = $6::date
			  AND visit_time = $7::time
			  AND status IN ('active', 'checked-in')
		) < $8
		RETURNING `+bookingColumns,
		id, b.PatientName, b.StudentStaffNumber, b.Email, b.PhoneNumber, b.VisitDate, b.VisitTime, capacity)

	created, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrSlotFull
		}
		if isUniqueViolation(err) {
			return nil, ErrActiveBookingExists
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ActiveByEmail(ctx context.Context, email string) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE lower(email) = lower($1) AND status = 'active'
	`, email)

	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrNoActiveBooking
		}
		return nil, err
	}
	return b, nil
}

func (r *PgRepository) ListForDate(ctx context.Context, date string) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE visit_date = $1::date
		  AND status IN ('active', 'checked-in')
		ORDER BY visit_time, created_at
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) SlotCounts(ctx context.Context, date string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(visit_time, 'HH24:MI'), count(*)
		FROM bookings
		WHERE visit_date = $1::date
		  AND status IN ('active', 'checked-in')
		GROUP BY visit_time
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *PgRepository) SlotCountsRange(ctx context.Context, from, to string) (map[string]map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(visit_date, 'YYYY-MM-DD'), to_char(visit_time, 'HH24:MI'), count(*)
		FROM bookings
		WHERE visit_date BETWEEN $1::date AND $2::date
		  AND status IN ('active', 'checked-in')
		GROUP BY visit_date, visit_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var d, t string
		var n int
		if err := rows.Scan(&d, &t, &n); err != nil {
			return nil, err
		}
		if counts[d] == nil {
			counts[d] = make(map[string]int)
		}
		counts[d][t] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingColumns,
		id, to, from)

	return scanBooking(row)
}

// CheckIn flips the booking to checked-in and appends the clinic visit in a
// single transaction. The conditional UPDATE guarantees the visit row is
// written at most once per booking; a unique index on clinic_visits.booking_id
// backstops that.
func (r *PgRepository) CheckIn(ctx context.Context, id uuid.UUID) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin check-in tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'checked-in',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		RETURNING `+bookingColumns,
		id)

	updated, err := scanBooking(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO clinic_visits (booking_id, patient_name, student_staff_number, email, visit_date, time_slot, checked_in_at)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, now())
	`, updated.ID, updated.PatientName, updated.StudentStaffNumber, updated.Email, updated.VisitDate, updated.VisitTime)
	if err != nil {
		return nil, fmt.Errorf("insert clinic visit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit check-in tx: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) RecentVisits(ctx context.Context, limit int) ([]ClinicVisit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, patient_name, student_staff_number, email,
		       to_char(visit_date, 'YYYY-MM-DD'), to_char(time_slot, 'HH24:MI'),
		       checked_in_at
		FROM clinic_visits
		ORDER BY checked_in_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ClinicVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
