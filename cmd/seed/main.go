package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusclinic/booking-service/internal/db"
	"github.com/campusclinic/booking-service/internal/slot"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	catalog, err := slot.NewCatalog(slot.DefaultConfig())
	if err != nil {
		log.Fatalf("build catalog: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedActiveBookings(context.Background(), pool, catalog, 120); err != nil {
		log.Fatalf("seed active bookings: %v", err)
	}
	if err := seedCheckedInVisits(context.Background(), pool, catalog, 60); err != nil {
		log.Fatalf("seed checked-in visits: %v", err)
	}

	log.Println("seed complete")
}

// seedActiveBookings spreads active bookings over the next two weeks of open
// days. Emails are unique per booking so the one-active-per-email index never
// trips, and slots are filled round-robin so no slot exceeds its capacity.
func seedActiveBookings(ctx context.Context, pool *pgxpool.Pool, catalog *slot.Catalog, count int) error {
	log.Printf("seeding %d active bookings", count)

	type opening struct {
		date  string
		start string
	}
	var openings []opening
	today := time.Now()
	for d := 1; d <= 14; d++ {
		day := today.AddDate(0, 0, d)
		dateStr := day.Format(slot.DateFormat)
		for _, ts := range catalog.SlotsForDate(day) {
			for i := 0; i < ts.Capacity; i++ {
				openings = append(openings, opening{date: dateStr, start: ts.Start})
			}
		}
	}
	if count > len(openings) {
		count = len(openings)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		o := openings[i*len(openings)/count]
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, patient_name, student_staff_number, email, phone_number, visit_date, visit_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::date, $7::time, 'active', now(), now())
		`, uuid.New(), gofakeit.Name(), gofakeit.DigitN(8), gofakeit.Email(), gofakeit.Phone(), o.date, o.start)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("active bookings seeded")
	return nil
}

// seedCheckedInVisits backfills attended bookings on past open days, each
// with its clinic visit row.
func seedCheckedInVisits(ctx context.Context, pool *pgxpool.Pool, catalog *slot.Catalog, count int) error {
	log.Printf("seeding %d checked-in visits", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now()
	seeded := 0
	for d := 1; seeded < count && d <= 30; d++ {
		day := today.AddDate(0, 0, -d)
		slots := catalog.SlotsForDate(day)
		if len(slots) == 0 {
			continue
		}
		dateStr := day.Format(slot.DateFormat)
		for _, ts := range slots {
			if seeded >= count {
				break
			}
			id := uuid.New()
			name := gofakeit.Name()
			number := gofakeit.DigitN(8)
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO bookings (id, patient_name, student_staff_number, email, phone_number, visit_date, visit_time, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6::date, $7::time, 'checked-in', now(), now())
			`, id, name, number, email, gofakeit.Phone(), dateStr, ts.Start)
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO clinic_visits (booking_id, patient_name, student_staff_number, email, visit_date, time_slot, checked_in_at)
				VALUES ($1, $2, $3, $4, $5::date, $6::time, now())
			`, id, name, number, email, dateStr, ts.Start)
			if err != nil {
				return err
			}
			seeded++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("checked-in visits seeded: %d", seeded)
	return nil
}
