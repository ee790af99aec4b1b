package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/schedule"
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

	gofakeit.Seed(time.Now().UnixNano())

	providerIDs, err := seedProviders(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedSchedules(context.Background(), pool, providerIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}
	if err := seedPatients(context.Background(), pool, providerIDs, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func slugify(name string, n int) string {
	s := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)
	return fmt.Sprintf("%s-%d", s, n)
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	timezones := []string{
		"America/Sao_Paulo",
		"America/New_York",
		"Europe/Lisbon",
		"Europe/Madrid",
		"UTC",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	quotaMonth := time.Now().Format("2006-01")

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		plan := schedule.PlanFree
		maxPatients := 50
		if gofakeit.Bool() {
			plan = schedule.PlanPro
			maxPatients = schedule.UnlimitedPatients
		}
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers
				(id, slug, name, email, is_active, plan, max_patients_per_month,
				 current_month_patients, quota_month, grace_period_days, timezone,
				 created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, $5, $6, 0, $7, 7, $8, now(), now())
		`, id, slugify(name, i), name, gofakeit.Email(), string(plan), maxPatients, quotaMonth, tz)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO clinics (id, provider_id, name, address, is_active, created_at)
			VALUES ($1, $2, $3, $4, true, now())
		`, uuid.New(), id, gofakeit.Company()+" Clinic", gofakeit.Address().Address)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("providers seeded")
	return ids, nil
}

func seedSchedules(ctx context.Context, pool *pgxpool.Pool, providerIDs []uuid.UUID) error {
	log.Printf("seeding schedules for %d providers", len(providerIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	durations := []int{15, 30, 30, 45, 60}

	for _, providerID := range providerIDs {
		duration := durations[gofakeit.Number(0, len(durations)-1)]
		for day := 1; day <= 5; day++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_rules
					(id, provider_id, clinic_id, day_of_week, start_time, end_time,
					 slot_duration_minutes, is_active, created_at, updated_at)
				VALUES ($1, $2, NULL, $3, '09:00'::time, '18:00'::time, $4, true, now(), now())
			`, uuid.New(), providerID, day, duration)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, providerIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			providerID := providerIDs[gofakeit.Number(0, len(providerIDs)-1)]
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients
					(id, full_name, email, phone, whatsapp_number, created_by_provider_id,
					 edit_token, edit_token_expiry, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now() + interval '30 days', now(), now())
				ON CONFLICT (created_by_provider_id, whatsapp_number) DO NOTHING
			`, uuid.New(), gofakeit.Name(), email, gofakeit.Phone(),
				"+55"+gofakeit.Numerify("###########"), providerID, schedule.NewEditToken())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
