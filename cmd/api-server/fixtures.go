package main

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/schedule"
)

// seedMemoryFixtures populates the in-memory repository with a demo tenant so
// the API is usable immediately in fixture mode. The slug is stable; the rest
// is faked.
func seedMemoryFixtures(repo *schedule.MemoryRepository, logger zerolog.Logger) {
	gofakeit.Seed(42)

	providerID := uuid.New()
	repo.AddProvider(schedule.Provider{
		ID:                  providerID,
		Slug:                "demo-clinic",
		Name:                "Dr. " + gofakeit.Name(),
		Email:               gofakeit.Email(),
		IsActive:            true,
		Plan:                schedule.PlanPro,
		MaxPatientsPerMonth: schedule.UnlimitedPatients,
		QuotaMonth:          time.Now().Format("2006-01"),
		Timezone:            "America/Sao_Paulo",
	})

	repo.AddClinic(schedule.Clinic{
		ID:         uuid.New(),
		ProviderID: providerID,
		Name:       gofakeit.Company() + " Clinic",
		Address:    gofakeit.Address().Address,
		IsActive:   true,
	})

	// One contiguous weekday window keeps the fixture simple.
	for day := 1; day <= 5; day++ {
		_, err := repo.UpsertAvailabilityRule(context.Background(), providerID, schedule.RuleUpsert{
			DayOfWeek:    day,
			StartTime:    "09:00",
			EndTime:      "18:00",
			SlotDuration: 30,
			IsActive:     true,
		})
		if err != nil {
			logger.Warn().Err(err).Int("day", day).Msg("seed rule failed")
		}
	}

	logger.Info().Str("slug", "demo-clinic").Msg("seeded in-memory fixtures")
}
