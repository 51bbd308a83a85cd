package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-schedule/internal/app"
	"github.com/hackgods/practitioner-schedule/internal/config"
	"github.com/hackgods/practitioner-schedule/internal/logging"
	"github.com/hackgods/practitioner-schedule/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("seed", cfg.Env, cfg.LogLevel)
	logger.Info().Msg("seed starting")

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}

	logger.Info().Msg("seed complete")
}

// openApp is swapped in tests.
var openApp = app.Open

// run owns every resource so deferred cleanup happens before main exits.
func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()

	gofakeit.Seed(time.Now().UnixNano())

	practitioners := getInt("SEED_PRACTITIONERS", 20)
	locations := getInt("SEED_LOCATIONS", 2)
	anchor := schedule.DateOf(time.Now())

	return seedSchedules(ctx, a.Service, logger, anchor, practitioners, locations)
}

func seedSchedules(ctx context.Context, svc *schedule.Service, logger zerolog.Logger, anchor time.Time, practitioners, locations int) error {
	logger.Info().Int("practitioners", practitioners).Int("locations", locations).Msg("seeding schedules")

	for i := 0; i < practitioners; i++ {
		practitionerID := uuid.NewString()
		name := "Dr. " + gofakeit.LastName()

		for j := 0; j < locations; j++ {
			locationID := uuid.NewString()
			key := schedule.DayKey{PractitionerID: practitionerID, LocationID: locationID, Date: anchor}

			for _, r := range fakeSessions() {
				if _, err := svc.AddSession(ctx, key, r); err != nil {
					return fmt.Errorf("add session %s for %s: %w", r, name, err)
				}
			}

			res, err := svc.FinalizeDay(ctx, key)
			if err != nil {
				return fmt.Errorf("finalize %s at %s: %w", name, locationID, err)
			}

			booked, err := fakeBookings(ctx, svc, key)
			if err != nil {
				return fmt.Errorf("book slots for %s: %w", name, err)
			}

			logger.Info().
				Str("practitioner", name).
				Str("practitioner_id", practitionerID).
				Str("location_id", locationID).
				Int("dates", len(res.Succeeded)).
				Int("bookings", booked).
				Msg("schedule seeded")
		}
	}

	return nil
}

// fakeSessions returns a morning session and, usually, an afternoon one
// starting at least an hour after the morning ends.
func fakeSessions() []schedule.TimeRange {
	morningStart := schedule.TimeOfDay(gofakeit.Number(8, 10) * 60)
	morning := schedule.TimeRange{Start: morningStart, End: morningStart.Add(gofakeit.Number(2, 3) * 60)}

	sessions := []schedule.TimeRange{morning}
	if gofakeit.Bool() || gofakeit.Bool() {
		afternoonStart := morning.End.Add(gofakeit.Number(1, 2) * 60)
		sessions = append(sessions, schedule.TimeRange{
			Start: afternoonStart,
			End:   afternoonStart.Add(gofakeit.Number(2, 4) * 60),
		})
	}
	return sessions
}

// fakeBookings stands in for the booking subsystem: roughly a third of the
// available slots get a patient, one in ten of those as an emergency.
func fakeBookings(ctx context.Context, svc *schedule.Service, key schedule.DayKey) (int, error) {
	day, err := svc.OpenDay(ctx, key)
	if err != nil {
		return 0, err
	}

	booked := 0
	for _, sess := range day.Sessions() {
		for _, sl := range sess.Slots {
			if sl.Status != schedule.SlotAvailable || gofakeit.Number(1, 3) != 1 {
				continue
			}
			status := schedule.SlotBooked
			if gofakeit.Number(1, 10) == 1 {
				status = schedule.SlotEmergency
			}
			apptID := uuid.New()
			if _, err := svc.RecordBooking(ctx, key, sl.ID, status, &apptID); err != nil {
				return booked, err
			}
			booked++
		}
	}
	return booked, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
