package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueme/scheduling-core/internal/availability"
	"github.com/queueme/scheduling-core/internal/clock"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository/repotest"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func baseService() domain.Service {
	return domain.Service{
		ID:                     "svc-1",
		ShopID:                 "shop-1",
		Name:                   "Haircut",
		DurationMinutes:        30,
		SlotGranularityMinutes: 30,
		BufferBeforeMinutes:    5,
		BufferAfterMinutes:     5,
		Status:                 domain.ServiceActive,
		MinBookingNoticeMin:    0,
		MaxAdvanceBookingDays:  30,
	}
}

func setup(t *testing.T, date time.Time) (*repotest.Fake, *availability.Engine) {
	t.Helper()
	repo := repotest.New()
	service := baseService()
	repo.Services[service.ID] = service

	weekday := domain.WeekdayOf(date)
	repo.ShopHours[service.ShopID] = map[domain.Weekday]domain.ShopHours{
		weekday: {ShopID: service.ShopID, Weekday: weekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}},
	}
	specialist := domain.Specialist{ID: "spec-1", ShopID: service.ShopID}
	repo.Specialists[service.ID] = []domain.Specialist{specialist}
	repo.SpecialistHours[specialist.ID] = map[domain.Weekday]domain.SpecialistWorkingHours{
		weekday: {SpecialistID: specialist.ID, Weekday: weekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}},
	}

	frozen := clock.Frozen{At: date.Add(-24 * time.Hour)}
	engine := availability.New(repo, frozen, nil)
	return repo, engine
}

func TestSlotsForService_EnumeratesWithinShopHours(t *testing.T) {
	date := mustDate(t, "2026-08-03") // a Monday
	_, engine := setup(t, date)

	slots, err := engine.SlotsForService(context.Background(), "svc-1", date)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	first := slots[0]
	assert.Equal(t, 9*60+5, int(domain.TimeOfDayFrom(first.Start)))
	assert.Equal(t, "spec-1", first.SpecialistID)
	assert.Equal(t, 30, first.Duration)
}

func TestSlotsForService_ClosedShopReturnsNoSlots(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, engine := setup(t, date)

	weekday := domain.WeekdayOf(date)
	repo.ShopHours["shop-1"] = map[domain.Weekday]domain.ShopHours{
		weekday: {ShopID: "shop-1", Weekday: weekday, Hours: domain.HourRange{Closed: true}},
	}

	slots, err := engine.SlotsForService(context.Background(), "svc-1", date)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForService_ServiceExceptionOverridesWeeklyHours(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, engine := setup(t, date)

	repo.ServiceExceptions["svc-1"] = map[string]domain.ServiceException{
		date.Format("2006-01-02"): {ServiceID: "svc-1", Date: date, IsClosed: true},
	}

	slots, err := engine.SlotsForService(context.Background(), "svc-1", date)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForService_ExistingAppointmentBlocksOverlappingSlot(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, engine := setup(t, date)

	start := domain.TimeOfDay(9 * 60).On(date, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID:           "existing",
		SpecialistID: "spec-1",
		ServiceID:    "svc-1",
		Status:       domain.StatusScheduled,
		Window:       domain.Interval{Start: start, End: start.Add(30 * time.Minute)},
	})

	slots, err := engine.SlotsForService(context.Background(), "svc-1", date)
	require.NoError(t, err)
	for _, s := range slots {
		assert.False(t, s.Start.Equal(start.Add(5*time.Minute)), "slot overlapping the buffered appointment should be excluded")
	}
}

func TestSlotsForService_OutsideAdvanceWindowReturnsNil(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, engine := setup(t, date)
	svc := repo.Services["svc-1"]
	svc.MaxAdvanceBookingDays = 1
	repo.Services["svc-1"] = svc

	far := date.AddDate(0, 0, 10)
	slots, err := engine.SlotsForService(context.Background(), "svc-1", far)
	require.NoError(t, err)
	assert.Nil(t, slots)
}

func TestEarliestAvailable_ScansForwardUntilItFindsASlot(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, engine := setup(t, date)

	weekday := domain.WeekdayOf(date)
	closed := repo.ShopHours["shop-1"][weekday]
	closed.Hours = domain.HourRange{Closed: true}
	repo.ShopHours["shop-1"][weekday] = closed

	nextDay := date.AddDate(0, 0, 1)
	nextWeekday := domain.WeekdayOf(nextDay)
	if repo.ShopHours["shop-1"] == nil {
		repo.ShopHours["shop-1"] = map[domain.Weekday]domain.ShopHours{}
	}
	repo.ShopHours["shop-1"][nextWeekday] = domain.ShopHours{ShopID: "shop-1", Weekday: nextWeekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}}
	repo.SpecialistHours["spec-1"][nextWeekday] = domain.SpecialistWorkingHours{SpecialistID: "spec-1", Weekday: nextWeekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}}

	slot, err := engine.EarliestAvailable(context.Background(), "svc-1", "", date, 7)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.True(t, slot.Start.After(date.Add(24*time.Hour-time.Minute)))
}

func TestNextAvailableSpecialist_ReturnsEmptyWhenNoneFree(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, engine := setup(t, date)

	at := domain.TimeOfDay(9 * 60).On(date, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID:           "existing",
		SpecialistID: "spec-1",
		ServiceID:    "svc-1",
		Status:       domain.StatusScheduled,
		Window:       domain.Interval{Start: at, End: at.Add(30 * time.Minute)},
	})

	specialistID, err := engine.NextAvailableSpecialist(context.Background(), "shop-1", "svc-1", date, at)
	require.NoError(t, err)
	assert.Empty(t, specialistID)
}
