package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueme/scheduling-core/internal/availability"
	"github.com/queueme/scheduling-core/internal/buffer"
	"github.com/queueme/scheduling-core/internal/clock"
	"github.com/queueme/scheduling-core/internal/conflict"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/orchestrator"
	"github.com/queueme/scheduling-core/internal/repository/repotest"
)

func baseService() domain.Service {
	return domain.Service{
		ID:                     "svc-1",
		ShopID:                 "shop-1",
		Name:                   "Haircut",
		DurationMinutes:        30,
		SlotGranularityMinutes: 30,
		Status:                 domain.ServiceActive,
		MaxAdvanceBookingDays:  30,
	}
}

func setup(t *testing.T, date time.Time) (*repotest.Fake, *orchestrator.Orchestrator) {
	t.Helper()
	repo := repotest.New()
	service := baseService()
	repo.Services[service.ID] = service

	weekday := domain.WeekdayOf(date)
	repo.ShopHours[service.ShopID] = map[domain.Weekday]domain.ShopHours{
		weekday: {ShopID: service.ShopID, Weekday: weekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}},
	}
	specialists := []domain.Specialist{{ID: "spec-1", ShopID: service.ShopID}, {ID: "spec-2", ShopID: service.ShopID}}
	repo.Specialists[service.ID] = specialists
	repo.SpecialistHours["spec-1"] = map[domain.Weekday]domain.SpecialistWorkingHours{
		weekday: {SpecialistID: "spec-1", Weekday: weekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}},
	}
	repo.SpecialistHours["spec-2"] = map[domain.Weekday]domain.SpecialistWorkingHours{
		weekday: {SpecialistID: "spec-2", Weekday: weekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}},
	}

	frozen := clock.Frozen{At: date.Add(-24 * time.Hour)}
	avail := availability.New(repo, frozen, nil)
	conflicts := conflict.New(repo)
	buffers := buffer.New(repo)
	o := orchestrator.New(repo, avail, conflicts, buffers, nil, nil, frozen, nil, 0, 0)
	return repo, o
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestSchedule_BothPinnedBooksWhenClear(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	_, o := setup(t, date)
	tod := domain.TimeOfDay(9 * 60)

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, TargetTime: &tod, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "spec-1", result.Appointment.SpecialistID)
}

func TestSchedule_BothPinnedConflictFails(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	start := domain.TimeOfDay(9 * 60).On(date, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "existing", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled, Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)},
	})
	tod := domain.TimeOfDay(9 * 60)

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, TargetTime: &tod, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Conflicts)
	assert.True(t, result.Conflicts.HasConflict)
}

func TestSchedule_TimeOnlyFindsAnyFreeSpecialist(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	start := domain.TimeOfDay(9 * 60).On(date, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "existing", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled, Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)},
	})
	tod := domain.TimeOfDay(9 * 60)

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, TargetTime: &tod,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "spec-2", result.Appointment.SpecialistID)
}

func TestSchedule_SpecialistOnlyBooksFirstSlot(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	_, o := setup(t, date)

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "spec-1", result.Appointment.SpecialistID)
}

func TestSchedule_StrategyDispatchEarliestAvailable(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	_, o := setup(t, date)

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, Strategy: domain.StrategyEarliestAvailable,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSchedule_StrategyDispatchBalancedWorkload(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	start := domain.TimeOfDay(9 * 60).On(date, time.UTC)
	// spec-1 already has an appointment today, spec-2 is idle: balanced
	// workload should prefer spec-2.
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "existing", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled, Window: domain.Interval{Start: start.Add(2 * time.Hour), End: start.Add(2*time.Hour + 30*time.Minute)},
	})

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, Strategy: domain.StrategyBalancedWorkload,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "spec-2", result.Appointment.SpecialistID)
}

func TestSchedule_StrategyDispatchMinimizeWait(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	_, o := setup(t, date)

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, Strategy: domain.StrategyMinimizeWait,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 9*60, int(domain.TimeOfDayFrom(result.Appointment.Window.Start)))
}

func TestSchedule_StrategyDispatchResourceEfficientFallsBackWithNoRequirements(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	_, o := setup(t, date)

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1",
		TargetDate: date, Strategy: domain.StrategyResourceEfficient,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSchedule_UnknownServiceIsNotFound(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	_, o := setup(t, date)

	_, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "missing", CustomerID: "cust-1", TargetDate: date,
	})
	require.Error(t, err)
}

func TestScheduleMultipleServices_SequentialBooksBackToBack(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	repo.Services["svc-2"] = domain.Service{
		ID: "svc-2", ShopID: "shop-1", Name: "Wash", DurationMinutes: 20,
		SlotGranularityMinutes: 20, Status: domain.ServiceActive, MaxAdvanceBookingDays: 30,
	}
	repo.Specialists["svc-2"] = repo.Specialists["svc-1"]
	repo.SpecialistHours["spec-1"][domain.WeekdayOf(date)] = domain.SpecialistWorkingHours{
		SpecialistID: "spec-1", Weekday: domain.WeekdayOf(date), Hours: domain.HourRange{From: 9 * 60, To: 17 * 60},
	}

	result, err := o.ScheduleMultipleServices(context.Background(), "shop-1", []string{"svc-1", "svc-2"}, "cust-1", date, true, "spec-1", "", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Appointments, 2)
}

func TestScheduleMultipleServices_SequentialFailureRollsBackEarlierLegs(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	// svc-2 has no qualified specialists at all, so its leg always fails.
	repo.Services["svc-2"] = domain.Service{
		ID: "svc-2", ShopID: "shop-1", Name: "Wash", DurationMinutes: 20,
		SlotGranularityMinutes: 20, Status: domain.ServiceActive, MaxAdvanceBookingDays: 30,
	}

	result, err := o.ScheduleMultipleServices(context.Background(), "shop-1", []string{"svc-1", "svc-2"}, "cust-1", date, true, "spec-1", "", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)

	for _, appt := range repo.Appointments {
		assert.Equal(t, domain.StatusCancelled, appt.Status, "every previously booked leg should be rolled back")
	}
}

func TestScheduleMultipleServices_IndependentBooksEachRegardlessOfOthers(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	repo.Services["svc-2"] = domain.Service{
		ID: "svc-2", ShopID: "shop-1", Name: "Wash", DurationMinutes: 20,
		SlotGranularityMinutes: 20, Status: domain.ServiceActive, MaxAdvanceBookingDays: 30,
	}
	// svc-2 has no specialists, so only its leg fails; svc-1 still books.
	result, err := o.ScheduleMultipleServices(context.Background(), "shop-1", []string{"svc-1", "svc-2"}, "cust-1", date, false, "", "", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Partial, 2)
	assert.True(t, result.Partial[0].Success)
	assert.False(t, result.Partial[1].Success)
}

func TestScheduleMultipleServices_EmptyServiceListFails(t *testing.T) {
	_, o := setup(t, mustDate(t, "2026-08-03"))
	result, err := o.ScheduleMultipleServices(context.Background(), "shop-1", nil, "cust-1", mustDate(t, "2026-08-03"), true, "", "", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestCancel_TransitionsToCancelledAndReleasesResources(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	booked, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1", TargetDate: date, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	require.True(t, booked.Success)

	result, err := o.Cancel(context.Background(), booked.Appointment.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domain.StatusCancelled, result.Appointment.Status)

	stored, err := repo.GetAppointment(context.Background(), booked.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
}

func TestCancel_AlreadyCancelledRefuses(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "appt-1", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusCancelled,
		Window: domain.Interval{Start: date, End: date.Add(30 * time.Minute)},
	})

	result, err := o.Cancel(context.Background(), "appt-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestCancel_UnknownAppointmentIsNotFound(t *testing.T) {
	_, o := setup(t, mustDate(t, "2026-08-03"))
	_, err := o.Cancel(context.Background(), "missing")
	require.Error(t, err)
}

func TestReschedule_SameTimeSucceedsWithSelfExclusion(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	_, o := setup(t, date)
	booked, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1", TargetDate: date, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	require.True(t, booked.Success)

	newTime := domain.TimeOfDay(9 * 60)
	result, err := o.Reschedule(context.Background(), booked.Appointment.ID, nil, &newTime, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 9*60, int(domain.TimeOfDayFrom(result.Appointment.Window.Start)))
}

func TestReschedule_ChangingSpecialistReallocatesResources(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	repo.ResourceRequirements["svc-1"] = []domain.ServiceResourceRequirement{
		{ServiceID: "svc-1", ResourceType: "chair", Quantity: 1},
	}
	repo.Resources["shop-1|chair"] = []domain.Resource{{ID: "chair-1", ShopID: "shop-1", Type: "chair", IsActive: true}}

	booked, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1", TargetDate: date, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	require.True(t, booked.Success)

	result, err := o.Reschedule(context.Background(), booked.Appointment.ID, nil, nil, "spec-2")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "spec-2", result.Appointment.SpecialistID)

	resources, err := repo.GetAppointmentResources(context.Background(), booked.Appointment.ID)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "chair-1", resources[0].ResourceID)
}

func TestReschedule_ConflictAtNewTimeRefuses(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	booked, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1", TargetDate: date, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	require.True(t, booked.Success)

	blockerStart := domain.TimeOfDay(11 * 60).On(date, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "blocker", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
		Window: domain.Interval{Start: blockerStart, End: blockerStart.Add(30 * time.Minute)},
	})

	newTime := domain.TimeOfDay(11 * 60)
	result, err := o.Reschedule(context.Background(), booked.Appointment.ID, nil, &newTime, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Conflicts)
}

func TestReschedule_CompletedAppointmentRefuses(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "appt-1", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusCompleted,
		Window: domain.Interval{Start: date, End: date.Add(30 * time.Minute)},
	})

	newTime := domain.TimeOfDay(11 * 60)
	result, err := o.Reschedule(context.Background(), "appt-1", nil, &newTime, "")
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestReschedule_UnknownAppointmentIsNotFound(t *testing.T) {
	_, o := setup(t, mustDate(t, "2026-08-03"))
	newTime := domain.TimeOfDay(11 * 60)
	_, err := o.Reschedule(context.Background(), "missing", nil, &newTime, "")
	require.Error(t, err)
}

func TestAllocateResources_NoSubstituteFailsTheLeg(t *testing.T) {
	date := mustDate(t, "2026-08-03")
	repo, o := setup(t, date)
	repo.ResourceRequirements["svc-1"] = []domain.ServiceResourceRequirement{
		{ServiceID: "svc-1", ResourceType: "chair", Quantity: 1},
	}
	repo.Resources["shop-1|chair"] = []domain.Resource{{ID: "chair-1", ShopID: "shop-1", Type: "chair", IsActive: true}}

	result, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-1", TargetDate: date, SpecialistID: "spec-1",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	// The sole chair is now booked for 9:00-9:30; a second appointment at
	// the same time with a different specialist has no substitute resource.
	second, err := o.Schedule(context.Background(), orchestrator.Request{
		ShopID: "shop-1", ServiceID: "svc-1", CustomerID: "cust-2", TargetDate: date, SpecialistID: "spec-2",
		TargetTime: timePtr(domain.TimeOfDay(9 * 60)),
	})
	require.NoError(t, err)
	assert.False(t, second.Success)
}

func timePtr(t domain.TimeOfDay) *domain.TimeOfDay { return &t }
