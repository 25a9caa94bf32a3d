package conflict_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueme/scheduling-core/internal/conflict"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository"
	"github.com/queueme/scheduling-core/internal/repository/repotest"
)

func window(start time.Time, minutes int) domain.Interval {
	return domain.Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func TestSpecialistConflict_OverlapIsFlagged(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "a1", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled, Window: window(start, 30),
	})
	detector := conflict.New(repo)

	diag, err := detector.SpecialistConflict(context.Background(), conflict.Candidate{
		SpecialistID: "spec-1",
		Window:       window(start.Add(15*time.Minute), 30),
	})
	require.NoError(t, err)
	assert.True(t, diag.HasConflict)
	assert.Equal(t, domain.ConflictSpecialistSchedule, diag.Kind)
}

func TestSpecialistConflict_ExcludesSelfOnReschedule(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "a1", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled, Window: window(start, 30),
	})
	detector := conflict.New(repo)

	diag, err := detector.SpecialistConflict(context.Background(), conflict.Candidate{
		SpecialistID: "spec-1",
		Window:       window(start, 30),
		ExcludeID:    "a1",
	})
	require.NoError(t, err)
	assert.False(t, diag.HasConflict)
}

func TestSpecialistConflict_NoOverlapPasses(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "a1", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled, Window: window(start, 30),
	})
	detector := conflict.New(repo)

	diag, err := detector.SpecialistConflict(context.Background(), conflict.Candidate{
		SpecialistID: "spec-1",
		Window:       window(start.Add(30*time.Minute), 30),
	})
	require.NoError(t, err)
	assert.False(t, diag.HasConflict)
}

func TestResourceConflict_AlreadyHeldResourceFlagged(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.ResourceBookings = append(repo.ResourceBookings, repository.ResourceBooking{
		AppointmentID: "a1", ResourceID: "res-1", Status: domain.StatusScheduled,
		Window: window(start, 30),
	})
	detector := conflict.New(repo)

	diag, err := detector.ResourceConflict(context.Background(), conflict.Candidate{
		ResourceIDs: []string{"res-1"},
		Window:      window(start.Add(10*time.Minute), 30),
	})
	require.NoError(t, err)
	assert.True(t, diag.HasConflict)
	assert.Equal(t, domain.ConflictResourceAllocation, diag.Kind)
}

func TestResourceConflict_OutsideAvailabilityWindowFlagged(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 20, 0, 0, 0, time.UTC) // 8pm, outside 9-17
	weekday := domain.WeekdayOf(start)
	repo.ResourceAvailability["res-1"] = []domain.ResourceAvailability{
		{ResourceID: "res-1", Weekday: weekday, Hours: domain.HourRange{From: 9 * 60, To: 17 * 60}},
	}
	detector := conflict.New(repo)

	diag, err := detector.ResourceConflict(context.Background(), conflict.Candidate{
		ResourceIDs: []string{"res-1"},
		Window:      window(start, 30),
	})
	require.NoError(t, err)
	assert.True(t, diag.HasConflict)
}

func TestServiceCapacity_UnlimitedAlwaysPasses(t *testing.T) {
	repo := repotest.New()
	detector := conflict.New(repo)
	service := domain.Service{ID: "svc-1"}

	diag, err := detector.ServiceCapacity(context.Background(), conflict.Candidate{ServiceID: "svc-1"}, service)
	require.NoError(t, err)
	assert.False(t, diag.HasConflict)
}

func TestServiceCapacity_AtCeilingFlagged(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Appointments = append(repo.Appointments,
		domain.Appointment{ID: "a1", ServiceID: "svc-1", Status: domain.StatusScheduled, Window: window(start, 30)},
		domain.Appointment{ID: "a2", ServiceID: "svc-1", Status: domain.StatusScheduled, Window: window(start, 30)},
	)
	detector := conflict.New(repo)
	ceiling := 2
	service := domain.Service{ID: "svc-1", MaxConcurrentBookings: &ceiling}

	diag, err := detector.ServiceCapacity(context.Background(), conflict.Candidate{ServiceID: "svc-1", Window: window(start, 30)}, service)
	require.NoError(t, err)
	assert.True(t, diag.HasConflict)
	assert.Equal(t, domain.ConflictServiceCapacity, diag.Kind)
}

func TestDependencyConflict_MissingPrerequisiteFlagged(t *testing.T) {
	repo := repotest.New()
	repo.ServiceDependencies["svc-2"] = []domain.ServiceDependency{
		{DependentServiceID: "svc-2", PrerequisiteServiceID: "svc-1", Type: domain.DependencyPrerequisite},
	}
	detector := conflict.New(repo)

	diag, err := detector.DependencyConflict(context.Background(), conflict.Candidate{
		ServiceID: "svc-2", ShopID: "shop-1", CustomerID: "cust-1",
		Window: window(time.Now(), 30),
	})
	require.NoError(t, err)
	assert.True(t, diag.HasConflict)
}

func TestDependencyConflict_CompletedPrerequisitePasses(t *testing.T) {
	repo := repotest.New()
	repo.ServiceDependencies["svc-2"] = []domain.ServiceDependency{
		{DependentServiceID: "svc-2", PrerequisiteServiceID: "svc-1", Type: domain.DependencyPrerequisite},
	}
	repo.CompletedPrerequisite["cust-1|svc-1|shop-1"] = true
	detector := conflict.New(repo)

	diag, err := detector.DependencyConflict(context.Background(), conflict.Candidate{
		ServiceID: "svc-2", ShopID: "shop-1", CustomerID: "cust-1",
		Window: window(time.Now(), 30),
	})
	require.NoError(t, err)
	assert.False(t, diag.HasConflict)
}

func TestAggregateCheck_ZeroDurationWindowIsValidationError(t *testing.T) {
	repo := repotest.New()
	detector := conflict.New(repo)
	start := time.Now()

	_, err := detector.AggregateCheck(context.Background(), conflict.Candidate{
		Window: domain.Interval{Start: start, End: start},
	}, domain.Service{})
	require.Error(t, err)
}

func TestAggregateCheck_NoConflictsReturnsClean(t *testing.T) {
	repo := repotest.New()
	detector := conflict.New(repo)
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	agg, err := detector.AggregateCheck(context.Background(), conflict.Candidate{
		ServiceID: "svc-1", ShopID: "shop-1", SpecialistID: "spec-1",
		Window: window(start, 30),
	}, domain.Service{ID: "svc-1"})
	require.NoError(t, err)
	assert.False(t, agg.HasConflict)
}
