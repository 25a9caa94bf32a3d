package buffer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueme/scheduling-core/internal/buffer"
	"github.com/queueme/scheduling-core/internal/coreerr"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository/repotest"
)

func TestEffectiveBuffer_TakesTheLarger(t *testing.T) {
	assert.Equal(t, 10, buffer.EffectiveBuffer(5, 10))
	assert.Equal(t, 10, buffer.EffectiveBuffer(10, 5))
}

func TestEffectiveBuffer_FloorsAtDefault(t *testing.T) {
	assert.Equal(t, buffer.DefaultMinBuffer, buffer.EffectiveBuffer(0, 0))
	assert.Equal(t, buffer.DefaultMinBuffer, buffer.EffectiveBuffer(-5, 0))
}

func TestBufferRequirements_NoSpecialistReturnsConfiguredBuffers(t *testing.T) {
	repo := repotest.New()
	mgr := buffer.New(repo)
	service := domain.Service{BufferBeforeMinutes: 10, BufferAfterMinutes: 15}

	req, err := mgr.BufferRequirements(context.Background(), service, time.Now(), "")
	require.NoError(t, err)
	assert.Equal(t, 10, req.Before)
	assert.Equal(t, 15, req.After)
	assert.False(t, req.HasConflict)
}

func TestBufferRequirements_InsufficientGapBeforeFlagged(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "prev", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled,
		Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)},
	})
	mgr := buffer.New(repo)
	service := domain.Service{DurationMinutes: 30, BufferBeforeMinutes: 10, BufferAfterMinutes: 10}

	candidateStart := start.Add(30*time.Minute + 2*time.Minute) // only 2 minutes of gap
	req, err := mgr.BufferRequirements(context.Background(), service, candidateStart, "spec-1")
	require.NoError(t, err)
	assert.True(t, req.HasConflict)
	assert.Equal(t, domain.ConflictInsufficientBefore, req.ConflictKind)
}

func TestBufferRequirements_SufficientGapPasses(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "prev", SpecialistID: "spec-1", ServiceID: "svc-1",
		Status: domain.StatusScheduled,
		Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)},
	})
	mgr := buffer.New(repo)
	service := domain.Service{DurationMinutes: 30, BufferBeforeMinutes: 10, BufferAfterMinutes: 10}

	candidateStart := start.Add(45 * time.Minute) // 15 minutes of gap
	req, err := mgr.BufferRequirements(context.Background(), service, candidateStart, "spec-1")
	require.NoError(t, err)
	assert.False(t, req.HasConflict)
}

func TestCheckConflicts_FlagsAdjacentPairWithDeficit(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Services["svc-1"] = domain.Service{ID: "svc-1", BufferAfterMinutes: 10}
	repo.Services["svc-2"] = domain.Service{ID: "svc-2", BufferBeforeMinutes: 10}

	repo.Appointments = append(repo.Appointments,
		domain.Appointment{ID: "a1", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)}},
		domain.Appointment{ID: "a2", SpecialistID: "spec-1", ServiceID: "svc-2", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start.Add(33 * time.Minute), End: start.Add(63 * time.Minute)}},
	)
	mgr := buffer.New(repo)

	violations, err := mgr.CheckConflicts(context.Background(), "spec-1", start, "")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "a1", violations[0].First.ID)
	assert.Equal(t, "a2", violations[0].Second.ID)
	assert.Equal(t, 7, violations[0].DeficitMinutes)
}

func TestCheckConflicts_ExcludesGivenAppointment(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Services["svc-1"] = domain.Service{ID: "svc-1", BufferAfterMinutes: 10}
	repo.Services["svc-2"] = domain.Service{ID: "svc-2", BufferBeforeMinutes: 10}
	repo.Appointments = append(repo.Appointments,
		domain.Appointment{ID: "a1", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)}},
		domain.Appointment{ID: "a2", SpecialistID: "spec-1", ServiceID: "svc-2", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start.Add(33 * time.Minute), End: start.Add(63 * time.Minute)}},
	)
	mgr := buffer.New(repo)

	violations, err := mgr.CheckConflicts(context.Background(), "spec-1", start, "a2")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestAdjustForBuffer_NoConflictNeedsNoAdjustment(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Services["svc-1"] = domain.Service{ID: "svc-1", DurationMinutes: 30}
	repo.Appointments = append(repo.Appointments, domain.Appointment{
		ID: "appt", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
		Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)},
	})
	mgr := buffer.New(repo)

	result, err := mgr.AdjustForBuffer(context.Background(), "appt", domain.FixAuto)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.WasAdjusted)
}

func TestAdjustForBuffer_DelayStartResolvesBeforeConflict(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Services["svc-1"] = domain.Service{ID: "svc-1", DurationMinutes: 30, BufferBeforeMinutes: 10, BufferAfterMinutes: 10}
	repo.Appointments = append(repo.Appointments,
		domain.Appointment{ID: "prev", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start, End: start.Add(30 * time.Minute)}},
		domain.Appointment{ID: "appt", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start.Add(32 * time.Minute), End: start.Add(62 * time.Minute)}},
	)
	mgr := buffer.New(repo)

	result, err := mgr.AdjustForBuffer(context.Background(), "appt", domain.FixDelayStart)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.WasAdjusted)
	assert.True(t, result.Appointment.Window.Start.After(start.Add(32*time.Minute)))
}

func TestAdjustForBuffer_AdvanceEndRefusesWhenTooShort(t *testing.T) {
	repo := repotest.New()
	start := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	repo.Services["svc-1"] = domain.Service{ID: "svc-1", DurationMinutes: 20, BufferAfterMinutes: 10}
	repo.Appointments = append(repo.Appointments,
		domain.Appointment{ID: "appt", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start, End: start.Add(20 * time.Minute)}},
		domain.Appointment{ID: "next", SpecialistID: "spec-1", ServiceID: "svc-1", Status: domain.StatusScheduled,
			Window: domain.Interval{Start: start.Add(22 * time.Minute), End: start.Add(42 * time.Minute)}},
	)
	mgr := buffer.New(repo)

	_, err := mgr.AdjustForBuffer(context.Background(), "appt", domain.FixAdvanceEnd)
	require.Error(t, err)
	assert.ErrorIs(t, err, coreerr.ErrTooShort)
}

func TestAdjustForBuffer_UnknownAppointmentIsNotFound(t *testing.T) {
	repo := repotest.New()
	mgr := buffer.New(repo)

	_, err := mgr.AdjustForBuffer(context.Background(), "missing", domain.FixAuto)
	require.Error(t, err)
	assert.True(t, coreerr.IsNotFound(err))
}

func TestSuggestOptimalBuffers_HighComplexityScalesUp(t *testing.T) {
	repo := repotest.New()
	mgr := buffer.New(repo)
	service := domain.Service{Name: "Massage", DurationMinutes: 60}

	low, err := mgr.SuggestOptimalBuffers(context.Background(), service, true, true, domain.ComplexityLow)
	require.NoError(t, err)
	high, err := mgr.SuggestOptimalBuffers(context.Background(), service, true, true, domain.ComplexityHigh)
	require.NoError(t, err)

	assert.Greater(t, high.TotalMinutes, low.TotalMinutes)
}
