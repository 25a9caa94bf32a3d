// Package buffer implements the Buffer Manager, grounded on
// original_source/apps/bookingapp/services/buffer_management_service.py.
// Buffer policy is modelled as a constraint on pairs of appointments, not on
// a single appointment: the effective buffer between two neighbours is the
// maximum of the first's post-buffer and the second's pre-buffer.
package buffer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/queueme/scheduling-core/internal/coreerr"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository"
)

// DefaultMinBuffer is the floor applied whenever a service's own buffer is
// zero or unset.
const DefaultMinBuffer = 5

// EffectiveBuffer is max(a, b) — the pairwise rule — falling back to
// DefaultMinBuffer only when that maximum is zero or negative.
func EffectiveBuffer(a, b int) int {
	required := a
	if b > required {
		required = b
	}
	if required <= 0 {
		return DefaultMinBuffer
	}
	return required
}

// Requirements is the result of BufferRequirements.
type Requirements struct {
	Before       int
	After        int
	HasConflict  bool
	ConflictKind domain.ConflictKind
	Details      map[string]any
}

// Suggestion is the result of SuggestOptimalBuffers.
type Suggestion struct {
	Before              int
	After               int
	TotalMinutes        int
	AverageObservedBefore int
	AverageObservedAfter  int
	Rationale           string
}

// Violation is one adjacent-pair deficit from CheckConflicts.
type Violation struct {
	First                  domain.Appointment
	Second                 domain.Appointment
	ActualGapMinutes       int
	RequiredBufferMinutes  int
	DeficitMinutes         int
}

// AdjustResult is the outcome of AdjustForBuffer.
type AdjustResult struct {
	Success           bool
	Message           string
	WasAdjusted       bool
	Appointment       domain.Appointment
	AdjustmentMinutes int
}

// Manager is the Buffer Manager component.
type Manager struct {
	Repo repository.Repository
}

func New(repo repository.Repository) *Manager {
	return &Manager{Repo: repo}
}

func bufferOrDefault(minutes int) int {
	if minutes <= 0 {
		return DefaultMinBuffer
	}
	return minutes
}

func (m *Manager) adjacentAppointments(ctx context.Context, specialistID string, reference time.Time) (prev, next *domain.Appointment, err error) {
	dayStart := reference.AddDate(0, 0, -2)
	dayEnd := reference.AddDate(0, 0, 2)
	appts, err := m.Repo.GetAppointmentsForSpecialist(ctx, specialistID, dayStart, dayEnd, domain.LiveStatuses)
	if err != nil {
		return nil, nil, fmt.Errorf("adjacent appointments lookup: %w", err)
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].Window.Start.Before(appts[j].Window.Start) })

	for i := range appts {
		a := appts[i]
		if !a.Window.End.After(reference) {
			if prev == nil || a.Window.End.After(prev.Window.End) {
				cp := a
				prev = &cp
			}
		}
		if a.Window.Start.After(reference) {
			if next == nil || a.Window.Start.Before(next.Window.Start) {
				cp := a
				next = &cp
			}
		}
	}
	return prev, next, nil
}

// BufferRequirements computes effective buffers for a candidate appointment
// start and, if a specialist is given, flags an insufficient-buffer
// conflict against its neighbours.
func (m *Manager) BufferRequirements(ctx context.Context, service domain.Service, start time.Time, specialistID string) (Requirements, error) {
	before := bufferOrDefault(service.BufferBeforeMinutes)
	after := bufferOrDefault(service.BufferAfterMinutes)

	if specialistID == "" {
		return Requirements{Before: before, After: after}, nil
	}

	prev, next, err := m.adjacentAppointments(ctx, specialistID, start)
	if err != nil {
		return Requirements{}, err
	}

	if prev != nil {
		prevAfter := 0
		if prevService, err := m.Repo.GetService(ctx, prev.ServiceID); err != nil {
			return Requirements{}, fmt.Errorf("previous appointment service lookup: %w", err)
		} else if prevService != nil {
			prevAfter = prevService.BufferAfterMinutes
		}
		gap := start.Sub(prev.Window.End).Minutes()
		required := EffectiveBuffer(bufferOrDefault(prevAfter), before)
		if gap < float64(required) {
			return Requirements{
				Before: before, After: after,
				HasConflict:  true,
				ConflictKind: domain.ConflictInsufficientBefore,
				Details: map[string]any{
					"previous_appointment_id": prev.ID,
					"previous_end_time":       prev.Window.End,
					"gap_minutes":             gap,
					"required_buffer":         required,
				},
			}, nil
		}
	}

	link, err := m.Repo.GetSpecialistService(ctx, specialistID, service.ID)
	if err != nil {
		return Requirements{}, fmt.Errorf("specialist service lookup: %w", err)
	}
	end := start.Add(time.Duration(service.EffectiveDuration(link)) * time.Minute)
	if next != nil {
		nextBefore := 0
		if nextService, err := m.Repo.GetService(ctx, next.ServiceID); err != nil {
			return Requirements{}, fmt.Errorf("next appointment service lookup: %w", err)
		} else if nextService != nil {
			nextBefore = nextService.BufferBeforeMinutes
		}
		gap := next.Window.Start.Sub(end).Minutes()
		required := EffectiveBuffer(after, bufferOrDefault(nextBefore))
		if gap < float64(required) {
			return Requirements{
				Before: before, After: after,
				HasConflict:  true,
				ConflictKind: domain.ConflictInsufficientAfter,
				Details: map[string]any{
					"next_appointment_id": next.ID,
					"next_start_time":     next.Window.Start,
					"gap_minutes":         gap,
					"required_buffer":     required,
				},
			}, nil
		}
	}

	return Requirements{Before: before, After: after}, nil
}

// SuggestOptimalBuffers computes the additive duration-band/transition-factor
// formula and bundles a human-readable rationale. The AverageObserved
// fields carry the service's configured buffers (see
// averageObservedBuffers); appointment history is not read.
func (m *Manager) SuggestOptimalBuffers(ctx context.Context, service domain.Service, preparation, cleanup bool, complexity domain.BufferComplexity) (Suggestion, error) {
	baseBefore := DefaultMinBuffer
	baseAfter := DefaultMinBuffer

	band := func(duration int) int {
		switch {
		case duration <= 15:
			return 5
		case duration <= 30:
			return 10
		default:
			return 15
		}
	}

	if preparation {
		baseBefore += band(service.DurationMinutes)
	}
	if cleanup {
		baseAfter += band(service.DurationMinutes)
	}

	var factor float64
	switch complexity {
	case domain.ComplexityHigh:
		factor = 1.5
	case domain.ComplexityLow:
		factor = 0.8
	default:
		factor = 1.0
	}

	suggestedBefore := roundToInt(float64(baseBefore) * factor)
	suggestedAfter := roundToInt(float64(baseAfter) * factor)

	avgBefore, avgAfter, err := m.averageObservedBuffers(ctx, service)
	if err != nil {
		return Suggestion{}, err
	}

	return Suggestion{
		Before:                suggestedBefore,
		After:                 suggestedAfter,
		TotalMinutes:          suggestedBefore + suggestedAfter,
		AverageObservedBefore: avgBefore,
		AverageObservedAfter:  avgAfter,
		Rationale:             explain(service, suggestedBefore, suggestedAfter, preparation, cleanup, complexity),
	}, nil
}

func roundToInt(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return -int(-f + 0.5)
}

// averageObservedBuffers is a diagnostic only, never gating a booking. It
// returns the service's own configured buffers (with the DefaultMinBuffer
// floor); it does not scan completed appointments, and the repository port
// exposes no pre-aggregated average. Grounded on _get_average_buffer_times
// in original_source, which averages over the last 100 completed
// appointments.
func (m *Manager) averageObservedBuffers(ctx context.Context, service domain.Service) (before, after int, err error) {
	return bufferOrDefault(service.BufferBeforeMinutes), bufferOrDefault(service.BufferAfterMinutes), nil
}

func explain(service domain.Service, before, after int, preparation, cleanup bool, complexity domain.BufferComplexity) string {
	parts := []string{fmt.Sprintf("For %s (%d minutes)", service.Name, service.DurationMinutes)}

	var beforeReasons []string
	if preparation {
		beforeReasons = append(beforeReasons, "preparation time")
	}
	switch complexity {
	case domain.ComplexityHigh:
		beforeReasons = append(beforeReasons, "complex transition")
	case domain.ComplexityMedium:
		beforeReasons = append(beforeReasons, "standard transition")
	}
	if len(beforeReasons) > 0 {
		parts = append(parts, fmt.Sprintf("Buffer before: %d minutes recommended for %s", before, joinAnd(beforeReasons)))
	} else {
		parts = append(parts, fmt.Sprintf("Buffer before: %d minutes (minimal transition)", before))
	}

	var afterReasons []string
	if cleanup {
		afterReasons = append(afterReasons, "cleanup time")
	}
	switch complexity {
	case domain.ComplexityHigh:
		afterReasons = append(afterReasons, "complex transition")
	case domain.ComplexityMedium:
		afterReasons = append(afterReasons, "standard transition")
	}
	if len(afterReasons) > 0 {
		parts = append(parts, fmt.Sprintf("Buffer after: %d minutes recommended for %s", after, joinAnd(afterReasons)))
	} else {
		parts = append(parts, fmt.Sprintf("Buffer after: %d minutes (minimal transition)", after))
	}

	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ". "
		}
		out += p
	}
	return out + "."
}

func joinAnd(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		out := parts[0]
		for _, p := range parts[1:] {
			out += " and " + p
		}
		return out
	}
}

// CheckConflicts scans a specialist's live appointments for a day in
// chronological order and emits a Violation for every adjacent pair whose
// actual gap is smaller than the effective required buffer.
func (m *Manager) CheckConflicts(ctx context.Context, specialistID string, date time.Time, excludeID string) ([]Violation, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := m.Repo.GetAppointmentsForSpecialist(ctx, specialistID, dayStart, dayEnd, domain.LiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("buffer conflict scan: %w", err)
	}
	var filtered []domain.Appointment
	for _, a := range appts {
		if a.ID != excludeID {
			filtered = append(filtered, a)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Window.Start.Before(filtered[j].Window.Start) })

	var violations []Violation
	for i := 1; i < len(filtered); i++ {
		prev := filtered[i-1]
		cur := filtered[i]

		prevService, err := m.Repo.GetService(ctx, prev.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("buffer conflict scan: service lookup: %w", err)
		}
		curService, err := m.Repo.GetService(ctx, cur.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("buffer conflict scan: service lookup: %w", err)
		}

		required := EffectiveBuffer(bufferOrDefault(prevService.BufferAfterMinutes), bufferOrDefault(curService.BufferBeforeMinutes))
		actual := cur.Window.Start.Sub(prev.Window.End).Minutes()
		if actual < float64(required) {
			violations = append(violations, Violation{
				First:                 prev,
				Second:                cur,
				ActualGapMinutes:      int(actual),
				RequiredBufferMinutes: required,
				DeficitMinutes:        required - int(actual),
			})
		}
	}
	return violations, nil
}

// AdjustForBuffer resolves an appointment's buffer conflicts with its
// neighbours by delaying its start or advancing (shortening) its end.
// advance_end may shorten the appointment by at most min(5, duration-15)
// minutes; a shorter result is refused with ErrTooShort. auto picks
// delay-start when the before-deficit is the larger (or equal) one, else
// advance-end; a fix that would create a new conflict on the opposite side
// is refused rather than chained.
func (m *Manager) AdjustForBuffer(ctx context.Context, appointmentID string, fix domain.BufferFixKind) (AdjustResult, error) {
	appt, err := m.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return AdjustResult{}, fmt.Errorf("adjust for buffer: %w", err)
	}
	if appt == nil {
		return AdjustResult{}, coreerr.NotFound("appointment", appointmentID)
	}
	service, err := m.Repo.GetService(ctx, appt.ServiceID)
	if err != nil {
		return AdjustResult{}, fmt.Errorf("adjust for buffer: %w", err)
	}

	prev, next, err := m.adjacentAppointments(ctx, appt.SpecialistID, appt.Window.Start)
	if err != nil {
		return AdjustResult{}, err
	}

	var beforeConflict, afterConflict bool
	var beforeDeficit, afterDeficit float64
	var beforeRequired, afterRequired int

	if prev != nil {
		prevService, err := m.Repo.GetService(ctx, prev.ServiceID)
		if err != nil {
			return AdjustResult{}, err
		}
		beforeRequired = EffectiveBuffer(bufferOrDefault(prevService.BufferAfterMinutes), bufferOrDefault(service.BufferBeforeMinutes))
		actual := appt.Window.Start.Sub(prev.Window.End).Minutes()
		if actual < float64(beforeRequired) {
			beforeConflict = true
			beforeDeficit = float64(beforeRequired) - actual
		}
	}
	if next != nil {
		nextService, err := m.Repo.GetService(ctx, next.ServiceID)
		if err != nil {
			return AdjustResult{}, err
		}
		afterRequired = EffectiveBuffer(bufferOrDefault(service.BufferAfterMinutes), bufferOrDefault(nextService.BufferBeforeMinutes))
		actual := next.Window.Start.Sub(appt.Window.End).Minutes()
		if actual < float64(afterRequired) {
			afterConflict = true
			afterDeficit = float64(afterRequired) - actual
		}
	}

	if !beforeConflict && !afterConflict {
		return AdjustResult{Success: true, Message: "no buffer conflicts detected, no adjustment needed", Appointment: *appt}, nil
	}

	resolved := fix
	if fix == domain.FixAuto {
		switch {
		case beforeConflict && !afterConflict:
			resolved = domain.FixDelayStart
		case afterConflict && !beforeConflict:
			resolved = domain.FixAdvanceEnd
		case beforeDeficit >= afterDeficit:
			resolved = domain.FixDelayStart
		default:
			resolved = domain.FixAdvanceEnd
		}
	}

	switch resolved {
	case domain.FixDelayStart:
		if !beforeConflict {
			return AdjustResult{Success: false, Message: "no buffer before conflict to resolve", Appointment: *appt}, nil
		}
		newStart := prev.Window.End.Add(time.Duration(beforeRequired) * time.Minute)
		newEnd := newStart.Add(appt.Window.Duration())

		if next != nil {
			requiredAfter := afterRequired
			if newEnd.Add(time.Duration(requiredAfter)*time.Minute).After(next.Window.Start) {
				return AdjustResult{
					Success: false,
					Message: "delaying the start would create a conflict with the next appointment",
				}, nil
			}
		}

		appt.Window = domain.Interval{Start: newStart, End: newEnd}
		return AdjustResult{Success: true, WasAdjusted: true, Appointment: *appt, AdjustmentMinutes: int(beforeDeficit),
			Message: fmt.Sprintf("appointment delayed by %d minutes to ensure buffer time", int(beforeDeficit))}, nil

	case domain.FixAdvanceEnd:
		if !afterConflict {
			return AdjustResult{Success: false, Message: "no buffer after conflict to resolve", Appointment: *appt}, nil
		}
		newEnd := next.Window.Start.Add(-time.Duration(afterRequired) * time.Minute)

		link, err := m.Repo.GetSpecialistService(ctx, appt.SpecialistID, appt.ServiceID)
		if err != nil {
			return AdjustResult{}, fmt.Errorf("specialist service lookup: %w", err)
		}
		duration := service.EffectiveDuration(link)

		trimCap := 5
		if duration-15 < trimCap {
			trimCap = duration - 15
		}
		minDuration := duration - trimCap

		if newEnd.Sub(appt.Window.Start) < time.Duration(minDuration)*time.Minute {
			return AdjustResult{}, coreerr.ErrTooShort
		}
		appt.Window = domain.Interval{Start: appt.Window.Start, End: newEnd}
		return AdjustResult{Success: true, WasAdjusted: true, Appointment: *appt, AdjustmentMinutes: int(afterDeficit),
			Message: fmt.Sprintf("appointment shortened by %d minutes to ensure buffer time", int(afterDeficit))}, nil

	default:
		return AdjustResult{}, coreerr.Validation("fix", fmt.Sprintf("unknown fix type %q", fix))
	}
}
