// Package conflict implements the Conflict Detector: four orthogonal checks
// plus a fixed-order aggregate, grounded on
// original_source/apps/bookingapp/services/conflict_detection_service.py.
package conflict

import (
	"context"
	"fmt"

	"github.com/queueme/scheduling-core/internal/coreerr"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository"
)

// maxReportedCollisions caps how many colliding appointments a diagnosis
// carries, matching "reports up to 5 colliding appointments".
const maxReportedCollisions = 5

// Candidate is the proposed booking being validated.
type Candidate struct {
	ServiceID    string
	ShopID       string
	SpecialistID string
	ResourceIDs  []string
	CustomerID   string
	Window       domain.Interval
	ExcludeID    string // appointment id to exclude from its own conflict set (reschedule)
}

// Diagnosis is the structured result a single check returns; "conflict
// found" is a value, never an error.
type Diagnosis struct {
	HasConflict bool
	Kind        domain.ConflictKind
	Message     string
	Details     []map[string]any
}

func clean(kind domain.ConflictKind) Diagnosis {
	return Diagnosis{HasConflict: false, Kind: kind}
}

// Aggregate is the result of running all four checks in fixed order.
type Aggregate struct {
	HasConflict bool
	Specialist  Diagnosis
	Resource    Diagnosis
	Capacity    Diagnosis
	Dependency  Diagnosis
}

// Detector is the Conflict Detector component.
type Detector struct {
	Repo repository.Repository
}

func New(repo repository.Repository) *Detector {
	return &Detector{Repo: repo}
}

func excludeSelf(appointments []domain.Appointment, excludeID string) []domain.Appointment {
	if excludeID == "" {
		return appointments
	}
	out := appointments[:0:0]
	for _, a := range appointments {
		if a.ID != excludeID {
			out = append(out, a)
		}
	}
	return out
}

// SpecialistConflict fails iff a live appointment of the same specialist
// overlaps the candidate window.
func (d *Detector) SpecialistConflict(ctx context.Context, c Candidate) (Diagnosis, error) {
	if c.SpecialistID == "" {
		return clean(domain.ConflictSpecialistSchedule), nil
	}
	// A day-wide window comfortably covers any overlap; the repository
	// adapter is expected to index on (specialist, start).
	dayStart := c.Window.Start.AddDate(0, 0, -1)
	dayEnd := c.Window.End.AddDate(0, 0, 1)
	appts, err := d.Repo.GetAppointmentsForSpecialist(ctx, c.SpecialistID, dayStart, dayEnd, domain.LiveStatuses)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("specialist conflict lookup: %w", err)
	}
	appts = excludeSelf(appts, c.ExcludeID)

	var collisions []map[string]any
	for _, a := range appts {
		if a.Window.Overlaps(c.Window) {
			collisions = append(collisions, map[string]any{
				"appointment_id": a.ID,
				"start":          a.Window.Start,
				"end":            a.Window.End,
			})
			if len(collisions) >= maxReportedCollisions {
				break
			}
		}
	}
	if len(collisions) == 0 {
		return clean(domain.ConflictSpecialistSchedule), nil
	}
	return Diagnosis{
		HasConflict: true,
		Kind:        domain.ConflictSpecialistSchedule,
		Message:     "specialist has a conflicting appointment",
		Details:     collisions,
	}, nil
}

// ResourceConflict checks, for every resource in the candidate's resource
// set, that ResourceAvailability covers the window and no live
// AppointmentResource on that resource overlaps it.
func (d *Detector) ResourceConflict(ctx context.Context, c Candidate) (Diagnosis, error) {
	var details []map[string]any
	weekday := domain.WeekdayOf(c.Window.Start)

	for _, resourceID := range c.ResourceIDs {
		windows, err := d.Repo.GetResourceAvailability(ctx, resourceID, weekday)
		if err != nil {
			return Diagnosis{}, fmt.Errorf("resource availability lookup: %w", err)
		}
		if len(windows) > 0 && !resourceCovers(windows, c.Window) {
			details = append(details, map[string]any{
				"resource_id": resourceID,
				"reason":      "outside resource availability window",
			})
			continue
		}

		dayStart := c.Window.Start.AddDate(0, 0, -1)
		dayEnd := c.Window.End.AddDate(0, 0, 1)
		bookings, err := d.Repo.GetResourceBookings(ctx, resourceID, dayStart, dayEnd, domain.LiveStatuses)
		if err != nil {
			return Diagnosis{}, fmt.Errorf("resource bookings lookup: %w", err)
		}
		for _, b := range bookings {
			if b.AppointmentID == c.ExcludeID {
				continue
			}
			if b.Window.Overlaps(c.Window) {
				details = append(details, map[string]any{
					"resource_id":    resourceID,
					"appointment_id": b.AppointmentID,
					"reason":         "resource already held",
				})
			}
		}
	}

	if len(details) == 0 {
		return clean(domain.ConflictResourceAllocation), nil
	}
	return Diagnosis{
		HasConflict: true,
		Kind:        domain.ConflictResourceAllocation,
		Message:     "one or more required resources are unavailable",
		Details:     details,
	}, nil
}

func resourceCovers(windows []domain.ResourceAvailability, window domain.Interval) bool {
	for _, w := range windows {
		start := domain.TimeOfDayFrom(window.Start)
		end := domain.TimeOfDayFrom(window.End)
		if !w.Hours.Closed && start >= w.Hours.From && end <= w.Hours.To {
			return true
		}
	}
	return false
}

// ServiceCapacity passes unconditionally if MaxConcurrentBookings is nil or
// <= 0; otherwise it uses point-in-time containment at the candidate's
// start instant, not interval overlap (confirmed against original_source).
func (d *Detector) ServiceCapacity(ctx context.Context, c Candidate, service domain.Service) (Diagnosis, error) {
	if service.MaxConcurrentBookings == nil || *service.MaxConcurrentBookings <= 0 {
		return clean(domain.ConflictServiceCapacity), nil
	}
	count, err := d.Repo.GetLiveAppointmentCountAtInstant(ctx, c.ServiceID, c.Window.Start)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("service capacity lookup: %w", err)
	}
	if count < *service.MaxConcurrentBookings {
		return clean(domain.ConflictServiceCapacity), nil
	}
	return Diagnosis{
		HasConflict: true,
		Kind:        domain.ConflictServiceCapacity,
		Message:     "service is at its concurrent booking ceiling",
		Details: []map[string]any{{
			"at_instant": c.Window.Start,
			"count":      count,
			"ceiling":    *service.MaxConcurrentBookings,
		}},
	}, nil
}

// DependencyConflict requires, for every prerequisite ServiceDependency of
// the candidate's service, at least one completed appointment of the
// prerequisite for the same customer in the same shop ending before the
// candidate's start. Passes trivially if the candidate has no customer.
func (d *Detector) DependencyConflict(ctx context.Context, c Candidate) (Diagnosis, error) {
	if c.CustomerID == "" {
		return clean(domain.ConflictServiceDependency), nil
	}
	deps, err := d.Repo.GetServiceDependencies(ctx, c.ServiceID, domain.DependencyPrerequisite)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("dependency lookup: %w", err)
	}
	var missing []map[string]any
	for _, dep := range deps {
		ok, err := d.Repo.HasCompletedPrerequisite(ctx, c.CustomerID, dep.PrerequisiteServiceID, c.ShopID, c.Window.Start)
		if err != nil {
			return Diagnosis{}, fmt.Errorf("prerequisite lookup: %w", err)
		}
		if !ok {
			missing = append(missing, map[string]any{"prerequisite_service_id": dep.PrerequisiteServiceID})
		}
	}
	if len(missing) == 0 {
		return clean(domain.ConflictServiceDependency), nil
	}
	return Diagnosis{
		HasConflict: true,
		Kind:        domain.ConflictServiceDependency,
		Message:     "a prerequisite service has not been completed",
		Details:     missing,
	}, nil
}

// AggregateCheck runs all four checks in the fixed order (specialist,
// resource, capacity, dependency) so cheap checks can short-circuit first
// from the caller's point of view, though all four always run here since
// every diagnosis is meaningful to the caller.
func (d *Detector) AggregateCheck(ctx context.Context, c Candidate, service domain.Service) (Aggregate, error) {
	if !c.Window.Start.Before(c.Window.End) {
		return Aggregate{}, coreerr.Validation("window", "zero or negative duration window")
	}

	specialist, err := d.SpecialistConflict(ctx, c)
	if err != nil {
		return Aggregate{}, err
	}
	resource, err := d.ResourceConflict(ctx, c)
	if err != nil {
		return Aggregate{}, err
	}
	capacity, err := d.ServiceCapacity(ctx, c, service)
	if err != nil {
		return Aggregate{}, err
	}
	dependency, err := d.DependencyConflict(ctx, c)
	if err != nil {
		return Aggregate{}, err
	}

	return Aggregate{
		HasConflict: specialist.HasConflict || resource.HasConflict || capacity.HasConflict || dependency.HasConflict,
		Specialist:  specialist,
		Resource:    resource,
		Capacity:    capacity,
		Dependency:  dependency,
	}, nil
}
