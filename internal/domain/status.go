package domain

// AppointmentStatus is an explicit enumeration (not a bare string) so that
// transition legality lives in one switch (CanTransitionTo) rather than in
// free-form string comparisons scattered across callers. Go does not check
// that switch for exhaustiveness.
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// LiveStatuses are the statuses that occupy capacity, buffer, and resource
// ownership.
var LiveStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusInProgress}

// IsLive reports whether s occupies a specialist's schedule / a resource /
// a service's capacity ceiling.
func (s AppointmentStatus) IsLive() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	default:
		return false
	}
}

// terminal statuses accept no further transition.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine in spec.md §4.4 permits
// moving from s to next:
//
//	scheduled  -> confirmed, cancelled
//	confirmed  -> in_progress, cancelled
//	in_progress -> completed, no_show
//	completed/cancelled/no_show -> (terminal, nothing)
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusNoShow
	default:
		return false
	}
}

// ServiceStatus mirrors the source's service lifecycle.
type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServiceInactive ServiceStatus = "inactive"
	ServiceDraft    ServiceStatus = "draft"
	ServiceArchived ServiceStatus = "archived"
)

// ServiceLocation enumerates where a service may be delivered.
type ServiceLocation string

const (
	LocationInShop ServiceLocation = "in_shop"
	LocationInHome ServiceLocation = "in_home"
	LocationBoth   ServiceLocation = "both"
)

// SchedulingStrategy selects how the orchestrator places a booking when
// neither time nor specialist is pinned.
type SchedulingStrategy string

const (
	StrategyEarliestAvailable  SchedulingStrategy = "earliest_available"
	StrategyBalancedWorkload   SchedulingStrategy = "balanced_workload"
	StrategyMinimizeWait       SchedulingStrategy = "minimize_wait"
	StrategyResourceEfficient  SchedulingStrategy = "resource_efficient"
)

// ConflictKind enumerates the diagnosis categories the Conflict Detector
// produces.
type ConflictKind string

const (
	ConflictSpecialistSchedule   ConflictKind = "specialist_schedule"
	ConflictResourceAllocation   ConflictKind = "resource_allocation"
	ConflictServiceCapacity      ConflictKind = "service_capacity"
	ConflictServiceDependency    ConflictKind = "service_dependency"
	ConflictSystemError          ConflictKind = "system_error"
	ConflictInsufficientBefore   ConflictKind = "insufficient_buffer_before"
	ConflictInsufficientAfter    ConflictKind = "insufficient_buffer_after"
)

// BufferComplexity scales the transition factor in SuggestOptimalBuffers.
type BufferComplexity string

const (
	ComplexityLow    BufferComplexity = "low"
	ComplexityMedium BufferComplexity = "medium"
	ComplexityHigh   BufferComplexity = "high"
)

// BufferFixKind selects how AdjustForBuffer resolves a violation.
type BufferFixKind string

const (
	FixAuto        BufferFixKind = "auto"
	FixDelayStart  BufferFixKind = "delay_start"
	FixAdvanceEnd  BufferFixKind = "advance_end"
)

// DependencyType enumerates ServiceDependency edge kinds; the source only
// defines "prerequisite" but the type is kept explicit rather than a bare
// string constant, matching the tagged-union re-architecture note.
type DependencyType string

const (
	DependencyPrerequisite DependencyType = "prerequisite"
)
