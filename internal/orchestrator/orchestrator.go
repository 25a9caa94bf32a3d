// Package orchestrator implements the Scheduling Orchestrator: the
// highest-level component, composing the Availability Engine, Conflict
// Detector, and Buffer Manager into whole booking operations. Grounded on
// original_source/apps/bookingapp/services/scheduling_optimizer.py.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"time"

	"github.com/queueme/scheduling-core/internal/availability"
	"github.com/queueme/scheduling-core/internal/buffer"
	"github.com/queueme/scheduling-core/internal/clock"
	"github.com/queueme/scheduling-core/internal/conflict"
	"github.com/queueme/scheduling-core/internal/coreerr"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/notify"
	"github.com/queueme/scheduling-core/internal/prediction"
	"github.com/queueme/scheduling-core/internal/repository"
	"github.com/queueme/scheduling-core/pkg/logger"
)

// daysToCheckAhead bounds the forward scan when a pinned date has no
// availability, mirroring the "next 7 days" fallback.
const daysToCheckAhead = 7

// alternativesLimit caps how many alternative slots a failed booking surfaces.
const alternativesLimit = 3

// Request describes a single-service booking attempt. Time and Specialist
// are both optional; which combination is set selects the dispatch branch.
type Request struct {
	ShopID       string
	ServiceID    string
	CustomerID   string
	TargetDate   time.Time
	TargetTime   *domain.TimeOfDay
	SpecialistID string
	Strategy     domain.SchedulingStrategy
	Notes        string
	PackageID    *string
}

// Result is the outcome of a booking attempt; Success false never means an
// error occurred, only that no admissible placement could be found or a
// conflict blocked it.
type Result struct {
	Success      bool
	Message      string
	Appointment  domain.Appointment
	Conflicts    *conflict.Aggregate
	Alternatives []domain.Slot
	NextDate     *time.Time
}

// MultiResult is the outcome of booking a sequence of services.
type MultiResult struct {
	Success      bool
	Message      string
	Appointments []domain.Appointment
	Partial      []Result
}

// Orchestrator is the Scheduling Orchestrator component.
type Orchestrator struct {
	Repo         repository.Repository
	Availability *availability.Engine
	Conflicts    *conflict.Detector
	Buffers      *buffer.Manager
	Notify       notify.Notifier
	Predict      prediction.Consumer
	Clock        clock.Clock
	Log          *logger.Logger

	// BookingTimeout bounds Schedule/Reschedule; exceeding it aborts before
	// commit and returns coreerr.ErrTimeout. Zero disables the deadline.
	BookingTimeout time.Duration
	// TransientRetryMax bounds how many times a Retryable commit error is
	// retried, with small randomized backoff, before it is surfaced.
	TransientRetryMax int
}

func New(repo repository.Repository, avail *availability.Engine, conflicts *conflict.Detector, buffers *buffer.Manager, notifier notify.Notifier, predictor prediction.Consumer, clk clock.Clock, log *logger.Logger, bookingTimeout time.Duration, transientRetryMax int) *Orchestrator {
	if clk == nil {
		clk = clock.System{}
	}
	if notifier == nil {
		notifier = notify.Null{}
	}
	if predictor == nil {
		predictor = prediction.Null{}
	}
	return &Orchestrator{
		Repo: repo, Availability: avail, Conflicts: conflicts, Buffers: buffers,
		Notify: notifier, Predict: predictor, Clock: clk, Log: log,
		BookingTimeout: bookingTimeout, TransientRetryMax: transientRetryMax,
	}
}

// withDeadline wraps ctx with BookingTimeout, if one is configured.
func (o *Orchestrator) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.BookingTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.BookingTimeout)
}

// commitOrRetry commits tx, retrying a Retryable failure up to
// TransientRetryMax times with a small randomized backoff between attempts.
// It refuses to commit at all once ctx has already passed its deadline,
// rolling back instead so a timed-out booking never partially lands.
func (o *Orchestrator) commitOrRetry(ctx context.Context, tx repository.Tx) error {
	if ctx.Err() != nil {
		_ = o.Repo.Rollback(ctx, tx)
		return fmt.Errorf("commit: %w", coreerr.ErrTimeout)
	}

	maxAttempts := o.TransientRetryMax + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = o.Repo.Commit(ctx, tx)
		if err == nil || !coreerr.IsRetryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		backoff := time.Duration(10+rand.Intn(40)) * time.Millisecond * time.Duration(attempt+1)
		select {
		case <-ctx.Done():
			_ = o.Repo.Rollback(ctx, tx)
			return fmt.Errorf("commit: %w", coreerr.ErrTimeout)
		case <-time.After(backoff):
		}
	}
	return err
}

// effectiveDuration resolves the specialist-service custom-duration
// override, if any, per domain.Service.EffectiveDuration.
func (o *Orchestrator) effectiveDuration(ctx context.Context, service domain.Service, specialistID string) (int, error) {
	if specialistID == "" {
		return service.DurationMinutes, nil
	}
	link, err := o.Repo.GetSpecialistService(ctx, specialistID, service.ID)
	if err != nil {
		return 0, fmt.Errorf("specialist service lookup: %w", err)
	}
	return service.EffectiveDuration(link), nil
}

func fail(msg string) Result { return Result{Success: false, Message: msg} }

// Schedule dispatches on which of TargetTime/SpecialistID are pinned:
// both pinned verifies and books; time-only finds a specialist at that
// time; specialist-only finds that specialist's first slot; neither pinned
// delegates to the requested Strategy.
func (o *Orchestrator) Schedule(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	service, err := o.Repo.GetService(ctx, req.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("schedule: service lookup: %w", err)
	}
	if service == nil {
		return Result{}, coreerr.NotFound("service", req.ServiceID)
	}

	switch {
	case req.TargetTime != nil && req.SpecialistID != "":
		start := req.TargetTime.On(req.TargetDate, time.UTC)
		duration, err := o.effectiveDuration(ctx, *service, req.SpecialistID)
		if err != nil {
			return Result{}, err
		}
		end := start.Add(time.Duration(duration) * time.Minute)

		qualified, err := o.Repo.GetSpecialistsForService(ctx, req.ServiceID)
		if err != nil {
			return Result{}, fmt.Errorf("schedule: specialists lookup: %w", err)
		}
		if !slices.ContainsFunc(qualified, func(s domain.Specialist) bool { return s.ID == req.SpecialistID }) {
			return fail("cannot schedule: specialist does not offer this service"), nil
		}

		agg, err := o.Conflicts.AggregateCheck(ctx, conflict.Candidate{
			ServiceID: req.ServiceID, ShopID: req.ShopID, SpecialistID: req.SpecialistID,
			CustomerID: req.CustomerID, Window: domain.Interval{Start: start, End: end},
		}, *service)
		if err != nil {
			return Result{}, err
		}
		if agg.HasConflict {
			return Result{Success: false, Message: "cannot schedule: conflict detected", Conflicts: &agg}, nil
		}
		return o.createAppointment(ctx, req, req.SpecialistID, start, end, *service)

	case req.TargetTime != nil:
		start := req.TargetTime.On(req.TargetDate, time.UTC)

		specialistID, err := o.Availability.NextAvailableSpecialist(ctx, req.ShopID, req.ServiceID, req.TargetDate, start)
		if err != nil {
			return Result{}, err
		}
		if specialistID == "" {
			alts, err := o.suggestAlternativeTimes(ctx, req.ShopID, req.ServiceID, req.TargetDate, alternativesLimit)
			if err != nil {
				return Result{}, err
			}
			return Result{Success: false, Message: "no specialists available at the requested time", Alternatives: alts}, nil
		}
		duration, err := o.effectiveDuration(ctx, *service, specialistID)
		if err != nil {
			return Result{}, err
		}
		end := start.Add(time.Duration(duration) * time.Minute)
		return o.createAppointment(ctx, req, specialistID, start, end, *service)

	case req.SpecialistID != "":
		slots, err := o.Availability.SlotsForSpecialist(ctx, req.ServiceID, req.SpecialistID, req.TargetDate)
		if err != nil {
			return Result{}, err
		}
		if len(slots) == 0 {
			next, err := o.Availability.EarliestAvailable(ctx, req.ServiceID, req.SpecialistID, req.TargetDate.AddDate(0, 0, 1), daysToCheckAhead)
			if err != nil {
				return Result{}, err
			}
			if next != nil {
				d := next.Start
				return Result{Success: false, Message: fmt.Sprintf("no availability with this specialist on %s", req.TargetDate.Format("2006-01-02")), NextDate: &d}, nil
			}
			return fail(fmt.Sprintf("no availability with this specialist in the next %d days", daysToCheckAhead)), nil
		}
		slot := slots[0]
		return o.createAppointment(ctx, req, req.SpecialistID, slot.Start, slot.End, *service)

	default:
		return o.scheduleWithStrategy(ctx, req, *service)
	}
}

func (o *Orchestrator) scheduleWithStrategy(ctx context.Context, req Request, service domain.Service) (Result, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = domain.StrategyEarliestAvailable
	}

	switch strategy {
	case domain.StrategyEarliestAvailable:
		return o.scheduleEarliestAvailable(ctx, req, service)
	case domain.StrategyBalancedWorkload:
		return o.scheduleBalancedWorkload(ctx, req, service)
	case domain.StrategyMinimizeWait:
		return o.scheduleMinimizeWait(ctx, req, service)
	case domain.StrategyResourceEfficient:
		return o.scheduleResourceEfficient(ctx, req, service)
	default:
		return o.scheduleEarliestAvailable(ctx, req, service)
	}
}

func (o *Orchestrator) scheduleEarliestAvailable(ctx context.Context, req Request, service domain.Service) (Result, error) {
	slot, err := o.Availability.EarliestAvailable(ctx, req.ServiceID, "", req.TargetDate, 1)
	if err != nil {
		return Result{}, err
	}
	if slot == nil {
		slot, err = o.Availability.EarliestAvailable(ctx, req.ServiceID, "", req.TargetDate.AddDate(0, 0, 1), daysToCheckAhead)
		if err != nil {
			return Result{}, err
		}
		if slot == nil {
			return fail(fmt.Sprintf("no availability found for the next %d days", daysToCheckAhead)), nil
		}
	}
	specialistID, err := o.Availability.NextAvailableSpecialist(ctx, req.ShopID, req.ServiceID, slot.Start, slot.Start)
	if err != nil {
		return Result{}, err
	}
	if specialistID == "" {
		specialistID = slot.SpecialistID
	}
	return o.createAppointment(ctx, req, specialistID, slot.Start, slot.End, service)
}

func (o *Orchestrator) scheduleBalancedWorkload(ctx context.Context, req Request, service domain.Service) (Result, error) {
	specialists, err := o.Repo.GetSpecialistsForService(ctx, req.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("balanced workload: specialists lookup: %w", err)
	}
	if len(specialists) == 0 {
		return fail("no specialists available for this service"), nil
	}

	load, err := o.specialistWorkload(ctx, specialists, req.TargetDate)
	if err != nil {
		return Result{}, err
	}
	sort.Slice(specialists, func(i, j int) bool { return load[specialists[i].ID] < load[specialists[j].ID] })

	for _, s := range specialists {
		slots, err := o.Availability.SlotsForSpecialist(ctx, req.ServiceID, s.ID, req.TargetDate)
		if err != nil {
			return Result{}, err
		}
		if len(slots) > 0 {
			slot := slots[0]
			return o.createAppointment(ctx, req, s.ID, slot.Start, slot.End, service)
		}
	}

	alts, err := o.suggestAlternativeTimes(ctx, req.ShopID, req.ServiceID, req.TargetDate.AddDate(0, 0, 1), alternativesLimit)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: false, Message: "no availability found with any specialist on the target date", Alternatives: alts}, nil
}

func (o *Orchestrator) specialistWorkload(ctx context.Context, specialists []domain.Specialist, date time.Time) (map[string]int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	load := make(map[string]int, len(specialists))
	for _, s := range specialists {
		appts, err := o.Repo.GetAppointmentsForSpecialist(ctx, s.ID, dayStart, dayEnd, domain.LiveStatuses)
		if err != nil {
			return nil, fmt.Errorf("specialist workload: %w", err)
		}
		load[s.ID] = len(appts)
	}
	return load, nil
}

func (o *Orchestrator) scheduleMinimizeWait(ctx context.Context, req Request, service domain.Service) (Result, error) {
	specialists, err := o.Repo.GetSpecialistsForService(ctx, req.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("minimize wait: specialists lookup: %w", err)
	}

	type candidate struct {
		start, end   time.Time
		specialistID string
	}
	var all []candidate
	for _, s := range specialists {
		slots, err := o.Availability.SlotsForSpecialist(ctx, req.ServiceID, s.ID, req.TargetDate)
		if err != nil {
			return Result{}, err
		}
		for _, slot := range slots {
			all = append(all, candidate{slot.Start, slot.End, s.ID})
		}
	}
	if len(all) == 0 {
		alts, err := o.suggestAlternativeTimes(ctx, req.ShopID, req.ServiceID, req.TargetDate.AddDate(0, 0, 1), alternativesLimit)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: false, Message: "no availability found on the target date", Alternatives: alts}, nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].start.Before(all[j].start) })
	best := all[0]
	return o.createAppointment(ctx, req, best.specialistID, best.start, best.end, service)
}

func (o *Orchestrator) scheduleResourceEfficient(ctx context.Context, req Request, service domain.Service) (Result, error) {
	requirements, err := o.Repo.GetServiceResourceRequirements(ctx, req.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("resource efficient: requirements lookup: %w", err)
	}
	if len(requirements) == 0 {
		return o.scheduleEarliestAvailable(ctx, req, service)
	}

	var resourceIDs []string
	for _, r := range requirements {
		resources, err := o.Repo.GetResourcesByType(ctx, req.ShopID, r.ResourceType)
		if err != nil {
			return Result{}, fmt.Errorf("resource efficient: resources-by-type lookup: %w", err)
		}
		for _, res := range resources {
			resourceIDs = append(resourceIDs, res.ID)
		}
	}

	specialists, err := o.Repo.GetSpecialistsForService(ctx, req.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("resource efficient: specialists lookup: %w", err)
	}

	resourceWindows, err := o.resourceAvailability(ctx, resourceIDs, req.TargetDate)
	if err != nil {
		return Result{}, err
	}

	var bestStart, bestEnd time.Time
	var bestSpecialist string
	bestScore := -1 << 31
	found := false

	for _, s := range specialists {
		slots, err := o.Availability.SlotsForSpecialist(ctx, req.ServiceID, s.ID, req.TargetDate)
		if err != nil {
			return Result{}, err
		}
		for _, slot := range slots {
			score := resourceEfficiencyScore(slot.Start, slot.End, resourceWindows)
			if !found || score > bestScore {
				bestStart, bestEnd, bestSpecialist, bestScore, found = slot.Start, slot.End, s.ID, score, true
			}
		}
	}

	if !found || bestScore <= 0 {
		return o.scheduleEarliestAvailable(ctx, req, service)
	}
	return o.createAppointment(ctx, req, bestSpecialist, bestStart, bestEnd, service)
}

// resourceAvailability returns each resource's existing live booking windows
// for the day, keyed by resource id.
func (o *Orchestrator) resourceAvailability(ctx context.Context, resourceIDs []string, date time.Time) (map[string][]domain.Interval, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := make(map[string][]domain.Interval, len(resourceIDs))
	for _, id := range resourceIDs {
		bookings, err := o.Repo.GetResourceBookings(ctx, id, dayStart, dayEnd, domain.LiveStatuses)
		if err != nil {
			return nil, fmt.Errorf("resource availability: %w", err)
		}
		for _, b := range bookings {
			out[id] = append(out[id], b.Window)
		}
	}
	return out, nil
}

// resourceEfficiencyScore rewards slots that sit snugly before or after an
// existing resource booking (minimizing fragmentation) and penalizes
// overlap: +10 if the adjoining gap is under 15 minutes, +5 under 30, +1
// under 60; -20 for an outright overlap. Grounded on
// _calculate_resource_efficiency_score.
func resourceEfficiencyScore(slotStart, slotEnd time.Time, resourceWindows map[string][]domain.Interval) int {
	score := 0
	for _, windows := range resourceWindows {
		for _, w := range windows {
			if slotStart.Before(w.End) && slotEnd.After(w.Start) {
				score -= 20
				continue
			}
			var gap time.Duration
			if !slotStart.Before(w.End) {
				gap = slotStart.Sub(w.End)
			} else {
				gap = w.Start.Sub(slotEnd)
			}
			switch {
			case gap < 15*time.Minute:
				score += 10
			case gap < 30*time.Minute:
				score += 5
			case gap < 60*time.Minute:
				score += 1
			}
		}
	}
	return score
}

// suggestAlternativeTimes scans up to 7 days forward, up to 3 slots per day,
// collecting up to limit candidate slots.
func (o *Orchestrator) suggestAlternativeTimes(ctx context.Context, shopID, serviceID string, from time.Time, limit int) ([]domain.Slot, error) {
	var alts []domain.Slot
	for day := 0; day < daysToCheckAhead && len(alts) < limit; day++ {
		date := from.AddDate(0, 0, day)
		slots, err := o.Availability.SlotsForService(ctx, serviceID, date)
		if err != nil {
			return nil, err
		}
		for i, slot := range slots {
			if i >= 3 || len(alts) >= limit {
				break
			}
			alts = append(alts, slot)
		}
	}
	return alts, nil
}

// createAppointment persists the appointment and allocates its resources in
// one transaction, then fires a best-effort confirmation notification.
func (o *Orchestrator) createAppointment(ctx context.Context, req Request, specialistID string, start, end time.Time, service domain.Service) (Result, error) {
	appt := domain.Appointment{
		ID:           newID(),
		CustomerID:   req.CustomerID,
		ShopID:       req.ShopID,
		ServiceID:    req.ServiceID,
		SpecialistID: specialistID,
		PackageID:    req.PackageID,
		Window:       domain.Interval{Start: start, End: end},
		Status:       domain.StatusScheduled,
		Notes:        req.Notes,
		CreatedAt:    o.Clock.Now(),
		UpdatedAt:    o.Clock.Now(),
	}

	tx, err := o.Repo.BeginTx(ctx, repository.IsolationSerializable)
	if err != nil {
		return Result{}, fmt.Errorf("create appointment: begin tx: %w", err)
	}

	if err := o.Repo.InsertAppointment(ctx, tx, &appt); err != nil {
		_ = o.Repo.Rollback(ctx, tx)
		return Result{}, fmt.Errorf("create appointment: insert: %w", err)
	}

	if err := o.allocateResources(ctx, tx, appt); err != nil {
		_ = o.Repo.Rollback(ctx, tx)
		if coreerr.IsValidation(err) {
			return Result{Success: false, Message: err.Error()}, nil
		}
		return Result{}, err
	}

	if err := o.commitOrRetry(ctx, tx); err != nil {
		return Result{}, fmt.Errorf("create appointment: commit: %w", err)
	}

	o.notifyBestEffort(ctx, req, appt, notify.KindBookingConfirmed)
	return Result{Success: true, Message: "appointment scheduled successfully", Appointment: appt}, nil
}

// allocateResources tries the service's declared resource requirements in
// order; if a candidate resource of the right type is already booked over
// the window, it tries another active resource of the same type. If no
// substitute exists either, the leg fails outright rather than silently
// booking the service without its resource (a deliberately stricter
// reading than the source, which drops the resource and proceeds).
func (o *Orchestrator) allocateResources(ctx context.Context, tx repository.Tx, appt domain.Appointment) error {
	requirements, err := o.Repo.GetServiceResourceRequirements(ctx, appt.ServiceID)
	if err != nil {
		return fmt.Errorf("allocate resources: requirements lookup: %w", err)
	}

	for _, req := range requirements {
		candidates, err := o.Repo.GetResourcesByType(ctx, appt.ShopID, req.ResourceType)
		if err != nil {
			return fmt.Errorf("allocate resources: resources-by-type lookup: %w", err)
		}

		allocated := 0
		for _, candidate := range candidates {
			if !candidate.IsActive {
				continue
			}
			free, err := o.resourceFree(ctx, candidate.ID, appt)
			if err != nil {
				return err
			}
			if !free {
				continue
			}
			if err := o.Repo.InsertAppointmentResource(ctx, tx, &domain.AppointmentResource{
				AppointmentID: appt.ID, ResourceID: candidate.ID, Quantity: 1,
			}); err != nil {
				return fmt.Errorf("allocate resources: insert: %w", err)
			}
			allocated++
			if allocated >= req.Quantity {
				break
			}
		}
		if allocated < req.Quantity {
			return coreerr.Validation("resources", fmt.Sprintf("no available %s resource for this appointment", req.ResourceType))
		}
	}
	return nil
}

func (o *Orchestrator) resourceFree(ctx context.Context, resourceID string, appt domain.Appointment) (bool, error) {
	diag, err := o.Conflicts.ResourceConflict(ctx, conflict.Candidate{
		ResourceIDs: []string{resourceID},
		Window:      appt.Window,
		ExcludeID:   appt.ID,
	})
	if err != nil {
		return false, err
	}
	return !diag.HasConflict, nil
}

// ScheduleMultipleServices books a set of services for one customer either
// sequentially (back-to-back, longest duration first, with each leg's
// buffer_after spacing the next leg's start) or independently. On any
// sequential leg failure, every already-booked leg is cancelled and the
// call reports partial_results.
func (o *Orchestrator) ScheduleMultipleServices(ctx context.Context, shopID string, serviceIDs []string, customerID string, targetDate time.Time, sequential bool, preferredSpecialistID, notes string, packageID *string) (MultiResult, error) {
	if len(serviceIDs) == 0 {
		return MultiResult{Success: false, Message: "no services specified for scheduling"}, nil
	}

	services := make([]domain.Service, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		s, err := o.Repo.GetService(ctx, id)
		if err != nil {
			return MultiResult{}, fmt.Errorf("schedule multiple: service lookup: %w", err)
		}
		if s == nil {
			return MultiResult{Success: false, Message: fmt.Sprintf("service with id %s not found", id)}, nil
		}
		services = append(services, *s)
	}

	var results []Result

	if sequential {
		sort.Slice(services, func(i, j int) bool { return services[i].DurationMinutes > services[j].DurationMinutes })

		var nextStart *time.Time
		currentSpecialist := preferredSpecialistID

		for _, service := range services {
			var targetTime *domain.TimeOfDay
			if nextStart != nil {
				t := domain.TimeOfDayFrom(*nextStart)
				targetTime = &t
			}

			result, err := o.Schedule(ctx, Request{
				ShopID: shopID, ServiceID: service.ID, CustomerID: customerID,
				TargetDate: targetDate, TargetTime: targetTime, SpecialistID: currentSpecialist,
				Strategy: domain.StrategyEarliestAvailable, Notes: notes, PackageID: packageID,
			})
			if err != nil {
				return MultiResult{}, err
			}
			results = append(results, result)

			if !result.Success {
				o.cancelBooked(ctx, results)
				return MultiResult{
					Success: false,
					Message: fmt.Sprintf("failed to schedule service %s: %s", service.Name, result.Message),
					Partial: results,
				}, nil
			}

			end := result.Appointment.Window.End.Add(time.Duration(service.BufferAfterMinutes) * time.Minute)
			nextStart = &end
			if preferredSpecialistID == "" {
				currentSpecialist = result.Appointment.SpecialistID
			}
		}
	} else {
		for _, service := range services {
			result, err := o.Schedule(ctx, Request{
				ShopID: shopID, ServiceID: service.ID, CustomerID: customerID,
				TargetDate: targetDate, SpecialistID: preferredSpecialistID,
				Strategy: domain.StrategyEarliestAvailable, Notes: notes, PackageID: packageID,
			})
			if err != nil {
				return MultiResult{}, err
			}
			results = append(results, result)
		}
	}

	allSuccess := true
	var appts []domain.Appointment
	for _, r := range results {
		if !r.Success {
			allSuccess = false
			continue
		}
		appts = append(appts, r.Appointment)
	}

	msg := "all services scheduled successfully"
	if !allSuccess {
		msg = "some services could not be scheduled"
	}
	return MultiResult{Success: allSuccess, Message: msg, Appointments: appts, Partial: results}, nil
}

// cancelBooked is the compensating rollback for a failed sequential leg: it
// cancels every appointment already committed in this call.
func (o *Orchestrator) cancelBooked(ctx context.Context, results []Result) {
	for _, r := range results {
		if !r.Success {
			continue
		}
		if _, err := o.Cancel(ctx, r.Appointment.ID); err != nil && o.Log != nil {
			o.Log.Error("compensating cancel failed", "appointment_id", r.Appointment.ID, "error", err)
		}
	}
}

// Cancel transitions an appointment to cancelled and releases its resources,
// in one transaction.
func (o *Orchestrator) Cancel(ctx context.Context, appointmentID string) (Result, error) {
	appt, err := o.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return Result{}, fmt.Errorf("cancel: lookup: %w", err)
	}
	if appt == nil {
		return Result{}, coreerr.NotFound("appointment", appointmentID)
	}
	if !appt.Status.CanTransitionTo(domain.StatusCancelled) {
		return fail(fmt.Sprintf("cannot cancel appointment with status %q", appt.Status)), nil
	}

	tx, err := o.Repo.BeginTx(ctx, repository.IsolationSerializable)
	if err != nil {
		return Result{}, fmt.Errorf("cancel: begin tx: %w", err)
	}

	resources, err := o.Repo.GetAppointmentResources(ctx, appointmentID)
	if err != nil {
		_ = o.Repo.Rollback(ctx, tx)
		return Result{}, fmt.Errorf("cancel: resources lookup: %w", err)
	}
	for _, r := range resources {
		if err := o.Repo.DeleteAppointmentResource(ctx, tx, appointmentID, r.ResourceID); err != nil {
			_ = o.Repo.Rollback(ctx, tx)
			return Result{}, fmt.Errorf("cancel: release resource: %w", err)
		}
	}

	appt.Status = domain.StatusCancelled
	appt.UpdatedAt = o.Clock.Now()
	if err := o.Repo.UpdateAppointment(ctx, tx, appt); err != nil {
		_ = o.Repo.Rollback(ctx, tx)
		return Result{}, fmt.Errorf("cancel: update: %w", err)
	}

	if err := o.commitOrRetry(ctx, tx); err != nil {
		return Result{}, fmt.Errorf("cancel: commit: %w", err)
	}

	o.notifyBestEffort(ctx, Request{CustomerID: appt.CustomerID, PackageID: appt.PackageID}, *appt, notify.KindBookingCancelled)
	return Result{Success: true, Message: "appointment cancelled", Appointment: *appt}, nil
}

// Reschedule moves an appointment to a new date/time/specialist, defaulting
// any field left unset to its current value, re-checking the aggregate
// conflict with self-exclusion, and re-allocating resources only when the
// specialist actually changed.
func (o *Orchestrator) Reschedule(ctx context.Context, appointmentID string, newDate *time.Time, newTime *domain.TimeOfDay, newSpecialistID string) (Result, error) {
	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	appt, err := o.Repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return Result{}, fmt.Errorf("reschedule: lookup: %w", err)
	}
	if appt == nil {
		return Result{}, coreerr.NotFound("appointment", appointmentID)
	}
	if appt.Status != domain.StatusScheduled && appt.Status != domain.StatusConfirmed {
		return fail(fmt.Sprintf("cannot reschedule appointment with status %q", appt.Status)), nil
	}

	service, err := o.Repo.GetService(ctx, appt.ServiceID)
	if err != nil {
		return Result{}, fmt.Errorf("reschedule: service lookup: %w", err)
	}
	if service == nil {
		return Result{}, coreerr.NotFound("service", appt.ServiceID)
	}

	date := appt.Window.Start
	if newDate != nil {
		date = *newDate
	}
	tod := domain.TimeOfDayFrom(appt.Window.Start)
	if newTime != nil {
		tod = *newTime
	}
	start := tod.On(date, appt.Window.Start.Location())

	specialistID := appt.SpecialistID
	specialistChanged := false
	if newSpecialistID != "" && newSpecialistID != specialistID {
		specialistID = newSpecialistID
		specialistChanged = true
	}

	duration, err := o.effectiveDuration(ctx, *service, specialistID)
	if err != nil {
		return Result{}, err
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	agg, err := o.Conflicts.AggregateCheck(ctx, conflict.Candidate{
		ServiceID: appt.ServiceID, ShopID: appt.ShopID, SpecialistID: specialistID,
		CustomerID: appt.CustomerID, Window: domain.Interval{Start: start, End: end},
		ExcludeID: appointmentID,
	}, *service)
	if err != nil {
		return Result{}, err
	}
	if agg.HasConflict {
		return Result{Success: false, Message: "cannot reschedule: conflict detected", Conflicts: &agg}, nil
	}

	tx, err := o.Repo.BeginTx(ctx, repository.IsolationSerializable)
	if err != nil {
		return Result{}, fmt.Errorf("reschedule: begin tx: %w", err)
	}

	appt.Window = domain.Interval{Start: start, End: end}
	appt.SpecialistID = specialistID
	appt.UpdatedAt = o.Clock.Now()
	if err := o.Repo.UpdateAppointment(ctx, tx, appt); err != nil {
		_ = o.Repo.Rollback(ctx, tx)
		return Result{}, fmt.Errorf("reschedule: update: %w", err)
	}

	if specialistChanged {
		existing, err := o.Repo.GetAppointmentResources(ctx, appointmentID)
		if err != nil {
			_ = o.Repo.Rollback(ctx, tx)
			return Result{}, fmt.Errorf("reschedule: resources lookup: %w", err)
		}
		for _, r := range existing {
			if err := o.Repo.DeleteAppointmentResource(ctx, tx, appointmentID, r.ResourceID); err != nil {
				_ = o.Repo.Rollback(ctx, tx)
				return Result{}, fmt.Errorf("reschedule: release resource: %w", err)
			}
		}
		if err := o.allocateResources(ctx, tx, *appt); err != nil {
			_ = o.Repo.Rollback(ctx, tx)
			if coreerr.IsValidation(err) {
				return Result{Success: false, Message: err.Error()}, nil
			}
			return Result{}, err
		}
	}

	if err := o.commitOrRetry(ctx, tx); err != nil {
		return Result{}, fmt.Errorf("reschedule: commit: %w", err)
	}

	o.notifyBestEffort(ctx, Request{CustomerID: appt.CustomerID, PackageID: appt.PackageID}, *appt, notify.KindBookingRescheduled)
	return Result{Success: true, Message: "appointment rescheduled successfully", Appointment: *appt}, nil
}

func (o *Orchestrator) notifyBestEffort(ctx context.Context, req Request, appt domain.Appointment, kind notify.Kind) {
	if appt.PackageID != nil {
		switch kind {
		case notify.KindBookingConfirmed:
			kind = notify.KindPackageConfirmation
		case notify.KindBookingRescheduled:
			kind = notify.KindPackageReschedule
		case notify.KindBookingCancelled:
			kind = notify.KindPackageCancellation
		}
	}
	payload := map[string]any{
		"appointment_id": appt.ID,
		"service_id":     appt.ServiceID,
		"specialist_id":  appt.SpecialistID,
		"start":          appt.Window.Start,
		"end":            appt.Window.End,
	}
	if err := o.Notify.Notify(ctx, appt.CustomerID, kind, payload); err != nil && o.Log != nil {
		o.Log.Warn("notification delivery failed", "appointment_id", appt.ID, "kind", kind, "error", err)
	}
}
