// Package availability implements the Availability Engine, grounded on
// original_source/apps/serviceapp/services/availability_service.py.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/queueme/scheduling-core/internal/cache"
	"github.com/queueme/scheduling-core/internal/clock"
	"github.com/queueme/scheduling-core/internal/coreerr"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository"
)

// Engine is the Availability Engine component.
type Engine struct {
	Repo  repository.Repository
	Clock clock.Clock
	Cache cache.Cache
}

func New(repo repository.Repository, clk clock.Clock, c cache.Cache) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if c == nil {
		c = cache.Null{}
	}
	return &Engine{Repo: repo, Clock: clk, Cache: c}
}

// operatingWindow determines a day's [open, close) per step 2 of the
// algorithm: an exception day completely replaces weekly hours; otherwise
// shop hours intersected with service-custom hours, if enabled.
func (e *Engine) operatingWindow(ctx context.Context, service *domain.Service, date time.Time) (domain.HourRange, error) {
	exception, err := e.Repo.GetServiceException(ctx, service.ID, date)
	if err != nil {
		return domain.HourRange{}, fmt.Errorf("service exception lookup: %w", err)
	}
	if exception != nil {
		if exception.IsClosed {
			return domain.HourRange{Closed: true}, nil
		}
		return exception.Hours, nil
	}

	weekday := domain.WeekdayOf(date)
	shopHours, err := e.Repo.GetShopHours(ctx, service.ShopID, weekday)
	if err != nil {
		return domain.HourRange{}, fmt.Errorf("shop hours lookup: %w", err)
	}
	if shopHours == nil || shopHours.Hours.Closed {
		return domain.HourRange{Closed: true}, nil
	}
	window := shopHours.Hours

	if service.HasCustomAvailability {
		serviceHours, err := e.Repo.GetServiceHours(ctx, service.ID, weekday)
		if err != nil {
			return domain.HourRange{}, fmt.Errorf("service hours lookup: %w", err)
		}
		if serviceHours != nil {
			if serviceHours.Hours.Closed {
				return domain.HourRange{Closed: true}, nil
			}
			window = window.Intersect(serviceHours.Hours)
		}
	}
	return window, nil
}

func (e *Engine) withinAdvanceWindow(service *domain.Service, date time.Time) bool {
	today := startOfDay(e.Clock.Now())
	d := startOfDay(date)
	if d.Before(today) {
		return false
	}
	maxAdvance := today.AddDate(0, 0, service.MaxAdvanceBookingDays)
	return !d.After(maxAdvance)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SlotsForService returns the ordered list of admissible slots for a
// service on a date, across every qualified specialist.
func (e *Engine) SlotsForService(ctx context.Context, serviceID string, date time.Time) ([]domain.Slot, error) {
	return e.slots(ctx, serviceID, "", date)
}

// SlotsForSpecialist restricts the same enumeration to a single specialist.
func (e *Engine) SlotsForSpecialist(ctx context.Context, serviceID, specialistID string, date time.Time) ([]domain.Slot, error) {
	return e.slots(ctx, serviceID, specialistID, date)
}

func (e *Engine) slots(ctx context.Context, serviceID, pinnedSpecialist string, date time.Time) ([]domain.Slot, error) {
	service, err := e.Repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service lookup: %w", err)
	}
	if service == nil {
		return nil, coreerr.NotFound("service", serviceID)
	}
	if service.Status != domain.ServiceActive {
		return nil, coreerr.Validation("service", "service is not active")
	}

	if !e.withinAdvanceWindow(service, date) {
		return nil, nil
	}

	window, err := e.operatingWindow(ctx, service, date)
	if err != nil {
		return nil, err
	}
	if window.Closed {
		return nil, nil
	}

	cacheKey := slotCacheKey(serviceID, pinnedSpecialist, date)
	if cached, ok, err := e.Cache.Get(ctx, cacheKey); err == nil && ok {
		if slots, ok := decodeSlots(cached); ok {
			return slots, nil
		}
	}

	specialists, err := e.Repo.GetSpecialistsForService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("specialists-for-service lookup: %w", err)
	}
	if len(specialists) == 0 {
		return nil, nil
	}
	if pinnedSpecialist != "" {
		specialists = filterSpecialist(specialists, pinnedSpecialist)
		if len(specialists) == 0 {
			return nil, nil
		}
	}

	loc := time.UTC
	dayOpen := window.From.On(date, loc)
	dayClose := window.To.On(date, loc)

	minNoticeFloor := e.Clock.Now().Add(time.Duration(service.MinBookingNoticeMin) * time.Minute)

	durations := make(map[string]int, len(specialists))
	maxDuration := service.DurationMinutes
	for _, specialist := range specialists {
		d, err := e.effectiveDuration(ctx, *service, specialist.ID)
		if err != nil {
			return nil, err
		}
		durations[specialist.ID] = d
		if d > maxDuration {
			maxDuration = d
		}
	}

	var slots []domain.Slot
	for start := dayOpen.Add(time.Duration(service.BufferBeforeMinutes) * time.Minute); !start.Add(time.Duration(maxDuration+service.BufferAfterMinutes)*time.Minute).After(dayClose); start = start.Add(time.Duration(service.SlotGranularityMinutes) * time.Minute) {
		if start.Before(minNoticeFloor) {
			continue
		}

		for _, specialist := range specialists {
			duration := durations[specialist.ID]
			end := start.Add(time.Duration(duration) * time.Minute)
			if end.Add(time.Duration(service.BufferAfterMinutes) * time.Minute).After(dayClose) {
				continue
			}
			ok, err := e.specialistAvailable(ctx, specialist.ID, date, start, end, service.BufferBeforeMinutes, service.BufferAfterMinutes)
			if err != nil {
				return nil, err
			}
			if ok {
				slots = append(slots, domain.Slot{
					Start: start, End: end,
					Duration:     duration,
					BufferBefore: service.BufferBeforeMinutes,
					BufferAfter:  service.BufferAfterMinutes,
					SpecialistID: specialist.ID,
				})
				break
			}
		}
	}

	if encoded, ok := encodeSlots(slots); ok {
		_ = e.Cache.Set(ctx, cacheKey, encoded, slotCacheTTL)
	}
	return slots, nil
}

// effectiveDuration resolves the specialist-service override, if any, per
// domain.Service.EffectiveDuration.
func (e *Engine) effectiveDuration(ctx context.Context, service domain.Service, specialistID string) (int, error) {
	link, err := e.Repo.GetSpecialistService(ctx, specialistID, service.ID)
	if err != nil {
		return 0, fmt.Errorf("specialist service lookup: %w", err)
	}
	return service.EffectiveDuration(link), nil
}

func filterSpecialist(specialists []domain.Specialist, id string) []domain.Specialist {
	for _, s := range specialists {
		if s.ID == id {
			return []domain.Specialist{s}
		}
	}
	return nil
}

// specialistAvailable checks working hours and existing-appointment overlap
// for the closed interval [start-bufferBefore, end+bufferAfter).
func (e *Engine) specialistAvailable(ctx context.Context, specialistID string, date, start, end time.Time, bufferBefore, bufferAfter int) (bool, error) {
	weekday := domain.WeekdayOf(date)
	working, err := e.Repo.GetSpecialistWorkingHours(ctx, specialistID, weekday)
	if err != nil {
		return false, fmt.Errorf("specialist working hours lookup: %w", err)
	}
	if working == nil || working.IsOff {
		return false, nil
	}
	window := domain.Interval{Start: start, End: end}.Expand(bufferBefore, bufferAfter)
	startTOD := domain.TimeOfDayFrom(window.Start)
	endTOD := domain.TimeOfDayFrom(window.End)
	if startTOD < working.Hours.From || endTOD > working.Hours.To {
		return false, nil
	}

	appts, err := e.Repo.GetAppointmentsForSpecialist(ctx, specialistID, window.Start.AddDate(0, 0, -1), window.End.AddDate(0, 0, 1), domain.LiveStatuses)
	if err != nil {
		return false, fmt.Errorf("specialist appointments lookup: %w", err)
	}
	for _, a := range appts {
		if a.Window.Overlaps(window) {
			return false, nil
		}
	}
	return true, nil
}

// NextAvailableSpecialist returns the first specialist with an admissible
// slot at the exact (date, time); empty string if none.
func (e *Engine) NextAvailableSpecialist(ctx context.Context, shopID, serviceID string, date, at time.Time) (string, error) {
	service, err := e.Repo.GetService(ctx, serviceID)
	if err != nil {
		return "", fmt.Errorf("service lookup: %w", err)
	}
	if service == nil {
		return "", coreerr.NotFound("service", serviceID)
	}
	specialists, err := e.Repo.GetSpecialistsForService(ctx, serviceID)
	if err != nil {
		return "", fmt.Errorf("specialists-for-service lookup: %w", err)
	}
	for _, s := range specialists {
		duration, err := e.effectiveDuration(ctx, *service, s.ID)
		if err != nil {
			return "", err
		}
		end := at.Add(time.Duration(duration) * time.Minute)
		ok, err := e.specialistAvailable(ctx, s.ID, date, at, end, service.BufferBeforeMinutes, service.BufferAfterMinutes)
		if err != nil {
			return "", err
		}
		if ok {
			return s.ID, nil
		}
	}
	return "", nil
}

// EarliestAvailable scans forward from startDate for up to daysToCheck days
// and returns the first admissible slot, optionally restricted to a
// specialist.
func (e *Engine) EarliestAvailable(ctx context.Context, serviceID, specialistID string, startDate time.Time, daysToCheck int) (*domain.Slot, error) {
	for i := 0; i < daysToCheck; i++ {
		date := startDate.AddDate(0, 0, i)
		slots, err := e.slots(ctx, serviceID, specialistID, date)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			s := slots[0]
			return &s, nil
		}
	}
	return nil, nil
}

// AvailableDays is a calendar-style view; it fast-rejects days closed at the
// shop or service-custom-hours level before running full enumeration.
func (e *Engine) AvailableDays(ctx context.Context, serviceID string, startDate, endDate time.Time) ([]time.Time, error) {
	service, err := e.Repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service lookup: %w", err)
	}
	if service == nil {
		return nil, coreerr.NotFound("service", serviceID)
	}

	var days []time.Time
	for d := startOfDay(startDate); !d.After(endDate); d = d.AddDate(0, 0, 1) {
		exception, err := e.Repo.GetServiceException(ctx, serviceID, d)
		if err != nil {
			return nil, fmt.Errorf("service exception lookup: %w", err)
		}
		if exception != nil && exception.IsClosed {
			continue
		}

		weekday := domain.WeekdayOf(d)
		shopHours, err := e.Repo.GetShopHours(ctx, service.ShopID, weekday)
		if err != nil {
			return nil, fmt.Errorf("shop hours lookup: %w", err)
		}
		if exception == nil && (shopHours == nil || shopHours.Hours.Closed) {
			continue
		}

		if exception == nil && service.HasCustomAvailability {
			serviceHours, err := e.Repo.GetServiceHours(ctx, serviceID, weekday)
			if err != nil {
				return nil, fmt.Errorf("service hours lookup: %w", err)
			}
			if serviceHours != nil && serviceHours.Hours.Closed {
				continue
			}
		}

		slots, err := e.slots(ctx, serviceID, "", d)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			days = append(days, d)
		}
	}
	return days, nil
}

// SpecialistsAvailableAt returns every specialist qualified for the service
// who is available across [start, end).
func (e *Engine) SpecialistsAvailableAt(ctx context.Context, serviceID string, date, start, end time.Time) ([]string, error) {
	service, err := e.Repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("service lookup: %w", err)
	}
	if service == nil {
		return nil, coreerr.NotFound("service", serviceID)
	}
	specialists, err := e.Repo.GetSpecialistsForService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("specialists-for-service lookup: %w", err)
	}
	var ids []string
	for _, s := range specialists {
		ok, err := e.specialistAvailable(ctx, s.ID, date, start, end, service.BufferBeforeMinutes, service.BufferAfterMinutes)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}
