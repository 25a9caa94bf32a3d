package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository"
)

func (s *Store) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	var row shopRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shop %s: %w", id, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *Store) GetShopHours(ctx context.Context, shopID string, weekday domain.Weekday) (*domain.ShopHours, error) {
	var row shopHoursRow
	err := s.db.WithContext(ctx).First(&row, "shop_id = ? AND weekday = ?", shopID, int(weekday)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shop hours %s/%d: %w", shopID, weekday, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *Store) GetService(ctx context.Context, id string) (*domain.Service, error) {
	var row serviceRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *Store) GetServiceHours(ctx context.Context, serviceID string, weekday domain.Weekday) (*domain.ServiceAvailability, error) {
	var row serviceAvailabilityRow
	err := s.db.WithContext(ctx).First(&row, "service_id = ? AND weekday = ?", serviceID, int(weekday)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get service hours %s/%d: %w", serviceID, weekday, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *Store) GetServiceException(ctx context.Context, serviceID string, date time.Time) (*domain.ServiceException, error) {
	var row serviceExceptionRow
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	err := s.db.WithContext(ctx).First(&row, "service_id = ? AND date = ?", serviceID, day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get service exception %s/%s: %w", serviceID, day, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *Store) GetSpecialistsForService(ctx context.Context, serviceID string) ([]domain.Specialist, error) {
	var rows []specialistRow
	err := s.db.WithContext(ctx).
		Joins("JOIN specialist_services ON specialist_services.specialist_id = specialists.id").
		Where("specialist_services.service_id = ?", serviceID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get specialists for service %s: %w", serviceID, err)
	}
	out := make([]domain.Specialist, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) GetSpecialistService(ctx context.Context, specialistID, serviceID string) (*domain.SpecialistService, error) {
	var row specialistServiceRow
	err := s.db.WithContext(ctx).First(&row, "specialist_id = ? AND service_id = ?", specialistID, serviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get specialist service %s/%s: %w", specialistID, serviceID, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *Store) GetSpecialistWorkingHours(ctx context.Context, specialistID string, weekday domain.Weekday) (*domain.SpecialistWorkingHours, error) {
	var row specialistWorkingHoursRow
	err := s.db.WithContext(ctx).First(&row, "specialist_id = ? AND weekday = ?", specialistID, int(weekday)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get specialist working hours %s/%d: %w", specialistID, weekday, err)
	}
	d := row.toDomain()
	return &d, nil
}

// GetAppointmentsForSpecialist returns a specialist's appointments overlapping
// [from, to), restricted to the given statuses. Grounded on the teacher's
// FindConflictingBookings half-open-overlap predicate.
func (s *Store) GetAppointmentsForSpecialist(ctx context.Context, specialistID string, from, to time.Time, statuses []domain.AppointmentStatus) ([]domain.Appointment, error) {
	var rows []appointmentRow
	err := s.db.WithContext(ctx).
		Where("specialist_id = ?", specialistID).
		Where("status IN (?)", statusStrings(statuses)).
		Where("start_time < ?", to).
		Where("end_time > ?", from).
		Order("start_time asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get appointments for specialist %s: %w", specialistID, err)
	}
	return appointmentsToDomain(rows), nil
}

func (s *Store) GetLiveAppointmentCountAtInstant(ctx context.Context, serviceID string, at time.Time) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&appointmentRow{}).
		Where("service_id = ?", serviceID).
		Where("status IN (?)", statusStrings(domain.LiveStatuses)).
		Where("start_time <= ? AND end_time > ?", at, at).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("get live appointment count at instant: %w", err)
	}
	return int(count), nil
}

func (s *Store) GetServiceResourceRequirements(ctx context.Context, serviceID string) ([]domain.ServiceResourceRequirement, error) {
	var rows []serviceResourceRequirementRow
	if err := s.db.WithContext(ctx).Where("service_id = ?", serviceID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get service resource requirements %s: %w", serviceID, err)
	}
	out := make([]domain.ServiceResourceRequirement, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) GetResourcesByType(ctx context.Context, shopID, resourceType string) ([]domain.Resource, error) {
	var rows []resourceRow
	err := s.db.WithContext(ctx).Where("shop_id = ? AND type = ? AND is_active = ?", shopID, resourceType, true).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get resources by type %s/%s: %w", shopID, resourceType, err)
	}
	out := make([]domain.Resource, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) GetResourceAvailability(ctx context.Context, resourceID string, weekday domain.Weekday) ([]domain.ResourceAvailability, error) {
	var rows []resourceAvailabilityRow
	err := s.db.WithContext(ctx).Where("resource_id = ? AND weekday = ?", resourceID, int(weekday)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get resource availability %s/%d: %w", resourceID, weekday, err)
	}
	out := make([]domain.ResourceAvailability, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) GetResourceBookings(ctx context.Context, resourceID string, from, to time.Time, statuses []domain.AppointmentStatus) ([]repository.ResourceBooking, error) {
	type joined struct {
		AppointmentID string
		ResourceID    string
		StartTime     time.Time
		EndTime       time.Time
		Status        string
	}
	var rows []joined
	err := s.db.WithContext(ctx).Table("appointment_resources").
		Select("appointment_resources.appointment_id, appointment_resources.resource_id, appointments.start_time, appointments.end_time, appointments.status").
		Joins("JOIN appointments ON appointments.id = appointment_resources.appointment_id").
		Where("appointment_resources.resource_id = ?", resourceID).
		Where("appointments.status IN (?)", statusStrings(statuses)).
		Where("appointments.start_time < ? AND appointments.end_time > ?", to, from).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get resource bookings %s: %w", resourceID, err)
	}
	out := make([]repository.ResourceBooking, len(rows))
	for i, r := range rows {
		out[i] = repository.ResourceBooking{
			AppointmentID: r.AppointmentID, ResourceID: r.ResourceID,
			Window: domain.Interval{Start: r.StartTime, End: r.EndTime},
			Status: domain.AppointmentStatus(r.Status),
		}
	}
	return out, nil
}

func (s *Store) GetAppointmentResources(ctx context.Context, appointmentID string) ([]domain.AppointmentResource, error) {
	var rows []appointmentResourceRow
	if err := s.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get appointment resources %s: %w", appointmentID, err)
	}
	out := make([]domain.AppointmentResource, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) GetServiceDependencies(ctx context.Context, serviceID string, depType domain.DependencyType) ([]domain.ServiceDependency, error) {
	var rows []serviceDependencyRow
	err := s.db.WithContext(ctx).Where("dependent_service_id = ? AND type = ?", serviceID, string(depType)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get service dependencies %s: %w", serviceID, err)
	}
	out := make([]domain.ServiceDependency, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) HasCompletedPrerequisite(ctx context.Context, customerID, prerequisiteServiceID, shopID string, before time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&appointmentRow{}).
		Where("customer_id = ? AND service_id = ? AND shop_id = ?", customerID, prerequisiteServiceID, shopID).
		Where("status = ?", string(domain.StatusCompleted)).
		Where("end_time <= ?", before).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("has completed prerequisite: %w", err)
	}
	return count > 0, nil
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	var row appointmentRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *Store) GetPackageServices(ctx context.Context, packageID string) ([]domain.PackageService, error) {
	var rows []packageServiceRow
	err := s.db.WithContext(ctx).Where("package_id = ?", packageID).Order("position asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get package services %s: %w", packageID, err)
	}
	out := make([]domain.PackageService, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) ListSpecialistsWithLiveAppointments(ctx context.Context, from, to time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&appointmentRow{}).
		Distinct("specialist_id").
		Where("status IN (?)", statusStrings(domain.LiveStatuses)).
		Where("start_time < ? AND end_time > ?", to, from).
		Pluck("specialist_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list specialists with live appointments: %w", err)
	}
	return ids, nil
}

func statusStrings(statuses []domain.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func appointmentsToDomain(rows []appointmentRow) []domain.Appointment {
	out := make([]domain.Appointment, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
