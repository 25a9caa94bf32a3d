package postgres

import (
	"context"
	"fmt"

	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository"
)

func (s *Store) InsertAppointment(ctx context.Context, tx repository.Tx, a *domain.Appointment) error {
	row := fromDomainAppointment(a)
	if err := txOrDB(s.db, tx).WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	*a = row.toDomain()
	return nil
}

func (s *Store) UpdateAppointment(ctx context.Context, tx repository.Tx, a *domain.Appointment) error {
	row := fromDomainAppointment(a)
	result := txOrDB(s.db, tx).WithContext(ctx).Model(&appointmentRow{}).Where("id = ?", a.ID).Updates(row)
	if result.Error != nil {
		return fmt.Errorf("update appointment %s: %w", a.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("appointment %s not found for update", a.ID)
	}
	return nil
}

func (s *Store) InsertAppointmentResource(ctx context.Context, tx repository.Tx, ar *domain.AppointmentResource) error {
	row := appointmentResourceRow{AppointmentID: ar.AppointmentID, ResourceID: ar.ResourceID, Quantity: ar.Quantity}
	if err := txOrDB(s.db, tx).WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert appointment resource %s/%s: %w", ar.AppointmentID, ar.ResourceID, err)
	}
	return nil
}

func (s *Store) DeleteAppointmentResource(ctx context.Context, tx repository.Tx, appointmentID, resourceID string) error {
	err := txOrDB(s.db, tx).WithContext(ctx).
		Where("appointment_id = ? AND resource_id = ?", appointmentID, resourceID).
		Delete(&appointmentResourceRow{}).Error
	if err != nil {
		return fmt.Errorf("delete appointment resource %s/%s: %w", appointmentID, resourceID, err)
	}
	return nil
}

func (s *Store) IncrementPackageCounter(ctx context.Context, tx repository.Tx, packageID string, delta int) error {
	result := txOrDB(s.db, tx).WithContext(ctx).Model(&packageRow{}).
		Where("id = ?", packageID).
		UpdateColumn("current_purchases", gormExprAdd("current_purchases", delta))
	if result.Error != nil {
		return fmt.Errorf("increment package counter %s: %w", packageID, result.Error)
	}
	return nil
}
