// Package repository defines the Repository port: the read/write surface
// the core requires from persistence. No implementation lives in this
// package — see internal/repository/postgres for a concrete adapter.
// Every write takes an explicit Tx handle, per the design note that
// transaction handles must be explicit rather than ambient.
package repository

import (
	"context"
	"time"

	"github.com/queueme/scheduling-core/internal/domain"
)

// Tx is an opaque transaction handle returned by BeginTx. The core never
// inspects it; it only threads it through write calls.
type Tx interface{}

// IsolationLevel is the subset of SQL isolation levels the core ever
// requests. Serializable is used for every check-then-write booking
// transaction (schedule, cancel, reschedule) since they read availability
// and conflicts, then act on them, and must not race another booking doing
// the same under the database's default read-committed level.
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota
	IsolationSerializable
)

// ResourceBooking is a resolved (appointment, resource, window) triple used
// by the Conflict Detector's resource-overlap check.
type ResourceBooking struct {
	AppointmentID string
	ResourceID    string
	Window        domain.Interval
	Status        domain.AppointmentStatus
}

// Repository is the full port the core consumes. Field/method names mirror
// the operation table in the external-interfaces section of the
// specification this module implements.
type Repository interface {
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	GetShopHours(ctx context.Context, shopID string, weekday domain.Weekday) (*domain.ShopHours, error)

	GetService(ctx context.Context, id string) (*domain.Service, error)
	GetServiceHours(ctx context.Context, serviceID string, weekday domain.Weekday) (*domain.ServiceAvailability, error)
	GetServiceException(ctx context.Context, serviceID string, date time.Time) (*domain.ServiceException, error)

	GetSpecialistsForService(ctx context.Context, serviceID string) ([]domain.Specialist, error)
	GetSpecialistService(ctx context.Context, specialistID, serviceID string) (*domain.SpecialistService, error)
	GetSpecialistWorkingHours(ctx context.Context, specialistID string, weekday domain.Weekday) (*domain.SpecialistWorkingHours, error)
	GetAppointmentsForSpecialist(ctx context.Context, specialistID string, from, to time.Time, statuses []domain.AppointmentStatus) ([]domain.Appointment, error)

	GetLiveAppointmentCountAtInstant(ctx context.Context, serviceID string, at time.Time) (int, error)

	GetServiceResourceRequirements(ctx context.Context, serviceID string) ([]domain.ServiceResourceRequirement, error)
	GetResourcesByType(ctx context.Context, shopID, resourceType string) ([]domain.Resource, error)
	GetResourceAvailability(ctx context.Context, resourceID string, weekday domain.Weekday) ([]domain.ResourceAvailability, error)
	GetResourceBookings(ctx context.Context, resourceID string, from, to time.Time, statuses []domain.AppointmentStatus) ([]ResourceBooking, error)
	GetAppointmentResources(ctx context.Context, appointmentID string) ([]domain.AppointmentResource, error)

	GetServiceDependencies(ctx context.Context, serviceID string, depType domain.DependencyType) ([]domain.ServiceDependency, error)
	HasCompletedPrerequisite(ctx context.Context, customerID, prerequisiteServiceID, shopID string, before time.Time) (bool, error)

	GetAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	GetPackageServices(ctx context.Context, packageID string) ([]domain.PackageService, error)

	// ListSpecialistsWithLiveAppointments returns the distinct specialists
	// holding at least one live appointment overlapping [from, to), for the
	// background buffer-conflict sweep.
	ListSpecialistsWithLiveAppointments(ctx context.Context, from, to time.Time) ([]string, error)

	BeginTx(ctx context.Context, level IsolationLevel) (Tx, error)
	Commit(ctx context.Context, tx Tx) error
	Rollback(ctx context.Context, tx Tx) error

	InsertAppointment(ctx context.Context, tx Tx, a *domain.Appointment) error
	UpdateAppointment(ctx context.Context, tx Tx, a *domain.Appointment) error
	InsertAppointmentResource(ctx context.Context, tx Tx, ar *domain.AppointmentResource) error
	DeleteAppointmentResource(ctx context.Context, tx Tx, appointmentID, resourceID string) error
	IncrementPackageCounter(ctx context.Context, tx Tx, packageID string, delta int) error
}
