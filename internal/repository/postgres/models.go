// Package postgres is the gorm-backed Repository adapter, grounded on the
// teacher's internal/repository/{booking_repository,repository}.go (gorm
// WithContext idiom, ErrRecordNotFound -> nil,nil translation,
// fmt.Errorf-wrapped errors). Row types carry gorm tags and TableName()
// methods the way the teacher's internal/models package did; internal/domain
// itself stays persistence-agnostic, so every read/write here converts
// between the two.
package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/queueme/scheduling-core/internal/domain"
)

type shopRow struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	CompanyID  string `gorm:"type:uuid;index"`
	IsVerified bool
	Timezone   string
}

func (shopRow) TableName() string { return "shops" }

func (r shopRow) toDomain() domain.Shop {
	return domain.Shop{ID: r.ID, CompanyID: r.CompanyID, IsVerified: r.IsVerified, Timezone: r.Timezone}
}

type shopHoursRow struct {
	ShopID    string `gorm:"type:uuid;primaryKey"`
	Weekday   int    `gorm:"primaryKey"`
	Closed    bool
	OpenMin   int
	CloseMin  int
}

func (shopHoursRow) TableName() string { return "shop_hours" }

func (r shopHoursRow) toDomain() domain.ShopHours {
	return domain.ShopHours{
		ShopID:  r.ShopID,
		Weekday: domain.Weekday(r.Weekday),
		Hours:   domain.HourRange{Closed: r.Closed, From: domain.TimeOfDay(r.OpenMin), To: domain.TimeOfDay(r.CloseMin)},
	}
}

type serviceRow struct {
	ID                     string `gorm:"type:uuid;primaryKey"`
	ShopID                 string `gorm:"type:uuid;index"`
	Name                   string
	DurationMinutes        int
	SlotGranularityMinutes int
	BufferBeforeMinutes    int
	BufferAfterMinutes     int
	Location               string
	Status                 string
	HasCustomAvailability  bool
	MinBookingNoticeMin    int
	MaxAdvanceBookingDays  int
	MaxConcurrentBookings  *int
}

func (serviceRow) TableName() string { return "services" }

func (s *serviceRow) BeforeCreate() error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

func (r serviceRow) toDomain() domain.Service {
	return domain.Service{
		ID: r.ID, ShopID: r.ShopID, Name: r.Name,
		DurationMinutes: r.DurationMinutes, SlotGranularityMinutes: r.SlotGranularityMinutes,
		BufferBeforeMinutes: r.BufferBeforeMinutes, BufferAfterMinutes: r.BufferAfterMinutes,
		Location: domain.ServiceLocation(r.Location), Status: domain.ServiceStatus(r.Status),
		HasCustomAvailability: r.HasCustomAvailability, MinBookingNoticeMin: r.MinBookingNoticeMin,
		MaxAdvanceBookingDays: r.MaxAdvanceBookingDays, MaxConcurrentBookings: r.MaxConcurrentBookings,
	}
}

type serviceAvailabilityRow struct {
	ServiceID string `gorm:"type:uuid;primaryKey"`
	Weekday   int    `gorm:"primaryKey"`
	Closed    bool
	OpenMin   int
	CloseMin  int
}

func (serviceAvailabilityRow) TableName() string { return "service_availability" }

func (r serviceAvailabilityRow) toDomain() domain.ServiceAvailability {
	return domain.ServiceAvailability{
		ServiceID: r.ServiceID,
		Weekday:   domain.Weekday(r.Weekday),
		Hours:     domain.HourRange{Closed: r.Closed, From: domain.TimeOfDay(r.OpenMin), To: domain.TimeOfDay(r.CloseMin)},
	}
}

type serviceExceptionRow struct {
	ServiceID string `gorm:"type:uuid;primaryKey"`
	Date      time.Time `gorm:"primaryKey"`
	IsClosed  bool
	OpenMin   int
	CloseMin  int
}

func (serviceExceptionRow) TableName() string { return "service_exceptions" }

func (r serviceExceptionRow) toDomain() domain.ServiceException {
	return domain.ServiceException{
		ServiceID: r.ServiceID, Date: r.Date, IsClosed: r.IsClosed,
		Hours: domain.HourRange{Closed: r.IsClosed, From: domain.TimeOfDay(r.OpenMin), To: domain.TimeOfDay(r.CloseMin)},
	}
}

type specialistRow struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	ShopID     string `gorm:"type:uuid;index"`
	EmployeeID string
}

func (specialistRow) TableName() string { return "specialists" }

func (r specialistRow) toDomain() domain.Specialist {
	return domain.Specialist{ID: r.ID, ShopID: r.ShopID, EmployeeID: r.EmployeeID}
}

type specialistWorkingHoursRow struct {
	SpecialistID string `gorm:"type:uuid;primaryKey"`
	Weekday      int    `gorm:"primaryKey"`
	IsOff        bool
	OpenMin      int
	CloseMin     int
}

func (specialistWorkingHoursRow) TableName() string { return "specialist_working_hours" }

func (r specialistWorkingHoursRow) toDomain() domain.SpecialistWorkingHours {
	return domain.SpecialistWorkingHours{
		SpecialistID: r.SpecialistID, Weekday: domain.Weekday(r.Weekday), IsOff: r.IsOff,
		Hours: domain.HourRange{Closed: r.IsOff, From: domain.TimeOfDay(r.OpenMin), To: domain.TimeOfDay(r.CloseMin)},
	}
}

type specialistServiceRow struct {
	SpecialistID          string `gorm:"type:uuid;primaryKey"`
	ServiceID             string `gorm:"type:uuid;primaryKey"`
	IsPrimary             bool
	CustomDurationMinutes *int
	ProficiencyLevel      *int
}

func (specialistServiceRow) TableName() string { return "specialist_services" }

func (r specialistServiceRow) toDomain() domain.SpecialistService {
	return domain.SpecialistService{
		SpecialistID: r.SpecialistID, ServiceID: r.ServiceID, IsPrimary: r.IsPrimary,
		CustomDurationMinutes: r.CustomDurationMinutes, ProficiencyLevel: r.ProficiencyLevel,
	}
}

type resourceRow struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	ShopID   string `gorm:"type:uuid;index"`
	Name     string
	Type     string `gorm:"index"`
	IsActive bool
}

func (resourceRow) TableName() string { return "resources" }

func (r resourceRow) toDomain() domain.Resource {
	return domain.Resource{ID: r.ID, ShopID: r.ShopID, Name: r.Name, Type: r.Type, IsActive: r.IsActive}
}

type resourceAvailabilityRow struct {
	ResourceID string `gorm:"type:uuid;primaryKey"`
	Weekday    int    `gorm:"primaryKey"`
	Closed     bool
	OpenMin    int
	CloseMin   int
}

func (resourceAvailabilityRow) TableName() string { return "resource_availability" }

func (r resourceAvailabilityRow) toDomain() domain.ResourceAvailability {
	return domain.ResourceAvailability{
		ResourceID: r.ResourceID, Weekday: domain.Weekday(r.Weekday),
		Hours: domain.HourRange{Closed: r.Closed, From: domain.TimeOfDay(r.OpenMin), To: domain.TimeOfDay(r.CloseMin)},
	}
}

type serviceResourceRequirementRow struct {
	ServiceID    string `gorm:"type:uuid;primaryKey"`
	ResourceType string `gorm:"primaryKey"`
	Quantity     int
}

func (serviceResourceRequirementRow) TableName() string { return "service_resource_requirements" }

func (r serviceResourceRequirementRow) toDomain() domain.ServiceResourceRequirement {
	return domain.ServiceResourceRequirement{ServiceID: r.ServiceID, ResourceType: r.ResourceType, Quantity: r.Quantity}
}

type appointmentRow struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	CustomerID   string `gorm:"type:uuid;index"`
	ShopID       string `gorm:"type:uuid;index"`
	ServiceID    string `gorm:"type:uuid;index"`
	SpecialistID string `gorm:"type:uuid;index"`
	PackageID    *string `gorm:"type:uuid"`
	StartTime    time.Time `gorm:"index"`
	EndTime      time.Time
	Status       string `gorm:"index"`
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (appointmentRow) TableName() string { return "appointments" }

func (a *appointmentRow) BeforeCreate() error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (r appointmentRow) toDomain() domain.Appointment {
	return domain.Appointment{
		ID: r.ID, CustomerID: r.CustomerID, ShopID: r.ShopID, ServiceID: r.ServiceID,
		SpecialistID: r.SpecialistID, PackageID: r.PackageID,
		Window: domain.Interval{Start: r.StartTime, End: r.EndTime},
		Status: domain.AppointmentStatus(r.Status), Notes: r.Notes,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func fromDomainAppointment(a *domain.Appointment) appointmentRow {
	return appointmentRow{
		ID: a.ID, CustomerID: a.CustomerID, ShopID: a.ShopID, ServiceID: a.ServiceID,
		SpecialistID: a.SpecialistID, PackageID: a.PackageID,
		StartTime: a.Window.Start, EndTime: a.Window.End,
		Status: string(a.Status), Notes: a.Notes,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

type appointmentResourceRow struct {
	AppointmentID string `gorm:"type:uuid;primaryKey"`
	ResourceID    string `gorm:"type:uuid;primaryKey"`
	Quantity      int
}

func (appointmentResourceRow) TableName() string { return "appointment_resources" }

func (r appointmentResourceRow) toDomain() domain.AppointmentResource {
	return domain.AppointmentResource{AppointmentID: r.AppointmentID, ResourceID: r.ResourceID, Quantity: r.Quantity}
}

type serviceDependencyRow struct {
	DependentServiceID    string `gorm:"type:uuid;primaryKey"`
	PrerequisiteServiceID string `gorm:"type:uuid;primaryKey"`
	Type                  string
}

func (serviceDependencyRow) TableName() string { return "service_dependencies" }

func (r serviceDependencyRow) toDomain() domain.ServiceDependency {
	return domain.ServiceDependency{
		DependentServiceID: r.DependentServiceID, PrerequisiteServiceID: r.PrerequisiteServiceID,
		Type: domain.DependencyType(r.Type),
	}
}

type packageRow struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	ShopID           string `gorm:"type:uuid;index"`
	Name             string
	PriceCents       int64
	CurrentPurchases int
}

func (packageRow) TableName() string { return "packages" }

type packageServiceRow struct {
	PackageID string `gorm:"type:uuid;primaryKey"`
	ServiceID string `gorm:"type:uuid;primaryKey"`
	Position  int
}

func (packageServiceRow) TableName() string { return "package_services" }

func (r packageServiceRow) toDomain() domain.PackageService {
	return domain.PackageService{PackageID: r.PackageID, ServiceID: r.ServiceID, Position: r.Position}
}
