package domain

import "time"

// Entities reference each other by id only; the core never holds
// back-references (Appointment does not embed its Service, etc.) so that the
// Repository port remains the single place relations are resolved.

type Shop struct {
	ID         string
	CompanyID  string
	IsVerified bool
	Timezone   string // IANA name, e.g. "Asia/Riyadh"
}

// ShopHours is one weekly row per weekday; Closed means the shop does not
// open at all that day.
type ShopHours struct {
	ShopID  string
	Weekday Weekday
	Hours   HourRange
}

type Service struct {
	ID                     string
	ShopID                 string
	Name                   string
	DurationMinutes        int
	SlotGranularityMinutes int
	BufferBeforeMinutes    int
	BufferAfterMinutes     int
	Location               ServiceLocation
	Status                 ServiceStatus
	HasCustomAvailability  bool
	MinBookingNoticeMin    int
	MaxAdvanceBookingDays  int
	MaxConcurrentBookings  *int // nil = unlimited
}

// EffectiveDuration returns the specialist's custom duration override if
// set, else the service's own duration.
func (s Service) EffectiveDuration(link *SpecialistService) int {
	if link != nil && link.CustomDurationMinutes != nil {
		return *link.CustomDurationMinutes
	}
	return s.DurationMinutes
}

type ServiceAvailability struct {
	ServiceID string
	Weekday   Weekday
	Hours     HourRange
}

// ServiceException overrides a service's hours for a single date, or closes
// it entirely; it completely replaces weekly hours for that date.
type ServiceException struct {
	ServiceID string
	Date      time.Time
	IsClosed  bool
	Hours     HourRange
}

type Specialist struct {
	ID         string
	ShopID     string
	EmployeeID string
}

type SpecialistWorkingHours struct {
	SpecialistID string
	Weekday      Weekday
	IsOff        bool
	Hours        HourRange
}

type SpecialistService struct {
	SpecialistID          string
	ServiceID             string
	IsPrimary             bool
	CustomDurationMinutes *int
	ProficiencyLevel      *int
}

type Resource struct {
	ID       string
	ShopID   string
	Name     string
	Type     string
	IsActive bool
}

type ResourceAvailability struct {
	ResourceID string
	Weekday    Weekday
	Hours      HourRange
}

// ServiceResourceRequirement is the service's declared need for a resource
// type/quantity, resolved to concrete Resource rows at allocation time.
type ServiceResourceRequirement struct {
	ServiceID    string
	ResourceType string
	Quantity     int
}

type Appointment struct {
	ID           string
	CustomerID   string
	ShopID       string
	ServiceID    string
	SpecialistID string
	PackageID    *string
	Window       Interval
	Status       AppointmentStatus
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Appointment) IsLive() bool { return a.Status.IsLive() }

// BufferWindow is the interval this appointment exclusively owns on its
// specialist's calendar, including buffers.
func (a Appointment) BufferWindow(bufferBefore, bufferAfter int) Interval {
	return a.Window.Expand(bufferBefore, bufferAfter)
}

type AppointmentResource struct {
	AppointmentID string
	ResourceID    string
	Quantity      int
}

type ServiceDependency struct {
	DependentServiceID    string
	PrerequisiteServiceID string
	Type                  DependencyType
}

type Package struct {
	ID                string
	ShopID            string
	Name              string
	PriceCents        int64
	CurrentPurchases  int
}

type PackageService struct {
	PackageID string
	ServiceID string
	Position  int // ordering within the package
}

// Slot is an admissible placement produced by the Availability Engine.
type Slot struct {
	Start        time.Time
	End          time.Time
	Duration     int
	BufferBefore int
	BufferAfter  int
	SpecialistID string
}

func (s Slot) Interval() Interval { return Interval{Start: s.Start, End: s.End} }
