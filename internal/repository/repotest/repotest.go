// Package repotest is an in-memory repository.Repository fake for tests of
// the components built on top of the port (availability, conflict, buffer,
// orchestrator). It is deliberately simple: every read is a map/slice scan,
// writes append to the Appointments slice, and BeginTx/Commit/Rollback are
// no-ops that hand back a marker token.
package repotest

import (
	"context"
	"fmt"
	"time"

	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/repository"
)

// Fake is an in-memory Repository.
type Fake struct {
	Shops                  map[string]domain.Shop
	ShopHours              map[string]map[domain.Weekday]domain.ShopHours
	Services               map[string]domain.Service
	ServiceHours           map[string]map[domain.Weekday]domain.ServiceAvailability
	ServiceExceptions      map[string]map[string]domain.ServiceException // serviceID -> date (2006-01-02) -> exception
	Specialists            map[string][]domain.Specialist                // serviceID -> qualified specialists
	SpecialistServices     map[string]domain.SpecialistService            // specialistID+"|"+serviceID -> link
	SpecialistHours        map[string]map[domain.Weekday]domain.SpecialistWorkingHours
	Resources              map[string][]domain.Resource // shopID+"|"+type -> resources
	ResourceAvailability   map[string][]domain.ResourceAvailability
	ResourceRequirements   map[string][]domain.ServiceResourceRequirement
	ResourceBookings       []repository.ResourceBooking
	ServiceDependencies    map[string][]domain.ServiceDependency
	CompletedPrerequisite  map[string]bool // customerID+"|"+prereqID+"|"+shopID -> has completed
	Appointments           []domain.Appointment
	AppointmentResources   []domain.AppointmentResource
	Packages               map[string]*domain.Package
	PackageServices        map[string][]domain.PackageService

	NextID int
}

// New returns an empty Fake with every map initialized.
func New() *Fake {
	return &Fake{
		Shops:                 map[string]domain.Shop{},
		ShopHours:             map[string]map[domain.Weekday]domain.ShopHours{},
		Services:              map[string]domain.Service{},
		ServiceHours:          map[string]map[domain.Weekday]domain.ServiceAvailability{},
		ServiceExceptions:     map[string]map[string]domain.ServiceException{},
		Specialists:           map[string][]domain.Specialist{},
		SpecialistServices:    map[string]domain.SpecialistService{},
		SpecialistHours:       map[string]map[domain.Weekday]domain.SpecialistWorkingHours{},
		Resources:             map[string][]domain.Resource{},
		ResourceAvailability:  map[string][]domain.ResourceAvailability{},
		ResourceRequirements:  map[string][]domain.ServiceResourceRequirement{},
		ServiceDependencies:   map[string][]domain.ServiceDependency{},
		CompletedPrerequisite: map[string]bool{},
		Packages:              map[string]*domain.Package{},
		PackageServices:       map[string][]domain.PackageService{},
	}
}

func (f *Fake) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	if s, ok := f.Shops[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *Fake) GetShopHours(ctx context.Context, shopID string, weekday domain.Weekday) (*domain.ShopHours, error) {
	if byDay, ok := f.ShopHours[shopID]; ok {
		if h, ok := byDay[weekday]; ok {
			return &h, nil
		}
	}
	return nil, nil
}

func (f *Fake) GetService(ctx context.Context, id string) (*domain.Service, error) {
	if s, ok := f.Services[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *Fake) GetServiceHours(ctx context.Context, serviceID string, weekday domain.Weekday) (*domain.ServiceAvailability, error) {
	if byDay, ok := f.ServiceHours[serviceID]; ok {
		if h, ok := byDay[weekday]; ok {
			return &h, nil
		}
	}
	return nil, nil
}

func (f *Fake) GetServiceException(ctx context.Context, serviceID string, date time.Time) (*domain.ServiceException, error) {
	if byDate, ok := f.ServiceExceptions[serviceID]; ok {
		if e, ok := byDate[date.Format("2006-01-02")]; ok {
			return &e, nil
		}
	}
	return nil, nil
}

func (f *Fake) GetSpecialistsForService(ctx context.Context, serviceID string) ([]domain.Specialist, error) {
	return f.Specialists[serviceID], nil
}

func (f *Fake) GetSpecialistService(ctx context.Context, specialistID, serviceID string) (*domain.SpecialistService, error) {
	if link, ok := f.SpecialistServices[specialistID+"|"+serviceID]; ok {
		return &link, nil
	}
	return nil, nil
}

func (f *Fake) GetSpecialistWorkingHours(ctx context.Context, specialistID string, weekday domain.Weekday) (*domain.SpecialistWorkingHours, error) {
	if byDay, ok := f.SpecialistHours[specialistID]; ok {
		if h, ok := byDay[weekday]; ok {
			return &h, nil
		}
	}
	return nil, nil
}

func (f *Fake) GetAppointmentsForSpecialist(ctx context.Context, specialistID string, from, to time.Time, statuses []domain.AppointmentStatus) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range f.Appointments {
		if a.SpecialistID != specialistID {
			continue
		}
		if !statusIn(a.Status, statuses) {
			continue
		}
		if a.Window.Start.Before(to) && a.Window.End.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *Fake) GetLiveAppointmentCountAtInstant(ctx context.Context, serviceID string, at time.Time) (int, error) {
	count := 0
	for _, a := range f.Appointments {
		if a.ServiceID != serviceID || !a.IsLive() {
			continue
		}
		if !at.Before(a.Window.Start) && at.Before(a.Window.End) {
			count++
		}
	}
	return count, nil
}

func (f *Fake) GetServiceResourceRequirements(ctx context.Context, serviceID string) ([]domain.ServiceResourceRequirement, error) {
	return f.ResourceRequirements[serviceID], nil
}

func (f *Fake) GetResourcesByType(ctx context.Context, shopID, resourceType string) ([]domain.Resource, error) {
	return f.Resources[shopID+"|"+resourceType], nil
}

func (f *Fake) GetResourceAvailability(ctx context.Context, resourceID string, weekday domain.Weekday) ([]domain.ResourceAvailability, error) {
	var out []domain.ResourceAvailability
	for _, w := range f.ResourceAvailability[resourceID] {
		if w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *Fake) GetResourceBookings(ctx context.Context, resourceID string, from, to time.Time, statuses []domain.AppointmentStatus) ([]repository.ResourceBooking, error) {
	var out []repository.ResourceBooking
	for _, b := range f.ResourceBookings {
		if b.ResourceID != resourceID {
			continue
		}
		if !statusIn(b.Status, statuses) {
			continue
		}
		if b.Window.Start.Before(to) && b.Window.End.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *Fake) GetAppointmentResources(ctx context.Context, appointmentID string) ([]domain.AppointmentResource, error) {
	var out []domain.AppointmentResource
	for _, ar := range f.AppointmentResources {
		if ar.AppointmentID == appointmentID {
			out = append(out, ar)
		}
	}
	return out, nil
}

func (f *Fake) GetServiceDependencies(ctx context.Context, serviceID string, depType domain.DependencyType) ([]domain.ServiceDependency, error) {
	var out []domain.ServiceDependency
	for _, d := range f.ServiceDependencies[serviceID] {
		if d.Type == depType {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *Fake) HasCompletedPrerequisite(ctx context.Context, customerID, prerequisiteServiceID, shopID string, before time.Time) (bool, error) {
	return f.CompletedPrerequisite[customerID+"|"+prerequisiteServiceID+"|"+shopID], nil
}

func (f *Fake) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	for _, a := range f.Appointments {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *Fake) GetPackageServices(ctx context.Context, packageID string) ([]domain.PackageService, error) {
	return f.PackageServices[packageID], nil
}

func (f *Fake) ListSpecialistsWithLiveAppointments(ctx context.Context, from, to time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, a := range f.Appointments {
		if !a.IsLive() {
			continue
		}
		if a.Window.Start.Before(to) && a.Window.End.After(from) && !seen[a.SpecialistID] {
			seen[a.SpecialistID] = true
			out = append(out, a.SpecialistID)
		}
	}
	return out, nil
}

type txToken struct{}

func (f *Fake) BeginTx(ctx context.Context, level repository.IsolationLevel) (repository.Tx, error) {
	return txToken{}, nil
}
func (f *Fake) Commit(ctx context.Context, tx repository.Tx) error { return nil }
func (f *Fake) Rollback(ctx context.Context, tx repository.Tx) error { return nil }

func (f *Fake) InsertAppointment(ctx context.Context, tx repository.Tx, a *domain.Appointment) error {
	if a.ID == "" {
		f.NextID++
		a.ID = fmt.Sprintf("appt-%d", f.NextID)
	}
	f.Appointments = append(f.Appointments, *a)
	return nil
}

func (f *Fake) UpdateAppointment(ctx context.Context, tx repository.Tx, a *domain.Appointment) error {
	for i, existing := range f.Appointments {
		if existing.ID == a.ID {
			f.Appointments[i] = *a
			return nil
		}
	}
	return fmt.Errorf("appointment %s not found for update", a.ID)
}

func (f *Fake) InsertAppointmentResource(ctx context.Context, tx repository.Tx, ar *domain.AppointmentResource) error {
	f.AppointmentResources = append(f.AppointmentResources, *ar)
	f.ResourceBookings = append(f.ResourceBookings, repository.ResourceBooking{
		AppointmentID: ar.AppointmentID,
		ResourceID:    ar.ResourceID,
		Window:        f.windowFor(ar.AppointmentID),
		Status:        domain.StatusScheduled,
	})
	return nil
}

func (f *Fake) DeleteAppointmentResource(ctx context.Context, tx repository.Tx, appointmentID, resourceID string) error {
	out := f.AppointmentResources[:0:0]
	for _, ar := range f.AppointmentResources {
		if ar.AppointmentID == appointmentID && ar.ResourceID == resourceID {
			continue
		}
		out = append(out, ar)
	}
	f.AppointmentResources = out
	return nil
}

func (f *Fake) IncrementPackageCounter(ctx context.Context, tx repository.Tx, packageID string, delta int) error {
	if p, ok := f.Packages[packageID]; ok {
		p.CurrentPurchases += delta
		return nil
	}
	return fmt.Errorf("package %s not found", packageID)
}

func (f *Fake) windowFor(appointmentID string) domain.Interval {
	for _, a := range f.Appointments {
		if a.ID == appointmentID {
			return a.Window
		}
	}
	return domain.Interval{}
}

func statusIn(s domain.AppointmentStatus, statuses []domain.AppointmentStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
