package slice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/models"
)

// Remote is the subset of the API client the resource slices read from.
type Remote interface {
	Doctor(ctx context.Context, s api.Scope) (models.Profile, error)
	Patients(ctx context.Context, s api.Scope) ([]models.Patient, error)
	Consultations(ctx context.Context, s api.Scope) ([]models.Consultation, error)
	TodayAppointments(ctx context.Context, s api.Scope) ([]models.Appointment, error)
	Invoices(ctx context.Context, s api.Scope) ([]models.Invoice, error)
}

// Resources is the set of slices of one browser. Doctor, patients,
// consultations and appointments are keyed by the signed-in user id; invoices
// by the selected patient id.
type Resources struct {
	Doctor        *Slice[api.Scope, models.Profile]
	Patients      *Slice[api.Scope, []models.Patient]
	Consultations *Slice[api.Scope, []models.Consultation]
	Appointments  *Slice[api.Scope, []models.Appointment]
	Invoices      *Slice[api.Scope, []models.Invoice]
}

// NewResources builds Idle slices over remote. Failures are described in
// lang.
func NewResources(remote Remote, lang string, obs Observer, log zerolog.Logger) *Resources {
	opts := []Option{WithDescriber(api.Describer(lang)), WithLogger(log)}
	if obs != nil {
		opts = append(opts, WithObserver(obs))
	}
	return &Resources{
		Doctor:        New("doctor", remote.Doctor, opts...),
		Patients:      New("patients", remote.Patients, opts...),
		Consultations: New("consultations", remote.Consultations, opts...),
		Appointments:  New("appointments", remote.TodayAppointments, opts...),
		Invoices:      New("invoices", remote.Invoices, opts...),
	}
}

// Reset returns every slice to Idle.
func (r *Resources) Reset() {
	r.Doctor.Reset()
	r.Patients.Reset()
	r.Consultations.Reset()
	r.Appointments.Reset()
	r.Invoices.Reset()
}

// Close cancels every in-flight request.
func (r *Resources) Close() {
	r.Doctor.Close()
	r.Patients.Close()
	r.Consultations.Close()
	r.Appointments.Close()
	r.Invoices.Close()
}
