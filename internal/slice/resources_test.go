package slice

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/models"
)

type fakeRemote struct{ invoicesErr error }

func (fakeRemote) Doctor(_ context.Context, s api.Scope) (models.Profile, error) {
	return models.Profile{ID: s.ID}, nil
}
func (fakeRemote) Patients(context.Context, api.Scope) ([]models.Patient, error) {
	return []models.Patient{{ID: "p1"}}, nil
}
func (fakeRemote) Consultations(context.Context, api.Scope) ([]models.Consultation, error) {
	return nil, nil
}
func (fakeRemote) TodayAppointments(context.Context, api.Scope) ([]models.Appointment, error) {
	return nil, nil
}
func (f fakeRemote) Invoices(context.Context, api.Scope) ([]models.Invoice, error) {
	return nil, f.invoicesErr
}

func TestResourcesDescribeInLanguage(t *testing.T) {
	r := NewResources(fakeRemote{invoicesErr: &api.Error{Kind: api.KindServer, Status: 503}}, "en", nil, zerolog.Nop())
	ctx := context.Background()
	scope := api.Scope{Token: "t", ID: "p1"}
	r.Invoices.Ensure(ctx, scope)
	waitOrFail(t, r.Invoices)
	if got := r.Invoices.Snapshot().Error; got != "Service unavailable" {
		t.Fatalf("error = %q", got)
	}

	r.Doctor.Ensure(ctx, api.Scope{Token: "t", ID: "u1"})
	waitOrFail(t, r.Doctor)
	if r.Doctor.Snapshot().Data.ID != "u1" {
		t.Fatalf("doctor not loaded")
	}
	r.Reset()
	if r.Doctor.Snapshot().HasData {
		t.Fatalf("reset should clear all slices")
	}
	r.Close()
	if r.Patients.Fetch(ctx, scope) {
		t.Fatalf("closed resources must not fetch")
	}
}

func TestResourcesTransportMessage(t *testing.T) {
	r := NewResources(fakeRemote{invoicesErr: &api.Error{Kind: api.KindTransport, Err: errors.New("dial")}}, "fr", nil, zerolog.Nop())
	r.Invoices.Fetch(context.Background(), api.Scope{Token: "t", ID: "p1"})
	waitOrFail(t, r.Invoices)
	if got := r.Invoices.Snapshot().Error; got != "Impossible de joindre le serveur. Vérifiez votre connexion." {
		t.Fatalf("error = %q", got)
	}
}
