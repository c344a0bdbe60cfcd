package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/invoice"
	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/internal/policy"
)

func serverErr(status int) error {
	return &api.Error{Kind: api.KindServer, Status: status, Endpoint: "test"}
}

func TestActionStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{invoice.ErrInvalid, http.StatusUnprocessableEntity},
		{errors.Join(invoice.ErrInvalid, invoice.ErrNoPatient), http.StatusUnprocessableEntity},
		{invoice.ErrNoPatient, http.StatusBadRequest},
		{invoice.ErrNotFound, http.StatusNotFound},
		{invoice.ErrBusy, http.StatusConflict},
		{invoice.ErrNotOpen, http.StatusConflict},
		{invoice.ErrPatientMismatch, http.StatusBadRequest},
		{fmt.Errorf("delete: %w", serverErr(http.StatusForbidden)), http.StatusForbidden},
		{&api.Error{Kind: api.KindTransport, Endpoint: "test", Err: errors.New("refused")}, http.StatusBadGateway},
	}
	for _, c := range cases {
		if got := actionStatus(c.err); got != c.want {
			t.Fatalf("actionStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestLoginStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{serverErr(http.StatusUnauthorized), http.StatusUnauthorized},
		{serverErr(http.StatusBadRequest), http.StatusUnauthorized},
		{serverErr(http.StatusTooManyRequests), http.StatusTooManyRequests},
		{serverErr(http.StatusServiceUnavailable), http.StatusBadGateway},
		{errors.New("dial tcp: refused"), http.StatusBadGateway},
	}
	for _, c := range cases {
		if got := loginStatus(c.err); got != c.want {
			t.Fatalf("loginStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestSessionTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Hour)),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := sessionTTL(tok, now); got != 2*time.Hour {
		t.Fatalf("ttl = %v", got)
	}
	if got := sessionTTL("opaque", now); got != 0 {
		t.Fatalf("opaque token ttl = %v", got)
	}
}

func TestRecentConsultations(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var all []models.Consultation
	for _, d := range []int{3, 1, 4, 2} {
		all = append(all, models.Consultation{ID: fmt.Sprint(d), Date: base.AddDate(0, 0, d)})
	}
	got := recentConsultations(all, 3)
	if len(got) != 3 || got[0].ID != "4" || got[1].ID != "3" || got[2].ID != "2" {
		t.Fatalf("recent = %+v", got)
	}
	if all[0].ID != "3" {
		t.Fatalf("input reordered")
	}
}

func TestPatientQuery(t *testing.T) {
	if got := patientQuery(""); got != "" {
		t.Fatalf("empty id = %q", got)
	}
	if got := patientQuery("a b"); got != "?patient=a+b" {
		t.Fatalf("escaped = %q", got)
	}
}

func TestCaisseRequestAllows(t *testing.T) {
	cr := caisseRequest{owned: policy.NewPatientScope([]models.Patient{{ID: "p1"}, {ID: "p2"}})}
	cases := []struct {
		patient string
		want    bool
	}{
		{"", true},
		{"p1", true},
		{" p2 ", true},
		{"ghost", false},
	}
	for _, c := range cases {
		if got := cr.allows(invoice.Form{PatientID: c.patient}); got != c.want {
			t.Fatalf("allows(%q) = %v, want %v", c.patient, got, c.want)
		}
	}
}
