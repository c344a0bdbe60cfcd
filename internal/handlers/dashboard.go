package handlers

import (
	"context"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/internal/slice"
	"github.com/mboacare/dashboard/view"
)

const recentPatients = 5

type DashboardHandler struct {
	spaces *Workspaces
	now    func() time.Time
}

func NewDashboardHandler(spaces *Workspaces) *DashboardHandler {
	return &DashboardHandler{spaces: spaces, now: time.Now}
}

// Landing sends the user to the first section their role may open.
func (h *DashboardHandler) Landing(w http.ResponseWriter, r *http.Request) {
	role, err := h.spaces.Role(r)
	if err == nil {
		if l, ok := gate.Landing(role); ok {
			http.Redirect(w, r, l.Path(), http.StatusSeeOther)
			return
		}
	}
	h.spaces.Forbidden(w, r)
}

// Show loads the four dashboard resources concurrently. Each one is fetched
// at most once per signed-in user; ?refresh=1 forces a reload.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	ws, err := h.spaces.For(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	scope, err := Scope(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	res := ws.Resources
	if r.URL.Query().Get("refresh") == "1" {
		for _, fetch := range []func(context.Context, api.Scope) bool{
			res.Doctor.Fetch, res.Patients.Fetch, res.Consultations.Fetch, res.Appointments.Fetch,
		} {
			fetch(r.Context(), scope)
		}
	}

	var (
		doctor        slice.State[api.Scope, models.Profile]
		patients      slice.State[api.Scope, []models.Patient]
		consultations slice.State[api.Scope, []models.Consultation]
		appointments  slice.State[api.Scope, []models.Appointment]
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { doctor, err = settle(ctx, res.Doctor, scope); return err })
	g.Go(func() (err error) { patients, err = settle(ctx, res.Patients, scope); return err })
	g.Go(func() (err error) { consultations, err = settle(ctx, res.Consultations, scope); return err })
	g.Go(func() (err error) { appointments, err = settle(ctx, res.Appointments, scope); return err })
	if err := g.Wait(); err != nil {
		h.spaces.Unavailable(w, r, gate.LinkDashbord.Path(), err)
		return
	}

	var errs []string
	for _, e := range []string{doctor.Error, patients.Error, consultations.Error, appointments.Error} {
		if e != "" {
			errs = append(errs, e)
		}
	}
	data := map[string]any{"Errors": errs}
	if doctor.Fresh(scope) {
		data["Doctor"] = doctor.Data
	}
	if patients.Fresh(scope) {
		data["PatientCount"] = len(patients.Data)
		data["RecentPatients"] = models.RecentPatients(patients.Data, recentPatients)
	} else {
		data["PatientCount"] = 0
	}
	if consultations.Fresh(scope) {
		data["ConsultationCount"] = len(consultations.Data)
		data["Consultations"] = recentConsultations(consultations.Data, recentPatients)
	} else {
		data["ConsultationCount"] = 0
	}
	var today []models.Appointment
	if appointments.Fresh(scope) {
		now := h.now()
		for _, a := range appointments.Data {
			if a.SameDay(now) {
				today = append(today, a)
			}
		}
	}
	data["Appointments"] = today

	lang := i18n.LangFrom(r.Context())
	data = h.spaces.page(r, ws, gate.LinkDashbord.ID(), view.Title(i18n.T(lang, "nav_dashbord")), data)
	h.spaces.render(w, r, http.StatusOK, "dashboard.html", data)
}

// recentConsultations returns at most n consultations, newest first.
func recentConsultations(all []models.Consultation, n int) []models.Consultation {
	out := slices.Clone(all)
	slices.SortStableFunc(out, func(a, b models.Consultation) int { return b.Date.Compare(a.Date) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
