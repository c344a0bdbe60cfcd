package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/auth"
	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/httpx"
	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/invoice"
	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/internal/policy"
	"github.com/mboacare/dashboard/internal/receipt"
	"github.com/mboacare/dashboard/internal/slice"
	"github.com/mboacare/dashboard/view"
)

// CaisseHandler serves the invoice workflow. Every write answers with a
// redirect back to the invoice view; the outcome is carried by the
// workspace (overlays and toasts).
type CaisseHandler struct {
	spaces *Workspaces
	spool  *receipt.Spool
}

func NewCaisseHandler(spaces *Workspaces) *CaisseHandler {
	h := &CaisseHandler{spaces: spaces}
	if spaces.deps.Receipts != nil {
		h.spool = spaces.deps.Receipts.Spool
	}
	return h
}

// caisseRequest is the state a caisse request works on.
type caisseRequest struct {
	ws       *Workspace
	scope    api.Scope
	patients slice.State[api.Scope, []models.Patient]
	owned    policy.PatientScope
}

// begin loads the patients of the signed-in user and selects the patient of
// the query, or keeps the current selection. Only patients returned by the
// remote list can be selected.
func (h *CaisseHandler) begin(w http.ResponseWriter, r *http.Request) (caisseRequest, bool) {
	ws, err := h.spaces.For(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return caisseRequest{}, false
	}
	scope, err := Scope(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return caisseRequest{}, false
	}
	ctx := r.Context()
	retry := "/app/caisse" + patientQuery(r.URL.Query().Get("patient"))
	patients, err := settle(ctx, ws.Resources.Patients, scope)
	if err != nil {
		h.spaces.Unavailable(w, r, retry, err)
		return caisseRequest{}, false
	}
	owned := policy.NewPatientScope(patients.Data)
	id := r.URL.Query().Get("patient")
	if id == "" {
		id = r.FormValue("patientId")
	}
	if id == "" {
		id = ws.Invoices.Scope().ID
	}
	if id != "" {
		p, ok := owned.Lookup(id)
		if !ok && patients.Fresh(scope) {
			ws.Toasts.Warn(i18n.T(ws.Lang, "patient_unknown"))
		}
		ws.Invoices.Select(ctx, scope.Token, p)
		if err := ws.Resources.Invoices.Wait(ctx); err != nil {
			h.spaces.Unavailable(w, r, retry, err)
			return caisseRequest{}, false
		}
	}
	return caisseRequest{ws: ws, scope: scope, patients: patients, owned: owned}, true
}

// allows reports whether a submitted form may be written. A form without a
// patient writes for the selection; any other patient must be in the list.
func (cr caisseRequest) allows(f invoice.Form) bool {
	return f.OwnerPatient() == "" || cr.owned.Can(f)
}

func patientQuery(id string) string {
	if id == "" {
		return ""
	}
	return "?patient=" + url.QueryEscape(id)
}

// Show renders the invoice view of the selected patient.
func (h *CaisseHandler) Show(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("close") == "1" {
		cr.ws.Invoices.CloseCreate()
		cr.ws.Invoices.CloseEdit()
	}
	h.render(w, r, cr)
}

func (h *CaisseHandler) render(w http.ResponseWriter, r *http.Request, cr caisseRequest) {
	v := cr.ws.Invoices.View()
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"state":    v.State.String(),
			"patient":  v.Patient.ID,
			"invoices": v.Invoices,
			"total":    v.Total,
			"error":    v.Error,
			"receipt":  v.Receipt,
		})
		return
	}
	data := map[string]any{
		"V":             v,
		"Patients":      cr.patients.Data,
		"PatientsError": cr.patients.Error,
		"Query":         patientQuery(v.Patient.ID),
	}
	title := view.Title(i18n.T(cr.ws.Lang, "nav_caisse"))
	data = h.spaces.page(r, cr.ws, gate.LinkCaisse.ID(), title, data)
	h.spaces.render(w, r, http.StatusOK, "caisse.html", data)
}

// New opens the create form.
func (h *CaisseHandler) New(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	if err := cr.ws.Invoices.OpenCreate(); err != nil {
		h.warn(cr.ws, err)
	}
	h.render(w, r, cr)
}

// Create submits the create form.
func (h *CaisseHandler) Create(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	f := formOf(r)
	if !cr.allows(f) {
		h.done(w, r, cr, "create", invoice.ErrPatientMismatch)
		return
	}
	h.done(w, r, cr, "create", cr.ws.Invoices.Create(r.Context(), f))
}

// Edit opens the edit form of invoice {id}.
func (h *CaisseHandler) Edit(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	if err := cr.ws.Invoices.OpenEdit(r.PathValue("id")); err != nil {
		h.warn(cr.ws, err)
	}
	h.render(w, r, cr)
}

// Update submits the edit form of invoice {id}.
func (h *CaisseHandler) Update(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	f := formOf(r)
	if !cr.allows(f) {
		h.done(w, r, cr, "update", invoice.ErrPatientMismatch)
		return
	}
	id := r.PathValue("id")
	ctrl := cr.ws.Invoices
	if cur, open := ctrl.Editing(); !open || cur != id {
		if err := ctrl.OpenEdit(id); err != nil {
			h.done(w, r, cr, "update", err)
			return
		}
	}
	h.done(w, r, cr, "update", ctrl.Update(r.Context(), f))
}

// RequestDelete opens the delete confirmation of invoice {id}.
func (h *CaisseHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	h.done(w, r, cr, "delete", cr.ws.Invoices.RequestDelete(r.PathValue("id")))
}

// ConfirmDelete deletes invoice {id}. The confirmation must be open for that
// invoice.
func (h *CaisseHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	ctrl := cr.ws.Invoices
	if cur, open := ctrl.Deleting(); !open || cur != r.PathValue("id") {
		h.done(w, r, cr, "delete", invoice.ErrNotOpen)
		return
	}
	h.done(w, r, cr, "delete", ctrl.ConfirmDelete(r.Context()))
}

// CancelDelete closes the delete confirmation.
func (h *CaisseHandler) CancelDelete(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	cr.ws.Invoices.CancelDelete()
	h.done(w, r, cr, "delete", nil)
}

// Print spools the receipt of invoice {id} again.
func (h *CaisseHandler) Print(w http.ResponseWriter, r *http.Request) {
	cr, ok := h.begin(w, r)
	if !ok {
		return
	}
	_, err := cr.ws.Invoices.Print(r.PathValue("id"))
	h.done(w, r, cr, "print", err)
}

// Receipt serves a spooled receipt once, to the device it was issued for.
func (h *CaisseHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	device, ok := auth.DeviceFromContext(r.Context())
	if !ok || h.spool == nil {
		http.NotFound(w, r)
		return
	}
	doc, ok := h.spool.Take(device, r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	if doc.ContentType == "application/pdf" {
		w.Header().Set("Content-Disposition", `inline; filename="recu.pdf"`)
	}
	_, _ = w.Write(doc.Body)
}

func formOf(r *http.Request) invoice.Form {
	return invoice.Form{
		Libelle:   r.FormValue("libelle"),
		Type:      r.FormValue("type"),
		Montant:   r.FormValue("montant"),
		PatientID: r.FormValue("patientId"),
	}
}

// done answers a write. JSON callers get the outcome as a status code;
// browsers are sent back to the invoice view.
func (h *CaisseHandler) done(w http.ResponseWriter, r *http.Request, cr caisseRequest, op string, err error) {
	if err != nil && !errors.Is(err, invoice.ErrInvalid) {
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("op", op).Msg("invoice action")
	}
	if httpx.WantsJSON(r) {
		status := actionStatus(err)
		if err == nil {
			httpx.JSON(w, status, map[string]string{"status": "ok"})
			return
		}
		var details any
		if errors.Is(err, invoice.ErrInvalid) {
			v := cr.ws.Invoices.View()
			if op == "update" {
				details = v.Edit.Violations
			} else {
				details = v.Create.Violations
			}
		}
		httpx.JSONError(w, status, actionMessage(err, cr.ws.Lang), details)
		return
	}
	if err != nil {
		h.warn(cr.ws, err)
	}
	http.Redirect(w, r, "/app/caisse"+patientQuery(cr.ws.Invoices.Scope().ID), http.StatusSeeOther)
}

// warn raises a toast for workflow errors. Remote failures and invalid forms
// are already reported by the controller.
func (h *CaisseHandler) warn(ws *Workspace, err error) {
	switch {
	case errors.Is(err, invoice.ErrInvalid):
	case errors.Is(err, invoice.ErrNotFound):
		ws.Toasts.Warn(i18n.T(ws.Lang, "invoice_not_found"))
	case errors.Is(err, invoice.ErrBusy):
		ws.Toasts.Warn(i18n.T(ws.Lang, "operation_busy"))
	case errors.Is(err, invoice.ErrNoPatient):
		ws.Toasts.Warn(i18n.T(ws.Lang, "no_patient"))
	case errors.Is(err, invoice.ErrPatientMismatch):
		ws.Toasts.Warn(i18n.T(ws.Lang, "patient_mismatch"))
	}
}

// actionMessage describes err for JSON callers.
func actionMessage(err error, lang string) string {
	switch {
	case errors.Is(err, invoice.ErrInvalid):
		return i18n.T(lang, "http_422")
	case errors.Is(err, invoice.ErrNotFound):
		return i18n.T(lang, "invoice_not_found")
	case errors.Is(err, invoice.ErrBusy):
		return i18n.T(lang, "operation_busy")
	case errors.Is(err, invoice.ErrNoPatient):
		return i18n.T(lang, "no_patient")
	case errors.Is(err, invoice.ErrNotOpen):
		return i18n.T(lang, "http_409")
	case errors.Is(err, invoice.ErrPatientMismatch):
		return i18n.T(lang, "patient_mismatch")
	}
	return api.Describe(err, lang)
}

func actionStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, invoice.ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, invoice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, invoice.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, invoice.ErrNoPatient):
		return http.StatusBadRequest
	case errors.Is(err, invoice.ErrNotOpen):
		return http.StatusConflict
	case errors.Is(err, invoice.ErrPatientMismatch):
		return http.StatusBadRequest
	}
	if s := api.StatusOf(err); s != 0 {
		return s
	}
	return http.StatusBadGateway
}
