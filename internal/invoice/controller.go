// Package invoice drives the invoice ("caisse") workflow of one browser:
// the collection view of the selected patient and the create, edit and
// delete overlays layered on top of it.
package invoice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/internal/notify"
	"github.com/mboacare/dashboard/internal/receipt"
	"github.com/mboacare/dashboard/internal/slice"
	"github.com/mboacare/dashboard/validation"
)

var (
	// ErrNoPatient is returned when acting without a selected patient.
	ErrNoPatient = errors.New("no patient selected")
	// ErrNotFound is returned for an invoice outside the selected patient's list.
	ErrNotFound = errors.New("invoice not found")
	// ErrInvalid is returned when the form has field violations.
	ErrInvalid = errors.New("invalid invoice form")
	// ErrBusy is returned while the same overlay already has a request pending.
	ErrBusy = errors.New("operation already in progress")
	// ErrNotOpen is returned when submitting an overlay that is not open.
	ErrNotOpen = errors.New("overlay not open")
	// ErrPatientMismatch is returned for a form naming another patient than
	// the one the invoice belongs to.
	ErrPatientMismatch = errors.New("form patient does not match")
)

// ViewState is the state of the invoice collection.
type ViewState int

const (
	ViewIdle ViewState = iota
	ViewLoading
	ViewReady
	ViewError
)

func (v ViewState) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewReady:
		return "ready"
	case ViewError:
		return "error"
	}
	return "idle"
}

// Phase is the state of one overlay.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	}
	return "idle"
}

// Overlay is a create, edit or delete dialog.
type Overlay struct {
	Open       bool
	Phase      Phase
	Form       Form
	Violations validation.Violations
	Error      string
	Target     models.Invoice
}

// Writer issues the remote invoice writes.
type Writer interface {
	CreateInvoice(ctx context.Context, token string, in models.InvoiceInput) (models.Invoice, error)
	UpdateInvoice(ctx context.Context, token, id string, in models.InvoiceInput) (models.Invoice, error)
	DeleteInvoice(ctx context.Context, token, id string) error
}

// Issuer hands receipts to the print surface.
type Issuer interface {
	Issue(owner string, d receipt.Document) (string, error)
}

// Observer counts invoice and receipt outcomes.
type Observer interface {
	ObserveInvoice(op, outcome string)
	ObserveReceipt(outcome string)
}

// Config wires a Controller.
type Config struct {
	Owner    string // device id; receipts are spooled for it
	Lang     string
	Writer   Writer
	Invoices *slice.Slice[api.Scope, []models.Invoice]
	Toasts   *notify.Queue
	Receipts Issuer
	Observer Observer
	Log      zerolog.Logger
	// RetryPath returns the form action that retries a failed delete.
	RetryPath func(id string) string
	Now       func() time.Time
}

// Controller is the invoice workflow of one browser. It is safe for
// concurrent use; remote calls run outside the lock.
type Controller struct {
	cfg Config

	mu          sync.Mutex
	token       string
	patient     models.Patient
	create      Overlay
	edit        Overlay
	del         Overlay
	lastReceipt string
}

// New returns a controller with no patient selected.
func New(cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Lang == "" {
		cfg.Lang = i18n.DefaultLang
	}
	if cfg.Toasts == nil {
		cfg.Toasts = notify.NewQueue(0)
	}
	return &Controller{cfg: cfg}
}

// View is a snapshot for rendering.
type View struct {
	State    ViewState
	Patient  models.Patient
	Invoices []models.Invoice
	Total    float64
	Error    string
	Create   Overlay
	Edit     Overlay
	Delete   Overlay
	// Receipt is the spool id of the last generated receipt, if any.
	Receipt string
}

// Select makes p the current patient and loads its invoices once. Selecting
// another patient closes every overlay.
func (c *Controller) Select(ctx context.Context, token string, p models.Patient) {
	c.mu.Lock()
	if p.ID != c.patient.ID {
		c.create, c.edit, c.del = Overlay{}, Overlay{}, Overlay{}
		c.lastReceipt = ""
	}
	c.token = token
	c.patient = p
	scope := c.scopeLocked()
	c.mu.Unlock()

	c.cfg.Invoices.Ensure(ctx, scope)
}

// Scope returns the fetch key of the selected patient's invoices.
func (c *Controller) Scope() api.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scopeLocked()
}

func (c *Controller) scopeLocked() api.Scope {
	if c.patient.ID == "" {
		return api.Scope{}
	}
	return api.Scope{Token: c.token, ID: c.patient.ID}
}

// View returns the current state. The receipt id is handed out once.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	scope := c.scopeLocked()
	st := c.cfg.Invoices.Snapshot()

	v := View{
		Patient: c.patient,
		Create:  c.create,
		Edit:    c.edit,
		Delete:  c.del,
		Receipt: c.lastReceipt,
	}
	c.lastReceipt = ""
	v.State, v.Error = collectionState(st, scope)
	if st.Fresh(scope) {
		v.Invoices = st.Data
		v.Total = models.TotalMontant(st.Data)
	}
	return v
}

func collectionState(st slice.State[api.Scope, []models.Invoice], scope api.Scope) (ViewState, string) {
	if scope.ID == "" || st.Key != scope {
		return ViewIdle, ""
	}
	switch st.Status {
	case slice.Loading:
		return ViewLoading, ""
	case slice.Succeeded:
		return ViewReady, ""
	case slice.Failed:
		return ViewError, st.Error
	}
	return ViewIdle, ""
}

// OpenCreate shows an empty create form for the selected patient.
func (c *Controller) OpenCreate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patient.ID == "" {
		return ErrNoPatient
	}
	c.create = Overlay{Open: true, Form: Form{PatientID: c.patient.ID}}
	return nil
}

// CloseCreate dismisses the create form.
func (c *Controller) CloseCreate() {
	c.mu.Lock()
	c.create = Overlay{}
	c.mu.Unlock()
}

// Create validates f and, when it is valid, writes the invoice for the
// selected patient. Invalid forms and forms naming another patient never
// reach the server.
func (c *Controller) Create(ctx context.Context, f Form) error {
	c.mu.Lock()
	if c.create.Phase == PhasePending {
		c.mu.Unlock()
		return ErrBusy
	}
	if pid := f.OwnerPatient(); c.patient.ID != "" && pid != "" && pid != c.patient.ID {
		c.mu.Unlock()
		c.observeInvoice("create", "mismatch")
		return ErrPatientMismatch
	}
	f.PatientID = c.patient.ID
	in, v := f.Validate()
	if !v.Empty() {
		c.create = Overlay{Open: true, Phase: PhaseError, Form: f, Violations: v}
		c.mu.Unlock()
		c.observeInvoice("create", "invalid")
		if v.Has("patientId") {
			return errors.Join(ErrInvalid, ErrNoPatient)
		}
		return ErrInvalid
	}
	c.create = Overlay{Open: true, Phase: PhasePending, Form: f}
	token, patient := c.token, c.patient
	c.mu.Unlock()

	inv, err := c.cfg.Writer.CreateInvoice(ctx, token, in)

	c.mu.Lock()
	if err != nil {
		msg := api.Describe(err, c.cfg.Lang)
		c.create = Overlay{Open: true, Phase: PhaseError, Form: f, Error: msg}
		c.mu.Unlock()
		c.cfg.Toasts.Error(msg)
		c.observeInvoice("create", "failed")
		c.cfg.Log.Warn().Err(err).Msg("invoice create failed")
		return err
	}
	c.create = Overlay{Phase: PhaseSuccess}
	c.mu.Unlock()

	c.observeInvoice("create", "ok")
	c.cfg.Toasts.Success(i18n.T(c.cfg.Lang, "invoice_created"))
	c.issueReceipt(written(inv, in, models.Invoice{DateCreation: c.cfg.Now()}), patient)
	c.reconcile(ctx, in.PatientID, token)
	return nil
}

// OpenEdit loads invoice id into the edit form.
func (c *Controller) OpenEdit(id string) error {
	inv, err := c.find(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.edit = Overlay{Open: true, Form: FormFrom(inv), Target: inv}
	c.mu.Unlock()
	return nil
}

// CloseEdit dismisses the edit form.
func (c *Controller) CloseEdit() {
	c.mu.Lock()
	c.edit = Overlay{}
	c.mu.Unlock()
}

// Editing returns the id of the invoice in the open edit form.
func (c *Controller) Editing() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edit.Target.ID, c.edit.Open
}

// HasChanges reports whether f differs from the invoice being edited.
func (c *Controller) HasChanges(f Form) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edit.Open && f.differs(c.edit.Target)
}

// Update writes the edit form. An unchanged form only notifies the user and
// closes the overlay; nothing is written.
func (c *Controller) Update(ctx context.Context, f Form) error {
	c.mu.Lock()
	if !c.edit.Open {
		c.mu.Unlock()
		return ErrNotOpen
	}
	if c.edit.Phase == PhasePending {
		c.mu.Unlock()
		return ErrBusy
	}
	target := c.edit.Target
	if pid := f.OwnerPatient(); pid != "" && pid != target.PatientID {
		c.mu.Unlock()
		c.observeInvoice("update", "mismatch")
		return ErrPatientMismatch
	}
	f.PatientID = target.PatientID
	if !f.differs(target) {
		c.edit = Overlay{}
		c.mu.Unlock()
		c.cfg.Toasts.Info(i18n.T(c.cfg.Lang, "invoice_unchanged"))
		c.observeInvoice("update", "unchanged")
		return nil
	}
	in, v := f.Validate()
	if !v.Empty() {
		c.edit = Overlay{Open: true, Phase: PhaseError, Form: f, Violations: v, Target: target}
		c.mu.Unlock()
		c.observeInvoice("update", "invalid")
		return ErrInvalid
	}
	c.edit = Overlay{Open: true, Phase: PhasePending, Form: f, Target: target}
	token, patient := c.token, c.patient
	c.mu.Unlock()

	inv, err := c.cfg.Writer.UpdateInvoice(ctx, token, target.ID, in)

	c.mu.Lock()
	if err != nil {
		msg := api.Describe(err, c.cfg.Lang)
		c.edit = Overlay{Open: true, Phase: PhaseError, Form: f, Error: msg, Target: target}
		c.mu.Unlock()
		c.cfg.Toasts.Error(msg)
		c.observeInvoice("update", "failed")
		c.cfg.Log.Warn().Err(err).Str("invoice", target.ID).Msg("invoice update failed")
		return err
	}
	c.edit = Overlay{Phase: PhaseSuccess}
	c.mu.Unlock()

	c.observeInvoice("update", "ok")
	c.cfg.Toasts.Success(i18n.T(c.cfg.Lang, "invoice_updated"))
	c.issueReceipt(written(inv, in, target), patient)
	c.reconcile(ctx, target.PatientID, token)
	return nil
}

// RequestDelete opens the confirmation dialog for invoice id. Nothing is
// sent until ConfirmDelete.
func (c *Controller) RequestDelete(id string) error {
	inv, err := c.find(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.del = Overlay{Open: true, Target: inv}
	c.mu.Unlock()
	return nil
}

// Deleting returns the id of the invoice awaiting delete confirmation.
func (c *Controller) Deleting() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.del.Target.ID, c.del.Open
}

// CancelDelete closes the confirmation dialog without deleting.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	c.del = Overlay{}
	c.mu.Unlock()
}

// ConfirmDelete issues exactly one delete for the invoice of the open
// dialog. On failure the dialog stays open and the error toast offers a
// retry.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if !c.del.Open {
		c.mu.Unlock()
		return ErrNotOpen
	}
	if c.del.Phase == PhasePending {
		c.mu.Unlock()
		return ErrBusy
	}
	target := c.del.Target
	c.del = Overlay{Open: true, Phase: PhasePending, Target: target}
	token := c.token
	c.mu.Unlock()

	err := c.cfg.Writer.DeleteInvoice(ctx, token, target.ID)

	c.mu.Lock()
	if err != nil {
		msg := api.Describe(err, c.cfg.Lang)
		c.del = Overlay{Open: true, Phase: PhaseError, Error: msg, Target: target}
		c.mu.Unlock()
		var action *notify.Action
		if c.cfg.RetryPath != nil {
			action = &notify.Action{LabelCode: "retry", Method: "POST", Path: c.cfg.RetryPath(target.ID)}
		}
		c.cfg.Toasts.PushAction(notify.Error, msg, action)
		c.observeInvoice("delete", "failed")
		c.cfg.Log.Warn().Err(err).Str("invoice", target.ID).Msg("invoice delete failed")
		return err
	}
	c.del = Overlay{Phase: PhaseSuccess}
	c.mu.Unlock()

	c.observeInvoice("delete", "ok")
	c.cfg.Toasts.Success(i18n.T(c.cfg.Lang, "invoice_deleted"))
	c.reconcile(ctx, target.PatientID, token)
	return nil
}

// Print generates the receipt of invoice id again.
func (c *Controller) Print(id string) (string, error) {
	inv, err := c.find(id)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	patient := c.patient
	c.mu.Unlock()
	return c.issueReceipt(inv, patient), nil
}

// issueReceipt is best-effort: an unavailable print surface becomes a
// warning toast and never fails the caller.
func (c *Controller) issueReceipt(inv models.Invoice, patient models.Patient) string {
	if c.cfg.Receipts == nil {
		return ""
	}
	doc := receipt.NewDocument(inv, patient, c.cfg.Lang, c.cfg.Now())
	id, err := c.cfg.Receipts.Issue(c.cfg.Owner, doc)
	if err != nil {
		c.cfg.Toasts.Warn(i18n.T(c.cfg.Lang, "print_blocked"))
		c.observeReceipt("blocked")
		c.cfg.Log.Warn().Err(err).Str("invoice", inv.ID).Msg("receipt not printed")
		return ""
	}
	c.observeReceipt("printed")
	c.mu.Lock()
	c.lastReceipt = id
	c.mu.Unlock()
	return id
}

// written is the invoice as stored after a write. Servers that answer with
// an empty body leave the submitted values on top of base.
func written(got models.Invoice, in models.InvoiceInput, base models.Invoice) models.Invoice {
	if got.ID == "" {
		got.ID = base.ID
	}
	if got.Libelle == "" {
		got.Libelle, got.Type, got.Montant = in.Libelle, in.Type, in.Montant
	}
	if got.PatientID == "" {
		got.PatientID = in.PatientID
	}
	if got.DateCreation.IsZero() {
		got.DateCreation = base.DateCreation
	}
	return got
}

func (c *Controller) observeInvoice(op, outcome string) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveInvoice(op, outcome)
	}
}

func (c *Controller) observeReceipt(outcome string) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveReceipt(outcome)
	}
}

// reconcile refetches the invoices of patientID so the view reflects the
// server after a write.
func (c *Controller) reconcile(ctx context.Context, patientID, token string) {
	if patientID == "" {
		return
	}
	if err := c.cfg.Invoices.Refresh(ctx, api.Scope{Token: token, ID: patientID}); err != nil {
		c.cfg.Log.Debug().Err(err).Msg("invoice refetch interrupted")
	}
}

// find returns invoice id from the selected patient's loaded list.
func (c *Controller) find(id string) (models.Invoice, error) {
	c.mu.Lock()
	scope := c.scopeLocked()
	c.mu.Unlock()
	if scope.ID == "" {
		return models.Invoice{}, ErrNoPatient
	}
	st := c.cfg.Invoices.Snapshot()
	if !st.Fresh(scope) {
		return models.Invoice{}, ErrNotFound
	}
	for _, inv := range st.Data {
		if inv.ID == id {
			return inv, nil
		}
	}
	return models.Invoice{}, ErrNotFound
}
