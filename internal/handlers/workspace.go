package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/auth"
	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/httpx"
	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/invoice"
	"github.com/mboacare/dashboard/internal/metrics"
	"github.com/mboacare/dashboard/internal/notify"
	"github.com/mboacare/dashboard/internal/policy"
	"github.com/mboacare/dashboard/internal/receipt"
	"github.com/mboacare/dashboard/internal/slice"
	"github.com/mboacare/dashboard/session"
	"github.com/mboacare/dashboard/view"
)

// ErrNoSession is returned when a protected handler runs without a session.
var ErrNoSession = errors.New("no session")

// Remote is everything the dashboard asks the remote API.
type Remote interface {
	slice.Remote
	invoice.Writer
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
}

// Workspace is the in-memory state of one browser: its resource slices,
// pending toasts and the invoice workflow.
type Workspace struct {
	Device    string
	Lang      string
	Resources *slice.Resources
	Toasts    *notify.Queue
	Invoices  *invoice.Controller
}

// Deps wires the handlers.
type Deps struct {
	Remote   Remote
	Devices  *auth.Devices
	Receipts *receipt.Service
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
	// TTL evicts workspaces of idle browsers. Zero keeps them until logout.
	TTL time.Duration
}

// Workspaces keeps one Workspace per device and language.
type Workspaces struct {
	deps Deps
	reg  *slice.Registry[*Workspace]
}

// NewWorkspaces returns an empty set of workspaces.
func NewWorkspaces(d Deps) *Workspaces {
	ws := &Workspaces{deps: d}
	ws.reg = slice.NewRegistry(d.TTL, ws.create, func(w *Workspace) { w.Resources.Close() })
	if d.Metrics != nil {
		ws.reg.OnSize(d.Metrics.SetActiveResources)
	}
	return ws
}

func workspaceKey(lang, device string) string { return lang + ":" + device }

func (ws *Workspaces) create(key string) *Workspace {
	lang, device, _ := strings.Cut(key, ":")
	log := ws.deps.Log.With().Str("device", device).Logger()
	var obs slice.Observer
	if ws.deps.Metrics != nil {
		obs = ws.deps.Metrics
	}
	res := slice.NewResources(ws.deps.Remote, lang, obs, log)
	toasts := notify.NewQueue(0)
	cfg := invoice.Config{
		Owner:    device,
		Lang:     lang,
		Writer:   ws.deps.Remote,
		Invoices: res.Invoices,
		Toasts:   toasts,
		Log:      log,
		RetryPath: func(id string) string {
			return "/app/caisse/invoices/" + id + "/delete/confirm"
		},
	}
	if ws.deps.Receipts != nil {
		cfg.Receipts = ws.deps.Receipts
	}
	if ws.deps.Metrics != nil {
		cfg.Observer = ws.deps.Metrics
	}
	return &Workspace{
		Device:    device,
		Lang:      lang,
		Resources: res,
		Toasts:    toasts,
		Invoices:  invoice.New(cfg),
	}
}

// For returns the workspace of the request's device.
func (ws *Workspaces) For(r *http.Request) (*Workspace, error) {
	device, ok := auth.DeviceFromContext(r.Context())
	if !ok {
		return nil, ErrNoSession
	}
	return ws.reg.Get(workspaceKey(i18n.LangFrom(r.Context()), device)), nil
}

// Invalidate drops every workspace of device.
func (ws *Workspaces) Invalidate(device string) {
	for _, lang := range i18n.Langs() {
		ws.reg.Invalidate(workspaceKey(lang, device))
	}
}

// Run evicts idle workspaces until ctx is done.
func (ws *Workspaces) Run(ctx context.Context, interval time.Duration) {
	ws.reg.Run(ctx, interval)
}

// Close releases every workspace.
func (ws *Workspaces) Close() { ws.reg.Close() }

// Len returns the number of live workspaces.
func (ws *Workspaces) Len() int { return ws.reg.Len() }

// Scope returns the fetch key of the signed-in user.
func Scope(r *http.Request) (api.Scope, error) {
	st, ok := auth.StoreFromContext(r.Context())
	if !ok {
		return api.Scope{}, ErrNoSession
	}
	s, err := st.Snapshot(r.Context())
	if err != nil {
		return api.Scope{}, err
	}
	if !s.Valid() {
		return api.Scope{}, ErrNoSession
	}
	return api.Scope{Token: s.Token, ID: s.UserID}, nil
}

// settle makes sure s holds the outcome of a fetch for scope and returns it.
// A fetch for another key that was in flight is waited out first.
func settle[T any](ctx context.Context, s *slice.Slice[api.Scope, T], scope api.Scope) (slice.State[api.Scope, T], error) {
	for range 2 {
		s.Ensure(ctx, scope)
		if err := s.Wait(ctx); err != nil {
			return s.Snapshot(), err
		}
		st := s.Snapshot()
		if st.Fresh(scope) || (st.Key == scope && st.Status == slice.Failed) {
			return st, nil
		}
	}
	return s.Snapshot(), nil
}

// Role resolves the role of the signed-in user from the doctor profile.
func (ws *Workspaces) Role(r *http.Request) (gate.Role, error) {
	w, err := ws.For(r)
	if err != nil {
		return gate.RoleNone, err
	}
	scope, err := Scope(r)
	if err != nil {
		return gate.RoleNone, err
	}
	st, err := settle(r.Context(), w.Resources.Doctor, scope)
	if err != nil {
		return gate.RoleNone, err
	}
	if !st.Fresh(scope) {
		return gate.RoleNone, errors.New(st.Error)
	}
	return st.Data.Role, nil
}

// page fills the data shared by every page of the shell.
func (ws *Workspaces) page(r *http.Request, w *Workspace, section, title string, data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	role := gate.RoleNone
	if scope, err := Scope(r); err == nil {
		if st := w.Resources.Doctor.Snapshot(); st.Fresh(scope) {
			role = st.Data.Role
			p := st.Data
			data["UserName"] = p.DisplayName()
		}
	}
	data["Title"] = title
	data["Section"] = section
	data["Nav"] = gate.Navigation(role)
	data["Role"] = role
	data["Toasts"] = w.Toasts.Drain()
	return data
}

// storeOf returns the session store of the request's device.
func storeOf(r *http.Request) (*session.Store, error) {
	st, ok := auth.StoreFromContext(r.Context())
	if !ok {
		return nil, ErrNoSession
	}
	return st, nil
}

// Forbidden renders the 403 page inside the shell.
func (ws *Workspaces) Forbidden(w http.ResponseWriter, r *http.Request) {
	title := view.Title(i18n.T(i18n.LangFrom(r.Context()), "forbidden"))
	data := map[string]any{"Title": title, "Nav": gate.Navigation(gate.RoleNone)}
	if err := policy.DenialFrom(r.Context()); err != nil {
		data["Reason"] = denialCode(err)
	}
	if wk, err := ws.For(r); err == nil {
		data = ws.page(r, wk, "", title, data)
	}
	ws.render(w, r, http.StatusForbidden, "forbidden.html", data)
}

// NotFound renders the shell's 404 page for unknown paths under /app/.
func (ws *Workspaces) NotFound(w http.ResponseWriter, r *http.Request) {
	lang := i18n.LangFrom(r.Context())
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusNotFound, i18n.StatusPhrase(lang, http.StatusNotFound), nil)
		return
	}
	title := view.Title(i18n.T(lang, "http_404"))
	data := map[string]any{"Title": title, "Nav": gate.Navigation(gate.RoleNone)}
	if wk, err := ws.For(r); err == nil {
		data = ws.page(r, wk, "", title, data)
	}
	ws.render(w, r, http.StatusNotFound, "notfound.html", data)
}

// denialCode is the message code shown for a refused section. Anything but a
// plain role mismatch means the role could not be resolved.
func denialCode(err error) string {
	if errors.Is(err, gate.ErrUnauthorized) {
		return "section_denied"
	}
	return "role_unresolved"
}

// Unavailable answers a request whose data could not be loaded, most often
// because the request was cancelled while waiting on the remote API. The
// page offers the way back to retry.
func (ws *Workspaces) Unavailable(w http.ResponseWriter, r *http.Request, retry string, err error) {
	zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("load interrupted")
	lang := i18n.LangFrom(r.Context())
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusServiceUnavailable, i18n.StatusPhrase(lang, http.StatusServiceUnavailable), nil)
		return
	}
	title := view.Title(i18n.T(lang, "http_503"))
	data := map[string]any{"Title": title, "Retry": retry, "Nav": gate.Navigation(gate.RoleNone)}
	if wk, werr := ws.For(r); werr == nil {
		data = ws.page(r, wk, "", title, data)
	}
	ws.render(w, r, http.StatusServiceUnavailable, "unavailable.html", data)
}

func (ws *Workspaces) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
