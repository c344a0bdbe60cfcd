package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/auth"
	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/internal/handlers"
	"github.com/mboacare/dashboard/internal/logging"
	"github.com/mboacare/dashboard/internal/metrics"
	prefs "github.com/mboacare/dashboard/internal/middleware"
	"github.com/mboacare/dashboard/internal/policy"
	"github.com/mboacare/dashboard/internal/receipt"
	"github.com/mboacare/dashboard/session"
)

// Options wires an App.
type Options struct {
	Remote   handlers.Remote
	Storage  session.Storage
	Secret   string
	Secure   bool
	Receipts *receipt.Service
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
	// TTL evicts the cached data of idle browsers.
	TTL time.Duration
}

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	app     *http.ServeMux
	handler http.Handler

	devices *auth.Devices
	spaces  *handlers.Workspaces
	gate    *policy.AuthGate
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewApp creates a new application with all routes configured.
func NewApp(o Options) *App {
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	devices := auth.NewDevices(o.Secret, o.Storage, o.Secure)
	spaces := handlers.NewWorkspaces(handlers.Deps{
		Remote:   o.Remote,
		Devices:  devices,
		Receipts: o.Receipts,
		Metrics:  o.Metrics,
		Log:      o.Log,
		TTL:      o.TTL,
	})
	ag := policy.NewAuthGate("/login", o.Metrics, o.Log)
	ag.Forbidden = http.HandlerFunc(spaces.Forbidden)

	a := &App{
		mux:     http.NewServeMux(),
		app:     http.NewServeMux(),
		devices: devices,
		spaces:  spaces,
		gate:    ag,
		metrics: o.Metrics,
		log:     o.Log,
	}
	a.setupRoutes()

	// Browser routes get a device and a language; ops routes do not.
	var browser http.Handler = a.app
	browser = devices.Middleware(browser)
	browser = prefs.Prefs(browser)
	a.mux.Handle("/", browser)

	var h http.Handler = a.mux
	h = middleware.Recoverer(h)
	h = logging.Middleware(o.Log)(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)
	a.handler = h
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Workspaces exposes the per-browser state for the eviction loop.
func (a *App) Workspaces() *handlers.Workspaces { return a.spaces }

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	a.mux.Handle("GET /metrics", a.metrics.Handler())
	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	// Public routes
	ah := handlers.NewAuthHandler(a.spaces)
	a.app.HandleFunc("GET /{$}", ah.LoginForm)
	a.app.HandleFunc("GET /login", ah.LoginForm)
	a.app.HandleFunc("POST /login", ah.Login)
	a.app.HandleFunc("GET /logout", ah.Logout)
	a.app.HandleFunc("POST /logout", ah.Logout)

	// Protected routes: session check, then the section's role check.
	dh := handlers.NewDashboardHandler(a.spaces)
	sh := handlers.NewSectionHandler(a.spaces)
	ch := handlers.NewCaisseHandler(a.spaces)

	a.app.Handle("GET /app/{$}", a.gate.Require(http.HandlerFunc(dh.Landing)))
	a.app.Handle("/app/", a.gate.Require(http.HandlerFunc(a.spaces.NotFound)))
	for _, l := range gate.Links() {
		var h http.HandlerFunc
		switch l {
		case gate.LinkDashbord:
			h = dh.Show
		case gate.LinkCaisse:
			h = ch.Show
		default:
			h = sh.Show(l)
		}
		a.app.Handle("GET "+l.Path(), a.section(l, h))
	}

	caisse := func(h http.HandlerFunc) http.Handler { return a.section(gate.LinkCaisse, h) }
	a.app.Handle("GET /app/caisse/invoices/new", caisse(ch.New))
	a.app.Handle("POST /app/caisse/invoices", caisse(ch.Create))
	a.app.Handle("GET /app/caisse/invoices/{id}/edit", caisse(ch.Edit))
	a.app.Handle("POST /app/caisse/invoices/{id}", caisse(ch.Update))
	a.app.Handle("POST /app/caisse/invoices/{id}/delete", caisse(ch.RequestDelete))
	a.app.Handle("POST /app/caisse/invoices/{id}/delete/confirm", caisse(ch.ConfirmDelete))
	a.app.Handle("POST /app/caisse/invoices/{id}/delete/cancel", caisse(ch.CancelDelete))
	a.app.Handle("POST /app/caisse/invoices/{id}/print", caisse(ch.Print))
	a.app.Handle("GET /app/receipts/{id}", caisse(ch.Receipt))
}

// section guards h with the session check and the role check of l.
func (a *App) section(l gate.Link, h http.HandlerFunc) http.Handler {
	return a.gate.Require(a.gate.RequireLink(l, a.spaces.Role)(h))
}
