// Package policy guards the protected part of the dashboard: the session
// check on entry and the per-section role check.
package policy

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/auth"
	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/httpx"
)

// GateState is the state of the auth gate for one protected-route entry.
type GateState int

const (
	Checking GateState = iota
	Authenticated
	Unauthenticated
)

func (s GateState) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "checking"
}

// SessionChecker is the one question the gate asks the session.
type SessionChecker interface {
	IsAuthenticated(ctx context.Context) bool
}

// Guard is the gate of a single entry. It leaves Checking exactly once and
// never reconsiders: later session changes do not affect a settled guard.
type Guard struct {
	state GateState
}

// State returns the current state.
func (g *Guard) State() GateState { return g.state }

// Resolve queries s once. Later calls return the settled state.
func (g *Guard) Resolve(ctx context.Context, s SessionChecker) GateState {
	if g.state != Checking {
		return g.state
	}
	if s != nil && s.IsAuthenticated(ctx) {
		g.state = Authenticated
	} else {
		g.state = Unauthenticated
	}
	return g.state
}

// GateObserver counts gate decisions.
type GateObserver interface {
	ObserveGate(decision string)
}

// RoleResolver returns the role of the signed-in user.
type RoleResolver func(r *http.Request) (gate.Role, error)

// AuthGate guards the protected routes.
type AuthGate struct {
	LoginPath string
	// Forbidden renders the 403 page; plain text when nil.
	Forbidden http.Handler
	obs       GateObserver
	log       zerolog.Logger
}

// NewAuthGate redirects unauthenticated entries to loginPath.
func NewAuthGate(loginPath string, obs GateObserver, log zerolog.Logger) *AuthGate {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &AuthGate{LoginPath: loginPath, obs: obs, log: log}
}

// Evaluate runs a fresh guard against s.
func (ag *AuthGate) Evaluate(ctx context.Context, s SessionChecker) GateState {
	var g Guard
	return g.Resolve(ctx, s)
}

// Require serves next only for authenticated sessions. Every request is one
// entry: nothing is written while checking, and an unauthenticated entry is
// redirected to the login page with 303 so the blocked URL does not stay in
// history. JSON callers get 401.
func (ag *AuthGate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var checker SessionChecker
		if st, ok := auth.StoreFromContext(r.Context()); ok {
			checker = st
		}
		if ag.Evaluate(r.Context(), checker) == Authenticated {
			ag.observe("allow")
			next.ServeHTTP(w, r)
			return
		}
		ag.observe("redirect")
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		http.Redirect(w, r, ag.LoginPath, http.StatusSeeOther)
	})
}

// RequireLink serves next only when the signed-in role may open link.
// Failing to resolve the role denies access.
func (ag *AuthGate) RequireLink(link gate.Link, roles RoleResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, err := roles(r)
			if err == nil {
				err = gate.Authorize(role, link)
			}
			if err != nil {
				ag.observe("forbidden")
				ag.log.Debug().Err(err).Str("link", link.ID()).Str("role", role.String()).Msg("section denied")
				ag.forbid(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (ag *AuthGate) forbid(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if ag.Forbidden != nil {
		ag.Forbidden.ServeHTTP(w, r.WithContext(withDenial(r.Context(), err)))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func (ag *AuthGate) observe(decision string) {
	if ag.obs != nil {
		ag.obs.ObserveGate(decision)
	}
}

type denialKey struct{}

func withDenial(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, denialKey{}, err)
}

// DenialFrom returns why RequireLink refused the request, or nil when the
// request was not refused by it.
func DenialFrom(ctx context.Context) error {
	err, _ := ctx.Value(denialKey{}).(error)
	return err
}
