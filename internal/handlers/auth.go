package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/auth"
	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/httpx"
	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/session"
	"github.com/mboacare/dashboard/validation"
	"github.com/mboacare/dashboard/view"
)

type AuthHandler struct {
	spaces  *Workspaces
	remote  Remote
	devices *auth.Devices
}

func NewAuthHandler(spaces *Workspaces) *AuthHandler {
	return &AuthHandler{spaces: spaces, remote: spaces.deps.Remote, devices: spaces.deps.Devices}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if st, err := storeOf(r); err == nil && st.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, gate.PathPrefix, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, map[string]any{})
}

// Login forwards the credentials to the remote API and stores the returned
// token. The device id is rotated first so a session never lands on an id
// that existed before login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	lang := i18n.LangFrom(r.Context())
	var in loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid json", nil)
			return
		}
	} else {
		in.Email, in.Password = r.FormValue("email"), r.FormValue("password")
	}
	in.Email = strings.TrimSpace(in.Email)

	v := make(validation.Violations)
	validation.Email("email", in.Email, v)
	validation.Required("password", in.Password, v)
	if !v.Empty() {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation failed", v)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, map[string]any{"Email": in.Email, "Violations": v})
		return
	}

	log := zerolog.Ctx(r.Context())
	res, err := h.remote.Login(r.Context(), in.Email, in.Password)
	if err == nil && (res.AccessToken == "" || res.ID == "") {
		err = &api.Error{Kind: api.KindServer, Status: http.StatusBadGateway, Endpoint: "login"}
	}
	if err != nil {
		status := loginStatus(err)
		log.Info().Err(err).Int("status", status).Msg("login refused")
		msg := i18n.T(lang, "login_failed") + " : " + api.Describe(err, lang)
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, status, msg, nil)
			return
		}
		h.render(w, r, status, map[string]any{"Email": in.Email, "Error": msg})
		return
	}

	if old, ok := auth.DeviceFromContext(r.Context()); ok {
		h.spaces.Invalidate(old)
	}
	r, device := h.devices.Rotate(w, r)
	st, _ := storeOf(r)
	if err := st.Save(r.Context(), res.ID, res.AccessToken); err != nil {
		log.Error().Err(err).Msg("session save failed")
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusInternalServerError, "session unavailable", nil)
			return
		}
		h.render(w, r, http.StatusInternalServerError, map[string]any{"Email": in.Email, "Error": i18n.T(lang, "http_500")})
		return
	}
	ev := log.Info().Str("device", device).Str("user", res.ID)
	if exp, ok := session.Expiry(res.AccessToken); ok {
		ev = ev.Time("token_expiry", exp)
	}
	ev.Msg("signed in")

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"id": res.ID, "redirect": gate.PathPrefix})
		return
	}
	http.Redirect(w, r, gate.PathPrefix, http.StatusSeeOther)
}

// Logout clears the session of the device and drops its cached data.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if st, err := storeOf(r); err == nil {
		if err := st.Clear(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("session clear failed")
		}
	}
	if device, ok := auth.DeviceFromContext(r.Context()); ok {
		h.spaces.Invalidate(device)
	}
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	data["Title"] = view.Title(i18n.T(i18n.LangFrom(r.Context()), "login_title"))
	if err := view.RenderStatus(w, r, status, "login.html", data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render login")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// loginStatus maps a remote failure to the status of the login response.
func loginStatus(err error) int {
	switch s := api.StatusOf(err); {
	case s == 0, s >= 500:
		return http.StatusBadGateway
	case s == http.StatusTooManyRequests:
		return s
	default:
		return http.StatusUnauthorized
	}
}

// sessionTTL is informational: the dashboard never gates on token expiry.
func sessionTTL(token string, now time.Time) time.Duration {
	exp, ok := session.Expiry(token)
	if !ok {
		return 0
	}
	return exp.Sub(now)
}
