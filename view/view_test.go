package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/notify"
	"github.com/mboacare/dashboard/validation"
)

func TestRenderLoginWithViolations(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	err := RenderStatus(rr, req, http.StatusUnprocessableEntity, "login.html", map[string]any{
		"Title":      Title("Connexion"),
		"Violations": validation.Violations{"email": "invalid_email"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Adresse e-mail invalide") {
		t.Fatalf("missing translated violation: %s", body)
	}
	if strings.Contains(body, `aria-label="menu"`) {
		t.Fatalf("login page must not render the navigation shell")
	}
}

func TestRenderShellNavigation(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/app/dashbord", nil)
	req = req.WithContext(i18n.WithLang(req.Context(), "en"))
	err := Render(rr, req, "forbidden.html", map[string]any{
		"Title":   Title("403"),
		"Nav":     gate.Navigation(gate.RoleCaissiere),
		"Section": "caisse",
		"Toasts":  []notify.Toast{{Level: notify.Warning, Message: "careful"}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	body := rr.Body.String()
	for _, want := range []string{`data-nav="dashbord"`, `data-nav="caisse"`, `data-nav="profil"`, `data-nav="logout"`, "Access denied", "toast-warning", `data-dismiss-ms="4000"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, `data-nav="agenda"`) {
		t.Errorf("caissiere must not see agenda")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := Render(rr, httptest.NewRequest(http.MethodGet, "/", nil), "missing.html", nil); err == nil {
		t.Fatalf("expected error")
	}
}
