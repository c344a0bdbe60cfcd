package main

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mboacare/dashboard/internal/api"
	"github.com/mboacare/dashboard/internal/devapi"
	"github.com/mboacare/dashboard/internal/logging"
	"github.com/mboacare/dashboard/internal/metrics"
	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/internal/receipt"
	"github.com/mboacare/dashboard/session"
)

type e2e struct {
	t       *testing.T
	dash    *httptest.Server
	remote  *devapi.Server
	client  *api.Client
	browser *http.Client
}

func setupE2E(t *testing.T) *e2e {
	t.Helper()
	store, err := devapi.Open(context.Background(), "file:e2e_"+t.Name()+"?mode=memory&cache=shared", logging.Nop())
	if err != nil {
		t.Fatalf("devapi: %v", err)
	}
	remote := devapi.NewServer(store, devapi.NewTokens("e2e-key", time.Hour), logging.Nop())
	remoteSrv := httptest.NewServer(remote)
	t.Cleanup(remoteSrv.Close)

	client := api.NewClient(remoteSrv.URL, 5*time.Second)
	app := NewApp(Options{
		Remote:   client,
		Storage:  session.NewMemoryStorage(),
		Secret:   "e2e-secret",
		Receipts: &receipt.Service{Printer: receipt.HTMLPrinter{}, Spool: receipt.NewSpool(8, time.Minute)},
		Metrics:  metrics.New(),
		Log:      logging.Nop(),
		TTL:      time.Hour,
	})
	t.Cleanup(app.Workspaces().Close)
	dash := httptest.NewServer(app)
	t.Cleanup(dash.Close)

	jar, _ := cookiejar.New(nil)
	browser := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &e2e{t: t, dash: dash, remote: remote, client: client, browser: browser}
}

func (e *e2e) do(method, path string, form url.Values) (*http.Response, string) {
	e.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, e.dash.URL+path, body)
	if err != nil {
		e.t.Fatalf("request: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := e.browser.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func (e *e2e) get(path string) (*http.Response, string) { return e.do(http.MethodGet, path, nil) }

func (e *e2e) post(path string, form url.Values) (*http.Response, string) {
	if form == nil {
		form = url.Values{}
	}
	return e.do(http.MethodPost, path, form)
}

// follow posts and then loads the page the redirect points to.
func (e *e2e) follow(path string, form url.Values) string {
	e.t.Helper()
	resp, _ := e.post(path, form)
	if resp.StatusCode != http.StatusSeeOther {
		e.t.Fatalf("POST %s: status %d, want 303", path, resp.StatusCode)
	}
	_, body := e.get(resp.Header.Get("Location"))
	return body
}

func (e *e2e) login(email string) {
	e.t.Helper()
	resp, _ := e.post("/login", url.Values{"email": {email}, "password": {devapi.SeedPassword}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/app/" {
		e.t.Fatalf("login: status %d location %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func (e *e2e) cashierPatient() (api.Scope, models.Patient) {
	e.t.Helper()
	res, err := e.client.Login(context.Background(), devapi.SeedCaissiere, devapi.SeedPassword)
	if err != nil {
		e.t.Fatalf("remote login: %v", err)
	}
	scope := api.Scope{Token: res.AccessToken, ID: res.ID}
	patients, err := e.client.Patients(context.Background(), scope)
	if err != nil || len(patients) == 0 {
		e.t.Fatalf("patients: %v (%d)", err, len(patients))
	}
	return scope, patients[0]
}

func (e *e2e) invoiceCount(token, patientID string) int {
	e.t.Helper()
	list, err := e.client.Invoices(context.Background(), api.Scope{Token: token, ID: patientID})
	if err != nil {
		e.t.Fatalf("invoices: %v", err)
	}
	return len(list)
}

func TestProtectedRouteWithoutSessionRedirects(t *testing.T) {
	e := setupE2E(t)
	for _, path := range []string{"/app/", "/app/dashbord", "/app/caisse", "/app/unknown/page"} {
		resp, body := e.get(path)
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/login" {
			t.Fatalf("%s: location %q", path, loc)
		}
		if strings.Contains(body, `aria-label="menu"`) {
			t.Fatalf("%s: protected shell rendered", path)
		}
	}
}

func TestLoginRendersShellForRole(t *testing.T) {
	e := setupE2E(t)
	e.login(devapi.SeedMedecin)

	resp, _ := e.get("/app/")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/app/dashbord" {
		t.Fatalf("landing: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, body := e.get("/app/dashbord")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: %d", resp.StatusCode)
	}
	for _, want := range []string{
		`data-nav="dashbord"`, `data-nav="patient"`, `data-nav="agenda"`, `data-nav="profil"`, `data-nav="logout"`,
		"Alice Mbarga", `data-stat="patients"><strong>6</strong>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, `data-nav="caisse"`) {
		t.Errorf("medecin must not see caisse")
	}

	resp, body = e.get("/app/unknown/page")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown section: %d", resp.StatusCode)
	}
	if !strings.Contains(body, `data-nav="dashbord"`) || !strings.Contains(body, "Ressource introuvable") {
		t.Fatalf("unknown section not rendered in the shell")
	}

	resp, body = e.get("/app/caisse")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("caisse for medecin: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Accès refusé") || !strings.Contains(body, `data-denial="section_denied"`) {
		t.Fatalf("forbidden page not rendered")
	}
}

func TestLoginFailureStaysOnForm(t *testing.T) {
	e := setupE2E(t)
	resp, body := e.post("/login", url.Values{"email": {devapi.SeedMedecin}, "password": {"wrong"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Email ou mot de passe incorrect") {
		t.Fatalf("server message not shown: %s", body)
	}
	resp, _ = e.post("/login", url.Values{"email": {"not-an-email"}, "password": {""}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid form status %d", resp.StatusCode)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	e := setupE2E(t)
	e.login(devapi.SeedMedecin)
	if resp, _ := e.get("/app/dashbord"); resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: %d", resp.StatusCode)
	}
	resp, _ := e.post("/logout", nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("logout: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, _ = e.get("/app/dashbord")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("after logout: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

var receiptLink = regexp.MustCompile(`data-receipt="([^"]+)"`)

func TestCaisseCreateAndReceipt(t *testing.T) {
	e := setupE2E(t)
	scope, patient := e.cashierPatient()
	e.login(devapi.SeedCaissiere)
	before := e.invoiceCount(scope.Token, patient.ID)

	base := "/app/caisse/invoices?patient=" + url.QueryEscape(patient.ID)
	body := e.follow(base, url.Values{"libelle": {"Pansement"}, "type": {"soins"}, "montant": {"-10"}})
	if !strings.Contains(body, "Doit être un nombre positif") {
		t.Fatalf("violation not rendered")
	}
	if got := e.invoiceCount(scope.Token, patient.ID); got != before {
		t.Fatalf("invalid form reached the server: %d -> %d", before, got)
	}

	body = e.follow(base, url.Values{"libelle": {"Pansement"}, "type": {"soins"}, "montant": {"2500"}})
	if got := e.invoiceCount(scope.Token, patient.ID); got != before+1 {
		t.Fatalf("invoices: %d -> %d", before, got)
	}
	if !strings.Contains(body, "Facture créée") || !strings.Contains(body, "2 500 FCFA") {
		t.Fatalf("created invoice not shown")
	}
	m := receiptLink.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no receipt link")
	}
	resp, doc := e.get("/app/receipts/" + m[1])
	if resp.StatusCode != http.StatusOK || !strings.Contains(doc, "window.print()") {
		t.Fatalf("receipt: %d", resp.StatusCode)
	}
	if resp, _ := e.get("/app/receipts/" + m[1]); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("receipt served twice: %d", resp.StatusCode)
	}
}

func TestCaisseCreateStaysWithSelectedPatient(t *testing.T) {
	e := setupE2E(t)
	scope, patient := e.cashierPatient()
	patients, err := e.client.Patients(context.Background(), scope)
	if err != nil || len(patients) < 2 {
		t.Fatalf("patients: %v (%d)", err, len(patients))
	}
	other := patients[1]
	e.login(devapi.SeedCaissiere)
	mine, theirs := e.invoiceCount(scope.Token, patient.ID), e.invoiceCount(scope.Token, other.ID)

	base := "/app/caisse/invoices?patient=" + url.QueryEscape(patient.ID)
	for _, pid := range []string{"ghost", other.ID} {
		body := e.follow(base, url.Values{"libelle": {"Pansement"}, "type": {"soins"}, "montant": {"2500"}, "patientId": {pid}})
		if !strings.Contains(body, "La facture ne correspond pas au patient sélectionné") {
			t.Fatalf("patientId %q: mismatch not reported", pid)
		}
		if strings.Contains(body, "data-receipt") {
			t.Fatalf("patientId %q: receipt issued", pid)
		}
	}
	if got := e.invoiceCount(scope.Token, patient.ID); got != mine {
		t.Fatalf("selected patient invoices: %d -> %d", mine, got)
	}
	if got := e.invoiceCount(scope.Token, other.ID); got != theirs {
		t.Fatalf("other patient invoices: %d -> %d", theirs, got)
	}
}

func TestCaisseDeleteRetry(t *testing.T) {
	e := setupE2E(t)
	scope, patient := e.cashierPatient()
	inv, err := e.client.CreateInvoice(context.Background(), scope.Token, models.InvoiceInput{
		Libelle: "Chambre", Type: models.InvoiceHospitalisation, Montant: 30000, PatientID: patient.ID,
	})
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	e.login(devapi.SeedCaissiere)
	q := "?patient=" + url.QueryEscape(patient.ID)
	if resp, _ := e.get("/app/caisse" + q); resp.StatusCode != http.StatusOK {
		t.Fatalf("caisse: %d", resp.StatusCode)
	}

	body := e.follow("/app/caisse/invoices/"+inv.ID+"/delete"+q, nil)
	if !strings.Contains(body, `data-overlay="delete"`) || !strings.Contains(body, "Cette action est irréversible.") {
		t.Fatalf("confirmation not shown")
	}
	before := e.invoiceCount(scope.Token, patient.ID)

	e.remote.Fail(http.MethodDelete, "/caisses/"+inv.ID, http.StatusInternalServerError)
	body = e.follow("/app/caisse/invoices/"+inv.ID+"/delete/confirm"+q, nil)
	if !strings.Contains(body, "toast-error") || !strings.Contains(body, "Réessayer") {
		t.Fatalf("failure toast with retry missing")
	}
	if got := e.invoiceCount(scope.Token, patient.ID); got != before {
		t.Fatalf("invoice deleted despite failure")
	}

	body = e.follow("/app/caisse/invoices/"+inv.ID+"/delete/confirm", nil)
	if !strings.Contains(body, "Facture supprimée") {
		t.Fatalf("retry did not delete")
	}
	if got := e.invoiceCount(scope.Token, patient.ID); got != before-1 {
		t.Fatalf("invoices: %d -> %d", before, got)
	}
}

func TestOpsEndpoints(t *testing.T) {
	e := setupE2E(t)
	e.get("/app/dashbord")
	resp, body := e.get("/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}
	resp, body = e.get("/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "mboa_gate_decisions_total") {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if resp.Header.Get("Set-Cookie") != "" {
		t.Fatalf("ops routes must not issue device cookies")
	}
}
