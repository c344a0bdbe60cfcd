// Package api is the typed client of the remote Mboa Care REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mboacare/dashboard/internal/models"
)

// Scope identifies whose data a call reads: the access token of the session
// and the id the endpoint is keyed by (doctor id or patient id).
type Scope struct {
	Token string
	ID    string
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	ID          string `json:"id"`
}

// Observer receives the latency of every call.
type Observer interface {
	ObserveRemote(endpoint string, seconds float64)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithRateLimit throttles outbound calls. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver reports call latencies.
func WithObserver(o Observer) Option { return func(c *Client) { c.obs = o } }

// Client calls the remote API. It is safe for concurrent use.
type Client struct {
	base    string
	hc      *http.Client
	limiter *rate.Limiter
	obs     Observer
}

// NewClient returns a client for baseURL with the given per-call timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login exchanges credentials for an access token and the user id.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", body, &out)
	return out, err
}

// Doctor reads the profile of the signed-in staff member.
func (c *Client) Doctor(ctx context.Context, s Scope) (models.Profile, error) {
	var out models.Profile
	err := c.do(ctx, "doctor", http.MethodGet, "/medecins/"+url.PathEscape(s.ID), s.Token, nil, &out)
	return out, err
}

// Patients lists the patients followed by doctor s.ID.
func (c *Client) Patients(ctx context.Context, s Scope) ([]models.Patient, error) {
	var out []models.Patient
	err := c.do(ctx, "patients", http.MethodGet, "/patients/medecin/"+url.PathEscape(s.ID), s.Token, nil, &out)
	return out, err
}

// Consultations lists the consultations of doctor s.ID.
func (c *Client) Consultations(ctx context.Context, s Scope) ([]models.Consultation, error) {
	var out []models.Consultation
	err := c.do(ctx, "consultations", http.MethodGet, "/consultations/medecin/"+url.PathEscape(s.ID), s.Token, nil, &out)
	return out, err
}

// TodayAppointments lists today's appointments of doctor s.ID.
func (c *Client) TodayAppointments(ctx context.Context, s Scope) ([]models.Appointment, error) {
	var out []models.Appointment
	err := c.do(ctx, "appointments", http.MethodGet, "/rendez-vous/medecin/"+url.PathEscape(s.ID)+"/today", s.Token, nil, &out)
	return out, err
}

// Invoices lists the invoices of patient s.ID.
func (c *Client) Invoices(ctx context.Context, s Scope) ([]models.Invoice, error) {
	var out []models.Invoice
	err := c.do(ctx, "invoices", http.MethodGet, "/caisses/patient/"+url.PathEscape(s.ID), s.Token, nil, &out)
	return out, err
}

// CreateInvoice writes a new invoice and returns it as stored.
func (c *Client) CreateInvoice(ctx context.Context, token string, in models.InvoiceInput) (models.Invoice, error) {
	var out models.Invoice
	err := c.do(ctx, "invoice_create", http.MethodPost, "/caisses", token, in, &out)
	return out, err
}

// UpdateInvoice replaces the writable fields of invoice id.
func (c *Client) UpdateInvoice(ctx context.Context, token, id string, in models.InvoiceInput) (models.Invoice, error) {
	var out models.Invoice
	err := c.do(ctx, "invoice_update", http.MethodPut, "/caisses/"+url.PathEscape(id), token, in, &out)
	return out, err
}

// DeleteInvoice removes invoice id.
func (c *Client) DeleteInvoice(ctx context.Context, token, id string) error {
	return c.do(ctx, "invoice_delete", http.MethodDelete, "/caisses/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) do(ctx context.Context, endpoint, method, path, token string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindTransport, Endpoint: endpoint, Err: err}
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if c.obs != nil {
		c.obs.ObserveRemote(endpoint, time.Since(start).Seconds())
	}
	if err != nil {
		return &Error{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Error{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:     KindServer,
			Status:   resp.StatusCode,
			Message:  messageFrom(data),
			Endpoint: endpoint,
		}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
