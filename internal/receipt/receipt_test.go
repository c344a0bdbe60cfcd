package receipt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mboacare/dashboard/internal/models"
)

func sampleDoc() Document {
	inv := models.Invoice{ID: "64f1c2aa9b", Libelle: "Consultation", Type: models.InvoiceConsultation, Montant: 5000, PatientID: "p1", DateCreation: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	return NewDocument(inv, models.Patient{Nom: "Ngono", Prenom: "Awa"}, "fr", time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC))
}

func TestNewDocument(t *testing.T) {
	d := sampleDoc()
	if d.Patient.ID != "p1" {
		t.Errorf("patient id should default to the invoice's, got %q", d.Patient.ID)
	}
	if d.TypeLabel != "Consultation" {
		t.Errorf("type label = %q", d.TypeLabel)
	}
	if d.Number() != "REC-20260302-f1c2aa9b" {
		t.Errorf("number = %q", d.Number())
	}
}

func TestFormatFCFA(t *testing.T) {
	tests := map[float64]string{
		0:         "0 FCFA",
		5000:      "5 000 FCFA",
		1234567.5: "1 234 568 FCFA",
		999:       "999 FCFA",
		-2500:     "-2 500 FCFA",
	}
	for in, want := range tests {
		if got := FormatFCFA(in); got != want {
			t.Errorf("FormatFCFA(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestHTMLPrinter(t *testing.T) {
	r, err := HTMLPrinter{}.Render(sampleDoc())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	body := string(r.Body)
	for _, want := range []string{"window.print()", "Awa Ngono", "5 000 FCFA", "Consultation", "02/03/2026"} {
		if !strings.Contains(body, want) {
			t.Errorf("receipt missing %q", want)
		}
	}
	if !strings.HasPrefix(r.ContentType, "text/html") {
		t.Errorf("content type %q", r.ContentType)
	}
}

func TestPDFPrinter(t *testing.T) {
	r, err := PDFPrinter{}.Render(sampleDoc())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if r.ContentType != "application/pdf" || !bytes.HasPrefix(r.Body, []byte("%PDF")) {
		t.Fatalf("not a pdf: %q", r.ContentType)
	}
}

func TestSpoolBlocksWhenFull(t *testing.T) {
	s := NewSpool(1, time.Minute)
	id, err := s.Put("dev", Rendered{Body: []byte("a")})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put("dev", Rendered{}); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Fatalf("full spool should be unavailable, got %v", err)
	}
	if _, ok := s.Take("other-dev", id); ok {
		t.Fatalf("another device must not read the receipt")
	}
	r, ok := s.Take("dev", id)
	if !ok || string(r.Body) != "a" {
		t.Fatalf("take failed")
	}
	if _, ok := s.Take("dev", id); ok {
		t.Fatalf("receipt must be served once")
	}
	if _, err := s.Put("dev", Rendered{}); err != nil {
		t.Fatalf("spool should accept again: %v", err)
	}
}

func TestSpoolQuotaIsPerOwner(t *testing.T) {
	s := NewSpool(2, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := s.Put("dev-a", Rendered{}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if _, err := s.Put("dev-a", Rendered{}); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Fatalf("dev-a over quota, got %v", err)
	}
	id, err := s.Put("dev-b", Rendered{Body: []byte("b")})
	if err != nil {
		t.Fatalf("dev-b blocked by dev-a's backlog: %v", err)
	}
	if r, ok := s.Take("dev-b", id); !ok || string(r.Body) != "b" {
		t.Fatalf("dev-b take failed")
	}
	if got := s.Len(); got != 2 {
		t.Fatalf("len = %d, want 2", got)
	}
}

func TestSpoolExpires(t *testing.T) {
	now := time.Now()
	s := NewSpool(1, time.Minute)
	s.now = func() time.Time { return now }
	id, _ := s.Put("dev", Rendered{})
	now = now.Add(2 * time.Minute)
	if _, ok := s.Take("dev", id); ok {
		t.Fatalf("expired receipt must not be served")
	}
	if _, err := s.Put("dev", Rendered{}); err != nil {
		t.Fatalf("expired entries should free space: %v", err)
	}
}

type failingPrinter struct{}

func (failingPrinter) Render(Document) (Rendered, error) { return Rendered{}, errors.New("font missing") }

func TestServiceIssue(t *testing.T) {
	svc := &Service{Printer: HTMLPrinter{}, Spool: NewSpool(4, time.Minute)}
	if _, err := svc.Issue("dev", sampleDoc()); err != nil {
		t.Fatalf("issue: %v", err)
	}
	bad := &Service{Printer: failingPrinter{}, Spool: NewSpool(4, time.Minute)}
	if _, err := bad.Issue("dev", sampleDoc()); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Fatalf("render failure should be unavailable, got %v", err)
	}
	var none *Service
	if _, err := none.Issue("dev", sampleDoc()); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Fatalf("nil service should be unavailable")
	}
	if _, ok := PrinterFor("pdf").(PDFPrinter); !ok {
		t.Fatalf("pdf format should select the PDF printer")
	}
}
