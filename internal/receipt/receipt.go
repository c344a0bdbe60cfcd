// Package receipt turns an invoice into a printable receipt and spools it
// until the browser opens it in a print window.
package receipt

import (
	"errors"
	"fmt"
	"time"

	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/internal/models"
)

// ErrSurfaceUnavailable means the receipt could not be handed to a print
// window. Callers warn the user; the invoice operation itself stands.
var ErrSurfaceUnavailable = errors.New("print surface unavailable")

// Document is everything printed on a receipt.
type Document struct {
	Invoice     models.Invoice
	Patient     models.Patient
	TypeLabel   string
	Lang        string
	GeneratedAt time.Time
}

// NewDocument assembles the receipt of inv for patient.
func NewDocument(inv models.Invoice, patient models.Patient, lang string, now time.Time) Document {
	if patient.ID == "" {
		patient.ID = inv.PatientID
	}
	return Document{
		Invoice:     inv,
		Patient:     patient,
		TypeLabel:   i18n.T(lang, inv.Type.LabelCode()),
		Lang:        lang,
		GeneratedAt: now,
	}
}

// Number is the receipt number printed in the header.
func (d Document) Number() string {
	id := d.Invoice.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return fmt.Sprintf("REC-%s-%s", d.GeneratedAt.Format("20060102"), id)
}

// Amount formats the invoice amount in FCFA with a space thousands separator.
func (d Document) Amount() string {
	return FormatFCFA(d.Invoice.Montant)
}

// FormatFCFA renders 1234567.5 as "1 234 568 FCFA".
func FormatFCFA(v float64) string {
	n := int64(v + 0.5)
	if v < 0 {
		n = int64(v - 0.5)
	}
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var out []byte
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out) + " FCFA"
	}
	return string(out) + " FCFA"
}

// Rendered is a receipt ready to be served.
type Rendered struct {
	ContentType string
	Body        []byte
}

// Printer renders a document.
type Printer interface {
	Render(d Document) (Rendered, error)
}
