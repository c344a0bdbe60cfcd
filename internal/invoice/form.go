package invoice

import (
	"strconv"
	"strings"

	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/validation"
)

// Form is the invoice form as submitted, before parsing.
type Form struct {
	Libelle   string
	Type      string
	Montant   string
	PatientID string
}

// OwnerPatient returns the patient the form writes for.
func (f Form) OwnerPatient() string { return strings.TrimSpace(f.PatientID) }

// FormFrom fills a form with the current values of inv.
func FormFrom(inv models.Invoice) Form {
	return Form{
		Libelle:   inv.Libelle,
		Type:      string(inv.Type),
		Montant:   strconv.FormatFloat(inv.Montant, 'f', -1, 64),
		PatientID: inv.PatientID,
	}
}

// Validate parses the form. Field errors are translation codes keyed by
// field name (libelle, type, montant, patientId).
func (f Form) Validate() (models.InvoiceInput, validation.Violations) {
	v := validation.Violations{}
	validation.MinLength("libelle", f.Libelle, 2, v)

	allowed := make([]string, 0, len(models.InvoiceTypes()))
	for _, t := range models.InvoiceTypes() {
		allowed = append(allowed, string(t))
	}
	typ := strings.ToLower(strings.TrimSpace(f.Type))
	validation.OneOf("type", typ, allowed, v)

	montant := validation.PositiveNumber("montant", f.Montant, v)
	validation.Required("patientId", f.PatientID, v)

	in := models.InvoiceInput{
		Libelle:   strings.TrimSpace(f.Libelle),
		Type:      models.InvoiceType(typ),
		Montant:   montant,
		PatientID: strings.TrimSpace(f.PatientID),
	}
	return in, v
}

// differs compares the form field by field against inv, after the same
// normalization Validate applies. An unparsable amount counts as a change.
func (f Form) differs(inv models.Invoice) bool {
	if strings.TrimSpace(f.Libelle) != inv.Libelle {
		return true
	}
	if models.InvoiceType(strings.ToLower(strings.TrimSpace(f.Type))) != inv.Type {
		return true
	}
	scratch := validation.Violations{}
	m := validation.PositiveNumber("montant", f.Montant, scratch)
	if !scratch.Empty() || m != inv.Montant {
		return true
	}
	pid := strings.TrimSpace(f.PatientID)
	return pid != "" && pid != inv.PatientID
}
