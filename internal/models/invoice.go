package models

import (
	"strings"
	"time"
)

// InvoiceType is the billing category of an invoice.
type InvoiceType string

const (
	InvoiceHospitalisation InvoiceType = "hospitalisation"
	InvoiceConsultation    InvoiceType = "consultation"
	InvoiceMedicaments     InvoiceType = "medicaments"
	InvoiceExamens         InvoiceType = "examens"
	InvoiceSoins           InvoiceType = "soins"
	InvoiceAutres          InvoiceType = "autres"
)

// InvoiceTypes returns every type in display order.
func InvoiceTypes() []InvoiceType {
	return []InvoiceType{
		InvoiceHospitalisation,
		InvoiceConsultation,
		InvoiceMedicaments,
		InvoiceExamens,
		InvoiceSoins,
		InvoiceAutres,
	}
}

// ParseInvoiceType accepts the type names case-insensitively.
func ParseInvoiceType(s string) (InvoiceType, bool) {
	t := InvoiceType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Valid reports whether t is one of the known types.
func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceHospitalisation, InvoiceConsultation, InvoiceMedicaments,
		InvoiceExamens, InvoiceSoins, InvoiceAutres:
		return true
	}
	return false
}

// LabelCode returns the translation code of the type label. Unknown types map
// to the "autres" label.
func (t InvoiceType) LabelCode() string {
	switch t {
	case InvoiceHospitalisation:
		return "type_hospitalisation"
	case InvoiceConsultation:
		return "type_consultation"
	case InvoiceMedicaments:
		return "type_medicaments"
	case InvoiceExamens:
		return "type_examens"
	case InvoiceSoins:
		return "type_soins"
	default:
		return "type_autres"
	}
}

// Invoice is a billing record ("caisse") attached to exactly one patient.
type Invoice struct {
	ID           string      `gorm:"primaryKey;size:36" json:"_id"`
	Libelle      string      `gorm:"size:255;not null" json:"libelle"`
	Type         InvoiceType `gorm:"size:30;not null" json:"type"`
	Montant      float64     `gorm:"not null" json:"montant"`
	DateCreation time.Time   `json:"dateCreation"`
	PatientID    string      `gorm:"index;size:36;not null" json:"patientId"`
}

// InvoiceInput is the body of invoice create and update calls.
type InvoiceInput struct {
	Libelle   string      `json:"libelle"`
	Type      InvoiceType `json:"type"`
	Montant   float64     `json:"montant"`
	PatientID string      `json:"patientId"`
}

// Input returns the writable fields of inv.
func (inv Invoice) Input() InvoiceInput {
	return InvoiceInput{Libelle: inv.Libelle, Type: inv.Type, Montant: inv.Montant, PatientID: inv.PatientID}
}

// OwnerPatient returns the patient the invoice is billed to.
func (inv Invoice) OwnerPatient() string { return inv.PatientID }

// TotalMontant sums the amounts of invoices.
func TotalMontant(invoices []Invoice) float64 {
	var total float64
	for _, inv := range invoices {
		total += inv.Montant
	}
	return total
}
