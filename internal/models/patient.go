package models

import (
	"strings"
	"time"
)

// Patient is a patient followed by a doctor.
type Patient struct {
	ID            string    `gorm:"primaryKey;size:36" json:"_id"`
	Nom           string    `gorm:"size:100;not null" json:"nom"`
	Prenom        string    `gorm:"size:100" json:"prenom"`
	DateNaissance string    `gorm:"size:10" json:"dateNaissance,omitempty"`
	Sexe          string    `gorm:"size:1" json:"sexe,omitempty"`
	Telephone     string    `gorm:"size:50" json:"telephone,omitempty"`
	Adresse       string    `gorm:"size:255" json:"adresse,omitempty"`
	MedecinID     string    `gorm:"index;size:36" json:"medecinId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FullName returns "Prenom Nom".
func (p Patient) FullName() string {
	return strings.TrimSpace(p.Prenom + " " + p.Nom)
}

// Consultation is one visit of a patient.
type Consultation struct {
	ID         string    `gorm:"primaryKey;size:36" json:"_id"`
	PatientID  string    `gorm:"index;size:36" json:"patientId"`
	MedecinID  string    `gorm:"index;size:36" json:"medecinId"`
	Date       time.Time `json:"date"`
	Motif      string    `gorm:"size:255" json:"motif"`
	Diagnostic string    `gorm:"type:text" json:"diagnostic,omitempty"`
}

// Appointment is a scheduled visit ("rendez-vous").
type Appointment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"_id"`
	PatientID  string    `gorm:"index;size:36" json:"patientId"`
	PatientNom string    `gorm:"size:200" json:"patientNom,omitempty"`
	MedecinID  string    `gorm:"index;size:36" json:"medecinId"`
	Date       time.Time `json:"date"`
	Motif      string    `gorm:"size:255" json:"motif,omitempty"`
	Statut     string    `gorm:"size:30;default:'prevu'" json:"statut,omitempty"`
}

// SameDay reports whether the appointment falls on the calendar day of t.
func (a Appointment) SameDay(t time.Time) bool {
	y1, m1, d1 := a.Date.In(t.Location()).Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// RecentPatients returns at most n patients, newest first. The input is not
// modified.
func RecentPatients(all []Patient, n int) []Patient {
	out := make([]Patient, len(all))
	copy(out, all)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
