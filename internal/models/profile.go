package models

import (
	"encoding/json"
	"strings"

	"github.com/mboacare/dashboard/gate"
)

// Profile is the signed-in staff member as returned by the doctor-info
// endpoint. Role is derived from Poste once, when the profile is decoded.
type Profile struct {
	ID      string `gorm:"primaryKey;size:36" json:"_id"`
	Nom     string `gorm:"size:100" json:"nom"`
	Prenom  string `gorm:"size:100" json:"prenom"`
	Email   string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Poste   string `gorm:"size:50" json:"poste"`
	Service string `gorm:"size:100" json:"service,omitempty"`
	Phone   string `gorm:"size:50" json:"telephone,omitempty"`

	Role gate.Role `gorm:"-" json:"-"`
}

// UnmarshalJSON decodes the profile and normalizes its role.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type raw Profile
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = Profile(r)
	p.Normalize()
	return nil
}

// Normalize trims the free-text fields and recomputes Role from Poste.
func (p *Profile) Normalize() {
	p.Nom = strings.TrimSpace(p.Nom)
	p.Prenom = strings.TrimSpace(p.Prenom)
	p.Email = strings.TrimSpace(p.Email)
	p.Role = gate.ParseRole(p.Poste)
}

// DisplayName returns "Prenom Nom", or the e-mail when both are empty.
func (p *Profile) DisplayName() string {
	name := strings.TrimSpace(p.Prenom + " " + p.Nom)
	if name == "" {
		return p.Email
	}
	return name
}
