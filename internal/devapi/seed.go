package devapi

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mboacare/dashboard/internal/models"
)

// Seed accounts. Every account uses SeedPassword.
const (
	SeedPassword  = "secret1"
	SeedMedecin   = "a@b.com"
	SeedInfirmier = "infirmier@mboa.care"
	SeedChef      = "chef@mboa.care"
	SeedCaissiere = "caisse@mboa.care"
)

// Seed fills an empty store with one staff member per role and a small
// patient list for the doctor. It is a no-op when staff already exist.
func (s *Store) Seed(ctx context.Context) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Staff{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	doc, err := s.AddStaff(ctx, models.Profile{Nom: "Mbarga", Prenom: "Alice", Email: SeedMedecin, Poste: "medecin", Service: "Médecine générale"}, SeedPassword)
	if err != nil {
		return err
	}
	for _, p := range []models.Profile{
		{Nom: "Ngo", Prenom: "Claire", Email: SeedInfirmier, Poste: "infirmiere", Service: "Pédiatrie"},
		{Nom: "Fotso", Prenom: "Paul", Email: SeedChef, Poste: "chef", Service: "Direction"},
		{Nom: "Eto'o", Prenom: "Marie", Email: SeedCaissiere, Poste: "caissiere", Service: "Caisse"},
	} {
		if _, err := s.AddStaff(ctx, p, SeedPassword); err != nil {
			return err
		}
	}

	now := s.now()
	names := [][2]string{{"Kamga", "Jean"}, {"Abena", "Rose"}, {"Tchoua", "Eric"}, {"Njoya", "Awa"}, {"Bello", "Ibrahim"}, {"Essomba", "Lucie"}}
	for i, name := range names {
		p, err := s.AddPatient(ctx, models.Patient{
			Nom: name[0], Prenom: name[1], MedecinID: doc.ID,
			Telephone: fmt.Sprintf("+237 6 90 00 00 %02d", i),
			CreatedAt: now.Add(-time.Duration(i) * 24 * time.Hour),
		})
		if err != nil {
			return err
		}
		c := models.Consultation{ID: uuid.NewString(), PatientID: p.ID, MedecinID: doc.ID, Date: p.CreatedAt, Motif: "Consultation initiale"}
		if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
			return err
		}
		if i < 2 {
			a := models.Appointment{ID: uuid.NewString(), PatientID: p.ID, PatientNom: p.FullName(), MedecinID: doc.ID,
				Date: time.Date(now.Year(), now.Month(), now.Day(), 9+i, 0, 0, 0, now.Location()), Motif: "Contrôle", Statut: "prevu"}
			if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
				return err
			}
		}
		if i == 0 {
			if _, err := s.CreateInvoice(ctx, models.InvoiceInput{Libelle: "Consultation", Type: models.InvoiceConsultation, Montant: 5000, PatientID: p.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}
