// Package devapi is a local stand-in for the Mboa Care REST API. It keeps
// its records in sqlite through gorm, checks bcrypt passwords and signs
// HS256 access tokens. It serves local runs and end-to-end tests.
package devapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mboacare/dashboard/internal/db"
	"github.com/mboacare/dashboard/internal/models"
)

// Staff is a user of the dashboard.
type Staff struct {
	models.Profile
	PasswordHash string `gorm:"size:100;not null" json:"-"`
}

func (Staff) TableName() string { return "staff" }

// ErrNotFound is returned for unknown records.
var ErrNotFound = errors.New("not found")

// Store wraps the gorm connection.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore migrates the schema.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Staff{}, &models.Patient{}, &models.Consultation{}, &models.Appointment{}, &models.Invoice{}); err != nil {
		return nil, fmt.Errorf("devapi migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// AddStaff creates a staff member with a bcrypt hash of password.
func (s *Store) AddStaff(ctx context.Context, p models.Profile, password string) (Staff, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return Staff{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	st := Staff{Profile: p, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
		return Staff{}, err
	}
	return st, nil
}

// Authenticate returns the staff member matching email and password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (Staff, error) {
	var st Staff
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Staff{}, ErrNotFound
		}
		return Staff{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(password)); err != nil {
		return Staff{}, ErrNotFound
	}
	return st, nil
}

// Staff returns staff member id.
func (s *Store) Staff(ctx context.Context, id string) (Staff, error) {
	var st Staff
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Staff{}, ErrNotFound
	}
	return st, err
}

// seesAll reports whether staff member id works with every patient rather
// than only their own.
func (s *Store) seesAll(ctx context.Context, id string) (bool, error) {
	st, err := s.Staff(ctx, id)
	if err != nil {
		return false, err
	}
	switch st.Profile.Poste {
	case "chef", "caissiere":
		return true, nil
	}
	return false, nil
}

// Patients lists the patients of staff member id.
func (s *Store) Patients(ctx context.Context, id string) ([]models.Patient, error) {
	all, err := s.seesAll(ctx, id)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Order("created_at desc")
	if !all {
		q = q.Where("medecin_id = ?", id)
	}
	out := []models.Patient{}
	return out, q.Find(&out).Error
}

// AddPatient stores p.
func (s *Store) AddPatient(ctx context.Context, p models.Patient) (models.Patient, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	return p, s.db.WithContext(ctx).Create(&p).Error
}

// Consultations lists the consultations of doctor id, newest first.
func (s *Store) Consultations(ctx context.Context, id string) ([]models.Consultation, error) {
	out := []models.Consultation{}
	return out, s.db.WithContext(ctx).Where("medecin_id = ?", id).Order("date desc").Find(&out).Error
}

// TodayAppointments lists the appointments of doctor id on the current day.
func (s *Store) TodayAppointments(ctx context.Context, id string) ([]models.Appointment, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := []models.Appointment{}
	err := s.db.WithContext(ctx).
		Where("medecin_id = ? AND date >= ? AND date < ?", id, start, start.AddDate(0, 0, 1)).
		Order("date").Find(&out).Error
	return out, err
}

// Invoices lists the invoices of patient id, newest first.
func (s *Store) Invoices(ctx context.Context, patientID string) ([]models.Invoice, error) {
	out := []models.Invoice{}
	return out, s.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("date_creation desc").Find(&out).Error
}

func (s *Store) patientExists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Patient{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// CreateInvoice stores a new invoice.
func (s *Store) CreateInvoice(ctx context.Context, in models.InvoiceInput) (models.Invoice, error) {
	inv := models.Invoice{
		ID:           uuid.NewString(),
		Libelle:      in.Libelle,
		Type:         in.Type,
		Montant:      in.Montant,
		PatientID:    in.PatientID,
		DateCreation: s.now(),
	}
	return inv, s.db.WithContext(ctx).Create(&inv).Error
}

// UpdateInvoice overwrites the writable fields of invoice id. The last
// write wins.
func (s *Store) UpdateInvoice(ctx context.Context, id string, in models.InvoiceInput) (models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&inv).Error; err != nil {
			return err
		}
		inv.Libelle, inv.Type, inv.Montant, inv.PatientID = in.Libelle, in.Type, in.Montant, in.PatientID
		return tx.Save(&inv).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Invoice{}, ErrNotFound
	}
	return inv, err
}

// DeleteInvoice removes invoice id.
func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invoice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Open connects to the sqlite database at dsn, migrates and seeds it.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	conn, err := db.Open(ctx, db.DriverSQLite, dsn, db.Options{Attempts: 1, Log: log})
	if err != nil {
		return nil, err
	}
	s, err := NewStore(conn)
	if err != nil {
		return nil, err
	}
	if err := s.Seed(ctx); err != nil {
		return nil, fmt.Errorf("devapi seed: %w", err)
	}
	return s, nil
}
