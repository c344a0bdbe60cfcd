package policy

import "github.com/mboacare/dashboard/internal/models"

// PatientOwned is a record attached to one patient.
type PatientOwned interface {
	OwnerPatient() string
}

// PatientScope holds the patients the signed-in user works with. Records of
// any other patient are out of scope.
type PatientScope struct {
	byID map[string]models.Patient
}

// NewPatientScope indexes patients by id.
func NewPatientScope(patients []models.Patient) PatientScope {
	s := PatientScope{byID: make(map[string]models.Patient, len(patients))}
	for _, p := range patients {
		if p.ID != "" {
			s.byID[p.ID] = p
		}
	}
	return s
}

// Lookup returns the patient with id when it is in scope.
func (s PatientScope) Lookup(id string) (models.Patient, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Can reports whether the record belongs to a patient in scope.
// A nil record (listing, creating) is allowed. Records without a patient are
// denied.
func (s PatientScope) Can(record PatientOwned) bool {
	if record == nil {
		return true
	}
	_, ok := s.byID[record.OwnerPatient()]
	return ok
}

// Len returns the number of patients in scope.
func (s PatientScope) Len() int { return len(s.byID) }
