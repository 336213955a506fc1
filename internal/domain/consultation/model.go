package consultation

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Consultation maps to the consultation table. It owns its symptom entries,
// at most one lab requisition and at most one prescription.
type Consultation struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TenantID         string     `db:"tenant_id" json:"tenant_id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	MedicalCenterID  *uuid.UUID `db:"medical_center_id" json:"medical_center_id,omitempty"`
	ConsultationDate time.Time  `db:"consultation_date" json:"consultation_date"`
	ReasonForVisit   string     `db:"reason_for_visit" json:"reason_for_visit"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	IsDeleted        bool       `db:"is_deleted" json:"-"`
	DeletedAt        *time.Time `db:"deleted_at" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type SymptomEntry struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	TenantID       string     `db:"tenant_id" json:"tenant_id"`
	ConsultationID uuid.UUID  `db:"consultation_id" json:"consultation_id"`
	Description    string     `db:"description" json:"description"`
	Severity       *string    `db:"severity" json:"severity,omitempty"`
	OnsetDate      *time.Time `db:"onset_date" json:"onset_date,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	Sequence       int        `db:"sequence" json:"sequence"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type LabRequisition struct {
	ID             uuid.UUID            `db:"id" json:"id"`
	TenantID       string               `db:"tenant_id" json:"tenant_id"`
	ConsultationID uuid.UUID            `db:"consultation_id" json:"consultation_id"`
	Priority       *string              `db:"priority" json:"priority,omitempty"`
	ClinicalNotes  *string              `db:"clinical_notes" json:"clinical_notes,omitempty"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	Items          []LabRequisitionItem `db:"-" json:"items"`
}

type LabRequisitionItem struct {
	ID               uuid.UUID `db:"id" json:"id"`
	TenantID         string    `db:"tenant_id" json:"tenant_id"`
	LabRequisitionID uuid.UUID `db:"lab_requisition_id" json:"lab_requisition_id"`
	TestName         string    `db:"test_name" json:"test_name"`
	TestCode         *string   `db:"test_code" json:"test_code,omitempty"`
	Instructions     *string   `db:"instructions" json:"instructions,omitempty"`
	Sequence         int       `db:"sequence" json:"sequence"`
}

type Prescription struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	TenantID       string             `db:"tenant_id" json:"tenant_id"`
	ConsultationID uuid.UUID          `db:"consultation_id" json:"consultation_id"`
	Notes          *string            `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	Items          []PrescriptionItem `db:"-" json:"items"`
}

type PrescriptionItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	DrugName       string    `db:"drug_name" json:"drug_name"`
	Dosage         *string   `db:"dosage" json:"dosage,omitempty"`
	Frequency      *string   `db:"frequency" json:"frequency,omitempty"`
	Duration       *string   `db:"duration" json:"duration,omitempty"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	Sequence       int       `db:"sequence" json:"sequence"`
}

// Detail is a consultation with its children as last committed.
type Detail struct {
	Consultation   Consultation    `json:"consultation"`
	Symptoms       []SymptomEntry  `json:"symptoms"`
	LabRequisition *LabRequisition `json:"lab_requisition,omitempty"`
	Prescription   *Prescription   `json:"prescription,omitempty"`
}

// sortSymptoms orders entries by onset date, undated ones last, then by the
// order they were entered in.
func sortSymptoms(symptoms []SymptomEntry) {
	sort.SliceStable(symptoms, func(i, j int) bool {
		a, b := symptoms[i].OnsetDate, symptoms[j].OnsetDate
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return symptoms[i].Sequence < symptoms[j].Sequence
	})
}

// Children is the set of rows written together with a consultation. On
// replace, a nil LabRequisition or Prescription leaves the stored one alone;
// Symptoms are always replaced, even when empty.
type Children struct {
	Symptoms       []*SymptomEntry
	LabRequisition *LabRequisition
	Prescription   *Prescription
}

// stamp copies the parent's id and tenant onto every child row.
func (ch *Children) stamp(c *Consultation) {
	for _, s := range ch.Symptoms {
		s.TenantID = c.TenantID
		s.ConsultationID = c.ID
	}
	if lr := ch.LabRequisition; lr != nil {
		lr.TenantID = c.TenantID
		lr.ConsultationID = c.ID
		for i := range lr.Items {
			lr.Items[i].TenantID = c.TenantID
		}
	}
	if rx := ch.Prescription; rx != nil {
		rx.TenantID = c.TenantID
		rx.ConsultationID = c.ID
		for i := range rx.Items {
			rx.Items[i].TenantID = c.TenantID
		}
	}
}

// -- Requests --

type SymptomInput struct {
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	OnsetDate   *time.Time `json:"onset_date"`
	Notes       string     `json:"notes"`
}

type LabItemInput struct {
	TestName     string `json:"test_name"`
	TestCode     string `json:"test_code"`
	Instructions string `json:"instructions"`
}

type LabRequisitionInput struct {
	Priority      string         `json:"priority"`
	ClinicalNotes string         `json:"clinical_notes"`
	Items         []LabItemInput `json:"items"`
}

type PrescriptionItemInput struct {
	DrugName     string `json:"drug_name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type PrescriptionInput struct {
	Notes string                  `json:"notes"`
	Items []PrescriptionItemInput `json:"items"`
}

type CreateRequest struct {
	PatientID        *uuid.UUID           `json:"patient_id"`
	DoctorID         *uuid.UUID           `json:"doctor_id"`
	MedicalCenterID  *uuid.UUID           `json:"medical_center_id"`
	ConsultationDate *time.Time           `json:"consultation_date"`
	ReasonForVisit   string               `json:"reason_for_visit"`
	Notes            string               `json:"notes"`
	Symptoms         []SymptomInput       `json:"symptoms"`
	LabRequisition   *LabRequisitionInput `json:"lab_requisition"`
	Prescription     *PrescriptionInput   `json:"prescription"`
}

// UpdateRequest replaces the consultation's text fields and its symptoms.
// A nil ConsultationDate keeps the stored one.
type UpdateRequest struct {
	ConsultationDate *time.Time           `json:"consultation_date"`
	ReasonForVisit   string               `json:"reason_for_visit"`
	Notes            string               `json:"notes"`
	Symptoms         []SymptomInput       `json:"symptoms"`
	LabRequisition   *LabRequisitionInput `json:"lab_requisition"`
	Prescription     *PrescriptionInput   `json:"prescription"`
}

// buildChildren turns request payloads into child rows, skipping entries
// without a description, test name or drug name.
func buildChildren(symptoms []SymptomInput, lab *LabRequisitionInput, rx *PrescriptionInput) Children {
	ch := Children{Symptoms: make([]*SymptomEntry, 0, len(symptoms))}
	for _, in := range symptoms {
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			continue
		}
		ch.Symptoms = append(ch.Symptoms, &SymptomEntry{
			Description: desc,
			Severity:    optional(in.Severity),
			OnsetDate:   in.OnsetDate,
			Notes:       optional(in.Notes),
			Sequence:    len(ch.Symptoms),
		})
	}

	if lab != nil {
		lr := &LabRequisition{
			Priority:      optional(lab.Priority),
			ClinicalNotes: optional(lab.ClinicalNotes),
			Items:         make([]LabRequisitionItem, 0, len(lab.Items)),
		}
		for _, in := range lab.Items {
			name := strings.TrimSpace(in.TestName)
			if name == "" {
				continue
			}
			lr.Items = append(lr.Items, LabRequisitionItem{
				TestName:     name,
				TestCode:     optional(in.TestCode),
				Instructions: optional(in.Instructions),
				Sequence:     len(lr.Items),
			})
		}
		ch.LabRequisition = lr
	}

	if rx != nil {
		p := &Prescription{
			Notes: optional(rx.Notes),
			Items: make([]PrescriptionItem, 0, len(rx.Items)),
		}
		for _, in := range rx.Items {
			name := strings.TrimSpace(in.DrugName)
			if name == "" {
				continue
			}
			p.Items = append(p.Items, PrescriptionItem{
				DrugName:     name,
				Dosage:       optional(in.Dosage),
				Frequency:    optional(in.Frequency),
				Duration:     optional(in.Duration),
				Instructions: optional(in.Instructions),
				Sequence:     len(p.Items),
			})
		}
		ch.Prescription = p
	}
	return ch
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
