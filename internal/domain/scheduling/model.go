package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when neither the request nor configuration names one.
const DefaultCurrency = "USD"

const (
	maxCurrencyLength = 16
	moneyPlaces       = 2
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusConfirmed AppointmentStatus = "Confirmed"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
	StatusNoShow    AppointmentStatus = "NoShow"
)

var appointmentStatuses = []AppointmentStatus{
	StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow,
}

// ParseAppointmentStatus matches s case-insensitively against the known statuses.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range appointmentStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Appointment maps to the appointment table. Either PatientID is set or the
// prospect fields carry the contact's details inline.
type Appointment struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	TenantID          string            `db:"tenant_id" json:"tenant_id"`
	PatientID         *uuid.UUID        `db:"patient_id" json:"patient_id,omitempty"`
	PatientName       *string           `db:"patient_name" json:"patient_name,omitempty"`
	ProspectFirstName *string           `db:"prospect_first_name" json:"prospect_first_name,omitempty"`
	ProspectLastName  *string           `db:"prospect_last_name" json:"prospect_last_name,omitempty"`
	ProspectPhone     *string           `db:"prospect_phone" json:"prospect_phone,omitempty"`
	ProspectEmail     *string           `db:"prospect_email" json:"prospect_email,omitempty"`
	DoctorID          *uuid.UUID        `db:"doctor_id" json:"doctor_id,omitempty"`
	DoctorName        *string           `db:"doctor_name" json:"doctor_name,omitempty"`
	Title             string            `db:"title" json:"title"`
	Description       *string           `db:"description" json:"description,omitempty"`
	Location          *string           `db:"location" json:"location,omitempty"`
	StartsAtUTC       time.Time         `db:"starts_at_utc" json:"starts_at_utc"`
	EndsAtUTC         time.Time         `db:"ends_at_utc" json:"ends_at_utc"`
	Status            AppointmentStatus `db:"status" json:"status"`
	ConsultationFee   *decimal.Decimal  `db:"consultation_fee" json:"consultation_fee,omitempty"`
	Currency          string            `db:"currency" json:"currency"`
	IsDeleted         bool              `db:"is_deleted" json:"-"`
	DeletedAt         *time.Time        `db:"deleted_at" json:"-"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// DisplayName is the patient snapshot, or the prospect's name when no patient is linked.
func (a *Appointment) DisplayName() string {
	if a.PatientName != nil {
		return *a.PatientName
	}
	return strings.TrimSpace(strVal(a.ProspectFirstName) + " " + strVal(a.ProspectLastName))
}

func (a *Appointment) IsProspect() bool { return a.PatientID == nil }

// AppointmentRequest is the input to Schedule and Update.
type AppointmentRequest struct {
	PatientID         *uuid.UUID       `json:"patient_id"`
	ProspectFirstName string           `json:"prospect_first_name"`
	ProspectLastName  string           `json:"prospect_last_name"`
	ProspectPhone     string           `json:"prospect_phone"`
	ProspectEmail     string           `json:"prospect_email"`
	DoctorID          *uuid.UUID       `json:"doctor_id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Location          string           `json:"location"`
	StartsAtUTC       *time.Time       `json:"starts_at_utc"`
	EndsAtUTC         *time.Time       `json:"ends_at_utc"`
	Status            string           `json:"status"`
	ConsultationFee   *decimal.Decimal `json:"consultation_fee"`
	Currency          string           `json:"currency"`
}

func (r *AppointmentRequest) normalize() {
	if r.PatientID != nil && *r.PatientID == uuid.Nil {
		r.PatientID = nil
	}
	if r.DoctorID != nil && *r.DoctorID == uuid.Nil {
		r.DoctorID = nil
	}
	r.ProspectFirstName = strings.TrimSpace(r.ProspectFirstName)
	r.ProspectLastName = strings.TrimSpace(r.ProspectLastName)
	r.ProspectPhone = strings.TrimSpace(r.ProspectPhone)
	r.ProspectEmail = strings.ToLower(strings.TrimSpace(r.ProspectEmail))
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	r.Status = strings.TrimSpace(r.Status)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.ConsultationFee = roundMoney(r.ConsultationFee)
}

// roundMoney rounds half away from zero to the stored scale, as NUMERIC does.
func roundMoney(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(moneyPlaces)
	return &r
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
