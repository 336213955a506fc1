package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash          PaymentMethod = "Cash"
	MethodCreditCard    PaymentMethod = "CreditCard"
	MethodDebitCard     PaymentMethod = "DebitCard"
	MethodBankTransfer  PaymentMethod = "BankTransfer"
	MethodInsuranceOnly PaymentMethod = "InsuranceOnly"
	MethodMixed         PaymentMethod = "Mixed"
)

var paymentMethods = []PaymentMethod{
	MethodCash, MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodInsuranceOnly, MethodMixed,
}

// ParsePaymentMethod matches s case-insensitively against the known methods.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.TrimSpace(s)
	for _, m := range paymentMethods {
		if strings.EqualFold(s, string(m)) {
			return m, true
		}
	}
	return "", false
}

// SupportsInsurance reports whether insurance may cover part of the bill.
func (m PaymentMethod) SupportsInsurance() bool {
	return m == MethodInsuranceOnly || m == MethodMixed
}

// RequiresInsurance reports whether the bill cannot be settled without insurance.
func (m PaymentMethod) RequiresInsurance() bool {
	return m == MethodInsuranceOnly
}

type BillingStatus string

const (
	StatusPending       BillingStatus = "Pending"
	StatusPaid          BillingStatus = "Paid"
	StatusPartiallyPaid BillingStatus = "PartiallyPaid"
	StatusCancelled     BillingStatus = "Cancelled"
)

var billingStatuses = []BillingStatus{StatusPending, StatusPaid, StatusPartiallyPaid, StatusCancelled}

func ParseBillingStatus(s string) (BillingStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range billingStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Billing maps to the billing table. Patient, doctor and appointment start are
// copied from the appointment when the bill is created.
type Billing struct {
	ID                      uuid.UUID        `db:"id" json:"id"`
	TenantID                string           `db:"tenant_id" json:"tenant_id"`
	AppointmentID           uuid.UUID        `db:"appointment_id" json:"appointment_id"`
	AppointmentStartsAtUTC  time.Time        `db:"appointment_starts_at_utc" json:"appointment_starts_at_utc"`
	PatientID               *uuid.UUID       `db:"patient_id" json:"patient_id,omitempty"`
	PatientName             *string          `db:"patient_name" json:"patient_name,omitempty"`
	DoctorID                *uuid.UUID       `db:"doctor_id" json:"doctor_id,omitempty"`
	DoctorName              *string          `db:"doctor_name" json:"doctor_name,omitempty"`
	ServiceDescription      *string          `db:"service_description" json:"service_description,omitempty"`
	ConsultationAmount      decimal.Decimal  `db:"consultation_amount" json:"consultation_amount"`
	Currency                string           `db:"currency" json:"currency"`
	PaymentMethod           PaymentMethod    `db:"payment_method" json:"payment_method"`
	UsesInsurance           bool             `db:"uses_insurance" json:"uses_insurance"`
	InsuranceProviderID     *uuid.UUID       `db:"insurance_provider_id" json:"insurance_provider_id,omitempty"`
	PolicyNumber            *string          `db:"policy_number" json:"policy_number,omitempty"`
	CoveragePercentage      *decimal.Decimal `db:"coverage_percentage" json:"coverage_percentage,omitempty"`
	CopayAmount             *decimal.Decimal `db:"copay_amount" json:"copay_amount,omitempty"`
	Status                  BillingStatus    `db:"status" json:"status"`
	AmountPaidByPatient     decimal.Decimal  `db:"amount_paid_by_patient" json:"amount_paid_by_patient"`
	AmountBilledToInsurance decimal.Decimal  `db:"amount_billed_to_insurance" json:"amount_billed_to_insurance"`
	Notes                   *string          `db:"notes" json:"notes,omitempty"`
	IsDeleted               bool             `db:"is_deleted" json:"-"`
	DeletedAt               *time.Time       `db:"deleted_at" json:"-"`
	CreatedAt               time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updated_at"`
}

// Outstanding is what remains after the patient and insurance shares.
func (b *Billing) Outstanding() decimal.Decimal {
	return b.ConsultationAmount.Sub(b.AmountPaidByPatient).Sub(b.AmountBilledToInsurance)
}

// InsuranceProvider maps to the insurance_provider table.
type InsuranceProvider struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Name      string     `db:"name" json:"name"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	IsDeleted bool       `db:"is_deleted" json:"-"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateBillingRequest is the input to Create. Nil amounts are unset.
type CreateBillingRequest struct {
	AppointmentID           *uuid.UUID       `json:"appointment_id"`
	ServiceDescription      string           `json:"service_description"`
	ConsultationAmount      *decimal.Decimal `json:"consultation_amount"`
	Currency                string           `json:"currency"`
	PaymentMethod           string           `json:"payment_method"`
	UsesInsurance           bool             `json:"uses_insurance"`
	InsuranceProviderID     *uuid.UUID       `json:"insurance_provider_id"`
	PolicyNumber            string           `json:"policy_number"`
	CoveragePercentage      *decimal.Decimal `json:"coverage_percentage"`
	CopayAmount             *decimal.Decimal `json:"copay_amount"`
	Status                  string           `json:"status"`
	AmountPaidByPatient     *decimal.Decimal `json:"amount_paid_by_patient"`
	AmountBilledToInsurance *decimal.Decimal `json:"amount_billed_to_insurance"`
	Notes                   string           `json:"notes"`
}

func (r *CreateBillingRequest) normalize() {
	if r.AppointmentID != nil && *r.AppointmentID == uuid.Nil {
		r.AppointmentID = nil
	}
	if r.InsuranceProviderID != nil && *r.InsuranceProviderID == uuid.Nil {
		r.InsuranceProviderID = nil
	}
	r.ServiceDescription = strings.TrimSpace(r.ServiceDescription)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
	r.PolicyNumber = strings.TrimSpace(r.PolicyNumber)
	r.Status = strings.TrimSpace(r.Status)
	r.Notes = strings.TrimSpace(r.Notes)
	r.ConsultationAmount = roundScale(r.ConsultationAmount)
	r.CoveragePercentage = roundScale(r.CoveragePercentage)
	r.CopayAmount = roundScale(r.CopayAmount)
	r.AmountPaidByPatient = roundScale(r.AmountPaidByPatient)
	r.AmountBilledToInsurance = roundScale(r.AmountBilledToInsurance)
}

// roundScale rounds to the two decimal places money and coverage are stored at.
func roundScale(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(moneyPlaces)
	return &r
}

// clearInsurance drops every insurance-related field from the request.
func (r *CreateBillingRequest) clearInsurance() {
	r.UsesInsurance = false
	r.InsuranceProviderID = nil
	r.PolicyNumber = ""
	r.CoveragePercentage = nil
	r.CopayAmount = nil
	r.AmountBilledToInsurance = nil
}

type CreateInsuranceProviderRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
