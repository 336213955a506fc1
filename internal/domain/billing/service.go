package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinic/internal/domain/scheduling"
	"github.com/clinicore/clinic/internal/platform/db"
	"github.com/clinicore/clinic/internal/platform/metrics"
	"github.com/clinicore/clinic/internal/platform/result"
)

const (
	maxCurrencyLength = 16
	moneyPlaces       = 2
)

var hundred = decimal.NewFromInt(100)

// Orchestrator computes and validates billing records for completed appointments.
type Orchestrator struct {
	billings     BillingRepository
	providers    InsuranceProviderRepository
	appointments AppointmentFinder
	log          zerolog.Logger
	metrics      *metrics.Metrics
}

func NewOrchestrator(billings BillingRepository, providers InsuranceProviderRepository, appts AppointmentFinder) *Orchestrator {
	return &Orchestrator{
		billings:     billings,
		providers:    providers,
		appointments: appts,
		log:          zerolog.Nop(),
	}
}

func (o *Orchestrator) SetLogger(l zerolog.Logger) { o.log = l.With().Str("component", "billing").Logger() }

func (o *Orchestrator) SetMetrics(m *metrics.Metrics) { o.metrics = m }

// Create bills a completed appointment. The request is validated in a fixed
// order and the first failure is returned; nothing is written unless every
// check passes.
func (o *Orchestrator) Create(ctx context.Context, tenantID string, req CreateBillingRequest) (res result.Result[*Billing], err error) {
	start := time.Now()
	defer func() { o.finish("billing.create", tenantID, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Billing](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	req.normalize()

	if req.AppointmentID == nil {
		return result.Fail[*Billing](result.CodeBillingAppointmentNotFound, "appointmentId is required"), nil
	}
	method := MethodCash
	if req.PaymentMethod != "" {
		m, ok := ParsePaymentMethod(req.PaymentMethod)
		if !ok {
			return result.Fail[*Billing](result.CodeValidationPaymentMethod,
				fmt.Sprintf("unknown payment method %q", req.PaymentMethod)), nil
		}
		method = m
	}
	var status BillingStatus
	if req.Status != "" {
		st, ok := ParseBillingStatus(req.Status)
		if !ok {
			return result.Fail[*Billing](result.CodeValidationBillingStatus,
				fmt.Sprintf("unknown billing status %q", req.Status)), nil
		}
		status = st
	}
	if utf8.RuneCountInString(req.Currency) > maxCurrencyLength {
		return result.Fail[*Billing](result.CodeValidationCurrencyTooLong,
			fmt.Sprintf("currency must be at most %d characters", maxCurrencyLength)), nil
	}

	appt, err := o.appointments.GetByID(ctx, tenantID, *req.AppointmentID)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Billing](result.CodeBillingAppointmentNotFound, "appointment not found"), nil
	}
	if err != nil {
		return result.Result[*Billing]{}, fmt.Errorf("lookup appointment: %w", err)
	}
	if appt.Status != scheduling.StatusCompleted {
		return result.Fail[*Billing](result.CodeBillingAppointmentInvalidStatus,
			fmt.Sprintf("appointment is %s; only completed appointments can be billed", appt.Status)), nil
	}

	_, err = o.billings.GetByAppointmentID(ctx, tenantID, appt.ID)
	switch {
	case err == nil:
		return result.Fail[*Billing](result.CodeBillingDuplicate, "appointment already has a billing record"), nil
	case !errors.Is(err, db.ErrNotFound):
		return result.Result[*Billing]{}, fmt.Errorf("lookup existing billing: %w", err)
	}

	amount := decimal.Zero
	switch {
	case req.ConsultationAmount != nil:
		amount = *req.ConsultationAmount
	case appt.ConsultationFee != nil:
		amount = appt.ConsultationFee.Round(moneyPlaces)
	}
	if !amount.IsPositive() {
		return result.Fail[*Billing](result.CodeBillingAmountInvalid, "consultation amount must be greater than zero"), nil
	}

	if req.UsesInsurance {
		f, err := o.checkInsurance(ctx, tenantID, method, req)
		if err != nil || f != nil {
			return result.FromFailure[*Billing](f), err
		}
	} else {
		if method.RequiresInsurance() {
			return result.Fail[*Billing](result.CodeBillingInsuranceRequiredFlag,
				fmt.Sprintf("payment method %s requires usesInsurance", method)), nil
		}
		req.clearInsurance()
	}

	for _, v := range []*decimal.Decimal{req.AmountPaidByPatient, req.AmountBilledToInsurance, req.CopayAmount} {
		if v != nil && v.IsNegative() {
			return result.Fail[*Billing](result.CodeValidationAmountNegative, "amounts must not be negative"), nil
		}
	}

	if req.UsesInsurance && req.AmountBilledToInsurance == nil && req.CoveragePercentage != nil {
		share := amount.Mul(*req.CoveragePercentage).Div(hundred).Round(moneyPlaces)
		req.AmountBilledToInsurance = &share
	}
	paid := decimalOr(req.AmountPaidByPatient, decimal.Zero)
	billed := decimalOr(req.AmountBilledToInsurance, decimal.Zero)
	if paid.Add(billed).GreaterThan(amount) {
		return result.Fail[*Billing](result.CodeBillingAmountBreakdown,
			fmt.Sprintf("patient (%s) and insurance (%s) shares exceed consultation amount %s", paid, billed, amount)), nil
	}

	if !req.UsesInsurance && req.AmountPaidByPatient == nil {
		paid = amount
	}
	if status == "" {
		status = StatusPaid
		if req.UsesInsurance {
			status = StatusPending
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = appt.Currency
	}
	description := req.ServiceDescription
	if description == "" {
		description = appt.Title
	}

	b := &Billing{
		TenantID:                tenantID,
		AppointmentID:           appt.ID,
		AppointmentStartsAtUTC:  appt.StartsAtUTC,
		PatientID:               appt.PatientID,
		PatientName:             optional(appt.DisplayName()),
		DoctorID:                appt.DoctorID,
		DoctorName:              appt.DoctorName,
		ServiceDescription:      optional(description),
		ConsultationAmount:      amount,
		Currency:                currency,
		PaymentMethod:           method,
		UsesInsurance:           req.UsesInsurance,
		InsuranceProviderID:     req.InsuranceProviderID,
		PolicyNumber:            optional(req.PolicyNumber),
		CoveragePercentage:      req.CoveragePercentage,
		CopayAmount:             req.CopayAmount,
		Status:                  status,
		AmountPaidByPatient:     paid,
		AmountBilledToInsurance: billed,
		Notes:                   optional(req.Notes),
	}
	if err := o.billings.Create(ctx, b); err != nil {
		return result.Result[*Billing]{}, fmt.Errorf("create billing: %w", err)
	}
	o.log.Info().Str("tenant_id", tenantID).Str("billing_id", b.ID.String()).
		Str("appointment_id", appt.ID.String()).Msg("billing created")
	return result.Ok(b), nil
}

// checkInsurance validates the insurance part of a request that set usesInsurance.
func (o *Orchestrator) checkInsurance(ctx context.Context, tenantID string, method PaymentMethod, req CreateBillingRequest) (*result.Failure, error) {
	if !method.SupportsInsurance() {
		return failure(result.CodeBillingInsuranceMethod,
			fmt.Sprintf("payment method %s does not support insurance", method)), nil
	}
	if req.InsuranceProviderID == nil {
		return failure(result.CodeBillingInsuranceProvider, "insurance provider is required"), nil
	}
	_, err := o.providers.GetByID(ctx, tenantID, *req.InsuranceProviderID)
	if errors.Is(err, db.ErrNotFound) {
		return failure(result.CodeBillingInsuranceProviderMissing, "insurance provider not found"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup insurance provider: %w", err)
	}
	if c := req.CoveragePercentage; c != nil && (c.IsNegative() || c.GreaterThan(hundred)) {
		return failure(result.CodeBillingInsuranceCoverage, "coverage percentage must be between 0 and 100"), nil
	}
	if req.PolicyNumber == "" {
		return failure(result.CodeBillingInsurancePolicy, "policy number is required"), nil
	}
	return nil, nil
}

func (o *Orchestrator) GetBilling(ctx context.Context, tenantID string, id uuid.UUID) (res result.Result[*Billing], err error) {
	start := time.Now()
	defer func() { o.finish("billing.get", tenantID, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Billing](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	b, err := o.billings.GetByID(ctx, tenantID, id)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Billing](result.CodeBillingNotFound, "billing not found"), nil
	}
	if err != nil {
		return result.Result[*Billing]{}, fmt.Errorf("get billing: %w", err)
	}
	return result.Ok(b), nil
}

// -- Insurance Provider --

func (o *Orchestrator) CreateInsuranceProvider(ctx context.Context, tenantID string, req CreateInsuranceProviderRequest) (res result.Result[*InsuranceProvider], err error) {
	start := time.Now()
	defer func() { o.finish("insuranceProvider.create", tenantID, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*InsuranceProvider](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return result.Fail[*InsuranceProvider](result.CodeValidationInsuranceProviderName, "provider name is required"), nil
	}
	_, err = o.providers.GetByName(ctx, tenantID, name)
	switch {
	case err == nil:
		return result.Fail[*InsuranceProvider](result.CodeInsuranceProviderExists, "an insurance provider with this name already exists"), nil
	case !errors.Is(err, db.ErrNotFound):
		return result.Result[*InsuranceProvider]{}, fmt.Errorf("lookup insurance provider name: %w", err)
	}

	p := &InsuranceProvider{
		TenantID: tenantID,
		Name:     name,
		Phone:    optional(strings.TrimSpace(req.Phone)),
		Email:    optional(strings.ToLower(strings.TrimSpace(req.Email))),
		Address:  optional(strings.TrimSpace(req.Address)),
	}
	if err := o.providers.Create(ctx, p); err != nil {
		return result.Result[*InsuranceProvider]{}, fmt.Errorf("create insurance provider: %w", err)
	}
	return result.Ok(p), nil
}

func (o *Orchestrator) finish(op, tenantID string, start time.Time, code string, err error) {
	o.metrics.Observe(op, start, code, err)
	switch {
	case err != nil:
		o.log.Error().Err(err).Str("op", op).Str("tenant_id", tenantID).Msg("billing operation failed")
	case code != "":
		o.log.Debug().Str("op", op).Str("tenant_id", tenantID).Str("code", code).Msg("billing operation rejected")
	}
}

func decimalOr(d *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if d == nil {
		return fallback
	}
	return *d
}

func failure(code, message string) *result.Failure {
	return &result.Failure{Code: code, Message: message}
}
