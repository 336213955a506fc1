package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic/internal/domain/identity"
	"github.com/clinicore/clinic/internal/platform/db"
	"github.com/clinicore/clinic/internal/platform/metrics"
	"github.com/clinicore/clinic/internal/platform/result"
)

// Orchestrator validates and persists appointment lifecycle changes.
type Orchestrator struct {
	appointments    AppointmentRepository
	patients        PatientFinder
	doctors         DoctorFinder
	defaultCurrency string
	log             zerolog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewOrchestrator(appts AppointmentRepository, patients PatientFinder, doctors DoctorFinder) *Orchestrator {
	return &Orchestrator{
		appointments:    appts,
		patients:        patients,
		doctors:         doctors,
		defaultCurrency: DefaultCurrency,
		log:             zerolog.Nop(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (o *Orchestrator) SetLogger(l zerolog.Logger) { o.log = l.With().Str("component", "scheduling").Logger() }

func (o *Orchestrator) SetMetrics(m *metrics.Metrics) { o.metrics = m }

// SetDefaultCurrency overrides the currency applied when a request omits one.
func (o *Orchestrator) SetDefaultCurrency(c string) {
	if c != "" {
		o.defaultCurrency = c
	}
}

// refs holds what validation resolved for a request.
type refs struct {
	patient *identity.Patient
	doctor  *identity.User
	status  AppointmentStatus
}

func (o *Orchestrator) Schedule(ctx context.Context, tenantID string, req AppointmentRequest) (res result.Result[*Appointment], err error) {
	start := time.Now()
	defer func() { o.finish("appointment.schedule", tenantID, uuid.Nil, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Appointment](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	req.normalize()
	r, f, err := o.check(ctx, tenantID, req)
	if err != nil || f != nil {
		return result.FromFailure[*Appointment](f), err
	}

	a := &Appointment{TenantID: tenantID, Status: StatusScheduled}
	o.apply(a, req, r)
	if err := o.appointments.Create(ctx, a); err != nil {
		return result.Result[*Appointment]{}, fmt.Errorf("create appointment: %w", err)
	}
	o.log.Info().Str("tenant_id", tenantID).Str("appointment_id", a.ID.String()).Msg("appointment scheduled")
	return result.Ok(a), nil
}

// Update overwrites every mutable field of an existing appointment. An empty
// status keeps the current one.
func (o *Orchestrator) Update(ctx context.Context, tenantID string, id uuid.UUID, req AppointmentRequest) (res result.Result[*Appointment], err error) {
	start := time.Now()
	defer func() { o.finish("appointment.update", tenantID, id, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Appointment](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	a, f, err := o.loadOwned(ctx, tenantID, id)
	if err != nil || f != nil {
		return result.FromFailure[*Appointment](f), err
	}
	if a.IsDeleted {
		return result.Fail[*Appointment](result.CodeAppointmentNotFound, "appointment not found"), nil
	}

	req.normalize()
	r, f, err := o.check(ctx, tenantID, req)
	if err != nil || f != nil {
		return result.FromFailure[*Appointment](f), err
	}

	o.apply(a, req, r)
	a.UpdatedAt = o.now()
	if err := o.appointments.Update(ctx, a); err != nil {
		return result.Result[*Appointment]{}, fmt.Errorf("update appointment: %w", err)
	}
	return result.Ok(a), nil
}

// Cancel moves an appointment to Cancelled. Cancelling twice succeeds.
func (o *Orchestrator) Cancel(ctx context.Context, tenantID string, id uuid.UUID) (res result.Empty, err error) {
	start := time.Now()
	defer func() { o.finish("appointment.cancel", tenantID, id, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Failed(result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	a, f, err := o.loadOwned(ctx, tenantID, id)
	if err != nil || f != nil {
		return result.FailedWith(f), err
	}
	if a.IsDeleted {
		return result.Failed(result.CodeAppointmentNotFound, "appointment not found"), nil
	}
	if a.Status == StatusCancelled {
		return result.Success(), nil
	}

	a.Status = StatusCancelled
	a.UpdatedAt = o.now()
	if err := o.appointments.Update(ctx, a); err != nil {
		return result.Empty{}, fmt.Errorf("cancel appointment: %w", err)
	}
	return result.Success(), nil
}

// Delete soft-deletes an appointment. Deleting twice succeeds.
func (o *Orchestrator) Delete(ctx context.Context, tenantID string, id uuid.UUID) (res result.Empty, err error) {
	start := time.Now()
	defer func() { o.finish("appointment.delete", tenantID, id, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Failed(result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	a, f, err := o.loadOwned(ctx, tenantID, id)
	if err != nil || f != nil {
		return result.FailedWith(f), err
	}
	if a.IsDeleted {
		return result.Success(), nil
	}
	if err := o.appointments.Delete(ctx, tenantID, id); err != nil {
		return result.Empty{}, fmt.Errorf("delete appointment: %w", err)
	}
	return result.Success(), nil
}

func (o *Orchestrator) Get(ctx context.Context, tenantID string, id uuid.UUID) (res result.Result[*Appointment], err error) {
	start := time.Now()
	defer func() { o.finish("appointment.get", tenantID, id, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Appointment](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	a, err := o.appointments.GetByID(ctx, tenantID, id)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Appointment](result.CodeAppointmentNotFound, "appointment not found"), nil
	}
	if err != nil {
		return result.Result[*Appointment]{}, fmt.Errorf("get appointment: %w", err)
	}
	return result.Ok(a), nil
}

// loadOwned fetches an appointment regardless of its deleted flag and checks
// that it belongs to tenantID.
func (o *Orchestrator) loadOwned(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, *result.Failure, error) {
	a, err := o.appointments.GetByIDForUpdate(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, failure(result.CodeAppointmentNotFound, "appointment not found"), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load appointment: %w", err)
	}
	if a.TenantID != tenantID {
		return nil, failure(result.CodeAppointmentForbidden, "appointment belongs to another tenant"), nil
	}
	return a, nil, nil
}

// check runs the request validations in order; the first failure wins.
func (o *Orchestrator) check(ctx context.Context, tenantID string, req AppointmentRequest) (refs, *result.Failure, error) {
	var r refs

	if req.PatientID != nil {
		p, err := o.patients.GetByID(ctx, tenantID, *req.PatientID)
		if errors.Is(err, db.ErrNotFound) {
			return r, failure(result.CodePatientNotFound, "patient not found"), nil
		}
		if err != nil {
			return r, nil, fmt.Errorf("lookup patient: %w", err)
		}
		r.patient = p
	} else {
		switch {
		case req.ProspectFirstName == "":
			return r, failure(result.CodeValidationProspectFirstName, "prospect first name is required"), nil
		case req.ProspectLastName == "":
			return r, failure(result.CodeValidationProspectLastName, "prospect last name is required"), nil
		case req.ProspectPhone == "":
			return r, failure(result.CodeValidationProspectPhone, "prospect phone is required"), nil
		}
	}

	if req.Title == "" {
		return r, failure(result.CodeValidationTitle, "title is required"), nil
	}
	if req.StartsAtUTC == nil || req.StartsAtUTC.IsZero() {
		return r, failure(result.CodeValidationStartsAt, "startsAtUtc is required"), nil
	}
	if req.EndsAtUTC == nil || req.EndsAtUTC.IsZero() {
		return r, failure(result.CodeValidationEndsAt, "endsAtUtc is required"), nil
	}
	if !req.EndsAtUTC.After(*req.StartsAtUTC) {
		return r, failure(result.CodeValidationEndsBeforeStart, "endsAtUtc must be after startsAtUtc"), nil
	}
	if req.ConsultationFee != nil && req.ConsultationFee.IsNegative() {
		return r, failure(result.CodeValidationFeeNegative, "consultation fee must not be negative"), nil
	}
	if utf8.RuneCountInString(req.Currency) > maxCurrencyLength {
		return r, failure(result.CodeValidationCurrencyTooLong,
			fmt.Sprintf("currency must be at most %d characters", maxCurrencyLength)), nil
	}
	if req.Status != "" {
		st, ok := ParseAppointmentStatus(req.Status)
		if !ok {
			return r, failure(result.CodeValidationStatus, fmt.Sprintf("unknown appointment status %q", req.Status)), nil
		}
		r.status = st
	}

	if req.DoctorID != nil {
		d, err := o.doctors.GetByID(ctx, tenantID, *req.DoctorID)
		if errors.Is(err, db.ErrNotFound) {
			return r, failure(result.CodeDoctorNotFound, "doctor not found"), nil
		}
		if err != nil {
			return r, nil, fmt.Errorf("lookup doctor: %w", err)
		}
		r.doctor = d
	}
	return r, nil, nil
}

// apply copies a validated request onto a, snapshotting display names.
func (o *Orchestrator) apply(a *Appointment, req AppointmentRequest, r refs) {
	a.PatientID, a.PatientName = nil, nil
	a.ProspectFirstName, a.ProspectLastName, a.ProspectPhone, a.ProspectEmail = nil, nil, nil, nil
	if r.patient != nil {
		id, name := r.patient.ID, r.patient.FullName()
		a.PatientID, a.PatientName = &id, &name
	} else {
		a.ProspectFirstName = optional(req.ProspectFirstName)
		a.ProspectLastName = optional(req.ProspectLastName)
		a.ProspectPhone = optional(req.ProspectPhone)
		a.ProspectEmail = optional(req.ProspectEmail)
	}

	a.DoctorID, a.DoctorName = nil, nil
	if r.doctor != nil {
		id, name := r.doctor.ID, r.doctor.FullName()
		a.DoctorID, a.DoctorName = &id, &name
	}

	a.Title = req.Title
	a.Description = optional(req.Description)
	a.Location = optional(req.Location)
	a.StartsAtUTC = req.StartsAtUTC.UTC()
	a.EndsAtUTC = req.EndsAtUTC.UTC()
	a.ConsultationFee = req.ConsultationFee
	a.Currency = req.Currency
	if a.Currency == "" {
		a.Currency = o.defaultCurrency
	}
	if r.status != "" {
		a.Status = r.status
	}
}

func (o *Orchestrator) finish(op, tenantID string, id uuid.UUID, start time.Time, code string, err error) {
	o.metrics.Observe(op, start, code, err)
	switch {
	case err != nil:
		o.log.Error().Err(err).Str("op", op).Str("tenant_id", tenantID).Str("appointment_id", id.String()).Msg("appointment operation failed")
	case code != "":
		o.log.Debug().Str("op", op).Str("tenant_id", tenantID).Str("appointment_id", id.String()).Str("code", code).Msg("appointment operation rejected")
	}
}

func failure(code, message string) *result.Failure {
	return &result.Failure{Code: code, Message: message}
}
