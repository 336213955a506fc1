package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic/internal/platform/db"
	"github.com/clinicore/clinic/internal/platform/metrics"
	"github.com/clinicore/clinic/internal/platform/result"
)

// Orchestrator persists consultations together with their symptoms, lab
// requisition and prescription.
type Orchestrator struct {
	consultations Repository
	patients      PatientFinder
	doctors       DoctorFinder
	log           zerolog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewOrchestrator(repo Repository, patients PatientFinder, doctors DoctorFinder) *Orchestrator {
	return &Orchestrator{
		consultations: repo,
		patients:      patients,
		doctors:       doctors,
		log:           zerolog.Nop(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (o *Orchestrator) SetLogger(l zerolog.Logger) {
	o.log = l.With().Str("component", "consultation").Logger()
}

func (o *Orchestrator) SetMetrics(m *metrics.Metrics) { o.metrics = m }

func (o *Orchestrator) Create(ctx context.Context, tenantID string, req CreateRequest) (res result.Result[*Detail], err error) {
	start := time.Now()
	defer func() { o.finish("consultation.create", tenantID, uuid.Nil, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Detail](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	if req.PatientID == nil || *req.PatientID == uuid.Nil {
		return result.Fail[*Detail](result.CodeConsultationPatientRequired, "patientId is required"), nil
	}
	if req.DoctorID == nil || *req.DoctorID == uuid.Nil {
		return result.Fail[*Detail](result.CodeConsultationDoctorRequired, "doctorId is required"), nil
	}

	_, err = o.patients.GetByID(ctx, tenantID, *req.PatientID)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Detail](result.CodeConsultationPatientNotFound, "patient not found"), nil
	}
	if err != nil {
		return result.Result[*Detail]{}, fmt.Errorf("lookup patient: %w", err)
	}
	_, err = o.doctors.GetByID(ctx, tenantID, *req.DoctorID)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Detail](result.CodeConsultationDoctorNotFound, "doctor not found"), nil
	}
	if err != nil {
		return result.Result[*Detail]{}, fmt.Errorf("lookup doctor: %w", err)
	}

	reason := strings.TrimSpace(req.ReasonForVisit)
	if reason == "" {
		return result.Fail[*Detail](result.CodeConsultationReasonRequired, "reasonForVisit is required"), nil
	}

	now := o.now()
	c := &Consultation{
		TenantID:         tenantID,
		PatientID:        *req.PatientID,
		DoctorID:         *req.DoctorID,
		MedicalCenterID:  req.MedicalCenterID,
		ConsultationDate: now,
		ReasonForVisit:   reason,
		Notes:            optional(req.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.ConsultationDate != nil && !req.ConsultationDate.IsZero() {
		c.ConsultationDate = req.ConsultationDate.UTC()
	}
	children := buildChildren(req.Symptoms, req.LabRequisition, req.Prescription)

	if err := o.consultations.AddConsultationWithChildren(ctx, c, children); err != nil {
		return result.Result[*Detail]{}, fmt.Errorf("add consultation: %w", err)
	}
	o.log.Info().Str("tenant_id", tenantID).Str("consultation_id", c.ID.String()).
		Int("symptoms", len(children.Symptoms)).Msg("consultation created")
	return o.reread(ctx, tenantID, c.ID)
}

// Update overwrites the consultation's text fields and replaces its symptom
// set wholesale. A supplied lab requisition or prescription replaces the
// stored one; an absent one is kept.
func (o *Orchestrator) Update(ctx context.Context, tenantID string, id uuid.UUID, req UpdateRequest) (res result.Result[*Detail], err error) {
	start := time.Now()
	defer func() { o.finish("consultation.update", tenantID, id, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Detail](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	c, err := o.consultations.GetByIDForUpdate(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Detail](result.CodeConsultationNotFound, "consultation not found"), nil
	}
	if err != nil {
		return result.Result[*Detail]{}, fmt.Errorf("load consultation: %w", err)
	}
	if c.TenantID != tenantID {
		return result.Fail[*Detail](result.CodeConsultationForbidden, "consultation belongs to another tenant"), nil
	}
	if c.IsDeleted {
		return result.Fail[*Detail](result.CodeConsultationNotFound, "consultation not found"), nil
	}

	reason := strings.TrimSpace(req.ReasonForVisit)
	if reason == "" {
		return result.Fail[*Detail](result.CodeConsultationReasonRequired, "reasonForVisit is required"), nil
	}
	c.ReasonForVisit = reason
	c.Notes = optional(req.Notes)
	if req.ConsultationDate != nil && !req.ConsultationDate.IsZero() {
		c.ConsultationDate = req.ConsultationDate.UTC()
	}
	c.UpdatedAt = o.now()
	children := buildChildren(req.Symptoms, req.LabRequisition, req.Prescription)

	err = o.consultations.ReplaceConsultationChildren(ctx, c, children)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Detail](result.CodeConsultationNotFound, "consultation not found"), nil
	}
	if err != nil {
		return result.Result[*Detail]{}, fmt.Errorf("replace consultation children: %w", err)
	}
	return o.reread(ctx, tenantID, c.ID)
}

func (o *Orchestrator) Get(ctx context.Context, tenantID string, id uuid.UUID) (res result.Result[*Detail], err error) {
	start := time.Now()
	defer func() { o.finish("consultation.get", tenantID, id, start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Detail](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	d, err := o.consultations.GetDetail(ctx, tenantID, id)
	if errors.Is(err, db.ErrNotFound) {
		return result.Fail[*Detail](result.CodeConsultationNotFound, "consultation not found"), nil
	}
	if err != nil {
		return result.Result[*Detail]{}, fmt.Errorf("get consultation: %w", err)
	}
	sortSymptoms(d.Symptoms)
	return result.Ok(d), nil
}

// reread returns the committed view of a consultation just written.
func (o *Orchestrator) reread(ctx context.Context, tenantID string, id uuid.UUID) (result.Result[*Detail], error) {
	d, err := o.consultations.GetDetail(ctx, tenantID, id)
	if err != nil {
		return result.Result[*Detail]{}, fmt.Errorf("reread consultation %s: %w", id, err)
	}
	sortSymptoms(d.Symptoms)
	return result.Ok(d), nil
}

func (o *Orchestrator) finish(op, tenantID string, id uuid.UUID, start time.Time, code string, err error) {
	o.metrics.Observe(op, start, code, err)
	switch {
	case err != nil:
		o.log.Error().Err(err).Str("op", op).Str("tenant_id", tenantID).Str("consultation_id", id.String()).Msg("consultation operation failed")
	case code != "":
		o.log.Debug().Str("op", op).Str("tenant_id", tenantID).Str("consultation_id", id.String()).Str("code", code).Msg("consultation operation rejected")
	}
}
