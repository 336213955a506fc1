package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic/internal/platform/db"
)

// -- Billing Repository --

type billingRepoPG struct{ pool *pgxpool.Pool }

func NewBillingRepoPG(pool *pgxpool.Pool) BillingRepository { return &billingRepoPG{pool: pool} }

func (r *billingRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const billingCols = `id, tenant_id, appointment_id, appointment_starts_at_utc, patient_id, patient_name,
	doctor_id, doctor_name, service_description, consultation_amount, currency, payment_method,
	uses_insurance, insurance_provider_id, policy_number, coverage_percentage, copay_amount, status,
	amount_paid_by_patient, amount_billed_to_insurance, notes, is_deleted, deleted_at, created_at, updated_at`

func (r *billingRepoPG) scanBilling(row pgx.Row) (*Billing, error) {
	var b Billing
	err := row.Scan(&b.ID, &b.TenantID, &b.AppointmentID, &b.AppointmentStartsAtUTC, &b.PatientID, &b.PatientName,
		&b.DoctorID, &b.DoctorName, &b.ServiceDescription, &b.ConsultationAmount, &b.Currency, &b.PaymentMethod,
		&b.UsesInsurance, &b.InsuranceProviderID, &b.PolicyNumber, &b.CoveragePercentage, &b.CopayAmount, &b.Status,
		&b.AmountPaidByPatient, &b.AmountBilledToInsurance, &b.Notes, &b.IsDeleted, &b.DeletedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &b, nil
}

func (r *billingRepoPG) Create(ctx context.Context, b *Billing) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO billing (id, tenant_id, appointment_id, appointment_starts_at_utc, patient_id,
			patient_name, doctor_id, doctor_name, service_description, consultation_amount, currency,
			payment_method, uses_insurance, insurance_provider_id, policy_number, coverage_percentage,
			copay_amount, status, amount_paid_by_patient, amount_billed_to_insurance, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING created_at, updated_at`,
		b.ID, b.TenantID, b.AppointmentID, b.AppointmentStartsAtUTC, b.PatientID,
		b.PatientName, b.DoctorID, b.DoctorName, b.ServiceDescription, b.ConsultationAmount, b.Currency,
		b.PaymentMethod, b.UsesInsurance, b.InsuranceProviderID, b.PolicyNumber, b.CoveragePercentage,
		b.CopayAmount, b.Status, b.AmountPaidByPatient, b.AmountBilledToInsurance, b.Notes,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *billingRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Billing, error) {
	return r.scanBilling(r.conn(ctx).QueryRow(ctx,
		`SELECT `+billingCols+` FROM billing WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`, id, tenantID))
}

func (r *billingRepoPG) GetByAppointmentID(ctx context.Context, tenantID string, appointmentID uuid.UUID) (*Billing, error) {
	return r.scanBilling(r.conn(ctx).QueryRow(ctx,
		`SELECT `+billingCols+` FROM billing WHERE appointment_id = $1 AND tenant_id = $2 AND NOT is_deleted`,
		appointmentID, tenantID))
}

// -- Insurance Provider Repository --

type insuranceProviderRepoPG struct{ pool *pgxpool.Pool }

func NewInsuranceProviderRepoPG(pool *pgxpool.Pool) InsuranceProviderRepository {
	return &insuranceProviderRepoPG{pool: pool}
}

func (r *insuranceProviderRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const providerCols = `id, tenant_id, name, phone, email, address, is_deleted, deleted_at, created_at, updated_at`

func (r *insuranceProviderRepoPG) scanProvider(row pgx.Row) (*InsuranceProvider, error) {
	var p InsuranceProvider
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Phone, &p.Email, &p.Address,
		&p.IsDeleted, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

func (r *insuranceProviderRepoPG) Create(ctx context.Context, p *InsuranceProvider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insurance_provider (id, tenant_id, name, phone, email, address)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.Name, p.Phone, p.Email, p.Address,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *insuranceProviderRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*InsuranceProvider, error) {
	return r.scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerCols+` FROM insurance_provider WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`,
		id, tenantID))
}

func (r *insuranceProviderRepoPG) GetByName(ctx context.Context, tenantID, name string) (*InsuranceProvider, error) {
	return r.scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerCols+` FROM insurance_provider
		WHERE tenant_id = $1 AND lower(name) = lower($2) AND NOT is_deleted`, tenantID, name))
}
