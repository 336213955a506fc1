package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const apptCols = `id, tenant_id, patient_id, patient_name, prospect_first_name, prospect_last_name,
	prospect_phone, prospect_email, doctor_id, doctor_name, title, description, location,
	starts_at_utc, ends_at_utc, status, consultation_fee, currency,
	is_deleted, deleted_at, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.TenantID, &a.PatientID, &a.PatientName, &a.ProspectFirstName, &a.ProspectLastName,
		&a.ProspectPhone, &a.ProspectEmail, &a.DoctorID, &a.DoctorName, &a.Title, &a.Description, &a.Location,
		&a.StartsAtUTC, &a.EndsAtUTC, &a.Status, &a.ConsultationFee, &a.Currency,
		&a.IsDeleted, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, tenant_id, patient_id, patient_name, prospect_first_name,
			prospect_last_name, prospect_phone, prospect_email, doctor_id, doctor_name, title,
			description, location, starts_at_utc, ends_at_utc, status, consultation_fee, currency)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING created_at, updated_at`,
		a.ID, a.TenantID, a.PatientID, a.PatientName, a.ProspectFirstName,
		a.ProspectLastName, a.ProspectPhone, a.ProspectEmail, a.DoctorID, a.DoctorName, a.Title,
		a.Description, a.Location, a.StartsAtUTC, a.EndsAtUTC, a.Status, a.ConsultationFee, a.Currency,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`, id, tenantID))
}

func (r *appointmentRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET patient_id=$3, patient_name=$4, prospect_first_name=$5,
			prospect_last_name=$6, prospect_phone=$7, prospect_email=$8, doctor_id=$9, doctor_name=$10,
			title=$11, description=$12, location=$13, starts_at_utc=$14, ends_at_utc=$15, status=$16,
			consultation_fee=$17, currency=$18, updated_at=$19
		WHERE id = $1 AND tenant_id = $2`,
		a.ID, a.TenantID, a.PatientID, a.PatientName, a.ProspectFirstName,
		a.ProspectLastName, a.ProspectPhone, a.ProspectEmail, a.DoctorID, a.DoctorName,
		a.Title, a.Description, a.Location, a.StartsAtUTC, a.EndsAtUTC, a.Status,
		a.ConsultationFee, a.Currency, a.UpdatedAt,
	)
	return err
}

func (r *appointmentRepoPG) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	now := time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET is_deleted = TRUE, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`, id, tenantID, now)
	return err
}
