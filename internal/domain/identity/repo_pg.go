package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const patientCols = `id, tenant_id, first_name, last_name, email, phone, gender, date_of_birth, address,
	assigned_doctor_id, assigned_doctor_name, is_deleted, deleted_at, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.TenantID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Gender,
		&p.DateOfBirth, &p.Address, &p.AssignedDoctorID, &p.AssignedDoctorName,
		&p.IsDeleted, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, tenant_id, first_name, last_name, email, phone, gender, date_of_birth,
			address, assigned_doctor_id, assigned_doctor_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.FirstName, p.LastName, p.Email, p.Phone, p.Gender, p.DateOfBirth,
		p.Address, p.AssignedDoctorID, p.AssignedDoctorName,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`, id, tenantID))
}

func (r *patientRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, tenantID, email string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE tenant_id = $1 AND lower(email) = lower($2) AND NOT is_deleted`,
		tenantID, email))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET first_name=$3, last_name=$4, email=$5, phone=$6, gender=$7, date_of_birth=$8,
			address=$9, assigned_doctor_id=$10, assigned_doctor_name=$11, updated_at=NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at`,
		p.ID, p.TenantID, p.FirstName, p.LastName, p.Email, p.Phone, p.Gender, p.DateOfBirth,
		p.Address, p.AssignedDoctorID, p.AssignedDoctorName,
	).Scan(&p.UpdatedAt)
}

func (r *patientRepoPG) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	return softDelete(ctx, r.conn(ctx), "patient", tenantID, id)
}

// -- User Repository --

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const userCols = `id, tenant_id, first_name, last_name, email, phone, specialty, role_id,
	password_hash, password_confirmed, setup_token, setup_token_expires_at,
	is_deleted, deleted_at, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.Specialty, &u.RoleID,
		&u.PasswordHash, &u.PasswordConfirmed, &u.SetupToken, &u.SetupTokenExpiresAt,
		&u.IsDeleted, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO app_user (id, tenant_id, first_name, last_name, email, phone, specialty, role_id,
			password_hash, password_confirmed, setup_token, setup_token_expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		u.ID, u.TenantID, u.FirstName, u.LastName, u.Email, u.Phone, u.Specialty, u.RoleID,
		u.PasswordHash, u.PasswordConfirmed, u.SetupToken, u.SetupTokenExpiresAt,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`, id, tenantID))
}

func (r *userRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE tenant_id = $1 AND lower(email) = lower($2) AND NOT is_deleted`,
		tenantID, email))
}

func (r *userRepoPG) GetBySetupToken(ctx context.Context, tenantID, token string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE tenant_id = $1 AND setup_token = $2 AND NOT is_deleted`,
		tenantID, token))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE app_user SET first_name=$3, last_name=$4, email=$5, phone=$6, specialty=$7, role_id=$8,
			password_hash=$9, password_confirmed=$10, setup_token=$11, setup_token_expires_at=$12,
			updated_at=NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at`,
		u.ID, u.TenantID, u.FirstName, u.LastName, u.Email, u.Phone, u.Specialty, u.RoleID,
		u.PasswordHash, u.PasswordConfirmed, u.SetupToken, u.SetupTokenExpiresAt,
	).Scan(&u.UpdatedAt)
}

func (r *userRepoPG) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	return softDelete(ctx, r.conn(ctx), "app_user", tenantID, id)
}

// -- Role Repository --

type roleRepoPG struct{ pool *pgxpool.Pool }

func NewRoleRepoPG(pool *pgxpool.Pool) RoleRepository { return &roleRepoPG{pool: pool} }

func (r *roleRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const roleCols = `id, tenant_id, name, description, is_global, is_deleted, deleted_at, created_at, updated_at`

func (r *roleRepoPG) scanRole(row pgx.Row) (*Role, error) {
	var ro Role
	err := row.Scan(&ro.ID, &ro.TenantID, &ro.Name, &ro.Description, &ro.IsGlobal,
		&ro.IsDeleted, &ro.DeletedAt, &ro.CreatedAt, &ro.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &ro, nil
}

func (r *roleRepoPG) Create(ctx context.Context, ro *Role) error {
	if ro.ID == uuid.Nil {
		ro.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO role (id, tenant_id, name, description, is_global)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		ro.ID, ro.TenantID, ro.Name, ro.Description, ro.IsGlobal,
	).Scan(&ro.CreatedAt, &ro.UpdatedAt)
}

func (r *roleRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Role, error) {
	return r.scanRole(r.conn(ctx).QueryRow(ctx,
		`SELECT `+roleCols+` FROM role WHERE id = $1 AND tenant_id IN ($2, $3) AND NOT is_deleted`,
		id, tenantID, db.GlobalTenantID))
}

func (r *roleRepoPG) GetByName(ctx context.Context, scopeTenantID, name string) (*Role, error) {
	return r.scanRole(r.conn(ctx).QueryRow(ctx,
		`SELECT `+roleCols+` FROM role WHERE tenant_id = $1 AND lower(name) = lower($2) AND NOT is_deleted`,
		scopeTenantID, name))
}

// softDelete marks a tenant-owned row deleted. Tables are fixed identifiers, never caller input.
func softDelete(ctx context.Context, q db.Querier, table, tenantID string, id uuid.UUID) error {
	now := time.Now().UTC()
	_, err := q.Exec(ctx,
		`UPDATE `+table+` SET is_deleted = TRUE, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`, id, tenantID, now)
	return err
}
