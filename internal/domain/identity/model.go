package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	TenantID           string     `db:"tenant_id" json:"tenant_id"`
	FirstName          string     `db:"first_name" json:"first_name"`
	LastName           string     `db:"last_name" json:"last_name"`
	Email              *string    `db:"email" json:"email,omitempty"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	Gender             *string    `db:"gender" json:"gender,omitempty"`
	DateOfBirth        *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address            *string    `db:"address" json:"address,omitempty"`
	AssignedDoctorID   *uuid.UUID `db:"assigned_doctor_id" json:"assigned_doctor_id,omitempty"`
	AssignedDoctorName *string    `db:"assigned_doctor_name" json:"assigned_doctor_name,omitempty"`
	IsDeleted          bool       `db:"is_deleted" json:"-"`
	DeletedAt          *time.Time `db:"deleted_at" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return joinName(p.FirstName, p.LastName)
}

// User is a staff member; doctors are users referenced by appointments and consultations.
type User struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	TenantID            string     `db:"tenant_id" json:"tenant_id"`
	FirstName           string     `db:"first_name" json:"first_name"`
	LastName            string     `db:"last_name" json:"last_name"`
	Email               string     `db:"email" json:"email"`
	Phone               *string    `db:"phone" json:"phone,omitempty"`
	Specialty           *string    `db:"specialty" json:"specialty,omitempty"`
	RoleID              *uuid.UUID `db:"role_id" json:"role_id,omitempty"`
	PasswordHash        *string    `db:"password_hash" json:"-"`
	PasswordConfirmed   bool       `db:"password_confirmed" json:"password_confirmed"`
	SetupToken          *string    `db:"setup_token" json:"-"`
	SetupTokenExpiresAt *time.Time `db:"setup_token_expires_at" json:"-"`
	IsDeleted           bool       `db:"is_deleted" json:"-"`
	DeletedAt           *time.Time `db:"deleted_at" json:"-"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	return joinName(u.FirstName, u.LastName)
}

// Role is either owned by a tenant or global (stored under db.GlobalTenantID).
type Role struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	IsGlobal    bool       `db:"is_global" json:"is_global"`
	IsDeleted   bool       `db:"is_deleted" json:"-"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
