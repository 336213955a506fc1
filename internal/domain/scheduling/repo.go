package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinic/internal/domain/identity"
)

// AppointmentRepository persists appointments. GetByID filters by tenant and
// hides soft-deleted rows; GetByIDForUpdate does neither. Missing rows yield
// db.ErrNotFound.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

// PatientFinder resolves in-tenant, non-deleted patients.
type PatientFinder interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*identity.Patient, error)
}

// DoctorFinder resolves in-tenant, non-deleted staff users.
type DoctorFinder interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*identity.User, error)
}
