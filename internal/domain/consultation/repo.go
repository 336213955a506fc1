package consultation

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinic/internal/domain/identity"
)

// Repository persists consultation aggregates. AddConsultationWithChildren and
// ReplaceConsultationChildren write the parent and its children in a single
// transaction; a failure leaves nothing behind. GetByIDForUpdate ignores the
// tenant and the deleted flag. Missing rows yield db.ErrNotFound.
type Repository interface {
	AddConsultationWithChildren(ctx context.Context, c *Consultation, ch Children) error
	ReplaceConsultationChildren(ctx context.Context, c *Consultation, ch Children) error
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetDetail(ctx context.Context, tenantID string, id uuid.UUID) (*Detail, error)
}

type PatientFinder interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*identity.Patient, error)
}

type DoctorFinder interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*identity.User, error)
}
