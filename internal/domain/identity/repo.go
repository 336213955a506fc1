package identity

import (
	"context"

	"github.com/google/uuid"
)

// PatientRepository reads exclude soft-deleted rows and rows of other tenants;
// GetByIDForUpdate does neither so callers can decide between forbidden,
// already-deleted and not-found. Missing rows yield db.ErrNotFound.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Patient, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*User, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*User, error)
	GetBySetupToken(ctx context.Context, tenantID, token string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

// RoleRepository lookups by tenant also see global roles.
type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Role, error)
	GetByName(ctx context.Context, scopeTenantID, name string) (*Role, error)
}
