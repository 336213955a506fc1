package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinic/internal/domain/scheduling"
)

// BillingRepository reads are tenant-filtered and exclude soft-deleted rows.
// Missing rows yield db.ErrNotFound.
type BillingRepository interface {
	Create(ctx context.Context, b *Billing) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Billing, error)
	GetByAppointmentID(ctx context.Context, tenantID string, appointmentID uuid.UUID) (*Billing, error)
}

type InsuranceProviderRepository interface {
	Create(ctx context.Context, p *InsuranceProvider) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*InsuranceProvider, error)
	GetByName(ctx context.Context, tenantID, name string) (*InsuranceProvider, error)
}

// AppointmentFinder resolves in-tenant, non-deleted appointments.
type AppointmentFinder interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*scheduling.Appointment, error)
}
