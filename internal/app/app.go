// Package app assembles the clinic orchestrators over a shared pgx pool.
package app

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic/internal/domain/billing"
	"github.com/clinicore/clinic/internal/domain/consultation"
	"github.com/clinicore/clinic/internal/domain/identity"
	"github.com/clinicore/clinic/internal/domain/scheduling"
	"github.com/clinicore/clinic/internal/platform/metrics"
)

// Options configures the orchestrators. Zero values fall back to package defaults.
type Options struct {
	DefaultCurrency string
	SetupTokenTTL   time.Duration
	Logger          zerolog.Logger
	Metrics         *metrics.Metrics
}

// Clinic holds the wired orchestrators for one database.
type Clinic struct {
	Identity     *identity.Service
	Scheduling   *scheduling.Orchestrator
	Billing      *billing.Orchestrator
	Consultation *consultation.Orchestrator
}

func New(pool *pgxpool.Pool, opts Options) *Clinic {
	patients := identity.NewPatientRepoPG(pool)
	users := identity.NewUserRepoPG(pool)
	roles := identity.NewRoleRepoPG(pool)
	appts := scheduling.NewAppointmentRepoPG(pool)

	ttl := opts.SetupTokenTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	c := &Clinic{
		Identity:     identity.NewService(patients, users, roles, ttl),
		Scheduling:   scheduling.NewOrchestrator(appts, patients, users),
		Billing:      billing.NewOrchestrator(billing.NewBillingRepoPG(pool), billing.NewInsuranceProviderRepoPG(pool), appts),
		Consultation: consultation.NewOrchestrator(consultation.NewRepoPG(pool), patients, users),
	}
	if opts.DefaultCurrency != "" {
		c.Scheduling.SetDefaultCurrency(opts.DefaultCurrency)
	}

	c.Identity.SetLogger(opts.Logger)
	c.Scheduling.SetLogger(opts.Logger)
	c.Billing.SetLogger(opts.Logger)
	c.Consultation.SetLogger(opts.Logger)

	c.Identity.SetMetrics(opts.Metrics)
	c.Scheduling.SetMetrics(opts.Metrics)
	c.Billing.SetMetrics(opts.Metrics)
	c.Consultation.SetMetrics(opts.Metrics)
	return c
}
