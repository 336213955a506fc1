package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic/internal/domain/identity"
	"github.com/clinicore/clinic/internal/platform/metrics"
	"github.com/clinicore/clinic/internal/platform/result"
)

func TestNew_WiresOrchestrators(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(nil, Options{DefaultCurrency: "EUR", Logger: zerolog.Nop(), Metrics: m})

	if c.Identity == nil || c.Scheduling == nil || c.Billing == nil || c.Consultation == nil {
		t.Fatal("expected every orchestrator to be wired")
	}

	// An ill-formed tenant is rejected before any repository is touched,
	// so a nil pool is never dereferenced.
	ctx := context.Background()
	const badTenant = "no spaces allowed"

	appt, err := c.Scheduling.Get(ctx, badTenant, uuid.New())
	if err != nil || appt.Code() != result.CodeTenantInvalid {
		t.Errorf("scheduling: expected %s, got %q (err %v)", result.CodeTenantInvalid, appt.Code(), err)
	}
	bill, err := c.Billing.GetBilling(ctx, badTenant, uuid.New())
	if err != nil || bill.Code() != result.CodeTenantInvalid {
		t.Errorf("billing: expected %s, got %q (err %v)", result.CodeTenantInvalid, bill.Code(), err)
	}
	cons, err := c.Consultation.Get(ctx, badTenant, uuid.New())
	if err != nil || cons.Code() != result.CodeTenantInvalid {
		t.Errorf("consultation: expected %s, got %q (err %v)", result.CodeTenantInvalid, cons.Code(), err)
	}
	pat, err := c.Identity.RegisterPatient(ctx, badTenant, identity.RegisterPatientRequest{FirstName: "Ada", LastName: "Lovelace"})
	if err != nil || pat.Code() != result.CodeTenantInvalid {
		t.Errorf("identity: expected %s, got %q (err %v)", result.CodeTenantInvalid, pat.Code(), err)
	}

	for _, op := range []string{"appointment.get", "billing.get", "consultation.get", "patient.register"} {
		if got := testutil.ToFloat64(m.Operations.WithLabelValues(op, result.CodeTenantInvalid)); got != 1 {
			t.Errorf("%s: expected 1 tenant.invalid observation, got %v", op, got)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(nil, Options{Logger: zerolog.Nop()})
	if c.Scheduling == nil {
		t.Fatal("expected scheduling orchestrator without options")
	}
}
