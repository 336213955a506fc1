package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic/internal/config"
	"github.com/clinicore/clinic/internal/platform/db"
	"github.com/clinicore/clinic/internal/platform/metrics"
	"github.com/clinicore/clinic/internal/platform/result"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestOpsServer(t *testing.T, pingErr error) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	stats := func() *db.PoolStats { return &db.PoolStats{MaxConns: 20} }
	e := newOpsServer(zerolog.Nop(), stubPinger{err: pingErr}, stats, reg, time.Second)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, m
}

func TestOpsServer_Health(t *testing.T) {
	srv, _ := newTestOpsServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on ops responses")
	}
}

func TestOpsServer_HealthDB(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		want    int
	}{
		{"healthy", nil, http.StatusOK},
		{"unhealthy", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestOpsServer(t, tt.pingErr)
			resp, err := http.Get(srv.URL + "/health/db")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestOpsServer_Metrics(t *testing.T) {
	srv, m := newTestOpsServer(t, nil)
	m.Observe("billing.create", time.Now(), "billing.duplicate", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(body.String(), `clinic_operations_total{operation="billing.create",outcome="billing.duplicate"} 1`) {
		t.Errorf("expected operation counter in exposition, got:\n%s", body.String())
	}
}

func TestMigrationFS(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS(""), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}

	dir := t.TempDir()
	if entries, err := fs.ReadDir(migrationFS(dir), "."); err != nil || len(entries) != 0 {
		t.Errorf("expected empty override dir, got %d entries (err %v)", len(entries), err)
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_clinic_core.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_next.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2024-03-01 09:30:00") {
		t.Errorf("expected applied row, got:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("expected pending row, got:\n%s", out)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&config.Config{Env: "production", LogLevel: "warn"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected only warn output, got %s", buf.String())
	}
}

func TestFailureError(t *testing.T) {
	err := failureError(&result.Failure{Code: "role.exists", Message: "a role with this name already exists"})
	if !strings.HasPrefix(err.Error(), "role.exists:") {
		t.Errorf("expected code prefix, got %v", err)
	}
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range []interface{ Name() string }{serveCmd(), migrateCmd(), roleCmd(), insuranceCmd()} {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "role", "insurance"} {
		if !names[want] {
			t.Errorf("expected %s command", want)
		}
	}
}
