package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFSContainsCoreSchema(t *testing.T) {
	data, err := fs.ReadFile(FS, "001_clinic_core.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	sql := string(data)
	for _, table := range []string{
		"patient", "app_user", "role", "appointment", "insurance_provider", "billing",
		"consultation", "symptom_entry", "lab_requisition", "lab_requisition_item",
		"prescription", "prescription_item",
	} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("expected table %s in core schema", table)
		}
	}
}
