package result

import "testing"

func TestOk(t *testing.T) {
	r := Ok(42)
	if !r.IsOK() {
		t.Fatal("expected success")
	}
	if r.Value() != 42 {
		t.Errorf("expected 42, got %d", r.Value())
	}
	if r.Failure() != nil || r.Code() != "" {
		t.Error("expected no failure on success")
	}
}

func TestFail(t *testing.T) {
	r := Fail[string](CodePatientNotFound, "patient not found")
	if r.IsOK() {
		t.Fatal("expected failure")
	}
	if r.Code() != CodePatientNotFound {
		t.Errorf("expected %s, got %s", CodePatientNotFound, r.Code())
	}
	if r.Value() != "" {
		t.Errorf("expected zero value, got %q", r.Value())
	}
	if got := r.Failure().String(); got != "patient.notFound: patient not found" {
		t.Errorf("unexpected failure string %q", got)
	}
}

func TestEmpty(t *testing.T) {
	if !Success().IsOK() {
		t.Error("expected Success to be ok")
	}
	r := Failed(CodeAppointmentForbidden, "forbidden")
	if r.IsOK() || r.Code() != CodeAppointmentForbidden {
		t.Errorf("unexpected result %+v", r.Failure())
	}
}

func TestFrom(t *testing.T) {
	typed := From[int](Failed(CodeTenantInvalid, "bad tenant"))
	if typed.IsOK() || typed.Code() != CodeTenantInvalid {
		t.Errorf("expected %s, got %q", CodeTenantInvalid, typed.Code())
	}
	if !From[int](Success()).IsOK() {
		t.Error("expected success to convert to success")
	}
}

func TestFromFailure(t *testing.T) {
	f := &Failure{Code: CodeBillingDuplicate, Message: "duplicate"}
	if r := FromFailure[string](f); r.IsOK() || r.Code() != CodeBillingDuplicate {
		t.Errorf("expected %s, got %q", CodeBillingDuplicate, r.Code())
	}
	if !FromFailure[string](nil).IsOK() {
		t.Error("expected nil failure to be success")
	}
	if r := FailedWith(f); r.IsOK() || r.Code() != CodeBillingDuplicate {
		t.Errorf("expected %s, got %q", CodeBillingDuplicate, r.Code())
	}
}
