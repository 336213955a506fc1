package consultation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic/internal/domain/identity"
	"github.com/clinicore/clinic/internal/platform/db"
	"github.com/clinicore/clinic/internal/platform/result"
)

// -- Mock Repositories --

// mockRepo applies each aggregate write under one lock, so readers see either
// the old or the new child set.
type mockRepo struct {
	mu            sync.Mutex
	consultations map[uuid.UUID]Consultation
	symptoms      map[uuid.UUID][]SymptomEntry
	labs          map[uuid.UUID]LabRequisition
	prescriptions map[uuid.UUID]Prescription
	writeErr      error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		consultations: make(map[uuid.UUID]Consultation),
		symptoms:      make(map[uuid.UUID][]SymptomEntry),
		labs:          make(map[uuid.UUID]LabRequisition),
		prescriptions: make(map[uuid.UUID]Prescription),
	}
}

func (m *mockRepo) AddConsultationWithChildren(_ context.Context, c *Consultation, ch Children) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = uuid.New()
	ch.stamp(c)
	if m.writeErr != nil {
		return m.writeErr
	}
	m.consultations[c.ID] = *c
	m.commitChildren(c.ID, ch, true)
	return nil
}

func (m *mockRepo) ReplaceConsultationChildren(_ context.Context, c *Consultation, ch Children) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.consultations[c.ID]
	if !ok || stored.TenantID != c.TenantID || stored.IsDeleted {
		return db.ErrNotFound
	}
	ch.stamp(c)
	if m.writeErr != nil {
		return m.writeErr
	}
	m.consultations[c.ID] = *c
	m.commitChildren(c.ID, ch, false)
	return nil
}

func (m *mockRepo) commitChildren(id uuid.UUID, ch Children, create bool) {
	symptoms := make([]SymptomEntry, 0, len(ch.Symptoms))
	for _, s := range ch.Symptoms {
		s.ID = uuid.New()
		symptoms = append(symptoms, *s)
	}
	m.symptoms[id] = symptoms

	if ch.LabRequisition != nil {
		lr := *ch.LabRequisition
		lr.ID = uuid.New()
		lr.Items = append([]LabRequisitionItem(nil), lr.Items...)
		for i := range lr.Items {
			lr.Items[i].LabRequisitionID = lr.ID
		}
		m.labs[id] = lr
	} else if create {
		delete(m.labs, id)
	}
	if ch.Prescription != nil {
		rx := *ch.Prescription
		rx.ID = uuid.New()
		rx.Items = append([]PrescriptionItem(nil), rx.Items...)
		for i := range rx.Items {
			rx.Items[i].PrescriptionID = rx.ID
		}
		m.prescriptions[id] = rx
	} else if create {
		delete(m.prescriptions, id)
	}
}

func (m *mockRepo) GetByIDForUpdate(_ context.Context, id uuid.UUID) (*Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &c, nil
}

// GetDetail returns symptoms newest-first so callers must not rely on storage order.
func (m *mockRepo) GetDetail(_ context.Context, tenantID string, id uuid.UUID) (*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok || c.TenantID != tenantID || c.IsDeleted {
		return nil, db.ErrNotFound
	}
	d := &Detail{Consultation: c, Symptoms: []SymptomEntry{}}
	stored := m.symptoms[id]
	for i := len(stored) - 1; i >= 0; i-- {
		d.Symptoms = append(d.Symptoms, stored[i])
	}
	if lr, ok := m.labs[id]; ok {
		d.LabRequisition = &lr
	}
	if rx, ok := m.prescriptions[id]; ok {
		d.Prescription = &rx
	}
	return d, nil
}

type mockPatients map[uuid.UUID]*identity.Patient

func (m mockPatients) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m[id]
	if !ok || p.TenantID != tenantID {
		return nil, db.ErrNotFound
	}
	return p, nil
}

type mockDoctors map[uuid.UUID]*identity.User

func (m mockDoctors) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*identity.User, error) {
	u, ok := m[id]
	if !ok || u.TenantID != tenantID {
		return nil, db.ErrNotFound
	}
	return u, nil
}

// -- Tests --

const tenant = "clinic_a"

type fixture struct {
	orch      *Orchestrator
	repo      *mockRepo
	patientID uuid.UUID
	doctorID  uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{repo: newMockRepo(), patientID: uuid.New(), doctorID: uuid.New()}
	patients := mockPatients{f.patientID: {ID: f.patientID, TenantID: tenant, FirstName: "Ada", LastName: "Lovelace"}}
	doctors := mockDoctors{f.doctorID: {ID: f.doctorID, TenantID: tenant, FirstName: "Gregory", LastName: "House"}}
	f.orch = NewOrchestrator(f.repo, patients, doctors)
	return f
}

func ptrUUID(u uuid.UUID) *uuid.UUID { return &u }
func ptrTime(t time.Time) *time.Time { return &t }

func (f *fixture) request() CreateRequest {
	return CreateRequest{
		PatientID:      ptrUUID(f.patientID),
		DoctorID:       ptrUUID(f.doctorID),
		ReasonForVisit: "  persistent cough ",
	}
}

func (f *fixture) create(t *testing.T, req CreateRequest) *Detail {
	t.Helper()
	res, err := f.orch.Create(context.Background(), tenant, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsOK() {
		t.Fatalf("unexpected failure: %v", res.Failure())
	}
	return res.Value()
}

func descriptions(symptoms []SymptomEntry) []string {
	out := make([]string, len(symptoms))
	for i, s := range symptoms {
		out[i] = s.Description
	}
	return out
}

func TestCreate_SkipsBlankSymptomsAndOrdersByOnset(t *testing.T) {
	f := newFixture()
	day := func(d int) *time.Time { return ptrTime(time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)) }

	req := f.request()
	req.Symptoms = []SymptomInput{
		{Description: "fever", OnsetDate: day(5)},
		{Description: "   "},
		{Description: "fatigue"},
		{Description: "cough", OnsetDate: day(2)},
		{Description: ""},
		{Description: "headache", OnsetDate: day(5)},
	}
	d := f.create(t, req)

	got := descriptions(d.Symptoms)
	want := []string{"cough", "fever", "headache", "fatigue"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected symptoms %v, got %v", want, got)
	}
	for _, s := range d.Symptoms {
		if s.ConsultationID != d.Consultation.ID || s.TenantID != tenant {
			t.Errorf("symptom %q not stamped with parent: %s/%s", s.Description, s.ConsultationID, s.TenantID)
		}
	}
	if d.Consultation.ReasonForVisit != "persistent cough" {
		t.Errorf("expected trimmed reason, got %q", d.Consultation.ReasonForVisit)
	}
}

func TestCreate_LabAndPrescription(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.LabRequisition = &LabRequisitionInput{
		Priority: "urgent",
		Items:    []LabItemInput{{TestName: "CBC"}, {TestName: " "}, {TestName: "CRP", TestCode: "1988-5"}},
	}
	req.Prescription = &PrescriptionInput{
		Items: []PrescriptionItemInput{{DrugName: ""}, {DrugName: "Amoxicillin", Dosage: "500mg", Frequency: "tid"}},
	}
	d := f.create(t, req)

	lr := d.LabRequisition
	if lr == nil || len(lr.Items) != 2 || lr.Items[0].TestName != "CBC" || lr.Items[1].TestName != "CRP" {
		t.Fatalf("unexpected lab requisition %+v", lr)
	}
	if lr.ConsultationID != d.Consultation.ID || lr.TenantID != tenant || lr.Items[1].TenantID != tenant {
		t.Errorf("lab requisition not stamped with parent: %+v", lr)
	}
	for _, it := range lr.Items {
		if it.LabRequisitionID != lr.ID {
			t.Errorf("lab item %q not linked to requisition", it.TestName)
		}
	}
	rx := d.Prescription
	if rx == nil || len(rx.Items) != 1 || rx.Items[0].DrugName != "Amoxicillin" {
		t.Fatalf("unexpected prescription %+v", rx)
	}
	if rx.ConsultationID != d.Consultation.ID || rx.Items[0].TenantID != tenant {
		t.Errorf("prescription not stamped with parent: %+v", rx)
	}
}

func TestCreate_WithoutOptionalChildren(t *testing.T) {
	f := newFixture()
	d := f.create(t, f.request())
	if d.LabRequisition != nil || d.Prescription != nil {
		t.Error("expected no lab requisition or prescription")
	}
	if d.Symptoms == nil || len(d.Symptoms) != 0 {
		t.Errorf("expected empty symptom list, got %v", d.Symptoms)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		mut  func(f *fixture, r *CreateRequest)
		code string
	}{
		{"missing patient", func(_ *fixture, r *CreateRequest) { r.PatientID = nil }, result.CodeConsultationPatientRequired},
		{"nil patient", func(_ *fixture, r *CreateRequest) { r.PatientID = ptrUUID(uuid.Nil) }, result.CodeConsultationPatientRequired},
		{"missing doctor", func(_ *fixture, r *CreateRequest) { r.DoctorID = nil }, result.CodeConsultationDoctorRequired},
		{"unknown patient", func(_ *fixture, r *CreateRequest) { r.PatientID = ptrUUID(uuid.New()) }, result.CodeConsultationPatientNotFound},
		{"unknown doctor", func(_ *fixture, r *CreateRequest) { r.DoctorID = ptrUUID(uuid.New()) }, result.CodeConsultationDoctorNotFound},
		{"doctor is a patient id", func(f *fixture, r *CreateRequest) { r.DoctorID = ptrUUID(f.patientID) }, result.CodeConsultationDoctorNotFound},
		{"blank reason", func(_ *fixture, r *CreateRequest) { r.ReasonForVisit = " \t" }, result.CodeConsultationReasonRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := f.request()
			req.Symptoms = []SymptomInput{{Description: "fever"}}
			tt.mut(f, &req)

			res, err := f.orch.Create(context.Background(), tenant, req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Code() != tt.code {
				t.Errorf("expected %s, got %q", tt.code, res.Code())
			}
			if len(f.repo.consultations) != 0 || len(f.repo.symptoms) != 0 {
				t.Error("expected no consultation rows")
			}
		})
	}
}

func TestCreate_InvalidTenant(t *testing.T) {
	f := newFixture()
	res, err := f.orch.Create(context.Background(), "", f.request())
	if err != nil || res.Code() != result.CodeTenantInvalid {
		t.Errorf("expected %s, got %q (%v)", result.CodeTenantInvalid, res.Code(), err)
	}
}

func TestCreate_WriteFailureLeavesNothing(t *testing.T) {
	f := newFixture()
	f.repo.writeErr = errors.New("insert symptom: connection reset")
	req := f.request()
	req.Symptoms = []SymptomInput{{Description: "fever"}}

	res, err := f.orch.Create(context.Background(), tenant, req)
	if err == nil {
		t.Fatal("expected write failure to propagate")
	}
	if !errors.Is(err, f.repo.writeErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if res.Code() != "" {
		t.Errorf("expected no business code alongside a fault, got %q", res.Code())
	}
	if len(f.repo.consultations) != 0 || len(f.repo.symptoms) != 0 {
		t.Error("expected no partial rows")
	}
}

func TestUpdate_ReplacesSymptoms(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Symptoms = []SymptomInput{{Description: "fever"}, {Description: "cough"}}
	created := f.create(t, req)

	fixed := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	f.orch.now = func() time.Time { return fixed }

	res, err := f.orch.Update(context.Background(), tenant, created.Consultation.ID, UpdateRequest{
		ReasonForVisit: "follow-up",
		Notes:          "improving",
		Symptoms:       []SymptomInput{{Description: "mild cough"}},
	})
	if err != nil || !res.IsOK() {
		t.Fatalf("unexpected result: %v %v", err, res.Failure())
	}
	d := res.Value()
	if got := descriptions(d.Symptoms); len(got) != 1 || got[0] != "mild cough" {
		t.Errorf("expected replaced symptom set, got %v", got)
	}
	if d.Consultation.ReasonForVisit != "follow-up" || d.Consultation.Notes == nil || *d.Consultation.Notes != "improving" {
		t.Errorf("expected overwritten text fields, got %+v", d.Consultation)
	}
	if !d.Consultation.UpdatedAt.Equal(fixed) {
		t.Errorf("expected updated_at %v, got %v", fixed, d.Consultation.UpdatedAt)
	}
}

func TestUpdate_EmptySymptomsRemovesAll(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Symptoms = []SymptomInput{{Description: "fever"}, {Description: "cough"}, {Description: "rash"}}
	created := f.create(t, req)

	res, err := f.orch.Update(context.Background(), tenant, created.Consultation.ID, UpdateRequest{ReasonForVisit: "review"})
	if err != nil || !res.IsOK() {
		t.Fatalf("unexpected result: %v %v", err, res.Failure())
	}
	if n := len(res.Value().Symptoms); n != 0 {
		t.Errorf("expected all symptoms removed, got %d", n)
	}
}

func TestUpdate_LabAndPrescriptionReplacement(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.LabRequisition = &LabRequisitionInput{Items: []LabItemInput{{TestName: "CBC"}}}
	req.Prescription = &PrescriptionInput{Items: []PrescriptionItemInput{{DrugName: "Paracetamol"}}}
	created := f.create(t, req)
	id := created.Consultation.ID

	res, _ := f.orch.Update(context.Background(), tenant, id, UpdateRequest{
		ReasonForVisit: "review",
		LabRequisition: &LabRequisitionInput{Items: []LabItemInput{{TestName: "HbA1c"}, {TestName: "Lipids"}}},
	})
	if !res.IsOK() {
		t.Fatalf("unexpected failure: %v", res.Failure())
	}
	d := res.Value()
	if d.LabRequisition == nil || len(d.LabRequisition.Items) != 2 || d.LabRequisition.Items[0].TestName != "HbA1c" {
		t.Errorf("expected lab requisition replaced, got %+v", d.LabRequisition)
	}
	if d.Prescription == nil || d.Prescription.Items[0].DrugName != "Paracetamol" {
		t.Errorf("expected prescription kept, got %+v", d.Prescription)
	}
}

func TestUpdate_Ownership(t *testing.T) {
	f := newFixture()
	created := f.create(t, f.request())
	ctx := context.Background()

	res, _ := f.orch.Update(ctx, "clinic_b", created.Consultation.ID, UpdateRequest{ReasonForVisit: "x"})
	if res.Code() != result.CodeConsultationForbidden {
		t.Errorf("expected %s, got %q", result.CodeConsultationForbidden, res.Code())
	}
	res, _ = f.orch.Update(ctx, tenant, uuid.New(), UpdateRequest{ReasonForVisit: "x"})
	if res.Code() != result.CodeConsultationNotFound {
		t.Errorf("expected %s, got %q", result.CodeConsultationNotFound, res.Code())
	}
	res, _ = f.orch.Update(ctx, tenant, created.Consultation.ID, UpdateRequest{ReasonForVisit: ""})
	if res.Code() != result.CodeConsultationReasonRequired {
		t.Errorf("expected %s, got %q", result.CodeConsultationReasonRequired, res.Code())
	}
}

func TestUpdate_DeletedConsultation(t *testing.T) {
	f := newFixture()
	created := f.create(t, f.request())
	c := f.repo.consultations[created.Consultation.ID]
	c.IsDeleted = true
	f.repo.consultations[c.ID] = c

	res, _ := f.orch.Update(context.Background(), tenant, c.ID, UpdateRequest{ReasonForVisit: "x"})
	if res.Code() != result.CodeConsultationNotFound {
		t.Errorf("expected %s, got %q", result.CodeConsultationNotFound, res.Code())
	}
	if res, _ := f.orch.Get(context.Background(), tenant, c.ID); res.Code() != result.CodeConsultationNotFound {
		t.Errorf("expected deleted consultation hidden, got %q", res.Code())
	}
}

func TestUpdate_WriteFailurePropagates(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Symptoms = []SymptomInput{{Description: "fever"}}
	created := f.create(t, req)
	f.repo.writeErr = errors.New("deadlock detected")

	_, err := f.orch.Update(context.Background(), tenant, created.Consultation.ID, UpdateRequest{ReasonForVisit: "x"})
	if err == nil {
		t.Fatal("expected write failure to propagate")
	}
	if got := descriptions(f.repo.symptoms[created.Consultation.ID]); len(got) != 1 || got[0] != "fever" {
		t.Errorf("expected original symptoms untouched, got %v", got)
	}
}

// Concurrent updates of one consultation: the final symptom set is exactly
// one caller's set, and no reader observes a mix.
func TestUpdate_ConcurrentLastWriteWins(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Symptoms = []SymptomInput{{Description: "original"}}
	id := f.create(t, req).Consultation.ID

	sets := map[string][]SymptomInput{
		"a": {{Description: "a1"}, {Description: "a2"}, {Description: "a3"}},
		"b": {{Description: "b1"}, {Description: "b2"}},
	}
	valid := map[string]bool{"[original]": true, "[a1 a2 a3]": true, "[b1 b2]": true}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for name, set := range sets {
		name, set := name, set
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				res, err := f.orch.Update(context.Background(), tenant, id, UpdateRequest{ReasonForVisit: name, Symptoms: set})
				if err != nil || !res.IsOK() {
					errs <- fmt.Errorf("update %s: %v %v", name, err, res.Failure())
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			res, err := f.orch.Get(context.Background(), tenant, id)
			if err != nil || !res.IsOK() {
				errs <- fmt.Errorf("get: %v %v", err, res.Failure())
				return
			}
			if got := fmt.Sprint(descriptions(res.Value().Symptoms)); !valid[got] {
				errs <- fmt.Errorf("observed mixed symptom set %s", got)
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	res, _ := f.orch.Get(context.Background(), tenant, id)
	final := fmt.Sprint(descriptions(res.Value().Symptoms))
	reason := res.Value().Consultation.ReasonForVisit
	if (reason == "a" && final != "[a1 a2 a3]") || (reason == "b" && final != "[b1 b2]") {
		t.Errorf("reason %q does not match symptom set %s", reason, final)
	}
}

func TestGet(t *testing.T) {
	f := newFixture()
	created := f.create(t, f.request())

	res, err := f.orch.Get(context.Background(), tenant, created.Consultation.ID)
	if err != nil || !res.IsOK() {
		t.Fatalf("unexpected result: %v %v", err, res.Failure())
	}
	if res, _ := f.orch.Get(context.Background(), "clinic_b", created.Consultation.ID); res.Code() != result.CodeConsultationNotFound {
		t.Errorf("expected %s, got %q", result.CodeConsultationNotFound, res.Code())
	}
}

func TestSortSymptoms(t *testing.T) {
	d1 := ptrTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	d2 := ptrTime(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	s := []SymptomEntry{
		{Description: "undated-late", Sequence: 3},
		{Description: "second", OnsetDate: d2, Sequence: 0},
		{Description: "undated-early", Sequence: 1},
		{Description: "first", OnsetDate: d1, Sequence: 2},
	}
	sortSymptoms(s)
	want := "[first second undated-early undated-late]"
	if got := fmt.Sprint(descriptions(s)); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
