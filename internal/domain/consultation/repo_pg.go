package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const consultationCols = `id, tenant_id, patient_id, doctor_id, medical_center_id, consultation_date,
	reason_for_visit, notes, is_deleted, deleted_at, created_at, updated_at`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.TenantID, &c.PatientID, &c.DoctorID, &c.MedicalCenterID, &c.ConsultationDate,
		&c.ReasonForVisit, &c.Notes, &c.IsDeleted, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &c, nil
}

// AddConsultationWithChildren inserts the consultation, takes the id the
// database generated for it and inserts every child under that id.
func (r *repoPG) AddConsultationWithChildren(ctx context.Context, c *Consultation, ch Children) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		err := q.QueryRow(ctx, `
			INSERT INTO consultation (tenant_id, patient_id, doctor_id, medical_center_id, consultation_date,
				reason_for_visit, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id, created_at, updated_at`,
			c.TenantID, c.PatientID, c.DoctorID, c.MedicalCenterID, c.ConsultationDate,
			c.ReasonForVisit, c.Notes,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert consultation: %w", err)
		}

		ch.stamp(c)
		if err := insertSymptoms(ctx, q, ch.Symptoms); err != nil {
			return err
		}
		if ch.LabRequisition != nil {
			if err := insertLabRequisition(ctx, q, ch.LabRequisition); err != nil {
				return err
			}
		}
		if ch.Prescription != nil {
			if err := insertPrescription(ctx, q, ch.Prescription); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceConsultationChildren updates the consultation row, then deletes and
// reinserts its symptoms. A supplied lab requisition or prescription replaces
// the stored one with its items. The parent UPDATE runs first so its row lock
// orders concurrent replaces of the same consultation.
func (r *repoPG) ReplaceConsultationChildren(ctx context.Context, c *Consultation, ch Children) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		tag, err := q.Exec(ctx, `
			UPDATE consultation SET consultation_date=$3, reason_for_visit=$4, notes=$5, updated_at=$6
			WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`,
			c.ID, c.TenantID, c.ConsultationDate, c.ReasonForVisit, c.Notes, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update consultation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return db.ErrNotFound
		}

		ch.stamp(c)
		if _, err := q.Exec(ctx,
			`DELETE FROM symptom_entry WHERE consultation_id = $1 AND tenant_id = $2`, c.ID, c.TenantID); err != nil {
			return fmt.Errorf("delete symptoms: %w", err)
		}
		if err := insertSymptoms(ctx, q, ch.Symptoms); err != nil {
			return err
		}

		if ch.LabRequisition != nil {
			// items go with their requisition through ON DELETE CASCADE
			if _, err := q.Exec(ctx,
				`DELETE FROM lab_requisition WHERE consultation_id = $1 AND tenant_id = $2`, c.ID, c.TenantID); err != nil {
				return fmt.Errorf("delete lab requisition: %w", err)
			}
			if err := insertLabRequisition(ctx, q, ch.LabRequisition); err != nil {
				return err
			}
		}
		if ch.Prescription != nil {
			if _, err := q.Exec(ctx,
				`DELETE FROM prescription WHERE consultation_id = $1 AND tenant_id = $2`, c.ID, c.TenantID); err != nil {
				return fmt.Errorf("delete prescription: %w", err)
			}
			if err := insertPrescription(ctx, q, ch.Prescription); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return scanConsultation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultation WHERE id = $1`, id))
}

// GetDetail reads the consultation and its children in one snapshot.
func (r *repoPG) GetDetail(ctx context.Context, tenantID string, id uuid.UUID) (*Detail, error) {
	var d *Detail
	err := r.inReadSnapshot(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)
		c, err := scanConsultation(q.QueryRow(ctx,
			`SELECT `+consultationCols+` FROM consultation WHERE id = $1 AND tenant_id = $2 AND NOT is_deleted`,
			id, tenantID))
		if err != nil {
			return err
		}
		d = &Detail{Consultation: *c}

		if d.Symptoms, err = listSymptoms(ctx, q, c); err != nil {
			return err
		}
		if d.LabRequisition, err = getLabRequisition(ctx, q, c); err != nil {
			return err
		}
		if d.Prescription, err = getPrescription(ctx, q, c); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// inReadSnapshot runs fn in a repeatable-read transaction unless ctx already
// carries one.
func (r *repoPG) inReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))
	if err := fn(db.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// -- children --

func insertSymptoms(ctx context.Context, q db.Querier, symptoms []*SymptomEntry) error {
	for _, s := range symptoms {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		err := q.QueryRow(ctx, `
			INSERT INTO symptom_entry (id, tenant_id, consultation_id, description, severity, onset_date,
				notes, sequence)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at`,
			s.ID, s.TenantID, s.ConsultationID, s.Description, s.Severity, s.OnsetDate, s.Notes, s.Sequence,
		).Scan(&s.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert symptom: %w", err)
		}
	}
	return nil
}

func insertLabRequisition(ctx context.Context, q db.Querier, lr *LabRequisition) error {
	if lr.ID == uuid.Nil {
		lr.ID = uuid.New()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO lab_requisition (id, tenant_id, consultation_id, priority, clinical_notes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		lr.ID, lr.TenantID, lr.ConsultationID, lr.Priority, lr.ClinicalNotes,
	).Scan(&lr.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert lab requisition: %w", err)
	}
	for i := range lr.Items {
		it := &lr.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.LabRequisitionID = lr.ID
		if _, err := q.Exec(ctx, `
			INSERT INTO lab_requisition_item (id, tenant_id, lab_requisition_id, test_name, test_code,
				instructions, sequence)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.TenantID, it.LabRequisitionID, it.TestName, it.TestCode, it.Instructions, it.Sequence,
		); err != nil {
			return fmt.Errorf("insert lab requisition item: %w", err)
		}
	}
	return nil
}

func insertPrescription(ctx context.Context, q db.Querier, rx *Prescription) error {
	if rx.ID == uuid.Nil {
		rx.ID = uuid.New()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO prescription (id, tenant_id, consultation_id, notes)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		rx.ID, rx.TenantID, rx.ConsultationID, rx.Notes,
	).Scan(&rx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	for i := range rx.Items {
		it := &rx.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.PrescriptionID = rx.ID
		if _, err := q.Exec(ctx, `
			INSERT INTO prescription_item (id, tenant_id, prescription_id, drug_name, dosage, frequency,
				duration, instructions, sequence)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			it.ID, it.TenantID, it.PrescriptionID, it.DrugName, it.Dosage, it.Frequency,
			it.Duration, it.Instructions, it.Sequence,
		); err != nil {
			return fmt.Errorf("insert prescription item: %w", err)
		}
	}
	return nil
}

func listSymptoms(ctx context.Context, q db.Querier, c *Consultation) ([]SymptomEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, consultation_id, description, severity, onset_date, notes, sequence, created_at
		FROM symptom_entry
		WHERE consultation_id = $1 AND tenant_id = $2
		ORDER BY onset_date ASC NULLS LAST, sequence ASC`, c.ID, c.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	symptoms := []SymptomEntry{}
	for rows.Next() {
		var s SymptomEntry
		if err := rows.Scan(&s.ID, &s.TenantID, &s.ConsultationID, &s.Description, &s.Severity,
			&s.OnsetDate, &s.Notes, &s.Sequence, &s.CreatedAt); err != nil {
			return nil, err
		}
		symptoms = append(symptoms, s)
	}
	return symptoms, rows.Err()
}

func getLabRequisition(ctx context.Context, q db.Querier, c *Consultation) (*LabRequisition, error) {
	var lr LabRequisition
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, consultation_id, priority, clinical_notes, created_at
		FROM lab_requisition WHERE consultation_id = $1 AND tenant_id = $2`, c.ID, c.TenantID,
	).Scan(&lr.ID, &lr.TenantID, &lr.ConsultationID, &lr.Priority, &lr.ClinicalNotes, &lr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, lab_requisition_id, test_name, test_code, instructions, sequence
		FROM lab_requisition_item WHERE lab_requisition_id = $1
		ORDER BY sequence ASC`, lr.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lr.Items = []LabRequisitionItem{}
	for rows.Next() {
		var it LabRequisitionItem
		if err := rows.Scan(&it.ID, &it.TenantID, &it.LabRequisitionID, &it.TestName, &it.TestCode,
			&it.Instructions, &it.Sequence); err != nil {
			return nil, err
		}
		lr.Items = append(lr.Items, it)
	}
	return &lr, rows.Err()
}

func getPrescription(ctx context.Context, q db.Querier, c *Consultation) (*Prescription, error) {
	var rx Prescription
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, consultation_id, notes, created_at
		FROM prescription WHERE consultation_id = $1 AND tenant_id = $2`, c.ID, c.TenantID,
	).Scan(&rx.ID, &rx.TenantID, &rx.ConsultationID, &rx.Notes, &rx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, prescription_id, drug_name, dosage, frequency, duration, instructions, sequence
		FROM prescription_item WHERE prescription_id = $1
		ORDER BY sequence ASC`, rx.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rx.Items = []PrescriptionItem{}
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.TenantID, &it.PrescriptionID, &it.DrugName, &it.Dosage,
			&it.Frequency, &it.Duration, &it.Instructions, &it.Sequence); err != nil {
			return nil, err
		}
		rx.Items = append(rx.Items, it)
	}
	return &rx, rows.Err()
}
