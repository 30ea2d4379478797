// internal/applications/repository.go
package applications

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/wizard"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Repository persists applications and their back-office records in Postgres.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// BeforeCommit runs inside the create transaction once all rows are written.
// A non-zero key is stored as the process instance key; an error rolls the
// whole submission back.
type BeforeCommit func(ctx context.Context, app *Application) (int64, error)

// ApplicationNumber formats APP-YYYYMMDD-NNNN.
func ApplicationNumber(day time.Time, seq int) string {
	return fmt.Sprintf("APP-%s-%04d", day.Format("20060102"), seq)
}

// Create numbers and inserts app, its first status change and one pending
// verification row per uploaded document, all in one transaction.
func (r *Repository) Create(ctx context.Context, app *Application, docs []wizard.DocumentUpload, beforeCommit BeforeCommit) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = r.now()
	}
	app.UpdatedAt = app.SubmittedAt
	if app.Status == "" {
		app.Status = StatusSubmitted
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	var today int
	prefix := fmt.Sprintf("APP-%s-%%", app.SubmittedAt.Format("20060102"))
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE application_no LIKE $1`, prefix,
	).Scan(&today); err != nil {
		return errors.NewQueryExecutionFailedError("count_applications_today", err)
	}
	app.ApplicationNo = ApplicationNumber(app.SubmittedAt, today+1)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applications (
			id, application_no, session_id, plant_id, plant_group,
			certification_purpose, service_type, applicant_name, applicant_email,
			applicant_phone, province, status, snapshot, submitted_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		app.ID,
		app.ApplicationNo,
		app.SessionID,
		string(app.PlantID),
		string(app.PlantGroup),
		string(app.CertificationPurpose),
		string(app.ServiceType),
		app.ApplicantName,
		app.ApplicantEmail,
		app.ApplicantPhone,
		app.Province,
		string(app.Status),
		[]byte(app.Snapshot),
		app.SubmittedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.NewDuplicateApplicationError(app.ApplicationNo)
		}
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("insert application: %w", err))
	}

	if err := insertHistory(ctx, tx, app.ID, StatusDraft, app.Status, "applicant", "submitted from wizard", app.SubmittedAt); err != nil {
		return err
	}

	for _, doc := range docs {
		if !doc.Uploaded || doc.URL == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO document_verifications (id, application_id, slot, url, status)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), app.ID, doc.ID, doc.URL, string(VerificationPending),
		)
		if err != nil {
			return errors.NewDatabaseInsertFailedError(fmt.Errorf("insert verification %s: %w", doc.ID, err))
		}
	}

	if beforeCommit != nil {
		key, err := beforeCommit(ctx, app)
		if err != nil {
			return err
		}
		if key != 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE applications SET process_instance_key = $1 WHERE id = $2`, key, app.ID,
			); err != nil {
				return errors.NewQueryExecutionFailedError("set_process_instance_key", err)
			}
			app.ProcessInstanceKey = &key
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("commit application: %w", err))
	}
	return nil
}

const applicationColumns = `
	id, application_no, session_id, plant_id, plant_group, certification_purpose,
	service_type, applicant_name, applicant_email, applicant_phone, province,
	status, process_instance_key, submitted_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner, withSnapshot bool) (*Application, error) {
	var (
		app        Application
		plantID    string
		plantGroup string
		purpose    string
		service    string
		status     string
		processKey sql.NullInt64
		snapshot   []byte
	)
	dest := []interface{}{
		&app.ID, &app.ApplicationNo, &app.SessionID, &plantID, &plantGroup, &purpose,
		&service, &app.ApplicantName, &app.ApplicantEmail, &app.ApplicantPhone, &app.Province,
		&status, &processKey, &app.SubmittedAt, &app.UpdatedAt,
	}
	if withSnapshot {
		dest = append(dest, &snapshot)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	app.PlantID = wizard.PlantID(plantID)
	app.PlantGroup = wizard.PlantGroup(plantGroup)
	app.CertificationPurpose = wizard.CertificationPurpose(purpose)
	app.ServiceType = wizard.ServiceType(service)
	app.Status = Status(status)
	if processKey.Valid {
		key := processKey.Int64
		app.ProcessInstanceKey = &key
	}
	if withSnapshot {
		app.Snapshot = snapshot
	}
	return &app, nil
}

// Get loads one application with its snapshot.
func (r *Repository) Get(ctx context.Context, id string) (*Application, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+applicationColumns+`, snapshot FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row, true)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_application", err)
	}
	return app, nil
}

// List pages through applications, newest first. Snapshots are not loaded.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Application, error) {
	limit, offset := filter.page()
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+applicationColumns+` FROM applications
		WHERE ($1 = '' OR status = $1)
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3`,
		string(filter.Status), limit, offset,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_applications", err)
	}
	defer rows.Close()

	out := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows, false)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_applications", err)
		}
		out = append(out, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_applications", err)
	}
	return out, nil
}

// UpdateStatus moves an application along the lifecycle and records who did it.
func (r *Repository) UpdateStatus(ctx context.Context, id string, to Status, actor, note string) (*StatusChange, error) {
	if !to.Valid() {
		return nil, errors.NewValidationError("unknown status", map[string]string{"status": string(to)})
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	change, err := transition(ctx, tx, id, to, actor, note, r.now())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("update_status", err)
	}
	return change, nil
}

// transition locks the application row, checks the move and writes history.
func transition(ctx context.Context, tx *sql.Tx, id string, to Status, actor, note string, now time.Time) (*StatusChange, error) {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM applications WHERE id = $1 FOR UPDATE`, id,
	).Scan(&current)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("lock_application", err)
	}

	from := Status(current)
	if !from.CanTransitionTo(to) {
		return nil, errors.NewInvalidStatusTransitionError(string(from), string(to))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
		string(to), now, id,
	); err != nil {
		return nil, errors.NewQueryExecutionFailedError("update_status", err)
	}
	if err := insertHistory(ctx, tx, id, from, to, actor, note, now); err != nil {
		return nil, err
	}
	return &StatusChange{ApplicationID: id, From: from, To: to, Actor: actor, Note: note, ChangedAt: now}, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, id string, from, to Status, actor, note string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO application_status_history (application_id, from_status, to_status, actor, note, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(from), string(to), actor, note, at,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("insert status history: %w", err))
	}
	return nil
}

// History returns the status changes of an application, oldest first.
func (r *Repository) History(ctx context.Context, id string) ([]StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, application_id, from_status, to_status, actor, note, changed_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY changed_at, id`, id)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("status_history", err)
	}
	defer rows.Close()

	out := []StatusChange{}
	for rows.Next() {
		var c StatusChange
		var from, to string
		if err := rows.Scan(&c.ID, &c.ApplicationID, &from, &to, &c.Actor, &c.Note, &c.ChangedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("status_history", err)
		}
		c.From, c.To = Status(from), Status(to)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("status_history", err)
	}
	return out, nil
}

// CountByStatus groups application counts by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("count_by_status", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.NewQueryExecutionFailedError("count_by_status", err)
		}
		out[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("count_by_status", err)
	}
	return out, nil
}

func (r *Repository) countWhere(ctx context.Context, name, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.NewQueryExecutionFailedError(name, err)
	}
	return n, nil
}
