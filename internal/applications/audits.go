// internal/applications/audits.go
package applications

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gacp-certification/internal/common/errors"

	"github.com/google/uuid"
)

type ScheduleRequest struct {
	ApplicationID string    `json:"applicationId"`
	Auditor       string    `json:"auditor"`
	Mode          AuditMode `json:"mode"`
	ScheduledFor  time.Time `json:"scheduledFor"`
	Notes         string    `json:"notes,omitempty"`
}

func (req ScheduleRequest) validate(now time.Time) error {
	fields := map[string]string{}
	if req.ApplicationID == "" {
		fields["applicationId"] = "required"
	}
	if strings.TrimSpace(req.Auditor) == "" {
		fields["auditor"] = "required"
	}
	if req.Mode != AuditOnsite && req.Mode != AuditOnline {
		fields["mode"] = "must be ONSITE or ONLINE"
	}
	if !req.ScheduledFor.After(now) {
		fields["scheduledFor"] = "must be in the future"
	}
	if len(fields) > 0 {
		return errors.NewValidationError("invalid audit schedule", fields)
	}
	return nil
}

// ScheduleAudit books an inspection and moves the application to
// INSPECTION_SCHEDULED.
func (r *Repository) ScheduleAudit(ctx context.Context, req ScheduleRequest, actor string) (*Audit, error) {
	now := r.now()
	if req.Mode == "" {
		req.Mode = AuditOnsite
	}
	if err := req.validate(now); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	note := fmt.Sprintf("%s audit by %s on %s", strings.ToLower(string(req.Mode)), req.Auditor, req.ScheduledFor.Format(time.RFC3339))
	if _, err := transition(ctx, tx, req.ApplicationID, StatusInspectionScheduled, actor, note, now); err != nil {
		return nil, err
	}

	a := &Audit{
		ID:            uuid.New().String(),
		ApplicationID: req.ApplicationID,
		Auditor:       req.Auditor,
		Mode:          req.Mode,
		ScheduledFor:  req.ScheduledFor.UTC(),
		Result:        AuditPending,
		Notes:         req.Notes,
		CreatedAt:     now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audits (id, application_id, auditor, mode, scheduled_for, result, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ApplicationID, a.Auditor, string(a.Mode), a.ScheduledFor, string(a.Result), a.Notes, now,
	); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(fmt.Errorf("insert audit: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(fmt.Errorf("commit audit: %w", err))
	}
	return a, nil
}

// RecordAuditResult closes an audit. A pass completes the inspection; a fail
// rejects the application.
func (r *Repository) RecordAuditResult(ctx context.Context, auditID string, result AuditResult, notes, actor string) (*Audit, error) {
	if result != AuditPass && result != AuditFail {
		return nil, errors.NewValidationError("invalid audit result", map[string]string{"result": "must be PASS or FAIL"})
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	a, err := scanAudit(tx.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE id = $1 FOR UPDATE`, auditID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewResourceNotFoundError("audits", "auditId: "+auditID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("lock_audit", err)
	}
	if a.Result != AuditPending {
		return nil, errors.NewBusinessRuleError("Audit already closed", "result: "+string(a.Result))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE audits SET result = $1, notes = $2 WHERE id = $3`, string(result), notes, auditID,
	); err != nil {
		return nil, errors.NewQueryExecutionFailedError("record_audit_result", err)
	}

	next := StatusInspectionCompleted
	if result == AuditFail {
		next = StatusRejected
	}
	if _, err := transition(ctx, tx, a.ApplicationID, next, actor, "audit "+strings.ToLower(string(result)), r.now()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("record_audit_result", err)
	}
	a.Result = result
	a.Notes = notes
	return a, nil
}

const auditColumns = `id, application_id, auditor, mode, scheduled_for, result, notes, created_at`

func scanAudit(row rowScanner) (*Audit, error) {
	var a Audit
	var mode, result string
	if err := row.Scan(&a.ID, &a.ApplicationID, &a.Auditor, &mode, &a.ScheduledFor, &result, &a.Notes, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Mode = AuditMode(mode)
	a.Result = AuditResult(result)
	return &a, nil
}

// ListAudits returns audits ordered by their scheduled date.
func (r *Repository) ListAudits(ctx context.Context, result AuditResult, limit, offset int) ([]Audit, error) {
	limit, offset = ListFilter{Limit: limit, Offset: offset}.page()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audits
		WHERE ($1 = '' OR result = $1)
		ORDER BY scheduled_for
		LIMIT $2 OFFSET $3`,
		string(result), limit, offset,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_audits", err)
	}
	defer rows.Close()

	out := []Audit{}
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_audits", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_audits", err)
	}
	return out, nil
}

func (r *Repository) CountUpcomingAudits(ctx context.Context) (int, error) {
	return r.countWhere(ctx, "count_upcoming_audits",
		`SELECT COUNT(*) FROM audits WHERE result = $1 AND scheduled_for >= $2`,
		string(AuditPending), r.now())
}
