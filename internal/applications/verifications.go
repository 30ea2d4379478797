// internal/applications/verifications.go
package applications

import (
	"context"
	"database/sql"

	"gacp-certification/internal/common/errors"
)

const verificationColumns = `id, application_id, slot, url, status, reviewer, comment, reviewed_at`

func scanVerification(row rowScanner) (*DocumentVerification, error) {
	var v DocumentVerification
	var status string
	var reviewedAt sql.NullTime
	if err := row.Scan(&v.ID, &v.ApplicationID, &v.Slot, &v.URL, &status, &v.Reviewer, &v.Comment, &reviewedAt); err != nil {
		return nil, err
	}
	v.Status = VerificationStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		v.ReviewedAt = &t
	}
	return &v, nil
}

// ListVerifications pages through document checks. An empty status lists all;
// an empty applicationID spans every application.
func (r *Repository) ListVerifications(ctx context.Context, applicationID string, status VerificationStatus, limit, offset int) ([]DocumentVerification, error) {
	limit, offset = ListFilter{Limit: limit, Offset: offset}.page()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+verificationColumns+` FROM document_verifications
		WHERE ($1 = '' OR application_id::text = $1) AND ($2 = '' OR status = $2)
		ORDER BY application_id, slot
		LIMIT $3 OFFSET $4`,
		applicationID, string(status), limit, offset,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_verifications", err)
	}
	defer rows.Close()

	out := []DocumentVerification{}
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_verifications", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_verifications", err)
	}
	return out, nil
}

// ReviewDocument approves or rejects a pending document. Reviewing a document
// twice is a conflict.
func (r *Repository) ReviewDocument(ctx context.Context, id string, approve bool, reviewer, comment string) (*DocumentVerification, error) {
	status := VerificationRejected
	if approve {
		status = VerificationApproved
	}
	if !approve && comment == "" {
		return nil, errors.NewValidationError("rejection needs a comment", map[string]string{"comment": "required when rejecting"})
	}

	v, err := scanVerification(r.db.QueryRowContext(ctx, `
		UPDATE document_verifications
		SET status = $1, reviewer = $2, comment = $3, reviewed_at = $4
		WHERE id = $5 AND status = $6
		RETURNING `+verificationColumns,
		string(status), reviewer, comment, r.now(), id, string(VerificationPending),
	))
	if err == sql.ErrNoRows {
		return nil, errors.NewBusinessRuleError("Document is not awaiting review", "verificationId: "+id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("review_document", err)
	}
	return v, nil
}

func (r *Repository) CountPendingVerifications(ctx context.Context) (int, error) {
	return r.countWhere(ctx, "count_pending_verifications",
		`SELECT COUNT(*) FROM document_verifications WHERE status = $1`, string(VerificationPending))
}
