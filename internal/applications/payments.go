// internal/applications/payments.go
package applications

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"math"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/wizard"

	"github.com/google/uuid"
)

// RecordPayment stores the applicant's payment confirmation for a milestone.
// The application must be waiting for that payment and the amount must cover
// the milestone invoice. Re-confirming a phase replaces the earlier entry.
func (r *Repository) RecordPayment(ctx context.Context, applicationID string, phase wizard.InvoicePhase, amount float64, reference string) (*Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var snapshot []byte
	err = tx.QueryRowContext(ctx,
		`SELECT status, snapshot FROM applications WHERE id = $1 FOR UPDATE`, applicationID,
	).Scan(&status, &snapshot)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewApplicationNotFoundError(applicationID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("lock_application", err)
	}

	if want := PaymentPendingStatus(phase); Status(status) != want {
		return nil, errors.NewPaymentVerificationError(
			fmt.Sprintf("application is %s, payment for phase %d expects %s", status, phase, want))
	}

	app := &Application{Snapshot: snapshot}
	st, err := app.State()
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("decode snapshot: %w", err))
	}
	invoice, err := wizard.InvoiceFor(phase, st)
	if err != nil {
		return nil, errors.NewValidationError(err.Error(), map[string]string{"phase": "unknown invoice phase"})
	}
	if amount+0.005 < invoice.Total || math.IsNaN(amount) {
		return nil, errors.NewPaymentVerificationError(
			fmt.Sprintf("amount %.2f does not cover invoice total %.2f", amount, invoice.Total))
	}

	now := r.now()
	p := &Payment{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Phase:         phase,
		Amount:        amount,
		Reference:     reference,
		Status:        PaymentPending,
		PaidAt:        &now,
		CreatedAt:     now,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (id, application_id, phase, amount, reference, status, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (application_id, phase) DO UPDATE
		SET amount = EXCLUDED.amount, reference = EXCLUDED.reference,
			status = EXCLUDED.status, paid_at = EXCLUDED.paid_at
		RETURNING id`,
		p.ID, applicationID, int(phase), amount, reference, string(PaymentPending), now,
	).Scan(&p.ID)
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(fmt.Errorf("insert payment: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(fmt.Errorf("commit payment: %w", err))
	}
	return p, nil
}

// ReviewPayment settles a pending payment. Approval also moves the
// application to the matching verified status.
func (r *Repository) ReviewPayment(ctx context.Context, paymentID string, approve bool, actor string) (*Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewResourceNotFoundError("payments", "paymentId: "+paymentID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("lock_payment", err)
	}
	if p.Status != PaymentPending {
		return nil, errors.NewBusinessRuleError("Payment already reviewed", "status: "+string(p.Status))
	}

	next := PaymentRejected
	if approve {
		next = PaymentVerified
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1 WHERE id = $2`, string(next), paymentID,
	); err != nil {
		return nil, errors.NewQueryExecutionFailedError("review_payment", err)
	}

	if approve {
		note := fmt.Sprintf("payment %s verified", paymentID)
		if _, err := transition(ctx, tx, p.ApplicationID, PaymentVerifiedStatus(p.Phase), actor, note, r.now()); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("review_payment", err)
	}
	p.Status = next
	return p, nil
}

const paymentColumns = `id, application_id, phase, amount, reference, status, paid_at, created_at`

func scanPayment(row rowScanner) (*Payment, error) {
	var (
		p      Payment
		phase  int
		status string
		paidAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.ApplicationID, &phase, &p.Amount, &p.Reference, &status, &paidAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Phase = wizard.InvoicePhase(phase)
	p.Status = PaymentStatus(status)
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}

// ListPayments pages through payments, newest first. An empty status lists all.
func (r *Repository) ListPayments(ctx context.Context, status PaymentStatus, limit, offset int) ([]Payment, error) {
	limit, offset = ListFilter{Limit: limit, Offset: offset}.page()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		string(status), limit, offset,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_payments", err)
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_payments", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_payments", err)
	}
	return out, nil
}

func (r *Repository) CountPendingPayments(ctx context.Context) (int, error) {
	return r.countWhere(ctx, "count_pending_payments",
		`SELECT COUNT(*) FROM payments WHERE status = $1`, string(PaymentPending))
}
