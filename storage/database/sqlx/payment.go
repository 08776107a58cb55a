package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core/payment"
)

type discountRow struct {
	ID          string `db:"id"`
	Code        string `db:"code"`
	Name        string `db:"name"`
	Description string `db:"description"`

	Type  string `db:"discount_type"`
	Value int64  `db:"discount_value"`

	Scope    string      `db:"scope"`
	CourseID null.String `db:"course_id"`
	UserID   null.String `db:"user_id"`

	MaxUses        int `db:"max_uses"`
	MaxUsesPerUser int `db:"max_uses_per_user"`
	CurrentUses    int `db:"current_uses"`

	ValidFrom  time.Time `db:"valid_from"`
	ValidUntil time.Time `db:"valid_until"`

	MinimumAmountCents int64 `db:"minimum_amount_cents"`

	IsActive bool `db:"is_active"`

	CreatedByID null.String `db:"created_by_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r discountRow) toDomain() payment.Discount {
	return payment.Discount{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,

		Type:  r.Type,
		Value: r.Value,

		Scope:    r.Scope,
		CourseID: r.CourseID.String,
		UserID:   r.UserID.String,

		MaxUses:        r.MaxUses,
		MaxUsesPerUser: r.MaxUsesPerUser,
		CurrentUses:    r.CurrentUses,

		ValidFrom:  r.ValidFrom.UTC(),
		ValidUntil: r.ValidUntil.UTC(),

		MinimumAmountCents: r.MinimumAmountCents,

		IsActive: r.IsActive,

		CreatedByID: r.CreatedByID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newDiscountRow(d payment.Discount) discountRow {
	return discountRow{
		ID:          d.ID,
		Code:        d.Code,
		Name:        d.Name,
		Description: d.Description,

		Type:  d.Type,
		Value: d.Value,

		Scope:    d.Scope,
		CourseID: nullString(d.CourseID),
		UserID:   nullString(d.UserID),

		MaxUses:        d.MaxUses,
		MaxUsesPerUser: d.MaxUsesPerUser,
		CurrentUses:    d.CurrentUses,

		ValidFrom:  d.ValidFrom,
		ValidUntil: d.ValidUntil,

		MinimumAmountCents: d.MinimumAmountCents,

		IsActive: d.IsActive,

		CreatedByID: nullString(d.CreatedByID),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

const discountColumns = `id, code, name, description, discount_type, discount_value, scope,
	course_id, user_id, max_uses, max_uses_per_user, current_uses, valid_from, valid_until,
	minimum_amount_cents, is_active, created_by_id, created_at, updated_at`

type paymentRow struct {
	ID     string `db:"id"`
	UserID string `db:"user_id"`

	Type     string `db:"payment_type"`
	Status   string `db:"status"`
	Provider string `db:"provider"`

	AmountCents   int64 `db:"amount_cents"`
	DiscountCents int64 `db:"discount_cents"`
	TaxCents      int64 `db:"tax_cents"`
	TotalCents    int64 `db:"total_cents"`
	RefundedCents int64 `db:"refunded_cents"`

	Currency string `db:"currency"`

	CourseID     null.String `db:"course_id"`
	EnrollmentID null.String `db:"enrollment_id"`
	DiscountID   null.String `db:"discount_id"`

	ExternalID  string `db:"external_id"`
	BillingName string `db:"billing_name"`

	CompletedAt null.Time `db:"completed_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r paymentRow) toDomain() payment.Payment {
	return payment.Payment{
		ID:     r.ID,
		UserID: r.UserID,

		Type:     r.Type,
		Status:   r.Status,
		Provider: r.Provider,

		AmountCents:   r.AmountCents,
		DiscountCents: r.DiscountCents,
		TaxCents:      r.TaxCents,
		TotalCents:    r.TotalCents,
		RefundedCents: r.RefundedCents,

		Currency: r.Currency,

		CourseID:     r.CourseID.String,
		EnrollmentID: r.EnrollmentID.String,
		DiscountID:   r.DiscountID.String,

		ExternalID:  r.ExternalID,
		BillingName: r.BillingName,

		CompletedAt: fromNullTime(r.CompletedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newPaymentRow(pmt payment.Payment) paymentRow {
	return paymentRow{
		ID:     pmt.ID,
		UserID: pmt.UserID,

		Type:     pmt.Type,
		Status:   pmt.Status,
		Provider: pmt.Provider,

		AmountCents:   pmt.AmountCents,
		DiscountCents: pmt.DiscountCents,
		TaxCents:      pmt.TaxCents,
		TotalCents:    pmt.TotalCents,
		RefundedCents: pmt.RefundedCents,

		Currency: pmt.Currency,

		CourseID:     nullString(pmt.CourseID),
		EnrollmentID: nullString(pmt.EnrollmentID),
		DiscountID:   nullString(pmt.DiscountID),

		ExternalID:  pmt.ExternalID,
		BillingName: pmt.BillingName,

		CompletedAt: nullTime(pmt.CompletedAt),
		CreatedAt:   pmt.CreatedAt,
		UpdatedAt:   pmt.UpdatedAt,
	}
}

const paymentColumns = `id, user_id, payment_type, status, provider, amount_cents,
	discount_cents, tax_cents, total_cents, refunded_cents, currency, course_id,
	enrollment_id, discount_id, external_id, billing_name, completed_at, created_at, updated_at`

type refundRow struct {
	ID        string `db:"id"`
	PaymentID string `db:"payment_id"`

	Status      string `db:"status"`
	Reason      string `db:"reason"`
	AmountCents int64  `db:"amount_cents"`
	Notes       string `db:"notes"`

	ProcessedByID null.String `db:"processed_by_id"`
	ProcessedAt   null.Time   `db:"processed_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r refundRow) toDomain() payment.Refund {
	return payment.Refund{
		ID:        r.ID,
		PaymentID: r.PaymentID,

		Status:      r.Status,
		Reason:      r.Reason,
		AmountCents: r.AmountCents,
		Notes:       r.Notes,

		ProcessedByID: r.ProcessedByID.String,
		ProcessedAt:   fromNullTime(r.ProcessedAt),

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newRefundRow(ref payment.Refund) refundRow {
	return refundRow{
		ID:        ref.ID,
		PaymentID: ref.PaymentID,

		Status:      ref.Status,
		Reason:      ref.Reason,
		AmountCents: ref.AmountCents,
		Notes:       ref.Notes,

		ProcessedByID: nullString(ref.ProcessedByID),
		ProcessedAt:   nullTime(ref.ProcessedAt),

		CreatedAt: ref.CreatedAt,
		UpdatedAt: ref.UpdatedAt,
	}
}

const refundColumns = `id, payment_id, status, reason, amount_cents, notes,
	processed_by_id, processed_at, created_at, updated_at`

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *sqlx.DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CheckDiscountCodeUniqueness(ctx context.Context, code string) error {
	var count int
	q := `SELECT COUNT(id) FROM discounts WHERE code = $1`
	if err := repo.db.GetContext(ctx, &count, q, code); err != nil {
		return errors.Wrap(err, "checking discount code uniqueness")
	}
	if count > 0 {
		return payment.ErrDiscountCodeExists
	}
	return nil
}

func (repo *paymentRepository) CreateDiscount(ctx context.Context, d payment.Discount) (payment.Discount, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	q := `INSERT INTO discounts (` + discountColumns + `) VALUES (
		:id, :code, :name, :description, :discount_type, :discount_value, :scope, :course_id,
		:user_id, :max_uses, :max_uses_per_user, :current_uses, :valid_from, :valid_until,
		:minimum_amount_cents, :is_active, :created_by_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newDiscountRow(d)); err != nil {
		return payment.Discount{}, errors.Wrap(err, "creating discount")
	}
	return d, nil
}

func (repo *paymentRepository) getDiscountBy(ctx context.Context, column string, value interface{}) (payment.Discount, error) {
	var row discountRow
	q := `SELECT ` + discountColumns + ` FROM discounts WHERE ` + column + ` = $1`
	if err := repo.db.GetContext(ctx, &row, q, value); err != nil {
		if isNoRows(err) {
			return payment.Discount{}, payment.ErrDiscountNotFound
		}
		return payment.Discount{}, errors.Wrap(err, "getting discount")
	}
	return row.toDomain(), nil
}

func (repo *paymentRepository) GetDiscountByID(ctx context.Context, id string) (payment.Discount, error) {
	return repo.getDiscountBy(ctx, "id", id)
}

func (repo *paymentRepository) GetDiscountByCode(ctx context.Context, code string) (payment.Discount, error) {
	return repo.getDiscountBy(ctx, "code", code)
}

func (repo *paymentRepository) QueryDiscounts(ctx context.Context, activeOnly bool) ([]payment.Discount, error) {
	q := `SELECT ` + discountColumns + ` FROM discounts`
	if activeOnly {
		q += " WHERE is_active"
	}
	q += " ORDER BY created_at DESC"

	var rows []discountRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying discounts")
	}
	discounts := make([]payment.Discount, 0, len(rows))
	for _, row := range rows {
		discounts = append(discounts, row.toDomain())
	}
	return discounts, nil
}

func (repo *paymentRepository) UpdateDiscount(ctx context.Context, d payment.Discount) (payment.Discount, error) {
	q := `UPDATE discounts SET
		name = :name, description = :description, max_uses = :max_uses,
		max_uses_per_user = :max_uses_per_user, valid_from = :valid_from,
		valid_until = :valid_until, minimum_amount_cents = :minimum_amount_cents,
		is_active = :is_active, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newDiscountRow(d))
	if err != nil {
		return payment.Discount{}, errors.Wrap(err, "updating discount")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.Discount{}, payment.ErrDiscountNotFound
	}
	return d, nil
}

func (repo *paymentRepository) IncrementDiscountUses(ctx context.Context, id string) error {
	q := `UPDATE discounts SET current_uses = current_uses + 1, updated_at = $1 WHERE id = $2`
	res, err := repo.db.ExecContext(ctx, q, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "incrementing discount uses")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.ErrDiscountNotFound
	}
	return nil
}

func (repo *paymentRepository) CountDiscountUsesByUser(ctx context.Context, discountID, userID string) (int, error) {
	var count int
	q := `SELECT COUNT(id) FROM payments WHERE discount_id = $1 AND user_id = $2 AND status = $3`
	if err := repo.db.GetContext(ctx, &count, q, discountID, userID, payment.StatusCompleted); err != nil {
		return 0, errors.Wrap(err, "counting discount uses")
	}
	return count, nil
}

func (repo *paymentRepository) HasCompletedPayments(ctx context.Context, userID string) (bool, error) {
	var count int
	q := `SELECT COUNT(id) FROM payments WHERE user_id = $1 AND status = $2`
	if err := repo.db.GetContext(ctx, &count, q, userID, payment.StatusCompleted); err != nil {
		return false, errors.Wrap(err, "counting completed payments")
	}
	return count > 0, nil
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	if pmt.ID == "" {
		pmt.ID = uuid.NewString()
	}
	q := `INSERT INTO payments (` + paymentColumns + `) VALUES (
		:id, :user_id, :payment_type, :status, :provider, :amount_cents, :discount_cents,
		:tax_cents, :total_cents, :refunded_cents, :currency, :course_id, :enrollment_id,
		:discount_id, :external_id, :billing_name, :completed_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newPaymentRow(pmt)); err != nil {
		return payment.Payment{}, errors.Wrap(err, "creating payment")
	}
	return pmt, nil
}

func (repo *paymentRepository) GetPaymentByID(ctx context.Context, id string) (payment.Payment, error) {
	var row paymentRow
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, errors.Wrap(err, "getting payment")
	}
	return row.toDomain(), nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, userID, courseID, status string) ([]payment.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if userID != "" {
		conds = append(conds, "user_id = "+arg(userID))
	}
	if courseID != "" {
		conds = append(conds, "course_id = "+arg(courseID))
	}
	if status != "" {
		conds = append(conds, "status = "+arg(status))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toDomain())
	}
	return payments, nil
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	q := `UPDATE payments SET
		status = :status, refunded_cents = :refunded_cents, external_id = :external_id,
		billing_name = :billing_name, completed_at = :completed_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newPaymentRow(pmt))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "updating payment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return pmt, nil
}

func (repo *paymentRepository) CreateRefund(ctx context.Context, ref payment.Refund) (payment.Refund, error) {
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	q := `INSERT INTO refunds (` + refundColumns + `) VALUES (
		:id, :payment_id, :status, :reason, :amount_cents, :notes, :processed_by_id,
		:processed_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newRefundRow(ref)); err != nil {
		return payment.Refund{}, errors.Wrap(err, "creating refund")
	}
	return ref, nil
}

func (repo *paymentRepository) GetRefundByID(ctx context.Context, id string) (payment.Refund, error) {
	var row refundRow
	q := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return payment.Refund{}, payment.ErrRefundNotFound
		}
		return payment.Refund{}, errors.Wrap(err, "getting refund")
	}
	return row.toDomain(), nil
}

func (repo *paymentRepository) QueryRefunds(ctx context.Context, paymentID string) ([]payment.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds`
	var args []interface{}
	if paymentID != "" {
		q += " WHERE payment_id = $1"
		args = append(args, paymentID)
	}
	q += " ORDER BY created_at DESC"

	var rows []refundRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying refunds")
	}
	refunds := make([]payment.Refund, 0, len(rows))
	for _, row := range rows {
		refunds = append(refunds, row.toDomain())
	}
	return refunds, nil
}

func (repo *paymentRepository) UpdateRefund(ctx context.Context, ref payment.Refund) (payment.Refund, error) {
	q := `UPDATE refunds SET
		status = :status, notes = :notes, processed_by_id = :processed_by_id,
		processed_at = :processed_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newRefundRow(ref))
	if err != nil {
		return payment.Refund{}, errors.Wrap(err, "updating refund")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.Refund{}, payment.ErrRefundNotFound
	}
	return ref, nil
}
