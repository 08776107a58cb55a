package payment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("payment not found")
	ErrDiscountNotFound   = errors.New("discount not found")
	ErrDiscountCodeExists = errors.New("a discount with this code already exists")
	ErrDiscountInvalid    = errors.New("discount code cannot be applied")
	ErrRefundNotFound     = errors.New("refund not found")
	ErrCourseFree         = errors.New("course is free, no payment required")
	ErrNotPayable         = errors.New("payment is not awaiting completion")
	ErrNotRefundable      = errors.New("payment cannot be refunded")
	ErrRefundTooLarge     = errors.New("refund exceeds the refundable balance")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckDiscountCodeUniqueness(ctx context.Context, code string) error
		CreateDiscount(ctx context.Context, d Discount) (Discount, error)
		GetDiscountByID(ctx context.Context, id string) (Discount, error)
		GetDiscountByCode(ctx context.Context, code string) (Discount, error)
		QueryDiscounts(ctx context.Context, activeOnly bool) ([]Discount, error)
		UpdateDiscount(ctx context.Context, d Discount) (Discount, error)
		// IncrementDiscountUses bumps current_uses atomically.
		IncrementDiscountUses(ctx context.Context, id string) error
		// CountDiscountUsesByUser counts completed payments by this user that
		// applied the discount.
		CountDiscountUsesByUser(ctx context.Context, discountID, userID string) (int, error)
		// HasCompletedPayments reports whether the user has any completed
		// payment on record. Backs first-time discounts.
		HasCompletedPayments(ctx context.Context, userID string) (bool, error)

		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		GetPaymentByID(ctx context.Context, id string) (Payment, error)
		QueryPayments(ctx context.Context, userID, courseID, status string) ([]Payment, error)
		UpdatePayment(ctx context.Context, pmt Payment) (Payment, error)

		CreateRefund(ctx context.Context, ref Refund) (Refund, error)
		GetRefundByID(ctx context.Context, id string) (Refund, error)
		QueryRefunds(ctx context.Context, paymentID string) ([]Refund, error)
		UpdateRefund(ctx context.Context, ref Refund) (Refund, error)
	}

	Service interface {
		CreateDiscount(ctx context.Context, nd NewDiscount, createdBy user.User) (Discount, error)
		GetDiscountByCode(ctx context.Context, code string) (Discount, error)
		QueryDiscounts(ctx context.Context, activeOnly bool) ([]Discount, error)
		DeactivateDiscount(ctx context.Context, id string) (Discount, error)

		// CreatePayment records a pending charge for the user's enrollment on a
		// paid course, applying the discount code if one is given. The charge
		// itself is collected at the provider; this only records it.
		CreatePayment(ctx context.Context, usr user.User, np NewPayment) (Payment, error)
		GetByID(ctx context.Context, id string) (Payment, error)
		Query(ctx context.Context, userID, courseID, status string) ([]Payment, error)
		// CompletePayment marks a pending payment as settled at the provider,
		// consumes the discount use and activates the enrollment.
		CompletePayment(ctx context.Context, id, externalID string) (Payment, error)
		FailPayment(ctx context.Context, id string) (Payment, error)
		CancelPayment(ctx context.Context, id string) (Payment, error)

		// Refund records a refund against a completed payment. A zero amount
		// refunds the remaining balance.
		Refund(ctx context.Context, nr NewRefund, processedBy user.User) (Refund, error)
		QueryRefunds(ctx context.Context, paymentID string) ([]Refund, error)
	}

	service struct {
		repo    Repository
		crsSvc  course.Service
		usrSvc  user.Service
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, crsSvc course.Service, usrSvc user.Service, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		crsSvc:  crsSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
	}
}

func (svc *service) CreateDiscount(ctx context.Context, nd NewDiscount, createdBy user.User) (Discount, error) {
	if err := svc.repo.CheckDiscountCodeUniqueness(ctx, nd.Code); err != nil {
		if errors.Cause(err) == ErrDiscountCodeExists {
			return Discount{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Discount{}, err
	}

	now := nowFunc().UTC()
	d := Discount{
		Code:        nd.Code,
		Name:        nd.Name,
		Description: nd.Description,

		Type:  nd.Type,
		Value: nd.Value,

		Scope:    nd.Scope,
		CourseID: nd.CourseID,
		UserID:   nd.UserID,

		MaxUses:        nd.MaxUses,
		MaxUsesPerUser: nd.MaxUsesPerUser,

		ValidFrom:  nd.ValidFrom,
		ValidUntil: nd.ValidUntil,

		MinimumAmountCents: nd.MinimumAmountCents,

		IsActive:    true,
		CreatedByID: createdBy.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateDiscount(ctx, d)
}

func (svc *service) GetDiscountByCode(ctx context.Context, code string) (Discount, error) {
	return svc.repo.GetDiscountByCode(ctx, code)
}

func (svc *service) QueryDiscounts(ctx context.Context, activeOnly bool) ([]Discount, error) {
	return svc.repo.QueryDiscounts(ctx, activeOnly)
}

func (svc *service) DeactivateDiscount(ctx context.Context, id string) (Discount, error) {
	d, err := svc.repo.GetDiscountByID(ctx, id)
	if err != nil {
		return Discount{}, err
	}
	d.IsActive = false
	d.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateDiscount(ctx, d)
}

func (svc *service) CreatePayment(ctx context.Context, usr user.User, np NewPayment) (Payment, error) {
	crs, err := svc.crsSvc.GetByID(ctx, np.CourseID)
	if err != nil {
		return Payment{}, err
	}
	if crs.IsFree || crs.PriceCents == 0 {
		return Payment{}, core.NewValidationError(ErrCourseFree)
	}
	enr, err := svc.crsSvc.GetEnrollment(ctx, usr.ID, crs.ID)
	if err != nil {
		return Payment{}, err
	}

	now := nowFunc().UTC()
	pmt := Payment{
		UserID:   usr.ID,
		Type:     TypeCoursePurchase,
		Status:   StatusPending,
		Provider: np.Provider,

		AmountCents: crs.PriceCents,
		Currency:    "USD",

		CourseID:     crs.ID,
		EnrollmentID: enr.ID,
		BillingName:  np.BillingName,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if pmt.BillingName == "" {
		pmt.BillingName = usr.FullName()
	}

	if np.DiscountCode != "" {
		d, err := svc.repo.GetDiscountByCode(ctx, np.DiscountCode)
		if err != nil {
			if errors.Cause(err) == ErrDiscountNotFound {
				return Payment{}, core.NewValidationError(ErrDiscountInvalid,
					core.FieldError{Field: "discount_code", Error: "unknown code"})
			}
			return Payment{}, err
		}
		if err = svc.checkDiscountUsable(ctx, d, usr.ID, crs.ID, pmt.AmountCents, now); err != nil {
			return Payment{}, err
		}
		pmt.DiscountID = d.ID
		pmt.DiscountCents = d.Apply(pmt.AmountCents)
	}
	pmt.CalculateTotal()

	return svc.repo.CreatePayment(ctx, pmt)
}

// checkDiscountUsable enforces validity window, scope, per-user limits and
// the minimum order amount.
func (svc *service) checkDiscountUsable(ctx context.Context, d Discount, userID, courseID string, amountCents int64, now time.Time) error {
	invalid := func(reason string) error {
		return core.NewValidationError(ErrDiscountInvalid,
			core.FieldError{Field: "discount_code", Error: reason})
	}

	if !d.IsValid(now) {
		return invalid("code is expired or exhausted")
	}
	if amountCents < d.MinimumAmountCents {
		return invalid("order does not meet the minimum amount")
	}

	switch d.Scope {
	case ScopeCourseSpecific:
		if d.CourseID != courseID {
			return invalid("code does not apply to this course")
		}
	case ScopeUserSpecific:
		if d.UserID != userID {
			return invalid("code is not available to this account")
		}
	case ScopeFirstTime:
		paid, err := svc.repo.HasCompletedPayments(ctx, userID)
		if err != nil {
			return err
		}
		if paid {
			return invalid("code is for first purchases only")
		}
	}

	if d.MaxUsesPerUser > 0 {
		used, err := svc.repo.CountDiscountUsesByUser(ctx, d.ID, userID)
		if err != nil {
			return err
		}
		if used >= d.MaxUsesPerUser {
			return invalid("code already used")
		}
	}
	return nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPaymentByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, userID, courseID, status string) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, userID, courseID, status)
}

func (svc *service) CompletePayment(ctx context.Context, id, externalID string) (Payment, error) {
	pmt, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if pmt.Status != StatusPending && pmt.Status != StatusProcessing {
		return Payment{}, core.NewValidationError(ErrNotPayable)
	}

	now := nowFunc().UTC()
	pmt.Status = StatusCompleted
	pmt.ExternalID = externalID
	pmt.CompletedAt = now
	pmt.UpdatedAt = now
	pmt, err = svc.repo.UpdatePayment(ctx, pmt)
	if err != nil {
		return Payment{}, err
	}

	if pmt.DiscountID != "" {
		if err = svc.repo.IncrementDiscountUses(ctx, pmt.DiscountID); err != nil {
			return Payment{}, errors.Wrap(err, "consuming discount use")
		}
	}
	if pmt.EnrollmentID != "" {
		if _, err = svc.crsSvc.ActivateEnrollmentPayment(ctx, pmt.EnrollmentID); err != nil {
			return Payment{}, errors.Wrap(err, "activating enrollment")
		}
	}

	go svc.sendReceiptMail(pmt)
	return pmt, nil
}

func (svc *service) FailPayment(ctx context.Context, id string) (Payment, error) {
	return svc.closePayment(ctx, id, StatusFailed)
}

func (svc *service) CancelPayment(ctx context.Context, id string) (Payment, error) {
	return svc.closePayment(ctx, id, StatusCancelled)
}

func (svc *service) closePayment(ctx context.Context, id, status string) (Payment, error) {
	pmt, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if pmt.Status != StatusPending && pmt.Status != StatusProcessing {
		return Payment{}, core.NewValidationError(ErrNotPayable)
	}
	pmt.Status = status
	pmt.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdatePayment(ctx, pmt)
}

func (svc *service) Refund(ctx context.Context, nr NewRefund, processedBy user.User) (Refund, error) {
	pmt, err := svc.repo.GetPaymentByID(ctx, nr.PaymentID)
	if err != nil {
		return Refund{}, err
	}
	if pmt.Status != StatusCompleted && pmt.Status != StatusPartiallyRefunded {
		return Refund{}, core.NewValidationError(ErrNotRefundable)
	}

	balance := pmt.TotalCents - pmt.RefundedCents
	amount := nr.AmountCents
	if amount == 0 {
		amount = balance
	}
	if amount > balance {
		return Refund{}, core.NewValidationError(ErrRefundTooLarge,
			core.FieldError{Field: "amount_cents", Error: fmt.Sprintf("at most %d refundable", balance)})
	}

	now := nowFunc().UTC()
	ref := Refund{
		PaymentID:     pmt.ID,
		Status:        RefundCompleted,
		Reason:        nr.Reason,
		AmountCents:   amount,
		Notes:         nr.Notes,
		ProcessedByID: processedBy.ID,
		ProcessedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ref, err = svc.repo.CreateRefund(ctx, ref)
	if err != nil {
		return Refund{}, err
	}

	pmt.RefundedCents += amount
	pmt.Status = StatusPartiallyRefunded
	if pmt.RefundedCents >= pmt.TotalCents {
		pmt.Status = StatusRefunded
	}
	pmt.UpdatedAt = now
	if _, err = svc.repo.UpdatePayment(ctx, pmt); err != nil {
		return Refund{}, errors.Wrap(err, "updating refunded payment")
	}
	return ref, nil
}

func (svc *service) QueryRefunds(ctx context.Context, paymentID string) ([]Refund, error) {
	return svc.repo.QueryRefunds(ctx, paymentID)
}

func (svc *service) sendReceiptMail(pmt Payment) {
	ctx := context.Background()
	crs, err := svc.crsSvc.GetByID(ctx, pmt.CourseID)
	if err != nil {
		return
	}
	usr, err := svc.usrSvc.GetByID(ctx, pmt.UserID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
			Subject:      fmt.Sprintf("Payment received for %s", crs.Title),
			TemplateName: "payment-receipt",
			TemplateData: struct {
				Name        string
				CourseTitle string
				Total       string
				Currency    string
			}{usr.FirstName, crs.Title, fmt.Sprintf("%.2f", float64(pmt.TotalCents)/100), pmt.Currency},
		},
	)
}
