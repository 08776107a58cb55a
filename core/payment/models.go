package payment

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

// Payment statuses
const (
	StatusPending           = "pending"
	StatusProcessing        = "processing"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusCancelled         = "cancelled"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
)

// Payment types
const (
	TypeCoursePurchase = "course_purchase"
	TypeRefund         = "refund"
)

// Providers
const (
	ProviderStripe       = "stripe"
	ProviderPaystack     = "paystack"
	ProviderPaypal       = "paypal"
	ProviderBankTransfer = "bank_transfer"
)

// Discount types
const (
	DiscountPercentage  = "percentage"
	DiscountFixedAmount = "fixed_amount"
	DiscountFreeTrial   = "free_trial"
)

// Discount scopes
const (
	ScopeGlobal         = "global"
	ScopeCourseSpecific = "course_specific"
	ScopeUserSpecific   = "user_specific"
	ScopeFirstTime      = "first_time"
)

// Refund statuses and reasons
const (
	RefundPending   = "pending"
	RefundCompleted = "completed"
	RefundFailed    = "failed"

	ReasonCustomerRequest  = "customer_request"
	ReasonCourseCancelled  = "course_cancelled"
	ReasonTechnicalIssue   = "technical_issue"
	ReasonDuplicatePayment = "duplicate_payment"
	ReasonFraud            = "fraud"
)

var (
	AllProviders     = []string{ProviderStripe, ProviderPaystack, ProviderPaypal, ProviderBankTransfer}
	AllDiscountTypes = []string{DiscountPercentage, DiscountFixedAmount, DiscountFreeTrial}
	AllScopes        = []string{ScopeGlobal, ScopeCourseSpecific, ScopeUserSpecific, ScopeFirstTime}
	AllRefundReasons = []string{ReasonCustomerRequest, ReasonCourseCancelled, ReasonTechnicalIssue, ReasonDuplicatePayment, ReasonFraud}
)

// Discount is a promo code. All amounts are integer cents.
type Discount struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Type  string `json:"discount_type"`
	Value int64  `json:"discount_value"` // cents, or whole percent for percentage type

	Scope    string `json:"scope"`
	CourseID string `json:"course_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`

	MaxUses        int `json:"max_uses"` // 0 = unlimited
	MaxUsesPerUser int `json:"max_uses_per_user"`
	CurrentUses    int `json:"current_uses"`

	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`

	MinimumAmountCents int64 `json:"minimum_amount_cents"`

	IsActive bool `json:"is_active"`

	CreatedByID string    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// IsValid reports whether the discount is active, in window and has uses left.
func (d Discount) IsValid(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.ValidFrom) || now.After(d.ValidUntil) {
		return false
	}
	return d.MaxUses == 0 || d.CurrentUses < d.MaxUses
}

// Apply returns the discount amount in cents for a given base amount.
func (d Discount) Apply(amountCents int64) int64 {
	var off int64
	switch d.Type {
	case DiscountPercentage:
		off = amountCents * d.Value / 100
	case DiscountFixedAmount:
		off = d.Value
	case DiscountFreeTrial:
		off = amountCents
	}
	if off > amountCents {
		off = amountCents
	}
	return off
}

type NewDiscount struct {
	Code        string `json:"code" validate:"required,alphanum,max=50"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`

	Type  string `json:"discount_type" validate:"required,oneof=percentage fixed_amount free_trial"`
	Value int64  `json:"discount_value" validate:"required_unless=Type free_trial,gte=0"`

	Scope    string `json:"scope" validate:"omitempty,oneof=global course_specific user_specific first_time"`
	CourseID string `json:"course_id" validate:"required_if=Scope course_specific"`
	UserID   string `json:"user_id" validate:"required_if=Scope user_specific"`

	MaxUses        int `json:"max_uses" validate:"gte=0"`
	MaxUsesPerUser int `json:"max_uses_per_user" validate:"gte=0"`

	ValidFrom  time.Time `json:"valid_from" validate:"required"`
	ValidUntil time.Time `json:"valid_until" validate:"required,gtfield=ValidFrom"`

	MinimumAmountCents int64 `json:"minimum_amount_cents" validate:"gte=0"`
}

func (nd *NewDiscount) Validate(validate *validator.Validate) error {
	nd.Code = strings.ToUpper(core.CleanString(nd.Code))
	nd.Name = core.CleanString(nd.Name)
	if nd.Scope == "" {
		nd.Scope = ScopeGlobal
	}
	if nd.MaxUsesPerUser == 0 {
		nd.MaxUsesPerUser = 1
	}
	if nd.Type == DiscountPercentage && nd.Value > 100 {
		return core.NewValidationError(nil, core.FieldError{
			Field: "discount_value", Error: "percentage cannot exceed 100"})
	}
	return validate.Struct(nd)
}

// Payment is one transaction record. Amounts are integer cents; the charge
// itself happens at the provider, this service only records outcomes.
type Payment struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Type     string `json:"payment_type"`
	Status   string `json:"status"`
	Provider string `json:"provider"`

	AmountCents   int64 `json:"amount_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
	RefundedCents int64 `json:"refunded_cents"`

	Currency string `json:"currency"`

	CourseID     string `json:"course_id,omitempty"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	DiscountID   string `json:"discount_id,omitempty"`

	ExternalID  string `json:"external_id,omitempty"` // provider transaction id
	BillingName string `json:"billing_name,omitempty"`

	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func (p Payment) IsSuccessful() bool { return p.Status == StatusCompleted }

// CalculateTotal recomputes the charge total from amount, discount and tax.
func (p *Payment) CalculateTotal() int64 {
	p.TotalCents = p.AmountCents - p.DiscountCents + p.TaxCents
	if p.TotalCents < 0 {
		p.TotalCents = 0
	}
	return p.TotalCents
}

type NewPayment struct {
	CourseID     string `json:"course_id" validate:"required"`
	Provider     string `json:"provider" validate:"required,oneof=stripe paystack paypal bank_transfer"`
	DiscountCode string `json:"discount_code"`
	BillingName  string `json:"billing_name"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.DiscountCode = strings.ToUpper(core.CleanString(np.DiscountCode))
	return validate.Struct(np)
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`

	Status      string `json:"status"`
	Reason      string `json:"reason"`
	AmountCents int64  `json:"amount_cents"`
	Notes       string `json:"notes,omitempty"`

	ProcessedByID string    `json:"processed_by_id,omitempty"`
	ProcessedAt   time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewRefund struct {
	PaymentID   string `json:"payment_id" validate:"required"`
	Reason      string `json:"reason" validate:"required,oneof=customer_request course_cancelled technical_issue duplicate_payment fraud"`
	AmountCents int64  `json:"amount_cents" validate:"gte=0"` // 0 = full refund
	Notes       string `json:"notes"`
}

func (nr *NewRefund) Validate(validate *validator.Validate) error {
	return validate.Struct(nr)
}
