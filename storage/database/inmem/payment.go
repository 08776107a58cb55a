package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CheckDiscountCodeUniqueness(ctx context.Context, code string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, d := range repo.db.discounts {
		if d.Code == code {
			return payment.ErrDiscountCodeExists
		}
	}
	return nil
}

func (repo *paymentRepository) CreateDiscount(ctx context.Context, d payment.Discount) (payment.Discount, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	repo.db.discounts[d.ID] = d
	return d, nil
}

func (repo *paymentRepository) GetDiscountByID(ctx context.Context, id string) (payment.Discount, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.discounts[id]; ok {
		return d, nil
	}
	return payment.Discount{}, payment.ErrDiscountNotFound
}

func (repo *paymentRepository) GetDiscountByCode(ctx context.Context, code string) (payment.Discount, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, d := range repo.db.discounts {
		if d.Code == code {
			return d, nil
		}
	}
	return payment.Discount{}, payment.ErrDiscountNotFound
}

func (repo *paymentRepository) QueryDiscounts(ctx context.Context, activeOnly bool) ([]payment.Discount, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var discounts []payment.Discount
	for _, d := range repo.db.discounts {
		if activeOnly && !d.IsActive {
			continue
		}
		discounts = append(discounts, d)
	}
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].CreatedAt.After(discounts[j].CreatedAt) })
	return discounts, nil
}

func (repo *paymentRepository) UpdateDiscount(ctx context.Context, d payment.Discount) (payment.Discount, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.discounts[d.ID]; !ok {
		return payment.Discount{}, payment.ErrDiscountNotFound
	}
	repo.db.discounts[d.ID] = d
	return d, nil
}

func (repo *paymentRepository) IncrementDiscountUses(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d, ok := repo.db.discounts[id]
	if !ok {
		return payment.ErrDiscountNotFound
	}
	d.CurrentUses++
	repo.db.discounts[id] = d
	return nil
}

func (repo *paymentRepository) CountDiscountUsesByUser(ctx context.Context, discountID, userID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, pmt := range repo.db.payments {
		if pmt.DiscountID == discountID && pmt.UserID == userID && pmt.Status == payment.StatusCompleted {
			n++
		}
	}
	return n, nil
}

func (repo *paymentRepository) HasCompletedPayments(ctx context.Context, userID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, pmt := range repo.db.payments {
		if pmt.UserID == userID && pmt.Status == payment.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if pmt.ID == "" {
		pmt.ID = uuid.NewString()
	}
	repo.db.payments[pmt.ID] = pmt
	return pmt, nil
}

func (repo *paymentRepository) GetPaymentByID(ctx context.Context, id string) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if pmt, ok := repo.db.payments[id]; ok {
		return pmt, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, userID, courseID, status string) ([]payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var pmts []payment.Payment
	for _, pmt := range repo.db.payments {
		if userID != "" && pmt.UserID != userID {
			continue
		}
		if courseID != "" && pmt.CourseID != courseID {
			continue
		}
		if status != "" && pmt.Status != status {
			continue
		}
		pmts = append(pmts, pmt)
	}
	sort.Slice(pmts, func(i, j int) bool { return pmts[i].CreatedAt.After(pmts[j].CreatedAt) })
	return pmts, nil
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.payments[pmt.ID]; !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	repo.db.payments[pmt.ID] = pmt
	return pmt, nil
}

func (repo *paymentRepository) CreateRefund(ctx context.Context, ref payment.Refund) (payment.Refund, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	repo.db.refunds[ref.ID] = ref
	return ref, nil
}

func (repo *paymentRepository) GetRefundByID(ctx context.Context, id string) (payment.Refund, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ref, ok := repo.db.refunds[id]; ok {
		return ref, nil
	}
	return payment.Refund{}, payment.ErrRefundNotFound
}

func (repo *paymentRepository) QueryRefunds(ctx context.Context, paymentID string) ([]payment.Refund, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var refs []payment.Refund
	for _, ref := range repo.db.refunds {
		if paymentID != "" && ref.PaymentID != paymentID {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].CreatedAt.After(refs[j].CreatedAt) })
	return refs, nil
}

func (repo *paymentRepository) UpdateRefund(ctx context.Context, ref payment.Refund) (payment.Refund, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.refunds[ref.ID]; !ok {
		return payment.Refund{}, payment.ErrRefundNotFound
	}
	repo.db.refunds[ref.ID] = ref
	return ref, nil
}
