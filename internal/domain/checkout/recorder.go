package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

// CompletedOrder is the signal from the order collaborator that a discounted
// order finished successfully.
type CompletedOrder struct {
	OrderID        string
	UserID         string
	PromotionID    string
	CouponCode     string
	DiscountAmount decimal.Decimal
}

// Recorder is the single writer of usage history. On order completion it
// appends a usage record to the winning promotion (and its coupon, if one
// was used) and bumps the aggregate counters in the same conditional write,
// so a redemption that loses a cap race is rejected at the write step.
type Recorder struct {
	promotions promotion.Repository
	coupons    coupon.Repository
	now        func() time.Time
	lg         *zap.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(promotions promotion.Repository, coupons coupon.Repository, lg *zap.Logger) *Recorder {
	return &Recorder{
		promotions: promotions,
		coupons:    coupons,
		now:        time.Now,
		lg:         lg,
	}
}

// WithNow overrides the clock; intended for tests.
func (r *Recorder) WithNow(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record writes the usage entries for a completed order. The promotion write
// happens first; a coupon write failure does not roll it back but is
// reported to the caller.
func (r *Recorder) Record(ctx context.Context, order CompletedOrder) error {
	if order.PromotionID == "" {
		return errors.New("promotion id is required")
	}
	usedAt := r.now()

	err := r.promotions.RecordUsage(ctx, promotion.Usage{
		PromotionID:    order.PromotionID,
		UserID:         order.UserID,
		OrderID:        order.OrderID,
		DiscountAmount: order.DiscountAmount,
		CouponCode:     order.CouponCode,
		UsedAt:         usedAt,
	})
	if err != nil {
		return errors.Wrapf(err, "record promotion usage %s", order.PromotionID)
	}

	if order.CouponCode == "" {
		return nil
	}

	code := coupon.NormalizeCode(order.CouponCode)
	c, err := r.coupons.GetByCode(ctx, code)
	if err != nil {
		return errors.Wrapf(err, "load coupon %s", code)
	}

	err = r.coupons.RecordUsage(ctx, coupon.Usage{
		Code:           code,
		UserID:         order.UserID,
		OrderID:        order.OrderID,
		DiscountAmount: order.DiscountAmount,
		UsedAt:         usedAt,
		SingleUse:      c.Type == coupon.TypeSingleUse,
	})
	if err != nil {
		return errors.Wrapf(err, "record coupon usage %s", code)
	}

	r.lg.Info("usage recorded",
		zap.String("order_id", order.OrderID),
		zap.String("promotion_id", order.PromotionID),
		zap.String("coupon_code", code))
	return nil
}
