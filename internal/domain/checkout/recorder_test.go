package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

func newTestRecorder(t *testing.T, promos *promoRepo, coupons *couponRepo) *Recorder {
	t.Helper()
	return NewRecorder(promos, coupons, zaptest.NewLogger(t)).
		WithNow(func() time.Time { return testNow })
}

func singleUseCoupon(code, promotionID string) *coupon.Coupon {
	return &coupon.Coupon{
		ID:          "c-" + code,
		Code:        code,
		Type:        coupon.TypeSingleUse,
		Status:      coupon.StatusActive,
		PromotionID: promotionID,
		MaxUses:     1,
		IsActive:    true,
		ValidFrom:   testNow.AddDate(0, 0, -1),
		ValidUntil:  testNow.AddDate(0, 0, 1),
	}
}

func TestRecordPromotionOnly(t *testing.T) {
	promos := newPromoRepo(automaticPercentage("promo-1", "Ten Percent", "10", 1))
	coupons := newCouponRepo()
	rec := newTestRecorder(t, promos, coupons)

	err := rec.Record(context.Background(), CompletedOrder{
		OrderID:        "o1",
		UserID:         "u1",
		PromotionID:    "promo-1",
		DiscountAmount: dec("10"),
	})

	require.NoError(t, err)
	require.Len(t, promos.usages, 1)
	assert.Equal(t, "o1", promos.usages[0].OrderID)
	assert.Equal(t, testNow, promos.usages[0].UsedAt)
	assert.Empty(t, coupons.usages)
	assert.Equal(t, 1, promos.promotions["promo-1"].TotalUses)
}

func TestRecordWithCoupon(t *testing.T) {
	promos := newPromoRepo(automaticPercentage("promo-1", "Ten Percent", "10", 1))
	coupons := newCouponRepo(singleUseCoupon("ONCE1", "promo-1"))
	rec := newTestRecorder(t, promos, coupons)

	err := rec.Record(context.Background(), CompletedOrder{
		OrderID:        "o1",
		UserID:         "u1",
		PromotionID:    "promo-1",
		CouponCode:     "once1",
		DiscountAmount: dec("10"),
	})

	require.NoError(t, err)
	require.Len(t, coupons.usages, 1)
	assert.Equal(t, "ONCE1", coupons.usages[0].Code, "code is normalized before the write")
	assert.True(t, coupons.usages[0].SingleUse)
	assert.Equal(t, coupon.StatusUsed, coupons.coupons["ONCE1"].Status)
}

func TestRecordRequiresPromotion(t *testing.T) {
	rec := newTestRecorder(t, newPromoRepo(), newCouponRepo())

	err := rec.Record(context.Background(), CompletedOrder{OrderID: "o1", UserID: "u1"})

	assert.Error(t, err)
}

func TestRecordSurfacesCapRace(t *testing.T) {
	promos := newPromoRepo(automaticPercentage("promo-1", "Ten Percent", "10", 1))
	promos.usageErr = promotion.ErrUsageLimitReached
	rec := newTestRecorder(t, promos, newCouponRepo())

	err := rec.Record(context.Background(), CompletedOrder{
		OrderID:     "o1",
		UserID:      "u1",
		PromotionID: "promo-1",
	})

	assert.ErrorIs(t, err, promotion.ErrUsageLimitReached)
}

func TestRecordCouponCapRace(t *testing.T) {
	promos := newPromoRepo(automaticPercentage("promo-1", "Ten Percent", "10", 1))
	c := singleUseCoupon("ONCE1", "promo-1")
	c.TotalUses = 1
	coupons := newCouponRepo(c)
	rec := newTestRecorder(t, promos, coupons)

	err := rec.Record(context.Background(), CompletedOrder{
		OrderID:     "o1",
		UserID:      "u1",
		PromotionID: "promo-1",
		CouponCode:  "ONCE1",
	})

	assert.ErrorIs(t, err, coupon.ErrLimitReached)
	assert.Len(t, promos.usages, 1, "promotion write lands before the coupon failure")
}
