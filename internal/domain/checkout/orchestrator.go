// Package checkout orchestrates discount evaluation for a cart: it gathers
// automatic promotions, layers an optional coupon, resolves conflicts, and
// produces the final discount result consumed by collaborators.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/cart"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

// AppliedDiscount summarizes one discount included in the final result.
type AppliedDiscount struct {
	PromotionID     string
	Name            string
	Type            promotion.Type
	Amount          decimal.Decimal
	CouponCode      string
	Description     string
	AffectedLineIDs []string
	FreeShipping    bool
}

// Result is the discount-computation outcome exposed to collaborators.
type Result struct {
	Success       bool
	OriginalTotal decimal.Decimal
	Applied       []AppliedDiscount
	TotalDiscount decimal.Decimal
	FinalTotal    decimal.Decimal
	Savings       decimal.Decimal
	FreeShipping  bool
	Errors        []string
	Warnings      []string
}

// Orchestrator is the discount engine's entry point for cart evaluation.
type Orchestrator struct {
	promotions promotion.Repository
	coupons    *coupon.Validator
	resolver   Resolver
	now        func() time.Time
	lg         *zap.Logger
}

// NewOrchestrator creates an Orchestrator with the greedy largest-discount
// resolver.
func NewOrchestrator(promotions promotion.Repository, coupons *coupon.Validator, lg *zap.Logger) *Orchestrator {
	return &Orchestrator{
		promotions: promotions,
		coupons:    coupons,
		resolver:   LargestDiscount{},
		now:        time.Now,
		lg:         lg,
	}
}

// WithResolver overrides the conflict resolution strategy.
func (o *Orchestrator) WithResolver(r Resolver) *Orchestrator {
	o.resolver = r
	return o
}

// WithNow overrides the clock; intended for tests.
func (o *Orchestrator) WithNow(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// ApplyDiscounts evaluates every applicable automatic promotion plus the
// optional coupon code, resolves conflicts, and rounds the outcome.
//
// Per-promotion evaluation problems are demoted to warnings and never abort
// the batch; a coupon failure is reported as an error (flipping Success to
// false) but still leaves automatic discounts applied.
func (o *Orchestrator) ApplyDiscounts(ctx context.Context, userID string, snapshot cart.Snapshot, couponCode string) (*Result, error) {
	now := o.now()
	result := &Result{
		Success:       true,
		OriginalTotal: snapshot.Total,
		FinalTotal:    snapshot.Total,
	}

	candidates, err := o.collectAutomatic(ctx, userID, snapshot, now, result)
	if err != nil {
		return nil, err
	}

	if couponCode != "" {
		if c := o.evaluateCoupon(ctx, userID, snapshot, couponCode, result); c != nil {
			candidates = append(candidates, *c)
		}
	}

	chosen := o.resolver.Resolve(candidates)

	totalDiscount := decimal.Zero
	for _, d := range chosen {
		d.Amount = d.Amount.Round(2)
		totalDiscount = totalDiscount.Add(d.Amount)
		result.Applied = append(result.Applied, d)
		if d.FreeShipping {
			result.FreeShipping = true
		}
	}

	result.TotalDiscount = totalDiscount.Round(2)
	finalTotal := snapshot.Total.Sub(result.TotalDiscount)
	if finalTotal.IsNegative() {
		finalTotal = decimal.Zero
	}
	result.FinalTotal = finalTotal.Round(2)
	result.Savings = result.TotalDiscount

	return result, nil
}

// collectAutomatic fetches and evaluates the automatic promotions that apply
// to the cart, ordered by priority descending.
func (o *Orchestrator) collectAutomatic(ctx context.Context, userID string, snapshot cart.Snapshot, now time.Time, result *Result) ([]AppliedDiscount, error) {
	promos, err := o.promotions.ListAutomatic(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list automatic promotions")
	}

	var candidates []AppliedDiscount
	for _, p := range promos {
		if !p.IsApplicable(userID, snapshot, now) {
			continue
		}
		d, evalErr := o.safeEvaluate(p, snapshot)
		if evalErr != nil {
			o.lg.Warn("promotion evaluation failed",
				zap.String("promotion_id", p.ID),
				zap.Error(evalErr))
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("promotion %s could not be evaluated: %v", p.ID, evalErr))
			continue
		}
		if !d.Amount.IsPositive() && !d.FreeShipping {
			continue
		}
		candidates = append(candidates, AppliedDiscount{
			PromotionID:     p.ID,
			Name:            p.Name,
			Type:            p.Type,
			Amount:          d.Amount,
			Description:     d.Description,
			AffectedLineIDs: d.AffectedLineIDs,
			FreeShipping:    d.FreeShipping,
		})
	}
	return candidates, nil
}

// safeEvaluate shields the batch from a malformed rule: a panic inside one
// promotion's evaluator becomes an error for that promotion only.
func (o *Orchestrator) safeEvaluate(p *promotion.Promotion, snapshot cart.Snapshot) (d promotion.Discount, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("evaluate panicked: %v", r)
		}
	}()
	return p.Evaluate(snapshot), nil
}

// evaluateCoupon runs the coupon path, recording failures as result errors.
func (o *Orchestrator) evaluateCoupon(ctx context.Context, userID string, snapshot cart.Snapshot, code string, result *Result) *AppliedDiscount {
	redemption, err := o.coupons.Evaluate(ctx, code, userID, snapshot)
	if err != nil {
		result.Success = false
		var rejection *coupon.RejectionError
		if errors.As(err, &rejection) {
			result.Errors = append(result.Errors, rejection.Reason.Message())
		} else {
			o.lg.Error("coupon evaluation failed", zap.String("code", code), zap.Error(err))
			result.Errors = append(result.Errors, "coupon could not be validated")
		}
		return nil
	}

	d := redemption.Discount
	if !d.Amount.IsPositive() && !d.FreeShipping {
		return nil
	}
	return &AppliedDiscount{
		PromotionID:     redemption.Promotion.ID,
		Name:            redemption.Promotion.Name,
		Type:            redemption.Promotion.Type,
		Amount:          d.Amount,
		CouponCode:      redemption.Coupon.Code,
		Description:     d.Description,
		AffectedLineIDs: d.AffectedLineIDs,
		FreeShipping:    d.FreeShipping,
	}
}
