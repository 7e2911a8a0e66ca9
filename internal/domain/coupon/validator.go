package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/cart"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

// Reason identifies why a coupon was rejected. Every check reports its own
// distinct reason; the first failing check wins.
type Reason string

const (
	ReasonNotFound           Reason = "not_found"
	ReasonInactive           Reason = "inactive"
	ReasonOutsideWindow      Reason = "outside_valid_window"
	ReasonMinimumPurchase    Reason = "minimum_purchase_not_met"
	ReasonMinimumItems       Reason = "minimum_items_not_met"
	ReasonUserRequired       Reason = "user_required"
	ReasonUserLimitReached   Reason = "user_limit_reached"
	ReasonGlobalLimitReached Reason = "limit_reached"
	ReasonUserMismatch       Reason = "user_mismatch"
)

// Message returns the human-readable form of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNotFound:
		return "coupon not found"
	case ReasonInactive:
		return "coupon is not active"
	case ReasonOutsideWindow:
		return "coupon is outside its validity window"
	case ReasonMinimumPurchase:
		return "cart total is below the coupon's minimum purchase amount"
	case ReasonMinimumItems:
		return "cart does not contain enough items for this coupon"
	case ReasonUserRequired:
		return "coupon requires an identified user"
	case ReasonUserLimitReached:
		return "coupon usage limit reached for this user"
	case ReasonGlobalLimitReached:
		return "coupon usage limit reached"
	case ReasonUserMismatch:
		return "coupon is reserved for a different user"
	}
	return "coupon is not valid"
}

// RejectionError carries the rejection reason through the redemption path so
// callers can distinguish, e.g., a limit-reached coupon from an unknown one.
type RejectionError struct {
	Code   string
	Reason Reason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason.Message())
}

// Verdict is the structured dry-run result for pre-checkout UI use.
type Verdict struct {
	Valid     bool
	Reason    Reason
	Message   string
	Coupon    *Coupon
	Promotion *promotion.Promotion
	Discount  decimal.Decimal
}

// Redemption is the outcome of a successful coupon evaluation.
type Redemption struct {
	Coupon    *Coupon
	Promotion *promotion.Promotion
	Discount  promotion.Discount
}

// Validator validates coupon codes against their own constraints and the
// linked promotion's discount algorithm.
type Validator struct {
	coupons    Repository
	promotions promotion.Repository
	now        func() time.Time
}

// NewValidator creates a Validator backed by the given repositories.
func NewValidator(coupons Repository, promotions promotion.Repository) *Validator {
	return &Validator{coupons: coupons, promotions: promotions, now: time.Now}
}

// WithNow overrides the clock; intended for tests.
func (v *Validator) WithNow(now func() time.Time) *Validator {
	v.now = now
	return v
}

// check runs the full predicate chain shared by the dry-run and redemption
// paths. Both paths must agree on every input, so this is the only place the
// checks live. The chain is read-only.
func (v *Validator) check(ctx context.Context, code, userID string, snapshot cart.Snapshot) (*Coupon, *RejectionError, error) {
	c, err := v.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &RejectionError{Code: code, Reason: ReasonNotFound}, nil
		}
		return nil, nil, errors.Wrap(err, "lookup coupon")
	}

	// A redeemed SINGLE_USE coupon reports its limit, not a vague inactive.
	if c.Status == StatusUsed {
		return c, &RejectionError{Code: code, Reason: ReasonGlobalLimitReached}, nil
	}

	if c.Status != StatusActive || !c.IsActive {
		return c, &RejectionError{Code: code, Reason: ReasonInactive}, nil
	}

	now := v.now()
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return c, &RejectionError{Code: code, Reason: ReasonOutsideWindow}, nil
	}

	if c.MinimumPurchaseAmount.IsPositive() && snapshot.Total.LessThan(c.MinimumPurchaseAmount) {
		return c, &RejectionError{Code: code, Reason: ReasonMinimumPurchase}, nil
	}

	if c.RequiresMinimumItems && snapshot.TotalQuantity() < c.MinimumItems {
		return c, &RejectionError{Code: code, Reason: ReasonMinimumItems}, nil
	}

	// A per-user cap cannot be enforced without a user id, so anonymous
	// requests are rejected rather than waved through.
	if c.MaxUsesPerUser > 0 {
		if userID == "" {
			return c, &RejectionError{Code: code, Reason: ReasonUserRequired}, nil
		}
		if c.UsesByUser(userID) >= c.MaxUsesPerUser {
			return c, &RejectionError{Code: code, Reason: ReasonUserLimitReached}, nil
		}
	}

	if c.MaxUses > 0 && c.TotalUses >= c.MaxUses {
		return c, &RejectionError{Code: code, Reason: ReasonGlobalLimitReached}, nil
	}

	if c.SpecificUserID != "" && c.SpecificUserID != userID {
		return c, &RejectionError{Code: code, Reason: ReasonUserMismatch}, nil
	}

	return c, nil, nil
}

// Evaluate runs the redemption-path validation and, on success, computes the
// linked promotion's discount with the coupon code attached. It records
// attempt counters but never writes usage; usage is written by the recorder
// once the order completes.
func (v *Validator) Evaluate(ctx context.Context, code, userID string, snapshot cart.Snapshot) (*Redemption, error) {
	code = NormalizeCode(code)

	c, rejection, err := v.check(ctx, code, userID, snapshot)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		if c != nil {
			if attemptErr := v.coupons.RecordAttempt(ctx, code, false); attemptErr != nil {
				return nil, errors.Wrap(attemptErr, "record failed attempt")
			}
		}
		return nil, rejection
	}

	p, err := v.promotions.GetByID(ctx, c.PromotionID)
	if err != nil {
		return nil, errors.Wrapf(err, "load promotion %s for coupon %s", c.PromotionID, code)
	}

	d := p.Evaluate(snapshot)
	d.Description = fmt.Sprintf("%s (coupon %s)", d.Description, code)

	if err := v.coupons.RecordAttempt(ctx, code, true); err != nil {
		return nil, errors.Wrap(err, "record attempt")
	}

	return &Redemption{Coupon: c, Promotion: p, Discount: d}, nil
}

// DryRun performs the identical checks as Evaluate but never mutates any
// state, returning a structured verdict instead of an error.
func (v *Validator) DryRun(ctx context.Context, code, userID string, snapshot cart.Snapshot) (*Verdict, error) {
	code = NormalizeCode(code)

	c, rejection, err := v.check(ctx, code, userID, snapshot)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return &Verdict{
			Valid:   false,
			Reason:  rejection.Reason,
			Message: rejection.Reason.Message(),
			Coupon:  c,
		}, nil
	}

	p, err := v.promotions.GetByID(ctx, c.PromotionID)
	if err != nil {
		return nil, errors.Wrapf(err, "load promotion %s for coupon %s", c.PromotionID, code)
	}

	d := p.Evaluate(snapshot)

	return &Verdict{
		Valid:     true,
		Message:   "coupon is valid",
		Coupon:    c,
		Promotion: p,
		Discount:  d.Amount.Round(2),
	}, nil
}
