package promotion

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed promotion configuration. It is a
// client error and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid promotion: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidateNew checks a promotion about to be created. Beyond the structural
// checks of Validate it requires the end of the validity window to be
// strictly in the future.
func (p *Promotion) ValidateNew(now time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.EndDate.After(now) {
		return invalid("end_date", "must be in the future")
	}
	return nil
}

// Validate checks structural invariants: a known type, a well-ordered date
// window, and a rule payload matching the type.
func (p *Promotion) Validate() error {
	if p.Name == "" {
		return invalid("name", "is required")
	}
	if !p.Type.Valid() {
		return invalid("type", fmt.Sprintf("unknown type %q", p.Type))
	}
	if !p.StartDate.Before(p.EndDate) {
		return invalid("start_date", "must be before end_date")
	}
	if p.Conditions.MinimumPurchaseAmount.IsNegative() {
		return invalid("conditions.minimum_purchase_amount", "must not be negative")
	}
	if p.Conditions.MinimumQuantity < 0 {
		return invalid("conditions.minimum_quantity", "must not be negative")
	}
	if p.Rules.MaxDiscountAmount.IsNegative() {
		return invalid("rules.max_discount_amount", "must not be negative")
	}
	if p.Rules.MinDiscountAmount.IsNegative() {
		return invalid("rules.min_discount_amount", "must not be negative")
	}
	return p.validateRules()
}

// validateRules checks that the payload matching the promotion type is
// present and well-formed. Reserved types validate structurally only.
func (p *Promotion) validateRules() error {
	switch p.Type {
	case TypePercentage:
		params := p.Rules.Percentage
		if params == nil {
			return invalid("rules.percentage", "is required for PERCENTAGE promotions")
		}
		if params.Percentage.IsNegative() || params.Percentage.GreaterThan(hundred) {
			return invalid("rules.percentage.percentage", "must be between 0 and 100")
		}

	case TypeFixedAmount:
		params := p.Rules.FixedAmount
		if params == nil {
			return invalid("rules.fixed_amount", "is required for FIXED_AMOUNT promotions")
		}
		if !params.DiscountAmount.IsPositive() {
			return invalid("rules.fixed_amount.discount_amount", "must be positive")
		}

	case TypeFreeShipping:
		// No payload: the shipping collaborator zeroes the cost.

	case TypeBuyXGetY:
		params := p.Rules.BuyXGetY
		if params == nil {
			return invalid("rules.buy_x_get_y", "is required for BUY_X_GET_Y promotions")
		}
		if params.BuyQuantity <= 0 || params.GetQuantity <= 0 {
			return invalid("rules.buy_x_get_y", "buy and get quantities must be positive")
		}
		if params.GetDiscountPercentage.IsNegative() || params.GetDiscountPercentage.GreaterThan(hundred) {
			return invalid("rules.buy_x_get_y.get_discount_percentage", "must be between 0 and 100")
		}

	case TypeQuantityTiered:
		if len(p.Rules.QuantityTiers) == 0 {
			return invalid("rules.quantity_tiers", "at least one tier is required")
		}
		for i, tier := range p.Rules.QuantityTiers {
			if tier.MinQuantity <= 0 {
				return invalid(fmt.Sprintf("rules.quantity_tiers[%d].min_quantity", i), "must be positive")
			}
			if tier.DiscountValue.IsNegative() {
				return invalid(fmt.Sprintf("rules.quantity_tiers[%d].discount_value", i), "must not be negative")
			}
			if tier.IsPercentage && tier.DiscountValue.GreaterThan(hundred) {
				return invalid(fmt.Sprintf("rules.quantity_tiers[%d].discount_value", i), "percentage must not exceed 100")
			}
		}

	case TypeCategory:
		params := p.Rules.Category
		if params == nil {
			return invalid("rules.category", "is required for CATEGORY_DISCOUNT promotions")
		}
		if len(params.Categories) == 0 {
			return invalid("rules.category.categories", "at least one category is required")
		}
		if params.Percentage.IsNegative() || params.Percentage.GreaterThan(hundred) {
			return invalid("rules.category.percentage", "must be between 0 and 100")
		}

	case TypeMinimumPurchase:
		params := p.Rules.MinimumPurchase
		if params == nil {
			return invalid("rules.minimum_purchase", "is required for MINIMUM_PURCHASE promotions")
		}
		hasAmount := params.DiscountAmount.IsPositive()
		hasPercentage := params.DiscountPercentage.IsPositive()
		if hasAmount == hasPercentage {
			return invalid("rules.minimum_purchase", "exactly one of discount_amount or discount_percentage must be set")
		}
		if params.DiscountPercentage.GreaterThan(hundred) {
			return invalid("rules.minimum_purchase.discount_percentage", "must not exceed 100")
		}

	case TypeBundle, TypeSeasonal, TypeClearance, TypeFlashSale:
		// Reserved kinds carry no evaluated payload yet.
	}
	return nil
}
