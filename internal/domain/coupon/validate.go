package coupon

import "fmt"

// ValidationError reports a malformed coupon configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid coupon: %s %s", e.Field, e.Reason)
}

// Validate checks structural invariants of a coupon about to be created.
func (c *Coupon) Validate() error {
	if !ValidCode(c.Code) {
		return &ValidationError{Field: "code", Reason: fmt.Sprintf("must be 1-%d letters and digits", MaxCodeLength)}
	}
	switch c.Type {
	case TypeSingleUse, TypeMultiUse, TypeUserSpecific, TypePublic:
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", c.Type)}
	}
	if c.PromotionID == "" {
		return &ValidationError{Field: "promotion_id", Reason: "is required"}
	}
	if !c.ValidFrom.Before(c.ValidUntil) {
		return &ValidationError{Field: "valid_from", Reason: "must be before valid_until"}
	}
	if c.Type == TypeUserSpecific && c.SpecificUserID == "" {
		return &ValidationError{Field: "specific_user_id", Reason: "is required for USER_SPECIFIC coupons"}
	}
	if c.RequiresMinimumItems && c.MinimumItems <= 0 {
		return &ValidationError{Field: "minimum_items", Reason: "must be positive when required"}
	}
	if c.MinimumPurchaseAmount.IsNegative() {
		return &ValidationError{Field: "minimum_purchase_amount", Reason: "must not be negative"}
	}
	if c.MaxUses < 0 || c.MaxUsesPerUser < 0 {
		return &ValidationError{Field: "max_uses", Reason: "must not be negative"}
	}
	return nil
}
