// Package promotion holds the promotion rule schema, the applicability
// filter, the per-type discount evaluators, and the status state machine.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported promotion rule kinds. The first seven are
// fully evaluated; the remaining kinds are reserved and fall through to the
// evaluator's unsupported arm with a zero discount.
type Type string

const (
	TypePercentage      Type = "PERCENTAGE"
	TypeFixedAmount     Type = "FIXED_AMOUNT"
	TypeFreeShipping    Type = "FREE_SHIPPING"
	TypeBuyXGetY        Type = "BUY_X_GET_Y"
	TypeQuantityTiered  Type = "QUANTITY_TIERED"
	TypeCategory        Type = "CATEGORY_DISCOUNT"
	TypeMinimumPurchase Type = "MINIMUM_PURCHASE"

	// Reserved rule kinds, accepted at creation but not yet evaluated.
	TypeBundle    Type = "BUNDLE"
	TypeSeasonal  Type = "SEASONAL"
	TypeClearance Type = "CLEARANCE"
	TypeFlashSale Type = "FLASH_SALE"
)

// Valid reports whether t is a known promotion type.
func (t Type) Valid() bool {
	switch t {
	case TypePercentage, TypeFixedAmount, TypeFreeShipping, TypeBuyXGetY,
		TypeQuantityTiered, TypeCategory, TypeMinimumPurchase,
		TypeBundle, TypeSeasonal, TypeClearance, TypeFlashSale:
		return true
	}
	return false
}

// Status is the lifecycle state of a promotion.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Target is an informational scope hint; actual restriction is enforced
// through Conditions.
type Target string

const (
	TargetAllProducts        Target = "ALL_PRODUCTS"
	TargetSpecificProducts   Target = "SPECIFIC_PRODUCTS"
	TargetCategory           Target = "CATEGORY"
	TargetUserSegment        Target = "USER_SEGMENT"
	TargetFirstTimeBuyers    Target = "FIRST_TIME_BUYERS"
	TargetReturningCustomers Target = "RETURNING_CUSTOMERS"
)

// Sentinel errors shared across the promotion surface.
var (
	ErrNotFound          = errors.New("promotion not found")
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
	ErrInUse             = errors.New("promotion has recorded uses and cannot be deleted")
)

// Conditions gate whether a promotion applies to a given cart and user.
// Zero values mean "no restriction".
type Conditions struct {
	MinimumPurchaseAmount decimal.Decimal `json:"minimum_purchase_amount"`
	MinimumQuantity       int             `json:"minimum_quantity"`
	SpecificProducts      []string        `json:"specific_products,omitempty"`
	Categories            []string        `json:"categories,omitempty"`
	SpecificUsers         []string        `json:"specific_users,omitempty"`
	MaxUsesPerUser        int             `json:"max_uses_per_user"`
	MaxTotalUses          int             `json:"max_total_uses"`
	PaymentMethods        []string        `json:"payment_methods,omitempty"`
	ShippingZones         []string        `json:"shipping_zones,omitempty"`
	ExcludeDiscounted     bool            `json:"exclude_discounted"`
}

// PercentageParams configures a percentage promotion.
type PercentageParams struct {
	Percentage decimal.Decimal `json:"percentage"`
}

// FixedAmountParams configures a fixed-amount promotion.
type FixedAmountParams struct {
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// BuyXGetYParams configures a buy-X-get-Y promotion. GetDiscountPercentage
// is the percentage off the "get" units (100 means free).
type BuyXGetYParams struct {
	BuyQuantity           int             `json:"buy_quantity"`
	GetQuantity           int             `json:"get_quantity"`
	GetDiscountPercentage decimal.Decimal `json:"get_discount_percentage"`
}

// QuantityTier is one step of a quantity-tiered promotion. Percentage tiers
// apply DiscountValue as a percentage of the applicable subtotal; fixed
// tiers apply it once as a flat amount.
type QuantityTier struct {
	MinQuantity   int             `json:"min_quantity"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	IsPercentage  bool            `json:"is_percentage"`
}

// CategoryParams configures a category-discount promotion.
type CategoryParams struct {
	Categories []string        `json:"categories"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MinimumPurchaseParams configures a minimum-purchase promotion. Exactly one
// of DiscountAmount or DiscountPercentage should be set.
type MinimumPurchaseParams struct {
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

// Rules is the per-type payoff configuration of a promotion. Only the
// payload matching the promotion's Type is consulted; the clamps apply to
// every type.
type Rules struct {
	Percentage      *PercentageParams      `json:"percentage,omitempty"`
	FixedAmount     *FixedAmountParams     `json:"fixed_amount,omitempty"`
	BuyXGetY        *BuyXGetYParams        `json:"buy_x_get_y,omitempty"`
	QuantityTiers   []QuantityTier         `json:"quantity_tiers,omitempty"`
	Category        *CategoryParams        `json:"category,omitempty"`
	MinimumPurchase *MinimumPurchaseParams `json:"minimum_purchase,omitempty"`

	// Universal clamps. Max caps the computed amount; Min zeroes any amount
	// below it (all-or-nothing floor).
	MaxDiscountAmount decimal.Decimal `json:"max_discount_amount"`
	MinDiscountAmount decimal.Decimal `json:"min_discount_amount"`
}

// UsageRecord is one redemption of a promotion. Usage history is append-only
// and backs every cap check.
type UsageRecord struct {
	UserID         string
	OrderID        string
	UsedAt         time.Time
	DiscountAmount decimal.Decimal
	CouponCode     string
}

// Promotion is an administrator-defined discount rule.
type Promotion struct {
	ID          string
	Name        string
	Description string
	Type        Type
	Status      Status
	Target      Target

	StartDate time.Time
	EndDate   time.Time

	Conditions Conditions
	Rules      Rules

	UsageHistory       []UsageRecord
	TotalUses          int
	TotalDiscountGiven decimal.Decimal
	ConversionCount    int
	ViewCount          int

	IsActive        bool
	IsAutomatic     bool
	Priority        int
	AutoApplyToCart bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsesByUser counts usage history entries recorded for the given user.
func (p *Promotion) UsesByUser(userID string) int {
	n := 0
	for _, u := range p.UsageHistory {
		if u.UserID == userID {
			n++
		}
	}
	return n
}

// WindowContains reports whether now falls inside [StartDate, EndDate).
func (p *Promotion) WindowContains(now time.Time) bool {
	return !now.Before(p.StartDate) && now.Before(p.EndDate)
}

// ListFilter narrows admin list queries.
type ListFilter struct {
	Status Status
	Type   Type
	Limit  int
	Offset int
}

// Usage captures the parameters of a single redemption write. The write must
// append the usage record and bump the aggregate counters in one transaction,
// and must fail with ErrUsageLimitReached when a cap no longer holds at
// write time.
type Usage struct {
	PromotionID    string
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
	CouponCode     string
	UsedAt         time.Time
}

// Repository provides persistence for promotions.
type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	GetByID(ctx context.Context, id string) (*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	// Delete removes a promotion; it fails with ErrInUse once any usage has
	// been recorded.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*Promotion, error)
	// ListAutomatic returns ACTIVE, enabled, automatic promotions whose
	// window contains now, ordered by priority descending.
	ListAutomatic(ctx context.Context, now time.Time) ([]*Promotion, error)
	// UpdateStatus persists a status change already validated against the
	// transition table.
	UpdateStatus(ctx context.Context, id string, status Status) error
	// RecordUsage appends a usage record and increments counters as a single
	// conditional write: it asserts the global and per-user caps still hold
	// and returns ErrUsageLimitReached otherwise.
	RecordUsage(ctx context.Context, usage Usage) error
	// IncrementViews bumps the view counter.
	IncrementViews(ctx context.Context, id string) error
}
