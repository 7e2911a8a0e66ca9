// Package coupon holds the coupon schema, the redemption validator, and the
// bulk code generator. A coupon layers its own usage constraints on top of
// exactly one promotion, whose discount algorithm it borrows.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the coupon kinds.
type Type string

const (
	TypeSingleUse    Type = "SINGLE_USE"
	TypeMultiUse     Type = "MULTI_USE"
	TypeUserSpecific Type = "USER_SPECIFIC"
	TypePublic       Type = "PUBLIC"
)

// Status is the lifecycle state of a coupon. StatusUsed is reached only by
// SINGLE_USE coupons after one successful redemption.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusUsed      Status = "USED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Sentinel errors for coupon lookups and writes.
var (
	ErrNotFound      = errors.New("coupon not found")
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrLimitReached is returned when a redemption loses the conditional
	// cap-checked write, or when a cap is already exhausted at read time.
	ErrLimitReached = errors.New("coupon usage limit reached")
)

// MaxCodeLength bounds coupon codes; codes are uppercase letters and digits.
const MaxCodeLength = 50

// UsageRecord is one redemption of a coupon.
type UsageRecord struct {
	UserID         string
	OrderID        string
	UsedAt         time.Time
	DiscountAmount decimal.Decimal
}

// Coupon is a redeemable code referencing exactly one promotion.
type Coupon struct {
	ID          string
	Code        string
	Name        string
	Description string
	Type        Type
	Status      Status
	PromotionID string

	MaxUses               int
	MaxUsesPerUser        int
	MinimumPurchaseAmount decimal.Decimal
	RequiresMinimumItems  bool
	MinimumItems          int
	SpecificUserID        string
	ValidFrom             time.Time
	ValidUntil            time.Time

	IsActive bool

	UsageHistory       []UsageRecord
	TotalUses          int
	TotalDiscountGiven decimal.Decimal
	ViewCount          int
	AttemptCount       int
	SuccessCount       int
	FailureCount       int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsesByUser counts usage history entries recorded for the given user.
func (c *Coupon) UsesByUser(userID string) int {
	n := 0
	for _, u := range c.UsageHistory {
		if u.UserID == userID {
			n++
		}
	}
	return n
}

// NormalizeCode canonicalizes a user-supplied code: trimmed and uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether the code is non-empty, within the length bound,
// and composed of letters and digits only.
func ValidCode(code string) bool {
	if code == "" || len(code) > MaxCodeLength {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Usage captures the parameters of a single redemption write. The write
// appends the usage record and bumps counters conditionally on the caps
// still holding; for SINGLE_USE coupons it also flips status to USED.
type Usage struct {
	Code           string
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
	SingleUse      bool
}

// ListFilter narrows admin list queries.
type ListFilter struct {
	Status      Status
	PromotionID string
	Limit       int
	Offset      int
}

// Repository provides persistence for coupons.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	// CreateBatch inserts the given coupons, skipping codes that already
	// exist. It returns the codes actually inserted.
	CreateBatch(ctx context.Context, coupons []*Coupon) ([]string, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, filter ListFilter) ([]*Coupon, error)
	// ListCodes returns every existing coupon code; used to seed the
	// generator's collision prefilter.
	ListCodes(ctx context.Context) ([]string, error)
	UpdateStatus(ctx context.Context, code string, status Status) error
	// IncrementViews bumps the view counter.
	IncrementViews(ctx context.Context, code string) error
	// RecordUsage appends a usage record and increments counters as a single
	// conditional write, returning ErrLimitReached when a cap no longer
	// holds at write time.
	RecordUsage(ctx context.Context, usage Usage) error
	// RecordAttempt bumps the attempt counter and, depending on success,
	// the success or failure counter.
	RecordAttempt(ctx context.Context, code string, success bool) error
}
