package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPromotion() *Promotion {
	return &Promotion{
		Name:      "Valid Promo",
		Type:      TypePercentage,
		StartDate: testNow,
		EndDate:   testNow.AddDate(0, 1, 0),
		Rules: Rules{
			Percentage: &PercentageParams{Percentage: dec("15")},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Promotion)
		wantField string
	}{
		{
			name:   "valid promotion passes",
			mutate: func(*Promotion) {},
		},
		{
			name:      "missing name",
			mutate:    func(p *Promotion) { p.Name = "" },
			wantField: "name",
		},
		{
			name:      "unknown type",
			mutate:    func(p *Promotion) { p.Type = "MEGA_DEAL" },
			wantField: "type",
		},
		{
			name:      "start after end",
			mutate:    func(p *Promotion) { p.StartDate = p.EndDate.Add(time.Hour) },
			wantField: "start_date",
		},
		{
			name:      "start equals end",
			mutate:    func(p *Promotion) { p.StartDate = p.EndDate },
			wantField: "start_date",
		},
		{
			name:      "negative minimum purchase",
			mutate:    func(p *Promotion) { p.Conditions.MinimumPurchaseAmount = dec("-1") },
			wantField: "conditions.minimum_purchase_amount",
		},
		{
			name:      "negative max discount clamp",
			mutate:    func(p *Promotion) { p.Rules.MaxDiscountAmount = dec("-5") },
			wantField: "rules.max_discount_amount",
		},
		{
			name:      "percentage payload missing",
			mutate:    func(p *Promotion) { p.Rules.Percentage = nil },
			wantField: "rules.percentage",
		},
		{
			name:      "percentage over 100",
			mutate:    func(p *Promotion) { p.Rules.Percentage.Percentage = dec("101") },
			wantField: "rules.percentage.percentage",
		},
		{
			name: "fixed amount must be positive",
			mutate: func(p *Promotion) {
				p.Type = TypeFixedAmount
				p.Rules = Rules{FixedAmount: &FixedAmountParams{DiscountAmount: dec("0")}}
			},
			wantField: "rules.fixed_amount.discount_amount",
		},
		{
			name: "buy x get y needs positive quantities",
			mutate: func(p *Promotion) {
				p.Type = TypeBuyXGetY
				p.Rules = Rules{BuyXGetY: &BuyXGetYParams{BuyQuantity: 0, GetQuantity: 1, GetDiscountPercentage: dec("100")}}
			},
			wantField: "rules.buy_x_get_y",
		},
		{
			name: "tiered needs at least one tier",
			mutate: func(p *Promotion) {
				p.Type = TypeQuantityTiered
				p.Rules = Rules{}
			},
			wantField: "rules.quantity_tiers",
		},
		{
			name: "tier percentage over 100",
			mutate: func(p *Promotion) {
				p.Type = TypeQuantityTiered
				p.Rules = Rules{QuantityTiers: []QuantityTier{
					{MinQuantity: 2, DiscountValue: dec("150"), IsPercentage: true},
				}}
			},
			wantField: "rules.quantity_tiers[0].discount_value",
		},
		{
			name: "category needs category list",
			mutate: func(p *Promotion) {
				p.Type = TypeCategory
				p.Rules = Rules{Category: &CategoryParams{Percentage: dec("10")}}
			},
			wantField: "rules.category.categories",
		},
		{
			name: "minimum purchase needs exactly one payoff",
			mutate: func(p *Promotion) {
				p.Type = TypeMinimumPurchase
				p.Rules = Rules{MinimumPurchase: &MinimumPurchaseParams{
					DiscountAmount:     dec("5"),
					DiscountPercentage: dec("10"),
				}}
			},
			wantField: "rules.minimum_purchase",
		},
		{
			name: "free shipping needs no payload",
			mutate: func(p *Promotion) {
				p.Type = TypeFreeShipping
				p.Rules = Rules{}
			},
		},
		{
			name: "reserved type validates structurally",
			mutate: func(p *Promotion) {
				p.Type = TypeFlashSale
				p.Rules = Rules{}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPromotion()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidateNewRequiresFutureEnd(t *testing.T) {
	p := validPromotion()
	p.StartDate = testNow.AddDate(0, -2, 0)
	p.EndDate = testNow.AddDate(0, -1, 0)

	err := p.ValidateNew(testNow)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)
}

func TestValidateNewAcceptsFutureWindow(t *testing.T) {
	p := validPromotion()
	assert.NoError(t, p.ValidateNew(testNow))
}
