package promotion

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/cart"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Discount is the monetary effect of one evaluated promotion.
type Discount struct {
	Amount          decimal.Decimal
	AffectedLineIDs []string
	Description     string
	// FreeShipping signals the shipping collaborator to zero the shipping
	// cost; the evaluator itself never computes shipping.
	FreeShipping bool
}

// Evaluate computes the discount the promotion yields for the cart. The
// dispatch is exhaustive over the evaluated types; reserved or unknown types
// fail soft with a zero discount and an explanatory description. The
// universal clamps are applied to every computed amount.
func (p *Promotion) Evaluate(snapshot cart.Snapshot) Discount {
	var d Discount
	switch p.Type {
	case TypePercentage:
		d = p.evaluatePercentage(snapshot)
	case TypeFixedAmount:
		d = p.evaluateFixedAmount(snapshot)
	case TypeFreeShipping:
		d = p.evaluateFreeShipping(snapshot)
	case TypeBuyXGetY:
		d = p.evaluateBuyXGetY(snapshot)
	case TypeQuantityTiered:
		d = p.evaluateQuantityTiered(snapshot)
	case TypeCategory:
		d = p.evaluateCategory(snapshot)
	case TypeMinimumPurchase:
		d = p.evaluateMinimumPurchase(snapshot)
	default:
		return Discount{
			Amount:      zero,
			Description: fmt.Sprintf("%s: promotion type %s is not supported yet", p.Name, p.Type),
		}
	}
	return p.clamp(d)
}

// clamp applies the universal max/min clamps. Exceeding the max caps the
// amount and annotates the description; falling below the min zeroes the
// discount entirely.
func (p *Promotion) clamp(d Discount) Discount {
	if p.Rules.MaxDiscountAmount.IsPositive() && d.Amount.GreaterThan(p.Rules.MaxDiscountAmount) {
		d.Amount = p.Rules.MaxDiscountAmount
		d.Description = fmt.Sprintf("%s (capped at %s)", d.Description, p.Rules.MaxDiscountAmount.StringFixed(2))
	}
	if p.Rules.MinDiscountAmount.IsPositive() && d.Amount.LessThan(p.Rules.MinDiscountAmount) {
		d.Amount = zero
		d.AffectedLineIDs = nil
	}
	return d
}

func (p *Promotion) evaluatePercentage(snapshot cart.Snapshot) Discount {
	if p.Rules.Percentage == nil {
		return Discount{Description: fmt.Sprintf("%s: missing percentage configuration", p.Name)}
	}
	items := p.applicableItems(snapshot.Items)
	subtotal := subtotalOf(items)

	amount := subtotal.Mul(p.Rules.Percentage.Percentage).Div(hundred)
	amount = floorAtZero(amount)

	return Discount{
		Amount:          amount,
		AffectedLineIDs: lineIDs(items),
		Description:     fmt.Sprintf("%s: %s%% off", p.Name, p.Rules.Percentage.Percentage),
	}
}

func (p *Promotion) evaluateFixedAmount(snapshot cart.Snapshot) Discount {
	if p.Rules.FixedAmount == nil {
		return Discount{Description: fmt.Sprintf("%s: missing fixed amount configuration", p.Name)}
	}
	amount := decimal.Min(p.Rules.FixedAmount.DiscountAmount, snapshot.Total)
	amount = floorAtZero(amount)

	return Discount{
		Amount:          amount,
		AffectedLineIDs: lineIDs(snapshot.Items),
		Description:     fmt.Sprintf("%s: %s off", p.Name, p.Rules.FixedAmount.DiscountAmount.StringFixed(2)),
	}
}

func (p *Promotion) evaluateFreeShipping(snapshot cart.Snapshot) Discount {
	return Discount{
		Amount:          zero,
		AffectedLineIDs: lineIDs(snapshot.Items),
		Description:     fmt.Sprintf("%s: free shipping", p.Name),
		FreeShipping:    true,
	}
}

// evaluateBuyXGetY groups applicable lines by product. Each full set of
// buy+get units earns getQty discounted units; remainder units beyond the
// last full set are charged at full price.
func (p *Promotion) evaluateBuyXGetY(snapshot cart.Snapshot) Discount {
	params := p.Rules.BuyXGetY
	if params == nil || params.BuyQuantity <= 0 || params.GetQuantity <= 0 {
		return Discount{Description: fmt.Sprintf("%s: missing buy-x-get-y configuration", p.Name)}
	}
	setSize := params.BuyQuantity + params.GetQuantity

	items := p.applicableItems(snapshot.Items)

	type productGroup struct {
		quantity  int
		unitPrice decimal.Decimal
		lineIDs   []string
	}
	groups := make(map[string]*productGroup)
	order := make([]string, 0, len(items))
	for _, item := range items {
		g, ok := groups[item.ProductID]
		if !ok {
			g = &productGroup{unitPrice: item.UnitPrice}
			groups[item.ProductID] = g
			order = append(order, item.ProductID)
		}
		g.quantity += item.Quantity
		g.lineIDs = append(g.lineIDs, item.LineID)
	}

	amount := zero
	var affected []string
	for _, id := range order {
		g := groups[id]
		sets := g.quantity / setSize
		if sets == 0 {
			continue
		}
		freeUnits := decimal.NewFromInt(int64(sets * params.GetQuantity))
		contribution := freeUnits.Mul(g.unitPrice).Mul(params.GetDiscountPercentage).Div(hundred)
		amount = amount.Add(contribution)
		affected = append(affected, g.lineIDs...)
	}

	return Discount{
		Amount:          floorAtZero(amount),
		AffectedLineIDs: affected,
		Description: fmt.Sprintf("%s: buy %d get %d at %s%% off",
			p.Name, params.BuyQuantity, params.GetQuantity, params.GetDiscountPercentage),
	}
}

// evaluateQuantityTiered picks the tier with the highest threshold not
// exceeding the total applicable quantity. Percentage tiers apply to the
// applicable subtotal; fixed tiers apply the flat value once.
func (p *Promotion) evaluateQuantityTiered(snapshot cart.Snapshot) Discount {
	if len(p.Rules.QuantityTiers) == 0 {
		return Discount{Description: fmt.Sprintf("%s: missing tier configuration", p.Name)}
	}

	items := p.applicableItems(snapshot.Items)
	totalQty := 0
	for _, item := range items {
		totalQty += item.Quantity
	}

	tiers := make([]QuantityTier, len(p.Rules.QuantityTiers))
	copy(tiers, p.Rules.QuantityTiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinQuantity > tiers[j].MinQuantity })

	var chosen *QuantityTier
	for i := range tiers {
		if totalQty >= tiers[i].MinQuantity {
			chosen = &tiers[i]
			break
		}
	}
	if chosen == nil {
		return Discount{
			Amount:      zero,
			Description: fmt.Sprintf("%s: cart quantity %d below lowest tier", p.Name, totalQty),
		}
	}

	var amount decimal.Decimal
	if chosen.IsPercentage {
		amount = subtotalOf(items).Mul(chosen.DiscountValue).Div(hundred)
	} else {
		amount = chosen.DiscountValue
	}

	return Discount{
		Amount:          floorAtZero(amount),
		AffectedLineIDs: lineIDs(items),
		Description:     fmt.Sprintf("%s: tier discount for %d+ items", p.Name, chosen.MinQuantity),
	}
}

func (p *Promotion) evaluateCategory(snapshot cart.Snapshot) Discount {
	params := p.Rules.Category
	if params == nil || len(params.Categories) == 0 {
		return Discount{Description: fmt.Sprintf("%s: missing category configuration", p.Name)}
	}

	set := make(map[string]struct{}, len(params.Categories))
	for _, c := range params.Categories {
		set[c] = struct{}{}
	}

	matched := make([]cart.Item, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		if _, ok := set[item.Category]; ok {
			matched = append(matched, item)
		}
	}

	amount := subtotalOf(matched).Mul(params.Percentage).Div(hundred)

	return Discount{
		Amount:          floorAtZero(amount),
		AffectedLineIDs: lineIDs(matched),
		Description:     fmt.Sprintf("%s: %s%% off selected categories", p.Name, params.Percentage),
	}
}

func (p *Promotion) evaluateMinimumPurchase(snapshot cart.Snapshot) Discount {
	params := p.Rules.MinimumPurchase
	if params == nil {
		return Discount{Description: fmt.Sprintf("%s: missing minimum purchase configuration", p.Name)}
	}

	threshold := p.Conditions.MinimumPurchaseAmount
	if snapshot.Total.LessThan(threshold) {
		return Discount{
			Amount: zero,
			Description: fmt.Sprintf("%s: cart total below minimum purchase of %s",
				p.Name, threshold.StringFixed(2)),
		}
	}

	var amount decimal.Decimal
	if params.DiscountAmount.IsPositive() {
		amount = decimal.Min(params.DiscountAmount, snapshot.Total)
	} else {
		amount = snapshot.Total.Mul(params.DiscountPercentage).Div(hundred)
	}

	return Discount{
		Amount:          floorAtZero(amount),
		AffectedLineIDs: lineIDs(snapshot.Items),
		Description:     fmt.Sprintf("%s: minimum purchase discount", p.Name),
	}
}

// subtotalOf returns the sum of unit price * quantity across items.
func subtotalOf(items []cart.Item) decimal.Decimal {
	sum := zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

func lineIDs(items []cart.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.LineID
	}
	return ids
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
