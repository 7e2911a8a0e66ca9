package promotion

import (
	"time"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/cart"
)

// IsApplicable decides whether the promotion's conditions hold for the given
// cart at the given time. All checks use AND semantics and the call has no
// side effects.
//
// userID may be empty for anonymous/automatic evaluation; in that case a
// configured per-user cap makes the promotion not applicable to the request
// rather than silently passing.
func (p *Promotion) IsApplicable(userID string, snapshot cart.Snapshot, now time.Time) bool {
	if p.Status != StatusActive || !p.IsActive {
		return false
	}
	if !p.WindowContains(now) {
		return false
	}

	c := p.Conditions

	if c.MinimumQuantity > 0 && snapshot.TotalQuantity() < c.MinimumQuantity {
		return false
	}

	if len(c.SpecificProducts) > 0 && !anyLineMatches(snapshot.Items, c.SpecificProducts, productKey) {
		return false
	}

	if len(c.Categories) > 0 && !anyLineMatches(snapshot.Items, c.Categories, categoryKey) {
		return false
	}

	if c.MaxUsesPerUser > 0 {
		if userID == "" {
			return false
		}
		if p.UsesByUser(userID) >= c.MaxUsesPerUser {
			return false
		}
	}

	if c.MaxTotalUses > 0 && p.TotalUses >= c.MaxTotalUses {
		return false
	}

	return true
}

func productKey(item cart.Item) string  { return item.ProductID }
func categoryKey(item cart.Item) string { return item.Category }

// anyLineMatches reports whether at least one cart line's key is in the
// allowed set.
func anyLineMatches(items []cart.Item, allowed []string, key func(cart.Item) string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	for _, item := range items {
		if _, ok := set[key(item)]; ok {
			return true
		}
	}
	return false
}

// applicableItems returns the cart lines matching the promotion's product
// and category filters. With no filter configured, every line applies.
func (p *Promotion) applicableItems(items []cart.Item) []cart.Item {
	products := p.Conditions.SpecificProducts
	categories := p.Conditions.Categories
	if len(products) == 0 && len(categories) == 0 {
		return items
	}

	productSet := make(map[string]struct{}, len(products))
	for _, id := range products {
		productSet[id] = struct{}{}
	}
	categorySet := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		categorySet[c] = struct{}{}
	}

	matched := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if _, ok := productSet[item.ProductID]; ok {
			matched = append(matched, item)
			continue
		}
		if _, ok := categorySet[item.Category]; ok {
			matched = append(matched, item)
		}
	}
	return matched
}
