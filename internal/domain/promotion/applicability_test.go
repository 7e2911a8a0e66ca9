package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func activePromotion() *Promotion {
	return &Promotion{
		ID:        "promo-1",
		Name:      "Test Promo",
		Type:      TypePercentage,
		Status:    StatusActive,
		IsActive:  true,
		StartDate: testNow.AddDate(0, 0, -1),
		EndDate:   testNow.AddDate(0, 0, 1),
		Rules: Rules{
			Percentage: &PercentageParams{Percentage: dec("10")},
		},
	}
}

func TestIsApplicable(t *testing.T) {
	snap := snapshotOf(
		line("p1", "l1", "books", 2, "10.00"),
		line("p2", "l2", "toys", 1, "30.00"),
	)

	tests := []struct {
		name   string
		mutate func(*Promotion)
		userID string
		want   bool
	}{
		{
			name:   "all conditions hold",
			mutate: func(*Promotion) {},
			userID: "u1",
			want:   true,
		},
		{
			name:   "paused status",
			mutate: func(p *Promotion) { p.Status = StatusPaused },
			userID: "u1",
			want:   false,
		},
		{
			name:   "disabled flag",
			mutate: func(p *Promotion) { p.IsActive = false },
			userID: "u1",
			want:   false,
		},
		{
			name:   "before window",
			mutate: func(p *Promotion) { p.StartDate = testNow.Add(time.Hour) },
			userID: "u1",
			want:   false,
		},
		{
			name: "at end of window",
			mutate: func(p *Promotion) {
				p.EndDate = testNow
			},
			userID: "u1",
			want:   false,
		},
		{
			name: "at start of window",
			mutate: func(p *Promotion) {
				p.StartDate = testNow
			},
			userID: "u1",
			want:   true,
		},
		{
			name:   "minimum quantity not met",
			mutate: func(p *Promotion) { p.Conditions.MinimumQuantity = 4 },
			userID: "u1",
			want:   false,
		},
		{
			name:   "minimum quantity met",
			mutate: func(p *Promotion) { p.Conditions.MinimumQuantity = 3 },
			userID: "u1",
			want:   true,
		},
		{
			name:   "required product present",
			mutate: func(p *Promotion) { p.Conditions.SpecificProducts = []string{"p2", "p9"} },
			userID: "u1",
			want:   true,
		},
		{
			name:   "required product absent",
			mutate: func(p *Promotion) { p.Conditions.SpecificProducts = []string{"p9"} },
			userID: "u1",
			want:   false,
		},
		{
			name:   "required category present",
			mutate: func(p *Promotion) { p.Conditions.Categories = []string{"toys"} },
			userID: "u1",
			want:   true,
		},
		{
			name:   "required category absent",
			mutate: func(p *Promotion) { p.Conditions.Categories = []string{"garden"} },
			userID: "u1",
			want:   false,
		},
		{
			name: "per-user cap reached",
			mutate: func(p *Promotion) {
				p.Conditions.MaxUsesPerUser = 1
				p.UsageHistory = []UsageRecord{{UserID: "u1", OrderID: "o1", UsedAt: testNow}}
			},
			userID: "u1",
			want:   false,
		},
		{
			name: "per-user cap only counts that user",
			mutate: func(p *Promotion) {
				p.Conditions.MaxUsesPerUser = 1
				p.UsageHistory = []UsageRecord{{UserID: "other", OrderID: "o1", UsedAt: testNow}}
			},
			userID: "u1",
			want:   true,
		},
		{
			name:   "per-user cap with anonymous user",
			mutate: func(p *Promotion) { p.Conditions.MaxUsesPerUser = 1 },
			userID: "",
			want:   false,
		},
		{
			name: "global cap reached",
			mutate: func(p *Promotion) {
				p.Conditions.MaxTotalUses = 5
				p.TotalUses = 5
			},
			userID: "u1",
			want:   false,
		},
		{
			name: "global cap not reached",
			mutate: func(p *Promotion) {
				p.Conditions.MaxTotalUses = 5
				p.TotalUses = 4
			},
			userID: "u1",
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := activePromotion()
			tt.mutate(p)
			assert.Equal(t, tt.want, p.IsApplicable(tt.userID, snap, testNow))
		})
	}
}

func TestIsApplicableHasNoSideEffects(t *testing.T) {
	p := activePromotion()
	p.Conditions.MaxTotalUses = 10
	snap := snapshotOf(line("p1", "l1", "", 1, "10.00"))

	before := p.TotalUses
	for range 5 {
		p.IsApplicable("u1", snap, testNow)
	}
	assert.Equal(t, before, p.TotalUses)
	assert.Empty(t, p.UsageHistory)
}
