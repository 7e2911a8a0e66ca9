// Package lifecycle owns the time-driven status transitions of promotions
// and coupons: a periodic sweep that activates and expires entities based on
// their windows, and validation of administrator-requested transitions.
package lifecycle

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PromotionStore is the sweep surface over promotions. Both operations are
// conditional bulk updates keyed on the given instant, so re-running a sweep
// at the same time changes nothing.
type PromotionStore interface {
	// ActivateDue flips DRAFT promotions whose window has opened to ACTIVE.
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
	// ExpireOverdue flips ACTIVE/PAUSED promotions whose window has closed
	// to EXPIRED.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// CouponStore is the sweep surface over coupons.
type CouponStore interface {
	// ExpireOverdue flips ACTIVE coupons past their valid-until to EXPIRED.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper runs the periodic lifecycle sweep.
type Sweeper struct {
	promotions PromotionStore
	coupons    CouponStore
	interval   time.Duration
	lg         *zap.Logger
}

// NewSweeper creates a Sweeper. A non-positive interval falls back to the
// reference hourly cadence.
func NewSweeper(promotions PromotionStore, coupons CouponStore, interval time.Duration, lg *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		promotions: promotions,
		coupons:    coupons,
		interval:   interval,
		lg:         lg,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
// Sweep failures are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	if err := s.SweepAt(ctx, time.Now()); err != nil {
		s.lg.Error("lifecycle sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.SweepAt(ctx, now); err != nil {
				s.lg.Error("lifecycle sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepAt performs one sweep pass at the given instant. The explicit
// timestamp keeps the sweep deterministic and testable. The promotion and
// coupon passes run concurrently; the pass is idempotent.
func (s *Sweeper) SweepAt(ctx context.Context, now time.Time) error {
	var activated, expiredPromos, expiredCoupons int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.promotions.ActivateDue(gctx, now)
		if err != nil {
			return errors.Wrap(err, "activate due promotions")
		}
		activated = n

		n, err = s.promotions.ExpireOverdue(gctx, now)
		if err != nil {
			return errors.Wrap(err, "expire overdue promotions")
		}
		expiredPromos = n
		return nil
	})
	g.Go(func() error {
		n, err := s.coupons.ExpireOverdue(gctx, now)
		if err != nil {
			return errors.Wrap(err, "expire overdue coupons")
		}
		expiredCoupons = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if activated+expiredPromos+expiredCoupons > 0 {
		s.lg.Info("lifecycle sweep applied changes",
			zap.Int64("promotions_activated", activated),
			zap.Int64("promotions_expired", expiredPromos),
			zap.Int64("coupons_expired", expiredCoupons),
			zap.Time("at", now))
	}
	return nil
}
