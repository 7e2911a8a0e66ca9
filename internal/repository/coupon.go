package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
)

const couponColumns = `id, code, name, description, type, status, promotion_id,
	max_uses, max_uses_per_user, minimum_purchase_amount,
	requires_minimum_items, minimum_items, specific_user_id,
	valid_from, valid_until, is_active,
	total_uses, total_discount_given, view_count,
	attempt_count, success_count, failure_count,
	created_at, updated_at`

const (
	insertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE code = UPPER($1)`

	listCouponCodesSQL = `SELECT code FROM coupons`

	updateCouponStatusSQL = `UPDATE coupons SET status = $2, updated_at = now() WHERE code = $1`

	getCouponUsagesSQL = `SELECT user_id, order_id, used_at, discount_amount
		FROM coupon_usages WHERE coupon_code = $1 ORDER BY used_at, id`

	// recordCouponUsageSQL asserts at write time that the coupon is still
	// ACTIVE and both caps hold, flipping SINGLE_USE coupons to USED in the
	// same statement. Racing redemptions cannot over-redeem a scarce cap.
	recordCouponUsageSQL = `UPDATE coupons SET
		total_uses = total_uses + 1,
		total_discount_given = total_discount_given + $2,
		success_count = success_count + 1,
		status = CASE WHEN $4 THEN 'USED' ELSE status END,
		updated_at = now()
		WHERE code = $1
		  AND status = 'ACTIVE'
		  AND (max_uses = 0 OR total_uses < max_uses)
		  AND (max_uses_per_user = 0
		       OR ($3 <> '' AND (SELECT count(*) FROM coupon_usages
		           WHERE coupon_code = $1 AND user_id = $3) < max_uses_per_user))`

	insertCouponUsageSQL = `INSERT INTO coupon_usages
		(coupon_code, user_id, order_id, used_at, discount_amount)
		VALUES ($1, $2, $3, $4, $5)`

	incrementCouponViewsSQL = `UPDATE coupons SET view_count = view_count + 1 WHERE code = $1`

	recordAttemptSQL = `UPDATE coupons SET
		attempt_count = attempt_count + 1,
		failure_count = failure_count + CASE WHEN $2 THEN 0 ELSE 1 END
		WHERE code = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create persists a new coupon, mapping unique violations on the code to
// coupon.ErrDuplicateCode.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL, couponArgs(c)...)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// CreateBatch inserts the coupons, skipping codes that already exist, and
// returns the codes actually inserted.
func (r *CouponRepository) CreateBatch(ctx context.Context, coupons []*coupon.Coupon) ([]string, error) {
	if len(coupons) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(insertCouponSQL+" ON CONFLICT (code) DO NOTHING", couponArgs(c)...)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	inserted := make([]string, 0, len(coupons))
	for _, c := range coupons {
		tag, err := results.Exec()
		if err != nil {
			return nil, fmt.Errorf("batch inserting coupon %q: %w", c.Code, err)
		}
		if tag.RowsAffected() > 0 {
			inserted = append(inserted, c.Code)
		}
	}
	return inserted, nil
}

// GetByCode loads a coupon (case-insensitive code) with its usage history.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	usageRows, err := r.pool.Query(ctx, getCouponUsagesSQL, c.Code)
	if err != nil {
		return nil, fmt.Errorf("loading usage history of coupon %q: %w", c.Code, err)
	}
	c.UsageHistory, err = pgx.CollectRows(usageRows, func(row pgx.CollectableRow) (coupon.UsageRecord, error) {
		var u coupon.UsageRecord
		err := row.Scan(&u.UserID, &u.OrderID, &u.UsedAt, &u.DiscountAmount)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("loading usage history of coupon %q: %w", c.Code, err)
	}
	return c, nil
}

// List returns coupons matching the filter, newest first.
func (r *CouponRepository) List(ctx context.Context, filter coupon.ListFilter) ([]*coupon.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.PromotionID != "" {
		args = append(args, filter.PromotionID)
		query += fmt.Sprintf(" AND promotion_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// ListCodes returns every existing coupon code.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
}

// UpdateStatus persists a coupon status change.
func (r *CouponRepository) UpdateStatus(ctx context.Context, code string, status coupon.Status) error {
	tag, err := r.pool.Exec(ctx, updateCouponStatusSQL, code, string(status))
	if err != nil {
		return fmt.Errorf("updating status of coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// RecordUsage appends the usage record and bumps the counters in one
// transaction, conditional on the caps still holding at write time.
func (r *CouponRepository) RecordUsage(ctx context.Context, usage coupon.Usage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning usage transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, recordCouponUsageSQL,
		usage.Code, usage.DiscountAmount, usage.UserID, usage.SingleUse)
	if err != nil {
		return fmt.Errorf("incrementing usage of coupon %q: %w", usage.Code, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByCode(ctx, usage.Code); getErr != nil {
			return getErr
		}
		return coupon.ErrLimitReached
	}

	_, err = tx.Exec(ctx, insertCouponUsageSQL,
		usage.Code, usage.UserID, usage.OrderID, usage.UsedAt, usage.DiscountAmount)
	if err != nil {
		return fmt.Errorf("appending usage of coupon %q: %w", usage.Code, err)
	}

	return tx.Commit(ctx)
}

// IncrementViews bumps the view counter.
func (r *CouponRepository) IncrementViews(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponViewsSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing views of coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// RecordAttempt bumps the attempt counter and the failure counter on
// unsuccessful attempts. Success counters move with RecordUsage.
func (r *CouponRepository) RecordAttempt(ctx context.Context, code string, success bool) error {
	_, err := r.pool.Exec(ctx, recordAttemptSQL, code, success)
	if err != nil {
		return fmt.Errorf("recording attempt on coupon %q: %w", code, err)
	}
	return nil
}

// ExpireOverdue implements lifecycle.CouponStore: ACTIVE coupons past their
// valid-until become EXPIRED.
func (r *CouponRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET status = 'EXPIRED', updated_at = $1
		 WHERE status = 'ACTIVE' AND valid_until <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expiring overdue coupons: %w", err)
	}
	return tag.RowsAffected(), nil
}

func couponArgs(c *coupon.Coupon) []any {
	return []any{
		c.ID, c.Code, c.Name, c.Description, string(c.Type), string(c.Status), c.PromotionID,
		c.MaxUses, c.MaxUsesPerUser, c.MinimumPurchaseAmount,
		c.RequiresMinimumItems, c.MinimumItems, c.SpecificUserID,
		c.ValidFrom, c.ValidUntil, c.IsActive,
		c.TotalUses, c.TotalDiscountGiven, c.ViewCount,
		c.AttemptCount, c.SuccessCount, c.FailureCount,
		c.CreatedAt, c.UpdatedAt,
	}
}

func scanCoupon(row pgx.CollectableRow) (*coupon.Coupon, error) {
	var (
		c           coupon.Coupon
		typ, status string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.Description, &typ, &status, &c.PromotionID,
		&c.MaxUses, &c.MaxUsesPerUser, &c.MinimumPurchaseAmount,
		&c.RequiresMinimumItems, &c.MinimumItems, &c.SpecificUserID,
		&c.ValidFrom, &c.ValidUntil, &c.IsActive,
		&c.TotalUses, &c.TotalDiscountGiven, &c.ViewCount,
		&c.AttemptCount, &c.SuccessCount, &c.FailureCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Type = coupon.Type(typ)
	c.Status = coupon.Status(status)
	return &c, nil
}
