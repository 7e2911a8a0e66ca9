package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

const promotionColumns = `id, name, description, type, status, target,
	start_date, end_date, conditions, rules,
	total_uses, total_discount_given, conversion_count, view_count,
	is_active, is_automatic, priority, auto_apply_to_cart,
	created_at, updated_at`

const (
	insertPromotionSQL = `INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	getPromotionSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	updatePromotionSQL = `UPDATE promotions SET
		name = $2, description = $3, type = $4, target = $5,
		start_date = $6, end_date = $7, conditions = $8, rules = $9,
		is_active = $10, is_automatic = $11, priority = $12,
		auto_apply_to_cart = $13, updated_at = $14
		WHERE id = $1`

	deletePromotionSQL = `DELETE FROM promotions WHERE id = $1 AND total_uses = 0`

	listAutomaticSQL = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE status = 'ACTIVE' AND is_active AND is_automatic
		  AND start_date <= $1 AND end_date > $1
		ORDER BY priority DESC, created_at`

	updatePromotionStatusSQL = `UPDATE promotions SET status = $2, updated_at = now() WHERE id = $1`

	incrementPromotionViewsSQL = `UPDATE promotions SET view_count = view_count + 1 WHERE id = $1`

	getUsagesSQL = `SELECT user_id, order_id, used_at, discount_amount, coupon_code
		FROM promotion_usages WHERE promotion_id = $1 ORDER BY used_at, id`

	// recordPromotionUsageSQL is the optimistic cap check: the counters move
	// only while both the global and per-user caps still hold, so two racing
	// redemptions cannot both get past an exhausted cap.
	recordPromotionUsageSQL = `UPDATE promotions SET
		total_uses = total_uses + 1,
		total_discount_given = total_discount_given + $2,
		conversion_count = conversion_count + 1,
		updated_at = now()
		WHERE id = $1
		  AND (COALESCE((conditions->>'max_total_uses')::int, 0) = 0
		       OR total_uses < (conditions->>'max_total_uses')::int)
		  AND (COALESCE((conditions->>'max_uses_per_user')::int, 0) = 0
		       OR ($3 <> ''
		           AND (SELECT count(*) FROM promotion_usages
		                WHERE promotion_id = $1 AND user_id = $3)
		               < (conditions->>'max_uses_per_user')::int))`

	insertPromotionUsageSQL = `INSERT INTO promotion_usages
		(promotion_id, user_id, order_id, used_at, discount_amount, coupon_code)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// Create persists a new promotion.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	conditions, rules, err := marshalPromotionDocs(p)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertPromotionSQL,
		p.ID, p.Name, p.Description, string(p.Type), string(p.Status), string(p.Target),
		p.StartDate, p.EndDate, conditions, rules,
		p.TotalUses, p.TotalDiscountGiven, p.ConversionCount, p.ViewCount,
		p.IsActive, p.IsAutomatic, p.Priority, p.AutoApplyToCart,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating promotion %q: %w", p.ID, err)
	}
	return nil
}

// GetByID loads a promotion with its full usage history.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, getPromotionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding promotion %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("finding promotion %q: %w", id, err)
	}
	if err := r.loadUsageHistory(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update persists changes to a promotion's mutable fields. Status and
// counters are owned by UpdateStatus and RecordUsage.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	conditions, rules, err := marshalPromotionDocs(p)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updatePromotionSQL,
		p.ID, p.Name, p.Description, string(p.Type), string(p.Target),
		p.StartDate, p.EndDate, conditions, rules,
		p.IsActive, p.IsAutomatic, p.Priority, p.AutoApplyToCart, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// Delete removes a never-used promotion. Once usage is recorded the
// promotion is immutable for deletion and ErrInUse is returned.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deletePromotionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting promotion %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return promotion.ErrInUse
	}
	return nil
}

// List returns promotions matching the filter, newest first.
func (r *PromotionRepository) List(ctx context.Context, filter promotion.ListFilter) ([]*promotion.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
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
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// ListAutomatic returns the active automatic promotions whose window
// contains now, ordered by priority descending. Usage history is loaded for
// promotions carrying a per-user cap, since the applicability filter reads it.
func (r *PromotionRepository) ListAutomatic(ctx context.Context, now time.Time) ([]*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listAutomaticSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing automatic promotions: %w", err)
	}
	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("listing automatic promotions: %w", err)
	}
	for _, p := range promos {
		if p.Conditions.MaxUsesPerUser > 0 {
			if err := r.loadUsageHistory(ctx, p); err != nil {
				return nil, err
			}
		}
	}
	return promos, nil
}

// UpdateStatus persists an already-validated status change.
func (r *PromotionRepository) UpdateStatus(ctx context.Context, id string, status promotion.Status) error {
	tag, err := r.pool.Exec(ctx, updatePromotionStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of promotion %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// RecordUsage appends the usage record and bumps the counters in one
// transaction. The counter update is conditional on the caps still holding;
// losing that race yields ErrUsageLimitReached and nothing is written.
func (r *PromotionRepository) RecordUsage(ctx context.Context, usage promotion.Usage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning usage transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, recordPromotionUsageSQL,
		usage.PromotionID, usage.DiscountAmount, usage.UserID)
	if err != nil {
		return fmt.Errorf("incrementing usage of promotion %q: %w", usage.PromotionID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, usage.PromotionID); getErr != nil {
			return getErr
		}
		return promotion.ErrUsageLimitReached
	}

	_, err = tx.Exec(ctx, insertPromotionUsageSQL,
		usage.PromotionID, usage.UserID, usage.OrderID,
		usage.UsedAt, usage.DiscountAmount, usage.CouponCode)
	if err != nil {
		return fmt.Errorf("appending usage of promotion %q: %w", usage.PromotionID, err)
	}

	return tx.Commit(ctx)
}

// IncrementViews bumps the view counter.
func (r *PromotionRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, incrementPromotionViewsSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing views of promotion %q: %w", id, err)
	}
	return nil
}

// ActivateDue implements lifecycle.PromotionStore: DRAFT promotions whose
// window has opened become ACTIVE. Keyed on the explicit instant, so the
// sweep is idempotent.
func (r *PromotionRepository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE promotions SET status = 'ACTIVE', updated_at = $1
		 WHERE status = 'DRAFT' AND is_active AND start_date <= $1 AND end_date > $1`, now)
	if err != nil {
		return 0, fmt.Errorf("activating due promotions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireOverdue implements lifecycle.PromotionStore: ACTIVE and PAUSED
// promotions whose window has closed become EXPIRED.
func (r *PromotionRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE promotions SET status = 'EXPIRED', updated_at = $1
		 WHERE status IN ('ACTIVE', 'PAUSED') AND end_date <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expiring overdue promotions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PromotionRepository) loadUsageHistory(ctx context.Context, p *promotion.Promotion) error {
	rows, err := r.pool.Query(ctx, getUsagesSQL, p.ID)
	if err != nil {
		return fmt.Errorf("loading usage history of promotion %q: %w", p.ID, err)
	}
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (promotion.UsageRecord, error) {
		var u promotion.UsageRecord
		err := row.Scan(&u.UserID, &u.OrderID, &u.UsedAt, &u.DiscountAmount, &u.CouponCode)
		return u, err
	})
	if err != nil {
		return fmt.Errorf("loading usage history of promotion %q: %w", p.ID, err)
	}
	p.UsageHistory = history
	return nil
}

func marshalPromotionDocs(p *promotion.Promotion) (conditions, rules []byte, err error) {
	conditions, err = json.Marshal(p.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling promotion conditions: %w", err)
	}
	rules, err = json.Marshal(p.Rules)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling promotion rules: %w", err)
	}
	return conditions, rules, nil
}

func scanPromotion(row pgx.CollectableRow) (*promotion.Promotion, error) {
	var (
		p                 promotion.Promotion
		typ, status, tgt  string
		conditions, rules []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &typ, &status, &tgt,
		&p.StartDate, &p.EndDate, &conditions, &rules,
		&p.TotalUses, &p.TotalDiscountGiven, &p.ConversionCount, &p.ViewCount,
		&p.IsActive, &p.IsAutomatic, &p.Priority, &p.AutoApplyToCart,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Type = promotion.Type(typ)
	p.Status = promotion.Status(status)
	p.Target = promotion.Target(tgt)
	if err := json.Unmarshal(conditions, &p.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshaling promotion conditions: %w", err)
	}
	if err := json.Unmarshal(rules, &p.Rules); err != nil {
		return nil, fmt.Errorf("unmarshaling promotion rules: %w", err)
	}
	return &p, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
