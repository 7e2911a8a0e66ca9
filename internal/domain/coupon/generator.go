package coupon

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

const (
	// MaxBatchSize caps a single bulk-generation call.
	MaxBatchSize = 1000
	// maxRetriesPerCode bounds collision retries for one code. Exceeding it
	// fails that code, not the whole batch.
	maxRetriesPerCode = 10

	codeAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	generatedCodeLen  = 10
	bloomCapacity     = 1_000_000
	bloomFalsePosRate = 0.001
)

// ErrBatchTooLarge is returned when a bulk request exceeds MaxBatchSize.
var ErrBatchTooLarge = errors.Errorf("batch size exceeds maximum of %d", MaxBatchSize)

// BatchRequest describes a bulk coupon generation call. Every generated
// coupon shares the template fields and gets its own random code.
type BatchRequest struct {
	Count          int
	Prefix         string
	PromotionID    string
	Name           string
	Type           Type
	MaxUses        int
	MaxUsesPerUser int
	ValidFrom      time.Time
	ValidUntil     time.Time
}

// Generator creates batches of coupons with collision-avoided random codes.
// A bloom filter seeded from existing codes pre-checks collisions cheaply;
// the database unique constraint remains the authority.
type Generator struct {
	repo   Repository
	now    func() time.Time
	filter *bloom.BloomFilter
}

// NewGenerator creates a Generator. Seed must be called before the first
// batch to load existing codes into the prefilter.
func NewGenerator(repo Repository) *Generator {
	return &Generator{
		repo:   repo,
		now:    time.Now,
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFalsePosRate),
	}
}

// Seed loads every existing coupon code into the collision prefilter.
func (g *Generator) Seed(ctx context.Context) error {
	codes, err := g.repo.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list existing codes")
	}
	for _, code := range codes {
		g.filter.AddString(code)
	}
	return nil
}

// Generate creates up to req.Count coupons. Codes that exhaust their retry
// bound are skipped; the returned slice holds the coupons actually created.
func (g *Generator) Generate(ctx context.Context, req BatchRequest) ([]*Coupon, error) {
	if req.Count <= 0 {
		return nil, errors.New("batch count must be positive")
	}
	if req.Count > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	if req.PromotionID == "" {
		return nil, errors.New("promotion id is required")
	}
	// Every generated code must clear the same format rule as a hand-made
	// one, so a bad prefix is rejected before any code is drawn.
	req.Prefix = NormalizeCode(req.Prefix)
	if req.Prefix != "" {
		if !ValidCode(req.Prefix) {
			return nil, &ValidationError{Field: "prefix", Reason: "must be letters and digits only"}
		}
		if len(req.Prefix) > MaxCodeLength-generatedCodeLen {
			return nil, &ValidationError{Field: "prefix", Reason: "leaves no room for the random suffix"}
		}
	}

	now := g.now()
	batch := make([]*Coupon, 0, req.Count)
	for range req.Count {
		code, ok := g.nextCode(req.Prefix)
		if !ok {
			continue
		}
		g.filter.AddString(code)
		batch = append(batch, &Coupon{
			ID:             uuid.New().String(),
			Code:           code,
			Name:           req.Name,
			Type:           req.Type,
			Status:         StatusActive,
			PromotionID:    req.PromotionID,
			MaxUses:        req.MaxUses,
			MaxUsesPerUser: req.MaxUsesPerUser,
			ValidFrom:      req.ValidFrom,
			ValidUntil:     req.ValidUntil,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	inserted, err := g.repo.CreateBatch(ctx, batch)
	if err != nil {
		return nil, errors.Wrap(err, "insert coupon batch")
	}

	insertedSet := make(map[string]struct{}, len(inserted))
	for _, code := range inserted {
		insertedSet[code] = struct{}{}
	}
	created := batch[:0]
	for _, c := range batch {
		if _, ok := insertedSet[c.Code]; ok {
			created = append(created, c)
		}
	}
	return created, nil
}

// nextCode draws random codes until one clears the prefilter or the retry
// bound is exhausted.
func (g *Generator) nextCode(prefix string) (string, bool) {
	for range maxRetriesPerCode {
		code := prefix + randomCode(generatedCodeLen)
		if !g.filter.TestString(code) {
			return code, true
		}
	}
	return "", false
}

// randomCode returns n random characters from the code alphabet, using
// crypto/rand to keep codes unguessable.
func randomCode(n int) string {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a UUID-derived character.
			buf[i] = codeAlphabet[uuid.New().ID()%uint32(len(codeAlphabet))]
			continue
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf)
}
