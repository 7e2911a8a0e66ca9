// Command coupon-batch bulk-generates coupon codes for a promotion and
// writes them to a gzip-compressed file, one code per line. Generation goes
// through the same collision-avoided generator the API uses; the output file
// is meant for hand-off to marketing/distribution systems.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/repository"
)

func main() {
	var (
		databaseURL string
		promotionID string
		count       int
		prefix      string
		validDays   int
		maxUses     int
		output      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&promotionID, "promotion-id", "", "promotion the coupons redeem against")
	flag.IntVar(&count, "count", 100, "number of coupons to generate")
	flag.StringVar(&prefix, "prefix", "", "optional code prefix")
	flag.IntVar(&validDays, "valid-days", 30, "validity window in days starting now")
	flag.IntVar(&maxUses, "max-uses", 1, "max uses per generated coupon (0 = unlimited)")
	flag.StringVar(&output, "out", "coupons.txt.gz", "output file for generated codes")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" || promotionID == "" {
		slog.Error("both --database-url (or DATABASE_URL) and --promotion-id are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, promotionID, prefix, output, count, validDays, maxUses); err != nil {
		slog.Error("coupon batch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon batch completed", slog.Int("count", count), slog.String("out", output))
}

func run(ctx context.Context, databaseURL, promotionID, prefix, output string, count, validDays, maxUses int) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	repo := repository.NewCouponRepository(pool)
	gen := coupon.NewGenerator(repo)
	if err := gen.Seed(ctx); err != nil {
		return errors.Wrap(err, "seed generator")
	}

	f, err := os.Create(output)
	if err != nil {
		return errors.Wrapf(err, "create %s", output)
	}
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	buf := bufio.NewWriter(gz)

	now := time.Now()
	codes := make(chan string, coupon.MaxBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(codes)
		remaining := count
		for remaining > 0 {
			batchSize := remaining
			if batchSize > coupon.MaxBatchSize {
				batchSize = coupon.MaxBatchSize
			}
			created, err := gen.Generate(gctx, coupon.BatchRequest{
				Count:       batchSize,
				Prefix:      prefix,
				PromotionID: promotionID,
				Type:        coupon.TypeSingleUse,
				MaxUses:     maxUses,
				ValidFrom:   now,
				ValidUntil:  now.AddDate(0, 0, validDays),
			})
			if err != nil {
				return errors.Wrap(err, "generate batch")
			}
			for _, c := range created {
				select {
				case codes <- c.Code:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			remaining -= batchSize
		}
		return nil
	})
	g.Go(func() error {
		for code := range codes {
			if _, err := buf.WriteString(code + "\n"); err != nil {
				return errors.Wrap(err, "write code")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return errors.Wrap(err, "flush output")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip stream")
	}
	return f.Close()
}
