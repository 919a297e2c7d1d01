package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/smes-pos/smes-backend/internal/inventory"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

type expiredRemover interface {
	RemoveExpiredProducts(ctx context.Context, now time.Time) (*inventory.ExpiredRemovalResult, error)
}

// ExpiredProductsJob zeroes the stock of every expired product, logging one
// adjustment per product.
type ExpiredProductsJob struct {
	logg      *logger.Logger
	inventory expiredRemover
	now       func() time.Time
}

func NewExpiredProductsJob(logg *logger.Logger, inv expiredRemover) (*ExpiredProductsJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &ExpiredProductsJob{logg: logg, inventory: inv, now: time.Now}, nil
}

func (j *ExpiredProductsJob) Name() string { return "expired-products" }

func (j *ExpiredProductsJob) Run(ctx context.Context) error {
	result, err := j.inventory.RemoveExpiredProducts(ctx, j.now().UTC())
	removed := 0
	if result != nil {
		removed = len(result.Removed)
	}
	failures := multierr.Errors(err)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"removed": removed,
		"failed":  len(failures),
	}), "cron.expired_products")

	return err
}
