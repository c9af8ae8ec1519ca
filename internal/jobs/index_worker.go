package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/nutrikb/internal/logger"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/cloo-solutions/nutrikb/internal/telemetry"
)

// IndexBuilder embeds chunks that have no vector yet.
type IndexBuilder interface {
	BuildIndex(ctx context.Context, batchSize int) (*service.IndexResult, error)
}

// IndexProcessor catches the index up with newly ingested chunks on every
// tick. A failed run leaves the remaining chunks for the next one.
type IndexProcessor struct {
	builder   IndexBuilder
	batchSize int
}

func NewIndexProcessor(builder IndexBuilder, batchSize int) *IndexProcessor {
	return &IndexProcessor{builder: builder, batchSize: batchSize}
}

func (p *IndexProcessor) ProcessJobs(ctx context.Context) error {
	result, err := p.builder.BuildIndex(ctx, p.batchSize)
	if err != nil {
		if errors.Is(err, context.Canceled) && result != nil {
			logger.Info("index run interrupted", "embedded", result.Embedded, "remaining", result.Remaining)
			return nil
		}
		if result != nil {
			return fmt.Errorf("index run stopped after %d chunks, %d remaining: %w", result.Embedded, result.Remaining, err)
		}
		return err
	}

	if result.Embedded > 0 {
		telemetry.AddBreadcrumb(ctx, "index", fmt.Sprintf("embedded %d chunks", result.Embedded))
		logger.Info("index updated", "embedded", result.Embedded, "total", result.Total)
	}
	return nil
}
