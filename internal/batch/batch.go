// Package batch splits large window buffers into sub-batches and scores them on a
// bounded pool of goroutines.
package batch

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/model"
)

// DefaultBatchSize is the number of windows per forward pass when none is configured.
const DefaultBatchSize = 1024

// Scorer scores arbitrarily many windows, BatchSize at a time, with up to Workers
// forward passes in flight. The model itself runs single threaded per pass.
type Scorer struct {
	Predictor inference.Predictor
	Config    model.Configuration
	BatchSize int
	Workers   int
}

// New returns a Scorer; non-positive batchSize or workers take the defaults
// (DefaultBatchSize and runtime.NumCPU()).
func New(predictor inference.Predictor, cfg model.Configuration, batchSize, workers int) *Scorer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scorer{Predictor: predictor, Config: cfg, BatchSize: batchSize, Workers: workers}
}

// ScoreAll returns one score per window, index-aligned with windows. The first
// failing sub-batch cancels the ones not yet started and its error is returned.
func (s *Scorer) ScoreAll(ctx context.Context, windows []float32, count int) ([]float32, error) {
	if err := inference.CheckShape(windows, count); err != nil {
		return nil, err
	}
	scores := make([]float32, count)
	if count == 0 {
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	numBatches := (count + s.BatchSize - 1) / s.BatchSize
	klog.V(1).Infof("Scoring %d windows in %d batches of up to %d (%d workers)", count, numBatches, s.BatchSize, s.Workers)
	for start := 0; start < count; start += s.BatchSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+s.BatchSize, count)
		g.Go(func() error {
			sub := windows[start*model.WindowSize : end*model.WindowSize]
			batchScores, err := s.Predictor.Predict(gctx, sub, end-start, s.Config)
			if err != nil {
				return errors.WithMessagef(err, "windows [%d, %d)", start, end)
			}
			copy(scores[start:end], batchScores)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}
