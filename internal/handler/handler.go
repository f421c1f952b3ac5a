// Package handler implements the gRPC Scorer service.
package handler

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/batch"
	"github.com/fiberseq/m6a-service/internal/cache"
	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/metrics"
	"github.com/fiberseq/m6a-service/internal/middleware"
	"github.com/fiberseq/m6a-service/internal/model"
	"github.com/fiberseq/m6a-service/internal/precision"
	"github.com/fiberseq/m6a-service/internal/scorepb"
)

// Handler implements the ScorerServer interface.
type Handler struct {
	scorepb.UnimplementedScorerServer
	scorer *batch.Scorer
	label  string
	table  *precision.Table
	cache  *cache.Cache
}

// New creates a new Handler scoring with scorer. table and cache are optional:
// without a table no precision levels are returned, without a cache every window
// goes through the model.
func New(scorer *batch.Scorer, table *precision.Table, cache *cache.Cache) *Handler {
	h := &Handler{scorer: scorer, table: table, cache: cache}
	if scorer != nil {
		h.label = model.Resolve(scorer.Config).Label
	}
	return h
}

// Score handles a batch of windows.
func (h *Handler) Score(ctx context.Context, req *scorepb.ScoreRequest) (*scorepb.ScoreResponse, error) {
	start := time.Now()

	// Get request ID for logging
	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = "unknown"
	}

	if req == nil {
		return nil, invalidArgumentError("request cannot be nil")
	}
	if h.scorer == nil {
		return nil, failedPreconditionError("inference engine not initialized")
	}
	count := int(req.Count)
	if err := inference.CheckShape(req.Windows, count); err != nil {
		return nil, grpcError(err)
	}

	scores, cached := h.cachedScores(ctx, requestID, req.Windows, count)

	// Score the windows the cache didn't have, packed contiguously.
	var missing []int
	for i := 0; i < count; i++ {
		if !cached[i] {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		windows := req.Windows
		if len(missing) < count {
			windows = make([]float32, 0, len(missing)*model.WindowSize)
			for _, i := range missing {
				windows = append(windows, req.Windows[i*model.WindowSize:(i+1)*model.WindowSize]...)
			}
		}
		inferStart := time.Now()
		fresh, err := h.scorer.ScoreAll(ctx, windows, len(missing))
		if err != nil {
			klog.Errorf("[%s] Inference error: %v", requestID, err)
			return nil, grpcError(err)
		}
		klog.V(1).Infof("[%s] Scored %d windows in %.2fms", requestID, len(missing),
			float64(time.Since(inferStart).Microseconds())/1000.0)
		for j, i := range missing {
			scores[i] = fresh[j]
		}
		h.storeScores(ctx, requestID, windows, fresh)
	}

	resp := &scorepb.ScoreResponse{
		Scores:        scores,
		Model:         h.label,
		CachedWindows: int32(count - len(missing)),
	}
	if h.table != nil {
		resp.Precision = make([]uint32, count)
		for i, s := range scores {
			resp.Precision[i] = uint32(h.table.Lookup(s))
		}
	}

	klog.V(1).Infof("[%s] Score: windows=%d, cached=%d, total_ms=%.2f",
		requestID, count, resp.CachedWindows, float64(time.Since(start).Microseconds())/1000.0)
	return resp, nil
}

// cachedScores returns the scores found in the cache. Cache failures count as misses.
func (h *Handler) cachedScores(ctx context.Context, requestID string, windows []float32, count int) ([]float32, []bool) {
	if h.cache == nil {
		return make([]float32, count), make([]bool, count)
	}
	scores, found, err := h.cache.GetScores(ctx, cache.Keys(h.label, windows, count))
	if err != nil {
		klog.Warningf("[%s] Score cache lookup failed: %v", requestID, err)
		metrics.RecordCacheLookups(0, 0, count)
		return make([]float32, count), make([]bool, count)
	}
	hits := 0
	for _, f := range found {
		if f {
			hits++
		}
	}
	metrics.RecordCacheLookups(hits, count-hits, 0)
	return scores, found
}

func (h *Handler) storeScores(ctx context.Context, requestID string, windows []float32, scores []float32) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetScores(ctx, cache.Keys(h.label, windows, len(scores)), scores); err != nil {
		klog.Warningf("[%s] Score cache update failed: %v", requestID, err)
	}
}
