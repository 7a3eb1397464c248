package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/couchcryptid/order-geo-service/internal/observability"
)

// BatchExtractor reads up to batchSize address requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Transformer resolves one raw address request. An error marks the message as
// poison: it is skipped and committed.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawMessage) (domain.ResolvedAddress, error)
}

// BatchLoader publishes resolved addresses to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []domain.ResolvedAddress) error
}

// Pipeline consumes address requests, resolves them through the geocoding
// cascade and publishes one ResolvedAddress per valid request.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	reachable   atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has completed a fetch from the
// source, or an error while it is still connecting.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.reachable.Load() {
		return errors.New("pipeline has not reached the source topic yet")
	}
	return nil
}

// Run resolves batches until ctx is cancelled. Source and sink failures are
// retried with exponential backoff and never end the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	retry := newBackoff(initialBackoff, maxBackoff)
	for ctx.Err() == nil && p.step(ctx, retry) {
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// step runs one fetch, resolve and publish cycle. It returns false when ctx
// ended during the cycle.
func (p *Pipeline) step(ctx context.Context, retry *backoff) bool {
	start := time.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("fetch address requests failed", "error", err, "retry_in", retry.delay())
		return retry.wait(ctx)
	}

	p.markReachable()
	if len(raws) == 0 {
		return ctx.Err() == nil
	}
	retry.reset()
	p.metrics.MessagesConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))

	b := p.resolveAll(ctx, raws)
	if len(b.results) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, b.results); err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("publish resolved addresses failed", "error", err,
			"batch_size", len(b.results), "retry_in", retry.delay())
		return retry.wait(ctx)
	}
	p.metrics.MessagesProduced.Add(float64(len(b.results)))

	for _, raw := range b.accepted {
		p.commit(ctx, raw)
	}
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug("batch published",
		"published", len(b.results), "unresolved", b.unresolved, "skipped", b.skipped)
	return true
}

// resolvedBatch holds the outcome of resolving one fetched batch. accepted
// lines up index for index with results; poison messages are already
// committed and appear in neither.
type resolvedBatch struct {
	results    []domain.ResolvedAddress
	accepted   []domain.RawMessage
	unresolved int
	skipped    int
}

func (p *Pipeline) resolveAll(ctx context.Context, raws []domain.RawMessage) resolvedBatch {
	b := resolvedBatch{
		results:  make([]domain.ResolvedAddress, 0, len(raws)),
		accepted: make([]domain.RawMessage, 0, len(raws)),
	}
	for _, raw := range raws {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.skipPoison(ctx, raw, err)
			b.skipped++
			continue
		}
		if !out.Resolved {
			b.unresolved++
		}
		b.results = append(b.results, out)
		b.accepted = append(b.accepted, raw)
	}
	return b
}

// skipPoison commits a request that can never be resolved so it is not
// redelivered.
func (p *Pipeline) skipPoison(ctx context.Context, raw domain.RawMessage, cause error) {
	p.logger.Warn("invalid address request, skipping message",
		"error", cause,
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
	)
	p.metrics.TransformErrors.Inc()
	p.commit(ctx, raw)
}

// markReachable flips readiness on the first completed fetch, empty or not.
func (p *Pipeline) markReachable() {
	if p.reachable.CompareAndSwap(false, true) {
		p.logger.Info("pipeline reached source topic")
	}
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
