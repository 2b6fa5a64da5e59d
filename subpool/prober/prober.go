package prober

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"subpilot/internal/shared/types"
	"subpilot/subpool/model"
)

// Prober tests descriptor reachability and assigns scores. An unreachable
// endpoint is not an error, it simply produces no result.
type Prober struct {
	timeout     time.Duration
	concurrency int64
	estimator   Estimator
	log         zerolog.Logger
}

func New(cfg types.ProbeConf, log zerolog.Logger) *Prober {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Prober{
		timeout:     timeout,
		concurrency: int64(cfg.Concurrency),
		estimator:   NewEstimator(cfg.Estimator, timeout),
		log:         log,
	}
}

// Test probes one descriptor. The boolean reports whether a result was
// produced; unreachable endpoints return (nil, false).
func (p *Prober) Test(ctx context.Context, d model.Descriptor) (*model.ProbeResult, bool) {
	dialer := net.Dialer{Timeout: p.timeout}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", d.Addr())
	if err != nil {
		p.log.Debug().Str("addr", d.Addr()).Str("protocol", string(d.Protocol)).Msg("Probe rejected.")
		return nil, false
	}
	conn.Close()

	latencyMs := float64(time.Since(start).Microseconds()) / 1000
	throughput := p.estimator.Estimate(ctx, d)

	return &model.ProbeResult{
		Descriptor: d,
		LatencyMs:  latencyMs,
		Throughput: throughput,
		Score:      model.Score(latencyMs, throughput),
		TestedAt:   time.Now(),
	}, true
}

// TestAll probes every descriptor concurrently, bounded by the configured
// worker budget, and joins before returning. Result order is unspecified;
// the selector imposes the deterministic order.
func (p *Prober) TestAll(ctx context.Context, descriptors []model.Descriptor) []*model.ProbeResult {
	if len(descriptors) == 0 {
		return nil
	}

	p.log.Info().
		Int("count", len(descriptors)).
		Int64("concurrency", p.concurrency).
		Str("estimator", p.estimator.Name()).
		Msg("Starting probe batch...")

	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(p.concurrency)
	resultChan := make(chan *model.ProbeResult, len(descriptors))

	for _, d := range descriptors {
		if err := sem.Acquire(ctx, 1); err != nil {
			p.log.Warn().Err(err).Msg("Probe batch abandoned before completion.")
			break
		}
		wg.Add(1)
		go func(d model.Descriptor) {
			defer wg.Done()
			defer sem.Release(1)
			if r, ok := p.Test(ctx, d); ok {
				resultChan <- r
			}
		}(d)
	}

	wg.Wait()
	close(resultChan)

	results := make([]*model.ProbeResult, 0, len(descriptors))
	for r := range resultChan {
		results = append(results, r)
	}

	p.log.Info().Int("tested", len(descriptors)).Int("reachable", len(results)).Msg("Probe batch finished.")
	return results
}
