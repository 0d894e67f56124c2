// Package ingestpipeline implements the ingest pipeline (spec.md §4.6, C6):
// the path from a freshly parsed Record to both tiers and to live
// subscribers, with retrying, bounded, disk-backed durability for the cold
// write.
package ingestpipeline

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/logging"
	"github.com/sastik/logserver/internal/record"
)

// DefaultMaxQueuedRecords caps how many records can sit in the in-memory
// pending queue awaiting a cold-store flush before the pipeline spills the
// overflow to disk immediately (spec.md §7 ColdWriteFailed policy).
const DefaultMaxQueuedRecords = 10000

// DefaultBatchSize is used when Config.BatchSize is unset.
const DefaultBatchSize = 100

// DefaultFlushInterval is used when Config.FlushInterval is unset.
const DefaultFlushInterval = time.Second

// Publisher fans a successfully-ingested record out to live subscribers
// (implemented by the broadcast package, C7). It must not block.
type Publisher func(record.Record)

// Config controls batching and retry behavior.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	SpillDir      string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	return c
}

// Pipeline receives records from the tailer, stamps them, writes to the hot
// store best-effort, queues them for a batched cold-store upsert with
// backoff retry and disk spillover, and publishes successes to subscribers.
type Pipeline struct {
	cfg   Config
	hot   *hotstore.Store
	cold  *coldstore.Store
	pub   Publisher
	log   *logging.Logger
	spill *spillFile

	mtx     sync.Mutex
	pending []record.Record
}

func New(cfg Config, hot *hotstore.Store, cold *coldstore.Store, pub Publisher, log *logging.Logger) (*Pipeline, error) {
	if log == nil {
		log = logging.NewDiscard()
	}
	cfg = cfg.withDefaults()
	sf, err := newSpillFile(cfg.SpillDir)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, hot: hot, cold: cold, pub: pub, log: log, spill: sf}, nil
}

// Ingest is the tailer.Sink-shaped entry point: it stamps IngestedAt, writes
// through to the hot store best-effort, publishes to subscribers, and
// enqueues the batch for the cold store.
func (p *Pipeline) Ingest(ctx context.Context, recs []record.Record) error {
	now := time.Now().UTC()
	for i := range recs {
		recs[i].IngestedAt = now

		if p.hot != nil {
			if err := p.hot.Put(recs[i].CorrelationID, recs[i]); err != nil {
				CacheUnavailable.Inc()
				p.log.Warn("hot store put failed, continuing to cold store", logging.KVErr(err))
			}
		}
		if p.pub != nil {
			p.pub(recs[i])
		}
	}

	p.mtx.Lock()
	p.pending = append(p.pending, recs...)
	full := len(p.pending) >= p.cfg.BatchSize
	overflow := len(p.pending) > DefaultMaxQueuedRecords
	var spillNow []record.Record
	if overflow {
		cut := len(p.pending) - DefaultMaxQueuedRecords
		spillNow, p.pending = p.pending[:cut], p.pending[cut:]
	}
	p.mtx.Unlock()

	if len(spillNow) > 0 {
		p.log.Warn("pending queue exceeded cap, spilling overflow to disk", logging.KV("records", len(spillNow)))
		if err := p.spill.Write(spillNow); err != nil {
			p.log.Error("failed to spill overflow batch to disk", logging.KVErr(err))
		}
	}
	if full {
		p.flush(ctx)
	}
	return nil
}

// Run drives the periodic flush and spill-replay loops until ctx is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	flushTick := time.NewTicker(p.cfg.FlushInterval)
	defer flushTick.Stop()
	replayTick := time.NewTicker(30 * time.Second)
	defer replayTick.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background())
			return
		case <-flushTick.C:
			p.flush(ctx)
		case <-replayTick.C:
			p.replaySpill(ctx)
		}
	}
}

func (p *Pipeline) flush(ctx context.Context) {
	p.mtx.Lock()
	if len(p.pending) == 0 {
		p.mtx.Unlock()
		return
	}
	batch := p.pending
	p.pending = nil
	p.mtx.Unlock()

	p.writeBatch(ctx, batch)
}

// writeBatch retries the cold-store upsert with exponential backoff (base
// 500ms, cap 30s) for up to 10 seconds of elapsed time; once that is
// exhausted the batch spills to disk rather than being dropped, and Run
// replays the spill file every 30 seconds (spec.md §7 ColdWriteFailed).
func (p *Pipeline) writeBatch(ctx context.Context, batch []record.Record) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 10 * time.Second // bounds one flush cycle; overflow spills

	op := func() error {
		if p.cold == nil {
			return nil
		}
		return p.cold.UpsertBatch(ctx, batch)
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		ColdWriteFailed.Inc()
		p.log.Error("cold store write exhausted retry, spilling to disk", logging.KVErr(err), logging.KV("records", len(batch)))
		if serr := p.spill.Write(batch); serr != nil {
			p.log.Error("failed to spill batch to disk", logging.KVErr(serr))
		}
	}
}

func (p *Pipeline) replaySpill(ctx context.Context) {
	if p.cold == nil {
		return
	}
	batches, err := p.spill.Drain()
	if err != nil {
		p.log.Error("failed to drain spill file", logging.KVErr(err))
	}
	for _, batch := range batches {
		if err := p.cold.UpsertBatch(ctx, batch); err != nil {
			p.log.Error("spill replay failed, re-spilling batch", logging.KVErr(err))
			if serr := p.spill.Write(batch); serr != nil {
				p.log.Error("failed to re-spill batch", logging.KVErr(serr))
			}
			continue
		}
		SpillReplayed.Add(float64(len(batch)))
	}
}
