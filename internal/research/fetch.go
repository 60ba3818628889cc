// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/provider"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// lowYieldRatio is the share of requested sources below which a round is
// reported as low-yield.
const lowYieldRatio = 0.5

// ProgressSink receives fetch progress events. It is called from the
// goroutine running Fetch, never concurrently.
type ProgressSink func(types.ProgressEvent)

// Fetcher runs one round of provider searches concurrently and passes the
// raw results through the session's Deduplicator.
type Fetcher struct {
	clients  map[types.ProviderKind]provider.Client
	dedup    *Deduplicator
	timeouts types.ProviderTimeouts
	logger   *zap.Logger
}

// NewFetcher returns a Fetcher over clients. dedup holds the session's
// identity set and must not be shared with another session.
func NewFetcher(clients []provider.Client, dedup *Deduplicator, timeouts types.ProviderTimeouts, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dedup == nil {
		dedup = NewDeduplicator()
	}
	byKind := make(map[types.ProviderKind]provider.Client, len(clients))
	for _, c := range clients {
		byKind[c.Kind()] = c
	}
	return &Fetcher{clients: byKind, dedup: dedup, timeouts: timeouts, logger: logger}
}

// Dedup returns the Deduplicator the fetcher filters through.
func (f *Fetcher) Dedup() *Deduplicator { return f.dedup }

type fetchOutcome struct {
	kind     types.ProviderKind
	records  []types.SourceRecord
	err      error
	duration time.Duration
}

// Fetch searches every provider with a non-zero count for query and
// returns the deduplicated RoundResult. Each provider runs under its own
// timeout; a provider that fails or times out contributes no records and
// an error string, and never fails the round. Fetch returns only after
// every task has settled.
func (f *Fetcher) Fetch(ctx context.Context, round int, query string, counts types.SourceCounts, sink ProgressSink) types.RoundResult {
	emit := func(ev types.ProgressEvent) {
		if sink != nil {
			ev.Round = round
			sink(ev)
		}
	}

	result := types.RoundResult{
		RoundNumber:       round,
		Query:             query,
		SourcesByProvider: make(map[types.ProviderKind][]types.SourceRecord),
		Timing:            make(map[types.ProviderKind]time.Duration),
		Errors:            make(map[types.ProviderKind]string),
	}

	ch := make(chan fetchOutcome, len(types.AllProviders))
	var wg sync.WaitGroup
	launched := 0

	for _, k := range types.AllProviders {
		n := counts.For(k)
		if n <= 0 {
			continue
		}
		client, ok := f.clients[k]
		if !ok {
			result.Errors[k] = "provider not configured"
			f.logger.Debug("skipping unconfigured provider", zap.String("provider", string(k)))
			continue
		}
		result.Requested += n
		launched++
		emit(types.ProgressEvent{Type: types.ProgressStarted, Provider: k, Count: n})

		wg.Add(1)
		go func(k types.ProviderKind, client provider.Client, n int) {
			defer wg.Done()
			ch <- f.runTask(ctx, k, client, query, n)
		}(k, client, n)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	raw := make(map[types.ProviderKind][]types.SourceRecord, launched)
	fetched := 0
	for out := range ch {
		result.Timing[out.kind] = out.duration
		metrics.ProviderFetchDuration.WithLabelValues(string(out.kind)).Observe(out.duration.Seconds())

		if out.err != nil {
			result.Errors[out.kind] = out.err.Error()
			metrics.ProviderFailures.WithLabelValues(string(out.kind), failureReason(out.err)).Inc()
			f.logger.Warn("provider fetch failed",
				zap.String("provider", string(out.kind)),
				zap.Int("round", round),
				zap.Duration("duration", out.duration),
				zap.Error(out.err))
		} else {
			raw[out.kind] = out.records
			fetched += len(out.records)
		}

		emit(types.ProgressEvent{
			Type:       types.ProgressCompleted,
			Provider:   out.kind,
			Count:      len(out.records),
			DurationMS: out.duration.Milliseconds(),
			Success:    out.err == nil,
		})
		emit(types.ProgressEvent{Type: types.ProgressUpdate, Fetched: fetched, Total: result.Requested})
	}

	// Deduplicate sequentially in the fixed provider order.
	before := f.dedup.Stats().DuplicatesFiltered
	for _, k := range types.AllProviders {
		records, ok := raw[k]
		if !ok {
			continue
		}
		kept := f.dedup.FilterFor(k, records)
		result.SourcesByProvider[k] = kept
		result.SourceCount += len(kept)
		metrics.SourcesFetched.WithLabelValues(string(k)).Add(float64(len(kept)))
	}
	result.DuplicatesFiltered = f.dedup.Stats().DuplicatesFiltered - before
	metrics.DuplicatesFiltered.Add(float64(result.DuplicatesFiltered))

	// Yield is measured on what the providers returned, before dedup, so
	// later rounds that mostly repeat earlier records are not flagged.
	if result.Requested > 0 && float64(fetched) < lowYieldRatio*float64(result.Requested) {
		metrics.LowYieldRounds.Inc()
		f.logger.Warn("round retrieved fewer than half of the requested sources",
			zap.Int("round", round),
			zap.Int("retrieved", fetched),
			zap.Int("new", result.SourceCount),
			zap.Int("requested", result.Requested))
	}

	f.logger.Info("round fetched",
		zap.Int("round", round),
		zap.String("query", query),
		zap.Int("sources", result.SourceCount),
		zap.Int("duplicates", result.DuplicatesFiltered),
		zap.Int("errors", len(result.Errors)))

	return result
}

// runTask searches one provider under its timeout. A search still running
// when the deadline passes is abandoned; its late result lands in a
// buffered channel nobody reads.
func (f *Fetcher) runTask(ctx context.Context, k types.ProviderKind, client provider.Client, query string, n int) fetchOutcome {
	timeout := f.timeouts.For(k)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type searchResult struct {
		records []types.SourceRecord
		err     error
	}
	done := make(chan searchResult, 1)
	start := time.Now()

	go func() {
		records, err := client.Search(tctx, query, n)
		done <- searchResult{records: records, err: err}
	}()

	out := fetchOutcome{kind: k}
	select {
	case r := <-done:
		out.records, out.err = r.records, r.err
		if out.err != nil {
			out.records = nil
		}
		if len(out.records) > n {
			out.records = out.records[:n]
		}
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			out.err = fmt.Errorf("%s: %w after %s", k, errTimeout, timeout)
		} else {
			out.err = fmt.Errorf("%s: %w", k, tctx.Err())
		}
	}
	out.duration = time.Since(start)
	return out
}

var errTimeout = errors.New("timed out")

func failureReason(err error) string {
	switch {
	case errors.Is(err, errTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
