// Package monitor drives the poll cycle: fetch both discovery feeds,
// apply lifecycle transitions, classify social signals, price what moved
// and notify. One cycle runs at a time; ticks that arrive mid-cycle are
// dropped, never queued.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"token-radar/internal/domain"
	"token-radar/internal/feed"
	"token-radar/internal/notify"
	"token-radar/internal/observability"
	"token-radar/internal/pricing"
	"token-radar/internal/signal"
	"token-radar/internal/storage"
)

// ErrCycleRunning is returned by TryCycle when a cycle is already in
// flight.
var ErrCycleRunning = errors.New("monitor: cycle already running")

// DefaultWorkers bounds per-token concurrency within a cycle.
const DefaultWorkers = 8

// FilterFunc is the external quality filter applied to completed-feed
// tokens. It feeds the notification decision, never the state transition.
type FilterFunc func(tok *domain.FeedToken) bool

// Runner coordinates poll cycles.
type Runner struct {
	source     feed.Source
	store      storage.TokenStore
	history    storage.PriceHistoryStore
	oracle     *pricing.Oracle
	classifier *signal.Classifier
	sink       notify.Sink
	filter     FilterFunc

	workers  int
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	running sync.Mutex // held for the duration of a cycle
}

// Options for creating a Runner.
type Options struct {
	// Required.
	Source     feed.Source
	Store      storage.TokenStore
	Classifier *signal.Classifier
	Sink       notify.Sink

	// Optional. Without an oracle no pricing happens; without a history
	// store quotes are not persisted.
	History storage.PriceHistoryStore
	Oracle  *pricing.Oracle

	// Filter gates completed-token notifications. Nil passes everything.
	Filter FilterFunc

	// Workers bounds per-token concurrency. Zero means DefaultWorkers.
	Workers int

	// Interval between cycle ticks in Run. Zero means 30 seconds.
	Interval time.Duration

	Logger *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates a Runner.
func New(opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	filter := opts.Filter
	if filter == nil {
		filter = func(*domain.FeedToken) bool { return true }
	}

	return &Runner{
		source:     opts.Source,
		store:      opts.Store,
		history:    opts.History,
		oracle:     opts.Oracle,
		classifier: opts.Classifier,
		sink:       opts.Sink,
		filter:     filter,
		workers:    workers,
		interval:   interval,
		logger:     logger,
		now:        now,
	}
}

// CycleResult contains counters from one poll cycle.
type CycleResult struct {
	NewCreationSeen     int
	NewCreationRecorded int
	CompletedSeen       int
	CompletedRecorded   int
	CompletedUpgraded   int
	SubNotifications    int
	CompletedNotified   int
	PricesRecorded      int

	// Errors collects per-token and per-feed failures. A failed token
	// never aborts the cycle.
	Errors []string
}

// Run polls on a fixed interval until the context is cancelled. A tick
// that lands while a cycle is still running is dropped.
func (r *Runner) Run(ctx context.Context) error {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	res, err := r.TryCycle(ctx)
	if errors.Is(err, ErrCycleRunning) {
		r.logger.Printf("[monitor] tick dropped, cycle in flight")
		return
	}
	if err != nil {
		r.logger.Printf("[monitor] cycle failed: %v", err)
		return
	}
	r.logger.Printf("[monitor] cycle done: new=%d/%d completed=%d+%d/%d notified=%d priced=%d errs=%d",
		res.NewCreationRecorded, res.NewCreationSeen,
		res.CompletedRecorded, res.CompletedUpgraded, res.CompletedSeen,
		res.SubNotifications+res.CompletedNotified, res.PricesRecorded, len(res.Errors))
}

// TryCycle runs one poll cycle unless one is already in flight, in which
// case it returns ErrCycleRunning without blocking.
func (r *Runner) TryCycle(ctx context.Context) (*CycleResult, error) {
	if !r.running.TryLock() {
		observability.RecordCycleDropped()
		return nil, ErrCycleRunning
	}
	defer r.running.Unlock()

	start := r.now()
	result := r.cycle(ctx)

	status := "ok"
	if len(result.Errors) > 0 {
		status = "partial"
	} else {
		observability.DefaultMetrics.LastSuccessfulCycle.SetToCurrentTime()
	}
	observability.RecordCycle(status, r.now().Sub(start).Seconds())

	return result, nil
}

// cycle fetches both feeds concurrently, then processes new_creation rows
// to completion before touching completed rows. A feed fetch failure
// isolates that half of the cycle.
func (r *Runner) cycle(ctx context.Context) *CycleResult {
	result := &CycleResult{}

	var (
		wg                sync.WaitGroup
		newRows, doneRows []domain.FeedToken
		newErr, doneErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		newRows, newErr = r.source.Fetch(ctx, feed.CategoryNewCreation)
	}()
	go func() {
		defer wg.Done()
		doneRows, doneErr = r.source.Fetch(ctx, feed.CategoryCompleted)
	}()
	wg.Wait()

	if newErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch new_creation: %v", newErr))
		observability.RecordFeedFetch(string(feed.CategoryNewCreation), "error", 0)
	} else {
		observability.RecordFeedFetch(string(feed.CategoryNewCreation), "ok", len(newRows))
	}
	if doneErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch completed: %v", doneErr))
		observability.RecordFeedFetch(string(feed.CategoryCompleted), "error", 0)
	} else {
		observability.RecordFeedFetch(string(feed.CategoryCompleted), "ok", len(doneRows))
	}

	var points []*domain.PricePoint

	if newErr == nil {
		points = append(points, r.processNewCreation(ctx, dedupe(newRows), result)...)
	}
	if doneErr == nil {
		points = append(points, r.processCompleted(ctx, dedupe(doneRows), result)...)
	}

	if r.history != nil && len(points) > 0 {
		if err := r.history.InsertBulk(ctx, points); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("store price history: %v", err))
		} else {
			result.PricesRecorded = len(points)
			observability.DefaultMetrics.PricePointsStored.Add(float64(len(points)))
		}
	}

	return result
}

// dedupe drops repeated rows for the same token within one feed response,
// keeping the first occurrence.
func dedupe(rows []domain.FeedToken) []domain.FeedToken {
	return lo.UniqBy(rows, func(t domain.FeedToken) string {
		return domain.TokenKey(t.Chain, t.Address)
	})
}

func (r *Runner) processNewCreation(ctx context.Context, rows []domain.FeedToken, result *CycleResult) []*domain.PricePoint {
	result.NewCreationSeen = len(rows)

	var (
		mu     sync.Mutex
		points []*domain.PricePoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := range rows {
		tok := rows[i]
		g.Go(func() error {
			verdict := r.classifier.Classify(&tok)
			observability.RecordSignal(string(verdict.Stage))
			if !verdict.Sub {
				// Non-sub rows are skipped outright; if the token matters
				// it resurfaces in the completed feed.
				return nil
			}

			res, err := r.store.RecordNewCreation(gctx, tok.Record(r.now().UnixMilli()))
			if err != nil {
				observability.RecordTokenError()
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("new_creation %s/%s: %v", tok.Chain, tok.Address, err))
				mu.Unlock()
				return nil
			}
			if !res.Recorded {
				return nil
			}
			observability.RecordTransition("new_creation")
			mu.Lock()
			result.NewCreationRecorded++
			mu.Unlock()

			quote := r.priceToken(gctx, &tok, nil, result, &mu)
			if quote != nil {
				mu.Lock()
				points = append(points, r.pricePoint(&tok, quote))
				mu.Unlock()
			}

			if !notify.DecideNewCreation(res, verdict.Sub) {
				return nil
			}
			r.send(gctx, notify.Notification{
				Kind:     notify.KindNewCreation,
				Chain:    tok.Chain,
				Address:  tok.Address,
				Symbol:   tok.Symbol,
				PriceUSD: quotePrice(quote),
				Signal:   verdict.Signal,
				SentAt:   r.now().UnixMilli(),
			}, result, &mu)
			return nil
		})
	}
	_ = g.Wait()

	return points
}

func (r *Runner) processCompleted(ctx context.Context, rows []domain.FeedToken, result *CycleResult) []*domain.PricePoint {
	result.CompletedSeen = len(rows)

	var (
		mu     sync.Mutex
		points []*domain.PricePoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := range rows {
		tok := rows[i]
		g.Go(func() error {
			passes := r.filter(&tok)

			res, err := r.store.RecordCompleted(gctx, tok.Record(r.now().UnixMilli()), passes)
			if err != nil {
				observability.RecordTokenError()
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("completed %s/%s: %v", tok.Chain, tok.Address, err))
				mu.Unlock()
				return nil
			}
			if !res.Recorded && !res.Upgraded {
				return nil
			}

			mu.Lock()
			if res.Recorded {
				result.CompletedRecorded++
			} else {
				result.CompletedUpgraded++
			}
			mu.Unlock()
			observability.RecordTransition("completed")

			cached := r.cachedPool(gctx, tok.Chain, tok.Address)
			quote := r.priceToken(gctx, &tok, cached, result, &mu)
			if quote != nil {
				mu.Lock()
				points = append(points, r.pricePoint(&tok, quote))
				mu.Unlock()
			}

			if !notify.DecideCompleted(res) {
				return nil
			}
			r.send(gctx, notify.Notification{
				Kind:     notify.KindCompleted,
				Chain:    tok.Chain,
				Address:  tok.Address,
				Symbol:   tok.Symbol,
				Upgraded: res.Upgraded,
				PriceUSD: quotePrice(quote),
				SentAt:   r.now().UnixMilli(),
			}, result, &mu)
			return nil
		})
	}
	_ = g.Wait()

	return points
}

// priceToken quotes a token in USD. Pricing is best effort: failures are
// collected but never veto a transition or a notification. Newly
// discovered pools are cached back onto the record.
func (r *Runner) priceToken(ctx context.Context, tok *domain.FeedToken, cached *domain.PoolRef, result *CycleResult, mu *sync.Mutex) *domain.PriceQuote {
	if r.oracle == nil || !tok.Chain.IsEVM() {
		return nil
	}

	quote, err := r.oracle.TokenPriceUSD(ctx, common.HexToAddress(tok.Address), tok.Decimals, cached)
	if err != nil {
		observability.RecordPriceQuote("", "error")
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("price %s/%s: %v", tok.Chain, tok.Address, err))
		mu.Unlock()
		return nil
	}
	observability.RecordPriceQuote(string(quote.Strategy), "ok")

	if quote.Pool != nil && cached == nil {
		if err := r.store.SaveCachedPool(ctx, tok.Chain, tok.Address, quote.Pool); err != nil {
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Sprintf("cache pool %s/%s: %v", tok.Chain, tok.Address, err))
			mu.Unlock()
		}
	}

	return quote
}

// cachedPool loads the stored pool reference, if any. Absence is normal.
func (r *Runner) cachedPool(ctx context.Context, chain domain.Chain, address string) *domain.PoolRef {
	rec, err := r.store.Get(ctx, chain, address)
	if err != nil {
		return nil
	}
	return rec.CachedPool
}

func (r *Runner) pricePoint(tok *domain.FeedToken, quote *domain.PriceQuote) *domain.PricePoint {
	point := &domain.PricePoint{
		Chain:      tok.Chain,
		Address:    tok.Address,
		Symbol:     tok.Symbol,
		PriceUSD:   quote.ValueUSD,
		Strategy:   quote.Strategy,
		Stale:      quote.Stale,
		ObservedAt: quote.ObservedAt,
	}
	if quote.Pool != nil {
		point.Pool = quote.Pool.Address
	}
	return point
}

func (r *Runner) send(ctx context.Context, n notify.Notification, result *CycleResult, mu *sync.Mutex) {
	if err := r.sink.Notify(ctx, n); err != nil {
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("notify %s/%s: %v", n.Chain, n.Address, err))
		mu.Unlock()
		return
	}
	observability.RecordNotification(string(n.Kind))
	mu.Lock()
	if n.Kind == notify.KindNewCreation {
		result.SubNotifications++
	} else {
		result.CompletedNotified++
	}
	mu.Unlock()
}

func quotePrice(quote *domain.PriceQuote) decimal.Decimal {
	if quote == nil {
		return decimal.Zero
	}
	return quote.ValueUSD
}
