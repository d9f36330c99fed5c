package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DNDmC/mercadolivre-scraper/config"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// retryManager re-issues failed listing requests with capped exponential
// backoff. Attempt counts live in a bounded LRU keyed by URL.
type retryManager struct {
	cfg     *config.Config
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	idle         *sync.Cond
	attempts     *lru.Cache[string, int]
	timers       map[string]*time.Timer
	pending      int
	fired        int
	totalRetries int
	stopped      bool
}

func newRetryManager(cfg *config.Config, metrics *Metrics) (*retryManager, error) {
	attempts, err := lru.New[string, int](cfg.RetryCacheSize)
	if err != nil {
		return nil, err
	}
	rm := &retryManager{
		cfg:      cfg,
		attempts: attempts,
		timers:   make(map[string]*time.Timer),
		metrics:  metrics,
		ctx:      context.Background(),
	}
	rm.idle = sync.NewCond(&rm.mu)
	return rm, nil
}

// Schedule arranges another attempt for req and reports whether one was
// scheduled.
func (rm *retryManager) Schedule(req *colly.Request) bool {
	if req == nil || req.URL == nil || rm.cfg.MaxRetries == 0 {
		return false
	}
	url := req.URL.String()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped || rm.ctx.Err() != nil {
		return false
	}

	attempt, _ := rm.attempts.Get(url)
	if attempt >= rm.cfg.MaxRetries {
		return false
	}
	attempt++
	rm.attempts.Add(url, attempt)
	rm.totalRetries++
	rm.metrics.IncRetries()

	if timer, ok := rm.timers[url]; ok && timer.Stop() {
		rm.doneLocked(false)
	}
	rm.pending++
	rm.timers[url] = time.AfterFunc(rm.backoff(attempt), func() {
		rm.fire(url, req)
	})
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) fire(url string, req *colly.Request) {
	rm.mu.Lock()
	delete(rm.timers, url)
	skip := rm.stopped || rm.ctx.Err() != nil
	rm.mu.Unlock()

	retried := false
	if !skip {
		slog.Debug("retrying listing page", slog.String("url", url))
		if err := req.Retry(); err != nil {
			slog.Debug("retry request failed", slog.String("url", url), slog.Any("error", err))
		} else {
			retried = true
		}
	}

	rm.mu.Lock()
	rm.doneLocked(retried)
	rm.mu.Unlock()
}

func (rm *retryManager) doneLocked(retried bool) {
	rm.pending--
	if retried {
		rm.fired++
	}
	if rm.pending == 0 {
		rm.idle.Broadcast()
	}
}

// Drain blocks until no retry is waiting on its backoff and returns how
// many requests were re-issued since the previous Drain.
func (rm *retryManager) Drain() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for rm.pending > 0 {
		rm.idle.Wait()
	}
	fired := rm.fired
	rm.fired = 0
	return fired
}

// Stop cancels timers that have not fired yet.
func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}
	rm.stopped = true
	for url, timer := range rm.timers {
		if timer.Stop() {
			rm.doneLocked(false)
		}
		delete(rm.timers, url)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	rm.ctx = ctx
}
