package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DNDmC/mercadolivre-scraper/config"
	"github.com/DNDmC/mercadolivre-scraper/models"
	"github.com/DNDmC/mercadolivre-scraper/pager"
	"github.com/DNDmC/mercadolivre-scraper/parser"
	"github.com/DNDmC/mercadolivre-scraper/pipeline"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

// Scraper drives one listing crawl: colly fetches pages, the extractor
// turns each page into products and the pager picks the next URL.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	extractor *parser.Extractor
	scheme    pager.Scheme
	state     *pager.State
	runID     string
	Metrics   *Metrics

	requestCount int64
	pageCount    int64
	itemCount    int64
	errorCount   int64
	followUps    int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(cfg.AllowedDomain),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure limits: %w", err)
	}

	metrics := NewMetrics()
	retry, err := newRetryManager(cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("create retry cache: %w", err)
	}

	return &Scraper{
		cfg:       cfg,
		collector: collector,
		retry:     retry,
		extractor: parser.NewExtractor(parser.DefaultSelectors()),
		scheme: pager.Scheme{
			SecondPageURL:   cfg.SecondPageURL,
			PageURLTemplate: cfg.PageURLTemplate,
			OffsetBase:      cfg.OffsetBase,
			OffsetStep:      cfg.OffsetStep,
		},
		runID:        uuid.NewString(),
		errorsByType: make(map[string]int),
		Metrics:      metrics,
	}, nil
}

// RunID identifies this crawl in logs and stored rows.
func (s *Scraper) RunID() string {
	return s.runID
}

// Run crawls from the start URL until the page limit is reached, sending
// every extracted product to p.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.state = pager.NewState(s.cfg.MaxPages)
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.retry.Stop()
		case <-done:
		}
	}()

	slog.Info("crawl started",
		slog.String("run_id", s.runID),
		slog.String("url", s.cfg.StartURL),
		slog.Int("max_pages", s.cfg.MaxPages),
	)
	if err := s.collector.Visit(s.cfg.StartURL); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}

	// Retries are re-issued from timers, so the collector can go idle while
	// one is still waiting on its backoff.
	for {
		s.collector.Wait()
		if s.retry.Drain() == 0 {
			break
		}
	}
	s.retry.Stop()

	return &models.ScraperResult{
		RunID:        s.runID,
		StartTime:    start,
		EndTime:      time.Now(),
		TotalCount:   int(atomic.LoadInt64(&s.itemCount)),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
		RetryCount:   s.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		PageCount:    int(atomic.LoadInt64(&s.pageCount)),
		FollowUps:    int(atomic.LoadInt64(&s.followUps)),
	}, nil
}

// process extracts every product on page, then asks the pager for the
// following URL. Only one page is in flight at a time, so the pager
// state needs no locking.
func (s *Scraper) process(ctx context.Context, page parser.ListingPage) ([]*models.Product, string, bool) {
	products := s.extractor.ExtractAll(page)
	if ctx.Err() != nil {
		return products, "", false
	}
	next, ok := s.state.Next(s.scheme)
	return products, next, ok
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
			slog.Debug("requesting listing page", slog.String("url", r.URL.String()))
		})

		s.collector.OnResponse(func(r *colly.Response) {
			s.Metrics.IncRequest("completed")
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			var req *colly.Request
			if r != nil {
				statusCode = r.StatusCode
				req = r.Request
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()
			s.Metrics.IncError(category)

			url := ""
			if req != nil && req.URL != nil {
				url = req.URL.String()
			}
			slog.Error("request error",
				slog.String("url", url),
				slog.String("category", category),
				slog.Any("error", err),
			)

			if classified != nil && classified.Retryable() && s.retry.Schedule(req) {
				return
			}
			s.mu.Lock()
			s.failedURLs = append(s.failedURLs, url)
			s.mu.Unlock()
		})

		s.collector.OnHTML("html", func(e *colly.HTMLElement) {
			products, next, more := s.process(ctx, parser.NewNode(e.DOM))

			page := atomic.AddInt64(&s.pageCount, 1)
			atomic.AddInt64(&s.itemCount, int64(len(products)))
			s.Metrics.IncPages()
			s.Metrics.AddItems(len(products))

			if err := p.Process(products...); err != nil {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
			slog.Info("listing page processed",
				slog.Int64("page", page),
				slog.Int("products", len(products)),
				slog.String("url", e.Request.URL.String()),
			)

			if !more {
				slog.Info("pagination finished",
					slog.Int("page_count", s.state.PageCount),
					slog.Bool("cancelled", ctx.Err() != nil),
				)
				return
			}
			if err := s.collector.Visit(next); err != nil {
				slog.Error("follow-up visit failed", slog.String("url", next), slog.Any("error", err))
				return
			}
			atomic.AddInt64(&s.followUps, 1)
		})
	})
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
