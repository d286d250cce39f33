package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/feedrank/internal/domain/model"
	"github.com/okian/feedrank/internal/domain/types"
	"github.com/okian/feedrank/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// outcome classifies one submitted request.
type outcome struct {
	status   model.Status
	rejected bool
	failed   bool
	invalid  bool
	returned int
}

// counters aggregates outcomes across workers.
type counters struct {
	submitted, ranked, fallback, empty  atomic.Int64
	rejected, failed, invalid, returned atomic.Int64
}

func (c *counters) add(o outcome) {
	c.submitted.Add(1)
	c.returned.Add(int64(o.returned))
	switch {
	case o.rejected:
		c.rejected.Add(1)
	case o.failed:
		c.failed.Add(1)
	case o.invalid:
		c.invalid.Add(1)
	}
	switch o.status {
	case model.StatusRanked:
		c.ranked.Add(1)
	case model.StatusFallback:
		c.fallback.Add(1)
	case model.StatusEmpty:
		c.empty.Add(1)
	}
}

// submitRequests posts every request using a pool of config.Workers workers.
func submitRequests(ctx context.Context, config *Config, requests []types.RankRequest, stats *Stats) error {
	if len(requests) == 0 {
		return ErrNoRequests
	}
	log := logger.Get()
	log.Info(ctx, "submitting ranking requests",
		logger.Int("requests", len(requests)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/rank-feed"

	var c counters
	var lastReport atomic.Int64

	reqChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range reqChan {
				if ctx.Err() != nil {
					return
				}
				c.add(submitSingleRequest(ctx, client, url, requests[index], config.Verbose))

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(ProgressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int("submitted", int(c.submitted.Load())),
						logger.Int("total", len(requests)),
						logger.Int("rejected", int(c.rejected.Load())),
						logger.Int("failed", int(c.failed.Load())),
						logger.Int("invalid", int(c.invalid.Load())))
				}
			}
		}()
	}

	go func() {
		defer close(reqChan)
		for i := range requests {
			select {
			case <-ctx.Done():
				return
			case reqChan <- i:
			}
		}
	}()

	wg.Wait()

	for i := range requests {
		if requests[i].Posts != nil {
			stats.PostsSubmitted += len(*requests[i].Posts)
		}
	}
	stats.RequestsSubmitted = int(c.submitted.Load())
	stats.Ranked = int(c.ranked.Load())
	stats.FallbackUsed = int(c.fallback.Load())
	stats.Empty = int(c.empty.Load())
	stats.Rejected = int(c.rejected.Load())
	stats.Failed = int(c.failed.Load())
	stats.VerificationFailed = int(c.invalid.Load())
	stats.PostsReturned = int(c.returned.Load())

	log.Info(ctx, "request submission completed",
		logger.Int("ranked", stats.Ranked),
		logger.Int("fallbackUsed", stats.FallbackUsed),
		logger.Int("empty", stats.Empty),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))

	if ctx.Err() != nil {
		return fmt.Errorf("submission interrupted: %w", ctx.Err())
	}
	return nil
}

// submitSingleRequest posts one request and verifies a successful response.
func submitSingleRequest(ctx context.Context, client *HTTPClient, url string, req types.RankRequest, verbose bool) outcome {
	log := logger.Get()

	resp, err := client.Post(ctx, url, req)
	if err != nil {
		if verbose {
			log.Warn(ctx, "request failed", logger.Error(err))
		}
		return outcome{failed: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome{failed: true}
	}

	switch resp.StatusCode {
	case StatusOK:
	case StatusTooManyRequests:
		return outcome{rejected: true}
	default:
		if verbose {
			log.Warn(ctx, "unexpected status", logger.Int("status", resp.StatusCode), logger.String("body", string(body)))
		}
		return outcome{failed: true}
	}

	var rr types.RankResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		log.Error(ctx, "undecodable response", logger.Error(err))
		return outcome{invalid: true}
	}

	out := outcome{status: model.Status(rr.Status), returned: len(rr.RankedPosts)}
	if err := verifyResponse(req, rr); err != nil {
		log.Error(ctx, "invalid response", logger.String("user_id", rr.UserID), logger.Error(err))
		out.invalid = true
	}
	return out
}
