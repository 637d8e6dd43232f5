package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// DefaultTimeout bounds every provider call when none is configured
const DefaultTimeout = 10 * time.Second

var (
	// ErrCircuitOpen is returned while a provider's breaker rejects calls
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrNoCoordinates is returned when an air-quality lookup has no position
	ErrNoCoordinates = errors.New("no coordinates for air quality lookup")
	// ErrNoData is returned when a provider answered but had nothing usable
	ErrNoData = errors.New("provider returned no usable data")
	// ErrMissingAPIKey is returned when a provider that needs a key has none
	ErrMissingAPIKey = errors.New("api key is not configured")
)

// ProviderConfig is the explicit per-adapter configuration
type ProviderConfig struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c ProviderConfig) withDefaults(baseURL string) ProviderConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

// ProviderError reports a failed provider call
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether retrying later could succeed
func (e *ProviderError) IsTransient() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 0:
		return !errors.Is(e.Err, ErrMissingAPIKey) && !errors.Is(e.Err, ErrNoCoordinates) && !errors.Is(e.Err, ErrNoData)
	}
	return false
}

// statusError marks a retryable HTTP status inside the breaker
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// httpClient performs JSON GETs with a timeout, bounded retries and a breaker
type httpClient struct {
	provider string
	cfg      ProviderConfig
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

func newHTTPClient(provider string, cfg ProviderConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *httpClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "[SOURCE_CIRCUIT] Circuit breaker state changed", logging.Fields{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			})
		},
	})

	return &httpClient{
		provider: provider,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		circuit:  cb,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// getJSON fetches base+path?query and decodes the body into dest
func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, header http.Header, dest interface{}) error {
	start := time.Now()
	err := c.doGetJSON(ctx, path, query, header, dest)

	outcome := "success"
	switch {
	case errors.Is(err, ErrCircuitOpen):
		outcome = "circuit_open"
	case err != nil:
		outcome = "error"
	}
	c.metrics.RecordSourceRequest(c.provider, outcome, time.Since(start))

	return err
}

func (c *httpClient) doGetJSON(ctx context.Context, path string, query url.Values, header http.Header, dest interface{}) error {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return &ProviderError{Provider: c.provider, Err: ctx.Err()}
		}

		resp, err := c.execute(ctx, endpoint, header)
		if err == nil {
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return &ProviderError{
					Provider:   c.provider,
					StatusCode: resp.StatusCode,
					Err:        errors.New(strings.TrimSpace(string(body))),
				}
			}

			if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
				return &ProviderError{Provider: c.provider, Err: fmt.Errorf("failed to decode response: %w", err)}
			}
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &ProviderError{Provider: c.provider, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
		}

		provErr := &ProviderError{Provider: c.provider, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			provErr.StatusCode = se.code
		}

		if attempt >= c.cfg.MaxRetries {
			return provErr
		}

		delay := c.cfg.InitialBackoff * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
		}

		c.logger.Warn(ctx, "[SOURCE_RETRY] Provider request failed, retrying", logging.Fields{
			"provider": c.provider,
			"attempt":  attempt + 1,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &ProviderError{Provider: c.provider, Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}

// execute runs one attempt through the breaker. Rate limiting and server
// errors count as failures; other statuses are returned to the caller.
func (c *httpClient) execute(ctx context.Context, endpoint string, header http.Header) (*http.Response, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, values := range header {
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}

		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
