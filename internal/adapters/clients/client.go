// Package clients is the outbound HTTP layer: an instrumented client with
// retries and a circuit breaker, used by the Discord publisher.
package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotebook/internal/platform/config"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
)

// ErrMaxRetriesExceeded wraps the last failure once no attempt succeeded.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

const (
	instrumentationName = "github.com/jsamuelsen/quotebook/internal/adapters/clients"

	defaultTimeout = 30 * time.Second

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second

	attributeResult = attribute.Key("result")

	// drainLimit bounds how much of a discarded body is read so the
	// connection can be reused.
	drainLimit = 4 << 10
)

// Config configures a Client.
type Config struct {
	// BaseURL prefixes every request path, e.g. "https://discord.com/api/v10".
	BaseURL string

	// ServiceName names the downstream in logs, spans, metrics and breaker events.
	ServiceName string

	// Timeout bounds a single attempt; retries and backoff add to the total.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// AuthFunc sets credentials on every attempt, retries included.
	AuthFunc func(*http.Request)

	Logger *slog.Logger
}

// Client sends requests to one downstream. Requests carry the inbound
// request and correlation IDs and the trace context; transient failures are
// retried with jittered exponential backoff; sustained failure opens the
// circuit breaker.
type Client struct {
	http     *http.Client
	baseURL  string
	name     string
	retry    config.RetryConfig
	authFunc func(*http.Request)
	logger   *slog.Logger
	breaker  *CircuitBreaker
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// New builds a Client from cfg.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		Name:          cfg.ServiceName,
		MaxFailures:   cfg.Circuit.MaxFailures,
		Timeout:       cfg.Circuit.Timeout,
		HalfOpenLimit: cfg.Circuit.HalfOpenLimit,
	}, func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("downstream", cfg.ServiceName),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	duration, err := otel.Meter(instrumentationName).Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of downstream calls, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        orDefault(cfg.Transport.MaxIdleConns, defaultMaxIdleConns),
				MaxIdleConnsPerHost: orDefault(cfg.Transport.MaxIdleConnsPerHost, defaultMaxIdleConnsPerHost),
				IdleConnTimeout:     orDefault(cfg.Transport.IdleConnTimeout, defaultIdleConnTimeout),
			},
		},
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		name:     cfg.ServiceName,
		retry:    cfg.Retry,
		authFunc: cfg.AuthFunc,
		logger:   logger,
		breaker:  breaker,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
	}, nil
}

// Do sends req. A response is returned for any status that is not retried,
// 4xx included; the caller owns its body. Failures that outlast the retry
// budget are wrapped in ErrMaxRetriesExceeded, and an open breaker fails
// fast with ErrCircuitOpen.
//
// Bodies are replayed through req.GetBody. Requests built from a bytes or
// strings reader have it; a streaming body is sent once.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := logging.FromContextOr(ctx, c.logger).With(
		slog.String("downstream", c.name),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	done, err := c.breaker.Allow()
	if err != nil {
		c.observe(ctx, req.Method, 0, start, "circuit_open")
		logger.Warn("downstream call short-circuited")

		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(req.URL.String()),
			semconv.PeerService(c.name),
		),
	)
	defer span.End()

	c.stamp(ctx, req)

	resp, attempts, err := c.send(ctx, req, logger)
	if attempts > 1 {
		span.SetAttributes(semconv.HTTPRequestResendCount(attempts - 1))
	}

	if err != nil {
		done(false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observe(ctx, req.Method, 0, start, failureResult(err))
		logger.Error("downstream call failed",
			slog.Int("attempts", attempts),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)

		return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, err)
	}

	// A 4xx means the downstream is up and answering.
	done(true)
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}

	c.observe(ctx, req.Method, resp.StatusCode, start, strconv.Itoa(resp.StatusCode/100)+"xx")
	logger.Debug("downstream call completed",
		slog.Int("status", resp.StatusCode),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

// send runs the attempts and reports how many were made.
func (c *Client) send(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, int, error) {
	tries := uint(max(c.retry.MaxAttempts, 1)) //nolint:gosec // bounded by config validation
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		tries = 1
	}

	var (
		attempts int
		lastErr  error
	)

	attempt := func() (*http.Response, error) {
		if attempts > 0 {
			if err := c.rewind(req); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		attempts++

		resp, err := c.http.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err

			// With the caller's context still live, a deadline is the
			// per-attempt timeout and worth another try.
			attemptTimedOut := ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
			if ctx.Err() != nil || !(attemptTimedOut || isRetryableError(err)) {
				return nil, backoff.Permanent(err)
			}

			return nil, err
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		drain(resp)

		lastErr = fmt.Errorf("retryable status: %d", resp.StatusCode)
		if wait > 0 {
			if c.retry.MaxInterval > 0 {
				wait = min(wait, c.retry.MaxInterval)
			}

			return nil, &backoff.RetryAfterError{Duration: wait}
		}

		return nil, lastErr
	}

	resp, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Debug("retrying downstream call",
				slog.Int("attempt", attempts+1),
				slog.Duration("backoff", wait),
				slog.Any("error", err),
			)
		}),
	)
	if err != nil {
		// A Retry-After signal on the final attempt stands in for the status error.
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) && lastErr != nil {
			err = lastErr
		}

		return nil, attempts, err
	}

	return resp, attempts, nil
}

func (c *Client) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval
	b.RandomizationFactor = c.retry.JitterFactor

	if c.retry.Multiplier > 0 {
		b.Multiplier = c.retry.Multiplier
	}

	return b
}

// rewind prepares req for another attempt.
func (c *Client) rewind(req *http.Request) error {
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("rewinding request body: %w", err)
		}

		req.Body = body
	}

	if c.authFunc != nil {
		c.authFunc(req)
	}

	return nil
}

// stamp sets the propagated IDs, the trace context and credentials.
func (c *Client) stamp(ctx context.Context, req *http.Request) {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.authFunc != nil {
		c.authFunc(req)
	}
}

func (c *Client) observe(ctx context.Context, method string, status int, start time.Time, result string) {
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.PeerService(c.name),
		attributeResult.String(result),
	}
	if status > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(status))
	}

	c.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
}

// Get sends a GET to path under the base URL.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.call(ctx, http.MethodGet, path, nil)
}

// Post sends a JSON POST.
func (c *Client) Post(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.call(ctx, http.MethodPost, path, body)
}

// Put sends a JSON PUT. A nil body sends no content, as Discord's pin
// endpoint expects.
func (c *Client) Put(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.call(ctx, http.MethodPut, path, body)
}

// Patch sends a JSON PATCH.
func (c *Client) Patch(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.call(ctx, http.MethodPatch, path, body)
}

// Delete sends a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.Do(ctx, req)
}

// CircuitState reports the breaker state.
func (c *Client) CircuitState() State {
	return c.breaker.State()
}

func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func failureResult(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}

	return "error"
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

// parseRetryAfter reads a Retry-After given in seconds. Discord sends
// fractional seconds; HTTP dates are ignored.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

func orDefault[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}

	return v
}

// isRetryableError reports transport failures worth another attempt:
// timeouts and connection-level errors. Context cancellation never is.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
