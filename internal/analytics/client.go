// Package analytics submits drawn regions to the NDVI backend and delivers
// the resulting series, discarding responses that a newer submission has
// superseded.
package analytics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/ndvi-overlay/internal/eventloop"
	"github.com/signalsfoundry/ndvi-overlay/internal/logging"
	"github.com/signalsfoundry/ndvi-overlay/internal/observability"
	"github.com/signalsfoundry/ndvi-overlay/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// Token identifies one submission. Tokens increase monotonically per client.
type Token uint64

// Result is what a submission resolves to: a series, or a *Failure in Err.
type Result struct {
	Token  Token
	Series model.Series
	Err    error
}

// Metrics receives request outcomes; *observability.OverlayCollector
// satisfies it.
type Metrics interface {
	ObserveRequest(outcome string, d time.Duration)
	IncSuperseded()
}

// Client sends regions to the NDVI endpoint. Only the result of the most
// recently issued token is ever delivered.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	dispatcher eventloop.Dispatcher
	log        logging.Logger
	metrics    Metrics

	latest atomic.Uint64
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDispatcher routes result delivery through d, typically the session's
// event loop. Without one, results are delivered on the request goroutine.
func WithDispatcher(d eventloop.Dispatcher) Option {
	return func(c *Client) { c.dispatcher = d }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = logging.OrNoop(l) }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client for cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	c := &Client{
		endpoint:   endpoint,
		timeout:    cfg.Timeout,
		httpClient: http.DefaultClient,
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the resolved NDVI URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Latest returns the most recently issued token.
func (c *Client) Latest() Token { return Token(c.latest.Load()) }

// IsCurrent reports whether t is still the latest issued token.
func (c *Client) IsCurrent(t Token) bool { return c.Latest() == t }

// Invalidate issues a token without sending anything, so every in-flight
// response becomes stale.
func (c *Client) Invalidate() Token {
	return Token(c.latest.Add(1))
}

// Submit mints a token, records it as the latest, and sends region in the
// background. onResult runs through the dispatcher once the request
// resolves, and only if no newer token has been issued by then. Submit
// never blocks on the network.
func (c *Client) Submit(ctx context.Context, region model.Region, onResult func(Result)) Token {
	token := Token(c.latest.Add(1))
	go func() {
		res := c.fetch(ctx, token, region)
		c.deliver(res, onResult)
	}()
	return token
}

func (c *Client) deliver(res Result, onResult func(Result)) {
	apply := func() {
		if !c.IsCurrent(res.Token) {
			if c.metrics != nil {
				c.metrics.IncSuperseded()
			}
			c.log.Debug(context.Background(), "discarding superseded analytics response",
				logging.Uint64("token", uint64(res.Token)),
				logging.Uint64("latest", uint64(c.Latest())),
			)
			return
		}
		if onResult != nil {
			onResult(res)
		}
	}
	if c.dispatcher == nil {
		apply()
		return
	}
	if !c.dispatcher.Post(apply) {
		c.log.Debug(context.Background(), "dispatcher closed; dropping analytics response",
			logging.Uint64("token", uint64(res.Token)),
		)
	}
}

func (c *Client) fetch(ctx context.Context, token Token, region model.Region) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := observability.StartSpan(ctx, "analytics.submit",
		attribute.Int64("analytics.token", int64(token)),
		attribute.Int("region.vertices", region.Len()),
	)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	series, err := c.roundTrip(ctx, region)
	elapsed := time.Since(start)

	outcome := observability.OutcomeOK
	if err != nil {
		outcome = KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.Int("series.points", len(series)))
	}
	if c.metrics != nil {
		c.metrics.ObserveRequest(outcome, elapsed)
	}

	fields := []logging.Field{
		logging.Uint64("token", uint64(token)),
		logging.Int("vertices", region.Len()),
		logging.String("outcome", outcome),
		logging.Any("elapsed", elapsed),
	}
	switch KindOf(err) {
	case DecodeError:
		c.log.Warn(ctx, "analytics response could not be decoded", append(fields, logging.Err(err))...)
	case NetworkError:
		c.log.Warn(ctx, "analytics request failed", append(fields, logging.Err(err))...)
	default:
		c.log.Info(ctx, "analytics request completed", append(fields, logging.Int("points", len(series)))...)
	}

	return Result{Token: token, Series: series, Err: err}
}

func (c *Client) roundTrip(ctx context.Context, region model.Region) (model.Series, error) {
	body, err := EncodeRequest(region)
	if err != nil {
		return nil, &Failure{Kind: NetworkError, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Kind: NetworkError, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Failure{Kind: NetworkError, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Failure{Kind: NetworkError, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Failure{Kind: NetworkError, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	series, err := DecodeSeries(payload)
	if err != nil {
		return nil, &Failure{Kind: DecodeError, Err: err}
	}
	return series, nil
}
