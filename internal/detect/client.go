package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AssetState mirrors the remote processing state of an uploaded asset.
type AssetState int

const (
	StateProcessing AssetState = iota
	StateActive
	StateFailed
)

func (s AssetState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateFailed:
		return "FAILED"
	default:
		return "PROCESSING"
	}
}

// Asset is a handle to a file held by the remote service.
type Asset struct {
	Name     string
	URI      string
	MIMEType string
	State    AssetState
}

// Request holds the per-call inference parameters.
type Request struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Service is the remote file store plus inference endpoint. Implementations
// should return *CallError for failures that carry a retry class.
type Service interface {
	Upload(ctx context.Context, path string) (Asset, error)
	Get(ctx context.Context, name string) (Asset, error)
	Generate(ctx context.Context, asset Asset, req Request) (string, error)
	Delete(ctx context.Context, name string) error
}

// Policy bounds the readiness poll and the retry loop.
type Policy struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 300 * time.Second
	DefaultMaxAttempts  = 5
	DefaultBaseBackoff  = 5 * time.Second

	deleteTimeout = 30 * time.Second
)

func DefaultPolicy() Policy {
	return Policy{
		PollInterval: DefaultPollInterval,
		PollTimeout:  DefaultPollTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		BaseBackoff:  DefaultBaseBackoff,
	}
}

// Backoff returns the wait after the given zero-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	return p.BaseBackoff << uint(attempt)
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.PollInterval <= 0 {
		p.PollInterval = d.PollInterval
	}
	if p.PollTimeout <= 0 {
		p.PollTimeout = d.PollTimeout
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = d.BaseBackoff
	}
	return p
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client runs one detection per call: upload, wait for readiness, infer with
// retries, release the asset, validate the answer. It is safe for concurrent
// use when the underlying Service is.
type Client struct {
	svc    Service
	req    Request
	policy Policy
	sleep  Sleeper
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Client)

func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p.withDefaults() }
}

func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(svc Service, req Request, logger *slog.Logger, opts ...Option) *Client {
	if req.Prompt == "" {
		req.Prompt = Prompt
	}
	c := &Client{
		svc:    svc,
		req:    req,
		policy: DefaultPolicy(),
		sleep:  SleepContext,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Policy() Policy { return c.policy }

// Detect returns the validated ranges for the asset at path. Failures are
// *Error values whose Kind is one of the Err* sentinels.
func (c *Client) Detect(ctx context.Context, path string) (Result, error) {
	asset, err := c.svc.Upload(ctx, path)
	if err != nil {
		return Result{}, &Error{Kind: ErrUpload, Asset: path, Err: err}
	}
	c.logger.Debug("asset uploaded", "asset", path, "name", asset.Name, "state", asset.State.String())
	defer c.release(ctx, path, asset.Name)

	asset, err = c.waitActive(ctx, path, asset)
	if err != nil {
		return Result{}, err
	}

	text, err := c.generate(ctx, path, asset)
	if err != nil {
		return Result{}, err
	}

	res, err := ParseResponse(text)
	if err != nil {
		return Result{}, &Error{Kind: ErrMalformedResponse, Asset: path, Err: err}
	}
	return res, nil
}

func (c *Client) waitActive(ctx context.Context, path string, asset Asset) (Asset, error) {
	deadline := c.now().Add(c.policy.PollTimeout)
	for {
		switch asset.State {
		case StateActive:
			return asset, nil
		case StateFailed:
			return Asset{}, &Error{Kind: ErrProcessingFailed, Asset: path, Err: fmt.Errorf("remote file %s", asset.Name)}
		}

		if !c.now().Before(deadline) {
			return Asset{}, &Error{
				Kind:  ErrTimeout,
				Asset: path,
				Err:   fmt.Errorf("remote file %s still %s after %s", asset.Name, asset.State, c.policy.PollTimeout),
			}
		}

		c.logger.Debug("waiting for asset to become active", "asset", path, "state", asset.State.String())
		if err := c.sleep(ctx, c.policy.PollInterval); err != nil {
			return Asset{}, &Error{Kind: ErrTimeout, Asset: path, Err: err}
		}

		name := asset.Name
		next, err := c.svc.Get(ctx, name)
		if err != nil {
			return Asset{}, &Error{Kind: ErrService, Asset: path, Err: fmt.Errorf("get %s: %w", name, err)}
		}
		asset = next
	}
}

func (c *Client) generate(ctx context.Context, path string, asset Asset) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		text, err := c.svc.Generate(ctx, asset, c.req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		class := ClassOf(err)
		if !class.Transient() || attempt+1 >= c.policy.MaxAttempts {
			break
		}

		wait := c.policy.Backoff(attempt)
		c.logger.Warn("detection service busy, retrying",
			"asset", path,
			"attempt", attempt+1,
			"max_attempts", c.policy.MaxAttempts,
			"class", class.String(),
			"wait", wait.String(),
			"error", err,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return "", &Error{Kind: ErrService, Asset: path, Err: err}
		}
	}
	return "", &Error{Kind: ErrService, Asset: path, Err: lastErr}
}

// release deletes the remote asset. It runs even after ctx is cancelled and
// only ever logs failures.
func (c *Client) release(ctx context.Context, path, name string) {
	if name == "" {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := c.svc.Delete(dctx, name); err != nil {
		c.logger.Warn("failed to delete remote asset", "asset", path, "name", name, "error", err)
	}
}
