package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nmoreno/facturia/internal/common"
	"github.com/nmoreno/facturia/internal/model"
)

// Config holds the resilience parameters of the gateway.
type Config struct {
	// Quota is the maximum number of requests in any trailing Window.
	Quota int
	// Window is the trailing rate-limit window.
	Window time.Duration
	// FailureThreshold is the number of consecutive end-to-end failures
	// that opens the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a half-open probe.
	Cooldown time.Duration
	// CallTimeout is the hard wall-clock timeout for one remote attempt.
	CallTimeout time.Duration
	// RetryInitialDelay is the first backoff delay after a failed attempt.
	RetryInitialDelay time.Duration
	// RetryMaxAttempts caps attempts per Classify call, the first included.
	RetryMaxAttempts int
}

// DefaultConfig returns the gateway defaults matching the remote service's
// free-tier quota.
func DefaultConfig() Config {
	return Config{
		Quota:             15,
		Window:            time.Minute,
		FailureThreshold:  10,
		Cooldown:          5 * time.Minute,
		CallTimeout:       60 * time.Second,
		RetryInitialDelay: 10 * time.Second,
		RetryMaxAttempts:  3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Quota <= 0 {
		c.Quota = d.Quota
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = d.RetryInitialDelay
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = d.RetryMaxAttempts
	}
	return c
}

// Gateway mediates every call to the remote classification service.
type Gateway struct {
	client Client
	state  *State
	cfg    Config
	logger *slog.Logger
}

// New creates a gateway around the given client and state.
func New(client Client, state *State, cfg Config, logger *slog.Logger) *Gateway {
	if state == nil {
		state = NewState()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client: client,
		state:  state,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Classify submits one document to the remote service. It fails with
// ErrCircuitOpen while the breaker is open, ErrRateLimited when no window
// slot can be obtained within the context, and ErrServiceFailure once the
// retry schedule is exhausted.
func (g *Gateway) Classify(ctx context.Context, doc *model.Document) (RawResponse, error) {
	if err := g.state.allow(time.Now(), g.cfg.Cooldown); err != nil {
		return RawResponse{}, err
	}

	resp, err := g.classifyWithRetry(ctx, doc)
	if err != nil {
		if common.IsTransient(err) {
			// A deferred call is not a service failure; it never counts
			// against the breaker. If this call held the half-open slot,
			// give it back so a later caller can still probe.
			g.state.releaseProbe()
			return RawResponse{}, err
		}
		opened := g.state.recordFailure(time.Now(), g.cfg.FailureThreshold)
		if opened {
			g.logger.Warn("circuit opened",
				"consecutive_failures", g.state.ConsecutiveFailures(),
				"cooldown", g.cfg.Cooldown)
		}
		return RawResponse{}, fmt.Errorf("%w: %v", common.ErrServiceFailure, err)
	}

	g.state.recordSuccess()
	return resp, nil
}

func (g *Gateway) classifyWithRetry(ctx context.Context, doc *model.Document) (RawResponse, error) {
	instructions := Instructions(doc)

	var resp RawResponse
	attempt := 0

	operation := func() error {
		attempt++

		if err := g.state.reserve(ctx, g.cfg.Quota, g.cfg.Window); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()

		var err error
		resp, err = g.client.Classify(callCtx, doc, instructions)
		if err != nil {
			g.logger.Warn("classification attempt failed",
				"message_id", doc.MessageID,
				"filename", doc.Filename,
				"attempt", attempt,
				"error", err)
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.cfg.RetryInitialDelay
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0.1
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(g.cfg.RetryMaxAttempts-1)), ctx))
	if err != nil {
		return RawResponse{}, err
	}
	return resp, nil
}

// State exposes the gateway state for instrumentation.
func (g *Gateway) State() *State {
	return g.state
}
