package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreno/facturia/internal/common"
	"github.com/nmoreno/facturia/internal/model"
)

type stubClient struct {
	responses []RawResponse
	errs      []error
	calls     int
}

func (c *stubClient) Classify(_ context.Context, _ *model.Document, _ string) (RawResponse, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return RawResponse{}, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	if len(c.responses) > 0 {
		return c.responses[len(c.responses)-1], nil
	}
	return RawResponse{}, errors.New("exhausted")
}

func testConfig() Config {
	return Config{
		Quota:             100,
		Window:            time.Second,
		FailureThreshold:  3,
		Cooldown:          50 * time.Millisecond,
		CallTimeout:       time.Second,
		RetryInitialDelay: time.Millisecond,
		RetryMaxAttempts:  3,
	}
}

func testDoc() *model.Document {
	return &model.Document{
		MessageID: "msg-1",
		Filename:  "ticket.pdf",
		Origin:    model.OriginPDF,
		Content:   []byte("pdf bytes"),
	}
}

func TestGatewayClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("success passes the response through", func(t *testing.T) {
		client := &stubClient{responses: []RawResponse{{Text: `{"tipo": "egreso"}`}}}
		g := New(client, NewState(), testConfig(), nil)

		resp, err := g.Classify(ctx, testDoc())
		require.NoError(t, err)
		assert.Equal(t, `{"tipo": "egreso"}`, resp.Text)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("retries transient call errors before succeeding", func(t *testing.T) {
		client := &stubClient{
			errs:      []error{errors.New("boom"), errors.New("boom")},
			responses: []RawResponse{{}, {}, {Text: "ok"}},
		}
		g := New(client, NewState(), testConfig(), nil)

		resp, err := g.Classify(ctx, testDoc())
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text)
		assert.Equal(t, 3, client.calls)
		assert.Equal(t, 0, g.State().ConsecutiveFailures())
	})

	t.Run("exhausted retries become a service failure", func(t *testing.T) {
		client := &stubClient{errs: []error{
			errors.New("boom"), errors.New("boom"), errors.New("boom"), errors.New("boom"),
		}}
		g := New(client, NewState(), testConfig(), nil)

		_, err := g.Classify(ctx, testDoc())
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrServiceFailure)
		assert.Equal(t, 3, client.calls)
		assert.Equal(t, 1, g.State().ConsecutiveFailures())
	})

	t.Run("circuit opens after consecutive failures and fails fast", func(t *testing.T) {
		client := &stubClient{}
		g := New(client, NewState(), testConfig(), nil)

		for i := 0; i < 3; i++ {
			_, err := g.Classify(ctx, testDoc())
			require.ErrorIs(t, err, common.ErrServiceFailure)
		}
		require.True(t, g.State().Open())

		callsBefore := client.calls
		_, err := g.Classify(ctx, testDoc())
		assert.ErrorIs(t, err, common.ErrCircuitOpen)
		assert.Equal(t, callsBefore, client.calls, "open circuit must not reach the client")
	})

	t.Run("successful probe closes the circuit", func(t *testing.T) {
		cfg := testConfig()
		client := &stubClient{errs: []error{
			errors.New("boom"), errors.New("boom"), errors.New("boom"),
			errors.New("boom"), errors.New("boom"), errors.New("boom"),
			errors.New("boom"), errors.New("boom"), errors.New("boom"),
		}, responses: []RawResponse{
			{}, {}, {}, {}, {}, {}, {}, {}, {}, {Text: "recovered"},
		}}
		g := New(client, NewState(), cfg, nil)

		for i := 0; i < 3; i++ {
			_, err := g.Classify(ctx, testDoc())
			require.ErrorIs(t, err, common.ErrServiceFailure)
		}
		require.True(t, g.State().Open())

		time.Sleep(cfg.Cooldown + 10*time.Millisecond)

		resp, err := g.Classify(ctx, testDoc())
		require.NoError(t, err)
		assert.Equal(t, "recovered", resp.Text)
		assert.False(t, g.State().Open())
	})

	t.Run("deferred probe does not wedge the circuit", func(t *testing.T) {
		cfg := testConfig()
		cfg.Quota = 1
		cfg.Window = 150 * time.Millisecond
		cfg.FailureThreshold = 1
		cfg.RetryMaxAttempts = 1
		cfg.Cooldown = 20 * time.Millisecond
		client := &stubClient{
			errs:      []error{errors.New("boom")},
			responses: []RawResponse{{}, {Text: "recovered"}},
		}
		g := New(client, NewState(), cfg, nil)

		// Open the circuit; the failed call also consumed the rate slot.
		_, err := g.Classify(ctx, testDoc())
		require.ErrorIs(t, err, common.ErrServiceFailure)
		require.True(t, g.State().Open())

		// After the cooldown, the probe is admitted but the rate window is
		// still full and the deadline cannot cover the wait: deferred.
		time.Sleep(cfg.Cooldown + 10*time.Millisecond)
		deadlineCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = g.Classify(deadlineCtx, testDoc())
		require.ErrorIs(t, err, common.ErrRateLimited)

		// Once the window slides, a fresh probe must still get through.
		time.Sleep(cfg.Window + 10*time.Millisecond)
		resp, err := g.Classify(ctx, testDoc())
		require.NoError(t, err)
		assert.Equal(t, "recovered", resp.Text)
		assert.False(t, g.State().Open())
	})

	t.Run("rate limit exhaustion is transient, not a failure", func(t *testing.T) {
		cfg := testConfig()
		cfg.Quota = 1
		cfg.Window = time.Minute
		client := &stubClient{responses: []RawResponse{{Text: "ok"}}}
		g := New(client, NewState(), cfg, nil)

		_, err := g.Classify(ctx, testDoc())
		require.NoError(t, err)

		deadlineCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err = g.Classify(deadlineCtx, testDoc())
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrRateLimited)
		assert.Equal(t, 0, g.State().ConsecutiveFailures(),
			"deferred calls must not count against the breaker")
		assert.False(t, g.State().Open())
	})
}
