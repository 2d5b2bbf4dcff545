package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playbookhq/engine/internal/constants"
	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/perrors"
)

// Gateway is the LLMGateway component: it wraps a Client with the
// retry-on-transport-error, schema-error-never-retried, and
// secret-redaction discipline every call into the external model must
// observe. Selector and Reflector never hold a raw Client; they hold a
// Gateway.
type Gateway struct {
	client  Client
	retries int
	backoff time.Duration
	config  ClientConfig
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetries overrides the number of retries on transport errors (default
// constants.DefaultLLMRetries). Schema errors are never retried regardless
// of this setting.
func WithRetries(n int) GatewayOption {
	return func(g *Gateway) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// WithBackoff overrides the delay between retries (default 500ms).
func WithBackoff(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.backoff = d
		}
	}
}

// NewGateway wraps client, logging requests against config only in
// redacted form (config.String() never exposes the raw API key).
func NewGateway(client Client, config ClientConfig, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:  client,
		retries: constants.DefaultLLMRetries,
		backoff: 500 * time.Millisecond,
		config:  config,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Available reports whether the wrapped client is configured and ready.
func (g *Gateway) Available() bool {
	return g.client.Available()
}

// String renders the Gateway's configuration without ever exposing the
// raw API key, safe to include in diagnostic logs.
func (g *Gateway) String() string {
	return g.config.String()
}

// InferTags retries g.client.InferTags on transport failure.
func (g *Gateway) InferTags(ctx context.Context, prompt string, recentHistory []models.TranscriptTurn, maxTags int) (*models.TagInference, error) {
	var result *models.TagInference
	err := g.call(ctx, func() error {
		r, err := g.client.InferTags(ctx, prompt, recentHistory, maxTags)
		result = r
		return err
	})
	return result, err
}

// Reflect retries g.client.Reflect on transport failure.
func (g *Gateway) Reflect(ctx context.Context, transcript []models.TranscriptTurn, playbook *models.Playbook) (*models.ReflectionResult, error) {
	var result *models.ReflectionResult
	err := g.call(ctx, func() error {
		r, err := g.client.Reflect(ctx, transcript, playbook)
		result = r
		return err
	})
	return result, err
}

// MigrateToWhenDo retries g.client.MigrateToWhenDo on transport failure.
func (g *Gateway) MigrateToWhenDo(ctx context.Context, text string) (*models.MigrationResult, error) {
	var result *models.MigrationResult
	err := g.call(ctx, func() error {
		r, err := g.client.MigrateToWhenDo(ctx, text)
		result = r
		return err
	})
	return result, err
}

// call runs fn up to g.retries+1 times. A schema error (malformed or
// out-of-range model output) is never retried — retrying can't fix a
// reply that doesn't parse. Any other error is retried with a fixed
// backoff, then surfaced wrapped in perrors.ErrLLMTransport once
// exhausted.
func (g *Gateway) call(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", perrors.ErrTimeout, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, perrors.ErrLLMSchema) {
			return err
		}
		lastErr = err

		if attempt < g.retries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", perrors.ErrTimeout, ctx.Err())
			case <-time.After(g.backoff):
			}
		}
	}
	return fmt.Errorf("%w: %v", perrors.ErrLLMTransport, lastErr)
}
