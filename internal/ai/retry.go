package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Timeout bounds every single attempt, not the whole sequence.
	Timeout time.Duration
}

type retryGenerator struct {
	next IGenerator
	cfg  RetryConfig
}

func WithRetryGenerator(g IGenerator, cfg RetryConfig) IGenerator {
	if g == nil {
		return nil
	}
	return &retryGenerator{next: g, cfg: cfg}
}

func (r *retryGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return Retry(ctx, r.cfg, "generate", func(ctx context.Context) (string, error) {
		return r.next.Generate(ctx, prompt)
	})
}

type retryEmbedder struct {
	next IEmbedder
	cfg  RetryConfig
}

func WithRetryEmbedder(e IEmbedder, cfg RetryConfig) IEmbedder {
	if e == nil {
		return nil
	}
	return &retryEmbedder{next: e, cfg: cfg}
}

func (r *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return Retry(ctx, r.cfg, "embed", func(ctx context.Context) ([]float32, error) {
		return r.next.Embed(ctx, text, taskType)
	})
}

func (r *retryEmbedder) ModelName() string {
	return r.next.ModelName()
}

// Retry runs fn with exponential backoff until it succeeds, fails with a
// permanent error, or MaxRetries extra attempts are used up.
func Retry[T any](ctx context.Context, cfg RetryConfig, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	if cfg.BaseDelay > 0 {
		policy.InitialInterval = cfg.BaseDelay
	}
	maxTries := cfg.MaxRetries + 1
	if maxTries < 1 {
		maxTries = 1
	}
	attempt := 0
	operation := func() (T, error) {
		attempt++
		callCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		res, err := fn(callCtx)
		if err != nil && isPermanent(ctx, err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, wait time.Duration) {
		logutil.GetLogger(ctx).Warn("retrying ai call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(notify),
	)
}

func isPermanent(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled)
}
