package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/loomhq/loom/types"
)

// RateLimitedInvoker wraps an Invoker with a token-bucket limiter so a burst
// of workflow nodes cannot flood a backend. Waiting respects ctx cancellation.
type RateLimitedInvoker struct {
	inner   Invoker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimitedInvoker creates a wrapper allowing rps requests per second
// with the given burst. A nil logger falls back to zap.NewNop.
func NewRateLimitedInvoker(inner Invoker, rps float64, burst int, logger *zap.Logger) *RateLimitedInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitedInvoker{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(zap.String("component", "llm_ratelimit")),
	}
}

func (r *RateLimitedInvoker) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.wait(ctx, req.Endpoint); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, req)
}

func (r *RateLimitedInvoker) Stream(ctx context.Context, req Request) (types.Stream, error) {
	if err := r.wait(ctx, req.Endpoint); err != nil {
		return nil, err
	}
	return r.inner.Stream(ctx, req)
}

func (r *RateLimitedInvoker) wait(ctx context.Context, endpoint string) error {
	if r.limiter.Allow() {
		return nil
	}
	r.logger.Debug("invocation rate limited, waiting", zap.String("endpoint", endpoint))
	if err := r.limiter.Wait(ctx); err != nil {
		return types.NewError(types.ErrUpstreamError, "rate limit wait aborted").WithCause(err)
	}
	return nil
}
