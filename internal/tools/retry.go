package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	logx "github.com/leadpilot-ai/server/pkg/logger"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 100 * time.Millisecond
)

// Executor runs adapter actions with bounded retries. Only results that
// explicitly allow retrying are attempted again; panics and permanent
// failures end the attempt immediately. The caller always gets the last
// result produced, whether or not the budget ran out.
type Executor struct {
	maxRetries  uint64
	backoffBase time.Duration
}

type ExecutorOption func(*Executor)

// WithBackoffBase overrides the first retry delay. Tests use this to keep
// backoff out of the critical path.
func WithBackoffBase(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.backoffBase = d
	}
}

func WithMaxRetries(n uint64) ExecutorOption {
	return func(e *Executor) {
		e.maxRetries = n
	}
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteWithRetry runs one action through the adapter with exponential
// backoff between attempts.
func (e *Executor) ExecuteWithRetry(ctx context.Context, adapter Adapter, action string, params Params) Result {
	var last Result
	attempt := 0

	backoff := retry.WithMaxRetries(e.maxRetries, retry.NewExponential(e.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		last = e.safeExecute(ctx, adapter, action, params)

		logx.Debug().
			Str("tool", adapter.Name()).
			Str("action", action).
			Int("attempt", attempt).
			Bool("success", last.Success).
			Str("error", last.Error).
			Msg("tool executed")

		if !last.Success && last.RetryAllowed {
			return retry.RetryableError(errors.New(last.Error))
		}
		return nil
	})
	if err != nil {
		logx.Warn().
			Str("tool", adapter.Name()).
			Str("action", action).
			Int("attempts", attempt).
			Msg("tool retries exhausted")
	}
	return last
}

// safeExecute shields the pipeline from panicking adapters. A panic becomes
// a permanent failure, never a retry.
func (e *Executor) safeExecute(ctx context.Context, adapter Adapter, action string, params Params) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().
				Str("tool", adapter.Name()).
				Str("action", action).
				Any("panic", r).
				Msg("tool panicked")
			res = Failure(fmt.Sprintf("tool execution exception: %v", r))
		}
	}()
	return adapter.Execute(ctx, action, params)
}
