package audit

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	log "github.com/charmbracelet/log"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Executor retries gateway calls that failed with a transient
// classification. Every remote call the engine makes goes through Do, so
// the retry policy is enforced in one place.
type Executor struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    bool

	// sleep is replaceable in tests to avoid real delays
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor returns an Executor with the given attempt budget.
// Values below 1 fall back to a single attempt.
func NewExecutor(attempts int) *Executor {
	if attempts < 1 {
		attempts = 1
	}
	return &Executor{
		attempts:  attempts,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		jitter:    true,
		sleep:     sleepCtx,
	}
}

// Do runs fn up to the configured attempt count. Only transient failures
// are retried; permission, not-found and malformed failures return at once.
// Exhausted retries return the last transient error.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := e.baseDelay

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if models.ClassOf(err) != models.ErrClassTransient {
			return err
		}

		if attempt == e.attempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", op, e.attempts, err)
		}

		wait := delay
		if e.jitter {
			wait += time.Duration(rand.Int63n(int64(delay) / 2))
		}
		log.Debug("retrying throttled call", "op", op, "attempt", attempt, "wait", wait)

		if err := e.sleep(ctx, wait); err != nil {
			return err
		}

		delay *= 2
		if delay > e.maxDelay {
			delay = e.maxDelay
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
