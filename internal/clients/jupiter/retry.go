package jupiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy describes exponential backoff for one call site
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

// UltraExecuteRetry is applied to the Ultra execute call: three attempts,
// waiting 2s then 4s, never more than 10s
var UltraExecuteRetry = RetryPolicy{
	MaxAttempts: 3,
	Initial:     2 * time.Second,
	Max:         10 * time.Second,
	Multiplier:  2,
}

// NoRetry runs a call exactly once
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Delay returns the wait before the given retry (1-based)
func (p RetryPolicy) Delay(retry int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.Initial) * math.Pow(mult, float64(retry-1))
	if p.Max > 0 && delay > float64(p.Max) {
		delay = float64(p.Max)
	}
	return time.Duration(delay)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run calls fn until it succeeds, the attempts are used up or ctx ends.
// The last error is returned.
func (p RetryPolicy) run(ctx context.Context, sleep sleepFunc, log zerolog.Logger, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying")
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("%s interrupted: %w", op, sleepErr)
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}
