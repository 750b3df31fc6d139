package browser

import (
	"context"
	"math/rand"
	"time"

	"xhs-scout/internal/config"
)

// Backoff - экспоненциальная задержка с джиттером между опросами.
type Backoff struct {
	Min       time.Duration
	Max       time.Duration
	JitterPct int
}

// NewBackoff берёт параметры опроса из секции backoff.
func NewBackoff(cfg *config.Config) Backoff {
	return Backoff{
		Min:       cfg.GetBackoffMin(),
		Max:       cfg.GetBackoffMax(),
		JitterPct: cfg.Backoff.JitterPct,
	}
}

// Delay возвращает паузу перед попыткой attempt (с 1).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	minD, maxD := b.Min, b.Max
	if minD <= 0 {
		minD = 100 * time.Millisecond
	}
	if maxD < minD {
		maxD = minD
	}

	// Exponential backoff: min * 2^(attempt-1)
	exponential := maxD
	if attempt < 32 {
		if d := minD * time.Duration(1<<uint(attempt-1)); d > 0 && d < maxD {
			exponential = d
		}
	}

	// Apply jitter: ±jitterPct%
	if b.JitterPct <= 0 {
		return exponential
	}
	jitterRange := float64(exponential) * float64(b.JitterPct) / 100
	jitter := (rand.Float64()*2 - 1) * jitterRange
	result := time.Duration(float64(exponential) + jitter)
	if result < 0 {
		result = 0
	}
	return result
}

// WaitFor опрашивает cond, пока она не вернёт true или не истечёт timeout.
// Истечение timeout - не ошибка: возвращается (false, nil).
// Ошибка возвращается при отмене родительского контекста или ошибке cond.
func WaitFor(ctx context.Context, timeout time.Duration, b Backoff, cond func(ctx context.Context) (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		delay := b.Delay(attempt)
		if delay > remaining {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		}
	}
}

// WaitAny ждёт появления хотя бы одного из селекторов.
func WaitAny(ctx context.Context, page Page, selectors []string, timeout time.Duration, b Backoff) (bool, error) {
	return WaitFor(ctx, timeout, b, func(ctx context.Context) (bool, error) {
		for _, sel := range selectors {
			n, err := page.Count(ctx, sel)
			if err != nil {
				return false, err
			}
			if n > 0 {
				return true, nil
			}
		}
		return false, nil
	})
}

// Sleep - пауза, прерываемая контекстом.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
