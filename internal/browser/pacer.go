package browser

import (
	"context"
	"sync"
	"time"
)

// Pacer выдерживает минимальный интервал между последовательными действиями
// (например, раундами поиска), чтобы не провоцировать антибот-защиту.
type Pacer struct {
	interval time.Duration
	last     time.Time
	mu       sync.Mutex
	now      func() time.Time
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, now: time.Now}
}

// Wait блокирует до истечения интервала с прошлого вызова.
// Первый вызов не ждёт.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		waitTime := p.interval - p.now().Sub(p.last)
		if waitTime > 0 {
			if err := Sleep(ctx, waitTime); err != nil {
				return err
			}
		}
	}
	p.last = p.now()
	return nil
}
