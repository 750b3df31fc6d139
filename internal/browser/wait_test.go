package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Min: 250 * time.Millisecond, Max: 2 * time.Second, JitterPct: 20}

	for attempt := 1; attempt <= 8; attempt++ {
		d := b.Delay(attempt)
		if d < 0 || d > time.Duration(float64(b.Max)*1.2) {
			t.Errorf("Delay(%d) out of expected range: %v", attempt, d)
		}
	}
}

func TestBackoffDelayWithoutJitterIsExponential(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWaitForSucceedsAfterPolling(t *testing.T) {
	calls := 0
	ok, err := WaitFor(context.Background(), time.Second, Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			return calls >= 3, nil
		})
	if err != nil || !ok {
		t.Fatalf("WaitFor = %v, %v; want true, nil", ok, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWaitForTimeoutIsNotAnError(t *testing.T) {
	ok, err := WaitFor(context.Background(), 20*time.Millisecond, Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond},
		func(ctx context.Context) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if ok {
		t.Errorf("ok = true, want false")
	}
}

func TestWaitForPropagatesConditionError(t *testing.T) {
	boom := errors.New("boom")
	_, err := WaitFor(context.Background(), time.Second, Backoff{Min: time.Millisecond},
		func(ctx context.Context) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestWaitForHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := WaitFor(ctx, time.Minute, Backoff{Min: 5 * time.Millisecond, Max: 5 * time.Millisecond},
		func(ctx context.Context) (bool, error) { return false, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPacerSpacesCalls(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Errorf("first Wait must not block")
	}
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("second Wait returned after %v, want >= interval", elapsed)
	}
}

func TestPacerCancellation(t *testing.T) {
	p := NewPacer(time.Hour)
	_ = p.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
