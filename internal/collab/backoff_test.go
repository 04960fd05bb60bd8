package collab

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Next(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 40*time.Millisecond)

	bounds := []time.Duration{10, 20, 40, 40}
	for i, want := range bounds {
		want *= time.Millisecond
		got := b.Next()
		lo, hi := time.Duration(float64(want)*0.8), time.Duration(float64(want)*1.2)
		if got < lo || got > hi {
			t.Errorf("step %d: Next() = %v, want within [%v, %v]", i, got, lo, hi)
		}
	}

	b.Reset()
	if got := b.Next(); got > 12*time.Millisecond {
		t.Errorf("after Reset, Next() = %v, want ~10ms", got)
	}
}

func TestBackoff_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBackoff(time.Hour, time.Hour)
	if err := b.Sleep(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() = %v, want context.Canceled", err)
	}
}

func TestRetry(t *testing.T) {
	errBusy := errors.New("busy")

	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds on third", failures: 2, attempts: 3, wantCalls: 3},
		{name: "exhausted", failures: 5, attempts: 3, wantCalls: 3, wantErr: errBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.attempts, NewBackoff(time.Millisecond, time.Millisecond), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return errBusy
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) && !(err == nil && tt.wantErr == nil) {
				t.Errorf("Retry() = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}
