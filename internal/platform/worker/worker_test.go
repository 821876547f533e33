package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleTickerLoop_RunOnStart(t *testing.T) {
	var ticks atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())

	err := make(chan error, 1)
	go func() {
		err <- SingleTickerLoop(ctx, SingleTickerConfig{
			Name:       "test",
			Interval:   time.Hour,
			RunOnStart: true,
			OnTick: func(context.Context) {
				ticks.Add(1)
				cancel()
			},
		})
	}()

	select {
	case e := <-err:
		if !errors.Is(e, context.Canceled) {
			t.Errorf("SingleTickerLoop() error = %v, expected context.Canceled", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	if ticks.Load() != 1 {
		t.Errorf("ticks = %d, expected 1", ticks.Load())
	}
}

func TestSingleTickerLoop_RecoverPanic(t *testing.T) {
	var ticks atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := make(chan error, 1)
	go func() {
		err <- SingleTickerLoop(ctx, SingleTickerConfig{
			Name:     "test",
			Interval: 10 * time.Millisecond,
			OnTick: func(context.Context) {
				if ticks.Add(1) >= 2 {
					cancel()
					return
				}

				panic("boom")
			},
		})
	}()

	select {
	case <-err:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not survive panic")
	}

	if ticks.Load() < 2 {
		t.Errorf("ticks = %d, expected loop to continue after panic", ticks.Load())
	}
}

func TestWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, expected context.Canceled", err)
	}
}

func TestWait_ZeroDuration(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}
