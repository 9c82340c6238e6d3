package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunnerKeepsRunningAfterErrors(t *testing.T) {
	var calls atomic.Int32
	var out syncBuffer
	log := zerolog.New(&out)

	job := Job{Name: "flaky", Interval: 5 * time.Millisecond, Run: func(context.Context) (int, error) {
		if calls.Add(1)%2 == 1 {
			return 0, errors.New("upstream unavailable")
		}
		return 1, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRunner(time.Second, log, job).Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 4 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	if !strings.Contains(out.String(), "upstream unavailable") {
		t.Error("job error was not logged")
	}
}

func TestRunnerAppliesTimeout(t *testing.T) {
	got := make(chan error, 1)
	job := Job{Name: "slow", Interval: time.Millisecond, Run: func(ctx context.Context) (int, error) {
		<-ctx.Done()
		select {
		case got <- ctx.Err():
		default:
		}
		return 0, ctx.Err()
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewRunner(10*time.Millisecond, zerolog.Nop(), job).Run(ctx)

	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("run ended with %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout was not applied")
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	var calls atomic.Int32
	job := Job{Name: "panicky", Interval: time.Millisecond, Run: func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return 0, nil
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go NewRunner(time.Second, zerolog.Nop(), job).Run(ctx)

	for calls.Load() < 2 {
		select {
		case <-ctx.Done():
			t.Fatal("job stopped after a panic")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRunnerSkipsDisabledJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewRunner(time.Second, zerolog.Nop(), Job{Name: "off"}, Job{Name: "nil run", Interval: time.Second}).Run(ctx)
}
