package screenshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olegrjumin/riskscan/internal/logging"
)

// blockingCapturer holds every capture until release is closed
type blockingCapturer struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingCapturer() *blockingCapturer {
	return &blockingCapturer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (b *blockingCapturer) Capture(ctx context.Context, opts *Options) (*Result, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return &Result{Success: true, URL: opts.URL, Data: []byte("img"), SizeBytes: 3}, nil
}

func TestQueueRejectsWhenFull(t *testing.T) {
	base := newBlockingCapturer()
	qs := newQueue(base, nil, 1, 1)
	defer qs.Close()

	var wg sync.WaitGroup
	results := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, results[0] = qs.CaptureQueued(context.Background(), &Options{URL: "https://one.example"})
	}()
	<-base.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, results[1] = qs.CaptureQueued(context.Background(), &Options{URL: "https://two.example"})
	}()

	deadline := time.After(2 * time.Second)
	for {
		if queued, _ := qs.QueueStats(); queued == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("second request never queued")
		case <-time.After(5 * time.Millisecond):
		}
	}

	res, err := qs.CaptureQueued(context.Background(), &Options{URL: "https://three.example"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}
	if res == nil || res.Success {
		t.Errorf("Expected a failed result, got %+v", res)
	}

	close(base.release)
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if base.calls.Load() != 2 {
		t.Errorf("Expected 2 captures, got %d", base.calls.Load())
	}
}

func TestQueueWaitTimeout(t *testing.T) {
	base := newBlockingCapturer()
	qs := newQueue(base, nil, 1, 4)
	defer func() {
		close(base.release)
		qs.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := qs.CaptureQueued(ctx, &Options{URL: "https://slow.example"})
	if !errors.Is(err, ErrQueueTimeout) {
		t.Errorf("Expected ErrQueueTimeout, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	base := newBlockingCapturer()
	close(base.release)

	closed := 0
	qs := newQueue(base, func() error { closed++; return nil }, 2, 2)

	if _, err := qs.CaptureQueued(context.Background(), &Options{URL: "https://ok.example"}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	if err := qs.Close(); err != nil {
		t.Fatal(err)
	}
	if err := qs.Close(); err != nil {
		t.Fatal(err)
	}
	if closed != 1 {
		t.Errorf("Expected closer to run once, ran %d times", closed)
	}

	if _, err := qs.CaptureQueued(context.Background(), &Options{URL: "https://late.example"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

type fakeQueue struct {
	result *Result
	err    error
	got    *Options
	hasDL  bool
}

func (f *fakeQueue) CaptureQueued(ctx context.Context, opts *Options) (*Result, error) {
	f.got = opts
	_, f.hasDL = ctx.Deadline()
	return f.result, f.err
}

func TestEnricherCapture(t *testing.T) {
	q := &fakeQueue{result: &Result{Success: true, Data: []byte{0xff, 0xd8}}}
	e := NewEnricher(q, EnricherConfig{Width: 800, Height: 600, Timeout: time.Second}, logging.Discard())

	data, err := e.Capture(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(data) != 2 {
		t.Errorf("Expected image bytes, got %v", data)
	}
	if q.got.Format != FormatJPEG || q.got.Width != 800 || q.got.Height != 600 || q.got.URL != "https://example.com" {
		t.Errorf("unexpected options %+v", q.got)
	}
	if !q.hasDL {
		t.Error("Expected the capture context to carry a deadline")
	}
}

func TestEnricherFailures(t *testing.T) {
	tests := []struct {
		name string
		q    *fakeQueue
		want error
	}{
		{"queue error", &fakeQueue{err: ErrQueueFull, result: &Result{}}, ErrQueueFull},
		{"unsuccessful", &fakeQueue{result: &Result{Success: false}}, ErrScreenshotFailed},
		{"empty data", &fakeQueue{result: &Result{Success: true}}, ErrScreenshotFailed},
		{"nil result", &fakeQueue{}, ErrScreenshotFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnricher(tt.q, EnricherConfig{}, nil)
			data, err := e.Capture(context.Background(), "https://example.com")
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if data != nil {
				t.Errorf("Expected no data, got %v", data)
			}
		})
	}
}

type countingRecycler struct {
	calls atomic.Int32
}

func (c *countingRecycler) RecycleUnhealthy() int {
	c.calls.Add(1)
	return 1
}

func TestMaintenanceSweeps(t *testing.T) {
	r := &countingRecycler{}
	m := NewMaintenance(r, 10*time.Millisecond, logging.Discard())
	m.Start()

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	if r.calls.Load() < 2 {
		t.Errorf("Expected at least 2 sweeps, got %d", r.calls.Load())
	}
}
