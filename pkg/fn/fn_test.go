package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	if v, err := r.Unwrap(); v != 42 || err != nil {
		t.Errorf("Unwrap = %d, %v", v, err)
	}

	boom := errors.New("boom")
	if _, err := Err[int](boom).Unwrap(); err != boom {
		t.Errorf("Err = %v", err)
	}
	if !Err[int](nil).IsErr() {
		t.Error("Err(nil) must still fail")
	}
	if !FromPair(1, nil).IsOk() || !FromPair(0, boom).IsErr() {
		t.Error("FromPair")
	}
}

func TestCollect(t *testing.T) {
	v, err := Collect([]Result[int]{Ok(1), Ok(2)}).Unwrap()
	if err != nil || len(v) != 2 || v[1] != 2 {
		t.Errorf("Collect = %v, %v", v, err)
	}
	first := errors.New("first")
	_, err = Collect([]Result[int]{Ok(1), Err[int](first), Err[int](errors.New("second"))}).Unwrap()
	if err != first {
		t.Errorf("err = %v, want first", err)
	}
	if v, _ := Collect[int](nil).Unwrap(); len(v) != 0 {
		t.Error("empty collect")
	}
}

func TestParMapResult(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		workers int
	}{
		{"empty", 0, 4},
		{"bounded", 10, 3},
		{"unbounded", 5, 0},
		{"more workers than items", 2, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.n)
			for i := range items {
				items[i] = i
			}
			var running, peak atomic.Int32
			out := ParMapResult(items, tt.workers, func(i int) Result[int] {
				cur := running.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return Ok(i * i)
			})
			if len(out) != tt.n {
				t.Fatalf("len = %d", len(out))
			}
			for i, r := range out {
				if v, _ := r.Unwrap(); v != i*i {
					t.Errorf("out[%d] = %d", i, v)
				}
			}
			if tt.workers > 0 && int(peak.Load()) > tt.workers {
				t.Errorf("peak concurrency %d > %d", peak.Load(), tt.workers)
			}
		})
	}
}

func appendStage(s string) Stage[string, string] {
	return func(_ context.Context, in string) Result[string] { return Ok(in + s) }
}

func TestPipeline(t *testing.T) {
	v, err := Pipeline(appendStage("a"), appendStage("b"))(context.Background(), ">").Unwrap()
	if err != nil || v != ">ab" {
		t.Errorf("Pipeline = %q, %v", v, err)
	}

	var ran bool
	fail := func(context.Context, string) Result[string] { return Err[string](errors.New("stop")) }
	after := func(_ context.Context, s string) Result[string] { ran = true; return Ok(s) }
	if _, err := Pipeline(appendStage("a"), fail, after)(context.Background(), "").Unwrap(); err == nil || ran {
		t.Errorf("pipeline should stop at first failure (err=%v ran=%v)", err, ran)
	}

	if v, _ := Pipeline[string]()(context.Background(), "same").Unwrap(); v != "same" {
		t.Errorf("empty pipeline = %q", v)
	}
}

func TestTracedStage(t *testing.T) {
	inner := func(_ context.Context, n int) Result[int] {
		if n < 0 {
			return Err[int](errors.New("negative"))
		}
		return Ok(n + 1)
	}
	s := TracedStage("test.inc", inner)
	if v, _ := s(context.Background(), 1).Unwrap(); v != 2 {
		t.Errorf("traced = %d", v)
	}
	if s(context.Background(), -1).IsOk() {
		t.Error("error should pass through")
	}
}

func TestRetry(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 4, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond, Jitter: true}
	var calls int
	var retried []int
	opts.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }
	v, err := Retry(context.Background(), opts, func(context.Context) Result[string] {
		calls++
		if calls < 3 {
			return Err[string](errors.New("flaky"))
		}
		return Ok("done")
	}).Unwrap()
	if err != nil || v != "done" || calls != 3 {
		t.Errorf("Retry = %q, %v after %d calls", v, err, calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v", retried)
	}
}

func TestRetryExhausted(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), RetryOpts{MaxAttempts: 3}, func(context.Context) Result[int] {
		calls++
		return Err[int](errors.New("always"))
	}).Unwrap()
	if err == nil || calls != 3 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}

	calls = 0
	Retry(context.Background(), RetryOpts{}, func(context.Context) Result[int] {
		calls++
		return Err[int](errors.New("once"))
	})
	if calls != 1 {
		t.Errorf("zero MaxAttempts should make one call, got %d", calls)
	}
}

func TestRetryNotRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	var calls int
	opts := RetryOpts{MaxAttempts: 5, Retryable: func(err error) bool { return err != permanent }}
	_, err := Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		return Err[int](permanent)
	}).Unwrap()
	if err != permanent || calls != 1 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour}
	opts.OnRetry = func(int, error) { cancel() }
	_, err := Retry(ctx, opts, func(context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	}).Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestBackoff(t *testing.T) {
	if got := backoff(10*time.Second, RetryOpts{MaxWait: time.Second}); got != time.Second {
		t.Errorf("capped = %v", got)
	}
	if got := backoff(10*time.Second, RetryOpts{}); got != 10*time.Second {
		t.Errorf("uncapped = %v", got)
	}
	for range 20 {
		got := backoff(time.Second, RetryOpts{Jitter: true})
		if got < 500*time.Millisecond || got >= 1500*time.Millisecond {
			t.Fatalf("jittered = %v", got)
		}
	}
}
