package embedcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/skillgap/internal/storage"
)

// countingCompute returns a ComputeFunc that records how often it ran.
func countingCompute(calls *atomic.Int32, vec []float32) ComputeFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return vec, nil
	}
}

type failingBackend struct {
	gets, puts atomic.Int32
}

func (b *failingBackend) GetCachedEmbedding(ctx context.Context, key string) ([]byte, bool, error) {
	b.gets.Add(1)
	return nil, false, errors.New("disk unavailable")
}

func (b *failingBackend) PutCachedEmbedding(ctx context.Context, key string, blob []byte) error {
	b.puts.Add(1)
	return errors.New("disk unavailable")
}

func equalVec(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRoundTripAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	want := []float32{0.25, -1.5, 3}
	var calls atomic.Int32

	s1, err := storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	c1 := New(s1)
	got, err := c1.GetOrCompute(ctx, "Python", "ollama:nomic", countingCompute(&calls, want))
	if err != nil {
		t.Fatalf("first GetOrCompute: %v", err)
	}
	if !equalVec(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	s1.Close()

	s2, err := storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	c2 := New(s2)
	got, err = c2.GetOrCompute(ctx, "  python ", "ollama:nomic", countingCompute(&calls, []float32{9}))
	if err != nil {
		t.Fatalf("second GetOrCompute: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
	if !equalVec(got, want) {
		t.Errorf("reloaded vector = %v, want %v", got, want)
	}
}

func TestKeySeparatesSources(t *testing.T) {
	if Key("python", "a") == Key("python", "b") {
		t.Error("different sources produced the same key")
	}
	if Key("python", "a") != Key("python", "a") {
		t.Error("key is not deterministic")
	}
}

func TestDegradesToMemory(t *testing.T) {
	backend := &failingBackend{}
	c := New(backend)
	ctx := context.Background()
	var calls atomic.Int32
	vec := []float32{1, 2}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrCompute(ctx, "go", "src", countingCompute(&calls, vec))
		if err != nil {
			t.Fatalf("GetOrCompute #%d: %v", i, err)
		}
		if !equalVec(got, vec) {
			t.Fatalf("got %v, want %v", got, vec)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
	if !c.Stats().Degraded {
		t.Error("cache should report degraded mode")
	}
	if backend.gets.Load() != 1 {
		t.Errorf("backend read %d times after failure, want 1", backend.gets.Load())
	}
	if backend.puts.Load() != 0 {
		t.Errorf("backend written %d times after failure, want 0", backend.puts.Load())
	}
}

func TestComputeErrorIsNotCached(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	_, err := c.GetOrCompute(ctx, "rust", "src", func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model not loaded")
	})
	if err == nil {
		t.Fatal("expected compute error")
	}

	var calls atomic.Int32
	if _, err := c.GetOrCompute(ctx, "rust", "src", countingCompute(&calls, []float32{1})); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("retry did not recompute")
	}
}

func TestEmptyVectorIsAnError(t *testing.T) {
	c := New(nil)
	_, err := c.GetOrCompute(context.Background(), "x", "src", func(ctx context.Context, text string) ([]float32, error) {
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected error for empty vector")
	}
}

func TestConcurrentCallersShareResult(t *testing.T) {
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	c := New(s)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		<-release
		return []float32{7}, nil
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "docker", "src", compute)
			if err == nil && (len(v) != 1 || v[0] != 7) {
				err = errors.New("unexpected vector")
			}
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("caller failed: %v", err)
		}
	}
	if calls.Load() < 1 || calls.Load() > n {
		t.Errorf("compute calls = %d, want between 1 and %d", calls.Load(), n)
	}
	if st := c.Stats(); st.Entries != 1 {
		t.Errorf("entries = %d, want 1", st.Entries)
	}
}

func TestCancelledContextDoesNotBlock(t *testing.T) {
	c := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	_, err := c.GetOrCompute(ctx, "slow", "src", func(context.Context, string) ([]float32, error) {
		<-block
		return []float32{1}, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("GetOrCompute blocked past the context deadline")
	}
}

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New(nil)
	started := make(chan struct{})
	var once sync.Once
	release := make(chan struct{})
	compute := func(ctx context.Context, text string) ([]float32, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return []float32{3, 4}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctxA, "python", "src", compute)
		errA <- err
	}()
	<-started

	type result struct {
		vec []float32
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), "python", "src", compute)
		resB <- result{v, err}
	}()

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("caller A err = %v, want Canceled", err)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)

	b := <-resB
	if b.err != nil {
		t.Fatalf("caller B failed: %v", b.err)
	}
	if !equalVec(b.vec, []float32{3, 4}) {
		t.Errorf("caller B got %v, want [3 4]", b.vec)
	}
}

func TestComputeTimeout(t *testing.T) {
	c := New(nil, WithComputeTimeout(20*time.Millisecond))
	_, err := c.GetOrCompute(context.Background(), "slow", "src", func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestMemoryOnlyIsNotDegraded(t *testing.T) {
	c := New(nil)
	var calls atomic.Int32
	if _, err := c.GetOrCompute(context.Background(), "go", "src", countingCompute(&calls, []float32{1})); err != nil {
		t.Fatal(err)
	}
	if c.Stats().Degraded {
		t.Error("memory-only cache reports degraded")
	}
}

func TestCodecRejectsCorruptBlob(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
	v, err := decodeFloat32s(encodeFloat32s([]float32{1.5, -2}))
	if err != nil || !equalVec(v, []float32{1.5, -2}) {
		t.Errorf("decode(encode) = %v, %v", v, err)
	}
}
