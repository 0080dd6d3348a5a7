package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// mockGenerator simulates frame rendering for testing
type mockGenerator struct {
	delay      time.Duration
	failFrames map[int]bool // frames that should fail
	callCount  atomic.Int32
}

func (m *mockGenerator) GenerateFrame(ctx context.Context, index int, phase float64) ([]byte, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failFrames != nil && m.failFrames[index] {
		return nil, errors.New("simulated failure")
	}

	return []byte(fmt.Sprintf("frame-%d@%.3f", index, phase)), nil
}

func TestLoopTasks(t *testing.T) {
	tasks := LoopTasks(4)
	if len(tasks) != 4 {
		t.Fatalf("Expected 4 tasks, got %d", len(tasks))
	}
	want := []float64{0, 0.25, 0.5, 0.75}
	for i, task := range tasks {
		if task.Index != i || task.Phase != want[i] {
			t.Errorf("task %d = %+v, want phase %v", i, task, want[i])
		}
	}
	if LoopTasks(0) != nil {
		t.Error("Expected no tasks for zero count")
	}
}

func TestPool_BasicExecution(t *testing.T) {
	gen := &mockGenerator{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	tasks := LoopTasks(3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	for i, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for frame %d: %v", r.Task.Index, r.Err)
		}
		if r.Task.Index != i {
			t.Errorf("Expected results ordered by index, got %d at %d", r.Task.Index, i)
		}
		if len(r.Data) == 0 {
			t.Errorf("Expected data for frame %d, got empty", r.Task.Index)
		}
	}

	if string(results[2].Data) != "frame-2@0.667" {
		t.Errorf("Unexpected frame data %q", results[2].Data)
	}

	if gen.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d generator calls, got %d", len(tasks), gen.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	// Use a longer delay to ensure parallelism is tested
	gen := &mockGenerator{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:   4,
		Generator: gen,
	})

	tasks := LoopTasks(8)

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// With 4 workers and 8 tasks at 50ms each, should take ~100ms (2 batches)
	maxExpected := 300 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	gen := &mockGenerator{
		delay:      10 * time.Millisecond,
		failFrames: map[int]bool{1: true},
	}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	results := pool.Run(context.Background(), LoopTasks(3))

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.Index != 1 {
				t.Errorf("Unexpected failure for frame %d", r.Task.Index)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	gen := &mockGenerator{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, LoopTasks(10))
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}
	if len(results) != 10 {
		t.Errorf("Expected a result for every task, got %d", len(results))
	}

	var cancelledCount int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}
	if cancelledCount == 0 {
		t.Error("Expected cancelled results")
	}
}

func TestPool_StreamStopsOnCallbackError(t *testing.T) {
	gen := &mockGenerator{delay: 5 * time.Millisecond}

	pool := New(Config{
		Workers:   1,
		Generator: gen,
	})

	sinkErr := errors.New("disk full")
	var seen int
	err := pool.Stream(context.Background(), LoopTasks(20), func(r Result) error {
		seen++
		return sinkErr
	})

	if !errors.Is(err, sinkErr) {
		t.Errorf("Expected sink error, got %v", err)
	}
	if seen != 1 {
		t.Errorf("Expected callback to stop after the first error, got %d calls", seen)
	}
	if gen.callCount.Load() >= 20 {
		t.Errorf("Expected remaining frames to be skipped, got %d calls", gen.callCount.Load())
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	gen := &mockGenerator{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal int

	pool := New(Config{
		Workers:   2,
		Generator: gen,
		OnProgress: func(completed, total, failed int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
		},
	})

	tasks := LoopTasks(3)
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d progress callbacks, got %d", len(tasks), progressCalls.Load())
	}
	if lastCompleted != len(tasks) {
		t.Errorf("Expected lastCompleted=%d, got %d", len(tasks), lastCompleted)
	}
	if lastTotal != len(tasks) {
		t.Errorf("Expected lastTotal=%d, got %d", len(tasks), lastTotal)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	gen := &mockGenerator{}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	results := pool.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
	if gen.callCount.Load() != 0 {
		t.Errorf("Expected 0 generator calls for empty tasks, got %d", gen.callCount.Load())
	}
}

func TestGeneratorFunc(t *testing.T) {
	pool := New(Config{
		Generator: GeneratorFunc(func(ctx context.Context, index int, phase float64) ([]byte, error) {
			return []byte{byte(index)}, nil
		}),
	})

	results := pool.Run(context.Background(), LoopTasks(2))
	if len(results) != 2 || results[1].Data[0] != 1 {
		t.Errorf("Unexpected results %+v", results)
	}
}
