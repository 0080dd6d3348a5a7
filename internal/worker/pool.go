// Package worker renders frame sequences on a bounded pool of goroutines.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Generator produces the encoded image for one frame of a sequence.
type Generator interface {
	GenerateFrame(ctx context.Context, index int, phase float64) ([]byte, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, index int, phase float64) ([]byte, error)

// GenerateFrame calls f.
func (f GeneratorFunc) GenerateFrame(ctx context.Context, index int, phase float64) ([]byte, error) {
	return f(ctx, index, phase)
}

// Task is one frame of a loop: its index and loop phase in [0,1).
type Task struct {
	Index int
	Phase float64
}

// Result is the outcome of a task.
type Result struct {
	Task    Task
	Data    []byte
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// ResultFunc receives each result as soon as it is available. Calls are
// serialized.
type ResultFunc func(Result) error

// Config configures the worker pool.
type Config struct {
	Workers    int
	Generator  Generator
	OnProgress ProgressFunc
}

// Pool renders frames in parallel.
type Pool struct {
	workers    int
	generator  Generator
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

// LoopTasks returns count evenly spaced tasks covering one loop, with
// phases index/count.
func LoopTasks(count int) []Task {
	if count <= 0 {
		return nil
	}
	tasks := make([]Task, count)
	for i := range tasks {
		tasks[i] = Task{Index: i, Phase: float64(i) / float64(count)}
	}
	return tasks
}

// Run executes all tasks and returns the results ordered by task index.
// It blocks until every task has completed or the context is cancelled;
// tasks not started before cancellation report the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	var results []Result
	_ = p.Stream(ctx, tasks, func(r Result) error {
		results = append(results, r)
		return nil
	})
	sort.Slice(results, func(i, j int) bool { return results[i].Task.Index < results[j].Task.Index })
	return results
}

// Stream executes all tasks and hands each result to fn in completion
// order. The first error returned by fn cancels the remaining tasks and is
// returned.
func (p *Pool) Stream(ctx context.Context, tasks []Task, fn ResultFunc) error {
	if len(tasks) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var (
		completed int
		failed    int
		fnErr     error
	)
	for result := range resultCh {
		completed++
		if result.Err != nil {
			failed++
		}
		if p.onProgress != nil {
			p.onProgress(completed, len(tasks), failed)
		}
		if fnErr != nil {
			continue
		}
		if err := fn(result); err != nil {
			fnErr = err
			cancel()
		}
	}

	return fnErr
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		data, err := p.generator.GenerateFrame(ctx, task.Index, task.Phase)
		results <- Result{
			Task:    task,
			Data:    data,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
