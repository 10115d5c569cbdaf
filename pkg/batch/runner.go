package batch

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrSkipped marks jobs that never ran because the batch stopped early.
var ErrSkipped = errors.New("skipped")

// Func processes the item at index i of a batch.
type Func func(ctx context.Context, i int, item string) error

// Result is the outcome of one item.
type Result struct {
	// Index is the position of the item in the input.
	Index int

	// Item is the item as given.
	Item string

	// Err is nil on success, wraps ErrSkipped when the item never ran.
	Err error

	// Duration is the time spent processing the item.
	Duration time.Duration
}

// Options configures a batch run.
type Options struct {
	// MaxParallel bounds the number of concurrent workers. Zero selects
	// the number of CPUs.
	MaxParallel int

	// FailFast stops handing out items after the first failure.
	FailFast bool
}

// Runner processes items with a bounded pool of workers.
type Runner struct {
	opts   Options
	logger zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(opts Options, logger zerolog.Logger) *Runner {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = runtime.NumCPU()
	}
	return &Runner{opts: opts, logger: logger}
}

// Run calls fn for every item and returns one result per item, in input
// order. Items not started when ctx is done, or after a failure with
// FailFast set, are reported as skipped.
func (r *Runner) Run(ctx context.Context, items []string, fn Func) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{Index: i, Item: item, Err: ErrSkipped}
	}
	if len(items) == 0 {
		return results
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerCount := r.opts.MaxParallel
	if len(items) < workerCount {
		workerCount = len(items)
	}

	workQueue := make(chan int, len(items))
	for i := range items {
		workQueue <- i
	}
	close(workQueue)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range workQueue {
				select {
				case <-ctx.Done():
					return
				default:
				}

				start := time.Now()
				err := fn(ctx, i, items[i])
				// Each worker writes only the slots it took from the queue.
				results[i].Err = err
				results[i].Duration = time.Since(start)

				if err != nil {
					r.logger.Debug().Err(err).Str("item", items[i]).Msg("Batch item failed")
					if r.opts.FailFast {
						cancel()
					}
				}
			}
		}()
	}
	wg.Wait()

	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	r.logger.Debug().
		Int("items", len(items)).
		Int("workers", workerCount).
		Int("failed", failed).
		Msg("Batch completed")

	return results
}

// Errors returns the errors of all failed or skipped results.
func Errors(results []Result) []error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errs
}
