package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/catalog-availability/pkg/loader"
	"github.com/Sternrassler/catalog-availability/pkg/logging"
)

// Config holds runner configuration.
type Config struct {
	// MaxConcurrency is the maximum number of pages loading at once.
	MaxConcurrency int

	// Timeout bounds one page including all of its attempts (0 = none).
	Timeout time.Duration
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        time.Minute,
	}
}

// Job is one page to render.
type Job struct {
	Index  int
	Input  string
	Output string
}

// Jobs maps input paths to jobs writing into outDir under the same base name.
// Callers writing files should pass the result through CheckOutputs.
func Jobs(inputs []string, outDir string) []Job {
	jobs := make([]Job, len(inputs))
	for i, in := range inputs {
		jobs[i] = Job{
			Index:  i,
			Input:  in,
			Output: filepath.Join(outDir, filepath.Base(in)),
		}
	}
	return jobs
}

// ErrOutputConflict is returned by CheckOutputs when two jobs would write
// the same file or a job would overwrite its own input.
var ErrOutputConflict = errors.New("conflicting output path")

// CheckOutputs rejects job lists in which an output path is shared by two
// jobs or equals any job's input. Paths are compared after filepath.Abs.
func CheckOutputs(jobs []Job) error {
	inputs := make(map[string]string, len(jobs))
	for _, job := range jobs {
		in, err := filepath.Abs(job.Input)
		if err != nil {
			return fmt.Errorf("resolve input %q: %w", job.Input, err)
		}
		inputs[in] = job.Input
	}

	outputs := make(map[string]string, len(jobs))
	for _, job := range jobs {
		out, err := filepath.Abs(job.Output)
		if err != nil {
			return fmt.Errorf("resolve output %q: %w", job.Output, err)
		}
		if in, ok := inputs[out]; ok {
			return fmt.Errorf("%w: %q would overwrite input %q", ErrOutputConflict, job.Output, in)
		}
		if prev, ok := outputs[out]; ok {
			return fmt.Errorf("%w: %q and %q both write %q", ErrOutputConflict, prev, job.Input, job.Output)
		}
		outputs[out] = job.Input
	}
	return nil
}

// PageRenderer renders a single page job.
type PageRenderer interface {
	RenderPage(ctx context.Context, job Job) (loader.Outcome, error)
}

// RendererFunc adapts a function to the PageRenderer interface.
type RendererFunc func(ctx context.Context, job Job) (loader.Outcome, error)

// RenderPage calls f.
func (f RendererFunc) RenderPage(ctx context.Context, job Job) (loader.Outcome, error) {
	return f(ctx, job)
}

// Result is the result of one job. Err is set when the page could not be
// read or written; a load that ended in the error state is reported through
// Outcome only.
type Result struct {
	Job      Job
	Outcome  loader.Outcome
	Err      error
	Duration time.Duration
}

// Runner renders pages with a worker pool.
type Runner struct {
	renderer PageRenderer
	config   Config
	logger   zerolog.Logger
}

// NewRunner creates a new runner.
func NewRunner(renderer PageRenderer, config Config) *Runner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &Runner{
		renderer: renderer,
		config:   config,
		logger:   logging.NewLogger(logging.ComponentBatch),
	}
}

// Run renders every job and returns the results in job order. Jobs not
// started before ctx ends carry ctx's error.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	start := time.Now()
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := r.config.MaxConcurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	r.logger.Info().
		Int("pages", len(jobs)).
		Int("workers", workers).
		Msg("Starting batch render")

	jobQueue := make(chan int, len(jobs))
	for i := range jobs {
		jobQueue <- i
	}
	close(jobQueue)

	// Each worker writes only the slots of the jobs it took.
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go r.worker(ctx, jobs, jobQueue, results, &wg, w)
	}
	wg.Wait()

	summary := Summarize(results)
	r.logger.Info().
		Int("pages", summary.Pages).
		Int("populated", summary.Populated).
		Int("load_errors", summary.LoadErrors).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(start)).
		Msg("Batch render complete")

	return results
}

// worker renders jobs from the queue.
func (r *Runner) worker(ctx context.Context, jobs []Job, jobQueue <-chan int, results []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesRendered := 0

	for i := range jobQueue {
		job := jobs[i]

		if err := ctx.Err(); err != nil {
			results[i] = Result{Job: job, Err: err}
			continue
		}

		pageCtx, cancel := r.pageContext(ctx)

		pageStart := time.Now()
		outcome, err := r.renderer.RenderPage(pageCtx, job)
		cancel()

		results[i] = Result{
			Job:      job,
			Outcome:  outcome,
			Err:      err,
			Duration: time.Since(pageStart),
		}

		if err != nil {
			r.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("page", job.Input).
				Msg("Page render failed")
			continue
		}

		r.logger.Debug().
			Int("worker_id", workerID).
			Str("page", job.Input).
			Str("state", string(outcome.State)).
			Int("attempts", outcome.Attempts).
			Msg("Page rendered")
		pagesRendered++
	}

	r.logger.Debug().
		Int("worker_id", workerID).
		Int("pages_rendered", pagesRendered).
		Msg("Worker completed")
}

func (r *Runner) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout > 0 {
		return context.WithTimeout(ctx, r.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// Summary counts results by kind.
type Summary struct {
	Pages      int
	Populated  int
	Skipped    int
	LoadErrors int
	Failed     int
}

// Summarize counts results. A result with Err counts as Failed only.
func Summarize(results []Result) Summary {
	s := Summary{Pages: len(results)}
	for _, res := range results {
		switch {
		case res.Err != nil:
			s.Failed++
		case res.Outcome.State == loader.StatePopulated:
			s.Populated++
		case res.Outcome.State == loader.StateSkipped:
			s.Skipped++
		case res.Outcome.State == loader.StateError:
			s.LoadErrors++
		}
	}
	return s
}
