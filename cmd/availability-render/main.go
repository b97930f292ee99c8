// Command availability-render fills the availability placeholders of a
// rendered discovery page with live status from the inventory endpoint.
//
// A single page is read from --in (default stdin) and written to --out
// (default stdout). Pages given as arguments are rendered in parallel into
// --out-dir.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/Sternrassler/catalog-availability/pkg/batch"
	"github.com/Sternrassler/catalog-availability/pkg/client"
	"github.com/Sternrassler/catalog-availability/pkg/format"
	"github.com/Sternrassler/catalog-availability/pkg/health"
	"github.com/Sternrassler/catalog-availability/pkg/loader"
	"github.com/Sternrassler/catalog-availability/pkg/logging"
	"github.com/Sternrassler/catalog-availability/pkg/metrics"
	"github.com/Sternrassler/catalog-availability/pkg/page"
)

// errLoadFailed marks a run whose page was written with the error message.
var errLoadFailed = errors.New("availability could not be loaded")

const (
	exitFailure    = 1
	exitLoadFailed = 3
)

func main() {
	loadEnvFiles()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("availability-render failed")
		stop()
		os.Exit(exitCode(err))
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "availability-render",
		Usage: "fill availability placeholders of a rendered page",
		Flags: flags(),
		Action: func(c *cli.Context) error {
			opts, err := optionsFromContext(c)
			if err != nil {
				return err
			}

			logging.Setup(logging.Config{
				Level:  opts.LogLevel,
				Pretty: opts.LogPretty,
				Output: c.App.ErrWriter,
			})

			return execute(c.Context, opts, c.App.Reader, c.App.Writer)
		},
	}
}

func exitCode(err error) int {
	if errors.Is(err, errLoadFailed) {
		return exitLoadFailed
	}
	return exitFailure
}

// execute renders the page named by --in/--out, or every page given as an
// argument into --out-dir.
func execute(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	logger := logging.NewLogger(logging.ComponentCLI)

	r, closeRenderer, err := newRenderer(ctx, opts)
	if err != nil {
		return err
	}
	defer closeRenderer()

	if len(opts.Pages) > 0 {
		err = r.renderBatch(ctx, logger)
	} else {
		err = r.renderSingle(ctx, logger, stdin, stdout)
	}

	if opts.LogMetrics {
		logMetrics(logger)
	}
	return err
}

// renderer holds what every page load of one run shares: the client (and
// its pacing), the health recorder and the options.
type renderer struct {
	opts     options
	client   *client.Client
	recorder loader.OutcomeRecorder
}

func newRenderer(ctx context.Context, opts options) (*renderer, func(), error) {
	logger := logging.NewLogger(logging.ComponentCLI)

	availabilityClient, err := client.New(opts.clientConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("create client: %w", err)
	}

	r := &renderer{opts: opts, client: availabilityClient}
	closers := []func(){func() { availabilityClient.Close() }}

	if opts.RedisURL != "" {
		tracker, closeRedis, err := newHealthTracker(ctx, opts)
		if err != nil {
			// Health tracking is optional; pages still load.
			logger.Warn().Err(err).Msg("Endpoint health tracking disabled")
		} else {
			closers = append(closers, closeRedis)
			logHealth(ctx, logger, tracker)
			r.recorder = tracker
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return r, closeAll, nil
}

func (r *renderer) renderSingle(ctx context.Context, logger zerolog.Logger, stdin io.Reader, stdout io.Writer) error {
	in := stdin
	if r.opts.In != "-" {
		f, err := os.Open(r.opts.In)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := stdout
	if r.opts.Out != "-" {
		f, err := os.Create(r.opts.Out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	outcome, err := r.render(ctx, in, out)
	if err != nil && !errors.Is(err, errLoadFailed) {
		return err
	}

	logger.Info().
		Str(logging.FieldLoadID, outcome.LoadID.String()).
		Str("state", string(outcome.State)).
		Int("attempts", outcome.Attempts).
		Msg("Page written")

	return err
}

func (r *renderer) renderBatch(ctx context.Context, logger zerolog.Logger) error {
	jobs := batch.Jobs(r.opts.Pages, r.opts.OutDir)
	if err := batch.CheckOutputs(jobs); err != nil {
		return err
	}

	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	runner := batch.NewRunner(r, batch.Config{
		MaxConcurrency: r.opts.Concurrency,
		Timeout:        r.opts.PageTimeout,
	})
	results := runner.Run(ctx, jobs)
	summary := batch.Summarize(results)

	logger.Info().
		Int("pages", summary.Pages).
		Int("populated", summary.Populated).
		Int("skipped", summary.Skipped).
		Int("load_errors", summary.LoadErrors).
		Int("failed", summary.Failed).
		Str("out_dir", r.opts.OutDir).
		Msg("Pages written")

	switch {
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d pages could not be rendered", summary.Failed, summary.Pages)
	case summary.LoadErrors > 0:
		return fmt.Errorf("%w for %d of %d pages", errLoadFailed, summary.LoadErrors, summary.Pages)
	}
	return nil
}

// RenderPage renders one batch job from file to file.
func (r *renderer) RenderPage(ctx context.Context, job batch.Job) (loader.Outcome, error) {
	in, err := os.Open(job.Input)
	if err != nil {
		return loader.Outcome{}, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(job.Output)
	if err != nil {
		return loader.Outcome{}, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	outcome, err := r.render(ctx, in, out)
	if errors.Is(err, errLoadFailed) {
		// The page was written with the error message.
		return outcome, nil
	}
	return outcome, err
}

// render parses the page, loads availability into its placeholders and
// writes the updated page to out. The page is written for every outcome.
func (r *renderer) render(ctx context.Context, in io.Reader, out io.Writer) (loader.Outcome, error) {
	doc, err := page.Parse(in, page.Config{Selector: r.opts.Selector, IDAttribute: r.opts.IDAttribute})
	if err != nil {
		return loader.Outcome{}, err
	}

	loaderOpts := []loader.Option{
		loader.WithConfig(loader.Config{
			Retry:   r.opts.retryConfig(),
			Timeout: r.opts.AttemptTimeout,
		}),
	}
	if r.recorder != nil {
		loaderOpts = append(loaderOpts, loader.WithRecorder(r.recorder))
	}

	l := loader.New(r.client, format.NewDefaultFormatter(), doc.Placeholders(), loaderOpts...)
	outcome := l.Load(ctx)

	if _, err := doc.WriteTo(out); err != nil {
		return outcome, fmt.Errorf("write page: %w", err)
	}

	if outcome.State == loader.StateError {
		return outcome, fmt.Errorf("%w: %w", errLoadFailed, outcome.Err)
	}
	return outcome, nil
}

// newHealthTracker connects to Redis. REDIS_URL is either a redis:// URL or
// a plain host:port address.
func newHealthTracker(ctx context.Context, opts options) (*health.Tracker, func(), error) {
	redisOpts := &redis.Options{Addr: opts.RedisURL}
	if strings.Contains(opts.RedisURL, "://") {
		parsed, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisOpts = parsed
	}

	redisClient := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
	}

	tracker := health.NewTracker(redisClient, opts.HealthKey, logging.NewLogger(logging.ComponentHealth))
	return tracker, func() { redisClient.Close() }, nil
}

func logHealth(ctx context.Context, logger zerolog.Logger, tracker *health.Tracker) {
	state, err := tracker.GetState(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read endpoint health")
		return
	}

	event := logger.Debug()
	if !state.IsHealthy {
		event = logger.Warn()
	}
	event.
		Int("consecutive_failures", state.ConsecutiveFailures).
		Str("last_error", state.LastError).
		Dur("failing_for", state.FailingFor()).
		Bool("is_healthy", state.IsHealthy).
		Msg("Endpoint health")
}

func logMetrics(logger zerolog.Logger) {
	summary, err := metrics.Summary(metrics.Gatherer)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to gather metrics")
		return
	}

	event := logger.Info()
	for _, name := range metrics.SortedNames(summary) {
		event = event.Float64(name, summary[name])
	}
	event.Msg("Metrics")
}
