// Package loader fetches live availability for the catalog records on a
// rendered page and writes formatted status text into each record's
// placeholder.
//
// One Loader serves one page load. It batches every record id into a single
// request, retries the whole batch on failure up to RetryConfig.MaxAttempts,
// and guarantees that every placeholder ends with exactly one rendering:
// formatted holdings, the no-status message, or the load error message.
package loader

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sternrassler/catalog-availability/pkg/format"
	"github.com/Sternrassler/catalog-availability/pkg/holding"
	"github.com/Sternrassler/catalog-availability/pkg/logging"
)

// DefaultAttemptTimeout bounds a single fetch attempt.
const DefaultAttemptTimeout = 5000 * time.Millisecond

const tracerName = "github.com/Sternrassler/catalog-availability/pkg/loader"

// Placeholder is a page element awaiting availability text for one record.
type Placeholder interface {
	// RecordID returns the identifier sent to the status endpoint.
	RecordID() string

	// Render replaces the placeholder content.
	Render(content string)
}

// Fetcher performs one batched availability request.
type Fetcher interface {
	FetchAvailability(ctx context.Context, ids []string) (*holding.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ids []string) (*holding.Response, error)

// FetchAvailability calls f.
func (f FetcherFunc) FetchAvailability(ctx context.Context, ids []string) (*holding.Response, error) {
	return f(ctx, ids)
}

// OutcomeRecorder receives the terminal result of every load that issued a
// request, e.g. to share endpoint health across loader instances.
type OutcomeRecorder interface {
	RecordSuccess(ctx context.Context, attempts int) error
	RecordFailure(ctx context.Context, err error) error
}

// State is the terminal state of a page load.
type State string

const (
	// StateSkipped means the page had no placeholders and no request was made.
	StateSkipped State = "skipped"

	// StatePopulated means data arrived and every placeholder was rendered from it.
	StatePopulated State = "populated"

	// StateError means every attempt failed and the error message was rendered.
	StateError State = "error"
)

// Outcome summarises one page load.
type Outcome struct {
	LoadID   uuid.UUID
	State    State
	Attempts int
	Err      error
}

// Config holds loader configuration.
type Config struct {
	Retry RetryConfig

	// Timeout bounds each fetch attempt.
	Timeout time.Duration
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() Config {
	return Config{
		Retry:   DefaultRetryConfig(),
		Timeout: DefaultAttemptTimeout,
	}
}

// Option customises a Loader.
type Option func(*Loader)

// WithConfig replaces the loader configuration.
func WithConfig(cfg Config) Option {
	return func(l *Loader) { l.config = cfg }
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(l *Loader) { l.config.Retry = cfg }
}

// WithMaxAttempts sets the number of fetch attempts per page load.
func WithMaxAttempts(n int) Option {
	return func(l *Loader) { l.config.Retry.MaxAttempts = n }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithRecorder attaches an OutcomeRecorder.
func WithRecorder(r OutcomeRecorder) Option {
	return func(l *Loader) { l.recorder = r }
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Loader) { l.tracer = tp.Tracer(tracerName) }
}

// Loader orchestrates the fetch-retry-render cycle for one page.
type Loader struct {
	fetcher      Fetcher
	formatter    format.HoldingFormatter
	placeholders []Placeholder
	config       Config
	recorder     OutcomeRecorder
	logger       zerolog.Logger
	tracer       trace.Tracer
	started      atomic.Bool
}

// New creates a loader for the given placeholders. A nil formatter selects
// format.NewDefaultFormatter.
func New(fetcher Fetcher, formatter format.HoldingFormatter, placeholders []Placeholder, opts ...Option) *Loader {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if formatter == nil {
		formatter = format.NewDefaultFormatter()
	}

	l := &Loader{
		fetcher:      fetcher,
		formatter:    formatter,
		placeholders: placeholders,
		config:       DefaultConfig(),
		logger:       logging.NewLogger(logging.ComponentLoader),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.config.Retry = l.config.Retry.normalized()
	if l.config.Timeout <= 0 {
		l.config.Timeout = DefaultAttemptTimeout
	}

	return l
}

// CollectPendingIDs returns the record ids of all placeholders in page
// order. Blank ids are skipped and repeated ids are kept once.
func (l *Loader) CollectPendingIDs() []string {
	ids := make([]string, 0, len(l.placeholders))
	seen := make(map[string]struct{}, len(l.placeholders))

	for _, p := range l.placeholders {
		id := recordID(p)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}

// Load runs the page's loading sequence to completion and returns its
// outcome. It may be called once per Loader.
func (l *Loader) Load(ctx context.Context) Outcome {
	out := Outcome{LoadID: uuid.New()}

	if !l.started.CompareAndSwap(false, true) {
		out.State = StateError
		out.Err = ErrAlreadyLoaded
		return out
	}

	logger := logging.ForLoad(l.logger, out.LoadID.String())

	if len(l.placeholders) == 0 {
		logger.Debug().Msg("No placeholders on page, skipping availability request")
		out.State = StateSkipped
		loadsTotal.WithLabelValues(string(out.State)).Inc()
		return out
	}

	ids := l.CollectPendingIDs()
	if len(ids) == 0 {
		// Placeholders without ids can never receive data.
		logger.Warn().
			Int("placeholders", len(l.placeholders)).
			Msg("Placeholders carry no record ids, rendering no status")
		l.Populate(&holding.Response{Availability: map[string]holding.RecordAvailability{}})
		out.State = StatePopulated
		loadsTotal.WithLabelValues(string(out.State)).Inc()
		return out
	}

	ctx, span := l.tracer.Start(ctx, "availability.load", trace.WithAttributes(
		attribute.String("availability.load_id", out.LoadID.String()),
		attribute.Int("availability.ids", len(ids)),
		attribute.Int("availability.placeholders", len(l.placeholders)),
	))
	defer span.End()

	logger.Debug().
		Int("ids", len(ids)).
		Int("max_attempts", l.config.Retry.MaxAttempts).
		Msg("Loading availability")

	out = l.loadAttempt(ctx, logger, ids, 1, out)

	span.SetAttributes(
		attribute.String("availability.state", string(out.State)),
		attribute.Int("availability.attempts", out.Attempts),
	)
	if out.Err != nil {
		span.SetStatus(codes.Error, out.Err.Error())
	}
	loadsTotal.WithLabelValues(string(out.State)).Inc()

	return out
}

// LoadAsync runs Load in its own goroutine and delivers the outcome on the
// returned channel, which is closed afterwards.
func (l *Loader) LoadAsync(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		ch <- l.Load(ctx)
	}()
	return ch
}

// loadAttempt issues attempt number attempt and continues with the next
// attempt on failure until the retry bound is reached.
func (l *Loader) loadAttempt(ctx context.Context, logger zerolog.Logger, ids []string, attempt int, out Outcome) Outcome {
	out.Attempts = attempt
	maxAttempts := l.config.Retry.MaxAttempts

	resp, err := l.fetchOnce(ctx, ids, attempt)
	if err == nil {
		attemptsTotal.WithLabelValues("success", "").Inc()
		if attempt > 1 {
			logger.Info().Int(logging.FieldAttempt, attempt).Msg("Availability loaded after retry")
		} else {
			logger.Debug().Msg("Availability loaded")
		}
		l.recordSuccess(ctx, logger, attempt)

		l.Populate(resp)
		out.State = StatePopulated
		return out
	}

	class := errorClass(err)
	attemptsTotal.WithLabelValues("failure", class).Inc()
	logger.Warn().
		Err(err).
		Int(logging.FieldAttempt, attempt).
		Int("max_attempts", maxAttempts).
		Str(logging.FieldErrorClass, class).
		Msg("Error loading availability")

	if attempt >= maxAttempts {
		retryExhaustedTotal.Inc()
		logger.Error().
			Err(err).
			Int("attempts", attempt).
			Msg("Availability retry attempts exhausted")

		l.ErrorLoading()
		out.State = StateError
		out.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		l.recordFailure(ctx, logger, out.Err)
		return out
	}

	backoff := l.config.Retry.Backoff(attempt)
	retryBackoffSeconds.Observe(backoff.Seconds())
	if waitErr := wait(ctx, backoff); waitErr != nil {
		logger.Warn().
			Int(logging.FieldAttempt, attempt).
			Msg("Context cancelled during availability retry")

		l.ErrorLoading()
		out.State = StateError
		out.Err = fmt.Errorf("%w: %w", ErrContextCancelled, waitErr)
		l.recordFailure(ctx, logger, out.Err)
		return out
	}

	retriesTotal.Inc()
	return l.loadAttempt(ctx, logger, ids, attempt+1, out)
}

// fetchOnce performs a single attempt bounded by the attempt timeout.
// A response carrying an error field is reported as an EndpointError.
func (l *Loader) fetchOnce(ctx context.Context, ids []string, attempt int) (*holding.Response, error) {
	ctx, span := l.tracer.Start(ctx, "availability.attempt", trace.WithAttributes(
		attribute.Int("availability.attempt", attempt),
	))
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	resp, err := l.safeFetch(attemptCtx, ids)
	switch {
	case err != nil:
	case resp == nil:
		err = ErrNilResponse
	case resp.Failed():
		err = &EndpointError{Message: resp.Error}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

// safeFetch calls the fetcher, turning a panic into a failed attempt.
func (l *Loader) safeFetch(ctx context.Context, ids []string) (resp *holding.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, &FetcherPanicError{Value: r}
		}
	}()
	return l.fetcher.FetchAvailability(ctx, ids)
}

// Populate renders every placeholder from resp. Records that are absent,
// have no holdings, or format to nothing receive the no-status message.
func (l *Loader) Populate(resp *holding.Response) {
	noStatus := l.noStatus()

	for _, p := range l.placeholders {
		id := recordID(p)
		content := l.formatRecord(id, resp.HoldingsFor(id))
		if content == "" {
			placeholdersRenderedTotal.WithLabelValues(renderingNoStatus).Inc()
			p.Render(noStatus)
			continue
		}
		placeholdersRenderedTotal.WithLabelValues(renderingFormatted).Inc()
		p.Render(content)
	}
}

// ErrorLoading renders the terminal error message into every placeholder.
func (l *Loader) ErrorLoading() {
	content := l.terminalError()
	for _, p := range l.placeholders {
		placeholdersRenderedTotal.WithLabelValues(renderingError).Inc()
		p.Render(content)
	}
}

// formatRecord formats the holdings of one record. Holdings that format to
// "" are dropped. A panicking formatter yields "" so the record falls back
// to the no-status message instead of breaking the page.
func (l *Loader) formatRecord(id string, holdings []holding.Holding) (content string) {
	if len(holdings) == 0 {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str(logging.FieldRecordID, id).
				Interface("panic", r).
				Msg("Formatter panicked, rendering no status")
			content = ""
		}
	}()

	formatted := make([]string, 0, len(holdings))
	for _, h := range holdings {
		s := l.formatter.FormatHolding(id, h)
		if s == "" {
			reason := skipEmpty
			if !h.IsKnownType() {
				reason = skipUnknownType
			}
			holdingsSkippedTotal.WithLabelValues(reason).Inc()
			l.logger.Debug().
				Str(logging.FieldRecordID, id).
				Str("inventory_type", string(h.InventoryType)).
				Str("reason", reason).
				Msg("Skipping holding that formats to nothing")
			continue
		}
		formatted = append(formatted, s)
	}
	if len(formatted) == 0 {
		return ""
	}

	return l.formatter.FormatHoldings(formatted)
}

// noStatus and terminalError fall back to the stock messages when the
// formatter panics, so every placeholder still ends rendered.
func (l *Loader) noStatus() (content string) {
	nf, ok := l.formatter.(format.NoStatusFormatter)
	if !ok {
		return format.Attention(format.NoStatusText)
	}
	defer l.recoverMessage("NoStatus", format.Attention(format.NoStatusText), &content)
	return nf.NoStatus()
}

func (l *Loader) terminalError() (content string) {
	defer l.recoverMessage("OnTerminalError", format.Attention(format.ErrorLoadingText), &content)
	return l.formatter.OnTerminalError()
}

func (l *Loader) recoverMessage(method, fallback string, content *string) {
	if r := recover(); r != nil {
		l.logger.Error().
			Str("method", method).
			Interface("panic", r).
			Msg("Formatter panicked, rendering stock message")
		*content = fallback
	}
}

func (l *Loader) recordSuccess(ctx context.Context, logger zerolog.Logger, attempts int) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordSuccess(ctx, attempts); err != nil {
		logger.Warn().Err(err).Msg("Failed to record availability success")
	}
}

func (l *Loader) recordFailure(ctx context.Context, logger zerolog.Logger, cause error) {
	if l.recorder == nil {
		return
	}
	// The load may have ended because ctx did; the failure is still recorded.
	if err := l.recorder.RecordFailure(context.WithoutCancel(ctx), cause); err != nil {
		logger.Warn().Err(err).Msg("Failed to record availability failure")
	}
}

func recordID(p Placeholder) string {
	return strings.TrimSpace(p.RecordID())
}
