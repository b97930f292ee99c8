// Package client provides the HTTP client for the availability status
// endpoint: one batched GET per call, content negotiation, error
// classification and optional request pacing.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Sternrassler/catalog-availability/pkg/holding"
	"github.com/Sternrassler/catalog-availability/pkg/logging"
)

// IDListParam is the query parameter carrying the comma-separated record ids.
const IDListParam = "id_list"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 10 << 20

// Prometheus metrics for status endpoint requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_requests_total",
		Help: "Total status endpoint requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_request_duration_seconds",
		Help:    "Status endpoint request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_errors_total",
		Help: "Total status endpoint errors by class",
	}, []string{"class"})

	requestIDs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_request_ids",
		Help:    "Number of record ids per batched request",
		Buckets: []float64{1, 5, 10, 20, 50, 100},
	})
)

// Format selects the response representation requested from the endpoint.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// Config holds the client configuration.
type Config struct {
	// EndpointURL is the absolute URL of the status endpoint,
	// e.g. "https://catalog.example.edu/alma/availability.json".
	EndpointURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Format is the representation requested via the Accept header.
	Format Format

	// Pacing: at most RequestsPerSecond requests with the given Burst.
	// Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the transport (optional).
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration for endpointURL.
func DefaultConfig(endpointURL string) Config {
	return Config{
		EndpointURL: endpointURL,
		UserAgent:   "catalog-availability/0.1.0",
		Format:      FormatJSON,
		Burst:       1,
	}
}

// Client fetches availability from the status endpoint.
// It implements loader.Fetcher.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
	limiter    *rate.Limiter
	config     Config
	logger     zerolog.Logger
}

// New creates a new status endpoint client.
func New(cfg Config) (*Client, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("endpoint url is required")
	}

	endpoint, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("endpoint url must be http or https (got %q)", endpoint.Scheme)
	}

	switch cfg.Format {
	case "":
		cfg.Format = FormatJSON
	case FormatJSON, FormatXML:
	default:
		return nil, fmt.Errorf("unsupported format %q", cfg.Format)
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Attempt deadlines come from the caller's context.
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		limiter:    limiter,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient),
	}, nil
}

// RequestURL returns the endpoint URL carrying ids as a URL-escaped,
// comma-separated id_list parameter. Other query parameters of the
// endpoint URL are preserved.
func (c *Client) RequestURL(ids []string) string {
	u := *c.endpoint
	q := u.Query()
	q.Set(IDListParam, strings.Join(ids, ","))
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchAvailability performs one batched request for ids.
// A response carrying an error field is returned as a *StatusError of
// class ErrorClassEndpoint.
func (c *Client) FetchAvailability(ctx context.Context, ids []string) (*holding.Response, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyIDList
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(&StatusError{
				ErrorClass: ErrorClassRateLimit,
				Message:    "waiting for request slot",
				Err:        err,
			})
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(ids), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", acceptHeader(c.config.Format))

	c.logger.Debug().
		Int("ids", len(ids)).
		Str("url", req.URL.String()).
		Msg("Requesting availability")
	requestIDs.Observe(float64(len(ids)))

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&StatusError{
			ErrorClass: c.classifyError(nil, err),
			Message:    "request failed",
			Err:        err,
		})
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, c.fail(&StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: c.classifyError(resp, nil),
			Message:    resp.Status,
		})
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	var data *holding.Response
	if isXML(resp.Header.Get("Content-Type")) {
		data, err = holding.DecodeXML(body)
	} else {
		data, err = holding.DecodeJSON(body)
	}
	if err != nil {
		return nil, c.fail(&StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid response body",
			Err:        err,
		})
	}

	if data.Failed() {
		return nil, c.fail(&StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassEndpoint,
			Message:    data.Error,
			Err:        ErrEndpointReported,
		})
	}

	c.logger.Debug().
		Int("records", len(data.Availability)).
		Msg("Availability received")

	return data, nil
}

// fail records and logs err before it is returned.
func (c *Client) fail(err *StatusError) error {
	errorsTotal.WithLabelValues(string(err.ErrorClass)).Inc()
	c.logger.Debug().
		Err(err).
		Int("status", err.StatusCode).
		Str(logging.FieldErrorClass, string(err.ErrorClass)).
		Msg("Availability request error")
	return err
}

// classifyError categorizes a transport error or HTTP response.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return ErrorClassTimeout
		}
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func acceptHeader(f Format) string {
	if f == FormatXML {
		return "application/xml"
	}
	return "application/json"
}

func isXML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "xml")
}
