package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/Sternrassler/catalog-availability/pkg/batch"
	"github.com/Sternrassler/catalog-availability/pkg/client"
	"github.com/Sternrassler/catalog-availability/pkg/loader"
	"github.com/Sternrassler/catalog-availability/pkg/logging"
	"github.com/Sternrassler/catalog-availability/pkg/page"
)

func loadEnvFiles() {
	// Do not override environment provided by the runtime (e.g. Docker).
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// options is the resolved command configuration.
type options struct {
	Endpoint          string
	Format            client.Format
	UserAgent         string
	RequestsPerSecond float64

	MaxAttempts    int
	RetryBackoff   bool
	AttemptTimeout time.Duration

	RedisURL  string
	HealthKey string

	Selector    string
	IDAttribute string

	In  string
	Out string

	// Batch mode
	Pages       []string
	OutDir      string
	Concurrency int
	PageTimeout time.Duration

	LogLevel   logging.LogLevel
	LogPretty  bool
	LogMetrics bool
}

func flags() []cli.Flag {
	pageDefaults := page.DefaultConfig()
	batchDefaults := batch.DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "availability status endpoint URL",
			EnvVars: []string{"AVAILABILITY_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "format",
			Usage:   "response format requested from the endpoint (json or xml)",
			Value:   string(client.FormatJSON),
			EnvVars: []string{"RESPONSE_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Usage:   "User-Agent header",
			Value:   client.DefaultConfig("").UserAgent,
			EnvVars: []string{"USER_AGENT"},
		},
		&cli.Float64Flag{
			Name:    "requests-per-second",
			Usage:   "pace endpoint requests (0 disables pacing)",
			EnvVars: []string{"REQUESTS_PER_SECOND"},
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Usage:   "attempts per page load before rendering the error message",
			Value:   loader.DefaultMaxAttempts,
			EnvVars: []string{"MAX_AJAX_ATTEMPTS"},
		},
		&cli.BoolFlag{
			Name:    "retry-backoff",
			Usage:   "wait with exponential backoff between attempts",
			EnvVars: []string{"RETRY_BACKOFF"},
		},
		&cli.DurationFlag{
			Name:    "attempt-timeout",
			Usage:   "timeout of a single attempt",
			Value:   loader.DefaultAttemptTimeout,
			EnvVars: []string{"ATTEMPT_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis address or redis:// URL for endpoint health tracking (empty disables)",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "health-key",
			Usage:   "Redis key of the endpoint health state",
			EnvVars: []string{"HEALTH_KEY"},
		},
		&cli.StringFlag{
			Name:    "selector",
			Usage:   "CSS selector of placeholder elements",
			Value:   pageDefaults.Selector,
			EnvVars: []string{"PLACEHOLDER_SELECTOR"},
		},
		&cli.StringFlag{
			Name:    "id-attribute",
			Usage:   "placeholder attribute carrying the record id",
			Value:   pageDefaults.IDAttribute,
			EnvVars: []string{"PLACEHOLDER_ID_ATTRIBUTE"},
		},
		&cli.StringFlag{
			Name:  "in",
			Usage: "rendered HTML page to read (- for stdin)",
			Value: "-",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "file to write the updated page to (- for stdout)",
			Value: "-",
		},
		&cli.StringFlag{
			Name:  "out-dir",
			Usage: "directory receiving the pages given as arguments",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "pages loading at once when rendering several pages",
			Value: batchDefaults.MaxConcurrency,
		},
		&cli.DurationFlag{
			Name:  "page-timeout",
			Usage: "timeout of one page including all attempts (0 disables)",
			Value: batchDefaults.Timeout,
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn, error or disabled",
			Value:   string(logging.LevelInfo),
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "log-pretty",
			Usage:   "human-readable console logs",
			EnvVars: []string{"LOG_PRETTY"},
		},
		&cli.BoolFlag{
			Name:    "metrics",
			Usage:   "log a summary of the availability metrics on exit",
			EnvVars: []string{"LOG_METRICS"},
		},
	}
}

func optionsFromContext(c *cli.Context) (options, error) {
	opts := options{
		Endpoint:          c.String("endpoint"),
		Format:            client.Format(c.String("format")),
		UserAgent:         c.String("user-agent"),
		RequestsPerSecond: c.Float64("requests-per-second"),
		MaxAttempts:       c.Int("max-attempts"),
		RetryBackoff:      c.Bool("retry-backoff"),
		AttemptTimeout:    c.Duration("attempt-timeout"),
		RedisURL:          c.String("redis-url"),
		HealthKey:         c.String("health-key"),
		Selector:          c.String("selector"),
		IDAttribute:       c.String("id-attribute"),
		In:                c.String("in"),
		Out:               c.String("out"),
		Pages:             c.Args().Slice(),
		OutDir:            c.String("out-dir"),
		Concurrency:       c.Int("concurrency"),
		PageTimeout:       c.Duration("page-timeout"),
		LogPretty:         c.Bool("log-pretty"),
		LogMetrics:        c.Bool("metrics"),
	}

	if opts.Endpoint == "" {
		return opts, fmt.Errorf("endpoint is required (--endpoint or AVAILABILITY_ENDPOINT)")
	}
	if opts.MaxAttempts < 1 {
		return opts, fmt.Errorf("max attempts must be >= 1 (got %d)", opts.MaxAttempts)
	}
	if opts.AttemptTimeout <= 0 {
		return opts, fmt.Errorf("attempt timeout must be positive (got %s)", opts.AttemptTimeout)
	}
	level, err := logging.ParseLevel(c.String("log-level"))
	if err != nil {
		return opts, err
	}
	opts.LogLevel = level

	if len(opts.Pages) > 0 && opts.OutDir == "" {
		return opts, fmt.Errorf("out-dir is required when pages are given as arguments")
	}

	return opts, nil
}

// retryConfig maps the attempt options onto the loader's retry policy.
func (o options) retryConfig() loader.RetryConfig {
	cfg := loader.DefaultRetryConfig()
	if o.RetryBackoff {
		cfg = loader.ExponentialRetryConfig()
	}
	cfg.MaxAttempts = o.MaxAttempts
	return cfg
}

func (o options) clientConfig() client.Config {
	cfg := client.DefaultConfig(o.Endpoint)
	cfg.Format = o.Format
	cfg.UserAgent = o.UserAgent
	cfg.RequestsPerSecond = o.RequestsPerSecond
	return cfg
}
