package khroma

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultAuthHeader carries the token unless WithAuthHeader says otherwise.
	DefaultAuthHeader = "x-chroma-token"

	// DefaultTimeout bounds every request made with the default HTTP client.
	DefaultTimeout = 60 * time.Second
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type options struct {
	token          string
	authHeader     string
	httpClient     Doer
	timeout        time.Duration
	headers        http.Header
	logger         *slog.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	conflict       ConflictMatcher
}

// Option configures a client created with New.
type Option func(*options)

// WithToken sets the credential sent on every request.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithAuthHeader names the header carrying the token. "Authorization"
// sends it as a Bearer credential.
func WithAuthHeader(name string) Option {
	return func(o *options) {
		o.authHeader = name
	}
}

// WithHTTPClient replaces the default *http.Client. WithTimeout has no
// effect on a client supplied here.
func WithHTTPClient(c Doer) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers.Add(key, value)
	}
}

// WithLogger sets the logger. Requests are logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics registers request counters and latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTracerProvider emits a client span per request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithConflictMatcher overrides how GetOrCreateCollection recognizes an
// "already exists" failure.
func WithConflictMatcher(m ConflictMatcher) Option {
	return func(o *options) {
		o.conflict = m
	}
}
