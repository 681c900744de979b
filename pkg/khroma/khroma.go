// Package khroma is a client for the Chroma vector database REST API.
//
// A Khroma client hands out Tenant handles, which hand out Database handles,
// which hand out Collection handles. Handles are immutable snapshots that
// share the client's transport and are safe for concurrent use.
//
//	client, err := khroma.New("http://localhost:8000")
//	db := client.Tenant("default_tenant").Database("default_database")
//	col, err := db.GetOrCreateCollection(ctx, models.CreateCollection{Name: "docs"})
package khroma

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/papercomputeco/khroma/pkg/config"
	"github.com/papercomputeco/khroma/pkg/khroma/models"
	"github.com/papercomputeco/khroma/pkg/logger"
)

// Khroma is the root handle. It addresses server-level endpoints and tenants.
type Khroma struct {
	t        *transport
	conflict ConflictMatcher
}

// New validates baseURL and builds a client. An invalid URL fails with a
// KindURL error.
func New(baseURL string, opts ...Option) (*Khroma, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	o := &options{
		authHeader: DefaultAuthHeader,
		timeout:    DefaultTimeout,
		headers:    http.Header{},
	}
	for _, opt := range opts {
		opt(o)
	}

	t, err := newTransport(base, o)
	if err != nil {
		return nil, err
	}

	conflict := o.conflict
	if conflict == nil {
		conflict = DefaultConflictMatcher
	}

	t.logger.Debug("khroma client ready", "url", base.String())
	return &Khroma{t: t, conflict: conflict}, nil
}

// NewFromConfig builds a client from a loaded configuration. opts are applied
// after the configured values and win over them.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Khroma, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	timeout, err := cfg.Server.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger.New(
			logger.WithDebug(cfg.Log.Debug),
			logger.WithJSON(cfg.Log.JSON),
			logger.WithPretty(cfg.Log.Pretty),
			logger.WithPrefix("khroma"),
		)),
	}
	if cfg.Server.Token != "" {
		base = append(base, WithToken(cfg.Server.Token))
	}
	if cfg.Server.AuthHeader != "" {
		base = append(base, WithAuthHeader(cfg.Server.AuthHeader))
	}
	if timeout > 0 {
		base = append(base, WithTimeout(timeout))
	}
	for k, v := range cfg.Server.Headers {
		base = append(base, WithHeader(k, v))
	}

	return New(cfg.Server.URL, append(base, opts...)...)
}

// DatabaseFromConfig builds a client and returns the handle of the
// configured tenant and database. No request is made.
func DatabaseFromConfig(cfg *config.Config, opts ...Option) (*Database, error) {
	k, err := NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return k.Tenant(cfg.Scope.Tenant).Database(cfg.Scope.Database), nil
}

// BaseURL returns the validated server URL.
func (k *Khroma) BaseURL() *url.URL {
	u := *k.t.base
	return &u
}

// Version returns the server version string.
func (k *Khroma) Version(ctx context.Context) (string, error) {
	var v string
	err := k.t.do(ctx, call{op: "version", method: http.MethodGet, path: []string{"version"}}, &v)
	return v, err
}

// Heartbeat returns the server clock.
func (k *Khroma) Heartbeat(ctx context.Context) (*models.Heartbeat, error) {
	var hb models.Heartbeat
	if err := k.t.do(ctx, call{op: "heartbeat", method: http.MethodGet, path: []string{"heartbeat"}}, &hb); err != nil {
		return nil, err
	}
	return &hb, nil
}

// Healthcheck returns the raw health report. A non-2xx status means the
// server is not ready.
func (k *Khroma) Healthcheck(ctx context.Context) (string, error) {
	var v string
	err := k.t.do(ctx, call{op: "healthcheck", method: http.MethodGet, path: []string{"healthcheck"}}, &v)
	return v, err
}

// PreFlightChecks returns server limits such as the maximum batch size.
func (k *Khroma) PreFlightChecks(ctx context.Context) (*models.PreFlightChecks, error) {
	var checks models.PreFlightChecks
	if err := k.t.do(ctx, call{op: "pre_flight_checks", method: http.MethodGet, path: []string{"pre-flight-checks"}}, &checks); err != nil {
		return nil, err
	}
	return &checks, nil
}

// Identity returns the caller's identity as resolved from the token.
func (k *Khroma) Identity(ctx context.Context) (*models.Identity, error) {
	var id models.Identity
	if err := k.t.do(ctx, call{op: "identity", method: http.MethodGet, path: []string{"auth", "identity"}}, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Reset deletes all data on the server. Servers reject it unless resets are
// explicitly allowed.
func (k *Khroma) Reset(ctx context.Context) error {
	return k.t.do(ctx, call{op: "reset", method: http.MethodPost, path: []string{"reset"}}, nil)
}

// CreateTenant creates a tenant and returns its handle.
func (k *Khroma) CreateTenant(ctx context.Context, name string) (*Tenant, error) {
	err := k.t.do(ctx, call{
		op:     "create_tenant",
		method: http.MethodPost,
		path:   []string{"tenants"},
		body:   models.CreateTenant{Name: name},
	}, nil)
	if err != nil {
		return nil, err
	}
	return k.Tenant(name), nil
}

// GetTenant fetches a tenant. A missing tenant is an API error matching
// ErrNotFound.
func (k *Khroma) GetTenant(ctx context.Context, name string) (*Tenant, error) {
	var tenant models.Tenant
	err := k.t.do(ctx, call{op: "get_tenant", method: http.MethodGet, path: []string{"tenants", name}}, &tenant)
	if err != nil {
		return nil, err
	}
	return k.Tenant(tenant.Name), nil
}

// Tenant returns a handle for name without checking that it exists.
func (k *Khroma) Tenant(name string) *Tenant {
	return &Tenant{client: k, name: name}
}

// Logger returns the client logger.
func (k *Khroma) Logger() *slog.Logger {
	return k.t.logger
}
