// Package khromatest provides an in-memory server speaking the /api/v2
// contract, for tests of code built on the khroma client.
//
//	srv := khromatest.NewServer()
//	defer srv.Close()
//	client, err := khroma.New(srv.URL)
//
// It keeps everything in memory, ranks query results by squared L2 distance
// and evaluates where and where_document filters. It is not a reference for
// server ranking quality.
package khromatest

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/khroma/pkg/config"
	"github.com/papercomputeco/khroma/pkg/khroma/models"
	"github.com/papercomputeco/khroma/pkg/logger"
)

const (
	// Version is returned by the version endpoint.
	Version = "1.0.0"

	defaultMaxBatchSize = 1000
)

// Server is a running simulated server. URL is its base URL.
type Server struct {
	*httptest.Server

	app    *fiber.App
	logger *slog.Logger

	token        string
	allowReset   bool
	maxBatchSize int

	mu      sync.RWMutex
	tenants map[string]*tenant
	order   []string
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires token on every request, either in x-chroma-token or as
// an Authorization Bearer credential.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithReset controls whether the reset endpoint is allowed. Default true.
func WithReset(allow bool) Option {
	return func(s *Server) {
		s.allowReset = allow
	}
}

// WithMaxBatchSize sets the largest accepted write batch.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		s.maxBatchSize = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer starts a server seeded with the default tenant and database.
// Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:       logger.Nop(),
		allowReset:   true,
		maxBatchSize: defaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seed()

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		UnescapePath:          true,
		ErrorHandler:          s.handleError,
	})
	s.routes()

	s.Server = httptest.NewServer(adaptor.FiberApp(s.app))
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api/v2", s.authenticate)

	api.Get("/heartbeat", s.handleHeartbeat)
	api.Get("/version", s.handleVersion)
	api.Get("/healthcheck", s.handleHealthcheck)
	api.Get("/pre-flight-checks", s.handlePreFlightChecks)
	api.Get("/auth/identity", s.handleIdentity)
	api.Post("/reset", s.handleReset)

	api.Post("/tenants", s.handleCreateTenant)
	api.Get("/tenants/:tenant", s.handleGetTenant)

	dbs := api.Group("/tenants/:tenant/databases")
	dbs.Post("/", s.handleCreateDatabase)
	dbs.Get("/", s.handleListDatabases)
	dbs.Get("/:database", s.handleGetDatabase)
	dbs.Delete("/:database", s.handleDeleteDatabase)

	cols := dbs.Group("/:database")
	cols.Get("/collections_count", s.handleCountCollections)
	cols.Post("/collections", s.handleCreateCollection)
	cols.Get("/collections", s.handleListCollections)
	cols.Get("/collections/:collection", s.handleGetCollection)
	cols.Put("/collections/:collection", s.handleModifyCollection)
	cols.Delete("/collections/:collection", s.handleDeleteCollection)

	recs := cols.Group("/collections/:collection")
	recs.Post("/add", s.handleAdd)
	recs.Post("/upsert", s.handleUpsert)
	recs.Post("/update", s.handleUpdate)
	recs.Post("/delete", s.handleDelete)
	recs.Post("/get", s.handleGet)
	recs.Post("/query", s.handleQuery)
	recs.Get("/count", s.handleCount)
	recs.Post("/fork", s.handleFork)
}

func (s *Server) seed() {
	s.tenants = map[string]*tenant{}
	s.order = nil
	t := s.addTenant(config.DefaultTenant)
	t.addDatabase(config.DefaultDatabase)
}

func (s *Server) authenticate(c *fiber.Ctx) error {
	if s.token == "" {
		return c.Next()
	}
	got := c.Get("x-chroma-token")
	if got == "" {
		got, _ = strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	if got != s.token {
		return apiErr(http.StatusUnauthorized, "AuthError", "missing or invalid token")
	}
	return c.Next()
}

// apiError is rendered as {"error": code, "message": msg}.
type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string {
	return e.code + ": " + e.msg
}

func apiErr(status int, code, msg string) error {
	return &apiError{status: status, code: code, msg: msg}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var ae *apiError
	var fe *fiber.Error
	switch {
	case errors.As(err, &ae):
	case errors.As(err, &fe):
		ae = &apiError{status: fe.Code, code: http.StatusText(fe.Code), msg: fe.Message}
	default:
		ae = &apiError{status: http.StatusInternalServerError, code: "InternalError", msg: err.Error()}
	}

	s.logger.Debug("khromatest request rejected",
		"method", c.Method(),
		"path", c.Path(),
		"status", ae.status,
		"code", ae.code,
	)
	return c.Status(ae.status).JSON(models.ErrorResponse{Error: ae.code, Message: ae.msg})
}
