package khroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/papercomputeco/khroma/pkg/khroma/models"
	"github.com/papercomputeco/khroma/pkg/logger"
	"github.com/papercomputeco/khroma/pkg/utils"
)

const (
	apiPrefix = "/api/v2"

	// maxErrorBody bounds an unstructured error body quoted in an Error.
	maxErrorBody = 512
)

// transport is shared by a client and every handle derived from it. It is
// never mutated after construction.
type transport struct {
	base       *url.URL
	doer       Doer
	headers    http.Header
	token      string
	authHeader string
	logger     *slog.Logger
	metrics    *metrics
	tracer     *tracer
}

// call describes one request. path segments are escaped individually.
type call struct {
	op     string
	method string
	path   []string
	query  url.Values
	body   any
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return nil, &Error{Kind: KindURL, Op: "new", Message: fmt.Sprintf("invalid base url %q", raw), Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &Error{Kind: KindURL, Op: "new", Message: fmt.Sprintf("unsupported scheme %q in base url", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &Error{Kind: KindURL, Op: "new", Message: fmt.Sprintf("base url %q has no host", raw)}
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newTransport(base *url.URL, o *options) (*transport, error) {
	doer := o.httpClient
	if doer == nil {
		doer = &http.Client{Timeout: o.timeout}
	}

	l := o.logger
	if l == nil {
		l = logger.Nop()
	}

	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	return &transport{
		base:       base,
		doer:       doer,
		headers:    o.headers.Clone(),
		token:      o.token,
		authHeader: o.authHeader,
		logger:     l,
		metrics:    m,
		tracer:     newTracer(o.tracerProvider),
	}, nil
}

// endpoint joins the base path, the API prefix and the escaped segments.
func (t *transport) endpoint(op string, segments []string, query url.Values) (*url.URL, error) {
	var b strings.Builder
	b.WriteString(strings.TrimRight(t.base.EscapedPath(), "/"))
	b.WriteString(apiPrefix)
	for _, s := range segments {
		if s == "" {
			return nil, &Error{Kind: KindURL, Op: op, Message: "empty path segment"}
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}

	escaped := b.String()
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, &Error{Kind: KindURL, Op: op, Message: "invalid request path", Err: err}
	}

	u := *t.base
	u.Path = unescaped
	u.RawPath = escaped
	u.RawQuery = query.Encode()
	return &u, nil
}

// do performs c and decodes a 2xx body into out. A nil out discards the
// body. A *string out takes a JSON string, or the raw text otherwise. Any
// other out is JSON-decoded and, if it has a Validate method, checked.
func (t *transport) do(ctx context.Context, c call, out any) error {
	ctx, span := t.tracer.start(ctx, c)
	start := time.Now()

	status, err := t.roundTrip(ctx, c, out)

	elapsed := time.Since(start)
	t.metrics.observe(c.op, err, elapsed)
	span.finish(status, err)

	attrs := []any{"op", c.op, "method", c.method, "status", status, "duration", elapsed}
	if err != nil {
		kind := "unknown"
		if e, ok := AsError(err); ok {
			kind = e.Kind.String()
		}
		t.logger.DebugContext(ctx, "khroma request failed", append(attrs, "kind", kind, "error", err)...)
	} else {
		t.logger.DebugContext(ctx, "khroma request", attrs...)
	}
	return err
}

func (t *transport) roundTrip(ctx context.Context, c call, out any) (int, error) {
	u, err := t.endpoint(c.op, c.path, c.query)
	if err != nil {
		return 0, err
	}

	var body io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return 0, &Error{Kind: KindEncode, Op: c.op, Message: "encoding request body", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, u.String(), body)
	if err != nil {
		return 0, &Error{Kind: KindURL, Op: c.op, Message: "building request", Err: err}
	}
	t.setHeaders(req, body != nil)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.doer.Do(req)
	if err != nil {
		return 0, &Error{Kind: KindTransport, Op: c.op, Message: fmt.Sprintf("%s %s", c.method, u.Path), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &Error{Kind: KindTransport, Op: c.op, Status: resp.StatusCode, Message: "reading response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, apiError(c.op, resp.StatusCode, data)
	}

	return resp.StatusCode, decode(c.op, data, out)
}

func (t *transport) setHeaders(req *http.Request, hasBody bool) {
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		if strings.EqualFold(t.authHeader, "Authorization") {
			req.Header.Set("Authorization", "Bearer "+t.token)
		} else {
			req.Header.Set(t.authHeader, t.token)
		}
	}
}

func apiError(op string, status int, body []byte) *Error {
	e := &Error{Kind: KindAPI, Op: op, Status: status}

	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		e.Code = resp.Error
		e.Message = resp.Message
		if e.Message == "" {
			e.Message = resp.Error
		}
	}

	if e.Message == "" {
		if text := strings.TrimSpace(string(body)); text != "" {
			e.Message = utils.Truncate(text, maxErrorBody)
		} else {
			e.Message = http.StatusText(status)
		}
	}
	return e
}

type validator interface {
	Validate() error
}

func decode(op string, data []byte, out any) error {
	if out == nil {
		return nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Error{Kind: KindParse, Op: op, Message: fmt.Sprintf("empty %s response", op)}
	}

	if s, ok := out.(*string); ok {
		if err := json.Unmarshal(trimmed, s); err != nil {
			*s = string(trimmed)
		}
		if *s == "" {
			return &Error{Kind: KindParse, Op: op, Message: fmt.Sprintf("empty %s response", op)}
		}
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		var syntax *json.SyntaxError
		msg := fmt.Sprintf("decoding %s response", op)
		if errors.As(err, &syntax) {
			msg = fmt.Sprintf("decoding %s response: malformed JSON at offset %d", op, syntax.Offset)
		}
		return &Error{Kind: KindParse, Op: op, Message: msg, Err: err}
	}

	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return &Error{Kind: KindParse, Op: op, Message: fmt.Sprintf("unexpected %s response", op), Err: err}
		}
	}
	return nil
}
