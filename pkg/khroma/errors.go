package khroma

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	// KindTransport is a failure to exchange a request with the server:
	// DNS, refused connection, timeout, cancellation.
	KindTransport Kind = iota + 1

	// KindURL is an invalid base URL or request path.
	KindURL

	// KindAPI is a response with a non-2xx status.
	KindAPI

	// KindParse is a 2xx response whose body does not match the expected shape.
	KindParse

	// KindEncode is a request that cannot be built: a body that fails to
	// serialize or a record batch with the wrong shape.
	KindEncode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindURL:
		return "url"
	case KindAPI:
		return "api"
	case KindParse:
		return "parse"
	case KindEncode:
		return "encode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. The kind sentinels match any Error of that kind;
// the status sentinels match API errors with that status.
var (
	ErrTransport = errors.New("khroma: transport error")
	ErrURL       = errors.New("khroma: invalid url")
	ErrAPI       = errors.New("khroma: api error")
	ErrParse     = errors.New("khroma: parse error")
	ErrEncode    = errors.New("khroma: encode error")

	ErrNotFound     = errors.New("khroma: not found")
	ErrConflict     = errors.New("khroma: conflict")
	ErrUnauthorized = errors.New("khroma: unauthorized")
	ErrForbidden    = errors.New("khroma: forbidden")
)

// Error is the single failure type returned by every operation.
type Error struct {
	Kind Kind

	// Op names the operation, e.g. "collection_query".
	Op string

	// Status is the HTTP status of an API error.
	Status int

	// Code is the server's error class, e.g. "NotFoundError".
	Code string

	// Message is the server message for API errors, or a description of
	// the failure otherwise.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPI:
		if e.Code != "" {
			return fmt.Sprintf("%s: api error %d %s: %s", e.Op, e.Status, e.Code, e.Message)
		}
		return fmt.Sprintf("%s: api error %d: %s", e.Op, e.Status, e.Message)
	default:
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		} else if e.Err != nil {
			msg = msg + ": " + e.Err.Error()
		}
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind and status sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrURL:
		return e.Kind == KindURL
	case ErrAPI:
		return e.Kind == KindAPI
	case ErrParse:
		return e.Kind == KindParse
	case ErrEncode:
		return e.Kind == KindEncode
	case ErrNotFound:
		return e.Kind == KindAPI && e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Kind == KindAPI && e.Status == http.StatusConflict
	case ErrUnauthorized:
		return e.Kind == KindAPI && e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Kind == KindAPI && e.Status == http.StatusForbidden
	}
	return false
}

// Retryable reports whether repeating the same request may succeed:
// transport failures, 5xx and 429 responses. The client itself never retries.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindAPI:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ConflictMatcher decides whether a failed create means the resource
// already exists.
type ConflictMatcher func(*Error) bool

// ConflictOnStatus matches API errors with any of the given statuses.
func ConflictOnStatus(statuses ...int) ConflictMatcher {
	return func(e *Error) bool {
		if e.Kind != KindAPI {
			return false
		}
		for _, s := range statuses {
			if e.Status == s {
				return true
			}
		}
		return false
	}
}

// ConflictOnCode matches API errors whose server code is one of codes.
func ConflictOnCode(codes ...string) ConflictMatcher {
	return func(e *Error) bool {
		if e.Kind != KindAPI {
			return false
		}
		for _, c := range codes {
			if e.Code == c {
				return true
			}
		}
		return false
	}
}

// AnyConflict matches when any of matchers does.
func AnyConflict(matchers ...ConflictMatcher) ConflictMatcher {
	return func(e *Error) bool {
		for _, m := range matchers {
			if m(e) {
				return true
			}
		}
		return false
	}
}

// DefaultConflictMatcher treats 409 and the server's UniqueConstraintError
// as "already exists".
var DefaultConflictMatcher = AnyConflict(
	ConflictOnStatus(http.StatusConflict),
	ConflictOnCode("UniqueConstraintError"),
)
