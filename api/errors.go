package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// ErrorKind classifies a failed call. Every failure the client returns carries one.
type ErrorKind string

const (
	KindValidation             ErrorKind = "VALIDATION_ERROR"
	KindAuthenticationRequired ErrorKind = "AUTHENTICATION_REQUIRED"
	KindSubscriptionRequired   ErrorKind = "SUBSCRIPTION_REQUIRED"
	KindPermissionDenied       ErrorKind = "PERMISSION_DENIED"
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindRateLimited            ErrorKind = "RATE_LIMITED"
	KindTimeout                ErrorKind = "TIMEOUT"
	KindNetwork                ErrorKind = "NETWORK_ERROR"
	KindInternal               ErrorKind = "INTERNAL_ERROR"
	KindBadGateway             ErrorKind = "BAD_GATEWAY"
	KindServiceUnavailable     ErrorKind = "SERVICE_UNAVAILABLE"
	KindUnknown                ErrorKind = "UNKNOWN_ERROR"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrSubscriptionRequired   = errors.New("subscription required")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrNotFound               = errors.New("not found")
	ErrRateLimited            = errors.New("rate limited")
	ErrTimeout                = errors.New("request timeout")
	ErrNetwork                = errors.New("network error")
	ErrInternal               = errors.New("internal server error")
	ErrBadGateway             = errors.New("bad gateway")
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrUnknown                = errors.New("unknown error")
)

var sentinels = map[ErrorKind]error{
	KindValidation:             ErrValidation,
	KindAuthenticationRequired: ErrAuthenticationRequired,
	KindSubscriptionRequired:   ErrSubscriptionRequired,
	KindPermissionDenied:       ErrPermissionDenied,
	KindNotFound:               ErrNotFound,
	KindRateLimited:            ErrRateLimited,
	KindTimeout:                ErrTimeout,
	KindNetwork:                ErrNetwork,
	KindInternal:               ErrInternal,
	KindBadGateway:             ErrBadGateway,
	KindServiceUnavailable:     ErrServiceUnavailable,
	KindUnknown:                ErrUnknown,
}

// Sentinel returns the package error matching the kind.
func (k ErrorKind) Sentinel() error {
	if err, ok := sentinels[k]; ok {
		return err
	}
	return ErrUnknown
}

// KindForStatus maps an HTTP status to its ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized:
		return KindAuthenticationRequired
	case http.StatusPaymentRequired:
		return KindSubscriptionRequired
	case http.StatusForbidden:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusInternalServerError:
		return KindInternal
	case http.StatusBadGateway:
		return KindBadGateway
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	}
	return KindUnknown
}

// Error is the Go error form of a failed Response.
type Error struct {
	URL       string
	Method    string
	Status    int
	Kind      ErrorKind
	Body      string
	Fields    map[string][]string
	RequestID string
	TheError  error
}

func (e *Error) Error() string {
	if e == nil || e.TheError == nil {
		return ""
	}
	return e.TheError.Error()
}

func (e *Error) Unwrap() error {
	return e.TheError
}

// Is matches the sentinel for the error's kind. For an exhausted 5xx the status
// sentinel matches as well, so errors.Is(err, ErrBadGateway) holds for a NETWORK_ERROR
// caused by repeated 502s.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if target == e.Kind.Sentinel() {
		return true
	}
	return e.Status >= 500 && target == KindForStatus(e.Status).Sentinel()
}

// NewError builds an *Error whose message is message and which matches the kind's sentinel.
func NewError(url, method string, status int, kind ErrorKind, message string) *Error {
	return &Error{
		URL:      url,
		Method:   method,
		Status:   status,
		Kind:     kind,
		TheError: errors.Mark(errors.New(message), kind.Sentinel()),
	}
}

func defaultMessage(status int) string {
	switch status {
	case http.StatusPaymentRequired:
		return "Subscription required"
	case http.StatusUnauthorized:
		return "Authentication required"
	case http.StatusUnprocessableEntity:
		return "Validation failed"
	}
	return "An error occurred"
}

// errorMessage picks message, then detail, then the default for status.
func errorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "message"); m.Exists() && m.String() != "" {
			return m.String()
		}
		if d := gjson.GetBytes(body, "detail"); d.Exists() && d.String() != "" {
			return d.String()
		}
	}
	return defaultMessage(status)
}

// validationFields reads {"errors": {"field": ["msg", ...]}}. A bare string counts as one message.
func validationFields(body []byte) map[string][]string {
	errs := gjson.GetBytes(body, "errors")
	if !errs.IsObject() {
		return nil
	}
	fields := make(map[string][]string)
	errs.ForEach(func(key, value gjson.Result) bool {
		if value.IsArray() {
			for _, v := range value.Array() {
				fields[key.String()] = append(fields[key.String()], v.String())
			}
		} else {
			fields[key.String()] = []string{value.String()}
		}
		return true
	})
	return fields
}

// formatValidation renders "Validation failed: a: x, y; b: z" with fields sorted.
func formatValidation(fields map[string][]string, body []byte) string {
	if len(fields) == 0 {
		return errorMessage(body, http.StatusUnprocessableEntity)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(fields[name], ", ")))
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}
