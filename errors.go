package library

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAuthFailure       = "library_auth_failure"
	TextCodeNoToken           = "library_no_token_in_response"
	TextCodeDecodeFailure     = "library_token_decode_failure"
	TextCodeCorruptedSession  = "library_corrupted_session"
	TextCodeSessionRejected   = "library_session_rejected"
	TextCodeDomainRejection   = "library_domain_rejection"
	TextCodeTransport         = "library_transport_failure"
	TextCodeForbidden         = "library_forbidden"
	TextCodeUnauthenticated   = "library_unauthenticated"
	TextCodeValidationFailure = "library_validation_failure"
)

// ErrAuthFailure is the single user facing login error. Credential and
// network problems are deliberately reported the same way.
var ErrAuthFailure = goerrors.New("login failed, please check your credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthFailure).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoTokenInResponse is returned when the login response has neither token field
var ErrNoTokenInResponse = goerrors.New("no token in response", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrDecodeFailure is returned when a token yields no usable claims
var ErrDecodeFailure = goerrors.New("unable to decode token", goerrors.CategoryAuth).
	WithTextCode(TextCodeDecodeFailure).
	WithCode(goerrors.CodeUnauthorized)

// ErrCorruptedSession marks an unparsable persisted identity. It is only
// logged; callers see a logged out session.
var ErrCorruptedSession = goerrors.New("persisted session is corrupted", goerrors.CategoryInternal).
	WithTextCode(TextCodeCorruptedSession)

// ErrSessionRejected is used when a configured TokenValidator refuses a token
var ErrSessionRejected = goerrors.New("session token rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrDomainRejection is the base for backend refusals. Clones carry the
// backend message verbatim.
var ErrDomainRejection = goerrors.New("request rejected", goerrors.CategoryBadInput).
	WithTextCode(TextCodeDomainRejection).
	WithCode(goerrors.CodeBadRequest)

// ErrTransport is the base for network and server failures
var ErrTransport = goerrors.New("request failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeTransport)

// ErrForbidden is returned when the session lacks a required capability
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuth).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrUnauthenticated is returned when an operation needs a session and has none
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// APIError describes a non 2xx backend response
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "api error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// UserMessage returns the text a user should see for err
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil && rich.Message != "" {
		return rich.Message
	}
	return err.Error()
}

// IsDomainRejection reports whether err carries a backend refusal message
func IsDomainRejection(err error) bool {
	return hasTextCode(err, TextCodeDomainRejection)
}

// IsTransportFailure reports whether err is a network or server failure
func IsTransportFailure(err error) bool {
	return hasTextCode(err, TextCodeTransport)
}

// IsAuthFailure reports whether err is the generic login failure
func IsAuthFailure(err error) bool {
	return hasTextCode(err, TextCodeAuthFailure)
}

// IsForbidden reports whether err comes from a failed capability check
func IsForbidden(err error) bool {
	return hasTextCode(err, TextCodeForbidden) || hasTextCode(err, TextCodeUnauthenticated)
}

// IsUnauthorized reports whether the backend answered 401
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized
	}
	return false
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.TextCode == code
	}
	return false
}

// authFailure wraps cause into the generic login error
func authFailure(cause error) error {
	clone := ErrAuthFailure.Clone()
	if clone == nil {
		return ErrAuthFailure
	}
	clone.Source = cause
	return clone
}

// domainRejection keeps the backend message when there is one, falling back
// to an operation specific message otherwise.
func domainRejection(apiErr *APIError, fallback string) error {
	clone := ErrDomainRejection.Clone()
	if clone == nil {
		return ErrDomainRejection
	}
	clone.Message = fallback
	if msg := strings.TrimSpace(apiErr.Message); msg != "" {
		clone.Message = apiErr.Message
	}
	clone.Source = apiErr
	return clone.WithMetadata(map[string]any{
		"status": apiErr.Status,
		"path":   apiErr.Path,
	})
}

func transportFailure(cause error, message string) error {
	clone := ErrTransport.Clone()
	if clone == nil {
		return ErrTransport
	}
	clone.Message = message
	clone.Source = cause
	meta := map[string]any{}
	var apiErr *APIError
	if errors.As(cause, &apiErr) {
		meta["status"] = apiErr.Status
		meta["path"] = apiErr.Path
	} else if cause != nil {
		meta["error"] = cause.Error()
	}
	return clone.WithMetadata(meta)
}

func validationFailure(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithTextCode(TextCodeValidationFailure).
		WithCode(goerrors.CodeBadRequest)
}
