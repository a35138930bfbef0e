package core

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryTooShort is returned when a search query has fewer than three characters
	ErrQueryTooShort = NewValidationError("Please enter at least 3 characters")

	// ErrMissingAPIKey is returned when no Membit API key has been saved
	ErrMissingAPIKey = NewValidationError("Please enter your Membit API key")

	// ErrEmptyQuestion is returned when a natural-language question is blank
	ErrEmptyQuestion = NewValidationError("Please enter a question")

	// ErrNoResults is returned when a question is asked before any results are displayed
	ErrNoResults = NewValidationError("Please search for posts or clusters first")

	// ErrNoSummary is returned when a post is requested before a summary exists
	ErrNoSummary = NewValidationError("Generate a summary before crafting X content.")
)

// ValidationError is a user input problem detected before any network call.
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError means a required credential or setting is absent.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// NetworkError is a transport failure where no HTTP response was received.
type NetworkError struct {
	Err error
}

// NetworkErrorMessage is the fixed explanation shown for transport failures.
const NetworkErrorMessage = "Network error: Unable to connect to API. This may be due to:\n" +
	"1. CORS policy blocking the request\n" +
	"2. API server is down or unreachable\n" +
	"3. Network connectivity issues\n\n" +
	"Please check your internet connection and try again."

func (e *NetworkError) Error() string { return NetworkErrorMessage }

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamError is a non-success response, or an unusable success response, from an external API.
type UpstreamError struct {
	Status  int    // HTTP status, 0 when the response itself was unusable
	Message string // User facing message, upstream text when available
}

func (e *UpstreamError) Error() string { return e.Message }

// MalformedResponseError means structured model output did not parse even after repair.
type MalformedResponseError struct {
	ParseError string // Message of the first parse failure
	Offset     int64  // Byte offset reported by the parser, -1 when unknown
	Context    string // Window of raw text around Offset
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("Failed to parse structured response: %s. The JSON response appears to be malformed or truncated.", e.ParseError)
	if e.Context != "" {
		msg += fmt.Sprintf(" Context around error: ...%s...", e.Context)
	}
	return msg + " Please try generating the summary again."
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Kind names the taxonomy bucket of err for logs and API payloads.
func Kind(err error) string {
	var (
		validation *ValidationError
		config     *ConfigurationError
		network    *NetworkError
		upstream   *UpstreamError
		malformed  *MalformedResponseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &config):
		return "configuration"
	case errors.As(err, &network):
		return "network"
	case errors.As(err, &upstream):
		return "upstream"
	case errors.As(err, &malformed):
		return "malformed_response"
	default:
		return "internal"
	}
}
