package validation

import (
	"github.com/zurustar/gb28181registrar/internal/parser"
)

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	// Valid indicates whether the validation passed
	Valid bool

	// ErrorCode is the SIP error code to return if validation failed
	ErrorCode int

	// ErrorReason is the reason phrase for the error response
	ErrorReason string

	// Details provides additional details about the validation failure
	Details string

	// Context provides additional context information for logging/debugging
	Context map[string]interface{}
}

// Validate checks a SIP request against the registrar's syntax rules:
// a non-empty method without whitespace, a Request-URI, the headers RFC3261 mandates on every
// request, a well-formed CSeq, a sane Max-Forwards, and a Content-Length
// that matches the body actually parsed.
func Validate(req *parser.SIPMessage) ValidationResult {
	return validateSyntax(req)
}

// ValidationError represents a validation error with detailed context
type ValidationError struct {
	Code    int
	Reason  string
	Details string
	Context map[string]interface{}
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Details != "" {
		return e.Details
	}
	return e.Reason
}
