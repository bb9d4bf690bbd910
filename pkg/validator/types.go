// Package validator provides the client of the external instance-document
// validation service and its wire types.
package validator

// Synthetic error codes for failures that did not come from the service itself.
const (
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeServiceError       = "SERVICE_ERROR"
	CodeInvalidResponse    = "INVALID_RESPONSE"
)

// Request body modes.
const (
	ModeJSON = "json" // {"documentContent": "..."}
	ModeRaw  = "raw"  // the document itself, for schema-only validators
)

// Issue is one validation error or warning.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Element string `json:"element,omitempty"`
}

// Result is the normalized outcome of a validation call.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	// RequestID is the X-Request-ID sent with the last attempt.
	RequestID string `json:"-"`
	// Attempts counts the HTTP attempts made.
	Attempts int `json:"-"`
	// StatusCode is the HTTP status of the last response, zero after transport errors.
	StatusCode int `json:"-"`
}

// Synthetic reports whether the result was produced by the client rather than
// returned by the service.
func (r Result) Synthetic() bool {
	for _, e := range r.Errors {
		switch e.Code {
		case CodeServiceUnavailable, CodeServiceError, CodeInvalidResponse:
			return true
		}
	}
	return false
}

// ValidateRequest is the JSON request body.
type ValidateRequest struct {
	DocumentContent string `json:"documentContent"`
}

// rejectionResponse is the body of a 422 content rejection.
type rejectionResponse struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// successResponse is the body of a 2xx response. Valid is a pointer so a body
// without the field is reported as malformed.
type successResponse struct {
	Valid    *bool   `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}
