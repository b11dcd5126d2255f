package swap

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind names whose fault a failed swap is.
type ErrorKind string

const (
	KindMethodNotAllowed ErrorKind = "method_not_allowed"
	KindMissingConfig    ErrorKind = "missing_config"
	KindInvalidInput     ErrorKind = "invalid_input"
	KindUpstream         ErrorKind = "upstream"
	KindExecution        ErrorKind = "execution"
)

// Status is the HTTP status each kind is reported with.
func (k ErrorKind) Status() int {
	switch k {
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a swap failure with a caller-safe Message. Err keeps the cause for
// logs and errors.As; it is never written to the response.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() int {
	return e.Kind.Status()
}

// Response renders the error as {"error": message}.
func (e *Error) Response() Response {
	resp := jsonResponse(e.Status(), errorBody{Error: e.Message})
	if e.Kind == KindMethodNotAllowed {
		resp.Headers["Allow"] = http.MethodPost
	}
	return resp
}

// Serialize writes the error response to w.
func (e *Error) Serialize(w http.ResponseWriter) {
	e.Response().Write(w)
}

type errorBody struct {
	Error string `json:"error"`
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

var (
	errMethodNotAllowed = &Error{Kind: KindMethodNotAllowed, Message: "Method not allowed"}
	errMissingSecret    = &Error{Kind: KindMissingConfig, Message: "PRIVATE_KEY environment variable is missing."}
)

func invalidJSON(cause error) *Error {
	return newError(KindInvalidInput, cause, "Invalid JSON payload: %v", cause)
}

func invalidSecret(cause error) *Error {
	return newError(KindMissingConfig, cause, "PRIVATE_KEY is not a valid JSON array or base58 string.")
}

func quoteFailed(cause error) *Error {
	return newError(KindUpstream, cause, "Quote request failed: %v", cause)
}

func buildFailed(cause error) *Error {
	return newError(KindUpstream, cause, "Swap build failed: %v", cause)
}

func executionFailed(cause error) *Error {
	return newError(KindExecution, cause, "Failed to execute swap: %v", cause)
}

// Response is a transport-neutral reply. Body is always JSON.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Write copies the response onto w.
func (r Response) Write(w http.ResponseWriter) {
	for k, v := range r.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(r.StatusCode)
	_, _ = w.Write(r.Body)
}

func jsonResponse(status int, body any) Response {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"failed to encode response"}`)
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       raw,
	}
}
