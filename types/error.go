package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Agent invocation error codes
const (
	ErrAuthentication ErrorCode = "AUTHENTICATION"
	ErrConfiguration  ErrorCode = "CONFIGURATION"
	ErrRateLimit      ErrorCode = "RATE_LIMIT"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrNetwork        ErrorCode = "NETWORK"
	ErrRetriable      ErrorCode = "RETRIABLE"
	ErrEmptyResponse  ErrorCode = "EMPTY_RESPONSE"
)

// Debate lifecycle error codes
const (
	ErrUnknownAgent          ErrorCode = "UNKNOWN_AGENT"
	ErrInvalidPlan           ErrorCode = "INVALID_PLAN"
	ErrInvalidQuestion       ErrorCode = "INVALID_QUESTION"
	ErrInsufficientConsensus ErrorCode = "INSUFFICIENT_CONSENSUS"
	ErrNoWinner              ErrorCode = "NO_WINNER"
	ErrDebateTimeout         ErrorCode = "DEBATE_TIMEOUT"
	ErrVerificationFailed    ErrorCode = "VERIFICATION_FAILED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Agent      string    `json:"agent,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: defaultRetryable(code)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgent sets the agent identifier the error originated from.
func (e *Error) WithAgent(agent string) *Error {
	e.Agent = agent
	return e
}

// defaultRetryable returns the taxonomy default for a code: authentication
// and configuration failures are fatal, everything else retries.
func defaultRetryable(code ErrorCode) bool {
	switch code {
	case ErrAuthentication, ErrConfiguration, ErrUnknownAgent, ErrInvalidPlan, ErrInvalidQuestion:
		return false
	default:
		return true
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// DebateError is a debate-level fatal condition. It carries the phase the
// debate died in and whatever proposals had been materialized, so callers
// can inspect partial state instead of a bare failure.
type DebateError struct {
	Code      ErrorCode  `json:"code"`
	Reason    string     `json:"reason"`
	Phase     Phase      `json:"phase"`
	Proposals []Proposal `json:"proposals,omitempty"`
}

// Error implements the error interface.
func (e *DebateError) Error() string {
	return fmt.Sprintf("[%s] debate failed during %s: %s", e.Code, e.Phase, e.Reason)
}

// NewDebateError creates a debate-level error with partial state attached.
func NewDebateError(code ErrorCode, phase Phase, reason string, proposals []Proposal) *DebateError {
	return &DebateError{Code: code, Reason: reason, Phase: phase, Proposals: proposals}
}
