package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Constructed AppErrors carry the sentinel matching their
// code as the root cause, so callers can branch with errors.Is instead of
// inspecting codes.
var (
	ErrArtifactNotFound   = errors.New("model artifact not found")
	ErrVersionNotFound    = errors.New("model version not found")
	ErrInvalidVersion     = errors.New("invalid version format")
	ErrNotEligible        = errors.New("artifact not eligible for deployment")
	ErrNoProductionModel  = errors.New("no production model")
	ErrNoRollbackTarget   = errors.New("no rollback target available")
	ErrModelLoadFailed    = errors.New("failed to load model")
	ErrModelNotTrained    = errors.New("model not trained or loaded")
	ErrInsufficientData   = errors.New("insufficient training data")
	ErrRetrainingBusy     = errors.New("retraining already in progress")
	ErrStorageWriteFailed = errors.New("storage write failed")
	ErrStorageReadFailed  = errors.New("storage read failed")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// ErrorType categorizes application errors per the lifecycle error taxonomy.
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypePrecondition ErrorType = "precondition_failed"
	ErrorTypeLoadFailure  ErrorType = "load_failure"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeStorage      ErrorType = "storage"
	ErrorTypeConcurrency  ErrorType = "concurrency_busy"
	ErrorTypeConfig       ErrorType = "configuration"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Retryable  bool                   `json:"retryable"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      sentinelFor(code),
		Retryable:  false,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		Retryable:  errType == ErrorTypeConcurrency || errType == ErrorTypeStorage,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewNotFoundError creates a not-found error for an unknown artifact id or version
func NewNotFoundError(code, message string) *AppError {
	return NewAppError(ErrorTypeNotFound, code, message)
}

// NewPreconditionError creates a precondition-failed error, e.g. deploying an
// artifact that never passed the validation gate
func NewPreconditionError(code, message string) *AppError {
	return NewAppError(ErrorTypePrecondition, code, message)
}

// NewLoadFailureError creates a load-failure error for artifacts whose files
// are missing or corrupt
func NewLoadFailureError(code, message string) *AppError {
	return NewAppError(ErrorTypeLoadFailure, code, message)
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewConcurrencyError creates a concurrency-busy error. This is an expected
// outcome (caller lost a race), not a fault.
func NewConcurrencyError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConcurrency,
		Code:       code,
		Message:    message,
		Cause:      sentinelFor(code),
		Retryable:  true,
		HTTPStatus: 409,
	}
}

// NewConfigError creates a configuration error
func NewConfigError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfig, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

// sentinelFor maps an error code to its sentinel; codes without one yield nil
func sentinelFor(code string) error {
	switch code {
	case CodeArtifactNotFound:
		return ErrArtifactNotFound
	case CodeVersionNotFound:
		return ErrVersionNotFound
	case CodeInvalidVersion:
		return ErrInvalidVersion
	case CodeNotEligible:
		return ErrNotEligible
	case CodeNoProduction:
		return ErrNoProductionModel
	case CodeNoRollbackTarget:
		return ErrNoRollbackTarget
	case CodeModelLoadFailed:
		return ErrModelLoadFailed
	case CodeModelNotTrained:
		return ErrModelNotTrained
	case CodeInsufficientData:
		return ErrInsufficientData
	case CodeRetrainingBusy:
		return ErrRetrainingBusy
	case CodeWriteFailed:
		return ErrStorageWriteFailed
	case CodeReadFailed:
		return ErrStorageReadFailed
	}
	return nil
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeNotFound:
		return 404
	case ErrorTypePrecondition:
		return 409
	case ErrorTypeValidation:
		return 400
	case ErrorTypeConcurrency:
		return 409
	case ErrorTypeLoadFailure, ErrorTypeStorage, ErrorTypeInternal:
		return 500
	case ErrorTypeConfig:
		return 503
	default:
		return 500
	}
}

// Error codes used across the lifecycle subsystem
const (
	CodeArtifactNotFound  = "ARTIFACT_NOT_FOUND"
	CodeVersionNotFound   = "VERSION_NOT_FOUND"
	CodeInvalidVersion    = "INVALID_VERSION"
	CodeNotEligible       = "NOT_ELIGIBLE"
	CodeNoProduction      = "NO_PRODUCTION_MODEL"
	CodeNoRollbackTarget  = "NO_ROLLBACK_TARGET"
	CodeModelLoadFailed   = "MODEL_LOAD_FAILED"
	CodeModelNotTrained   = "MODEL_NOT_TRAINED"
	CodeInsufficientData  = "INSUFFICIENT_DATA"
	CodeTrainingFailed    = "TRAINING_FAILED"
	CodeRetrainingBusy    = "RETRAINING_IN_PROGRESS"
	CodeWriteFailed       = "WRITE_FAILED"
	CodeReadFailed        = "READ_FAILED"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidTransition = "INVALID_STATUS_TRANSITION"
)
