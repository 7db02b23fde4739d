// Package errors provides standardized error handling for the prediction
// dashboard, its HTTP API and the Zeebe job worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeModelNotLoaded  ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeModelLoadFailed ErrorCode = "MODEL_LOAD_FAILED"

	ErrCodeInvalidStudentRecord ErrorCode = "INVALID_STUDENT_RECORD"
	ErrCodePredictionFailed     ErrorCode = "PREDICTION_FAILED"

	ErrCodeUnsupportedFileType ErrorCode = "UNSUPPORTED_FILE_TYPE"
	ErrCodeFileParseFailed     ErrorCode = "FILE_PARSE_FAILED"
	ErrCodeUploadNotFound      ErrorCode = "UPLOAD_NOT_FOUND"
	ErrCodeUploadTooLarge      ErrorCode = "UPLOAD_TOO_LARGE"

	ErrCodeHistoryStoreFailed     ErrorCode = "HISTORY_STORE_FAILED"
	ErrCodeCacheFailed            ErrorCode = "CACHE_FAILED"
	ErrCodeIndexingFailed         ErrorCode = "INDEXING_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewModelNotLoadedError reports that no pipeline artifact is available.
func NewModelNotLoadedError(path string) *StandardError {
	return newError(ErrCodeModelNotLoaded, "Prediction model is not loaded", fmt.Sprintf("path: %s", path), false)
}

// NewModelLoadFailedError reports a present but unreadable artifact.
func NewModelLoadFailedError(path string, err error) *StandardError {
	return newError(ErrCodeModelLoadFailed, "Prediction model could not be loaded",
		fmt.Sprintf("path: %s, error: %s", path, err.Error()), false)
}

func NewInvalidStudentRecordError(details string) *StandardError {
	return newError(ErrCodeInvalidStudentRecord, "Student record failed validation", details, false)
}

func NewPredictionFailedError(err error) *StandardError {
	return newError(ErrCodePredictionFailed, "Pipeline inference failed", err.Error(), false)
}

func NewUnsupportedFileTypeError(filename string) *StandardError {
	return newError(ErrCodeUnsupportedFileType, "Unsupported file type",
		fmt.Sprintf("file: %s (accepted: csv, xlsx, xls)", filename), false)
}

func NewFileParseFailedError(filename string, err error) *StandardError {
	return newError(ErrCodeFileParseFailed, "Uploaded file could not be processed",
		fmt.Sprintf("file: %s, error: %s", filename, err.Error()), false)
}

func NewUploadNotFoundError(uploadID string) *StandardError {
	return newError(ErrCodeUploadNotFound, "Upload not found or expired", fmt.Sprintf("uploadId: %s", uploadID), false)
}

func NewUploadTooLargeError(limit int64) *StandardError {
	return newError(ErrCodeUploadTooLarge, "Uploaded file exceeds the size limit", fmt.Sprintf("limit: %d bytes", limit), false)
}

func NewHistoryStoreFailedError(err error) *StandardError {
	return newError(ErrCodeHistoryStoreFailed, "Prediction history could not be stored", err.Error(), true)
}

func NewCacheFailedError(op string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Prediction cache unavailable", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true)
}

func NewIndexingFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Batch results could not be indexed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification send failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// ==========================
// 3. Classification
// ==========================

// AsStandardError unwraps err into a *StandardError, wrapping unknown errors
// as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// HTTPStatus maps error codes to response status codes.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidStudentRecord, ErrCodeUnsupportedFileType, ErrCodeFileParseFailed:
		return http.StatusBadRequest
	case ErrCodeUploadNotFound:
		return http.StatusNotFound
	case ErrCodeUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeModelNotLoaded, ErrCodeModelLoadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the Portuguese text shown to dashboard users.
func UserMessage(err *StandardError) string {
	switch err.Code {
	case ErrCodeModelNotLoaded, ErrCodeModelLoadFailed:
		return "Modelo não encontrado. Gere o artefato do pipeline antes de usar a ferramenta."
	case ErrCodeInvalidStudentRecord:
		return "Dados do aluno inválidos: " + err.Details
	case ErrCodeUnsupportedFileType, ErrCodeFileParseFailed:
		return "Erro ao processar arquivo: " + err.Details
	case ErrCodeUploadNotFound:
		return "Arquivo não encontrado ou expirado. Envie o arquivo novamente."
	case ErrCodeUploadTooLarge:
		return "Arquivo excede o tamanho máximo permitido."
	default:
		return "Erro inesperado ao gerar a predição."
	}
}

// IsRetryableErrorCode reports whether an operation with this code may succeed on retry.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetRetryCount returns how many times a Zeebe job failing with code is retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeHistoryStoreFailed, ErrCodeCacheFailed, ErrCodeIndexingFailed, ErrCodeNotificationSendFailed:
		return 3
	default:
		return 0
	}
}

// GetErrorCategory groups codes for logs and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeModelNotLoaded, ErrCodeModelLoadFailed, ErrCodePredictionFailed:
		return "model"
	case ErrCodeInvalidStudentRecord:
		return "validation"
	case ErrCodeUnsupportedFileType, ErrCodeFileParseFailed, ErrCodeUploadNotFound, ErrCodeUploadTooLarge:
		return "upload"
	case ErrCodeHistoryStoreFailed, ErrCodeCacheFailed, ErrCodeIndexingFailed:
		return "storage"
	case ErrCodeNotificationSendFailed:
		return "notification"
	default:
		return "internal"
	}
}

// ==========================
// 4. BPMN Error Integration
// ==========================

// BPMNError is thrown to the Zeebe engine when the worker cannot complete a job.
type BPMNError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for Zeebe fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	return map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
}

// ConvertToBPMNError maps a StandardError onto the BPMN error surface.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
	}
}
