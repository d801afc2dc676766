package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of agent errors
type ErrorType string

const (
	// ErrorTypeConfiguration represents invalid or missing configuration
	ErrorTypeConfiguration ErrorType = "CONFIGURATION_ERROR"
	// ErrorTypeSnapshot represents snapshot acquisition failures
	ErrorTypeSnapshot ErrorType = "SNAPSHOT_ERROR"
	// ErrorTypeEncryption represents encryption or decryption failures
	ErrorTypeEncryption ErrorType = "ENCRYPTION_ERROR"
	// ErrorTypeValidation represents integrity validation failures
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	// ErrorTypeStorage represents object store failures
	ErrorTypeStorage ErrorType = "STORAGE_ERROR"
	// ErrorTypeCorruption represents corrupted artifacts or envelopes
	ErrorTypeCorruption ErrorType = "CORRUPTION_ERROR"
	// ErrorTypeCluster represents cluster health or connectivity failures
	ErrorTypeCluster ErrorType = "CLUSTER_ERROR"
	// ErrorTypeKMS represents key-management service failures
	ErrorTypeKMS ErrorType = "KMS_ERROR"
	// ErrorTypeArchive represents archive creation failures
	ErrorTypeArchive ErrorType = "ARCHIVE_ERROR"
	// ErrorTypeTimeout represents exceeded deadlines
	ErrorTypeTimeout ErrorType = "TIMEOUT_ERROR"
)

// AgentError represents errors that occur during backup operations
type AgentError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *AgentError) WithContext(key string, value interface{}) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AgentError
func New(errorType ErrorType, message string, cause error) *AgentError {
	return &AgentError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Common error constructors
func NewConfigurationError(message string, cause error) *AgentError {
	return New(ErrorTypeConfiguration, message, cause)
}

func NewSnapshotError(message string, cause error) *AgentError {
	return New(ErrorTypeSnapshot, message, cause)
}

func NewEncryptionError(message string, cause error) *AgentError {
	return New(ErrorTypeEncryption, message, cause)
}

func NewValidationError(message string, cause error) *AgentError {
	return New(ErrorTypeValidation, message, cause)
}

func NewStorageError(message string, cause error) *AgentError {
	return New(ErrorTypeStorage, message, cause)
}

func NewCorruptionError(message string, cause error) *AgentError {
	return New(ErrorTypeCorruption, message, cause)
}

func NewClusterError(message string, cause error) *AgentError {
	return New(ErrorTypeCluster, message, cause)
}

func NewKMSError(message string, cause error) *AgentError {
	return New(ErrorTypeKMS, message, cause)
}

func NewArchiveError(message string, cause error) *AgentError {
	return New(ErrorTypeArchive, message, cause)
}

func NewTimeoutError(message string, cause error) *AgentError {
	return New(ErrorTypeTimeout, message, cause)
}

// TypeOf returns the error type of an error, or empty string for
// non-agent errors.
func TypeOf(err error) ErrorType {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Type
	}
	return ""
}

// IsFatal reports whether an error aborts the backup pipeline. All
// agent errors are fatal to the run that raised them; housekeeping
// stages avoid raising and log instead.
func IsFatal(err error) bool {
	return err != nil
}
