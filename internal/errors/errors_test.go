package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentError(t *testing.T) {
	cause := errors.New("underlying error")
	agentErr := New(ErrorTypeStorage, "upload failed", cause)

	assert.Equal(t, ErrorTypeStorage, agentErr.Type)
	assert.Equal(t, "upload failed", agentErr.Message)
	assert.Equal(t, cause, agentErr.Cause)
	assert.Equal(t, "STORAGE_ERROR: upload failed (caused by: underlying error)", agentErr.Error())
}

func TestAgentErrorWithoutCause(t *testing.T) {
	agentErr := NewValidationError("checksum mismatch", nil)

	assert.Equal(t, "VALIDATION_ERROR: checksum mismatch", agentErr.Error())
	assert.Nil(t, agentErr.Unwrap())
}

func TestAgentErrorWithContext(t *testing.T) {
	agentErr := NewSnapshotError("snapshot failed", nil)
	agentErr.WithContext("endpoint", "https://10.0.0.1:2379").WithContext("attempt", 1)

	assert.Equal(t, "https://10.0.0.1:2379", agentErr.Context["endpoint"])
	assert.Equal(t, 1, agentErr.Context["attempt"])
}

func TestAgentErrorUnwrap(t *testing.T) {
	cause := errors.New("no such file")
	wrapped := fmt.Errorf("reading snapshot: %w", cause)
	agentErr := NewSnapshotError("acquisition failed", wrapped)

	assert.True(t, errors.Is(agentErr, cause))

	var target *AgentError
	require.True(t, errors.As(fmt.Errorf("outer: %w", agentErr), &target))
	assert.Equal(t, ErrorTypeSnapshot, target.Type)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeKMS, TypeOf(NewKMSError("generate data key failed", nil)))
	assert.Equal(t, ErrorTypeCorruption, TypeOf(fmt.Errorf("wrapped: %w", NewCorruptionError("bad envelope", nil))))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err      *AgentError
		expected ErrorType
	}{
		{NewConfigurationError("m", nil), ErrorTypeConfiguration},
		{NewSnapshotError("m", nil), ErrorTypeSnapshot},
		{NewEncryptionError("m", nil), ErrorTypeEncryption},
		{NewValidationError("m", nil), ErrorTypeValidation},
		{NewStorageError("m", nil), ErrorTypeStorage},
		{NewCorruptionError("m", nil), ErrorTypeCorruption},
		{NewClusterError("m", nil), ErrorTypeCluster},
		{NewKMSError("m", nil), ErrorTypeKMS},
		{NewArchiveError("m", nil), ErrorTypeArchive},
		{NewTimeoutError("m", nil), ErrorTypeTimeout},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.err.Type)
	}
}
