package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lexerrors "github.com/studiolex/lexstore/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	// Given: nil error
	var err error = nil

	// When: mapping the error
	result := MapError(err)

	// Then: returns nil
	assert.Nil(t, result)
}

func TestMapError_DeadlineExceeded(t *testing.T) {
	// Given: deadline exceeded error
	err := context.DeadlineExceeded

	// When: mapping the error
	result := MapError(err)

	// Then: returns timeout error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "timed out")
}

func TestMapError_Canceled(t *testing.T) {
	// Given: context canceled error
	err := context.Canceled

	// When: mapping the error
	result := MapError(err)

	// Then: returns timeout error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "canceled")
}

func TestMapError_UnknownError(t *testing.T) {
	// Given: unknown error
	err := errors.New("some unknown error")

	// When: mapping the error
	result := MapError(err)

	// Then: returns internal error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.Contains(t, result.Message, "Internal server error")
}

func TestMapError_TaxonomyKinds(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantCode int
	}{
		{"unauthenticated", lexerrors.ErrCodeUnauthenticated, ErrCodeAuth},
		{"missing api key", lexerrors.ErrCodeAPIKeyMissing, ErrCodeAuth},
		{"rate limited", lexerrors.ErrCodeRateLimited, ErrCodeRateLimited},
		{"remote timeout", lexerrors.ErrCodeRemoteTimeout, ErrCodeTimeout},
		{"remote unavailable", lexerrors.ErrCodeRemoteUnavailable, ErrCodeTimeout},
		{"store not found", lexerrors.ErrCodeNotFound, ErrCodeNotFound},
		{"local file not found", lexerrors.ErrCodeFileNotFound, ErrCodeNotFound},
		{"file too large", lexerrors.ErrCodeFileTooLarge, ErrCodeLimitExceeded},
		{"batch too large", lexerrors.ErrCodeBatchTooLarge, ErrCodeLimitExceeded},
		{"invalid input", lexerrors.ErrCodeInvalidInput, ErrCodeInvalidParams},
		{"empty query", lexerrors.ErrCodeQueryEmpty, ErrCodeInvalidParams},
		{"internal", lexerrors.ErrCodeInternal, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a taxonomy error
			err := lexerrors.New(tt.code, "boom", nil)

			// When: mapping the error
			result := MapError(err)

			// Then: the JSON-RPC code matches the kind
			require.NotNil(t, result)
			assert.Equal(t, tt.wantCode, result.Code)
			assert.Contains(t, result.Message, "boom")
		})
	}
}

func TestMapError_WithSuggestion(t *testing.T) {
	// Given: a taxonomy error with a suggestion
	err := lexerrors.New(lexerrors.ErrCodeUnauthenticated, "credential rejected", nil).
		WithSuggestion("Check that LEXSTORE_API_KEY is set to a valid key")

	// When: mapping the error
	result := MapError(err)

	// Then: the message carries the suggestion
	require.NotNil(t, result)
	assert.Contains(t, result.Message, "credential rejected")
	assert.Contains(t, result.Message, "LEXSTORE_API_KEY")
}

func TestMapError_WrappedLexError(t *testing.T) {
	// Given: a wrapped taxonomy error
	lexErr := lexerrors.New(lexerrors.ErrCodeRateLimited, "slow down", nil)
	err := fmt.Errorf("query failed: %w", lexErr)

	// When: mapping the error
	result := MapError(err)

	// Then: correctly identifies the wrapped error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeRateLimited, result.Code)
}

func TestMCPError_Error(t *testing.T) {
	// Given: an MCP error
	err := &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: "missing required field",
	}

	// When: calling Error()
	msg := err.Error()

	// Then: returns formatted message
	assert.Contains(t, msg, "MCP error")
	assert.Contains(t, msg, "-32602")
	assert.Contains(t, msg, "missing required field")
}

func TestNewInvalidParamsError(t *testing.T) {
	err := NewInvalidParamsError("query parameter is required")

	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Equal(t, "query parameter is required", err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("unknown_tool")

	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "unknown_tool")
}

func TestToProtocolError(t *testing.T) {
	// nil passes through
	assert.Nil(t, toProtocolError(nil))

	// already-mapped parameter errors pass through untouched
	paramErr := NewInvalidParamsError("store parameter is required")
	assert.Same(t, paramErr, toProtocolError(paramErr))

	// taxonomy errors get mapped
	mapped := toProtocolError(lexerrors.New(lexerrors.ErrCodeNotFound, "no such store", nil))
	var mcpErr *MCPError
	require.ErrorAs(t, mapped, &mcpErr)
	assert.Equal(t, ErrCodeNotFound, mcpErr.Code)
}
