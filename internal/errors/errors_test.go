package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with LexError
	lexErr := New(ErrCodeCachePersist, "cannot write snapshot", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, lexErr)
	assert.Equal(t, originalErr, errors.Unwrap(lexErr))
	assert.True(t, errors.Is(lexErr, originalErr))
}

func TestLexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "rate limit error",
			code:     ErrCodeRateLimited,
			message:  "quota exhausted",
			expected: "[ERR_303_RATE_LIMITED] quota exhausted",
		},
		{
			name:     "validation error",
			code:     ErrCodeQueryEmpty,
			message:  "query text is empty",
			expected: "[ERR_404_QUERY_EMPTY] query text is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestLexError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeNotFound, "store alpha missing", nil)
	err2 := New(ErrCodeNotFound, "store beta missing", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestLexError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeNotFound, "store missing", nil)
	err2 := New(ErrCodeRateLimited, "slow down", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestLexError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeFileTooLarge, "file exceeds limit", nil)

	// When: adding details
	err = err.WithDetail("path", "contratto.pdf")
	err = err.WithDetail("size", "120MB")

	// Then: details are available
	assert.Equal(t, "contratto.pdf", err.Details["path"])
	assert.Equal(t, "120MB", err.Details["size"])
}

func TestLexError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: a transport error
	err := New(ErrCodeRemoteTimeout, "request timed out", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Check your network connection")

	// Then: suggestion is available
	assert.Equal(t, "Check your network connection", err.Suggestion)
}

func TestLexError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeAPIKeyMissing, CategoryConfig},
		{ErrCodeCacheCorrupt, CategoryCache},
		{ErrCodeFileTooLarge, CategoryCache},
		{ErrCodeRemoteTimeout, CategoryRemote},
		{ErrCodeRateLimited, CategoryRemote},
		{ErrCodeNotFound, CategoryRemote},
		{ErrCodeInvalidChunking, CategoryValidation},
		{ErrCodeQueryEmpty, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeUploadFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestLexError_KindFromCode(t *testing.T) {
	tests := []struct {
		code     string
		wantKind Kind
	}{
		{ErrCodeUnauthenticated, KindUnauthenticated},
		{ErrCodeAPIKeyMissing, KindUnauthenticated},
		{ErrCodeRateLimited, KindRateLimited},
		{ErrCodeRemoteTimeout, KindTransient},
		{ErrCodeRemoteUnavailable, KindTransient},
		{ErrCodeRemoteProtocol, KindTransient},
		{ErrCodeNotFound, KindNotFound},
		{ErrCodeCacheCorrupt, KindCacheCorrupt},
		{ErrCodeFileTooLarge, KindLimitExceeded},
		{ErrCodeBatchTooLarge, KindLimitExceeded},
		{ErrCodeInvalidMetadata, KindInvalidArgument},
		{ErrCodeQueryEmpty, KindInvalidArgument},
		{ErrCodeInternal, KindInternal},
		{ErrCodeIndexingFailed, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantKind, err.Kind)
		})
	}
}

func TestLexError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeAPIKeyMissing, SeverityFatal},
		{ErrCodeUnauthenticated, SeverityFatal},
		{ErrCodeNotFound, SeverityError},
		{ErrCodeCacheCorrupt, SeverityWarning}, // Recovered, so warning
		{ErrCodeRemoteTimeout, SeverityWarning}, // Retryable, so warning
		{ErrCodeRateLimited, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestLexError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeRemoteTimeout, true},
		{ErrCodeRemoteUnavailable, true},
		{ErrCodeRateLimited, true},
		{ErrCodeRemoteProtocol, true},
		{ErrCodeUnauthenticated, false},
		{ErrCodeNotFound, false},
		{ErrCodeFileTooLarge, false},
		{ErrCodeQueryEmpty, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesLexErrorFromError(t *testing.T) {
	// Given: a standard error
	originalErr := errors.New("something went wrong")

	// When: wrapping with a code
	lexErr := Wrap(ErrCodeInternal, originalErr)

	// Then: creates proper LexError
	require.NotNil(t, lexErr)
	assert.Equal(t, ErrCodeInternal, lexErr.Code)
	assert.Equal(t, "something went wrong", lexErr.Message)
	assert.Equal(t, originalErr, lexErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestKindOf_LooksThroughWrapChains(t *testing.T) {
	// Given: a LexError buried under fmt.Errorf wrapping
	inner := New(ErrCodeRateLimited, "quota exhausted", nil)
	wrapped := fmt.Errorf("failed after 5 attempts: %w", inner)

	// Then: the classification survives the wrap
	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, ErrCodeRateLimited, GetCode(wrapped))
	assert.Equal(t, CategoryRemote, GetCategory(wrapped))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestHelperConstructors_UseExpectedCodes(t *testing.T) {
	assert.Equal(t, ErrCodeConfigInvalid, ConfigError("bad config", nil).Code)
	assert.Equal(t, ErrCodeCachePersist, CacheError("write failed", nil).Code)
	assert.Equal(t, ErrCodeRemoteUnavailable, RemoteError("connection refused", nil).Code)
	assert.Equal(t, ErrCodeInvalidInput, ValidationError("bad input", nil).Code)
	assert.Equal(t, ErrCodeInternal, InternalError("bug", nil).Code)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "limit_exceeded", KindLimitExceeded.String())
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "internal", Kind(99).String())
}
