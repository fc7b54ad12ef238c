// Package errors provides structured error handling for lexstore.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Cache and local file errors
//   - 3XX: Remote service errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryCache indicates cache and local file errors.
	CategoryCache Category = "CACHE"
	// CategoryRemote indicates remote service errors.
	CategoryRemote Category = "REMOTE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Kind classifies an error for retry and surfacing decisions. Every remote
// call failure and every local pre-flight failure maps to exactly one kind.
type Kind int

const (
	// KindInternal is the fallback for unclassified errors. Never retried.
	KindInternal Kind = iota
	// KindUnauthenticated means the credential is bad or missing. Never retried.
	KindUnauthenticated
	// KindInvalidArgument means the request itself is malformed. Never retried.
	KindInvalidArgument
	// KindRateLimited means the remote asked the caller to back off.
	KindRateLimited
	// KindTransient means a network or server failure that may clear on retry.
	KindTransient
	// KindNotFound means the store or file does not exist. Never retried.
	KindNotFound
	// KindCacheCorrupt means the local snapshot could not be decoded.
	// Always recovered by treating the cache as empty.
	KindCacheCorrupt
	// KindLimitExceeded means a local size limit was violated before any
	// remote call was issued.
	KindLimitExceeded
)

// String returns the kind name used in logs and error details.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindCacheCorrupt:
		return "cache_corrupt"
	case KindLimitExceeded:
		return "limit_exceeded"
	default:
		return "internal"
	}
}

// Retryable reports whether errors of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindTransient
}

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeAPIKeyMissing  = "ERR_103_API_KEY_MISSING"

	// Cache and local file errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeCacheCorrupt   = "ERR_203_CACHE_CORRUPT"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"
	ErrCodeBatchTooLarge  = "ERR_205_BATCH_TOO_LARGE"
	ErrCodeCachePersist   = "ERR_206_CACHE_PERSIST"

	// Remote service errors (300-399)
	ErrCodeRemoteTimeout     = "ERR_301_REMOTE_TIMEOUT"
	ErrCodeRemoteUnavailable = "ERR_302_REMOTE_UNAVAILABLE"
	ErrCodeRateLimited       = "ERR_303_RATE_LIMITED"
	ErrCodeUnauthenticated   = "ERR_304_UNAUTHENTICATED"
	ErrCodeNotFound          = "ERR_305_NOT_FOUND"
	ErrCodeRemoteProtocol    = "ERR_306_REMOTE_PROTOCOL"
	ErrCodeIndexingFailed    = "ERR_307_INDEXING_FAILED"
	ErrCodeIndexingTimeout   = "ERR_308_INDEXING_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidMetadata = "ERR_402_INVALID_METADATA"
	ErrCodeInvalidChunking = "ERR_403_INVALID_CHUNKING"
	ErrCodeQueryEmpty      = "ERR_404_QUERY_EMPTY"
	ErrCodeStoreNameEmpty  = "ERR_405_STORE_NAME_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeUploadFailed = "ERR_502_UPLOAD_FAILED"
	ErrCodeQueryFailed  = "ERR_503_QUERY_FAILED"
	ErrCodeHistory      = "ERR_504_HISTORY"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "203" from "ERR_203_CACHE_CORRUPT")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryCache
	case '3':
		return CategoryRemote
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// kindFromCode maps an error code to its taxonomy kind.
func kindFromCode(code string) Kind {
	switch code {
	case ErrCodeUnauthenticated, ErrCodeAPIKeyMissing:
		return KindUnauthenticated
	case ErrCodeRateLimited:
		return KindRateLimited
	case ErrCodeRemoteTimeout, ErrCodeRemoteUnavailable, ErrCodeRemoteProtocol:
		return KindTransient
	case ErrCodeNotFound, ErrCodeFileNotFound:
		return KindNotFound
	case ErrCodeCacheCorrupt:
		return KindCacheCorrupt
	case ErrCodeFileTooLarge, ErrCodeBatchTooLarge:
		return KindLimitExceeded
	}
	if categoryFromCode(code) == CategoryValidation {
		return KindInvalidArgument
	}
	return KindInternal
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Credential failures abort the whole operation
	switch code {
	case ErrCodeAPIKeyMissing, ErrCodeUnauthenticated:
		return SeverityFatal
	}

	// Recoverable conditions log as warnings
	if code == ErrCodeCacheCorrupt || isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	return kindFromCode(code).Retryable()
}
