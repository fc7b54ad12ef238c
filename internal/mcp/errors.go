// Package mcp implements the Model Context Protocol server for lexstore.
// It exposes store management, upload, and query as MCP tools over stdio
// so AI clients can work against LexHub document stores directly.
package mcp

import (
	"context"
	"errors"
	"fmt"

	lexerrors "github.com/studiolex/lexstore/internal/errors"
)

// Custom MCP error codes for lexstore.
const (
	// ErrCodeAuth indicates the LexHub credential is missing or rejected.
	ErrCodeAuth = -32001

	// ErrCodeRateLimited indicates the remote asked the client to back off.
	ErrCodeRateLimited = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeNotFound indicates a store or document does not exist.
	ErrCodeNotFound = -32004

	// ErrCodeLimitExceeded indicates a file or batch size cap was hit.
	ErrCodeLimitExceeded = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. Taxonomy kinds map to
// JSON-RPC codes; the suggestion, when present, rides along in the message
// because MCP clients have nowhere else to show it.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var lexErr *lexerrors.LexError
	if errors.As(err, &lexErr) {
		return mapLexError(lexErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapLexError converts a LexError to an MCPError.
func mapLexError(le *lexerrors.LexError) *MCPError {
	message := le.Message
	if le.Suggestion != "" {
		message = fmt.Sprintf("%s %s", le.Message, le.Suggestion)
	}

	switch le.Kind {
	case lexerrors.KindUnauthenticated:
		return &MCPError{Code: ErrCodeAuth, Message: message}
	case lexerrors.KindInvalidArgument:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case lexerrors.KindRateLimited:
		return &MCPError{Code: ErrCodeRateLimited, Message: message}
	case lexerrors.KindTransient:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case lexerrors.KindNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case lexerrors.KindLimitExceeded:
		return &MCPError{Code: ErrCodeLimitExceeded, Message: message}
	default: // KindInternal, KindCacheCorrupt (recovered locally, should not surface)
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
