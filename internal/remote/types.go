package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/model"
)

// The service wraps every payload in a data envelope and reports failures
// as {"error": {"code", "message"}}. Wire shapes live here so response
// variance never leaks past this package.

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiStore struct {
	Name            string            `json:"name"`
	DisplayName     string            `json:"display_name"`
	Description     string            `json:"description"`
	FileCount       int               `json:"file_count"`
	CreateTime      time.Time         `json:"create_time"`
	DefaultMetadata map[string]string `json:"default_metadata"`
}

func (s *apiStore) toModel() *model.Store {
	displayName := s.DisplayName
	if displayName == "" {
		displayName = s.Name
	}
	return &model.Store{
		Name:            s.Name,
		DisplayName:     displayName,
		Description:     s.Description,
		FileCount:       s.FileCount,
		CreatedAt:       s.CreateTime,
		DefaultMetadata: s.DefaultMetadata,
	}
}

type apiDocument struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	State       string    `json:"state"`
	SizeBytes   int64     `json:"size_bytes"`
	CreateTime  time.Time `json:"create_time"`
}

func (d *apiDocument) toModel() *model.FileRef {
	return &model.FileRef{
		Name:        d.Name,
		DisplayName: d.DisplayName,
		State:       model.NormalizeFileState(d.State),
		SizeBytes:   d.SizeBytes,
		CreatedAt:   d.CreateTime,
	}
}

type apiCitation struct {
	SourceFile string   `json:"source_file"`
	Excerpt    string   `json:"excerpt"`
	Locator    string   `json:"locator"`
	Score      *float64 `json:"score"`
}

type apiQueryResponse struct {
	Answer     string        `json:"answer"`
	Citations  []apiCitation `json:"citations"`
	TokensUsed int           `json:"tokens_used"`
}

// toModel fixes the citation shape: excerpt falls back to the locator, and
// a missing excerpt becomes an empty string rather than an absent field.
func (q *apiQueryResponse) toModel() *model.QueryResult {
	citations := make([]model.Citation, 0, len(q.Citations))
	for _, c := range q.Citations {
		excerpt := c.Excerpt
		if excerpt == "" {
			excerpt = c.Locator
		}
		citations = append(citations, model.Citation{
			SourceFile: c.SourceFile,
			Excerpt:    excerpt,
			Score:      c.Score,
		})
	}
	return &model.QueryResult{
		AnswerText: q.Answer,
		Citations:  citations,
		TokensUsed: q.TokensUsed,
	}
}

type apiQueryRequest struct {
	Query   string         `json:"query"`
	Filters map[string]any `json:"filters,omitempty"`
}

type apiCreateStoreRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, lexerrors.New(lexerrors.ErrCodeInternal, "failed to encode request", err)
	}
	return data, nil
}

// decodeData unwraps a {"data": T} envelope.
func decodeData[T any](body []byte) (T, error) {
	var wrapper struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		var zero T
		return zero, lexerrors.New(lexerrors.ErrCodeRemoteProtocol, "failed to decode response", err)
	}
	return wrapper.Data, nil
}

// decodePage unwraps a {"data": [T], "next_cursor": ...} envelope.
func decodePage[T any](body []byte) ([]T, string, error) {
	var wrapper struct {
		Data       []T    `json:"data"`
		NextCursor string `json:"next_cursor"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, "", lexerrors.New(lexerrors.ErrCodeRemoteProtocol, "failed to decode response", err)
	}
	return wrapper.Data, wrapper.NextCursor, nil
}

// classifyStatus maps an HTTP failure status onto the error taxonomy. The
// response body's error message is surfaced when present; the remote error
// code rides along as a detail.
func classifyStatus(status int, body []byte) *lexerrors.LexError {
	message := fmt.Sprintf("unexpected status %d", status)
	remoteCode := ""

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		remoteCode = envelope.Error.Code
	}

	var lexErr *lexerrors.LexError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		lexErr = lexerrors.New(lexerrors.ErrCodeUnauthenticated, message, nil).
			WithSuggestion("Check that LEXSTORE_API_KEY is set to a valid key")
	case status == http.StatusNotFound:
		lexErr = lexerrors.New(lexerrors.ErrCodeNotFound, message, nil)
	case status == http.StatusTooManyRequests:
		lexErr = lexerrors.New(lexerrors.ErrCodeRateLimited, message, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		lexErr = lexerrors.New(lexerrors.ErrCodeInvalidInput, message, nil)
	case status >= 500:
		lexErr = lexerrors.New(lexerrors.ErrCodeRemoteUnavailable, message, nil)
	default:
		lexErr = lexerrors.New(lexerrors.ErrCodeRemoteProtocol, message, nil)
	}

	lexErr.WithDetail("http_status", fmt.Sprintf("%d", status))
	if remoteCode != "" {
		lexErr.WithDetail("remote_code", remoteCode)
	}
	return lexErr
}

// classifyTransport maps request-level failures (connection refused, DNS,
// per-attempt timeout) onto the taxonomy. Parent-context cancellation is
// handled by the caller before this sees the error.
func classifyTransport(err error) *lexerrors.LexError {
	if errors.Is(err, context.DeadlineExceeded) {
		return lexerrors.New(lexerrors.ErrCodeRemoteTimeout, "request timed out", err)
	}
	return lexerrors.New(lexerrors.ErrCodeRemoteUnavailable, "request failed", err)
}
