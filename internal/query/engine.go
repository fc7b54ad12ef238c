// Package query executes natural-language questions against a document
// store and normalizes the answers. Validation happens here; retry and
// wire-shape handling live in the remote client.
package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/model"
)

// Querier is the remote surface the engine needs.
type Querier interface {
	Query(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error)
}

// Executor runs one query request. Implemented by Engine and by the
// caching decorator, so callers can swap one for the other.
type Executor interface {
	Execute(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error)
}

// Engine validates and executes query requests.
type Engine struct {
	remote Querier
	logger *slog.Logger
}

func New(remote Querier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{remote: remote, logger: logger}
}

// Execute runs one query. The store name and query text must be non-blank;
// filter values are passed through unmodified because metadata fields are
// user-defined and carry no schema to validate against.
func (e *Engine) Execute(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	if strings.TrimSpace(req.StoreName) == "" {
		return nil, lexerrors.New(lexerrors.ErrCodeStoreNameEmpty,
			"store name is required", nil)
	}
	if strings.TrimSpace(req.QueryText) == "" {
		return nil, lexerrors.New(lexerrors.ErrCodeQueryEmpty,
			"query text is empty", nil).
			WithSuggestion("Provide the question to ask, e.g. 'termini di pagamento'")
	}

	start := time.Now()
	result, err := e.remote.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	// Citations are an ordered sequence that may legitimately be empty,
	// but never absent.
	if result.Citations == nil {
		result.Citations = []model.Citation{}
	}

	e.logger.Debug("query executed",
		"store", req.StoreName,
		"filters", len(req.Filters),
		"citations", len(result.Citations),
		"tokens_used", result.TokensUsed,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
