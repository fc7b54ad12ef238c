package model

// QueryRequest carries one natural-language query against a store.
// Filters map metadata field names to either a single scalar or a slice of
// accepted scalars: OR semantics within a field, AND semantics across
// fields. An absent filter leaves that field unconstrained.
type QueryRequest struct {
	StoreName string         `json:"store_name"`
	QueryText string         `json:"query_text"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// Citation references the source passage supporting part of an answer.
// Excerpt is never absent: when the service supplies no excerpt the field
// carries an empty string (or a locator when one is available).
type Citation struct {
	SourceFile string   `json:"source_file"`
	Excerpt    string   `json:"excerpt_or_locator"`
	Score      *float64 `json:"score,omitempty"`
}

// QueryResult is the normalized answer to one query. Results are immutable
// once returned; callers receive their own copy.
type QueryResult struct {
	AnswerText string     `json:"answer_text"`
	Citations  []Citation `json:"citations"`
	TokensUsed int        `json:"tokens_used"`
}
