package mcp

// ListStoresInput defines the input schema for the lexstore_list_stores tool.
type ListStoresInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"bypass the local cache and fetch the listing from LexHub"`
}

// ListStoresOutput defines the output schema for the lexstore_list_stores tool.
type ListStoresOutput struct {
	Stores []StoreOutput `json:"stores" jsonschema:"document stores visible to this credential"`
}

// StoreOutput is one document store in tool output.
type StoreOutput struct {
	Name        string `json:"name" jsonschema:"stable store identifier assigned by LexHub"`
	DisplayName string `json:"display_name" jsonschema:"user-facing label"`
	Description string `json:"description,omitempty"`
	FileCount   int    `json:"file_count"`
	CreatedAt   string `json:"created_at,omitempty" jsonschema:"RFC3339 creation time"`
}

// CreateStoreInput defines the input schema for the lexstore_create_store tool.
type CreateStoreInput struct {
	DisplayName string `json:"display_name" jsonschema:"label for the new store, e.g. 'Contracts-2024'"`
	Description string `json:"description,omitempty" jsonschema:"optional free-form description"`
}

// DeleteStoreInput defines the input schema for the lexstore_delete_store tool.
type DeleteStoreInput struct {
	Name string `json:"name" jsonschema:"store name or display name; deleting an absent store succeeds"`
}

// DeleteStoreOutput defines the output schema for the lexstore_delete_store tool.
type DeleteStoreOutput struct {
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// ListFilesInput defines the input schema for the lexstore_list_files tool.
type ListFilesInput struct {
	Store string `json:"store" jsonschema:"store name or display name"`
}

// ListFilesOutput defines the output schema for the lexstore_list_files tool.
type ListFilesOutput struct {
	Store string       `json:"store"`
	Files []FileOutput `json:"files"`
}

// FileOutput is one indexed document in tool output.
type FileOutput struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	State       string `json:"state" jsonschema:"processing, active, or failed"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedAt   string `json:"created_at,omitempty" jsonschema:"RFC3339 creation time"`
}

// UploadInput defines the input schema for the lexstore_upload tool.
type UploadInput struct {
	Store         string   `json:"store" jsonschema:"target store name or display name"`
	Paths         []string `json:"paths" jsonschema:"absolute paths of the files to upload"`
	Practice      string   `json:"practice,omitempty" jsonschema:"practice/matter reference, e.g. 2024-017"`
	DocType       string   `json:"doc_type,omitempty" jsonschema:"document type: Atto, Contratto, Sentenza, Fattura, Nota or Altro"`
	Tags          []string `json:"tags,omitempty" jsonschema:"free-form tags attached to every file"`
	Date          string   `json:"date,omitempty" jsonschema:"document date, YYYY-MM-DD"`
	Client        string   `json:"client,omitempty" jsonschema:"client the documents belong to"`
	MaxTokens     int      `json:"max_tokens,omitempty" jsonschema:"chunk size in tokens, 200-2048"`
	OverlapTokens int      `json:"overlap_tokens,omitempty" jsonschema:"chunk overlap in tokens, less than max_tokens"`
}

// UploadOutput defines the output schema for the lexstore_upload tool.
// A batch with failures still reports its successes; callers must check
// the per-file states, not just the error channel.
type UploadOutput struct {
	BatchID   string             `json:"batch_id"`
	Store     string             `json:"store"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped" jsonschema:"tasks never started, e.g. after cancellation"`
	Files     []UploadFileOutput `json:"files"`
}

// UploadFileOutput is one file's outcome in tool output.
type UploadFileOutput struct {
	Path  string `json:"path"`
	State string `json:"state" jsonschema:"succeeded, failed, or pending when never started"`
	Error string `json:"error,omitempty" jsonschema:"failure reason when state is failed"`
}

// QueryInput defines the input schema for the lexstore_query tool.
type QueryInput struct {
	Store   string         `json:"store" jsonschema:"store name or display name to query"`
	Query   string         `json:"query" jsonschema:"the question to ask"`
	Filters map[string]any `json:"filters,omitempty" jsonschema:"metadata filters, field to accepted value or list of values"`
	DocType string         `json:"doc_type,omitempty" jsonschema:"shortcut for filters.doc_type"`
}

// QueryOutput defines the output schema for the lexstore_query tool.
type QueryOutput struct {
	AnswerText string           `json:"answer_text"`
	Citations  []CitationOutput `json:"citations"`
	TokensUsed int              `json:"tokens_used"`
}

// CitationOutput is one answer citation in tool output.
type CitationOutput struct {
	SourceFile string   `json:"source_file"`
	Excerpt    string   `json:"excerpt_or_locator"`
	Score      *float64 `json:"score,omitempty"`
}

// StatusInput defines the input schema for the lexstore_status tool (no parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the lexstore_status tool.
type StatusOutput struct {
	Version         string         `json:"version"`
	Credential      string         `json:"credential" jsonschema:"valid, invalid, or unreachable"`
	StoreCount      int            `json:"store_count" jsonschema:"stores in the local cache"`
	LastSyncedAt    string         `json:"last_synced_at,omitempty" jsonschema:"RFC3339 time of the last successful sync"`
	CacheAgeSeconds int64          `json:"cache_age_seconds,omitempty"`
	CachePath       string         `json:"cache_path"`
	History         *HistoryTotals `json:"history,omitempty" jsonschema:"audit log totals, absent when history is disabled"`
}

// HistoryTotals summarizes the audit log in status output.
type HistoryTotals struct {
	Queries       int64 `json:"queries"`
	Uploads       int64 `json:"uploads"`
	FilesUploaded int64 `json:"files_uploaded"`
}
