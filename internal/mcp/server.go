package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studiolex/lexstore/internal/cache"
	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/history"
	"github.com/studiolex/lexstore/internal/model"
	"github.com/studiolex/lexstore/internal/pipeline"
	"github.com/studiolex/lexstore/internal/query"
	"github.com/studiolex/lexstore/pkg/version"
)

// StoreAdmin is the registry surface the server needs.
type StoreAdmin interface {
	List(ctx context.Context, forceRefresh bool) ([]model.Store, error)
	Create(ctx context.Context, displayName, description string) (*model.Store, error)
	Delete(ctx context.Context, name string) error
	Resolve(ctx context.Context, nameOrDisplay string) (*model.Store, error)
	RecordUploaded(name string, count int)
}

// FileLister lists the documents inside a store.
type FileLister interface {
	ListFiles(ctx context.Context, storeName string) ([]model.FileRef, error)
}

// BatchUploader runs upload batches.
type BatchUploader interface {
	Upload(ctx context.Context, storeName string, tasks []pipeline.Task, onProgress pipeline.ProgressFunc) (*pipeline.BatchResult, error)
}

// AuthProber checks credential validity without side effects.
type AuthProber interface {
	CheckAuth(ctx context.Context) error
}

// CacheReader reads the local store snapshot for status reporting.
type CacheReader interface {
	Load() cache.Snapshot
	Path() string
}

// Deps carries the collaborators the server bridges to. History is
// optional; every other field is required.
type Deps struct {
	Stores   StoreAdmin
	Files    FileLister
	Uploader BatchUploader
	Query    query.Executor
	Auth     AuthProber
	Cache    CacheReader
	History  *history.Store
}

// Server is the MCP server for lexstore. It bridges AI clients with the
// store registry, upload pipeline, and query engine.
type Server struct {
	mcp     *mcp.Server
	stores  StoreAdmin
	files   FileLister
	upload  BatchUploader
	query   query.Executor
	auth    AuthProber
	cache   CacheReader
	history *history.Store
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server.
func NewServer(deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Stores == nil {
		return nil, errors.New("store registry is required")
	}
	if deps.Files == nil {
		return nil, errors.New("file lister is required")
	}
	if deps.Uploader == nil {
		return nil, errors.New("upload pipeline is required")
	}
	if deps.Query == nil {
		return nil, errors.New("query executor is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("auth prober is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("cache reader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		stores:  deps.Stores,
		files:   deps.Files,
		upload:  deps.Uploader,
		query:   deps.Query,
		auth:    deps.Auth,
		cache:   deps.Cache,
		history: deps.History,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "lexstore",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "lexstore_list_stores",
			Description: "List the document stores visible to this credential. Served from the local cache when fresh; set refresh to force a LexHub round trip.",
		},
		{
			Name:        "lexstore_create_store",
			Description: "Create a new document store. Returns the remote-assigned store name to use in later calls.",
		},
		{
			Name:        "lexstore_delete_store",
			Description: "Delete a document store and everything in it. Deleting a store that no longer exists succeeds.",
		},
		{
			Name:        "lexstore_list_files",
			Description: "List the documents in a store with their indexing state. Only active documents answer queries.",
		},
		{
			Name:        "lexstore_upload",
			Description: "Upload files into a store for indexing. Files over 100 MB or past the 1 GB batch budget are rejected locally; the rest proceed, so always check the per-file outcomes.",
		},
		{
			Name:        "lexstore_query",
			Description: "Ask a natural-language question against a store. Returns an answer with citations back to the source documents. Filter by metadata, e.g. doc_type Contratto.",
		},
		{
			Name:        "lexstore_status",
			Description: "Check credential validity, cache freshness, and usage totals. Use when stores look stale or uploads fail with auth errors.",
		},
	}
}

// Serve runs the server on stdio until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", "error", err.Error())
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	for _, t := range s.ListTools() {
		tool := &mcp.Tool{Name: t.Name, Description: t.Description}
		switch t.Name {
		case "lexstore_list_stores":
			mcp.AddTool(s.mcp, tool, s.mcpListStoresHandler)
		case "lexstore_create_store":
			mcp.AddTool(s.mcp, tool, s.mcpCreateStoreHandler)
		case "lexstore_delete_store":
			mcp.AddTool(s.mcp, tool, s.mcpDeleteStoreHandler)
		case "lexstore_list_files":
			mcp.AddTool(s.mcp, tool, s.mcpListFilesHandler)
		case "lexstore_upload":
			mcp.AddTool(s.mcp, tool, s.mcpUploadHandler)
		case "lexstore_query":
			mcp.AddTool(s.mcp, tool, s.mcpQueryHandler)
		case "lexstore_status":
			mcp.AddTool(s.mcp, tool, s.mcpStatusHandler)
		}
		s.logger.Debug("registered tool", "name", t.Name)
	}
	s.logger.Info("MCP tools registered", "count", len(s.ListTools()))
}

// handleListStores implements the lexstore_list_stores tool.
func (s *Server) handleListStores(ctx context.Context, input ListStoresInput) (ListStoresOutput, error) {
	stores, err := s.stores.List(ctx, input.Refresh)
	if err != nil {
		return ListStoresOutput{}, err
	}

	out := ListStoresOutput{Stores: make([]StoreOutput, 0, len(stores))}
	for _, st := range stores {
		out.Stores = append(out.Stores, toStoreOutput(st))
	}
	return out, nil
}

// handleCreateStore implements the lexstore_create_store tool.
func (s *Server) handleCreateStore(ctx context.Context, input CreateStoreInput) (StoreOutput, error) {
	if strings.TrimSpace(input.DisplayName) == "" {
		return StoreOutput{}, NewInvalidParamsError("display_name parameter is required")
	}

	st, err := s.stores.Create(ctx, input.DisplayName, input.Description)
	if err != nil {
		return StoreOutput{}, err
	}
	return toStoreOutput(*st), nil
}

// handleDeleteStore implements the lexstore_delete_store tool.
func (s *Server) handleDeleteStore(ctx context.Context, input DeleteStoreInput) (DeleteStoreOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return DeleteStoreOutput{}, NewInvalidParamsError("name parameter is required")
	}

	name := input.Name
	if st, err := s.stores.Resolve(ctx, input.Name); err == nil {
		name = st.Name
	}
	// Resolution failures fall through with the raw name: delete is
	// idempotent and an unknown store still deletes cleanly.

	if err := s.stores.Delete(ctx, name); err != nil {
		return DeleteStoreOutput{}, err
	}
	return DeleteStoreOutput{Name: name, Deleted: true}, nil
}

// handleListFiles implements the lexstore_list_files tool.
func (s *Server) handleListFiles(ctx context.Context, input ListFilesInput) (ListFilesOutput, error) {
	if strings.TrimSpace(input.Store) == "" {
		return ListFilesOutput{}, NewInvalidParamsError("store parameter is required")
	}

	st, err := s.stores.Resolve(ctx, input.Store)
	if err != nil {
		return ListFilesOutput{}, err
	}

	files, err := s.files.ListFiles(ctx, st.Name)
	if err != nil {
		return ListFilesOutput{}, err
	}

	out := ListFilesOutput{Store: st.Name, Files: make([]FileOutput, 0, len(files))}
	for _, f := range files {
		out.Files = append(out.Files, FileOutput{
			Name:        f.Name,
			DisplayName: f.DisplayName,
			State:       string(f.State),
			SizeBytes:   f.SizeBytes,
			CreatedAt:   formatTime(f.CreatedAt),
		})
	}
	return out, nil
}

// handleUpload implements the lexstore_upload tool.
func (s *Server) handleUpload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	if strings.TrimSpace(input.Store) == "" {
		return UploadOutput{}, NewInvalidParamsError("store parameter is required")
	}
	if len(input.Paths) == 0 {
		return UploadOutput{}, NewInvalidParamsError("paths parameter is required and must list at least one file")
	}

	requestID := generateRequestID()
	start := time.Now()

	st, err := s.stores.Resolve(ctx, input.Store)
	if err != nil {
		return UploadOutput{}, err
	}

	meta := model.Metadata{
		Practice: input.Practice,
		DocType:  input.DocType,
		Tags:     input.Tags,
		Date:     input.Date,
		Client:   input.Client,
	}
	var chunking model.Chunking
	if input.MaxTokens > 0 || input.OverlapTokens > 0 {
		chunking = model.Chunking{MaxTokens: input.MaxTokens, OverlapTokens: input.OverlapTokens}
	}

	tasks := make([]pipeline.Task, 0, len(input.Paths))
	for _, path := range input.Paths {
		tasks = append(tasks, pipeline.Task{
			SourcePath: path,
			Metadata:   meta,
			Chunking:   chunking,
		})
	}

	s.logger.Info("upload started",
		"request_id", requestID,
		"store", st.Name,
		"files", len(tasks))

	result, err := s.upload.Upload(ctx, st.Name, tasks, nil)
	if err != nil {
		s.logger.Error("upload failed",
			"request_id", requestID,
			"error", err.Error())
		return UploadOutput{}, err
	}

	if result.Succeeded > 0 {
		s.stores.RecordUploaded(st.Name, result.Succeeded)
	}
	s.recordUploadHistory(ctx, st.Name, result)

	out := UploadOutput{
		BatchID:   result.BatchID,
		Store:     st.Name,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Files:     make([]UploadFileOutput, 0, len(result.Results)),
	}
	for _, res := range result.Results {
		f := UploadFileOutput{
			Path:  res.Task.SourcePath,
			State: string(res.State),
		}
		if res.Err != nil {
			f.Error = res.Err.Error()
		}
		out.Files = append(out.Files, f)
	}

	s.logger.Info("upload completed",
		"request_id", requestID,
		"duration", time.Since(start),
		"succeeded", result.Succeeded,
		"failed", result.Failed)

	return out, nil
}

// handleQuery implements the lexstore_query tool.
func (s *Server) handleQuery(ctx context.Context, input QueryInput) (QueryOutput, error) {
	if strings.TrimSpace(input.Store) == "" {
		return QueryOutput{}, NewInvalidParamsError("store parameter is required")
	}
	if strings.TrimSpace(input.Query) == "" {
		return QueryOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	requestID := generateRequestID()
	start := time.Now()

	st, err := s.stores.Resolve(ctx, input.Store)
	if err != nil {
		return QueryOutput{}, err
	}

	filters := input.Filters
	if input.DocType != "" {
		if filters == nil {
			filters = map[string]any{}
		}
		// An explicit filters.doc_type wins over the shortcut.
		if _, ok := filters["doc_type"]; !ok {
			filters["doc_type"] = input.DocType
		}
	}

	s.logger.Info("query started",
		"request_id", requestID,
		"store", st.Name)

	result, err := s.query.Execute(ctx, model.QueryRequest{
		StoreName: st.Name,
		QueryText: input.Query,
		Filters:   filters,
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("query failed",
			"request_id", requestID,
			"duration", duration,
			"error", err.Error())
		return QueryOutput{}, err
	}

	s.recordQueryHistory(ctx, st.Name, input.Query, result, duration)

	out := QueryOutput{
		AnswerText: result.AnswerText,
		Citations:  make([]CitationOutput, 0, len(result.Citations)),
		TokensUsed: result.TokensUsed,
	}
	for _, c := range result.Citations {
		out.Citations = append(out.Citations, CitationOutput{
			SourceFile: c.SourceFile,
			Excerpt:    c.Excerpt,
			Score:      c.Score,
		})
	}

	s.logger.Info("query completed",
		"request_id", requestID,
		"duration", duration,
		"citations", len(result.Citations))

	return out, nil
}

// handleStatus implements the lexstore_status tool.
func (s *Server) handleStatus(ctx context.Context) (StatusOutput, error) {
	snap := s.cache.Load()

	out := StatusOutput{
		Version:    version.Short(),
		StoreCount: len(snap.Stores),
		CachePath:  s.cache.Path(),
	}
	if !snap.LastSyncedAt.IsZero() {
		out.LastSyncedAt = formatTime(snap.LastSyncedAt)
		out.CacheAgeSeconds = int64(time.Since(snap.LastSyncedAt).Seconds())
	}

	switch err := s.auth.CheckAuth(ctx); {
	case err == nil:
		out.Credential = "valid"
	case lexerrors.KindOf(err) == lexerrors.KindUnauthenticated:
		out.Credential = "invalid"
	default:
		out.Credential = "unreachable"
	}

	if s.history != nil {
		totals, err := s.history.Totals(ctx)
		if err != nil {
			s.logger.Warn("history totals unavailable", "error", err.Error())
		} else {
			out.History = &HistoryTotals{
				Queries:       totals.Queries,
				Uploads:       totals.Uploads,
				FilesUploaded: totals.FilesUploaded,
			}
		}
	}

	return out, nil
}

// recordUploadHistory appends the batch to the audit log. Failures are
// logged, never surfaced: the upload already happened.
func (s *Server) recordUploadHistory(ctx context.Context, storeName string, result *pipeline.BatchResult) {
	if s.history == nil {
		return
	}
	var totalBytes int64
	for _, res := range result.Results {
		if res.State == pipeline.TaskSucceeded {
			totalBytes += res.Task.Metadata.FileSizeBytes
		}
	}
	err := s.history.RecordUpload(ctx, storeName,
		result.Succeeded, result.Failed, result.Skipped, totalBytes, result.Duration)
	if err != nil {
		s.logger.Warn("cannot record upload history", "error", err.Error())
	}
}

// recordQueryHistory appends the query to the audit log, same policy.
func (s *Server) recordQueryHistory(ctx context.Context, storeName, question string, result *model.QueryResult, latency time.Duration) {
	if s.history == nil {
		return
	}
	err := s.history.RecordQuery(ctx, storeName,
		history.HashQuestion(question), result.TokensUsed, len(result.Citations), latency)
	if err != nil {
		s.logger.Warn("cannot record query history", "error", err.Error())
	}
}

// MCP SDK adapters. Each wraps its handler and maps internal errors onto
// protocol codes; parameter errors are already MCPErrors and pass through.

func (s *Server) mcpListStoresHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListStoresInput) (*mcp.CallToolResult, ListStoresOutput, error) {
	out, err := s.handleListStores(ctx, input)
	return nil, out, toProtocolError(err)
}

func (s *Server) mcpCreateStoreHandler(ctx context.Context, _ *mcp.CallToolRequest, input CreateStoreInput) (*mcp.CallToolResult, StoreOutput, error) {
	out, err := s.handleCreateStore(ctx, input)
	return nil, out, toProtocolError(err)
}

func (s *Server) mcpDeleteStoreHandler(ctx context.Context, _ *mcp.CallToolRequest, input DeleteStoreInput) (*mcp.CallToolResult, DeleteStoreOutput, error) {
	out, err := s.handleDeleteStore(ctx, input)
	return nil, out, toProtocolError(err)
}

func (s *Server) mcpListFilesHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListFilesInput) (*mcp.CallToolResult, ListFilesOutput, error) {
	out, err := s.handleListFiles(ctx, input)
	return nil, out, toProtocolError(err)
}

func (s *Server) mcpUploadHandler(ctx context.Context, _ *mcp.CallToolRequest, input UploadInput) (*mcp.CallToolResult, UploadOutput, error) {
	out, err := s.handleUpload(ctx, input)
	return nil, out, toProtocolError(err)
}

func (s *Server) mcpQueryHandler(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	out, err := s.handleQuery(ctx, input)
	return nil, out, toProtocolError(err)
}

func (s *Server) mcpStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	out, err := s.handleStatus(ctx)
	return nil, out, toProtocolError(err)
}

// toProtocolError maps handler errors onto MCPErrors, leaving nil and
// already-mapped errors alone.
func toProtocolError(err error) error {
	if err == nil {
		return nil
	}
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	return MapError(err)
}

func toStoreOutput(st model.Store) StoreOutput {
	return StoreOutput{
		Name:        st.Name,
		DisplayName: st.DisplayName,
		Description: st.Description,
		FileCount:   st.FileCount,
		CreatedAt:   formatTime(st.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
