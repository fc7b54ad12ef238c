package mcp

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiolex/lexstore/internal/cache"
	lexerrors "github.com/studiolex/lexstore/internal/errors"
	"github.com/studiolex/lexstore/internal/history"
	"github.com/studiolex/lexstore/internal/model"
	"github.com/studiolex/lexstore/internal/pipeline"
)

type fakeAdmin struct {
	listFn    func(ctx context.Context, forceRefresh bool) ([]model.Store, error)
	createFn  func(ctx context.Context, displayName, description string) (*model.Store, error)
	deleteFn  func(ctx context.Context, name string) error
	resolveFn func(ctx context.Context, key string) (*model.Store, error)

	createCalls  int
	deleted      []string
	recordedName string
	recordedN    int
}

func (f *fakeAdmin) List(ctx context.Context, forceRefresh bool) ([]model.Store, error) {
	if f.listFn != nil {
		return f.listFn(ctx, forceRefresh)
	}
	return nil, nil
}

func (f *fakeAdmin) Create(ctx context.Context, displayName, description string) (*model.Store, error) {
	f.createCalls++
	if f.createFn != nil {
		return f.createFn(ctx, displayName, description)
	}
	return &model.Store{Name: "stores/" + displayName, DisplayName: displayName, Description: description}, nil
}

func (f *fakeAdmin) Delete(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	if f.deleteFn != nil {
		return f.deleteFn(ctx, name)
	}
	return nil
}

func (f *fakeAdmin) Resolve(ctx context.Context, key string) (*model.Store, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, key)
	}
	return &model.Store{Name: "stores/contracts", DisplayName: key}, nil
}

func (f *fakeAdmin) RecordUploaded(name string, count int) {
	f.recordedName = name
	f.recordedN = count
}

type fakeFiles struct {
	listFn func(ctx context.Context, storeName string) ([]model.FileRef, error)
}

func (f *fakeFiles) ListFiles(ctx context.Context, storeName string) ([]model.FileRef, error) {
	if f.listFn != nil {
		return f.listFn(ctx, storeName)
	}
	return nil, nil
}

type fakeBatchUploader struct {
	uploadFn  func(ctx context.Context, storeName string, tasks []pipeline.Task, onProgress pipeline.ProgressFunc) (*pipeline.BatchResult, error)
	calls     int
	lastStore string
	lastTasks []pipeline.Task
}

func (f *fakeBatchUploader) Upload(ctx context.Context, storeName string, tasks []pipeline.Task, onProgress pipeline.ProgressFunc) (*pipeline.BatchResult, error) {
	f.calls++
	f.lastStore = storeName
	f.lastTasks = tasks
	if f.uploadFn != nil {
		return f.uploadFn(ctx, storeName, tasks, onProgress)
	}

	result := &pipeline.BatchResult{
		BatchID:   "batch-test",
		StoreName: storeName,
		Succeeded: len(tasks),
		Duration:  time.Second,
	}
	for _, task := range tasks {
		result.Results = append(result.Results, pipeline.TaskResult{
			Task:  task,
			State: pipeline.TaskSucceeded,
			FileRef: &model.FileRef{
				Name:  "documents/uploaded",
				State: model.FileStateActive,
			},
		})
	}
	return result, nil
}

type fakeExecutor struct {
	executeFn func(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error)
	calls     int
	lastReq   model.QueryRequest
}

func (f *fakeExecutor) Execute(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	f.calls++
	f.lastReq = req
	if f.executeFn != nil {
		return f.executeFn(ctx, req)
	}
	score := 0.92
	return &model.QueryResult{
		AnswerText: "Il pagamento è dovuto entro 30 giorni.",
		Citations: []model.Citation{
			{SourceFile: "documents/locazione.pdf", Excerpt: "Art. 5", Score: &score},
		},
		TokensUsed: 412,
	}, nil
}

type fakeAuth struct {
	err error
}

func (f *fakeAuth) CheckAuth(ctx context.Context) error { return f.err }

type fakeCacheReader struct {
	snap cache.Snapshot
	path string
}

func (f *fakeCacheReader) Load() cache.Snapshot { return f.snap }
func (f *fakeCacheReader) Path() string         { return f.path }

type serverFixture struct {
	admin *fakeAdmin
	files *fakeFiles
	up    *fakeBatchUploader
	exec  *fakeExecutor
	auth  *fakeAuth
	cache *fakeCacheReader
	hist  *history.Store
	srv   *Server
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, withHistory bool) *serverFixture {
	t.Helper()

	fx := &serverFixture{
		admin: &fakeAdmin{},
		files: &fakeFiles{},
		up:    &fakeBatchUploader{},
		exec:  &fakeExecutor{},
		auth:  &fakeAuth{},
		cache: &fakeCacheReader{path: "/tmp/stores.json"},
	}
	if withHistory {
		h, err := history.Open(history.Config{}, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Close() })
		fx.hist = h
	}

	srv, err := NewServer(Deps{
		Stores:   fx.admin,
		Files:    fx.files,
		Uploader: fx.up,
		Query:    fx.exec,
		Auth:     fx.auth,
		Cache:    fx.cache,
		History:  fx.hist,
	}, testLogger())
	require.NoError(t, err)
	fx.srv = srv
	return fx
}

func TestNewServer_RequiredDeps(t *testing.T) {
	full := func() Deps {
		return Deps{
			Stores:   &fakeAdmin{},
			Files:    &fakeFiles{},
			Uploader: &fakeBatchUploader{},
			Query:    &fakeExecutor{},
			Auth:     &fakeAuth{},
			Cache:    &fakeCacheReader{},
		}
	}

	tests := []struct {
		name string
		mod  func(*Deps)
	}{
		{"missing stores", func(d *Deps) { d.Stores = nil }},
		{"missing files", func(d *Deps) { d.Files = nil }},
		{"missing uploader", func(d *Deps) { d.Uploader = nil }},
		{"missing query", func(d *Deps) { d.Query = nil }},
		{"missing auth", func(d *Deps) { d.Auth = nil }},
		{"missing cache", func(d *Deps) { d.Cache = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full()
			tt.mod(&deps)
			_, err := NewServer(deps, testLogger())
			assert.Error(t, err)
		})
	}

	// History stays optional
	srv, err := NewServer(full(), testLogger())
	require.NoError(t, err)
	assert.NotNil(t, srv.MCPServer())
}

func TestListTools(t *testing.T) {
	fx := newTestServer(t, false)

	tools := fx.srv.ListTools()

	require.Len(t, tools, 7)
	for _, tool := range tools {
		assert.Contains(t, tool.Name, "lexstore_")
		assert.NotEmpty(t, tool.Description)
	}
}

func TestHandleListStores(t *testing.T) {
	fx := newTestServer(t, false)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var gotRefresh bool
	fx.admin.listFn = func(ctx context.Context, forceRefresh bool) ([]model.Store, error) {
		gotRefresh = forceRefresh
		return []model.Store{
			{Name: "stores/contracts", DisplayName: "Contracts-2024", FileCount: 12, CreatedAt: created},
			{Name: "stores/invoices", DisplayName: "Fatture", Description: "fatture 2024"},
		}, nil
	}

	out, err := fx.srv.handleListStores(context.Background(), ListStoresInput{Refresh: true})

	require.NoError(t, err)
	assert.True(t, gotRefresh, "refresh flag must reach the registry")
	require.Len(t, out.Stores, 2)
	assert.Equal(t, "stores/contracts", out.Stores[0].Name)
	assert.Equal(t, 12, out.Stores[0].FileCount)
	assert.Equal(t, "2024-03-01T10:00:00Z", out.Stores[0].CreatedAt)
	assert.Equal(t, "fatture 2024", out.Stores[1].Description)
}

func TestHandleCreateStore(t *testing.T) {
	fx := newTestServer(t, false)

	out, err := fx.srv.handleCreateStore(context.Background(), CreateStoreInput{
		DisplayName: "Contracts-2024",
		Description: "contratti dell'anno",
	})

	require.NoError(t, err)
	assert.Equal(t, "stores/Contracts-2024", out.Name)
	assert.Equal(t, "Contracts-2024", out.DisplayName)
}

func TestHandleCreateStore_MissingDisplayName(t *testing.T) {
	fx := newTestServer(t, false)

	_, err := fx.srv.handleCreateStore(context.Background(), CreateStoreInput{DisplayName: "  "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Equal(t, 0, fx.admin.createCalls)
}

func TestHandleDeleteStore_ResolvesDisplayName(t *testing.T) {
	fx := newTestServer(t, false)
	fx.admin.resolveFn = func(ctx context.Context, key string) (*model.Store, error) {
		return &model.Store{Name: "stores/k9x2", DisplayName: key}, nil
	}

	out, err := fx.srv.handleDeleteStore(context.Background(), DeleteStoreInput{Name: "Contracts-2024"})

	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Equal(t, "stores/k9x2", out.Name)
	assert.Equal(t, []string{"stores/k9x2"}, fx.admin.deleted)
}

func TestHandleDeleteStore_UnknownStoreStillDeletes(t *testing.T) {
	fx := newTestServer(t, false)
	fx.admin.resolveFn = func(ctx context.Context, key string) (*model.Store, error) {
		return nil, lexerrors.New(lexerrors.ErrCodeNotFound, "no such store", nil)
	}

	// When: deleting a store the cache has never seen
	out, err := fx.srv.handleDeleteStore(context.Background(), DeleteStoreInput{Name: "stores/ghost"})

	// Then: the raw name goes straight to delete, which is idempotent
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Equal(t, []string{"stores/ghost"}, fx.admin.deleted)
}

func TestHandleListFiles(t *testing.T) {
	fx := newTestServer(t, false)
	fx.files.listFn = func(ctx context.Context, storeName string) ([]model.FileRef, error) {
		assert.Equal(t, "stores/contracts", storeName)
		return []model.FileRef{
			{Name: "documents/a.pdf", DisplayName: "a.pdf", State: model.FileStateActive, SizeBytes: 1024},
			{Name: "documents/b.pdf", DisplayName: "b.pdf", State: model.FileStateProcessing},
		}, nil
	}

	out, err := fx.srv.handleListFiles(context.Background(), ListFilesInput{Store: "Contracts-2024"})

	require.NoError(t, err)
	assert.Equal(t, "stores/contracts", out.Store)
	require.Len(t, out.Files, 2)
	assert.Equal(t, "active", out.Files[0].State)
	assert.Equal(t, int64(1024), out.Files[0].SizeBytes)
	assert.Equal(t, "processing", out.Files[1].State)
}

func TestHandleUpload(t *testing.T) {
	fx := newTestServer(t, false)

	out, err := fx.srv.handleUpload(context.Background(), UploadInput{
		Store:         "Contracts-2024",
		Paths:         []string{"/docs/locazione.pdf", "/docs/appalto.pdf"},
		Practice:      "2024-017",
		DocType:       "Contratto",
		Tags:          []string{"urgente"},
		MaxTokens:     512,
		OverlapTokens: 64,
	})

	require.NoError(t, err)
	assert.Equal(t, "batch-test", out.BatchID)
	assert.Equal(t, "stores/contracts", out.Store)
	assert.Equal(t, 2, out.Succeeded)
	require.Len(t, out.Files, 2)
	assert.Equal(t, "/docs/locazione.pdf", out.Files[0].Path)
	assert.Equal(t, string(pipeline.TaskSucceeded), out.Files[0].State)

	// The shared metadata and chunking reach every task
	require.Len(t, fx.up.lastTasks, 2)
	for _, task := range fx.up.lastTasks {
		assert.Equal(t, "2024-017", task.Metadata.Practice)
		assert.Equal(t, "Contratto", task.Metadata.DocType)
		assert.Equal(t, []string{"urgente"}, task.Metadata.Tags)
		assert.Equal(t, 512, task.Chunking.MaxTokens)
	}

	// Successes fold into the cached file count
	assert.Equal(t, "stores/contracts", fx.admin.recordedName)
	assert.Equal(t, 2, fx.admin.recordedN)
}

func TestHandleUpload_ParamValidation(t *testing.T) {
	fx := newTestServer(t, false)

	_, err := fx.srv.handleUpload(context.Background(), UploadInput{Store: "", Paths: []string{"/a"}})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)

	_, err = fx.srv.handleUpload(context.Background(), UploadInput{Store: "Contracts-2024"})
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)

	assert.Equal(t, 0, fx.up.calls)
}

func TestHandleUpload_PartialFailureReported(t *testing.T) {
	fx := newTestServer(t, true)
	fx.up.uploadFn = func(ctx context.Context, storeName string, tasks []pipeline.Task, _ pipeline.ProgressFunc) (*pipeline.BatchResult, error) {
		return &pipeline.BatchResult{
			BatchID:   "batch-partial",
			StoreName: storeName,
			Succeeded: 1,
			Failed:    1,
			Results: []pipeline.TaskResult{
				{Task: tasks[0], State: pipeline.TaskSucceeded},
				{Task: tasks[1], State: pipeline.TaskFailed,
					Err: lexerrors.New(lexerrors.ErrCodeFileTooLarge, "file exceeds 100 MB limit", nil)},
			},
		}, nil
	}

	out, err := fx.srv.handleUpload(context.Background(), UploadInput{
		Store: "Contracts-2024",
		Paths: []string{"/docs/ok.pdf", "/docs/huge.zip"},
	})

	// Then: no tool-level error, the per-file outcomes carry the failure
	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Contains(t, out.Files[1].Error, "100 MB")

	// And: the batch lands in the audit log
	entries, err := fx.hist.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.KindUpload, entries[0].Kind)
	assert.Equal(t, 1, entries[0].FilesSucceeded)
	assert.Equal(t, 1, entries[0].FilesFailed)
}

func TestHandleQuery(t *testing.T) {
	fx := newTestServer(t, true)

	out, err := fx.srv.handleQuery(context.Background(), QueryInput{
		Store:   "Contracts-2024",
		Query:   "termini di pagamento",
		DocType: "Contratto",
	})

	require.NoError(t, err)
	assert.Equal(t, "Il pagamento è dovuto entro 30 giorni.", out.AnswerText)
	require.Len(t, out.Citations, 1)
	assert.Equal(t, "documents/locazione.pdf", out.Citations[0].SourceFile)
	require.NotNil(t, out.Citations[0].Score)
	assert.InDelta(t, 0.92, *out.Citations[0].Score, 0.001)
	assert.Equal(t, 412, out.TokensUsed)

	// The doc_type shortcut becomes a filter against the resolved store
	assert.Equal(t, "stores/contracts", fx.exec.lastReq.StoreName)
	assert.Equal(t, "Contratto", fx.exec.lastReq.Filters["doc_type"])

	// And: the query lands in the audit log, hashed
	entries, err := fx.hist.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.KindQuery, entries[0].Kind)
	assert.Equal(t, history.HashQuestion("termini di pagamento"), entries[0].QuestionHash)
	assert.Equal(t, 412, entries[0].TokensUsed)
}

func TestHandleQuery_ExplicitFilterWinsOverShortcut(t *testing.T) {
	fx := newTestServer(t, false)

	_, err := fx.srv.handleQuery(context.Background(), QueryInput{
		Store:   "Contracts-2024",
		Query:   "atto di citazione",
		Filters: map[string]any{"doc_type": "Atto"},
		DocType: "Contratto",
	})

	require.NoError(t, err)
	assert.Equal(t, "Atto", fx.exec.lastReq.Filters["doc_type"])
}

func TestHandleQuery_ParamValidation(t *testing.T) {
	fx := newTestServer(t, false)

	_, err := fx.srv.handleQuery(context.Background(), QueryInput{Store: "s", Query: "  "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Equal(t, 0, fx.exec.calls)
}

func TestHandleStatus(t *testing.T) {
	fx := newTestServer(t, true)
	fx.cache.snap = cache.Snapshot{
		Stores: []model.Store{
			{Name: "stores/contracts"},
			{Name: "stores/invoices"},
		},
		LastSyncedAt: time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, fx.hist.RecordQuery(context.Background(), "stores/contracts", "h1", 10, 1, time.Second))

	out, err := fx.srv.handleStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "valid", out.Credential)
	assert.Equal(t, 2, out.StoreCount)
	assert.NotEmpty(t, out.LastSyncedAt)
	assert.GreaterOrEqual(t, out.CacheAgeSeconds, int64(590))
	assert.Equal(t, "/tmp/stores.json", out.CachePath)
	require.NotNil(t, out.History)
	assert.Equal(t, int64(1), out.History.Queries)
}

func TestHandleStatus_CredentialStates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejected key", lexerrors.New(lexerrors.ErrCodeUnauthenticated, "bad key", nil), "invalid"},
		{"remote down", lexerrors.New(lexerrors.ErrCodeRemoteUnavailable, "503", nil), "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newTestServer(t, false)
			fx.auth.err = tt.err

			out, err := fx.srv.handleStatus(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Credential)
		})
	}
}

func TestHandleStatus_EmptyCache(t *testing.T) {
	fx := newTestServer(t, false)

	out, err := fx.srv.handleStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, out.StoreCount)
	assert.Empty(t, out.LastSyncedAt)
	assert.Nil(t, out.History, "history is optional")
}
