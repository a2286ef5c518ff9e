package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/linskybing/chainjob-cache/internal/application/cache"
	"github.com/linskybing/chainjob-cache/internal/application/ingest"
	appjob "github.com/linskybing/chainjob-cache/internal/application/job"
	"github.com/linskybing/chainjob-cache/internal/chain"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/linskybing/chainjob-cache/internal/testutils"
	"github.com/linskybing/chainjob-cache/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

type env struct {
	router *gin.Engine
	chain  *testutils.FakeChain
	facade *cache.Facade
}

type stubSyncer struct{ ok bool }

func (s *stubSyncer) Trigger() bool { return s.ok }

type stubSnapshots struct {
	name string
	err  error
}

func (s *stubSnapshots) Export(ctx context.Context) (string, error) { return s.name, s.err }

type failingCache struct{}

func (failingCache) GetCacheStats(ctx context.Context) (cache.Stats, error) {
	return cache.Stats{}, errors.New("context deadline exceeded")
}
func (failingCache) Evict(ctx context.Context, id uint64) error { return errors.New("disk I/O error") }

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/ws/jobs", h.Job.StreamJobs)
	api := r.Group("/api")
	api.GET("/jobs", h.Job.GetJobs)
	api.GET("/cache/stats", h.Cache.GetStats)
	api.POST("/cache/sync", h.Cache.TriggerSync)
	api.POST("/cache/snapshot", h.Cache.ExportSnapshot)
	api.DELETE("/cache/jobs/:id", h.Cache.EvictJob)
	return r
}

// setupEnv seeds the chain with [1 Open, 2 Hired, 3 Open] and mirrors it.
func setupEnv(t *testing.T, enabled bool, d Deps) *env {
	t.Helper()
	store := testutils.NewSQLiteStore(t)
	fc := testutils.NewFakeChain()
	fc.SetHead(100)
	fc.Put(job.Job{ID: 1, Client: alice, Status: job.StatusOpen, Budget: "1", Escrow: job.ZeroAddress, MetadataURI: "ipfs://1"})
	fc.Put(job.Job{ID: 2, Client: bob, Status: job.StatusHired, Budget: "2", Escrow: job.ZeroAddress, MetadataURI: "ipfs://2"})
	fc.Put(job.Job{ID: 3, Client: alice, Status: job.StatusOpen, Budget: "3", Escrow: job.ZeroAddress, MetadataURI: "ipfs://3"})

	_, err := ingest.NewSyncer(store, fc, ingest.Options{}, nil).SyncOnce(context.Background())
	require.NoError(t, err)

	facade := cache.NewFacade(store, cache.Policy{Enabled: enabled, MaxAge: time.Minute}, nil)
	d.Jobs = appjob.NewService(facade, fc, time.Second, nil)
	if d.Cache == nil {
		d.Cache = facade
	}
	return &env{router: newRouter(New(d)), chain: fc, facade: facade}
}

func get(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

// --------------------- GET /api/jobs ---------------------
func TestGetJobs_OpenFromCache(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	w := get(e.router, "/api/jobs?status=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body response.JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "cache", body.Source)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Jobs, 2)
	assert.Equal(t, uint64(1), body.Jobs[0].ID)
	assert.Equal(t, uint64(3), body.Jobs[1].ID)
}

func TestGetJobs_ClientFilter(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	w := get(e.router, "/api/jobs?client="+bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body response.JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, uint64(2), body.Jobs[0].ID)

	w = get(e.router, "/api/jobs?client="+alice+"&limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, uint64(3), body.Jobs[0].ID)
}

func TestGetJobs_SingleFromCache(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	w := get(e.router, "/api/jobs?jobId=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body response.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "cache", body.Source)
	require.NotNil(t, body.Job)
	assert.Equal(t, job.StatusHired, body.Job.Status)
	assert.Equal(t, 1, e.chain.Calls(2), "only the sync pass reads job 2")
}

func TestGetJobs_MissFallsBackToChain(t *testing.T) {
	e := setupEnv(t, true, Deps{})
	e.chain.Put(job.Job{ID: 99, Client: bob, Status: job.StatusOpen, Budget: "9", Escrow: job.ZeroAddress})

	w := get(e.router, "/api/jobs?jobId=99", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body response.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "blockchain", body.Source)
	assert.Equal(t, uint64(99), body.Job.ID)
}

func TestGetJobs_CacheDisabled(t *testing.T) {
	e := setupEnv(t, false, Deps{})

	w := get(e.router, "/api/jobs?status=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body response.JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "blockchain", body.Source)
	assert.Equal(t, 2, body.Count)
}

func TestGetJobs_NotFound(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	w := get(e.router, "/api/jobs?jobId=404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Job not found"}`, w.Body.String())
}

func TestGetJobs_ChainFailure(t *testing.T) {
	e := setupEnv(t, false, Deps{})
	e.chain.FailJob(1, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"))

	w := get(e.router, "/api/jobs?jobId=1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to fetch jobs")
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.Empty(t, w.Header().Get("Retry-After"))

	e.chain.ListErr = fmt.Errorf("jobCount: %w", chain.ErrTimeout)
	w = get(e.router, "/api/jobs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to fetch jobs")
	assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"))
}

func TestGetJobs_BadInput(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	for _, path := range []string{
		"/api/jobs?jobId=abc",
		"/api/jobs?jobId=-1",
		"/api/jobs?status=6",
		"/api/jobs?status=open",
		"/api/jobs?client=not-an-address",
		"/api/jobs?limit=0",
		"/api/jobs?offset=-3",
	} {
		w := get(e.router, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), `"success":false`, path)
	}
}

func TestGetJobs_UnknownStatusIsAccepted(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	w := get(e.router, "/api/jobs?status=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":[],"count":0,"source":"cache"}`, w.Body.String())
}

func TestGetJobs_ETag(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	w := get(e.router, "/api/jobs?status=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	w = get(e.router, "/api/jobs?status=1", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = get(e.router, "/api/jobs?status=2", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusOK, w.Code)
}

// --------------------- /api/cache ---------------------
func TestGetStats(t *testing.T) {
	e := setupEnv(t, true, Deps{})
	get(e.router, "/api/jobs?jobId=1", nil)

	w := get(e.router, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                   `json:"success"`
		Cache   map[string]interface{} `json:"cache"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, true, body.Cache["enabled"])
	assert.Equal(t, "sql", body.Cache["backend"])
	assert.Equal(t, float64(3), body.Cache["entryCount"])
	assert.Equal(t, float64(1), body.Cache["hits"])
	assert.Equal(t, float64(100), body.Cache["lastSyncBlock"])
	assert.Equal(t, true, body.Cache["lastSyncSuccess"])
}

func TestGetStats_Failure(t *testing.T) {
	e := setupEnv(t, true, Deps{Cache: failingCache{}})

	w := get(e.router, "/api/cache/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "deadline exceeded")
}

func TestTriggerSync(t *testing.T) {
	assert.Equal(t, http.StatusConflict, do(setupEnv(t, true, Deps{}).router, http.MethodPost, "/api/cache/sync").Code)
	assert.Equal(t, http.StatusConflict, do(setupEnv(t, true, Deps{Syncer: &stubSyncer{}}).router, http.MethodPost, "/api/cache/sync").Code)
	assert.Equal(t, http.StatusAccepted, do(setupEnv(t, true, Deps{Syncer: &stubSyncer{ok: true}}).router, http.MethodPost, "/api/cache/sync").Code)
}

func TestExportSnapshot(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, do(setupEnv(t, true, Deps{}).router, http.MethodPost, "/api/cache/snapshot").Code)

	w := do(setupEnv(t, true, Deps{Snapshots: &stubSnapshots{name: "snapshots/jobs-1.json"}}).router, http.MethodPost, "/api/cache/snapshot")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "snapshots/jobs-1.json")

	w = do(setupEnv(t, true, Deps{Snapshots: &stubSnapshots{err: errors.New("bucket missing")}}).router, http.MethodPost, "/api/cache/snapshot")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEvictJob(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	assert.Equal(t, http.StatusOK, do(e.router, http.MethodDelete, "/api/cache/jobs/2").Code)
	assert.Equal(t, http.StatusNotFound, do(e.router, http.MethodDelete, "/api/cache/jobs/2").Code)
	assert.Equal(t, http.StatusBadRequest, do(e.router, http.MethodDelete, "/api/cache/jobs/x").Code)

	// An evicted job is served from the chain.
	w := get(e.router, "/api/jobs?jobId=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"blockchain"`)

	// Listings fall back too until a pass restores the row.
	w = get(e.router, "/api/jobs?status=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"blockchain"`)
	assert.Contains(t, w.Body.String(), `"count":1`)

	failing := setupEnv(t, true, Deps{Cache: failingCache{}})
	assert.Equal(t, http.StatusInternalServerError, do(failing.router, http.MethodDelete, "/api/cache/jobs/1").Code)
}

func TestHealthz(t *testing.T) {
	w := get(setupEnv(t, true, Deps{}).router, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// --------------------- /ws/jobs ---------------------
func TestStreamJobs(t *testing.T) {
	old := pushInterval
	pushInterval = 20 * time.Millisecond
	t.Cleanup(func() { pushInterval = old })

	e := setupEnv(t, true, Deps{})
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/jobs?status=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var body response.JobListResponse
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, 2, body.Count)
		assert.Equal(t, "cache", body.Source)
	}
}

func TestStreamJobs_BadFilter(t *testing.T) {
	e := setupEnv(t, true, Deps{})

	for _, query := range []string{"status=9", "client=alice", "limit=0", "offset=-1"} {
		ws := get(e.router, "/ws/jobs?"+query, nil)
		rest := get(e.router, "/api/jobs?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, ws.Code, query)
		assert.Equal(t, rest.Code, ws.Code, query)
		assert.JSONEq(t, rest.Body.String(), ws.Body.String(), query)
	}
}
