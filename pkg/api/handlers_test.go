package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffbench/ingestoor/pkg/config"
	"github.com/diffbench/ingestoor/pkg/pipeline"
	"github.com/diffbench/ingestoor/pkg/store"
)

func setupTestServer(t *testing.T) (*server, http.Handler) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Listen: ":0"},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			SQLite: config.SQLiteConfig{Path: ":memory:"},
		},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewStore(log, &cfg.Database)
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() { _ = st.Stop() })

	srv := &server{
		log:      log,
		cfg:      cfg,
		store:    st,
		pipeline: pipeline.New(log, st),
	}

	return srv, srv.buildRouter()
}

func doRequest(
	t *testing.T, router http.Handler, method, path, body string,
) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestHandleHealth(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHandleImportRuns(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/admin/runs/import",
		`[{"user": "alice", "model_name": "sd-v1-5"}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pipeline.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Imported)
	assert.Zero(t, resp.Rejected)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/admin/runs/count", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var count map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, int64(1), count["count"])
}

func TestHandleImportRuns_Malformed(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/admin/runs/import",
		`{"not": "a list"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcessStage(t *testing.T) {
	_, router := setupTestServer(t)

	doRequest(t, router, http.MethodPost, "/api/v1/admin/runs/import",
		`[{"info": "app: test url: https://example.com"}]`)

	rec := doRequest(
		t, router, http.MethodPost, "/api/v1/admin/process/app-details", "",
	)
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.StageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.RowsInserted)
}

func TestHandleProcessStage_Unknown(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(
		t, router, http.MethodPost, "/api/v1/admin/process/bogus", "",
	)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNormalizeAppNames_InvalidMapping(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(
		t, router, http.MethodPost, "/api/v1/admin/app-names/normalize",
		`{"automatic1111": "only one"}`,
	)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateModelMapsAndMap(t *testing.T) {
	_, router := setupTestServer(t)

	doRequest(t, router, http.MethodPost, "/api/v1/admin/runs/import",
		`[{"model_name": "sd-v1-5"}]`)
	doRequest(t, router, http.MethodPost, "/api/v1/admin/process/run-details", "")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/admin/model-maps",
		`[{"model_name": "sd-v1-5", "base_model": "SD 1.5"}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/admin/models/map", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.ModelMapResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.NotFound)
}

func TestHandleCreateModelMaps_MissingName(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/admin/model-maps",
		`[{"base_model": "SD 1.5"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateGPUDictionary(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/admin/gpu-bases",
		`{"name": "RTX 3080", "brand": "nvidia"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var created map[string]uint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created["id"])

	rec = doRequest(t, router, http.MethodPost, "/api/v1/admin/gpu-maps",
		`{"gpu_name": "NVIDIA GeForce RTX 3080", "base_gpu_id": 1}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/admin/gpu-maps",
		`{"gpu_name": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeAppDetails(t *testing.T) {
	_, router := setupTestServer(t)

	doRequest(t, router, http.MethodPost, "/api/v1/admin/runs/import",
		`[{"info": "app: test"}, {}]`)
	doRequest(t, router, http.MethodPost, "/api/v1/admin/process/app-details", "")

	rec := doRequest(
		t, router, http.MethodGet, "/api/v1/admin/app-details/analysis", "",
	)
	require.Equal(t, http.StatusOK, rec.Code)

	var analysis pipeline.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, int64(2), analysis.TotalRows)
	assert.Len(t, analysis.Buckets, 2)
}
