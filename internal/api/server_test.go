package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/er-ddx-review-server/internal/cache"
	"github.com/er-ddx-review-server/internal/domain"
	"github.com/er-ddx-review-server/internal/ledger"
	"github.com/er-ddx-review-server/internal/service"
	"github.com/er-ddx-review-server/internal/session"
)

const uploadCSV = "file_name,Label,expected_diagnosis_applied,differential_diagnoses_applied,expected_diagnosis_base\n" +
	"a.txt,chest pain,Myocardial infarction,\"['Aortic dissection', 'Pulmonary embolism']\",Angina\n" +
	"b.txt,headache,Migraine,Tension headache,Migraine\n" +
	"c.txt,abdominal pain,Appendicitis,,\n"

type stubConfig struct {
	cfg *domain.Config
}

func (s *stubConfig) GetConfig() *domain.Config { return s.cfg }
func (s *stubConfig) GetServerConfig() *domain.ServerConfig { return &s.cfg.Server }
func (s *stubConfig) GetLoggingConfig() *domain.LoggingConfig { return &s.cfg.Logging }
func (s *stubConfig) DefaultPreference() domain.ModelVariant { return domain.ModelVariant(s.cfg.Derivation.Prefer) }
func (s *stubConfig) Reload() error { return nil }
func (s *stubConfig) Validate() error { return nil }
func (s *stubConfig) IsProduction() bool { return false }
func (s *stubConfig) IsDevelopment() bool { return true }

type testServer struct {
	*Server
	store *ledger.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &domain.Config{
		Upload:     domain.UploadConfig{MaxBytes: 1 << 20, RateLimit: 0},
		Derivation: domain.DerivationConfig{Prefer: "applied"},
		Logging:    domain.LoggingConfig{Level: "info", Format: "json"},
	}

	datasetCache, err := cache.NewDatasetCache(4)
	require.NoError(t, err)
	datasets, err := service.NewDatasetService(logger, datasetCache)
	require.NoError(t, err)
	store, err := ledger.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &testServer{
		Server: NewServer(&stubConfig{cfg: cfg}, logger, datasets, store, session.NewState()),
		store:  store,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) upload(t *testing.T, name, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dataset", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestNoDataset(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/dataset", "/api/v1/records", "/api/v1/records/0", "/api/v1/export/records.csv"} {
		w := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, domain.ErrNoDataset, errorCode(t, w), path)
	}
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload(t, "results.csv", uploadCSV, map[string]string{"prefer": "base"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.NotEmpty(t, body["id"])
	ds := body["dataset"].(map[string]interface{})
	assert.Equal(t, float64(3), ds["rows"])
	assert.Equal(t, "base", ds["prefer"])

	w = ts.do(t, http.MethodGet, "/api/v1/dataset", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body["id"], decode(t, w)["id"])
}

func TestUpload_Errors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload(t, "results.csv", uploadCSV, map[string]string{"prefer": "gpt"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrValidation, errorCode(t, w))

	w = ts.upload(t, "empty.csv", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, domain.ErrUploadParse, errorCode(t, w))

	w = ts.do(t, http.MethodPost, "/api/v1/dataset", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrInvalidInput, errorCode(t, w))
}

func TestRecords(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "results.csv", uploadCSV, nil).Code)

	w := ts.do(t, http.MethodGet, "/api/v1/records?q=migraine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]interface{})
	require.Len(t, records, 1)
	assert.Equal(t, "b.txt — headache", records[0].(map[string]interface{})["label"])

	w = ts.do(t, http.MethodGet, "/api/v1/records/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Record    domain.DerivedRecord     `json:"record"`
		Preferred domain.VariantDerivation `json:"preferred"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Myocardial infarction", got.Record.Applied.Expected.Name)
	assert.Equal(t, []string{"Aortic dissection", "Pulmonary embolism"}, got.Record.Applied.DifferentialNames())
	assert.Equal(t, "Angina", got.Record.Base.Expected.Name)
	assert.Empty(t, got.Record.Base.Differentials, "base never borrows applied data")
	assert.Equal(t, domain.VariantApplied, got.Preferred.Variant)

	w = ts.do(t, http.MethodGet, "/api/v1/records/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrRowNotFound, errorCode(t, w))

	w = ts.do(t, http.MethodGet, "/api/v1/records/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/records/1/quick", nil)
	require.Equal(t, http.StatusOK, w.Code)
	row := decode(t, w)["row"].(map[string]interface{})
	assert.Equal(t, "b.txt", row["fields"].(map[string]interface{})[domain.ColumnFileName])
}

func TestSessionNavigation(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "results.csv", uploadCSV, nil).Code)

	w := ts.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["row_id"])

	w = ts.do(t, http.MethodPost, "/api/v1/session/prev", nil)
	assert.Equal(t, false, decode(t, w)["moved"])

	w = ts.do(t, http.MethodPost, "/api/v1/session/next", nil)
	assert.Equal(t, float64(1), decode(t, w)["row_id"])

	w = ts.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, float64(1), decode(t, w)["row_id"])

	w = ts.do(t, http.MethodPost, "/api/v1/session/select", map[string]int{"row_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, float64(2), decode(t, w)["row_id"])

	w = ts.do(t, http.MethodPost, "/api/v1/session/select", map[string]int{"row_id": 7})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/session/toggle-ddx", map[string]string{"file_name": "a.txt"})
	assert.Equal(t, true, decode(t, w)["show"])
	w = ts.do(t, http.MethodPost, "/api/v1/session/toggle-ddx", map[string]string{"file_name": "a.txt"})
	assert.Equal(t, false, decode(t, w)["show"])
}

func TestSaveEvaluation_AutoAdvance(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "results.csv", uploadCSV, nil).Code)

	w := ts.do(t, http.MethodPut, "/api/v1/session/reviewer", map[string]interface{}{"reviewer": " dr kim "})
	require.Equal(t, http.StatusOK, w.Code)

	// select row 0 and stage a draft
	ts.do(t, http.MethodGet, "/api/v1/session", nil)
	w = ts.do(t, http.MethodPut, "/api/v1/session/draft", map[string]interface{}{
		"phys_ddx": "Unstable angina\nPericarditis, GERD",
		"scores":   map[string]int{"applied_quality": 5, "base_quality": 2},
		"comment":  "missed dissection risk",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/evaluations", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["updated"])
	assert.Equal(t, float64(1), body["next_row_id"])
	eval := body["evaluation"].(map[string]interface{})
	assert.Equal(t, float64(1), eval["order"])
	assert.Equal(t, "dr kim", eval["reviewer"])
	assert.Equal(t, []interface{}{"Unstable angina", "Pericarditis", "GERD"}, eval["phys_ddx"])
	assert.Equal(t, float64(5), eval["applied_quality"])
	assert.Equal(t, float64(3), eval["history_adequacy"])

	// auto-advance queued row 1
	w = ts.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, float64(1), decode(t, w)["row_id"])

	// saving row 0 again replaces it and keeps its order
	w = ts.do(t, http.MethodPost, "/api/v1/evaluations", map[string]interface{}{
		"row_id": 0,
		"draft":  map[string]interface{}{"phys_ddx": "Angina"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["updated"])
	assert.Equal(t, float64(1), body["evaluation"].(map[string]interface{})["order"])

	w = ts.do(t, http.MethodGet, "/api/v1/evaluations", nil)
	body = decode(t, w)
	assert.Equal(t, float64(1), body["count"])
	progress := body["progress"].(map[string]interface{})
	assert.Equal(t, float64(1), progress["done"])
	assert.Equal(t, float64(3), progress["total"])

	w = ts.do(t, http.MethodGet, "/api/v1/evaluations/unreviewed", nil)
	body = decode(t, w)
	assert.Equal(t, []interface{}{float64(1), float64(2)}, body["rows"])
	assert.Equal(t, float64(2), body["next_row_id"])
}

func TestSaveEvaluation_Errors(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "results.csv", uploadCSV, nil).Code)

	w := ts.do(t, http.MethodPost, "/api/v1/evaluations", map[string]interface{}{
		"row_id": 1,
		"draft":  map[string]interface{}{"scores": map[string]int{"history_adequacy": 9}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrValidation, errorCode(t, w))

	w = ts.do(t, http.MethodPost, "/api/v1/evaluations", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing selected")

	count, err := ts.store.Count(t.Context())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExports(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "results.csv", uploadCSV, nil).Code)
	ts.do(t, http.MethodPost, "/api/v1/evaluations", map[string]interface{}{"row_id": 2})

	w := ts.do(t, http.MethodGet, "/api/v1/export/records.csv?q=headache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "processed.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "\ufeff"))
	assert.Contains(t, w.Body.String(), "b.txt")
	assert.NotContains(t, w.Body.String(), "a.txt")

	w = ts.do(t, http.MethodGet, "/api/v1/export/evaluations.csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "\ufefforder,row_id,file_name"))
	assert.Contains(t, w.Body.String(), "c.txt")

	w = ts.do(t, http.MethodGet, "/api/v1/export/evaluations.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var export ledger.Export
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	assert.Equal(t, 1, export.Count)
	assert.Equal(t, 2, export.Evaluations[0].RowID)
}

func TestUploadResetsSessionButKeepsLedger(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "results.csv", uploadCSV, nil).Code)
	ts.do(t, http.MethodPost, "/api/v1/session/select", map[string]int{"row_id": 2})
	ts.do(t, http.MethodPost, "/api/v1/evaluations", map[string]interface{}{"row_id": 2})

	require.Equal(t, http.StatusCreated, ts.upload(t, "again.csv", uploadCSV, nil).Code)

	w := ts.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, float64(0), decode(t, w)["row_id"])

	w = ts.do(t, http.MethodGet, "/api/v1/evaluations", nil)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}
