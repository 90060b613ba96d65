package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/albumpdf/internal/config"
	"github.com/handiism/albumpdf/internal/download"
	"github.com/handiism/albumpdf/internal/model"
	"github.com/handiism/albumpdf/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService returns canned results.
type fakeService struct {
	doc      *model.Document
	err      error
	records  map[string]*store.JobRecord
	files    map[string]string
	lastID   string
	lastOpts download.ProduceOptions
	panics   bool
}

func (f *fakeService) Produce(ctx context.Context, albumID string, opts download.ProduceOptions) (*model.Document, error) {
	if f.panics {
		panic("boom")
	}
	f.lastID = albumID
	f.lastOpts = opts
	return f.doc, f.err
}

func (f *fakeService) Status(albumID string) (*store.JobRecord, error) {
	if rec, ok := f.records[albumID]; ok {
		return rec, nil
	}
	return nil, store.ErrJobNotFound
}

func (f *fakeService) Jobs() ([]store.JobRecord, error) {
	records := make([]store.JobRecord, 0, len(f.records))
	for _, rec := range f.records {
		records = append(records, *rec)
	}
	return records, nil
}

func (f *fakeService) DocumentFile(fileName string) (string, bool) {
	path, ok := f.files[fileName]
	return path, ok
}

func newTestServer(t *testing.T, svc Service, mutate ...func(*config.Settings)) *Server {
	t.Helper()
	settings := config.DefaultSettings()
	settings.Server.Debug = true
	for _, fn := range mutate {
		fn(settings)
	}
	return New(settings, svc, prometheus.NewRegistry())
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestGenerate_Success(t *testing.T) {
	svc := &fakeService{doc: &model.Document{AlbumID: "12345", Path: "temp/img/12345.pdf", FileName: "12345.pdf", Pages: 3}}
	s := newTestServer(t, svc)

	rec, body := doJSON(t, s, http.MethodPost, "/generate", `{"album_id":"12345","retry_count":5,"force":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "PDF generated", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "temp/img/12345.pdf", data["document_path"])
	assert.Equal(t, "http://example.com/download/12345.pdf", data["download_url"])
	assert.Equal(t, 3.0, data["pages"])
	assert.Equal(t, false, data["cached"])

	assert.Equal(t, "12345", svc.lastID)
	assert.Equal(t, download.ProduceOptions{Force: true, MaxAttempts: 5}, svc.lastOpts)
}

func TestGenerate_PublicURLAndCached(t *testing.T) {
	svc := &fakeService{doc: &model.Document{AlbumID: "1", Path: "x/1.pdf", FileName: "1.pdf", Cached: true}}
	s := newTestServer(t, svc, func(s *config.Settings) {
		s.Server.PublicURL = "https://files.example.org/"
	})

	rec, body := doJSON(t, s, http.MethodPost, "/download", `{"id":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PDF already exists", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "https://files.example.org/download/1.pdf", data["download_url"])
	assert.Equal(t, true, data["cached"])
	assert.Equal(t, download.ProduceOptions{}, svc.lastOpts)
}

func TestGenerate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"empty body", "/generate", ``},
		{"malformed", "/generate", `{"album_id":`},
		{"missing id", "/generate", `{}`},
		{"unsafe id", "/generate", `{"album_id":"../../etc"}`},
		{"zero retries", "/generate", `{"album_id":"1","retry_count":0}`},
		{"retries above cap", "/generate", `{"album_id":"1","retry_count":11}`},
		{"alias missing id", "/download", `{"album_id":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			s := newTestServer(t, svc)
			rec, body := doJSON(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, float64(codeBadRequest), body["error_code"])
			assert.Empty(t, svc.lastID, "service must not be called")
		})
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		solution   bool
	}{
		{"access denied", model.NewError(model.KindAccessDenied, "forbidden").WithHint("use a proxy"), http.StatusForbidden, 1001, true},
		{"not found", model.NewError(model.KindNotFound, "no album"), http.StatusNotFound, 1002, false},
		{"rate limited", model.NewError(model.KindRateLimited, "slow down").WithHint("wait"), http.StatusTooManyRequests, 1003, true},
		{"protocol", model.NewError(model.KindProtocolError, "bad json"), http.StatusInternalServerError, 1004, false},
		{"empty album", model.NewError(model.KindEmptyAlbum, "no pages"), http.StatusInternalServerError, 1005, false},
		{"unreadable", model.NewError(model.KindSourceUnreadable, "corrupt"), http.StatusInternalServerError, 1006, false},
		{"unclassified", model.NewError(model.KindUnclassified, "gave up after 3 attempts"), http.StatusInternalServerError, 9999, false},
		{"plain error", fmt.Errorf("disk full"), http.StatusInternalServerError, 9999, false},
		{"cancelled", context.Canceled, http.StatusInternalServerError, 9999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeService{err: tt.err})
			rec, body := doJSON(t, s, http.MethodPost, "/generate", `{"album_id":"42"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, float64(tt.wantCode), body["error_code"])
			assert.NotEmpty(t, body["message"])
			_, hasSolution := body["solution"]
			assert.Equal(t, tt.solution, hasSolution)
		})
	}
}

func TestDownloadFile(t *testing.T) {
	path := t.TempDir() + "/12345.pdf"
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 test"), 0644))
	s := newTestServer(t, &fakeService{files: map[string]string{"12345.pdf": path}})

	req := httptest.NewRequest(http.MethodGet, "/download/12345.pdf", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "12345.pdf")

	rec2, body := doJSON(t, s, http.MethodGet, "/download/other.pdf", "")
	assert.Equal(t, http.StatusNotFound, rec2.Code)
	assert.Equal(t, float64(codeNotFound), body["error_code"])
}

func TestStatus(t *testing.T) {
	svc := &fakeService{records: map[string]*store.JobRecord{
		"7": {AlbumID: "7", Status: store.StatusFailed, ErrorKind: "access_denied"},
	}}
	s := newTestServer(t, svc)

	rec, body := doJSON(t, s, http.MethodGet, "/status/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "access_denied", data["error_kind"])

	rec, _ = doJSON(t, s, http.MethodGet, "/status/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, s, http.MethodGet, "/status/a.b", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobs(t *testing.T) {
	s := newTestServer(t, &fakeService{})
	rec, body := doJSON(t, s, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0 jobs", body["message"])
	assert.Empty(t, body["data"])

	svc := &fakeService{records: map[string]*store.JobRecord{
		"7": {AlbumID: "7", Status: store.StatusCompleted, PagesTotal: 3, PagesDone: 3},
	}}
	s = newTestServer(t, svc)
	rec, body = doJSON(t, s, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 jobs", body["message"])
	jobs := body["data"].([]any)
	require.Len(t, jobs, 1)
	job := jobs[0].(map[string]any)
	assert.Equal(t, "7", job["album_id"])
	assert.Equal(t, "completed", job["status"])
}

func TestHealthMetricsAndRecovery(t *testing.T) {
	s := newTestServer(t, &fakeService{panics: true})

	rec, body := doJSON(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.Handler().ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)

	rec, body = doJSON(t, s, http.MethodPost, "/generate", `{"album_id":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, float64(codeUnclassified), body["error_code"])

	rec, _ = doJSON(t, s, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &fakeService{}, func(s *config.Settings) {
		s.Server.EnableCORS = true
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://app.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// TestEndToEnd drives the real Manager against a fake remote host.
func TestEndToEnd(t *testing.T) {
	pageBytes := func(w int) []byte {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, 10)), nil))
		return buf.Bytes()
	}
	var denied atomic.Bool
	denied.Store(true)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/album/12345":
			fmt.Fprint(w, `{"id":"12345","images":[{"page":1,"url":"/p/1.jpg"},{"page":2,"url":"/p/2.jpg"},{"page":3,"url":"/p/3.jpg"}]}`)
		case r.URL.Path == "/p/2.jpg" && denied.Load():
			w.WriteHeader(http.StatusForbidden)
		case strings.HasPrefix(r.URL.Path, "/p/"):
			w.Write(pageBytes(10 + len(r.URL.Path)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer remote.Close()

	settings := config.DefaultSettings()
	settings.BaseDir = t.TempDir()
	settings.DomainList = []string{remote.URL}
	settings.RetryInitialBackoff = time.Millisecond
	settings.RetryMaxBackoff = time.Millisecond
	settings.MaxConcurrentPages = 1

	manager, err := download.NewManager(settings, download.Options{})
	require.NoError(t, err)
	s := New(settings, manager, prometheus.NewRegistry())

	rec, body := doJSON(t, s, http.MethodPost, "/generate", `{"album_id":"12345"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, float64(codeAccessDenied), body["error_code"])
	assert.NotEmpty(t, body["solution"])

	rec, body = doJSON(t, s, http.MethodGet, "/status/12345", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", body["message"])

	denied.Store(false)
	rec, body = doJSON(t, s, http.MethodPost, "/generate", `{"album_id":"12345"}`)
	require.Equal(t, http.StatusOK, rec.Code, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, 3.0, data["pages"])
	assert.Equal(t, "http://example.com/download/12345.pdf", data["download_url"])

	rec, body = doJSON(t, s, http.MethodGet, "/status/12345", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["message"])

	want, err := os.ReadFile(manager.Local().DocumentPath("12345"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/download/12345.pdf", nil)
	drec := httptest.NewRecorder()
	s.Handler().ServeHTTP(drec, req)
	require.Equal(t, http.StatusOK, drec.Code)
	assert.Equal(t, want, drec.Body.Bytes())
	assert.True(t, bytes.HasPrefix(drec.Body.Bytes(), []byte("%PDF-")))
}
