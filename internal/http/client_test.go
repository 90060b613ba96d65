package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ioutils "github.com/handiism/albumpdf/internal/io"
	"github.com/handiism/albumpdf/internal/model"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fastPolicy(3)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "albumpdf-test"
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		kind     model.ErrorKind
		wantHint bool
	}{
		{http.StatusForbidden, model.KindAccessDenied, true},
		{http.StatusNotFound, model.KindNotFound, false},
		{http.StatusTooManyRequests, model.KindRateLimited, true},
		{http.StatusInternalServerError, model.KindUnclassified, false},
		{http.StatusBadGateway, model.KindUnclassified, false},
		{http.StatusGone, model.KindUnclassified, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newTestClient(t, Options{})
			_, err := c.Fetch(context.Background(), srv.URL+"/x.jpg")

			require.Error(t, err)
			e := model.AsError(err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.wantHint, e.Hint != "")
			assert.Equal(t, int32(1), calls.Load(), "status errors must not be retried")
		})
	}
}

func TestClient_RetriesTimeouts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Options{Timeout: 50 * time.Millisecond})
	_, err := c.Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Equal(t, model.KindUnclassified, model.KindOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

type failingTransport struct {
	calls atomic.Int32
}

func (f *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls.Add(1)
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestClient_RetriesConnectionFailures(t *testing.T) {
	for _, attempts := range []int{1, 2, 4} {
		t.Run(fmt.Sprint(attempts), func(t *testing.T) {
			ft := &failingTransport{}
			c := newTestClient(t, Options{Transport: ft, Retry: fastPolicy(attempts)})

			_, err := c.Fetch(context.Background(), "http://unreachable.invalid/1.jpg")

			require.Error(t, err)
			assert.Equal(t, int32(attempts), ft.calls.Load())
			assert.NotEqual(t, model.KindTransient, model.KindOf(err))
		})
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{UserAgent: "Mozilla/5.0 test"}).WithReferer("https://host.example/")
	resp, err := c.Do(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "Mozilla/5.0 test", gotUA)
	assert.Equal(t, "https://host.example/", gotReferer)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestClient_FetchString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>album</html>")
	}))
	defer srv.Close()

	body, err := newTestClient(t, Options{}).FetchString(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>album</html>", body)
}

func TestClient_FetchInto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "page-bytes")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "12345", "1.jpg")
	c := newTestClient(t, Options{})

	n, err := c.FetchInto(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len("page-bytes")), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "page-bytes", string(data))
}

func TestClient_FetchIntoTruncatedBodyIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Length", "100")
			w.Write([]byte("short"))
			return
		}
		fmt.Fprint(w, "complete-page")
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "1.jpg")
	c := newTestClient(t, Options{})

	_, err := c.FetchInto(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "complete-page", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, ioutils.IsTempFile(e.Name()), "leftover temp file %s", e.Name())
	}
}

func TestClient_FetchIntoFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "1.jpg")
	c := newTestClient(t, Options{})

	_, err := c.FetchInto(context.Background(), srv.URL, dest)
	require.ErrorIs(t, err, model.ErrAccessDenied)
	assert.False(t, ioutils.FileExists(dest))
}

func TestClient_CancelledContextIsNotRetried(t *testing.T) {
	ft := &failingTransport{}
	c := newTestClient(t, Options{Transport: ft})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "http://unreachable.invalid/")
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, ft.calls.Load(), int32(1))
}

func TestNewClient_InvalidProxy(t *testing.T) {
	_, err := NewClient(Options{ProxyURL: "://bad"})
	assert.Error(t, err)
}
