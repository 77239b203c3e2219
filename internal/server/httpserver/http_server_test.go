package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/category"
	"git.home.luguber.info/inful/docpublish/internal/config"
	derrors "git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/publish"
	"git.home.luguber.info/inful/docpublish/internal/server/middleware"
	"git.home.luguber.info/inful/docpublish/internal/server/responses"
	"git.home.luguber.info/inful/docpublish/internal/staging"
	helpers "git.home.luguber.info/inful/docpublish/internal/testutil/testutils"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

const emptyIndex = `<html><body>
<ul id="file-list">
</ul>
</body></html>`

type stack struct {
	remote *helpers.Remote
	ledger *history.Ledger
	server *Server
}

func newStack(t *testing.T) *stack {
	t.Helper()
	remote := helpers.NewBareRemote(t, map[string]string{
		category.Kaarah.IndexPath():            emptyIndex,
		category.MaamareiMordechai.IndexPath(): emptyIndex,
	})
	client, err := git.NewClient(config.RemoteConfig{URL: remote.Path}, config.GitConfig{})
	require.NoError(t, err)

	ledger, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	reg := prometheus.NewRegistry()
	areas := staging.NewManager(t.TempDir(), client)
	gate := upload.NewGate(config.UploadConfig{AllowedExtensions: []string{"pdf"}, MaxUploadBytes: 1 << 20})
	coord := publish.NewCoordinator(areas, gate,
		publish.WithLock(publish.NewLock(time.Minute)),
		publish.WithRecorder(metrics.NewPrometheusRecorder(reg)),
		publish.WithObserver(ledger))

	srv, err := New(config.ServerConfig{Address: "127.0.0.1:0"}, Options{
		Publisher:         coord,
		Gate:              gate,
		Staging:           areas,
		History:           ledger,
		PrometheusHandler: metrics.HTTPHandler(reg),
	})
	require.NoError(t, err)
	return &stack{remote: remote, ledger: ledger, server: srv}
}

type filePart struct{ name, content string }

func uploadBody(t *testing.T, files []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		w, err := mw.CreateFormFile(upload.FileField, f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestNewRequiresPublisherAndGate(t *testing.T) {
	_, err := New(config.ServerConfig{}, Options{})
	require.Error(t, err)
}

func TestUploadEndToEnd(t *testing.T) {
	s := newStack(t)
	h := s.server.Handler()

	body, ctype := uploadBody(t,
		[]filePart{{"Kaarah_5.pdf", "%PDF-k5"}, {"Essay.pdf", "%PDF-essay"}},
		map[string]string{"title_1": "Kaarah 5", "title_2": "Essay"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, rec.Body.String(), "Uploaded 2 file(s)")
	assert.Contains(t, rec.Body.String(), `Kaarah_5.pdf: "Kaarah 5" -> divrei_torah/kaarah/Kaarah_5.pdf`)

	content, ok := s.remote.ReadFile("divrei_torah/kaarah/Kaarah_5.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-k5", content)
	index, ok := s.remote.ReadFile(category.MaamareiMordechai.IndexPath())
	require.True(t, ok)
	assert.Contains(t, index, "Essay.pdf")
	assert.Equal(t, "Added Essay to Maamarei Mordechai; Added Kaarah 5 to Kaarah", s.remote.HeadCommit().Message)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var hist responses.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Equal(t, 1, hist.Count)
	assert.Equal(t, history.StatusPublished, hist.Entries[0].Status)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docpublish_publish_outcomes_total")
}

func TestUploadFailureLeavesRemoteUntouched(t *testing.T) {
	s := newStack(t)
	h := s.server.Handler()
	before := s.remote.Head()

	body, ctype := uploadBody(t,
		[]filePart{{"a.pdf", "x"}, {"notes.txt", "y"}},
		map[string]string{"title_1": "A", "title_2": "Notes"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp derrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, upload.CodeUnsupportedFileType, resp.Code)
	assert.InDelta(t, 2, resp.Details["item"], 0)
	assert.Equal(t, before, s.remote.Head())
}

func TestStartServesOnBoundAddress(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.server.Start(ctx))
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		assert.NoError(t, s.server.Stop(stopCtx))
	})
	require.Error(t, s.server.Start(ctx), "second start must fail")

	resp, err := http.Get("http://" + s.server.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health responses.HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Zero(t, health.ActiveStaging)
}

func TestStartFailsWhenAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	srv, err := New(config.ServerConfig{Address: ln.Addr().String()}, Options{
		Publisher: publish.NewCoordinator(nil, upload.NewGate(config.UploadConfig{})),
		Gate:      upload.NewGate(config.UploadConfig{}),
	})
	require.NoError(t, err)
	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http startup failed")
	assert.NoError(t, srv.Stop(context.Background()))
}

type slowPublisher struct {
	delay     time.Duration
	committed chan struct{}
}

func (p *slowPublisher) Publish(_ context.Context, items []upload.Item) (*publish.Result, error) {
	time.Sleep(p.delay)
	close(p.committed)
	return &publish.Result{
		TxID:   "tx-slow",
		Commit: "abc123",
		Items: []publish.Published{
			{Title: items[0].Title, StoredName: items[0].StoredName(), Path: "divrei_torah/kaarah/" + items[0].StoredName()},
		},
	}, nil
}

func TestUploadOutlastingWriteTimeoutStillAnswers(t *testing.T) {
	pub := &slowPublisher{delay: 400 * time.Millisecond, committed: make(chan struct{})}
	gate := upload.NewGate(config.UploadConfig{AllowedExtensions: []string{"pdf"}, MaxUploadBytes: 1 << 20})
	srv, err := New(config.ServerConfig{Address: "127.0.0.1:0", WriteTimeout: "200ms"}, Options{
		Publisher: pub,
		Gate:      gate,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(stopCtx))
	})

	body, ctype := uploadBody(t, []filePart{{"Kaarah_9.pdf", "%PDF-9"}}, map[string]string{"title_1": "Kaarah 9"})
	resp, err := http.Post("http://"+srv.Addr().String()+"/upload", ctype, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	<-pub.committed
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Kaarah_9.pdf")
}
