package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/publish"
	"git.home.luguber.info/inful/docpublish/internal/server/responses"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

type fakePublisher struct {
	got []upload.Item
	res *publish.Result
	err error
}

func (f *fakePublisher) Publish(_ context.Context, items []upload.Item) (*publish.Result, error) {
	f.got = items
	return f.res, f.err
}

type fakeHistory struct {
	entries []history.Entry
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	f.limit = limit
	return f.entries, nil
}

type activeCount int

func (a activeCount) Active() int { return int(a) }

func testGate() *upload.Gate {
	return upload.NewGate(config.UploadConfig{AllowedExtensions: []string{"pdf"}, MaxUploadBytes: 1 << 20})
}

func multipartRequest(t *testing.T, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		w, err := mw.CreateFormFile(upload.FileField, name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.HTTPErrorResponse {
	t.Helper()
	var body errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleUploadSuccess(t *testing.T) {
	pub := &fakePublisher{res: &publish.Result{
		TxID:   "tx-1",
		Commit: "0123456789abcdef",
		Items: []publish.Published{
			{Title: "Kaarah 5", StoredName: "Kaarah_5.pdf", Path: "divrei_torah/kaarah/Kaarah_5.pdf"},
		},
	}}
	h := NewUploadHandlers(pub, testGate())

	rec := httptest.NewRecorder()
	h.HandleUpload(rec, multipartRequest(t,
		map[string]string{"Kaarah_5.pdf": "%PDF-1"},
		map[string]string{"title_1": "Kaarah 5"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Uploaded 1 file(s) in commit 01234567\nKaarah_5.pdf: \"Kaarah 5\" -> divrei_torah/kaarah/Kaarah_5.pdf\n", rec.Body.String())
	require.Len(t, pub.got, 1)
	assert.Equal(t, "Kaarah 5", pub.got[0].Title)
	assert.Equal(t, []byte("%PDF-1"), pub.got[0].Content)
}

func TestHandleUploadMapsPublishErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"collision", errors.NewError(errors.CategoryAlreadyExists, "exists").WithCode("name_collision").Build(), http.StatusConflict, "name_collision"},
		{"malformed index", errors.NewError(errors.CategoryIndex, "bad index").WithCode("malformed_index").Build(), http.StatusUnprocessableEntity, "malformed_index"},
		{"remote unavailable", errors.NetworkError("down").WithCode("remote_unavailable").Retryable().Build(), http.StatusBadGateway, "remote_unavailable"},
		{"push rejected", errors.GitError("rejected").WithCode("push_rejected").Retryable().Build(), http.StatusConflict, "push_rejected"},
		{"empty batch", upload.EmptyBatchError(), http.StatusBadRequest, "empty_batch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewUploadHandlers(&fakePublisher{err: tc.err}, testGate())
			rec := httptest.NewRecorder()
			h.HandleUpload(rec, multipartRequest(t,
				map[string]string{"a.pdf": "x"},
				map[string]string{"title_1": "A"}))

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Code)
		})
	}
}

func TestHandleUploadRejectsBadRequests(t *testing.T) {
	pub := &fakePublisher{}
	h := NewUploadHandlers(pub, testGate())

	t.Run("method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleUpload(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("hello"))
		req.Header.Set("Content-Type", "text/plain")
		h.HandleUpload(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, upload.CodeInvalidRequest, decodeError(t, rec).Code)
	})

	t.Run("orphan title", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleUpload(rec, multipartRequest(t,
			map[string]string{"a.pdf": "x"},
			map[string]string{"title_1": "A", "title_2": "B"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, upload.CodeInvalidMetadata, decodeError(t, rec).Code)
	})

	assert.Nil(t, pub.got, "publisher must not run for rejected requests")
}

func TestHandleHealthCheck(t *testing.T) {
	h := NewMonitoringHandlers(activeCount(2), testGate(), nil)
	rec := httptest.NewRecorder()
	h.HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body responses.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 2, body.ActiveStaging)
	assert.Equal(t, []string{"pdf"}, body.AllowedExtensions)
	assert.Equal(t, int64(1<<20), body.MaxUploadBytes)
}

func TestHandleHistory(t *testing.T) {
	src := &fakeHistory{entries: []history.Entry{
		{ID: 2, TxID: "tx-2", Status: history.StatusFailed, ErrorCode: "push_rejected", StartedAt: time.Unix(20, 0).UTC()},
		{ID: 1, TxID: "tx-1", Status: history.StatusPublished, Commit: "abc", StartedAt: time.Unix(10, 0).UTC()},
	}}
	h := NewMonitoringHandlers(nil, testGate(), src)

	rec := httptest.NewRecorder()
	h.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/history?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, src.limit)
	var body responses.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "tx-2", body.Entries[0].TxID)
}

func TestHandleHistoryErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := NewMonitoringHandlers(nil, testGate(), nil)
		rec := httptest.NewRecorder()
		h.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "history_disabled", decodeError(t, rec).Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		h := NewMonitoringHandlers(nil, testGate(), &fakeHistory{})
		for _, q := range []string{"0", "-1", "abc", "501"} {
			rec := httptest.NewRecorder()
			h.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/history?limit="+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("empty ledger", func(t *testing.T) {
		h := NewMonitoringHandlers(nil, testGate(), &fakeHistory{})
		rec := httptest.NewRecorder()
		h.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"entries":[]`)
	})
}
