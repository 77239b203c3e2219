package handlers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/publish"
	"git.home.luguber.info/inful/docpublish/internal/server/middleware"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// responseWriteTimeout bounds writing the reply once a publish has finished.
const responseWriteTimeout = 30 * time.Second

// Publisher runs one publish transaction for a batch.
type Publisher interface {
	Publish(ctx context.Context, items []upload.Item) (*publish.Result, error)
}

// UploadHandlers serves the document upload endpoint.
type UploadHandlers struct {
	publisher    Publisher
	gate         *upload.Gate
	errorAdapter *errors.HTTPErrorAdapter
}

// NewUploadHandlers creates upload handlers publishing through p and accepting
// files under the policy currently held by gate.
func NewUploadHandlers(p Publisher, gate *upload.Gate) *UploadHandlers {
	return &UploadHandlers{
		publisher:    p,
		gate:         gate,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleUpload parses the multipart batch and publishes it as a single
// transaction. Success answers 200 with a plain-text summary; any failure
// answers with the first error as JSON.
func (h *UploadHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.errorAdapter, w, r, http.MethodPost) {
		return
	}

	items, err := upload.ParseRequest(r, h.gate.Policy())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	// A publish may outlive server.write_timeout (lock wait, clone, push).
	// Lift the connection write deadline while it runs so a committed batch
	// is always reported to the caller, then bound the reply itself.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
		slog.Warn("failed to lift write deadline", logfields.Error(err))
	}
	res, err := h.publisher.Publish(r.Context(), items)
	_ = rc.SetWriteDeadline(time.Now().Add(responseWriteTimeout))
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	slog.Info("Upload published",
		logfields.RequestID(middleware.RequestID(r.Context())),
		logfields.TxID(res.TxID),
		logfields.Commit(res.Commit),
		logfields.Items(len(res.Items)))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(res.Summary())); err != nil {
		slog.Error("failed writing upload response body", logfields.Error(err))
	}
}
