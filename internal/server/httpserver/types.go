package httpserver

import (
	"net/http"

	"git.home.luguber.info/inful/docpublish/internal/server/handlers"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// Options carries the runtime collaborators the HTTP surface is wired to.
type Options struct {
	Publisher handlers.Publisher
	Gate      *upload.Gate

	// Optional: staging statistics reported by /healthz.
	Staging handlers.StagingStats

	// Optional: publish ledger served by /history.
	History handlers.HistorySource

	// Optional: Prometheus exposition served at /metrics.
	PrometheusHandler http.Handler
}
