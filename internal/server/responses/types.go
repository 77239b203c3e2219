// Package responses defines API response types used by docpublish HTTP handlers.
package responses

import (
	"time"

	"git.home.luguber.info/inful/docpublish/internal/history"
)

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	Version           string    `json:"version"`
	Uptime            float64   `json:"uptime"`
	ActiveStaging     int       `json:"active_staging"`
	AllowedExtensions []string  `json:"allowed_extensions"`
	MaxUploadBytes    int64     `json:"max_upload_bytes"`
}

// HistoryResponse lists recent publish transactions, newest first.
type HistoryResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Count     int             `json:"count"`
	Entries   []history.Entry `json:"entries"`
}
