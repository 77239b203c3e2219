// Package history keeps a ledger of publish transactions in SQLite so
// operators can see what was published, when and with which commit.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/publish"
)

// Status of a recorded transaction.
const (
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// Entry is one ledger row.
type Entry struct {
	ID         int64               `json:"id"`
	TxID       string              `json:"tx_id"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMS int64               `json:"duration_ms"`
	Status     string              `json:"status"`
	Commit     string              `json:"commit,omitempty"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Error      string              `json:"error,omitempty"`
	Items      []publish.ItemInfo  `json:"items"`
	Published  []publish.Published `json:"published,omitempty"`
}

// Ledger persists Entries. It implements publish.Observer.
type Ledger struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the ledger at path. Use ":memory:" for an
// in-memory ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS publishes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tx_id TEXT NOT NULL UNIQUE,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		commit_hash TEXT,
		error_code TEXT,
		error TEXT,
		items TEXT NOT NULL,
		published TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_publishes_started_at ON publishes(started_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Record appends e.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := json.Marshal(e.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	var published []byte
	if len(e.Published) > 0 {
		if published, err = json.Marshal(e.Published); err != nil {
			return fmt.Errorf("marshal published: %w", err)
		}
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO publishes (tx_id, started_at, duration_ms, status, commit_hash, error_code, error, items, published)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TxID, e.StartedAt.UnixMilli(), e.DurationMS, e.Status,
		nullable(e.Commit), nullable(e.ErrorCode), nullable(e.Error), string(items), nullable(string(published)),
	)
	if err != nil {
		return fmt.Errorf("insert publish: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, tx_id, started_at, duration_ms, status, commit_hash, error_code, error, items, published
		 FROM publishes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query publishes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                            Entry
			started                      int64
			commit, code, msg, published sql.NullString
			items                        string
		)
		if err := rows.Scan(&e.ID, &e.TxID, &started, &e.DurationMS, &e.Status, &commit, &code, &msg, &items, &published); err != nil {
			return nil, fmt.Errorf("scan publish: %w", err)
		}
		e.StartedAt = time.UnixMilli(started).UTC()
		e.Commit, e.ErrorCode, e.Error = commit.String, code.String, msg.String
		if err := json.Unmarshal([]byte(items), &e.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		if published.Valid && published.String != "" {
			if err := json.Unmarshal([]byte(published.String), &e.Published); err != nil {
				return nil, fmt.Errorf("unmarshal published: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Observe records a transaction outcome. Failures to write are logged only.
func (l *Ledger) Observe(ctx context.Context, o publish.Outcome) {
	e := Entry{
		TxID:       o.TxID,
		StartedAt:  o.Started,
		DurationMS: o.Duration.Milliseconds(),
		Items:      o.Items,
	}
	if o.Err != nil {
		e.Status = StatusFailed
		e.Error = o.Err.Error()
		if ce, ok := errors.AsClassified(o.Err); ok {
			e.ErrorCode = ce.Code()
		}
	} else if o.Result != nil {
		e.Status = StatusPublished
		e.Commit = o.Result.Commit
		e.Published = o.Result.Items
	}
	// the request context may already be cancelled
	if err := l.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.Error("Failed to record publish", logfields.TxID(o.TxID), logfields.Error(err))
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
