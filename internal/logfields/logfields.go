package logfields

import (
	"log/slog"
	"net/url"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTxID       = "tx_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyCategory   = "category"
	KeyTitle      = "title"
	KeyFile       = "file"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyItems      = "items"
	KeyAttempt    = "attempt"
	KeyCode       = "code"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyRequestID  = "request_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func TxID(id string) slog.Attr         { return slog.String(KeyTxID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Category(c string) slog.Attr      { return slog.String(KeyCategory, c) }
func Title(t string) slog.Attr         { return slog.String(KeyTitle, t) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Branch(b string) slog.Attr        { return slog.String(KeyBranch, b) }
func Commit(h string) slog.Attr        { return slog.String(KeyCommit, h) }
func Items(n int) slog.Attr            { return slog.Int(KeyItems, n) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func Code(c string) slog.Attr          { return slog.String(KeyCode, c) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }

// URL logs a remote URL with any embedded credentials removed.
func URL(raw string) slog.Attr { return slog.String(KeyURL, Redact(raw)) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Redact strips userinfo from URL-shaped strings. Non-URL input (scp-style remotes,
// local paths) is returned unchanged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
