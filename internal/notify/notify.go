// Package notify announces successful publishes on NATS so downstream
// consumers (site rebuilds, mailing lists) can react without polling the
// repository.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/publish"
)

// EventPublished is the type of every event sent by this package.
const EventPublished = "published"

// Event is the JSON payload published after a push.
type Event struct {
	Type        string              `json:"type"`
	TxID        string              `json:"tx_id"`
	Commit      string              `json:"commit"`
	Branch      string              `json:"branch"`
	Message     string              `json:"message"`
	PublishedAt time.Time           `json:"published_at"`
	Items       []publish.Published `json:"items"`
}

// Sender delivers a payload to a subject.
type Sender interface {
	Publish(subject string, data []byte) error
}

// Notifier turns successful outcomes into Events. It implements
// publish.Observer and ignores failed outcomes.
type Notifier struct {
	sender  Sender
	subject string
	now     func() time.Time
}

// New creates a notifier publishing on subject through sender.
func New(sender Sender, subject string) *Notifier {
	return &Notifier{sender: sender, subject: subject, now: time.Now}
}

// Observe implements publish.Observer. Delivery failures are logged only.
func (n *Notifier) Observe(_ context.Context, o publish.Outcome) {
	if o.Err != nil || o.Result == nil {
		return
	}
	ev := Event{
		Type:        EventPublished,
		TxID:        o.TxID,
		Commit:      o.Result.Commit,
		Branch:      o.Result.Branch,
		Message:     o.Result.Message,
		PublishedAt: n.now().UTC(),
		Items:       o.Result.Items,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode publish event", logfields.TxID(o.TxID), logfields.Error(err))
		return
	}
	if err := n.sender.Publish(n.subject, data); err != nil {
		slog.Warn("Failed to send publish event", logfields.TxID(o.TxID), slog.String("subject", n.subject), logfields.Error(err))
		return
	}
	slog.Debug("Sent publish event", logfields.TxID(o.TxID), slog.String("subject", n.subject))
}

// NATSSender publishes on a core NATS connection.
type NATSSender struct {
	conn *nats.Conn
}

// Connect dials url. The connection keeps retrying in the background, so a
// NATS outage at startup does not stop the service.
func Connect(url string) (*NATSSender, error) {
	conn, err := nats.Connect(url,
		nats.Name("docpublish"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", logfields.URL(c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifier initialized", logfields.URL(url))
	return &NATSSender{conn: conn}, nil
}

// Publish implements Sender.
func (s *NATSSender) Publish(subject string, data []byte) error {
	return s.conn.Publish(subject, data)
}

// Close drains pending messages and closes the connection.
func (s *NATSSender) Close() error {
	return s.conn.Drain()
}
