package publish

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// ItemInfo identifies a submitted document without its content.
type ItemInfo struct {
	DeclaredName string `json:"declared_name"`
	Title        string `json:"title"`
	CategoryHint string `json:"category_hint,omitempty"`
	Size         int    `json:"size"`
}

// Outcome describes a resolved transaction. Exactly one of Result and Err
// is set.
type Outcome struct {
	TxID     string
	Started  time.Time
	Duration time.Duration
	Items    []ItemInfo
	Result   *Result
	Err      error
}

// Observer is notified after every transaction, successful or not. It runs
// on the request path after the lock is released and must not fail the
// publish.
type Observer interface {
	Observe(ctx context.Context, o Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome)

func (f ObserverFunc) Observe(ctx context.Context, o Outcome) { f(ctx, o) }

func (c *Coordinator) notify(ctx context.Context, o Outcome) {
	for _, obs := range c.observers {
		obs.Observe(ctx, o)
	}
}

func describe(items []upload.Item) []ItemInfo {
	out := make([]ItemInfo, len(items))
	for i, it := range items {
		out[i] = ItemInfo{
			DeclaredName: it.DeclaredName,
			Title:        it.Title,
			CategoryHint: it.CategoryHint,
			Size:         len(it.Content),
		}
	}
	return out
}
