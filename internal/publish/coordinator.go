package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpublish/internal/category"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/indexdoc"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/retry"
	"git.home.luguber.info/inful/docpublish/internal/staging"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// Stage names used for timing and logs.
const (
	StageClone  = "clone"
	StagePlace  = "place"
	StageIndex  = "index"
	StageCommit = "commit"
	StagePush   = "push"
)

// Coordinator runs publish transactions against one remote.
type Coordinator struct {
	areas     *staging.Manager
	gate      *upload.Gate
	lock      *Lock
	replay    retry.Policy
	recorder  metrics.Recorder
	observers []Observer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLock shares a lock between coordinators (default: a private lock
// without wait timeout).
func WithLock(l *Lock) Option { return func(c *Coordinator) { c.lock = l } }

// WithReplay enables replaying rejected pushes from a fresh clone.
// p.MaxRetries is the number of replays.
func WithReplay(p retry.Policy) Option { return func(c *Coordinator) { c.replay = p } }

// WithRecorder installs a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithObserver registers an observer notified after every transaction.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// NewCoordinator creates a coordinator that stages into areas and checks
// batches against gate's current policy.
func NewCoordinator(areas *staging.Manager, gate *upload.Gate, opts ...Option) *Coordinator {
	c := &Coordinator{
		areas:    areas,
		gate:     gate,
		lock:     NewLock(0),
		replay:   retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type planned struct {
	pos  int
	item upload.Item
	cat  category.Category
}

// Publish validates items and publishes them as one commit. It returns
// either a Result covering every item or a classified error, in which case
// the remote is unchanged.
func (c *Coordinator) Publish(ctx context.Context, items []upload.Item) (*Result, error) {
	txID := uuid.NewString()
	start := time.Now()
	log := slog.With(logfields.TxID(txID))
	log.Info("Publish requested", logfields.Items(len(items)))

	res, err := c.run(ctx, txID, items, log)

	elapsed := time.Since(start)
	if err != nil {
		code := "error"
		if ce, ok := errors.AsClassified(err); ok {
			code = ce.Code()
		}
		c.recorder.ObservePublishDuration(metrics.OutcomeFailed, elapsed)
		c.recorder.IncPublishOutcome(code)
		log.Warn("Publish failed", logfields.Code(code), logfields.Error(err),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
	} else {
		c.recorder.ObservePublishDuration(metrics.OutcomeSuccess, elapsed)
		c.recorder.IncPublishOutcome("success")
		counts := map[string]int{}
		for _, p := range res.Items {
			counts[p.Category]++
		}
		for cat, n := range counts {
			c.recorder.AddItemsPublished(cat, n)
		}
		log.Info("Publish completed", logfields.Commit(shortHash(res.Commit)), logfields.Items(len(res.Items)),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
	}

	c.notify(ctx, Outcome{TxID: txID, Started: start, Duration: elapsed, Items: describe(items), Result: res, Err: err})
	return res, err
}

func (c *Coordinator) run(ctx context.Context, txID string, items []upload.Item, log *slog.Logger) (*Result, error) {
	if err := upload.Validate(items, c.gate.Policy()); err != nil {
		return nil, err
	}

	plan := make([]planned, len(items))
	for i, it := range items {
		plan[i] = planned{pos: i + 1, item: it, cat: category.Classify(it.CategoryHint, it.DeclaredName, it.Title)}
	}

	release, waited, err := c.lock.Acquire(ctx)
	c.recorder.ObserveLockWait(waited)
	if err != nil {
		return nil, err
	}
	defer release()

	attempts := c.replay.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		res, err := c.attempt(ctx, plan, log.With(logfields.Attempt(attempt)))
		if err == nil {
			res.TxID = txID
			res.Attempts = attempt
			return res, nil
		}
		if !IsKind(err, KindPushRejected) || attempt >= attempts {
			return nil, err
		}
		c.recorder.IncReplay()
		log.Warn("Push rejected, replaying from a fresh clone", logfields.Attempt(attempt), logfields.Error(err))
		if werr := c.replay.Wait(ctx, attempt); werr != nil {
			return nil, err
		}
	}
}

// attempt performs one clone-to-push pass. The staging area is released on
// every return path.
func (c *Coordinator) attempt(ctx context.Context, plan []planned, log *slog.Logger) (*Result, error) {
	var area *staging.Area
	err := c.timed(StageClone, func() error {
		var err error
		area, err = c.areas.Acquire(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer area.Release()

	docs := make(map[category.Category]*indexdoc.Document)
	var touched []category.Category
	var paths []string
	published := make([]Published, 0, len(plan))

	placeStart := time.Now()
	for _, p := range plan {
		rel, stored, err := area.Place(p.item, p.cat)
		if err != nil {
			return nil, itemFailure(err, p, published)
		}
		doc, ok := docs[p.cat]
		if !ok {
			doc, err = area.ReadIndex(p.cat)
			if err != nil {
				return nil, itemFailure(err, p, published)
			}
			docs[p.cat] = doc
			touched = append(touched, p.cat)
		}
		link := p.cat.Link(stored)
		doc.Prepend(indexdoc.Entry{Title: p.item.Title, Link: link})
		paths = append(paths, rel)
		published = append(published, Published{
			Title:        p.item.Title,
			DeclaredName: p.item.DeclaredName,
			StoredName:   stored,
			Category:     p.cat.Key(),
			Path:         rel,
			Link:         link,
		})
		log.Debug("Placed document", logfields.Path(rel), logfields.Category(p.cat.Key()), logfields.Title(p.item.Title))
	}
	c.recorder.ObserveStageDuration(StagePlace, time.Since(placeStart))

	err = c.timed(StageIndex, func() error {
		for _, cat := range touched {
			rel, err := area.WriteIndex(cat, docs[cat])
			if err != nil {
				return err
			}
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := CommitMessage(published)
	var commit string
	err = c.timed(StageCommit, func() error {
		var err error
		commit, err = area.StageAndCommit(paths, msg)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := c.timed(StagePush, func() error { return area.Push(ctx) }); err != nil {
		return nil, err
	}

	return &Result{
		Commit:  commit,
		Branch:  area.Branch(),
		Message: msg,
		Items:   published,
	}, nil
}

func (c *Coordinator) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.recorder.ObserveStageDuration(stage, time.Since(start))
	return err
}

// itemFailure attaches the failing item and everything placed before it.
func itemFailure(err error, p planned, before []Published) error {
	ce, ok := errors.AsClassified(err)
	if !ok {
		ce = errors.WrapError(err, errors.CategoryInternal, "publish failed").Build()
	}
	ctx := errors.ErrorContext{
		"item":     p.pos,
		"file":     p.item.DeclaredName,
		"title":    p.item.Title,
		"category": p.cat.Key(),
	}
	if len(before) > 0 {
		names := make([]string, len(before))
		for i, b := range before {
			names[i] = b.StoredName
		}
		ctx["published_before_failure"] = names
	}
	return ce.WithContextMap(ctx)
}
