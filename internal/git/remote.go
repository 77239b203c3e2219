package git

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Remote produces fresh working copies of the publish target.
type Remote interface {
	// Clone checks the tracked branch out into dir, which must not exist
	// or be empty.
	Clone(ctx context.Context, dir string) (Checkout, error)
}

// Checkout is a private working copy of the remote at its latest revision.
type Checkout interface {
	Dir() string
	Branch() string
	// Add stages exactly the given worktree-relative paths.
	Add(paths ...string) error
	// Commit records staged changes and returns the new commit hash.
	Commit(message string) (string, error)
	// Push sends the branch to the remote. Any refusal is push_rejected.
	Push(ctx context.Context) error
	// Head returns the hash the branch currently points at.
	Head() (string, error)
}

// Client clones and pushes the configured remote with go-git.
type Client struct {
	url          string
	branch       string
	auth         transport.AuthMethod
	authorName   string
	authorEmail  string
	cloneTimeout time.Duration
	pushTimeout  time.Duration
}

// NewClient builds a Client from the remote and git configuration sections.
func NewClient(remote config.RemoteConfig, g config.GitConfig) (*Client, error) {
	auth, err := authMethod(remote.Auth)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryAuth, "failed to set up remote authentication").
			Fatal().
			WithContext("url", logfields.Redact(remote.URL)).
			Build()
	}
	return &Client{
		url:          remote.URL,
		branch:       remote.Branch,
		auth:         auth,
		authorName:   g.AuthorName,
		authorEmail:  g.AuthorEmail,
		cloneTimeout: g.CloneTimeoutDuration(),
		pushTimeout:  g.PushTimeoutDuration(),
	}, nil
}

// URL returns the remote URL as configured.
func (c *Client) URL() string { return c.url }

// Clone implements Remote.
func (c *Client) Clone(ctx context.Context, dir string) (Checkout, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cloneTimeout)
	defer cancel()

	opts := &git.CloneOptions{URL: c.url, Auth: c.auth}
	if c.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(c.branch)
		opts.SingleBranch = true
	}

	start := time.Now()
	slog.Debug("Cloning remote", logfields.URL(c.url), logfields.Branch(c.branch), logfields.Path(dir))
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, classifyCloneError(c.url, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, classifyCloneError(c.url, err)
	}
	if !head.Name().IsBranch() {
		return nil, classifyCloneError(c.url, fmt.Errorf("remote HEAD %s is not a branch", head.Name()))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open worktree").
			WithContext("path", dir).
			Build()
	}

	slog.Info("Remote cloned",
		logfields.URL(c.url),
		logfields.Branch(head.Name().Short()),
		logfields.Commit(head.Hash().String()[:8]),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))

	return &checkout{
		client: c,
		dir:    dir,
		repo:   repo,
		wt:     wt,
		ref:    head.Name(),
	}, nil
}

type checkout struct {
	client *Client
	dir    string
	repo   *git.Repository
	wt     *git.Worktree
	ref    plumbing.ReferenceName
}

func (co *checkout) Dir() string    { return co.dir }
func (co *checkout) Branch() string { return co.ref.Short() }

func (co *checkout) Add(paths ...string) error {
	for _, p := range paths {
		if _, err := co.wt.Add(filepath.ToSlash(p)); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to stage path").
				WithContext("path", p).
				Build()
		}
	}
	return nil
}

func (co *checkout) Commit(message string) (string, error) {
	hash, err := co.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  co.client.authorName,
			Email: co.client.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to commit staged changes").
			WithContext("branch", co.Branch()).
			Build()
	}
	return hash.String(), nil
}

func (co *checkout) Push(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, co.client.pushTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return classifyPushError(co.client.url, co.Branch(), err)
	}

	spec := ggitcfg.RefSpec(fmt.Sprintf("%s:%s", co.ref, co.ref))
	err := co.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []ggitcfg.RefSpec{spec},
		Auth:       co.client.auth,
	})
	if err == nil || err == git.NoErrAlreadyUpToDate {
		return nil
	}
	return classifyPushError(co.client.url, co.Branch(), err)
}

func (co *checkout) Head() (string, error) {
	ref, err := co.repo.Reference(co.ref, true)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to resolve branch head").
			WithContext("branch", co.Branch()).
			Build()
	}
	return ref.Hash().String(), nil
}
