package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// RemoteBranch is the branch seeded into test remotes.
const RemoteBranch = "master"

// Remote is a bare repository on disk standing in for the publish target.
type Remote struct {
	t    *testing.T
	Path string
}

// NewBareRemote creates a bare repository seeded with one commit holding files
// (worktree-relative path -> content).
func NewBareRemote(t *testing.T, files map[string]string) *Remote {
	t.Helper()

	tmp := t.TempDir()
	barePath := filepath.Join(tmp, "remote.git")
	if _, err := git.PlainInit(barePath, true); err != nil {
		t.Fatalf("init bare: %v", err)
	}

	seedPath := filepath.Join(tmp, "seed")
	seed, err := git.PlainInit(seedPath, false)
	if err != nil {
		t.Fatalf("init seed: %v", err)
	}
	if _, err := seed.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{barePath}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}
	wt, err := seed.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if len(files) == 0 {
		files = map[string]string{"README.md": "seed\n"}
	}
	for rel, content := range files {
		full := filepath.Join(seedPath, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
		if _, err := wt.Add(rel); err != nil {
			t.Fatalf("add %s: %v", rel, err)
		}
	}
	if _, err := wt.Commit("seed", &git.CommitOptions{Author: signature()}); err != nil {
		t.Fatalf("commit seed: %v", err)
	}
	if err := seed.Push(&git.PushOptions{RemoteName: "origin"}); err != nil {
		t.Fatalf("push seed: %v", err)
	}
	return &Remote{t: t, Path: barePath}
}

// Head returns the hash the seeded branch points at.
func (r *Remote) Head() string {
	r.t.Helper()
	repo, err := git.PlainOpen(r.Path)
	if err != nil {
		r.t.Fatalf("open remote: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(RemoteBranch), true)
	if err != nil {
		r.t.Fatalf("resolve %s: %v", RemoteBranch, err)
	}
	return ref.Hash().String()
}

// HeadCommit returns the commit the seeded branch points at.
func (r *Remote) HeadCommit() *object.Commit {
	r.t.Helper()
	repo, err := git.PlainOpen(r.Path)
	if err != nil {
		r.t.Fatalf("open remote: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(RemoteBranch), true)
	if err != nil {
		r.t.Fatalf("resolve %s: %v", RemoteBranch, err)
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		r.t.Fatalf("commit object: %v", err)
	}
	return c
}

// ReadFile returns the content of path at the branch head, or false when
// the path is absent.
func (r *Remote) ReadFile(path string) (string, bool) {
	r.t.Helper()
	f, err := r.HeadCommit().File(path)
	if err != nil {
		return "", false
	}
	content, err := f.Contents()
	if err != nil {
		r.t.Fatalf("read %s: %v", path, err)
	}
	return content, true
}

// CommitOutOfBand pushes a commit from a separate clone, simulating a
// concurrent writer.
func (r *Remote) CommitOutOfBand(path, content, msg string) string {
	r.t.Helper()
	dir := r.t.TempDir()
	repo, err := git.PlainClone(dir, false, &git.CloneOptions{URL: r.Path})
	if err != nil {
		r.t.Fatalf("clone: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	full := filepath.Join(dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		r.t.Fatalf("write: %v", err)
	}
	if _, err := wt.Add(path); err != nil {
		r.t.Fatalf("add: %v", err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: signature()})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	if err := repo.Push(&git.PushOptions{}); err != nil {
		r.t.Fatalf("push: %v", err)
	}
	return hash.String()
}

func signature() *object.Signature {
	return &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}
}
