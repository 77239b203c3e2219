package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/category"
	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/indexdoc"
	helpers "git.home.luguber.info/inful/docpublish/internal/testutil/testutils"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

const emptyIndex = `<html><body><ul id="file-list">
</ul></body></html>`

func newManager(t *testing.T, files map[string]string) (*Manager, *helpers.Remote) {
	t.Helper()
	if files == nil {
		files = map[string]string{
			category.Kaarah.IndexPath():            emptyIndex,
			category.MaamareiMordechai.IndexPath(): emptyIndex,
		}
	}
	remote := helpers.NewBareRemote(t, files)
	client, err := git.NewClient(
		config.RemoteConfig{URL: remote.Path},
		config.GitConfig{AuthorName: "docpublish", AuthorEmail: "docpublish@example.com"},
	)
	require.NoError(t, err)
	return NewManager(t.TempDir(), client), remote
}

func TestAcquireCreatesIsolatedAreas(t *testing.T) {
	m, _ := newManager(t, nil)

	a, err := m.Acquire(context.Background())
	require.NoError(t, err)
	b, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir(), b.Dir())
	assert.FileExists(t, filepath.Join(a.Dir(), category.Kaarah.IndexPath()))
	assert.Equal(t, 2, m.Active())

	a.Release()
	b.Release()
	assert.NoDirExists(t, a.Dir())
	assert.NoDirExists(t, b.Dir())
	assert.Zero(t, m.Active())
}

func TestAcquireFailureLeavesNothingBehind(t *testing.T) {
	client, err := git.NewClient(config.RemoteConfig{URL: filepath.Join(t.TempDir(), "missing.git")}, config.GitConfig{})
	require.NoError(t, err)
	m := NewManager(t.TempDir(), client)

	_, err = m.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, git.CodeRemoteUnavailable))

	entries, err := os.ReadDir(m.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, m.Active())
}

func TestReleaseIsIdempotent(t *testing.T) {
	m, _ := newManager(t, nil)
	a, err := m.Acquire(context.Background())
	require.NoError(t, err)

	a.Release()
	assert.NotPanics(t, a.Release)
	assert.NoDirExists(t, a.Dir())
}

func TestPlaceSanitizesAndRefusesCollisions(t *testing.T) {
	m, _ := newManager(t, nil)
	a, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer a.Release()

	rel, stored, err := a.Place(upload.Item{DeclaredName: "Kaarah 5.pdf", Content: []byte("%PDF-1")}, category.Kaarah)
	require.NoError(t, err)
	assert.Equal(t, "Kaarah_5.pdf", stored)
	assert.Equal(t, "divrei_torah/kaarah/Kaarah_5.pdf", rel)

	data, err := os.ReadFile(filepath.Join(a.Dir(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1", string(data))

	_, _, err = a.Place(upload.Item{DeclaredName: "Kaarah_5.pdf", Content: []byte("other")}, category.Kaarah)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, CodeNameCollision))
	assert.Equal(t, errors.CategoryAlreadyExists, errors.GetCategory(err))

	data, err = os.ReadFile(filepath.Join(a.Dir(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1", string(data), "collision must not overwrite")

	_, _, err = a.Place(upload.Item{DeclaredName: "///", Content: []byte("x")}, category.Kaarah)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, upload.CodeInvalidMetadata))
}

func TestPlaceCollidesWithCommittedFile(t *testing.T) {
	m, _ := newManager(t, map[string]string{
		category.MaamareiMordechai.IndexPath():        emptyIndex,
		"divrei_torah/maamarei_mordechai/Essay.pdf": "old",
	})
	a, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer a.Release()

	_, _, err = a.Place(upload.Item{DeclaredName: "Essay.pdf", Content: []byte("new")}, category.MaamareiMordechai)
	assert.True(t, errors.HasCode(err, CodeNameCollision))
}

func TestReadIndexMalformed(t *testing.T) {
	m, _ := newManager(t, map[string]string{
		category.Kaarah.IndexPath(): "<html><body><ul id=\"other\"></ul></body></html>",
	})
	a, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer a.Release()

	_, err = a.ReadIndex(category.Kaarah)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, CodeMalformedIndex))
	assert.ErrorIs(t, err, indexdoc.ErrMalformed)

	_, err = a.ReadIndex(category.MaamareiMordechai)
	require.Error(t, err, "missing index document")
	assert.True(t, errors.HasCode(err, CodeMalformedIndex))
}

func TestStageCommitAndPush(t *testing.T) {
	m, remote := newManager(t, nil)
	a, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer a.Release()

	rel, _, err := a.Place(upload.Item{DeclaredName: "Kaarah 1.pdf", Content: []byte("%PDF")}, category.Kaarah)
	require.NoError(t, err)

	doc, err := a.ReadIndex(category.Kaarah)
	require.NoError(t, err)
	doc.Prepend(indexdoc.Entry{Title: "Kaarah 1", Link: category.Kaarah.Link("Kaarah_1.pdf")})
	idx, err := a.WriteIndex(category.Kaarah, doc)
	require.NoError(t, err)

	// an unrelated stray file must not be committed
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir(), "stray.txt"), []byte("x"), 0o600))

	hash, err := a.StageAndCommit([]string{rel, idx}, "Added Kaarah 1 to Kaarah")
	require.NoError(t, err)
	require.NoError(t, a.Push(context.Background()))

	assert.Equal(t, hash, remote.Head())
	_, ok := remote.ReadFile(rel)
	assert.True(t, ok)
	_, ok = remote.ReadFile("stray.txt")
	assert.False(t, ok)
	published, ok := remote.ReadFile(idx)
	require.True(t, ok)
	assert.Contains(t, published, `href="/divrei_torah/kaarah/Kaarah_1.pdf"`)
}

func TestSweepRemovesOnlyStaleInactiveAreas(t *testing.T) {
	m, _ := newManager(t, nil)
	base := m.BaseDir()

	stale := filepath.Join(base, dirPrefix+"stale")
	fresh := filepath.Join(base, dirPrefix+"fresh")
	foreign := filepath.Join(base, "keep-me")
	for _, d := range []string{stale, fresh, foreign} {
		require.NoError(t, os.MkdirAll(d, 0o750))
	}
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(foreign, old, old))

	live, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer live.Release()
	require.NoError(t, os.Chtimes(live.Dir(), old, old))

	removed, err := m.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, foreign)
	assert.DirExists(t, live.Dir())
}

func TestJanitorSweepsOnStart(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	stale := filepath.Join(m.BaseDir(), dirPrefix+"orphan")
	require.NoError(t, os.MkdirAll(stale, 0o750))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	j, err := NewJanitor(m, time.Hour, time.Hour)
	require.NoError(t, err)
	require.NoError(t, j.Start(context.Background()))
	t.Cleanup(func() { _ = j.Stop(context.Background()) })

	assert.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond)
}
