package gitmeta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepoWithCommit(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("# hi\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("index.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestResolve_OutsideRepository(t *testing.T) {
	info, err := Resolve(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestResolve_RepositoryMetadata(t *testing.T) {
	dir := initRepoWithCommit(t)

	info, err := Resolve(dir)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Len(t, info.Commit, 40)
	assert.Len(t, info.ShortCommit, 8)
	assert.False(t, info.Dirty)
	assert.NotEmpty(t, info.Branch)
	assert.Equal(t, info.ShortCommit, info.Stamp())
}

func TestResolve_DirtyWorktree(t *testing.T) {
	dir := initRepoWithCommit(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.md"), []byte("draft\n"), 0644))

	info, err := Resolve(dir)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.Dirty)
	assert.Contains(t, info.Stamp(), "-dirty")
}

func TestEditURL(t *testing.T) {
	info := &Info{Branch: "main"}
	assert.Equal(t,
		"https://example.com/org/notes/edit/main/patterns/dao.md",
		info.EditURL("https://example.com/org/notes.git", "patterns/dao.md"))

	assert.Empty(t, info.EditURL("", "x.md"))
	var nilInfo *Info
	assert.Empty(t, nilInfo.EditURL("https://example.com/r", "x.md"))
	assert.Empty(t, nilInfo.Stamp())
}
