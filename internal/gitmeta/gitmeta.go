// Package gitmeta reads repository metadata for the book source directory.
// The builder uses it to stamp pages with the source revision and to derive
// per-chapter edit links. A source tree outside any git repository is fine.
package gitmeta

import (
	"errors"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
)

// Info describes the source revision a build was produced from.
type Info struct {
	Commit      string    // full commit hash
	ShortCommit string    // first 8 characters
	Branch      string    // branch name, empty on detached HEAD
	CommitTime  time.Time // committer timestamp of HEAD
	Dirty       bool      // worktree has uncommitted changes
}

// Resolve opens the repository containing dir and reads HEAD metadata.
// Returns (nil, nil) when dir is not inside a git repository.
func Resolve(dir string) (*Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		// Freshly initialized repository without commits.
		return nil, nil
	}

	info := &Info{
		Commit:      ref.Hash().String(),
		ShortCommit: ref.Hash().String()[:8],
	}
	if ref.Name().IsBranch() {
		info.Branch = ref.Name().Short()
	}

	if commit, err := repo.CommitObject(ref.Hash()); err == nil {
		info.CommitTime = commit.Committer.When
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			info.Dirty = !status.IsClean()
		}
	}

	return info, nil
}

// EditURL constructs a forge edit link for a chapter path, following the
// GitHub /edit/ convention. Returns empty when repoURL or branch is unknown.
func (i *Info) EditURL(repoURL, chapterPath string) string {
	if i == nil || repoURL == "" || i.Branch == "" {
		return ""
	}
	base := strings.TrimSuffix(strings.TrimSuffix(repoURL, "/"), ".git")
	return base + "/edit/" + i.Branch + "/" + chapterPath
}

// Stamp returns a short human-readable revision description for page footers.
func (i *Info) Stamp() string {
	if i == nil {
		return ""
	}
	s := i.ShortCommit
	if i.Dirty {
		s += "-dirty"
	}
	return s
}
