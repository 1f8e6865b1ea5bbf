package site

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bookbuilder/internal/gitmeta"
)

// BuildContext carries per-build identity and metadata resolved once at the
// start of a run so every page sees the same values.
type BuildContext struct {
	BuildID string
	Started time.Time
	Date    string // resolved book date ("today" placeholder expanded)
	Git     *gitmeta.Info
}

// newBuildContext resolves build identity and git metadata for baseDir.
// Git resolution failing is not an error; the builder works fine outside a
// repository.
func newBuildContext(baseDir, bookDate string) *BuildContext {
	now := time.Now()
	info, _ := gitmeta.Resolve(baseDir)
	return &BuildContext{
		BuildID: uuid.NewString(),
		Started: now,
		Date:    resolveDate(bookDate, now),
		Git:     info,
	}
}

// resolveDate expands the "today" placeholder; any other value passes through
// verbatim so authors can pin a literal date string.
func resolveDate(date string, now time.Time) string {
	if date == "today" {
		return now.Format("January 2, 2006")
	}
	return date
}
