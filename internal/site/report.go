package site

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// ReportIssueCode enumerates machine-parseable issue identifiers. Codes are
// stable contract and should only be appended, never reused.
type ReportIssueCode string

const (
	IssueChapterRenderFailure ReportIssueCode = "CHAPTER_RENDER_FAILURE"
	IssueBrokenLink           ReportIssueCode = "BROKEN_LINK"
	IssueFreezeUnavailable    ReportIssueCode = "FREEZE_UNAVAILABLE"
	IssueBuildCanceled        ReportIssueCode = "BUILD_CANCELED"
	IssueGenericStageError    ReportIssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// SkipNoChanges marks a run where the build signature matched the previous
// build and the output was left untouched.
const SkipNoChanges = "no_changes"

// ReportIssue is a structured taxonomy entry describing a discrete problem.
// Message is human-friendly; Code + Stage allow automated handling.
type ReportIssue struct {
	Code     ReportIssueCode `json:"code"`
	Stage    StageName       `json:"stage"`
	Severity IssueSeverity   `json:"severity"`
	Message  string          `json:"message"`
	Path     string          `json:"path,omitempty"`
}

// ChapterFailure records one chapter that could not be rendered, with the
// manifest-relative path and the reason.
type ChapterFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// StageCount aggregates outcome counts for a stage.
type StageCount struct {
	Success  int
	Warning  int
	Fatal    int
	Canceled int
}

// BuildReport captures metrics about a site generation run.
type BuildReport struct {
	SchemaVersion   int
	BuildID         string
	Chapters        int // chapters declared in the manifest
	RenderedPages   int // pages rendered fresh this run
	CachedPages     int // pages served from the freeze store
	FailedChapters  []ChapterFailure
	BrokenLinks     int
	Start           time.Time
	End             time.Time
	Errors          []error // fatal errors causing build abortion (at most one today)
	Warnings        []error // non-fatal issues (failed chapters, broken links)
	StageDurations  map[string]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     map[StageName]StageCount
	Issues          []ReportIssue
	Outcome         string       // string form for JSON consumers
	OutcomeT        BuildOutcome // typed mirror (source of truth)
	SkipReason      string       // non-empty when the build was skipped entirely
	GitStamp        string       // short commit + dirty marker, empty outside a repository
}

func newBuildReport(buildID string, chapters int) *BuildReport {
	return &BuildReport{
		SchemaVersion:   1,
		BuildID:         buildID,
		Chapters:        chapters,
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageCounts:     make(map[StageName]StageCount),
	}
}

func (r *BuildReport) finish() { r.End = time.Now() }

// AddIssue appends a structured issue and mirrors it into the Errors/Warnings
// slices based on severity. Provide err=nil for purely informational issues.
func (r *BuildReport) AddIssue(code ReportIssueCode, stage StageName, severity IssueSeverity, msg, path string, err error) {
	r.Issues = append(r.Issues, ReportIssue{Code: code, Stage: stage, Severity: severity, Message: msg, Path: path})
	if err != nil {
		switch severity {
		case SeverityError:
			r.Errors = append(r.Errors, err)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, err)
		}
	}
}

func (r *BuildReport) recordStageError(se *StageError) {
	r.StageErrorKinds[se.Stage] = se.Kind
	r.countStage(se.Stage, se.Kind)
	switch se.Kind {
	case StageErrorWarning:
		r.Warnings = append(r.Warnings, se)
	default:
		r.Errors = append(r.Errors, se)
	}
}

func (r *BuildReport) countStage(stage StageName, kind StageErrorKind) {
	c := r.StageCounts[stage]
	switch kind {
	case StageErrorWarning:
		c.Warning++
	case StageErrorFatal:
		c.Fatal++
	case StageErrorCanceled:
		c.Canceled++
	default:
		c.Success++
	}
	r.StageCounts[stage] = c
}

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("chapters=%d rendered=%d cached=%d failed=%d broken_links=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.Chapters, r.RenderedPages, r.CachedPages, len(r.FailedChapters), r.BrokenLinks,
		dur.Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), r.Outcome)
}

// deriveOutcome sets the Outcome field based on recorded errors/warnings.
func (r *BuildReport) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.setOutcome(OutcomeCanceled)
				return
			}
		}
		r.setOutcome(OutcomeFailed)
		return
	}
	if len(r.Warnings) > 0 {
		r.setOutcome(OutcomeWarning)
		return
	}
	r.setOutcome(OutcomeSuccess)
}

func (r *BuildReport) setOutcome(o BuildOutcome) {
	r.OutcomeT = o
	r.Outcome = string(o)
}

// Persist writes the report atomically into the final output directory:
//
//	build-report.json  (machine readable)
//	build-report.txt   (human summary)
//
// Best effort; errors are returned for caller logging but do not change the
// build outcome.
func (r *BuildReport) Persist(root string) error {
	if r.End.IsZero() {
		r.finish()
		r.deriveOutcome()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.sanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := filepath.Join(root, "build-report.json")
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	summaryPath := filepath.Join(root, "build-report.txt")
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0644); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}

// sanitizedCopy returns a copy with error fields converted to strings for
// JSON friendliness and typed map keys flattened.
func (r *BuildReport) sanitizedCopy() *buildReportSerializable {
	stageCounts := make(map[string]StageCount, len(r.StageCounts))
	for k, v := range r.StageCounts {
		stageCounts[string(k)] = v
	}
	sek := make(map[string]string, len(r.StageErrorKinds))
	for k, v := range r.StageErrorKinds {
		sek[string(k)] = string(v)
	}
	if r.StageDurations == nil {
		r.StageDurations = map[string]time.Duration{}
	}
	failed := r.FailedChapters
	if failed == nil {
		failed = []ChapterFailure{}
	}

	s := &buildReportSerializable{
		SchemaVersion:   r.SchemaVersion,
		BuildID:         r.BuildID,
		Chapters:        r.Chapters,
		RenderedPages:   r.RenderedPages,
		CachedPages:     r.CachedPages,
		FailedChapters:  failed,
		BrokenLinks:     r.BrokenLinks,
		Start:           r.Start,
		End:             r.End,
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		StageDurations:  r.StageDurations,
		StageErrorKinds: sek,
		StageCounts:     stageCounts,
		Issues:          r.Issues,
		Outcome:         r.Outcome,
		SkipReason:      r.SkipReason,
		GitStamp:        r.GitStamp,
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

type buildReportSerializable struct {
	SchemaVersion   int                      `json:"schema_version"`
	BuildID         string                   `json:"build_id"`
	Chapters        int                      `json:"chapters"`
	RenderedPages   int                      `json:"rendered_pages"`
	CachedPages     int                      `json:"cached_pages"`
	FailedChapters  []ChapterFailure         `json:"failed_chapters"`
	BrokenLinks     int                      `json:"broken_links"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds map[string]string        `json:"stage_error_kinds"`
	StageCounts     map[string]StageCount    `json:"stage_counts"`
	Issues          []ReportIssue            `json:"issues"`
	Outcome         string                   `json:"outcome"`
	SkipReason      string                   `json:"skip_reason,omitempty"`
	GitStamp        string                   `json:"git_stamp,omitempty"`
}
