package site

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/freeze"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
)

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.

	stageOK StageErrorKind = "success"
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// BuildState carries mutable state and metrics across stages.
type BuildState struct {
	Generator *Generator
	Book      *book.Book
	Rendered  []*RenderedChapter // manifest order; entries for failed chapters are nil
	Nav       *book.NavTree
	Report    *BuildReport
	Timings   map[StageName]time.Duration

	// Skip short-circuits the remaining stages when the build signature
	// matches the previous run and the output is already in place.
	Skip bool

	// Chapter contents and cache keys read during the signature check, so
	// the render stage does not read files twice.
	Sources   map[string][]byte
	CacheKeys map[string]string
	Signature *freeze.BuildSignature
}

func newBuildState(g *Generator, report *BuildReport) *BuildState {
	return &BuildState{
		Generator: g,
		Report:    report,
		Timings:   make(map[StageName]time.Duration),
	}
}

type namedStage struct {
	name StageName
	fn   Stage
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal error. Warning-classified stage errors are recorded and the
// pipeline continues.
func runStages(ctx context.Context, bs *BuildState, stages []namedStage) error {
	rec := bs.Generator.recorder
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.name, ctx.Err())
			bs.Report.recordStageError(se)
			rec.IncStageResult(string(st.name), metrics.ResultCanceled)
			return se
		default:
		}

		t0 := time.Now()
		err := st.fn(ctx, bs)
		dur := time.Since(t0)
		bs.Timings[st.name] = dur
		bs.Report.StageDurations[string(st.name)] = dur
		rec.ObserveStageDuration(string(st.name), dur)

		if err == nil {
			bs.Report.countStage(st.name, stageOK)
			rec.IncStageResult(string(st.name), metrics.ResultSuccess)
			if bs.Skip {
				return nil
			}
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Unknown errors are fatal by default.
			se = newFatalStageError(st.name, err)
		}
		bs.Report.recordStageError(se)

		switch se.Kind {
		case StageErrorWarning:
			rec.IncStageResult(string(st.name), metrics.ResultWarning)
			continue
		case StageErrorCanceled:
			rec.IncStageResult(string(st.name), metrics.ResultCanceled)
			return se
		default:
			rec.IncStageResult(string(st.name), metrics.ResultFatal)
			return se
		}
	}
	return nil
}
