package site

import (
	"fmt"
	"log/slog"
	"os"
)

// beginStaging creates an isolated staging directory for atomic build output.
// The stage is a sibling of the output dir (<output>_stage), never inside it.
func (g *Generator) beginStaging() error {
	stage := g.outputDir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("clear stale staging dir: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return err
	}
	g.stageDir = stage
	slog.Debug("Initialized staging directory", "staging", stage, "final", g.outputDir)
	return nil
}

// finalizeStaging atomically promotes the staging directory to the final
// output location:
//  1. Move the existing outputDir (if any) to outputDir.prev.
//  2. Rename staging -> outputDir.
//  3. Remove the previous backup best-effort.
func (g *Generator) finalizeStaging() error {
	if g.stageDir == "" {
		return fmt.Errorf("no staging directory initialized")
	}
	if _, err := os.Stat(g.stageDir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}

	prev := g.outputDir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("remove previous backup: %w", err)
	}
	if _, err := os.Stat(g.outputDir); err == nil {
		if err := os.Rename(g.outputDir, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(g.stageDir, g.outputDir); err != nil {
		return fmt.Errorf("promote staging: %w", err)
	}
	g.stageDir = ""
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous backup", "path", prev, "error", err)
	}
	slog.Info("Promoted staging directory", "output", g.outputDir)
	return nil
}

// abortStaging removes any staging directory left behind by a failed build
// so repeated failures do not accumulate orphaned temp dirs.
func (g *Generator) abortStaging() {
	if g.stageDir == "" {
		return
	}
	dir := g.stageDir
	g.stageDir = ""
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory", "path", dir, "error", err)
	}
}
