// Package orchestrator drives a single novel through the three
// pipeline phases — renaming, translation, epub assembly — against a
// durable NovelProgress record so an interrupted run resumes exactly
// where it stopped.
//
// Grounded on spec §4.11 and the teacher's handlers/translate.go
// processTranslation, whose in-memory *models.TranslateTask state
// machine (pending → processing → completed/failed) is replaced here
// by the YAML-persisted internal/progress.NovelProgress required for
// cross-run resume.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Emasoft/enchant-cli-sub000/internal/progress"
)

// SkipFlags selects which phases to bypass, mirroring the CLI's
// --skip-renaming/--skip-translating/--skip-epub flags (spec §6).
type SkipFlags struct {
	Renaming    bool
	Translation bool
	EPUB        bool
}

// Hooks are the phase implementations the orchestrator invokes.
// Renaming returns the renamed path (or the original path if renaming
// was a no-op). Translation returns the translated-text directory
// (used as the translator "book id" result). EPUB returns the final
// EPUB path.
type Hooks struct {
	Renaming    func(ctx context.Context, path string) (string, error)
	Translation func(ctx context.Context, path string) (string, error)
	EPUB        func(ctx context.Context, path, translationResult string) (string, error)
}

// Orchestrator runs one novel's phases against its progress file.
type Orchestrator struct {
	Hooks  Hooks
	Logger *zap.Logger
}

// New builds an Orchestrator; logger defaults to a no-op logger.
func New(hooks Hooks, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{Hooks: hooks, Logger: logger}
}

// ProgressPath returns the conventional per-novel progress file path
// living beside the source file: ".<stem>_progress.yml" (spec §6).
func ProgressPath(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "."+stem+"_progress.yml")
}

// Result reports the terminal path of each phase that ran.
type Result struct {
	WorkingPath        string
	TranslationResult  string
	EPUBPath           string
	Failed             bool
	FailedPhase        progress.PhaseName
	Err                error
}

// Run drives sourcePath through renaming, translation, and epub in
// order (spec §4.11). When a phase fails and resume is false, Run
// returns immediately with Result.Failed set. When resume is true, Run
// advances to subsequent phases regardless of a prior failure. The
// progress file is deleted once every phase reaches a terminal state.
func (o *Orchestrator) Run(ctx context.Context, sourcePath string, skip SkipFlags, resume bool) (Result, error) {
	progressPath := ProgressPath(sourcePath)

	np, err := progress.LoadNovelProgress(progressPath, sourcePath)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: load progress: %w", err)
	}

	workingPath := sourcePath
	if rec := np.Phases[progress.PhaseRenaming]; rec.Status == progress.StatusCompleted && rec.Result != "" {
		workingPath = rec.Result
	}

	result := Result{WorkingPath: workingPath}

	runPhase := func(name progress.PhaseName, skipped bool, fn func() (string, error)) bool {
		rec := np.Phases[name]
		if rec == nil {
			rec = &progress.PhaseRecord{Status: progress.StatusPending}
			np.Phases[name] = rec
		}
		if skipped {
			rec.Status = progress.StatusSkipped
			_ = np.Save(progressPath)
			return true
		}
		if rec.Status == progress.StatusCompleted {
			return true
		}

		out, err := fn()
		if err != nil {
			rec.Status = progress.StatusFailed
			rec.Error = err.Error()
			_ = np.Save(progressPath)
			o.Logger.Error("phase failed", zap.String("phase", string(name)), zap.String("path", sourcePath), zap.Error(err))
			result.Failed = true
			result.FailedPhase = name
			result.Err = err
			return resume
		}

		rec.Status = progress.StatusCompleted
		rec.Result = out
		_ = np.Save(progressPath)
		return true
	}

	if cont := runPhase(progress.PhaseRenaming, skip.Renaming, func() (string, error) {
		renamed, err := o.Hooks.Renaming(ctx, workingPath)
		if err != nil {
			return "", err
		}
		workingPath = renamed
		result.WorkingPath = renamed
		return renamed, nil
	}); !cont {
		o.maybeDelete(np, progressPath)
		return result, nil
	}

	if cont := runPhase(progress.PhaseTranslation, skip.Translation, func() (string, error) {
		out, err := o.Hooks.Translation(ctx, workingPath)
		if err != nil {
			return "", err
		}
		result.TranslationResult = out
		return out, nil
	}); !cont {
		o.maybeDelete(np, progressPath)
		return result, nil
	}

	if result.TranslationResult == "" {
		if rec := np.Phases[progress.PhaseTranslation]; rec != nil {
			result.TranslationResult = rec.Result
		}
	}

	if cont := runPhase(progress.PhaseEPUB, skip.EPUB, func() (string, error) {
		out, err := o.Hooks.EPUB(ctx, workingPath, result.TranslationResult)
		if err != nil {
			return "", err
		}
		result.EPUBPath = out
		return out, nil
	}); !cont {
		o.maybeDelete(np, progressPath)
		return result, nil
	}

	o.maybeDelete(np, progressPath)
	return result, nil
}

func (o *Orchestrator) maybeDelete(np *progress.NovelProgress, progressPath string) {
	if np.AllTerminal() {
		if err := progress.DeleteNovelProgress(progressPath); err != nil {
			o.Logger.Warn("failed to delete progress file", zap.String("path", progressPath), zap.Error(err))
		}
	}
}
