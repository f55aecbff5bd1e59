// Package batch drives a whole directory of novels through the Phase
// Orchestrator, maintaining a durable BatchProgress record so an
// interrupted batch resumes exactly where it stopped.
//
// Grounded on spec §4.12 and the teacher's handlers/translate.go
// GetTasksHandler (the same "enumerate every tracked item" shape, here
// backed by a YAML file instead of the teacher's in-memory task map)
// plus original_source's single-lock-per-directory batch runner.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Emasoft/enchant-cli-sub000/internal/progress"
)

// DefaultMaxRetries is the default per-file retry budget before a
// batch entry is marked failed/skipped (spec §4.12).
const DefaultMaxRetries = 3

// LockFileName is the advisory lock guaranteeing a single batch run
// per working directory (spec §4.12).
const LockFileName = "translation_batch.lock"

// ProgressFileName is the durable batch-run record (spec §6).
const ProgressFileName = "translation_batch_progress.yml"

// HistoryFileName is the append-only chronology log.
const HistoryFileName = "translations_chronology.yml"

// ProcessFunc runs one file through the Phase Orchestrator, returning
// an error on failure.
type ProcessFunc func(ctx context.Context, path string) error

// Driver runs a batch of novels against a working directory.
type Driver struct {
	WorkDir     string
	InputDir    string
	MaxRetries  int
	Process     ProcessFunc
	Logger      *zap.Logger
	now         func() time.Time
}

// New builds a Driver; MaxRetries defaults to DefaultMaxRetries.
func New(workDir, inputDir string, maxRetries int, process ProcessFunc, logger *zap.Logger) *Driver {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{WorkDir: workDir, InputDir: inputDir, MaxRetries: maxRetries, Process: process, Logger: logger, now: time.Now}
}

// ErrBatchAlreadyRunning is returned when the lock file is already
// held by another run.
var ErrBatchAlreadyRunning = fmt.Errorf("batch: another run already holds %s", LockFileName)

// Run acquires the batch lock, loads or creates BatchProgress, and
// drives every planned/processing file through Process (spec §4.12).
// Single-file failures do not abort the batch; the batch as a whole
// succeeds even with some files marked failed/skipped.
func (d *Driver) Run(ctx context.Context, txtFiles []string) (*progress.BatchProgress, error) {
	lockPath := filepath.Join(d.WorkDir, LockFileName)
	release, ok, err := progress.Lock(lockPath)
	if err != nil {
		return nil, fmt.Errorf("batch: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBatchAlreadyRunning
	}
	defer release()

	progressPath := filepath.Join(d.WorkDir, ProgressFileName)
	bp, err := progress.LoadBatchProgress(progressPath)
	if err != nil {
		return nil, fmt.Errorf("batch: load progress: %w", err)
	}
	if bp == nil {
		bp = progress.NewBatchProgress(d.InputDir, d.now().UTC())
		sorted := append([]string(nil), txtFiles...)
		sort.Strings(sorted)
		for _, p := range sorted {
			bp.Files = append(bp.Files, &progress.BatchFileEntry{Path: p, Status: progress.StatusPlanned})
		}
		if err := bp.Save(progressPath); err != nil {
			return nil, fmt.Errorf("batch: save initial progress: %w", err)
		}
	}

	for _, entry := range bp.Files {
		if entry.IsTerminal() {
			continue
		}
		if entry.RetryCount >= d.MaxRetries {
			entry.Status = progress.StatusFailed
			d.stampEnd(entry)
			_ = bp.Save(progressPath)
			continue
		}

		entry.Status = progress.StatusProcessing
		start := d.now().UTC()
		entry.StartTime = &start
		_ = bp.Save(progressPath)

		if err := d.Process(ctx, entry.Path); err != nil {
			entry.RetryCount++
			entry.Error = err.Error()
			if entry.RetryCount >= d.MaxRetries {
				entry.Status = progress.StatusFailed
			} else {
				entry.Status = progress.StatusPlanned
			}
			d.Logger.Warn("batch entry failed", zap.String("path", entry.Path), zap.Int("retry_count", entry.RetryCount), zap.Error(err))
		} else {
			entry.Status = progress.StatusCompleted
		}
		d.stampEnd(entry)
		_ = bp.Save(progressPath)
	}

	if bp.AllTerminal() {
		if err := progress.AppendHistory(filepath.Join(d.WorkDir, HistoryFileName), bp); err != nil {
			d.Logger.Warn("failed to append batch history", zap.Error(err))
		}
		if err := progress.DeleteBatchProgress(progressPath); err != nil {
			d.Logger.Warn("failed to delete batch progress", zap.Error(err))
		}
	}

	return bp, nil
}

func (d *Driver) stampEnd(entry *progress.BatchFileEntry) {
	end := d.now().UTC()
	entry.EndTime = &end
}
