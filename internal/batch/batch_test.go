package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emasoft/enchant-cli-sub000/internal/progress"
)

func TestRun_AllSucceed_DeletesProgressAndAppendsHistory(t *testing.T) {
	dir := t.TempDir()
	processed := []string{}

	d := New(dir, dir, 0, func(ctx context.Context, path string) error {
		processed = append(processed, path)
		return nil
	}, nil)

	bp, err := d.Run(context.Background(), []string{"b.txt", "a.txt"})
	require.NoError(t, err)
	assert.Len(t, processed, 2)
	assert.Equal(t, []string{"a.txt", "b.txt"}, processed, "files should process in lexicographic order")

	_, statErr := os.Stat(filepath.Join(dir, ProgressFileName))
	assert.True(t, os.IsNotExist(statErr))

	historyData, err := os.ReadFile(filepath.Join(dir, HistoryFileName))
	require.NoError(t, err)
	assert.NotEmpty(t, historyData)
	_ = bp
}

func TestRun_FailingFileDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()

	d := New(dir, dir, 3, func(ctx context.Context, path string) error {
		if path == "bad.txt" {
			return errors.New("boom")
		}
		return nil
	}, nil)

	bp, err := d.Run(context.Background(), []string{"bad.txt", "good.txt"})
	require.NoError(t, err)

	var badEntry, goodEntry *progress.BatchFileEntry
	for _, e := range bp.Files {
		if e.Path == "bad.txt" {
			badEntry = e
		}
		if e.Path == "good.txt" {
			goodEntry = e
		}
	}
	require.NotNil(t, badEntry)
	require.NotNil(t, goodEntry)
	assert.Equal(t, progress.StatusCompleted, goodEntry.Status)
	assert.Equal(t, 1, badEntry.RetryCount)
	assert.Equal(t, progress.StatusPlanned, badEntry.Status, "should remain retryable until MaxRetries reached")
}

func TestRun_RetryExhaustionMarksFailed(t *testing.T) {
	dir := t.TempDir()
	progressPath := filepath.Join(dir, ProgressFileName)

	bp := progress.NewBatchProgress(dir, time.Now().UTC())
	bp.Files = []*progress.BatchFileEntry{
		{Path: "bad.txt", Status: progress.StatusPlanned, RetryCount: 3},
	}
	require.NoError(t, bp.Save(progressPath))

	d := New(dir, dir, 3, func(ctx context.Context, path string) error {
		return errors.New("boom")
	}, nil)

	result, err := d.Run(context.Background(), []string{"bad.txt"})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, progress.StatusFailed, result.Files[0].Status)
}

func TestRun_SecondConcurrentRunFailsLock(t *testing.T) {
	dir := t.TempDir()
	release, ok, err := progress.Lock(filepath.Join(dir, LockFileName))
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	d := New(dir, dir, 0, func(ctx context.Context, path string) error { return nil }, nil)
	_, err = d.Run(context.Background(), []string{"a.txt"})
	assert.ErrorIs(t, err, ErrBatchAlreadyRunning)
}
