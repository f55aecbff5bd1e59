package progress

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNovelProgress_AllPending(t *testing.T) {
	np := NewNovelProgress("source.txt")
	assert.False(t, np.AllTerminal())
	assert.Equal(t, StatusPending, np.Phases[PhaseRenaming].Status)
}

func TestNovelProgress_SaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "novel.yml")

	np := NewNovelProgress("source.txt")
	np.Phases[PhaseRenaming] = &PhaseRecord{Status: StatusCompleted, Result: "renamed.txt"}
	require.NoError(t, np.Save(path))

	loaded, err := LoadNovelProgress(path, "source.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, loaded.Phases[PhaseRenaming].Status)
	assert.Equal(t, "renamed.txt", loaded.Phases[PhaseRenaming].Result)
}

func TestLoadNovelProgress_MissingFileReturnsFresh(t *testing.T) {
	dir := t.TempDir()
	np, err := LoadNovelProgress(filepath.Join(dir, "missing.yml"), "source.txt")
	require.NoError(t, err)
	assert.Equal(t, "source.txt", np.OriginalFile)
	assert.Equal(t, StatusPending, np.Phases[PhaseTranslation].Status)
}

func TestNovelProgress_AllTerminal(t *testing.T) {
	np := NewNovelProgress("source.txt")
	np.Phases[PhaseRenaming].Status = StatusCompleted
	np.Phases[PhaseTranslation].Status = StatusCompleted
	np.Phases[PhaseEPUB].Status = StatusSkipped
	assert.True(t, np.AllTerminal())
}

func TestDeleteNovelProgress_MissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, DeleteNovelProgress(filepath.Join(dir, "missing.yml")))
}

func TestBatchProgress_SaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yml")

	bp := NewBatchProgress(dir, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bp.Files = append(bp.Files, &BatchFileEntry{Path: "a.txt", Status: StatusPlanned})
	require.NoError(t, bp.Save(path))

	loaded, err := LoadBatchProgress(path)
	require.NoError(t, err)
	require.Len(t, loaded.Files, 1)
	assert.Equal(t, StatusPlanned, loaded.Files[0].Status)
}

func TestLoadBatchProgress_MissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	bp, err := LoadBatchProgress(filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)
	assert.Nil(t, bp)
}

func TestBatchProgress_AllTerminal(t *testing.T) {
	bp := NewBatchProgress("dir", time.Now().UTC())
	bp.Files = []*BatchFileEntry{
		{Path: "a.txt", Status: StatusCompleted},
		{Path: "b.txt", Status: StatusFailed},
	}
	assert.True(t, bp.AllTerminal())

	bp.Files = append(bp.Files, &BatchFileEntry{Path: "c.txt", Status: StatusProcessing})
	assert.False(t, bp.AllTerminal())
}

func TestAppendHistory_AppendsDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.yml")

	bp := NewBatchProgress(dir, time.Now().UTC())
	require.NoError(t, AppendHistory(path, bp))
	require.NoError(t, AppendHistory(path, bp))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countOccurrences(string(data), "---"))
}

func TestLock_SecondAcquireFails(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "batch.lock")

	release, ok, err := Lock(lockPath)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, ok2, err := Lock(lockPath)
	require.NoError(t, err)
	assert.False(t, ok2)
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}
