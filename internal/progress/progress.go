// Package progress persists the durable per-novel and per-batch
// resume state described in spec §3/§4.11/§4.12 as YAML files, so a
// crashed run can pick back up without redoing completed phases. Lock
// takes a directory-wide advisory file lock that the batch driver holds
// while it writes batch progress; saving or deleting a per-novel file
// takes no lock.
//
// Grounded on original_source/cli_translator_ORIGINAL.py's progress
// JSON file (field shape ported to NovelProgress/BatchProgress here)
// and the teacher's handlers/translate.go in-memory task map (replaced
// with a durable file per SPEC_FULL's resume requirement).
package progress

import (
	"os"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// PhaseStatus is the terminal/non-terminal state of one orchestrator
// phase or batch entry.
type PhaseStatus string

const (
	StatusPending   PhaseStatus = "pending"
	StatusCompleted PhaseStatus = "completed"
	StatusFailed    PhaseStatus = "failed"
	StatusSkipped   PhaseStatus = "skipped"

	StatusPlanned    PhaseStatus = "planned"
	StatusProcessing PhaseStatus = "processing"
)

// PhaseName identifies one of the three orchestrator phases.
type PhaseName string

const (
	PhaseRenaming    PhaseName = "renaming"
	PhaseTranslation PhaseName = "translation"
	PhaseEPUB        PhaseName = "epub"
)

// PhaseRecord is one phase's status, result artifact, and error.
type PhaseRecord struct {
	Status PhaseStatus `yaml:"status"`
	Result string      `yaml:"result,omitempty"`
	Error  string      `yaml:"error,omitempty"`
}

// IsTerminal reports whether the phase will not be retried further.
func (p PhaseRecord) IsTerminal() bool {
	switch p.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// NovelProgress is the durable per-novel resume record (spec §3).
type NovelProgress struct {
	OriginalFile string                       `yaml:"original_file"`
	Phases       map[PhaseName]*PhaseRecord   `yaml:"phases"`
}

// NewNovelProgress initializes a fresh record with all three phases
// pending.
func NewNovelProgress(originalFile string) *NovelProgress {
	return &NovelProgress{
		OriginalFile: originalFile,
		Phases: map[PhaseName]*PhaseRecord{
			PhaseRenaming:    {Status: StatusPending},
			PhaseTranslation: {Status: StatusPending},
			PhaseEPUB:        {Status: StatusPending},
		},
	}
}

// AllTerminal reports whether every phase has reached a terminal
// status, the signal to delete the progress file (spec §4.11).
func (n *NovelProgress) AllTerminal() bool {
	for _, name := range []PhaseName{PhaseRenaming, PhaseTranslation, PhaseEPUB} {
		rec, ok := n.Phases[name]
		if !ok || !rec.IsTerminal() {
			return false
		}
	}
	return true
}

// LoadNovelProgress reads path, returning a fresh record for
// originalFile if the file does not exist.
func LoadNovelProgress(path, originalFile string) (*NovelProgress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewNovelProgress(originalFile), nil
		}
		return nil, err
	}
	var np NovelProgress
	if err := yaml.Unmarshal(data, &np); err != nil {
		return nil, err
	}
	if np.Phases == nil {
		np.Phases = map[PhaseName]*PhaseRecord{}
	}
	return &np, nil
}

// Save writes np to path as YAML.
func (n *NovelProgress) Save(path string) error {
	data, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DeleteNovelProgress removes the progress file; a missing file is not
// an error.
func DeleteNovelProgress(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// BatchFileEntry tracks one input file's batch-run status (spec §3).
type BatchFileEntry struct {
	Path       string      `yaml:"path"`
	Status     PhaseStatus `yaml:"status"`
	StartTime  *time.Time  `yaml:"start_time,omitempty"`
	EndTime    *time.Time  `yaml:"end_time,omitempty"`
	RetryCount int         `yaml:"retry_count"`
	Error      string      `yaml:"error,omitempty"`
}

// IsTerminal reports whether this entry will not be retried further.
func (e BatchFileEntry) IsTerminal() bool {
	switch e.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// BatchProgress is the durable per-batch-run resume record (spec §3).
type BatchProgress struct {
	CreatedAt   time.Time          `yaml:"created_at"`
	InputFolder string             `yaml:"input_folder"`
	Files       []*BatchFileEntry  `yaml:"files"`
}

// NewBatchProgress initializes an empty batch record; Files is
// populated by the caller by enumerating *.txt inputs (spec §4.12).
func NewBatchProgress(inputFolder string, createdAt time.Time) *BatchProgress {
	return &BatchProgress{CreatedAt: createdAt, InputFolder: inputFolder}
}

// AllTerminal reports whether every registered file has reached a
// terminal status.
func (b *BatchProgress) AllTerminal() bool {
	if len(b.Files) == 0 {
		return false
	}
	for _, f := range b.Files {
		if !f.IsTerminal() {
			return false
		}
	}
	return true
}

// LoadBatchProgress reads path, returning nil (not an error) if the
// file does not exist, so the caller can decide whether to create a
// fresh record.
func LoadBatchProgress(path string) (*BatchProgress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var bp BatchProgress
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Save writes b to path as YAML.
func (b *BatchProgress) Save(path string) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DeleteBatchProgress removes the batch progress file; a missing file
// is not an error.
func DeleteBatchProgress(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// AppendHistory appends b as a YAML document to the chronology log at
// path (spec §4.12: "translations_chronology.yml"), creating it if
// necessary.
func AppendHistory(path string, b *BatchProgress) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString("---\n"); err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

// Lock acquires an exclusive advisory lock at lockPath (spec §4.12:
// "translation_batch.lock"), guaranteeing a single batch run per
// working directory. The returned release function must be called to
// unlock.
func Lock(lockPath string) (release func() error, ok bool, err error) {
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !locked {
		return nil, false, nil
	}
	return fl.Unlock, true, nil
}
