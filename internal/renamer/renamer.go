// Package renamer reads a preview of a novel's source file, extracts
// title/author metadata via an LLM, and renames the file to a canonical
// form. A batch driver fans this out across files with a bounded worker
// pool.
//
// Grounded directly on original_source/novel_renamer.py:
// extract_metadata_with_ai, rename_novel_file, process_batch_novels's
// ThreadPoolExecutor worker pool (ported to a
// golang.org/x/sync/semaphore-bounded goroutine fan-out).
package renamer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/Emasoft/enchant-cli-sub000/internal/llmclient"
	"github.com/Emasoft/enchant-cli-sub000/internal/retry"
	"github.com/Emasoft/enchant-cli-sub000/internal/textutil"
)

const (
	// DefaultPreviewKB is how much of the source file's head is read for
	// metadata extraction.
	DefaultPreviewKB = 35
	// DefaultMinFileSizeBytes enforces a minimum file size before
	// attempting to rename (spec §4.9).
	DefaultMinFileSizeBytes = 100 * 1024
	// PreviewCharCap is the hard cap on the preview sent to the LLM.
	PreviewCharCap = 1500
)

// systemPrompt mandates JSON output with the five metadata keys, missing
// values filled with the literal "Unknown". Grounded on
// novel_renamer.py's SYSTEM_PROMPT.
const systemPrompt = `You are a metadata extraction assistant for Chinese web novels. Given an excerpt of ` +
	`a novel's opening text, respond with a single JSON object with exactly these keys: ` +
	`"novel_title_original", "novel_title_english", "author_name_original", "author_name_romanized", ` +
	`"author_name_english". If a value cannot be determined, use the literal string "Unknown". ` +
	`Output only the JSON object, nothing else.`

// Metadata is the five-field novel identity extracted from a preview.
type Metadata struct {
	TitleOriginal    string `json:"novel_title_original"`
	TitleEnglish     string `json:"novel_title_english"`
	AuthorOriginal   string `json:"author_name_original"`
	AuthorRomanized  string `json:"author_name_romanized"`
	AuthorEnglish    string `json:"author_name_english"`
}

// Config holds per-run renamer parameters.
type Config struct {
	PreviewKB        int
	MinFileSizeBytes int64
	DryRun           bool
}

// Renamer extracts metadata via an LLM and renames files to their
// canonical form.
type Renamer struct {
	Client *llmclient.Client
	Cfg    Config
}

// New returns a Renamer with spec defaults filled in.
func New(client *llmclient.Client, cfg Config) *Renamer {
	if cfg.PreviewKB == 0 {
		cfg.PreviewKB = DefaultPreviewKB
	}
	if cfg.MinFileSizeBytes == 0 {
		cfg.MinFileSizeBytes = DefaultMinFileSizeBytes
	}
	return &Renamer{Client: client, Cfg: cfg}
}

// canonicalNameRE matches the already-renamed form; files matching it
// are skipped (spec §4.9: "Files already matching the canonical regex
// are skipped").
var canonicalNameRE = regexp.MustCompile(`^.+ by .+ \(.+\) - .+ by .+\.txt$`)

// IsCanonicalName reports whether filename already matches the
// canonical "<title_en> by <author_en> (<author_roman>) - <title_orig>
// by <author_orig>.txt" pattern.
func IsCanonicalName(filename string) bool {
	return canonicalNameRE.MatchString(filename)
}

var invalidChars = regexp.MustCompile(`[\\/*?:"<>|]`)

func sanitizeField(s string) string {
	s = invalidChars.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// BuildCanonicalName renders the target file name, sanitizing every
// field.
func BuildCanonicalName(m Metadata) string {
	return fmt.Sprintf("%s by %s (%s) - %s by %s.txt",
		sanitizeField(m.TitleEnglish), sanitizeField(m.AuthorEnglish), sanitizeField(m.AuthorRomanized),
		sanitizeField(m.TitleOriginal), sanitizeField(m.AuthorOriginal))
}

// parseCanonicalNameRE captures the title_en/author_en prefix of a
// canonical file name for downstream consumers that only need those
// two fields (e.g. chunk/output naming).
var parseCanonicalNameRE = regexp.MustCompile(`^(.+) by (.+) \(.+\) - .+ by .+\.txt$`)

// ParseCanonicalName extracts the English title and author from a
// canonically-named file, returning ok=false if filename doesn't match.
func ParseCanonicalName(filename string) (titleEnglish, authorEnglish string, ok bool) {
	m := parseCanonicalNameRE.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// UniqueTargetPath appends " (k)" with increasing k until a free path is
// found in dir.
func UniqueTargetPath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for k := 1; ; k++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, k, ext))
	}
}

// ExtractMetadata reads sourcePath's preview and calls the metadata LLM,
// retrying HTTP/connection/timeout failures with exponential backoff up
// to 3 attempts (spec §4.9).
func (r *Renamer) ExtractMetadata(ctx context.Context, sourcePath string) (Metadata, error) {
	raw, err := readPreview(sourcePath, r.Cfg.PreviewKB)
	if err != nil {
		return Metadata{}, fmt.Errorf("renamer: read preview: %w", err)
	}

	text, err := textutil.DecodeFileContent(raw)
	if err != nil {
		return Metadata{}, fmt.Errorf("renamer: decode preview: %w", err)
	}
	if r := []rune(text); len(r) > PreviewCharCap {
		text = string(r[:PreviewCharCap])
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = 3

	meta, err := retry.DoValue(ctx, retryCfg, nil, func(attempt int) (Metadata, error) {
		return r.extractOnce(ctx, text)
	})
	if err != nil {
		return Metadata{}, err
	}
	fillUnknown(&meta)
	return meta, nil
}

func (r *Renamer) extractOnce(ctx context.Context, previewText string) (Metadata, error) {
	result, err := r.Client.TranslateMessages(ctx, systemPrompt, previewText, true)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(extractJSONObject(result.Text)), &meta); err != nil {
		return Metadata{}, fmt.Errorf("renamer: parse metadata JSON: %w", err)
	}
	return meta, nil
}

// extractJSONObject trims any prose the model wrapped around the JSON
// object, taking the first {...} span.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func fillUnknown(m *Metadata) {
	for _, f := range []*string{&m.TitleOriginal, &m.TitleEnglish, &m.AuthorOriginal, &m.AuthorRomanized, &m.AuthorEnglish} {
		if strings.TrimSpace(*f) == "" {
			*f = "Unknown"
		}
	}
}

func readPreview(path string, kb int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, kb*1024)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

// RenameResult reports the outcome of renaming one file.
type RenameResult struct {
	SourcePath string
	TargetPath string
	Metadata   Metadata
	Skipped    bool
	Err        error
}

// RenameFile extracts metadata and renames sourcePath to its canonical
// name within the same directory. In dry-run mode it returns the
// proposed metadata without touching the filesystem.
func (r *Renamer) RenameFile(ctx context.Context, sourcePath string) RenameResult {
	base := filepath.Base(sourcePath)
	if IsCanonicalName(base) {
		return RenameResult{SourcePath: sourcePath, TargetPath: sourcePath, Skipped: true}
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return RenameResult{SourcePath: sourcePath, Err: err}
	}
	if info.Size() < r.Cfg.MinFileSizeBytes {
		return RenameResult{SourcePath: sourcePath, TargetPath: sourcePath, Skipped: true}
	}

	meta, err := r.ExtractMetadata(ctx, sourcePath)
	if err != nil {
		return RenameResult{SourcePath: sourcePath, Err: err}
	}

	name := BuildCanonicalName(meta)
	if r.Cfg.DryRun {
		return RenameResult{SourcePath: sourcePath, TargetPath: filepath.Join(filepath.Dir(sourcePath), name), Metadata: meta}
	}

	target, err := UniqueTargetPath(filepath.Dir(sourcePath), name)
	if err != nil {
		return RenameResult{SourcePath: sourcePath, Err: err}
	}
	if err := os.Rename(sourcePath, target); err != nil {
		return RenameResult{SourcePath: sourcePath, Err: err}
	}
	return RenameResult{SourcePath: sourcePath, TargetPath: target, Metadata: meta}
}

// RenameBatch fans RenameFile out across paths with a worker pool sized
// to CPU count by default (spec §4.9), bounded by a semaphore.
func (r *Renamer) RenameBatch(ctx context.Context, paths []string, workers int) []RenameResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(workers))
	results := make([]RenameResult, len(paths))

	done := make(chan struct{})
	remaining := len(paths)
	if remaining == 0 {
		return results
	}

	for i, p := range paths {
		i, p := i, p
		go func() {
			_ = sem.Acquire(ctx, 1)
			defer sem.Release(1)
			results[i] = r.RenameFile(ctx, p)
			done <- struct{}{}
		}()
	}

	for remaining > 0 {
		<-done
		remaining--
	}
	return results
}
