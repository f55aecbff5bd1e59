// Package noveltranslator drives one already-decoded novel through
// normalization, chunking, per-chunk translation with resume support,
// and final concatenation plus a cost log.
//
// Grounded on original_source/cli_translator_ORIGINAL.py
// (decode_input_file_content/detect_file_encoding,
// remove_excess_empty_lines/normalize_spaces) and the teacher's
// handlers/translate.go processTranslation (per-block progress/
// fatal-on-exhaustion shape, bracketed log-line idiom — here emitted via
// go.uber.org/zap instead of log.Printf, per SPEC_FULL's ambient stack).
package noveltranslator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Emasoft/enchant-cli-sub000/internal/chunker"
	"github.com/Emasoft/enchant-cli-sub000/internal/chunktranslator"
	"github.com/Emasoft/enchant-cli-sub000/internal/costtracker"
	"github.com/Emasoft/enchant-cli-sub000/internal/textutil"
)

// Config holds per-run translation parameters.
type Config struct {
	MaxChars         int
	SplitMode        SplitMode
	ParagraphMethod  chunker.ParagraphMethod
	MaxChunkRetries  int // default 10
	Remote           bool
}

// SplitMode selects the coarse chunking strategy, resolving the
// split_mode/split-method Open Question: PARAGRAPHS runs the §4.1
// paragraph-budget chunker (choosing its internal algorithm via
// ParagraphMethod); SplitPoints runs the chapter-marker coarse splitter.
type SplitMode int

const (
	SplitParagraphs SplitMode = iota
	SplitPoints
)

// ErrFatalChunk is returned when a chunk exhausts its retry budget; per
// spec §4.8 step 5 the caller must emit this structured error and exit
// with code 1.
type ErrFatalChunk struct {
	ChunkNumber int
	Attempts    int
	LastErr     error
	Title       string
	Author      string
	OutputPath  string
}

func (e *ErrFatalChunk) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempts (title=%q author=%q output=%q): %v",
		e.ChunkNumber, e.Attempts, e.Title, e.Author, e.OutputPath, e.LastErr)
}

func (e *ErrFatalChunk) Unwrap() error { return e.LastErr }

// Translator drives one novel through C1 (chunking) and C7 (chunk
// translation), with resume-by-file-existence and a durable AI_COSTS.log.
type Translator struct {
	Cfg        Config
	ChunkTr    *chunktranslator.Translator
	Tracker    *costtracker.Tracker
	Logger     *zap.Logger
}

// New builds a Translator; a nil tracker defaults to the process-wide
// costtracker singleton and a nil logger to a no-op logger.
func New(cfg Config, chunkTr *chunktranslator.Translator, tracker *costtracker.Tracker, logger *zap.Logger) *Translator {
	if cfg.MaxChunkRetries == 0 {
		cfg.MaxChunkRetries = 10
	}
	if tracker == nil {
		tracker = costtracker.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{Cfg: cfg, ChunkTr: chunkTr, Tracker: tracker, Logger: logger}
}

// SanitizeDirName implements spec §4.8 step 3: remove \/*?:"<>| , collapse
// runs of "- _ .", trim to 100 chars.
var invalidDirChars = regexp.MustCompile(`[\\/*?:"<>|]`)
var repeatedSeparators = regexp.MustCompile(`[-_.]{2,}`)

func SanitizeDirName(englishTitle, englishAuthor string) string {
	name := englishTitle + " by " + englishAuthor
	name = invalidDirChars.ReplaceAllString(name, "")
	name = repeatedSeparators.ReplaceAllStringFunc(name, func(s string) string {
		return string(s[0])
	})
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > 100 {
		name = string(r[:100])
	}
	return name
}

var chunkFileRE = regexp.MustCompile(`^(.+) by (.+) - Chunk_(\d{6})\.txt$`)

// ExistingChunkNumbers implements spec §4.8 step 4: scan outputDir for
// already-completed chunk files and return their numbers.
func ExistingChunkNumbers(outputDir, title, author string) (map[int]bool, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]bool{}, nil
		}
		return nil, err
	}
	done := make(map[int]bool)
	for _, e := range entries {
		m := chunkFileRE.FindStringSubmatch(e.Name())
		if m == nil || m[1] != title || m[2] != author {
			continue
		}
		n, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		done[n] = true
	}
	return done, nil
}

// ChunkFileName renders the 6-digit zero-padded chunk file name.
func ChunkFileName(title, author string, chunkNumber int) string {
	return fmt.Sprintf("%s by %s - Chunk_%06d.txt", title, author, chunkNumber)
}

// Translate runs the full novel pipeline: normalize, chunk, translate
// each missing chunk (resuming from already-completed ones), then
// concatenate and write a cost log. rawText is the already
// encoding-decoded source text.
func (t *Translator) Translate(ctx context.Context, rawText, title, author, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("noveltranslator: create output dir: %w", err)
	}

	normalized := textutil.Normalize(rawText)

	var chunks []string
	switch t.Cfg.SplitMode {
	case SplitPoints:
		chunks = chunker.SplitAtChapterMarkers(normalized, t.Cfg.MaxChars)
	default:
		chunks = chunker.Chunk(normalized, t.Cfg.MaxChars, t.Cfg.ParagraphMethod)
	}

	done, err := ExistingChunkNumbers(outputDir, title, author)
	if err != nil {
		return fmt.Errorf("noveltranslator: scan existing chunks: %w", err)
	}

	// Per spec §4.8 step 5: bounded retry per chunk, exponential backoff
	// capped at 60s. There is no separate retry loop here: the bounds are
	// applied by overriding C7's own per-pass retry configuration.
	t.ChunkTr.RetryConfig.MaxRetries = t.Cfg.MaxChunkRetries
	t.ChunkTr.RetryConfig.WaitMax = 60 * time.Second

	for i, chunkText := range chunks {
		chunkNum := i + 1
		if done[chunkNum] {
			continue
		}
		isLast := chunkNum == len(chunks)

		t.Logger.Info("translating chunk", zap.Int("chunk", chunkNum), zap.Int("total", len(chunks)), zap.String("title", title))

		translated, err := t.translateChunkWithRetry(ctx, chunkText, isLast)
		if err != nil {
			outPath := filepath.Join(outputDir, ChunkFileName(title, author, chunkNum))
			return &ErrFatalChunk{ChunkNumber: chunkNum, Attempts: t.Cfg.MaxChunkRetries, LastErr: err, Title: title, Author: author, OutputPath: outPath}
		}

		outPath := filepath.Join(outputDir, ChunkFileName(title, author, chunkNum))
		if err := os.WriteFile(outPath, []byte(translated), 0o644); err != nil {
			return fmt.Errorf("noveltranslator: write chunk %d: %w", chunkNum, err)
		}
	}

	if err := t.concatenateChunks(outputDir, title, author, len(chunks)); err != nil {
		return err
	}

	if t.Cfg.Remote {
		if err := t.writeCostLog(outputDir, title, author, len(chunks)); err != nil {
			return err
		}
	}

	return nil
}

func (t *Translator) translateChunkWithRetry(ctx context.Context, chunkText string, isLast bool) (string, error) {
	return t.ChunkTr.Translate(ctx, chunkText, isLast)
}

func (t *Translator) concatenateChunks(outputDir, title, author string, total int) error {
	var parts []string
	for i := 1; i <= total; i++ {
		path := filepath.Join(outputDir, ChunkFileName(title, author, i))
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("noveltranslator: read chunk %d for concatenation: %w", i, err)
		}
		parts = append(parts, string(content))
	}
	final := strings.Join(parts, "\n\n")
	finalPath := filepath.Join(outputDir, fmt.Sprintf("translated_%s by %s.txt", title, author))
	return os.WriteFile(finalPath, []byte(final), 0o644)
}

func (t *Translator) writeCostLog(outputDir, title, author string, totalChunks int) error {
	summary := t.Tracker.Summary()
	var b strings.Builder
	fmt.Fprintf(&b, "Novel: %s by %s\n", title, author)
	fmt.Fprintf(&b, "Chunks: %d\n", totalChunks)
	fmt.Fprintf(&b, "Total cost: $%.4f\n", summary.TotalCost)
	fmt.Fprintf(&b, "Total tokens: %d (prompt=%d completion=%d)\n", summary.TotalTokens, summary.PromptTokens, summary.CompletionTokens)
	fmt.Fprintf(&b, "Requests: %d\n", summary.RequestCount)
	if totalChunks > 0 {
		fmt.Fprintf(&b, "Average cost/chunk: $%.4f\n", summary.TotalCost/float64(totalChunks))
	}
	return os.WriteFile(filepath.Join(outputDir, "AI_COSTS.log"), []byte(b.String()), 0o644)
}
