// Command enchant drives a novel (or a directory of novels) through
// the rename, translate, and EPUB-assembly pipeline.
//
// Grounded on standardbeagle-lci/cmd/lci/main.go's cli.App/Flags wiring
// idiom and context.WithCancel/signal.Notify shutdown pattern (here
// reduced to cancelling the run context on SIGINT/SIGTERM and exiting
// with code 130), and the
// teacher's backend/main.go server-bootstrap logging shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Emasoft/enchant-cli-sub000/internal/batch"
	"github.com/Emasoft/enchant-cli-sub000/internal/chunktranslator"
	"github.com/Emasoft/enchant-cli-sub000/internal/config"
	"github.com/Emasoft/enchant-cli-sub000/internal/costtracker"
	"github.com/Emasoft/enchant-cli-sub000/internal/epubbuilder"
	"github.com/Emasoft/enchant-cli-sub000/internal/guardian"
	"github.com/Emasoft/enchant-cli-sub000/internal/llmclient"
	"github.com/Emasoft/enchant-cli-sub000/internal/noveltranslator"
	"github.com/Emasoft/enchant-cli-sub000/internal/orchestrator"
	"github.com/Emasoft/enchant-cli-sub000/internal/progress"
	"github.com/Emasoft/enchant-cli-sub000/internal/renamer"
	"github.com/Emasoft/enchant-cli-sub000/internal/textutil"
)

func main() {
	app := &cli.App{
		Name:                   "enchant",
		Usage:                  "Rename, translate, and package Chinese web novels into EPUBs",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "batch", Usage: "Treat the input path as a directory of .txt novels"},
			&cli.BoolFlag{Name: "resume", Usage: "Resume a previously interrupted run"},
			&cli.BoolFlag{Name: "skip-renaming", Usage: "Skip the metadata-extraction renaming phase"},
			&cli.BoolFlag{Name: "skip-translating", Usage: "Skip the chunk-translation phase"},
			&cli.BoolFlag{Name: "skip-epub", Usage: "Skip EPUB assembly"},
			&cli.StringFlag{Name: "encoding", Usage: "Force a source-file encoding instead of auto-detecting"},
			&cli.IntFlag{Name: "max_chars", Usage: "Maximum characters per translation chunk", Value: 11999},
			&cli.StringFlag{Name: "split_mode", Usage: "PARAGRAPHS or SPLIT_POINTS", Value: "PARAGRAPHS"},
			&cli.StringFlag{Name: "split-method", Usage: "paragraph or punctuation", Value: "paragraph"},
			&cli.BoolFlag{Name: "remote", Usage: "Use the remote (OpenRouter) translation endpoint instead of local"},
			&cli.StringFlag{Name: "openai-api-key", Usage: "API key for the local OpenAI-compatible endpoint"},
			&cli.StringFlag{Name: "config", Usage: "Path to an optional YAML config file"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "enchant: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("enchant: missing input path", 1)
	}
	inputPath := c.Args().Get(0)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	cfg.InputPath = inputPath
	cfg.Batch = c.Bool("batch")
	cfg.Resume = c.Bool("resume")
	cfg.SkipRenaming = c.Bool("skip-renaming")
	cfg.SkipTranslating = c.Bool("skip-translating")
	cfg.SkipEPUB = c.Bool("skip-epub")
	cfg.Encoding = c.String("encoding")
	if c.IsSet("max_chars") {
		cfg.MaxChars = c.Int("max_chars")
	}
	if c.IsSet("split_mode") {
		cfg.SplitMode = c.String("split_mode")
	}
	if c.IsSet("split-method") {
		cfg.SplitMethod = c.String("split-method")
	}
	cfg.Remote = c.Bool("remote")
	if c.IsSet("openai-api-key") {
		cfg.OpenAIAPIKey = c.String("openai-api-key")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return cli.Exit(fmt.Sprintf("enchant: build logger: %v", err), 1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	app := newApplication(cfg, logger)
	app.guard.Start()
	defer app.guard.Stop()

	var runErr error
	if cfg.Batch {
		runErr = app.runBatch(ctx, inputPath)
	} else {
		runErr = app.runSingle(ctx, inputPath)
	}

	if ctx.Err() != nil {
		return cli.Exit("enchant: interrupted", 130)
	}
	if runErr != nil {
		return cli.Exit(fmt.Sprintf("enchant: %v", runErr), 1)
	}
	return nil
}

// application bundles the wired pipeline components for one run.
type application struct {
	cfg    config.Config
	logger *zap.Logger
	orch   *orchestrator.Orchestrator
	guard  *guardian.Guardian
}

func newApplication(cfg config.Config, logger *zap.Logger) *application {
	llmCfg := llmclient.Config{
		APIKey: cfg.OpenAIAPIKey,
		Remote: cfg.Remote,
	}
	if cfg.Remote {
		llmCfg.APIKey = cfg.OpenRouterAPIKey
		llmCfg.APIURL = "https://openrouter.ai/api/v1/chat/completions"
		llmCfg.Model = "deepseek/deepseek-chat"
	} else {
		llmCfg.APIURL = "http://localhost:1234/v1/chat/completions"
		llmCfg.Model = "local-model"
	}
	client := llmclient.New(llmCfg)

	tracker := costtracker.Default()

	prompts := chunktranslator.LocalPrompts
	if cfg.Remote {
		prompts = chunktranslator.RemotePrompts
	}
	chunkTr := chunktranslator.New(client, prompts, chunktranslator.TwoPass, tracker)

	translator := noveltranslator.New(noveltranslator.Config{
		MaxChars:        cfg.MaxChars,
		SplitMode:       cfg.NovelTranslatorSplitMode(),
		ParagraphMethod: cfg.ParagraphMethod(),
		Remote:          cfg.Remote,
	}, chunkTr, tracker, logger)

	rn := renamer.New(client, renamer.Config{
		PreviewKB:        renamer.DefaultPreviewKB,
		MinFileSizeBytes: renamer.DefaultMinFileSizeBytes,
	})

	guardCfg := guardian.Config{ProcessName: "enchant", KillDuplicates: true}
	guard := guardian.New(guardCfg, logger)

	hooks := orchestrator.Hooks{
		Renaming: func(ctx context.Context, path string) (string, error) {
			if cfg.SkipRenaming {
				return path, nil
			}
			res := rn.RenameFile(ctx, path)
			if res.Err != nil {
				return "", res.Err
			}
			return res.TargetPath, nil
		},
		Translation: func(ctx context.Context, path string) (string, error) {
			return translateNovel(ctx, path, cfg, translator, logger)
		},
		EPUB: func(ctx context.Context, path, outputDir string) (string, error) {
			title, author := titleAuthorFromPath(path)
			return assembleEPUB(outputDir, title, author, logger)
		},
	}

	orch := orchestrator.New(hooks, logger)

	return &application{cfg: cfg, logger: logger, orch: orch, guard: guard}
}

func titleAuthorFromPath(path string) (title, author string) {
	if t, a, ok := renamer.ParseCanonicalName(filepath.Base(path)); ok {
		return t, a
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return stem, "Unknown"
}

func translateNovel(ctx context.Context, path string, cfg config.Config, translator *noveltranslator.Translator, logger *zap.Logger) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	var text string
	if cfg.Encoding != "" {
		text, err = textutil.DecodeFileContentAs(raw, cfg.Encoding)
	} else {
		text, err = textutil.DecodeFileContent(raw)
	}
	if err != nil {
		return "", fmt.Errorf("decode source: %w", err)
	}

	title, author := titleAuthorFromPath(path)
	outputDir := filepath.Join(filepath.Dir(path), noveltranslator.SanitizeDirName(title, author))

	if err := translator.Translate(ctx, text, title, author, outputDir); err != nil {
		logger.Error("translation failed", zap.String("path", path), zap.Error(err))
		return "", err
	}
	return outputDir, nil
}

func assembleEPUB(outputDir, title, author string, logger *zap.Logger) (string, error) {
	outPath := filepath.Join(outputDir, title+" by "+author+".epub")
	issues, headings, err := epubbuilder.FromDirectory(outputDir, outPath, title, author, true, false, epubbuilder.Options{Language: "en"})
	if err != nil {
		return "", fmt.Errorf("build epub: %w", err)
	}
	for _, issue := range issues {
		logger.Warn("chapter sequence issue", zap.String("title", title), zap.String("issue", issue))
	}
	for _, h := range headings {
		if h.PartIndex > 0 {
			logger.Debug("multi-part chapter detected",
				zap.String("title", title), zap.Int("chapter", h.ChapterNumber), zap.Int("part", h.PartIndex))
		}
	}
	return outPath, nil
}

// runSingle drives one novel file through the orchestrator.
func (a *application) runSingle(ctx context.Context, path string) error {
	skip := orchestrator.SkipFlags{Renaming: a.cfg.SkipRenaming, Translation: a.cfg.SkipTranslating, EPUB: a.cfg.SkipEPUB}
	result, err := a.orch.Run(ctx, path, skip, a.cfg.Resume)
	if err != nil {
		return err
	}
	if result.Failed {
		return fmt.Errorf("phase %s failed: %w", result.FailedPhase, result.Err)
	}
	return nil
}

// runBatch drives every *.txt file in dir through the orchestrator via
// the directory-wide batch driver.
func (a *application) runBatch(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read batch directory: %w", err)
	}

	var txtFiles []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		txtFiles = append(txtFiles, filepath.Join(dir, e.Name()))
	}

	driver := batch.New(dir, dir, batch.DefaultMaxRetries, func(ctx context.Context, path string) error {
		return a.runSingle(ctx, path)
	}, a.logger)

	bp, err := driver.Run(ctx, txtFiles)
	if err != nil {
		return err
	}

	var failed int
	for _, f := range bp.Files {
		if f.Status == progress.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(bp.Files))
	}
	return nil
}
