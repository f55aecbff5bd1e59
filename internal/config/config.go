// Package config consolidates CLI flags, environment variables, and an
// optional config file into a single run configuration (spec §6).
//
// Grounded on the teacher's use of environment variables for API keys
// (backend/translator/client.go reads OPENROUTER_API_KEY-shaped
// settings) and cmd/enchant's urfave/cli/v2 flag set, which populates
// this struct before driving the pipeline.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Emasoft/enchant-cli-sub000/internal/chunker"
	"github.com/Emasoft/enchant-cli-sub000/internal/noveltranslator"
)

// Config is the fully resolved set of run parameters, merged from
// flags, environment variables, and an optional --config file, in
// that precedence order (flags win).
type Config struct {
	InputPath        string `yaml:"input_path"`
	Batch            bool   `yaml:"batch"`
	Resume           bool   `yaml:"resume"`
	SkipRenaming     bool   `yaml:"skip_renaming"`
	SkipTranslating  bool   `yaml:"skip_translating"`
	SkipEPUB         bool   `yaml:"skip_epub"`
	Encoding         string `yaml:"encoding"`
	MaxChars         int    `yaml:"max_chars"`
	SplitMode        string `yaml:"split_mode"`   // PARAGRAPHS | SPLIT_POINTS
	SplitMethod      string `yaml:"split_method"` // paragraph | punctuation
	Remote           bool   `yaml:"remote"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
}

// Default returns spec-mandated defaults (§4.1's 11999-char budget,
// paragraph splitting, local translation).
func Default() Config {
	return Config{
		MaxChars:    chunker.DefaultMaxChars,
		SplitMode:   "PARAGRAPHS",
		SplitMethod: "paragraph",
	}
}

// Load merges a config file (if path is non-empty), environment
// variables, and defaults, returning the merged Config. Callers then
// overlay explicit CLI flags on top of the result.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OpenRouterAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}

	return cfg, nil
}

// NovelTranslatorSplitMode maps the CLI's SPLIT_MODE string onto
// noveltranslator.SplitMode.
func (c Config) NovelTranslatorSplitMode() noveltranslator.SplitMode {
	if c.SplitMode == "SPLIT_POINTS" {
		return noveltranslator.SplitPoints
	}
	return noveltranslator.SplitParagraphs
}

// ParagraphMethod maps the CLI's --split-method string onto
// chunker.ParagraphMethod.
func (c Config) ParagraphMethod() chunker.ParagraphMethod {
	if c.SplitMethod == "punctuation" {
		return chunker.MethodPunctuation
	}
	return chunker.MethodParagraph
}
