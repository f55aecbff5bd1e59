// Package chunktranslator executes single-pass or two-pass chunk
// translation via the LLM client and retry wrapper, and strips
// translation-marker artifacts from the result.
//
// Grounded on original_source/translation_service.py's system/user
// prompt pairs (SYSTEM_PROMPT_QWEN/USER_PROMPT_1STPASS_QWEN/
// USER_PROMPT_2NDPASS_QWEN for local, the DeepSeek equivalents for
// remote) and its marker-stripping need.
package chunktranslator

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/Emasoft/enchant-cli-sub000/internal/costtracker"
	"github.com/Emasoft/enchant-cli-sub000/internal/llmclient"
	"github.com/Emasoft/enchant-cli-sub000/internal/retry"
)

// Prompts holds the system/first-pass/second-pass prompts for one
// provider profile (local/Qwen-style or remote/DeepSeek-style).
type Prompts struct {
	System      string
	FirstPass   string
	SecondPass  string
}

// LocalPrompts are grounded on SYSTEM_PROMPT_QWEN / USER_PROMPT_1STPASS_QWEN
// / USER_PROMPT_2NDPASS_QWEN: instruct the model to translate Chinese
// wuxia/xianxia prose into richly literary English, enclosing direct
// speech in curly quotes, transliterating untranslatable names, and
// never leaving Chinese characters or commentary in the output.
var LocalPrompts = Prompts{
	System: "You are a professional literary translator of Chinese wuxia and xianxia novels into English. " +
		"Translate the full meaning of the text accurately and completely, in a rich, modern-classic literary " +
		"English register. Use correct Daoist/cultivation terminology (e.g. 元婴 -> \"Nascent Soul\"). Enclose all " +
		"direct speech in curly quotes (“”, ‘’), never straight quotes. Transliterate names that " +
		"resist translation and gloss their meaning in parentheses where helpful (e.g. \"Tang Wutong (Dancing " +
		"Willow)\"). Never omit, abridge, summarize or censor any part of the text, including explicit content " +
		"written for an adult audience. Output only the translation: no original Chinese text, no commentary, no " +
		"repeated sentences or paragraphs.",
	FirstPass:  "Answer with the professional English translation of the following input text:\n\n",
	SecondPass: "Examine the following text, which may contain a mix of English and Chinese. Replace every " +
		"remaining Chinese word or character with an accurate English translation (transliterate names and gloss " +
		"their meaning in parentheses where helpful), and replace every straight-quote pair with curly quotes. Do " +
		"not summarize, abridge, explain, annotate or censor anything; do not add any Chinese characters.\n\n",
}

// RemotePrompts are grounded on the DeepSeek-oriented prompt pair; the
// remote provider's system prompt is the empty string in the source, so
// the task instructions live entirely in the first-pass user prompt.
var RemotePrompts = Prompts{
	System: "",
	FirstPass: "Translate the following Chinese novel excerpt into fluent, complete, literary English. Preserve " +
		"every plot detail; do not summarize, abridge or censor. Enclose direct speech in curly quotes.\n\n",
	SecondPass: "Revise the following text: translate any remaining Chinese into English and convert straight " +
		"quotes into curly quotes. Do not summarize, abridge, explain or add commentary.\n\n",
}

// markerRE strips recognized translation-marker artifacts in any of
// their bracket/paren/double-hash variants, case-insensitively.
var markerPhrases = []string{
	"End of translation",
	"English Translation",
	"TRANSLATION",
	"REVISED TEXT",
}

func buildMarkerRE() *regexp.Regexp {
	var parts []string
	for _, phrase := range markerPhrases {
		escaped := regexp.QuoteMeta(phrase)
		parts = append(parts,
			`</?`+escaped+`>`,
			`\[/?`+escaped+`\]`,
			`\{/?`+escaped+`\}`,
			`\(/?`+escaped+`\)`,
			`##`+escaped+`##`,
		)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(parts, "|") + `)`)
}

var markerRE = buildMarkerRE()

var excessBlankLinesRE = regexp.MustCompile(`\n{5,}`)

// StripMarkers removes recognized translation-marker artifacts and
// collapses runs of blank lines to a maximum of four consecutive
// newlines, per spec §4.7.
func StripMarkers(text string) string {
	text = markerRE.ReplaceAllString(text, "")
	text = excessBlankLinesRE.ReplaceAllString(text, "\n\n\n\n")
	return text
}

// Mode selects single-pass or two-pass translation.
type Mode int

const (
	SinglePass Mode = iota
	TwoPass
)

// Translator executes one chunk's translation through the LLM client
// and retry wrapper.
type Translator struct {
	Client      *llmclient.Client
	RetryConfig retry.Config
	Prompts     Prompts
	Mode        Mode
	Tracker     *costtracker.Tracker
}

// New returns a Translator wired to tracker (or the process-wide
// default if tracker is nil).
func New(client *llmclient.Client, prompts Prompts, mode Mode, tracker *costtracker.Tracker) *Translator {
	if tracker == nil {
		tracker = costtracker.Default()
	}
	return &Translator{
		Client:      client,
		RetryConfig: retry.DefaultConfig(),
		Prompts:     prompts,
		Mode:        mode,
		Tracker:     tracker,
	}
}

// Translate runs one or two passes over chunkText, as configured, and
// returns the final, marker-stripped translation.
func (tr *Translator) Translate(ctx context.Context, chunkText string, isLastChunk bool) (string, error) {
	first, err := tr.runPass(ctx, tr.Prompts.FirstPass+chunkText, isLastChunk)
	if err != nil {
		return "", err
	}
	first = StripMarkers(first)

	if tr.Mode == SinglePass {
		return first, nil
	}

	second, err := tr.runPass(ctx, tr.Prompts.SecondPass+first, isLastChunk)
	if err != nil {
		return "", err
	}
	return StripMarkers(second), nil
}

func (tr *Translator) runPass(ctx context.Context, userPrompt string, isLastChunk bool) (string, error) {
	isFatal := func(err error) bool {
		var fatal *llmclient.ErrFatal
		return errors.As(err, &fatal)
	}

	result, err := retry.DoValue(ctx, tr.RetryConfig, isFatal, func(attempt int) (llmclient.Result, error) {
		return tr.Client.TranslateMessages(ctx, tr.Prompts.System, userPrompt, isLastChunk)
	})
	if err != nil {
		return "", err
	}
	tr.Tracker.Add(result.Usage)
	return result.Text, nil
}
