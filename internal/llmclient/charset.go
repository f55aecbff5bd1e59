package llmclient

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

var thinkBlockRE = regexp.MustCompile(`(?s)<think>.*?</think>\n?`)
var thinkingBlockRE = regexp.MustCompile(`(?s)<thinking>.*?</thinking>\n?`)

// RemoveThinkingBlock strips <think>...</think> and <thinking>...</thinking>
// blocks emitted by reasoning models, grounded on
// original_source/translation_service.py's remove_thinking_block.
func RemoveThinkingBlock(content string) string {
	content = thinkBlockRE.ReplaceAllString(content, "")
	content = thinkingBlockRE.ReplaceAllString(content, "")
	return content
}

// IsLatinCharset reports whether text is predominantly Latin-script,
// grounded on original_source/translation_service.py's is_latin_charset/
// is_latin_char: count non-whitespace characters, classify each as Latin
// (ASCII letters/digits/punctuation fast path; else Unicode-script
// lookup), and compare the non-Latin/Latin ratio against threshold.
func IsLatinCharset(text string, threshold float64) bool {
	if isBlank(text) {
		return true
	}

	var total, latin int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isAllowedASCII(r) {
			latin++
			continue
		}
		if isLatinChar(r) {
			latin++
		}
	}

	if total == 0 {
		return true
	}
	if latin == 0 {
		return false
	}

	nonLatin := total - latin
	ratio := float64(nonLatin) / float64(latin)
	return ratio < threshold
}

func isBlank(text string) bool {
	if text == "" {
		return true
	}
	for _, r := range text {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// isAllowedASCII mirrors Python's ALLOWED_ASCII = ascii_letters + digits
// + punctuation.
func isAllowedASCII(r rune) bool {
	if r > utf8.RuneSelf {
		return false
	}
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return isASCIIPunctuation(byte(r))
}

func isASCIIPunctuation(b byte) bool {
	switch {
	case b >= '!' && b <= '/':
		return true
	case b >= ':' && b <= '@':
		return true
	case b >= '[' && b <= '`':
		return true
	case b >= '{' && b <= '~':
		return true
	}
	return false
}

// isLatinChar mirrors is_latin_char: non-ASCII characters are Latin if
// they are digits, or if Go's Unicode script tables classify them as
// the Latin script (the nearest Go equivalent of Python's
// unicodedata.name(char) containing "LATIN").
func isLatinChar(r rune) bool {
	if unicode.IsDigit(r) {
		return true
	}
	return unicode.Is(unicode.Latin, r)
}
