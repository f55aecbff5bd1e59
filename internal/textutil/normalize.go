// Package textutil holds the text-normalization helpers shared by the
// chunker and novel translator: newline/space collapsing, advertising-
// pattern stripping and source-file encoding detection.
//
// Grounded on original_source/cli_translator_ORIGINAL.py
// (remove_excess_empty_lines, normalize_spaces, decode_input_file_content,
// detect_file_encoding) and original_source/common_text_utils.py (clean,
// replace_repeated_chars, limit_repeated_chars).
package textutil

import (
	"regexp"
	"strings"
)

var excessBlankLines = regexp.MustCompile(`\n{4,}`)

// CollapseBlankLines collapses any run of 4 or more consecutive newlines
// down to exactly 3, so that after normalization no run of >= 4 newlines
// remains (spec testable property #3). This intentionally diverges from
// the Python source, which collapses runs of >= 5 down to 4 — a run of 4
// newlines still violates the stated invariant; see DESIGN.md Open
// Question 2.
func CollapseBlankLines(text string) string {
	return excessBlankLines.ReplaceAllString(text, "\n\n\n")
}

var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

// NormalizeSpaces strips leading/trailing space on each line and collapses
// runs of internal spaces/tabs to a single space, preserving blank lines.
func NormalizeSpaces(text string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		trimmed := strings.TrimRight(strings.TrimLeft(ln, " \t"), " \t")
		lines[i] = multiSpace.ReplaceAllString(trimmed, " ")
	}
	return strings.Join(lines, "\n")
}

// adPatterns are the five canonical Chinese advertising regexes, applied
// verbatim and case-insensitively, stripped unconditionally before
// chunking (spec §6, resolving Open Question: the source only strips
// these in punctuation mode, this spec requires it everywhere).
var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)吉米小说网\s*[（(]www\.(34gc|jimixs)\.(net|com)[）)]\s*txt电子书下载`),
	regexp.MustCompile(`(?i)吉米小说网\s*[（(]Www\.(34gc|jimixs)\.(net|com)[）)]\s*免费TXT小说下载`),
	regexp.MustCompile(`(?i)吉米小说网\s*[（(]www\.jimixs\.com[）)]\s*免费电子书下载`),
	regexp.MustCompile(`(?i)本电子书由果茶小说网\s*[（(]www\.34gc\.(net|com)[）)]\s*网友上传分享，网址:http://www\.34gc\.net`),
	regexp.MustCompile(`(?i)(http://)?www\.(34gc?|jimixs)\.(net|com)`),
}

// StripAdvertising removes known advertising boilerplate before chunking.
func StripAdvertising(text string) string {
	for _, re := range adPatterns {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

// Normalize applies advertising stripping, blank-line collapsing and space
// normalization in the order required before chunking (spec §4.8 step 2).
func Normalize(text string) string {
	text = StripAdvertising(text)
	text = CollapseBlankLines(text)
	text = NormalizeSpaces(text)
	return text
}
