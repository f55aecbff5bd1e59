package chunker

import "strings"

// closingPunctuation are sentence/clause-closing marks; the buffer is
// flushed after one of these only when the clause does not continue
// (see continuationPunctuation) and a trigger rune (see
// triggerPunctuation) follows it.
var closingPunctuation = map[rune]bool{
	'。': true, '！': true, '？': true, '…': true,
	'”': true, '’': true, '」': true, '』': true, '】': true, '》': true,
	'；': true, '.': true, '!': true, '?': true, ';': true,
}

// continuationPunctuation are marks that, immediately following (or
// separated by a single space from) a closing-punctuation rune, mean
// the clause is still continuing and the buffer must not flush yet
// (e.g. "。”" or "？》" stay together). Ported from
// split_on_punctuation_contextual's inline continuation check.
var continuationPunctuation = map[rune]bool{
	'”': true, '」': true, '》': true, '】': true, '。': true, '.': true, '…': true,
}

// triggerPunctuation are the paragraph-start markers that must follow a
// closing-punctuation rune (directly, or after a single space) for the
// buffer to flush: a newline or the opening quote/bracket beginning the
// next passage. End-of-string is handled by the unconditional trailing
// flush() after the loop, matching the Python source's final residual
// flush.
var triggerPunctuation = map[rune]bool{
	'\n': true, '“': true, '【': true, '《': true, '「': true,
}

// splitOnPunctuationContextual walks text rune-by-rune, grouping it into
// paragraph-sized units at sentence/clause boundaries. Grounded on
// original_source/cli_translator_ORIGINAL.py's
// split_on_punctuation_contextual: a double newline (or newline run)
// always flushes; a closing-punctuation rune flushes only when the next
// non-continuation character is a paragraph-start trigger (newline or
// opening quote/bracket) or end-of-string — not on every sentence end.
func splitOnPunctuationContextual(text string) []string {
	text = normalizeLineBreaks(text)
	runes := []rune(text)
	n := len(runes)

	var out []string
	var buf strings.Builder

	flush := func() {
		s := strings.TrimSpace(buf.String())
		if s != "" {
			out = append(out, s+"\n\n")
		}
		buf.Reset()
	}

	i := 0
	for i < n {
		r := runes[i]

		if r == '\n' {
			buf.WriteRune(r)
			// Collapse a run of newlines (optionally interleaved with
			// spaces) into a single paragraph break and flush.
			j := i + 1
			sawSecondBreak := false
			for j < n && (runes[j] == '\n' || runes[j] == ' ' || runes[j] == '\t') {
				if runes[j] == '\n' {
					sawSecondBreak = true
				}
				j++
			}
			if sawSecondBreak {
				flush()
				i = j
				continue
			}
			i++
			continue
		}

		buf.WriteRune(r)

		if closingPunctuation[r] {
			next, hasNext := peekRune(runes, i+1)
			nextNext, hasNextNext := peekRune(runes, i+2)

			continuesClause := hasNext && continuationPunctuation[next]
			if !continuesClause && hasNext && next == ' ' && hasNextNext && continuationPunctuation[nextNext] {
				continuesClause = true
			}

			if !continuesClause {
				triggered := hasNext && triggerPunctuation[next]
				if !triggered && hasNext && next == ' ' && hasNextNext && triggerPunctuation[nextNext] {
					triggered = true
				}
				if triggered {
					flush()
				}
			}
		}

		i++
	}
	flush()

	return out
}

func peekRune(runes []rune, idx int) (rune, bool) {
	if idx < 0 || idx >= len(runes) {
		return 0, false
	}
	return runes[idx], true
}

