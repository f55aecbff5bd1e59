// Package chapter detects English chapter headings in translated text and
// rewrites duplicate chapter numbers into sub-numbered parts.
//
// Grounded on original_source/make_epub.py: HEADING_RE, WORD_NUMS,
// roman_to_int, words_to_int, parse_num, is_valid_chapter_line and the
// three-pass duplicate-suppression/sub-numbering algorithm in split_text.
package chapter

import (
	"regexp"
	"strconv"
	"strings"
)

// wordNumsPattern lists the English number words HEADING_RE recognizes
// spelled out. The list is not ordered longest-first; the word boundary
// that follows the number in HeadingRE makes the match move on to the
// longer word (e.g. "fourteen" rather than "four").
const wordNumsPattern = `one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|` +
	`thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|` +
	`twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety|hundred|thousand`

// HeadingRE mirrors HEADING_RE: "Chapter"/"Ch."/"Chap." + digits/roman/
// spelled-out number, or "Part"/"Section"/"Book" + number, or "§ N", or a
// bare leading "N." / "N)" / "N:" / "N-" at line start.
var HeadingRE = regexp.MustCompile(
	`(?i)^[^\w]*\s*` +
		`(?:` +
		`(?:chapter|ch\.?|chap\.?)\s*` +
		`(?:(?P<num_d>\d+[a-z]?)|(?P<num_r>[ivxlcdm]+)|` +
		`(?P<num_w>(?:` + wordNumsPattern + `)(?:[-\s](?:` + wordNumsPattern + `))*))` +
		`|` +
		`(?:part|section|book)\s+` +
		`(?:(?P<part_d>\d+)|(?P<part_r>[ivxlcdm]+)|` +
		`(?P<part_w>(?:` + wordNumsPattern + `)(?:[-\s](?:` + wordNumsPattern + `))*))` +
		`|` +
		`§\s*(?P<sec_d>\d+)` +
		`|` +
		`(?P<hash_d>\d+)\s*(?:\.|\)|:|-)?` +
		`)` +
		`\b\s*[:.–—]?\s*(?P<rest>.*)$`,
)

var singleWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16,
	"seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var scaleWords = map[string]int{"hundred": 100, "thousand": 1000}

var romanValues = map[rune]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}

var romanOnlyRE = regexp.MustCompile(`(?i)^[ivxlcdm]+$`)

// RomanToInt converts a Roman numeral string to an int, subtractive-
// notation aware, scanned right to left.
func RomanToInt(s string) (int, bool) {
	total, prev := 0, 0
	lower := strings.ToLower(s)
	runes := []rune(lower)
	for i := len(runes) - 1; i >= 0; i-- {
		val, ok := romanValues[runes[i]]
		if !ok {
			return 0, false
		}
		if val < prev {
			total -= val
		} else {
			total += val
		}
		prev = val
	}
	return total, true
}

// WordsToInt converts a spelled-out English cardinal (e.g. "twenty one",
// "one hundred", "two thousand") to an int.
func WordsToInt(text string) (int, bool) {
	tokens := regexp.MustCompile(`[ \t\-]+`).Split(strings.ToLower(text), -1)
	total, curr := 0, 0
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if v, ok := singleWords[tok]; ok {
			curr += v
			continue
		}
		if v, ok := tensWords[tok]; ok {
			curr += v
			continue
		}
		if v, ok := scaleWords[tok]; ok {
			if curr == 0 {
				curr = 1
			}
			curr *= v
			if tok == "thousand" {
				total += curr
				curr = 0
			}
			continue
		}
		return 0, false
	}
	return total + curr, true
}

var leadingDigitsRE = regexp.MustCompile(`\d+`)

// ParseNum parses whichever capture group HeadingRE matched into a
// chapter number: digit runs (with an optional trailing letter, e.g.
// "14a", stripped), Roman numerals, or spelled-out number words.
func ParseNum(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	if raw[0] >= '0' && raw[0] <= '9' {
		digits := leadingDigitsRE.FindString(raw)
		if digits != "" {
			n, err := strconv.Atoi(digits)
			if err == nil {
				return n, true
			}
		}
	}
	if isAllDigits(raw) {
		n, err := strconv.Atoi(raw)
		if err == nil {
			return n, true
		}
	}
	if romanOnlyRE.MatchString(raw) {
		return RomanToInt(raw)
	}
	return WordsToInt(raw)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// partNotationRE matches an explicit part marker inside a heading's
// trailing text: "N/M" or "[N/M]", "(N of M)"/"(N out of M)",
// "Part"/"pt." followed by a digit, Roman numeral, or spelled-out
// number, or a trailing "- N". Grounded on spec.md §4.2's part-notation
// grammar; make_epub.py's HEADING_RE only recognizes "Part N" as an
// alternate top-level heading, not these embedded multi-part markers,
// so this is a fresh regex rather than a ported one. A bare trailing
// Roman numeral with no "Part"/"pt." prefix is deliberately not matched
// here — it is just part of the chapter title, not a part marker.
var partNotationRE = regexp.MustCompile(
	`(?i)` +
		`\[?(?P<slash_n>\d+)\s*/\s*\d+\]?` +
		`|` +
		`\(\s*(?P<of_n>\d+)\s+(?:of|out of)\s+\d+\s*\)` +
		`|` +
		`\b(?:part|pt\.?)\s+(?:(?P<word_n>` + wordNumsPattern + `)|(?P<roman_n>[ivxlcdm]+)|(?P<digit_n>\d+))\b` +
		`|` +
		`-\s*(?P<dash_n>\d+)\s*$`,
)

// DetectPartIndex scans a heading's trailing text (the subtitle/"rest"
// capture of HeadingRE) for an explicit part marker and returns the
// part number it names, if any.
func DetectPartIndex(rest string) (int, bool) {
	m := partNotationRE.FindStringSubmatch(rest)
	if m == nil {
		return 0, false
	}
	for i, name := range partNotationRE.SubexpNames() {
		if name == "" || m[i] == "" {
			continue
		}
		switch name {
		case "slash_n", "of_n", "dash_n", "digit_n":
			if n, err := strconv.Atoi(m[i]); err == nil {
				return n, true
			}
		case "roman_n":
			return RomanToInt(m[i])
		case "word_n":
			return WordsToInt(m[i])
		}
	}
	return 0, false
}

const specialPrefixChars = `#*>§[](){}|-–—•~/`

// IsValidChapterLine rejects false-positive "chapter" matches: the word
// appearing inside a quoted span, or mid-sentence rather than at the
// start of the line (optionally after punctuation/whitespace only).
func IsValidChapterLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)

	if (strings.HasPrefix(trimmed, `"`) || strings.HasPrefix(trimmed, "'")) && strings.Contains(lower, "chapter") {
		quoteChar := trimmed[0]
		if end := strings.IndexByte(trimmed[1:], quoteChar); end >= 0 {
			endQuote := end + 1
			if strings.Contains(strings.ToLower(trimmed[:endQuote]), "chapter") {
				return false
			}
		}
	}

	chapterPos := strings.Index(lower, "chapter")
	if chapterPos == -1 {
		return true
	}
	if chapterPos == 0 {
		return true
	}

	before := strings.TrimSpace(trimmed[:chapterPos])
	if before != "" && onlySpecialOrSpace(before) {
		return true
	}
	if strings.HasSuffix(before, `"`) || strings.HasSuffix(before, "'") {
		return false
	}
	return false
}

func onlySpecialOrSpace(s string) bool {
	for _, r := range s {
		if strings.ContainsRune(specialPrefixChars, r) || r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		return false
	}
	return true
}
