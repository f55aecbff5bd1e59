package chapter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Emasoft/enchant-cli-sub000/internal/model"
)

// rawChapter is one chapter collected by the first pass, before
// sub-numbering.
type rawChapter struct {
	title         string
	content       string
	num           int
	hasNum        bool
	lineNum       int
	subtitle      string
	partMarker    int
	hasPartMarker bool
}

// Chapter is one chapter (or the leading "Front Matter"/"Content" block)
// produced by Split.
type Chapter struct {
	Title   string
	Content string
}

// Split partitions text into chapters, mirroring original_source/
// make_epub.py's split_text: first pass detects headings with position/
// quote validation and a 4-line duplicate-suppression window, second
// pass counts how many times each chapter number occurs, third pass
// sub-numbers repeated chapter numbers (Chapter N -> Chapter N.1, N.2, ...).
// The returned int slice is the raw chapter-number sequence in document
// order, for use by the sequence validator (C3). The returned headings
// slice is one model.ChapterHeading per detected heading, PartIndex set
// either from an explicit part-notation marker in its subtitle or, for
// headings sharing a repeated chapter number, from the sub-numbering
// pass below.
func Split(text string, detectHeadings bool) ([]Chapter, []int, []model.ChapterHeading) {
	if !detectHeadings {
		return []Chapter{{Title: "Content", Content: text}}, nil, nil
	}

	lines := strings.Split(text, "\n")

	var raw []rawChapter
	var seq []int
	var buf []string
	curTitle := ""
	curNum := 0
	curLineNum := 0
	curSubtitle := ""
	curPartMarker := 0
	curHasPartMarker := false
	frontDone := false
	lastNum := -1
	haveLastNum := false
	blankOnly := true

	lastChapterLine := -10
	lastChapterText := ""

	flushBuf := func() string {
		s := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = nil
		return s
	}

	for lineIdx, line := range lines {
		trimmed := strings.TrimSpace(line)
		m := matchHeading(trimmed)

		if m == nil {
			buf = append(buf, line)
			if strings.TrimSpace(line) != "" {
				blankOnly = false
			}
			continue
		}

		if strings.Contains(strings.ToLower(line), "chapter") && !IsValidChapterLine(line) {
			buf = append(buf, line)
			blankOnly = false
			continue
		}

		numStr := firstNonEmpty(m["num_d"], m["num_r"], m["num_w"], m["part_d"], m["part_r"], m["part_w"], m["sec_d"], m["hash_d"])
		num, ok := 0, false
		if numStr != "" {
			num, ok = ParseNum(numStr)
		}
		if !ok {
			buf = append(buf, line)
			blankOnly = false
			continue
		}

		linesSinceLast := lineIdx - lastChapterLine
		currentText := trimmed

		if linesSinceLast <= 4 && currentText == lastChapterText {
			buf = append(buf, line)
			blankOnly = false
			continue
		}

		lastChapterLine = lineIdx
		lastChapterText = currentText

		if haveLastNum && lastNum == num && blankOnly {
			buf = nil
			continue
		}
		lastNum = num
		haveLastNum = true
		blankOnly = true

		if !frontDone {
			if len(buf) > 0 {
				raw = append(raw, rawChapter{title: "Front Matter", content: flushBuf()})
			} else {
				buf = nil
			}
			frontDone = true
		}

		if curTitle != "" {
			raw = append(raw, rawChapter{
				title: curTitle, content: flushBuf(), num: curNum, hasNum: true,
				lineNum: curLineNum, subtitle: curSubtitle, partMarker: curPartMarker, hasPartMarker: curHasPartMarker,
			})
		} else {
			buf = nil
		}

		subtitle := strings.TrimSpace(m["rest"])
		if subtitle != "" {
			curTitle = "Chapter " + strconv.Itoa(num) + " – " + subtitle
		} else {
			curTitle = "Chapter " + strconv.Itoa(num)
		}
		curNum = num
		curLineNum = lineIdx
		curSubtitle = subtitle
		curPartMarker, curHasPartMarker = DetectPartIndex(subtitle)
		seq = append(seq, num)
	}

	if curTitle != "" {
		raw = append(raw, rawChapter{
			title: curTitle, content: flushBuf(), num: curNum, hasNum: true,
			lineNum: curLineNum, subtitle: curSubtitle, partMarker: curPartMarker, hasPartMarker: curHasPartMarker,
		})
	} else if len(buf) > 0 {
		raw = append(raw, rawChapter{title: "Content", content: flushBuf()})
	}

	chapters, headings := applySubNumbering(raw)
	return chapters, seq, headings
}

var subtitleExtractRE = regexp.MustCompile(`^Chapter \d+[a-z]?\s*[–:]\s*(.+)$`)

// applySubNumbering is the second+third pass: count occurrences of each
// chapter number, then rewrite repeats as "Chapter N.1", "Chapter N.2", ...
// It also builds the parallel model.ChapterHeading list: PartIndex comes
// from an explicit part-notation marker when the heading carries one,
// otherwise from the sub-numbering counter for repeated chapter numbers
// (spec.md §3: "part_index is assigned when the same chapter number...
// repeats across the document"); sequential distinct chapter numbers
// that already carry their own part marker are left unrenumbered, since
// counts[rc.num] is 1 for each of them.
func applySubNumbering(raw []rawChapter) ([]Chapter, []model.ChapterHeading) {
	counts := make(map[int]int)
	for _, rc := range raw {
		if rc.hasNum && strings.HasPrefix(rc.title, "Chapter ") {
			counts[rc.num]++
		}
	}

	partCounters := make(map[int]int)
	var out []Chapter
	var headings []model.ChapterHeading

	for _, rc := range raw {
		if !rc.hasNum || !strings.HasPrefix(rc.title, "Chapter ") {
			out = append(out, Chapter{Title: rc.title, Content: rc.content})
			continue
		}
		if counts[rc.num] <= 1 {
			out = append(out, Chapter{Title: rc.title, Content: rc.content})
			partIndex := 0
			if rc.hasPartMarker {
				partIndex = rc.partMarker
			}
			headings = append(headings, model.ChapterHeading{
				LineNumber: rc.lineNum, ChapterNumber: rc.num, Subtitle: rc.subtitle, PartIndex: partIndex,
			})
			continue
		}
		partCounters[rc.num]++
		partNum := partCounters[rc.num]
		partIndex := partNum
		if rc.hasPartMarker {
			partIndex = rc.partMarker
		}
		headings = append(headings, model.ChapterHeading{
			LineNumber: rc.lineNum, ChapterNumber: rc.num, Subtitle: rc.subtitle, PartIndex: partIndex,
		})

		var newTitle string
		if sub := subtitleExtractRE.FindStringSubmatch(rc.title); sub != nil {
			newTitle = "Chapter " + strconv.Itoa(rc.num) + "." + strconv.Itoa(partNum) + ": " + sub[1]
		} else {
			newTitle = "Chapter " + strconv.Itoa(rc.num) + "." + strconv.Itoa(partNum)
		}
		out = append(out, Chapter{Title: newTitle, Content: rc.content})
	}

	return out, headings
}

// matchHeading runs HeadingRE against a trimmed line and returns its
// named capture groups, or nil if the line doesn't match.
func matchHeading(trimmedLine string) map[string]string {
	match := HeadingRE.FindStringSubmatch(trimmedLine)
	if match == nil {
		return nil
	}
	names := HeadingRE.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		groups[name] = match[i]
	}
	return groups
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
