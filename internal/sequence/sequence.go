// Package sequence validates a chapter-number sequence detected by the
// chapter detector (C2), reporting missing, repeated, swapped and
// out-of-place chapter numbers.
//
// Grounded on original_source/make_epub.py's detect_issues.
package sequence

import "fmt"

type issue struct {
	idx int
	msg string
}

// DetectIssues reports anomalies in seq, an ordered sequence of detected
// chapter numbers, using the exact wording required by the spec:
//
//	"number X is missing"
//	"number X is repeated K time(s) after number Y"
//	"number X is switched in place with number Y"
//	"number X is out of place after number Y"
//
// Messages are returned in document order (by the index of the entry
// that triggered them).
func DetectIssues(seq []int) []string {
	if len(seq) == 0 {
		return nil
	}

	var issues []issue
	start := seq[0]
	end := seq[len(seq)-1]
	prevExpected := start
	seen := make(map[int]bool)
	reportedMissing := make(map[int]bool)

	for idx, v := range seq {
		if seen[v] {
			pred := findNonIdenticalPredecessor(seq, idx, v)
			runLen := 1
			j := idx
			for j+1 < len(seq) && seq[j+1] == v {
				runLen++
				j++
			}
			word := "time"
			if runLen > 1 {
				word = "times"
			}
			issues = append(issues, issue{idx, fmt.Sprintf("number %d is repeated %d %s after number %d", v, runLen, word, pred)})
		} else {
			seen[v] = true
		}

		switch {
		case v > prevExpected:
			for m := prevExpected; m < v; m++ {
				if !reportedMissing[m] {
					issues = append(issues, issue{idx, fmt.Sprintf("number %d is missing", m)})
					reportedMissing[m] = true
				}
			}
			prevExpected = v + 1
		case v == prevExpected:
			prevExpected++
		default: // v < prevExpected
			if idx > 0 && absDiff(seq[idx-1], v) == 1 && v < seq[idx-1] {
				a, b := v, seq[idx-1]
				if a > b {
					a, b = b, a
				}
				issues = append(issues, issue{idx, fmt.Sprintf("number %d is switched in place with number %d", a, b)})
				issues = append(issues, issue{idx, fmt.Sprintf("number %d is switched in place with number %d", b, a)})
			} else {
				prev := 0
				if idx > 0 {
					prev = seq[idx-1]
				}
				issues = append(issues, issue{idx, fmt.Sprintf("number %d is out of place after number %d", v, prev)})
			}
			prevExpected = v + 1
		}
	}

	for m := prevExpected; m <= end; m++ {
		if !reportedMissing[m] {
			issues = append(issues, issue{len(seq), fmt.Sprintf("number %d is missing", m)})
		}
	}

	return stableSortedMessages(issues)
}

func findNonIdenticalPredecessor(seq []int, idx, v int) int {
	for i := idx - 1; i >= 0; i-- {
		if seq[i] != v {
			return seq[i]
		}
	}
	if idx > 0 && seq[0] != v {
		return seq[0]
	}
	return 0
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// stableSortedMessages sorts by idx using a stable insertion sort,
// matching Python's list.sort (stable) on (idx, msg) tuples ordered by
// idx only, preserving original append order among equal idx values.
func stableSortedMessages(issues []issue) []string {
	sorted := make([]issue, len(issues))
	copy(sorted, issues)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].idx > sorted[j].idx; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	out := make([]string, len(sorted))
	for i, it := range sorted {
		out[i] = it.msg
	}
	return out
}
