package chapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRomanToInt(t *testing.T) {
	cases := map[string]int{"i": 1, "iv": 4, "ix": 9, "xiv": 14, "xl": 40, "mcmxciv": 1994}
	for in, want := range cases {
		got, ok := RomanToInt(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestWordsToInt(t *testing.T) {
	cases := map[string]int{
		"one":          1,
		"twenty one":   21,
		"one hundred":  100,
		"two thousand": 2000,
	}
	for in, want := range cases {
		got, ok := WordsToInt(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseNum(t *testing.T) {
	n, ok := ParseNum("14a")
	require.True(t, ok)
	assert.Equal(t, 14, n)

	n, ok = ParseNum("xiv")
	require.True(t, ok)
	assert.Equal(t, 14, n)

	n, ok = ParseNum("fourteen")
	require.True(t, ok)
	assert.Equal(t, 14, n)
}

func TestIsValidChapterLine(t *testing.T) {
	assert.True(t, IsValidChapterLine("Chapter 1: The Beginning"))
	assert.True(t, IsValidChapterLine("### Chapter 2"))
	assert.False(t, IsValidChapterLine(`"Chapter one," she said.`))
	assert.False(t, IsValidChapterLine("He opened the book to chapter one and began reading."))
}

func TestHeadingRE_MatchesChapterDigit(t *testing.T) {
	groups := matchHeading("Chapter 12: Homecoming")
	require.NotNil(t, groups)
	assert.Equal(t, "12", groups["num_d"])
	assert.Equal(t, "Homecoming", groups["rest"])
}

func TestHeadingRE_MatchesBareLeadingNumber(t *testing.T) {
	groups := matchHeading("7. The River")
	require.NotNil(t, groups)
	assert.Equal(t, "7", groups["hash_d"])
}

func TestSplit_NoHeadingDetection(t *testing.T) {
	chapters, seq, headings := Split("hello\nworld", false)
	require.Len(t, chapters, 1)
	assert.Equal(t, "Content", chapters[0].Title)
	assert.Nil(t, seq)
	assert.Nil(t, headings)
}

func TestSplit_BasicChapters(t *testing.T) {
	text := "Chapter 1: Start\nfirst body\nChapter 2: Middle\nsecond body"
	chapters, seq, headings := Split(text, true)
	require.Len(t, chapters, 2)
	assert.Equal(t, []int{1, 2}, seq)
	assert.Contains(t, chapters[0].Title, "Chapter 1")
	assert.Contains(t, chapters[1].Title, "Chapter 2")
	require.Len(t, headings, 2)
	assert.Equal(t, 1, headings[0].ChapterNumber)
	assert.Equal(t, 2, headings[1].ChapterNumber)
	assert.Equal(t, 0, headings[0].PartIndex)
}

func TestSplit_SubNumbersRepeatedChapters(t *testing.T) {
	text := "Chapter 1: First Part\nbody a\nChapter 1: Second Part\nbody b"
	chapters, _, headings := Split(text, true)
	require.Len(t, chapters, 2)
	assert.Contains(t, chapters[0].Title, "Chapter 1.1")
	assert.Contains(t, chapters[1].Title, "Chapter 1.2")
	require.Len(t, headings, 2)
	assert.Equal(t, 1, headings[0].PartIndex)
	assert.Equal(t, 2, headings[1].PartIndex)
}

func TestSplit_ExplicitPartMarkerSetsPartIndex(t *testing.T) {
	text := "Chapter 5 [2/3]: The Siege\nbody a"
	_, _, headings := Split(text, true)
	require.Len(t, headings, 1)
	assert.Equal(t, 5, headings[0].ChapterNumber)
	assert.Equal(t, 2, headings[0].PartIndex)
}

func TestDetectPartIndex(t *testing.T) {
	cases := map[string]int{
		"2/3":            2,
		"[2/3]":          2,
		"(2 of 3)":       2,
		"(2 out of 3)":   2,
		"Part 2":         2,
		"Part two":       2,
		"pt. 2":          2,
		"Part II":        2,
		"The Siege - 2":  2,
	}
	for in, want := range cases {
		got, ok := DetectPartIndex(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	// A bare trailing Roman numeral with no "Part"/"pt." prefix is not a
	// part marker.
	_, ok := DetectPartIndex("The Reckoning IV")
	assert.False(t, ok)
}
