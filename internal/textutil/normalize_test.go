package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapseBlankLines_NoRunOfFourOrMore(t *testing.T) {
	input := "a\n\n\n\n\n\nb\n\n\nc"
	out := CollapseBlankLines(input)
	assert.False(t, strings.Contains(out, "\n\n\n\n"), "expected no run of >=4 newlines, got %q", out)
	assert.True(t, strings.Contains(out, "\n\n\nc"), "runs of exactly 3 must be preserved")
}

func TestCollapseBlankLines_ExactlyFourCollapsesToThree(t *testing.T) {
	out := CollapseBlankLines("a\n\n\n\nb")
	require.Equal(t, "a\n\n\nb", out)
}

func TestNormalizeSpaces(t *testing.T) {
	out := NormalizeSpaces("  hello   world  \n\n  foo  ")
	require.Equal(t, "hello world\n\nfoo", out)
}

func TestStripAdvertising(t *testing.T) {
	text := "正文开始 本电子书由果茶小说网　[www.34gc.net]　网友上传分享，网址:http://www.34gc.net 正文结束"
	out := StripAdvertising(text)
	assert.False(t, strings.Contains(out, "34gc.net"))
}

func TestDecodeFileContent_ValidUTF8(t *testing.T) {
	text, err := DecodeFileContent([]byte("你好，世界"))
	require.NoError(t, err)
	assert.Equal(t, "你好，世界", text)
}
