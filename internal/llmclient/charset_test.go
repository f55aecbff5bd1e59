package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveThinkingBlock(t *testing.T) {
	in := "<think>reasoning here</think>\nActual translated text."
	out := RemoveThinkingBlock(in)
	assert.Equal(t, "Actual translated text.", out)
}

func TestRemoveThinkingBlock_ThinkingTag(t *testing.T) {
	in := "<thinking>scratch work</thinking>\nFinal answer."
	out := RemoveThinkingBlock(in)
	assert.Equal(t, "Final answer.", out)
}

func TestIsLatinCharset_PureEnglish(t *testing.T) {
	assert.True(t, IsLatinCharset("The quick brown fox jumps over the lazy dog.", 0.10))
}

func TestIsLatinCharset_PureChinese(t *testing.T) {
	assert.False(t, IsLatinCharset("这是一段完全是中文的文本，没有任何拉丁字符。", 0.10))
}

func TestIsLatinCharset_Empty(t *testing.T) {
	assert.True(t, IsLatinCharset("", 0.10))
	assert.True(t, IsLatinCharset("   ", 0.10))
}

func TestIsLatinCharset_SmallResidue(t *testing.T) {
	text := "This is an English sentence with only a tiny bit of 甲 residue in it, nothing more than one stray character among many many words of normal text here to pad out the ratio well below threshold."
	assert.True(t, IsLatinCharset(text, 0.10))
}
