package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAs_Big5DecodesTraditionalChinese(t *testing.T) {
	// 0xA4 0xA4 is "中" in Big5. The same bytes are NOT "中" under GBK
	// (a simplified-Chinese codec).
	raw := []byte{0xA4, 0xA4}
	text, err := decodeAs(raw, "big5")
	require.NoError(t, err)
	assert.Equal(t, "中", text)
}

func TestDecodeAs_GB18030DecodesSimplifiedChinese(t *testing.T) {
	raw := []byte{0xD6, 0xD0} // "中" in GBK/GB18030
	text, err := decodeAs(raw, "gb18030")
	require.NoError(t, err)
	assert.Equal(t, "中", text)
}

func TestDecodeAs_UnsupportedCharsetErrors(t *testing.T) {
	_, err := decodeAs([]byte("hello"), "not-a-real-charset")
	assert.Error(t, err)
}

func TestDecodeFileContentAs_FallsBackOnBadCharset(t *testing.T) {
	text, err := DecodeFileContentAs([]byte("hello"), "not-a-real-charset")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}
