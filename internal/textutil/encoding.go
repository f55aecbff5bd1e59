package textutil

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// DecodeFileContent decodes raw file bytes to UTF-8 text, grounded on
// original_source/cli_translator_ORIGINAL.py's decode_input_file_content:
// detect the encoding with a universal detector, decode with it; on
// failure fall back to GB18030; on further failure fall back to a
// replace-errors raw decode so the pipeline never aborts on bad input.
func DecodeFileContent(raw []byte) (string, error) {
	if enc := DetectEncoding(raw); enc != "" {
		if text, err := decodeAs(raw, enc); err == nil {
			return text, nil
		}
	}
	if text, err := decodeGB18030(raw); err == nil {
		return text, nil
	}
	return decodeReplacing(raw), nil
}

// DecodeFileContentAs decodes raw bytes using an explicitly named
// charset (the CLI's --encoding override) instead of auto-detecting,
// falling back the same way DecodeFileContent does if the named
// charset fails to decode.
func DecodeFileContentAs(raw []byte, charsetName string) (string, error) {
	if text, err := decodeAs(raw, charsetName); err == nil {
		return text, nil
	}
	if text, err := decodeGB18030(raw); err == nil {
		return text, nil
	}
	return decodeReplacing(raw), nil
}

// DetectEncoding feeds raw bytes to a universal charset detector and
// returns its best-guess encoding name, or "" if no guess clears the
// detector's confidence bar.
func DetectEncoding(raw []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return result.Charset
}

// decodeAs resolves charsetName to a decoder and decodes raw with it.
// UTF-8/ASCII is handled directly; every other name (GB18030, GBK,
// Big5, Shift_JIS, windows-1252, ...) is resolved through htmlindex,
// which maps arbitrary IANA/WHATWG charset labels to their
// golang.org/x/text decoder — in particular "big5" to
// traditionalchinese.Big5, not a simplified-Chinese decoder.
func decodeAs(raw []byte, charsetName string) (string, error) {
	switch normalizeCharsetName(charsetName) {
	case "utf-8", "ascii", "us-ascii":
		if !isValidUTF8Lenient(raw) {
			return "", fmt.Errorf("textutil: %q declared but invalid utf-8", charsetName)
		}
		return string(raw), nil
	}

	enc, err := htmlindex.Get(charsetName)
	if err != nil {
		return "", fmt.Errorf("textutil: unsupported declared charset %q: %w", charsetName, err)
	}
	out, _, err := transform.String(enc.NewDecoder(), string(raw))
	if err != nil {
		return "", err
	}
	return out, nil
}

func decodeGB18030(raw []byte) (string, error) {
	out, _, err := transform.String(simplifiedchinese.GB18030.NewDecoder(), string(raw))
	if err != nil {
		return "", err
	}
	return out, nil
}

// decodeReplacing is the final fallback: decode raw as UTF-8,
// substituting the Unicode replacement character for any byte sequence
// that does not form valid UTF-8. This mirrors
// Python's errors='replace' decode and is guaranteed to succeed.
func decodeReplacing(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size <= 1 {
			b.WriteRune(utf8.RuneError)
			i++
			continue
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

func isValidUTF8Lenient(raw []byte) bool {
	// A cheap validity check; DecodeFileContent always has the replace
	// fallback below it, so false negatives here are harmless.
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0 {
			return false
		}
	}
	return utf8.Valid(raw)
}

func normalizeCharsetName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
