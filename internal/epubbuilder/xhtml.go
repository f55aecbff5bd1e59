package epubbuilder

import (
	"encoding/xml"
	"fmt"
	"html"
	"strings"
)

// Paragraphize converts plain chapter text into HTML paragraph blocks,
// joining consecutive non-blank lines within a paragraph with <br/> and
// starting a new <p> on each blank line. Grounded on make_epub.py's
// paragraphize.
func Paragraphize(text string) string {
	lines := strings.Split(text, "\n")
	var paragraphs []string
	var cur []string

	flush := func() {
		if len(cur) == 0 {
			return
		}
		escaped := make([]string, len(cur))
		for i, l := range cur {
			escaped[i] = html.EscapeString(l)
		}
		paragraphs = append(paragraphs, "<p>"+strings.Join(escaped, "<br/>")+"</p>")
		cur = cur[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		cur = append(cur, trimmed)
	}
	flush()

	return strings.Join(paragraphs, "\n")
}

// buildChapterXHTML renders one chapter's XHTML document. bodyHTML is
// the already-paragraphized chapter body (a sequence of <p> blocks);
// it is embedded verbatim into <body>, following the content into the
// document rather than re-escaping it. Grounded on make_epub.py's
// build_chap_xhtml.
func buildChapterXHTML(title, bodyHTML string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml"><head>`)
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(title))
	b.WriteString(`<link rel="stylesheet" type="text/css" href="../Styles/style.css"/></head><body>`)
	fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(title))
	b.WriteString(bodyHTML)
	b.WriteString("</body></html>")
	return []byte(b.String())
}

// buildCoverXHTML renders the cover page referencing imgRel (relative
// to OEBPS/Text/). Grounded on make_epub.py's build_cover_xhtml.
func buildCoverXHTML(imgRel string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Cover</title>`)
	b.WriteString(`<style>body{margin:0;padding:0;text-align:center;}img{max-width:100%;max-height:100%;}</style>`)
	b.WriteString(`</head><body>`)
	fmt.Fprintf(&b, `<img src="../%s" alt="Cover"/>`, html.EscapeString(imgRel))
	b.WriteString("</body></html>")
	return []byte(b.String())
}
