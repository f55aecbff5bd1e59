package epubbuilder

// containerXML is the fixed META-INF/container.xml payload pointing at
// the OPF package document. Grounded on make_epub.py's
// build_container_xml.
const containerXML = `<?xml version='1.0' encoding='utf-8'?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

func buildContainerXML() []byte {
	return []byte(containerXML)
}

// defaultStyleCSS mirrors make_epub.py's build_style_css default
// stylesheet: serif body text with first-line paragraph indentation.
const defaultStyleCSS = `body {
  font-family: serif;
  line-height: 1.5;
  margin: 5%;
}
h1 {
  text-align: center;
  margin-bottom: 1em;
}
p {
  margin: 0;
  text-indent: 1.5em;
}
p:first-of-type {
  text-indent: 0;
}
`

// buildStyleCSS returns custom if non-empty, else the default stylesheet.
func buildStyleCSS(custom string) []byte {
	if custom != "" {
		return []byte(custom)
	}
	return []byte(defaultStyleCSS)
}
