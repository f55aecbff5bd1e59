package epubbuilder

import "encoding/xml"

type ncxRoot struct {
	XMLName  xml.Name  `xml:"http://www.daisy.org/z3986/2005/ncx/ ncx"`
	Version  string    `xml:"version,attr"`
	Head     ncxHead   `xml:"head"`
	DocTitle ncxText   `xml:"docTitle"`
	DocAuth  ncxText   `xml:"docAuthor"`
	NavMap   ncxNavMap `xml:"navMap"`
}

type ncxHead struct {
	Metas []ncxMeta `xml:"meta"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxText struct {
	Text string `xml:"text"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID        string      `xml:"id,attr"`
	PlayOrder string      `xml:"playOrder,attr"`
	NavLabel  ncxText     `xml:"navLabel"`
	Content   ncxNavPointContent `xml:"content"`
}

type ncxNavPointContent struct {
	Src string `xml:"src,attr"`
}

// buildTocNCX renders OEBPS/toc.ncx, grounded on make_epub.py's
// build_toc_ncx.
func buildTocNCX(title, author, uid string, navPoints []ncxNavPoint) ([]byte, error) {
	root := ncxRoot{
		Version: "2005-1",
		Head: ncxHead{Metas: []ncxMeta{
			{Name: "dtb:uid", Content: "urn:uuid:" + uid},
			{Name: "dtb:depth", Content: "1"},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		}},
		DocTitle: ncxText{Text: title},
		DocAuth:  ncxText{Text: author},
		NavMap:   ncxNavMap{NavPoints: navPoints},
	}

	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, err
	}
	out := []byte(xml.Header)
	out = append(out, []byte("<!DOCTYPE ncx PUBLIC '-//NISO//DTD ncx 2005-1//EN' 'http://www.daisy.org/z3986/2005/ncx-2005-1.dtd'>\n")...)
	out = append(out, body...)
	return out, nil
}
