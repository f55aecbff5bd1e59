// Package epubbuilder assembles a validated EPUB-2 archive from
// translated chapter text: container.xml, content.opf, toc.ncx, a
// stylesheet, one XHTML file per chapter, and an optional cover.
//
// Grounded on original_source/make_epub.py's build_container_xml,
// build_content_opf, build_toc_ncx, build_chap_xhtml, build_cover_xhtml,
// build_style_css and write_new_epub, with the encoding/xml struct-tag
// style of simp-lee-epub/opf.go adapted from reader to writer use.
package epubbuilder

import "encoding/xml"

const (
	opfNamespace = "http://www.idpf.org/2007/opf"
	dcNamespace  = "http://purl.org/dc/elements/1.1/"
	ncxNamespace = "http://www.daisy.org/z3986/2005/ncx/"

	// Mimetype is the fixed EPUB container media type, stored
	// uncompressed as the archive's first entry.
	Mimetype = "application/epub+zip"
)

// opfPackage is the root <package> element of content.opf.
type opfPackage struct {
	XMLName          xml.Name    `xml:"http://www.idpf.org/2007/opf package"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         opfManifest `xml:"manifest"`
	Spine            opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	XMLNS       string         `xml:"xmlns:dc,attr"`
	XMLNSOPF    string         `xml:"xmlns:opf,attr"`
	Title       string         `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator     string         `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language    string         `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier  opfIdentifier  `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Date        string         `xml:"http://purl.org/dc/elements/1.1/ date,omitempty"`
	Publisher   string         `xml:"http://purl.org/dc/elements/1.1/ publisher,omitempty"`
	Description string         `xml:"http://purl.org/dc/elements/1.1/ description,omitempty"`
	Metas       []opfMeta      `xml:"meta"`
}

type opfIdentifier struct {
	ID     string `xml:"id,attr"`
	Scheme string `xml:"opf:scheme,attr"`
	Value  string `xml:",chardata"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfSpine struct {
	Toc      string            `xml:"toc,attr"`
	ItemRefs []opfSpineItemRef `xml:"itemref"`
}

type opfSpineItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr,omitempty"`
}

// Metadata carries the optional book-level fields beyond title/author.
type Metadata struct {
	Publisher    string
	Description  string
	Series       string
	SeriesIndex  string
}

// buildContentOPF renders OEBPS/content.opf. Grounded on
// make_epub.py's build_content_opf: dc:title/creator/language/
// identifier (urn:uuid), dc:date in ISO8601 UTC, an optional cover
// <meta> pointing at coverID, and optional publisher/description/
// series metadata.
func buildContentOPF(title, author, language, uid, coverID, isoDate string, items []opfManifestItem, spine []opfSpineItemRef, meta Metadata) ([]byte, error) {
	metas := []opfMeta{}
	if coverID != "" {
		metas = append(metas, opfMeta{Name: "cover", Content: coverID})
	}
	if meta.Series != "" {
		metas = append(metas, opfMeta{Name: "calibre:series", Content: meta.Series})
	}
	if meta.SeriesIndex != "" {
		metas = append(metas, opfMeta{Name: "calibre:series_index", Content: meta.SeriesIndex})
	}

	pkg := opfPackage{
		Version:          "2.0",
		UniqueIdentifier: "BookId",
		Metadata: opfMetadata{
			XMLNS:       dcNamespace,
			XMLNSOPF:    opfNamespace,
			Title:       title,
			Creator:     author,
			Language:    language,
			Identifier:  opfIdentifier{ID: "BookId", Scheme: "UUID", Value: "urn:uuid:" + uid},
			Date:        isoDate,
			Publisher:   meta.Publisher,
			Description: meta.Description,
			Metas:       metas,
		},
		Manifest: opfManifest{Items: items},
		Spine:    opfSpine{Toc: "ncx", ItemRefs: spine},
	}

	body, err := xml.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, err
	}
	out := []byte(xml.Header)
	out = append(out, body...)
	return out, nil
}
