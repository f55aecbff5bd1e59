package epubbuilder

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Emasoft/enchant-cli-sub000/internal/chapter"
	"github.com/Emasoft/enchant-cli-sub000/internal/model"
	"github.com/Emasoft/enchant-cli-sub000/internal/sequence"
)

// ValidationError reports a problem with builder inputs that prevents
// EPUB assembly, mirroring make_epub.py's ValidationError.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Chapter is one chapter's title plus already-paragraphized HTML body.
type Chapter struct {
	Title    string
	BodyHTML string
}

// Options configures EPUB assembly beyond title/author.
type Options struct {
	CoverPath  string
	Language   string // default "en"
	CustomCSS  string
	Metadata   Metadata
}

// Build assembles chapters into a fresh EPUB-2 archive at outPath.
// Grounded on make_epub.py's write_new_epub: mimetype stored
// uncompressed first, then META-INF/container.xml, OEBPS/Styles/
// style.css, an optional cover image and cover page, one
// OEBPS/Text/chapterN.xhtml per chapter, OEBPS/content.opf, and
// OEBPS/toc.ncx, all deflated.
func Build(chapters []Chapter, outPath, title, author string, opts Options) error {
	if len(chapters) == 0 {
		return &ValidationError{Msg: "no chapters to build"}
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.CoverPath != "" {
		if err := ensureCoverOK(opts.CoverPath); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("epubbuilder: create output dir: %w", err)
	}

	uid := uuid.New().String()
	isoDate := time.Now().UTC().Format("2006-01-02")

	manifest := []opfManifestItem{
		{ID: "ncx", Href: "toc.ncx", MediaType: "application/x-dtbncx+xml"},
		{ID: "css", Href: "Styles/style.css", MediaType: "text/css"},
	}
	var spine []opfSpineItemRef
	var navPoints []ncxNavPoint
	var coverID string

	zf, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("epubbuilder: create output file: %w", err)
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	defer zw.Close()

	if err := writeStored(zw, "mimetype", []byte(Mimetype)); err != nil {
		return err
	}
	if err := writeDeflated(zw, "META-INF/container.xml", buildContainerXML()); err != nil {
		return err
	}
	if err := writeDeflated(zw, "OEBPS/Styles/style.css", buildStyleCSS(opts.CustomCSS)); err != nil {
		return err
	}

	if opts.CoverPath != "" {
		coverID = "cover-img"
		imgName := filepath.Base(opts.CoverPath)
		imgRel := "Images/" + imgName
		coverBytes, err := os.ReadFile(opts.CoverPath)
		if err != nil {
			return fmt.Errorf("epubbuilder: read cover: %w", err)
		}
		if err := writeDeflated(zw, "OEBPS/"+imgRel, coverBytes); err != nil {
			return err
		}
		mime := "image/png"
		if ext := strings.ToLower(filepath.Ext(imgName)); ext == ".jpg" || ext == ".jpeg" {
			mime = "image/jpeg"
		}
		manifest = append(manifest, opfManifestItem{ID: coverID, Href: imgRel, MediaType: mime})

		if err := writeDeflated(zw, "OEBPS/Text/cover.xhtml", buildCoverXHTML(imgRel)); err != nil {
			return err
		}
		manifest = append(manifest, opfManifestItem{ID: "coverpage", Href: "Text/cover.xhtml", MediaType: "application/xhtml+xml"})
		spine = append(spine, opfSpineItemRef{IDRef: "coverpage", Linear: "yes"})
	}

	for i, ch := range chapters {
		idx := i + 1
		href := fmt.Sprintf("Text/chapter%d.xhtml", idx)
		if err := writeDeflated(zw, "OEBPS/"+href, buildChapterXHTML(ch.Title, ch.BodyHTML)); err != nil {
			return err
		}
		manifest = append(manifest, opfManifestItem{ID: fmt.Sprintf("chap%d", idx), Href: href, MediaType: "application/xhtml+xml"})
		spine = append(spine, opfSpineItemRef{IDRef: fmt.Sprintf("chap%d", idx)})
		navPoints = append(navPoints, ncxNavPoint{
			ID:        fmt.Sprintf("nav%d", idx),
			PlayOrder: strconv.Itoa(idx),
			NavLabel:  ncxText{Text: ch.Title},
			Content:   ncxNavPointContent{Src: href},
		})
	}

	opfBytes, err := buildContentOPF(title, author, opts.Language, uid, coverID, isoDate, manifest, spine, opts.Metadata)
	if err != nil {
		return fmt.Errorf("epubbuilder: build content.opf: %w", err)
	}
	if err := writeDeflated(zw, "OEBPS/content.opf", opfBytes); err != nil {
		return err
	}

	ncxBytes, err := buildTocNCX(title, author, uid, navPoints)
	if err != nil {
		return fmt.Errorf("epubbuilder: build toc.ncx: %w", err)
	}
	if err := writeDeflated(zw, "OEBPS/toc.ncx", ncxBytes); err != nil {
		return err
	}

	return nil
}

func writeStored(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("epubbuilder: write %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func writeDeflated(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("epubbuilder: write %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func ensureCoverOK(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return &ValidationError{Msg: fmt.Sprintf("cover %q is not a file", path)}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return &ValidationError{Msg: "cover must be .jpg/.jpeg/.png"}
	}
	return nil
}

// FromChapters builds an EPUB from pre-split (title, rawBody) pairs,
// paragraphizing each body. Grounded on make_epub.py's
// create_epub_from_chapters.
func FromChapters(rawChapters []chapter.Chapter, outPath, title, author string, opts Options) error {
	chs := make([]Chapter, len(rawChapters))
	for i, c := range rawChapters {
		chs[i] = Chapter{Title: c.Title, BodyHTML: Paragraphize(c.Content)}
	}
	return Build(chs, outPath, title, author, opts)
}

// FromText splits a complete translated text into chapters, validates
// the chapter sequence, and builds the EPUB. It returns any sequence
// issues found; in strict mode a non-empty issue list aborts before
// writing the archive. Grounded on make_epub.py's
// create_epub_from_txt_file.
func FromText(fullText, outPath, title, author string, detectHeadings, strictMode bool, opts Options) ([]string, error) {
	chapBlocks, seq, _ := chapter.Split(fullText, detectHeadings)

	var issues []string
	if detectHeadings {
		issues = sequence.DetectIssues(seq)
	}
	if len(issues) > 0 && strictMode {
		return issues, &ValidationError{Msg: fmt.Sprintf("found %d validation issues in chapter sequence", len(issues))}
	}

	if err := FromChapters(chapBlocks, outPath, title, author, opts); err != nil {
		return issues, err
	}
	return issues, nil
}

// chunkFileRE matches "<title> by <author> - Chunk_NNNNNN.txt" chunk
// file names for directory-based assembly.
var chunkFileRE = regexp.MustCompile(`(?i)^(.+)\s+by\s+(.+)\s+-\s+Chunk_(\d{6})\.txt$`)

// CollectChunks scans dir for translated chunk files and returns a map
// from chunk number to file path; the map carries no order, so callers
// sort its keys. Grounded on make_epub.py's collect_chunks.
func CollectChunks(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("epubbuilder: read dir: %w", err)
	}
	mapping := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := chunkFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		mapping[idx] = filepath.Join(dir, e.Name())
	}
	if len(mapping) == 0 {
		return nil, &ValidationError{Msg: "no valid .txt chunks found"}
	}
	return mapping, nil
}

// FromDirectory concatenates translated chunk files from dir in order,
// splits them into chapters, validates the sequence, and builds the
// EPUB. Grounded on make_epub.py's create_epub_from_directory. The
// returned headings are the detected model.ChapterHeading records (one
// per chapter, with PartIndex set for multi-part chapters), for callers
// that want to report on part-notation detection.
func FromDirectory(dir, outPath, title, author string, detectHeadings, strict bool, opts Options) ([]string, []model.ChapterHeading, error) {
	chunks, err := CollectChunks(dir)
	if err != nil {
		return nil, nil, err
	}

	indices := make([]int, 0, len(chunks))
	for idx := range chunks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var parts []string
	for _, idx := range indices {
		content, err := os.ReadFile(chunks[idx])
		if err != nil {
			return nil, nil, fmt.Errorf("epubbuilder: read chunk %d: %w", idx, err)
		}
		parts = append(parts, string(content))
	}
	fullText := strings.Join(parts, "\n")

	chapBlocks, seq, headings := chapter.Split(fullText, detectHeadings)
	var issues []string
	if len(seq) > 0 {
		issues = sequence.DetectIssues(seq)
	}
	if len(issues) > 0 && strict {
		return issues, headings, &ValidationError{Msg: fmt.Sprintf("found %d validation issues in chapter sequence", len(issues))}
	}

	if err := FromChapters(chapBlocks, outPath, title, author, opts); err != nil {
		return issues, headings, err
	}
	return issues, headings, nil
}
