package extract

import (
	"bytes"
	"fmt"

	gopdf "github.com/dslipak/pdf"
	"github.com/gen2brain/go-fitz"
	lpdf "github.com/ledongthuc/pdf"
)

// Default page height (US Letter) used when a page declares no MediaBox.
const defaultPageHeight = 792.0

// Bounds the walk up the page tree; malformed files can contain cycles.
const maxTreeDepth = 32

// Document is a decoded PDF owned by exactly one invocation. Close must be
// called on every exit path.
type Document interface {
	NumPage() int
	Close() error
}

// textDocument serves the text-layer operations.
type textDocument interface {
	Document
	// PageText returns the plain text of a 1-based page.
	PageText(page int) (string, error)
	// PageGlyphs returns the positioned glyphs of a 1-based page.
	PageGlyphs(page int) ([]Glyph, error)
}

// htmlDocument serves HtmlText.
type htmlDocument interface {
	Document
	// PageHTML returns the rendered body fragment of a 1-based page.
	PageHTML(page int) (string, error)
}

// Glyph is one shown character. X and Y locate its baseline origin measured
// from the page's top-left corner.
type Glyph struct {
	X        float64
	Y        float64
	Width    float64
	FontSize float64
	S        string
}

// Decode parses data with the library serving op. HtmlText is rendered by
// MuPDF; the text operations use ledongthuc/pdf and fall back to dslipak/pdf
// when the primary parser rejects the bytes.
func Decode(data []byte, op Operation) (Document, error) {
	if op == HtmlText {
		rendered, err := openFitz(data)
		if err != nil {
			return nil, err
		}
		return rendered, nil
	}

	primary, err := openLedongthuc(data)
	if err == nil {
		return primary, nil
	}

	fallback, ferr := openDslipak(data)
	if ferr == nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("ledongthuc: %v; dslipak: %w", err, ferr)
}

// recoverInto turns a panic raised inside a PDF library into an error.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("pdf library panic: %v", r)
	}
}

// ledongthuc/pdf

type ledongthucDocument struct {
	reader *lpdf.Reader
}

func openLedongthuc(data []byte) (doc *ledongthucDocument, err error) {
	defer recoverInto(&err)
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &ledongthucDocument{reader: r}, nil
}

func (d *ledongthucDocument) NumPage() int {
	return d.reader.NumPage()
}

func (d *ledongthucDocument) PageText(page int) (text string, err error) {
	defer recoverInto(&err)
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

func (d *ledongthucDocument) PageGlyphs(page int) (glyphs []Glyph, err error) {
	defer recoverInto(&err)
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}

	left, top := ledongthucOrigin(p.V)
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, Glyph{
			X:        t.X - left,
			Y:        top - t.Y,
			Width:    t.W,
			FontSize: t.FontSize,
			S:        t.S,
		})
	}
	return glyphs, nil
}

func (d *ledongthucDocument) Close() error {
	// The reader holds no handle beyond the in-memory bytes.
	d.reader = nil
	return nil
}

// ledongthucOrigin returns the left and top edges of the page's MediaBox,
// following inheritance through the page tree.
func ledongthucOrigin(v lpdf.Value) (left, top float64) {
	node := v
	for depth := 0; depth < maxTreeDepth && !node.IsNull(); depth++ {
		box := node.Key("MediaBox")
		if box.Kind() == lpdf.Array && box.Len() == 4 {
			return box.Index(0).Float64(), box.Index(3).Float64()
		}
		node = node.Key("Parent")
	}
	return 0, defaultPageHeight
}

// dslipak/pdf

type dslipakDocument struct {
	reader *gopdf.Reader
}

func openDslipak(data []byte) (doc *dslipakDocument, err error) {
	defer recoverInto(&err)
	r, err := gopdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &dslipakDocument{reader: r}, nil
}

func (d *dslipakDocument) NumPage() int {
	return d.reader.NumPage()
}

func (d *dslipakDocument) PageText(page int) (string, error) {
	glyphs, err := d.PageGlyphs(page)
	if err != nil {
		return "", err
	}
	return assembleText(glyphs), nil
}

func (d *dslipakDocument) PageGlyphs(page int) (glyphs []Glyph, err error) {
	defer recoverInto(&err)
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}

	left, top := dslipakOrigin(p.V)
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, Glyph{
			X:        t.X - left,
			Y:        top - t.Y,
			Width:    t.W,
			FontSize: t.FontSize,
			S:        t.S,
		})
	}
	return glyphs, nil
}

func (d *dslipakDocument) Close() error {
	d.reader = nil
	return nil
}

func dslipakOrigin(v gopdf.Value) (left, top float64) {
	node := v
	for depth := 0; depth < maxTreeDepth && !node.IsNull(); depth++ {
		box := node.Key("MediaBox")
		if box.Kind() == gopdf.Array && box.Len() == 4 {
			return box.Index(0).Float64(), box.Index(3).Float64()
		}
		node = node.Key("Parent")
	}
	return 0, defaultPageHeight
}

// MuPDF via go-fitz

type fitzDocument struct {
	doc *fitz.Document
}

func openFitz(data []byte) (fd *fitzDocument, err error) {
	defer recoverInto(&err)
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	// MuPDF repairs almost any byte stream into a document; no pages means
	// nothing usable was found.
	if doc.NumPage() < 1 {
		doc.Close()
		return nil, fmt.Errorf("document has no pages")
	}
	return &fitzDocument{doc: doc}, nil
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) PageHTML(page int) (html string, err error) {
	defer recoverInto(&err)
	// go-fitz numbers pages from 0.
	return d.doc.HTML(page-1, false)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
