package extract

import (
	"fmt"
	"math"
	"strings"
)

// Output is one extracted text tuple. RegionName is empty unless the tuple
// came from RegionText.
type Output struct {
	Text       string
	MimeType   string
	RegionName string
}

// Extract runs op over doc. The document is read, never closed, here.
func Extract(doc Document, op Operation, pr PageRange, regions []Region) ([]Output, error) {
	ex, err := op.newExtractor()
	if err != nil {
		return nil, err
	}
	return ex.extract(doc, pr, regions)
}

type plainTextExtractor struct {
	buf strings.Builder
}

func (e *plainTextExtractor) extract(doc Document, pr PageRange, _ []Region) ([]Output, error) {
	td, ok := doc.(textDocument)
	if !ok {
		return nil, fmt.Errorf("document of type %T cannot serve %s", doc, PlainText)
	}
	if err := pr.validate(td.NumPage()); err != nil {
		return nil, err
	}

	for page := pr.Start; page <= pr.End; page++ {
		text, err := td.PageText(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		e.buf.WriteString(text)
	}

	return []Output{{Text: e.buf.String(), MimeType: MimePlainText}}, nil
}

type regionTextExtractor struct {
	outputs []Output
}

// extract reads each page's glyphs once and cuts every region from that pass.
// An empty range produces no output and no error.
func (e *regionTextExtractor) extract(doc Document, pr PageRange, regions []Region) ([]Output, error) {
	td, ok := doc.(textDocument)
	if !ok {
		return nil, fmt.Errorf("document of type %T cannot serve %s", doc, RegionText)
	}

	for page := pr.Start; page <= pr.End; page++ {
		glyphs, err := td.PageGlyphs(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		for _, r := range regions {
			e.outputs = append(e.outputs, Output{
				Text:       assembleText(glyphsIn(glyphs, r)),
				MimeType:   MimePlainText,
				RegionName: r.Name,
			})
		}
	}

	return e.outputs, nil
}

type htmlTextExtractor struct {
	buf strings.Builder
}

const (
	htmlHeader = "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n</head>\n<body>\n"
	htmlFooter = "</body>\n</html>\n"
)

func (e *htmlTextExtractor) extract(doc Document, pr PageRange, _ []Region) ([]Output, error) {
	hd, ok := doc.(htmlDocument)
	if !ok {
		return nil, fmt.Errorf("document of type %T cannot serve %s", doc, HtmlText)
	}
	if err := pr.validate(hd.NumPage()); err != nil {
		return nil, err
	}

	e.buf.WriteString(htmlHeader)
	for page := pr.Start; page <= pr.End; page++ {
		body, err := hd.PageHTML(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		e.buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			e.buf.WriteByte('\n')
		}
	}
	e.buf.WriteString(htmlFooter)

	return []Output{{Text: e.buf.String(), MimeType: MimeHTML}}, nil
}

func glyphsIn(glyphs []Glyph, r Region) []Glyph {
	var in []Glyph
	for _, g := range glyphs {
		if r.Contains(g.X, g.Y) {
			in = append(in, g)
		}
	}
	return in
}

// assembleText joins glyphs in content order. A baseline shift of more than
// half the font size starts a new line; a horizontal gap wider than a third
// of the font size becomes a space. Every line ends with "\n".
func assembleText(glyphs []Glyph) string {
	if len(glyphs) == 0 {
		return ""
	}

	var sb strings.Builder
	prev := glyphs[0]
	sb.WriteString(prev.S)

	for _, g := range glyphs[1:] {
		size := math.Max(g.FontSize, 1)
		switch {
		case math.Abs(g.Y-prev.Y) > size/2:
			sb.WriteByte('\n')
		case g.X-(prev.X+prev.Width) > size/3 && prev.S != " " && g.S != " ":
			sb.WriteByte(' ')
		}
		sb.WriteString(g.S)
		prev = g
	}

	sb.WriteByte('\n')
	return sb.String()
}
