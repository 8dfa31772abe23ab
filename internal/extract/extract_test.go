package extract

import (
	"strings"
	"testing"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/adverant/nexus/pdfextract-worker/internal/testpdf"
)

func TestParseRegion(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		want    Region
		wantErr bool
	}{
		{name: "plain", value: "0,0,200,20", want: Region{Name: "plain", Width: 200, Height: 20}},
		{name: "spaces", value: " 10.5, 20 ,30, 40 ", want: Region{Name: "spaces", X: 10.5, Y: 20, Width: 30, Height: 40}},
		{name: "three fields", value: "0,0,200", wantErr: true},
		{name: "five fields", value: "0,0,200,20,1", wantErr: true},
		{name: "not a number", value: "0,zero,200,20", wantErr: true},
		{name: "negative width", value: "0,0,-1,20", wantErr: true},
		{name: "nan width", value: "0,0,NaN,20", wantErr: true},
		{name: "nan x", value: "NaN,0,10,20", wantErr: true},
		{name: "infinite height", value: "0,0,10,+Inf", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRegion(tc.name, tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got region %+v", tc.value, got)
				}
				if code := apperrors.CodeOf(err); code != apperrors.ErrorConfiguration {
					t.Errorf("expected CONFIGURATION error, got %q (%v)", code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseRegionsKeepsDeclarationOrder(t *testing.T) {
	props := []flow.Property{
		{Name: PropOperation, Value: "RegionText"},
		{Name: "zeta", Value: "0,0,10,10"},
		{Name: PropStartPage, Value: "1"},
		{Name: "alpha", Value: "5,5,10,10"},
		{Name: PropEndPageSubtractor, Value: "0"},
		{Name: "mid", Value: "1,1,1,1"},
	}

	regions, err := ParseRegions(props)
	if err != nil {
		t.Fatalf("ParseRegions failed: %v", err)
	}

	var names []string
	for _, r := range regions {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "zeta,alpha,mid" {
		t.Errorf("expected zeta,alpha,mid, got %s", got)
	}
}

func TestRegionContains(t *testing.T) {
	r := Region{Name: "box", X: 10, Y: 10, Width: 20, Height: 5}

	if !r.Contains(10, 10) {
		t.Error("top-left corner should be inside")
	}
	if !r.Contains(29.9, 14.9) {
		t.Error("point just inside bottom-right should be inside")
	}
	if r.Contains(30, 12) {
		t.Error("right edge should be outside")
	}
	if r.Contains(15, 15) {
		t.Error("bottom edge should be outside")
	}
	if (Region{Name: "empty", X: 1, Y: 1}).Contains(1, 1) {
		t.Error("zero-sized region should contain nothing")
	}
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations() {
		got, err := ParseOperation(string(op))
		if err != nil {
			t.Errorf("ParseOperation(%q) failed: %v", op, err)
		}
		if got != op {
			t.Errorf("ParseOperation(%q) = %q", op, got)
		}
	}

	for _, bad := range []string{"plaintext", "Text", "PDF", ""} {
		if _, err := ParseOperation(bad); apperrors.CodeOf(err) != apperrors.ErrorConfiguration {
			t.Errorf("ParseOperation(%q): expected CONFIGURATION error, got %v", bad, err)
		}
	}
}

func TestResolveOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := ResolveOptions(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.Operation != HtmlText || opts.StartPage != 1 || opts.EndOffset != 0 {
			t.Errorf("unexpected defaults: %+v", opts)
		}
	})

	t.Run("regions ignored outside RegionText", func(t *testing.T) {
		opts, err := ResolveOptions([]flow.Property{
			{Name: PropOperation, Value: "PlainText"},
			{Name: "broken", Value: "0,0,200"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(opts.Regions) != 0 {
			t.Errorf("expected no regions, got %d", len(opts.Regions))
		}
	})

	errorCases := []struct {
		name  string
		props []flow.Property
	}{
		{"unknown operation", []flow.Property{{Name: PropOperation, Value: "OCR"}}},
		{"zero start page", []flow.Property{{Name: PropStartPage, Value: "0"}}},
		{"start page not a number", []flow.Property{{Name: PropStartPage, Value: "one"}}},
		{"negative offset", []flow.Property{{Name: PropEndPageSubtractor, Value: "-1"}}},
		{"malformed region", []flow.Property{
			{Name: PropOperation, Value: "RegionText"},
			{Name: "TEST_AREA", Value: "0,0,200"},
		}},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveOptions(tc.props)
			if apperrors.CodeOf(err) != apperrors.ErrorConfiguration {
				t.Errorf("expected CONFIGURATION error, got %v", err)
			}
		})
	}
}

func TestResolvePageRange(t *testing.T) {
	testCases := []struct {
		start, offset, total int
		want                 PageRange
		empty                bool
		length               int
	}{
		{1, 0, 2, PageRange{1, 2}, false, 2},
		{1, 1, 2, PageRange{1, 1}, false, 1},
		{1, 2, 2, PageRange{1, 0}, true, 0},
		{3, 0, 2, PageRange{3, 2}, true, 0},
		{2, 5, 3, PageRange{2, -2}, true, 0},
	}

	for _, tc := range testCases {
		got := ResolvePageRange(tc.start, tc.offset, tc.total)
		if got != tc.want {
			t.Errorf("ResolvePageRange(%d, %d, %d) = %v, want %v", tc.start, tc.offset, tc.total, got, tc.want)
		}
		if got.Empty() != tc.empty {
			t.Errorf("%v.Empty() = %v, want %v", got, got.Empty(), tc.empty)
		}
		if got.Len() != tc.length {
			t.Errorf("%v.Len() = %d, want %d", got, got.Len(), tc.length)
		}
	}
}

func TestAssembleText(t *testing.T) {
	glyphs := []Glyph{
		{X: 0, Y: 10, Width: 6, FontSize: 10, S: "a"},
		{X: 6, Y: 10, Width: 6, FontSize: 10, S: "b"},
		{X: 30, Y: 10, Width: 6, FontSize: 10, S: "c"},
		{X: 0, Y: 25, Width: 6, FontSize: 10, S: "d"},
	}

	if got := assembleText(glyphs); got != "ab c\nd\n" {
		t.Errorf("assembleText = %q", got)
	}
	if got := assembleText(nil); got != "" {
		t.Errorf("assembleText(nil) = %q", got)
	}
}

// fakeDocument counts page visits.
type fakeDocument struct {
	pages  [][]Glyph
	visits map[int]int
	closed bool
}

func (f *fakeDocument) NumPage() int { return len(f.pages) }

func (f *fakeDocument) Close() error {
	f.closed = true
	return nil
}

func (f *fakeDocument) PageText(page int) (string, error) {
	f.visits[page]++
	return assembleText(f.pages[page-1]), nil
}

func (f *fakeDocument) PageGlyphs(page int) ([]Glyph, error) {
	f.visits[page]++
	return f.pages[page-1], nil
}

func newFakeDocument(pages int) *fakeDocument {
	doc := &fakeDocument{visits: make(map[int]int)}
	for i := 0; i < pages; i++ {
		doc.pages = append(doc.pages, []Glyph{
			{X: 5, Y: 5, Width: 6, FontSize: 10, S: "L"},
			{X: 100, Y: 100, Width: 6, FontSize: 10, S: "R"},
		})
	}
	return doc
}

func TestRegionTextVisitsEachPageOnce(t *testing.T) {
	doc := newFakeDocument(3)
	regions := []Region{
		{Name: "left", X: 0, Y: 0, Width: 50, Height: 50},
		{Name: "right", X: 50, Y: 50, Width: 100, Height: 100},
	}

	out, err := Extract(doc, RegionText, PageRange{Start: 1, End: 3}, regions)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(out) != 6 {
		t.Fatalf("expected 6 outputs, got %d", len(out))
	}
	for page := 1; page <= 3; page++ {
		if doc.visits[page] != 1 {
			t.Errorf("page %d visited %d times", page, doc.visits[page])
		}
	}

	for i, o := range out {
		wantRegion := regions[i%2].Name
		if o.RegionName != wantRegion {
			t.Errorf("output %d: region %q, want %q", i, o.RegionName, wantRegion)
		}
		if o.MimeType != MimePlainText {
			t.Errorf("output %d: mime %q", i, o.MimeType)
		}
	}
	if out[0].Text != "L\n" || out[1].Text != "R\n" {
		t.Errorf("unexpected region texts %q, %q", out[0].Text, out[1].Text)
	}
	if doc.closed {
		t.Error("Extract must not close the document")
	}
}

func TestRegionTextEmptyRange(t *testing.T) {
	doc := newFakeDocument(2)

	out, err := Extract(doc, RegionText, ResolvePageRange(1, 2, 2), []Region{{Name: "r", Width: 10, Height: 10}})
	if err != nil {
		t.Fatalf("empty range must not fail: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no outputs, got %d", len(out))
	}
	if len(doc.visits) != 0 {
		t.Errorf("no page should be visited, got %v", doc.visits)
	}
}

func TestPlainTextRejectsInvalidRange(t *testing.T) {
	testCases := []PageRange{
		ResolvePageRange(1, 2, 2),
		ResolvePageRange(3, 0, 2),
	}

	for _, pr := range testCases {
		if _, err := Extract(newFakeDocument(2), PlainText, pr, nil); err == nil {
			t.Errorf("expected error for range %v", pr)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, op := range Operations() {
		doc, err := Decode([]byte("this is not a pdf"), op)
		if err == nil {
			doc.Close()
			t.Errorf("%s: expected decode error", op)
		}
	}
}

func twoPageDocument() []byte {
	return testpdf.Build(
		testpdf.Page{testpdf.At(10, 12, "Header one"), testpdf.At(72, 400, "page one body")},
		testpdf.Page{testpdf.At(10, 12, "Header two"), testpdf.At(72, 400, "page two body")},
	)
}

func TestExtractPlainTextFromPDF(t *testing.T) {
	doc, err := Decode(twoPageDocument(), PlainText)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer doc.Close()

	if doc.NumPage() != 2 {
		t.Fatalf("expected 2 pages, got %d", doc.NumPage())
	}

	out, err := Extract(doc, PlainText, ResolvePageRange(1, 1, doc.NumPage()), nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 output, got %d", len(out))
	}
	if !strings.Contains(out[0].Text, "page one body") {
		t.Errorf("expected page one text, got %q", out[0].Text)
	}
	if strings.Contains(out[0].Text, "page two") {
		t.Errorf("page two must be out of range, got %q", out[0].Text)
	}
	if out[0].RegionName != "" || out[0].MimeType != MimePlainText {
		t.Errorf("unexpected output metadata: %+v", out[0])
	}
}

func TestExtractRegionTextFromPDF(t *testing.T) {
	doc, err := Decode(twoPageDocument(), RegionText)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer doc.Close()

	regions := []Region{{Name: "TEST_AREA", X: 0, Y: 0, Width: 200, Height: 20}}
	out, err := Extract(doc, RegionText, ResolvePageRange(1, 0, doc.NumPage()), regions)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(out))
	}

	for i, want := range []string{"Header one", "Header two"} {
		if out[i].RegionName != "TEST_AREA" {
			t.Errorf("output %d: region %q", i, out[i].RegionName)
		}
		if !strings.Contains(out[i].Text, want) {
			t.Errorf("output %d: expected %q in %q", i, want, out[i].Text)
		}
		if strings.Contains(out[i].Text, "body") {
			t.Errorf("output %d: body text leaked into region: %q", i, out[i].Text)
		}
	}
}

func TestExtractHTMLFromPDF(t *testing.T) {
	doc, err := Decode(twoPageDocument(), HtmlText)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer doc.Close()

	out, err := Extract(doc, HtmlText, ResolvePageRange(1, 0, doc.NumPage()), nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 1 || out[0].MimeType != MimeHTML {
		t.Fatalf("expected one text/html output, got %+v", out)
	}
	if !strings.HasPrefix(out[0].Text, "<!DOCTYPE html>") || !strings.HasSuffix(out[0].Text, "</html>\n") {
		t.Errorf("output is not a complete HTML document: %q", out[0].Text)
	}
	if !strings.Contains(out[0].Text, "Header") {
		t.Errorf("expected page text in HTML, got %q", out[0].Text)
	}

	if _, err := Extract(doc, HtmlText, ResolvePageRange(1, 2, doc.NumPage()), nil); err == nil {
		t.Error("expected error for empty HTML range")
	}
}

func TestRecoverIntoConvertsPanic(t *testing.T) {
	render := func() (html string, err error) {
		defer recoverInto(&err)
		panic("renderer crashed")
	}

	html, err := render()
	if err == nil || !strings.Contains(err.Error(), "renderer crashed") {
		t.Errorf("expected recovered error, got %v", err)
	}
	if html != "" {
		t.Errorf("expected empty result, got %q", html)
	}
}
