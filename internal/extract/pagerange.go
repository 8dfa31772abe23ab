package extract

import "fmt"

// PageRange is an inclusive, 1-based page interval. End < Start means the
// range is empty.
type PageRange struct {
	Start int
	End   int
}

// ResolvePageRange computes the interval to process. No clamping is applied:
// an end offset at or above the page count yields an empty range.
func ResolvePageRange(startPage, endOffset, totalPages int) PageRange {
	return PageRange{Start: startPage, End: totalPages - endOffset}
}

// Empty reports whether the range selects no page.
func (r PageRange) Empty() bool {
	return r.End < r.Start
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

func (r PageRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Start, r.End)
}

// validate rejects ranges a whole-range extraction cannot serve.
func (r PageRange) validate(totalPages int) error {
	if r.Start < 1 || r.Empty() || r.End > totalPages {
		return fmt.Errorf("page range %s is invalid for a %d-page document", r, totalPages)
	}
	return nil
}
