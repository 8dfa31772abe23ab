package extract

import (
	"fmt"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
)

// Operation selects the extraction strategy.
type Operation string

const (
	PlainText  Operation = "PlainText"
	RegionText Operation = "RegionText"
	HtmlText   Operation = "HtmlText"
)

// DefaultOperation applies when the Operation property is not set.
const DefaultOperation = HtmlText

// Output MIME types.
const (
	MimePlainText = "plain/text"
	MimeHTML      = "text/html"
)

// Operations lists every supported operation.
func Operations() []Operation {
	return []Operation{PlainText, RegionText, HtmlText}
}

// ParseOperation maps a property value to an Operation. Names match exactly.
func ParseOperation(name string) (Operation, error) {
	switch op := Operation(name); op {
	case PlainText, RegionText, HtmlText:
		return op, nil
	}
	return "", apperrors.NewConfigurationError(PropOperation,
		fmt.Sprintf("unknown operation %q (want one of %v)", name, Operations()), nil)
}

func (o Operation) String() string {
	return string(o)
}

// extractor runs one operation over a decoded document. A new extractor is
// built for every invocation.
type extractor interface {
	extract(doc Document, pr PageRange, regions []Region) ([]Output, error)
}

func (o Operation) newExtractor() (extractor, error) {
	switch o {
	case PlainText:
		return &plainTextExtractor{}, nil
	case RegionText:
		return &regionTextExtractor{}, nil
	case HtmlText:
		return &htmlTextExtractor{}, nil
	}
	return nil, fmt.Errorf("no extractor for operation %q", string(o))
}
