package extract

import (
	"strconv"
	"strings"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
)

// Fixed stage property names. Any other property declares a region.
const (
	PropOperation         = "Operation"
	PropStartPage         = "Start Page"
	PropEndPageSubtractor = "End Page subtractor"
	defaultStartPage      = 1
	defaultEndPageOffset  = 0
)

func isFixedProperty(name string) bool {
	return name == PropOperation || name == PropStartPage || name == PropEndPageSubtractor
}

// Options is the resolved stage configuration for one invocation.
type Options struct {
	Operation Operation
	StartPage int
	EndOffset int
	Regions   []Region
}

// ResolveOptions reads the stage properties. Regions are parsed only for
// RegionText, the one operation that consults them.
func ResolveOptions(props []flow.Property) (Options, error) {
	opts := Options{
		Operation: DefaultOperation,
		StartPage: defaultStartPage,
		EndOffset: defaultEndPageOffset,
	}

	if v, ok := flow.Lookup(props, PropOperation); ok && strings.TrimSpace(v) != "" {
		op, err := ParseOperation(strings.TrimSpace(v))
		if err != nil {
			return Options{}, err
		}
		opts.Operation = op
	}

	start, err := intProperty(props, PropStartPage, defaultStartPage)
	if err != nil {
		return Options{}, err
	}
	if start < 1 {
		return Options{}, apperrors.NewConfigurationError(PropStartPage, "must be a positive integer", nil)
	}
	opts.StartPage = start

	offset, err := intProperty(props, PropEndPageSubtractor, defaultEndPageOffset)
	if err != nil {
		return Options{}, err
	}
	if offset < 0 {
		return Options{}, apperrors.NewConfigurationError(PropEndPageSubtractor, "must not be negative", nil)
	}
	opts.EndOffset = offset

	if opts.Operation == RegionText {
		regions, err := ParseRegions(props)
		if err != nil {
			return Options{}, err
		}
		opts.Regions = regions
	}

	return opts, nil
}

func intProperty(props []flow.Property, name string, def int) (int, error) {
	v, ok := flow.Lookup(props, name)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, apperrors.NewConfigurationError(name, "not an integer", err)
	}
	return n, nil
}
