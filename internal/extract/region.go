package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
)

// Region is a named rectangle on a page. X and Y locate its top-left corner
// in PDF user-space units, measured from the page's top-left corner.
type Region struct {
	Name   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains reports whether the point lies inside the region. The right and
// bottom edges are exclusive.
func (r Region) Contains(x, y float64) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.Width && y < r.Y+r.Height
}

// ParseRegion parses one "x,y,width,height" declaration.
func ParseRegion(name, value string) (Region, error) {
	fields := strings.Split(value, ",")
	if len(fields) != 4 {
		return Region{}, apperrors.NewConfigurationError(name,
			fmt.Sprintf("region must be x,y,width,height, got %d fields", len(fields)), nil)
	}

	var nums [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Region{}, apperrors.NewConfigurationError(name,
				fmt.Sprintf("field %d (%q) is not a number", i+1, f), err)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Region{}, apperrors.NewConfigurationError(name,
				fmt.Sprintf("field %d (%q) is not a finite number", i+1, f), nil)
		}
		nums[i] = n
	}

	if nums[2] < 0 || nums[3] < 0 {
		return Region{}, apperrors.NewConfigurationError(name, "width and height must not be negative", nil)
	}

	return Region{Name: name, X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}, nil
}

// ParseRegions turns every dynamic property into a region, keeping
// declaration order. The fixed stage properties are skipped.
func ParseRegions(props []flow.Property) ([]Region, error) {
	var regions []Region
	for _, p := range props {
		if isFixedProperty(p.Name) {
			continue
		}
		r, err := ParseRegion(p.Name, p.Value)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}
