package group

import (
	"sort"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/geo"
)

// builtRegion is a region before identifiers are minted. blockIdx holds
// member indices into the sorted block slice, in block order.
type builtRegion struct {
	label    artifact.RegionLabel
	bbox     geo.Rect
	blockIdx []int
}

// buildRegions labels coarse region candidates from position and size
// alone; token text is never inspected. A block lying entirely inside
// the bottom-right quadrant of the page image (x0 >= W/2 and y0 >= H/2)
// becomes a TITLE_BLOCK candidate region of its own. All remaining
// blocks form a single UNKNOWN region so that regions partition the
// blocks of the page. TABLE_LIKE, NOTE and ANNOTATION are reserved for
// future geometry rules.
func buildRegions(blocks []builtBlock, pageWidth, pageHeight int) []builtRegion {
	if len(blocks) == 0 {
		return nil
	}
	var regions []builtRegion
	var rest []int
	for i, b := range blocks {
		inQuadrant := float64(b.bbox.X0) >= float64(pageWidth)/2 &&
			float64(b.bbox.Y0) >= float64(pageHeight)/2 &&
			b.bbox.X1 <= pageWidth && b.bbox.Y1 <= pageHeight
		if inQuadrant {
			regions = append(regions, builtRegion{
				label:    artifact.RegionTitleBlock,
				bbox:     b.bbox,
				blockIdx: []int{i},
			})
			continue
		}
		rest = append(rest, i)
	}
	if len(rest) > 0 {
		boxes := make([]geo.Rect, len(rest))
		for i, idx := range rest {
			boxes[i] = blocks[idx].bbox
		}
		regions = append(regions, builtRegion{
			label:    artifact.RegionUnknown,
			bbox:     geo.UnionAll(boxes),
			blockIdx: rest,
		})
	}

	sort.Slice(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		if a.bbox.Y0 != b.bbox.Y0 {
			return a.bbox.Y0 < b.bbox.Y0
		}
		if a.bbox.X0 != b.bbox.X0 {
			return a.bbox.X0 < b.bbox.X0
		}
		return a.blockIdx[0] < b.blockIdx[0]
	})
	return regions
}
