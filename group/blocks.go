package group

import (
	"sort"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/geo"
)

// builtBlock is a block before identifiers are minted. lineIdx holds
// the member indices into the sorted line slice, in line order.
type builtBlock struct {
	bbox    geo.Rect
	lineIdx []int
	maxY1   int
}

// buildBlocks groups the sorted lines of a page into blocks. A line
// joins the open block when its vertical gap to the block's lowest edge
// is within threshold (inclusive) and its horizontal projection overlaps
// the block by the configured ratio; otherwise the block closes and a
// new one opens. Conservative over-grouping is acceptable; lines never
// cross pages.
func buildBlocks(lines []builtLine, medianHeight float64, cfg artifact.GroupingConfig) []builtBlock {
	if len(lines) == 0 {
		return nil
	}
	threshold := geo.RoundThreshold(medianHeight, cfg.BlockYGapK, cfg.MinBlockGapPx)

	var blocks []*builtBlock
	var open *builtBlock
	for i, line := range lines {
		if open != nil {
			gap := line.bbox.Y0 - open.maxY1
			if gap <= threshold && geo.XOverlapRatio(open.bbox, line.bbox) >= cfg.BlockXOverlapThreshold {
				open.bbox = open.bbox.Union(line.bbox)
				open.lineIdx = append(open.lineIdx, i)
				if line.bbox.Y1 > open.maxY1 {
					open.maxY1 = line.bbox.Y1
				}
				continue
			}
		}
		open = &builtBlock{bbox: line.bbox, lineIdx: []int{i}, maxY1: line.bbox.Y1}
		blocks = append(blocks, open)
	}

	sort.Slice(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.bbox.Y0 != b.bbox.Y0 {
			return a.bbox.Y0 < b.bbox.Y0
		}
		if a.bbox.X0 != b.bbox.X0 {
			return a.bbox.X0 < b.bbox.X0
		}
		return a.lineIdx[0] < b.lineIdx[0]
	})

	out := make([]builtBlock, len(blocks))
	for i, b := range blocks {
		out[i] = *b
	}
	return out
}
