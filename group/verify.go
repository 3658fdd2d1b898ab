package group

import (
	"fmt"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/geo"
)

// Verify re-checks the structural invariants of a freshly built
// grouping artifact against its input. A failure here is a bug in the
// builders, surfaced with the violated invariant's name so callers can
// report it as InternalInvariantViolated.
func Verify(in *artifact.OCRDocument, out *artifact.GroupingDocument) error {
	if len(in.Pages) != len(out.Pages) {
		return fmt.Errorf("invariant page_coverage: %d input pages, %d output pages", len(in.Pages), len(out.Pages))
	}
	dropped := make(map[string]struct{}, len(out.Meta.DroppedTokens))
	for _, d := range out.Meta.DroppedTokens {
		dropped[d.TokenID] = struct{}{}
	}
	for i := range in.Pages {
		if err := verifyPage(&in.Pages[i], &out.Pages[i], out.Meta.Config, dropped); err != nil {
			return err
		}
	}
	return nil
}

func verifyPage(in *artifact.OCRPage, out *artifact.GroupingPage, cfg artifact.GroupingConfig, dropped map[string]struct{}) error {
	if in.PageNum != out.PageNum {
		return fmt.Errorf("invariant page_coverage: page %d emitted as %d", in.PageNum, out.PageNum)
	}

	// Token boxes as the builders saw them, repair applied.
	boxes := make(map[string]geo.Rect, len(in.Tokens))
	for _, tok := range in.Tokens {
		box := tok.BBox
		if cfg.BBoxRepair {
			box, _ = box.Canonical()
		}
		boxes[tok.TokenID] = box
	}

	seenTokens := make(map[string]string, len(boxes))
	for _, line := range out.Lines {
		if len(line.TokenIDs) == 0 {
			return fmt.Errorf("invariant non_empty_line: %s has no tokens", line.LineID)
		}
		lineBoxes := make([]geo.Rect, 0, len(line.TokenIDs))
		prev := geo.Rect{}
		prevID := ""
		for i, id := range line.TokenIDs {
			if _, isDropped := dropped[id]; isDropped {
				return fmt.Errorf("invariant drop_exclusion: dropped token %s appears in %s", id, line.LineID)
			}
			box, ok := boxes[id]
			if !ok {
				return fmt.Errorf("invariant token_provenance: %s references unknown token %s", line.LineID, id)
			}
			if owner, dup := seenTokens[id]; dup {
				return fmt.Errorf("invariant partition_tokens: token %s in both %s and %s", id, owner, line.LineID)
			}
			seenTokens[id] = line.LineID
			if i > 0 && !tokenOrderLE(prev, prevID, box, id) {
				return fmt.Errorf("invariant ordering_tokens: %s is out of reading order at %s", line.LineID, id)
			}
			prev, prevID = box, id
			lineBoxes = append(lineBoxes, box)
		}
		if union := geo.UnionAll(lineBoxes); union != line.BBox {
			return fmt.Errorf("invariant bbox_tightness_line: %s bbox %+v != union %+v", line.LineID, line.BBox, union)
		}
	}
	for _, tok := range in.Tokens {
		if _, isDropped := dropped[tok.TokenID]; isDropped {
			continue
		}
		if _, ok := seenTokens[tok.TokenID]; !ok {
			return fmt.Errorf("invariant partition_tokens: retained token %s is in no line", tok.TokenID)
		}
	}

	lineBBoxes := make(map[string]geo.Rect, len(out.Lines))
	for i, line := range out.Lines {
		if want := artifact.LineID(out.PageNum, i); line.LineID != want {
			return fmt.Errorf("invariant index_density: line %d has id %s, want %s", i, line.LineID, want)
		}
		lineBBoxes[line.LineID] = line.BBox
	}

	seenLines := make(map[string]string, len(out.Lines))
	for i, block := range out.Blocks {
		if want := artifact.BlockID(out.PageNum, i); block.BlockID != want {
			return fmt.Errorf("invariant index_density: block %d has id %s, want %s", i, block.BlockID, want)
		}
		if len(block.LineIDs) == 0 {
			return fmt.Errorf("invariant non_empty_block: %s has no lines", block.BlockID)
		}
		unionBoxes := make([]geo.Rect, 0, len(block.LineIDs))
		for _, id := range block.LineIDs {
			box, ok := lineBBoxes[id]
			if !ok {
				return fmt.Errorf("invariant line_provenance: %s references unknown line %s", block.BlockID, id)
			}
			if owner, dup := seenLines[id]; dup {
				return fmt.Errorf("invariant partition_lines: line %s in both %s and %s", id, owner, block.BlockID)
			}
			seenLines[id] = block.BlockID
			unionBoxes = append(unionBoxes, box)
		}
		if union := geo.UnionAll(unionBoxes); union != block.BBox {
			return fmt.Errorf("invariant bbox_tightness_block: %s bbox %+v != union %+v", block.BlockID, block.BBox, union)
		}
	}
	if len(seenLines) != len(out.Lines) {
		return fmt.Errorf("invariant partition_lines: %d of %d lines assigned to blocks on page %d", len(seenLines), len(out.Lines), out.PageNum)
	}

	if out.RegionsEnabled {
		blockBBoxes := make(map[string]geo.Rect, len(out.Blocks))
		for _, block := range out.Blocks {
			blockBBoxes[block.BlockID] = block.BBox
		}
		seenBlocks := make(map[string]string, len(out.Blocks))
		for i, region := range out.Regions {
			if want := artifact.RegionID(out.PageNum, i); region.RegionID != want {
				return fmt.Errorf("invariant index_density: region %d has id %s, want %s", i, region.RegionID, want)
			}
			unionBoxes := make([]geo.Rect, 0, len(region.BlockIDs))
			for _, id := range region.BlockIDs {
				box, ok := blockBBoxes[id]
				if !ok {
					return fmt.Errorf("invariant block_provenance: %s references unknown block %s", region.RegionID, id)
				}
				if owner, dup := seenBlocks[id]; dup {
					return fmt.Errorf("invariant partition_blocks: block %s in both %s and %s", id, owner, region.RegionID)
				}
				seenBlocks[id] = region.RegionID
				unionBoxes = append(unionBoxes, box)
			}
			if union := geo.UnionAll(unionBoxes); union != region.BBox {
				return fmt.Errorf("invariant bbox_tightness_region: %s bbox %+v != union %+v", region.RegionID, region.BBox, union)
			}
		}
		if len(seenBlocks) != len(out.Blocks) {
			return fmt.Errorf("invariant partition_blocks: %d of %d blocks assigned to regions on page %d", len(seenBlocks), len(out.Blocks), out.PageNum)
		}
	}
	return nil
}

// tokenOrderLE reports whether (a, aID) <= (b, bID) under the
// (x0, y0, token_id) reading order.
func tokenOrderLE(a geo.Rect, aID string, b geo.Rect, bID string) bool {
	if a.X0 != b.X0 {
		return a.X0 < b.X0
	}
	if a.Y0 != b.Y0 {
		return a.Y0 < b.Y0
	}
	return aID <= bID
}
