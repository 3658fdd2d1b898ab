package group

import (
	"sort"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/geo"
)

// builtLine is a line before identifiers are minted.
type builtLine struct {
	bbox       geo.Rect
	tokens     []artifact.Token
	minTokenID string
	yCenterSum float64
}

func (l *builtLine) yCenter() float64 { return l.yCenterSum / float64(len(l.tokens)) }

func (l *builtLine) add(tok artifact.Token) {
	if len(l.tokens) == 0 {
		l.bbox = tok.BBox
		l.minTokenID = tok.TokenID
	} else {
		l.bbox = l.bbox.Union(tok.BBox)
		if tok.TokenID < l.minTokenID {
			l.minTokenID = tok.TokenID
		}
	}
	l.tokens = append(l.tokens, tok)
	l.yCenterSum += tok.BBox.YCenter()
}

// buildLines partitions the retained tokens of a page into lines by
// vertical alignment. Tokens are swept in (y_center, x0, token_id)
// order; each token joins the open line with the nearest running
// y-center within threshold whose band overlap meets the configured
// ratio (measured over the smaller of the two heights), earliest line
// winning ties. Every sort key bottoms out in token data, never input
// order, so the result is total and input-order invariant.
func buildLines(tokens []artifact.Token, medianHeight float64, cfg artifact.GroupingConfig) []builtLine {
	if len(tokens) == 0 {
		return nil
	}
	threshold := geo.RoundThreshold(medianHeight, cfg.LineYCenterK, cfg.MinLineYTolPx)

	sorted := make([]artifact.Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ac, bc := a.BBox.YCenter(), b.BBox.YCenter(); ac != bc {
			return ac < bc
		}
		if a.BBox.X0 != b.BBox.X0 {
			return a.BBox.X0 < b.BBox.X0
		}
		return a.TokenID < b.TokenID
	})

	var lines []*builtLine
	for _, tok := range sorted {
		best := -1
		bestDelta := 0.0
		for i, line := range lines {
			delta := line.yCenter() - tok.BBox.YCenter()
			if delta < 0 {
				delta = -delta
			}
			if delta > float64(threshold) {
				continue
			}
			if geo.YOverlapRatio(line.bbox, tok.BBox) < cfg.LineYOverlapThreshold {
				continue
			}
			if best == -1 || delta < bestDelta {
				best = i
				bestDelta = delta
			}
		}
		if best == -1 {
			line := &builtLine{}
			line.add(tok)
			lines = append(lines, line)
			continue
		}
		lines[best].add(tok)
	}

	// Reading order within each line.
	for _, line := range lines {
		sort.Slice(line.tokens, func(i, j int) bool {
			a, b := line.tokens[i], line.tokens[j]
			if a.BBox.X0 != b.BBox.X0 {
				return a.BBox.X0 < b.BBox.X0
			}
			if a.BBox.Y0 != b.BBox.Y0 {
				return a.BBox.Y0 < b.BBox.Y0
			}
			return a.TokenID < b.TokenID
		})
	}

	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.bbox.Y0 != b.bbox.Y0 {
			return a.bbox.Y0 < b.bbox.Y0
		}
		if a.bbox.X0 != b.bbox.X0 {
			return a.bbox.X0 < b.bbox.X0
		}
		return a.minTokenID < b.minTokenID
	})

	out := make([]builtLine, len(lines))
	for i, line := range lines {
		out[i] = *line
	}
	return out
}
