package group

import (
	"sort"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/geo"
)

// minColumnSpan is the number of distinct lines a left-edge alignment
// cluster must cover before it is reported as a column candidate.
const minColumnSpan = 3

// buildCellCandidates detects conservative table-column candidates from
// token alignment alone: tokens across at least minColumnSpan lines
// whose left edges agree within a tolerance derived from the median
// token height. Scoring is the fraction of the page's lines the column
// touches; it never gates emission.
func buildCellCandidates(lines []builtLine, medianHeight float64, cfg artifact.GroupingConfig) []artifact.CellCandidate {
	if !cfg.EnableCellCandidates || len(lines) < minColumnSpan {
		return nil
	}
	tolerance := geo.RoundThreshold(medianHeight, 0.5, 2)

	type member struct {
		lineIdx int
		token   artifact.Token
	}
	var members []member
	for i, line := range lines {
		for _, tok := range line.tokens {
			members = append(members, member{lineIdx: i, token: tok})
		}
	}
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.token.BBox.X0 != b.token.BBox.X0 {
			return a.token.BBox.X0 < b.token.BBox.X0
		}
		return a.token.TokenID < b.token.TokenID
	})

	var out []artifact.CellCandidate
	for start := 0; start < len(members); {
		end := start + 1
		anchor := members[start].token.BBox.X0
		for end < len(members) && members[end].token.BBox.X0-anchor <= tolerance {
			end++
		}
		cluster := members[start:end]
		start = end

		lineSet := make(map[int]struct{}, len(cluster))
		for _, m := range cluster {
			lineSet[m.lineIdx] = struct{}{}
		}
		if len(lineSet) < minColumnSpan {
			continue
		}
		boxes := make([]geo.Rect, len(cluster))
		tokenIDs := make([]string, len(cluster))
		for i, m := range cluster {
			boxes[i] = m.token.BBox
			tokenIDs[i] = m.token.TokenID
		}
		sort.Strings(tokenIDs)
		out = append(out, artifact.CellCandidate{
			Kind:     "column",
			TokenIDs: tokenIDs,
			BBox:     geo.UnionAll(boxes),
			Score:    float64(len(lineSet)) / float64(len(lines)),
		})
	}
	return out
}
