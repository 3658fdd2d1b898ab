// Package group implements deterministic structural grouping: it
// partitions the retained OCR tokens of each page into lines and blocks
// from geometry alone, optionally labels coarse regions, and assembles
// the grouping artifact with a full audit trail. No step inspects token
// text for meaning, calls a model, or draws randomness; two runs over
// identical inputs produce byte-identical artifacts.
package group

import (
	"strings"
	"unicode"

	"github.com/samzimpfer/sheetparse/artifact"
)

// sanitized is the outcome of token intake for one page.
type sanitized struct {
	retained []artifact.Token
	dropped  []artifact.DroppedToken
	warnings []string
}

// sanitizePage applies bbox repair, the whitespace filter, and the
// confidence floor, in that fixed order. The result is independent of
// the input token order: every decision depends only on the token
// itself, and the ledger is sorted during meta assembly.
func sanitizePage(tokens []artifact.Token, cfg artifact.GroupingConfig) sanitized {
	var out sanitized
	for _, tok := range tokens {
		if cfg.BBoxRepair {
			repaired, swapped := tok.BBox.Canonical()
			if swapped {
				tok.BBox = repaired
				out.warnings = append(out.warnings, artifact.WarnRepairedSwapped+":"+tok.TokenID)
			}
		}
		if _, invalid := tok.BBox.Canonical(); invalid || tok.BBox.ZeroArea() {
			// With repair disabled a non-canonical box is unusable and
			// is treated like a degenerate one.
			out.dropped = append(out.dropped, artifact.DroppedToken{TokenID: tok.TokenID, Reason: artifact.DropZeroArea})
			continue
		}
		if !cfg.KeepWhitespaceTokens && strings.TrimFunc(tok.Text, unicode.IsSpace) == "" {
			out.dropped = append(out.dropped, artifact.DroppedToken{TokenID: tok.TokenID, Reason: artifact.DropWhitespace})
			continue
		}
		if tok.Confidence != nil && *tok.Confidence < cfg.ConfidenceFloor {
			out.dropped = append(out.dropped, artifact.DroppedToken{TokenID: tok.TokenID, Reason: artifact.DropBelowConfidenceFloor})
			continue
		}
		out.retained = append(out.retained, tok)
	}
	return out
}
