// Package report renders a grouping artifact into a human-readable
// audit report. Rendering is read-only and deterministic: the same
// artifact always produces the same bytes.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/samzimpfer/sheetparse/artifact"
)

// Markdown renders the audit report as markdown.
func Markdown(doc *artifact.GroupingDocument) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Grouping audit — %s\n\n", doc.DocID)
	fmt.Fprintf(&b, "Grouping version `%s`.\n\n", doc.Meta.GroupingVersion)

	b.WriteString("## Counts\n\n")
	b.WriteString("| metric | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| tokens in | %d |\n", doc.Meta.Counts.TokensIn)
	fmt.Fprintf(&b, "| tokens retained | %d |\n", doc.Meta.Counts.TokensRetained)
	fmt.Fprintf(&b, "| lines | %d |\n", doc.Meta.Counts.Lines)
	fmt.Fprintf(&b, "| blocks | %d |\n", doc.Meta.Counts.Blocks)
	fmt.Fprintf(&b, "| regions | %d |\n\n", doc.Meta.Counts.Regions)

	b.WriteString("## Pages\n\n")
	b.WriteString("| page | lines | blocks | regions | labels |\n|---|---|---|---|---|\n")
	for _, page := range doc.Pages {
		labels := "-"
		if page.RegionsEnabled && len(page.Regions) > 0 {
			parts := make([]string, len(page.Regions))
			for i, r := range page.Regions {
				parts[i] = string(r.Label)
			}
			labels = strings.Join(parts, ", ")
		}
		regions := "-"
		if page.RegionsEnabled {
			regions = fmt.Sprintf("%d", len(page.Regions))
		}
		fmt.Fprintf(&b, "| %d | %d | %d | %s | %s |\n", page.PageNum, len(page.Lines), len(page.Blocks), regions, labels)
	}
	b.WriteString("\n")

	if len(doc.Meta.DroppedTokens) > 0 {
		b.WriteString("## Dropped tokens\n\n")
		b.WriteString("| token | reason |\n|---|---|\n")
		for _, d := range doc.Meta.DroppedTokens {
			fmt.Fprintf(&b, "| `%s` | %s |\n", d.TokenID, d.Reason)
		}
		b.WriteString("\n")
	}
	if len(doc.Meta.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range doc.Meta.Warnings {
			fmt.Fprintf(&b, "- `%s`\n", w)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Configuration\n\n")
	cfg := doc.Meta.Config
	b.WriteString("| option | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| confidence_floor | %v |\n", cfg.ConfidenceFloor)
	fmt.Fprintf(&b, "| keep_whitespace_tokens | %v |\n", cfg.KeepWhitespaceTokens)
	fmt.Fprintf(&b, "| bbox_repair | %v |\n", cfg.BBoxRepair)
	fmt.Fprintf(&b, "| line_y_overlap_threshold | %v |\n", cfg.LineYOverlapThreshold)
	fmt.Fprintf(&b, "| line_y_center_k | %v |\n", cfg.LineYCenterK)
	fmt.Fprintf(&b, "| min_line_y_tol_px | %v |\n", cfg.MinLineYTolPx)
	fmt.Fprintf(&b, "| block_y_gap_k | %v |\n", cfg.BlockYGapK)
	fmt.Fprintf(&b, "| min_block_gap_px | %v |\n", cfg.MinBlockGapPx)
	fmt.Fprintf(&b, "| block_x_overlap_threshold | %v |\n", cfg.BlockXOverlapThreshold)
	fmt.Fprintf(&b, "| disable_regions | %v |\n", cfg.DisableRegions)
	fmt.Fprintf(&b, "| enable_cell_candidates | %v |\n", cfg.EnableCellCandidates)
	fmt.Fprintf(&b, "| omit_text_fields | %v |\n", cfg.OmitTextFields)
	fmt.Fprintf(&b, "\nDefinitions: line overlap `%s`, region quadrant `%s`.\n",
		doc.Meta.Definitions.LineOverlap, doc.Meta.Definitions.RegionQuadrant)

	return []byte(b.String())
}

// HTML converts the markdown report to a standalone HTML fragment.
func HTML(doc *artifact.GroupingDocument) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert(Markdown(doc), &buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
