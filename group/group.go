package group

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/geo"
	"github.com/samzimpfer/sheetparse/observability"
)

// Version identifies the grouping semantics. Any change to ordering or
// threshold interpretation bumps it.
const Version = "2.0.0"

// Threshold interpretations recorded in the artifact meta.
const (
	defLineOverlap    = "y_overlap_over_min_height"
	defRegionQuadrant = "x0>=W/2,y0>=H/2"
)

// PageAudit carries a page's contribution to the artifact meta.
type PageAudit struct {
	TokensIn       int
	TokensRetained int
	Dropped        []artifact.DroppedToken
	Warnings       []string
}

// BuildPage groups one page. Pages share no state, so callers may run
// them concurrently as long as results merge back in page order.
func BuildPage(page artifact.OCRPage, cfg artifact.GroupingConfig) (artifact.GroupingPage, PageAudit) {
	audit := PageAudit{TokensIn: len(page.Tokens)}
	san := sanitizePage(page.Tokens, cfg)
	audit.TokensRetained = len(san.retained)
	audit.Dropped = san.dropped
	audit.Warnings = san.warnings

	boxes := make([]geo.Rect, len(san.retained))
	for i, tok := range san.retained {
		boxes[i] = tok.BBox
	}
	medianHeight := geo.MedianHeight(boxes)

	lines := buildLines(san.retained, medianHeight, cfg)
	blocks := buildBlocks(lines, medianHeight, cfg)

	out := artifact.GroupingPage{
		PageNum:        page.PageNum,
		Lines:          make([]artifact.Line, len(lines)),
		Blocks:         make([]artifact.Block, len(blocks)),
		RegionsEnabled: !cfg.DisableRegions,
		CellCandidates: []artifact.CellCandidate{},
	}
	for i, line := range lines {
		tokenIDs := make([]string, len(line.tokens))
		texts := make([]string, len(line.tokens))
		for j, tok := range line.tokens {
			tokenIDs[j] = tok.TokenID
			texts[j] = tok.Text
		}
		rec := artifact.Line{
			LineID:   artifact.LineID(page.PageNum, i),
			TokenIDs: tokenIDs,
			BBox:     line.bbox,
		}
		if !cfg.OmitTextFields {
			rec.Text = strings.Join(texts, " ")
		}
		out.Lines[i] = rec
	}
	for i, block := range blocks {
		lineIDs := make([]string, len(block.lineIdx))
		texts := make([]string, len(block.lineIdx))
		for j, idx := range block.lineIdx {
			lineIDs[j] = out.Lines[idx].LineID
			texts[j] = out.Lines[idx].Text
		}
		rec := artifact.Block{
			BlockID: artifact.BlockID(page.PageNum, i),
			LineIDs: lineIDs,
			BBox:    block.bbox,
		}
		if !cfg.OmitTextFields {
			rec.Text = strings.Join(texts, "\n")
		}
		out.Blocks[i] = rec
	}
	if !cfg.DisableRegions {
		regions := buildRegions(blocks, page.Width, page.Height)
		out.Regions = make([]artifact.Region, len(regions))
		for i, region := range regions {
			blockIDs := make([]string, len(region.blockIdx))
			for j, idx := range region.blockIdx {
				blockIDs[j] = out.Blocks[idx].BlockID
			}
			out.Regions[i] = artifact.Region{
				RegionID: artifact.RegionID(page.PageNum, i),
				Label:    region.label,
				BlockIDs: blockIDs,
				BBox:     region.bbox,
			}
		}
	}
	if cfg.EnableCellCandidates {
		if cands := buildCellCandidates(lines, medianHeight, cfg); cands != nil {
			out.CellCandidates = cands
		}
	}
	return out, audit
}

// Options controls document-level execution. Jobs is the page worker
// count; it affects wall-clock only, never output bytes.
type Options struct {
	Jobs   int
	Logger observability.Logger
}

// BuildDocument runs grouping over every page of a validated OCR
// artifact and assembles the grouping artifact. Pages are processed by
// a bounded worker pool and merged in strict page order before
// serialization. Cancellation aborts between pages.
func BuildDocument(ctx context.Context, doc *artifact.OCRDocument, cfg artifact.GroupingConfig, opts Options) (*artifact.GroupingDocument, error) {
	log := opts.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	workers := opts.Jobs
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(doc.Pages) {
		workers = len(doc.Pages)
	}
	if workers < 1 {
		workers = 1
	}

	type result struct {
		page  artifact.GroupingPage
		audit PageAudit
	}
	results := make([]result, len(doc.Pages))

	jobs := make(chan int, len(doc.Pages))
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					errs <- err
					return
				}
				page, audit := BuildPage(doc.Pages[idx], cfg)
				results[idx] = result{page: page, audit: audit}
			}
		}()
	}
	for idx := range doc.Pages {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}

	meta := artifact.GroupingMeta{
		GroupingVersion: Version,
		Config:          cfg,
		Definitions: artifact.Definitions{
			LineOverlap:    defLineOverlap,
			RegionQuadrant: defRegionQuadrant,
		},
		DroppedTokens: []artifact.DroppedToken{},
		Warnings:      []string{},
	}
	out := &artifact.GroupingDocument{
		DocID: doc.DocID,
		Pages: make([]artifact.GroupingPage, len(doc.Pages)),
	}
	for idx, r := range results {
		out.Pages[idx] = r.page
		meta.Counts.TokensIn += r.audit.TokensIn
		meta.Counts.TokensRetained += r.audit.TokensRetained
		meta.Counts.Lines += len(r.page.Lines)
		meta.Counts.Blocks += len(r.page.Blocks)
		meta.Counts.Regions += len(r.page.Regions)
		meta.DroppedTokens = append(meta.DroppedTokens, r.audit.Dropped...)
		meta.Warnings = append(meta.Warnings, r.audit.Warnings...)
	}
	sort.Slice(meta.DroppedTokens, func(i, j int) bool {
		return meta.DroppedTokens[i].TokenID < meta.DroppedTokens[j].TokenID
	})
	meta.Warnings = sortedUnique(meta.Warnings)
	out.Meta = meta

	if err := Verify(doc, out); err != nil {
		return nil, fmt.Errorf("post-build verification: %w", err)
	}
	log.Info("grouping complete",
		observability.String("doc_id", out.DocID),
		observability.Int("pages", len(out.Pages)),
		observability.Int("lines", meta.Counts.Lines),
		observability.Int("blocks", meta.Counts.Blocks),
		observability.Int("dropped", len(meta.DroppedTokens)),
	)
	return out, nil
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	sort.Strings(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
