package group

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/geo"
)

func tok(id string, x0, y0, x1, y1 int, text string) artifact.Token {
	return artifact.Token{
		TokenID: id,
		PageNum: 1,
		Text:    text,
		BBox:    geo.Rect{X0: x0, Y0: y0, X1: x1, Y1: y1},
	}
}

func withConf(t artifact.Token, conf float64) artifact.Token {
	t.Confidence = &conf
	return t
}

func page(tokens ...artifact.Token) artifact.OCRPage {
	return artifact.OCRPage{PageNum: 1, Image: "page_001.png", Width: 100, Height: 100, Tokens: tokens}
}

func doc(pages ...artifact.OCRPage) *artifact.OCRDocument {
	return &artifact.OCRDocument{DocID: "b2-test", Pages: pages}
}

func build(t *testing.T, d *artifact.OCRDocument, cfg artifact.GroupingConfig) *artifact.GroupingDocument {
	t.Helper()
	out, err := BuildDocument(context.Background(), d, cfg, Options{Jobs: 1})
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	return out
}

func TestEmptyDocument(t *testing.T) {
	out := build(t, doc(page()), artifact.DefaultGroupingConfig())
	if len(out.Pages) != 1 {
		t.Fatalf("empty page must still be emitted")
	}
	p := out.Pages[0]
	if len(p.Lines) != 0 || len(p.Blocks) != 0 || len(p.Regions) != 0 {
		t.Fatalf("empty page produced content: %+v", p)
	}
	if !p.RegionsEnabled {
		t.Fatalf("regions enabled by default")
	}
	if out.Meta.Counts.Lines != 0 || out.Meta.Counts.Blocks != 0 {
		t.Fatalf("counts not zero: %+v", out.Meta.Counts)
	}
}

func TestTwoAlignedTokensShareLine(t *testing.T) {
	out := build(t, doc(page(
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 40, 11, 60, 21, "B"),
	)), artifact.DefaultGroupingConfig())

	p := out.Pages[0]
	if len(p.Lines) != 1 {
		t.Fatalf("want one line, got %d", len(p.Lines))
	}
	line := p.Lines[0]
	if line.LineID != "p001_l000000" {
		t.Fatalf("unexpected line id %s", line.LineID)
	}
	if !reflect.DeepEqual(line.TokenIDs, []string{"p001_t000000", "p001_t000001"}) {
		t.Fatalf("unexpected token order: %v", line.TokenIDs)
	}
	if line.BBox != (geo.Rect{X0: 10, Y0: 10, X1: 60, Y1: 21}) {
		t.Fatalf("unexpected line bbox: %+v", line.BBox)
	}
	if line.Text != "A B" {
		t.Fatalf("unexpected joined text: %q", line.Text)
	}
	if len(p.Blocks) != 1 || p.Blocks[0].BlockID != "p001_b000000" {
		t.Fatalf("want single block p001_b000000, got %+v", p.Blocks)
	}
}

func TestStackedTokensSplitBlocks(t *testing.T) {
	out := build(t, doc(page(
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 10, 40, 30, 50, "B"),
	)), artifact.DefaultGroupingConfig())

	p := out.Pages[0]
	if len(p.Lines) != 2 {
		t.Fatalf("want two lines, got %d", len(p.Lines))
	}
	// Median height 10, block_y_gap_k 1.5 -> threshold 15; gap is 20.
	if len(p.Blocks) != 2 {
		t.Fatalf("want two blocks, got %d", len(p.Blocks))
	}
}

func TestBlockGapThresholdInclusive(t *testing.T) {
	cfg := artifact.DefaultGroupingConfig()
	// Median height 10 -> gap threshold 15. Gap of exactly 15 joins.
	out := build(t, doc(page(
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 10, 35, 30, 45, "B"),
	)), cfg)
	if got := len(out.Pages[0].Blocks); got != 1 {
		t.Fatalf("gap equal to threshold must join: got %d blocks", got)
	}

	out = build(t, doc(page(
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 10, 36, 30, 46, "B"),
	)), cfg)
	if got := len(out.Pages[0].Blocks); got != 2 {
		t.Fatalf("gap above threshold must split: got %d blocks", got)
	}
}

func TestConfidenceFloor(t *testing.T) {
	cfg := artifact.DefaultGroupingConfig()
	cfg.ConfidenceFloor = 0.5
	out := build(t, doc(page(
		withConf(tok("p001_t000000", 10, 10, 30, 20, "A"), 0.9),
		withConf(tok("p001_t000001", 40, 11, 60, 21, "B"), 0.2),
	)), cfg)

	p := out.Pages[0]
	if len(p.Lines) != 1 || len(p.Lines[0].TokenIDs) != 1 || p.Lines[0].TokenIDs[0] != "p001_t000000" {
		t.Fatalf("want single-token line for T1, got %+v", p.Lines)
	}
	want := []artifact.DroppedToken{{TokenID: "p001_t000001", Reason: artifact.DropBelowConfidenceFloor}}
	if !reflect.DeepEqual(out.Meta.DroppedTokens, want) {
		t.Fatalf("unexpected ledger: %+v", out.Meta.DroppedTokens)
	}
	if out.Meta.Counts.TokensIn != 2 || out.Meta.Counts.TokensRetained != 1 {
		t.Fatalf("unexpected counts: %+v", out.Meta.Counts)
	}
}

func TestAbsentConfidenceRetained(t *testing.T) {
	cfg := artifact.DefaultGroupingConfig()
	cfg.ConfidenceFloor = 0.9
	out := build(t, doc(page(tok("p001_t000000", 10, 10, 30, 20, "A"))), cfg)
	if len(out.Pages[0].Lines) != 1 {
		t.Fatalf("token without confidence must be retained")
	}
}

func TestSwappedBBoxRepaired(t *testing.T) {
	out := build(t, doc(page(
		tok("p001_t000000", 30, 10, 10, 20, "A"),
	)), artifact.DefaultGroupingConfig())

	p := out.Pages[0]
	if len(p.Lines) != 1 {
		t.Fatalf("repaired token must be retained")
	}
	if p.Lines[0].BBox != (geo.Rect{X0: 10, Y0: 10, X1: 30, Y1: 20}) {
		t.Fatalf("bbox not repaired: %+v", p.Lines[0].BBox)
	}
	if !reflect.DeepEqual(out.Meta.Warnings, []string{"repaired_swapped:p001_t000000"}) {
		t.Fatalf("missing repair warning: %v", out.Meta.Warnings)
	}
	if len(out.Meta.DroppedTokens) != 0 {
		t.Fatalf("repair is a warning, not a drop: %+v", out.Meta.DroppedTokens)
	}
}

func TestWhitespaceTokenDropped(t *testing.T) {
	out := build(t, doc(page(tok("p001_t000000", 10, 10, 30, 20, "  "))), artifact.DefaultGroupingConfig())
	p := out.Pages[0]
	if len(p.Lines) != 0 || len(p.Blocks) != 0 {
		t.Fatalf("whitespace token must leave the page empty")
	}
	want := []artifact.DroppedToken{{TokenID: "p001_t000000", Reason: artifact.DropWhitespace}}
	if !reflect.DeepEqual(out.Meta.DroppedTokens, want) {
		t.Fatalf("unexpected ledger: %+v", out.Meta.DroppedTokens)
	}

	cfg := artifact.DefaultGroupingConfig()
	cfg.KeepWhitespaceTokens = true
	out = build(t, doc(page(tok("p001_t000000", 10, 10, 30, 20, "  "))), cfg)
	if len(out.Pages[0].Lines) != 1 {
		t.Fatalf("keep_whitespace_tokens must retain the token")
	}
}

func TestZeroAreaTokenDropped(t *testing.T) {
	out := build(t, doc(page(
		tok("p001_t000000", 10, 10, 10, 20, "A"),
		tok("p001_t000001", 10, 30, 30, 30, "B"),
	)), artifact.DefaultGroupingConfig())
	if len(out.Pages[0].Lines) != 0 {
		t.Fatalf("zero-area tokens must be dropped")
	}
	for _, d := range out.Meta.DroppedTokens {
		if d.Reason != artifact.DropZeroArea {
			t.Fatalf("unexpected reason %s", d.Reason)
		}
	}
}

func TestEqualYCentersShareLineRegardlessOfX(t *testing.T) {
	out := build(t, doc(page(
		tok("p001_t000000", 70, 10, 90, 20, "B"),
		tok("p001_t000001", 10, 10, 30, 20, "A"),
	)), artifact.DefaultGroupingConfig())
	p := out.Pages[0]
	if len(p.Lines) != 1 {
		t.Fatalf("equal y-centers must share a line, got %d", len(p.Lines))
	}
	if !reflect.DeepEqual(p.Lines[0].TokenIDs, []string{"p001_t000001", "p001_t000000"}) {
		t.Fatalf("reading order must be left to right: %v", p.Lines[0].TokenIDs)
	}
}

func TestTokenJoinsNearestLine(t *testing.T) {
	cfg := artifact.DefaultGroupingConfig()
	cfg.LineYCenterK = 0.6
	cfg.LineYOverlapThreshold = 0.4
	// Median height 20 -> center tolerance 12. The tall token at
	// y 12..32 is within tolerance of both open lines but nearer the
	// short one at y 20..24; it must join that line.
	out := build(t, doc(page(
		tok("p001_t000000", 0, 0, 10, 20, "A"),
		tok("p001_t000001", 0, 20, 4, 24, "B"),
		tok("p001_t000002", 50, 12, 60, 32, "T"),
	)), cfg)

	p := out.Pages[0]
	if len(p.Lines) != 2 {
		t.Fatalf("want two lines, got %d", len(p.Lines))
	}
	if !reflect.DeepEqual(p.Lines[0].TokenIDs, []string{"p001_t000000"}) {
		t.Fatalf("first line should hold only A: %v", p.Lines[0].TokenIDs)
	}
	if !reflect.DeepEqual(p.Lines[1].TokenIDs, []string{"p001_t000001", "p001_t000002"}) {
		t.Fatalf("tall token must join the nearer line: %v", p.Lines[1].TokenIDs)
	}
}

func TestInputOrderInvariance(t *testing.T) {
	tokens := []artifact.Token{
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 40, 11, 60, 21, "B"),
		tok("p001_t000002", 10, 40, 30, 50, "C"),
		tok("p001_t000003", 10, 10, 10, 20, "dead"),
		withConf(tok("p001_t000004", 40, 41, 60, 51, "D"), 0.1),
	}
	cfg := artifact.DefaultGroupingConfig()
	cfg.ConfidenceFloor = 0.5

	reference := build(t, doc(page(tokens...)), cfg)
	refBytes, err := artifact.EncodeCanonical(reference)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	permuted := []artifact.Token{tokens[4], tokens[2], tokens[0], tokens[3], tokens[1]}
	other := build(t, doc(page(permuted...)), cfg)
	otherBytes, err := artifact.EncodeCanonical(other)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(refBytes, otherBytes) {
		t.Fatalf("output depends on input token order")
	}
}

func TestDeterminismAcrossRunsAndWorkers(t *testing.T) {
	pages := make([]artifact.OCRPage, 0, 4)
	for p := 1; p <= 4; p++ {
		var toks []artifact.Token
		for i := 0; i < 12; i++ {
			y := 10 + (i/3)*25
			x := 10 + (i%3)*30
			toks = append(toks, artifact.Token{
				TokenID: artifact.TokenID(p, i),
				PageNum: p,
				Text:    "t",
				BBox:    geo.Rect{X0: x, Y0: y, X1: x + 20, Y1: y + 10},
			})
		}
		pages = append(pages, artifact.OCRPage{PageNum: p, Image: "x.png", Width: 200, Height: 200, Tokens: toks})
	}
	d := doc(pages...)
	cfg := artifact.DefaultGroupingConfig()

	serial, err := BuildDocument(context.Background(), d, cfg, Options{Jobs: 1})
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	parallel, err := BuildDocument(context.Background(), d, cfg, Options{Jobs: 4})
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	a, _ := artifact.EncodeCanonical(serial)
	b, _ := artifact.EncodeCanonical(parallel)
	if !bytes.Equal(a, b) {
		t.Fatalf("worker count changed output bytes")
	}
}

func TestRegionsTitleBlockAndUnknown(t *testing.T) {
	out := build(t, doc(page(
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 60, 60, 90, 70, "B"),
	)), artifact.DefaultGroupingConfig())

	p := out.Pages[0]
	if len(p.Blocks) != 2 {
		t.Fatalf("want two blocks, got %d", len(p.Blocks))
	}
	if len(p.Regions) != 2 {
		t.Fatalf("want UNKNOWN plus TITLE_BLOCK, got %+v", p.Regions)
	}
	if p.Regions[0].RegionID != "p001_r000000" || p.Regions[0].Label != artifact.RegionUnknown {
		t.Fatalf("unexpected first region: %+v", p.Regions[0])
	}
	if p.Regions[1].Label != artifact.RegionTitleBlock {
		t.Fatalf("bottom-right block must be TITLE_BLOCK: %+v", p.Regions[1])
	}
	// Regions partition blocks.
	seen := map[string]bool{}
	for _, r := range p.Regions {
		for _, id := range r.BlockIDs {
			if seen[id] {
				t.Fatalf("block %s in two regions", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != len(p.Blocks) {
		t.Fatalf("regions do not cover all blocks")
	}
}

func TestRegionsDisabled(t *testing.T) {
	cfg := artifact.DefaultGroupingConfig()
	cfg.DisableRegions = true
	out := build(t, doc(page(tok("p001_t000000", 10, 10, 30, 20, "A"))), cfg)
	p := out.Pages[0]
	if p.RegionsEnabled || p.Regions != nil {
		t.Fatalf("regions must be absent when disabled: %+v", p)
	}
	data, err := artifact.EncodeCanonical(out)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Contains(data, []byte(`"regions"`)) {
		t.Fatalf("regions key serialized while disabled")
	}
}

func TestOmitTextFields(t *testing.T) {
	cfg := artifact.DefaultGroupingConfig()
	cfg.OmitTextFields = true
	out := build(t, doc(page(
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 40, 11, 60, 21, "B"),
	)), cfg)
	p := out.Pages[0]
	if p.Lines[0].Text != "" || p.Blocks[0].Text != "" {
		t.Fatalf("text fields must be omitted")
	}
}

func TestCellCandidatesColumns(t *testing.T) {
	cfg := artifact.DefaultGroupingConfig()
	cfg.EnableCellCandidates = true
	var toks []artifact.Token
	for i := 0; i < 4; i++ {
		y := 10 + i*15
		toks = append(toks,
			artifact.Token{TokenID: artifact.TokenID(1, i*2), PageNum: 1, Text: "k", BBox: geo.Rect{X0: 10, Y0: y, X1: 30, Y1: y + 10}},
			artifact.Token{TokenID: artifact.TokenID(1, i*2+1), PageNum: 1, Text: "v", BBox: geo.Rect{X0: 60, Y0: y, X1: 80, Y1: y + 10}},
		)
	}
	out := build(t, doc(page(toks...)), cfg)
	cands := out.Pages[0].CellCandidates
	if len(cands) != 2 {
		t.Fatalf("want two column candidates, got %+v", cands)
	}
	for _, c := range cands {
		if c.Kind != "column" || len(c.TokenIDs) != 4 || c.Score != 1 {
			t.Fatalf("unexpected candidate: %+v", c)
		}
	}
}

func TestSinglePageSingleToken(t *testing.T) {
	out := build(t, doc(page(tok("p001_t000000", 10, 10, 30, 20, "A"))), artifact.DefaultGroupingConfig())
	p := out.Pages[0]
	if len(p.Lines) != 1 || len(p.Blocks) != 1 || len(p.Regions) != 1 {
		t.Fatalf("single token page: %d lines %d blocks %d regions", len(p.Lines), len(p.Blocks), len(p.Regions))
	}
}

func TestVerifyCatchesTampering(t *testing.T) {
	d := doc(page(
		tok("p001_t000000", 10, 10, 30, 20, "A"),
		tok("p001_t000001", 40, 11, 60, 21, "B"),
	))
	out := build(t, d, artifact.DefaultGroupingConfig())

	broken := *out
	broken.Pages = append([]artifact.GroupingPage(nil), out.Pages...)
	broken.Pages[0].Lines = append([]artifact.Line(nil), out.Pages[0].Lines...)
	broken.Pages[0].Lines[0].BBox.X1 += 5
	if err := Verify(d, &broken); err == nil {
		t.Fatalf("loose bbox not caught")
	}

	broken = *out
	broken.Pages = append([]artifact.GroupingPage(nil), out.Pages...)
	broken.Pages[0].Lines = append([]artifact.Line(nil), out.Pages[0].Lines...)
	broken.Pages[0].Lines[0].TokenIDs = []string{"p001_t000000"}
	broken.Pages[0].Lines[0].BBox = geo.Rect{X0: 10, Y0: 10, X1: 30, Y1: 20}
	if err := Verify(d, &broken); err == nil {
		t.Fatalf("unassigned retained token not caught")
	}
}
