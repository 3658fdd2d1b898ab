// Package artifact defines the pipeline's interchange documents: the
// normalization manifest (Stage 0), the OCR artifact (Stage 1), and the
// grouping artifact (Stage 2). The Go struct declarations are the single
// encoding of each schema; JSON Schema generation and input validation
// both derive from them. Field declaration order is the canonical key
// order on the wire.
package artifact

import (
	"bytes"
	"encoding/json"

	"github.com/samzimpfer/sheetparse/geo"
)

// Manifest is the Stage 0 output describing a normalized document.
type Manifest struct {
	DocID  string         `json:"doc_id"`
	Source ManifestSource `json:"source"`
	Render RenderParams   `json:"render"`
	Pages  []ManifestPage `json:"pages"`
}

// ManifestSource records where the document came from.
type ManifestSource struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

// RenderParams captures the rasterization parameters applied by the
// normalizer.
type RenderParams struct {
	DPI       int    `json:"dpi"`
	Filter    string `json:"filter"`
	Grayscale bool   `json:"grayscale"`
}

// ManifestPage is one normalized page image.
type ManifestPage struct {
	PageNum int    `json:"page_num"`
	Image   string `json:"image"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// OCRDocument is the Stage 1 output: every recognized token of every
// page, in engine emission order. Stage 2 must not depend on that order.
type OCRDocument struct {
	DocID string    `json:"doc_id"`
	Pages []OCRPage `json:"pages"`
}

// OCRPage carries the tokens recognized on a single page image.
type OCRPage struct {
	PageNum int     `json:"page_num"`
	Image   string  `json:"image"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Tokens  []Token `json:"tokens"`
}

// Token is one OCR-detected text element. TokenID is stable, unique in
// the document, and encodes the page number. Confidence is absent when
// the engine reports none; when present it is normalized to [0,1].
type Token struct {
	TokenID       string   `json:"token_id"`
	PageNum       int      `json:"page_num"`
	Text          string   `json:"text"`
	BBox          geo.Rect `json:"bbox"`
	Confidence    *float64 `json:"confidence,omitempty"`
	RawConfidence *float64 `json:"raw_confidence,omitempty"`
}

// GroupingDocument is the Stage 2 output.
type GroupingDocument struct {
	DocID string         `json:"doc_id"`
	Pages []GroupingPage `json:"pages"`
	Meta  GroupingMeta   `json:"meta"`
}

// GroupingPage holds the structural groupings of one page. The regions
// key is present on the wire only when the region labeler was enabled;
// RegionsEnabled tracks that and is not serialized itself.
type GroupingPage struct {
	PageNum        int             `json:"page_num"`
	Lines          []Line          `json:"lines"`
	Blocks         []Block         `json:"blocks"`
	Regions        []Region        `json:"regions,omitempty"`
	RegionsEnabled bool            `json:"-"`
	CellCandidates []CellCandidate `json:"cell_candidates"`
}

// Line is a horizontal band of tokens in reading order.
type Line struct {
	LineID   string   `json:"line_id"`
	TokenIDs []string `json:"token_ids"`
	BBox     geo.Rect `json:"line_bbox"`
	Text     string   `json:"text,omitempty"`
}

// Block is a vertically contiguous run of lines with compatible
// horizontal extent.
type Block struct {
	BlockID string   `json:"block_id"`
	LineIDs []string `json:"line_ids"`
	BBox    geo.Rect `json:"block_bbox"`
	Text    string   `json:"text,omitempty"`
}

// RegionLabel is a geometry-only structural tag. Labels are never
// derived from token text.
type RegionLabel string

const (
	RegionTitleBlock RegionLabel = "TITLE_BLOCK"
	RegionTableLike  RegionLabel = "TABLE_LIKE"
	RegionNote       RegionLabel = "NOTE"
	RegionAnnotation RegionLabel = "ANNOTATION"
	RegionUnknown    RegionLabel = "UNKNOWN"
)

// Region is a coarse grouping of blocks on a page.
type Region struct {
	RegionID string      `json:"region_id"`
	Label    RegionLabel `json:"label"`
	BlockIDs []string    `json:"block_ids"`
	BBox     geo.Rect    `json:"region_bbox"`
}

// CellCandidate is reserved for future table-cell detection. Candidates
// reference tokens or lines by ID and are derived from geometry only.
type CellCandidate struct {
	Kind     string   `json:"kind"`
	TokenIDs []string `json:"token_ids,omitempty"`
	LineIDs  []string `json:"line_ids,omitempty"`
	BBox     geo.Rect `json:"bbox"`
	Score    float64  `json:"score"`
}

// GroupingMeta is the audit section of the grouping artifact.
type GroupingMeta struct {
	GroupingVersion string         `json:"grouping_version"`
	Config          GroupingConfig `json:"config"`
	Definitions     Definitions    `json:"definitions"`
	Counts          Counts         `json:"counts"`
	DroppedTokens   []DroppedToken `json:"dropped_tokens"`
	Warnings        []string       `json:"warnings"`
}

// Definitions pins down the interpretation of thresholds that have
// drifted between revisions of the pipeline's documentation.
type Definitions struct {
	LineOverlap    string `json:"line_overlap"`
	RegionQuadrant string `json:"region_quadrant"`
}

// Counts summarizes the grouping result.
type Counts struct {
	TokensIn       int `json:"n_tokens_in"`
	TokensRetained int `json:"n_tokens_retained"`
	Lines          int `json:"n_lines"`
	Blocks         int `json:"n_blocks"`
	Regions        int `json:"n_regions"`
}

// Drop reasons recorded in the dropped-token ledger.
const (
	DropZeroArea             = "zero_area"
	DropWhitespace           = "whitespace"
	DropBelowConfidenceFloor = "below_confidence_floor"
)

// WarnRepairedSwapped prefixes warnings for tokens whose bbox endpoints
// were swapped during repair. Repaired tokens are retained, so they are
// recorded as warnings rather than drops.
const WarnRepairedSwapped = "repaired_swapped"

// DroppedToken is one ledger entry. Dropped tokens appear nowhere else
// in the artifact.
type DroppedToken struct {
	TokenID string `json:"token_id"`
	Reason  string `json:"reason"`
}

// groupingPageWire mirrors GroupingPage for (un)marshaling, with the
// regions key made detectable so absent and empty can round-trip.
type groupingPageWire struct {
	PageNum        int             `json:"page_num"`
	Lines          []Line          `json:"lines"`
	Blocks         []Block         `json:"blocks"`
	Regions        *[]Region       `json:"regions,omitempty"`
	CellCandidates []CellCandidate `json:"cell_candidates"`
}

// MarshalJSON emits the regions key only when the labeler was enabled,
// as an array even when empty. Encoding goes through a non-escaping
// encoder so text fields serialize the same way as the rest of the
// canonical output.
func (p GroupingPage) MarshalJSON() ([]byte, error) {
	w := groupingPageWire{
		PageNum:        p.PageNum,
		Lines:          emptyIfNil(p.Lines),
		Blocks:         emptyIfNil(p.Blocks),
		CellCandidates: emptyIfNil(p.CellCandidates),
	}
	if p.RegionsEnabled {
		regions := emptyIfNil(p.Regions)
		w.Regions = &regions
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON restores RegionsEnabled from the presence of the
// regions key.
func (p *GroupingPage) UnmarshalJSON(data []byte) error {
	var w groupingPageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.PageNum = w.PageNum
	p.Lines = w.Lines
	p.Blocks = w.Blocks
	p.CellCandidates = w.CellCandidates
	if w.Regions != nil {
		p.RegionsEnabled = true
		p.Regions = *w.Regions
	} else {
		p.RegionsEnabled = false
		p.Regions = nil
	}
	return nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
