package artifact

import "fmt"

// GroupingConfig is the immutable Stage 2 configuration. It is
// constructed once at startup, threaded explicitly into the line
// builder, block builder, and region labeler, and echoed verbatim into
// the artifact's meta section. Host concurrency is deliberately not
// part of it: parallelism must never change output bytes.
type GroupingConfig struct {
	ConfidenceFloor        float64 `json:"confidence_floor" yaml:"confidence_floor"`
	KeepWhitespaceTokens   bool    `json:"keep_whitespace_tokens" yaml:"keep_whitespace_tokens"`
	BBoxRepair             bool    `json:"bbox_repair" yaml:"bbox_repair"`
	LineYOverlapThreshold  float64 `json:"line_y_overlap_threshold" yaml:"line_y_overlap_threshold"`
	LineYCenterK           float64 `json:"line_y_center_k" yaml:"line_y_center_k"`
	MinLineYTolPx          int     `json:"min_line_y_tol_px" yaml:"min_line_y_tol_px"`
	BlockYGapK             float64 `json:"block_y_gap_k" yaml:"block_y_gap_k"`
	MinBlockGapPx          int     `json:"min_block_gap_px" yaml:"min_block_gap_px"`
	BlockXOverlapThreshold float64 `json:"block_x_overlap_threshold" yaml:"block_x_overlap_threshold"`
	DisableRegions         bool    `json:"disable_regions" yaml:"disable_regions"`
	EnableCellCandidates   bool    `json:"enable_cell_candidates" yaml:"enable_cell_candidates"`
	OmitTextFields         bool    `json:"omit_text_fields" yaml:"omit_text_fields"`
}

// DefaultGroupingConfig returns the documented defaults.
func DefaultGroupingConfig() GroupingConfig {
	return GroupingConfig{
		ConfidenceFloor:        0.0,
		KeepWhitespaceTokens:   false,
		BBoxRepair:             true,
		LineYOverlapThreshold:  0.5,
		LineYCenterK:           0.7,
		MinLineYTolPx:          2,
		BlockYGapK:             1.5,
		MinBlockGapPx:          4,
		BlockXOverlapThreshold: 0.1,
		DisableRegions:         false,
		EnableCellCandidates:   false,
		OmitTextFields:         false,
	}
}

// Validate rejects out-of-range configuration before any processing.
func (c GroupingConfig) Validate() error {
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor %v outside [0,1]", c.ConfidenceFloor)
	}
	if c.LineYOverlapThreshold < 0 || c.LineYOverlapThreshold > 1 {
		return fmt.Errorf("line_y_overlap_threshold %v outside [0,1]", c.LineYOverlapThreshold)
	}
	if c.BlockXOverlapThreshold < 0 || c.BlockXOverlapThreshold > 1 {
		return fmt.Errorf("block_x_overlap_threshold %v outside [0,1]", c.BlockXOverlapThreshold)
	}
	if c.LineYCenterK < 0 {
		return fmt.Errorf("line_y_center_k %v negative", c.LineYCenterK)
	}
	if c.BlockYGapK < 0 {
		return fmt.Errorf("block_y_gap_k %v negative", c.BlockYGapK)
	}
	if c.MinLineYTolPx < 0 {
		return fmt.Errorf("min_line_y_tol_px %d negative", c.MinLineYTolPx)
	}
	if c.MinBlockGapPx < 0 {
		return fmt.Errorf("min_block_gap_px %d negative", c.MinBlockGapPx)
	}
	return nil
}
