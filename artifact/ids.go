package artifact

import "fmt"

// Identifier formats are bit-exact: downstream stages cite them as
// evidence anchors and must be able to reproduce them.

// TokenID mints the Stage 1 token identifier for a page-local index.
func TokenID(pageNum, index int) string {
	return fmt.Sprintf("p%03d_t%06d", pageNum, index)
}

// LineID mints the Stage 2 line identifier for a page-local index.
func LineID(pageNum, index int) string {
	return fmt.Sprintf("p%03d_l%06d", pageNum, index)
}

// BlockID mints the Stage 2 block identifier for a page-local index.
func BlockID(pageNum, index int) string {
	return fmt.Sprintf("p%03d_b%06d", pageNum, index)
}

// RegionID mints the Stage 2 region identifier for a page-local index.
func RegionID(pageNum, index int) string {
	return fmt.Sprintf("p%03d_r%06d", pageNum, index)
}
