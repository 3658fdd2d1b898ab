// Package geo provides the pixel-space geometry primitives shared by the
// grouping stages. All rectangles live in page-image pixel space with the
// origin at the top-left corner, x increasing right and y increasing down.
package geo

import (
	"math"
	"sort"
)

// Rect is an axis-aligned bounding box in pixel coordinates satisfying
// X0 <= X1 and Y0 <= Y1 once canonicalized.
type Rect struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Width returns the horizontal extent in pixels.
func (r Rect) Width() int { return r.X1 - r.X0 }

// Height returns the vertical extent in pixels.
func (r Rect) Height() int { return r.Y1 - r.Y0 }

// YCenter returns the vertical midpoint.
func (r Rect) YCenter() float64 { return float64(r.Y0+r.Y1) / 2 }

// ZeroArea reports whether the box collapses to a line or point.
func (r Rect) ZeroArea() bool { return r.X0 == r.X1 || r.Y0 == r.Y1 }

// Canonical returns the rect with swapped endpoints repaired and reports
// whether a swap was needed on either axis.
func (r Rect) Canonical() (Rect, bool) {
	swapped := false
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
		swapped = true
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
		swapped = true
	}
	return r, swapped
}

// Union returns the smallest rect containing both operands.
func (r Rect) Union(o Rect) Rect {
	if o.X0 < r.X0 {
		r.X0 = o.X0
	}
	if o.Y0 < r.Y0 {
		r.Y0 = o.Y0
	}
	if o.X1 > r.X1 {
		r.X1 = o.X1
	}
	if o.Y1 > r.Y1 {
		r.Y1 = o.Y1
	}
	return r
}

// UnionAll folds Union over a non-empty slice. The caller guarantees at
// least one element.
func UnionAll(rects []Rect) Rect {
	u := rects[0]
	for _, r := range rects[1:] {
		u = u.Union(r)
	}
	return u
}

// YOverlapRatio returns the vertical overlap of a and b as a fraction of
// the smaller height. Zero when either height is zero or the bands are
// disjoint.
func YOverlapRatio(a, b Rect) float64 {
	minH := a.Height()
	if b.Height() < minH {
		minH = b.Height()
	}
	if minH <= 0 {
		return 0
	}
	hi := a.Y1
	if b.Y1 < hi {
		hi = b.Y1
	}
	lo := a.Y0
	if b.Y0 > lo {
		lo = b.Y0
	}
	if hi <= lo {
		return 0
	}
	return float64(hi-lo) / float64(minH)
}

// XOverlapRatio returns the horizontal overlap of a and b as a fraction
// of the smaller width.
func XOverlapRatio(a, b Rect) float64 {
	minW := a.Width()
	if b.Width() < minW {
		minW = b.Width()
	}
	if minW <= 0 {
		return 0
	}
	hi := a.X1
	if b.X1 < hi {
		hi = b.X1
	}
	lo := a.X0
	if b.X0 > lo {
		lo = b.X0
	}
	if hi <= lo {
		return 0
	}
	return float64(hi-lo) / float64(minW)
}

// MedianHeight returns the median of the rect heights: the middle value
// for odd counts, the mean of the two middle values for even counts, and
// zero for an empty slice.
func MedianHeight(rects []Rect) float64 {
	if len(rects) == 0 {
		return 0
	}
	heights := make([]int, len(rects))
	for i, r := range rects {
		heights[i] = r.Height()
	}
	sort.Ints(heights)
	mid := len(heights) / 2
	if len(heights)%2 == 1 {
		return float64(heights[mid])
	}
	return float64(heights[mid-1]+heights[mid]) / 2
}

// RoundThreshold scales base by k, rounds to the nearest pixel, and
// clamps to the floor value.
func RoundThreshold(base, k float64, floorPx int) int {
	px := int(math.Round(base * k))
	if px < floorPx {
		return floorPx
	}
	return px
}
