// Package ocr defines the abstraction layer for plugging third-party
// OCR engines into the pipeline and assembles their word-level output
// into the document OCR artifact. The interfaces are intentionally
// small and transport-agnostic so engines can be backed by native
// libraries or remote services without leaking provider-specific
// concerns into callers.
package ocr

import (
	"context"

	"github.com/samzimpfer/sheetparse/geo"
)

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Input encapsulates a single page image submitted for OCR.
type Input struct {
	// ID is a caller-provided identifier echoed back in the Result.
	ID string
	// Image is the encoded image payload in the format given by Format.
	Image []byte
	// Format declares the image content type.
	Format ImageFormat
	// PageNum links the input back to the 1-indexed page it came from.
	PageNum int
	// DPI carries the effective dots-per-inch; zero means unknown.
	DPI int
	// Languages lists trained-data hints (e.g. "eng", "deu").
	Languages []string
	// Metadata passes engine-specific knobs (e.g. "tessedit_pageseg_mode")
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// Word is one recognized token in page pixel coordinates. Confidence
// is normalized to [0,1]; RawConfidence is the engine-native value.
type Word struct {
	Text          string
	BBox          geo.Rect
	Confidence    float64
	HasConfidence bool
	RawConfidence float64
}

// Result captures OCR output for a single input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Words carries the recognized tokens in engine emission order.
	// Downstream grouping must not depend on that order.
	Words []Word
}

// Engine is the simplest OCR provider contract: one image in, one
// result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles multiple images in a single call, enabling
// providers that amortize setup costs or remote round-trips.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
