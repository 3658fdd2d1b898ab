package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeCanonical serializes an artifact so that identical values
// produce byte-identical output: keys in struct declaration order,
// two-space indentation, no HTML escaping, LF line endings, and a
// single trailing newline. Map-typed fields are deliberately absent
// from the artifact types so no key ordering is left to the runtime.
func EncodeCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeOCRDocument parses an OCR artifact, failing only on JSON syntax
// or type errors; unknown fields are ignored. Schema and structural
// validation are separate gates applied by the caller.
func DecodeOCRDocument(data []byte) (*OCRDocument, error) {
	var doc OCRDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode ocr artifact: %w", err)
	}
	return &doc, nil
}

// DecodeGroupingDocument parses a grouping artifact.
func DecodeGroupingDocument(data []byte) (*GroupingDocument, error) {
	var doc GroupingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode grouping artifact: %w", err)
	}
	return &doc, nil
}

// DecodeManifest parses a normalization manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
