package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/observability"
	"github.com/samzimpfer/sheetparse/pipeline"
)

// StageConfig controls one OCR stage run over a normalized document.
type StageConfig struct {
	ManifestPath string
	OutPath      string
	Engine       Engine
	Options      []InputOption
	Logger       observability.Logger
}

// Run executes Stage 1: read the normalization manifest, recognize each
// page image, mint stable token identifiers in engine emission order,
// and write the OCR artifact atomically.
func Run(ctx context.Context, cfg StageConfig) (*artifact.OCRDocument, error) {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	if cfg.Engine == nil {
		return nil, pipeline.NewError(pipeline.KindConfigInvalid, "", nil, "no OCR engine configured")
	}

	raw, err := os.ReadFile(cfg.ManifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pipeline.NewError(pipeline.KindInputMissing, cfg.ManifestPath, err, "manifest not found")
		}
		return nil, pipeline.NewError(pipeline.KindInputMissing, cfg.ManifestPath, err, "manifest unreadable: %v", err)
	}
	manifest, err := artifact.DecodeManifest(raw)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInputMalformed, cfg.ManifestPath, err, "%v", err)
	}

	inputs := make([]Input, 0, len(manifest.Pages))
	imageDir := filepath.Dir(cfg.ManifestPath)
	for _, page := range manifest.Pages {
		imagePath := page.Image
		if !filepath.IsAbs(imagePath) {
			imagePath = filepath.Join(imageDir, imagePath)
		}
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, pipeline.NewError(pipeline.KindInputMissing, imagePath, err, "page image unreadable: %v", err)
		}
		in := Input{
			ID:      fmt.Sprintf("page-%03d", page.PageNum),
			Image:   data,
			Format:  formatForPath(imagePath),
			PageNum: page.PageNum,
			DPI:     manifest.Render.DPI,
		}
		for _, opt := range cfg.Options {
			opt(&in)
		}
		inputs = append(inputs, in)
	}

	start := time.Now()
	results, err := recognizeAll(ctx, cfg.Engine, inputs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ocr canceled: %w", err)
		}
		return nil, pipeline.NewError(pipeline.KindInputMalformed, cfg.ManifestPath, err, "recognition failed: %v", err)
	}

	doc := &artifact.OCRDocument{
		DocID: manifest.DocID,
		Pages: make([]artifact.OCRPage, len(manifest.Pages)),
	}
	tokenTotal := 0
	for i, page := range manifest.Pages {
		tokens := make([]artifact.Token, 0, len(results[i].Words))
		for j, word := range results[i].Words {
			tok := artifact.Token{
				TokenID: artifact.TokenID(page.PageNum, j),
				PageNum: page.PageNum,
				Text:    word.Text,
				BBox:    word.BBox,
			}
			if word.HasConfidence {
				conf := word.Confidence
				rawConf := word.RawConfidence
				tok.Confidence = &conf
				tok.RawConfidence = &rawConf
			}
			tokens = append(tokens, tok)
		}
		doc.Pages[i] = artifact.OCRPage{
			PageNum: page.PageNum,
			Image:   page.Image,
			Width:   page.Width,
			Height:  page.Height,
			Tokens:  tokens,
		}
		tokenTotal += len(tokens)
	}

	data, err := artifact.EncodeCanonical(doc)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInternalInvariantViolated, "", err, "serialize ocr artifact: %v", err)
	}
	if err := pipeline.WriteFileAtomic(cfg.OutPath, data); err != nil {
		return nil, pipeline.NewError(pipeline.KindOutputUnwritable, cfg.OutPath, err, "write ocr artifact: %v", err)
	}
	log.Info("ocr complete",
		observability.String("doc_id", doc.DocID),
		observability.String("engine", cfg.Engine.Name()),
		observability.Int("pages", len(doc.Pages)),
		observability.Int("tokens", tokenTotal),
		observability.Int64("ns", time.Since(start).Nanoseconds()),
	)
	return doc, nil
}

// recognizeAll prefers batch engines and falls back to sequential
// recognition. The sequential path checks cancellation between pages;
// a batch engine handles cancellation inside RecognizeBatch.
func recognizeAll(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		results, err := b.RecognizeBatch(ctx, inputs)
		if err != nil {
			return nil, err
		}
		if len(results) != len(inputs) {
			return nil, fmt.Errorf("engine returned %d results for %d inputs", len(results), len(inputs))
		}
		return results, nil
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func formatForPath(path string) ImageFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return ImageFormatJPEG
	case ".tif", ".tiff":
		return ImageFormatTIFF
	default:
		return ImageFormatPNG
	}
}
