// Package normalize implements Stage 0: it takes the rasterizer's page
// images, re-encodes them into a uniform PNG page set, and emits the
// normalization manifest with a stable document identifier. PDF
// rendering itself is an external collaborator; this stage only
// normalizes its output.
package normalize

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	_ "image/jpeg"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/observability"
	"github.com/samzimpfer/sheetparse/pipeline"
)

// Config controls one normalization run. Either ImagePaths (ordered) or
// ImageDir (scanned in lexical order) supplies the page images.
type Config struct {
	SourcePath  string
	ImagePaths  []string
	ImageDir    string
	OutManifest string
	OutImageDir string
	DPI         int
	Scale       float64
	Grayscale   bool
	Logger      observability.Logger
}

var pageImageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

// Run normalizes the page images and writes the manifest atomically.
func Run(ctx context.Context, cfg Config) (*artifact.Manifest, error) {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	paths, err := resolvePagePaths(cfg)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInputMissing, cfg.ImageDir, err, "%v", err)
	}
	if len(paths) == 0 {
		return nil, pipeline.NewError(pipeline.KindInputMissing, cfg.ImageDir, nil, "no page images found")
	}

	docID, err := computeDocID(cfg.SourcePath, paths)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInputMissing, cfg.SourcePath, err, "%v", err)
	}

	if err := os.MkdirAll(cfg.OutImageDir, 0o755); err != nil {
		return nil, pipeline.NewError(pipeline.KindOutputUnwritable, cfg.OutImageDir, err, "create image dir: %v", err)
	}

	scale := cfg.Scale
	if scale <= 0 {
		scale = 1
	}
	manifest := &artifact.Manifest{
		DocID: docID,
		Source: artifact.ManifestSource{
			Path:   cfg.SourcePath,
			Digest: strings.TrimPrefix(docID, "b2-"),
		},
		Render: artifact.RenderParams{
			DPI:       cfg.DPI,
			Filter:    "nearest",
			Grayscale: cfg.Grayscale,
		},
		Pages: make([]artifact.ManifestPage, 0, len(paths)),
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("normalize canceled: %w", err)
		}
		img, err := decodeImage(path)
		if err != nil {
			return nil, pipeline.NewError(pipeline.KindInputMalformed, path, err, "decode page image: %v", err)
		}
		img = transform(img, scale, cfg.Grayscale)

		pageNum := i + 1
		name := fmt.Sprintf("page_%03d.png", pageNum)
		outPath := filepath.Join(cfg.OutImageDir, name)
		if err := writePNGAtomic(outPath, img); err != nil {
			return nil, pipeline.NewError(pipeline.KindOutputUnwritable, outPath, err, "write page image: %v", err)
		}
		bounds := img.Bounds()
		manifest.Pages = append(manifest.Pages, artifact.ManifestPage{
			PageNum: pageNum,
			Image:   name,
			Width:   bounds.Dx(),
			Height:  bounds.Dy(),
		})
		log.Debug("page normalized",
			observability.String("image", name),
			observability.Int("width", bounds.Dx()),
			observability.Int("height", bounds.Dy()),
		)
	}

	data, err := artifact.EncodeCanonical(manifest)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInternalInvariantViolated, "", err, "serialize manifest: %v", err)
	}
	if err := pipeline.WriteFileAtomic(cfg.OutManifest, data); err != nil {
		return nil, pipeline.NewError(pipeline.KindOutputUnwritable, cfg.OutManifest, err, "write manifest: %v", err)
	}
	log.Info("normalization complete",
		observability.String("doc_id", docID),
		observability.Int("pages", len(manifest.Pages)),
	)
	return manifest, nil
}

func resolvePagePaths(cfg Config) ([]string, error) {
	if len(cfg.ImagePaths) > 0 {
		return cfg.ImagePaths, nil
	}
	if cfg.ImageDir == "" {
		return nil, fmt.Errorf("no page images configured")
	}
	entries, err := os.ReadDir(cfg.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("scan image dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pageImageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(cfg.ImageDir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// computeDocID hashes the source document with BLAKE2b-256; when no
// source is available it hashes the page images in order, so the same
// page set always yields the same identifier.
func computeDocID(sourcePath string, imagePaths []string) (string, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init hasher: %w", err)
	}
	hashOne := func(path string) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(hasher, f); err != nil {
			return fmt.Errorf("hash %s: %w", path, err)
		}
		return nil
	}
	if sourcePath != "" {
		if err := hashOne(sourcePath); err != nil {
			return "", err
		}
	} else {
		for _, path := range imagePaths {
			if err := hashOne(path); err != nil {
				return "", err
			}
		}
	}
	return fmt.Sprintf("b2-%x", hasher.Sum(nil)), nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// transform rescales and converts in one pass. NearestNeighbor keeps
// the output bit-reproducible across platforms.
func transform(img image.Image, scale float64, grayscale bool) image.Image {
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * scale)
	h := int(float64(bounds.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	needScale := w != bounds.Dx() || h != bounds.Dy()
	if !needScale && !grayscale {
		return img
	}
	rect := image.Rect(0, 0, w, h)
	var dst xdraw.Image
	if grayscale {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	xdraw.NearestNeighbor.Scale(dst, rect, img, bounds, xdraw.Src, nil)
	return dst
}

func writePNGAtomic(path string, img image.Image) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp image: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp image: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename image into place: %w", err)
	}
	return nil
}
