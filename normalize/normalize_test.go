package normalize

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/pipeline"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x), A: 255})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func setup(t *testing.T) (imageDir string, outDir string) {
	t.Helper()
	imageDir = t.TempDir()
	outDir = t.TempDir()
	writeTestPNG(t, filepath.Join(imageDir, "sheet_a.png"), 40, 30)
	writeTestPNG(t, filepath.Join(imageDir, "sheet_b.png"), 20, 20)
	return imageDir, outDir
}

func TestRunBuildsManifest(t *testing.T) {
	imageDir, outDir := setup(t)
	manifestPath := filepath.Join(outDir, "manifest.json")
	m, err := Run(context.Background(), Config{
		ImageDir:    imageDir,
		OutManifest: manifestPath,
		OutImageDir: outDir,
		DPI:         300,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(m.Pages) != 2 {
		t.Fatalf("want 2 pages, got %d", len(m.Pages))
	}
	if m.Pages[0].PageNum != 1 || m.Pages[0].Image != "page_001.png" {
		t.Fatalf("unexpected first page: %+v", m.Pages[0])
	}
	if m.Pages[0].Width != 40 || m.Pages[0].Height != 30 {
		t.Fatalf("unexpected dimensions: %+v", m.Pages[0])
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	decoded, err := artifact.DecodeManifest(data)
	if err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if decoded.DocID != m.DocID {
		t.Fatalf("manifest doc_id mismatch")
	}
	for _, page := range m.Pages {
		if _, err := os.Stat(filepath.Join(outDir, page.Image)); err != nil {
			t.Fatalf("page image missing: %v", err)
		}
	}
}

func TestDocIDStable(t *testing.T) {
	imageDir, outDir := setup(t)
	run := func(out string) string {
		m, err := Run(context.Background(), Config{
			ImageDir:    imageDir,
			OutManifest: filepath.Join(outDir, out),
			OutImageDir: outDir,
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return m.DocID
	}
	a := run("m1.json")
	b := run("m2.json")
	if a != b {
		t.Fatalf("doc_id not stable: %s vs %s", a, b)
	}
	if len(a) < 10 || a[:3] != "b2-" {
		t.Fatalf("unexpected doc_id format: %s", a)
	}
}

func TestScaleAndGrayscale(t *testing.T) {
	imageDir, outDir := setup(t)
	m, err := Run(context.Background(), Config{
		ImageDir:    imageDir,
		OutManifest: filepath.Join(outDir, "manifest.json"),
		OutImageDir: outDir,
		Scale:       0.5,
		Grayscale:   true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Pages[0].Width != 20 || m.Pages[0].Height != 15 {
		t.Fatalf("scale not applied: %+v", m.Pages[0])
	}
	if !m.Render.Grayscale {
		t.Fatalf("grayscale not recorded")
	}
	f, err := os.Open(filepath.Join(outDir, m.Pages[0].Image))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Fatalf("expected grayscale output, got %T", img)
	}
}

func TestMissingImagesIsInputMissing(t *testing.T) {
	outDir := t.TempDir()
	_, err := Run(context.Background(), Config{
		ImageDir:    filepath.Join(outDir, "absent"),
		OutManifest: filepath.Join(outDir, "manifest.json"),
		OutImageDir: outDir,
	})
	e, ok := pipeline.AsError(err)
	if !ok || e.Kind != pipeline.KindInputMissing {
		t.Fatalf("want InputMissing, got %v", err)
	}
}
