// Command sheetparse drives the drawing-extraction pipeline: page-image
// normalization (stage 0), OCR (stage 1), deterministic structural
// grouping (stage 2), plus audit reporting and artifact schemas.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/normalize"
	"github.com/samzimpfer/sheetparse/observability"
	"github.com/samzimpfer/sheetparse/ocr"
	"github.com/samzimpfer/sheetparse/ocr/tesseract"
	"github.com/samzimpfer/sheetparse/pipeline"
	"github.com/samzimpfer/sheetparse/report"
)

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:           "sheetparse",
		Short:         "Deterministic drawing-sheet extraction pipeline",
		Long:          "sheetparse converts engineering-drawing page scans into auditable structured artifacts: normalized images, OCR tokens, and deterministic line/block groupings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	logger := func() observability.Logger {
		return observability.NewTextLogger(os.Stderr, verbose)
	}

	root.AddCommand(
		newNormalizeCmd(logger),
		newOCRCmd(logger),
		newGroupCmd(logger),
		newReportCmd(),
		newSchemaCmd(),
	)

	if err := root.Execute(); err != nil {
		if _, ok := pipeline.AsError(err); ok {
			pipeline.WriteError(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "sheetparse: %v\n", err)
		os.Exit(2)
	}
}

func newNormalizeCmd(logger func() observability.Logger) *cobra.Command {
	var (
		source    string
		images    string
		out       string
		imageOut  string
		dpi       int
		scale     float64
		grayscale bool
	)
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize rendered page images and write the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := normalize.Run(cmd.Context(), normalize.Config{
				SourcePath:  source,
				ImageDir:    images,
				OutManifest: out,
				OutImageDir: imageOut,
				DPI:         dpi,
				Scale:       scale,
				Grayscale:   grayscale,
				Logger:      logger(),
			})
			return err
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source document used for the stable doc_id (optional)")
	cmd.Flags().StringVar(&images, "images", "", "Directory of rendered page images, consumed in lexical order")
	cmd.Flags().StringVar(&out, "out", "manifest.json", "Manifest output path")
	cmd.Flags().StringVar(&imageOut, "image-out", "pages", "Directory for normalized page PNGs")
	cmd.Flags().IntVar(&dpi, "dpi", 300, "Rendering DPI recorded in the manifest")
	cmd.Flags().Float64Var(&scale, "scale", 1.0, "Uniform rescale factor applied to every page")
	cmd.Flags().BoolVar(&grayscale, "grayscale", false, "Convert pages to grayscale")
	_ = cmd.MarkFlagRequired("images")
	return cmd
}

func newOCRCmd(logger func() observability.Logger) *cobra.Command {
	var (
		manifest  string
		out       string
		langs     []string
		psm       int
		dpi       int
		whitelist string
	)
	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Recognize page tokens and write the OCR artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []ocr.InputOption{ocr.WithLanguages(langs...)}
			if psm > 0 {
				opts = append(opts, ocr.WithTesseractPSM(psm))
			}
			if dpi > 0 {
				opts = append(opts, ocr.WithDPI(dpi))
			}
			if whitelist != "" {
				opts = append(opts, ocr.WithTesseractWhitelist(whitelist))
			}
			_, err := ocr.Run(cmd.Context(), ocr.StageConfig{
				ManifestPath: manifest,
				OutPath:      out,
				Engine:       tesseract.NewEngine(),
				Options:      opts,
				Logger:       logger(),
			})
			return err
		},
	}
	cmd.Flags().StringVar(&manifest, "manifest", "manifest.json", "Normalization manifest path")
	cmd.Flags().StringVar(&out, "out", "ocr.json", "OCR artifact output path")
	cmd.Flags().StringSliceVar(&langs, "lang", []string{"eng"}, "Language hints for the engine")
	cmd.Flags().IntVar(&psm, "psm", 11, "Tesseract page segmentation mode (0 disables)")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "Override DPI hint passed to the engine")
	cmd.Flags().StringVar(&whitelist, "whitelist", "", "Restrict recognition to these characters")
	return cmd
}

func newGroupCmd(logger func() observability.Logger) *cobra.Command {
	var (
		in         string
		out        string
		configFile string
		jobs       int
		cfg        = artifact.DefaultGroupingConfig()
	)
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Build the deterministic grouping artifact from OCR tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			effective := artifact.DefaultGroupingConfig()
			if configFile != "" {
				loaded, err := pipeline.LoadGroupingConfigFile(configFile, effective)
				if err != nil {
					return pipeline.NewError(pipeline.KindConfigInvalid, configFile, err, "%v", err)
				}
				effective = loaded
			}
			applyChangedFlags(cmd, &effective, cfg)
			return pipeline.RunGroup(cmd.Context(), pipeline.GroupOptions{
				InputPath:  in,
				OutputPath: out,
				Config:     effective,
				Jobs:       jobs,
				Logger:     logger(),
			})
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "OCR artifact path")
	cmd.Flags().StringVar(&out, "out", "", "Grouping artifact output path")
	cmd.Flags().StringVar(&configFile, "config", "", "Optional YAML config file (flags win over it)")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Page worker count; 0 uses all CPUs (output is unaffected)")
	cmd.Flags().Float64Var(&cfg.ConfidenceFloor, "confidence-floor", cfg.ConfidenceFloor, "Drop tokens with confidence strictly below this floor")
	cmd.Flags().BoolVar(&cfg.KeepWhitespaceTokens, "keep-whitespace-tokens", cfg.KeepWhitespaceTokens, "Retain whitespace-only tokens")
	cmd.Flags().BoolVar(&cfg.BBoxRepair, "bbox-repair", cfg.BBoxRepair, "Repair swapped bounding-box endpoints")
	cmd.Flags().Float64Var(&cfg.LineYOverlapThreshold, "line-y-overlap-threshold", cfg.LineYOverlapThreshold, "Minimum y-overlap ratio for joining a line")
	cmd.Flags().Float64Var(&cfg.LineYCenterK, "line-y-center-k", cfg.LineYCenterK, "Line y-center tolerance as a multiple of median token height")
	cmd.Flags().IntVar(&cfg.MinLineYTolPx, "min-line-y-tol-px", cfg.MinLineYTolPx, "Lower bound for the line y tolerance in pixels")
	cmd.Flags().Float64Var(&cfg.BlockYGapK, "block-y-gap-k", cfg.BlockYGapK, "Block gap threshold as a multiple of median token height")
	cmd.Flags().IntVar(&cfg.MinBlockGapPx, "min-block-gap-px", cfg.MinBlockGapPx, "Lower bound for the block gap threshold in pixels")
	cmd.Flags().Float64Var(&cfg.BlockXOverlapThreshold, "block-x-overlap-threshold", cfg.BlockXOverlapThreshold, "Minimum x-overlap ratio for joining a block")
	cmd.Flags().BoolVar(&cfg.DisableRegions, "disable-regions", cfg.DisableRegions, "Skip the region labeler")
	cmd.Flags().BoolVar(&cfg.EnableCellCandidates, "enable-cell-candidates", cfg.EnableCellCandidates, "Emit reserved table-column candidates")
	cmd.Flags().BoolVar(&cfg.OmitTextFields, "omit-text-fields", cfg.OmitTextFields, "Omit joined text convenience fields")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// applyChangedFlags overlays only the flags the user actually set, so a
// config file keeps authority over untouched options.
func applyChangedFlags(cmd *cobra.Command, dst *artifact.GroupingConfig, fromFlags artifact.GroupingConfig) {
	set := map[string]func(){
		"confidence-floor":          func() { dst.ConfidenceFloor = fromFlags.ConfidenceFloor },
		"keep-whitespace-tokens":    func() { dst.KeepWhitespaceTokens = fromFlags.KeepWhitespaceTokens },
		"bbox-repair":               func() { dst.BBoxRepair = fromFlags.BBoxRepair },
		"line-y-overlap-threshold":  func() { dst.LineYOverlapThreshold = fromFlags.LineYOverlapThreshold },
		"line-y-center-k":           func() { dst.LineYCenterK = fromFlags.LineYCenterK },
		"min-line-y-tol-px":         func() { dst.MinLineYTolPx = fromFlags.MinLineYTolPx },
		"block-y-gap-k":             func() { dst.BlockYGapK = fromFlags.BlockYGapK },
		"min-block-gap-px":          func() { dst.MinBlockGapPx = fromFlags.MinBlockGapPx },
		"block-x-overlap-threshold": func() { dst.BlockXOverlapThreshold = fromFlags.BlockXOverlapThreshold },
		"disable-regions":           func() { dst.DisableRegions = fromFlags.DisableRegions },
		"enable-cell-candidates":    func() { dst.EnableCellCandidates = fromFlags.EnableCellCandidates },
		"omit-text-fields":          func() { dst.OmitTextFields = fromFlags.OmitTextFields },
	}
	for name, apply := range set {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

func newReportCmd() *cobra.Command {
	var (
		in   string
		out  string
		html bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a grouping artifact as an audit report",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(in)
			if err != nil {
				if os.IsNotExist(err) {
					return pipeline.NewError(pipeline.KindInputMissing, in, err, "grouping artifact not found")
				}
				return pipeline.NewError(pipeline.KindInputMissing, in, err, "grouping artifact unreadable: %v", err)
			}
			doc, err := artifact.DecodeGroupingDocument(raw)
			if err != nil {
				return pipeline.NewError(pipeline.KindInputMalformed, in, err, "%v", err)
			}
			var rendered []byte
			if html {
				rendered, err = report.HTML(doc)
				if err != nil {
					return pipeline.NewError(pipeline.KindInternalInvariantViolated, "", err, "%v", err)
				}
			} else {
				rendered = report.Markdown(doc)
			}
			if out == "" {
				_, err := os.Stdout.Write(rendered)
				return err
			}
			if err := pipeline.WriteFileAtomic(out, rendered); err != nil {
				return pipeline.NewError(pipeline.KindOutputUnwritable, out, err, "write report: %v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Grouping artifact path")
	cmd.Flags().StringVar(&out, "out", "", "Report output path (default stdout)")
	cmd.Flags().BoolVar(&html, "html", false, "Render HTML instead of markdown")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for an artifact kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := artifact.SchemaFor(kind)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "artifact", "grouping", "Artifact kind: manifest, ocr, or grouping")
	return cmd
}
