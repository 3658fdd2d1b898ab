package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samzimpfer/sheetparse/artifact"
	"github.com/samzimpfer/sheetparse/group"
	"github.com/samzimpfer/sheetparse/observability"
)

// GroupOptions configures one grouping run.
type GroupOptions struct {
	InputPath  string
	OutputPath string
	Config     artifact.GroupingConfig
	Jobs       int
	Logger     observability.Logger
}

// RunGroup executes Stage 2: load the OCR artifact, validate it, build
// the grouping artifact, and write it atomically. Every failure other
// than cancellation maps to one of the five error kinds; cancellation
// returns the wrapped context error. No partial artifact is left behind.
func RunGroup(ctx context.Context, opts GroupOptions) error {
	log := opts.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	if err := opts.Config.Validate(); err != nil {
		return NewError(KindConfigInvalid, "", err, "invalid grouping configuration: %v", err)
	}

	raw, err := os.ReadFile(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewError(KindInputMissing, opts.InputPath, err, "ocr artifact not found")
		}
		return NewError(KindInputMissing, opts.InputPath, err, "ocr artifact unreadable: %v", err)
	}

	validator, err := artifact.NewSchemaValidator("ocr")
	if err != nil {
		return NewError(KindInternalInvariantViolated, "ocr.schema.json", err, "compile input schema: %v", err)
	}
	if err := validator.Validate(raw); err != nil {
		return NewError(KindInputMalformed, opts.InputPath, err, "ocr artifact fails schema: %v", err)
	}
	doc, err := artifact.DecodeOCRDocument(raw)
	if err != nil {
		return NewError(KindInputMalformed, opts.InputPath, err, "ocr artifact undecodable: %v", err)
	}
	if err := artifact.ValidateOCRDocument(doc); err != nil {
		return NewError(KindInputMalformed, opts.InputPath, err, "ocr artifact invalid: %v", err)
	}

	start := time.Now()
	grouped, err := group.BuildDocument(ctx, doc, opts.Config, group.Options{Jobs: opts.Jobs, Logger: log})
	if err != nil {
		if ctx.Err() != nil {
			// Caller-initiated abort; no artifact is written.
			return fmt.Errorf("grouping canceled: %w", err)
		}
		if name, ok := invariantName(err); ok {
			return NewError(KindInternalInvariantViolated, name, err, "%v", err)
		}
		return NewError(KindInternalInvariantViolated, "", err, "%v", err)
	}
	log.Debug("grouping timing",
		observability.String("metric", observability.MetricGroupTime),
		observability.Int64("ns", time.Since(start).Nanoseconds()),
	)

	data, err := artifact.EncodeCanonical(grouped)
	if err != nil {
		return NewError(KindInternalInvariantViolated, "", err, "serialize grouping artifact: %v", err)
	}
	if err := WriteFileAtomic(opts.OutputPath, data); err != nil {
		return NewError(KindOutputUnwritable, opts.OutputPath, err, "write grouping artifact: %v", err)
	}
	return nil
}

// invariantName extracts the invariant identifier from a verification
// failure message of the form "... invariant <name>: ...".
func invariantName(err error) (string, bool) {
	msg := err.Error()
	idx := strings.Index(msg, "invariant ")
	if idx == -1 {
		return "", false
	}
	rest := msg[idx+len("invariant "):]
	if end := strings.IndexByte(rest, ':'); end != -1 {
		return rest[:end], true
	}
	return "", false
}

// LoadGroupingConfigFile overlays a YAML config file onto base. Fields
// absent from the file keep their base values; flags applied by the
// caller afterwards win over both.
func LoadGroupingConfigFile(path string, base artifact.GroupingConfig) (artifact.GroupingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
