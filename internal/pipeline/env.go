package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetpipe/internal/config"
	perrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/metrics"
	"github.com/conneroisu/assetpipe/internal/source"
)

// Env is everything a task run may depend on: the resolved configuration,
// the logger and the metrics recorder. The destination root on disk is the
// only state shared between runs.
type Env struct {
	Config   *config.Config
	Logger   logging.Logger
	Recorder metrics.Recorder
}

// NewEnv creates an Env. A nil logger or recorder is replaced by a no-op.
func NewEnv(cfg *config.Config, logger logging.Logger, recorder metrics.Recorder) *Env {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Env{Config: cfg, Logger: logger, Recorder: recorder}
}

// SourceDir returns the source root.
func (e *Env) SourceDir() string {
	return e.Config.SourceDir()
}

// DestDir returns the destination root.
func (e *Env) DestDir() string {
	return e.Config.DestDir()
}

// Patterns returns the entry globs configured for kind.
func (e *Env) Patterns(kind source.Kind) []string {
	r := e.Config.Resources
	switch kind {
	case source.KindMarkup:
		return r.Markup
	case source.KindStyle:
		return r.Styles
	case source.KindScriptDev:
		return r.ScriptsDev
	case source.KindScriptVendor:
		return r.ScriptsVendor
	case source.KindStatic:
		return r.Static
	case source.KindImage:
		return r.Images
	case source.KindSprite:
		return r.Sprite
	default:
		return nil
	}
}

// Resolve returns the Source Set for kind.
func (e *Env) Resolve(kind source.Kind) (*source.Set, error) {
	return source.Resolve(e.SourceDir(), kind, e.Patterns(kind))
}

// OutputPath maps a slash path relative to the destination root to a
// filesystem path. Paths escaping the destination root are rejected.
func (e *Env) OutputPath(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", perrors.NewValidationError(perrors.ErrCodeInvalidPath,
			fmt.Sprintf("output path %q escapes the destination root", rel))
	}
	return filepath.Join(e.DestDir(), clean), nil
}

// Write writes data to rel under the destination root, creating parent
// directories as needed.
func (e *Env) Write(rel string, data []byte) error {
	target, err := e.OutputPath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return perrors.NewIOError("create output directory", err).WithFile(target)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return perrors.NewIOError("write output", err).WithFile(target)
	}
	return nil
}
