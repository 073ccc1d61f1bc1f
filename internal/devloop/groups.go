package devloop

import (
	"fmt"
	"time"

	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/source"
)

// Group maps glob patterns under the source root to the tasks rerun when a
// matching file changes.
type Group struct {
	Name     string
	Patterns []string
	Tasks    []string
	// Delay is the debounce window.
	Delay time.Duration
}

// Matches reports whether rel, a slash path under the source root, belongs
// to the group.
func (g Group) Matches(rel string) bool {
	return source.Match(g.Patterns, rel)
}

// DefaultGroups returns the watch table for cfg. Static files and images
// use the bulk delay since they tend to change in batches.
func DefaultGroups(cfg *config.Config) []Group {
	r := cfg.Resources
	delay := cfg.Watch.Delay
	bulk := cfg.Watch.BulkDelay

	return []Group{
		{Name: "markup", Patterns: r.MarkupWatch, Tasks: []string{pipeline.TaskRenderMarkup}, Delay: delay},
		{Name: "style", Patterns: r.StylesWatch, Tasks: []string{pipeline.TaskStyle}, Delay: delay},
		{Name: "script-dev", Patterns: r.ScriptsDev, Tasks: []string{pipeline.TaskBundleScripts}, Delay: delay},
		{Name: "script-vendor", Patterns: r.ScriptsVendor, Tasks: []string{pipeline.TaskCopyVendorScripts}, Delay: delay},
		{Name: "static", Patterns: r.Static, Tasks: []string{pipeline.TaskCopy}, Delay: bulk},
		{Name: "image", Patterns: r.Images, Tasks: []string{pipeline.TaskImages}, Delay: bulk},
		{Name: "sprite", Patterns: r.Sprite, Tasks: []string{pipeline.TaskSVGSprite}, Delay: delay},
	}
}

func validateGroups(groups []Group) error {
	if len(groups) == 0 {
		return fmt.Errorf("no watch groups configured")
	}
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("watch group without a name")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate watch group %q", g.Name)
		}
		seen[g.Name] = true
		if len(g.Tasks) == 0 {
			return fmt.Errorf("watch group %q has no tasks", g.Name)
		}
		if g.Delay <= 0 {
			return fmt.Errorf("watch group %q: debounce delay must be positive", g.Name)
		}
		if err := source.ValidatePatterns(g.Patterns); err != nil {
			return fmt.Errorf("watch group %q: %w", g.Name, err)
		}
	}
	return nil
}
