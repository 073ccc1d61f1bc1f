// Package source resolves glob patterns into Source Sets: the input files
// of one resource kind under the source root.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
)

// Kind is a category of source files sharing a glob pattern and a task.
type Kind int

const (
	KindMarkup Kind = iota + 1
	KindStyle
	KindScriptDev
	KindScriptVendor
	KindStatic
	KindImage
	KindSprite
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindMarkup:
		return "markup"
	case KindStyle:
		return "style"
	case KindScriptDev:
		return "script-dev"
	case KindScriptVendor:
		return "script-vendor"
	case KindStatic:
		return "static"
	case KindImage:
		return "image"
	case KindSprite:
		return "sprite-source"
	default:
		return "unknown"
	}
}

// File is one matched input file.
type File struct {
	// Path is the filesystem path (source root joined).
	Path string
	// Rel is the slash path relative to the static base of the pattern
	// that matched, e.g. "index.html" for "html/*.html".
	Rel string
	// SourceRel is the slash path relative to the source root.
	SourceRel string
}

// Set is a glob-matched collection of input files of one kind.
type Set struct {
	Kind  Kind
	Root  string
	Files []File
}

// Len returns the number of files in the set.
func (s *Set) Len() int {
	return len(s.Files)
}

// Paths returns the filesystem paths of the set's files.
func (s *Set) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = f.Path
	}
	return paths
}

// Resolve matches patterns (relative to root, slash separated) and returns
// the files sorted by their path under root. A file matched by several
// patterns appears once, attributed to the first pattern. A pattern whose
// base directory does not exist matches nothing; a missing root is an
// error.
func Resolve(root string, kind Kind, patterns []string) (*Set, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, perrors.NewIOError("source root unavailable", err).WithFile(root)
	}
	if !info.IsDir() {
		return nil, perrors.NewIOError("source root is not a directory", fs.ErrInvalid).WithFile(root)
	}

	set := &Set{Kind: kind, Root: root}
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		base, pat := doublestar.SplitPattern(filepath.ToSlash(pattern))
		baseDir := filepath.Join(root, filepath.FromSlash(base))

		if _, err := os.Stat(baseDir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, perrors.NewIOError("stat pattern base", err).WithFile(baseDir)
		}

		matches, err := doublestar.Glob(os.DirFS(baseDir), pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}

		for _, m := range matches {
			sourceRel := path.Join(base, m)
			if seen[sourceRel] {
				continue
			}
			seen[sourceRel] = true
			set.Files = append(set.Files, File{
				Path:      filepath.Join(baseDir, filepath.FromSlash(m)),
				Rel:       m,
				SourceRel: sourceRel,
			})
		}
	}

	sort.Slice(set.Files, func(i, j int) bool {
		return set.Files[i].SourceRel < set.Files[j].SourceRel
	})

	return set, nil
}

// Match reports whether rel (slash path relative to the source root)
// matches any of patterns. Malformed patterns never match.
func Match(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, err := doublestar.Match(filepath.ToSlash(p), rel); err == nil && ok {
			return true
		}
	}
	return false
}

// ValidatePatterns reports the first malformed pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return perrors.NewValidationError(perrors.ErrCodeInvalidPath, fmt.Sprintf("malformed glob %q", p))
		}
	}
	return nil
}
