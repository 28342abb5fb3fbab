// Package texture resolves texture paths to handles that a renderer can
// bind. Only the image header is read; pixel upload is the renderer's job.
package texture

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrOutsideRoot is returned for paths that resolve outside the loader root.
var ErrOutsideRoot = errors.New("texture: path outside root")

// Handle describes a texture that has been located and probed.
type Handle struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// IsZero reports whether the handle refers to nothing.
func (h Handle) IsZero() bool {
	return h.Path == ""
}

// Loader resolves texture paths to handles.
type Loader interface {
	Load(path string) (Handle, error)
}

// FileLoader reads image headers from disk, relative to Root when the path
// is not absolute. With a non-empty Root, paths that resolve outside it are
// refused before the file is opened. Results are cached per path.
type FileLoader struct {
	Root  string
	cache map[string]Handle
}

// NewFileLoader creates a loader rooted at root.
func NewFileLoader(root string) *FileLoader {
	return &FileLoader{Root: root, cache: make(map[string]Handle)}
}

// Load probes the image at path.
func (l *FileLoader) Load(path string) (Handle, error) {
	if path == "" {
		return Handle{}, fmt.Errorf("texture: empty path")
	}
	if h, ok := l.cache[path]; ok {
		return h, nil
	}

	full, err := l.resolve(path)
	if err != nil {
		return Handle{}, err
	}
	f, err := os.Open(full)
	if err != nil {
		return Handle{}, fmt.Errorf("texture: open %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Handle{}, fmt.Errorf("texture: decode %s: %w", path, err)
	}

	h := Handle{Path: path, Width: cfg.Width, Height: cfg.Height, Format: format}
	l.cache[path] = h
	return h, nil
}

func (l *FileLoader) resolve(path string) (string, error) {
	if l.Root == "" {
		return filepath.Clean(path), nil
	}
	root := filepath.Clean(l.Root)
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, filepath.FromSlash(path))
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return full, nil
}
