// Package store keeps the blueprints and child materials of one project,
// keyed by their slash-separated path relative to the project root.
// Entries are loaded from disk on first reference and stay registered until
// Close.
package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/chazu/matgraph/pkg/blueprint"
	"github.com/chazu/matgraph/pkg/material"
)

var (
	ErrOutsideProject = errors.New("store: path is outside the project root")
	ErrExists         = errors.New("store: entry already registered")
	ErrNotLoaded      = errors.New("store: entry is not registered")
	ErrClosed         = errors.New("store: closed")
)

// Store is the project registry. It is not safe for concurrent use.
type Store struct {
	root   string
	logger *slog.Logger

	blueprints map[string]*blueprint.Blueprint
	children   map[string]*material.Child
	closed     bool
}

// New opens a registry over the project rooted at root. A nil logger uses
// slog.Default().
func New(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve project root %s", root)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Store{
		root:       abs,
		logger:     logger.With("component", "store"),
		blueprints: make(map[string]*blueprint.Blueprint),
		children:   make(map[string]*material.Child),
	}, nil
}

// Root returns the absolute project root.
func (s *Store) Root() string { return s.root }

// Resolve maps a project-relative or absolute path to its absolute location,
// rejecting anything that escapes the project root.
func (s *Store) Resolve(path string) (string, error) {
	_, abs, err := s.locate(path)
	return abs, err
}

// locate returns the registry key and absolute path for path.
func (s *Store) locate(path string) (key, abs string, err error) {
	if path == "" {
		return "", "", errors.Wrap(ErrOutsideProject, "empty path")
	}
	abs = path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.root, filepath.FromSlash(path))
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", errors.Wrapf(ErrOutsideProject, "%s", path)
	}
	return filepath.ToSlash(rel), abs, nil
}

func (s *Store) check() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// CreateBlueprint registers a new blueprint containing only a root. It is
// not written until SaveBlueprint.
func (s *Store) CreateBlueprint(name, path string) (*blueprint.Blueprint, error) {
	bp := blueprint.New(name, path)
	if err := s.AddBlueprint(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// AddBlueprint registers bp under its path, rewriting bp.Path to the
// canonical key. Neither a registered entry nor a file may exist there yet.
func (s *Store) AddBlueprint(bp *blueprint.Blueprint) error {
	if err := s.check(); err != nil {
		return err
	}
	key, abs, err := s.locate(bp.Path)
	if err != nil {
		return err
	}
	if _, ok := s.blueprints[key]; ok {
		return errors.Wrapf(ErrExists, "blueprint %s", key)
	}
	if _, err := os.Stat(abs); err == nil {
		return errors.Wrapf(ErrExists, "blueprint file %s", key)
	}
	bp.Path = key
	s.blueprints[key] = bp
	s.logger.Info("blueprint created", "path", key, "uuid", bp.UUID)
	return nil
}

// Blueprint returns the blueprint at path, loading it on first reference.
func (s *Store) Blueprint(path string) (*blueprint.Blueprint, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	key, abs, err := s.locate(path)
	if err != nil {
		return nil, err
	}
	if bp, ok := s.blueprints[key]; ok {
		return bp, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		s.logger.Error("blueprint unreadable", "path", key, "err", err)
		return nil, errors.Wrapf(err, "read blueprint %s", key)
	}
	bp, warnings, err := blueprint.Decode(key, data, s.logger)
	if err != nil {
		s.logger.Error("blueprint unparseable", "path", key, "err", err)
		return nil, err
	}
	s.blueprints[key] = bp
	s.logger.Info("blueprint loaded", "path", key, "nodes", bp.System.NodeCount(), "warnings", len(warnings))
	return bp, nil
}

// SaveBlueprint writes a registered blueprint, then re-syncs and re-saves
// every registered child that references it.
func (s *Store) SaveBlueprint(path string) error {
	if err := s.check(); err != nil {
		return err
	}
	key, abs, err := s.locate(path)
	if err != nil {
		s.logger.Error("blueprint save rejected", "path", path, "err", err)
		return err
	}
	bp, ok := s.blueprints[key]
	if !ok {
		return errors.Wrapf(ErrNotLoaded, "blueprint %s", key)
	}
	data, err := bp.Encode()
	if err != nil {
		return err
	}
	if err := writeFile(abs, data); err != nil {
		s.logger.Error("blueprint save failed", "path", key, "err", err)
		return errors.Wrapf(err, "save blueprint %s", key)
	}
	s.logger.Info("blueprint saved", "path", key)

	var first error
	for _, c := range s.Children(key) {
		removed, added := c.Sync(bp)
		if removed+added > 0 {
			s.logger.Debug("child material synced", "path", c.Path, "removed", removed, "added", added)
		}
		if err := s.SaveChild(c.Path); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Blueprints returns every registered blueprint ordered by path.
func (s *Store) Blueprints() []*blueprint.Blueprint {
	out := lo.Values(s.blueprints)
	slices.SortFunc(out, func(a, b *blueprint.Blueprint) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// CreateChild registers a new child of the blueprint at blueprintPath with
// a default value for each of its value nodes.
func (s *Store) CreateChild(name, path, blueprintPath string) (*material.Child, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	key, _, err := s.locate(path)
	if err != nil {
		return nil, err
	}
	if _, ok := s.children[key]; ok {
		return nil, errors.Wrapf(ErrExists, "child material %s", key)
	}
	bp, err := s.Blueprint(blueprintPath)
	if err != nil {
		return nil, err
	}
	c := material.New(name, key, bp)
	s.children[key] = c
	s.logger.Info("child material created", "path", key, "blueprint", bp.Path)
	return c, nil
}

// Child returns the child material at path, loading it and its blueprint on
// first reference.
func (s *Store) Child(path string) (*material.Child, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	key, abs, err := s.locate(path)
	if err != nil {
		return nil, err
	}
	if c, ok := s.children[key]; ok {
		return c, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		s.logger.Error("child material unreadable", "path", key, "err", err)
		return nil, errors.Wrapf(err, "read child material %s", key)
	}
	bpPath, err := material.PeekBlueprint(data)
	if err != nil {
		s.logger.Error("child material has no blueprint", "path", key, "err", err)
		return nil, errors.Wrapf(err, "child material %s", key)
	}
	bp, err := s.Blueprint(bpPath)
	if err != nil {
		return nil, errors.Wrapf(err, "child material %s", key)
	}
	c, warnings, err := material.Decode(key, data, bp, s.logger)
	if err != nil {
		return nil, err
	}
	// Keep the child keyed to the blueprint's canonical path.
	c.BlueprintPath = bp.Path
	s.children[key] = c
	s.logger.Info("child material loaded", "path", key, "blueprint", bp.Path, "warnings", len(warnings))
	return c, nil
}

// SaveChild writes a registered child material.
func (s *Store) SaveChild(path string) error {
	if err := s.check(); err != nil {
		return err
	}
	key, abs, err := s.locate(path)
	if err != nil {
		s.logger.Error("child material save rejected", "path", path, "err", err)
		return err
	}
	c, ok := s.children[key]
	if !ok {
		return errors.Wrapf(ErrNotLoaded, "child material %s", key)
	}
	bp, ok := s.blueprints[c.BlueprintPath]
	if !ok {
		s.logger.Error("child material blueprint not found", "path", key, "blueprint", c.BlueprintPath)
		return errors.Wrapf(ErrNotLoaded, "blueprint %s of child material %s", c.BlueprintPath, key)
	}
	data, err := c.Encode(bp)
	if err != nil {
		return err
	}
	if err := writeFile(abs, data); err != nil {
		s.logger.Error("child material save failed", "path", key, "err", err)
		return errors.Wrapf(err, "save child material %s", key)
	}
	s.logger.Info("child material saved", "path", key)
	return nil
}

// Children returns the registered children of the blueprint at
// blueprintPath ordered by path. An empty blueprintPath returns every child.
func (s *Store) Children(blueprintPath string) []*material.Child {
	key := ""
	if blueprintPath != "" {
		k, _, err := s.locate(blueprintPath)
		if err != nil {
			return nil
		}
		key = k
	}
	out := lo.Filter(lo.Values(s.children), func(c *material.Child, _ int) bool {
		return key == "" || c.BlueprintPath == key
	})
	slices.SortFunc(out, func(a, b *material.Child) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Close drops every registered entry. Unsaved changes are lost. Further
// calls fail with ErrClosed.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.logger.Debug("store closed", "blueprints", len(s.blueprints), "children", len(s.children))
	clear(s.blueprints)
	clear(s.children)
	s.closed = true
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
