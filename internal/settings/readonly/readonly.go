// Package readonly refreshes imported read-only configuration roots (shared
// scheme bundles published as git repositories), independent of the main
// settings repository.
package readonly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"gopkg.in/yaml.v3"

	"github.com/maxsxu/settings-repository-plus/internal/utils"
)

// Source is one imported read-only repository.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Manifest lists the read-only sources to keep refreshed.
type Manifest struct {
	Sources []Source `yaml:"sources"`
}

// LoadManifest reads a sources manifest. A missing file is an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	for _, src := range m.Sources {
		if src.Name == "" || src.URL == "" {
			return nil, fmt.Errorf("manifest %s: every source needs name and url", path)
		}
	}
	return &m, nil
}

// Manager clones and fast-forwards each manifest source under root/<name>.
type Manager struct {
	root    string
	sources []Source
}

func NewManager(root string, manifest *Manifest) *Manager {
	var sources []Source
	if manifest != nil {
		sources = manifest.Sources
	}
	return &Manager{root: root, sources: sources}
}

// Update refreshes every source and returns the root directories whose
// content changed, or nil if nothing changed. A failing source is logged and
// skipped so one broken upstream does not block the rest.
func (m *Manager) Update(ctx context.Context) ([]string, error) {
	if len(m.sources) == 0 {
		return nil, nil
	}
	if err := utils.EnsureDir(m.root); err != nil {
		return nil, fmt.Errorf("read-only root: %w", err)
	}

	var changed []string
	for _, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		dir := filepath.Join(m.root, src.Name)
		moved, err := m.refresh(ctx, dir, src)
		if err != nil {
			slog.Warn("read-only source refresh failed", "source", src.Name, "error", err)
			continue
		}
		if moved {
			changed = append(changed, dir)
		}
	}
	return changed, nil
}

func (m *Manager) refresh(ctx context.Context, dir string, src Source) (bool, error) {
	if !utils.DirExists(dir) {
		_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: src.URL})
		if err != nil {
			return false, fmt.Errorf("clone %s: %w", src.URL, err)
		}
		slog.Info("read-only source cloned", "source", src.Name)
		return true, nil
	}

	r, err := git.PlainOpen(dir)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", dir, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return false, fmt.Errorf("worktree: %w", err)
	}

	before, err := headHash(r)
	if err != nil {
		return false, err
	}

	err = wt.PullContext(ctx, &git.PullOptions{})
	if err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return false, nil
		}
		return false, fmt.Errorf("pull: %w", err)
	}

	after, err := headHash(r)
	if err != nil {
		return false, err
	}
	return before != after, nil
}

func headHash(r *git.Repository) (plumbing.Hash, error) {
	ref, err := r.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash(), nil
}
