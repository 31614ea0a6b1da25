// Package workspace lays out the on-disk data directory: the settings working
// copy, the read-only source roots, and daemon metadata. A file lock keeps
// two daemon instances off the same workspace.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/maxsxu/settings-repository-plus/internal/utils"
)

const (
	repositoryDir = "repository"
	readOnlyDir   = "readonly"
	metadataDir   = ".data"
	lockFile      = "setsync.lock"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another process")

type Workspace struct {
	Root          string
	RepositoryDir string
	ReadOnlyDir   string
	MetadataDir   string

	flock *flock.Flock
}

func New(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", rootDir, err)
	}

	return &Workspace{
		Root:          root,
		RepositoryDir: filepath.Join(root, repositoryDir),
		ReadOnlyDir:   filepath.Join(root, readOnlyDir),
		MetadataDir:   filepath.Join(root, metadataDir),
		flock:         flock.New(filepath.Join(root, metadataDir, lockFile)),
	}, nil
}

// Lock takes the cross-process workspace lock.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock workspace: %w", err)
	}
	return nil
}
