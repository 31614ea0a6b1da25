package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SchemeManager is a named, reloadable collection of user-editable presets
// backed by exactly one file-spec directory.
type SchemeManager interface {
	Name() string
	FileSpec() string

	// Reload discards in-memory presets and re-reads them from storage.
	Reload() error
}

// PresetSchemes is a file-backed SchemeManager. Each preset is one file
// directly under the manager's file-spec directory.
type PresetSchemes struct {
	name     string
	fileSpec string
	dir      string

	mu      sync.Mutex
	presets map[string][]byte
	reloads int
}

var _ SchemeManager = (*PresetSchemes)(nil)

// NewPresetSchemes creates a scheme manager over root/fileSpec.
func NewPresetSchemes(name, fileSpec, root string) *PresetSchemes {
	return &PresetSchemes{
		name:     name,
		fileSpec: fileSpec,
		dir:      filepath.Join(root, filepath.FromSlash(fileSpec)),
		presets:  make(map[string][]byte),
	}
}

func (p *PresetSchemes) Name() string     { return p.name }
func (p *PresetSchemes) FileSpec() string { return p.fileSpec }

func (p *PresetSchemes) Reload() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reload schemes %s: %w", p.name, err)
	}

	presets := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reload scheme %s/%s: %w", p.name, entry.Name(), err)
		}
		presets[entry.Name()] = data
	}

	p.mu.Lock()
	p.presets = presets
	p.reloads++
	p.mu.Unlock()

	slog.Debug("schemes reloaded", "manager", p.name, "presets", len(presets))
	return nil
}

// Presets returns the loaded preset names, sorted.
func (p *PresetSchemes) Presets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.presets))
	for name := range p.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a loaded preset by file name.
func (p *PresetSchemes) Preset(name string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.presets[name]
	return data, ok
}

// ReloadCount reports how many times Reload completed.
func (p *PresetSchemes) ReloadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}
