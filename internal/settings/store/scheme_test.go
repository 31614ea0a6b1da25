package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetSchemesReload(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "keymaps")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.xml"), []byte("<keymap/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vim.xml"), []byte("<vim/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))

	p := NewPresetSchemes("keymaps", "keymaps", root)
	assert.Equal(t, "keymaps", p.Name())
	assert.Equal(t, "keymaps", p.FileSpec())
	assert.Zero(t, p.ReloadCount())

	require.NoError(t, p.Reload())
	assert.Equal(t, 1, p.ReloadCount())
	assert.Equal(t, []string{"custom.xml", "vim.xml"}, p.Presets())

	data, ok := p.Preset("custom.xml")
	require.True(t, ok)
	assert.Equal(t, "<keymap/>", string(data))

	_, ok = p.Preset(".hidden")
	assert.False(t, ok)
}

func TestPresetSchemesReloadReplacesState(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "colors")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dark.xml"), []byte("<dark/>"), 0o644))

	p := NewPresetSchemes("colors", "colors", root)
	require.NoError(t, p.Reload())
	assert.Equal(t, []string{"dark.xml"}, p.Presets())

	require.NoError(t, os.Remove(filepath.Join(dir, "dark.xml")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "light.xml"), []byte("<light/>"), 0o644))
	require.NoError(t, p.Reload())
	assert.Equal(t, []string{"light.xml"}, p.Presets())
	assert.Equal(t, 2, p.ReloadCount())
}

func TestPresetSchemesMissingDir(t *testing.T) {
	p := NewPresetSchemes("templates", "templates", t.TempDir())
	require.NoError(t, p.Reload())
	assert.Empty(t, p.Presets())
	assert.Equal(t, 1, p.ReloadCount())
}
