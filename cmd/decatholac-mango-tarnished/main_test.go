package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFiles, logLevel, badgerPath = nil, "", ""
	chaptersManga, chaptersLimit = "", 20

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[storage.badger]
path = "` + filepath.ToSlash(filepath.Join(dir, "db")) + `"

[[targets]]
name = "Comic"
source = "https://comic.test/feed"
mode = "rss"
delay = 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Decatholac Mango Tarnished version dev")
}

func TestTargetsCommand(t *testing.T) {
	out, err := execute(t, "targets", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Comic")
	assert.Contains(t, out, "https://comic.test/feed")
	assert.Contains(t, out, "1d")
}

func TestChaptersCommand_Empty(t *testing.T) {
	out, err := execute(t, "chapters", "-c", writeConfig(t), "--manga", "Comic")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 chapters")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "targets", "-c", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
