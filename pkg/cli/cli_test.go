package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCommand(&out, &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newProject(t *testing.T) (dir, config string) {
	t.Helper()
	dir = t.TempDir()
	_, err := execute(t, "init", dir, "--title", "demo")
	require.NoError(t, err)
	config = filepath.Join(dir, "hardhat.config.yaml")
	require.NoError(t, os.WriteFile(config, []byte("vite:\n  build:\n    target: [es2022]\n  define:\n    __NAME__: '\"demo\"'\n"), 0o644))
	return dir, config
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Success!")
	assert.FileExists(t, filepath.Join(dir, "src", "main.ts"))

	_, err = execute(t, "init", dir)
	assert.ErrorContains(t, err, "index.html")
}

func TestConfig(t *testing.T) {
	dir, config := newProject(t)
	out, err := execute(t, "config", "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "root: "+dir)
	assert.Contains(t, out, "clearScreen: false")
	assert.Contains(t, out, "- es2020\n")
	assert.Contains(t, out, "- es2022\n")
	assert.Contains(t, out, "__NAME__")
}

func TestViteBuild(t *testing.T) {
	dir, config := newProject(t)
	out, err := execute(t, "vite", "build", "--config", config, "--env", `{"foo":"bar"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "dist/assets/index.")
	assert.Contains(t, out, "dist/index.html")

	js, err := filepath.Glob(filepath.Join(dir, "dist", "assets", "index.*.js"))
	require.NoError(t, err)
	require.Len(t, js, 1)
	dat, err := os.ReadFile(js[0])
	require.NoError(t, err)
	assert.Contains(t, string(dat), `console.log("bar")`)
}

func TestBuildSubtask(t *testing.T) {
	dir, config := newProject(t)
	out, err := execute(t, "vite:build", "--config", config, "--log-level", "silent")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, filepath.Join(dir, "dist", "index.html"))
}

func TestInvalidEnv(t *testing.T) {
	_, config := newProject(t)
	_, err := execute(t, "vite", "build", "--config", config, "--env", "{nope")
	assert.ErrorContains(t, err, "argument env of type json")
}

func TestTooManyArgs(t *testing.T) {
	_, err := execute(t, "vite", "build", "extra")
	assert.Error(t, err)
}
