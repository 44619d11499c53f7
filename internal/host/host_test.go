package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davezuko/hardhat-pack/internal/config"
)

func TestRunAppliesDefaults(t *testing.T) {
	tasks := NewRegistry()
	var got Args
	tasks.Subtask("greet", "", func(ctx context.Context, args Args, rt *Runtime) (any, error) {
		got = args
		return "done", nil
	}).AddOptionalParam("env", "", map[string]any{}, JSON)

	rt := NewRuntime(&Config{}, tasks)
	res, err := rt.Run(context.Background(), "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", res)
	assert.Equal(t, map[string]any{}, got["env"])

	got["env"].(map[string]any)["leak"] = true
	_, err = rt.Run(context.Background(), "greet", Args{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got["env"])
}

func TestRunUnknownTask(t *testing.T) {
	rt := NewRuntime(&Config{}, NewRegistry())
	_, err := rt.Run(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestOverrideRunSuper(t *testing.T) {
	tasks := NewRegistry()
	var calls []string
	tasks.Subtask("build", "", func(ctx context.Context, args Args, rt *Runtime) (any, error) {
		calls = append(calls, "base:"+args["who"].(string))
		return "base", nil
	}).AddOptionalParam("who", "", "nobody", String)

	tasks.Override("build", func(ctx context.Context, args Args, rt *Runtime, runSuper RunSuper) (any, error) {
		calls = append(calls, "override")
		return runSuper(ctx, nil)
	})

	rt := NewRuntime(&Config{}, tasks)
	res, err := rt.Run(context.Background(), "build", Args{"who": "me"})
	require.NoError(t, err)
	assert.Equal(t, "base", res)
	assert.Equal(t, []string{"override", "base:me"}, calls)

	task, ok := tasks.Get("build")
	require.True(t, ok)
	assert.Len(t, task.Params, 1)
}

func TestOverrideWithoutSuper(t *testing.T) {
	tasks := NewRegistry()
	tasks.Override("lonely", func(ctx context.Context, args Args, rt *Runtime, runSuper RunSuper) (any, error) {
		return runSuper(ctx, args)
	})
	_, err := NewRuntime(&Config{}, tasks).Run(context.Background(), "lonely", nil)
	assert.True(t, errors.Is(err, ErrNoSuper))
}

func TestJSONParam(t *testing.T) {
	v, err := JSON.Parse("env", `{"foo":"bar"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"foo": "bar"}, v)

	_, err = JSON.Parse("env", `{foo}`)
	assert.ErrorContains(t, err, "argument env of type json")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hardhat.config.yaml"), `
solidity: 0.8.10
paths:
  cache: .cache
vite:
  logLevel: silent
  define:
    __APP_VERSION__: '"1.0.0"'
  build:
    target: es2022
  optimizeDeps:
    esbuildOptions:
      target: [chrome58, edge16]
`)

	var seen *UserConfig
	cfg, err := LoadConfig(LoadOptions{Dir: dir, Viper: viper.New(), Extenders: []Extender{
		func(cfg *Config, user *UserConfig) {
			seen = user
			cfg.Vite = config.Resolve(config.HostPaths{Root: cfg.Paths.Root, Cache: cfg.Paths.Cache}, user.Vite)
		},
	}})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Paths.Root)
	assert.Equal(t, filepath.Join(dir, ".cache"), cfg.Paths.Cache)
	assert.Equal(t, filepath.Join(dir, "contracts"), cfg.Paths.Sources)
	assert.Equal(t, filepath.Join(dir, "hardhat.config.yaml"), cfg.Paths.ConfigFile)
	assert.Equal(t, "0.8.10", seen.Extra["solidity"])

	assert.Equal(t, "silent", *cfg.Vite.LogLevel)
	assert.Equal(t, `"1.0.0"`, cfg.Vite.Define["__APP_VERSION__"])
	assert.Equal(t, filepath.Join(dir, ".cache", ".vite"), *cfg.Vite.CacheDir)
	assert.Equal(t, []string{"es2020", "es2022"}, cfg.Vite.Build.Target.Strings())
	assert.Equal(t, []string{"es2020", "chrome58", "edge16"}, cfg.Vite.OptimizeDeps.EsbuildOptions.Target.Strings())
}

func TestLoadConfigJSONFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.json")
	writeFile(t, file, `{"paths": {"root": "app"}, "vite": {"build": {"target": "es2020"}}}`)

	var user *UserConfig
	cfg, err := LoadConfig(LoadOptions{File: file, Viper: viper.New(), Extenders: []Extender{
		func(_ *Config, u *UserConfig) { user = u },
	}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), cfg.Paths.Root)
	assert.Equal(t, filepath.Join(dir, "app", "cache"), cfg.Paths.Cache)
	assert.Equal(t, "es2020", user.Vite.Build.Target.String())
}

func TestLoadConfigWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigEnv, "")
	cfg, err := LoadConfig(LoadOptions{Dir: dir, Viper: viper.New()})
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Paths.Root)
	assert.Empty(t, cfg.Paths.ConfigFile)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(LoadOptions{File: filepath.Join(t.TempDir(), "missing.yaml"), Viper: viper.New()})
	assert.Error(t, err)

	dir := t.TempDir()
	file := filepath.Join(dir, "hardhat.config.yaml")
	writeFile(t, file, "vite:\n  clearScreen: [1, 2]\n")
	_, err = LoadConfig(LoadOptions{File: file, Viper: viper.New()})
	assert.ErrorContains(t, err, "clearScreen")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hardhat.config.yaml"), `
paths:
  cache: .cache
vite:
  define:
    __APP__: '"app"'
  server:
    host: 127.0.0.1
`)
	elsewhere := filepath.Join(t.TempDir(), "elsewhere")
	t.Setenv("HARDHAT_PACK_PATHS_CACHE", elsewhere)
	t.Setenv("HARDHAT_PACK_VITE_LOGLEVEL", "warn")
	t.Setenv("HARDHAT_PACK_VITE_SERVER_PORT", "3000")
	t.Setenv("HARDHAT_PACK_VITE_BUILD_TARGET", "es2022")

	cfg, err := LoadConfig(LoadOptions{Dir: dir, Viper: viper.New(), Extenders: []Extender{resolveVite}})
	require.NoError(t, err)

	assert.Equal(t, elsewhere, cfg.Paths.Cache)
	assert.Equal(t, "warn", cfg.Vite.LogLevelName())
	assert.Equal(t, config.Listen{Host: "127.0.0.1", Port: 3000}, cfg.Vite.ServerListen())
	assert.Equal(t, []string{"es2020", "es2022"}, cfg.Vite.Build.Target.Strings())
	assert.Equal(t, `"app"`, cfg.Vite.Define["__APP__"])
}

func TestLoadConfigEnvWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigEnv, "")
	t.Setenv("HARDHAT_PACK_PATHS_ROOT", "app")
	t.Setenv("HARDHAT_PACK_VITE_BUILD_EMPTYOUTDIR", "false")

	cfg, err := LoadConfig(LoadOptions{Dir: dir, Viper: viper.New(), Extenders: []Extender{resolveVite}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), cfg.Paths.Root)
	require.NotNil(t, cfg.Vite.Build.EmptyOutDir)
	assert.False(t, *cfg.Vite.Build.EmptyOutDir)
}

func resolveVite(cfg *Config, user *UserConfig) {
	cfg.Vite = config.Resolve(config.HostPaths{Root: cfg.Paths.Root, Cache: cfg.Paths.Cache}, user.Vite)
}
