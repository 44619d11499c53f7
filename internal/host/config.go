// Package host is the task runner the bundler tasks plug into: it loads the
// project config once and runs named tasks against it.
//
// Configuration Loading Priority (highest to lowest):
//  1. LoadOptions.File, usually the --config flag
//  2. the HARDHAT_PACK_CONFIG environment variable
//  3. hardhat.config.{yaml,yml,json} in the working directory
//
// Without any config file the working directory is the project root.
//
// Keys listed in EnvKeys can be overridden with HARDHAT_PACK_<KEY>, dots
// replaced by underscores: HARDHAT_PACK_PATHS_CACHE, HARDHAT_PACK_VITE_LOGLEVEL.
package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/davezuko/hardhat-pack/internal/config"
	"github.com/davezuko/hardhat-pack/internal/target"
)

const (
	ConfigName = "hardhat.config"
	ConfigEnv  = "HARDHAT_PACK_CONFIG"
	EnvPrefix  = "HARDHAT_PACK"
)

type Paths struct {
	Root       string `yaml:"root"`
	Cache      string `yaml:"cache"`
	Sources    string `yaml:"sources"`
	Artifacts  string `yaml:"artifacts"`
	ConfigFile string `yaml:"configFile,omitempty"`
}

// Config is the resolved project configuration. It is built once by
// LoadConfig and only read afterwards.
type Config struct {
	Paths Paths       `yaml:"paths"`
	Vite  config.Vite `yaml:"vite"`
}

type UserPaths struct {
	Root      string `mapstructure:"root"`
	Cache     string `mapstructure:"cache"`
	Sources   string `mapstructure:"sources"`
	Artifacts string `mapstructure:"artifacts"`
}

// UserConfig is the config file as written.
type UserConfig struct {
	Paths UserPaths      `mapstructure:"paths"`
	Vite  *config.Vite   `mapstructure:"vite"`
	Extra map[string]any `mapstructure:",remain"`
}

// Extender derives parts of the resolved config from the user's.
type Extender func(cfg *Config, user *UserConfig)

type LoadOptions struct {
	File      string
	Dir       string
	Extenders []Extender
	Viper     *viper.Viper
}

var supportedExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// EnvKeys are the config keys that can be set from the environment.
var EnvKeys = []string{
	"paths.root", "paths.cache", "paths.sources", "paths.artifacts",
	"vite.root", "vite.base", "vite.mode", "vite.logLevel", "vite.cacheDir",
	"vite.publicDir", "vite.clearScreen",
	"vite.server.host", "vite.server.port", "vite.server.strictPort",
	"vite.preview.host", "vite.preview.port", "vite.preview.strictPort",
	"vite.build.target", "vite.build.outDir", "vite.build.assetsDir",
	"vite.build.minify", "vite.build.sourcemap", "vite.build.emptyOutDir",
}

func LoadConfig(opts LoadOptions) (*Config, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range EnvKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}

	file := opts.File
	if file == "" {
		file = os.Getenv(ConfigEnv)
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName(ConfigName)
	}

	raw := map[string]any{}
	configFile := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		if configFile, err = filepath.Abs(v.ConfigFileUsed()); err != nil {
			return nil, err
		}
		if raw, err = readRawConfig(configFile); err != nil {
			return nil, err
		}
		dir = filepath.Dir(configFile)
	}
	applyEnv(v, raw)

	user, err := DecodeUserConfig(raw)
	if err != nil {
		if configFile != "" {
			return nil, fmt.Errorf("parse %s: %w", configFile, err)
		}
		return nil, err
	}

	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Paths: resolvePaths(dir, user.Paths)}
	cfg.Paths.ConfigFile = configFile
	for _, extend := range opts.Extenders {
		extend(cfg, user)
	}
	return cfg, nil
}

func readRawConfig(file string) (map[string]any, error) {
	ext := strings.ToLower(filepath.Ext(file))
	if !supportedExts[ext] {
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	dat, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	// yaml.v3 also reads JSON and keeps key case, which define needs.
	var raw map[string]any
	if err := yaml.Unmarshal(dat, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// applyEnv copies every env-bound key viper resolves into raw. Viper folds
// key case, so raw keeps the spelling of EnvKeys.
func applyEnv(v *viper.Viper, raw map[string]any) {
	for _, key := range EnvKeys {
		if _, ok := os.LookupEnv(envName(key)); !ok {
			continue
		}
		setPath(raw, strings.Split(key, "."), v.Get(key))
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setPath(m map[string]any, path []string, value any) {
	for _, k := range path[:len(path)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// DecodeUserConfig turns a loosely typed config document into a UserConfig.
func DecodeUserConfig(raw map[string]any) (*UserConfig, error) {
	user := &UserConfig{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       target.DecodeHook(),
		WeaklyTypedInput: true,
		Result:           user,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}
	return user, nil
}

func resolvePaths(dir string, user UserPaths) Paths {
	abs := func(base, p, def string) string {
		if p == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}
	root := abs(dir, user.Root, ".")
	return Paths{
		Root:      root,
		Cache:     abs(root, user.Cache, "cache"),
		Sources:   abs(root, user.Sources, "contracts"),
		Artifacts: abs(root, user.Artifacts, "artifacts"),
	}
}
