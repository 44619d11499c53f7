// Package config describes the bundler's inline configuration and resolves
// the effective configuration from host paths and the user's partial one.
//
// The same Vite type is used for both sides: fields the user left out are
// nil, and Resolve fills the few that must always be set. Everything else is
// left for the engine to default.
package config

import (
	"maps"
	"path/filepath"

	"github.com/davezuko/hardhat-pack/internal/target"
)

// Key is where the resolved configuration lives in the host config.
const Key = "vite"

// HostPaths are the host project paths the bundler config defaults to.
type HostPaths struct {
	Root  string
	Cache string
}

type Vite struct {
	ClearScreen  *bool          `mapstructure:"clearScreen" yaml:"clearScreen,omitempty"`
	CacheDir     *string        `mapstructure:"cacheDir" yaml:"cacheDir,omitempty"`
	Root         *string        `mapstructure:"root" yaml:"root,omitempty"`
	Base         *string        `mapstructure:"base" yaml:"base,omitempty"`
	Mode         *string        `mapstructure:"mode" yaml:"mode,omitempty"`
	LogLevel     *string        `mapstructure:"logLevel" yaml:"logLevel,omitempty"`
	PublicDir    *string        `mapstructure:"publicDir" yaml:"publicDir,omitempty"`
	Define       map[string]any `mapstructure:"define" yaml:"define,omitempty"`
	Server       *Server        `mapstructure:"server" yaml:"server,omitempty"`
	Preview      *Server        `mapstructure:"preview" yaml:"preview,omitempty"`
	Build        *Build         `mapstructure:"build" yaml:"build,omitempty"`
	OptimizeDeps *OptimizeDeps  `mapstructure:"optimizeDeps" yaml:"optimizeDeps,omitempty"`

	// Extra holds options this package does not know about.
	Extra map[string]any `mapstructure:",remain" yaml:",inline"`
}

type Server struct {
	Host       *string        `mapstructure:"host" yaml:"host,omitempty"`
	Port       *int           `mapstructure:"port" yaml:"port,omitempty"`
	StrictPort *bool          `mapstructure:"strictPort" yaml:"strictPort,omitempty"`
	Extra      map[string]any `mapstructure:",remain" yaml:",inline"`
}

type Build struct {
	Target      target.Value   `mapstructure:"target" yaml:"target,omitempty"`
	OutDir      *string        `mapstructure:"outDir" yaml:"outDir,omitempty"`
	AssetsDir   *string        `mapstructure:"assetsDir" yaml:"assetsDir,omitempty"`
	Minify      *bool          `mapstructure:"minify" yaml:"minify,omitempty"`
	Sourcemap   *bool          `mapstructure:"sourcemap" yaml:"sourcemap,omitempty"`
	EmptyOutDir *bool          `mapstructure:"emptyOutDir" yaml:"emptyOutDir,omitempty"`
	Extra       map[string]any `mapstructure:",remain" yaml:",inline"`
}

type OptimizeDeps struct {
	Include        []string        `mapstructure:"include" yaml:"include,omitempty"`
	Exclude        []string        `mapstructure:"exclude" yaml:"exclude,omitempty"`
	EsbuildOptions *EsbuildOptions `mapstructure:"esbuildOptions" yaml:"esbuildOptions,omitempty"`
	Extra          map[string]any  `mapstructure:",remain" yaml:",inline"`
}

type EsbuildOptions struct {
	Target target.Value   `mapstructure:"target" yaml:"target,omitempty"`
	Extra  map[string]any `mapstructure:",remain" yaml:",inline"`
}

// Resolve layers the user's configuration over the defaults derived from the
// host paths. user may be nil.
//
// clearScreen, cacheDir and root are defaults the user can override. The two
// target lists always go through target.Merge so the baseline is present.
func Resolve(paths HostPaths, user *Vite) Vite {
	if user == nil {
		user = &Vite{}
	}

	resolved := Vite{
		ClearScreen: ptr(false),
		CacheDir:    ptr(filepath.Join(paths.Cache, ".vite")),
		Root:        ptr(paths.Root),
	}
	overlay(&resolved, user)

	build := Build{}
	if user.Build != nil {
		build = *user.Build
		build.Extra = maps.Clone(user.Build.Extra)
	}
	build.Target = target.List(target.Merge(target.Baseline, build.Target)...)
	resolved.Build = &build

	optimizeDeps := OptimizeDeps{}
	esbuildOptions := EsbuildOptions{}
	if user.OptimizeDeps != nil {
		optimizeDeps = *user.OptimizeDeps
		optimizeDeps.Include = cloneStrings(user.OptimizeDeps.Include)
		optimizeDeps.Exclude = cloneStrings(user.OptimizeDeps.Exclude)
		optimizeDeps.Extra = maps.Clone(user.OptimizeDeps.Extra)
		if user.OptimizeDeps.EsbuildOptions != nil {
			esbuildOptions = *user.OptimizeDeps.EsbuildOptions
			esbuildOptions.Extra = maps.Clone(user.OptimizeDeps.EsbuildOptions.Extra)
		}
	}
	esbuildOptions.Target = target.List(target.Merge(target.Baseline, esbuildOptions.Target)...)
	optimizeDeps.EsbuildOptions = &esbuildOptions
	resolved.OptimizeDeps = &optimizeDeps

	return resolved
}

// overlay copies every top-level field the user set. Nested structs are taken
// whole, matching a shallow object spread.
func overlay(dst *Vite, user *Vite) {
	if user.ClearScreen != nil {
		dst.ClearScreen = ptr(*user.ClearScreen)
	}
	if user.CacheDir != nil {
		dst.CacheDir = ptr(*user.CacheDir)
	}
	if user.Root != nil {
		dst.Root = ptr(*user.Root)
	}
	if user.Base != nil {
		dst.Base = ptr(*user.Base)
	}
	if user.Mode != nil {
		dst.Mode = ptr(*user.Mode)
	}
	if user.LogLevel != nil {
		dst.LogLevel = ptr(*user.LogLevel)
	}
	if user.PublicDir != nil {
		dst.PublicDir = ptr(*user.PublicDir)
	}
	if user.Define != nil {
		dst.Define = maps.Clone(user.Define)
	}
	if user.Server != nil {
		s := user.Server.clone()
		dst.Server = &s
	}
	if user.Preview != nil {
		s := user.Preview.clone()
		dst.Preview = &s
	}
	if user.Extra != nil {
		dst.Extra = maps.Clone(user.Extra)
	}
}

// Clone returns a copy that shares no maps or slices with v.
func (v Vite) Clone() Vite {
	out := v
	out.Define = maps.Clone(v.Define)
	out.Extra = maps.Clone(v.Extra)
	if v.Server != nil {
		s := v.Server.clone()
		out.Server = &s
	}
	if v.Preview != nil {
		s := v.Preview.clone()
		out.Preview = &s
	}
	if v.Build != nil {
		b := *v.Build
		b.Extra = maps.Clone(v.Build.Extra)
		out.Build = &b
	}
	if v.OptimizeDeps != nil {
		o := *v.OptimizeDeps
		o.Include = cloneStrings(o.Include)
		o.Exclude = cloneStrings(o.Exclude)
		o.Extra = maps.Clone(o.Extra)
		if o.EsbuildOptions != nil {
			e := *o.EsbuildOptions
			e.Extra = maps.Clone(e.Extra)
			o.EsbuildOptions = &e
		}
		out.OptimizeDeps = &o
	}
	return out
}

func (s Server) clone() Server {
	s.Extra = maps.Clone(s.Extra)
	return s
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func ptr[T any](v T) *T {
	return &v
}
