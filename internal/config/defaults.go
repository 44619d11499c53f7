package config

import (
	"path/filepath"
	"strings"

	"github.com/davezuko/hardhat-pack/internal/target"
)

const (
	DefaultServerPort  = 5173
	DefaultPreviewPort = 4173
	DefaultHost        = "localhost"
)

// Listen is a server section with defaults applied.
type Listen struct {
	Host       string
	Port       int
	StrictPort bool
}

func (v Vite) RootDir() string {
	root := str(v.Root, ".")
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}

func (v Vite) CacheDirPath() string {
	return v.resolvePath(str(v.CacheDir, "node_modules/.vite"))
}

func (v Vite) BaseURL() string {
	return str(v.Base, "/")
}

func (v Vite) ModeName(def string) string {
	return str(v.Mode, def)
}

func (v Vite) LogLevelName() string {
	return str(v.LogLevel, "info")
}

func (v Vite) PublicDirPath() string {
	return v.resolvePath(str(v.PublicDir, "public"))
}

func (v Vite) OutDirPath() string {
	if v.Build == nil {
		return v.resolvePath("dist")
	}
	return v.resolvePath(str(v.Build.OutDir, "dist"))
}

func (v Vite) AssetsDirName() string {
	if v.Build == nil {
		return "assets"
	}
	return str(v.Build.AssetsDir, "assets")
}

func (v Vite) MinifyEnabled() bool {
	return v.Build == nil || boolean(v.Build.Minify, true)
}

func (v Vite) SourcemapEnabled() bool {
	return v.Build != nil && boolean(v.Build.Sourcemap, false)
}

// EmptyOutDirEnabled defaults to true only when outDir is inside the root.
// An outDir that is the root or contains it is never emptied.
func (v Vite) EmptyOutDirEnabled() bool {
	if within(v.OutDirPath(), v.RootDir()) {
		return false
	}
	if v.Build != nil && v.Build.EmptyOutDir != nil {
		return *v.Build.EmptyOutDir
	}
	return v.OutDirInRoot()
}

// OutDirInRoot reports whether outDir is strictly under the root.
func (v Vite) OutDirInRoot() bool {
	root, out := v.RootDir(), v.OutDirPath()
	return root != out && within(root, out)
}

// within reports whether path is dir or inside it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// BuildTargets returns the production build targets, falling back to the
// baseline when the config was not resolved.
func (v Vite) BuildTargets() []string {
	if v.Build == nil || v.Build.Target.IsAbsent() {
		return []string{target.Baseline}
	}
	return v.Build.Target.Strings()
}

// DepsTargets returns the targets used when pre-transforming modules for
// the dev server.
func (v Vite) DepsTargets() []string {
	if v.OptimizeDeps == nil || v.OptimizeDeps.EsbuildOptions == nil || v.OptimizeDeps.EsbuildOptions.Target.IsAbsent() {
		return []string{target.Baseline}
	}
	return v.OptimizeDeps.EsbuildOptions.Target.Strings()
}

func (v Vite) ServerListen() Listen {
	return listen(v.Server, DefaultServerPort)
}

func (v Vite) PreviewListen() Listen {
	return listen(v.Preview, DefaultPreviewPort)
}

func listen(s *Server, port int) Listen {
	if s == nil {
		return Listen{Host: DefaultHost, Port: port}
	}
	l := Listen{
		Host:       str(s.Host, DefaultHost),
		Port:       port,
		StrictPort: boolean(s.StrictPort, false),
	}
	if s.Port != nil {
		l.Port = *s.Port
	}
	return l
}

func (v Vite) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(v.RootDir(), p)
}

func str(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func boolean(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
