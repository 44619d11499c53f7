package bundler

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

var esTargets = map[string]esbuild.Target{
	"esnext": esbuild.ESNext,
	"es5":    esbuild.ES5,
	"es6":    esbuild.ES2015,
	"es2015": esbuild.ES2015,
	"es2016": esbuild.ES2016,
	"es2017": esbuild.ES2017,
	"es2018": esbuild.ES2018,
	"es2019": esbuild.ES2019,
	"es2020": esbuild.ES2020,
	"es2021": esbuild.ES2021,
	"es2022": esbuild.ES2022,
	"es2023": esbuild.ES2023,
	"es2024": esbuild.ES2024,
}

// esOrder ranks language targets so the most conservative one wins.
var esOrder = []esbuild.Target{
	esbuild.ES5, esbuild.ES2015, esbuild.ES2016, esbuild.ES2017, esbuild.ES2018,
	esbuild.ES2019, esbuild.ES2020, esbuild.ES2021, esbuild.ES2022, esbuild.ES2023,
	esbuild.ES2024, esbuild.ESNext,
}

var engines = []struct {
	prefix string
	name   esbuild.EngineName
}{
	{"chrome", esbuild.EngineChrome},
	{"deno", esbuild.EngineDeno},
	{"edge", esbuild.EngineEdge},
	{"firefox", esbuild.EngineFirefox},
	{"hermes", esbuild.EngineHermes},
	{"ie", esbuild.EngineIE},
	{"ios", esbuild.EngineIOS},
	{"node", esbuild.EngineNode},
	{"opera", esbuild.EngineOpera},
	{"rhino", esbuild.EngineRhino},
	{"safari", esbuild.EngineSafari},
}

// Targets turns a target list such as ["es2020", "chrome58"] into esbuild's
// language target and engine list. When several language targets are given
// the oldest one is used.
func Targets(list []string) (esbuild.Target, []esbuild.Engine, error) {
	lang := esbuild.DefaultTarget
	var out []esbuild.Engine
	for _, raw := range list {
		t := strings.ToLower(strings.TrimSpace(raw))
		if es, ok := esTargets[t]; ok {
			if lang == esbuild.DefaultTarget || rank(es) < rank(lang) {
				lang = es
			}
			continue
		}
		engine, ok := parseEngine(t)
		if !ok {
			return lang, nil, fmt.Errorf("invalid target %q", raw)
		}
		out = append(out, engine)
	}
	return lang, out, nil
}

func parseEngine(t string) (esbuild.Engine, bool) {
	for _, e := range engines {
		version, ok := strings.CutPrefix(t, e.prefix)
		if !ok || version == "" || version[0] < '0' || version[0] > '9' {
			continue
		}
		return esbuild.Engine{Name: e.name, Version: version}, true
	}
	return esbuild.Engine{}, false
}

func rank(t esbuild.Target) int {
	for i, candidate := range esOrder {
		if candidate == t {
			return i
		}
	}
	return len(esOrder)
}

// Define renders define values for esbuild. Strings are used as written,
// anything else is JSON encoded.
func Define(values map[string]any) (map[string]string, error) {
	defines := make(map[string]string, len(values))
	for key, value := range values {
		if s, ok := value.(string); ok {
			defines[key] = s
			continue
		}
		dat, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("define %s: %w", key, err)
		}
		defines[key] = string(dat)
	}
	return defines, nil
}

// EnvDefines maps env values to import.meta.env.<KEY> replacements.
func EnvDefines(env map[string]any) (map[string]string, error) {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	defines := make(map[string]string, len(env))
	for _, key := range keys {
		dat, err := json.Marshal(env[key])
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", key, err)
		}
		defines["import.meta.env."+key] = string(dat)
	}
	return defines, nil
}

// Loader picks the esbuild loader for a file. The second result is false for
// files that are not transformed.
func Loader(file string) (esbuild.Loader, bool) {
	switch path.Ext(file) {
	case ".ts", ".mts":
		return esbuild.LoaderTS, true
	case ".tsx":
		return esbuild.LoaderTSX, true
	case ".jsx":
		return esbuild.LoaderJSX, true
	case ".js", ".mjs":
		return esbuild.LoaderJS, true
	default:
		return esbuild.LoaderNone, false
	}
}

type BundleOptions struct {
	Entries   []esbuild.EntryPoint
	Root      string
	OutDir    string
	AssetsDir string
	Targets   []string
	Define    map[string]string
	Minify    bool
	Sourcemap bool
}

func Bundle(opts BundleOptions) (esbuild.BuildResult, error) {
	lang, engines, err := Targets(opts.Targets)
	if err != nil {
		return esbuild.BuildResult{}, err
	}
	sourcemap := esbuild.SourceMapNone
	if opts.Sourcemap {
		sourcemap = esbuild.SourceMapLinked
	}
	result := esbuild.Build(esbuild.BuildOptions{
		Bundle:              true,
		EntryPointsAdvanced: opts.Entries,
		AbsWorkingDir:       opts.Root,
		Outdir:              opts.OutDir,
		EntryNames:          path.Join(opts.AssetsDir, "[name].[hash]"),
		ChunkNames:          path.Join(opts.AssetsDir, "[name].[hash]"),
		AssetNames:          path.Join(opts.AssetsDir, "[name].[hash]"),
		Format:              esbuild.FormatESModule,
		Platform:            esbuild.PlatformBrowser,
		Splitting:           true,
		Target:              lang,
		Engines:             engines,
		MinifyWhitespace:    opts.Minify,
		MinifyIdentifiers:   opts.Minify,
		MinifySyntax:        opts.Minify,
		Sourcemap:           sourcemap,
		LogLevel:            esbuild.LogLevelSilent,
		Define:              opts.Define,
		Write:               false,
	})
	return result, nil
}

type TransformOptions struct {
	File    string
	Targets []string
	Define  map[string]string
}

func Transform(source []byte, opts TransformOptions) ([]byte, error) {
	loader, ok := Loader(opts.File)
	if !ok {
		return source, nil
	}
	lang, engines, err := Targets(opts.Targets)
	if err != nil {
		return nil, err
	}
	result := esbuild.Transform(string(source), esbuild.TransformOptions{
		Loader:     loader,
		Format:     esbuild.FormatESModule,
		Target:     lang,
		Engines:    engines,
		LogLevel:   esbuild.LogLevelSilent,
		Define:     opts.Define,
		Sourcefile: opts.File,
		Sourcemap:  esbuild.SourceMapInline,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		return nil, fmt.Errorf("%s: %s", opts.File, msg.Text)
	}
	return result.Code, nil
}
