package build

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	esbuild "github.com/evanw/esbuild/pkg/api"

	"github.com/davezuko/hardhat-pack/internal/bundler"
	"github.com/davezuko/hardhat-pack/internal/config"
	"github.com/davezuko/hardhat-pack/internal/logger"
)

const (
	TypeChunk = "chunk"
	TypeAsset = "asset"
)

// OutputFile describes one emitted file. FileName is relative to outDir.
type OutputFile struct {
	FileName string `json:"fileName"`
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Source   []byte `json:"source,omitempty"`
	IsEntry  bool   `json:"isEntry,omitempty"`
}

// Output is the manifest of a production build: entry chunks first, then
// the remaining chunks, index.html, and other assets.
type Output struct {
	Output []OutputFile `json:"output"`
}

// BaseEnv is the env every module sees through import.meta.env.
func BaseEnv(cfg config.Vite, mode string) map[string]any {
	mode = cfg.ModeName(mode)
	return map[string]any{
		"MODE":     mode,
		"DEV":      mode != "production",
		"PROD":     mode == "production",
		"BASE_URL": cfg.BaseURL(),
	}
}

type entry struct {
	src  string
	name string
	sel  *goquery.Selection
}

// BuildProject bundles the module scripts referenced by index.html and
// writes the result to outDir.
func BuildProject(ctx context.Context, cfg config.Vite, l *slog.Logger) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := cfg.RootDir()
	outDir := cfg.OutDirPath()
	htmlPath := filepath.Join(root, "index.html")

	f, err := os.Open(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve entry: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", htmlPath, err)
	}

	entries := findEntries(doc)
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s has no module scripts to build", htmlPath)
	}
	points := make([]esbuild.EntryPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, esbuild.EntryPoint{
			InputPath:  filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(e.src, "/"))),
			OutputPath: e.name,
		})
	}

	define, err := buildDefines(cfg)
	if err != nil {
		return nil, err
	}
	result, err := bundler.Bundle(bundler.BundleOptions{
		Entries:   points,
		Root:      root,
		OutDir:    outDir,
		AssetsDir: cfg.AssetsDirName(),
		Targets:   cfg.BuildTargets(),
		Define:    define,
		Minify:    cfg.MinifyEnabled(),
		Sourcemap: cfg.SourcemapEnabled(),
	})
	if err != nil {
		return nil, err
	}
	log := logger.NewLog()
	log.AddEsbuild(result.Errors, result.Warnings)
	log.Flush(l)
	if err := log.Err(); err != nil {
		return nil, err
	}

	files := make([]OutputFile, 0, len(result.OutputFiles)+1)
	for _, out := range result.OutputFiles {
		rel, err := filepath.Rel(outDir, out.Path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		if path.Ext(rel) == ".js" {
			files = append(files, OutputFile{FileName: rel, Type: TypeChunk, Code: string(out.Contents)})
		} else {
			files = append(files, OutputFile{FileName: rel, Type: TypeAsset, Source: out.Contents})
		}
	}

	index, err := rewriteHTML(doc, entries, files, cfg)
	if err != nil {
		return nil, err
	}
	output := &Output{Output: order(files, index)}

	if err := write(cfg, output, l); err != nil {
		return nil, err
	}
	l.Info("built", "outDir", outDir, "files", len(output.Output))
	return output, nil
}

func findEntries(doc *goquery.Document) []entry {
	var entries []entry
	doc.Find(`script[type="module"][src]`).Each(func(i int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if strings.Contains(src, "://") || strings.HasPrefix(src, "//") {
			return
		}
		name := "index"
		if len(entries) > 0 {
			name = fmt.Sprintf("index-%d", len(entries)+1)
		}
		entries = append(entries, entry{src: src, name: name, sel: sel})
	})
	return entries
}

func buildDefines(cfg config.Vite) (map[string]string, error) {
	env, err := bundler.EnvDefines(BaseEnv(cfg, "production"))
	if err != nil {
		return nil, err
	}
	user, err := bundler.Define(cfg.Define)
	if err != nil {
		return nil, err
	}
	maps.Copy(env, user)
	return env, nil
}

// entryFile finds the emitted file of an entry with the given extension.
func entryFile(files []OutputFile, assetsDir, name, ext string) (int, bool) {
	prefix := path.Join(assetsDir, name) + "."
	for i, f := range files {
		if strings.HasPrefix(f.FileName, prefix) && path.Ext(f.FileName) == ext {
			return i, true
		}
	}
	return -1, false
}

func rewriteHTML(doc *goquery.Document, entries []entry, files []OutputFile, cfg config.Vite) (OutputFile, error) {
	base := cfg.BaseURL()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	assetsDir := cfg.AssetsDirName()
	for _, e := range entries {
		if i, ok := entryFile(files, assetsDir, e.name, ".js"); ok {
			files[i].IsEntry = true
			e.sel.SetAttr("src", base+files[i].FileName)
			e.sel.SetAttr("crossorigin", "")
		}
		if i, ok := entryFile(files, assetsDir, e.name, ".css"); ok {
			doc.Find("head").AppendHtml(fmt.Sprintf(`<link rel="stylesheet" href="%s%s">`, base, files[i].FileName))
		}
	}
	dat, err := doc.Html()
	if err != nil {
		return OutputFile{}, err
	}
	asset := Asset{Path: "index.html", Contents: []byte(dat)}
	if cfg.MinifyEnabled() {
		if err := asset.Minify(); err != nil {
			return OutputFile{}, err
		}
	}
	return OutputFile{FileName: "index.html", Type: TypeAsset, Source: asset.Contents}, nil
}

func order(files []OutputFile, index OutputFile) []OutputFile {
	out := make([]OutputFile, 0, len(files)+1)
	for _, f := range files {
		if f.Type == TypeChunk && f.IsEntry {
			out = append(out, f)
		}
	}
	for _, f := range files {
		if f.Type == TypeChunk && !f.IsEntry {
			out = append(out, f)
		}
	}
	out = append(out, index)
	for _, f := range files {
		if f.Type == TypeAsset {
			out = append(out, f)
		}
	}
	return out
}

func write(cfg config.Vite, output *Output, l *slog.Logger) error {
	outDir := cfg.OutDirPath()
	if cfg.EmptyOutDirEnabled() {
		if err := Clean(outDir); err != nil {
			return err
		}
	} else if !cfg.OutDirInRoot() && dirExists(outDir) {
		l.Warn("outDir is not inside the project root and will not be emptied", "outDir", outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if public := cfg.PublicDirPath(); dirExists(public) {
		if err := CopyDir(public, outDir); err != nil {
			return err
		}
	}
	for _, f := range output.Output {
		dest := filepath.Join(outDir, filepath.FromSlash(f.FileName))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		dat := f.Source
		if f.Type == TypeChunk {
			dat = []byte(f.Code)
		}
		if err := os.WriteFile(dest, dat, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Clean empties dir, creating it if needed.
func Clean(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("empty %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0o755)
}

// CopyDir copies the files under src into dst, keeping their modes.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyFile(p, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, mode fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
