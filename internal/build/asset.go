package build

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"

	"github.com/davezuko/hardhat-pack/internal/bundler"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/json"
)

var m = minify.New()

var minifiableMediaTypes = map[string]string{
	".css":  "text/css",
	".html": "text/html",
	".json": "application/json",
}

func init() {
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc("application/json", json.Minify)
}

// Asset is a single file of the project, read lazily.
type Asset struct {
	Path     string
	Contents []byte
}

func LoadAsset(file string) (Asset, error) {
	info, err := os.Stat(file)
	if err != nil {
		return Asset{}, err
	}
	if info.IsDir() {
		return Asset{}, &os.PathError{Op: "load", Path: file, Err: os.ErrNotExist}
	}
	return Asset{Path: file}, nil
}

// Minify shrinks html, css and json contents in place. Other files are left
// alone.
func (a *Asset) Minify() error {
	mediaType := minifiableMediaTypes[path.Ext(a.Path)]
	if mediaType == "" {
		return nil
	}
	src, err := a.source()
	if err != nil {
		return err
	}
	dat, err := m.Bytes(mediaType, src)
	if err != nil {
		return fmt.Errorf("minification error: %s", err)
	}
	a.Contents = dat
	return nil
}

type AssetServeOpts struct {
	Targets []string
	Define  map[string]string
	Cache   TransformCache
}

// TransformCache stores transformed modules between requests.
type TransformCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, dat []byte)
}

// Serve writes the asset, transforming scripts on the fly.
func (a *Asset) Serve(w http.ResponseWriter, opts AssetServeOpts) {
	if _, ok := bundler.Loader(a.Path); !ok {
		w.Header().Set("Content-Type", a.contentType())
		a.write(w)
		return
	}

	src, err := a.source()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	key := ""
	if opts.Cache != nil {
		key = cacheKey(a.Path, src, opts)
		if dat, ok := opts.Cache.Get(key); ok {
			writeScript(w, dat)
			return
		}
	}
	dat, err := bundler.Transform(src, bundler.TransformOptions{
		File:    a.Path,
		Targets: opts.Targets,
		Define:  opts.Define,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if opts.Cache != nil {
		opts.Cache.Put(key, dat)
	}
	writeScript(w, dat)
}

func writeScript(w http.ResponseWriter, dat []byte) {
	w.Header().Set("Content-Type", "text/javascript")
	w.Write(dat)
}

func (a *Asset) source() ([]byte, error) {
	if a.Contents != nil {
		return a.Contents, nil
	}
	return os.ReadFile(a.Path)
}

func (a *Asset) write(w io.Writer) {
	if a.Contents == nil {
		f, err := os.Open(a.Path)
		if err != nil {
			return
		}
		defer f.Close()
		io.Copy(w, f)
	} else {
		w.Write(a.Contents)
	}
}

func (a *Asset) contentType() string {
	ct := mime.TypeByExtension(path.Ext(a.Path))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
