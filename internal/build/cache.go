package build

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirCache keeps transformed modules as files under a directory, usually
// the configured cacheDir.
type DirCache struct {
	dir string
}

func NewDirCache(cacheDir string) *DirCache {
	return &DirCache{dir: filepath.Join(cacheDir, "transform")}
}

func (c *DirCache) Get(key string) ([]byte, bool) {
	dat, err := os.ReadFile(filepath.Join(c.dir, key+".js"))
	if err != nil {
		return nil, false
	}
	return dat, true
}

// Put is best effort; a cache that cannot be written is just a miss next
// time.
func (c *DirCache) Put(key string, dat []byte) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return
	}
	_, werr := tmp.Write(dat)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		return
	}
	os.Rename(tmp.Name(), filepath.Join(c.dir, key+".js"))
}

func cacheKey(file string, src []byte, opts AssetServeOpts) string {
	h := sha256.New()
	h.Write([]byte(file))
	h.Write([]byte{0})
	h.Write(src)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(opts.Targets, ",")))

	keys := make([]string, 0, len(opts.Define))
	for k := range opts.Define {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(opts.Define[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
