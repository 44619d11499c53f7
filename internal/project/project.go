package project

import (
	"fmt"
	"os"
	"path/filepath"
)

var files = map[string]string{
	"index.html": `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <title>%[1]s</title>
  </head>
  <body>
    <div id="app"></div>
    <script type="module" src="/src/main.ts"></script>
  </body>
</html>
`,
	"src/main.ts": `const app = document.querySelector<HTMLDivElement>("#app");
if (app) {
  app.textContent = "Connected to " + String(import.meta.env.MODE);
}
console.log(import.meta.env.foo);
`,
	"public/robots.txt": "User-agent: *\nAllow: /\n",
}

type GenerateOpts struct {
	Path  string
	Title string
	// Force overwrites files that already exist.
	Force bool
}

// Generate writes a minimal frontend next to the contracts of a host
// project: index.html, a module entry and a public directory.
func Generate(opts GenerateOpts) error {
	if opts.Path == "" {
		return fmt.Errorf("destination not specified")
	}
	if opts.Title == "" {
		opts.Title = filepath.Base(opts.Path)
	}

	// Make sure we don't clobber an existing frontend
	if !opts.Force {
		_, err := os.Stat(filepath.Join(opts.Path, "index.html"))
		if err == nil {
			return fmt.Errorf("destination already has an index.html")
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	for name, content := range files {
		dest := filepath.Join(opts.Path, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if name == "index.html" {
			content = fmt.Sprintf(content, opts.Title)
		}
		if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
