//go:build dev

package boundplot

import (
	"io/fs"
	"os"
)

// In dev mode the web UI is served straight from the source tree so edits
// show up on reload. Run from the repository root.
func webuiFiles() (fs.FS, error) {
	return os.DirFS("webui"), nil
}

func openBrowser(url string) {
	// In dev mode we don't actually want to open the browser. The developer
	// most likely has a tab open already.
}
