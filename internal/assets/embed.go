// Package assets embeds the demo resources served by the binaries.
package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
)

// files/ must exist and hold at least one file to satisfy go:embed; a
// missing pattern fails the build.
//
//go:embed files
var embedded embed.FS

// Str is str.txt bound at compile time, for use with resource.Static.
//
//go:embed files/str.txt
var Str string

// Required lists the names every binary expects, checked when a Loader is built.
var Required = []string{"str.txt", "bytes.bin"}

// FS returns the embedded files rooted at files/.
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "files")
	if err != nil {
		panic(fmt.Errorf("assets: files subfs: %w", err))
	}
	return sub
}

// SourceDir is the on-disk files/ directory this package was compiled
// from. It is the live-mode root during development, when the binary runs
// on the machine that built it.
func SourceDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Join(filepath.Dir(file), "files")
}
