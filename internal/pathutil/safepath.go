package pathutil

import (
	"io/fs"
	"strings"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// ValidName reports whether name can address a resource: relative,
// slash-separated, no empty or dot segments and no backslashes, so it
// resolves inside the resource root on every backend.
func ValidName(name string) bool {
	if name == "" || strings.ContainsRune(name, '\\') {
		return false
	}
	return fs.ValidPath(name) && !HasDotSegments(name)
}

// ValidDir is ValidName but also accepts "." for the root itself.
func ValidDir(dir string) bool {
	return dir == "." || ValidName(dir)
}
