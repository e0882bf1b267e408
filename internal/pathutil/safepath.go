// Package pathutil checks slash-separated paths that arrive from outside
// the process, such as URL paths and archive entry names.
package pathutil

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// ErrUnsafe is wrapped by Rel for paths that could leave their root.
var ErrUnsafe = errors.New("unsafe path")

// HasDotSegments reports whether any segment of p is "." or "..".
func HasDotSegments(p string) bool {
	for seg := range strings.SplitSeq(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// Rel converts p to an io/fs name. Leading and repeated slashes are
// dropped and "" names the root. NULs, backslashes and dot segments are
// rejected rather than cleaned away.
func Rel(p string) (string, error) {
	if strings.ContainsAny(p, "\x00\\") || HasDotSegments(p) {
		return "", fmt.Errorf("%w: %q", ErrUnsafe, p)
	}
	name := path.Clean("/" + p)[1:]
	if name != "" && !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsafe, p)
	}
	return name, nil
}
