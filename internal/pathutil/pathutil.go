// File: internal/pathutil/pathutil.go
// Description: a single-purpose helper for translating Windows-style paths
// into the POSIX form the sandbox container and forge API both expect.
// Repos analyzed on a Windows checkout, or file paths reported by forge
// APIs with backslashes, need normalizing before they're used as mount
// subpaths or map keys.
package pathutil

import "strings"

// ToPOSIX rewrites backslashes to forward slashes and strips a leading
// drive letter (e.g. "C:\\repo\\src\\main.go" -> "repo/src/main.go"). Paths
// that are already POSIX pass through unchanged.
func ToPOSIX(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}

// Join joins POSIX-style path segments, normalizing each first so a mix of
// Windows- and POSIX-style inputs still produces a clean result.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = ToPOSIX(s)
		if s == "" {
			continue
		}
		parts = append(parts, strings.Trim(s, "/"))
	}
	return strings.Join(parts, "/")
}

// IsWindowsStyle reports whether p looks like a Windows path (backslashes or
// a drive letter prefix), used to decide whether translation is needed at
// all before logging a path for diagnostics.
func IsWindowsStyle(p string) bool {
	if strings.Contains(p, "\\") {
		return true
	}
	return len(p) >= 2 && p[1] == ':'
}
