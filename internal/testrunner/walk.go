// File: internal/testrunner/walk.go
// Description: a depth-bounded directory walk shared by DetectProjectType's
// marker lookups (depth 0, i.e. exists()) and hasTestFiles's test-file
// discovery (depth <= maxWalkDepth), skipping the documented noise
// directories.
package testrunner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// errStopWalk is returned by a walkFunc to end the walk early once the
// caller has found what it needs, without treating it as a real error.
var errStopWalk = errors.New("testrunner: walk stopped early")

func fsStat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

type walkFunc func(path string, d fs.DirEntry) error

// walkDir walks root up to maxDepth directories deep (root itself is
// depth 0), skipping any directory named in skipDirs, calling fn for
// every file and directory entry encountered.
func walkDir(root string, maxDepth int, fn walkFunc) error {
	return walkDirAt(root, 0, maxDepth, fn)
}

func walkDirAt(dir string, depth, maxDepth int, fn walkFunc) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := fn(path, entry); err != nil {
			return err
		}
		if entry.IsDir() {
			if skipDirs[entry.Name()] || depth >= maxDepth {
				continue
			}
			if err := walkDirAt(path, depth+1, maxDepth, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
