// Package fsutil holds small file system helpers shared by the configuration
// loader and the hub downloader.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExpandTilde replaces a leading "~" by the current user's home directory.
// The path is returned unchanged if it doesn't start with "~" or if the home
// directory cannot be determined.
func ExpandTilde(path string) string {
	if path != "~" && !hasTildePrefix(path) {
		return path
	}
	usr, err := user.Current()
	if err != nil || usr.HomeDir == "" {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	}
	return filepath.Join(usr.HomeDir, path[2:])
}

func hasTildePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && path[1] == '/'
}

// FileExists reports whether the file or directory exists. File system errors
// other than non-existence are reported as existing, so that callers trying to
// create the file surface the real error.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
