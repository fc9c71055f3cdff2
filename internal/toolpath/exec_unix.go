//go:build unix

package toolpath

import (
	"os"

	"golang.org/x/sys/unix"
)

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
