// Package env describes where provisioning puts things on disk and the
// isolated environment external commands run in.
package env

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Directory names under the project root.
const (
	ExternDirName = "extern"
	EnvDirName    = ".venv"
	BuildDirName  = "cmake-build-release"
	sourceSuffix  = "-source"
)

// ErrInvalidName is returned for dependency names that are not a single,
// local path element.
var ErrInvalidName = errors.New("invalid dependency name")

// Layout derives every provisioning path from a project root.
//
//	<root>/
//	  .venv/                                 isolated environment
//	  extern/
//	    .cache.json                          provision record
//	    <name>-source/                       cloned source
//	      cmake-build-release/               build tree
//	    <name>/                              install prefix
type Layout struct {
	Root string
}

// ExternDir returns <root>/extern.
func (l Layout) ExternDir() string {
	return filepath.Join(l.Root, ExternDirName)
}

// SourceDir returns <root>/extern/<name>-source.
func (l Layout) SourceDir(name string) string {
	return filepath.Join(l.ExternDir(), name+sourceSuffix)
}

// InstallDir returns <root>/extern/<name>.
func (l Layout) InstallDir(name string) string {
	return filepath.Join(l.ExternDir(), name)
}

// BuildDir returns <root>/extern/<name>-source/cmake-build-release.
func (l Layout) BuildDir(name string) string {
	return filepath.Join(l.SourceDir(name), BuildDirName)
}

// EnvDir returns <root>/.venv.
func (l Layout) EnvDir() string {
	return filepath.Join(l.Root, EnvDirName)
}

// CheckName reports whether name can be used as a directory under extern/.
// A name ending in "-source" would collide with another dependency's
// source checkout and is rejected too.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\:`) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	if strings.HasSuffix(name, sourceSuffix) {
		return ErrInvalidName
	}
	if _, err := filepath.Localize(name); err != nil {
		return ErrInvalidName
	}
	return nil
}

// Exists reports whether path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Isolated is the prepared environment every external command of a run
// executes in. It is built once, then applied to each child process.
type Isolated struct {
	Dir string
}

// Prepare creates the isolated environment under the layout root if it
// does not exist yet. It is the first phase of the two-phase entry: call it
// once at startup, then pass Environ's result to every child.
func Prepare(l Layout) (*Isolated, error) {
	dir := l.EnvDir()
	if err := os.MkdirAll(binDir(dir), 0o755); err != nil {
		return nil, err
	}
	return &Isolated{Dir: dir}, nil
}

// BinDir returns the directory prepended to PATH.
func (i *Isolated) BinDir() string {
	return binDir(i.Dir)
}

// Environ returns base adjusted for the isolated environment: the bin
// directory leads PATH, VIRTUAL_ENV points at it and git never prompts.
func (i *Isolated) Environ(base []string) []string {
	pathKey := "PATH"
	out := make([]string, 0, len(base)+3)
	var path string
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(k, "PATH"):
			pathKey, path = k, v
		case k == "VIRTUAL_ENV", k == "GIT_TERMINAL_PROMPT":
		default:
			out = append(out, kv)
		}
	}
	if path != "" {
		path = i.BinDir() + string(os.PathListSeparator) + path
	} else {
		path = i.BinDir()
	}
	return append(out,
		pathKey+"="+path,
		"VIRTUAL_ENV="+i.Dir,
		"GIT_TERMINAL_PROMPT=0",
	)
}

func binDir(dir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, "Scripts")
	}
	return filepath.Join(dir, "bin")
}

// WorkDir returns the per-user directory for global configuration.
func WorkDir() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "extern"), nil
}
