// Package toolpath locates the external executables provisioning depends on.
package toolpath

import (
	"os"
	"path/filepath"
	"runtime"
)

// ToolNotFoundError reports a required executable missing from PATH.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return "failed to find executable " + e.Name
}

// Find searches the directories listed in PATH for an executable named name.
// On Windows ".exe" is appended to name first.
func Find(name string) (string, error) {
	return find(name, os.Getenv("PATH"))
}

func find(name, pathList string) (string, error) {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", &ToolNotFoundError{Name: name}
}

// Tools holds the resolved paths of every executable the provisioner runs.
type Tools struct {
	Git   string
	CMake string
}

// Resolve finds git and cmake. A non-empty override is used instead of a
// PATH search but must still point at an executable file.
func Resolve(gitOverride, cmakeOverride string) (Tools, error) {
	git, err := resolve("git", gitOverride)
	if err != nil {
		return Tools{}, err
	}
	cmake, err := resolve("cmake", cmakeOverride)
	if err != nil {
		return Tools{}, err
	}
	return Tools{Git: git, CMake: cmake}, nil
}

func resolve(name, override string) (string, error) {
	if override == "" {
		return Find(name)
	}
	if filepath.Base(override) == override {
		// bare name: search PATH for it
		return Find(override)
	}
	if !isExecutable(override) {
		return "", &ToolNotFoundError{Name: override}
	}
	return override, nil
}
