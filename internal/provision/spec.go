package provision

import (
	"github.com/goplus/extern/internal/env"
)

// DependencySpec declares one external CMake project to provision.
type DependencySpec struct {
	Name          string
	RepositoryURL string
	// Ref is checked out right after the first clone. Empty keeps the
	// remote's default branch; "latest" picks the highest release tag.
	Ref string
	// BuildOptions are passed to the configure step verbatim, in order,
	// after Defines and Switches.
	BuildOptions []string
	// Defines become -D<key>:STRING=<value> cache entries.
	Defines map[string]string
	// Switches become -D<key>:BOOL=ON or OFF cache entries.
	Switches map[string]bool
	// Env is set for every cmake command of this dependency.
	Env map[string]string
	// SourceSubdir locates CMakeLists.txt inside the checkout when the
	// project does not keep it at the top level.
	SourceSubdir string
	// BuildsBinary is false for header-only projects, which go straight
	// from configure to install.
	BuildsBinary bool
	// Requires names dependencies provisioned earlier whose install
	// prefixes, and those of their own requirements, must be visible to
	// this one's configure step.
	Requires []string
	// Expect holds glob patterns, relative to the install dir, that must
	// each match at least one installed file.
	Expect []string
}

// Dirs are the filesystem locations a DependencySpec resolves to.
type Dirs struct {
	Source  string
	Build   string
	Install string
}

// DirsOf returns where spec lives under layout l.
func DirsOf(l env.Layout, spec DependencySpec) Dirs {
	return Dirs{
		Source:  l.SourceDir(spec.Name),
		Build:   l.BuildDir(spec.Name),
		Install: l.InstallDir(spec.Name),
	}
}
