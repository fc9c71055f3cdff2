package provision

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/extern/internal/env"
)

// State is how far a dependency has been provisioned, judged from disk.
type State int

const (
	Absent State = iota
	Cloned
	Configured
	Installed
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Cloned:
		return "cloned"
	case Configured:
		return "configured"
	case Installed:
		return "installed"
	}
	return "unknown"
}

// Status describes a dependency without changing anything on disk.
type Status struct {
	Name          string
	State         State
	Ref           string    // ref pinned at clone time, if recorded
	ProvisionedAt time.Time // zero if never recorded
	Dirs          Dirs
}

// Status reports the state of spec. A non-empty install dir counts as
// installed; a build tree with a CMake cache counts as configured.
func (p *Provisioner) Status(spec DependencySpec) Status {
	dirs := DirsOf(p.cfg.Layout, spec)
	st := Status{Name: spec.Name, Dirs: dirs}
	if err := env.CheckName(spec.Name); err != nil {
		return st
	}

	switch {
	case nonEmpty(dirs.Install):
		st.State = Installed
	case env.Exists(filepath.Join(dirs.Build, "CMakeCache.txt")):
		st.State = Configured
	case env.Exists(dirs.Source):
		st.State = Cloned
	}

	if rec, err := loadRecord(p.recordPath()); err == nil {
		if e, ok := rec.get(spec.Name); ok {
			st.Ref = e.Ref
			st.ProvisionedAt = e.ProvisionedAt
		}
	}
	return st
}

func nonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
