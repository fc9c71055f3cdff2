// Package provision makes external CMake projects available under a
// project's extern/ directory, doing only the work the filesystem says is
// still missing.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qiniu/x/log"

	"github.com/goplus/extern/internal/env"
	"github.com/goplus/extern/internal/process"
	"github.com/goplus/extern/internal/toolpath"
	"github.com/goplus/extern/internal/vcs"
	"github.com/goplus/extern/x/cmake"
)

// BuildType is the CMAKE_BUILD_TYPE every dependency is configured with.
const BuildType = "Release"

// Config is everything a Provisioner needs; nothing is read from globals.
type Config struct {
	Layout env.Layout
	Tools  toolpath.Tools
	// Runner executes git and cmake. Defaults to a process.ExecRunner
	// streaming to os.Stdout.
	Runner process.Runner
	// Environ is the environment children run with; nil inherits ours.
	Environ []string
	// Generator is passed to cmake -G when set.
	Generator string
	// Toolchain is passed as CMAKE_TOOLCHAIN_FILE when set.
	Toolchain string
	// Repin fetches and checks out a changed ref in an existing source
	// checkout. Off by default: the ref is applied at first clone only.
	Repin bool
}

// Provisioner ensures dependencies are cloned, configured, built and
// installed. Runs are sequential; concurrent use against the same root is
// not supported.
type Provisioner struct {
	cfg Config
	vcs vcs.VCS
	now func() time.Time

	// requires remembers the requirements of dependencies ensured by this
	// Provisioner; the record covers earlier runs.
	requires map[string][]string
}

// New creates a Provisioner.
func New(cfg Config) *Provisioner {
	if cfg.Runner == nil {
		cfg.Runner = process.New()
	}
	if cfg.Tools.Git == "" {
		cfg.Tools.Git = "git"
	}
	if cfg.Tools.CMake == "" {
		cfg.Tools.CMake = "cmake"
	}
	return &Provisioner{
		cfg: cfg,
		vcs: vcs.NewGitVCS(
			vcs.WithGitPath(cfg.Tools.Git),
			vcs.WithRunner(cfg.Runner),
			vcs.WithEnv(cfg.Environ),
		),
		now:      time.Now,
		requires: make(map[string][]string),
	}
}

// Layout returns the layout dependencies are provisioned into.
func (p *Provisioner) Layout() env.Layout {
	return p.cfg.Layout
}

// EnsureAll provisions specs one after another and stops at the first
// failure. It returns the install dirs of the dependencies provisioned.
func (p *Provisioner) EnsureAll(ctx context.Context, specs []DependencySpec) ([]string, error) {
	dirs := make([]string, 0, len(specs))
	for _, spec := range specs {
		dir, err := p.Ensure(ctx, spec)
		if err != nil {
			return dirs, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// Ensure makes spec available at its install dir and returns that dir.
//
// Retrieval happens only when the source dir is missing, and the install
// and build dirs are created only when missing. Configure always runs so
// generated build files are refreshed; build runs for BuildsBinary specs;
// install always runs.
func (p *Provisioner) Ensure(ctx context.Context, spec DependencySpec) (string, error) {
	if err := env.CheckName(spec.Name); err != nil {
		return "", fmt.Errorf("%q: %w", spec.Name, err)
	}
	if spec.SourceSubdir != "" && !filepath.IsLocal(spec.SourceSubdir) {
		return "", fmt.Errorf("%s: source subdir %q is not a local path", spec.Name, spec.SourceSubdir)
	}
	dirs := DirsOf(p.cfg.Layout, spec)

	if !env.Exists(dirs.Source) {
		if err := p.retrieve(ctx, spec, dirs.Source); err != nil {
			return "", err
		}
	} else if err := p.checkPin(ctx, spec, dirs.Source); err != nil {
		return "", err
	}

	if !env.Exists(dirs.Install) {
		if err := os.MkdirAll(dirs.Install, 0o755); err != nil {
			return "", err
		}
	}
	if !env.Exists(dirs.Build) {
		if err := os.MkdirAll(dirs.Build, 0o755); err != nil {
			return "", err
		}
	}

	c := cmake.New(dirs.Source, dirs.Build, dirs.Install,
		cmake.WithPath(p.cfg.Tools.CMake),
		cmake.WithRunner(p.cfg.Runner),
		cmake.WithEnviron(p.cfg.Environ),
	).BuildType(BuildType)
	if spec.SourceSubdir != "" {
		c.Source(filepath.Join(dirs.Source, spec.SourceSubdir))
	}
	if p.cfg.Generator != "" {
		c.Generator(p.cfg.Generator)
	}
	if p.cfg.Toolchain != "" {
		c.Toolchain(p.cfg.Toolchain)
	}
	for k, v := range spec.Defines {
		c.Define(k, v)
	}
	for k, v := range spec.Switches {
		c.DefineBool(k, v)
	}
	for k, v := range spec.Env {
		c.Env(k, v)
	}

	reqs := p.requirements(spec)
	// deepest first, so direct requirements end up first in search paths
	for i := len(reqs) - 1; i >= 0; i-- {
		if err := env.CheckName(reqs[i]); err != nil {
			return "", provisioningError(spec, StepConfigure, fmt.Errorf("requires %q: %w", reqs[i], err))
		}
		reqDir := p.cfg.Layout.InstallDir(reqs[i])
		if !env.Exists(reqDir) {
			return "", provisioningError(spec, StepConfigure, fmt.Errorf("requires %s: %w", reqs[i], ErrNotProvisioned))
		}
		c.Use(reqDir)
	}

	if err := c.Configure(ctx, spec.BuildOptions...); err != nil {
		return "", provisioningError(spec, StepConfigure, err)
	}
	if spec.BuildsBinary {
		if err := c.Build(ctx); err != nil {
			return "", provisioningError(spec, StepBuild, err)
		}
	}
	if err := c.Install(ctx); err != nil {
		return "", provisioningError(spec, StepInstall, err)
	}
	if err := verify(dirs.Install, spec.Expect); err != nil {
		return "", provisioningError(spec, StepVerify, err)
	}

	p.requires[spec.Name] = spec.Requires
	p.updateRecord(spec.Name, func(e *recordEntry) {
		e.Requires = spec.Requires
		e.ProvisionedAt = p.now()
	})
	log.Infof("%s: installed to %s", spec.Name, dirs.Install)
	return dirs.Install, nil
}

// retrieve clones spec into sourceDir and pins it. A failed retrieval
// removes whatever was cloned so the next run starts over.
func (p *Provisioner) retrieve(ctx context.Context, spec DependencySpec, sourceDir string) error {
	ref, err := vcs.ResolveRef(ctx, p.vcs, spec.RepositoryURL, spec.Ref)
	if err != nil {
		return retrievalError(spec, spec.Ref, StepResolve, err)
	}

	log.Infof("%s: cloning %s", spec.Name, spec.RepositoryURL)
	if err := p.vcs.Clone(ctx, spec.RepositoryURL, sourceDir); err != nil {
		os.RemoveAll(sourceDir)
		return retrievalError(spec, ref, StepClone, err)
	}
	if ref != "" {
		if err := p.vcs.Checkout(ctx, sourceDir, ref); err != nil {
			os.RemoveAll(sourceDir)
			return retrievalError(spec, ref, StepCheckout, err)
		}
	}

	now := p.now()
	p.updateRecord(spec.Name, func(e *recordEntry) {
		e.URL = spec.RepositoryURL
		e.Ref = ref
		e.ClonedAt = now
	})
	return nil
}

// checkPin compares spec.Ref against the ref recorded at clone time. A
// mismatch is only reported unless Repin is set, in which case the
// existing checkout is fetched and switched to the new ref.
func (p *Provisioner) checkPin(ctx context.Context, spec DependencySpec, sourceDir string) error {
	if spec.Ref == "" {
		return nil
	}
	var pinned string
	if rec, err := loadRecord(p.recordPath()); err == nil {
		if e, ok := rec.get(spec.Name); ok {
			pinned = e.Ref
		}
	}

	if !p.cfg.Repin {
		if pinned != "" && spec.Ref != vcs.LatestRef && pinned != spec.Ref {
			log.Warnf("%s: source was cloned at %s, not %s; pass --repin to switch", spec.Name, pinned, spec.Ref)
		}
		return nil
	}

	ref, err := vcs.ResolveRef(ctx, p.vcs, spec.RepositoryURL, spec.Ref)
	if err != nil {
		return retrievalError(spec, spec.Ref, StepResolve, err)
	}
	if ref == pinned {
		return nil
	}
	log.Infof("%s: repinning %s to %s", spec.Name, sourceDir, ref)
	if err := p.vcs.Fetch(ctx, sourceDir, ref); err != nil {
		return retrievalError(spec, ref, StepFetch, err)
	}
	if err := p.vcs.Checkout(ctx, sourceDir, ref); err != nil {
		return retrievalError(spec, ref, StepCheckout, err)
	}
	p.updateRecord(spec.Name, func(e *recordEntry) {
		e.URL = spec.RepositoryURL
		e.Ref = ref
	})
	return nil
}

// requirements returns every dependency spec needs, direct ones first,
// followed by their own requirements breadth first. Requirements of a
// dependency not ensured by p are taken from the record.
func (p *Provisioner) requirements(spec DependencySpec) []string {
	var rec *record
	requiresOf := func(name string) []string {
		if reqs, ok := p.requires[name]; ok {
			return reqs
		}
		if rec == nil {
			var err error
			if rec, err = loadRecord(p.recordPath()); err != nil {
				rec = &record{}
			}
		}
		if e, ok := rec.get(name); ok {
			return e.Requires
		}
		return nil
	}

	var out []string
	seen := map[string]bool{spec.Name: true}
	queue := append([]string(nil), spec.Requires...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		queue = append(queue, requiresOf(name)...)
	}
	return out
}

func (p *Provisioner) recordPath() string {
	return filepath.Join(p.cfg.Layout.ExternDir(), cacheFile)
}

// updateRecord applies fn to name's record entry. The record is advisory:
// failing to read or write it never fails provisioning.
func (p *Provisioner) updateRecord(name string, fn func(*recordEntry)) {
	path := p.recordPath()
	rec, err := loadRecord(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("ignoring unreadable %s: %v", path, err)
		}
		rec = &record{}
	}
	entry, ok := rec.get(name)
	if !ok {
		entry = &recordEntry{}
	}
	fn(entry)
	rec.set(name, entry)
	if err := saveRecord(path, rec); err != nil {
		log.Warnf("cannot write %s: %v", path, err)
	}
}

// verify checks that every pattern matches at least one file under dir.
func verify(dir string, patterns []string) error {
	fsys := os.DirFS(dir)
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no installed file matches %q", pattern)
		}
	}
	return nil
}
