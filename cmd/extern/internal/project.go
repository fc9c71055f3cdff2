package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/qiniu/x/log"

	"github.com/goplus/extern/internal/config"
	"github.com/goplus/extern/internal/env"
	"github.com/goplus/extern/internal/manifest"
	"github.com/goplus/extern/internal/process"
	"github.com/goplus/extern/internal/provision"
	"github.com/goplus/extern/internal/toolpath"
)

// newRunner creates the runner git and cmake go through.
var newRunner = func(out io.Writer) process.Runner {
	return process.New(process.WithOutput(out))
}

// project is what every command derives from the resolved config.
type project struct {
	layout       env.Layout
	manifest     *manifest.Manifest
	manifestPath string // empty when the built-in defaults are used
}

func rootDir(c *config.Config) (string, error) {
	root := c.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		root = wd
	}
	return filepath.Abs(root)
}

func openProject(c *config.Config) (*project, error) {
	root, err := rootDir(c)
	if err != nil {
		return nil, err
	}
	proj := &project{layout: env.Layout{Root: root}}

	path := c.Manifest
	if path == "" {
		path, err = manifest.Find(root)
		if errors.Is(err, manifest.ErrNotFound) {
			log.Debugf("no manifest in %s, using the default dependencies", root)
			proj.manifest = manifest.Default()
			return proj, nil
		}
		if err != nil {
			return nil, err
		}
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	proj.manifest = m
	proj.manifestPath = path
	return proj, nil
}

// provisioner resolves the tools, then prepares the isolated environment.
// Tool lookup comes first so a missing tool fails the run before anything
// is written under the project root.
func (p *project) provisioner(c *config.Config, out io.Writer, repin bool) (*provision.Provisioner, error) {
	tools, err := toolpath.Resolve(c.Git, c.CMake)
	if err != nil {
		return nil, err
	}
	log.Debugf("using git %s, cmake %s", tools.Git, tools.CMake)

	toolchain := c.Toolchain
	if toolchain != "" {
		// cmake resolves a relative toolchain file against the build dir
		if toolchain, err = filepath.Abs(toolchain); err != nil {
			return nil, err
		}
	}

	iso, err := env.Prepare(p.layout)
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", p.layout.EnvDir(), err)
	}
	return provision.New(provision.Config{
		Layout:    p.layout,
		Tools:     tools,
		Runner:    newRunner(out),
		Environ:   iso.Environ(os.Environ()),
		Generator: c.Generator,
		Toolchain: toolchain,
		Repin:     repin,
	}), nil
}
