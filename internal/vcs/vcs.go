package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/goplus/extern/internal/process"
)

// LatestRef asks ResolveRef for the highest released semver tag.
const LatestRef = "latest"

// VCS defines the interface for version control operations.
type VCS interface {
	// Clone copies the remote repository into dir, which must not exist.
	Clone(ctx context.Context, remote, dir string) error

	// Checkout switches the working tree in dir to ref.
	// ref can be branch, tag, or commit hash.
	Checkout(ctx context.Context, dir, ref string) error

	// Fetch updates refs of an existing clone in dir from its origin,
	// including tags, so that a later Checkout of ref can succeed.
	Fetch(ctx context.Context, dir, ref string) error

	// Tags returns all tags from the remote repository.
	Tags(ctx context.Context, remote string) ([]string, error)
}

// gitVCS implements VCS using git.
type gitVCS struct {
	git    string
	runner process.Runner
	env    []string
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// WithRunner sets the runner git commands go through.
func WithRunner(r process.Runner) GitOption {
	return func(g *gitVCS) {
		g.runner = r
	}
}

// WithEnv sets the environment git runs with.
func WithEnv(env []string) GitOption {
	return func(g *gitVCS) {
		g.env = env
	}
}

// NewGitVCS creates a new git VCS instance.
func NewGitVCS(opts ...GitOption) VCS {
	g := &gitVCS{git: "git"}
	for _, opt := range opts {
		opt(g)
	}
	if g.runner == nil {
		g.runner = process.New()
	}
	return g
}

func (g *gitVCS) Clone(ctx context.Context, remote, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return err
	}
	if err := g.run(ctx, "", "clone", remote, dir); err != nil {
		return fmt.Errorf("clone %s: %w", remote, err)
	}
	return nil
}

func (g *gitVCS) Checkout(ctx context.Context, dir, ref string) error {
	if err := g.run(ctx, dir, "checkout", ref); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

func (g *gitVCS) Fetch(ctx context.Context, dir, ref string) error {
	if err := g.run(ctx, dir, "fetch", "--tags", "origin", ref); err != nil {
		return fmt.Errorf("fetch %s: %w", ref, err)
	}
	return nil
}

func (g *gitVCS) Tags(ctx context.Context, remote string) ([]string, error) {
	output, err := g.output(ctx, "", "ls-remote", "--tags", "--refs", remote)
	if err != nil {
		return nil, fmt.Errorf("list remote tags: %w", err)
	}

	var tags []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		// format: <hash>\trefs/tags/<tag>
		parts := strings.Split(line, "\t")
		if len(parts) == 2 && strings.HasPrefix(parts[1], "refs/tags/") {
			tags = append(tags, strings.TrimPrefix(parts[1], "refs/tags/"))
		}
	}
	return tags, nil
}

func (g *gitVCS) run(ctx context.Context, dir string, args ...string) error {
	_, err := g.output(ctx, dir, args...)
	return err
}

func (g *gitVCS) output(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, process.Cmd{
		Path: g.git,
		Args: args,
		Dir:  dir,
		Env:  g.env,
	})
	return res.Output, err
}

// ResolveRef maps ref to something Checkout accepts. LatestRef becomes the
// highest non-prerelease semver tag of remote; any other ref is returned
// unchanged. Tags without a leading "v" are compared as if they had one.
func ResolveRef(ctx context.Context, v VCS, remote, ref string) (string, error) {
	if ref != LatestRef {
		return ref, nil
	}
	tags, err := v.Tags(ctx, remote)
	if err != nil {
		return "", err
	}
	var best, bestSemver string
	for _, tag := range tags {
		sv := tag
		if !strings.HasPrefix(sv, "v") {
			sv = "v" + sv
		}
		if !semver.IsValid(sv) || semver.Prerelease(sv) != "" || semver.Build(sv) != "" {
			continue
		}
		if best == "" || semver.Compare(sv, bestSemver) > 0 {
			best, bestSemver = tag, sv
		}
	}
	if best == "" {
		return "", fmt.Errorf("no release tags found in %s", remote)
	}
	return best, nil
}
