package vcs

import (
	"context"
	"strings"

	"github.com/goplus/extern/internal/process"
)

// recordRunner implements process.Runner for unit testing.
type recordRunner struct {
	cmds   []process.Cmd
	output string
	err    error
}

func (r *recordRunner) Run(ctx context.Context, cmd process.Cmd) (process.Result, error) {
	r.cmds = append(r.cmds, cmd)
	return process.Result{Output: r.output}, r.err
}

func (r *recordRunner) lines() []string {
	var out []string
	for _, c := range r.cmds {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

// mockVCS implements VCS for ResolveRef tests.
type mockVCS struct {
	tags []string
	err  error
}

func (m *mockVCS) Clone(ctx context.Context, remote, dir string) error { return nil }
func (m *mockVCS) Checkout(ctx context.Context, dir, ref string) error { return nil }
func (m *mockVCS) Fetch(ctx context.Context, dir, ref string) error { return nil }
func (m *mockVCS) Tags(ctx context.Context, remote string) ([]string, error) {
	return m.tags, m.err
}
