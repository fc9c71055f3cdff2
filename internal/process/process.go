// Package process runs external commands with their combined output
// streamed live and captured for the caller.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
)

// Cmd describes a single external command invocation.
type Cmd struct {
	Path string   // executable, resolved or looked up on PATH
	Args []string // arguments, without the executable
	Dir  string   // working directory; empty means the current one
	Env  []string // full environment; nil inherits os.Environ()
}

// String returns the command line as it is echoed before running.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Result is what a finished command left behind.
type Result struct {
	Output     string // stdout and stderr, merged in arrival order
	ExitStatus int
}

// Runner executes commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// ExitError is returned when a command ran but exited with a nonzero status.
type ExitError struct {
	Cmd        Cmd
	ExitStatus int
	Output     string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Cmd.Path, e.ExitStatus)
}

// ExecRunner is the Runner backed by os/exec.
type ExecRunner struct {
	out  io.Writer
	echo bool
}

// Option configures ExecRunner.
type Option func(*ExecRunner)

// WithOutput sets where command output is forwarded while it runs.
func WithOutput(w io.Writer) Option {
	return func(r *ExecRunner) {
		r.out = w
	}
}

// WithEcho controls whether the command line is printed before it runs.
func WithEcho(echo bool) Option {
	return func(r *ExecRunner) {
		r.echo = echo
	}
}

// New creates an ExecRunner forwarding to os.Stdout and echoing commands.
func New(opts ...Option) *ExecRunner {
	r := &ExecRunner{out: os.Stdout, echo: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts cmd and blocks until it exits. The returned Result always
// carries the captured output, including on failure.
func (r *ExecRunner) Run(ctx context.Context, cmd Cmd) (Result, error) {
	out := r.out
	if out == nil {
		out = io.Discard
	}
	if r.echo {
		fmt.Fprintln(out, cmd.String())
	}

	var buf bytes.Buffer
	// exec.Cmd copies stdout and stderr from separate goroutines when they
	// are not *os.File, so the shared writer must be serialized.
	w := &lockedWriter{w: io.MultiWriter(out, &buf)}

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdout = w
	c.Stderr = w

	err := c.Run()
	res := Result{Output: buf.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitCode()
		if res.ExitStatus < 0 {
			// killed by a signal or by ctx
			res.ExitStatus = 1
		}
		return res, &ExitError{Cmd: cmd, ExitStatus: res.ExitStatus, Output: res.Output}
	}
	return res, fmt.Errorf("run %s: %w", cmd.Path, err)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// MergeEnv overlays override onto base, later keys winning. The result is
// sorted by key so repeated runs see the same environment.
func MergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
