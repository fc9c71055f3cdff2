package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/extern/internal/process"
)

// fakeRunner implements process.Runner for unit testing. It understands
// just enough git and cmake to leave the same traces on disk as the real
// tools and records which steps ran.
type fakeRunner struct {
	steps []string
	cmds  []process.Cmd

	badRemotes map[string]bool // clone fails
	badRefs    map[string]bool // checkout fails
	failStep   string          // "configure", "build" or "install" exits 1
	tags       []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{badRemotes: map[string]bool{}, badRefs: map[string]bool{}}
}

func (f *fakeRunner) Run(ctx context.Context, cmd process.Cmd) (process.Result, error) {
	f.cmds = append(f.cmds, cmd)
	step := f.step(cmd)
	f.steps = append(f.steps, step)

	fail := func(status int, output string) (process.Result, error) {
		return process.Result{Output: output, ExitStatus: status},
			&process.ExitError{Cmd: cmd, ExitStatus: status, Output: output}
	}

	args := cmd.Args
	switch step {
	case "clone":
		remote, dir := args[1], args[2]
		if f.badRemotes[remote] {
			os.MkdirAll(dir, 0o755) // git may leave a partial dir behind
			return fail(128, "fatal: repository '"+remote+"' not found\n")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return process.Result{}, err
		}
		os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(fake)\n"), 0o644)
	case "checkout":
		if f.badRefs[args[1]] {
			return fail(1, "error: pathspec '"+args[1]+"' did not match\n")
		}
	case "ls-remote":
		var lines []string
		for _, tag := range f.tags {
			lines = append(lines, "0123abcd\trefs/tags/"+tag)
		}
		return process.Result{Output: strings.Join(lines, "\n")}, nil
	case "configure":
		if f.failStep == step {
			return fail(1, "CMake Error: configure failed\n")
		}
		build := argAfter(args, "-B")
		os.MkdirAll(build, 0o755)
		os.WriteFile(filepath.Join(build, "CMakeCache.txt"), []byte(strings.Join(args, "\n")), 0o644)
	case "build":
		if f.failStep == step {
			return fail(1, "make: *** [all] Error 1\n")
		}
		os.WriteFile(filepath.Join(args[1], "libfake.a"), []byte("lib"), 0o644)
	case "install":
		if f.failStep == step {
			return fail(1, "CMake Error: install failed\n")
		}
		prefix := argAfter(args, "--prefix")
		os.MkdirAll(filepath.Join(prefix, "include", "fake"), 0o755)
		os.WriteFile(filepath.Join(prefix, "include", "fake", "fake.h"), []byte("#pragma once\n"), 0o644)
		if lib := filepath.Join(args[1], "libfake.a"); fileExists(lib) {
			os.MkdirAll(filepath.Join(prefix, "lib"), 0o755)
			os.WriteFile(filepath.Join(prefix, "lib", "libfake.a"), []byte("lib"), 0o644)
		}
	}
	return process.Result{}, nil
}

func (f *fakeRunner) step(cmd process.Cmd) string {
	if len(cmd.Args) == 0 {
		return ""
	}
	if strings.HasSuffix(cmd.Path, "git") {
		return cmd.Args[0]
	}
	switch cmd.Args[0] {
	case "--build":
		return "build"
	case "--install":
		return "install"
	case "-S":
		return "configure"
	}
	return cmd.Args[0]
}

func (f *fakeRunner) count(step string) int {
	n := 0
	for _, s := range f.steps {
		if s == step {
			n++
		}
	}
	return n
}

func (f *fakeRunner) reset() {
	f.steps = nil
	f.cmds = nil
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
