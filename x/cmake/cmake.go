// Package cmake wraps the cmake configure/build/install workflow.
package cmake

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/goplus/extern/internal/process"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake drives CMake-based builds.
type CMake struct {
	cmake      string
	runner     process.Runner
	environ    []string
	env        map[string]string
	sourceDir  string
	buildDir   string
	installDir string
	generator  string
	buildType  string
	toolchain  string
	defines    map[string]defineValue
}

// Option configures CMake.
type Option func(*CMake)

// WithPath sets a custom cmake executable path.
func WithPath(path string) Option {
	return func(c *CMake) { c.cmake = path }
}

// WithRunner sets the runner cmake commands go through.
func WithRunner(r process.Runner) Option {
	return func(c *CMake) { c.runner = r }
}

// WithEnviron sets the base environment cmake runs with. Variables set by
// Env and Use are layered on top of it.
func WithEnviron(environ []string) Option {
	return func(c *CMake) { c.environ = environ }
}

// New returns a ready-to-use CMake.
func New(sourceDir, buildDir, installDir string, opts ...Option) *CMake {
	c := &CMake{
		cmake:      "cmake",
		sourceDir:  sourceDir,
		buildDir:   buildDir,
		installDir: installDir,
		env:        make(map[string]string),
		defines:    make(map[string]defineValue),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runner == nil {
		c.runner = process.New()
	}
	return c
}

// Source overrides the source directory.
func (c *CMake) Source(dir string) { c.sourceDir = dir }

// Generator sets the CMake generator (e.g. "Ninja", "Unix Makefiles").
func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

// BuildType sets CMAKE_BUILD_TYPE (e.g. "Release", "Debug").
func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

// Toolchain sets CMAKE_TOOLCHAIN_FILE.
func (c *CMake) Toolchain(path string) *CMake {
	c.toolchain = path
	return c
}

// Define adds a -D<key>:STRING=<value> definition.
func (c *CMake) Define(key, value string) *CMake {
	c.defines[key] = defineValue{value: value, typeName: "STRING"}
	return c
}

// DefineBool adds a -D<key>:BOOL=ON/OFF definition.
func (c *CMake) DefineBool(key string, value bool) *CMake {
	v := "OFF"
	if value {
		v = "ON"
	}
	c.defines[key] = defineValue{value: v, typeName: "BOOL"}
	return c
}

// Env sets key=value for every command spawned later.
func (c *CMake) Env(key, value string) {
	c.env[key] = value
}

// Use points later commands at headers, libraries and pkg-config files of
// a dependency installed at root. Repeated calls accumulate; the prefix
// used last is searched first.
func (c *CMake) Use(root string) {
	for k, v := range UseEnv(process.MergeEnv(c.baseEnviron(), c.env), root) {
		c.env[k] = v
	}
}

// Configure runs "cmake -S <source> -B <build>" with all configured options.
// Extra args are appended at the end.
func (c *CMake) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(c.buildDir, 0o755); err != nil {
		return err
	}
	cmakeArgs := []string{"-S", c.sourceDir, "-B", c.buildDir}
	if c.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", c.generator)
	}
	if c.installDir != "" {
		c.Define("CMAKE_INSTALL_PREFIX", c.installDir)
	}
	if c.toolchain != "" {
		c.Define("CMAKE_TOOLCHAIN_FILE", c.toolchain)
	}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	cmakeArgs = append(cmakeArgs, c.definesArgs()...)
	cmakeArgs = append(cmakeArgs, args...)
	return c.run(ctx, cmakeArgs)
}

// Build runs "cmake --build <build>" with optional extra arguments.
func (c *CMake) Build(ctx context.Context, args ...string) error {
	cmakeArgs := []string{"--build", c.buildDir}
	if c.buildType != "" {
		cmakeArgs = append(cmakeArgs, "--config", c.buildType)
	}
	cmakeArgs = append(cmakeArgs, args...)
	return c.run(ctx, cmakeArgs)
}

// Install runs "cmake --install <build>" with optional extra arguments.
func (c *CMake) Install(ctx context.Context, args ...string) error {
	cmakeArgs := []string{"--install", c.buildDir}
	if c.installDir != "" {
		cmakeArgs = append(cmakeArgs, "--prefix", c.installDir)
	}
	cmakeArgs = append(cmakeArgs, args...)
	return c.run(ctx, cmakeArgs)
}

func (c *CMake) run(ctx context.Context, args []string) error {
	var env []string
	if c.environ != nil || len(c.env) > 0 {
		env = process.MergeEnv(c.baseEnviron(), c.env)
	}
	_, err := c.runner.Run(ctx, process.Cmd{Path: c.cmake, Args: args, Env: env})
	return err
}

func (c *CMake) baseEnviron() []string {
	if c.environ != nil {
		return c.environ
	}
	return os.Environ()
}

func (c *CMake) definesArgs() []string {
	if len(c.defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.defines))
	for k := range c.defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		d := c.defines[k]
		args = append(args, "-D"+k+":"+d.typeName+"="+d.value)
	}
	return args
}

// UseEnv returns the variables that make CMake and compilers find headers,
// libraries and pkg-config files from a non-system dependency installed at
// root. Values already present in environ are kept after the new entries.
func UseEnv(environ []string, root string) map[string]string {
	current := make(map[string]string)
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			current[k] = v
		}
	}
	out := make(map[string]string)
	prependPath := func(key, value string) {
		if cur := current[key]; cur != "" {
			value += string(os.PathListSeparator) + cur
		}
		out[key] = value
	}
	appendFlag := func(key, flag string) {
		if cur := current[key]; cur != "" {
			flag = cur + " " + flag
		}
		out[key] = flag
	}

	includeDir := filepath.Join(root, "include")
	libDir := filepath.Join(root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")

	if _, err := os.Stat(pkgconfigDir); err == nil {
		prependPath("PKG_CONFIG_PATH", pkgconfigDir)
	}
	prependPath("CMAKE_PREFIX_PATH", root)
	if _, err := os.Stat(includeDir); err == nil {
		prependPath("CMAKE_INCLUDE_PATH", includeDir)
	}
	if _, err := os.Stat(libDir); err == nil {
		prependPath("CMAKE_LIBRARY_PATH", libDir)
	}

	if runtime.GOOS == "windows" {
		if _, err := os.Stat(includeDir); err == nil {
			prependPath("INCLUDE", includeDir)
		}
		if _, err := os.Stat(libDir); err == nil {
			prependPath("LIB", libDir)
		}
	} else {
		if _, err := os.Stat(includeDir); err == nil {
			appendFlag("CPPFLAGS", "-I"+includeDir)
		}
		if _, err := os.Stat(libDir); err == nil {
			appendFlag("LDFLAGS", "-L"+libDir)
		}
	}
	return out
}
