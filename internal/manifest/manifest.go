// Package manifest reads and writes the list of external dependencies a
// project provisions.
package manifest

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/pelletier/go-toml/v2"
	"sigs.k8s.io/yaml"

	"github.com/goplus/extern/internal/env"
	"github.com/goplus/extern/internal/provision"
)

// FileNames are the manifest names Find looks for, in order.
var FileNames = []string{"extern.toml", "extern.yaml", "extern.yml", "extern.hcl"}

var (
	// ErrNotFound is returned by Find when no manifest exists.
	ErrNotFound = errors.New("manifest not found")
	// ErrUnknownFormat is returned for manifest files with an unsupported
	// extension.
	ErrUnknownFormat = errors.New("unknown manifest format")
)

// Manifest lists dependencies in provisioning order.
type Manifest struct {
	Dependencies []Dependency `toml:"dependency" json:"dependencies"`
}

// Dependency is one manifest entry.
type Dependency struct {
	Name         string   `toml:"name" json:"name" hcl:"name,label"`
	URL          string   `toml:"url" json:"url" hcl:"url"`
	Ref          string   `toml:"ref,omitempty" json:"ref,omitempty" hcl:"ref,optional"`
	Options      []string `toml:"options,omitempty" json:"options,omitempty" hcl:"options,optional"`
	BuildsBinary bool     `toml:"builds_binary" json:"builds_binary" hcl:"builds_binary,optional"`
	Requires     []string `toml:"requires,omitempty" json:"requires,omitempty" hcl:"requires,optional"`
	Expect       []string `toml:"expect,omitempty" json:"expect,omitempty" hcl:"expect,optional"`

	// Defines and Switches are typed cache entries, e.g.
	//
	//	switches = { SDL_STATIC = true }
	Defines      map[string]string `toml:"defines,omitempty" json:"defines,omitempty" hcl:"defines,optional"`
	Switches     map[string]bool   `toml:"switches,omitempty" json:"switches,omitempty" hcl:"switches,optional"`
	Env          map[string]string `toml:"env,omitempty" json:"env,omitempty" hcl:"env,optional"`
	SourceSubdir string            `toml:"source_subdir,omitempty" json:"source_subdir,omitempty" hcl:"source_subdir,optional"`
}

// hclManifest is the HCL shape: one labelled block per dependency.
//
//	dependency "cnl" {
//	  url = "https://github.com/johnmcfarlane/cnl.git"
//	}
type hclManifest struct {
	Dependencies []Dependency `hcl:"dependency,block"`
}

// Spec converts d into what the provisioner consumes.
func (d Dependency) Spec() provision.DependencySpec {
	return provision.DependencySpec{
		Name:          d.Name,
		RepositoryURL: d.URL,
		Ref:           d.Ref,
		BuildOptions:  d.Options,
		BuildsBinary:  d.BuildsBinary,
		Requires:      d.Requires,
		Expect:        d.Expect,
		Defines:       d.Defines,
		Switches:      d.Switches,
		Env:           d.Env,
		SourceSubdir:  d.SourceSubdir,
	}
}

// Find returns the first manifest from FileNames present in dir.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if env.Exists(p) {
			return p, nil
		}
	}
	return "", ErrNotFound
}

// Load reads and validates the manifest at path. The format follows the
// file extension: .toml, .yaml/.yml or .hcl.
func Load(path string) (*Manifest, error) {
	m := &Manifest{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(data, m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".hcl":
		var h hclManifest
		if err := hclsimple.DecodeFile(path, nil, &h); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		m.Dependencies = h.Dependencies
	default:
		return nil, fmt.Errorf("%s: %w %q", path, ErrUnknownFormat, ext)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path as TOML.
func Save(path string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that names are usable directory names and unique, every
// dependency has a URL, requirements refer to earlier entries, expect
// patterns are valid globs and source_subdir stays inside the checkout.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Dependencies))
	for i, d := range m.Dependencies {
		if err := env.CheckName(d.Name); err != nil {
			return fmt.Errorf("dependency #%d %q: %w", i+1, d.Name, err)
		}
		if seen[d.Name] {
			return fmt.Errorf("dependency %q listed twice", d.Name)
		}
		if d.URL == "" {
			return fmt.Errorf("dependency %q: missing url", d.Name)
		}
		for _, req := range d.Requires {
			if !seen[req] {
				return fmt.Errorf("dependency %q requires %q, which must be listed before it", d.Name, req)
			}
		}
		for _, pattern := range d.Expect {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("dependency %q: invalid expect pattern %q", d.Name, pattern)
			}
		}
		if d.SourceSubdir != "" && !filepath.IsLocal(d.SourceSubdir) {
			return fmt.Errorf("dependency %q: source_subdir %q must be a relative path inside the checkout", d.Name, d.SourceSubdir)
		}
		if err := checkKeys(d.Name, "defines", maps.Keys(d.Defines)); err != nil {
			return err
		}
		if err := checkKeys(d.Name, "switches", maps.Keys(d.Switches)); err != nil {
			return err
		}
		if err := checkKeys(d.Name, "env", maps.Keys(d.Env)); err != nil {
			return err
		}
		seen[d.Name] = true
	}
	return nil
}

func checkKeys(name, field string, keys iter.Seq[string]) error {
	for k := range keys {
		if k == "" || strings.ContainsAny(k, "=: \t") {
			return fmt.Errorf("dependency %q: invalid %s key %q", name, field, k)
		}
	}
	return nil
}

// Specs returns the provisioning specs for names, in manifest order, with
// everything they require included. No names selects every dependency.
func (m *Manifest) Specs(names ...string) ([]provision.DependencySpec, error) {
	byName := make(map[string]Dependency, len(m.Dependencies))
	for _, d := range m.Dependencies {
		byName[d.Name] = d
	}

	want := make(map[string]bool)
	var mark func(name string)
	mark = func(name string) {
		if want[name] {
			return
		}
		want[name] = true
		for _, req := range byName[name].Requires {
			mark(req)
		}
	}
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("unknown dependency %q", name)
		}
		mark(name)
	}

	specs := make([]provision.DependencySpec, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if len(names) == 0 || want[d.Name] {
			specs = append(specs, d.Spec())
		}
	}
	return specs, nil
}

// Default returns the dependencies provisioned when a project has no
// manifest: the CNL fixed-point library pinned to v1.1.7 (header only) and
// a static build of SDL.
func Default() *Manifest {
	return &Manifest{Dependencies: []Dependency{
		{
			Name: "cnl",
			URL:  "https://github.com/johnmcfarlane/cnl.git",
			Ref:  "v1.1.7",
			Options: []string{
				"-DBUILD_TESTING=OFF",
				"-DCNL_EXCEPTIONS=OFF",
				"-DCNL_SANITIZE=OFF",
				"-DCNL_INT128=ON",
			},
		},
		{
			Name: "sdl",
			URL:  "https://github.com/libsdl-org/SDL.git",
			Options: []string{
				"-DSDL_SHARED=OFF",
				"-DSDL_STATIC=ON",
				"-DSDL_TEST_LIBRARY=OFF",
				"-DSDL_TESTS=OFF",
				"-DSDL_EXAMPLES=OFF",
			},
			BuildsBinary: true,
		},
	}}
}
