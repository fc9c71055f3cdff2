package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/extern/internal/env"
)

func wantManifest() *Manifest {
	return &Manifest{Dependencies: []Dependency{
		{
			Name:    "cnl",
			URL:     "https://github.com/johnmcfarlane/cnl.git",
			Ref:     "v1.1.7",
			Options: []string{"-DBUILD_TESTING=OFF", "-DCNL_INT128=ON"},
		},
		{
			Name:         "sdl",
			URL:          "https://github.com/libsdl-org/SDL.git",
			Options:      []string{"-DSDL_SHARED=OFF", "-DSDL_STATIC=ON"},
			BuildsBinary: true,
			Expect:       []string{"include/SDL3/*.h", "lib/**/*.a"},
		},
		{
			Name:         "sdl_net",
			URL:          "https://github.com/libsdl-org/SDL_net.git",
			BuildsBinary: true,
			Requires:     []string{"sdl"},
			Defines:      map[string]string{"CMAKE_C_STANDARD": "11"},
			Switches:     map[string]bool{"SDLNET_SAMPLES": false, "SDLNET_INSTALL": true},
			Env:          map[string]string{"PKG_CONFIG_ALLOW_SYSTEM_CFLAGS": "1"},
		},
	}}
}

func TestLoadFormats(t *testing.T) {
	for _, name := range []string{"extern.toml", "extern.yaml", "extern.hcl"} {
		t.Run(name, func(t *testing.T) {
			m, err := Load(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, wantManifest(), m)
		})
	}
}

func TestLoadUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extern.json")
	os.WriteFile(path, []byte("{}"), 0o644)
	if _, err := Load(path); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Load error = %v, want ErrUnknownFormat", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[[dependency]\n", "parse"},
		{"no url", "[[dependency]]\nname = \"cnl\"\n", "missing url"},
		{"bad name", "[[dependency]]\nname = \"../x\"\nurl = \"u\"\n", "invalid dependency name"},
		{"duplicate", "[[dependency]]\nname = \"a\"\nurl = \"u\"\n[[dependency]]\nname = \"a\"\nurl = \"u\"\n", "twice"},
		{"forward require", "[[dependency]]\nname = \"a\"\nurl = \"u\"\nrequires = [\"b\"]\n[[dependency]]\nname = \"b\"\nurl = \"u\"\n", "listed before"},
		{"bad glob", "[[dependency]]\nname = \"a\"\nurl = \"u\"\nexpect = [\"lib/[\"]\n", "invalid expect pattern"},
		{"escaping subdir", "[[dependency]]\nname = \"a\"\nurl = \"u\"\nsource_subdir = \"../b\"\n", "source_subdir"},
		{"bad define key", "[[dependency]]\nname = \"a\"\nurl = \"u\"\ndefines = { \"A=B\" = \"1\" }\n", "invalid defines key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "extern.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadYAMLUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extern.yml")
	os.WriteFile(path, []byte("dependencies:\n  - name: a\n    url: u\n    branch: main\n"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extern.toml")
	require.NoError(t, Save(path, wantManifest()))
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, wantManifest(), m)
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extern.toml")
	m := &Manifest{Dependencies: []Dependency{{Name: "a"}}}
	if err := Save(path, m); err == nil {
		t.Error("expected error")
	}
	if env.Exists(path) {
		t.Error("invalid manifest was written")
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	if _, err := Find(dir); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find on empty dir = %v, want ErrNotFound", err)
	}

	os.WriteFile(filepath.Join(dir, "extern.hcl"), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "extern.yaml"), nil, 0o644)
	got, err := Find(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "extern.yaml"); got != want {
		t.Errorf("Find = %q, want %q", got, want)
	}
}

func TestSpecs(t *testing.T) {
	m := wantManifest()

	all, err := m.Specs()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("Specs() returned %d specs, want 3", len(all))
	}
	if all[1].RepositoryURL != "https://github.com/libsdl-org/SDL.git" || !all[1].BuildsBinary {
		t.Errorf("sdl spec = %+v", all[1])
	}
	assert.Equal(t, map[string]bool{"SDLNET_SAMPLES": false, "SDLNET_INSTALL": true}, all[2].Switches)
	assert.Equal(t, "11", all[2].Defines["CMAKE_C_STANDARD"])
	assert.Equal(t, "1", all[2].Env["PKG_CONFIG_ALLOW_SYSTEM_CFLAGS"])

	sel, err := m.Specs("sdl_net")
	require.NoError(t, err)
	var names []string
	for _, s := range sel {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"sdl", "sdl_net"}, names)

	if _, err := m.Specs("nope"); err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if err := m.Validate(); err != nil {
		t.Fatalf("Default manifest invalid: %v", err)
	}
	specs, _ := m.Specs()
	if len(specs) != 2 {
		t.Fatalf("Default has %d dependencies, want 2", len(specs))
	}
	cnl, sdl := specs[0], specs[1]
	if cnl.Name != "cnl" || cnl.Ref != "v1.1.7" || cnl.BuildsBinary {
		t.Errorf("cnl = %+v, want header-only pinned to v1.1.7", cnl)
	}
	if sdl.Name != "sdl" || sdl.Ref != "" || !sdl.BuildsBinary {
		t.Errorf("sdl = %+v, want unpinned binary build", sdl)
	}
}
