package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/goplus/extern/internal/config"
	"github.com/goplus/extern/internal/env"
	"github.com/goplus/extern/internal/manifest"
)

var initFlags struct {
	defaults bool
	force    bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an extern.toml manifest",
	Long: `Init writes extern.toml in the project root. Dependencies are asked for
interactively unless --defaults is given, which writes the built-in list.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ask := askDependencies
		if initFlags.defaults {
			ask = func() ([]manifest.Dependency, error) {
				return manifest.Default().Dependencies, nil
			}
		}
		return initManifest(cmd.OutOrStdout(), cfg, ask, initFlags.force)
	},
}

func init() {
	flags := initCmd.Flags()
	flags.BoolVar(&initFlags.defaults, "defaults", false, "Write the default dependencies without prompting")
	flags.BoolVarP(&initFlags.force, "force", "f", false, "Overwrite an existing manifest")
	rootCmd.AddCommand(initCmd)
}

func initManifest(out io.Writer, c *config.Config, ask func() ([]manifest.Dependency, error), force bool) error {
	root, err := rootDir(c)
	if err != nil {
		return err
	}
	if !force {
		existing, err := manifest.Find(root)
		if err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", existing)
		}
		if !errors.Is(err, manifest.ErrNotFound) {
			return err
		}
	}

	deps, err := ask()
	if err != nil {
		return err
	}
	if len(deps) == 0 {
		return errors.New("no dependencies given")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	path := filepath.Join(root, manifest.FileNames[0])
	if err := manifest.Save(path, &manifest.Manifest{Dependencies: deps}); err != nil {
		return err
	}
	log.Debugf("wrote %d dependencies", len(deps))
	fmt.Fprintf(out, "Created %s\n", path)
	return nil
}

// askDependencies prompts for dependencies until the user declines to add
// another one.
func askDependencies() ([]manifest.Dependency, error) {
	var deps []manifest.Dependency
	seen := make(map[string]bool)
	for {
		var (
			d       manifest.Dependency
			options string
			more    bool
		)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Dependency name").
					Description("Directory name under extern/").
					Value(&d.Name).
					Validate(func(s string) error {
						if seen[s] {
							return fmt.Errorf("%s is already listed", s)
						}
						return env.CheckName(s)
					}),
				huh.NewInput().
					Title("Repository URL").
					Value(&d.URL).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return errors.New("a repository URL is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("Ref").
					Description("Tag, branch or commit; empty for the default branch, latest for the newest release tag").
					Value(&d.Ref),
				huh.NewInput().
					Title("CMake options").
					Description("Space separated, e.g. -DBUILD_TESTING=OFF").
					Value(&options),
				huh.NewConfirm().
					Title("Does it need to be compiled?").
					Description("Header-only libraries are installed without a build step").
					Value(&d.BuildsBinary),
			),
			huh.NewGroup(
				huh.NewConfirm().
					Title("Add another dependency?").
					Value(&more),
			),
		)
		if err := form.Run(); err != nil {
			return nil, err
		}
		d.URL = strings.TrimSpace(d.URL)
		d.Ref = strings.TrimSpace(d.Ref)
		d.Options = strings.Fields(options)
		seen[d.Name] = true
		deps = append(deps, d)
		if !more {
			return deps, nil
		}
	}
}
