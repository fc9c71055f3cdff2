package internal

import (
	"fmt"
	"os"

	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/goplus/extern/internal/config"
	"github.com/goplus/extern/internal/env"
	"github.com/goplus/extern/internal/provision"
)

var cleanAll bool

var cleanCmd = &cobra.Command{
	Use:   "clean name...",
	Short: "Remove build trees of dependencies",
	Long: `Clean removes the build directory of each named dependency so the next run
configures from scratch. With --all the source checkout and install
directory are removed too, and the next run clones again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return clean(cfg, args, cleanAll)
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Also remove the source checkout and install directory")
	rootCmd.AddCommand(cleanCmd)
}

func clean(c *config.Config, names []string, all bool) error {
	proj, err := openProject(c)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := env.CheckName(name); err != nil {
			return fmt.Errorf("%q: %w", name, err)
		}
	}
	// only names the manifest knows are touched
	specs, err := proj.manifest.Specs(names...)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	for _, spec := range specs {
		if !wanted[spec.Name] {
			continue
		}
		dirs := provision.DirsOf(proj.layout, spec)
		remove := []string{dirs.Build}
		if all {
			remove = []string{dirs.Source, dirs.Install}
		}
		for _, dir := range remove {
			if !env.Exists(dir) {
				continue
			}
			log.Infof("%s: removing %s", spec.Name, dir)
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
		}
	}
	return nil
}
