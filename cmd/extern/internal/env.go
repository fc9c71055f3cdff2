package internal

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goplus/extern/internal/config"
	"github.com/goplus/extern/internal/env"
	"github.com/goplus/extern/internal/provision"
	"github.com/goplus/extern/x/cmake"
)

var envCmd = &cobra.Command{
	Use:   "env name",
	Short: "Print the environment for building against an installed dependency",
	Long: `Env prints KEY=VALUE lines that point compilers, pkg-config and CMake at the
install directory of the named dependency, e.g.

	eval "$(extern env sdl | sed 's/^/export /')"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printEnv(cmd.OutOrStdout(), cfg, args[0])
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}

func printEnv(out io.Writer, c *config.Config, name string) error {
	if err := env.CheckName(name); err != nil {
		return fmt.Errorf("%q: %w", name, err)
	}
	proj, err := openProject(c)
	if err != nil {
		return err
	}
	if _, err := proj.manifest.Specs(name); err != nil {
		return err
	}
	dir := proj.layout.InstallDir(name)
	if !env.Exists(dir) {
		return fmt.Errorf("%s: %w", name, provision.ErrNotProvisioned)
	}

	vars := cmake.UseEnv(os.Environ(), dir)
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s=%s\n", k, vars[k])
	}
	return nil
}
