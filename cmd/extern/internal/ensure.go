package internal

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/goplus/extern/internal/config"
)

var ensureRepin bool

var ensureCmd = &cobra.Command{
	Use:   "ensure [name...]",
	Short: "Provision dependencies",
	Long: `Ensure clones, configures, builds and installs the named dependencies, or all
of them when no name is given. Dependencies already cloned are not fetched
again; configure and install always rerun.`,
	RunE: runEnsure,
}

func init() {
	ensureCmd.Flags().BoolVar(&ensureRepin, "repin", false, "Check out a changed ref in an existing source checkout")
	rootCmd.AddCommand(ensureCmd)
}

func runEnsure(cmd *cobra.Command, args []string) error {
	return ensure(cmd.Context(), cmd.OutOrStdout(), cfg, args, ensureRepin)
}

func ensure(ctx context.Context, out io.Writer, c *config.Config, names []string, repin bool) error {
	proj, err := openProject(c)
	if err != nil {
		return err
	}
	specs, err := proj.manifest.Specs(names...)
	if err != nil {
		return err
	}
	p, err := proj.provisioner(c, out, repin)
	if err != nil {
		return err
	}
	_, err = p.EnsureAll(ctx, specs)
	return err
}
