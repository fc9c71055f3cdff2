package internal

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goplus/extern/internal/config"
	"github.com/goplus/extern/internal/provision"
)

var statusCmd = &cobra.Command{
	Use:   "status [name...]",
	Short: "Show how far each dependency has been provisioned",
	RunE: func(cmd *cobra.Command, args []string) error {
		return status(cmd.OutOrStdout(), cfg, args)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func status(out io.Writer, c *config.Config, names []string) error {
	proj, err := openProject(c)
	if err != nil {
		return err
	}
	specs, err := proj.manifest.Specs(names...)
	if err != nil {
		return err
	}
	// status only reads the disk, so no tools are resolved
	p := provision.New(provision.Config{Layout: proj.layout})

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tREF\tPROVISIONED")
	for _, spec := range specs {
		st := p.Status(spec)
		ref := st.Ref
		if ref == "" {
			ref = "-"
		}
		at := "-"
		if !st.ProvisionedAt.IsZero() {
			at = st.ProvisionedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Name, st.State, ref, at)
	}
	return w.Flush()
}
