package internal

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/goplus/extern/internal/config"
	"github.com/goplus/extern/internal/process"
	"github.com/goplus/extern/internal/provision"
)

var rootFlags struct {
	root      string
	manifest  string
	git       string
	cmake     string
	generator string
	toolchain string
	verbose   bool
}

// cfg is resolved by PersistentPreRunE before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "extern",
	Short: "extern provisions native dependencies",
	Long: `extern clones, configures, builds and installs the external CMake projects
a project depends on into its extern/ directory. Run without arguments it
provisions every dependency listed in the project manifest.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runEnsure,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.root, "root", "", "project root (default: current directory)")
	pf.StringVar(&rootFlags.manifest, "manifest", "", "manifest file (default: extern.{toml,yaml,yml,hcl} in the root)")
	pf.StringVar(&rootFlags.git, "git", "", "git executable (default: found on PATH)")
	pf.StringVar(&rootFlags.cmake, "cmake", "", "cmake executable (default: found on PATH)")
	pf.StringVar(&rootFlags.generator, "generator", "", "CMake generator passed to cmake -G")
	pf.StringVar(&rootFlags.toolchain, "toolchain", "", "CMake toolchain file used for every dependency")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable debug logging")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	overrides := make(map[string]any)
	for key, val := range map[string]any{
		"root":      rootFlags.root,
		"manifest":  rootFlags.manifest,
		"git":       rootFlags.git,
		"cmake":     rootFlags.cmake,
		"generator": rootFlags.generator,
		"toolchain": rootFlags.toolchain,
		"verbose":   rootFlags.verbose,
	} {
		if flags.Changed(key) {
			overrides[key] = val
		}
	}
	c, err := config.Load(overrides)
	if err != nil {
		return err
	}
	if c.Verbose {
		log.SetOutputLevel(log.Ldebug)
	}
	cfg = c
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error(err)
		os.Exit(ExitStatus(err))
	}
}

// ExitStatus maps err to the status extern exits with: a failed
// subprocess passes its own status through, anything else is 1.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	code := 1
	var (
		retErr  *provision.RetrievalError
		provErr *provision.ProvisioningError
		exitErr *process.ExitError
	)
	switch {
	case errors.As(err, &retErr):
		code = retErr.ExitStatus
	case errors.As(err, &provErr):
		code = provErr.ExitStatus
	case errors.As(err, &exitErr):
		code = exitErr.ExitStatus
	}
	if code <= 0 {
		return 1
	}
	return code
}
