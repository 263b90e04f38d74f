// Package cmds implements the kmon command line interface.
package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-kmon/kmon/pkg/config"
	"github.com/go-kmon/kmon/pkg/logflags"
	"github.com/go-kmon/kmon/pkg/proc"
	"github.com/go-kmon/kmon/pkg/proc/sim"
	"github.com/go-kmon/kmon/pkg/terminal"
)

const version = "1.0.0"

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce
	// debug output.
	logOutput string
	// initFile is the path to an init file executed before the first prompt.
	initFile string

	conf *config.Config
)

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand := &cobra.Command{
		Use:   "kmon",
		Short: "kmon is an interactive monitor for a paged 32-bit machine.",
		Long: `kmon boots a simulated machine and drops into its kernel monitor: an
interactive console for inspecting and altering the machine's live
address-translation structures, unwinding the call stack of the suspended
domain, dumping raw memory and single-stepping execution.`,
		Run: rootCmd,
	}
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (monitor, mmu, sim).")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the monitor before the first prompt.")

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kmon version: %s\n", version)
		},
	}
	hideInheritedFlags(versionCommand)
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

// hideInheritedFlags hides the root command's persistent flags from a
// subcommand's usage output; they are parsed but not meaningful there.
func hideInheritedFlags(cmd *cobra.Command) {
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		c.InheritedFlags().VisitAll(func(f *pflag.Flag) {
			f.Hidden = true
		})
		c.Root().HelpFunc()(c, args)
	})
}

func rootCmd(cmd *cobra.Command, args []string) {
	if err := logflags.Setup(log, logOutput); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	machine := sim.NewDemo(conf.SimMemorySize())
	term := terminal.New(machine.Target(), conf)
	term.InitFile = initFile

	// Each trap re-enters the monitor with the fresh suspended context.
	// Leaving the monitor ends the session: resumption never returns here.
	machine.OnTrap = func(tf *proc.TrapFrame) {
		status, err := term.Run(tf)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(status)
	}

	// Run the machine to its first trap. If it halts without trapping the
	// monitor is still entered, at boot, without a suspended context.
	if err := machine.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "machine stopped before trapping: %v\n", err)
	}
	status, err := term.Run(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(status)
}
