package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/phil-mansfield/advect/lib"
	adverr "github.com/phil-mansfield/advect/lib/error"
)

// cmdArgs holds the config variables which can be set on the command line.
var cmdArgs = &lib.RawArgs{}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "advect",
		Short: "Trace particles through time-varying velocity fields",
		Long: `advect injects seed particles into a sequence of velocity field
snapshots and integrates their paths, writing the particles at each step.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.IntVar(&cmdArgs.Ranks, "ranks", 0, "number of ranks the domain is split between")
	flags.IntVar(&cmdArgs.Threads, "threads", 0, "threads per rank (<= 0 uses every CPU)")
	flags.BoolVar(&cmdArgs.ForceSerial, "force-serial", false, "advance particles sequentially")
	flags.StringVar(&cmdArgs.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newCheckCmd(), newRunCmd(), newExampleConfigCmd(), newVersionCmd())
	return root
}

// loadArgs parses a config file, applies the command line, and processes
// the result. Errors here are the user's to fix.
func loadArgs(configFile string) (*lib.Args, *logrus.Logger) {
	rawArgs, err := lib.ParseConfigFile(configFile)
	if err != nil {
		adverr.External("%s", err.Error())
	}
	rawArgs.Overwrite(cmdArgs)

	log, err := lib.NewLogger(rawArgs.LogLevel, os.Stderr)
	if err != nil {
		adverr.External("%s", err.Error())
	}
	adverr.Logger = log

	args, err := rawArgs.Process(log)
	if err != nil {
		adverr.External("%s", err.Error())
	}
	return args, log
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check CONFIG",
		Short: "Check a config file and the files it points to",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, log := loadArgs(args[0])
			problems, err := lib.Check(a, log)
			if err != nil {
				adverr.External("%s", err.Error())
			}

			if len(problems) == 0 {
				fmt.Println(color.GreenString("No errors detected."))
				return
			}
			for _, p := range problems {
				if p.Fatal {
					fmt.Println(color.RedString("error:"), p.Err.Error())
				} else {
					fmt.Println(color.YellowString("warning:"), p.Err.Error())
				}
			}
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run CONFIG",
		Short: "Advect the seeds described by a config file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, log := loadArgs(args[0])
			problems, err := lib.Check(a, log)
			if err != nil {
				adverr.External("%s", err.Error())
			}
			for _, p := range problems {
				if p.Fatal {
					adverr.External("%s", p.Err.Error())
				}
			}
			a.Tracer.Threads = lib.SetThreads(a.Tracer.Threads, log)

			ctx, stop := signal.NotifyContext(
				context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sum, err := lib.Run(ctx, a, log)
			if err != nil {
				adverr.External("%s", err.Error())
			}
			fmt.Printf("%s run %s: %d steps, %d particles, %d terminated\n",
				color.GreenString("Finished"), sum.RunID, sum.Steps,
				sum.Particles, sum.Terminated)
		},
	}
}

func newExampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example_config",
		Short: "Print an example config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The config holds format verbs, so it must not pass through
			// a printf-style writer.
			_, err := io.WriteString(cmd.OutOrStdout(), lib.ExampleConfig)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of advect",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("advect %s\n", lib.Version)
		},
	}
}
