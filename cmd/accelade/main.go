// Command accelade hydrates component pages offline and runs the reference
// sync backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/accelade/lib/logging"
)

const version = "0.1.0"

type rootOptions struct {
	verbose bool
	config  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "accelade",
		Short:         "Reactive server-rendered components",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.verbose {
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logging.SetLogger(l)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	cmd.PersistentFlags().StringVar(&opts.config, "config", "", "YAML runtime config")

	cmd.AddCommand(newHydrateCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "accelade version %s\n", version)
		},
	})

	return cmd
}
