// Command snackctl operates a calendarsnack deployment from a terminal.
//
// Usage:
//
//	snackctl stats                     Print statistics counters
//	snackctl queues                    Show queue depths
//	snackctl seed scenario.yaml        Load development data
//	snackctl templates get/put         Manage notifier templates
//	snackctl topology                  Render the pipeline graph
//	snackctl schema                    Print the metrics table schema
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "snackctl",
		Short: "Operate the calendarsnack backend",
		Long: `snackctl inspects and manages a calendarsnack deployment.

Commands read resource names the same way the workers do (THIRTYONE_TABLE,
TEMPLATE_BUCKET, ...). Pass --param-prefix to resolve missing names from
the SSM parameters the stack publishes, or override per command with
flags.`,
	}
	root.PersistentFlags().StringVar(&paramPrefix, "param-prefix", "",
		"SSM parameter path the stack publishes its resource names under")

	root.AddCommand(
		newSeedCmd(),
		newStatsCmd(),
		newQueuesCmd(),
		newTopologyCmd(),
		newTemplatesCmd(),
		newSchemaCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
