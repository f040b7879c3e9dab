package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thirtyone/event-management/internal/topology"
)

func newTopologyCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Render the pipeline graph",
		Long: `Render the mailbox, topic and worker wiring as Graphviz DOT or Mermaid.

    snackctl topology | dot -Tsvg -o pipeline.svg
    snackctl topology --format mermaid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch topology.Format(format) {
			case topology.FormatDOT, topology.FormatMermaid:
			default:
				return fmt.Errorf("unknown format %q (use dot or mermaid)", format)
			}

			r := &topology.Renderer{Format: topology.Format(format)}
			s, err := r.RenderString()
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), s)
				return nil
			}
			return os.WriteFile(output, []byte(s), 0o644)
		},
	}

	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot or mermaid")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
