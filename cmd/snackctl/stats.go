package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/store"
)

func newStatsCmd() *cobra.Command {
	var table, event, organizer string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics counters",
		Long: `Print the system statistics row, or a single event's or organizer's
counters with --event / --organizer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, err := resolveName(ctx, table, "table")
			if err != nil {
				return err
			}
			db, err := store.NewClient(ctx)
			if err != nil {
				return err
			}
			st := store.New(db, name)

			switch {
			case event != "":
				s, err := st.EventStatistics(ctx, event)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			case organizer != "":
				s, err := st.OrganizerStatistics(ctx, organizer)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			default:
				s, err := st.SystemStatistics(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			}
		},
	}

	cmd.Flags().StringVar(&table, "table", config.TableName(), "DynamoDB table name")
	cmd.Flags().StringVar(&event, "event", "", "event uid")
	cmd.Flags().StringVar(&organizer, "organizer", "", "organizer address")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
