package main

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/spf13/cobra"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/etl"
)

func newSchemaCmd() *cobra.Command {
	var database, table string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the metrics table schema",
		Long: `Print the Glue catalog schema of the metrics table and check it covers
the columns the nightly export writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := resolveName(ctx, database, "metrics-database")
			if err != nil {
				return err
			}
			tbl, err := resolveName(ctx, table, "metrics-table")
			if err != nil {
				return err
			}

			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return err
			}
			schema, err := etl.LoadTableSchema(ctx, glue.NewFromConfig(cfg), db, tbl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), etl.SchemaText(schema))
			if err := etl.ValidateSchema(schema); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema covers the export columns")
			return nil
		},
	}

	cmd.Flags().StringVar(&database, "database", config.MetricsDatabase(), "Glue database")
	cmd.Flags().StringVar(&table, "table", config.MetricsTable(), "Glue table")
	return cmd
}
