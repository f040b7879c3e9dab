package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/templates"
)

func newTemplatesCmd() *cobra.Command {
	var bucket, key string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage notifier templates",
	}
	cmd.PersistentFlags().StringVar(&bucket, "bucket", config.TemplateBucket(), "template bucket")
	cmd.PersistentFlags().StringVar(&key, "key", config.TemplateKey(), "template object key")

	get := &cobra.Command{
		Use:   "get",
		Short: "Print a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := resolveName(ctx, bucket, "template-bucket")
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("template key not set")
			}
			ts, err := templates.NewStoreClient(ctx)
			if err != nil {
				return err
			}
			body, err := ts.Get(ctx, b, key)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), body)
			return nil
		},
	}

	put := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := resolveName(ctx, bucket, "template-bucket")
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("template key not set")
			}
			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ts, err := templates.NewStoreClient(ctx)
			if err != nil {
				return err
			}
			if err := ts.Put(ctx, b, key, body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s to s3://%s/%s\n", args[0], b, key)
			return nil
		},
	}

	cmd.AddCommand(get, put)
	return cmd
}
