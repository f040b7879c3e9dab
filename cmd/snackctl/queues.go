package main

import (
	"fmt"
	"path"
	"sort"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
)

func newQueuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queues [queue-url...]",
		Short: "Show queue depths",
		Long: `Show the approximate message counts of the pipeline queues. Queue URLs
come from the arguments, or from the stack's SSM parameters under
<param-prefix>/queues/ when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return err
			}

			urls := map[string]string{}
			if len(args) > 0 {
				for _, u := range args {
					urls[path.Base(u)] = u
				}
			} else {
				urls, err = queueURLs(ctx, ssm.NewFromConfig(cfg))
				if err != nil {
					return err
				}
			}
			if len(urls) == 0 {
				return fmt.Errorf("no queues found")
			}

			names := make([]string, 0, len(urls))
			for name := range urls {
				names = append(names, name)
			}
			sort.Strings(names)

			client := sqs.NewFromConfig(cfg)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEUE\tVISIBLE\tIN FLIGHT")
			for _, name := range names {
				out, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
					QueueUrl: aws.String(urls[name]),
					AttributeNames: []sqstypes.QueueAttributeName{
						sqstypes.QueueAttributeNameApproximateNumberOfMessages,
						sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
					},
				})
				if err != nil {
					return fmt.Errorf("queue %s: %w", name, err)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name,
					out.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessages)],
					out.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible)])
			}
			return tw.Flush()
		},
	}
	return cmd
}
