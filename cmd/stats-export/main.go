// Command stats-export snapshots the statistics rows into the metrics
// lake every night: scan, flatten, one Parquet object per run, then an
// Athena partition repair so the new date shows up in queries.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/etl"
	"github.com/thirtyone/event-management/internal/observability"
)

func handler(ctx context.Context, _ events.CloudWatchEvent) (map[string]any, error) {
	log := observability.Logger()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	exporter := etl.NewExporter(
		dynamodb.NewFromConfig(cfg),
		s3.NewFromConfig(cfg),
		config.TableName(),
		config.MetricsBucket(),
		"stats/",
	)
	summary, err := exporter.Export(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	if summary.Rows == 0 {
		log.Info("no statistics to export")
		return map[string]any{"rows": 0}, nil
	}

	database := config.MetricsDatabase()
	table := config.MetricsTable()

	schema, err := etl.LoadTableSchema(ctx, glue.NewFromConfig(cfg), database, table)
	if err != nil {
		return nil, err
	}
	if err := etl.ValidateSchema(schema); err != nil {
		return nil, err
	}

	state, err := etl.RepairPartitions(ctx, athena.NewFromConfig(cfg),
		database, table, "", config.AthenaOutput())
	if err != nil {
		return nil, err
	}

	log.Info("statistics exported",
		zap.Int("rows", summary.Rows),
		zap.String("key", summary.Key),
		zap.String("repair", state))
	return map[string]any{
		"rows":   summary.Rows,
		"key":    summary.Key,
		"repair": state,
	}, nil
}

func main() { lambda.Start(handler) }
