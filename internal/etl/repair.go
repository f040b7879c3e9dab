package etl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

var _ AthenaAPI = (*athena.Client)(nil)

// RepairPartitions runs MSCK REPAIR TABLE and waits for it to finish so
// the export and the repair fail together or not at all. Returns the
// Athena query id.
func RepairPartitions(ctx context.Context, ath AthenaAPI, database, table, workgroup, output string) (string, error) {
	if database == "" || table == "" || output == "" {
		return "", fmt.Errorf("repair needs database, table and output location")
	}
	if !strings.HasPrefix(output, "s3://") {
		return "", fmt.Errorf("output location must start with s3://")
	}
	if workgroup == "" {
		workgroup = "primary"
	}

	startOut, err := ath.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(fmt.Sprintf("MSCK REPAIR TABLE %s;", table)),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(database),
		},
		WorkGroup: aws.String(workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(output),
		},
	})
	if err != nil {
		return "", fmt.Errorf("StartQueryExecution: %w", err)
	}
	qid := aws.ToString(startOut.QueryExecutionId)

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		st, err := ath.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return qid, fmt.Errorf("GetQueryExecution: %w", err)
		}
		state := string(st.QueryExecution.Status.State)
		switch state {
		case "SUCCEEDED":
			return qid, nil
		case "FAILED", "CANCELLED":
			reason := ""
			if st.QueryExecution.Status.StateChangeReason != nil {
				reason = *st.QueryExecution.Status.StateChangeReason
			}
			return qid, fmt.Errorf("repair %s: %s", state, reason)
		}
		time.Sleep(2 * time.Second)
	}
	return qid, fmt.Errorf("repair timed out waiting for qid=%s", qid)
}
