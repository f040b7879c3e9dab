// Package etl snapshots the statistics rows into the analytics lake.
// One nightly run flattens every statistics item into a Parquet file
// under a dt= partition, then repairs the Athena table so the new
// partition is queryable.
package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// StatisticsRow matches the Glue table columns.
type StatisticsRow struct {
	Scope        string `parquet:"name=scope, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	UID          string `parquet:"name=uid, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Organizer    string `parquet:"name=organizer, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Tenant       string `parquet:"name=tenant, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SnapshotDate string `parquet:"name=snapshot_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"` // YYYY-MM-DD
	Attendees    int64  `parquet:"name=attendees, type=INT64"`
	Events       int64  `parquet:"name=events, type=INT64"`
	Accepted     int64  `parquet:"name=accepted, type=INT64"`
	Declined     int64  `parquet:"name=declined, type=INT64"`
	Tentative    int64  `parquet:"name=tentative, type=INT64"`
	NoAction     int64  `parquet:"name=noaction, type=INT64"`
}

type DynamoAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	_ DynamoAPI = (*dynamodb.Client)(nil)
	_ S3API     = (*s3.Client)(nil)
)

type Exporter struct {
	ddb    DynamoAPI
	s3     S3API
	table  string
	bucket string
	prefix string
}

// Summary reports what one export run produced.
type Summary struct {
	Rows int
	Key  string
}

func NewExporter(ddb DynamoAPI, s3c S3API, table, bucket, prefix string) *Exporter {
	if prefix == "" {
		prefix = "stats/"
	}
	return &Exporter{
		ddb:    ddb,
		s3:     s3c,
		table:  table,
		bucket: bucket,
		prefix: ensureTrailingSlash(prefix),
	}
}

// Export scans every statistics item and writes one Parquet snapshot
// under <prefix>dt=YYYY-MM-DD/. A run with nothing to export writes no
// object.
func (e *Exporter) Export(ctx context.Context, now time.Time) (*Summary, error) {
	rows, err := e.collect(ctx, now.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Summary{}, nil
	}

	key := fmt.Sprintf("%sdt=%s/part-%s.parquet",
		e.prefix,
		rows[0].SnapshotDate,
		randHex(8),
	)
	if err := e.writeParquet(ctx, key, rows); err != nil {
		return nil, err
	}
	return &Summary{Rows: len(rows), Key: key}, nil
}

type statsItem struct {
	PK        string           `dynamodbav:"pk"`
	SK        string           `dynamodbav:"sk"`
	Tenant    string           `dynamodbav:"tenant"`
	Mailto    string           `dynamodbav:"mailto"`
	Attendees int64            `dynamodbav:"attendees"`
	Events    int64            `dynamodbav:"events"`
	RSVP      map[string]int64 `dynamodbav:"rsvp"`
}

func (e *Exporter) collect(ctx context.Context, dt string) ([]StatisticsRow, error) {
	rows := make([]StatisticsRow, 0, 64)

	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := e.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(e.table),
			ExclusiveStartKey: startKey,
			FilterExpression:  aws.String("begins_with(#sk, :event) OR begins_with(#sk, :organizer) OR #sk = :system"),
			ExpressionAttributeNames: map[string]string{
				"#sk": "sk",
			},
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":event":     &ddbtypes.AttributeValueMemberS{Value: "event_statistics#"},
				":organizer": &ddbtypes.AttributeValueMemberS{Value: "organizer_statistics#"},
				":system":    &ddbtypes.AttributeValueMemberS{Value: "system_statistics#"},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan %s: %w", e.table, err)
		}

		for _, raw := range out.Items {
			var item statsItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal statistics item: %w", err)
			}
			if row, ok := rowFor(item, dt); ok {
				rows = append(rows, row)
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return rows, nil
}

// rowFor flattens one statistics item. The sort key tells the row's
// scope apart; anything else the filter let through is dropped.
func rowFor(item statsItem, dt string) (StatisticsRow, bool) {
	row := StatisticsRow{
		Tenant:       item.Tenant,
		SnapshotDate: dt,
		Attendees:    item.Attendees,
		Events:       item.Events,
		Accepted:     item.RSVP["accepted"],
		Declined:     item.RSVP["declined"],
		Tentative:    item.RSVP["tentative"],
		NoAction:     item.RSVP["noaction"],
	}

	switch {
	case strings.HasPrefix(item.SK, "event_statistics#"):
		row.Scope = "event"
		row.UID = strings.TrimPrefix(item.SK, "event_statistics#")
		row.Organizer = item.Mailto
	case strings.HasPrefix(item.SK, "organizer_statistics#"):
		row.Scope = "organizer"
		row.Organizer = strings.TrimPrefix(item.PK, "organizer#")
	case item.SK == "system_statistics#":
		row.Scope = "system"
	default:
		return StatisticsRow{}, false
	}
	return row, true
}

func (e *Exporter) writeParquet(ctx context.Context, key string, rows []StatisticsRow) error {
	localPath := filepath.Join(os.TempDir(), "statistics_"+randHex(8)+".parquet")

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(StatisticsRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0 // no snappy

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read parquet tmp: %w", err)
	}
	defer func() { _ = os.Remove(localPath) }()

	_, err = e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

func ensureTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
