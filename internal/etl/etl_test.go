package etl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	pages []*dynamodb.ScanOutput
	calls int
}

func (m *mockDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.calls >= len(m.pages) {
		return &dynamodb.ScanOutput{}, nil
	}
	out := m.pages[m.calls]
	m.calls++
	return out, nil
}

type mockS3 struct {
	bucket string
	key    string
	body   []byte
	err    error
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.bucket = aws.ToString(params.Bucket)
	m.key = aws.ToString(params.Key)
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.body = body
	return &s3.PutObjectOutput{}, nil
}

func statsAV(pk, sk, tenant, mailto string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"pk":        &ddbtypes.AttributeValueMemberS{Value: pk},
		"sk":        &ddbtypes.AttributeValueMemberS{Value: sk},
		"tenant":    &ddbtypes.AttributeValueMemberS{Value: tenant},
		"mailto":    &ddbtypes.AttributeValueMemberS{Value: mailto},
		"attendees": &ddbtypes.AttributeValueMemberN{Value: "7"},
		"events":    &ddbtypes.AttributeValueMemberN{Value: "2"},
		"rsvp": &ddbtypes.AttributeValueMemberM{Value: map[string]ddbtypes.AttributeValue{
			"accepted":  &ddbtypes.AttributeValueMemberN{Value: "4"},
			"declined":  &ddbtypes.AttributeValueMemberN{Value: "1"},
			"tentative": &ddbtypes.AttributeValueMemberN{Value: "0"},
			"noaction":  &ddbtypes.AttributeValueMemberN{Value: "2"},
		}},
	}
}

func TestExport(t *testing.T) {
	ddb := &mockDynamo{pages: []*dynamodb.ScanOutput{
		{
			Items: []map[string]ddbtypes.AttributeValue{
				statsAV("event#4e442a6c", "event_statistics#4e442a6c", "31events", "owner@example.org"),
			},
			LastEvaluatedKey: map[string]ddbtypes.AttributeValue{
				"pk": &ddbtypes.AttributeValueMemberS{Value: "event#4e442a6c"},
			},
		},
		{
			Items: []map[string]ddbtypes.AttributeValue{
				statsAV("organizer#owner@example.org", "organizer_statistics#owner@example.org", "31events", ""),
				statsAV("system#", "system_statistics#", "31events", ""),
			},
		},
	}}
	s3c := &mockS3{}

	exp := NewExporter(ddb, s3c, "thirtyone", "metrics-bucket", "")
	sum, err := exp.Export(context.Background(), time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Rows)
	assert.Equal(t, 2, ddb.calls)
	assert.Equal(t, "metrics-bucket", s3c.bucket)
	assert.Regexp(t, regexp.MustCompile(`^stats/dt=2026-03-14/part-[0-9a-f]{16}\.parquet$`), sum.Key)
	assert.Equal(t, sum.Key, s3c.key)

	// Parquet files open and close with the PAR1 magic.
	require.Greater(t, len(s3c.body), 8)
	assert.True(t, bytes.HasPrefix(s3c.body, []byte("PAR1")))
	assert.True(t, bytes.HasSuffix(s3c.body, []byte("PAR1")))
}

func TestExportNothingToDo(t *testing.T) {
	ddb := &mockDynamo{pages: []*dynamodb.ScanOutput{{}}}
	s3c := &mockS3{}

	sum, err := NewExporter(ddb, s3c, "thirtyone", "metrics-bucket", "").
		Export(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, sum.Rows)
	assert.Empty(t, s3c.key)
}

func TestRowFor(t *testing.T) {
	event := statsItem{PK: "event#abc", SK: "event_statistics#abc", Tenant: "31events",
		Mailto: "owner@example.org", Attendees: 3, RSVP: map[string]int64{"accepted": 2}}
	row, ok := rowFor(event, "2026-03-14")
	require.True(t, ok)
	assert.Equal(t, "event", row.Scope)
	assert.Equal(t, "abc", row.UID)
	assert.Equal(t, "owner@example.org", row.Organizer)
	assert.Equal(t, int64(2), row.Accepted)
	assert.Equal(t, "2026-03-14", row.SnapshotDate)

	organizer := statsItem{PK: "organizer#owner@example.org", SK: "organizer_statistics#owner@example.org", Events: 4}
	row, ok = rowFor(organizer, "2026-03-14")
	require.True(t, ok)
	assert.Equal(t, "organizer", row.Scope)
	assert.Equal(t, "owner@example.org", row.Organizer)
	assert.Equal(t, int64(4), row.Events)

	system := statsItem{PK: "system#", SK: "system_statistics#"}
	row, ok = rowFor(system, "2026-03-14")
	require.True(t, ok)
	assert.Equal(t, "system", row.Scope)

	_, ok = rowFor(statsItem{PK: "event#abc", SK: "attendee#x@example.org"}, "2026-03-14")
	assert.False(t, ok)
}

type mockAthena struct {
	startInput *athena.StartQueryExecutionInput
	state      athenatypes.QueryExecutionState
	reason     string
}

func (m *mockAthena) StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	m.startInput = params
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("qid-123")}, nil
}

func (m *mockAthena) GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	status := &athenatypes.QueryExecutionStatus{State: m.state}
	if m.reason != "" {
		status.StateChangeReason = aws.String(m.reason)
	}
	return &athena.GetQueryExecutionOutput{
		QueryExecution: &athenatypes.QueryExecution{Status: status},
	}, nil
}

func TestRepairPartitions(t *testing.T) {
	ath := &mockAthena{state: athenatypes.QueryExecutionStateSucceeded}

	qid, err := RepairPartitions(context.Background(), ath, "events_analytics", "statistics", "", "s3://metrics-bucket/athena/")
	require.NoError(t, err)
	assert.Equal(t, "qid-123", qid)

	assert.Equal(t, "MSCK REPAIR TABLE statistics;", aws.ToString(ath.startInput.QueryString))
	assert.Equal(t, "events_analytics", aws.ToString(ath.startInput.QueryExecutionContext.Database))
	assert.Equal(t, "primary", aws.ToString(ath.startInput.WorkGroup))
	assert.Equal(t, "s3://metrics-bucket/athena/", aws.ToString(ath.startInput.ResultConfiguration.OutputLocation))
}

func TestRepairPartitionsFailed(t *testing.T) {
	ath := &mockAthena{state: athenatypes.QueryExecutionStateFailed, reason: "no such table"}

	_, err := RepairPartitions(context.Background(), ath, "events_analytics", "statistics", "primary", "s3://metrics-bucket/athena/")
	assert.ErrorContains(t, err, "no such table")
}

func TestRepairPartitionsBadOutput(t *testing.T) {
	_, err := RepairPartitions(context.Background(), &mockAthena{}, "db", "t", "", "http://nope")
	assert.ErrorContains(t, err, "s3://")

	_, err = RepairPartitions(context.Background(), &mockAthena{}, "", "t", "", "s3://b/")
	assert.Error(t, err)
}

type mockGlue struct {
	out *glue.GetTableOutput
	err error
}

func (m *mockGlue) GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.out, nil
}

func glueTable(columns []string, partitions []string) *glue.GetTableOutput {
	cols := make([]gluetypes.Column, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, gluetypes.Column{Name: aws.String(c), Type: aws.String("string")})
	}
	parts := make([]gluetypes.Column, 0, len(partitions))
	for _, p := range partitions {
		parts = append(parts, gluetypes.Column{Name: aws.String(p), Type: aws.String("string")})
	}
	return &glue.GetTableOutput{Table: &gluetypes.Table{
		Name:          aws.String("statistics"),
		PartitionKeys: parts,
		StorageDescriptor: &gluetypes.StorageDescriptor{
			Location: aws.String("s3://metrics-bucket/stats/"),
			Columns:  cols,
		},
	}}
}

func TestLoadTableSchema(t *testing.T) {
	g := &mockGlue{out: glueTable([]string{"uid", "scope", "attendees"}, []string{"dt"})}

	s, err := LoadTableSchema(context.Background(), g, "events_analytics", "statistics")
	require.NoError(t, err)
	assert.Equal(t, "events_analytics", s.Database)
	assert.Equal(t, "statistics", s.Table)
	assert.Equal(t, "s3://metrics-bucket/stats/", s.Location)
	// Columns come back sorted.
	assert.Equal(t, []Column{{"attendees", "string"}, {"scope", "string"}, {"uid", "string"}}, s.Columns)
	assert.Equal(t, []Column{{"dt", "string"}}, s.Partitions)
}

func TestLoadTableSchemaError(t *testing.T) {
	g := &mockGlue{err: errors.New("EntityNotFoundException")}
	_, err := LoadTableSchema(context.Background(), g, "events_analytics", "missing")
	assert.ErrorContains(t, err, "events_analytics.missing")
}

func TestValidateSchema(t *testing.T) {
	full := append([]string{}, exportColumns...)
	s := &TableSchema{Database: "db", Table: "statistics"}
	for _, c := range full {
		s.Columns = append(s.Columns, Column{Name: c, Type: "string"})
	}
	s.Partitions = []Column{{Name: "dt", Type: "string"}}
	assert.NoError(t, ValidateSchema(s))

	s.Partitions = nil
	assert.ErrorContains(t, ValidateSchema(s), "not partitioned by dt")

	s.Partitions = []Column{{Name: "dt", Type: "string"}}
	s.Columns = s.Columns[:3]
	assert.ErrorContains(t, ValidateSchema(s), "missing columns")
}

func TestSchemaText(t *testing.T) {
	s := &TableSchema{
		Database:   "events_analytics",
		Table:      "statistics",
		Location:   "s3://metrics-bucket/stats/",
		Columns:    []Column{{"scope", "string"}, {"uid", "string"}},
		Partitions: []Column{{"dt", "string"}},
	}
	got := SchemaText(s)
	assert.Contains(t, got, "DATABASE events_analytics\n")
	assert.Contains(t, got, "  scope string,\n")
	assert.Contains(t, got, "  uid string\n")
	assert.Contains(t, got, "PARTITIONED BY (dt string)\n")
	assert.Contains(t, got, "LOCATION s3://metrics-bucket/stats/\n")
}
