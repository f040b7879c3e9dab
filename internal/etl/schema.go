package etl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
)

type GlueAPI interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
}

var _ GlueAPI = (*glue.Client)(nil)

type TableSchema struct {
	Database   string
	Table      string
	Location   string
	Columns    []Column
	Partitions []Column
}

type Column struct {
	Name string
	Type string
}

// exportColumns are the columns Export writes. The Glue table may carry
// more, never fewer.
var exportColumns = []string{
	"scope", "uid", "organizer", "tenant", "snapshot_date",
	"attendees", "events", "accepted", "declined", "tentative", "noaction",
}

func LoadTableSchema(ctx context.Context, c GlueAPI, database, table string) (*TableSchema, error) {
	out, err := c.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		return nil, fmt.Errorf("glue GetTable %s.%s: %w", database, table, err)
	}

	ti := out.Table
	sd := ti.StorageDescriptor

	schema := &TableSchema{
		Database: database,
		Table:    aws.ToString(ti.Name),
		Location: aws.ToString(sd.Location),
	}
	for _, col := range sd.Columns {
		schema.Columns = append(schema.Columns, Column{
			Name: aws.ToString(col.Name),
			Type: aws.ToString(col.Type),
		})
	}
	for _, p := range ti.PartitionKeys {
		schema.Partitions = append(schema.Partitions, Column{
			Name: aws.ToString(p.Name),
			Type: aws.ToString(p.Type),
		})
	}

	sort.Slice(schema.Columns, func(i, j int) bool { return schema.Columns[i].Name < schema.Columns[j].Name })
	sort.Slice(schema.Partitions, func(i, j int) bool { return schema.Partitions[i].Name < schema.Partitions[j].Name })
	return schema, nil
}

// ValidateSchema confirms the Glue table can take what Export writes.
// Running it before the first PutObject turns a drifted table definition
// into a loud failure instead of NULL columns in Athena.
func ValidateSchema(s *TableSchema) error {
	have := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		have[strings.ToLower(c.Name)] = true
	}
	var missing []string
	for _, want := range exportColumns {
		if !have[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %s.%s missing columns: %s", s.Database, s.Table, strings.Join(missing, ", "))
	}
	for _, p := range s.Partitions {
		if strings.EqualFold(p.Name, "dt") {
			return nil
		}
	}
	return fmt.Errorf("table %s.%s is not partitioned by dt", s.Database, s.Table)
}

// SchemaText renders the schema as DDL-shaped text for snackctl.
func SchemaText(s *TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DATABASE %s\n", s.Database)
	fmt.Fprintf(&b, "TABLE %s (\n", s.Table)
	for i, c := range s.Columns {
		comma := ","
		if i == len(s.Columns)-1 {
			comma = ""
		}
		fmt.Fprintf(&b, "  %s %s%s\n", c.Name, c.Type, comma)
	}
	b.WriteString(")\n")
	if len(s.Partitions) > 0 {
		b.WriteString("PARTITIONED BY (")
		for i, p := range s.Partitions {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s %s", p.Name, p.Type)
		}
		b.WriteString(")\n")
	}
	if s.Location != "" {
		fmt.Fprintf(&b, "LOCATION %s\n", s.Location)
	}
	return b.String()
}
