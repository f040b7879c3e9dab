// Package bulk turns mailed-in CSV sheets into invite rows. Sheets come
// from spreadsheet exports, so parsing is forgiving about column order,
// byte order marks and line endings, and strict about nothing except the
// fields an invite actually needs.
package bulk

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Row is one parsed invite line.
type Row struct {
	Line  int
	UID   string
	Email string
	Name  string
}

// Rejected is a line that did not make the cut and why.
type Rejected struct {
	Line   int
	Reason string
}

// Sheet is the outcome of parsing one CSV attachment.
type Sheet struct {
	Rows     []Row
	Rejected []Rejected
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var requiredColumns = []string{"uid", "email", "name"}

// Parse reads a whole CSV sheet. The header row names the columns, in
// any order. Rows missing a uid or carrying an unusable email land in
// Rejected with a reason instead of failing the sheet.
func Parse(data []byte) (*Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	sheet := &Sheet{}
	line := 1
	for {
		record, err := r.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sheet.Rejected = append(sheet.Rejected, Rejected{Line: line, Reason: "malformed line"})
			continue
		}
		if empty(record) {
			continue
		}

		row := Row{
			Line:  line,
			UID:   strings.ToLower(field(record, columns["uid"])),
			Email: strings.ToLower(field(record, columns["email"])),
			Name:  field(record, columns["name"]),
		}
		switch {
		case row.UID == "":
			sheet.Rejected = append(sheet.Rejected, Rejected{Line: line, Reason: "missing uid"})
		case !emailPattern.MatchString(row.Email):
			sheet.Rejected = append(sheet.Rejected, Rejected{Line: line, Reason: fmt.Sprintf("invalid email %q", row.Email)})
		default:
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	return sheet, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func empty(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Report renders the plain-text status mail sent back to the sheet's
// sender once every row has been handled. Rejections from later
// validation join the parse rejections, all keyed by sheet line.
func Report(queued int, rejected []Rejected) string {
	var b strings.Builder
	b.WriteString("Bulk invite report\n\n")
	fmt.Fprintf(&b, "Queued for sending: %d\n", queued)
	fmt.Fprintf(&b, "Rejected: %d\n", len(rejected))
	sort.Slice(rejected, func(i, j int) bool { return rejected[i].Line < rejected[j].Line })
	for _, rej := range rejected {
		fmt.Fprintf(&b, "  line %d: %s\n", rej.Line, rej.Reason)
	}
	return b.String()
}
