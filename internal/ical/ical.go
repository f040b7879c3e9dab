// Package ical parses the slice of RFC 5545 that calendar clients put in
// invite mail and renders the REQUEST and CANCEL calendars the pipeline
// sends back out. Field values come out normalized the way the rest of the
// system stores them: lowercase identifiers, bare email addresses and epoch
// seconds.
package ical

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// ProdID identifies calendars produced by this system.
const ProdID = "-//31events//calendarsnack//en"

type Address struct {
	Name  string
	Email string
}

type Attendee struct {
	Address
	PartStat string
}

// Message is one parsed VEVENT plus the calendar-level method.
type Message struct {
	Method       string
	ProdID       string
	UID          string
	Summary      string
	Description  string
	Location     string
	Status       string
	Sequence     int
	DtStart      int64
	DtEnd        int64
	DtStamp      int64
	Created      int64
	LastModified int64
	Organizer    Address
	Attendees    []Attendee
}

// Parse reads the first VEVENT of a VCALENDAR stream. Folded lines are
// unfolded, text values unescaped and identifiers normalized: method,
// status, partstat, prodid, uid and addresses are lowercased, the mailto:
// prefix is stripped and NEEDS-ACTION becomes the stored "noaction".
func Parse(data []byte) (*Message, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n ", "")
	text = strings.ReplaceAll(text, "\n\t", "")

	var (
		m         Message
		component []string
		sawCal    bool
		sawEvent  bool
	)
	current := func() string {
		if len(component) == 0 {
			return ""
		}
		return component[len(component)-1]
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, params, value, err := parseProperty(line)
		if err != nil {
			continue
		}
		switch name {
		case "BEGIN":
			component = append(component, strings.ToUpper(value))
			switch current() {
			case "VCALENDAR":
				sawCal = true
			case "VEVENT":
				if sawEvent {
					// Only the first VEVENT is read.
					component = component[:len(component)-1]
					return &m, nil
				}
				sawEvent = true
			}
			continue
		case "END":
			if len(component) > 0 {
				component = component[:len(component)-1]
			}
			continue
		}

		switch current() {
		case "VCALENDAR":
			switch name {
			case "METHOD":
				m.Method = strings.ToLower(value)
			case "PRODID":
				m.ProdID = strings.ToLower(value)
			}
		case "VEVENT":
			if err := m.setEventProperty(name, params, value); err != nil {
				return nil, err
			}
		}
	}

	if !sawCal {
		return nil, fmt.Errorf("not a calendar stream")
	}
	if !sawEvent {
		return nil, fmt.Errorf("calendar has no event")
	}
	return &m, nil
}

func (m *Message) setEventProperty(name string, params map[string]string, value string) error {
	switch name {
	case "UID":
		m.UID = strings.ToLower(value)
	case "SUMMARY":
		m.Summary = unescapeText(value)
	case "DESCRIPTION":
		m.Description = unescapeText(value)
	case "LOCATION":
		m.Location = unescapeText(value)
	case "STATUS":
		m.Status = strings.ToLower(value)
	case "SEQUENCE":
		n, err := strconv.Atoi(value)
		if err == nil {
			m.Sequence = n
		}
	case "DTSTART", "DTEND", "DTSTAMP", "CREATED", "LAST-MODIFIED":
		epoch, err := parseDateTime(value, params)
		if err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(name), err)
		}
		switch name {
		case "DTSTART":
			m.DtStart = epoch
		case "DTEND":
			m.DtEnd = epoch
		case "DTSTAMP":
			m.DtStamp = epoch
		case "CREATED":
			m.Created = epoch
		case "LAST-MODIFIED":
			m.LastModified = epoch
		}
	case "ORGANIZER":
		m.Organizer = Address{Name: params["CN"], Email: stripMailto(value)}
	case "ATTENDEE":
		m.Attendees = append(m.Attendees, Attendee{
			Address:  Address{Name: params["CN"], Email: stripMailto(value)},
			PartStat: NormalizePartStat(params["PARTSTAT"]),
		})
	}
	return nil
}

// NormalizePartStat maps an RFC 5545 participation status onto the four
// buckets the statistics rows count: accepted, declined, tentative and
// noaction.
func NormalizePartStat(s string) string {
	s = strings.ToLower(s)
	switch s {
	case "accepted", "declined", "tentative", "noaction":
		return s
	case "", "needs-action":
		return "noaction"
	default:
		return s
	}
}

// DenormalizePartStat renders a stored participation status back into its
// RFC 5545 spelling for outbound calendars.
func DenormalizePartStat(s string) string {
	if strings.EqualFold(s, "noaction") {
		return "NEEDS-ACTION"
	}
	return strings.ToUpper(s)
}

// HTMLText is the HTML-safe copy of a calendar text value, kept alongside
// the raw one so dashboards never re-escape.
func HTMLText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

func stripMailto(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 7 && strings.EqualFold(s[:7], "mailto:") {
		s = s[7:]
	}
	return strings.ToLower(s)
}

// parseProperty splits a content line into name, parameters and value.
// Colons and semicolons inside quoted parameter values do not split.
func parseProperty(line string) (string, map[string]string, string, error) {
	sep := -1
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case ':':
			if !quoted {
				sep = i
			}
		}
		if sep >= 0 {
			break
		}
	}
	if sep < 0 {
		return "", nil, "", fmt.Errorf("no value separator in %q", line)
	}

	head := splitQuoted(line[:sep], ';')
	name := strings.ToUpper(strings.TrimSpace(head[0]))
	if name == "" {
		return "", nil, "", fmt.Errorf("empty property name in %q", line)
	}
	params := make(map[string]string, len(head)-1)
	for _, p := range head[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		params[strings.ToUpper(strings.TrimSpace(k))] = strings.Trim(v, `"`)
	}
	return name, params, line[sep+1:], nil
}

func splitQuoted(s string, sep byte) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n', 'N':
				b.WriteByte('\n')
			// Colon escaping is not in RFC 5545 but old clients do it.
			case '\\', ';', ',', ':':
				b.WriteByte(s[i])
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
