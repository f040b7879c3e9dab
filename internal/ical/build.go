package ical

import (
	"strconv"
	"strings"
)

// Invite carries everything an outbound calendar needs. Organizer.Email is
// the reply mailbox, not the organizer's own address, so RSVPs come back
// through the pipeline.
type Invite struct {
	UID         string
	Summary     string
	Description string
	Location    string
	DtStart     int64
	DtEnd       int64
	DtStamp     int64
	Sequence    int
	Organizer   Address
	Attendee    Attendee
}

// Request renders a METHOD:REQUEST calendar for the attendee.
func (iv Invite) Request() []byte {
	return iv.render("REQUEST", "CONFIRMED", true)
}

// Cancel renders the METHOD:CANCEL counterpart sent when an event is
// called off.
func (iv Invite) Cancel() []byte {
	return iv.render("CANCEL", "CANCELLED", false)
}

func (iv Invite) render(method, status string, rsvp bool) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"PRODID:" + ProdID,
		"VERSION:2.0",
		"CALSCALE:GREGORIAN",
		"METHOD:" + method,
		"BEGIN:VEVENT",
		"UID:" + iv.UID,
		"DTSTAMP:" + FormatUTC(iv.DtStamp),
		"DTSTART:" + FormatUTC(iv.DtStart),
		"DTEND:" + FormatUTC(iv.DtEnd),
		"SUMMARY:" + escapeText(iv.Summary),
		"DESCRIPTION:" + escapeText(iv.Description),
		"LOCATION:" + escapeText(iv.Location),
		"SEQUENCE:" + strconv.Itoa(iv.Sequence),
		"STATUS:" + status,
		"ORGANIZER;CN=" + escapeParam(iv.Organizer.Name) + ":mailto:" + iv.Organizer.Email,
		attendeeLine(iv.Attendee, rsvp),
		"END:VEVENT",
		"END:VCALENDAR",
	}

	var b strings.Builder
	for _, line := range lines {
		writeFolded(&b, line)
	}
	return []byte(b.String())
}

func attendeeLine(a Attendee, rsvp bool) string {
	var b strings.Builder
	b.WriteString("ATTENDEE;CUTYPE=INDIVIDUAL;ROLE=REQ-PARTICIPANT;PARTSTAT=")
	b.WriteString(DenormalizePartStat(a.PartStat))
	if rsvp {
		b.WriteString(";RSVP=TRUE")
	}
	if a.Name != "" {
		b.WriteString(";CN=")
		b.WriteString(escapeParam(a.Name))
	}
	b.WriteString(":mailto:")
	b.WriteString(a.Email)
	return b.String()
}

// writeFolded emits a content line folded at 75 octets per RFC 5545 3.1,
// continuation lines led by a single space.
func writeFolded(b *strings.Builder, line string) {
	const width = 75
	for len(line) > width {
		b.WriteString(line[:width])
		b.WriteString("\r\n")
		line = " " + line[width:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

// escapeParam quotes a parameter value when it contains characters that
// would otherwise terminate it.
func escapeParam(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	if strings.ContainsAny(s, ";:,") {
		return `"` + s + `"`
	}
	return s
}
