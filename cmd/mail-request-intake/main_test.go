package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirtyone/event-management/internal/mail"
)

const requestCalendar = `BEGIN:VCALENDAR
PRODID:-//Apple Inc.//macOS 14.0//EN
VERSION:2.0
METHOD:REQUEST
BEGIN:VEVENT
UID:ABC-123-DEF
DTSTAMP:20260901T120000Z
DTSTART:20260901T170000Z
DTEND:20260901T180000Z
CREATED:20260830T080000Z
LAST-MODIFIED:20260901T110000Z
SEQUENCE:0
STATUS:CONFIRMED
SUMMARY:Coffee & Cupping
DESCRIPTION:Taste the new harvest.
LOCATION:Roastery
ORGANIZER;CN=Maya Flores:mailto:Maya@Example.com
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestEventFromMail(t *testing.T) {
	in := &mail.Inbound{Calendar: crlf(requestCalendar)}

	ev, err := eventFromMail("s3object9001", in)
	require.NoError(t, err)

	// The stored object's name is the event uid; the calendar's UID only
	// survives as the correlation handle for later updates.
	assert.Equal(t, "s3object9001", ev.UID)
	assert.Equal(t, "abc-123-def", ev.OriginalUID)
	assert.Equal(t, "maya@example.com", ev.Mailto)
	assert.Equal(t, "Maya Flores", ev.Organizer)
	assert.Equal(t, "request", ev.Method)
	assert.Equal(t, "confirmed", ev.Status)
	assert.Equal(t, "Coffee & Cupping", ev.Summary)
	assert.Equal(t, "Coffee &amp; Cupping", ev.SummaryHTML)
	assert.Equal(t, int64(1788282000), ev.DtStart)
	assert.Equal(t, int64(1788285600), ev.DtEnd)
}

func TestEventFromMailNoCalendar(t *testing.T) {
	_, err := eventFromMail("s3object9001", &mail.Inbound{})
	assert.ErrorContains(t, err, "no calendar part")
}

func TestEventFromMailNoOrganizer(t *testing.T) {
	cal := strings.Replace(requestCalendar, "ORGANIZER;CN=Maya Flores:mailto:Maya@Example.com\n", "", 1)

	_, err := eventFromMail("s3object9001", &mail.Inbound{Calendar: crlf(cal)})
	assert.ErrorContains(t, err, "no organizer")
}
