package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvite() Invite {
	return Invite{
		UID:         "7d0f2a9c41",
		Summary:     "Launch Day",
		Description: "Doors at 9:30, talks at 10.\nBring a laptop.",
		Location:    "Pier 27; San Francisco",
		DtStart:     time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC).Unix(),
		DtEnd:       time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC).Unix(),
		DtStamp:     time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC).Unix(),
		Sequence:    0,
		Organizer:   Address{Name: "Maya Chen", Email: "rsvp@calendarsnack.com"},
		Attendee: Attendee{
			Address:  Address{Name: "Ravi Patel", Email: "ravi@example.com"},
			PartStat: "noaction",
		},
	}
}

func TestRequestRoundTrip(t *testing.T) {
	raw := sampleInvite().Request()

	m, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "request", m.Method)
	assert.Equal(t, strings.ToLower(ProdID), m.ProdID)
	assert.Equal(t, "7d0f2a9c41", m.UID)
	assert.Equal(t, "Launch Day", m.Summary)
	assert.Equal(t, "Doors at 9:30, talks at 10.\nBring a laptop.", m.Description)
	assert.Equal(t, "Pier 27; San Francisco", m.Location)
	assert.Equal(t, "confirmed", m.Status)
	assert.Equal(t, sampleInvite().DtStart, m.DtStart)
	assert.Equal(t, sampleInvite().DtEnd, m.DtEnd)
	assert.Equal(t, "rsvp@calendarsnack.com", m.Organizer.Email)
	require.Len(t, m.Attendees, 1)
	assert.Equal(t, "noaction", m.Attendees[0].PartStat)
	assert.Equal(t, "ravi@example.com", m.Attendees[0].Email)
}

func TestRequestWireFormat(t *testing.T) {
	raw := string(sampleInvite().Request())

	for _, line := range strings.Split(raw, "\r\n") {
		assert.LessOrEqual(t, len(line), 75, "line not folded: %q", line)
	}

	unfolded := strings.ReplaceAll(raw, "\r\n ", "")
	assert.True(t, strings.HasPrefix(raw, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, unfolded, "METHOD:REQUEST\r\n")
	assert.Contains(t, unfolded, "DTSTART:20240115T100000Z\r\n")
	assert.Contains(t, unfolded, "PARTSTAT=NEEDS-ACTION;RSVP=TRUE")
	assert.Contains(t, unfolded, "ORGANIZER;CN=Maya Chen:mailto:rsvp@calendarsnack.com\r\n")
	assert.True(t, strings.HasSuffix(raw, "END:VCALENDAR\r\n"))
}

func TestCancelWireFormat(t *testing.T) {
	iv := sampleInvite()
	iv.Sequence = 3
	raw := string(iv.Cancel())

	assert.Contains(t, raw, "METHOD:CANCEL\r\n")
	assert.Contains(t, raw, "STATUS:CANCELLED\r\n")
	assert.Contains(t, raw, "SEQUENCE:3\r\n")
	assert.NotContains(t, raw, "RSVP=TRUE")
}

func TestFoldingLongSummary(t *testing.T) {
	iv := sampleInvite()
	iv.Summary = strings.Repeat("all work and no play makes a dull calendar ", 6)

	raw := iv.Request()
	for _, line := range strings.Split(string(raw), "\r\n") {
		assert.LessOrEqual(t, len(line), 75)
	}

	m, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, iv.Summary, m.Summary)
}

func TestFormatUTC(t *testing.T) {
	assert.Equal(t, "19700101T000000Z", FormatUTC(0))
	assert.Equal(t, "20240115T100000Z", FormatUTC(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC).Unix()))
}

func TestEscapeParamQuoting(t *testing.T) {
	assert.Equal(t, `"Chen, Maya"`, escapeParam("Chen, Maya"))
	assert.Equal(t, "Maya Chen", escapeParam("Maya Chen"))
	assert.Equal(t, "OReilly", escapeParam(`O"Reilly`))
}
