package ical

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateTimeLayout = "20060102T150405"
	dateLayout     = "20060102"
)

// FormatUTC renders an epoch the way outbound calendars carry times.
func FormatUTC(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(dateTimeLayout) + "Z"
}

// parseDateTime accepts the three date forms clients actually send: UTC
// ("...Z"), a local time qualified by a TZID parameter, and bare dates
// (VALUE=DATE). Floating local times without a TZID are read as UTC.
func parseDateTime(value string, params map[string]string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty date value")
	}

	if strings.EqualFold(params["VALUE"], "DATE") || len(value) == len(dateLayout) {
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("parse date %q: %w", value, err)
		}
		return t.Unix(), nil
	}

	loc := time.UTC
	if tzid := params["TZID"]; tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return 0, fmt.Errorf("unknown timezone %q: %w", tzid, err)
		}
		loc = l
	}

	if strings.HasSuffix(value, "Z") || strings.HasSuffix(value, "z") {
		value = value[:len(value)-1]
		loc = time.UTC
	}

	t, err := time.ParseInLocation(dateTimeLayout, value, loc)
	if err != nil {
		return 0, fmt.Errorf("parse datetime %q: %w", value, err)
	}
	return t.Unix(), nil
}
