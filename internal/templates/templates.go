// Package templates fills in the organizer notice templates. The HTML
// bodies live in S3 and use brace placeholders, so a template edit never
// needs a deploy.
package templates

import (
	"strconv"
	"strings"
)

// Fields are the values a notice template may reference.
type Fields struct {
	Mailto  string
	Summary string
	UID     string
	Events  int
	Limit   int
}

// Render substitutes every known placeholder. Unknown braces pass
// through untouched so a typo shows up in the delivered mail instead of
// vanishing.
func Render(tmpl string, f Fields) string {
	return strings.NewReplacer(
		"{mailto}", f.Mailto,
		"{summary}", f.Summary,
		"{uid}", f.UID,
		"{events}", strconv.Itoa(f.Events),
		"{limit}", strconv.Itoa(f.Limit),
	).Replace(tmpl)
}
