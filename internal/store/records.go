package store

// Event is the canonical event record and also the payload pipeline stages
// exchange, so the dynamodbav and json names line up on purpose.
type Event struct {
	UID                     string `dynamodbav:"uid" json:"uid"`
	OriginalUID             string `dynamodbav:"original_uid" json:"original_uid"`
	Mailto                  string `dynamodbav:"mailto" json:"mailto"`
	Organizer               string `dynamodbav:"organizer" json:"organizer"`
	Summary                 string `dynamodbav:"summary" json:"summary"`
	SummaryHTML             string `dynamodbav:"summary_html" json:"summary_html"`
	Description             string `dynamodbav:"description" json:"description"`
	DescriptionHTML         string `dynamodbav:"description_html" json:"description_html"`
	Location                string `dynamodbav:"location" json:"location"`
	LocationHTML            string `dynamodbav:"location_html" json:"location_html"`
	DtStart                 int64  `dynamodbav:"dtstart" json:"dtstart"`
	DtEnd                   int64  `dynamodbav:"dtend" json:"dtend"`
	DtStamp                 int64  `dynamodbav:"dtstamp" json:"dtstamp"`
	Created                 int64  `dynamodbav:"created" json:"created"`
	LastModified            int64  `dynamodbav:"last_modified" json:"last_modified"`
	Sequence                int    `dynamodbav:"sequence" json:"sequence"`
	Status                  string `dynamodbav:"status" json:"status"`
	Method                  string `dynamodbav:"method" json:"method"`
	ProdID                  string `dynamodbav:"prodid" json:"prodid"`
	InviteLimit             int    `dynamodbav:"invite_limit" json:"invite_limit"`
	InviteLimitNotification bool   `dynamodbav:"invite_limit_notification" json:"invite_limit_notification"`
	OriginalOrganizer       string `dynamodbav:"original_organizer" json:"original_organizer"`
	Tenant                  string `dynamodbav:"tenant" json:"tenant"`
}

// ForNotice strips the long fields from organizer notification payloads.
func (e Event) ForNotice() Event {
	e.Description = ""
	e.DescriptionHTML = ""
	return e
}

// Attendee is one invited address on one event.
type Attendee struct {
	Attendee string         `dynamodbav:"attendee" json:"attendee"`
	Mailto   string         `dynamodbav:"mailto" json:"mailto"`
	Name     string         `dynamodbav:"name" json:"name"`
	Created  int64          `dynamodbav:"created" json:"created"`
	Status   string         `dynamodbav:"status" json:"status"`
	Origin   string         `dynamodbav:"origin" json:"origin"`
	ProdID   string         `dynamodbav:"prodid" json:"prodid"`
	History  []HistoryEntry `dynamodbav:"history" json:"history"`
}

// HistoryEntry records one RSVP state the attendee has been in.
type HistoryEntry struct {
	PartStat string `dynamodbav:"partstat" json:"partstat"`
	At       int64  `dynamodbav:"at" json:"at"`
	ProdID   string `dynamodbav:"prodid" json:"prodid"`
}

// Statistics is the counter shape shared by event, organizer and system
// rows.
type Statistics struct {
	Tenant    string         `dynamodbav:"tenant" json:"tenant"`
	Mailto    string         `dynamodbav:"mailto" json:"mailto"`
	Attendees int            `dynamodbav:"attendees" json:"attendees"`
	Origin    map[string]int `dynamodbav:"origin" json:"origin"`
	ProdID    map[string]int `dynamodbav:"prodid" json:"prodid"`
	RSVP      map[string]int `dynamodbav:"rsvp" json:"rsvp"`
}

type OrganizerStatistics struct {
	Statistics
	Events int `dynamodbav:"events" json:"events"`
}

// NewStatistics returns a zeroed counter row. The rsvp map is pre-seeded
// so transactional increments always find their paths.
func NewStatistics(tenant, mailto string) Statistics {
	return Statistics{
		Tenant: tenant,
		Mailto: mailto,
		Origin: map[string]int{},
		ProdID: map[string]int{},
		RSVP:   map[string]int{"accepted": 0, "declined": 0, "noaction": 0, "tentative": 0},
	}
}

// InviteRequest asks the pipeline to invite one address to one event.
type InviteRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Origin   string `json:"origin"`
	PartStat string `json:"partstat"`
	ProdID   string `json:"prodid"`
	UID      string `json:"uid"`
}

// InvitePayload is the {request, event} pair the invite stages exchange.
type InvitePayload struct {
	Request InviteRequest `json:"request"`
	Event   Event         `json:"event"`
}

// RSVP is a parsed reply on its way to the attendee record.
type RSVP struct {
	UID      string `json:"uid"`
	Attendee string `json:"attendee"`
	PartStat string `json:"partstat"`
	ProdID   string `json:"prodid"`
	DtStamp  int64  `json:"dtstamp"`
}

// CreatedNotice decorates an event with the organizer totals the
// notification templates render.
type CreatedNotice struct {
	Event
	Events int  `json:"events"`
	Paid   bool `json:"paid"`
}

// CancellationNotice fans an event cancellation out to one attendee.
type CancellationNotice struct {
	Event
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FailureNotice tells an organizer their mail could not become an event.
type FailureNotice struct {
	Mailto string `json:"mailto"`
}
