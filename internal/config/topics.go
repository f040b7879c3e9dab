package config

import "os"

// Topic ARNs, one env var per pipeline edge. CloudFormation injects these
// per function, so a given binary only sees the topics it publishes to.

func NewEventRequestTopic() string {
	return os.Getenv("NEW_EVENT_REQUEST")
}

func NewEventCreatedTopic() string {
	return os.Getenv("NEW_EVENT_CREATED")
}

func EventUpdateTopic() string {
	return os.Getenv("EVENT_UPDATE")
}

func EventUpdatedTopic() string {
	return os.Getenv("EVENT_UPDATED")
}

func EventCancellationTopic() string {
	return os.Getenv("EVENT_CANCELLATION")
}

func EventCancelledTopic() string {
	return os.Getenv("EVENT_CANCELLED")
}

func EventCancellationRequestTopic() string {
	return os.Getenv("EVENT_CANCELLATION_REQUEST")
}

func NewEventInviteTopic() string {
	return os.Getenv("NEW_EVENT_INVITE")
}

func NewEventReplyTopic() string {
	return os.Getenv("NEW_EVENT_REPLY")
}

func EventLimitReachedTopic() string {
	return os.Getenv("EVENT_LIMIT_REACHED")
}

func FailedEventCreateTopic() string {
	return os.Getenv("FAILED_EVENT_CREATE")
}
