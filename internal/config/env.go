package config

import (
	"os"
	"strconv"
)

func TableName() string {
	return os.Getenv("THIRTYONE_TABLE")
}

func Sender() string {
	return os.Getenv("SENDER")
}

func Subject() string {
	return os.Getenv("SUBJECT")
}

func RSVPEmail() string {
	return os.Getenv("RSVP_EMAIL")
}

func SystemEmail() string {
	return os.Getenv("SYSTEM_EMAIL")
}

func TemplateBucket() string {
	return os.Getenv("TEMPLATE_BUCKET")
}

func TemplateKey() string {
	return os.Getenv("TEMPLATE_KEY")
}

func MetricsBucket() string {
	return os.Getenv("METRICS_BUCKET")
}

func MetricsDatabase() string {
	return os.Getenv("METRICS_DATABASE")
}

func MetricsTable() string {
	return os.Getenv("METRICS_TABLE")
}

func AthenaOutput() string {
	return os.Getenv("ATHENA_OUTPUT")
}

// EventInviteLimit is the invite budget a new event starts with.
func EventInviteLimit() int {
	return intEnv("EVENT_INVITE_LIMIT", 100)
}

// EventLimit caps how many events a free organizer may create.
func EventLimit() int {
	return intEnv("EVENT_LIMIT", 5)
}

func intEnv(name string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return v
}
