// Package queue decodes the message envelopes the pipeline's SQS queues
// carry and runs handler loops with partial batch reporting.
package queue

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// envelope is the SNS notification wrapper SQS delivers when raw message
// delivery is off. Only the fields the pipeline reads are declared.
type envelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	TopicArn  string `json:"TopicArn"`
	Message   string `json:"Message"`
}

// Payload unwraps the SNS envelope in an SQS record body and returns the
// published message bytes.
func Payload(body string) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("decode sns envelope: %w", err)
	}
	if env.Message == "" {
		return nil, fmt.Errorf("sns envelope has no message")
	}
	return []byte(env.Message), nil
}

// Decode unwraps the envelope and unmarshals the payload into v.
func Decode(body string, v any) error {
	p, err := Payload(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// S3Object locates an inbound mail object.
type S3Object struct {
	Bucket string
	Key    string
}

// UID is the event identifier an inbound mail object carries: SES stores
// each message under its message id, and that id names the event.
func (o S3Object) UID() string {
	return strings.ToLower(path.Base(o.Key))
}

type s3Notification struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// MailObject resolves the S3 object referenced by an inbound mail
// notification. Receipt rules emit one record per delivery; the last one
// wins.
func MailObject(body string) (S3Object, error) {
	p, err := Payload(body)
	if err != nil {
		return S3Object{}, err
	}
	var n s3Notification
	if err := json.Unmarshal(p, &n); err != nil {
		return S3Object{}, fmt.Errorf("decode s3 notification: %w", err)
	}
	if len(n.Records) == 0 {
		return S3Object{}, fmt.Errorf("no s3 records in notification")
	}
	rec := n.Records[len(n.Records)-1]
	key := rec.S3.Object.Key
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}
	if rec.S3.Bucket.Name == "" || key == "" {
		return S3Object{}, fmt.Errorf("s3 record missing bucket or key")
	}
	return S3Object{Bucket: rec.S3.Bucket.Name, Key: key}, nil
}

// Each runs fn once per SQS record and reports per-message failures so the
// queue retries only what actually failed.
func Each(ctx context.Context, ev events.SQSEvent, log *zap.Logger, fn func(context.Context, events.SQSMessage) error) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, rec := range ev.Records {
		if err := fn(ctx, rec); err != nil {
			log.Error("record failed",
				zap.String("message_id", rec.MessageId),
				zap.Error(err))
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}
