// Command mail-request-intake turns organizer mail into pipeline events.
// SES receipt rules drop each message in S3 and notify the queue this
// worker consumes; the calendar attached to the message decides whether
// the organizer wants an event created, updated or cancelled.
package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/ical"
	"github.com/thirtyone/event-management/internal/mail"
	"github.com/thirtyone/event-management/internal/mailbox"
	"github.com/thirtyone/event-management/internal/notify"
	"github.com/thirtyone/event-management/internal/observability"
	"github.com/thirtyone/event-management/internal/queue"
	"github.com/thirtyone/event-management/internal/store"
)

func handler(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log := observability.Logger()

	box, err := mailbox.NewFromConfig(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	pub, err := notify.NewFromConfig(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processRequest(ctx, log, box, pub, rec.Body)
	}), nil
}

func processRequest(ctx context.Context, log *zap.Logger, box *mailbox.Mailbox, pub *notify.Publisher, body string) error {
	obj, err := queue.MailObject(body)
	if err != nil {
		return err
	}
	raw, err := box.Raw(ctx, obj.Bucket, obj.Key)
	if err != nil {
		return err
	}

	in, err := mail.ParseInbound(raw)
	if err != nil {
		// Nothing to reply to either; retrying cannot fix the message.
		log.Warn("unreadable organizer mail", zap.String("key", obj.Key), zap.Error(err))
		return nil
	}

	ev, err := eventFromMail(obj.UID(), in)
	if err != nil {
		log.Warn("rejecting organizer mail",
			zap.String("uid", obj.UID()),
			zap.String("mailto", in.ReturnPath),
			zap.Error(err))
		return pub.Publish(ctx, config.FailedEventCreateTopic(), store.FailureNotice{Mailto: in.ReturnPath})
	}

	var topic string
	switch ev.Method {
	case "request":
		topic = config.NewEventRequestTopic()
	case "update":
		topic = config.EventUpdateTopic()
	case "cancel":
		topic = config.EventCancellationTopic()
	default:
		log.Warn("organizer mail with unroutable method",
			zap.String("uid", ev.UID),
			zap.String("method", ev.Method),
			zap.String("mailto", in.ReturnPath))
		return pub.Publish(ctx, config.FailedEventCreateTopic(), store.FailureNotice{Mailto: in.ReturnPath})
	}

	if err := pub.Publish(ctx, topic, ev); err != nil {
		return err
	}
	log.Info("organizer mail routed",
		zap.String("uid", ev.UID),
		zap.String("method", ev.Method),
		zap.String("mailto", ev.Mailto))
	return nil
}

// eventFromMail builds the pipeline event: the stored object's name is
// the event uid, the calendar's own UID rides along as original_uid so
// later updates from the organizer's client can find the record.
func eventFromMail(uid string, in *mail.Inbound) (*store.Event, error) {
	if len(in.Calendar) == 0 {
		return nil, fmt.Errorf("message has no calendar part")
	}
	msg, err := ical.Parse(in.Calendar)
	if err != nil {
		return nil, err
	}
	if msg.UID == "" {
		return nil, fmt.Errorf("calendar has no uid")
	}
	if msg.Organizer.Email == "" {
		return nil, fmt.Errorf("calendar has no organizer")
	}

	return &store.Event{
		UID:             uid,
		OriginalUID:     msg.UID,
		Mailto:          msg.Organizer.Email,
		Organizer:       msg.Organizer.Name,
		Summary:         msg.Summary,
		SummaryHTML:     ical.HTMLText(msg.Summary),
		Description:     msg.Description,
		DescriptionHTML: ical.HTMLText(msg.Description),
		Location:        msg.Location,
		LocationHTML:    ical.HTMLText(msg.Location),
		DtStart:         msg.DtStart,
		DtEnd:           msg.DtEnd,
		DtStamp:         msg.DtStamp,
		Created:         msg.Created,
		LastModified:    msg.LastModified,
		Sequence:        msg.Sequence,
		Status:          msg.Status,
		Method:          msg.Method,
		ProdID:          msg.ProdID,
	}, nil
}

func main() { lambda.Start(handler) }
