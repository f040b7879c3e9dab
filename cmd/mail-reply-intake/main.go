// Command mail-reply-intake turns RSVP mail into reply messages. Clients
// answer an invite by mailing a METHOD:REPLY calendar back to the reply
// mailbox; this worker pulls the stored message out of S3 and reduces it
// to the few fields the record keeper needs.
package main

import (
	"context"

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
		return processReply(ctx, log, box, pub, rec.Body)
	}), nil
}

func processReply(ctx context.Context, log *zap.Logger, box *mailbox.Mailbox, pub *notify.Publisher, body string) error {
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
		log.Warn("unreadable reply mail", zap.String("key", obj.Key), zap.Error(err))
		return nil
	}
	if len(in.Calendar) == 0 {
		log.Warn("reply without calendar part",
			zap.String("key", obj.Key),
			zap.String("from", in.From))
		return nil
	}
	msg, err := ical.Parse(in.Calendar)
	if err != nil {
		log.Warn("unreadable reply calendar", zap.String("key", obj.Key), zap.Error(err))
		return nil
	}
	if msg.Method == "" {
		log.Warn("reply calendar without method",
			zap.String("key", obj.Key),
			zap.String("from", in.From))
		return nil
	}

	r := replyRSVP(msg, in.From)
	if r.UID == "" || r.Attendee == "" {
		log.Warn("reply missing uid or attendee",
			zap.String("key", obj.Key),
			zap.String("from", in.From))
		return nil
	}

	if err := pub.Publish(ctx, config.NewEventReplyTopic(), r); err != nil {
		return err
	}
	log.Info("reply routed",
		zap.String("uid", r.UID),
		zap.String("attendee", r.Attendee),
		zap.String("partstat", r.PartStat))
	return nil
}

// replyRSVP reads the answer out of a reply calendar. The ATTENDEE line
// names who answered and how; a client that omits it still identified
// itself in the mail's From.
func replyRSVP(msg *ical.Message, from string) store.RSVP {
	attendee := from
	partstat := "noaction"
	if len(msg.Attendees) > 0 {
		if msg.Attendees[0].Email != "" {
			attendee = msg.Attendees[0].Email
		}
		partstat = msg.Attendees[0].PartStat
	}
	return store.RSVP{
		UID:      msg.UID,
		Attendee: attendee,
		PartStat: partstat,
		ProdID:   msg.ProdID,
		DtStamp:  msg.DtStamp,
	}
}

func main() { lambda.Start(handler) }
