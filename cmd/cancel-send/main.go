// Command cancel-send mails one attendee their cancellation: a
// METHOD:CANCEL calendar their client applies automatically, wrapped in
// a plain what-happened message.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/ical"
	"github.com/thirtyone/event-management/internal/mail"
	"github.com/thirtyone/event-management/internal/observability"
	"github.com/thirtyone/event-management/internal/queue"
	"github.com/thirtyone/event-management/internal/store"
)

func handler(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log := observability.Logger()

	sender, err := mail.NewSenderClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processSend(ctx, log, sender, rec.Body)
	}), nil
}

func processSend(ctx context.Context, log *zap.Logger, sender *mail.Sender, body string) error {
	var notice store.CancellationNotice
	if err := queue.Decode(body, &notice); err != nil {
		return err
	}

	fromName := notice.Organizer
	if fromName == "" {
		fromName = notice.Mailto
	}

	cal := ical.Invite{
		UID:         notice.UID,
		Summary:     notice.Summary,
		Description: notice.Description,
		Location:    notice.Location,
		DtStart:     notice.DtStart,
		DtEnd:       notice.DtEnd,
		DtStamp:     notice.DtStamp,
		Sequence:    notice.Sequence,
		Organizer:   ical.Address{Name: fromName, Email: config.RSVPEmail()},
		Attendee: ical.Attendee{
			Address:  ical.Address{Name: notice.Name, Email: notice.Email},
			PartStat: "noaction",
		},
	}.Cancel()

	inv := mail.Invite{
		From:     mail.FormatAddress(fromName, config.Sender()),
		To:       notice.Email,
		Subject:  "CalendarSnack Event Cancelled: " + notice.Summary,
		TextBody: "Event has been cancelled:\n\n" + notice.Description,
		HTMLBody: "Event has been cancelled:<br><br>" + notice.DescriptionHTML,
		Calendar: cal,
		Method:   "CANCEL",
	}
	if err := sender.SendInvite(ctx, inv); err != nil {
		return err
	}
	log.Info("cancellation sent",
		zap.String("uid", notice.UID),
		zap.String("attendee", notice.Email))
	return nil
}

func main() { lambda.Start(handler) }
