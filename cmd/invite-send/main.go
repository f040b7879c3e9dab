// Command invite-send records a verified invite and mails the attendee
// their METHOD:REQUEST calendar. Recording and sending are ordered so a
// crash between the two costs a resend at worst, never a phantom
// attendee.
package main

import (
	"context"
	"errors"
	"time"

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

	db, err := store.NewClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	sender, err := mail.NewSenderClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	st := store.New(db, config.TableName())

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processInvite(ctx, log, st, sender, rec.Body)
	}), nil
}

func processInvite(ctx context.Context, log *zap.Logger, st *store.Store, sender *mail.Sender, body string) error {
	var p store.InvitePayload
	if err := queue.Decode(body, &p); err != nil {
		return err
	}
	req, ev := p.Request, p.Event

	// Test invites go out every time and never touch the records.
	if req.Origin != "test" {
		_, err := st.Attendee(ctx, ev.UID, req.Email)
		if err == nil {
			log.Info("attendee already invited",
				zap.String("uid", ev.UID),
				zap.String("attendee", req.Email))
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		err = st.RecordInvite(ctx, &ev, req, ical.ProdID, time.Now().Unix())
		if errors.Is(err, store.ErrAlreadyInvited) {
			// Raced a duplicate delivery past the read above.
			log.Info("attendee already invited",
				zap.String("uid", ev.UID),
				zap.String("attendee", req.Email))
			return nil
		}
		if err != nil {
			return err
		}
	}

	fromName := ev.Organizer
	if fromName == "" {
		fromName = ev.Mailto
	}

	cal := ical.Invite{
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		DtStart:     ev.DtStart,
		DtEnd:       ev.DtEnd,
		DtStamp:     ev.DtStamp,
		Sequence:    ev.Sequence,
		Organizer:   ical.Address{Name: fromName, Email: config.RSVPEmail()},
		Attendee: ical.Attendee{
			Address:  ical.Address{Name: req.Name, Email: req.Email},
			PartStat: req.PartStat,
		},
	}.Request()

	inv := mail.Invite{
		From:     mail.FormatAddress(fromName, config.Sender()),
		To:       req.Email,
		Subject:  ev.Summary,
		TextBody: ev.Description,
		HTMLBody: ev.DescriptionHTML,
		Calendar: cal,
		Method:   "REQUEST",
	}
	if err := sender.SendInvite(ctx, inv); err != nil {
		return err
	}
	log.Info("invite sent",
		zap.String("uid", ev.UID),
		zap.String("attendee", req.Email),
		zap.String("origin", req.Origin))
	return nil
}

func main() { lambda.Start(handler) }
