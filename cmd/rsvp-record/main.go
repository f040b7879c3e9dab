// Command rsvp-record lands parsed calendar replies on the attendee
// records. A reply from an address the event never invited still counts:
// someone forwarded their invite, and the forwardee's answer is worth
// keeping under its own origin.
package main

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/config"
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
	st := store.New(db, config.TableName())

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processRSVP(ctx, log, st, rec.Body)
	}), nil
}

func processRSVP(ctx context.Context, log *zap.Logger, st *store.Store, body string) error {
	var r store.RSVP
	if err := queue.Decode(body, &r); err != nil {
		return err
	}

	ev, err := st.Event(ctx, r.UID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("reply for unknown event",
			zap.String("uid", r.UID),
			zap.String("attendee", r.Attendee))
		return nil
	}
	if err != nil {
		return err
	}

	att, err := st.Attendee(ctx, r.UID, r.Attendee)
	switch {
	case err == nil:
		if att.Status == r.PartStat {
			log.Info("reply already recorded",
				zap.String("uid", r.UID),
				zap.String("attendee", r.Attendee),
				zap.String("partstat", r.PartStat))
			return nil
		}
		if err := st.RecordRSVPChange(ctx, ev.Mailto, r, att.Status); err != nil {
			return err
		}
	case errors.Is(err, store.ErrNotFound):
		// A concurrent insert surfaces as ErrAlreadyInvited; returning it
		// retries the message down the change path above.
		if err := st.RecordSharedRSVP(ctx, ev.Mailto, r); err != nil {
			return err
		}
	default:
		return err
	}

	log.Info("reply recorded",
		zap.String("uid", r.UID),
		zap.String("attendee", r.Attendee),
		zap.String("partstat", r.PartStat))
	return nil
}

func main() { lambda.Start(handler) }
