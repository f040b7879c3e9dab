// Command event-create writes the canonical event record for a routed
// request. Creation is gated on the organizer's standing: suspended
// organizers are dropped and free organizers stop at their event cap.
package main

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/notify"
	"github.com/thirtyone/event-management/internal/observability"
	"github.com/thirtyone/event-management/internal/queue"
	"github.com/thirtyone/event-management/internal/store"
)

const tenant = "thirtyone"

func handler(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log := observability.Logger()

	db, err := store.NewClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	pub, err := notify.NewFromConfig(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	st := store.New(db, config.TableName())

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processCreate(ctx, log, st, pub, rec.Body)
	}), nil
}

func processCreate(ctx context.Context, log *zap.Logger, st *store.Store, pub *notify.Publisher, body string) error {
	var ev store.Event
	if err := queue.Decode(body, &ev); err != nil {
		return err
	}

	suspended, err := st.IsSuspended(ctx, ev.Mailto)
	if err != nil {
		return err
	}
	if suspended {
		log.Warn("create from suspended organizer",
			zap.String("uid", ev.UID),
			zap.String("mailto", ev.Mailto))
		return nil
	}

	paid, err := st.HasSubscription(ctx, ev.Mailto)
	if err != nil {
		return err
	}
	organizer, err := st.EnsureOrganizerStatistics(ctx, ev.Mailto, tenant)
	if err != nil {
		return err
	}
	if !paid && organizer.Events >= config.EventLimit() {
		log.Warn("event limit reached",
			zap.String("uid", ev.UID),
			zap.String("mailto", ev.Mailto),
			zap.Int("events", organizer.Events))
		return pub.Publish(ctx, config.EventLimitReachedTopic(), store.CreatedNotice{
			Event:  ev.ForNotice(),
			Events: organizer.Events,
			Paid:   paid,
		})
	}

	ev.InviteLimit = config.EventInviteLimit()
	ev.InviteLimitNotification = false
	ev.OriginalOrganizer = ev.Mailto
	ev.Tenant = tenant

	err = st.CreateEvent(ctx, &ev)
	if errors.Is(err, store.ErrEventExists) {
		// The organizer re-sent a calendar we already know; the record
		// holder for that uid decides what changed.
		log.Info("event already exists",
			zap.String("original_uid", ev.OriginalUID),
			zap.String("mailto", ev.Mailto))
		return pub.Publish(ctx, config.EventUpdatedTopic(), ev)
	}
	if err != nil {
		return err
	}

	notice := store.CreatedNotice{
		Event:  ev.ForNotice(),
		Events: organizer.Events + 1,
		Paid:   paid,
	}
	if err := pub.Publish(ctx, config.NewEventCreatedTopic(), notice); err != nil {
		return err
	}
	log.Info("event created",
		zap.String("uid", ev.UID),
		zap.String("mailto", ev.Mailto),
		zap.Int64("dtstart", ev.DtStart))
	return nil
}

func main() { lambda.Start(handler) }
