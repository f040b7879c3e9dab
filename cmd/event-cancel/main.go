// Command event-cancel marks an event cancelled when its organizer sends
// a METHOD:CANCEL calendar. The cancelled record fans out downstream so
// every attendee gets told.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/notify"
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
	pub, err := notify.NewFromConfig(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	st := store.New(db, config.TableName())

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processCancel(ctx, log, st, pub, rec.Body)
	}), nil
}

func processCancel(ctx context.Context, log *zap.Logger, st *store.Store, pub *notify.Publisher, body string) error {
	var in store.Event
	if err := queue.Decode(body, &in); err != nil {
		return err
	}

	current, err := st.EventByOriginalUID(ctx, in.OriginalUID)
	if err != nil {
		return err
	}
	if current.Status == "cancelled" {
		log.Info("event already cancelled", zap.String("uid", current.UID))
		return nil
	}

	cancelled, err := st.CancelEvent(ctx, current.UID, in.DtStamp, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, config.EventCancelledTopic(), cancelled); err != nil {
		return err
	}
	log.Info("event cancelled",
		zap.String("uid", current.UID),
		zap.String("mailto", current.Mailto))
	return nil
}

func main() { lambda.Start(handler) }
