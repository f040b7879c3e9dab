// Command cancel-stage fans a cancelled event out into one cancellation
// notice per invited attendee, so sending happens at queue pace instead
// of inside one long-running invocation.
package main

import (
	"context"

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
		return processStage(ctx, log, st, pub, rec.Body)
	}), nil
}

func processStage(ctx context.Context, log *zap.Logger, st *store.Store, pub *notify.Publisher, body string) error {
	var ev store.Event
	if err := queue.Decode(body, &ev); err != nil {
		return err
	}

	attendees, err := st.ListAttendees(ctx, ev.UID)
	if err != nil {
		return err
	}

	topic := config.EventCancellationRequestTopic()
	for _, a := range attendees {
		name := a.Name
		if name == "" {
			name = "customer"
		}
		notice := store.CancellationNotice{Event: ev, Email: a.Attendee, Name: name}
		if err := pub.Publish(ctx, topic, notice); err != nil {
			return err
		}
	}
	log.Info("cancellations staged",
		zap.String("uid", ev.UID),
		zap.Int("attendees", len(attendees)))
	return nil
}

func main() { lambda.Start(handler) }
