// Command event-update applies an organizer's re-sent calendar to the
// stored event. Only the fields an organizer can actually edit in their
// client are compared; an identical re-send is a no-op.
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
		return processUpdate(ctx, log, st, pub, rec.Body)
	}), nil
}

func processUpdate(ctx context.Context, log *zap.Logger, st *store.Store, pub *notify.Publisher, body string) error {
	var in store.Event
	if err := queue.Decode(body, &in); err != nil {
		return err
	}

	// The organizer's client only knows its own UID; resolve the record
	// through the original-uid reference written at creation.
	current, err := st.EventByOriginalUID(ctx, in.OriginalUID)
	if err != nil {
		return err
	}

	changed := diff(current, &in)
	if len(changed) == 0 {
		log.Info("update without changes", zap.String("uid", current.UID))
		return nil
	}

	updated, err := st.UpdateEvent(ctx, current.UID, changed, in.DtStamp, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, config.EventUpdatedTopic(), updated); err != nil {
		return err
	}
	log.Info("event updated",
		zap.String("uid", current.UID),
		zap.String("mailto", current.Mailto),
		zap.Int("fields", len(changed)))
	return nil
}

func diff(current, in *store.Event) map[string]any {
	changed := map[string]any{}
	set := func(name string, from, to any) {
		if from != to {
			changed[name] = to
		}
	}
	set("summary", current.Summary, in.Summary)
	set("summary_html", current.SummaryHTML, in.SummaryHTML)
	set("location", current.Location, in.Location)
	set("location_html", current.LocationHTML, in.LocationHTML)
	set("description", current.Description, in.Description)
	set("description_html", current.DescriptionHTML, in.DescriptionHTML)
	set("dtstart", current.DtStart, in.DtStart)
	set("dtend", current.DtEnd, in.DtEnd)
	return changed
}

func main() { lambda.Start(handler) }
