// Command mail-bulk-intake lets authorized organizers invite a whole
// guest list by mailing a CSV sheet. Each usable row becomes a verified
// invite payload; the sender gets a status mail naming every row that
// did not make it and why.
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/bulk"
	"github.com/thirtyone/event-management/internal/config"
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
	sender, err := mail.NewSenderClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	db, err := store.NewClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	st := store.New(db, config.TableName())

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processSheet(ctx, log, st, box, pub, sender, rec.Body)
	}), nil
}

func processSheet(ctx context.Context, log *zap.Logger, st *store.Store, box *mailbox.Mailbox, pub *notify.Publisher, sender *mail.Sender, body string) error {
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
		log.Warn("unreadable bulk mail", zap.String("key", obj.Key), zap.Error(err))
		return nil
	}

	authorized, err := st.IsBulkSender(ctx, in.From)
	if err != nil {
		return err
	}
	if !authorized {
		log.Warn("bulk mail from unauthorized sender", zap.String("from", in.From))
		return nil
	}

	if len(in.CSV) == 0 {
		log.Warn("bulk mail without csv attachment", zap.String("from", in.From))
		return nil
	}
	sheet, err := bulk.Parse(in.CSV)
	if err != nil {
		log.Warn("unreadable csv sheet", zap.String("from", in.From), zap.Error(err))
		return nil
	}

	rejected := append([]bulk.Rejected{}, sheet.Rejected...)
	queued := 0
	cache := map[string]eventCheck{}

	for _, row := range sheet.Rows {
		ev, reason, err := eventFor(ctx, st, cache, in.From, row.UID)
		if err != nil {
			return err
		}
		if reason == "" {
			blocked, err := st.HasBlocked(ctx, row.Email, in.From)
			if err != nil {
				return err
			}
			if blocked {
				reason = fmt.Sprintf("%s does not accept your invites", row.Email)
			}
		}
		if reason != "" {
			rejected = append(rejected, bulk.Rejected{Line: row.Line, Reason: reason})
			continue
		}

		name := row.Name
		if name == "" {
			name = "customer"
		}
		payload := store.InvitePayload{
			Request: store.InviteRequest{
				Email:    row.Email,
				Name:     name,
				Origin:   "bulk",
				PartStat: "noaction",
				ProdID:   "31events//ses",
				UID:      row.UID,
			},
			Event: *ev,
		}
		if err := pub.Publish(ctx, config.NewEventInviteTopic(), payload); err != nil {
			return err
		}
		queued++
	}

	report := bulk.Report(queued, rejected)
	err = sender.Send(ctx, config.SystemEmail(), in.From,
		"calendarsnack.com Bulk Invite Status", "", report)
	if err != nil {
		return err
	}
	log.Info("bulk sheet processed",
		zap.String("from", in.From),
		zap.Int("queued", queued),
		zap.Int("rejected", len(rejected)))
	return nil
}

type eventCheck struct {
	ev     *store.Event
	reason string
}

// eventFor resolves a sheet row's event once per uid: it must exist and
// belong to the sender.
func eventFor(ctx context.Context, st *store.Store, cache map[string]eventCheck, sender, uid string) (*store.Event, string, error) {
	if c, ok := cache[uid]; ok {
		return c.ev, c.reason, nil
	}

	ev, err := st.Event(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		c := eventCheck{reason: "unknown event " + uid}
		cache[uid] = c
		return nil, c.reason, nil
	}
	if err != nil {
		return nil, "", err
	}
	if ev.Mailto != sender {
		c := eventCheck{reason: "event " + uid + " is not yours"}
		cache[uid] = c
		return nil, c.reason, nil
	}

	cache[uid] = eventCheck{ev: ev}
	return ev, "", nil
}

func main() { lambda.Start(handler) }
