// Command invite-verify gates invite requests coming in from the
// dashboard feed. A request only moves on when the attendee accepts mail
// from this organizer and the organizer is in good standing; bulk-flavor
// origins additionally need bulk authorization and remaining invite
// budget.
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
		return processVerify(ctx, log, st, pub, rec.Body)
	}), nil
}

func processVerify(ctx context.Context, log *zap.Logger, st *store.Store, pub *notify.Publisher, body string) error {
	var req store.InviteRequest
	if err := queue.Decode(body, &req); err != nil {
		return err
	}

	ev, err := st.Event(ctx, req.UID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("invite for unknown event",
			zap.String("uid", req.UID),
			zap.String("attendee", req.Email))
		return nil
	}
	if err != nil {
		return err
	}

	if reason, err := rejection(ctx, st, &req, ev); err != nil {
		return err
	} else if reason != "" {
		log.Warn("invite rejected",
			zap.String("uid", req.UID),
			zap.String("attendee", req.Email),
			zap.String("origin", req.Origin),
			zap.String("reason", reason))
		return nil
	}

	payload := store.InvitePayload{Request: req, Event: *ev}
	if err := pub.Publish(ctx, config.NewEventInviteTopic(), payload); err != nil {
		return err
	}
	log.Info("invite verified",
		zap.String("uid", req.UID),
		zap.String("attendee", req.Email),
		zap.String("origin", req.Origin))
	return nil
}

// rejection names the first failed check, or "" when the request may
// proceed.
func rejection(ctx context.Context, st *store.Store, req *store.InviteRequest, ev *store.Event) (string, error) {
	blocked, err := st.HasBlocked(ctx, req.Email, ev.Mailto)
	if err != nil {
		return "", err
	}
	if blocked {
		return "attendee blocked organizer", nil
	}

	suspended, err := st.IsSuspended(ctx, ev.Mailto)
	if err != nil {
		return "", err
	}
	if suspended {
		return "organizer suspended", nil
	}

	if req.Origin == "vip" || req.Origin == "bulk" {
		bulk, err := st.IsBulkSender(ctx, ev.Mailto)
		if err != nil {
			return "", err
		}
		if !bulk {
			return "organizer not authorized for bulk invites", nil
		}
		if ev.InviteLimit < 1 {
			return "invite limit exhausted", nil
		}
	}
	return "", nil
}

func main() { lambda.Start(handler) }
