// Command organizer-notifier mails organizers about their pipeline
// moments. One binary serves every flow; the deployment decides which by
// pointing TEMPLATE_KEY, SUBJECT and SENDER at the right template and
// queue, so created, updated, limit-reached and failed notices all run
// the same code.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/thirtyone/event-management/internal/config"
	"github.com/thirtyone/event-management/internal/mail"
	"github.com/thirtyone/event-management/internal/observability"
	"github.com/thirtyone/event-management/internal/queue"
	"github.com/thirtyone/event-management/internal/store"
	"github.com/thirtyone/event-management/internal/templates"
)

func handler(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log := observability.Logger()

	ts, err := templates.NewStoreClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	sender, err := mail.NewSenderClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}
	tpl, err := ts.Get(ctx, config.TemplateBucket(), config.TemplateKey())
	if err != nil {
		return events.SQSEventResponse{}, err
	}

	return queue.Each(ctx, ev, log, func(ctx context.Context, rec events.SQSMessage) error {
		return processNotice(ctx, log, sender, tpl, rec.Body)
	}), nil
}

// processNotice renders and sends one notice. Every flow's payload
// decodes into CreatedNotice: the failure notice fills only mailto and
// the templates for it reference nothing else.
func processNotice(ctx context.Context, log *zap.Logger, sender *mail.Sender, tpl, body string) error {
	var notice store.CreatedNotice
	if err := queue.Decode(body, &notice); err != nil {
		return err
	}
	if notice.Mailto == "" {
		log.Warn("notice without recipient")
		return nil
	}

	name := notice.Organizer
	if name == "" {
		name = notice.Mailto
	}
	html := templates.Render(tpl, templates.Fields{
		Mailto:  name,
		Summary: notice.Summary,
		UID:     notice.UID,
		Events:  notice.Events,
		Limit:   config.EventLimit(),
	})

	err := sender.Send(ctx, config.Sender(), notice.Mailto, config.Subject(), html, "")
	if err != nil {
		return err
	}
	log.Info("organizer notified",
		zap.String("mailto", notice.Mailto),
		zap.String("uid", notice.UID))
	return nil
}

func main() { lambda.Start(handler) }
