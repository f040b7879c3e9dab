// Package notify publishes pipeline messages. Every topic gets the same
// treatment: the payload is marshaled once and wrapped in the json message
// structure, so SQS subscribers receive exactly the payload bytes in the
// notification's Message field.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	json "github.com/goccy/go-json"
)

// SNSAPI is the slice of the SNS API the publisher depends on.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ SNSAPI = (*sns.Client)(nil)

type Publisher struct {
	sns SNSAPI
}

func New(api SNSAPI) *Publisher {
	return &Publisher{sns: api}
}

func NewFromConfig(ctx context.Context) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return New(sns.NewFromConfig(cfg)), nil
}

// Publish sends payload to the topic.
func (p *Publisher) Publish(ctx context.Context, topicARN string, payload any) error {
	if topicARN == "" {
		return fmt.Errorf("publish: empty topic arn")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	wrapper, err := json.Marshal(map[string]string{"default": string(body)})
	if err != nil {
		return fmt.Errorf("marshal message wrapper: %w", err)
	}
	_, err = p.sns.Publish(ctx, &sns.PublishInput{
		TopicArn:         aws.String(topicARN),
		Message:          aws.String(string(wrapper)),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topicARN, err)
	}
	return nil
}
