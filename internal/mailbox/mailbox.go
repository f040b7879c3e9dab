// Package mailbox fetches inbound mail that SES receipt rules dropped in
// S3.
package mailbox

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the slice of the S3 API the mailbox depends on.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

type Mailbox struct {
	s3 S3API
}

func New(api S3API) *Mailbox {
	return &Mailbox{s3: api}
}

func NewFromConfig(ctx context.Context) (*Mailbox, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return New(s3.NewFromConfig(cfg)), nil
}

// Raw returns the stored message bytes.
func (m *Mailbox) Raw(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := m.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get mail s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read mail s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}
