// Package store reads and writes the single calendarsnack DynamoDB table.
// Every entity shares the table under prefixed pk/sk pairs; writes that
// must stay consistent (event creation, invites, RSVPs) go through
// transactions.
package store

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrEventExists    = errors.New("event already exists")
	ErrAlreadyInvited = errors.New("attendee already invited")
)

// Client is the slice of the DynamoDB API the store depends on.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

type Store struct {
	db    Client
	table string
}

func New(db Client, table string) *Store {
	return &Store{db: db, table: table}
}

// NewClient builds the SDK client. In Lambda this picks up the execution
// role credentials automatically.
func NewClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
}
