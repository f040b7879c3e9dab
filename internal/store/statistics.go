package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (s *Store) EventStatistics(ctx context.Context, uid string) (*Statistics, error) {
	return s.statistics(ctx, eventPK(uid), eventStatsSK(uid))
}

func (s *Store) SystemStatistics(ctx context.Context) (*Statistics, error) {
	return s.statistics(ctx, systemPK, systemStatsSK)
}

func (s *Store) statistics(ctx context.Context, pk, sk string) (*Statistics, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(pk, sk),
	})
	if err != nil {
		return nil, fmt.Errorf("get statistics %s: %w", pk, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("statistics %s: %w", pk, ErrNotFound)
	}
	var st Statistics
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return nil, fmt.Errorf("unmarshal statistics %s: %w", pk, err)
	}
	return &st, nil
}

// EnsureSystemStatistics seeds the system-wide counter row if no one has
// yet. Deploys call this once through snackctl.
func (s *Store) EnsureSystemStatistics(ctx context.Context, tenant string) error {
	item, err := attributevalue.MarshalMap(NewStatistics(tenant, ""))
	if err != nil {
		return fmt.Errorf("marshal system statistics: %w", err)
	}
	item["pk"] = str(systemPK)
	item["sk"] = str(systemStatsSK)

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil
		}
		return fmt.Errorf("put system statistics: %w", err)
	}
	return nil
}

// statsAdd is the transactional increment applied to a counter row when a
// new attendee lands: total, origin, producer and rsvp-state counters in
// one expression. Map leaves are seeded on first touch.
func (s *Store) statsAdd(pk, sk, origin, prodid, partstat string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName: aws.String(s.table),
		Key:       key(pk, sk),
		UpdateExpression: aws.String(
			"SET #a = if_not_exists(#a, :zero) + :one, " +
				"#o.#ok = if_not_exists(#o.#ok, :zero) + :one, " +
				"#p.#pk = if_not_exists(#p.#pk, :zero) + :one, " +
				"#r.#rk = if_not_exists(#r.#rk, :zero) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#a":  "attendees",
			"#o":  "origin",
			"#ok": origin,
			"#p":  "prodid",
			"#pk": prodid,
			"#r":  "rsvp",
			"#rk": partstat,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  num(1),
			":zero": num(0),
		},
	}}
}

// statsShift moves one attendee between rsvp states on a counter row.
func (s *Store) statsShift(pk, sk, previous, next string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName: aws.String(s.table),
		Key:       key(pk, sk),
		UpdateExpression: aws.String(
			"SET #r.#new = if_not_exists(#r.#new, :zero) + :one, #r.#old = #r.#old - :one"),
		ExpressionAttributeNames: map[string]string{
			"#r":   "rsvp",
			"#new": next,
			"#old": previous,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  num(1),
			":zero": num(0),
		},
	}}
}
