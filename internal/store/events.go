package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (s *Store) Event(ctx context.Context, uid string) (*Event, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(eventPK(uid), eventPK(uid)),
	})
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", uid, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("event %s: %w", uid, ErrNotFound)
	}
	var ev Event
	if err := attributevalue.UnmarshalMap(out.Item, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event %s: %w", uid, err)
	}
	return &ev, nil
}

// EventByOriginalUID resolves the uid a client put in its calendar to the
// canonical event via the ref row written at creation.
func (s *Store) EventByOriginalUID(ctx context.Context, originalUID string) (*Event, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(originalEventPK(originalUID), originalEventPK(originalUID)),
	})
	if err != nil {
		return nil, fmt.Errorf("get original event ref %s: %w", originalUID, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("original event %s: %w", originalUID, ErrNotFound)
	}
	var ref struct {
		UID string `dynamodbav:"uid"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &ref); err != nil {
		return nil, fmt.Errorf("unmarshal ref %s: %w", originalUID, err)
	}
	return s.Event(ctx, ref.UID)
}

// CreateEvent writes the event, its zeroed statistics row and the
// original-uid ref in one transaction and bumps the organizer's event
// count. A ref that already exists means the organizer re-sent an event
// they already created: ErrEventExists.
func (s *Store) CreateEvent(ctx context.Context, ev *Event) error {
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.UID, err)
	}
	item["pk"] = str(eventPK(ev.UID))
	item["sk"] = str(eventPK(ev.UID))

	stats, err := attributevalue.MarshalMap(NewStatistics(ev.Tenant, ev.Mailto))
	if err != nil {
		return fmt.Errorf("marshal statistics %s: %w", ev.UID, err)
	}
	stats["pk"] = str(eventPK(ev.UID))
	stats["sk"] = str(eventStatsSK(ev.UID))

	ref := map[string]types.AttributeValue{
		"pk":     str(originalEventPK(ev.OriginalUID)),
		"sk":     str(originalEventPK(ev.OriginalUID)),
		"uid":    str(ev.UID),
		"mailto": str(ev.Mailto),
	}

	_, err = s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.table),
				Item:                ref,
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			}},
			{Put: &types.Put{TableName: aws.String(s.table), Item: item}},
			{Put: &types.Put{TableName: aws.String(s.table), Item: stats}},
			{Update: &types.Update{
				TableName:                 aws.String(s.table),
				Key:                       key(organizerPK(ev.Mailto), organizerStatsSK(ev.Mailto)),
				UpdateExpression:          aws.String("SET #e = #e + :one"),
				ExpressionAttributeNames:  map[string]string{"#e": "events"},
				ExpressionAttributeValues: map[string]types.AttributeValue{":one": num(1)},
			}},
		},
	})
	if err != nil {
		if isConditionCanceled(err) {
			return fmt.Errorf("event %s (original %s): %w", ev.UID, ev.OriginalUID, ErrEventExists)
		}
		return fmt.Errorf("create event %s: %w", ev.UID, err)
	}
	return nil
}

// UpdateEvent applies the changed fields plus the bookkeeping every update
// carries (dtstamp, last_modified, sequence bump) and returns the record
// as stored.
func (s *Store) UpdateEvent(ctx context.Context, uid string, changed map[string]any, dtstamp, now int64) (*Event, error) {
	names := map[string]string{
		"#ts":  "dtstamp",
		"#lm":  "last_modified",
		"#seq": "sequence",
	}
	values := map[string]types.AttributeValue{
		":ts":  num(dtstamp),
		":lm":  num(now),
		":one": num(1),
	}
	sets := []string{"#ts = :ts", "#lm = :lm", "#seq = #seq + :one"}

	fields := make([]string, 0, len(changed))
	for k := range changed {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for i, k := range fields {
		av, err := attributevalue.Marshal(changed[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		f := fmt.Sprintf("#f%d", i)
		v := fmt.Sprintf(":v%d", i)
		names[f] = k
		values[v] = av
		sets = append(sets, f+" = "+v)
	}

	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(eventPK(uid), eventPK(uid)),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", uid, err)
	}
	var ev Event
	if err := attributevalue.UnmarshalMap(out.Attributes, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal updated event %s: %w", uid, err)
	}
	return &ev, nil
}

// CancelEvent marks the record cancelled and returns it as stored. The
// sequence bump tells calendar clients the cancellation supersedes the
// invite they hold.
func (s *Store) CancelEvent(ctx context.Context, uid string, dtstamp, now int64) (*Event, error) {
	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       key(eventPK(uid), eventPK(uid)),
		UpdateExpression: aws.String(
			"SET #m = :m, #s = :s, #ts = :ts, #lm = :lm, #seq = #seq + :one"),
		ExpressionAttributeNames: map[string]string{
			"#m":   "method",
			"#s":   "status",
			"#ts":  "dtstamp",
			"#lm":  "last_modified",
			"#seq": "sequence",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m":   str("cancel"),
			":s":   str("cancelled"),
			":ts":  num(dtstamp),
			":lm":  num(now),
			":one": num(1),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel event %s: %w", uid, err)
	}
	var ev Event
	if err := attributevalue.UnmarshalMap(out.Attributes, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal cancelled event %s: %w", uid, err)
	}
	return &ev, nil
}

func isConditionCanceled(err error) bool {
	var tc *types.TransactionCanceledException
	if !errors.As(err, &tc) {
		return false
	}
	for _, r := range tc.CancellationReasons {
		if aws.ToString(r.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
