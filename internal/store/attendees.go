package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (s *Store) Attendee(ctx context.Context, uid, email string) (*Attendee, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(eventPK(uid), attendeeSK(email)),
	})
	if err != nil {
		return nil, fmt.Errorf("get attendee %s/%s: %w", uid, email, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("attendee %s/%s: %w", uid, email, ErrNotFound)
	}
	var a Attendee
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal attendee %s/%s: %w", uid, email, err)
	}
	return &a, nil
}

// ListAttendees pages through every attendee row of an event.
func (s *Store) ListAttendees(ctx context.Context, uid string) ([]Attendee, error) {
	var (
		attendees []Attendee
		start     map[string]types.AttributeValue
	)
	for {
		out, err := s.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :a)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": str(eventPK(uid)),
				":a":  str("attendee#"),
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query attendees %s: %w", uid, err)
		}
		var page []Attendee
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal attendees %s: %w", uid, err)
		}
		attendees = append(attendees, page...)
		if out.LastEvaluatedKey == nil {
			return attendees, nil
		}
		start = out.LastEvaluatedKey
	}
}

// RecordInvite writes the attendee record, spends one invite from the
// event's budget and bumps the event, organizer and system counters, all
// in one transaction. The attendee row carries prodid, the producer id of
// the calendar actually sent, while the statistics count req.ProdID, the
// producer the request came in under. An attendee row that already exists
// cancels the whole write: ErrAlreadyInvited.
func (s *Store) RecordInvite(ctx context.Context, ev *Event, req InviteRequest, prodid string, now int64) error {
	att := Attendee{
		Attendee: req.Email,
		Mailto:   ev.Mailto,
		Name:     req.Name,
		Created:  now,
		Status:   req.PartStat,
		Origin:   req.Origin,
		ProdID:   prodid,
		History:  []HistoryEntry{{PartStat: req.PartStat, At: now, ProdID: prodid}},
	}
	item, err := attributevalue.MarshalMap(att)
	if err != nil {
		return fmt.Errorf("marshal attendee %s/%s: %w", ev.UID, req.Email, err)
	}
	item["pk"] = str(eventPK(ev.UID))
	item["sk"] = str(attendeeSK(req.Email))

	_, err = s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.table),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			}},
			{Update: &types.Update{
				TableName:                 aws.String(s.table),
				Key:                       key(eventPK(ev.UID), eventPK(ev.UID)),
				UpdateExpression:          aws.String("SET #il = #il - :one"),
				ExpressionAttributeNames:  map[string]string{"#il": "invite_limit"},
				ExpressionAttributeValues: map[string]types.AttributeValue{":one": num(1)},
			}},
			s.statsAdd(eventPK(ev.UID), eventStatsSK(ev.UID), req.Origin, req.ProdID, req.PartStat),
			s.statsAdd(organizerPK(ev.Mailto), organizerStatsSK(ev.Mailto), req.Origin, req.ProdID, req.PartStat),
			s.statsAdd(systemPK, systemStatsSK, req.Origin, req.ProdID, req.PartStat),
		},
	})
	if err != nil {
		if isConditionCanceled(err) {
			return fmt.Errorf("invite %s/%s: %w", ev.UID, req.Email, ErrAlreadyInvited)
		}
		return fmt.Errorf("record invite %s/%s: %w", ev.UID, req.Email, err)
	}
	return nil
}

// RecordRSVPChange moves an attendee from their previous participation
// state to the replied one and shifts the three rsvp counters with them.
func (s *Store) RecordRSVPChange(ctx context.Context, organizer string, r RSVP, previous string) error {
	entry, err := attributevalue.Marshal(HistoryEntry{PartStat: r.PartStat, At: r.DtStamp, ProdID: r.ProdID})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	_, err = s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName: aws.String(s.table),
				Key:       key(eventPK(r.UID), attendeeSK(r.Attendee)),
				UpdateExpression: aws.String(
					"SET #c = :ts, #p = :prodid, #s = :status, #h = list_append(#h, :entry)"),
				ExpressionAttributeNames: map[string]string{
					"#c": "created",
					"#p": "prodid",
					"#s": "status",
					"#h": "history",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":ts":     num(r.DtStamp),
					":prodid": str(r.ProdID),
					":status": str(r.PartStat),
					":entry":  &types.AttributeValueMemberL{Value: []types.AttributeValue{entry}},
				},
				ConditionExpression: aws.String("attribute_exists(pk)"),
			}},
			s.statsShift(eventPK(r.UID), eventStatsSK(r.UID), previous, r.PartStat),
			s.statsShift(organizerPK(organizer), organizerStatsSK(organizer), previous, r.PartStat),
			s.statsShift(systemPK, systemStatsSK, previous, r.PartStat),
		},
	})
	if err != nil {
		return fmt.Errorf("record rsvp %s/%s: %w", r.UID, r.Attendee, err)
	}
	return nil
}

// RecordSharedRSVP handles a reply from an address the event never
// invited, which happens when an invite gets forwarded. The attendee is
// recorded under the shared origin.
func (s *Store) RecordSharedRSVP(ctx context.Context, organizer string, r RSVP) error {
	att := Attendee{
		Attendee: r.Attendee,
		Mailto:   organizer,
		Name:     "",
		Created:  r.DtStamp,
		Status:   r.PartStat,
		Origin:   "shared",
		ProdID:   r.ProdID,
		History:  []HistoryEntry{{PartStat: r.PartStat, At: r.DtStamp, ProdID: r.ProdID}},
	}
	item, err := attributevalue.MarshalMap(att)
	if err != nil {
		return fmt.Errorf("marshal shared attendee %s/%s: %w", r.UID, r.Attendee, err)
	}
	item["pk"] = str(eventPK(r.UID))
	item["sk"] = str(attendeeSK(r.Attendee))

	_, err = s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.table),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			}},
			s.statsAdd(eventPK(r.UID), eventStatsSK(r.UID), "shared", r.ProdID, r.PartStat),
			s.statsAdd(organizerPK(organizer), organizerStatsSK(organizer), "shared", r.ProdID, r.PartStat),
			s.statsAdd(systemPK, systemStatsSK, "shared", r.ProdID, r.PartStat),
		},
	})
	if err != nil {
		if isConditionCanceled(err) {
			return fmt.Errorf("shared rsvp %s/%s: %w", r.UID, r.Attendee, ErrAlreadyInvited)
		}
		return fmt.Errorf("record shared rsvp %s/%s: %w", r.UID, r.Attendee, err)
	}
	return nil
}
