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

func (s *Store) exists(ctx context.Context, pk, sk string) (bool, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(pk, sk),
	})
	if err != nil {
		return false, err
	}
	return len(out.Item) > 0, nil
}

// Standing is recorded as bare marker rows; only their presence matters.
func (s *Store) putMarker(ctx context.Context, pk, sk string) error {
	_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      key(pk, sk),
	})
	return err
}

// GrantSubscription puts the organizer on the paid plan.
func (s *Store) GrantSubscription(ctx context.Context, email string) error {
	if err := s.putMarker(ctx, organizerPK(email), subscriptionSK(email)); err != nil {
		return fmt.Errorf("put subscription %s: %w", email, err)
	}
	return nil
}

// AuthorizeBulkSender lets the organizer mail CSV invite batches.
func (s *Store) AuthorizeBulkSender(ctx context.Context, email string) error {
	if err := s.putMarker(ctx, organizerPK(email), bulkSK(email)); err != nil {
		return fmt.Errorf("put bulk authorization %s: %w", email, err)
	}
	return nil
}

// SuspendOrganizer shuts the organizer off.
func (s *Store) SuspendOrganizer(ctx context.Context, email string) error {
	if err := s.putMarker(ctx, organizerPK(email), suspendedSK(email)); err != nil {
		return fmt.Errorf("put suspension %s: %w", email, err)
	}
	return nil
}

// IsSuspended reports whether the organizer has been shut off.
func (s *Store) IsSuspended(ctx context.Context, email string) (bool, error) {
	ok, err := s.exists(ctx, organizerPK(email), suspendedSK(email))
	if err != nil {
		return false, fmt.Errorf("get suspension %s: %w", email, err)
	}
	return ok, nil
}

// HasSubscription reports whether the organizer is on a paid plan.
func (s *Store) HasSubscription(ctx context.Context, email string) (bool, error) {
	ok, err := s.exists(ctx, organizerPK(email), subscriptionSK(email))
	if err != nil {
		return false, fmt.Errorf("get subscription %s: %w", email, err)
	}
	return ok, nil
}

// IsBulkSender reports whether the organizer may mail CSV invite batches.
func (s *Store) IsBulkSender(ctx context.Context, email string) (bool, error) {
	ok, err := s.exists(ctx, organizerPK(email), bulkSK(email))
	if err != nil {
		return false, fmt.Errorf("get bulk authorization %s: %w", email, err)
	}
	return ok, nil
}

// HasBlocked reports whether the attendee has blocked mail from the
// organizer.
func (s *Store) HasBlocked(ctx context.Context, attendee, organizer string) (bool, error) {
	ok, err := s.exists(ctx, attendeePK(attendee), blockSK(organizer))
	if err != nil {
		return false, fmt.Errorf("get block %s/%s: %w", attendee, organizer, err)
	}
	return ok, nil
}

func (s *Store) OrganizerStatistics(ctx context.Context, email string) (*OrganizerStatistics, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(organizerPK(email), organizerStatsSK(email)),
	})
	if err != nil {
		return nil, fmt.Errorf("get organizer statistics %s: %w", email, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("organizer statistics %s: %w", email, ErrNotFound)
	}
	var st OrganizerStatistics
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return nil, fmt.Errorf("unmarshal organizer statistics %s: %w", email, err)
	}
	return &st, nil
}

// EnsureOrganizerStatistics returns the organizer's counter row, creating
// a zeroed one the first time an organizer shows up.
func (s *Store) EnsureOrganizerStatistics(ctx context.Context, email, tenant string) (*OrganizerStatistics, error) {
	st, err := s.OrganizerStatistics(ctx, email)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	fresh := OrganizerStatistics{Statistics: NewStatistics(tenant, email)}
	item, err := attributevalue.MarshalMap(fresh)
	if err != nil {
		return nil, fmt.Errorf("marshal organizer statistics %s: %w", email, err)
	}
	item["pk"] = str(organizerPK(email))
	item["sk"] = str(organizerStatsSK(email))

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			// Lost a race with a parallel worker; the row is there now.
			return s.OrganizerStatistics(ctx, email)
		}
		return nil, fmt.Errorf("put organizer statistics %s: %w", email, err)
	}
	return &fresh, nil
}
