package store

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient records every input and serves canned items keyed by pk|sk.
type mockClient struct {
	items map[string]map[string]types.AttributeValue

	getErr      error
	putErr      error
	transactErr error

	putInputs      []*dynamodb.PutItemInput
	updateInputs   []*dynamodb.UpdateItemInput
	updateOutput   *dynamodb.UpdateItemOutput
	queryPages     []*dynamodb.QueryOutput
	queryCalls     int
	transactInputs []*dynamodb.TransactWriteItemsInput
}

func itemKey(k map[string]types.AttributeValue) string {
	pk := k["pk"].(*types.AttributeValueMemberS).Value
	sk := k["sk"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (m *mockClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &dynamodb.GetItemOutput{Item: m.items[itemKey(in.Key)]}, nil
}

func (m *mockClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInputs = append(m.putInputs, in)
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, in)
	if m.updateOutput != nil {
		return m.updateOutput, nil
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockClient) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	out := m.queryPages[m.queryCalls]
	m.queryCalls++
	return out, nil
}

func (m *mockClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.transactInputs = append(m.transactInputs, in)
	if m.transactErr != nil {
		return nil, m.transactErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func seeded(t *testing.T, pk, sk string, v any) map[string]map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	item["pk"] = str(pk)
	item["sk"] = str(sk)
	return map[string]map[string]types.AttributeValue{pk + "|" + sk: item}
}

func sampleEvent() *Event {
	return &Event{
		UID:               "7d0f2a9c41",
		OriginalUID:       "abc@google.com",
		Mailto:            "maya@example.com",
		Organizer:         "Maya Chen",
		Summary:           "Launch Day",
		DtStart:           1705312800,
		DtEnd:             1705316400,
		DtStamp:           1704875400,
		Created:           1704796800,
		Sequence:          0,
		Status:            "confirmed",
		Method:            "request",
		ProdID:            "-//google inc//google calendar 70.9054//en",
		InviteLimit:       100,
		OriginalOrganizer: "maya@example.com",
		Tenant:            "thirtyone",
	}
}

func TestEventReadsRecord(t *testing.T) {
	mock := &mockClient{items: seeded(t, "event#7d0f2a9c41", "event#7d0f2a9c41", sampleEvent())}
	s := New(mock, "thirtyone")

	ev, err := s.Event(context.Background(), "7d0f2a9c41")
	require.NoError(t, err)
	assert.Equal(t, "Launch Day", ev.Summary)
	assert.Equal(t, "maya@example.com", ev.Mailto)
	assert.Equal(t, 100, ev.InviteLimit)
}

func TestEventNotFound(t *testing.T) {
	s := New(&mockClient{items: nil}, "thirtyone")
	_, err := s.Event(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventByOriginalUID(t *testing.T) {
	items := seeded(t, "event#7d0f2a9c41", "event#7d0f2a9c41", sampleEvent())
	items["original_event#abc@google.com|original_event#abc@google.com"] = map[string]types.AttributeValue{
		"pk":     str("original_event#abc@google.com"),
		"sk":     str("original_event#abc@google.com"),
		"uid":    str("7d0f2a9c41"),
		"mailto": str("maya@example.com"),
	}
	s := New(&mockClient{items: items}, "thirtyone")

	ev, err := s.EventByOriginalUID(context.Background(), "abc@google.com")
	require.NoError(t, err)
	assert.Equal(t, "7d0f2a9c41", ev.UID)
}

func TestCreateEventTransaction(t *testing.T) {
	mock := &mockClient{}
	s := New(mock, "thirtyone")

	require.NoError(t, s.CreateEvent(context.Background(), sampleEvent()))
	require.Len(t, mock.transactInputs, 1)
	tx := mock.transactInputs[0].TransactItems
	require.Len(t, tx, 4)

	ref := tx[0].Put
	assert.Equal(t, "attribute_not_exists(pk)", aws.ToString(ref.ConditionExpression))
	assert.Equal(t, "original_event#abc@google.com", ref.Item["pk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "7d0f2a9c41", ref.Item["uid"].(*types.AttributeValueMemberS).Value)

	assert.Equal(t, "event#7d0f2a9c41", tx[1].Put.Item["pk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "event_statistics#7d0f2a9c41", tx[2].Put.Item["sk"].(*types.AttributeValueMemberS).Value)

	org := tx[3].Update
	assert.Equal(t, "organizer#maya@example.com", org.Key["pk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "SET #e = #e + :one", aws.ToString(org.UpdateExpression))
	assert.Equal(t, "events", org.ExpressionAttributeNames["#e"])
}

func TestCreateEventAlreadyExists(t *testing.T) {
	mock := &mockClient{transactErr: &types.TransactionCanceledException{
		Message: aws.String("cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
		},
	}}
	s := New(mock, "thirtyone")

	err := s.CreateEvent(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, ErrEventExists)
}

func TestUpdateEvent(t *testing.T) {
	updated, err := attributevalue.MarshalMap(sampleEvent())
	require.NoError(t, err)
	mock := &mockClient{updateOutput: &dynamodb.UpdateItemOutput{Attributes: updated}}
	s := New(mock, "thirtyone")

	_, err = s.UpdateEvent(context.Background(), "7d0f2a9c41",
		map[string]any{"summary": "New Title", "dtstart": int64(1705316400)}, 1705000000, 1705000001)
	require.NoError(t, err)

	require.Len(t, mock.updateInputs, 1)
	in := mock.updateInputs[0]
	expr := aws.ToString(in.UpdateExpression)
	assert.Contains(t, expr, "#ts = :ts")
	assert.Contains(t, expr, "#seq = #seq + :one")
	// Changed fields bind in sorted order.
	assert.Equal(t, "dtstart", in.ExpressionAttributeNames["#f0"])
	assert.Equal(t, "summary", in.ExpressionAttributeNames["#f1"])
	assert.Equal(t, "New Title", in.ExpressionAttributeValues[":v1"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestCancelEvent(t *testing.T) {
	cancelled := sampleEvent()
	cancelled.Status = "cancelled"
	cancelled.Method = "cancel"
	out, err := attributevalue.MarshalMap(cancelled)
	require.NoError(t, err)
	mock := &mockClient{updateOutput: &dynamodb.UpdateItemOutput{Attributes: out}}
	s := New(mock, "thirtyone")

	ev, err := s.CancelEvent(context.Background(), "7d0f2a9c41", 1705000000, 1705000001)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", ev.Status)

	in := mock.updateInputs[0]
	assert.Equal(t, "cancel", in.ExpressionAttributeValues[":m"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "cancelled", in.ExpressionAttributeValues[":s"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "status", in.ExpressionAttributeNames["#s"])
}

func TestListAttendeesPaginates(t *testing.T) {
	page := func(email string, more bool) *dynamodb.QueryOutput {
		item, err := attributevalue.MarshalMap(Attendee{Attendee: email, Status: "noaction"})
		require.NoError(t, err)
		out := &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}
		if more {
			out.LastEvaluatedKey = key("event#x", "attendee#"+email)
		}
		return out
	}
	mock := &mockClient{queryPages: []*dynamodb.QueryOutput{
		page("a@example.com", true),
		page("b@example.com", false),
	}}
	s := New(mock, "thirtyone")

	got, err := s.ListAttendees(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a@example.com", got[0].Attendee)
	assert.Equal(t, "b@example.com", got[1].Attendee)
	assert.Equal(t, 2, mock.queryCalls)
}

func TestRecordInviteTransaction(t *testing.T) {
	mock := &mockClient{}
	s := New(mock, "thirtyone")

	req := InviteRequest{
		Email:    "ravi@example.com",
		Name:     "Ravi Patel",
		Origin:   "vip",
		PartStat: "noaction",
		ProdID:   "31events//ses",
		UID:      "7d0f2a9c41",
	}
	require.NoError(t, s.RecordInvite(context.Background(), sampleEvent(), req, "-//31events//calendarsnack//en", 1705000000))

	tx := mock.transactInputs[0].TransactItems
	require.Len(t, tx, 5)

	att := tx[0].Put
	assert.Equal(t, "attendee#ravi@example.com", att.Item["sk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "attribute_not_exists(pk)", aws.ToString(att.ConditionExpression))
	// The record keeps the producer of the sent calendar, not the request's.
	assert.Equal(t, "-//31events//calendarsnack//en", att.Item["prodid"].(*types.AttributeValueMemberS).Value)
	history := att.Item["history"].(*types.AttributeValueMemberL)
	require.Len(t, history.Value, 1)

	limit := tx[1].Update
	assert.Equal(t, "SET #il = #il - :one", aws.ToString(limit.UpdateExpression))
	assert.Equal(t, "invite_limit", limit.ExpressionAttributeNames["#il"])

	for i, wantPK := range []string{"event#7d0f2a9c41", "organizer#maya@example.com", "system#"} {
		up := tx[2+i].Update
		assert.Equal(t, wantPK, up.Key["pk"].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, "vip", up.ExpressionAttributeNames["#ok"])
		assert.Equal(t, "31events//ses", up.ExpressionAttributeNames["#pk"])
		assert.Equal(t, "noaction", up.ExpressionAttributeNames["#rk"])
	}
}

func TestRecordInviteDuplicate(t *testing.T) {
	mock := &mockClient{transactErr: &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}}
	s := New(mock, "thirtyone")

	err := s.RecordInvite(context.Background(), sampleEvent(), InviteRequest{Email: "x@example.com"}, "-//31events//calendarsnack//en", 1)
	assert.ErrorIs(t, err, ErrAlreadyInvited)
}

func TestRecordRSVPChange(t *testing.T) {
	mock := &mockClient{}
	s := New(mock, "thirtyone")

	r := RSVP{UID: "7d0f2a9c41", Attendee: "ravi@example.com", PartStat: "accepted", ProdID: "apple", DtStamp: 1705100000}
	require.NoError(t, s.RecordRSVPChange(context.Background(), "maya@example.com", r, "noaction"))

	tx := mock.transactInputs[0].TransactItems
	require.Len(t, tx, 4)

	att := tx[0].Update
	assert.Contains(t, aws.ToString(att.UpdateExpression), "list_append(#h, :entry)")
	assert.Equal(t, "attribute_exists(pk)", aws.ToString(att.ConditionExpression))
	assert.Equal(t, "accepted", att.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value)

	shift := tx[1].Update
	assert.Equal(t, "accepted", shift.ExpressionAttributeNames["#new"])
	assert.Equal(t, "noaction", shift.ExpressionAttributeNames["#old"])
	assert.Equal(t, "system#", tx[3].Update.Key["pk"].(*types.AttributeValueMemberS).Value)
}

func TestRecordSharedRSVP(t *testing.T) {
	mock := &mockClient{}
	s := New(mock, "thirtyone")

	r := RSVP{UID: "7d0f2a9c41", Attendee: "friend@example.com", PartStat: "accepted", ProdID: "apple", DtStamp: 1705100000}
	require.NoError(t, s.RecordSharedRSVP(context.Background(), "maya@example.com", r))

	tx := mock.transactInputs[0].TransactItems
	require.Len(t, tx, 4)
	att := tx[0].Put
	assert.Equal(t, "shared", att.Item["origin"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "shared", tx[1].Update.ExpressionAttributeNames["#ok"])
}

func TestEnsureOrganizerStatisticsCreates(t *testing.T) {
	mock := &mockClient{}
	s := New(mock, "thirtyone")

	st, err := s.EnsureOrganizerStatistics(context.Background(), "maya@example.com", "thirtyone")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Events)
	assert.Equal(t, 0, st.RSVP["accepted"])

	require.Len(t, mock.putInputs, 1)
	in := mock.putInputs[0]
	assert.Equal(t, "organizer#maya@example.com", in.Item["pk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "attribute_not_exists(pk)", aws.ToString(in.ConditionExpression))
}

func TestEnsureOrganizerStatisticsExisting(t *testing.T) {
	existing := OrganizerStatistics{Statistics: NewStatistics("thirtyone", "maya@example.com"), Events: 3}
	mock := &mockClient{items: seeded(t, "organizer#maya@example.com", "organizer_statistics#maya@example.com", existing)}
	s := New(mock, "thirtyone")

	st, err := s.EnsureOrganizerStatistics(context.Background(), "maya@example.com", "thirtyone")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Events)
	assert.Empty(t, mock.putInputs)
}

func TestStandingMarkers(t *testing.T) {
	mock := &mockClient{}
	s := New(mock, "thirtyone")
	ctx := context.Background()

	require.NoError(t, s.GrantSubscription(ctx, "maya@example.com"))
	require.NoError(t, s.AuthorizeBulkSender(ctx, "maya@example.com"))
	require.NoError(t, s.SuspendOrganizer(ctx, "bad@example.com"))

	require.Len(t, mock.putInputs, 3)
	for i, wantSK := range []string{"subscription#maya@example.com", "bulk#maya@example.com", "suspended#bad@example.com"} {
		item := mock.putInputs[i].Item
		// Markers are bare key rows.
		assert.Len(t, item, 2)
		assert.Equal(t, wantSK, item["sk"].(*types.AttributeValueMemberS).Value)
	}
}

func TestSuspensionAndBlocks(t *testing.T) {
	items := map[string]map[string]types.AttributeValue{
		"organizer#bad@example.com|suspended#bad@example.com":  key("organizer#bad@example.com", "suspended#bad@example.com"),
		"attendee#ravi@example.com|block#spam@example.com":     key("attendee#ravi@example.com", "block#spam@example.com"),
		"organizer#maya@example.com|bulk#maya@example.com":     key("organizer#maya@example.com", "bulk#maya@example.com"),
		"organizer#maya@example.com|subscription#maya@example.com": key("organizer#maya@example.com", "subscription#maya@example.com"),
	}
	s := New(&mockClient{items: items}, "thirtyone")
	ctx := context.Background()

	suspended, err := s.IsSuspended(ctx, "bad@example.com")
	require.NoError(t, err)
	assert.True(t, suspended)

	suspended, err = s.IsSuspended(ctx, "maya@example.com")
	require.NoError(t, err)
	assert.False(t, suspended)

	blocked, err := s.HasBlocked(ctx, "ravi@example.com", "spam@example.com")
	require.NoError(t, err)
	assert.True(t, blocked)

	bulk, err := s.IsBulkSender(ctx, "maya@example.com")
	require.NoError(t, err)
	assert.True(t, bulk)

	paid, err := s.HasSubscription(ctx, "maya@example.com")
	require.NoError(t, err)
	assert.True(t, paid)

	paid, err = s.HasSubscription(ctx, "bad@example.com")
	require.NoError(t, err)
	assert.False(t, paid)
}
