package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const snsBody = `{
  "Type": "Notification",
  "MessageId": "a1b2c3",
  "TopicArn": "arn:aws:sns:us-west-2:123456789012:new-event-request",
  "Message": "{\"uid\":\"7d0f2a9c41\",\"summary\":\"Launch Day\"}",
  "Timestamp": "2024-01-15T10:00:00.000Z"
}`

func TestPayload(t *testing.T) {
	p, err := Payload(snsBody)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uid":"7d0f2a9c41","summary":"Launch Day"}`, string(p))
}

func TestPayloadRejectsJunk(t *testing.T) {
	_, err := Payload("not json at all")
	assert.Error(t, err)

	_, err = Payload(`{"Type":"Notification"}`)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	var got struct {
		UID     string `json:"uid"`
		Summary string `json:"summary"`
	}
	require.NoError(t, Decode(snsBody, &got))
	assert.Equal(t, "7d0f2a9c41", got.UID)
	assert.Equal(t, "Launch Day", got.Summary)
}

func TestMailObject(t *testing.T) {
	body := `{
	  "Type": "Notification",
	  "Message": "{\"Records\":[{\"eventSource\":\"aws:s3\",\"s3\":{\"bucket\":{\"name\":\"snack-inbound\"},\"object\":{\"key\":\"requests/abc123def\"}}}]}"
	}`

	obj, err := MailObject(body)
	require.NoError(t, err)
	assert.Equal(t, "snack-inbound", obj.Bucket)
	assert.Equal(t, "requests/abc123def", obj.Key)
	assert.Equal(t, "abc123def", obj.UID())
}

func TestMailObjectTakesLastRecord(t *testing.T) {
	body := `{
	  "Message": "{\"Records\":[{\"s3\":{\"bucket\":{\"name\":\"a\"},\"object\":{\"key\":\"x\"}}},{\"s3\":{\"bucket\":{\"name\":\"b\"},\"object\":{\"key\":\"y\"}}}]}"
	}`

	obj, err := MailObject(body)
	require.NoError(t, err)
	assert.Equal(t, "b", obj.Bucket)
	assert.Equal(t, "y", obj.Key)
}

func TestMailObjectEmptyRecords(t *testing.T) {
	_, err := MailObject(`{"Message": "{\"Records\":[]}"}`)
	assert.Error(t, err)
}

func TestObjectUIDLowercasesKey(t *testing.T) {
	obj := S3Object{Bucket: "b", Key: "requests/ABC123DEF"}
	assert.Equal(t, "abc123def", obj.UID())
}

func TestEachReportsOnlyFailures(t *testing.T) {
	ev := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: "ok"},
		{MessageId: "m2", Body: "boom"},
		{MessageId: "m3", Body: "ok"},
	}}

	resp := Each(context.Background(), ev, zap.NewNop(), func(_ context.Context, rec events.SQSMessage) error {
		if rec.Body == "boom" {
			return errors.New("no good")
		}
		return nil
	})

	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m2", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestEachEmptyBatch(t *testing.T) {
	resp := Each(context.Background(), events.SQSEvent{}, zap.NewNop(), func(context.Context, events.SQSMessage) error {
		t.Fatal("fn should not run")
		return nil
	})
	assert.Empty(t, resp.BatchItemFailures)
}
