package store

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	systemPK      = "system#"
	systemStatsSK = "system_statistics#"
)

func eventPK(uid string) string            { return "event#" + uid }
func eventStatsSK(uid string) string       { return "event_statistics#" + uid }
func attendeeSK(email string) string       { return "attendee#" + email }
func originalEventPK(uid string) string    { return "original_event#" + uid }
func organizerPK(email string) string      { return "organizer#" + email }
func organizerStatsSK(email string) string { return "organizer_statistics#" + email }
func subscriptionSK(email string) string   { return "subscription#" + email }
func suspendedSK(email string) string      { return "suspended#" + email }
func bulkSK(email string) string           { return "bulk#" + email }
func attendeePK(email string) string       { return "attendee#" + email }
func blockSK(organizer string) string      { return "block#" + organizer }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func num(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}
