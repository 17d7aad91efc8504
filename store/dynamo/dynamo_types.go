package dynamo

import (
	"strings"

	"github.com/zlnvch/cipherchat/models"
)

type dynamoModerator struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Id         string `dynamodbav:"Id"`
	Provider   string `dynamodbav:"Provider"`
	ProviderId string `dynamodbav:"ProviderId"`
	Username   string `dynamodbav:"Username"`
	Role       string `dynamodbav:"Role"`
	Created    int64  `dynamodbav:"Created"`
}

// Map domain Moderator -> Dynamo
func moderatorToDynamo(m models.Moderator) dynamoModerator {
	return dynamoModerator{
		PK:         "MOD#" + m.Provider + "#" + m.ProviderId,
		SK:         "PROFILE",
		Id:         m.Id,
		Provider:   m.Provider,
		ProviderId: m.ProviderId,
		Username:   m.Username,
		Role:       m.Role,
		Created:    m.Created,
	}
}

// Map Dynamo -> domain Moderator
func moderatorFromDynamo(dm dynamoModerator) models.Moderator {
	return models.Moderator{
		Id:         dm.Id,
		Username:   dm.Username,
		Provider:   dm.Provider,
		ProviderId: dm.ProviderId,
		Role:       dm.Role,
		Created:    dm.Created,
	}
}

// Messages live under PK "MSG#<roomId>" with the UUIDv7 message id as the
// sort key, so a room's log is naturally time-ordered. Sender is also the
// partition key of GSI_SenderMessages for the purge path.
type dynamoMessage struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Sender     string `dynamodbav:"Sender"`
	Nonce      string `dynamodbav:"Nonce"`
	Ciphertext string `dynamodbav:"Ciphertext"`
	Timestamp  int64  `dynamodbav:"Timestamp"`
	Deleted    bool   `dynamodbav:"Deleted"`
}

// Map domain MessageRecord -> Dynamo
func messageRecordToDynamo(mr models.MessageRecord) dynamoMessage {
	return dynamoMessage{
		PK:         "MSG#" + mr.RoomId,
		SK:         mr.Message.Id,
		Sender:     mr.Message.SenderTripcode,
		Nonce:      mr.Message.Nonce,
		Ciphertext: mr.Message.Ciphertext,
		Timestamp:  mr.Message.Timestamp,
		Deleted:    mr.Message.Deleted,
	}
}

// Map Dynamo -> domain MessageRecord
func messageRecordFromDynamo(dm dynamoMessage) models.MessageRecord {
	return models.MessageRecord{
		RoomId:  strings.TrimPrefix(dm.PK, "MSG#"),
		Message: messageFromDynamo(dm),
	}
}

// Map Dynamo -> domain Message
func messageFromDynamo(dm dynamoMessage) models.Message {
	return models.Message{
		Id:             dm.SK,
		SenderTripcode: dm.Sender,
		Ciphertext:     dm.Ciphertext,
		Nonce:          dm.Nonce,
		Timestamp:      dm.Timestamp,
		Deleted:        dm.Deleted,
	}
}
