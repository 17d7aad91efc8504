package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gofrs/uuid/v5"

	"github.com/zlnvch/cipherchat/models"
)

type DynamoCipherchatStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoCipherchatStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoCipherchatStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoCipherchatStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoCipherchatStore) CreateModerator(ctx context.Context, mod models.Moderator) (models.Moderator, error) {
	modId, err := uuid.NewV4()
	if err != nil {
		return models.Moderator{}, err
	}
	mod.Id = modId.String()
	if mod.Role == "" {
		// New staff accounts start at the lowest rank; promotion is a
		// manual table edit by an operator.
		mod.Role = models.RoleJanitor
	}

	dm := moderatorToDynamo(mod)
	dm.Created = time.Now().Unix()
	dm, _, err = ensureItem(dynamoStore, ctx, dm)
	if err != nil {
		return models.Moderator{}, err
	}

	return moderatorFromDynamo(dm), nil
}

func (dynamoStore *DynamoCipherchatStore) GetModerator(ctx context.Context, provider string, providerId string) (models.Moderator, error) {
	dm, err := getItem[dynamoModerator](dynamoStore, ctx, "MOD#"+provider+"#"+providerId, "PROFILE")
	if err != nil {
		return models.Moderator{}, err
	}

	return moderatorFromDynamo(dm), nil
}

func (dynamoStore *DynamoCipherchatStore) WriteMessageBatch(ctx context.Context, records []models.MessageRecord) ([]models.MessageRecord, error) {
	var writeRequests []types.WriteRequest
	for _, record := range records {
		dm := messageRecordToDynamo(record)
		avMap, err := attributevalue.MarshalMap(dm)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}

		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{
				Item: avMap,
			},
		})
	}

	unprocessed, err := writeBatchRequests[dynamoMessage](dynamoStore, ctx, writeRequests)

	unbatched := make([]models.MessageRecord, 0, len(unprocessed))
	for _, u := range unprocessed {
		unbatched = append(unbatched, messageRecordFromDynamo(u))
	}

	return unbatched, err
}

func (dynamoStore *DynamoCipherchatStore) GetRoomMessages(ctx context.Context, roomId string, limit int32) ([]models.Message, error) {
	// Newest first (ScanIndexForward: false), then reversed to return
	// chronological order. Message ids are UUIDv7, so SK order is time order.
	dynamoMessages, err := queryAllByPK[dynamoMessage](dynamoStore, ctx, "MSG#"+roomId, false, limit)
	if err != nil {
		return []models.Message{}, err
	}

	messages := make([]models.Message, 0, len(dynamoMessages))
	for i := len(dynamoMessages) - 1; i >= 0; i-- {
		messages = append(messages, messageFromDynamo(dynamoMessages[i]))
	}

	return messages, nil
}

func (dynamoStore *DynamoCipherchatStore) MarkMessageDeleted(ctx context.Context, roomId string, messageId string) error {
	return markDeletedExisting(dynamoStore, ctx, "MSG#"+roomId, messageId)
}

func (dynamoStore *DynamoCipherchatStore) MarkSenderMessagesDeleted(ctx context.Context, tripcode string) (int, error) {
	return markDeletedByGSIThrottled(dynamoStore, ctx, "GSI_SenderMessages", "Sender", tripcode, 50*time.Millisecond)
}
