package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/cipherchat/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateModerator(ctx context.Context, mod models.Moderator) (models.Moderator, error) {
	args := m.Called(ctx, mod)
	return args.Get(0).(models.Moderator), args.Error(1)
}

func (m *MockStore) GetModerator(ctx context.Context, provider string, providerId string) (models.Moderator, error) {
	args := m.Called(ctx, provider, providerId)
	return args.Get(0).(models.Moderator), args.Error(1)
}

func (m *MockStore) WriteMessageBatch(ctx context.Context, records []models.MessageRecord) ([]models.MessageRecord, error) {
	args := m.Called(ctx, records)
	return args.Get(0).([]models.MessageRecord), args.Error(1)
}

func (m *MockStore) GetRoomMessages(ctx context.Context, roomId string, limit int32) ([]models.Message, error) {
	args := m.Called(ctx, roomId, limit)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStore) MarkMessageDeleted(ctx context.Context, roomId string, messageId string) error {
	args := m.Called(ctx, roomId, messageId)
	return args.Error(0)
}

func (m *MockStore) MarkSenderMessagesDeleted(ctx context.Context, tripcode string) (int, error) {
	args := m.Called(ctx, tripcode)
	return args.Int(0), args.Error(1)
}
