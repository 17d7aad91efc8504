package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) IsMuted(ctx context.Context, roomId string, tripcode string) (bool, error) {
	args := m.Called(ctx, roomId, tripcode)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) IsBanned(ctx context.Context, roomId string, tripcode string) (bool, error) {
	args := m.Called(ctx, roomId, tripcode)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) IsGloballyBanned(ctx context.Context, tripcode string) (bool, error) {
	args := m.Called(ctx, tripcode)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) SetMute(ctx context.Context, roomId string, tripcode string, duration time.Duration) error {
	args := m.Called(ctx, roomId, tripcode, duration)
	return args.Error(0)
}

func (m *MockCache) SetBan(ctx context.Context, roomId string, tripcode string) error {
	args := m.Called(ctx, roomId, tripcode)
	return args.Error(0)
}

func (m *MockCache) SetGlobalBan(ctx context.Context, tripcode string) error {
	args := m.Called(ctx, tripcode)
	return args.Error(0)
}

func (m *MockCache) ClearMute(ctx context.Context, roomId string, tripcode string) error {
	args := m.Called(ctx, roomId, tripcode)
	return args.Error(0)
}

func (m *MockCache) ClearBan(ctx context.Context, roomId string, tripcode string) error {
	args := m.Called(ctx, roomId, tripcode)
	return args.Error(0)
}

func (m *MockCache) ClearGlobalBan(ctx context.Context, tripcode string) error {
	args := m.Called(ctx, tripcode)
	return args.Error(0)
}
