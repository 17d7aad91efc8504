package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	cachemocks "github.com/zlnvch/cipherchat/cache/mocks"
	mqmocks "github.com/zlnvch/cipherchat/mq/mocks"
	"github.com/zlnvch/cipherchat/room"
	"github.com/zlnvch/cipherchat/service"
	storemocks "github.com/zlnvch/cipherchat/store/mocks"
	"github.com/zlnvch/cipherchat/worker"
)

// Helper to setup the service with mocks
func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockMQ, *worker.MessageBatcher) {
	return setupServiceWithSecret(t, []byte("secret"))
}

func setupServiceWithSecret(t *testing.T, jwtSecret []byte) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockMQ, *worker.MessageBatcher) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockMQ := new(mqmocks.MockMQ)

	// A real batcher is used but never run; tests read its channels directly
	messageBatcher := worker.NewMessageBatcher(mockStore, 1000)

	svc, err := service.NewService(
		mockStore,
		mockCache,
		mockMQ,
		room.NewRegistry(),
		messageBatcher,
		nil,
		jwtSecret,
	)
	assert.NoError(t, err)

	return svc, mockStore, mockCache, mockMQ, messageBatcher
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	call.Run(func(args mock.Arguments) {
		close(done)
	})
	return done
}

// captureSink records delivered events in order.
type captureSink struct {
	mu     sync.Mutex
	events [][]byte
}

func (s *captureSink) Deliver(event []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) Events() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.events))
	copy(out, s.events)
	return out
}

type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func decodeEvent(t *testing.T, raw []byte) eventEnvelope {
	var env eventEnvelope
	assert.NoError(t, json.Unmarshal(raw, &env))
	return env
}

const (
	validNonce      = "000102030405060708090a0b"                                         // 12 bytes
	validCiphertext = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f" // 32 bytes
)

func TestJoin_Success(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	secret := "alice-secret"
	tripcode := service.Tripcode(secret)
	sink := &captureSink{}

	mockCache.On("IsGloballyBanned", ctx, tripcode).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", tripcode).Return(false, nil)

	identity, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: secret, Sink: sink})
	assert.NoError(t, err)
	assert.Equal(t, tripcode, identity.Tripcode)
	assert.Equal(t, service.Mnemonic(tripcode), identity.Mnemonic)

	rm, ok := svc.Rooms.Get("room1")
	assert.True(t, ok)
	assert.Len(t, rm.Members(), 1)

	// The joiner is a member at announce time and sees its own user_joined
	events := sink.Events()
	assert.Len(t, events, 1)
	env := decodeEvent(t, events[0])
	assert.Equal(t, "user_joined", env.Type)

	// Events carry the mnemonic, never the tripcode or secret
	assert.Contains(t, string(events[0]), identity.Mnemonic)
	assert.NotContains(t, string(events[0]), tripcode)
	assert.NotContains(t, string(events[0]), secret)
}

func TestJoin_GloballyBanned(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	tripcode := service.Tripcode("banned-secret")
	mockCache.On("IsGloballyBanned", ctx, tripcode).Return(true, nil)

	_, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "banned-secret", Sink: &captureSink{}})
	assert.ErrorIs(t, err, service.ErrGloballyBanned)

	// The gate fires before the room is resolved or created
	_, ok := svc.Rooms.Get("room1")
	assert.False(t, ok)
	mockCache.AssertNotCalled(t, "IsBanned", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoin_RoomBanned(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	tripcode := service.Tripcode("banned-secret")
	mockCache.On("IsGloballyBanned", ctx, tripcode).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", tripcode).Return(true, nil)

	_, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "banned-secret", Sink: &captureSink{}})
	assert.ErrorIs(t, err, service.ErrRoomBanned)

	rm, ok := svc.Rooms.Get("room1")
	assert.True(t, ok)
	assert.Empty(t, rm.Members())
}

func TestJoin_Idempotent(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	secret := "alice-secret"
	tripcode := service.Tripcode(secret)
	sink := &captureSink{}

	mockCache.On("IsGloballyBanned", ctx, tripcode).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", tripcode).Return(false, nil)

	first, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: secret, Sink: sink})
	assert.NoError(t, err)
	second, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: secret, Sink: sink})
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	rm, _ := svc.Rooms.Get("room1")
	assert.Len(t, rm.Members(), 1)

	// Only the first join announces
	assert.Len(t, sink.Events(), 1)
}

func TestJoin_ReplaysRetainedMessages(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	aliceTrip := service.Tripcode("alice")
	bobTrip := service.Tripcode("bob")
	mockCache.On("IsGloballyBanned", ctx, mock.Anything).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", mock.Anything).Return(false, nil)
	mockCache.On("IsMuted", ctx, "room1", aliceTrip).Return(false, nil)

	_, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "alice", Sink: &captureSink{}})
	assert.NoError(t, err)

	sent, err := svc.Send(ctx, service.SendParams{
		RoomId: "room1", Secret: "alice", NonceHex: validNonce, CiphertextHex: validCiphertext,
	})
	assert.NoError(t, err)

	bobSink := &captureSink{}
	_, err = svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "bob", Sink: bobSink})
	assert.NoError(t, err)

	// Bob sees his own user_joined, then the replayed message
	events := bobSink.Events()
	assert.Len(t, events, 2)
	assert.Equal(t, "user_joined", decodeEvent(t, events[0]).Type)

	env := decodeEvent(t, events[1])
	assert.Equal(t, "new_message", env.Type)
	var data map[string]any
	assert.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, sent.Id, data["message_id"])
	assert.Equal(t, validCiphertext, data["content_encrypted"])
	assert.Equal(t, service.Mnemonic(aliceTrip), data["sender_mnemonic"])
	assert.NotContains(t, string(events[1]), bobTrip)
}

func TestSend_Success(t *testing.T) {
	svc, _, mockCache, _, messageBatcher := setupService(t)
	ctx := context.Background()

	aliceTrip := service.Tripcode("alice")
	mockCache.On("IsGloballyBanned", ctx, mock.Anything).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", mock.Anything).Return(false, nil)
	mockCache.On("IsMuted", ctx, "room1", aliceTrip).Return(false, nil)

	aliceSink := &captureSink{}
	bobSink := &captureSink{}
	_, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "alice", Sink: aliceSink})
	assert.NoError(t, err)
	_, err = svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "bob", Sink: bobSink})
	assert.NoError(t, err)

	msg, err := svc.Send(ctx, service.SendParams{
		RoomId: "room1", Secret: "alice", NonceHex: validNonce, CiphertextHex: validCiphertext,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, msg.Id)
	assert.Equal(t, aliceTrip, msg.SenderTripcode)

	// Sender included in the broadcast; both members receive the event
	lastAlice := aliceSink.Events()[len(aliceSink.Events())-1]
	lastBob := bobSink.Events()[len(bobSink.Events())-1]
	assert.Equal(t, string(lastAlice), string(lastBob))

	env := decodeEvent(t, lastAlice)
	assert.Equal(t, "new_message", env.Type)
	var data map[string]any
	assert.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, service.Mnemonic(aliceTrip), data["sender_mnemonic"])
	assert.NotContains(t, string(lastAlice), aliceTrip)

	// The record reaches the write-behind batcher
	select {
	case record := <-messageBatcher.WriteCh:
		assert.Equal(t, "room1", record.RoomId)
		assert.Equal(t, msg.Id, record.Message.Id)
	case <-time.After(100 * time.Millisecond):
		assert.Fail(t, "timed out waiting for message batcher")
	}
}

func TestSend_NonMemberToExistingRoom(t *testing.T) {
	// Sending requires the room to exist, not membership in it
	svc, _, mockCache, _, messageBatcher := setupService(t)
	ctx := context.Background()

	bobTrip := service.Tripcode("bob")
	mockCache.On("IsGloballyBanned", ctx, mock.Anything).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", mock.Anything).Return(false, nil)
	mockCache.On("IsMuted", ctx, "room1", bobTrip).Return(false, nil)

	aliceSink := &captureSink{}
	_, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "alice", Sink: aliceSink})
	assert.NoError(t, err)

	msg, err := svc.Send(ctx, service.SendParams{
		RoomId: "room1", Secret: "bob", NonceHex: validNonce, CiphertextHex: validCiphertext,
	})
	assert.NoError(t, err)
	assert.Equal(t, bobTrip, msg.SenderTripcode)

	// Bob did not become a member by sending
	rm, _ := svc.Rooms.Get("room1")
	assert.Len(t, rm.Members(), 1)

	// Alice receives the message attributed to Bob's mnemonic
	events := aliceSink.Events()
	env := decodeEvent(t, events[len(events)-1])
	assert.Equal(t, "new_message", env.Type)
	var data map[string]any
	assert.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, service.Mnemonic(bobTrip), data["sender_mnemonic"])

	select {
	case record := <-messageBatcher.WriteCh:
		assert.Equal(t, msg.Id, record.Message.Id)
	case <-time.After(100 * time.Millisecond):
		assert.Fail(t, "timed out waiting for message batcher")
	}
}

func TestSend_GateOrder(t *testing.T) {
	// As conditions clear one by one the next gate in the fixed order
	// fires: global ban, room ban, mute, room existence.
	ctx := context.Background()
	tripcode := service.Tripcode("alice")

	params := service.SendParams{
		RoomId: "room1", Secret: "alice", NonceHex: validNonce, CiphertextHex: validCiphertext,
	}

	t.Run("globally banned wins", func(t *testing.T) {
		svc, _, mockCache, _, _ := setupService(t)
		mockCache.On("IsGloballyBanned", ctx, tripcode).Return(true, nil)

		_, err := svc.Send(ctx, params)
		assert.ErrorIs(t, err, service.ErrGloballyBanned)
		mockCache.AssertNotCalled(t, "IsBanned", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("room ban next", func(t *testing.T) {
		svc, _, mockCache, _, _ := setupService(t)
		mockCache.On("IsGloballyBanned", ctx, tripcode).Return(false, nil)
		mockCache.On("IsBanned", ctx, "room1", tripcode).Return(true, nil)

		_, err := svc.Send(ctx, params)
		assert.ErrorIs(t, err, service.ErrRoomBanned)
		mockCache.AssertNotCalled(t, "IsMuted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("mute next", func(t *testing.T) {
		svc, _, mockCache, _, _ := setupService(t)
		mockCache.On("IsGloballyBanned", ctx, tripcode).Return(false, nil)
		mockCache.On("IsBanned", ctx, "room1", tripcode).Return(false, nil)
		mockCache.On("IsMuted", ctx, "room1", tripcode).Return(true, nil)

		_, err := svc.Send(ctx, params)
		assert.ErrorIs(t, err, service.ErrMuted)
	})

	t.Run("room existence last", func(t *testing.T) {
		svc, _, mockCache, _, _ := setupService(t)
		mockCache.On("IsGloballyBanned", ctx, tripcode).Return(false, nil)
		mockCache.On("IsBanned", ctx, "room1", tripcode).Return(false, nil)
		mockCache.On("IsMuted", ctx, "room1", tripcode).Return(false, nil)

		_, err := svc.Send(ctx, params)
		assert.ErrorIs(t, err, service.ErrRoomNotFound)

		// Send never creates rooms
		_, ok := svc.Rooms.Get("room1")
		assert.False(t, ok)
	})
}

func TestSend_InvalidInputRejectedBeforeGates(t *testing.T) {
	tests := []struct {
		name   string
		params service.SendParams
	}{
		{
			"Missing room",
			service.SendParams{Secret: "alice", NonceHex: validNonce, CiphertextHex: validCiphertext},
		},
		{
			"Missing secret",
			service.SendParams{RoomId: "room1", NonceHex: validNonce, CiphertextHex: validCiphertext},
		},
		{
			"Bad nonce",
			service.SendParams{RoomId: "room1", Secret: "alice", NonceHex: "zz", CiphertextHex: validCiphertext},
		},
		{
			"Short ciphertext",
			service.SendParams{RoomId: "room1", Secret: "alice", NonceHex: validNonce, CiphertextHex: "0011"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, mockCache, _, _ := setupService(t)

			_, err := svc.Send(context.Background(), tc.params)
			assert.Error(t, err)
			mockCache.AssertNotCalled(t, "IsGloballyBanned", mock.Anything, mock.Anything)
		})
	}
}

func TestLeave_AnnouncesToRemaining(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("IsGloballyBanned", ctx, mock.Anything).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", mock.Anything).Return(false, nil)

	aliceSink := &captureSink{}
	bobSink := &captureSink{}
	alice, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "alice", Sink: aliceSink})
	assert.NoError(t, err)
	_, err = svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "bob", Sink: bobSink})
	assert.NoError(t, err)

	left, ok := svc.Leave(service.LeaveParams{RoomId: "room1", Secret: "alice"})
	assert.True(t, ok)
	assert.Equal(t, alice, left)

	rm, _ := svc.Rooms.Get("room1")
	assert.Len(t, rm.Members(), 1)

	events := bobSink.Events()
	env := decodeEvent(t, events[len(events)-1])
	assert.Equal(t, "user_left", env.Type)
	assert.True(t, strings.Contains(string(events[len(events)-1]), alice.Mnemonic))
}

func TestLeave_NeverJoinedIsSilentNoop(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	_, ok := svc.Leave(service.LeaveParams{RoomId: "ghost", Secret: "alice"})
	assert.False(t, ok)

	// No room is created by the attempt
	_, exists := svc.Rooms.Get("ghost")
	assert.False(t, exists)
}

func TestDisconnect_LeavesRoom(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("IsGloballyBanned", ctx, mock.Anything).Return(false, nil)
	mockCache.On("IsBanned", ctx, "room1", mock.Anything).Return(false, nil)

	alice, err := svc.Join(ctx, service.JoinParams{RoomId: "room1", Secret: "alice", Sink: &captureSink{}})
	assert.NoError(t, err)

	left, ok := svc.Disconnect("room1", alice.Tripcode)
	assert.True(t, ok)
	assert.Equal(t, alice, left)

	_, ok = svc.Disconnect("room1", alice.Tripcode)
	assert.False(t, ok)
}
