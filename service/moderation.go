package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zlnvch/cipherchat/store"
	"github.com/zlnvch/cipherchat/worker"
)

// ModerationChannel is the pubsub channel carrying moderation notices
// from the control plane to websocket hubs.
const ModerationChannel = "moderation"

// ModerationNotice wraps a room-scoped event for pubsub transport. The
// hub resolves the room locally and fans the payload out to its members.
type ModerationNotice struct {
	RoomId  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

// DeleteMessage soft-deletes a stored message and reports whether a
// record existed. The flag only ever goes false to true, so repeating
// the call is a no-op that still reports true. Already-delivered
// broadcasts are not retracted; members get a message_deleted notice
// and clients are expected to honor it.
func (s *Service) DeleteMessage(ctx context.Context, roomId string, messageId string) (bool, error) {
	if err := ValidateRoomId(roomId); err != nil {
		return false, err
	}
	if messageId == "" {
		return false, errors.New("message_id is required")
	}

	// Flag any copy still waiting in the write-behind buffer first, so a
	// delete racing the flush cannot resurrect the record.
	s.MessageBatcher.DeleteCh <- worker.DeletePendingRequest{RoomId: roomId, MessageId: messageId}

	inMemory := false
	if rm, ok := s.Rooms.Get(roomId); ok {
		inMemory = rm.MarkDeleted(messageId)
	}

	err := s.Store.MarkMessageDeleted(ctx, roomId, messageId)
	if err != nil && !errors.Is(err, store.ErrItemNotFound) {
		return false, err
	}

	existed := err == nil || inMemory
	if !existed {
		return false, nil
	}

	// Async side-effects - return to caller as soon as the store operation is done
	go func() {
		payload := marshalEvent("message_deleted", MessageDeletedData{MessageId: messageId})
		notice := ModerationNotice{RoomId: roomId, Payload: payload}
		if noticeBytes, err := json.Marshal(notice); err == nil {
			s.Cache.Publish(context.Background(), ModerationChannel, noticeBytes)
		}
	}()

	return true, nil
}

// MuteUser sets a time-bounded mute, effective for subsequent sends; an
// in-flight send that already passed the gate is not recalled. Expiry is
// enforced by the store, so no admin action is needed to lift it.
func (s *Service) MuteUser(ctx context.Context, roomId string, tripcode string, duration time.Duration) (bool, error) {
	if err := ValidateRoomId(roomId); err != nil {
		return false, err
	}
	if tripcode == "" {
		return false, errors.New("tripcode is required")
	}
	if duration <= 0 {
		return false, errors.New("mute duration must be positive")
	}

	if err := s.Cache.SetMute(ctx, roomId, tripcode, duration); err != nil {
		return false, fmt.Errorf("set mute failed: %w", err)
	}
	return true, nil
}

func (s *Service) UnmuteUser(ctx context.Context, roomId string, tripcode string) (bool, error) {
	if err := s.Cache.ClearMute(ctx, roomId, tripcode); err != nil {
		return false, fmt.Errorf("clear mute failed: %w", err)
	}
	return true, nil
}

// BanUser sets a permanent room ban. Already-joined sessions are not
// kicked; the ban gates future joins and sends only.
func (s *Service) BanUser(ctx context.Context, roomId string, tripcode string) (bool, error) {
	if err := ValidateRoomId(roomId); err != nil {
		return false, err
	}
	if tripcode == "" {
		return false, errors.New("tripcode is required")
	}

	if err := s.Cache.SetBan(ctx, roomId, tripcode); err != nil {
		return false, fmt.Errorf("set ban failed: %w", err)
	}
	return true, nil
}

func (s *Service) UnbanUser(ctx context.Context, roomId string, tripcode string) (bool, error) {
	if err := s.Cache.ClearBan(ctx, roomId, tripcode); err != nil {
		return false, fmt.Errorf("clear ban failed: %w", err)
	}
	return true, nil
}

// BanUserGlobally sets the process-wide ban marker and enqueues a purge
// of the tripcode's stored messages. The purge is a background job; the
// ban itself takes effect on the next join or send check.
func (s *Service) BanUserGlobally(ctx context.Context, tripcode string) (bool, error) {
	if tripcode == "" {
		return false, errors.New("tripcode is required")
	}

	if err := s.Cache.SetGlobalBan(ctx, tripcode); err != nil {
		return false, fmt.Errorf("set global ban failed: %w", err)
	}

	// Async side-effects - return to caller as soon as the ban marker is set
	go func() {
		purgeMsg := worker.PurgeSenderMessagesMessage{Tripcode: tripcode}
		if msgBytes, err := json.Marshal(purgeMsg); err == nil {
			if err := s.MQ.Send(context.Background(), string(msgBytes)); err != nil {
				log.Printf("Failed to enqueue purge job: %v", err)
			}
		}
	}()

	return true, nil
}

func (s *Service) UnbanUserGlobally(ctx context.Context, tripcode string) (bool, error) {
	if err := s.Cache.ClearGlobalBan(ctx, tripcode); err != nil {
		return false, fmt.Errorf("clear global ban failed: %w", err)
	}
	return true, nil
}
