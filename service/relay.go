package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/cipherchat/models"
	"github.com/zlnvch/cipherchat/room"
)

// Authorization rejections, surfaced verbatim to the initiating
// connection and never broadcast.
var (
	ErrGloballyBanned = fmt.Errorf("you are banned from the chat application")
	ErrRoomBanned     = fmt.Errorf("you are banned from this room")
	ErrMuted          = fmt.Errorf("you are muted in this room")
	ErrRoomNotFound   = fmt.Errorf("room does not exist")
)

// Room events, fanned out as JSON. The payloads carry mnemonics only;
// tripcodes and secrets never leave the server.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type UserJoinedData struct {
	Mnemonic string `json:"mnemonic"`
}

type UserLeftData struct {
	Mnemonic string `json:"mnemonic"`
}

type NewMessageData struct {
	SenderMnemonic   string `json:"sender_mnemonic"`
	ContentEncrypted string `json:"content_encrypted"`
	Nonce            string `json:"nonce"`
	Timestamp        int64  `json:"timestamp"`
	MessageId        string `json:"message_id"`
}

type MessageDeletedData struct {
	MessageId string `json:"message_id"`
}

func marshalEvent(eventType string, data any) []byte {
	eventBytes, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		// Event payloads are plain structs; this cannot fail for them.
		log.Printf("Failed to marshal %s event: %v", eventType, err)
		return nil
	}
	return eventBytes
}

type JoinParams struct {
	RoomId string
	Secret string
	Sink   room.EventSink
}

// Join runs the join protocol: derive the tripcode, gate on global then
// room ban, resolve (creating if absent) the room, insert the member and
// announce the mnemonic. A rejection is terminal for this attempt only;
// the connection stays usable for other rooms or a later retry.
func (s *Service) Join(ctx context.Context, params JoinParams) (models.Identity, error) {
	if err := ValidateRoomId(params.RoomId); err != nil {
		return models.Identity{}, err
	}
	if err := ValidateSecret(params.Secret); err != nil {
		return models.Identity{}, err
	}

	identity := NewIdentity(params.Secret)

	banned, err := s.Cache.IsGloballyBanned(ctx, identity.Tripcode)
	if err != nil {
		return models.Identity{}, fmt.Errorf("ban check failed: %w", err)
	}
	if banned {
		return models.Identity{}, ErrGloballyBanned
	}

	rm := s.Rooms.GetOrCreate(params.RoomId)

	banned, err = s.Cache.IsBanned(ctx, params.RoomId, identity.Tripcode)
	if err != nil {
		return models.Identity{}, fmt.Errorf("ban check failed: %w", err)
	}
	if banned {
		return models.Identity{}, ErrRoomBanned
	}

	added := rm.AddMember(identity, params.Sink)
	if added {
		rm.Notify(marshalEvent("user_joined", UserJoinedData{Mnemonic: identity.Mnemonic}))
	}

	// Replay the retained tail to the joiner only. Ciphertext is opaque,
	// so this reveals nothing beyond what live membership would.
	if params.Sink != nil {
		for _, msg := range rm.RecentMessages() {
			params.Sink.Deliver(marshalEvent("new_message", NewMessageData{
				SenderMnemonic:   Mnemonic(msg.SenderTripcode),
				ContentEncrypted: msg.Ciphertext,
				Nonce:            msg.Nonce,
				Timestamp:        msg.Timestamp,
				MessageId:        msg.Id,
			}))
		}
	}

	return identity, nil
}

type LeaveParams struct {
	RoomId string
	Secret string
}

// Leave removes the member and announces the departure. Leaving a room
// never joined, or leaving twice, is a silent no-op: no error, no event.
func (s *Service) Leave(params LeaveParams) (models.Identity, bool) {
	return s.Disconnect(params.RoomId, Tripcode(params.Secret))
}

// Disconnect is the tripcode-keyed removal shared by Leave and the
// websocket close path (a dropped connection leaves all its rooms).
func (s *Service) Disconnect(roomId string, tripcode string) (models.Identity, bool) {
	rm, ok := s.Rooms.Get(roomId)
	if !ok {
		return models.Identity{}, false
	}

	identity, ok := rm.RemoveMember(tripcode)
	if !ok {
		return models.Identity{}, false
	}

	rm.Notify(marshalEvent("user_left", UserLeftData{Mnemonic: identity.Mnemonic}))
	return identity, true
}

type SendParams struct {
	RoomId        string
	Secret        string
	NonceHex      string
	CiphertextHex string
}

// Send runs the send protocol. Gate order is fixed: global ban, then room
// ban, then mute, then room existence. The room is looked up, never
// created; sending to a room nobody has joined is an error, unlike the
// idempotent leave. Broadcast is the primary guarantee; the store write
// is handed to the batcher and can fail without the sender ever knowing.
func (s *Service) Send(ctx context.Context, params SendParams) (models.Message, error) {
	// Malformed input is rejected before any state is touched.
	if err := ValidateRoomId(params.RoomId); err != nil {
		return models.Message{}, err
	}
	if err := ValidateSecret(params.Secret); err != nil {
		return models.Message{}, err
	}
	if err := ValidateNonceHex(params.NonceHex); err != nil {
		return models.Message{}, err
	}
	if err := ValidateCiphertextHex(params.CiphertextHex); err != nil {
		return models.Message{}, err
	}

	tripcode := Tripcode(params.Secret)

	globallyBanned, err := s.Cache.IsGloballyBanned(ctx, tripcode)
	if err != nil {
		return models.Message{}, fmt.Errorf("ban check failed: %w", err)
	}
	if globallyBanned {
		return models.Message{}, ErrGloballyBanned
	}

	banned, err := s.Cache.IsBanned(ctx, params.RoomId, tripcode)
	if err != nil {
		return models.Message{}, fmt.Errorf("ban check failed: %w", err)
	}
	if banned {
		return models.Message{}, ErrRoomBanned
	}

	muted, err := s.Cache.IsMuted(ctx, params.RoomId, tripcode)
	if err != nil {
		return models.Message{}, fmt.Errorf("mute check failed: %w", err)
	}
	if muted {
		return models.Message{}, ErrMuted
	}

	rm, ok := s.Rooms.Get(params.RoomId)
	if !ok {
		return models.Message{}, ErrRoomNotFound
	}

	messageId, err := uuid.NewV7()
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		Id:             messageId.String(),
		SenderTripcode: tripcode,
		Ciphertext:     params.CiphertextHex,
		Nonce:          params.NonceHex,
		Timestamp:      time.Now().UnixMilli(),
	}

	// The sender's own identity is what the room sees; attribution is
	// never inferred from membership.
	event := marshalEvent("new_message", NewMessageData{
		SenderMnemonic:   Mnemonic(tripcode),
		ContentEncrypted: msg.Ciphertext,
		Nonce:            msg.Nonce,
		Timestamp:        msg.Timestamp,
		MessageId:        msg.Id,
	})

	rm.Broadcast(msg, event)

	// Fire-and-forget handoff to the write-behind batcher. A full buffer
	// means the sink is badly behind; the broadcast already happened and
	// must not wait, so the record is dropped with a log line.
	select {
	case s.MessageBatcher.WriteCh <- models.MessageRecord{RoomId: params.RoomId, Message: msg}:
	default:
		log.Printf("Message batcher buffer full, dropping log record for room %s", params.RoomId)
	}

	return msg, nil
}
