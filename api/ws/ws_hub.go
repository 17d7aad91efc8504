package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/zlnvch/cipherchat/service"
)

// Hub maintains the set of active clients and bridges moderation
// notices published through Redis into the in-process rooms. Room
// fan-out itself happens in the room package; the hub only tracks
// connection lifecycle.
type Hub struct {
	service *service.Service
	OpenCh  chan *Client
	CloseCh chan *Client
	clients map[*Client]struct{}
}

func NewHub(svc *service.Service) *Hub {
	return &Hub{
		service: svc,
		OpenCh:  make(chan *Client, 256),
		CloseCh: make(chan *Client, 256),
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			h.clients[client] = struct{}{}

		case client := <-h.CloseCh:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			// Leave every room the connection was in so the remaining
			// members see a user_left.
			for roomId, identity := range client.joinedRooms {
				h.service.Disconnect(roomId, identity.Tripcode)
			}
			delete(h.clients, client)
		}
	}
}

// InitSubscriptions wires the cross-instance moderation channel. A
// message deleted through the REST surface on any instance reaches the
// members of the room on this one.
func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.service.Cache.Subscribe(shutdownCtx, service.ModerationChannel, func(messageBytes []byte) {
		var notice service.ModerationNotice
		if err := json.Unmarshal(messageBytes, &notice); err != nil {
			log.Printf("Failed to unmarshal moderation notice: %v", err)
			return
		}

		rm, ok := h.service.Rooms.Get(notice.RoomId)
		if !ok {
			return
		}
		rm.Notify(notice.Payload)
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to %s: %v", service.ModerationChannel, err)
		return err
	}

	return nil
}
