package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/zlnvch/cipherchat/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{"cipherchat-v1"},
	}
}

// ServeWS handles websocket requests from the peer. Chat participants
// are anonymous; there is no token to check here.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	client := NewClient(h.Hub, conn, h.HandleWsMessage)

	h.Hub.OpenCh <- client

	// Start pumps
	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinMessage struct {
	RoomId     string `json:"room_id"`
	UserSecret string `json:"user_secret"`
}

type sendMessage struct {
	RoomId     string `json:"room_id"`
	UserSecret string `json:"user_secret"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type errorData struct {
	Message string `json:"message"`
}

type responseMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	switch msg.Type {
	case "join":
		var joinMsg joinMessage
		if err := json.Unmarshal(msg.Data, &joinMsg); err != nil {
			log.Printf("Invalid join data: %v", err)
			return
		}
		h.handleJoin(client, joinMsg)

	case "leave":
		var leaveMsg joinMessage
		if err := json.Unmarshal(msg.Data, &leaveMsg); err != nil {
			log.Printf("Invalid leave data: %v", err)
			return
		}
		h.handleLeave(client, leaveMsg)

	case "send_message":
		var sendMsg sendMessage
		if err := json.Unmarshal(msg.Data, &sendMsg); err != nil {
			log.Printf("Invalid send_message data: %v", err)
			return
		}
		h.handleSend(client, sendMsg)

	default:
		log.Printf("Unknown message type: %v", msg.Type)
	}
}

// sendError goes to the offending sender only, never into the room.
func (h *Handler) sendError(client *Client, err error) {
	resp := responseMessage{
		Type: "error",
		Data: errorData{Message: err.Error()},
	}
	respBytes, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		log.Printf("Error marshaling error response JSON: %v", marshalErr)
		return
	}
	client.Deliver(respBytes)
}

func (h *Handler) handleJoin(client *Client, joinMsg joinMessage) {
	identity, err := h.Service.Join(context.Background(), service.JoinParams{
		RoomId: joinMsg.RoomId,
		Secret: joinMsg.UserSecret,
		Sink:   client,
	})
	if err != nil {
		log.Printf("Join failed: %v", err)
		h.sendError(client, err)
		return
	}

	client.joinedRooms[joinMsg.RoomId] = identity
}

func (h *Handler) handleLeave(client *Client, leaveMsg joinMessage) {
	h.Service.Leave(service.LeaveParams{
		RoomId: leaveMsg.RoomId,
		Secret: leaveMsg.UserSecret,
	})
	delete(client.joinedRooms, leaveMsg.RoomId)
}

func (h *Handler) handleSend(client *Client, sendMsg sendMessage) {
	_, err := h.Service.Send(context.Background(), service.SendParams{
		RoomId:        sendMsg.RoomId,
		Secret:        sendMsg.UserSecret,
		NonceHex:      sendMsg.Nonce,
		CiphertextHex: sendMsg.Ciphertext,
	})
	if err != nil {
		log.Printf("Send failed: %v", err)
		h.sendError(client, err)
	}
}
