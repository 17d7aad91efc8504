package rest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/zlnvch/cipherchat/models"
	"github.com/zlnvch/cipherchat/service"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type loginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type loginResponse struct {
	Username string `json:"username"`
	Id       string `json:"id"`
	Provider string `json:"provider"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mod, token, err := h.Service.Login(r.Context(), req.Provider, req.Code)
	if err != nil {
		log.Printf("Login failed: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp := loginResponse{
		Username: mod.Username,
		Id:       mod.Id,
		Provider: mod.Provider,
		Role:     mod.Role,
		Token:    token,
	}
	h.sendResponse(w, resp)
}

// authorize authenticates the bearer token and checks the caller holds
// at least the required role.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, required string) (models.Moderator, bool) {
	token := h.getTokenFromAuthHeader(r)
	mod, err := h.Service.AuthenticateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return models.Moderator{}, false
	}

	if err := service.AuthorizeRole(mod, required); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return models.Moderator{}, false
	}

	return mod, true
}

type deleteMessageRequest struct {
	RoomId    string `json:"room_id"`
	MessageId string `json:"message_id"`
}

type moderationResponse struct {
	Success bool `json:"success"`
	Existed bool `json:"existed"`
}

// HandleDeleteMessage serves POST /mod/messages/delete. Janitors and up.
func (h *Handler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mod, ok := h.authorize(w, r, models.RoleJanitor)
	if !ok {
		return
	}

	var req deleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	existed, err := h.Service.DeleteMessage(r.Context(), req.RoomId, req.MessageId)
	if err != nil {
		log.Printf("Delete message by %s failed: %v", mod.Id, err)
		http.Error(w, "failed to delete message", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, moderationResponse{Success: true, Existed: existed})
}

type muteRequest struct {
	RoomId          string `json:"room_id"`
	Tripcode        string `json:"tripcode"`
	DurationSeconds int    `json:"duration_seconds"`
}

type roomUserRequest struct {
	RoomId   string `json:"room_id"`
	Tripcode string `json:"tripcode"`
}

type tripcodeRequest struct {
	Tripcode string `json:"tripcode"`
}

// HandleMute serves POST /mod/mute. Moderators and up.
func (h *Handler) HandleMute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mod, ok := h.authorize(w, r, models.RoleModerator)
	if !ok {
		return
	}

	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	applied, err := h.Service.MuteUser(r.Context(), req.RoomId, req.Tripcode, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		log.Printf("Mute by %s failed: %v", mod.Id, err)
		http.Error(w, "failed to mute user", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, moderationResponse{Success: applied, Existed: applied})
}

// HandleUnmute serves POST /mod/unmute. Moderators and up.
func (h *Handler) HandleUnmute(w http.ResponseWriter, r *http.Request) {
	h.handleRoomUserAction(w, r, models.RoleModerator, h.Service.UnmuteUser)
}

// HandleBan serves POST /mod/ban. Moderators and up.
func (h *Handler) HandleBan(w http.ResponseWriter, r *http.Request) {
	h.handleRoomUserAction(w, r, models.RoleModerator, h.Service.BanUser)
}

// HandleUnban serves POST /mod/unban. Moderators and up.
func (h *Handler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	h.handleRoomUserAction(w, r, models.RoleModerator, h.Service.UnbanUser)
}

func (h *Handler) handleRoomUserAction(
	w http.ResponseWriter,
	r *http.Request,
	requiredRole string,
	action func(ctx context.Context, roomId string, tripcode string) (bool, error),
) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mod, ok := h.authorize(w, r, requiredRole)
	if !ok {
		return
	}

	var req roomUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	applied, err := action(r.Context(), req.RoomId, req.Tripcode)
	if err != nil {
		log.Printf("Moderation action by %s failed: %v", mod.Id, err)
		http.Error(w, "moderation action failed", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, moderationResponse{Success: applied, Existed: applied})
}

// HandleGlobalBan serves POST /mod/ban-global. Admins only.
func (h *Handler) HandleGlobalBan(w http.ResponseWriter, r *http.Request) {
	h.handleGlobalAction(w, r, h.Service.BanUserGlobally)
}

// HandleGlobalUnban serves POST /mod/unban-global. Admins only.
func (h *Handler) HandleGlobalUnban(w http.ResponseWriter, r *http.Request) {
	h.handleGlobalAction(w, r, h.Service.UnbanUserGlobally)
}

func (h *Handler) handleGlobalAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, tripcode string) (bool, error),
) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mod, ok := h.authorize(w, r, models.RoleAdmin)
	if !ok {
		return
	}

	var req tripcodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	applied, err := action(r.Context(), req.Tripcode)
	if err != nil {
		log.Printf("Global moderation action by %s failed: %v", mod.Id, err)
		http.Error(w, "moderation action failed", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, moderationResponse{Success: applied, Existed: applied})
}

type roomHistoryResponse struct {
	RoomId   string           `json:"room_id"`
	Messages []models.Message `json:"messages"`
}

// HandleRoomHistory serves GET /mod/rooms/history?room_id=... from the
// persisted log. Janitors and up.
func (h *Handler) HandleRoomHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mod, ok := h.authorize(w, r, models.RoleJanitor)
	if !ok {
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if err := service.ValidateRoomId(roomId); err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	messages, err := h.Service.Store.GetRoomMessages(r.Context(), roomId, 200)
	if err != nil {
		log.Printf("Room history fetch by %s failed: %v", mod.Id, err)
		http.Error(w, "failed to fetch room history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.sendResponse(w, roomHistoryResponse{RoomId: roomId, Messages: messages})
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
