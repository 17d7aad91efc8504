package api

import (
	"context"
	"log"
	"net/http"

	"github.com/zlnvch/cipherchat/api/rest"
	"github.com/zlnvch/cipherchat/api/ws"
	"github.com/zlnvch/cipherchat/cache"
	"github.com/zlnvch/cipherchat/mq"
	"github.com/zlnvch/cipherchat/room"
	"github.com/zlnvch/cipherchat/service"
	"github.com/zlnvch/cipherchat/store"
	"github.com/zlnvch/cipherchat/worker"
	"golang.org/x/oauth2"
)

type CipherchatAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewCipherchatAPI(
	cipherchatStore store.CipherchatStore,
	purgeQueue mq.MessageQueue,
	cipherchatCache cache.CipherchatCache,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	shutdownCtx context.Context,
) (*CipherchatAPI, error) {
	rooms := room.NewRegistry()

	messageBatcher := worker.NewMessageBatcher(cipherchatStore, 500)
	go messageBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(purgeQueue, cipherchatStore)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		cipherchatStore,
		cipherchatCache,
		purgeQueue,
		rooms,
		messageBatcher,
		oauthConfigs,
		jwtSecret,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &CipherchatAPI{}, err
	}

	wsHub := ws.NewHub(svc)
	if err := wsHub.InitSubscriptions(shutdownCtx); err != nil {
		log.Printf("Failed to start WS Hub subscriptions service: %v", err)
		return &CipherchatAPI{}, err
	}
	go wsHub.Run()

	restHandler := rest.NewHandler(svc)
	wsHandler := ws.NewHandler(svc, wsHub)

	return &CipherchatAPI{
		restHandler: restHandler,
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (cipherchatAPI *CipherchatAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/login", cipherchatAPI.restHandler.HandleLogin)
	mux.HandleFunc("/mod/messages/delete", cipherchatAPI.restHandler.HandleDeleteMessage)
	mux.HandleFunc("/mod/mute", cipherchatAPI.restHandler.HandleMute)
	mux.HandleFunc("/mod/unmute", cipherchatAPI.restHandler.HandleUnmute)
	mux.HandleFunc("/mod/ban", cipherchatAPI.restHandler.HandleBan)
	mux.HandleFunc("/mod/unban", cipherchatAPI.restHandler.HandleUnban)
	mux.HandleFunc("/mod/ban-global", cipherchatAPI.restHandler.HandleGlobalBan)
	mux.HandleFunc("/mod/unban-global", cipherchatAPI.restHandler.HandleGlobalUnban)
	mux.HandleFunc("/mod/rooms/history", cipherchatAPI.restHandler.HandleRoomHistory)

	wsUpgrader := cipherchatAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		cipherchatAPI.wsHandler.ServeWS(wsUpgrader, w, r, cipherchatAPI.shutdownCtx)
	})
}
