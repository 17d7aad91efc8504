package service

import (
	"github.com/zlnvch/cipherchat/cache"
	"github.com/zlnvch/cipherchat/mq"
	"github.com/zlnvch/cipherchat/room"
	"github.com/zlnvch/cipherchat/store"
	"github.com/zlnvch/cipherchat/worker"
	"golang.org/x/oauth2"
)

type Service struct {
	Store          store.CipherchatStore
	Cache          cache.CipherchatCache
	MQ             mq.MessageQueue
	Rooms          *room.Registry
	MessageBatcher *worker.MessageBatcher
	OAuthConfigs   map[string]*oauth2.Config
	JWTSecret      []byte
}

func NewService(
	store store.CipherchatStore,
	cache cache.CipherchatCache,
	mq mq.MessageQueue,
	rooms *room.Registry,
	messageBatcher *worker.MessageBatcher,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
) (*Service, error) {
	oauthConfigs, err := addOauthEndpointsAndScopes(oauthConfigs)
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:          store,
		Cache:          cache,
		MQ:             mq,
		Rooms:          rooms,
		MessageBatcher: messageBatcher,
		OAuthConfigs:   oauthConfigs,
		JWTSecret:      jwtSecret,
	}, nil
}
