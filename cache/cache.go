package cache

import (
	"context"
	"time"
)

// CipherchatCache is the moderation store plus the pubsub fabric between
// the REST control plane and connected websocket clients. The relay
// depends on these typed operations only; key layout is an implementation
// detail of the Redis backend.
//
// Mutes expire server-side; absent or expired means not muted. Bans are
// permanent markers until explicitly cleared.
type CipherchatCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	IsMuted(ctx context.Context, roomId string, tripcode string) (bool, error)
	IsBanned(ctx context.Context, roomId string, tripcode string) (bool, error)
	IsGloballyBanned(ctx context.Context, tripcode string) (bool, error)

	SetMute(ctx context.Context, roomId string, tripcode string, duration time.Duration) error
	SetBan(ctx context.Context, roomId string, tripcode string) error
	SetGlobalBan(ctx context.Context, tripcode string) error

	ClearMute(ctx context.Context, roomId string, tripcode string) error
	ClearBan(ctx context.Context, roomId string, tripcode string) error
	ClearGlobalBan(ctx context.Context, tripcode string) error
}
