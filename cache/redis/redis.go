package redis

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCipherchatCache struct {
	client redis.UniversalClient
}

func NewRedisCipherchatCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisCipherchatCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisCipherchatCache{client: client}, nil
}

func (redisCache *RedisCipherchatCache) Publish(ctx context.Context, channel string, message []byte) error {
	return redisCache.client.Publish(ctx, channel, message).Err()
}

func (redisCache *RedisCipherchatCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Moderation key layout. Mutes carry a Redis TTL so expiry is enforced
// server-side without a sweeper; bans are plain markers with no TTL.
func buildMuteKey(roomId string, tripcode string) string {
	return "room:{" + roomId + "}:muted:" + tripcode
}

func buildBanKey(roomId string, tripcode string) string {
	return "room:{" + roomId + "}:banned:" + tripcode
}

func buildGlobalBanKey(tripcode string) string {
	return "global_banned:" + tripcode
}

func (redisCache *RedisCipherchatCache) exists(ctx context.Context, key string) (bool, error) {
	n, err := redisCache.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (redisCache *RedisCipherchatCache) IsMuted(ctx context.Context, roomId string, tripcode string) (bool, error) {
	return redisCache.exists(ctx, buildMuteKey(roomId, tripcode))
}

func (redisCache *RedisCipherchatCache) IsBanned(ctx context.Context, roomId string, tripcode string) (bool, error) {
	return redisCache.exists(ctx, buildBanKey(roomId, tripcode))
}

func (redisCache *RedisCipherchatCache) IsGloballyBanned(ctx context.Context, tripcode string) (bool, error) {
	return redisCache.exists(ctx, buildGlobalBanKey(tripcode))
}

func (redisCache *RedisCipherchatCache) SetMute(ctx context.Context, roomId string, tripcode string, duration time.Duration) error {
	return redisCache.client.Set(ctx, buildMuteKey(roomId, tripcode), "muted", duration).Err()
}

func (redisCache *RedisCipherchatCache) SetBan(ctx context.Context, roomId string, tripcode string) error {
	return redisCache.client.Set(ctx, buildBanKey(roomId, tripcode), "banned", 0).Err()
}

func (redisCache *RedisCipherchatCache) SetGlobalBan(ctx context.Context, tripcode string) error {
	return redisCache.client.Set(ctx, buildGlobalBanKey(tripcode), "banned", 0).Err()
}

func (redisCache *RedisCipherchatCache) ClearMute(ctx context.Context, roomId string, tripcode string) error {
	return redisCache.client.Del(ctx, buildMuteKey(roomId, tripcode)).Err()
}

func (redisCache *RedisCipherchatCache) ClearBan(ctx context.Context, roomId string, tripcode string) error {
	return redisCache.client.Del(ctx, buildBanKey(roomId, tripcode)).Err()
}

func (redisCache *RedisCipherchatCache) ClearGlobalBan(ctx context.Context, tripcode string) error {
	return redisCache.client.Del(ctx, buildGlobalBanKey(tripcode)).Err()
}
