package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/michaelpento.lv/swapquote/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// RedisTokenStore shares token metadata between service instances
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenStore(addr, password string, db int, ttl time.Duration) *RedisTokenStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisTokenStore{client: client, ttl: ttl}
}

// Ping checks that the server is reachable
func (r *RedisTokenStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTokenStore) Close() error {
	return r.client.Close()
}

func tokenKey(chainID uint64, address common.Address) string {
	return fmt.Sprintf("token:%d:%s", chainID, address.Hex())
}

func (r *RedisTokenStore) GetToken(ctx context.Context, chainID uint64, address common.Address) (types.Token, bool, error) {
	data, err := r.client.Get(ctx, tokenKey(chainID, address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.Token{}, false, nil
		}
		return types.Token{}, false, err
	}

	var token types.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return types.Token{}, false, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return token, true, nil
}

func (r *RedisTokenStore) SetToken(ctx context.Context, chainID uint64, token types.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return r.client.Set(ctx, tokenKey(chainID, token.Address), data, r.ttl).Err()
}
