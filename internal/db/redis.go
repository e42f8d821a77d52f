package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/domain"
	"github.com/airenas/transcript-workbench/internal/secure"
	"github.com/redis/go-redis/v9"
)

// RedisDataManager stores encrypted session snapshots in Redis.
type RedisDataManager struct {
	client  *redis.Client
	ttl     time.Duration
	crypter *secure.Crypter
}

// NewRedisDataManager creates a new RedisDataManager with connection pooling.
func NewRedisDataManager(connStr string, encryptionKey string, ttl time.Duration) (*RedisDataManager, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	crypter, err := secure.NewCrypter(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("create crypter: %w", err)
	}
	goapp.Log.Info().Str("redis", opt.Addr).Int("db", opt.DB).Dur("ttl", ttl).Send()
	rdb := redis.NewClient(opt)
	if ttl <= 0 {
		ttl = time.Hour * 6
	}

	return &RedisDataManager{
		client:  rdb,
		ttl:     ttl,
		crypter: crypter,
	}, nil
}

func (r *RedisDataManager) keySession(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// SaveSession stores session as encrypted JSON
func (r *RedisDataManager) SaveSession(ctx context.Context, data *domain.Session) error {
	goapp.Log.Trace().Str("id", data.ID).Msg("Save session")
	bs, err := json.Marshal(data)
	if err != nil {
		return err
	}
	encrypted, err := r.crypter.Encrypt(bs)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return r.client.Set(ctx, r.keySession(data.ID), encrypted, r.ttl).Err()
}

// GetSession retrieves session from Redis, returns nil if not found
func (r *RedisDataManager) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	bs, err := r.client.Get(ctx, r.keySession(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	decrypted, err := r.crypter.Decrypt(bs)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	var res domain.Session
	if err := json.Unmarshal(decrypted, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteSession removes session from Redis
func (r *RedisDataManager) DeleteSession(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.keySession(id)).Err()
}

func (r *RedisDataManager) Close() error {
	return r.client.Close()
}
