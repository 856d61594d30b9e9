package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gt06gateway/internal/config"
	"gt06gateway/internal/core/model"
	"gt06gateway/internal/core/util"
)

// ErrDisabled is returned by queue operations when no Redis is configured
var ErrDisabled = errors.New("cache disabled")

// RedisCache holds last positions, live sessions and the offline command queue.
// A cache built without a client is disabled: writes are no-ops and reads miss.
type RedisCache struct {
	client *redis.Client
	ttl    config.RedisConfig
	log    zerolog.Logger
}

// New wraps an existing client. client may be nil.
func New(client *redis.Client, cfg config.RedisConfig, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    cfg,
		log:    logger.With().Str("component", "redis_cache").Logger(),
	}
}

// Connect sets up the Redis connection when a URL is configured
func Connect(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	if cfg.URL == "" {
		logger.Warn().Msg("Redis URL not provided, caching disabled")
		return New(nil, cfg, logger), nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info().Str("addr", opt.Addr).Msg("Redis cache initialized")
	return New(client, cfg, logger), nil
}

// Enabled reports whether a Redis client is attached
func (c *RedisCache) Enabled() bool {
	return c.client != nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func sessionKey(deviceID string) string {
	return "device:" + deviceID + ":session"
}

func locationKey(deviceID string) string {
	return "device:" + deviceID + ":location"
}

func commandsKey(deviceID string) string {
	return "device:" + deviceID + ":commands"
}

func (c *RedisCache) set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// get decodes key into dest and reports whether it was present
func (c *RedisCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

// SetLastPosition caches the most recent position of a device
func (c *RedisCache) SetLastPosition(ctx context.Context, pos *model.Position) error {
	return c.set(ctx, locationKey(pos.DeviceID), pos, c.ttl.LocationTTL)
}

// GetLastPosition returns the cached position, or nil when none is cached
func (c *RedisCache) GetLastPosition(ctx context.Context, deviceID string) (*model.Position, error) {
	var pos model.Position
	ok, err := c.get(ctx, locationKey(deviceID), &pos)
	if err != nil || !ok {
		return nil, err
	}
	return &pos, nil
}

// SetDeviceSession records which gateway connection currently serves a device
func (c *RedisCache) SetDeviceSession(ctx context.Context, session *model.DeviceSession) error {
	return c.set(ctx, sessionKey(session.DeviceID), session, c.ttl.SessionTTL)
}

// GetDeviceSession returns the cached session, or nil when the device is offline
func (c *RedisCache) GetDeviceSession(ctx context.Context, deviceID string) (*model.DeviceSession, error) {
	var session model.DeviceSession
	ok, err := c.get(ctx, sessionKey(deviceID), &session)
	if err != nil || !ok {
		return nil, err
	}
	return &session, nil
}

// RemoveDeviceSession deletes the cached session of a device
func (c *RedisCache) RemoveDeviceSession(ctx context.Context, deviceID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, sessionKey(deviceID)).Err()
}

// QueueCommand stores cmd for delivery at the device's next login and returns its id
func (c *RedisCache) QueueCommand(ctx context.Context, cmd *model.Command) (string, error) {
	if c.client == nil {
		return "", ErrDisabled
	}
	if cmd.ID == "" {
		cmd.ID = util.GenerateID()
	}
	cmd.Status = model.CommandStatusPending

	data, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}

	key := commandsKey(cmd.DeviceID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.Expire(ctx, key, c.ttl.CommandTTL)
		return nil
	})
	if err != nil {
		return "", err
	}
	return cmd.ID, nil
}

// PendingCommands removes and returns every queued command of a device, oldest first
func (c *RedisCache) PendingCommands(ctx context.Context, deviceID string) ([]*model.Command, error) {
	if c.client == nil {
		return nil, nil
	}

	key := commandsKey(deviceID)
	var items *redis.StringSliceCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw := items.Val()
	commands := make([]*model.Command, 0, len(raw))
	// LPUSH keeps the newest at the head
	for i := len(raw) - 1; i >= 0; i-- {
		var cmd model.Command
		if err := json.Unmarshal([]byte(raw[i]), &cmd); err != nil {
			c.log.Warn().Err(err).Str("device_id", deviceID).Msg("Dropping unreadable queued command")
			continue
		}
		commands = append(commands, &cmd)
	}
	return commands, nil
}
