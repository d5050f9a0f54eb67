package database

import (
	"github.com/go-redis/redis"
)

const onlineRedisKey = "CHAT_ONLINE_USERS"

// RedisPresenceCache redis PresenceCache，给运维侧看在线名单用
type RedisPresenceCache struct {
	client *redis.Client
}

// NewRedisPresenceCache NewRedisPresenceCache
func NewRedisPresenceCache(client *redis.Client) *RedisPresenceCache {
	return &RedisPresenceCache{client: client}
}

// AddOnline AddOnline
func (c *RedisPresenceCache) AddOnline(username string) error {
	return c.client.SAdd(onlineRedisKey, username).Err()
}

// DelOnline DelOnline
func (c *RedisPresenceCache) DelOnline(username string) error {
	return c.client.SRem(onlineRedisKey, username).Err()
}

// Online Online
func (c *RedisPresenceCache) Online() ([]string, error) {
	return c.client.SMembers(onlineRedisKey).Result()
}

// InitRedis return a redis instance
func InitRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
