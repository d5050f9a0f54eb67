package database

import (
	mapset "github.com/deckarep/golang-set"
)

// MemPresenceCache 单机模式的在线名单镜像
type MemPresenceCache struct {
	online mapset.Set
}

// NewMemPresenceCache NewMemPresenceCache
func NewMemPresenceCache() *MemPresenceCache {
	return &MemPresenceCache{online: mapset.NewSet()}
}

// AddOnline AddOnline
func (c *MemPresenceCache) AddOnline(username string) error {
	c.online.Add(username)
	return nil
}

// DelOnline DelOnline
func (c *MemPresenceCache) DelOnline(username string) error {
	c.online.Remove(username)
	return nil
}

// Online Online
func (c *MemPresenceCache) Online() ([]string, error) {
	items := c.online.ToSlice()
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.(string))
	}
	return names, nil
}
