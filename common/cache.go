// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Cache is a two level byte cache: an in-process LRU backed by an optional
// redis instance. Every entry expires ttl after it was set; values are lz4
// compressed before they are stored.
type Cache struct {
	local *lru.Cache
	rdb   *redis.Client
	ttl   time.Duration
}

type cacheEntry struct {
	val     []byte
	expires time.Time
}

// NewCache creates a cache holding at most localSize entries in-process. rdb may be nil.
func NewCache(localSize int, ttl time.Duration, rdb *redis.Client) (*Cache, error) {
	local, err := lru.New(localSize)
	if err != nil {
		return nil, err
	}

	return &Cache{
		local: local,
		rdb:   rdb,
		ttl:   ttl,
	}, nil
}

// NewCacheFromConfig builds a cache from the cache.* viper keys
func NewCacheFromConfig() (*Cache, error) {
	var rdb *redis.Client
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return nil, err
		}
		rdb = redis.NewClient(opt)
	}

	return NewCache(viper.GetInt("cache.local_size"), viper.GetDuration("cache.ttl"), rdb)
}

// TTL returns the freshness window of cached entries
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Set compresses and stores val under key
func (c *Cache) Set(ctx context.Context, key string, val []byte) error {
	compressed, err := Compress(val)
	if err != nil {
		return err
	}

	c.local.Add(key, &cacheEntry{
		val:     compressed,
		expires: time.Now().Add(c.ttl),
	})

	if c.rdb != nil {
		return c.rdb.Set(ctx, key, compressed, c.ttl).Err()
	}
	return nil
}

// Get returns the bytes stored under key. ok is false when the key is
// missing or its entry has expired.
func (c *Cache) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	if v, found := c.local.Get(key); found {
		entry := v.(*cacheEntry)
		if time.Now().Before(entry.expires) {
			val, err = Decompress(entry.val)
			return val, err == nil, err
		}
		c.local.Remove(key)
	}

	if c.rdb == nil {
		return nil, false, nil
	}

	compressed, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("redis get failed")
		return nil, false, err
	}

	// keep the local copy no fresher than the redis one
	remaining, err := c.rdb.PTTL(ctx, key).Result()
	if err == nil && remaining > 0 {
		c.local.Add(key, &cacheEntry{
			val:     compressed,
			expires: time.Now().Add(remaining),
		})
	}

	val, err = Decompress(compressed)
	return val, err == nil, err
}

// Purge removes every local entry and every redis key matching pattern
func (c *Cache) Purge(ctx context.Context, pattern string) error {
	c.local.Purge()
	if c.rdb == nil {
		return nil
	}

	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0, 100)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Compress encodes in as a single lz4 frame using the fast compression level
func Compress(in []byte) ([]byte, error) {
	var frame bytes.Buffer
	zw := lz4.NewWriter(&frame)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return nil, err
	}

	if _, err := zw.Write(in); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return frame.Bytes(), nil
}

// Decompress reads back a frame written by Compress
func Decompress(frame []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(frame)))
}
