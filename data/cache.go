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

package data

import (
	"context"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
)

// PriceCachePrefix starts every cached price table key
const PriceCachePrefix = "pvbt:prices:"

// CachedProvider serves repeated requests for the same tickers and range
// from a cache until the entry expires
type CachedProvider struct {
	next  Provider
	cache *common.Cache
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps next with cache
func NewCachedProvider(next Provider, cache *common.Cache) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: cache,
	}
}

// PriceCacheKey derives the cache key of a request; ticker order does not matter
func PriceCacheKey(tickers []string, begin, end time.Time) string {
	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)

	var sb strings.Builder
	sb.WriteString(strings.Join(sorted, ","))
	sb.WriteString("|")
	sb.WriteString(begin.Format(common.DateFormat))
	sb.WriteString("|")
	sb.WriteString(end.Format(common.DateFormat))

	sum := blake3.Sum256([]byte(sb.String()))
	return PriceCachePrefix + hex.EncodeToString(sum[:16])
}

// GetPrices returns the cached table if present otherwise fetches it from the
// wrapped provider and caches it. Cache failures are logged and never fail
// the request.
func (c *CachedProvider) GetPrices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	key := PriceCacheKey(tickers, begin, end)
	subLog := log.With().Str("CacheKey", key).Logger()

	if encoded, ok, err := c.cache.Get(ctx, key); err != nil {
		subLog.Warn().Err(err).Msg("price cache lookup failed")
	} else if ok {
		df := &dataframe.DataFrame{}
		err := msgpack.Unmarshal(encoded, df)
		if err == nil {
			for idx := range df.Dates {
				df.Dates[idx] = df.Dates[idx].UTC()
			}
			subLog.Debug().Msg("price cache hit")
			return df, nil
		}
		subLog.Warn().Err(err).Msg("could not decode cached price table")
	}

	df, err := c.next.GetPrices(ctx, tickers, begin, end)
	if err != nil {
		return nil, err
	}

	encoded, err := msgpack.Marshal(df)
	if err != nil {
		subLog.Warn().Err(err).Msg("could not encode price table")
		return df, nil
	}

	if err := c.cache.Set(ctx, key, encoded); err != nil {
		subLog.Warn().Err(err).Msg("could not store price table in cache")
	}

	return df, nil
}

// Purge drops every cached price table
func (c *CachedProvider) Purge(ctx context.Context) error {
	return c.cache.Purge(ctx, PriceCachePrefix+"*")
}
