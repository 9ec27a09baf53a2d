// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// RegistryCache memoizes Schema Registry reads. Schema documents
// change rarely and are fetched repeatedly while resolving $ref
// chains or analyzing sample data, so a small TTL'd cache in front of
// GetSchema/GetFieldGroup removes most registry round trips.
//
// A RegistryCache is safe for concurrent use. The zero TTL and
// MaxEntries fields fall back to 5 minutes and 128 entries.
type RegistryCache struct {
	Client     *Client
	TTL        Duration
	MaxEntries int

	stats     registryCacheStats
	schemas   *lru.TwoQueueCache
	setupOnce sync.Once
}

type registryCacheStats struct {
	Requests uint64 `json:"Cache.Requests"`
	Hits     uint64 `json:"Cache.Hits"`
	APICalls uint64 `json:"Cache.APICalls"`
}

type cachedSchema struct {
	expire time.Time
	schema *Schema
}

type cachedFieldGroup struct {
	expire time.Time
	group  *FieldGroup
}

func (rc *RegistryCache) setup() {
	maxEntries := rc.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 128
	}
	var err error
	rc.schemas, err = lru.New2Q(maxEntries)
	if err != nil {
		panic(err)
	}
}

func (rc *RegistryCache) ttl() time.Duration {
	if rc.TTL > 0 {
		return time.Duration(rc.TTL)
	}
	return 5 * time.Minute
}

// Stats reports cache effectiveness counters.
func (rc *RegistryCache) Stats() registryCacheStats {
	rc.setupOnce.Do(rc.setup)
	return registryCacheStats{
		Requests: atomic.LoadUint64(&rc.stats.Requests),
		Hits:     atomic.LoadUint64(&rc.stats.Hits),
		APICalls: atomic.LoadUint64(&rc.stats.APICalls),
	}
}

// GetSchema returns the schema with the given $id, fetching it on a
// cache miss. The full and abbreviated projections cache separately
// because the registry returns different documents for each.
func (rc *RegistryCache) GetSchema(ctx context.Context, id string, full bool) (Schema, error) {
	rc.setupOnce.Do(rc.setup)
	atomic.AddUint64(&rc.stats.Requests, 1)

	key := schemaCacheKey("schema", id, full)
	if ent, cached := rc.schemas.Get(key); cached {
		ent := ent.(*cachedSchema)
		if ent.expire.Before(time.Now()) {
			rc.schemas.Remove(key)
		} else {
			atomic.AddUint64(&rc.stats.Hits, 1)
			return *ent.schema, nil
		}
	}

	atomic.AddUint64(&rc.stats.APICalls, 1)
	schema, err := rc.Client.GetSchema(ctx, id, full)
	if err != nil {
		return Schema{}, err
	}
	rc.schemas.Add(key, &cachedSchema{
		expire: time.Now().Add(rc.ttl()),
		schema: &schema,
	})
	return schema, nil
}

// GetFieldGroup returns the field group with the given $id, fetching
// it on a cache miss.
func (rc *RegistryCache) GetFieldGroup(ctx context.Context, id string, full bool) (FieldGroup, error) {
	rc.setupOnce.Do(rc.setup)
	atomic.AddUint64(&rc.stats.Requests, 1)

	key := schemaCacheKey("fieldgroup", id, full)
	if ent, cached := rc.schemas.Get(key); cached {
		ent := ent.(*cachedFieldGroup)
		if ent.expire.Before(time.Now()) {
			rc.schemas.Remove(key)
		} else {
			atomic.AddUint64(&rc.stats.Hits, 1)
			return *ent.group, nil
		}
	}

	atomic.AddUint64(&rc.stats.APICalls, 1)
	group, err := rc.Client.GetFieldGroup(ctx, id, full)
	if err != nil {
		return FieldGroup{}, err
	}
	rc.schemas.Add(key, &cachedFieldGroup{
		expire: time.Now().Add(rc.ttl()),
		group:  &group,
	})
	return group, nil
}

// Forget drops any cached copies of the given $id, e.g. after an
// update through the same process.
func (rc *RegistryCache) Forget(id string) {
	rc.setupOnce.Do(rc.setup)
	for _, kind := range []string{"schema", "fieldgroup"} {
		rc.schemas.Remove(schemaCacheKey(kind, id, false))
		rc.schemas.Remove(schemaCacheKey(kind, id, true))
	}
}

func schemaCacheKey(kind, id string, full bool) string {
	key := kind + "\000" + id
	if full {
		key += "\000full"
	}
	return key
}
