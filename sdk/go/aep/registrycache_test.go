// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"context"
	"net/http"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&registryCacheSuite{})

type registryCacheSuite struct {
	stub   *stubTransport
	client *Client
}

func (s *registryCacheSuite) SetUpTest(c *check.C) {
	s.stub = &stubTransport{
		Responses: map[string]string{
			"/data/foundation/schemaregistry/tenant/schemas/acmecorp.schemas.s1":    `{"$id": "https://ns.adobe.com/acmecorp/schemas/s1", "meta:altId": "acmecorp.schemas.s1", "title": "Loyalty Members"}`,
			"/data/foundation/schemaregistry/tenant/fieldgroups/acmecorp.mixins.m1": `{"$id": "https://ns.adobe.com/acmecorp/mixins/m1", "title": "Loyalty Fields"}`,
		},
	}
	s.client = &Client{
		Client:    &http.Client{Transport: s.stub},
		APIHost:   "platform.adobe.io",
		AuthToken: "xyzzy",
	}
}

func (s *registryCacheSuite) TestCacheHit(c *check.C) {
	cache := &RegistryCache{Client: s.client, TTL: Duration(time.Hour)}
	for i := 0; i < 3; i++ {
		schema, err := cache.GetSchema(context.Background(), "acmecorp.schemas.s1", false)
		c.Assert(err, check.IsNil)
		c.Check(schema.Title, check.Equals, "Loyalty Members")
	}
	c.Check(s.stub.Requests, check.HasLen, 1)

	// The resolved projection is cached under its own key.
	_, err := cache.GetSchema(context.Background(), "acmecorp.schemas.s1", true)
	c.Assert(err, check.IsNil)
	c.Check(s.stub.Requests, check.HasLen, 2)

	stats := cache.Stats()
	c.Check(stats.Requests, check.Equals, uint64(4))
	c.Check(stats.Hits, check.Equals, uint64(2))
	c.Check(stats.APICalls, check.Equals, uint64(2))
}

func (s *registryCacheSuite) TestCacheExpiry(c *check.C) {
	cache := &RegistryCache{Client: s.client, TTL: Duration(time.Millisecond)}
	_, err := cache.GetSchema(context.Background(), "acmecorp.schemas.s1", false)
	c.Assert(err, check.IsNil)
	time.Sleep(20 * time.Millisecond)
	_, err = cache.GetSchema(context.Background(), "acmecorp.schemas.s1", false)
	c.Assert(err, check.IsNil)
	c.Check(s.stub.Requests, check.HasLen, 2)
}

func (s *registryCacheSuite) TestForget(c *check.C) {
	cache := &RegistryCache{Client: s.client, TTL: Duration(time.Hour)}
	_, err := cache.GetSchema(context.Background(), "acmecorp.schemas.s1", false)
	c.Assert(err, check.IsNil)
	cache.Forget("acmecorp.schemas.s1")
	_, err = cache.GetSchema(context.Background(), "acmecorp.schemas.s1", false)
	c.Assert(err, check.IsNil)
	c.Check(s.stub.Requests, check.HasLen, 2)
}

func (s *registryCacheSuite) TestFieldGroupsCached(c *check.C) {
	cache := &RegistryCache{Client: s.client, TTL: Duration(time.Hour)}
	for i := 0; i < 2; i++ {
		fg, err := cache.GetFieldGroup(context.Background(), "acmecorp.mixins.m1", false)
		c.Assert(err, check.IsNil)
		c.Check(fg.Title, check.Equals, "Loyalty Fields")
	}
	c.Check(s.stub.Requests, check.HasLen, 1)
}

func (s *registryCacheSuite) TestErrorNotCached(c *check.C) {
	cache := &RegistryCache{Client: s.client, TTL: Duration(time.Hour)}
	_, err := cache.GetSchema(context.Background(), "acmecorp.schemas.nonexistent", false)
	c.Check(err, check.NotNil)
	_, err = cache.GetSchema(context.Background(), "acmecorp.schemas.nonexistent", false)
	c.Check(err, check.NotNil)
	// Both misses went to the API; failures are not cached.
	c.Check(s.stub.Requests, check.HasLen, 2)
}
