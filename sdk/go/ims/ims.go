// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package ims obtains access tokens from Adobe's Identity Management
// System and exposes them as oauth2.TokenSources suitable for
// aep.Client.
//
// Three credential flows are supported: a static pre-fetched token,
// the OAuth server-to-server flow (client credentials), and the
// deprecated JWT service account flow.
package ims

import (
	"context"
	"fmt"
	"strings"

	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenPath    = "/ims/token/v3"
	exchangePath = "/ims/exchange/jwt"
)

// NewTokenSource returns a TokenSource that obtains (and transparently
// refreshes) Platform access tokens using the credentials in cfg.
//
// The flow is chosen from the available config fields: a non-empty
// AccessToken is handed out as-is without contacting IMS;
// TechnicalAccountID plus PrivateKeyFile select the JWT service
// account flow; otherwise ClientID and ClientSecret select the OAuth
// server-to-server flow.
func NewTokenSource(ctx context.Context, cfg *aep.Config) (oauth2.TokenSource, error) {
	if cfg.Insecure {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, aep.InsecureHTTPClient)
	}
	switch {
	case cfg.AccessToken != "":
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}), nil
	case cfg.TechnicalAccountID != "" && cfg.PrivateKeyFile != "":
		return newJWTTokenSource(ctx, cfg)
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		conf := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     imsURL(cfg, tokenPath),
			// IMS expects a single comma-separated scope
			// parameter, not the space-separated list the
			// oauth2 package would otherwise send.
			Scopes:    []string{strings.Join(scopes(cfg), ",")},
			AuthStyle: oauth2.AuthStyleInParams,
		}
		return conf.TokenSource(ctx), nil
	default:
		return nil, fmt.Errorf("config has no usable credentials: need AccessToken, or ClientID and ClientSecret")
	}
}

func scopes(cfg *aep.Config) []string {
	if len(cfg.Scopes) > 0 {
		return cfg.Scopes
	}
	return aep.DefaultScopes
}

// imsURL returns the absolute URL of path on the configured IMS
// endpoint. IMSHost is normally a bare hostname, but a full http(s)
// URL is also accepted, so tests can point at a local stub server.
func imsURL(cfg *aep.Config, path string) string {
	host := cfg.IMSHost
	if host == "" {
		host = aep.DefaultIMSHost
	}
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/") + path
	}
	return "https://" + host + path
}
