// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the "aep auth" subcommands: printing and
// inspecting IMS access tokens, and checking that the configured
// credentials actually work.
package auth

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/neep305/adobe-code-cli/lib/cli"
	"github.com/neep305/adobe-code-cli/lib/cmd"
	"github.com/neep305/adobe-code-cli/lib/config"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ctxlog"
	"github.com/neep305/adobe-code-cli/sdk/go/ims"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	jose "gopkg.in/go-jose/go-jose.v2"
)

var Command = cmd.Multi(map[string]cmd.Handler{
	"token": tokenCommand{},
	"test":  testCommand{},
})

// tokenCommand fetches an access token using the configured credential
// flow and prints it, so other tools (curl, CI jobs) can reuse the
// CLI's credentials. With -decode it prints the token's metadata
// instead of the token itself.
type tokenCommand struct{}

func (tokenCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	output := cli.NewOutputFlags()
	output.SetFlags(flags)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	decode := flags.Bool("decode", false, "print token metadata instead of the bare token")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	ts, err := ims.NewTokenSource(ctx, cfg)
	if err != nil {
		return 1
	}
	tok, err := ts.Token()
	if err != nil {
		return 1
	}
	if !*decode {
		fmt.Fprintln(stdout, tok.AccessToken)
		return 0
	}
	err = output.Render(stdout, decodeToken(tok))
	if err != nil {
		return 1
	}
	return 0
}

// TokenInfo is the "auth token -decode" report: what can be read out
// of an access token without verifying it.
type TokenInfo struct {
	TokenType string     `json:"tokenType"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	ClientID  string     `json:"clientId,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	Scopes    []string   `json:"scopes,omitempty"`
}

func decodeToken(tok *oauth2.Token) TokenInfo {
	info := TokenInfo{TokenType: tok.Type()}
	if !tok.Expiry.IsZero() {
		expires := tok.Expiry.UTC()
		info.ExpiresAt = &expires
	}
	claims := decodeClaims(tok.AccessToken)
	if s, _ := claims["client_id"].(string); s != "" {
		info.ClientID = s
	}
	if s, _ := claims["user_id"].(string); s != "" {
		info.UserID = s
	}
	if s, _ := claims["scope"].(string); s != "" {
		info.Scopes = strings.Split(s, ",")
	}
	if info.ExpiresAt == nil {
		// IMS writes created_at and expires_in into the claims
		// as strings, in milliseconds.
		created, err1 := strconv.ParseInt(stringClaim(claims, "created_at"), 10, 64)
		ttl, err2 := strconv.ParseInt(stringClaim(claims, "expires_in"), 10, 64)
		if err1 == nil && err2 == nil {
			expires := time.UnixMilli(created + ttl).UTC()
			info.ExpiresAt = &expires
		}
	}
	return info
}

// decodeClaims returns the claims from the payload of a JWT-shaped
// access token, or nil if tok is not one (e.g., an opaque token). The
// signature is deliberately not checked: this inspects our own
// token's metadata, it does not authenticate anything.
func decodeClaims(tok string) map[string]interface{} {
	sig, err := jose.ParseSigned(tok)
	if err != nil {
		return nil
	}
	var claims map[string]interface{}
	if json.Unmarshal(sig.UnsafePayloadWithoutVerification(), &claims) != nil {
		return nil
	}
	return claims
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// testCommand checks the configured credentials end to end: fetch a
// token from IMS, then make a read-only Catalog request with it.
type testCommand struct{}

func (testCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	logger := ctxlog.New(stderr, "text", "info")
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	report := ctxlog.New(stdout, "text", "info")
	report.SetFormatter(cmd.NoPrefixFormatter{})

	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	err = cfg.Validate()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	t0 := time.Now()
	tok, err := client.TokenSource.Token()
	if err != nil {
		err = fmt.Errorf("token fetch failed: %w", err)
		return 1
	}
	expiry := "expiry unknown"
	if !tok.Expiry.IsZero() {
		expiry = fmt.Sprintf("expires in %s", time.Until(tok.Expiry).Round(time.Second))
	}
	report.Infof("token OK: %s flow, fetched in %s, %s", flowName(cfg), time.Since(t0).Round(time.Millisecond), expiry)
	t0 = time.Now()
	datasets, err := client.ListDatasets(ctx, aep.ListOptions{Limit: 1})
	if err != nil {
		err = fmt.Errorf("catalog request failed: %w", err)
		return 1
	}
	report.Infof("catalog OK: sandbox %q answered in %s (%d dataset(s) visible)", cfg.SandboxName, time.Since(t0).Round(time.Millisecond), len(datasets))
	return 0
}

func flowName(cfg *aep.Config) string {
	switch {
	case cfg.AccessToken != "":
		return "static token"
	case cfg.TechnicalAccountID != "" && cfg.PrivateKeyFile != "":
		return "JWT service account"
	default:
		return "OAuth server-to-server"
	}
}
