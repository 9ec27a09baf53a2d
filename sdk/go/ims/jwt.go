// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package ims

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"golang.org/x/oauth2"
	jose "gopkg.in/go-jose/go-jose.v2"
)

// Metascopes asserted in the JWT claims. Each entry expands to a
// claim of the form "https://{IMSHost}/s/{metascope}": true.
var jwtMetascopes = []string{"ent_dataservices_sdk"}

// Lifetime of each signed JWT. The exchanged access token expires on
// its own schedule, independent of this.
const jwtLifetime = 30 * time.Minute

// jwtTokenSource implements the service account flow: sign a
// short-lived JWT with the technical account's private key, and
// exchange it for an access token at /ims/exchange/jwt.
type jwtTokenSource struct {
	ctx          context.Context
	clientID     string
	clientSecret string
	orgID        string
	techAcctID   string
	key          *rsa.PrivateKey
	exchangeURL  string
	audience     string
	metascopes   []string
}

func newJWTTokenSource(ctx context.Context, cfg *aep.Config) (oauth2.TokenSource, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"ClientID", cfg.ClientID},
		{"ClientSecret", cfg.ClientSecret},
		{"OrgID", cfg.OrgID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("JWT flow requires %s", strings.Join(missing, ", "))
	}
	key, err := loadPrivateKey(cfg.PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	ts := &jwtTokenSource{
		ctx:          ctx,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		orgID:        cfg.OrgID,
		techAcctID:   cfg.TechnicalAccountID,
		key:          key,
		exchangeURL:  imsURL(cfg, exchangePath),
		audience:     imsURL(cfg, "/c/"+cfg.ClientID),
	}
	for _, m := range jwtMetascopes {
		ts.metascopes = append(ts.metascopes, imsURL(cfg, "/s/"+m))
	}
	return oauth2.ReuseTokenSource(nil, ts), nil
}

func (ts *jwtTokenSource) Token() (*oauth2.Token, error) {
	raw, err := ts.signedJWT()
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
		"jwt_token":     {raw},
	}
	req, err := http.NewRequestWithContext(ts.ctx, http.MethodPost, ts.exchangeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := ts.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	buf, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, exchangeError(resp, buf)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err = json.Unmarshal(buf, &tr); err != nil {
		return nil, fmt.Errorf("error decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response did not include an access token")
	}
	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if tr.ExpiresIn > 0 {
		// Unlike the other IMS token endpoints, the exchange
		// endpoint reports expires_in in milliseconds.
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Millisecond)
	}
	return tok, nil
}

func (ts *jwtTokenSource) signedJWT() (string, error) {
	claims := map[string]interface{}{
		"exp": time.Now().Add(jwtLifetime).Unix(),
		"iss": ts.orgID,
		"sub": ts.techAcctID,
		"aud": ts.audience,
	}
	for _, m := range ts.metascopes {
		claims[m] = true
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: ts.key}, nil)
	if err != nil {
		return "", err
	}
	object, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}
	return object.CompactSerialize()
}

func (ts *jwtTokenSource) httpClient() *http.Client {
	if client, ok := ts.ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		return client
	}
	return http.DefaultClient
}

func exchangeError(resp *http.Response, body []byte) error {
	var e struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	json.Unmarshal(body, &e)
	msg := e.Error
	if e.Description != "" {
		msg = e.Error + ": " + e.Description
	}
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Errorf("token request failed: %s: %s", resp.Status, msg)
}

// loadPrivateKey reads a PEM-encoded RSA private key (PKCS#1 or
// PKCS#8, as downloaded from the developer console) from path.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(buf)
	if block == nil {
		return nil, fmt.Errorf("no PEM data found in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing private key %s: %w", path, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key %s is %T, expected *rsa.PrivateKey", path, key)
	}
	return rsaKey, nil
}
