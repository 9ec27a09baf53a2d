// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/neep305/adobe-code-cli/sdk/go/version"
	"golang.org/x/oauth2"
)

// A Client is an HTTP client with an Experience Platform API endpoint
// and a set of Adobe credentials.
//
// It offers methods for calling individual Platform APIs, and methods
// that implement common patterns like retrying throttled requests and
// fetching multiple pages of results using List APIs.
type Client struct {
	// HTTP client used to make requests. If nil,
	// DefaultSecureClient or InsecureHTTPClient will be used.
	Client *http.Client `json:"-"`

	// Protocol scheme: "http", "https", or "" (https)
	Scheme string

	// Hostname (or host:port) of the Platform API gateway.
	APIHost string

	// Static access token. Ignored if TokenSource is non-nil.
	AuthToken string

	// TokenSource supplies (and refreshes) the access token sent
	// with each request. See the ims package.
	TokenSource oauth2.TokenSource `json:"-"`

	// API key (a.k.a. client ID), sent as the x-api-key header.
	APIKey string

	// IMS organization ID, sent as the x-gw-ims-org-id header.
	OrgID string

	// Sandbox name, sent as the x-sandbox-name header.
	SandboxName string

	// Tenant ID, without the leading underscore. Used to qualify
	// names in the tenant container of the schema registry.
	TenantID string

	// Accept unverified certificates. This works only if the
	// Client field is nil: otherwise, it has no effect.
	Insecure bool

	// HTTP headers to add/override in outgoing requests.
	SendHeader http.Header

	// Timeout for requests, including all retries. Zero means no
	// deadline: each request runs until it completes, fails, or
	// its context is done.
	Timeout time.Duration

	// Maximum number of times to retry a throttled or failed
	// request. Zero means DefaultRetryMax; negative means don't
	// retry at all.
	MaxRetries int

	defaultRequestID string

	// APIHost and credentials were loaded from AEP_* env vars
	// (used to customize "no host/credentials" error messages)
	loadedFromEnv bool

	// Track/limit concurrent outgoing API calls. Initialized on
	// first use; clients derived with WithRequestID share the
	// same limiter.
	requestLimiter *requestLimiter
}

// Default retry behavior for a Client with MaxRetries == 0: up to 5
// retries (6 requests in the worst case), waiting between attempts
// per exponentialBackoff.
var (
	DefaultRetryMax     = 5
	DefaultRetryWaitMin = time.Second
	DefaultRetryWaitMax = 16 * time.Second
)

// InsecureHTTPClient is the default http.Client used by a Client with
// Insecure==true and Client==nil.
var InsecureHTTPClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true}}}

// DefaultSecureClient is the default http.Client used by a Client otherwise.
var DefaultSecureClient = &http.Client{}

// NewClientFromConfig creates a new Client using the API endpoint and
// credential identifiers in the given configuration.
//
// The returned Client has no AuthToken or TokenSource: the caller is
// expected to populate one of them (see the ims package).
func NewClientFromConfig(cfg *Config) (*Client, error) {
	if cfg.APIHost == "" {
		return nil, fmt.Errorf("invalid config: APIHost is empty")
	}
	return &Client{
		Scheme:      "https",
		APIHost:     cfg.APIHost,
		APIKey:      cfg.ClientID,
		OrgID:       cfg.OrgID,
		SandboxName: cfg.SandboxName,
		TenantID:    cfg.TenantID,
		Insecure:    cfg.Insecure,
		Timeout:     time.Duration(cfg.RequestTimeout),
	}, nil
}

// NewClientFromEnv creates a new Client using the API endpoint and
// credentials given by the AEP_* environment variables.
func NewClientFromEnv() *Client {
	var insecure bool
	if s := strings.ToLower(os.Getenv("AEP_API_HOST_INSECURE")); s == "1" || s == "yes" || s == "true" {
		insecure = true
	}
	apiHost := os.Getenv("AEP_API_HOST")
	if apiHost == "" {
		apiHost = DefaultAPIHost
	}
	sandbox := os.Getenv("AEP_SANDBOX_NAME")
	if sandbox == "" {
		sandbox = DefaultSandboxName
	}
	return &Client{
		Scheme:        "https",
		APIHost:       apiHost,
		AuthToken:     os.Getenv("AEP_ACCESS_TOKEN"),
		APIKey:        os.Getenv("AEP_CLIENT_ID"),
		OrgID:         os.Getenv("AEP_ORG_ID"),
		SandboxName:   sandbox,
		TenantID:      os.Getenv("AEP_TENANT_ID"),
		Insecure:      insecure,
		Timeout:       5 * time.Minute,
		loadedFromEnv: true,
	}
}

var requestLimiterInitMtx sync.Mutex

func (c *Client) limiter() *requestLimiter {
	requestLimiterInitMtx.Lock()
	defer requestLimiterInitMtx.Unlock()
	if c.requestLimiter == nil {
		c.requestLimiter = &requestLimiter{}
	}
	return c.requestLimiter
}

var reqErrorRe = regexp.MustCompile(`net/http: invalid header `)

var nopCancelFunc context.CancelFunc = func() {}

// Do augments (*http.Client)Do(): it adds the Authorization,
// x-api-key, x-gw-ims-org-id, x-sandbox-name, X-Request-Id, and
// User-Agent headers, delays in order to comply with rate-limiting
// restrictions, and retries failed requests when appropriate.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if auth, _ := ctx.Value(contextKeyAuthorization{}).(string); auth != "" {
		req.Header.Set("Authorization", auth)
	} else if req.Header.Get("Authorization") == "" && c.TokenSource != nil {
		tok, err := c.TokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("error getting access token: %w", err)
		}
		tok.SetAuthHeader(req)
	} else if req.Header.Get("Authorization") == "" && c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}
	if c.APIKey != "" && req.Header.Get("X-Api-Key") == "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	if c.OrgID != "" && req.Header.Get("X-Gw-Ims-Org-Id") == "" {
		req.Header.Set("X-Gw-Ims-Org-Id", c.OrgID)
	}
	if c.SandboxName != "" && req.Header.Get("X-Sandbox-Name") == "" {
		req.Header.Set("X-Sandbox-Name", c.SandboxName)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "adobe-code-cli/"+version.GetVersion())
	}
	if req.Header.Get("X-Request-Id") == "" {
		var reqid string
		if ctxreqid, _ := ctx.Value(contextKeyRequestID{}).(string); ctxreqid != "" {
			reqid = ctxreqid
		} else if c.defaultRequestID != "" {
			reqid = c.defaultRequestID
		} else {
			reqid = reqIDGen.Next()
		}
		if req.Header == nil {
			req.Header = http.Header{"X-Request-Id": {reqid}}
		} else {
			req.Header.Set("X-Request-Id", reqid)
		}
	}

	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, err
	}

	cancel := nopCancelFunc
	var lastResp *http.Response
	var lastRespBody io.ReadCloser
	var lastErr error
	var checkRetryCalled int

	rclient := retryablehttp.NewClient()
	rclient.HTTPClient = c.httpClient()
	rclient.Backoff = exponentialBackoff
	rclient.RetryWaitMin = DefaultRetryWaitMin
	rclient.RetryWaitMax = DefaultRetryWaitMax
	rclient.RetryMax = c.MaxRetries
	if rclient.RetryMax == 0 {
		rclient.RetryMax = DefaultRetryMax
	} else if rclient.RetryMax < 0 {
		rclient.RetryMax = 0
	}
	if c.Timeout > 0 {
		ctx, cancel = context.WithDeadline(ctx, time.Now().Add(c.Timeout))
		rreq = rreq.WithContext(ctx)
	}
	rclient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		checkRetryCalled++
		c.limiter().Report(resp, err)
		// A request with an invalid header can never succeed,
		// regardless of what the default retry policy thinks
		// of the resulting transport error.
		if err != nil && reqErrorRe.MatchString(err.Error()) {
			return false, err
		}
		retrying, err := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		if retrying {
			lastResp, lastErr = resp, err
			if lastRespBody != nil {
				lastRespBody.Close()
			}
			lastRespBody = nil
			if resp != nil {
				// Set aside the real body so we can
				// return it to the caller if this
				// turns out to be the last response
				// before the deadline, or before
				// retries are exhausted.
				lastRespBody = resp.Body
				resp.Body = ioutil.NopCloser(bytes.NewReader(nil))
			}
		}
		return retrying, err
	}
	// PassthroughErrorHandler gives us back the final response
	// when retries are exhausted, so a 429/5xx that outlives all
	// of our retries can still be reported with its real status
	// and error body.
	rclient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rclient.Logger = nil

	limiter := c.limiter()
	limiter.Acquire(ctx)
	if ctx.Err() != nil {
		limiter.Release()
		cancel()
		return nil, ctx.Err()
	}
	resp, err := rclient.Do(rreq)
	if (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) && (lastResp != nil || lastErr != nil) {
		// If the last attempt was retried because of a
		// retryable failure, report that failure instead of
		// the less helpful context error.
		resp, err = lastResp, lastErr
	}
	if resp != nil && resp == lastResp {
		resp.Body, lastRespBody = lastRespBody, nil
	} else if lastRespBody != nil {
		lastRespBody.Close()
	}
	if err != nil {
		if checkRetryCalled > 0 {
			// Mimic retryablehttp's "giving up after X
			// attempt(s)" message even though we
			// short-circuited its error handler.
			err = fmt.Errorf("%s %s giving up after %d attempt(s): %w", req.Method, req.URL.String(), checkRetryCalled, err)
		}
		limiter.Release()
		cancel()
		return nil, err
	}
	// We need to release the limiter slot and call cancel()
	// eventually, but not until the caller has finished reading
	// the response body.
	resp.Body = cancelOnClose{
		ReadCloser: resp.Body,
		cancel: func() {
			limiter.Release()
			cancel()
		},
	}
	return resp, err
}

// Implements retryablehttp.Backoff using the server-provided
// Retry-After header if available, otherwise nearly-full jitter
// exponential backoff, in all cases respecting the provided min and
// max.
func exponentialBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if attemptNum > 0 && min < 1 {
		min = 1
	}
	var t time.Duration
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if s := resp.Header.Get("Retry-After"); s != "" {
			if sleep, err := strconv.ParseInt(s, 10, 64); err == nil {
				t = time.Second * time.Duration(sleep)
			} else if stamp, err := time.Parse(time.RFC1123, s); err == nil {
				t = stamp.Sub(time.Now())
			}
		}
	}
	if t == 0 {
		jitter := mathrand.New(mathrand.NewSource(int64(time.Now().Nanosecond()))).Float64()
		t = min + time.Duration((math.Pow(2, float64(attemptNum))*float64(min)-float64(min))*jitter)
	}
	if t < min {
		return min
	} else if t > max {
		return max
	} else {
		return t
	}
}

// cancelOnClose calls a provided CancelFunc when its wrapped
// ReadCloser's Close() method is called.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (coc cancelOnClose) Close() error {
	err := coc.ReadCloser.Close()
	coc.cancel()
	return err
}

// DoAndDecode performs req and unmarshals the response (which must be
// JSON) into dst. Use this instead of RequestAndDecode if you need
// more control of the http.Request object.
//
// If the response status indicates failure, the returned error is a
// NotFoundError, RateLimitError, ServerError, or TransactionError
// depending on the status code.
func (c *Client) DoAndDecode(dst interface{}, req *http.Request) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	buf, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300 && (dst == nil || len(buf) == 0):
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return json.Unmarshal(buf, dst)
	default:
		return coerceTransactionError(newTransactionError(req, resp, buf))
	}
}

// Convert an arbitrary struct or map to url.Values. For example,
//
//	Foo{Bar: []int{1,2,3}, Baz: "waz"}
//
// becomes
//
//	url.Values{`bar`:`[1,2,3]`,`Baz`:`waz`}
//
// params itself is returned if it is already an url.Values.
func anythingToValues(params interface{}) (url.Values, error) {
	if v, ok := params.(url.Values); ok {
		return v, nil
	}
	// TODO: Do this more efficiently, possibly using
	// json.Decode/Encode, so the whole thing doesn't have to get
	// encoded, decoded, and re-encoded.
	j, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	dec := json.NewDecoder(bytes.NewBuffer(j))
	dec.UseNumber()
	err = dec.Decode(&generic)
	if err != nil {
		return nil, err
	}
	urlValues := url.Values{}
	for k, v := range generic {
		if v, ok := v.(string); ok {
			urlValues.Set(k, v)
			continue
		}
		if v, ok := v.(json.Number); ok {
			urlValues.Set(k, v.String())
			continue
		}
		if v, ok := v.(bool); ok {
			if v {
				urlValues.Set(k, "true")
			} else {
				// "foo=false", "foo=0", and "foo="
				// are all taken as true strings, so
				// don't send false values at all --
				// rely on the default being false.
			}
			continue
		}
		j, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(j, []byte("null")) {
			// don't add it to urlValues at all
			continue
		}
		urlValues.Set(k, string(j))
	}
	return urlValues, nil
}

// RequestAndDecode performs an API request and unmarshals the
// response (which must be JSON) into dst. Method and body arguments
// are the same as for http.NewRequest(). The given path is added to
// the server's scheme/host/port to form the request URL.
//
// For GET, HEAD, and DELETE requests -- and whenever a non-nil body
// is given -- params are sent as the query string. Otherwise params
// are marshalled and sent as a JSON request body. Params of type
// url.Values are always sent as the query string, regardless of
// method.
//
// path must not contain a query string.
func (c *Client) RequestAndDecode(dst interface{}, method, path string, body io.Reader, params interface{}) error {
	return c.RequestAndDecodeContext(context.Background(), dst, method, path, body, params)
}

// RequestAndDecodeContext does the same as RequestAndDecode, but with a context
func (c *Client) RequestAndDecodeContext(ctx context.Context, dst interface{}, method, path string, body io.Reader, params interface{}) error {
	if body, ok := body.(io.Closer); ok {
		// Ensure body is closed even if we error out early
		defer body.Close()
	}
	if c.APIHost == "" {
		if c.loadedFromEnv {
			return errors.New("AEP_API_HOST and/or AEP_* credential environment variables are not set")
		}
		return errors.New("aep.Client cannot perform request: APIHost is not set")
	}
	urlString := c.apiURL(path)
	var contentType string
	addQuery := func(vals url.Values) error {
		u, err := url.Parse(urlString)
		if err != nil {
			return err
		}
		u.RawQuery = vals.Encode()
		urlString = u.String()
		return nil
	}
	if vals, ok := params.(url.Values); ok {
		if err := addQuery(vals); err != nil {
			return err
		}
	} else if params == nil {
		// Nothing to send
	} else if body != nil || method == http.MethodGet || method == http.MethodHead || method == http.MethodDelete {
		vals, err := anythingToValues(params)
		if err != nil {
			return err
		}
		if err := addQuery(vals); err != nil {
			return err
		}
	} else {
		buf, err := json.Marshal(params)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, method, urlString, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.SendHeader {
		req.Header[k] = v
	}
	return c.DoAndDecode(dst, req)
}

// WithRequestID returns a new shallow copy of c that sends the given
// X-Request-Id value (instead of a new randomly generated one) with
// each subsequent request that doesn't provide its own via context or
// header.
func (c *Client) WithRequestID(reqid string) *Client {
	cc := *c
	cc.defaultRequestID = reqid
	return &cc
}

func (c *Client) httpClient() *http.Client {
	switch {
	case c.Client != nil:
		return c.Client
	case c.Insecure:
		return InsecureHTTPClient
	default:
		return DefaultSecureClient
	}
}

func (c *Client) apiURL(path string) string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + c.APIHost + "/" + path
}
