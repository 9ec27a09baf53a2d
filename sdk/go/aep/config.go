// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/ghodss/yaml"
)

const (
	// DefaultAPIHost is the Experience Platform API gateway.
	DefaultAPIHost = "platform.adobe.io"
	// DefaultIMSHost is the Identity Management System endpoint
	// used to obtain access tokens.
	DefaultIMSHost = "ims-na1.adobelogin.com"
	// DefaultSandboxName is used when no sandbox is configured.
	DefaultSandboxName = "prod"
)

// DefaultScopes are the OAuth scopes requested by the
// server-to-server credential flow when the config doesn't specify
// any.
var DefaultScopes = []string{
	"openid",
	"AdobeID",
	"read_organizations",
	"additional_info.projectedProductContext",
}

// Config holds the developer console credentials, endpoints, and
// tunables for one IMS organization.
//
// It is loaded from a YAML file (see lib/config) whose keys match the
// field names below.
type Config struct {
	// Client ID (API key) of the developer console project.
	ClientID string
	// Client secret, used by both the server-to-server and the
	// legacy JWT credential flows.
	ClientSecret string
	// IMS organization ID, e.g. "…1B@AdobeOrg".
	OrgID string
	// Technical account ID, e.g. "…6D@techacct.adobe.com". Only
	// used by the legacy JWT credential flow.
	TechnicalAccountID string
	// Path of the PEM-encoded RSA private key paired with the
	// certificate uploaded to the developer console. Only used by
	// the legacy JWT credential flow.
	PrivateKeyFile string
	// Static access token. When set, no token is requested from
	// IMS.
	AccessToken string
	// OAuth scopes for the server-to-server flow. Empty means
	// DefaultScopes.
	Scopes []string

	SandboxName string
	// Tenant ID, without the leading underscore.
	TenantID string

	APIHost string
	IMSHost string
	// Accept unverified TLS certificates (test servers only).
	Insecure bool

	// Timeout for each API call, including all retries.
	RequestTimeout Duration

	Upload UploadConfig
	Poll   PollConfig

	// Profiles are named partial configs overlaid on the root
	// config when selected, e.g. a "dev" profile that switches
	// SandboxName and TenantID.
	Profiles map[string]Config `json:",omitempty"`
}

// UploadConfig tunes batch file uploads.
type UploadConfig struct {
	// Maximum number of files uploaded concurrently by
	// UploadMany.
	MaxConcurrent int
	// Files larger than ChunkSize are uploaded in Content-Range
	// chunks of this size.
	ChunkSize ByteSize
}

// PollConfig tunes batch status polling.
type PollConfig struct {
	Interval Duration
	Timeout  Duration
}

// DefaultConfig returns a Config with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		APIHost:        DefaultAPIHost,
		IMSHost:        DefaultIMSHost,
		SandboxName:    DefaultSandboxName,
		Scopes:         append([]string(nil), DefaultScopes...),
		RequestTimeout: Duration(30 * time.Second),
		Upload: UploadConfig{
			MaxConcurrent: 3,
			ChunkSize:     10 << 20,
		},
		Poll: PollConfig{
			Interval: Duration(5 * time.Second),
			Timeout:  Duration(5 * time.Minute),
		},
	}
}

// DefaultConfigFile returns the config file path: $AEP_CONFIG if set,
// otherwise ~/.config/aep/aep.yml.
func DefaultConfigFile() string {
	if path := os.Getenv("AEP_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "aep", "aep.yml")
}

// GetConfig returns the configuration in configFile, overlaid on
// DefaultConfig. Environment variables are not applied; see ApplyEnv
// and the lib/config loader.
func GetConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	buf, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	var file Config
	err = yaml.Unmarshal(buf, &file)
	if err != nil {
		return nil, fmt.Errorf("loading config data: %w", err)
	}
	err = mergo.Merge(&cfg, file, mergo.WithOverride)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides config fields with their corresponding AEP_*
// environment variables, where set.
func (c *Config) ApplyEnv() {
	for _, v := range []struct {
		name string
		dst  *string
	}{
		{"AEP_CLIENT_ID", &c.ClientID},
		{"AEP_CLIENT_SECRET", &c.ClientSecret},
		{"AEP_ORG_ID", &c.OrgID},
		{"AEP_TECHNICAL_ACCOUNT_ID", &c.TechnicalAccountID},
		{"AEP_PRIVATE_KEY_FILE", &c.PrivateKeyFile},
		{"AEP_ACCESS_TOKEN", &c.AccessToken},
		{"AEP_SANDBOX_NAME", &c.SandboxName},
		{"AEP_TENANT_ID", &c.TenantID},
		{"AEP_API_HOST", &c.APIHost},
		{"AEP_IMS_HOST", &c.IMSHost},
	} {
		if s := os.Getenv(v.name); s != "" {
			*v.dst = s
		}
	}
	if s := strings.ToLower(os.Getenv("AEP_API_HOST_INSECURE")); s == "1" || s == "yes" || s == "true" {
		c.Insecure = true
	}
	if s := os.Getenv("AEP_SCOPES"); s != "" {
		var scopes []string
		for _, scope := range strings.Split(s, ",") {
			if scope = strings.TrimSpace(scope); scope != "" {
				scopes = append(scopes, scope)
			}
		}
		c.Scopes = scopes
	}
}

// WithProfile returns a copy of c with the named profile's fields
// overlaid on the root config. Profile fields left at their zero
// value keep the root config's value.
func (c Config) WithProfile(name string) (Config, error) {
	if name == "" {
		c.Profiles = nil
		return c, nil
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return c, fmt.Errorf("undefined profile %q", name)
	}
	out := c
	out.Profiles = nil
	err := mergo.Merge(&out, profile, mergo.WithOverride)
	if err != nil {
		return c, err
	}
	return out, nil
}

// Validate returns an error if the config is too incomplete to
// authenticate with: it needs either a static AccessToken, or the
// ClientID/ClientSecret/OrgID trio (plus TechnicalAccountID and
// PrivateKeyFile for the legacy JWT flow).
func (c *Config) Validate() error {
	if c.APIHost == "" {
		return fmt.Errorf("APIHost is not set")
	}
	if c.AccessToken != "" {
		return nil
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"ClientID", c.ClientID},
		{"ClientSecret", c.ClientSecret},
		{"OrgID", c.OrgID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete credentials: %s must be set (or provide AccessToken)", strings.Join(missing, ", "))
	}
	if (c.TechnicalAccountID == "") != (c.PrivateKeyFile == "") {
		return fmt.Errorf("TechnicalAccountID and PrivateKeyFile must be set together for the JWT flow")
	}
	return nil
}
