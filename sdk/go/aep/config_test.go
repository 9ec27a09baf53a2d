// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&ConfigSuite{})

type ConfigSuite struct{}

func (s *ConfigSuite) writeConfig(c *check.C, content string) string {
	path := filepath.Join(c.MkDir(), "aep.yml")
	err := ioutil.WriteFile(path, []byte(content), 0600)
	c.Assert(err, check.IsNil)
	return path
}

func (s *ConfigSuite) TestGetConfig(c *check.C) {
	path := s.writeConfig(c, `
ClientID: client-abc
ClientSecret: hunter2
OrgID: F00@AdobeOrg
TenantID: acmecorp
SandboxName: dev
RequestTimeout: 45s
Upload:
  MaxConcurrent: 5
Profiles:
  stage:
    SandboxName: stage-sandbox
    APIHost: platform-stage.adobe.io
`)
	cfg, err := GetConfig(path)
	c.Assert(err, check.IsNil)
	c.Check(cfg.ClientID, check.Equals, "client-abc")
	c.Check(cfg.SandboxName, check.Equals, "dev")
	c.Check(cfg.RequestTimeout, check.Equals, Duration(45*time.Second))

	// Unmentioned fields keep their defaults, including inside
	// nested sections that are partially overridden.
	c.Check(cfg.APIHost, check.Equals, DefaultAPIHost)
	c.Check(cfg.IMSHost, check.Equals, DefaultIMSHost)
	c.Check(cfg.Scopes, check.DeepEquals, DefaultScopes)
	c.Check(cfg.Upload.MaxConcurrent, check.Equals, 5)
	c.Check(cfg.Upload.ChunkSize, check.Equals, ByteSize(10<<20))
	c.Check(cfg.Poll.Interval, check.Equals, Duration(5*time.Second))
}

func (s *ConfigSuite) TestGetConfigErrors(c *check.C) {
	_, err := GetConfig(filepath.Join(c.MkDir(), "nonexistent.yml"))
	c.Check(err, check.NotNil)
	c.Check(os.IsNotExist(err), check.Equals, true)

	path := s.writeConfig(c, "{{{not yaml")
	_, err = GetConfig(path)
	c.Check(err, check.ErrorMatches, `loading config data:.*`)
}

func (s *ConfigSuite) TestWithProfile(c *check.C) {
	path := s.writeConfig(c, `
ClientID: client-abc
TenantID: acmecorp
SandboxName: dev
Profiles:
  stage:
    SandboxName: stage-sandbox
    APIHost: platform-stage.adobe.io
`)
	cfg, err := GetConfig(path)
	c.Assert(err, check.IsNil)

	stage, err := cfg.WithProfile("stage")
	c.Assert(err, check.IsNil)
	c.Check(stage.SandboxName, check.Equals, "stage-sandbox")
	c.Check(stage.APIHost, check.Equals, "platform-stage.adobe.io")
	// Fields the profile doesn't mention come from the root config.
	c.Check(stage.ClientID, check.Equals, "client-abc")
	c.Check(stage.TenantID, check.Equals, "acmecorp")
	c.Check(stage.Profiles, check.IsNil)

	root, err := cfg.WithProfile("")
	c.Assert(err, check.IsNil)
	c.Check(root.SandboxName, check.Equals, "dev")
	c.Check(root.Profiles, check.IsNil)

	_, err = cfg.WithProfile("nonesuch")
	c.Check(err, check.ErrorMatches, `undefined profile "nonesuch"`)
}

func (s *ConfigSuite) TestApplyEnv(c *check.C) {
	oldenv := os.Environ()
	defer func() {
		os.Clearenv()
		for _, s := range oldenv {
			i := strings.IndexRune(s, '=')
			os.Setenv(s[:i], s[i+1:])
		}
	}()
	for _, s := range os.Environ() {
		if strings.HasPrefix(s, "AEP_") {
			i := strings.IndexRune(s, '=')
			os.Unsetenv(s[:i])
		}
	}

	cfg := DefaultConfig()
	cfg.ClientID = "from-file"
	cfg.SandboxName = "dev"
	cfg.ApplyEnv()
	c.Check(cfg.ClientID, check.Equals, "from-file")
	c.Check(cfg.Insecure, check.Equals, false)

	os.Setenv("AEP_CLIENT_ID", "from-env")
	os.Setenv("AEP_SANDBOX_NAME", "stage-sandbox")
	os.Setenv("AEP_API_HOST_INSECURE", "true")
	os.Setenv("AEP_SCOPES", "openid, AdobeID")
	cfg.ApplyEnv()
	c.Check(cfg.ClientID, check.Equals, "from-env")
	c.Check(cfg.SandboxName, check.Equals, "stage-sandbox")
	c.Check(cfg.Insecure, check.Equals, true)
	c.Check(cfg.Scopes, check.DeepEquals, []string{"openid", "AdobeID"})
}

func (s *ConfigSuite) TestDefaultConfigFile(c *check.C) {
	oldenv := os.Environ()
	defer func() {
		os.Clearenv()
		for _, s := range oldenv {
			i := strings.IndexRune(s, '=')
			os.Setenv(s[:i], s[i+1:])
		}
	}()
	os.Setenv("AEP_CONFIG", "/tmp/explicit.yml")
	c.Check(DefaultConfigFile(), check.Equals, "/tmp/explicit.yml")
	os.Unsetenv("AEP_CONFIG")
	c.Check(strings.HasSuffix(DefaultConfigFile(), filepath.Join(".config", "aep", "aep.yml")), check.Equals, true)
}

func (s *ConfigSuite) TestValidate(c *check.C) {
	cfg := DefaultConfig()
	c.Check(cfg.Validate(), check.ErrorMatches, `incomplete credentials: ClientID, ClientSecret, OrgID must be set.*`)

	cfg.AccessToken = "sekrit"
	c.Check(cfg.Validate(), check.IsNil)

	cfg.AccessToken = ""
	cfg.ClientID = "client-abc"
	cfg.ClientSecret = "hunter2"
	cfg.OrgID = "F00@AdobeOrg"
	c.Check(cfg.Validate(), check.IsNil)

	cfg.TechnicalAccountID = "123@techacct.adobe.com"
	c.Check(cfg.Validate(), check.ErrorMatches, `TechnicalAccountID and PrivateKeyFile must be set together.*`)
	cfg.PrivateKeyFile = "/etc/aep/private.key"
	c.Check(cfg.Validate(), check.IsNil)

	cfg.APIHost = ""
	c.Check(cfg.Validate(), check.ErrorMatches, `APIHost is not set`)
}
