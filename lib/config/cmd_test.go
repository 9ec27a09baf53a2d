// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&CmdSuite{})

type CmdSuite struct{}

func (s *CmdSuite) writeConfig(c *check.C, content string) string {
	path := filepath.Join(c.MkDir(), "aep.yml")
	c.Assert(ioutil.WriteFile(path, []byte(content), 0600), check.IsNil)
	return path
}

func (s *CmdSuite) TestDumpRedactsSecrets(c *check.C) {
	path := s.writeConfig(c, "ClientID: id1\nClientSecret: hunter2\nAccessToken: sekrit\n")
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	exited := DumpCommand.RunCommand("aep config-dump", []string{"-config", path}, bytes.NewReader(nil), stdout, stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Matches, `(?ms).*ClientID: id1.*`)
	c.Check(stdout.String(), check.Matches, `(?ms).*\*{8}.*`)
	c.Check(stdout.String(), check.Not(check.Matches), `(?ms).*hunter2.*`)
	c.Check(stdout.String(), check.Not(check.Matches), `(?ms).*sekrit.*`)
}

func (s *CmdSuite) TestDumpShowSecrets(c *check.C) {
	path := s.writeConfig(c, "ClientSecret: hunter2\n")
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	exited := DumpCommand.RunCommand("aep config-dump", []string{"-config", path, "-show-secrets"}, bytes.NewReader(nil), stdout, stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Matches, `(?ms).*ClientSecret: hunter2.*`)
}

func (s *CmdSuite) TestDefaults(c *check.C) {
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	exited := DefaultsCommand.RunCommand("aep config-defaults", nil, bytes.NewReader(nil), stdout, stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, string(DefaultYAML))
}

func (s *CmdSuite) TestCheckReportsProblems(c *check.C) {
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	exited := CheckCommand.RunCommand("aep config-check", []string{"-config", "-"}, strings.NewReader("ClientID: id1\nBogusKey: 1\n"), stdout, stderr)
	c.Check(exited, check.Equals, 1)
	c.Check(stdout.String(), check.Matches, `(?ms).*deprecated or unknown config entry: BogusKey.*`)
	c.Check(stdout.String(), check.Matches, `(?ms).*configuration problem: incomplete credentials: .*`)
}

func (s *CmdSuite) TestCheckOK(c *check.C) {
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	exited := CheckCommand.RunCommand("aep config-check", []string{"-config", "-"}, strings.NewReader("AccessToken: tok\n"), stdout, stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "")
}

func (s *CmdSuite) TestInit(c *check.C) {
	path := filepath.Join(c.MkDir(), "aep.yml")
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	exited := InitCommand.RunCommand("aep init",
		[]string{"-config", path, "-client-id", "id1", "-org-id", "org1@AdobeOrg", "-tenant-id", "acmecorp"},
		strings.NewReader("prompted-secret\n"), stdout, stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(stderr.String(), check.Matches, `(?ms).*Client secret: .*wrote `+regexp.QuoteMeta(path)+`.*`)

	fi, err := os.Stat(path)
	c.Assert(err, check.IsNil)
	c.Check(fi.Mode().Perm(), check.Equals, os.FileMode(0600))

	buf, err := ioutil.ReadFile(path)
	c.Assert(err, check.IsNil)
	var cfg aep.Config
	c.Assert(yaml.Unmarshal(buf, &cfg), check.IsNil)
	c.Check(cfg.ClientID, check.Equals, "id1")
	c.Check(cfg.ClientSecret, check.Equals, "prompted-secret")
	c.Check(cfg.OrgID, check.Equals, "org1@AdobeOrg")
	c.Check(cfg.TenantID, check.Equals, "acmecorp")
	c.Check(cfg.SandboxName, check.Equals, "prod")

	// Refuse to overwrite without -force.
	exited = InitCommand.RunCommand("aep init", []string{"-config", path, "-client-id", "id2"}, strings.NewReader("\n\n"), stdout, bytes.NewBuffer(nil))
	c.Check(exited, check.Equals, 1)

	exited = InitCommand.RunCommand("aep init", []string{"-config", path, "-client-id", "id2", "-force"}, strings.NewReader("\n\n"), stdout, bytes.NewBuffer(nil))
	c.Check(exited, check.Equals, 0)
}
