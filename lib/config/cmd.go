// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/neep305/adobe-code-cli/lib/cmd"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ctxlog"
)

// DumpCommand implements "aep config-dump": print the effective
// merged configuration as YAML, with secrets redacted.
var DumpCommand dumpCommand

type dumpCommand struct{}

func (dumpCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()

	loader := NewLoader(stdin, ctxlog.New(stderr, "text", "info"))
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	loader.SetupFlags(flags)
	showSecrets := flags.Bool("show-secrets", false, "include client secret and access token values")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}

	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	dump := *cfg
	if !*showSecrets {
		dump = redact(dump)
	}
	out, err := yaml.Marshal(dump)
	if err != nil {
		return 1
	}
	_, err = stdout.Write(out)
	if err != nil {
		return 1
	}
	return 0
}

func redact(cfg aep.Config) aep.Config {
	for _, f := range []*string{&cfg.ClientSecret, &cfg.AccessToken} {
		if *f != "" {
			*f = "********"
		}
	}
	if len(cfg.Profiles) > 0 {
		profiles := make(map[string]aep.Config, len(cfg.Profiles))
		for name, profile := range cfg.Profiles {
			profiles[name] = redact(profile)
		}
		cfg.Profiles = profiles
	}
	return cfg
}

// DefaultsCommand implements "aep config-defaults": print the
// annotated default configuration.
var DefaultsCommand defaultsCommand

type defaultsCommand struct{}

func (defaultsCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()

	_, err = stdout.Write(DefaultYAML)
	if err != nil {
		return 1
	}
	return 0
}

// CheckCommand implements "aep config-check": load the configuration
// and report unknown keys and missing credentials. Exit status 1 if
// any problems are found.
var CheckCommand checkCommand

type checkCommand struct{}

func (checkCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()

	log := &plainLogger{w: stdout}
	loader := NewLoader(stdin, log)
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	loader.SetupFlags(flags)
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}

	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	if verr := cfg.Validate(); verr != nil {
		log.Warnf("configuration problem: %s", verr)
	}
	if log.used {
		return 1
	}
	return 0
}

type plainLogger struct {
	w    io.Writer
	used bool
}

func (pl *plainLogger) Warnf(format string, args ...interface{}) {
	pl.used = true
	fmt.Fprintf(pl.w, format+"\n", args...)
}

// InitCommand implements "aep init": write a starter config file,
// prompting for any missing required credentials.
var InitCommand initCommand

type initCommand struct{}

func (initCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()

	cfg := aep.DefaultConfig()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	path := flags.String("config", aep.DefaultConfigFile(), "write config to `file`")
	force := flags.Bool("force", false, "overwrite an existing config file")
	flags.StringVar(&cfg.ClientID, "client-id", "", "developer console client ID (API key)")
	flags.StringVar(&cfg.ClientSecret, "client-secret", "", "developer console client secret")
	flags.StringVar(&cfg.OrgID, "org-id", "", "IMS organization ID")
	flags.StringVar(&cfg.SandboxName, "sandbox", cfg.SandboxName, "sandbox name")
	flags.StringVar(&cfg.TenantID, "tenant-id", "", "tenant ID (without leading underscore)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	if *path == "" {
		err = fmt.Errorf("cannot determine config path; use -config")
		return 1
	}
	if _, statErr := os.Stat(*path); statErr == nil && !*force {
		err = fmt.Errorf("%s already exists (use -force to overwrite)", *path)
		return 1
	}

	scanner := bufio.NewScanner(stdin)
	prompt := func(label string, dst *string) {
		if *dst != "" {
			return
		}
		fmt.Fprintf(stderr, "%s: ", label)
		if scanner.Scan() {
			*dst = strings.TrimSpace(scanner.Text())
		}
	}
	prompt("Client ID", &cfg.ClientID)
	prompt("Client secret", &cfg.ClientSecret)
	prompt("Organization ID", &cfg.OrgID)

	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return 1
	}
	err = os.MkdirAll(filepath.Dir(*path), 0700)
	if err != nil {
		return 1
	}
	err = ioutil.WriteFile(*path, buf, 0600)
	if err != nil {
		return 1
	}
	fmt.Fprintf(stderr, "wrote %s\n", *path)
	if verr := cfg.Validate(); verr != nil {
		fmt.Fprintf(stderr, "note: %s\n", verr)
	}
	return 0
}
