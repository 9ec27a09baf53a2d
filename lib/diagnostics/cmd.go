// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package diagnostics implements the "aep diagnostics" command: a
// sequence of read-only checks that exercise the configured
// credentials against IMS and each Platform service in turn, and
// report anything a working setup should not produce.
package diagnostics

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/neep305/adobe-code-cli/lib/cli"
	"github.com/neep305/adobe-code-cli/lib/cmd"
	"github.com/neep305/adobe-code-cli/lib/config"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ctxlog"
	"github.com/neep305/adobe-code-cli/sdk/go/ims"
	"github.com/sirupsen/logrus"
)

type Command struct{}

func (Command) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := ctxlog.New(stdout, "text", "info")
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableLevelTruncation: true})
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	loader := config.NewLoader(stdin, logger)
	loader.SetupFlags(flags)
	loglevel := flags.String("log-level", "info", "logging `level` (debug, info, warning, error)")
	timeout := flags.Duration("timeout", 10*time.Second, "timeout for each remote check")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}
	lvl, err := logrus.ParseLevel(*loglevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	logger.SetLevel(lvl)

	infof := logger.Infof
	warnf := logger.Warnf
	debugf := logger.Debugf
	var errors []string
	errorf := func(f string, args ...interface{}) {
		logger.Errorf(f, args...)
		errors = append(errors, fmt.Sprintf(f, args...))
	}
	defer func() {
		if len(errors) == 0 {
			logger.Info("--- no errors ---")
		} else {
			fmt.Fprint(stdout, "\n--- cut here --- error summary ---\n\n")
			for _, e := range errors {
				logger.Error(e)
			}
		}
	}()

	ctx := ctxlog.Context(context.Background(), logger)

	testname := "reading client configuration"
	logger.Info(testname)
	cfg, err := loader.Load()
	if err != nil {
		errorf("%s: %s", testname, err)
		return 2
	}
	infof("%s: ok, API host %s, sandbox %q", testname, cfg.APIHost, cfg.SandboxName)

	testname = "checking credentials in configuration"
	logger.Info(testname)
	switch {
	case cfg.AccessToken != "":
		infof("%s: ok, using a static access token", testname)
	case cfg.TechnicalAccountID != "" && cfg.PrivateKeyFile != "":
		infof("%s: ok, using the JWT service account flow for client %s", testname, cfg.ClientID)
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		infof("%s: ok, using the OAuth server-to-server flow for client %s", testname, cfg.ClientID)
	default:
		errorf("%s: no usable credentials (need AccessToken, or ClientID and ClientSecret)", testname)
		return 2
	}
	if cfg.OrgID == "" {
		warnf("%s: OrgID is empty - requests will be sent without an x-gw-ims-org-id header", testname)
	}

	testname = "checking tenant namespace configuration"
	logger.Info(testname)
	if cfg.TenantID == "" {
		warnf("%s: TenantID is empty - schema authoring commands cannot build tenant fields", testname)
	} else {
		infof("%s: ok, tenant namespace _%s", testname, cfg.TenantID)
	}

	testname = "fetching an access token from IMS"
	logger.Info(testname)
	func() {
		if cfg.AccessToken != "" {
			infof("%s: skipped, config carries a static token", testname)
			return
		}
		tctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		ts, err := ims.NewTokenSource(tctx, cfg)
		if err != nil {
			errorf("%s: %s", testname, err)
			return
		}
		tok, err := ts.Token()
		if err != nil {
			errorf("%s: %s", testname, err)
			return
		}
		debugf("%s: token type %s", testname, tok.TokenType)
		infof("%s: ok, token expires %s", testname, tok.Expiry.Format(time.RFC3339))
	}()

	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		errorf("creating API client: %s", err)
		return 2
	}

	for _, svc := range []struct {
		testname string
		fn       func(context.Context) (string, error)
	}{
		{"listing schemas in the tenant container", func(ctx context.Context) (string, error) {
			list, err := client.ListSchemas(ctx, aep.ListOptions{Limit: 1})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d schema(s) in first page", len(list.Items)), nil
		}},
		{"listing datasets in catalog", func(ctx context.Context) (string, error) {
			datasets, err := client.ListDatasets(ctx, aep.ListOptions{Limit: 1})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d dataset(s) in first page", len(datasets)), nil
		}},
		{"listing dataflows in flow service", func(ctx context.Context) (string, error) {
			list, err := client.ListFlows(ctx, aep.ListOptions{Limit: 1})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d dataflow(s) in first page", len(list.Items)), nil
		}},
	} {
		logger.Info(svc.testname)
		cctx, cancel := context.WithTimeout(ctx, *timeout)
		detail, err := svc.fn(cctx)
		cancel()
		if err != nil {
			errorf("%s: %s", svc.testname, err)
			continue
		}
		infof("%s: ok, %s", svc.testname, detail)
	}

	if len(errors) > 0 {
		return 1
	}
	return 0
}
