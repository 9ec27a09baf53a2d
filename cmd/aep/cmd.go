// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/neep305/adobe-code-cli/lib/auth"
	"github.com/neep305/adobe-code-cli/lib/cli"
	"github.com/neep305/adobe-code-cli/lib/cmd"
	"github.com/neep305/adobe-code-cli/lib/config"
	"github.com/neep305/adobe-code-cli/lib/dataflows"
	"github.com/neep305/adobe-code-cli/lib/datasets"
	"github.com/neep305/adobe-code-cli/lib/diagnostics"
	"github.com/neep305/adobe-code-cli/lib/ingest"
	"github.com/neep305/adobe-code-cli/lib/schemas"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"auth":            auth.Command,
		"config-check":    config.CheckCommand,
		"config-defaults": config.DefaultsCommand,
		"config-dump":     config.DumpCommand,
		"dataflow":        dataflows.Command,
		"dataset":         datasets.Command,
		"diagnostics":     diagnostics.Command{},
		"ingest":          ingest.Command,
		"init":            config.InitCommand,
		"schema":          schemas.Command,
	})
)

// fixArgs moves the subcommand to the front so output flags given
// before it ("aep -s schema list") still work.
func fixArgs(args []string) []string {
	flags, _ := cli.OutputFlagSet()
	return cmd.SubcommandToFront(args, flags)
}

func main() {
	os.Exit(handler.RunCommand(os.Args[0], fixArgs(os.Args[1:]), os.Stdin, os.Stdout, os.Stderr))
}
