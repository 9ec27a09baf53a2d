// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package dataflows implements the "aep dataflow" subcommands for
// inspecting Flow Service dataflows, their runs, and the connections
// they read from and write to.
package dataflows

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/neep305/adobe-code-cli/lib/cli"
	"github.com/neep305/adobe-code-cli/lib/cmd"
	"github.com/neep305/adobe-code-cli/lib/config"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ctxlog"
	"github.com/sirupsen/logrus"
)

var Command = cmd.Multi(map[string]cmd.Handler{
	"list":        listCommand{},
	"get":         getCommand{},
	"runs":        runsCommand{},
	"run-status":  runStatusCommand{},
	"health":      healthCommand{},
	"connections": connectionsCommand{},
})

type listCommand struct{}

func (listCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	limit := flags.Int("limit", 0, "maximum `number` of dataflows per page (0 means the server default)")
	all := flags.Bool("all", false, "fetch every page, not just the first")
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
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	flows, err := client.ListFlows(ctx, aep.ListOptions{Limit: *limit, All: *all})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, flows)
	if err != nil {
		return 1
	}
	return 0
}

// resolvedFlow is a dataflow rendered together with the connections it
// references.
type resolvedFlow struct {
	Flow              aep.Flow               `json:"flow"`
	SourceConnections []aep.SourceConnection `json:"sourceConnections,omitempty"`
	TargetConnections []aep.TargetConnection `json:"targetConnections,omitempty"`
	BaseConnections   []aep.Connection       `json:"baseConnections,omitempty"`
}

// getCommand fetches one dataflow. With -resolve it also fetches the
// referenced source and target connections, and the base connections
// behind the sources.
type getCommand struct{}

func (getCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	resolve := flags.Bool("resolve", false, "also fetch the source, target, and base connections the flow references")
	if ok, code := cmd.ParseFlags(flags, prog, args, "flow-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the flow ID (try -help)")
		return 2
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	flow, err := client.GetFlow(ctx, flags.Arg(0))
	if err != nil {
		return 1
	}
	if !*resolve {
		err = output.Render(stdout, flow)
		if err != nil {
			return 1
		}
		return 0
	}
	resolved, err := resolveFlow(ctx, client, flow)
	if err != nil {
		return 1
	}
	err = output.Render(stdout, resolved)
	if err != nil {
		return 1
	}
	return 0
}

// resolveFlow fetches every connection a flow references. Base
// connections are found through the source connections'
// baseConnectionId and deduplicated.
func resolveFlow(ctx context.Context, client *aep.Client, flow aep.Flow) (resolvedFlow, error) {
	resolved := resolvedFlow{Flow: flow}
	seenBase := map[string]bool{}
	for _, id := range flow.SourceConnectionIDs {
		src, err := client.GetSourceConnection(ctx, id)
		if err != nil {
			return resolved, err
		}
		resolved.SourceConnections = append(resolved.SourceConnections, src)
		if src.BaseConnectionID == "" || seenBase[src.BaseConnectionID] {
			continue
		}
		seenBase[src.BaseConnectionID] = true
		base, err := client.GetConnection(ctx, src.BaseConnectionID)
		if err != nil {
			return resolved, err
		}
		resolved.BaseConnections = append(resolved.BaseConnections, base)
	}
	for _, id := range flow.TargetConnectionIDs {
		tgt, err := client.GetTargetConnection(ctx, id)
		if err != nil {
			return resolved, err
		}
		resolved.TargetConnections = append(resolved.TargetConnections, tgt)
	}
	return resolved, nil
}

// runsCommand lists dataflow runs, newest first when the server
// honors the default ordering. With a flow ID argument the listing is
// restricted to that flow; without one it covers all flows.
type runsCommand struct{}

func (runsCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	limit := flags.Int("limit", 0, "maximum `number` of runs per page (0 means the server default)")
	all := flags.Bool("all", false, "fetch every page, not just the first")
	if ok, code := cmd.ParseFlags(flags, prog, args, "[flow-id]", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() > 1 {
		err = fmt.Errorf("expected at most one argument, the flow ID (try -help)")
		return 2
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	runs, err := client.ListFlowRuns(ctx, flags.Arg(0), aep.ListOptions{
		Limit:   *limit,
		All:     *all,
		OrderBy: "-createdAt",
	})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, runs)
	if err != nil {
		return 1
	}
	return 0
}

type runStatusCommand struct{}

func (runStatusCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	if ok, code := cmd.ParseFlags(flags, prog, args, "run-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the run ID (try -help)")
		return 2
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	run, err := client.GetFlowRun(ctx, flags.Arg(0))
	if err != nil {
		return 1
	}
	err = output.Render(stdout, run)
	if err != nil {
		return 1
	}
	return 0
}

// healthCommand aggregates a dataflow's recent runs into a health
// report and exits non-zero when any sampled run failed.
type healthCommand struct{}

func (healthCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	window := flags.Duration("window", 0, "sample runs from this trailing `window` (default 168h)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "flow-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the flow ID (try -help)")
		return 2
	}
	cfg, err := loader.Load()
	if err != nil {
		return 1
	}
	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	health, err := client.FlowHealth(ctx, flags.Arg(0), *window)
	if err != nil {
		return 1
	}
	err = output.Render(stdout, health)
	if err != nil {
		return 1
	}
	if health.Failed > 0 {
		return 1
	}
	return 0
}

// connectionsCommand lists Flow Service connections: base connections
// by default, or source/target connections with -kind.
type connectionsCommand struct{}

func (connectionsCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	kind := flags.String("kind", "base", "connection `kind` to list: base, source, or target")
	limit := flags.Int("limit", 0, "maximum `number` of connections per page (0 means the server default)")
	all := flags.Bool("all", false, "fetch every page, not just the first")
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
	client, err := cli.NewClient(ctx, cfg)
	if err != nil {
		return 1
	}
	opts := aep.ListOptions{Limit: *limit, All: *all}
	var obj interface{}
	switch *kind {
	case "base":
		obj, err = client.ListConnections(ctx, opts)
	case "source":
		obj, err = client.ListSourceConnections(ctx, opts)
	case "target":
		obj, err = client.ListTargetConnections(ctx, opts)
	default:
		err = fmt.Errorf("unknown connection kind %q (expected base, source, or target)", *kind)
		return 2
	}
	if err != nil {
		return 1
	}
	err = output.Render(stdout, obj)
	if err != nil {
		return 1
	}
	return 0
}
