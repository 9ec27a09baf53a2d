// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package datasets implements the "aep dataset" subcommands for
// working with Catalog Service datasets and their ingestion batches.
package datasets

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neep305/adobe-code-cli/lib/cli"
	"github.com/neep305/adobe-code-cli/lib/cmd"
	"github.com/neep305/adobe-code-cli/lib/config"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ctxlog"
	"github.com/neep305/adobe-code-cli/sdk/go/ingest"
	"github.com/sirupsen/logrus"
)

var Command = cmd.Multi(map[string]cmd.Handler{
	"create":       createCommand{},
	"list":         listCommand{},
	"get":          getCommand{},
	"batches":      batchesCommand{},
	"batch-status": batchStatusCommand{},
	"complete":     completeCommand{},
	"abort":        abortCommand{},
})

// createCommand creates a dataset bound to an XDM schema.
//
// The Real-Time Customer Profile switch is spelled -enable-profile
// because -profile already selects a config profile.
type createCommand struct{}

func (createCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	schemaID := flags.String("schema", "", "`$id` of the XDM schema rows in the dataset conform to (required)")
	description := flags.String("description", "", "free-form dataset `description`")
	enableProfile := flags.Bool("enable-profile", false, "enable the dataset for Real-Time Customer Profile and Identity Service")
	if ok, code := cmd.ParseFlags(flags, prog, args, "name", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the dataset name (try -help)")
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
	ds, err := client.CreateDataset(ctx, aep.CreateDatasetOptions{
		Name:        flags.Arg(0),
		SchemaID:    *schemaID,
		Description: *description,
		Profile:     *enableProfile,
	})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, ds)
	if err != nil {
		return 1
	}
	return 0
}

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
	limit := flags.Int("limit", 0, "maximum `number` of datasets per page (0 means the server default)")
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
	datasets, err := client.ListDatasets(ctx, aep.ListOptions{Limit: *limit, All: *all})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, datasets)
	if err != nil {
		return 1
	}
	return 0
}

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
	if ok, code := cmd.ParseFlags(flags, prog, args, "dataset-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the dataset ID (try -help)")
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
	ds, err := client.GetDataset(ctx, flags.Arg(0))
	if err != nil {
		return 1
	}
	err = output.Render(stdout, ds)
	if err != nil {
		return 1
	}
	return 0
}

// batchesCommand lists the ingestion batches of one dataset, newest
// first.
type batchesCommand struct{}

func (batchesCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	status := flags.String("status", "", "only list batches with this `status`")
	limit := flags.Int("limit", 0, "maximum `number` of batches per page (0 means the server default)")
	all := flags.Bool("all", false, "fetch every page, not just the first")
	if ok, code := cmd.ParseFlags(flags, prog, args, "dataset-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the dataset ID (try -help)")
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
	property := []string{"dataSet==" + flags.Arg(0)}
	if *status != "" {
		property = append(property, "status=="+*status)
	}
	batches, err := client.ListBatches(ctx, aep.ListOptions{Limit: *limit, All: *all, Property: property})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, batches)
	if err != nil {
		return 1
	}
	return 0
}

// batchStatusCommand reports one batch's status. With -watch it polls
// until the batch reaches a terminal status and exits non-zero unless
// that status is "success".
type batchStatusCommand struct{}

func (batchStatusCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	watch := flags.Bool("watch", false, "poll until the batch reaches a terminal status")
	interval := flags.Duration("interval", 0, "poll `interval` (default from config)")
	timeout := flags.Duration("timeout", 0, "give up watching after this `duration` (default from config)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "batch-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the batch ID (try -help)")
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
	if !*watch {
		var batch aep.Batch
		batch, err = client.GetBatch(ctx, flags.Arg(0))
		if err != nil {
			return 1
		}
		err = output.Render(stdout, batch)
		if err != nil {
			return 1
		}
		return 0
	}
	code, err := waitBatch(ctx, client, cfg, output, stdout, flags.Arg(0), *interval, *timeout)
	return code
}

// completeCommand signals that a batch's files are all uploaded. With
// -wait it then polls until the platform finishes promoting the batch.
type completeCommand struct{}

func (completeCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	wait := flags.Bool("wait", false, "poll until the completed batch reaches a terminal status")
	interval := flags.Duration("interval", 0, "poll `interval` (default from config)")
	timeout := flags.Duration("timeout", 0, "give up waiting after this `duration` (default from config)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "batch-id", stderr); !ok {
		return code
	}
	if output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the batch ID (try -help)")
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
	batchID := flags.Arg(0)
	err = client.CompleteBatch(ctx, batchID)
	if err != nil {
		return 1
	}
	logger.WithField("BatchID", batchID).Info("batch completion requested")
	if !*wait {
		return 0
	}
	code, err := waitBatch(ctx, client, cfg, output, stdout, batchID, *interval, *timeout)
	return code
}

type abortCommand struct{}

func (abortCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	if ok, code := cmd.ParseFlags(flags, prog, args, "batch-id", stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the batch ID (try -help)")
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
	batchID := flags.Arg(0)
	err = client.AbortBatch(ctx, batchID)
	if err != nil {
		return 1
	}
	logger.WithField("BatchID", batchID).Info("batch aborted")
	return 0
}

// waitBatch polls batchID until it reaches a terminal status, renders
// the final batch, and reports a non-success outcome (or a polling
// timeout) as a non-zero exit code.
func waitBatch(ctx context.Context, client *aep.Client, cfg *aep.Config, output *cli.OutputFlagValues, stdout io.Writer, batchID string, interval, timeout time.Duration) (int, error) {
	if interval <= 0 {
		interval = cfg.Poll.Interval.Duration()
	}
	if timeout <= 0 {
		timeout = cfg.Poll.Timeout.Duration()
	}
	uploader := &ingest.Uploader{Client: client}
	batch, err := uploader.PollUntilTerminal(ctx, batchID, interval, timeout)
	if err != nil {
		return 1, err
	}
	report := ctxlog.FromContext(ctx).WithFields(logrus.Fields{
		"BatchID": batch.ID,
		"Status":  batch.Status,
	})
	if m := batch.Metrics; m != nil {
		report = report.WithFields(logrus.Fields{
			"RecordsWritten": humanize.Comma(m.RecordsWritten),
			"RecordsFailed":  humanize.Comma(m.RecordsFailed),
		})
	}
	report.Info("batch finished")
	if err := output.Render(stdout, batch); err != nil {
		return 1, err
	}
	if batch.Status != aep.BatchStatusSuccess {
		return 1, nil
	}
	return 0, nil
}
