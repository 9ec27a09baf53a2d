// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package ingest implements the "aep ingest" subcommands, wrapping the
// batch ingestion orchestrator: upload one file, many files, or a
// directory tree into a batch, and inspect a batch's files.
package ingest

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
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
	"upload-file":      uploadFileCommand{},
	"upload-many":      uploadManyCommand{},
	"upload-directory": uploadDirectoryCommand{},
	"status":           statusCommand{},
})

// uploadOpts are the flags shared by the upload subcommands.
type uploadOpts struct {
	dataset     string
	batch       string
	inputFormat string
	complete    bool
	wait        bool
	interval    time.Duration
	timeout     time.Duration
	verbose     bool
}

func (o *uploadOpts) setFlags(flags *flag.FlagSet) {
	flags.StringVar(&o.dataset, "dataset", "", "`ID` of the dataset to ingest into (required)")
	flags.StringVar(&o.batch, "batch", "", "upload into this existing open batch `ID` instead of creating one")
	flags.StringVar(&o.inputFormat, "input-format", "", "file `format` registered when creating the batch: json, parquet, or csv (default json)")
	flags.BoolVar(&o.complete, "complete", true, "complete the batch once all uploads succeed")
	flags.BoolVar(&o.wait, "wait", false, "after completing, poll until the batch reaches a terminal status")
	flags.DurationVar(&o.interval, "interval", 0, "poll `interval` (default from config)")
	flags.DurationVar(&o.timeout, "timeout", 0, "give up waiting after this `duration` (default from config)")
	flags.BoolVar(&o.verbose, "verbose", false, "print more debug/progress messages on stderr")
}

// openBatch returns the batch to upload into: the one named by -batch,
// or a newly created one.
func openBatch(ctx context.Context, uploader *ingest.Uploader, opts *uploadOpts) (string, error) {
	if opts.batch != "" {
		return opts.batch, nil
	}
	batchID, err := uploader.CreateBatch(ctx, opts.dataset, opts.inputFormat)
	if err != nil {
		return "", err
	}
	ctxlog.FromContext(ctx).WithFields(logrus.Fields{
		"BatchID":   batchID,
		"DatasetID": opts.dataset,
	}).Info("batch created")
	return batchID, nil
}

// printResults writes the per-file outcome table.
func printResults(w io.Writer, results []ingest.UploadResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tSTATUS")
	for _, r := range results {
		size := "-"
		status := "uploaded"
		if r.Success {
			size = humanize.IBytes(uint64(r.Size))
		} else {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, size, status)
	}
	tw.Flush()
}

// finishUpload prints the outcome table, completes the batch if every
// upload succeeded, and optionally waits for the batch to reach a
// terminal status. Failed uploads leave the batch open so the missing
// files can be retried into it (or the batch aborted), and make the
// exit code non-zero.
func finishUpload(ctx context.Context, uploader *ingest.Uploader, cfg *aep.Config, stdout io.Writer, batchID string, results []ingest.UploadResult, opts *uploadOpts) (int, error) {
	printResults(stdout, results)
	logger := ctxlog.FromContext(ctx)
	var uploaded int
	var total int64
	for _, r := range results {
		if r.Success {
			uploaded++
			total += r.Size
		}
	}
	if failed := len(results) - uploaded; failed > 0 {
		logger.WithFields(logrus.Fields{
			"BatchID": batchID,
			"Failed":  failed,
		}).Warn("leaving batch open after failed uploads")
		return 1, nil
	}
	logger.WithFields(logrus.Fields{
		"BatchID": batchID,
		"Files":   uploaded,
		"Bytes":   humanize.IBytes(uint64(total)),
	}).Info("upload finished")
	if !opts.complete {
		return 0, nil
	}
	if err := uploader.CompleteBatch(ctx, batchID); err != nil {
		return 1, err
	}
	logger.WithField("BatchID", batchID).Info("batch completion requested")
	if !opts.wait {
		return 0, nil
	}
	interval := opts.interval
	if interval <= 0 {
		interval = cfg.Poll.Interval.Duration()
	}
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.Poll.Timeout.Duration()
	}
	batch, err := uploader.PollUntilTerminal(ctx, batchID, interval, timeout)
	if err != nil {
		return 1, err
	}
	report := logger.WithFields(logrus.Fields{
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
	if batch.Status != aep.BatchStatusSuccess {
		return 1, nil
	}
	return 0, nil
}

// uploadFileCommand uploads one file into a batch.
type uploadFileCommand struct{}

func (uploadFileCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	var opts uploadOpts
	opts.setFlags(flags)
	name := flags.String("name", "", "register the file under this `name` instead of its base name")
	if ok, code := cmd.ParseFlags(flags, prog, args, "file", stderr); !ok {
		return code
	}
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the file to upload (try -help)")
		return 2
	}
	if opts.dataset == "" {
		err = fmt.Errorf("expected -dataset with the target dataset ID (try -help)")
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
	uploader := &ingest.Uploader{Client: client, ChunkSize: int64(cfg.Upload.ChunkSize)}
	batchID, err := openBatch(ctx, uploader, &opts)
	if err != nil {
		return 1
	}
	results := []ingest.UploadResult{uploader.UploadFile(ctx, batchID, opts.dataset, flags.Arg(0), *name)}
	code, err := finishUpload(ctx, uploader, cfg, stdout, batchID, results, &opts)
	return code
}

// uploadManyCommand uploads several files into one batch with bounded
// concurrency.
type uploadManyCommand struct{}

func (uploadManyCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	var opts uploadOpts
	opts.setFlags(flags)
	concurrency := flags.Int("concurrency", 0, "maximum `number` of concurrent uploads (default from config)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "file ...", stderr); !ok {
		return code
	}
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() < 1 {
		err = fmt.Errorf("expected at least one argument, the files to upload (try -help)")
		return 2
	}
	if opts.dataset == "" {
		err = fmt.Errorf("expected -dataset with the target dataset ID (try -help)")
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
	maxConcurrent := *concurrency
	if maxConcurrent <= 0 {
		maxConcurrent = cfg.Upload.MaxConcurrent
	}
	uploader := &ingest.Uploader{Client: client, ChunkSize: int64(cfg.Upload.ChunkSize)}
	batchID, err := openBatch(ctx, uploader, &opts)
	if err != nil {
		return 1
	}
	results := uploader.UploadMany(ctx, batchID, opts.dataset, flags.Args(), maxConcurrent)
	code, err := finishUpload(ctx, uploader, cfg, stdout, batchID, results, &opts)
	return code
}

// uploadDirectoryCommand uploads the files under a directory that
// match a doublestar pattern, as one batch.
type uploadDirectoryCommand struct{}

func (uploadDirectoryCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	var opts uploadOpts
	opts.setFlags(flags)
	pattern := flags.String("pattern", "", "doublestar `pattern` files must match, relative to the directory (default \"**/*.json\")")
	concurrency := flags.Int("concurrency", 0, "maximum `number` of concurrent uploads (default from config)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "directory", stderr); !ok {
		return code
	}
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if flags.NArg() != 1 {
		err = fmt.Errorf("expected exactly one argument, the directory to upload (try -help)")
		return 2
	}
	if opts.dataset == "" {
		err = fmt.Errorf("expected -dataset with the target dataset ID (try -help)")
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
	maxConcurrent := *concurrency
	if maxConcurrent <= 0 {
		maxConcurrent = cfg.Upload.MaxConcurrent
	}
	uploader := &ingest.Uploader{Client: client, ChunkSize: int64(cfg.Upload.ChunkSize)}
	batchID, err := openBatch(ctx, uploader, &opts)
	if err != nil {
		return 1
	}
	results, err := uploader.UploadDirectory(ctx, batchID, opts.dataset, flags.Arg(0), *pattern, maxConcurrent)
	if err != nil {
		return 1
	}
	code, err := finishUpload(ctx, uploader, cfg, stdout, batchID, results, &opts)
	return code
}

// batchReport is a batch rendered together with its registered files.
type batchReport struct {
	Batch aep.Batch         `json:"batch"`
	Files []aep.DataSetFile `json:"files,omitempty"`
}

// statusCommand reports a batch's status and the files registered in
// it.
type statusCommand struct{}

func (statusCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	limit := flags.Int("limit", 0, "maximum `number` of files to list (default 100)")
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
	batch, err := client.GetBatch(ctx, batchID)
	if err != nil {
		return 1
	}
	files, err := client.ListDatasetFiles(ctx, aep.ListDatasetFilesOptions{BatchID: batchID, Limit: *limit})
	if err != nil {
		return 1
	}
	err = output.Render(stdout, batchReport{Batch: batch, Files: files})
	if err != nil {
		return 1
	}
	return 0
}
