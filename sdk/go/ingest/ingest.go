// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package ingest drives batch ingestion end to end: open a batch
// against a dataset, upload files into it with bounded concurrency,
// signal completion, and poll until the platform finishes promoting
// it.
package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ctxlog"
	"github.com/sirupsen/logrus"
)

// Defaults applied when the corresponding Uploader field or argument
// is zero. They match aep.DefaultConfig().
const (
	DefaultMaxConcurrent = 3
	DefaultChunkSize     = 10 << 20
	DefaultPollInterval  = 5 * time.Second
	DefaultPollTimeout   = 5 * time.Minute
	DefaultPattern       = "**/*.json"
)

// An Uploader uploads local files into ingestion batches through an
// aep.Client. The zero value with a Client is ready to use.
type Uploader struct {
	Client *aep.Client

	// Files larger than ChunkSize bytes are uploaded in
	// Content-Range chunks of this size. Zero means
	// DefaultChunkSize.
	ChunkSize int64
}

// UploadResult is the outcome of uploading one file.
type UploadResult struct {
	// Name of the file as registered in the batch.
	Name string
	// Path of the local file.
	Path string
	// Size uploaded, in bytes. Zero if the upload failed.
	Size int64
	// ContentType inferred from the file extension.
	ContentType string `json:",omitempty"`
	Success     bool
	// Error message, if the upload failed.
	Error string `json:",omitempty"`
}

// TimeoutError reports that a batch was still in a non-terminal
// status when the polling deadline expired.
type TimeoutError struct {
	BatchID    string
	LastStatus aep.BatchStatus
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for batch %s (status %q)", e.BatchID, e.LastStatus)
}

// CreateBatch opens a new batch in the given dataset and returns its
// ID. An empty format means "json".
func (u *Uploader) CreateBatch(ctx context.Context, datasetID, format string) (string, error) {
	batch, err := u.Client.CreateBatch(ctx, aep.CreateBatchOptions{
		DatasetID: datasetID,
		Format:    format,
	})
	if err != nil {
		return "", err
	}
	ctxlog.FromContext(ctx).WithFields(logrus.Fields{
		"BatchID":   batch.ID,
		"DatasetID": datasetID,
	}).Debug("created batch")
	return batch.ID, nil
}

// UploadFile uploads one local file into an open batch. The file must
// exist and be non-empty; both conditions are checked before any
// network traffic. An empty name means the file's base name.
//
// Files larger than the chunk threshold are sent as Content-Range
// chunks; the platform reassembles them when the batch is completed.
func (u *Uploader) UploadFile(ctx context.Context, batchID, datasetID, path, name string) UploadResult {
	result := UploadResult{
		Name: name,
		Path: path,
	}
	if result.Name == "" {
		result.Name = filepath.Base(path)
	}
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Error = aep.NotFoundError{What: fmt.Sprintf("file %q", path)}.Error()
		return result
	} else if err != nil {
		result.Error = err.Error()
		return result
	}
	size := fi.Size()
	if size == 0 {
		result.Error = aep.ValidationError{Reason: fmt.Sprintf("refusing to upload empty file %q", path)}.Error()
		return result
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		result.ContentType = ct
	} else {
		result.ContentType = "application/octet-stream"
	}
	f, err := os.Open(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer f.Close()
	chunkSize := u.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if size <= chunkSize {
		err = u.Client.PutBatchFile(ctx, batchID, datasetID, result.Name, f, size)
	} else {
		err = u.uploadChunks(ctx, batchID, datasetID, result.Name, f, size, chunkSize)
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Size = size
	result.Success = true
	ctxlog.FromContext(ctx).WithFields(logrus.Fields{
		"BatchID": batchID,
		"Name":    result.Name,
		"Size":    size,
	}).Debug("uploaded file")
	return result
}

func (u *Uploader) uploadChunks(ctx context.Context, batchID, datasetID, name string, f *os.File, size, chunkSize int64) error {
	for off := int64(0); off < size; off += chunkSize {
		n := chunkSize
		if rest := size - off; rest < n {
			n = rest
		}
		err := u.Client.PutBatchFileRange(ctx, batchID, datasetID, name, io.NewSectionReader(f, off, n), off, n, size)
		if err != nil {
			return fmt.Errorf("uploading bytes %d-%d of %q: %w", off, off+n-1, name, err)
		}
	}
	return nil
}

// UploadMany uploads the given files into one batch, running at most
// maxConcurrent uploads at a time (DefaultMaxConcurrent if zero). One
// file's failure does not interrupt the others; the returned slice
// has one result per path, in the same order.
func (u *Uploader) UploadMany(ctx context.Context, batchID, datasetID string, paths []string, maxConcurrent int) []UploadResult {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	sem := make(chan struct{}, maxConcurrent)
	results := make([]UploadResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = u.UploadFile(ctx, batchID, datasetID, path, "")
		}()
	}
	wg.Wait()
	return results
}

// UploadDirectory uploads the regular files under dir whose paths
// (relative to dir, slash-separated) match the doublestar pattern,
// e.g. "**/*.json". An empty pattern means DefaultPattern. Matching
// files are uploaded as by UploadMany.
func (u *Uploader) UploadDirectory(ctx context.Context, batchID, datasetID, dir, pattern string, maxConcurrent int) ([]UploadResult, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	fi, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, aep.NotFoundError{What: fmt.Sprintf("directory %q", dir)}
	} else if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, aep.ValidationError{Reason: fmt.Sprintf("%q is not a directory", dir)}
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, aep.ValidationError{Reason: fmt.Sprintf("bad pattern %q: %s", pattern, err)}
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	if len(paths) == 0 {
		return nil, aep.ValidationError{Reason: fmt.Sprintf("no files match %q under %s", pattern, dir)}
	}
	sort.Strings(paths)
	return u.UploadMany(ctx, batchID, datasetID, paths, maxConcurrent), nil
}

// CompleteBatch signals that all files have been uploaded, handing
// the batch to the platform for validation and promotion.
func (u *Uploader) CompleteBatch(ctx context.Context, batchID string) error {
	return u.Client.CompleteBatch(ctx, batchID)
}

// AbortBatch cancels an open batch, discarding any uploaded files.
func (u *Uploader) AbortBatch(ctx context.Context, batchID string) error {
	return u.Client.AbortBatch(ctx, batchID)
}

// PollUntilTerminal fetches the batch's status every interval until
// it reaches a terminal status (success, failed, or aborted), and
// returns the first terminal batch observed. Reaching a terminal
// status is not an error, even if that status is "failed": callers
// decide what failure means for them.
//
// If the batch is still in a non-terminal status after timeout, the
// last observed batch is returned along with a TimeoutError. Zero
// interval and timeout mean DefaultPollInterval and
// DefaultPollTimeout.
func (u *Uploader) PollUntilTerminal(ctx context.Context, batchID string, interval, timeout time.Duration) (aep.Batch, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	logger := ctxlog.FromContext(ctx)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		batch, err := u.Client.GetBatch(ctx, batchID)
		if err != nil {
			return batch, err
		}
		if batch.Status.Terminal() {
			return batch, nil
		}
		logger.WithFields(logrus.Fields{
			"BatchID": batchID,
			"Status":  batch.Status,
		}).Debug("waiting for batch to finish")
		select {
		case <-ctx.Done():
			return batch, ctx.Err()
		case <-deadline.C:
			return batch, TimeoutError{BatchID: batchID, LastStatus: batch.Status}
		case <-tick.C:
		}
	}
}
