// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// API path prefixes under the platform gateway.
const (
	catalogAPI = "data/foundation/catalog"
	importAPI  = "data/foundation/import"
)

// CreateDatasetOptions are the arguments to CreateDataset.
type CreateDatasetOptions struct {
	// Name is the display name of the new dataset.
	Name string
	// SchemaID is the $id of the XDM schema describing rows in the
	// dataset.
	SchemaID string
	// Description is an optional free-form description.
	Description string
	// Profile enables the dataset for Real-Time Customer Profile and
	// Identity Service.
	Profile bool
	// Tags are merged into the create request after Profile is
	// applied.
	Tags *DatasetTags
}

// CreateDataset creates a Catalog dataset bound to an XDM schema and
// returns it with its server-assigned ID. Catalog responds to a
// create with a ref list like ["@/dataSets/{id}"]; the ID is the last
// path segment.
func (c *Client) CreateDataset(ctx context.Context, opts CreateDatasetOptions) (Dataset, error) {
	if opts.Name == "" {
		return Dataset{}, ValidationError{Reason: "dataset name must not be empty"}
	}
	if opts.SchemaID == "" {
		return Dataset{}, ValidationError{Reason: "dataset schema ID must not be empty"}
	}
	ds := Dataset{
		Name:        opts.Name,
		Description: opts.Description,
		SchemaRef: &DatasetSchemaRef{
			ID:          opts.SchemaID,
			ContentType: "application/vnd.adobe.xed+json;version=1",
		},
		Tags: opts.Tags,
	}
	if opts.Profile {
		if ds.Tags == nil {
			ds.Tags = &DatasetTags{}
		}
		ds.Tags.UnifiedProfile = []string{"enabled:true"}
		ds.Tags.UnifiedIdentity = []string{"enabled:true"}
	}
	var refs []string
	err := c.RequestAndDecodeContext(ctx, &refs, http.MethodPost, catalogAPI+"/dataSets", nil, ds)
	if err != nil {
		return Dataset{}, err
	}
	if len(refs) == 0 {
		return Dataset{}, errors.New("create dataset: empty ref list in response")
	}
	ds.ID = lastPathSegment(refs[0])
	return ds, nil
}

// GetDataset retrieves one dataset. Catalog returns a JSON object
// keyed by dataset ID; the key is folded back into the result's ID.
func (c *Client) GetDataset(ctx context.Context, id string) (Dataset, error) {
	var resp map[string]Dataset
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, catalogAPI+"/dataSets/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return Dataset{}, err
	}
	ds, ok := resp[id]
	if !ok {
		return Dataset{}, NotFoundError{What: fmt.Sprintf("dataset %q", id)}
	}
	ds.ID = id
	return ds, nil
}

// ListDatasets lists datasets, flattening Catalog's keyed-map
// response into a slice sorted by ID. When opts.All is set, pages are
// fetched until the listing is exhausted.
func (c *Client) ListDatasets(ctx context.Context, opts ListOptions) ([]Dataset, error) {
	var out []Dataset
	err := c.eachCatalogPage(ctx, catalogAPI+"/dataSets", opts, func(id string, raw func(interface{}) error) error {
		var ds Dataset
		if err := raw(&ds); err != nil {
			return err
		}
		ds.ID = id
		out = append(out, ds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateDatasetOptions name the dataset attributes that can change
// after creation. Nil fields are left untouched.
type UpdateDatasetOptions struct {
	Name        *string
	Description *string
	Tags        *DatasetTags
}

// UpdateDataset patches a dataset's mutable attributes and returns
// the updated dataset.
func (c *Client) UpdateDataset(ctx context.Context, id string, opts UpdateDatasetOptions) (Dataset, error) {
	updates := map[string]interface{}{}
	if opts.Name != nil {
		updates["name"] = *opts.Name
	}
	if opts.Description != nil {
		updates["description"] = *opts.Description
	}
	if opts.Tags != nil {
		updates["tags"] = opts.Tags
	}
	if len(updates) == 0 {
		return Dataset{}, ValidationError{Reason: "dataset update must change at least one attribute"}
	}
	var ds Dataset
	err := c.RequestAndDecodeContext(ctx, &ds, http.MethodPatch, catalogAPI+"/dataSets/"+url.PathEscape(id), nil, updates)
	if err != nil {
		return Dataset{}, err
	}
	ds.ID = id
	return ds, nil
}

// EnableDatasetForProfile tags an existing dataset for Real-Time
// Customer Profile and Identity Service.
func (c *Client) EnableDatasetForProfile(ctx context.Context, id string) (Dataset, error) {
	return c.UpdateDataset(ctx, id, UpdateDatasetOptions{
		Tags: &DatasetTags{
			UnifiedProfile:  []string{"enabled:true"},
			UnifiedIdentity: []string{"enabled:true"},
		},
	})
}

// DeleteDataset deletes a dataset.
func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	return c.RequestAndDecodeContext(ctx, nil, http.MethodDelete, catalogAPI+"/dataSets/"+url.PathEscape(id), nil, nil)
}

// CreateBatchOptions are the arguments to CreateBatch.
type CreateBatchOptions struct {
	// DatasetID is the dataset the batch will write into.
	DatasetID string
	// Format is the input file format: "json", "parquet", or "csv".
	Format string
	// MultilineJSON marks uploaded JSON files as holding one
	// top-level array rather than one object per line.
	MultilineJSON bool
}

// CreateBatch opens a new ingestion batch against a dataset. The
// returned batch is in the "loading" state and accepts file uploads
// until CompleteBatch or AbortBatch is called.
func (c *Client) CreateBatch(ctx context.Context, opts CreateBatchOptions) (Batch, error) {
	if opts.DatasetID == "" {
		return Batch{}, ValidationError{Reason: "batch dataset ID must not be empty"}
	}
	format := opts.Format
	if format == "" {
		format = "json"
	}
	body := map[string]interface{}{
		"datasetId": opts.DatasetID,
		"inputFormat": &BatchInputFormat{
			Format:          format,
			IsMultiLineJSON: opts.MultilineJSON,
		},
	}
	var batch Batch
	err := c.RequestAndDecodeContext(ctx, &batch, http.MethodPost, importAPI+"/batches", nil, body)
	if err != nil {
		return Batch{}, err
	}
	if batch.ID == "" {
		return Batch{}, errors.New("create batch: response carries no batch ID")
	}
	return batch, nil
}

// GetBatch retrieves one batch. Catalog returns a JSON object keyed
// by batch ID.
func (c *Client) GetBatch(ctx context.Context, id string) (Batch, error) {
	var resp map[string]Batch
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, catalogAPI+"/batches/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return Batch{}, err
	}
	batch, ok := resp[id]
	if !ok {
		return Batch{}, NotFoundError{What: fmt.Sprintf("batch %q", id)}
	}
	batch.ID = id
	return batch, nil
}

// ListBatches lists ingestion batches, most useful with a
// "dataSet==…" or "status==…" property filter. Results are sorted
// newest first.
func (c *Client) ListBatches(ctx context.Context, opts ListOptions) ([]Batch, error) {
	var out []Batch
	err := c.eachCatalogPage(ctx, catalogAPI+"/batches", opts, func(id string, raw func(interface{}) error) error {
		var batch Batch
		if err := raw(&batch); err != nil {
			return err
		}
		batch.ID = id
		out = append(out, batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created > out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CompleteBatch signals that all files have been uploaded and the
// batch is ready for validation and promotion.
func (c *Client) CompleteBatch(ctx context.Context, id string) error {
	return c.RequestAndDecodeContext(ctx, nil, http.MethodPost, importAPI+"/batches/"+url.PathEscape(id), nil, url.Values{"action": {"COMPLETE"}})
}

// AbortBatch cancels an open batch. Uploaded files are discarded.
func (c *Client) AbortBatch(ctx context.Context, id string) error {
	return c.RequestAndDecodeContext(ctx, nil, http.MethodPost, importAPI+"/batches/"+url.PathEscape(id), nil, url.Values{"action": {"ABORT"}})
}

// ListDatasetFilesOptions filter a dataset file listing. At least one
// of DatasetID and BatchID should be set; an unfiltered listing
// returns files from the whole sandbox.
type ListDatasetFilesOptions struct {
	DatasetID string
	BatchID   string
	Limit     int
}

// ListDatasetFiles lists the files registered in a dataset or batch,
// sorted by ID.
func (c *Client) ListDatasetFiles(ctx context.Context, opts ListDatasetFilesOptions) ([]DataSetFile, error) {
	limit := opts.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if opts.DatasetID != "" {
		params.Set("dataSetId", opts.DatasetID)
	}
	if opts.BatchID != "" {
		params.Set("batchId", opts.BatchID)
	}
	var resp map[string]DataSetFile
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, catalogAPI+"/dataSetFiles", nil, params)
	if err != nil {
		return nil, err
	}
	out := make([]DataSetFile, 0, len(resp))
	for id, f := range resp {
		f.ID = id
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutBatchFile uploads the contents of r as one complete file in an
// open batch. size must be the exact length of r. A 413 response is
// returned as a ValidationError suggesting chunked upload.
func (c *Client) PutBatchFile(ctx context.Context, batchID, datasetID, name string, r io.Reader, size int64) error {
	return c.putBatchFile(ctx, batchID, datasetID, name, r, size, "")
}

// PutBatchFileRange uploads one chunk of a large file, covering bytes
// [off, off+n) of a file whose total length is total. Chunks may be
// uploaded in any order; the platform assembles them when the batch
// is completed.
func (c *Client) PutBatchFileRange(ctx context.Context, batchID, datasetID, name string, r io.Reader, off, n, total int64) error {
	contentRange := fmt.Sprintf("bytes %d-%d/%d", off, off+n-1, total)
	return c.putBatchFile(ctx, batchID, datasetID, name, r, n, contentRange)
}

func (c *Client) putBatchFile(ctx context.Context, batchID, datasetID, name string, r io.Reader, size int64, contentRange string) error {
	if size <= 0 {
		return ValidationError{Reason: fmt.Sprintf("refusing to upload empty file %q", name)}
	}
	path := fmt.Sprintf("%s/batches/%s/datasets/%s/files/%s",
		importAPI, url.PathEscape(batchID), url.PathEscape(datasetID), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.apiURL(path), r)
	if err != nil {
		return err
	}
	// The platform requires a Content-Length; io.Reader bodies would
	// otherwise go up chunked and be rejected.
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	if contentRange != "" {
		req.Header.Set("Content-Range", contentRange)
	}
	err = c.DoAndDecode(nil, req)
	var txErr *TransactionError
	if errors.As(err, &txErr) && txErr.StatusCode == http.StatusRequestEntityTooLarge {
		return ValidationError{Reason: fmt.Sprintf("file %q exceeds the 512 MiB single-request ceiling; retry as a Content-Range chunked upload", name)}
	}
	return err
}

// eachCatalogPage fetches one or more pages of a Catalog keyed-map
// listing and invokes f once per entry with the entry's key and a
// decoder for its value. Catalog paginates with a numeric start
// offset rather than a continuation token.
func (c *Client) eachCatalogPage(ctx context.Context, path string, opts ListOptions, f func(id string, raw func(interface{}) error) error) error {
	offset := 0
	if opts.Start != "" {
		var err error
		offset, err = strconv.Atoi(opts.Start)
		if err != nil {
			return ValidationError{Reason: fmt.Sprintf("catalog list start %q is not numeric", opts.Start)}
		}
	}
	pageSize := opts.Limit
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	for {
		params := opts.asQuery()
		if opts.All {
			// Pin the page size so a short page reliably means the
			// listing is exhausted.
			params.Set("limit", strconv.Itoa(pageSize))
		}
		if offset > 0 {
			params.Set("start", strconv.Itoa(offset))
		} else {
			params.Del("start")
		}
		var page map[string]json.RawMessage
		err := c.RequestAndDecodeContext(ctx, &page, http.MethodGet, path, nil, params)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(page))
		for id := range page {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			raw := page[id]
			err := f(id, func(dst interface{}) error { return json.Unmarshal(raw, dst) })
			if err != nil {
				return err
			}
		}
		if !opts.All || len(page) < pageSize {
			return nil
		}
		offset += len(page)
	}
}

// lastPathSegment extracts the trailing segment of a catalog ref like
// "@/dataSets/5c8c3c555033b814b69f947f".
func lastPathSegment(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
