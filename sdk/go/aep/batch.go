// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

// Batch is a bulk-ingestion unit of work. A batch is created against
// a dataset, files are uploaded into it, and signalling it complete
// hands it to the platform for validation and promotion.
type Batch struct {
	ID             string                 `json:"id,omitempty"`
	IMSOrg         string                 `json:"imsOrg,omitempty"`
	Status         BatchStatus            `json:"status,omitempty"`
	Created        UnixMillis             `json:"created,omitempty"`
	Updated        UnixMillis             `json:"updated,omitempty"`
	RelatedObjects []BatchRelatedObject   `json:"relatedObjects,omitempty"`
	InputFormat    *BatchInputFormat      `json:"inputFormat,omitempty"`
	Metrics        *BatchMetrics          `json:"metrics,omitempty"`
	Errors         []BatchError           `json:"errors,omitempty"`
	Version        string                 `json:"version,omitempty"`
	CreatedUser    string                 `json:"createdUser,omitempty"`
	Tags           map[string]interface{} `json:"tags,omitempty"`
}

// DatasetID returns the dataset this batch writes to, taken from the
// batch's related objects, or "" if none is recorded.
func (b Batch) DatasetID() string {
	for _, obj := range b.RelatedObjects {
		if obj.Type == "dataSet" {
			return obj.ID
		}
	}
	return ""
}

// BatchInputFormat describes the files uploaded into a batch.
type BatchInputFormat struct {
	// Format is one of "parquet", "json", or "csv".
	Format    string `json:"format"`
	Delimiter string `json:"delimiter,omitempty"`
	Quote     string `json:"quote,omitempty"`
	Escape    string `json:"escape,omitempty"`
	// IsMultiLineJSON indicates each uploaded JSON file holds a
	// single top-level array instead of one object per line.
	IsMultiLineJSON bool `json:"isMultiLineJson,omitempty"`
}

// BatchRelatedObject links a batch to another catalog resource,
// usually the dataset it targets (type "dataSet").
type BatchRelatedObject struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// BatchMetrics reports ingestion progress and outcome for a batch.
type BatchMetrics struct {
	StartTime      UnixMillis `json:"startTime,omitempty"`
	EndTime        UnixMillis `json:"endTime,omitempty"`
	RecordsRead    int64      `json:"recordsRead,omitempty"`
	RecordsWritten int64      `json:"recordsWritten,omitempty"`
	RecordsFailed  int64      `json:"recordsFailed,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`
}

// BatchError describes one validation or processing failure within a
// batch.
type BatchError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Rows        []int  `json:"rows,omitempty"`
}

// BatchStatus is the lifecycle state of an ingestion batch.
type BatchStatus string

const (
	BatchStatusLoading    = BatchStatus("loading")
	BatchStatusStaged     = BatchStatus("staged")
	BatchStatusProcessing = BatchStatus("processing")
	BatchStatusSuccess    = BatchStatus("success")
	BatchStatusFailed     = BatchStatus("failed")
	BatchStatusAborted    = BatchStatus("aborted")
	BatchStatusRetrying   = BatchStatus("retrying")
)

// Terminal reports whether a batch in status s has finished and will
// not change status again.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusSuccess, BatchStatusFailed, BatchStatusAborted:
		return true
	default:
		return false
	}
}
