// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

// Dataset is a Catalog Service dataset. Catalog returns datasets as
// JSON objects keyed by ID, without an ID attribute inside the
// object; the client folds the key back into the ID field.
type Dataset struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	SchemaRef   *DatasetSchemaRef `json:"schemaRef,omitempty"`
	Tags        *DatasetTags      `json:"tags,omitempty"`
	State       string            `json:"state,omitempty"`
	Version     string            `json:"version,omitempty"`
	Namespace   string            `json:"namespace,omitempty"`
	Created     UnixMillis        `json:"created,omitempty"`
	Updated     UnixMillis        `json:"updated,omitempty"`
	CreatedUser string            `json:"createdUser,omitempty"`
	IMSOrg      string            `json:"imsOrg,omitempty"`
}

// DatasetSchemaRef binds a dataset to the XDM schema its rows conform
// to.
type DatasetSchemaRef struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType,omitempty"`
}

// DatasetTags carry dataset configuration flags. Enabling a dataset
// for Real-Time Customer Profile sets unifiedProfile and
// unifiedIdentity to ["enabled:true"].
type DatasetTags struct {
	UnifiedProfile  []string `json:"unifiedProfile,omitempty"`
	UnifiedIdentity []string `json:"unifiedIdentity,omitempty"`
}

// ProfileEnabled reports whether the dataset feeds Real-Time Customer
// Profile.
func (ds Dataset) ProfileEnabled() bool {
	return ds.Tags != nil && tagEnabled(ds.Tags.UnifiedProfile)
}

func tagEnabled(tags []string) bool {
	for _, tag := range tags {
		if tag == "enabled:true" {
			return true
		}
	}
	return false
}

// DataSetFile is a file stored in a dataset, registered by a
// completed ingestion batch. Like datasets, files arrive keyed by ID.
type DataSetFile struct {
	ID          string     `json:"id,omitempty"`
	DataSetID   string     `json:"dataSetId,omitempty"`
	BatchID     string     `json:"batchId,omitempty"`
	Name        string     `json:"name,omitempty"`
	SizeInBytes ByteSize   `json:"sizeInBytes,omitempty"`
	Records     int64      `json:"records,omitempty"`
	Created     UnixMillis `json:"created,omitempty"`
	IsValid     *bool      `json:"isValid,omitempty"`
}
