// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&catalogSuite{})

// catalogSuite runs Catalog and bulk import calls against a stub
// platform gateway.
type catalogSuite struct {
	server  *httptest.Server
	client  *Client
	handler func(w http.ResponseWriter, r *http.Request)
	reqs    []*http.Request
	bodies  [][]byte
	mu      sync.Mutex
}

func (s *catalogSuite) SetUpTest(c *check.C) {
	s.handler = nil
	s.reqs = nil
	s.bodies = nil
	s.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		s.mu.Lock()
		s.reqs = append(s.reqs, r)
		s.bodies = append(s.bodies, body)
		handler := s.handler
		s.mu.Unlock()
		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{}`))
			return
		}
		handler(w, r)
	}))
	s.client = &Client{
		APIHost:   s.server.URL[8:],
		AuthToken: "xyzzy",
		Insecure:  true,
		Timeout:   5 * time.Second,
	}
}

func (s *catalogSuite) TearDownTest(c *check.C) {
	s.server.Close()
}

func (s *catalogSuite) respond(status int, body string) {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func (s *catalogSuite) TestCreateDataset(c *check.C) {
	s.respond(http.StatusCreated, `["@/dataSets/5ba9452f7de80400007fc52e"]`)
	ds, err := s.client.CreateDataset(context.Background(), CreateDatasetOptions{
		Name:     "Loyalty Members",
		SchemaID: "https://ns.adobe.com/acmecorp/schemas/274f17bc5807ff307a046bab1489fb18",
		Profile:  true,
	})
	c.Assert(err, check.IsNil)
	c.Check(ds.ID, check.Equals, "5ba9452f7de80400007fc52e")
	c.Check(ds.Name, check.Equals, "Loyalty Members")

	c.Assert(s.reqs, check.HasLen, 1)
	c.Check(s.reqs[0].Method, check.Equals, http.MethodPost)
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/catalog/dataSets")
	c.Check(s.reqs[0].Header.Get("Content-Type"), check.Equals, "application/json")
	var sent map[string]interface{}
	c.Assert(json.Unmarshal(s.bodies[0], &sent), check.IsNil)
	c.Check(sent["name"], check.Equals, "Loyalty Members")
	schemaRef, _ := sent["schemaRef"].(map[string]interface{})
	c.Assert(schemaRef, check.NotNil)
	c.Check(schemaRef["id"], check.Equals, "https://ns.adobe.com/acmecorp/schemas/274f17bc5807ff307a046bab1489fb18")
	c.Check(schemaRef["contentType"], check.Equals, "application/vnd.adobe.xed+json;version=1")
	tags, _ := sent["tags"].(map[string]interface{})
	c.Assert(tags, check.NotNil)
	c.Check(tags["unifiedProfile"], check.DeepEquals, []interface{}{"enabled:true"})
	c.Check(tags["unifiedIdentity"], check.DeepEquals, []interface{}{"enabled:true"})
}

func (s *catalogSuite) TestCreateDatasetValidation(c *check.C) {
	var ve ValidationError
	_, err := s.client.CreateDataset(context.Background(), CreateDatasetOptions{SchemaID: "x"})
	c.Check(err, check.FitsTypeOf, ve)
	_, err = s.client.CreateDataset(context.Background(), CreateDatasetOptions{Name: "x"})
	c.Check(err, check.FitsTypeOf, ve)
	c.Check(s.reqs, check.HasLen, 0)
}

func (s *catalogSuite) TestUpdateDataset(c *check.C) {
	s.respond(http.StatusOK, `{"name":"Loyalty Members","description":"updated","version":"1.0.1"}`)
	desc := "updated"
	ds, err := s.client.UpdateDataset(context.Background(), "ds1", UpdateDatasetOptions{Description: &desc})
	c.Assert(err, check.IsNil)
	c.Check(ds.ID, check.Equals, "ds1")
	c.Check(ds.Description, check.Equals, "updated")

	c.Assert(s.reqs, check.HasLen, 1)
	c.Check(s.reqs[0].Method, check.Equals, http.MethodPatch)
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/catalog/dataSets/ds1")
	// Only the fields being changed go over the wire.
	c.Check(string(s.bodies[0]), check.Equals, `{"description":"updated"}`)

	_, err = s.client.UpdateDataset(context.Background(), "ds1", UpdateDatasetOptions{})
	c.Check(err, check.FitsTypeOf, ValidationError{})
}

func (s *catalogSuite) TestListDatasets(c *check.C) {
	s.respond(http.StatusOK, `{
		"ds2": {"name": "Orders", "state": "DRAFT"},
		"ds1": {"name": "Loyalty Members", "tags": {"unifiedProfile": ["enabled:true"]}}
	}`)
	datasets, err := s.client.ListDatasets(context.Background(), ListOptions{})
	c.Assert(err, check.IsNil)
	c.Assert(datasets, check.HasLen, 2)
	c.Check(datasets[0].ID, check.Equals, "ds1")
	c.Check(datasets[0].ProfileEnabled(), check.Equals, true)
	c.Check(datasets[1].ID, check.Equals, "ds2")
	c.Check(datasets[1].ProfileEnabled(), check.Equals, false)
	c.Check(s.reqs, check.HasLen, 1)
}

func (s *catalogSuite) TestListBatchesAllPages(c *check.C) {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("start") {
		case "":
			fmt.Fprint(w, `{"b-new":{"created":300,"status":"success"},"b-mid":{"created":200,"status":"failed"}}`)
		case "2":
			fmt.Fprint(w, `{"b-old":{"created":100,"status":"success"}}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{}`)
		}
	}
	batches, err := s.client.ListBatches(context.Background(), ListOptions{All: true, Limit: 2})
	c.Assert(err, check.IsNil)
	c.Assert(batches, check.HasLen, 3)
	// Newest first.
	c.Check(batches[0].ID, check.Equals, "b-new")
	c.Check(batches[1].ID, check.Equals, "b-mid")
	c.Check(batches[2].ID, check.Equals, "b-old")
	c.Assert(s.reqs, check.HasLen, 2)
	c.Check(s.reqs[0].URL.Query().Get("limit"), check.Equals, "2")
	c.Check(s.reqs[1].URL.Query().Get("limit"), check.Equals, "2")

	_, err = s.client.ListBatches(context.Background(), ListOptions{Start: "abc"})
	c.Check(err, check.FitsTypeOf, ValidationError{})
}

func (s *catalogSuite) TestGetBatch(c *check.C) {
	s.respond(http.StatusOK, `{"b1": {
		"status": "success",
		"relatedObjects": [{"type": "batch", "id": "x"}, {"type": "dataSet", "id": "ds1"}],
		"metrics": {"recordsRead": 100, "recordsWritten": 98, "recordsFailed": 2}
	}}`)
	batch, err := s.client.GetBatch(context.Background(), "b1")
	c.Assert(err, check.IsNil)
	c.Check(batch.ID, check.Equals, "b1")
	c.Check(batch.Status, check.Equals, BatchStatusSuccess)
	c.Check(batch.Status.Terminal(), check.Equals, true)
	c.Check(batch.DatasetID(), check.Equals, "ds1")
	c.Assert(batch.Metrics, check.NotNil)
	c.Check(batch.Metrics.RecordsWritten, check.Equals, int64(98))

	// Response keyed by some other ID means the batch wasn't found.
	s.respond(http.StatusOK, `{"b2": {"status": "loading"}}`)
	_, err = s.client.GetBatch(context.Background(), "b1")
	c.Check(err, check.FitsTypeOf, NotFoundError{})
}

func (s *catalogSuite) TestCreateCompleteAbortBatch(c *check.C) {
	s.respond(http.StatusCreated, `{"id": "b1", "status": "loading"}`)
	batch, err := s.client.CreateBatch(context.Background(), CreateBatchOptions{DatasetID: "ds1"})
	c.Assert(err, check.IsNil)
	c.Check(batch.ID, check.Equals, "b1")
	c.Check(batch.Status, check.Equals, BatchStatusLoading)
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/import/batches")
	c.Check(string(s.bodies[0]), check.Equals, `{"datasetId":"ds1","inputFormat":{"format":"json"}}`)

	s.respond(http.StatusOK, `{}`)
	c.Check(s.client.CompleteBatch(context.Background(), "b1"), check.IsNil)
	c.Check(s.reqs[1].Method, check.Equals, http.MethodPost)
	c.Check(s.reqs[1].URL.Path, check.Equals, "/data/foundation/import/batches/b1")
	c.Check(s.reqs[1].URL.Query().Get("action"), check.Equals, "COMPLETE")

	c.Check(s.client.AbortBatch(context.Background(), "b1"), check.IsNil)
	c.Check(s.reqs[2].URL.Query().Get("action"), check.Equals, "ABORT")

	_, err = s.client.CreateBatch(context.Background(), CreateBatchOptions{})
	c.Check(err, check.FitsTypeOf, ValidationError{})
}

func (s *catalogSuite) TestListDatasetFiles(c *check.C) {
	s.respond(http.StatusOK, `{
		"f2": {"name": "part-2.json", "sizeInBytes": "2802", "records": 3},
		"f1": {"name": "part-1.json", "sizeInBytes": 1024, "records": 10, "batchId": "b1"}
	}`)
	files, err := s.client.ListDatasetFiles(context.Background(), ListDatasetFilesOptions{DatasetID: "ds1", BatchID: "b1"})
	c.Assert(err, check.IsNil)
	c.Assert(files, check.HasLen, 2)
	c.Check(files[0].ID, check.Equals, "f1")
	c.Check(files[0].SizeInBytes, check.Equals, ByteSize(1024))
	c.Check(files[1].SizeInBytes, check.Equals, ByteSize(2802))
	q := s.reqs[0].URL.Query()
	c.Check(q.Get("dataSetId"), check.Equals, "ds1")
	c.Check(q.Get("batchId"), check.Equals, "b1")
	c.Check(q.Get("limit"), check.Equals, "100")
}

func (s *catalogSuite) TestPutBatchFile(c *check.C) {
	s.respond(http.StatusOK, ``)
	payload := []byte(`{"customerId":"c-1"}` + "\n" + `{"customerId":"c-2"}`)
	err := s.client.PutBatchFile(context.Background(), "b1", "ds1", "part-1.json", bytes.NewReader(payload), int64(len(payload)))
	c.Assert(err, check.IsNil)
	c.Assert(s.reqs, check.HasLen, 1)
	c.Check(s.reqs[0].Method, check.Equals, http.MethodPut)
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/import/batches/b1/datasets/ds1/files/part-1.json")
	c.Check(s.reqs[0].Header.Get("Content-Type"), check.Equals, "application/octet-stream")
	c.Check(s.reqs[0].Header.Get("Content-Range"), check.Equals, "")
	c.Check(s.reqs[0].ContentLength, check.Equals, int64(len(payload)))
	c.Check(s.bodies[0], check.DeepEquals, payload)
}

func (s *catalogSuite) TestPutBatchFileRange(c *check.C) {
	s.respond(http.StatusOK, ``)
	chunk := []byte("56789")
	err := s.client.PutBatchFileRange(context.Background(), "b1", "ds1", "big.json", bytes.NewReader(chunk), 5, 5, 20)
	c.Assert(err, check.IsNil)
	c.Check(s.reqs[0].Header.Get("Content-Range"), check.Equals, "bytes 5-9/20")
	c.Check(s.bodies[0], check.DeepEquals, chunk)
}

func (s *catalogSuite) TestPutBatchFileErrors(c *check.C) {
	// Empty files are rejected before any network traffic.
	err := s.client.PutBatchFile(context.Background(), "b1", "ds1", "empty.json", bytes.NewReader(nil), 0)
	c.Check(err, check.ErrorMatches, `.*refusing to upload empty file "empty.json"`)
	c.Check(s.reqs, check.HasLen, 0)

	// 413 gets a hint about chunked uploads.
	s.respond(http.StatusRequestEntityTooLarge, `{}`)
	err = s.client.PutBatchFile(context.Background(), "b1", "ds1", "big.json", bytes.NewReader([]byte("xx")), 2)
	c.Check(err, check.FitsTypeOf, ValidationError{})
	c.Check(err, check.ErrorMatches, `.*512 MiB.*`)
}
