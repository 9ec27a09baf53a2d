// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&flowSuite{})

type flowSuite struct {
	server  *httptest.Server
	client  *Client
	handler func(w http.ResponseWriter, r *http.Request)
	reqs    []*http.Request
	mu      sync.Mutex
}

func (s *flowSuite) SetUpTest(c *check.C) {
	s.handler = nil
	s.reqs = nil
	s.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.reqs = append(s.reqs, r)
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

func (s *flowSuite) TearDownTest(c *check.C) {
	s.server.Close()
}

func (s *flowSuite) respond(body string) {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func (s *flowSuite) TestListFlows(c *check.C) {
	s.respond(`{
		"items": [
			{"id": "f1", "name": "CRM import", "state": "enabled", "scheduleParams": {"startTime": 1700000000, "frequency": "hour", "interval": 4}},
			{"id": "f2", "name": "Web events", "state": "disabled"}
		],
		"_page": {"count": 2}
	}`)
	list, err := s.client.ListFlows(context.Background(), ListOptions{})
	c.Assert(err, check.IsNil)
	c.Assert(list.Items, check.HasLen, 2)
	c.Check(list.Items[0].Name, check.Equals, "CRM import")
	c.Check(list.Items[0].State, check.Equals, FlowStateEnabled)
	c.Assert(list.Items[0].ScheduleParams, check.NotNil)
	c.Check(list.Items[0].ScheduleParams.Frequency, check.Equals, "hour")
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/flowservice/flows")
}

func (s *flowSuite) TestGetFlow(c *check.C) {
	// Flow Service responds to single-object GETs either with the
	// object itself...
	s.respond(`{"id": "f1", "name": "CRM import", "state": "enabled"}`)
	flow, err := s.client.GetFlow(context.Background(), "f1")
	c.Assert(err, check.IsNil)
	c.Check(flow.ID, check.Equals, "f1")
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/flowservice/flows/f1")

	// ...or with a one-element items array.
	s.respond(`{"items": [{"id": "f1", "name": "CRM import"}]}`)
	flow, err = s.client.GetFlow(context.Background(), "f1")
	c.Assert(err, check.IsNil)
	c.Check(flow.Name, check.Equals, "CRM import")

	s.respond(`{}`)
	_, err = s.client.GetFlow(context.Background(), "f1")
	c.Check(err, check.FitsTypeOf, NotFoundError{})
}

func (s *flowSuite) TestListFlowRuns(c *check.C) {
	s.respond(`{
		"items": [{"id": "r1", "flowId": "f1", "metrics": {"statusSummary": {"status": "success"}}}]
	}`)
	list, err := s.client.ListFlowRuns(context.Background(), "f1", ListOptions{
		Property: []string{"createdAt>=1700000000000"},
		OrderBy:  "-createdAt",
	})
	c.Assert(err, check.IsNil)
	c.Assert(list.Items, check.HasLen, 1)
	c.Check(list.Items[0].Status(), check.Equals, FlowRunStatusSuccess)
	c.Check(list.Items[0].Status().Terminal(), check.Equals, true)

	q := s.reqs[0].URL.Query()
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/flowservice/runs")
	// The flow filter goes first, ANDed with any caller filters.
	c.Check(q["property"], check.DeepEquals, []string{"flowId==f1", "createdAt>=1700000000000"})
	c.Check(q.Get("orderby"), check.Equals, "-createdAt")
}

func (s *flowSuite) TestGetFlowRun(c *check.C) {
	s.respond(`{"items": [{
		"id": "r1",
		"flowId": "f1",
		"metrics": {
			"durationSummary": {"startedAtUTC": 1700000000000, "completedAtUTC": 1700000090000},
			"statusSummary": {"status": "success"}
		}
	}]}`)
	run, err := s.client.GetFlowRun(context.Background(), "r1")
	c.Assert(err, check.IsNil)
	c.Check(run.ID, check.Equals, "r1")
	c.Check(run.Duration(), check.Equals, 90*time.Second)

	s.respond(`{"items": []}`)
	_, err = s.client.GetFlowRun(context.Background(), "r1")
	c.Check(err, check.FitsTypeOf, NotFoundError{})
}

func (s *flowSuite) TestConnections(c *check.C) {
	s.respond(`{"items": [
		{"id": "conn1", "name": "S3 landing", "auth": {"specName": "Access Key", "params": {"s3AccessKey": "*****"}}}
	]}`)
	conns, err := s.client.ListConnections(context.Background(), ListOptions{})
	c.Assert(err, check.IsNil)
	c.Assert(conns.Items, check.HasLen, 1)
	c.Check(conns.Items[0].Auth.SpecName, check.Equals, "Access Key")
	c.Check(s.reqs[0].URL.Path, check.Equals, "/data/foundation/flowservice/connections")

	s.respond(`{"id": "sc1", "baseConnectionId": "conn1", "params": {"path": "landing/daily"}}`)
	src, err := s.client.GetSourceConnection(context.Background(), "sc1")
	c.Assert(err, check.IsNil)
	c.Check(src.BaseConnectionID, check.Equals, "conn1")
	c.Check(s.reqs[1].URL.Path, check.Equals, "/data/foundation/flowservice/sourceConnections/sc1")

	s.respond(`{}`)
	_, err = s.client.GetTargetConnection(context.Background(), "tc1")
	c.Check(err, check.FitsTypeOf, NotFoundError{})
	c.Check(s.reqs[2].URL.Path, check.Equals, "/data/foundation/flowservice/targetConnections/tc1")
}

func (s *flowSuite) TestFlowHealth(c *check.C) {
	s.respond(`{"items": [
		{"id": "r1", "createdAt": 1000, "updatedAt": 4000, "metrics": {
			"statusSummary": {"status": "success"},
			"durationSummary": {"startedAtUTC": 1000, "completedAtUTC": 61000},
			"recordSummary": {"inputRecordCount": 100, "outputRecordCount": 98, "failedRecordCount": 2}}},
		{"id": "r2", "createdAt": 2000, "updatedAt": 9000, "metrics": {
			"statusSummary": {"status": "success"},
			"durationSummary": {"startedAtUTC": 2000, "completedAtUTC": 122000},
			"recordSummary": {"inputRecordCount": 50, "outputRecordCount": 50}}},
		{"id": "r3", "updatedAt": 5000, "metrics": {
			"statusSummary": {"status": "failed", "errors": [
				{"code": "CONNECTOR-1001", "message": "source timeout"},
				{"code": "CONNECTOR-1001", "message": "source timeout"},
				{"code": "MAPPER-2002", "message": "mapping failed for field orderDate"}]},
			"recordSummary": {"inputRecordCount": 10, "failedRecordCount": 10}}},
		{"id": "r4", "metrics": {"statusSummary": {"status": "inProgress"}}}
	]}`)

	health, err := s.client.FlowHealth(context.Background(), "f1", 0)
	c.Assert(err, check.IsNil)
	c.Check(health.FlowID, check.Equals, "f1")
	c.Check(health.Window, check.Equals, Duration(7*24*time.Hour))
	c.Check(health.TotalRuns, check.Equals, 4)
	c.Check(health.Succeeded, check.Equals, 2)
	c.Check(health.Failed, check.Equals, 1)
	c.Check(health.Pending, check.Equals, 1)
	c.Check(health.SuccessRate, check.Equals, 50.0)
	// Average of the two completed runs: (60s + 120s) / 2.
	c.Check(health.AvgDuration, check.Equals, Duration(90*time.Second))
	c.Check(health.RecordsIn, check.Equals, int64(160))
	c.Check(health.RecordsOut, check.Equals, int64(148))
	c.Check(health.RecordsBad, check.Equals, int64(12))
	c.Check(health.LastActivity, check.Equals, UnixMillis(9000))
	// Duplicate failure messages are collapsed.
	c.Check(health.Errors, check.DeepEquals, []string{
		"CONNECTOR-1001: source timeout",
		"MAPPER-2002: mapping failed for field orderDate",
	})

	// The server-side filter restricts runs to the flow and window.
	q := s.reqs[0].URL.Query()
	c.Check(q["property"], check.HasLen, 3)
	c.Check(q["property"][0], check.Equals, "flowId==f1")
	c.Check(q["property"][1], check.Matches, `createdAt>=\d+`)
	c.Check(q["property"][2], check.Matches, `createdAt<=\d+`)
	c.Check(q.Get("orderby"), check.Equals, "-createdAt")
	c.Check(q.Get("limit"), check.Equals, "100")
}
