// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

const flowAPI = "data/foundation/flowservice"

// ListFlows lists dataflows. When opts.All is set, continuation
// tokens are followed until the listing is exhausted.
func (c *Client) ListFlows(ctx context.Context, opts ListOptions) (FlowList, error) {
	var list FlowList
	err := c.eachFlowPage(ctx, flowAPI+"/flows", opts, &list.Next, func(raw json.RawMessage) error {
		var flow Flow
		if err := json.Unmarshal(raw, &flow); err != nil {
			return err
		}
		list.Items = append(list.Items, flow)
		return nil
	})
	if err != nil {
		return FlowList{}, err
	}
	return list, nil
}

// GetFlow retrieves one dataflow. Flow Service answers single-object
// GETs either with the object itself or with a one-element items
// array, depending on API version; both are accepted.
func (c *Client) GetFlow(ctx context.Context, id string) (Flow, error) {
	var resp struct {
		Flow
		Items []Flow `json:"items"`
	}
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, flowAPI+"/flows/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return Flow{}, err
	}
	if len(resp.Items) > 0 {
		return resp.Items[0], nil
	}
	if resp.Flow.ID == "" {
		return Flow{}, NotFoundError{What: fmt.Sprintf("dataflow %q", id)}
	}
	return resp.Flow, nil
}

// ListFlowRuns lists executions of the given dataflow, via a
// server-side "flowId==…" property filter. Additional opts.Property
// entries (e.g. "createdAt>=…") are ANDed onto the filter.
func (c *Client) ListFlowRuns(ctx context.Context, flowID string, opts ListOptions) (FlowRunList, error) {
	if flowID != "" {
		opts.Property = append([]string{"flowId==" + flowID}, opts.Property...)
	}
	var list FlowRunList
	err := c.eachFlowPage(ctx, flowAPI+"/runs", opts, &list.Next, func(raw json.RawMessage) error {
		var run FlowRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return err
		}
		list.Items = append(list.Items, run)
		return nil
	})
	if err != nil {
		return FlowRunList{}, err
	}
	return list, nil
}

// GetFlowRun retrieves one dataflow run.
func (c *Client) GetFlowRun(ctx context.Context, id string) (FlowRun, error) {
	var resp struct {
		FlowRun
		Items []FlowRun `json:"items"`
	}
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, flowAPI+"/runs/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return FlowRun{}, err
	}
	if len(resp.Items) > 0 {
		return resp.Items[0], nil
	}
	if resp.FlowRun.ID == "" {
		return FlowRun{}, NotFoundError{What: fmt.Sprintf("dataflow run %q", id)}
	}
	return resp.FlowRun, nil
}

// ListConnections lists base connections.
func (c *Client) ListConnections(ctx context.Context, opts ListOptions) (ConnectionList, error) {
	var list ConnectionList
	err := c.eachFlowPage(ctx, flowAPI+"/connections", opts, &list.Next, func(raw json.RawMessage) error {
		var conn Connection
		if err := json.Unmarshal(raw, &conn); err != nil {
			return err
		}
		list.Items = append(list.Items, conn)
		return nil
	})
	if err != nil {
		return ConnectionList{}, err
	}
	return list, nil
}

// GetConnection retrieves one base connection.
func (c *Client) GetConnection(ctx context.Context, id string) (Connection, error) {
	var resp struct {
		Connection
		Items []Connection `json:"items"`
	}
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, flowAPI+"/connections/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return Connection{}, err
	}
	if len(resp.Items) > 0 {
		return resp.Items[0], nil
	}
	if resp.Connection.ID == "" {
		return Connection{}, NotFoundError{What: fmt.Sprintf("connection %q", id)}
	}
	return resp.Connection, nil
}

// ListSourceConnections lists source connections.
func (c *Client) ListSourceConnections(ctx context.Context, opts ListOptions) (SourceConnectionList, error) {
	var list SourceConnectionList
	err := c.eachFlowPage(ctx, flowAPI+"/sourceConnections", opts, &list.Next, func(raw json.RawMessage) error {
		var conn SourceConnection
		if err := json.Unmarshal(raw, &conn); err != nil {
			return err
		}
		list.Items = append(list.Items, conn)
		return nil
	})
	if err != nil {
		return SourceConnectionList{}, err
	}
	return list, nil
}

// GetSourceConnection retrieves one source connection.
func (c *Client) GetSourceConnection(ctx context.Context, id string) (SourceConnection, error) {
	var resp struct {
		SourceConnection
		Items []SourceConnection `json:"items"`
	}
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, flowAPI+"/sourceConnections/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return SourceConnection{}, err
	}
	if len(resp.Items) > 0 {
		return resp.Items[0], nil
	}
	if resp.SourceConnection.ID == "" {
		return SourceConnection{}, NotFoundError{What: fmt.Sprintf("source connection %q", id)}
	}
	return resp.SourceConnection, nil
}

// ListTargetConnections lists target connections.
func (c *Client) ListTargetConnections(ctx context.Context, opts ListOptions) (TargetConnectionList, error) {
	var list TargetConnectionList
	err := c.eachFlowPage(ctx, flowAPI+"/targetConnections", opts, &list.Next, func(raw json.RawMessage) error {
		var conn TargetConnection
		if err := json.Unmarshal(raw, &conn); err != nil {
			return err
		}
		list.Items = append(list.Items, conn)
		return nil
	})
	if err != nil {
		return TargetConnectionList{}, err
	}
	return list, nil
}

// GetTargetConnection retrieves one target connection.
func (c *Client) GetTargetConnection(ctx context.Context, id string) (TargetConnection, error) {
	var resp struct {
		TargetConnection
		Items []TargetConnection `json:"items"`
	}
	err := c.RequestAndDecodeContext(ctx, &resp, http.MethodGet, flowAPI+"/targetConnections/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return TargetConnection{}, err
	}
	if len(resp.Items) > 0 {
		return resp.Items[0], nil
	}
	if resp.TargetConnection.ID == "" {
		return TargetConnection{}, NotFoundError{What: fmt.Sprintf("target connection %q", id)}
	}
	return resp.TargetConnection, nil
}

// FlowHealth samples the dataflow's runs over the trailing window (7
// days if zero) and aggregates them into counts, a success rate,
// record totals, and failure messages. At most the 100 most recent
// runs in the window are considered.
func (c *Client) FlowHealth(ctx context.Context, flowID string, window time.Duration) (FlowHealth, error) {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	end := time.Now()
	start := end.Add(-window)
	runs, err := c.ListFlowRuns(ctx, flowID, ListOptions{
		Limit:   maxPageSize,
		OrderBy: "-createdAt",
		Property: []string{
			"createdAt>=" + strconv.FormatInt(start.UnixMilli(), 10),
			"createdAt<=" + strconv.FormatInt(end.UnixMilli(), 10),
		},
	})
	if err != nil {
		return FlowHealth{}, err
	}
	health := FlowHealth{
		FlowID: flowID,
		Window: Duration(window),
	}
	var totalDuration time.Duration
	var completed int
	seenErrors := map[string]bool{}
	for _, run := range runs.Items {
		health.TotalRuns++
		switch run.Status() {
		case FlowRunStatusSuccess:
			health.Succeeded++
		case FlowRunStatusFailed:
			health.Failed++
		case FlowRunStatusPending, FlowRunStatusInProgress:
			health.Pending++
		}
		if d := run.Duration(); d > 0 {
			totalDuration += d
			completed++
		}
		if run.Metrics != nil && run.Metrics.RecordSummary != nil {
			health.RecordsIn += run.Metrics.RecordSummary.InputRecordCount
			health.RecordsOut += run.Metrics.RecordSummary.OutputRecordCount
			health.RecordsBad += run.Metrics.RecordSummary.FailedRecordCount
		}
		if run.UpdatedAt > health.LastActivity {
			health.LastActivity = run.UpdatedAt
		}
		if run.Status() == FlowRunStatusFailed && run.Metrics != nil && run.Metrics.StatusSummary != nil {
			for _, runErr := range run.Metrics.StatusSummary.Errors {
				msg := runErr.Code
				if runErr.Message != "" {
					if msg != "" {
						msg += ": "
					}
					msg += runErr.Message
				}
				if msg != "" && !seenErrors[msg] {
					seenErrors[msg] = true
					health.Errors = append(health.Errors, msg)
				}
			}
		}
	}
	if health.TotalRuns > 0 {
		health.SuccessRate = float64(health.Succeeded) / float64(health.TotalRuns) * 100
	}
	if completed > 0 {
		health.AvgDuration = Duration(totalDuration / time.Duration(completed))
	}
	sort.Strings(health.Errors)
	return health, nil
}

// flowPage is the envelope Flow Service wraps list results in.
type flowPage struct {
	Items []json.RawMessage `json:"items"`
	Page  struct {
		Next  string `json:"next"`
		Count int    `json:"count"`
	} `json:"_page"`
}

// eachFlowPage fetches one or more pages of a Flow Service listing,
// invoking f for each raw item. The continuation token for the page
// after the last one fetched is stored in *next.
func (c *Client) eachFlowPage(ctx context.Context, path string, opts ListOptions, next *string, f func(json.RawMessage) error) error {
	start := opts.Start
	for {
		params := opts.asQuery()
		if start != "" {
			params.Set("start", start)
		} else {
			params.Del("start")
		}
		var page flowPage
		err := c.RequestAndDecodeContext(ctx, &page, http.MethodGet, path, nil, params)
		if err != nil {
			return err
		}
		for _, raw := range page.Items {
			if err := f(raw); err != nil {
				return err
			}
		}
		*next = page.Page.Next
		if !opts.All || page.Page.Next == "" {
			return nil
		}
		start = page.Page.Next
	}
}
