// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import "time"

// Flow is a Flow Service dataflow: a scheduled pipeline moving data
// from source connections into platform datasets.
type Flow struct {
	ID                  string               `json:"id,omitempty"`
	Name                string               `json:"name"`
	Description         string               `json:"description,omitempty"`
	FlowSpec            *FlowSpec            `json:"flowSpec,omitempty"`
	State               string               `json:"state,omitempty"`
	SourceConnectionIDs []string             `json:"sourceConnectionIds,omitempty"`
	TargetConnectionIDs []string             `json:"targetConnectionIds,omitempty"`
	Transformations     []Transformation     `json:"transformations,omitempty"`
	ScheduleParams      *ScheduleParams      `json:"scheduleParams,omitempty"`
	InheritedAttributes *InheritedAttributes `json:"inheritedAttributes,omitempty"`
	CreatedAt           UnixMillis           `json:"createdAt,omitempty"`
	UpdatedAt           UnixMillis           `json:"updatedAt,omitempty"`
	CreatedBy           string               `json:"createdBy,omitempty"`
	ETag                string               `json:"etag,omitempty"`
}

// Flow states reported by Flow Service.
const (
	FlowStateEnabled  = "enabled"
	FlowStateDisabled = "disabled"
)

// FlowSpec identifies the flow specification a dataflow or run was
// created from.
type FlowSpec struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
}

// ConnectionSpec identifies the connector type behind a connection.
type ConnectionSpec struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Transformation is one mapping or format step applied by a dataflow.
type Transformation struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ScheduleParams configure when and how often a dataflow runs.
type ScheduleParams struct {
	// StartTime is seconds since the Unix epoch.
	StartTime int64 `json:"startTime,omitempty"`
	Interval  int   `json:"interval,omitempty"`
	// Frequency is e.g. "minute", "hour", "day", "week", or "once".
	Frequency string `json:"frequency,omitempty"`
}

// InheritedAttributes are connection details Flow Service copies onto
// a dataflow for convenience.
type InheritedAttributes struct {
	SourceConnections []InheritedConnection `json:"sourceConnections,omitempty"`
	TargetConnections []InheritedConnection `json:"targetConnections,omitempty"`
}

// InheritedConnection is the abbreviated connection form embedded in
// a dataflow's inherited attributes.
type InheritedConnection struct {
	ID             string          `json:"id"`
	ConnectionSpec *ConnectionSpec `json:"connectionSpec,omitempty"`
}

// FlowRun is a single execution of a dataflow.
type FlowRun struct {
	ID            string            `json:"id,omitempty"`
	FlowID        string            `json:"flowId,omitempty"`
	FlowSpec      *FlowSpec         `json:"flowSpec,omitempty"`
	ProviderRefID string            `json:"providerRefId,omitempty"`
	Metrics       *FlowRunMetrics   `json:"metrics,omitempty"`
	Activities    []FlowRunActivity `json:"activities,omitempty"`
	RecordTypes   []string          `json:"recordTypes,omitempty"`
	Labels        []string          `json:"labels,omitempty"`
	CreatedAt     UnixMillis        `json:"createdAt,omitempty"`
	UpdatedAt     UnixMillis        `json:"updatedAt,omitempty"`
	CreatedBy     string            `json:"createdBy,omitempty"`
	UpdatedBy     string            `json:"updatedBy,omitempty"`
	SandboxID     string            `json:"sandboxId,omitempty"`
	SandboxName   string            `json:"sandboxName,omitempty"`
	IMSOrgID      string            `json:"imsOrgId,omitempty"`
	ETag          string            `json:"etag,omitempty"`
}

// Status returns the run's reported status, which Flow Service nests
// under metrics.statusSummary. Runs that have not started reporting
// yet return "".
func (r FlowRun) Status() FlowRunStatus {
	if r.Metrics != nil && r.Metrics.StatusSummary != nil {
		return FlowRunStatus(r.Metrics.StatusSummary.Status)
	}
	return ""
}

// Duration returns how long the run took, or 0 if it has not
// completed.
func (r FlowRun) Duration() time.Duration {
	if r.Metrics == nil || r.Metrics.DurationSummary == nil {
		return 0
	}
	ds := r.Metrics.DurationSummary
	if ds.StartedAtUTC == 0 || ds.CompletedAtUTC == 0 {
		return 0
	}
	return ds.CompletedAtUTC.Time().Sub(ds.StartedAtUTC.Time())
}

// FlowRunMetrics carry the timing, record counts, and status of one
// run.
type FlowRunMetrics struct {
	DurationSummary *FlowRunDurationSummary `json:"durationSummary,omitempty"`
	SizeSummary     map[string]interface{}  `json:"sizeSummary,omitempty"`
	RecordSummary   *FlowRunRecordSummary   `json:"recordSummary,omitempty"`
	FileSummary     map[string]interface{}  `json:"fileSummary,omitempty"`
	StatusSummary   *FlowRunStatusSummary   `json:"statusSummary,omitempty"`
}

// FlowRunDurationSummary bounds a run's execution window.
type FlowRunDurationSummary struct {
	StartedAtUTC   UnixMillis `json:"startedAtUTC,omitempty"`
	CompletedAtUTC UnixMillis `json:"completedAtUTC,omitempty"`
}

// FlowRunRecordSummary counts records moved by a run.
type FlowRunRecordSummary struct {
	InputRecordCount  int64 `json:"inputRecordCount,omitempty"`
	OutputRecordCount int64 `json:"outputRecordCount,omitempty"`
	FailedRecordCount int64 `json:"failedRecordCount,omitempty"`
}

// FlowRunStatusSummary reports a run's outcome, with error details
// for failed runs.
type FlowRunStatusSummary struct {
	Status     string                 `json:"status,omitempty"`
	Errors     []FlowRunError         `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// FlowRunError is one failure reported by a run.
type FlowRunError struct {
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FlowRunActivity is one stage (copy, promotion, mapping) within a
// run.
type FlowRunActivity struct {
	ID              string                  `json:"id,omitempty"`
	Name            string                  `json:"name,omitempty"`
	ActivityType    string                  `json:"activityType,omitempty"`
	UpdatedAtUTC    UnixMillis              `json:"updatedAtUTC,omitempty"`
	DurationSummary *FlowRunDurationSummary `json:"durationSummary,omitempty"`
	RecordSummary   *FlowRunRecordSummary   `json:"recordSummary,omitempty"`
	StatusSummary   *FlowRunStatusSummary   `json:"statusSummary,omitempty"`
}

// FlowRunStatus is the reported state of a dataflow run.
type FlowRunStatus string

const (
	FlowRunStatusPending    = FlowRunStatus("pending")
	FlowRunStatusInProgress = FlowRunStatus("inProgress")
	FlowRunStatusSuccess    = FlowRunStatus("success")
	FlowRunStatusFailed     = FlowRunStatus("failed")
	FlowRunStatusCancelled  = FlowRunStatus("cancelled")
)

// Terminal reports whether a run in status s has finished.
func (s FlowRunStatus) Terminal() bool {
	switch s {
	case FlowRunStatusSuccess, FlowRunStatusFailed, FlowRunStatusCancelled:
		return true
	default:
		return false
	}
}

// Connection is an authenticated base connection to an external
// system.
type Connection struct {
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Auth           *ConnectionAuth `json:"auth,omitempty"`
	ConnectionSpec *ConnectionSpec `json:"connectionSpec,omitempty"`
	State          string          `json:"state,omitempty"`
	CreatedAt      UnixMillis      `json:"createdAt,omitempty"`
	UpdatedAt      UnixMillis      `json:"updatedAt,omitempty"`
	ETag           string          `json:"etag,omitempty"`
}

// ConnectionAuth holds a connection's authentication spec and
// parameters. Secret parameter values come back redacted.
type ConnectionAuth struct {
	SpecName string                 `json:"specName,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

// SourceConnection binds a base connection to a concrete location to
// read from (a path, table, or object prefix).
type SourceConnection struct {
	ID               string                 `json:"id,omitempty"`
	Name             string                 `json:"name,omitempty"`
	Description      string                 `json:"description,omitempty"`
	BaseConnectionID string                 `json:"baseConnectionId,omitempty"`
	ConnectionSpec   *ConnectionSpec        `json:"connectionSpec,omitempty"`
	Params           map[string]interface{} `json:"params,omitempty"`
	CreatedAt        UnixMillis             `json:"createdAt,omitempty"`
	UpdatedAt        UnixMillis             `json:"updatedAt,omitempty"`
	ETag             string                 `json:"etag,omitempty"`
}

// TargetConnection identifies where a dataflow lands data, usually a
// platform dataset.
type TargetConnection struct {
	ID             string                 `json:"id,omitempty"`
	Name           string                 `json:"name,omitempty"`
	Description    string                 `json:"description,omitempty"`
	ConnectionSpec *ConnectionSpec        `json:"connectionSpec,omitempty"`
	Params         map[string]interface{} `json:"params,omitempty"`
	CreatedAt      UnixMillis             `json:"createdAt,omitempty"`
	UpdatedAt      UnixMillis             `json:"updatedAt,omitempty"`
	ETag           string                 `json:"etag,omitempty"`
}

// FlowList is one page of dataflow list results.
type FlowList struct {
	Items []Flow `json:"items"`
	Next  string `json:"next,omitempty"`
}

// FlowRunList is one page of dataflow run list results.
type FlowRunList struct {
	Items []FlowRun `json:"items"`
	Next  string    `json:"next,omitempty"`
}

// ConnectionList is one page of base connection list results.
type ConnectionList struct {
	Items []Connection `json:"items"`
	Next  string       `json:"next,omitempty"`
}

// SourceConnectionList is one page of source connection list results.
type SourceConnectionList struct {
	Items []SourceConnection `json:"items"`
	Next  string             `json:"next,omitempty"`
}

// TargetConnectionList is one page of target connection list results.
type TargetConnectionList struct {
	Items []TargetConnection `json:"items"`
	Next  string             `json:"next,omitempty"`
}

// FlowHealth summarizes the recent executions of a dataflow.
type FlowHealth struct {
	FlowID string `json:"flowId"`
	// Window is how far back runs were sampled.
	Window      Duration `json:"window"`
	TotalRuns   int      `json:"totalRuns"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Pending     int      `json:"pending"`
	SuccessRate float64  `json:"successRate"`
	// AvgDuration averages the duration of completed runs.
	AvgDuration Duration `json:"avgDuration"`
	RecordsIn   int64    `json:"recordsIn"`
	RecordsOut  int64    `json:"recordsOut"`
	RecordsBad  int64    `json:"recordsFailed"`
	// LastActivity is the most recent run update seen in the window.
	LastActivity UnixMillis `json:"lastActivity,omitempty"`
	// Errors are failure messages collected from failed runs, one
	// entry per distinct code: message pair.
	Errors []string `json:"errors,omitempty"`
}
