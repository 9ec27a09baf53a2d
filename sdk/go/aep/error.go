// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// TransactionError is returned by Client methods when a Platform API
// call fails after any applicable retries.
type TransactionError struct {
	Method     string
	URL        url.URL
	StatusCode int
	Status     string
	Errors     []string
}

func (e TransactionError) Error() (s string) {
	s = fmt.Sprintf("request failed: %s", e.URL.String())
	if e.Status != "" {
		s = s + ": " + e.Status
	}
	if len(e.Errors) > 0 {
		s = s + ": " + strings.Join(e.Errors, "; ")
	}
	return
}

func (e TransactionError) HTTPStatus() int {
	return e.StatusCode
}

type errorItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (item errorItem) String() string {
	switch {
	case item.Code != "" && item.Message != "":
		return item.Code + ": " + item.Message
	case item.Code != "":
		return item.Code
	default:
		return item.Message
	}
}

// newTransactionError assembles a TransactionError from a failed
// exchange. Platform services disagree about error body shape --
// Catalog sends {"errors": ...}, Schema Registry sends problem+json
// {"title", "detail"}, IMS sends {"error", "error_description"}, and
// several services send a bare {"message"} -- so collect whatever is
// recognizable and fall back to the HTTP status alone.
func newTransactionError(req *http.Request, resp *http.Response, buf []byte) *TransactionError {
	e := TransactionError{
		Method: req.Method,
		URL:    *req.URL,
	}
	if resp != nil {
		e.Status = resp.Status
		e.StatusCode = resp.StatusCode
	}
	var body struct {
		Errors           json.RawMessage `json:"errors"`
		Title            string          `json:"title"`
		Detail           string          `json:"detail"`
		ErrorCode        string          `json:"error_code"`
		Message          string          `json:"message"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if json.Unmarshal(buf, &body) != nil {
		return &e
	}
	var items []errorItem
	if len(body.Errors) > 0 && json.Unmarshal(body.Errors, &items) != nil {
		// Catalog also reports errors keyed by code, e.g.
		// {"errors": {"400": [{"message": ...}]}}.
		var keyed map[string][]errorItem
		if json.Unmarshal(body.Errors, &keyed) == nil {
			codes := make([]string, 0, len(keyed))
			for code := range keyed {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				items = append(items, keyed[code]...)
			}
		}
	}
	for _, item := range items {
		if s := item.String(); s != "" {
			e.Errors = append(e.Errors, s)
		}
	}
	if body.Message != "" {
		e.Errors = append(e.Errors, errorItem{Code: body.ErrorCode, Message: body.Message}.String())
	}
	if body.Detail != "" {
		e.Errors = append(e.Errors, body.Detail)
	} else if body.Title != "" {
		e.Errors = append(e.Errors, body.Title)
	}
	if body.ErrorDescription != "" {
		e.Errors = append(e.Errors, errorItem{Code: body.Error, Message: body.ErrorDescription}.String())
	} else if body.Error != "" {
		e.Errors = append(e.Errors, body.Error)
	}
	return &e
}

// coerceTransactionError maps a failed exchange to the most specific
// error type for its status code.
func coerceTransactionError(e *TransactionError) error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return NotFoundError{Err: e}
	case e.StatusCode == http.StatusTooManyRequests:
		return RateLimitError{TransactionError: e}
	case e.StatusCode >= 500:
		return ServerError{TransactionError: e}
	default:
		return e
	}
}

// ValidationError indicates a request was rejected locally, before
// any network traffic.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

func (e ValidationError) HTTPStatus() int {
	return http.StatusBadRequest
}

// NotFoundError wraps a 404 response.
type NotFoundError struct {
	What string
	Err  error
}

func (e NotFoundError) Error() string {
	switch {
	case e.What == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err == nil:
		return e.What + " not found"
	default:
		return e.What + " not found: " + e.Err.Error()
	}
}

func (e NotFoundError) Unwrap() error {
	return e.Err
}

func (e NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

// RateLimitError wraps a 429 response that survived all retries.
type RateLimitError struct {
	*TransactionError
}

func (e RateLimitError) Unwrap() error {
	return e.TransactionError
}

// ServerError wraps a 5xx response that survived all retries.
type ServerError struct {
	*TransactionError
}

func (e ServerError) Unwrap() error {
	return e.TransactionError
}
