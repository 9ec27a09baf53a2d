// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"net/url"
	"strconv"
	"strings"
)

// ListOptions expresses which results are requested in a list/index
// API. The platform's list endpoints share most query parameters but
// differ in pagination style: Catalog Service takes a numeric start
// offset, while Schema Registry and Flow Service hand back an opaque
// continuation token in the response envelope. Start covers both.
type ListOptions struct {
	// Limit is the maximum number of results per page. The platform
	// caps it at 100.
	Limit int
	// Start resumes a listing from an earlier page.
	Start string
	// Property filters results server side, e.g. "state==enabled" or
	// "flowId==abc". Repeated entries are ANDed.
	Property []string
	// Properties restricts which attributes the server includes in
	// each result (Catalog Service only).
	Properties []string
	// OrderBy sorts results, e.g. "createdAt" or "-createdAt".
	OrderBy string
	// All follows continuation tokens until the listing is
	// exhausted. Limit then applies per page, not in total.
	All bool
}

const maxPageSize = 100

// asQuery renders opts as URL query parameters.
func (opts ListOptions) asQuery() url.Values {
	params := url.Values{}
	if opts.Limit > 0 {
		limit := opts.Limit
		if limit > maxPageSize {
			limit = maxPageSize
		}
		params.Set("limit", strconv.Itoa(limit))
	}
	if opts.Start != "" {
		params.Set("start", opts.Start)
	}
	for _, prop := range opts.Property {
		params.Add("property", prop)
	}
	if len(opts.Properties) > 0 {
		params.Set("properties", strings.Join(opts.Properties, ","))
	}
	if opts.OrderBy != "" {
		params.Set("orderby", opts.OrderBy)
	}
	return params
}
