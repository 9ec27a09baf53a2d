// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

const registryAPI = "data/foundation/schemaregistry"

// Accept headers selecting a Schema Registry projection.
const (
	// acceptXedID returns the abbreviated list form: $id, title,
	// version and registry metadata only.
	acceptXedID = "application/vnd.adobe.xed-id+json"
	// acceptXedFull resolves allOf compositions into a flattened
	// properties tree.
	acceptXedFull = "application/vnd.adobe.xed-full+json; version=1"
	// acceptXed returns the document as stored, refs unresolved.
	acceptXed = "application/vnd.adobe.xed+json"
)

// ListSchemas lists the schemas in the tenant container in their
// abbreviated form. When opts.All is set, continuation tokens are
// followed until the listing is exhausted; otherwise the returned
// Next token resumes the listing.
func (c *Client) ListSchemas(ctx context.Context, opts ListOptions) (SchemaList, error) {
	var list SchemaList
	err := c.eachRegistryPage(ctx, registryAPI+"/tenant/schemas", opts, &list.Next, func(raw json.RawMessage) error {
		var s Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		list.Items = append(list.Items, s)
		return nil
	})
	if err != nil {
		return SchemaList{}, err
	}
	return list, nil
}

// GetSchema retrieves one schema from the tenant container. With
// full set, allOf refs are resolved server side into a flattened
// properties tree; otherwise the stored document is returned as is.
func (c *Client) GetSchema(ctx context.Context, id string, full bool) (Schema, error) {
	accept := acceptXed
	if full {
		accept = acceptXedFull
	}
	var s Schema
	err := c.registryRequestAndDecode(ctx, &s, http.MethodGet, registryAPI+"/tenant/schemas/"+url.PathEscape(id), accept, nil, nil)
	if err != nil {
		return Schema{}, err
	}
	return s, nil
}

// CreateSchema stores a new schema in the tenant container and
// returns it with registry metadata filled in.
func (c *Client) CreateSchema(ctx context.Context, schema Schema) (Schema, error) {
	if schema.Title == "" {
		return Schema{}, ValidationError{Reason: "schema title must not be empty"}
	}
	var created Schema
	err := c.registryRequestAndDecode(ctx, &created, http.MethodPost, registryAPI+"/tenant/schemas", acceptXedFull, nil, schema)
	if err != nil {
		return Schema{}, err
	}
	return created, nil
}

// UpdateSchema replaces a stored schema document. The registry only
// accepts compatible revisions (field additions); incompatible edits
// come back as 400s.
func (c *Client) UpdateSchema(ctx context.Context, id string, schema Schema) (Schema, error) {
	var updated Schema
	err := c.registryRequestAndDecode(ctx, &updated, http.MethodPut, registryAPI+"/tenant/schemas/"+url.PathEscape(id), acceptXedFull, nil, schema)
	if err != nil {
		return Schema{}, err
	}
	return updated, nil
}

// DeleteSchema removes a schema from the tenant container. Schemas
// referenced by datasets cannot be deleted.
func (c *Client) DeleteSchema(ctx context.Context, id string) error {
	return c.registryRequestAndDecode(ctx, nil, http.MethodDelete, registryAPI+"/tenant/schemas/"+url.PathEscape(id), acceptXed, nil, nil)
}

// ListFieldGroups lists the field groups in the tenant container.
func (c *Client) ListFieldGroups(ctx context.Context, opts ListOptions) (FieldGroupList, error) {
	var list FieldGroupList
	err := c.eachRegistryPage(ctx, registryAPI+"/tenant/fieldgroups", opts, &list.Next, func(raw json.RawMessage) error {
		var fg FieldGroup
		if err := json.Unmarshal(raw, &fg); err != nil {
			return err
		}
		list.Items = append(list.Items, fg)
		return nil
	})
	if err != nil {
		return FieldGroupList{}, err
	}
	return list, nil
}

// GetFieldGroup retrieves one field group from the tenant container.
func (c *Client) GetFieldGroup(ctx context.Context, id string, full bool) (FieldGroup, error) {
	accept := acceptXed
	if full {
		accept = acceptXedFull
	}
	var fg FieldGroup
	err := c.registryRequestAndDecode(ctx, &fg, http.MethodGet, registryAPI+"/tenant/fieldgroups/"+url.PathEscape(id), accept, nil, nil)
	if err != nil {
		return FieldGroup{}, err
	}
	return fg, nil
}

// CreateFieldGroup stores a new field group in the tenant container.
func (c *Client) CreateFieldGroup(ctx context.Context, fg FieldGroup) (FieldGroup, error) {
	if fg.Title == "" {
		return FieldGroup{}, ValidationError{Reason: "field group title must not be empty"}
	}
	var created FieldGroup
	err := c.registryRequestAndDecode(ctx, &created, http.MethodPost, registryAPI+"/tenant/fieldgroups", acceptXedFull, nil, fg)
	if err != nil {
		return FieldGroup{}, err
	}
	return created, nil
}

// ListClasses lists XDM classes from the global container, i.e. the
// Adobe-defined base classes schemas build on.
func (c *Client) ListClasses(ctx context.Context, opts ListOptions) (SchemaList, error) {
	var list SchemaList
	err := c.eachRegistryPage(ctx, registryAPI+"/global/classes", opts, &list.Next, func(raw json.RawMessage) error {
		var s Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		list.Items = append(list.Items, s)
		return nil
	})
	if err != nil {
		return SchemaList{}, err
	}
	return list, nil
}

// registryPage is the envelope Schema Registry wraps list results in.
type registryPage struct {
	Results []json.RawMessage `json:"results"`
	Page    struct {
		OrderBy string `json:"orderby"`
		Start   string `json:"start"`
		Next    string `json:"next"`
		Count   int    `json:"count"`
	} `json:"_page"`
}

// eachRegistryPage fetches one or more pages of a registry listing,
// invoking f for each raw result. The continuation token for the page
// after the last one fetched is stored in *next.
func (c *Client) eachRegistryPage(ctx context.Context, path string, opts ListOptions, next *string, f func(json.RawMessage) error) error {
	start := opts.Start
	for {
		params := opts.asQuery()
		if start != "" {
			params.Set("start", start)
		} else {
			params.Del("start")
		}
		var page registryPage
		err := c.registryRequestAndDecode(ctx, &page, http.MethodGet, path, acceptXedID, params, nil)
		if err != nil {
			return err
		}
		for _, raw := range page.Results {
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

// registryRequestAndDecode is RequestAndDecodeContext with an Accept
// header, which Schema Registry uses to select projections.
func (c *Client) registryRequestAndDecode(ctx context.Context, dst interface{}, method, path, accept string, params url.Values, payload interface{}) error {
	urlString := c.apiURL(path)
	if len(params) > 0 {
		u, err := url.Parse(urlString)
		if err != nil {
			return err
		}
		u.RawQuery = params.Encode()
		urlString = u.String()
	}
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlString, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	for k, v := range c.SendHeader {
		req.Header[k] = v
	}
	return c.DoAndDecode(dst, req)
}
