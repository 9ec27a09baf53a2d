// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package xdm generates Experience Data Model schema documents from
// sample data and prebuilt templates.
//
// A SchemaBuilder composes a schema for the Schema Registry tenant
// container out of a base class, existing field groups, and custom
// fields nested under the tenant namespace. Infer examines sample
// records (JSON or CSV) and proposes field definitions, key
// candidates, and identity fields for them.
package xdm

import (
	"fmt"
	"strings"

	"github.com/neep305/adobe-code-cli/sdk/go/aep"
)

// metaSchema is the JSON Schema dialect the registry expects.
const metaSchema = "http://json-schema.org/draft-06/schema#"

// Well-known Identity Service namespace codes.
const (
	NamespaceEmail    = "Email"
	NamespacePhone    = "Phone"
	NamespaceECID     = "ECID"
	NamespaceCRMID    = "CRM_ID"
	NamespaceCookieID = "Cookie_ID"
	NamespaceMobileID = "Mobile_ID"
)

// SchemaBuilder composes an XDM schema document for the tenant
// container. Title is required; everything else has a usable
// default.
type SchemaBuilder struct {
	Title       string
	Description string
	// Class is the $id of the base class to extend;
	// aep.ClassProfile when empty.
	Class string
	// TenantID is the Platform tenant namespace. When set, custom
	// fields are nested under the "_tenantID" property as the
	// registry requires, and generated $ids live under the tenant
	// namespace.
	TenantID string
	// FieldGroups lists $ids of existing field groups to compose
	// into the schema via allOf.
	FieldGroups []string
	// Fields holds the custom field definitions, keyed by field
	// name.
	Fields map[string]*aep.SchemaField
	// Required lists names of Fields that must be present in
	// ingested data.
	Required []string
}

// AddField adds (or replaces) a custom field definition.
func (b *SchemaBuilder) AddField(name string, field *aep.SchemaField) {
	if b.Fields == nil {
		b.Fields = map[string]*aep.SchemaField{}
	}
	b.Fields[name] = field
}

// Schema assembles the schema document.
func (b *SchemaBuilder) Schema() (aep.Schema, error) {
	if b.Title == "" {
		return aep.Schema{}, aep.ValidationError{Reason: "schema title must not be empty"}
	}
	class := b.class()
	allOf := []aep.SchemaRef{{Ref: class}}
	for _, id := range b.FieldGroups {
		allOf = append(allOf, aep.SchemaRef{Ref: id})
	}
	schema := aep.Schema{
		ID:          b.schemaID(),
		MetaSchema:  metaSchema,
		Title:       b.Title,
		Description: b.Description,
		Type:        "object",
		Version:     "1.0",
		AllOf:       allOf,
		Class:       class,
	}
	if schema.Description == "" {
		schema.Description = "Auto-generated schema for " + b.Title
	}
	if len(b.Fields) > 0 {
		if b.TenantID != "" {
			schema.Properties = map[string]*aep.SchemaField{
				"_" + b.TenantID: b.tenantField(),
			}
		} else {
			schema.Properties = b.Fields
			schema.Required = b.Required
		}
	}
	return schema, nil
}

// FieldGroup assembles a field group holding the builder's custom
// fields. Creating the field group first and composing its $id into
// the schema, instead of writing the fields inline, lets the same
// fields be reused by later schemas.
func (b *SchemaBuilder) FieldGroup() (aep.FieldGroup, error) {
	if b.Title == "" {
		return aep.FieldGroup{}, aep.ValidationError{Reason: "schema title must not be empty"}
	}
	if b.TenantID == "" {
		return aep.FieldGroup{}, aep.ValidationError{Reason: "field groups require a tenant ID"}
	}
	if len(b.Fields) == 0 {
		return aep.FieldGroup{}, aep.ValidationError{Reason: "field group has no custom fields"}
	}
	return aep.FieldGroup{
		ID:               fmt.Sprintf("https://ns.adobe.com/%s/mixins/%s_custom", b.TenantID, slugify(b.Title)),
		MetaSchema:       metaSchema,
		Title:            b.Title + " Custom Fields",
		Description:      "Custom fields for " + b.Title,
		Type:             "object",
		IntendedToExtend: []string{b.class()},
		Definitions: map[string]*aep.SchemaField{
			"customFields": {
				Properties: map[string]*aep.SchemaField{
					"_" + b.TenantID: b.tenantField(),
				},
			},
		},
		AllOf: []aep.SchemaRef{{Ref: "#/definitions/customFields"}},
	}, nil
}

func (b *SchemaBuilder) class() string {
	if b.Class == "" {
		return aep.ClassProfile
	}
	return b.Class
}

func (b *SchemaBuilder) schemaID() string {
	if b.TenantID != "" {
		return fmt.Sprintf("https://ns.adobe.com/%s/schemas/%s", b.TenantID, slugify(b.Title))
	}
	return "https://ns.adobe.com/" + slugify(b.Title)
}

// tenantField wraps the custom fields in the tenant namespace
// object.
func (b *SchemaBuilder) tenantField() *aep.SchemaField {
	return &aep.SchemaField{
		Type:       "object",
		Properties: b.Fields,
		Required:   b.Required,
	}
}

// slugify converts a display title to the identifier used in
// generated $ids.
func slugify(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", "_"))
}
