// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

// Schema is an XDM schema document as stored in Schema Registry.
//
// The registry returns schemas in one of three projections, selected
// by Accept header: the id form (just $id, title, version and
// metadata), the raw form (composition refs left unresolved), and the
// full form (allOf refs resolved into properties). The same struct
// covers all three; fields absent from a projection are simply zero.
type Schema struct {
	ID          string                  `json:"$id,omitempty"`
	AltID       string                  `json:"meta:altId,omitempty"`
	MetaSchema  string                  `json:"$schema,omitempty"`
	Title       string                  `json:"title,omitempty"`
	Description string                  `json:"description,omitempty"`
	Type        string                  `json:"type,omitempty"`
	Version     string                  `json:"version,omitempty"`
	AllOf       []SchemaRef             `json:"allOf,omitempty"`
	Definitions map[string]*SchemaField `json:"definitions,omitempty"`
	Properties  map[string]*SchemaField `json:"properties,omitempty"`
	Required    []string                `json:"required,omitempty"`
	Class       string                  `json:"meta:class,omitempty"`
	Abstract    bool                    `json:"meta:abstract,omitempty"`
	Extensible  bool                    `json:"meta:extensible,omitempty"`
	Extends     []string                `json:"meta:extends,omitempty"`
	Created     string                  `json:"meta:created,omitempty"`
	Updated     string                  `json:"meta:updated,omitempty"`
}

// SchemaRef is a reference to another registry resource inside an
// allOf composition.
type SchemaRef struct {
	Ref string `json:"$ref,omitempty"`
	ID  string `json:"$id,omitempty"`
}

// SchemaField is a single field definition within an XDM schema or
// field group.
type SchemaField struct {
	Title       string                  `json:"title,omitempty"`
	Description string                  `json:"description,omitempty"`
	Type        string                  `json:"type,omitempty"`
	Format      string                  `json:"format,omitempty"`
	Enum        []string                `json:"enum,omitempty"`
	Minimum     *float64                `json:"minimum,omitempty"`
	Maximum     *float64                `json:"maximum,omitempty"`
	Items       *SchemaField            `json:"items,omitempty"`
	Properties  map[string]*SchemaField `json:"properties,omitempty"`
	Required    []string                `json:"required,omitempty"`
	Identity    *SchemaIdentity         `json:"meta:xdmIdentity,omitempty"`
}

// SchemaIdentity marks a field as an identity for the Identity
// Service.
type SchemaIdentity struct {
	Namespace string `json:"namespace"`
	IsPrimary bool   `json:"xdm:isPrimary,omitempty"`
}

// FieldGroup is a reusable set of fields (formerly "mixin") composed
// into schemas via allOf.
type FieldGroup struct {
	ID               string                  `json:"$id,omitempty"`
	AltID            string                  `json:"meta:altId,omitempty"`
	MetaSchema       string                  `json:"$schema,omitempty"`
	Title            string                  `json:"title,omitempty"`
	Description      string                  `json:"description,omitempty"`
	Type             string                  `json:"type,omitempty"`
	Version          string                  `json:"version,omitempty"`
	IntendedToExtend []string                `json:"meta:intendedToExtend,omitempty"`
	AllOf            []SchemaRef             `json:"allOf,omitempty"`
	Definitions      map[string]*SchemaField `json:"definitions,omitempty"`
	Properties       map[string]*SchemaField `json:"properties,omitempty"`
}

// SchemaList is one page of Schema Registry list results.
type SchemaList struct {
	Items []Schema `json:"items"`
	// Next is the continuation token for the following page, empty on
	// the last page.
	Next string `json:"next,omitempty"`
}

// FieldGroupList is one page of field group list results.
type FieldGroupList struct {
	Items []FieldGroup `json:"items"`
	Next  string       `json:"next,omitempty"`
}

// Well-known XDM base classes.
const (
	ClassProfile         = "https://ns.adobe.com/xdm/context/profile"
	ClassExperienceEvent = "https://ns.adobe.com/xdm/context/experienceevent"
)
