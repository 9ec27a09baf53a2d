// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package xdm

import "github.com/neep305/adobe-code-cli/sdk/go/aep"

// Template is a prebuilt schema blueprint.
type Template struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	// Domain is the business domain the template serves
	// ("customer", "product", "event").
	Domain string   `json:"domain"`
	Tags   []string `json:"tags,omitempty"`
	// Class is the $id of the base class the template extends;
	// aep.ClassProfile when empty.
	Class  string          `json:"class,omitempty"`
	Fields []TemplateField `json:"fields"`
}

// TemplateField declares one field of a template.
type TemplateField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Builder returns a SchemaBuilder preloaded with the template's
// title, class, and fields.
func (t Template) Builder() *SchemaBuilder {
	b := &SchemaBuilder{
		Title:       t.Title,
		Description: t.Description,
		Class:       t.Class,
	}
	for _, f := range t.Fields {
		b.AddField(f.Name, &aep.SchemaField{
			Title:       fieldTitle(f.Name),
			Description: f.Description,
			Type:        f.Type,
			Format:      f.Format,
		})
		if f.Required {
			b.Required = append(b.Required, f.Name)
		}
	}
	return b
}

// Templates returns the prebuilt schema templates, in name order.
func Templates() []Template {
	return append([]Template(nil), builtinTemplates...)
}

// LookupTemplate returns the named prebuilt template.
func LookupTemplate(name string) (Template, bool) {
	for _, t := range builtinTemplates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

var builtinTemplates = []Template{
	{
		Name:        "customer-profile",
		Title:       "Customer Profile",
		Description: "Standard customer profile with contact information and demographics",
		Domain:      "customer",
		Tags:        []string{"customer", "profile", "b2c"},
		Class:       aep.ClassProfile,
		Fields: []TemplateField{
			{Name: "customerId", Type: "string", Required: true, Description: "Unique customer identifier"},
			{Name: "email", Type: "string", Format: "email", Required: true, Description: "Email address"},
			{Name: "firstName", Type: "string", Description: "First name"},
			{Name: "lastName", Type: "string", Description: "Last name"},
			{Name: "phone", Type: "string", Description: "Phone number"},
			{Name: "dateOfBirth", Type: "string", Format: "date", Description: "Date of birth"},
			{Name: "country", Type: "string", Description: "Country code"},
			{Name: "loyaltyTier", Type: "string", Description: "Loyalty program tier"},
			{Name: "createdAt", Type: "string", Format: "date-time", Description: "Account creation date"},
		},
	},
	{
		Name:        "order-event",
		Title:       "Order Event",
		Description: "E-commerce order/purchase event with transaction details",
		Domain:      "event",
		Tags:        []string{"order", "event", "ecommerce", "transaction"},
		Class:       aep.ClassExperienceEvent,
		Fields: []TemplateField{
			{Name: "orderId", Type: "string", Required: true, Description: "Unique order identifier"},
			{Name: "customerId", Type: "string", Required: true, Description: "Customer identifier"},
			{Name: "orderDate", Type: "string", Format: "date-time", Required: true, Description: "Order timestamp"},
			{Name: "totalAmount", Type: "number", Required: true, Description: "Total order amount"},
			{Name: "currency", Type: "string", Description: "Currency code"},
			{Name: "status", Type: "string", Description: "Order status (pending, completed, cancelled)"},
			{Name: "paymentMethod", Type: "string", Description: "Payment method used"},
			{Name: "shippingAddress", Type: "object", Description: "Shipping address details"},
			{Name: "items", Type: "array", Description: "Order line items"},
			{Name: "discountCode", Type: "string", Description: "Applied discount code"},
		},
	},
	{
		Name:        "product-catalog",
		Title:       "Product Catalog",
		Description: "E-commerce product catalog with pricing and inventory",
		Domain:      "product",
		Tags:        []string{"product", "catalog", "ecommerce"},
		Fields: []TemplateField{
			{Name: "productId", Type: "string", Required: true, Description: "Unique product identifier"},
			{Name: "sku", Type: "string", Required: true, Description: "Stock keeping unit"},
			{Name: "name", Type: "string", Required: true, Description: "Product name"},
			{Name: "description", Type: "string", Description: "Product description"},
			{Name: "category", Type: "string", Description: "Product category"},
			{Name: "brand", Type: "string", Description: "Brand name"},
			{Name: "price", Type: "number", Description: "Product price"},
			{Name: "currency", Type: "string", Description: "Currency code (USD, EUR, etc.)"},
			{Name: "stockQuantity", Type: "integer", Description: "Available stock quantity"},
			{Name: "imageUrl", Type: "string", Format: "uri", Description: "Product image URL"},
			{Name: "isActive", Type: "boolean", Description: "Product availability status"},
		},
	},
}
