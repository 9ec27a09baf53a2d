// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package xdm

import (
	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&templateSuite{})

type templateSuite struct{}

func (s *templateSuite) TestTemplates(c *check.C) {
	templates := Templates()
	c.Assert(templates, check.HasLen, 3)
	var names []string
	for _, t := range templates {
		names = append(names, t.Name)
		c.Check(t.Title, check.Not(check.Equals), "")
		c.Check(t.Description, check.Not(check.Equals), "")
		c.Check(len(t.Fields) > 0, check.Equals, true)
	}
	c.Check(names, check.DeepEquals, []string{"customer-profile", "order-event", "product-catalog"})
}

func (s *templateSuite) TestLookupTemplate(c *check.C) {
	tpl, ok := LookupTemplate("order-event")
	c.Assert(ok, check.Equals, true)
	c.Check(tpl.Class, check.Equals, aep.ClassExperienceEvent)
	c.Check(tpl.Domain, check.Equals, "event")

	_, ok = LookupTemplate("does-not-exist")
	c.Check(ok, check.Equals, false)
}

func (s *templateSuite) TestTemplateBuilder(c *check.C) {
	tpl, ok := LookupTemplate("customer-profile")
	c.Assert(ok, check.Equals, true)
	b := tpl.Builder()
	b.TenantID = "acmecorp"
	schema, err := b.Schema()
	c.Assert(err, check.IsNil)
	c.Check(schema.Title, check.Equals, "Customer Profile")
	c.Check(schema.Description, check.Equals, "Standard customer profile with contact information and demographics")
	c.Check(schema.Class, check.Equals, aep.ClassProfile)
	tenant := schema.Properties["_acmecorp"]
	c.Assert(tenant, check.NotNil)
	c.Check(tenant.Required, check.DeepEquals, []string{"customerId", "email"})
	c.Assert(tenant.Properties, check.HasLen, 9)
	c.Assert(tenant.Properties["email"], check.NotNil)
	c.Check(tenant.Properties["email"].Format, check.Equals, "email")
	c.Check(tenant.Properties["email"].Description, check.Equals, "Email address")
	c.Check(tenant.Properties["dateOfBirth"].Format, check.Equals, "date")
}

func (s *templateSuite) TestEventTemplateBuilder(c *check.C) {
	tpl, ok := LookupTemplate("order-event")
	c.Assert(ok, check.Equals, true)
	schema, err := tpl.Builder().Schema()
	c.Assert(err, check.IsNil)
	c.Check(schema.Class, check.Equals, aep.ClassExperienceEvent)
	c.Check(schema.AllOf[0].Ref, check.Equals, aep.ClassExperienceEvent)
	// No tenant: fields stay at the top level.
	c.Check(schema.Required, check.DeepEquals, []string{"orderId", "customerId", "orderDate", "totalAmount"})
	c.Assert(schema.Properties["totalAmount"], check.NotNil)
	c.Check(schema.Properties["totalAmount"].Type, check.Equals, "number")
}
