// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package xdm

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&inferSuite{})

type inferSuite struct{}

func (s *inferSuite) statsByName(c *check.C, inf *Inferred) map[string]FieldStat {
	byName := map[string]FieldStat{}
	for _, f := range inf.Fields {
		byName[f.Name] = f
	}
	return byName
}

func (s *inferSuite) TestInferFromJSON(c *check.C) {
	const sample = `[
		{"customer_id": "c-001", "email": "amy@example.com", "age": 34, "score": 7.5,
		 "active": true, "tags": ["vip", "beta"], "address": {"city": "Lisbon", "zip": "1100"},
		 "signup_date": "2023-04-01", "last_seen": "2024-01-15T10:30:00Z",
		 "homepage": "https://example.com/amy"},
		{"customer_id": "c-002", "email": "bob@example.com", "age": 51, "score": 3,
		 "active": false, "tags": [], "address": {"city": "Porto", "zip": "4000"},
		 "signup_date": "2023-06-12", "last_seen": "2024-02-20T08:00:00Z",
		 "homepage": null}
	]`
	records, err := ReadJSONSamples(strings.NewReader(sample))
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 2)

	inf, err := Infer(records, InferOptions{EntityName: "customers"})
	c.Assert(err, check.IsNil)
	c.Check(inf.Records, check.Equals, 2)
	byName := s.statsByName(c, inf)

	age := byName["age"]
	c.Check(age.Type, check.Equals, "integer")
	c.Check(age.Key, check.Equals, false)
	c.Assert(age.Field.Minimum, check.NotNil)
	c.Check(*age.Field.Minimum, check.Equals, 34.0)
	c.Check(*age.Field.Maximum, check.Equals, 51.0)

	score := byName["score"]
	c.Check(score.Field.Type, check.Equals, "number")
	c.Assert(score.Field.Minimum, check.NotNil)
	c.Check(*score.Field.Minimum, check.Equals, 3.0)
	c.Check(*score.Field.Maximum, check.Equals, 7.5)

	c.Check(byName["active"].Type, check.Equals, "boolean")
	c.Check(byName["email"].Format, check.Equals, "email")
	c.Check(byName["signup_date"].Field.Format, check.Equals, "date")
	c.Check(byName["signup_date"].Field.Title, check.Equals, "Signup Date")
	c.Check(byName["signup_date"].Field.Description, check.Equals, "Field: signup_date")
	c.Check(byName["last_seen"].Field.Format, check.Equals, "date-time")
	c.Check(byName["homepage"].Field.Format, check.Equals, "uri")
	c.Check(byName["homepage"].Nulls, check.Equals, 1)

	tags := byName["tags"]
	c.Check(tags.Type, check.Equals, "array")
	c.Assert(tags.Field.Items, check.NotNil)
	c.Check(tags.Field.Items.Type, check.Equals, "string")

	addr := byName["address"].Field
	c.Check(addr.Type, check.Equals, "object")
	c.Assert(addr.Properties["city"], check.NotNil)
	c.Check(addr.Properties["city"].Type, check.Equals, "string")

	id := byName["customer_id"]
	c.Check(id.Key, check.Equals, true)
	c.Check(id.Unique, check.Equals, 2)
	c.Check(id.Samples, check.DeepEquals, []string{"c-001", "c-002"})

	c.Check(inf.PrimaryKey, check.Equals, "customer_id")
	c.Check(inf.ForeignKeys, check.HasLen, 0)
	c.Check(inf.Identities, check.DeepEquals, []IdentitySuggestion{
		{Field: "customer_id", Namespace: NamespaceCRMID},
		{Field: "email", Namespace: NamespaceEmail, Primary: true},
	})
}

func (s *inferSuite) TestInferDominantType(c *check.C) {
	records := []Record{
		{"code": int64(7)},
		{"code": "a"},
		{"code": "b"},
	}
	inf, err := Infer(records, InferOptions{})
	c.Assert(err, check.IsNil)
	c.Assert(inf.Fields, check.HasLen, 1)
	// Stats report the dominant type; the generated definition
	// follows the first non-null value.
	c.Check(inf.Fields[0].Type, check.Equals, "string")
	c.Check(inf.Fields[0].Field.Type, check.Equals, "integer")
	c.Check(inf.Fields[0].Unique, check.Equals, 3)
}

func (s *inferSuite) TestInferAllNull(c *check.C) {
	records := []Record{{"note": nil}, {}}
	inf, err := Infer(records, InferOptions{})
	c.Assert(err, check.IsNil)
	c.Assert(inf.Fields, check.HasLen, 1)
	note := inf.Fields[0]
	c.Check(note.Type, check.Equals, "string")
	c.Check(note.Nulls, check.Equals, 2)
	c.Check(note.Samples, check.HasLen, 0)
	c.Check(note.Field.Type, check.Equals, "string")
	c.Check(note.Field.Title, check.Equals, "Note")
	c.Check(note.Field.Description, check.Equals, "Field: note")
}

func (s *inferSuite) TestInferEmpty(c *check.C) {
	_, err := Infer(nil, InferOptions{})
	c.Check(err, check.ErrorMatches, `invalid request: sample data is empty`)
}

func (s *inferSuite) TestPrimaryKeyPriority(c *check.C) {
	// An exact "{entity}_id" match beats "id", which beats a
	// column merely mentioning the entity.
	records := []Record{
		{"id": "1", "order_id": "o1", "orders_id": "x1"},
		{"id": "2", "order_id": "o2", "orders_id": "x2"},
	}
	inf, err := Infer(records, InferOptions{EntityName: "orders"})
	c.Assert(err, check.IsNil)
	c.Check(inf.PrimaryKey, check.Equals, "orders_id")
	c.Check(inf.ForeignKeys, check.DeepEquals, []string{"id", "order_id"})

	records = []Record{
		{"id": "1", "order_id": "o1"},
		{"id": "2", "order_id": "o2"},
	}
	inf, err = Infer(records, InferOptions{EntityName: "orders"})
	c.Assert(err, check.IsNil)
	c.Check(inf.PrimaryKey, check.Equals, "id")

	records = []Record{
		{"order_id": "o1", "customer_id": "c1"},
		{"order_id": "o2", "customer_id": "c2"},
	}
	inf, err = Infer(records, InferOptions{EntityName: "orders"})
	c.Assert(err, check.IsNil)
	c.Check(inf.PrimaryKey, check.Equals, "order_id")
	c.Check(inf.ForeignKeys, check.DeepEquals, []string{"customer_id"})
}

func (s *inferSuite) TestPrimaryKeyRequiresUniqueness(c *check.C) {
	records := []Record{
		{"user_id": "u1"},
		{"user_id": "u1"},
		{"user_id": "u2"},
	}
	inf, err := Infer(records, InferOptions{EntityName: "users"})
	c.Assert(err, check.IsNil)
	c.Check(inf.PrimaryKey, check.Equals, "")
	c.Check(inf.ForeignKeys, check.DeepEquals, []string{"user_id"})

	// A column absent from some records cannot be the key either.
	records = []Record{
		{"user_id": "u1"},
		{},
	}
	inf, err = Infer(records, InferOptions{EntityName: "users"})
	c.Assert(err, check.IsNil)
	c.Check(inf.PrimaryKey, check.Equals, "")
}

func (s *inferSuite) TestIdentitySuggestions(c *check.C) {
	records := []Record{
		{"customer_id": "c1", "email": "a@x.example", "phone_number": "+351911", "work_email": "a@work.example"},
		{"customer_id": "c2", "email": "b@x.example", "phone_number": "+351922", "work_email": "b@work.example"},
	}
	inf, err := Infer(records, InferOptions{EntityName: "customers"})
	c.Assert(err, check.IsNil)
	c.Check(inf.Identities, check.DeepEquals, []IdentitySuggestion{
		{Field: "customer_id", Namespace: NamespaceCRMID},
		{Field: "email", Namespace: NamespaceEmail, Primary: true},
		{Field: "phone_number", Namespace: NamespacePhone},
		{Field: "work_email", Namespace: NamespaceEmail},
	})

	// Without an email column the first suggestion is primary.
	records = []Record{
		{"customer_id": "c1", "phone": "911"},
		{"customer_id": "c2", "phone": "922"},
	}
	inf, err = Infer(records, InferOptions{EntityName: "customers"})
	c.Assert(err, check.IsNil)
	c.Check(inf.Identities, check.DeepEquals, []IdentitySuggestion{
		{Field: "customer_id", Namespace: NamespaceCRMID, Primary: true},
		{Field: "phone", Namespace: NamespacePhone},
	})
}

func (s *inferSuite) TestInferredBuilder(c *check.C) {
	records := []Record{{"email": "a@x.example", "visits": int64(4)}}
	inf, err := Infer(records, InferOptions{})
	c.Assert(err, check.IsNil)
	b := inf.Builder("Web Users")
	b.TenantID = "acmecorp"
	schema, err := b.Schema()
	c.Assert(err, check.IsNil)
	c.Check(schema.ID, check.Equals, "https://ns.adobe.com/acmecorp/schemas/web_users")
	tenant := schema.Properties["_acmecorp"]
	c.Assert(tenant, check.NotNil)
	c.Check(tenant.Properties["email"].Format, check.Equals, "email")
	c.Check(tenant.Properties["visits"].Type, check.Equals, "integer")
}

func (s *inferSuite) TestReadJSONSamples(c *check.C) {
	records, err := ReadJSONSamples(strings.NewReader(`{"a": 1}`))
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 1)
	c.Check(records[0]["a"], check.Equals, json.Number("1"))

	_, err = ReadJSONSamples(strings.NewReader(`[{"a": 1}, 7]`))
	c.Check(err, check.ErrorMatches, `invalid request: sample data must be a JSON object or an array of objects`)

	_, err = ReadJSONSamples(strings.NewReader(`"zork"`))
	c.Check(err, check.ErrorMatches, `invalid request: sample data must be a JSON object or an array of objects`)

	_, err = ReadJSONSamples(strings.NewReader(`{`))
	c.Check(err, check.ErrorMatches, `error parsing sample data: .*`)
}

func (s *inferSuite) TestReadCSVSamples(c *check.C) {
	csvData := "customer_id,age,score,active,joined_date,note\n" +
		"c-1,34,1.5,true,2023-04-01,hello\n" +
		"c-2,NA,2,false,NULL,N/A\n"
	records, err := ReadCSVSamples(strings.NewReader(csvData))
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 2)
	c.Check(records[0]["customer_id"], check.Equals, "c-1")
	c.Check(records[0]["age"], check.Equals, int64(34))
	c.Check(records[0]["score"], check.Equals, 1.5)
	c.Check(records[0]["active"], check.Equals, true)
	c.Check(records[0]["note"], check.Equals, "hello")
	c.Check(records[1]["age"], check.IsNil)
	c.Check(records[1]["joined_date"], check.IsNil)
	c.Check(records[1]["note"], check.IsNil)
	c.Check(records[1]["score"], check.Equals, int64(2))
	c.Check(records[1]["active"], check.Equals, false)

	inf, err := Infer(records, InferOptions{EntityName: "customers"})
	c.Assert(err, check.IsNil)
	byName := s.statsByName(c, inf)
	c.Check(byName["joined_date"].Field.Format, check.Equals, "date")
	c.Check(byName["age"].Nulls, check.Equals, 1)

	_, err = ReadCSVSamples(strings.NewReader(""))
	c.Check(err, check.ErrorMatches, `invalid request: sample data is empty`)
}

func (s *inferSuite) TestReadSamples(c *check.C) {
	dir := c.MkDir()
	jsonPath := filepath.Join(dir, "customers.json")
	c.Assert(ioutil.WriteFile(jsonPath, []byte(`[{"id": "u1"}]`), 0644), check.IsNil)
	records, err := ReadSamples(jsonPath)
	c.Assert(err, check.IsNil)
	c.Check(records, check.HasLen, 1)

	csvPath := filepath.Join(dir, "customers.csv")
	c.Assert(ioutil.WriteFile(csvPath, []byte("id\nu1\n"), 0644), check.IsNil)
	records, err = ReadSamples(csvPath)
	c.Assert(err, check.IsNil)
	c.Check(records, check.HasLen, 1)
	c.Check(records[0]["id"], check.Equals, "u1")

	txtPath := filepath.Join(dir, "customers.txt")
	c.Assert(ioutil.WriteFile(txtPath, []byte("hi"), 0644), check.IsNil)
	_, err = ReadSamples(txtPath)
	c.Check(err, check.ErrorMatches, `invalid request: unsupported sample format "\.txt" \(expected \.json or \.csv\)`)

	_, err = ReadSamples(filepath.Join(dir, "nope.json"))
	c.Check(err, check.ErrorMatches, `sample file ".*nope\.json" not found`)
	var nferr aep.NotFoundError
	c.Check(errors.As(err, &nferr), check.Equals, true)
}
