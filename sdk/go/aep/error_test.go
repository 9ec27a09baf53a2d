// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import (
	"errors"
	"fmt"
	"net/http"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&ErrorSuite{})

type ErrorSuite struct{}

func (s *ErrorSuite) newTransactionError(c *check.C, status int, body string) *TransactionError {
	req, err := http.NewRequest(http.MethodGet, "https://platform.adobe.io/data/foundation/catalog/dataSets/ds1", nil)
	c.Assert(err, check.IsNil)
	resp := &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
	}
	return newTransactionError(req, resp, []byte(body))
}

func (s *ErrorSuite) TestErrorBodyShapes(c *check.C) {
	for _, trial := range []struct {
		body   string
		expect []string
	}{
		// Catalog: list of coded errors
		{`{"errors":[{"code":"EXEG-0002-404","message":"dataset not found"}]}`,
			[]string{"EXEG-0002-404: dataset not found"}},
		// Catalog: errors keyed by status code
		{`{"errors":{"400":[{"message":"too many dataSets"}]}}`,
			[]string{"too many dataSets"}},
		// Schema Registry: problem+json
		{`{"title":"NotFoundError","detail":"schema not found"}`,
			[]string{"schema not found"}},
		{`{"title":"BadRequestError"}`,
			[]string{"BadRequestError"}},
		// IMS
		{`{"error":"invalid_client","error_description":"invalid client_id"}`,
			[]string{"invalid_client: invalid client_id"}},
		{`{"error":"invalid_client"}`,
			[]string{"invalid_client"}},
		// Flow Service and friends
		{`{"error_code":"1001","message":"connection spec missing"}`,
			[]string{"1001: connection spec missing"}},
		// Unrecognized and empty bodies fall back to status only
		{`<html>bad gateway</html>`, nil},
		{``, nil},
	} {
		c.Logf("%s", trial.body)
		e := s.newTransactionError(c, 400, trial.body)
		c.Check(e.Errors, check.DeepEquals, trial.expect)
	}
}

func (s *ErrorSuite) TestErrorString(c *check.C) {
	e := s.newTransactionError(c, 404, `{"title":"NotFoundError","detail":"schema not found"}`)
	c.Check(e.Error(), check.Equals, "request failed: https://platform.adobe.io/data/foundation/catalog/dataSets/ds1: 404 Not Found: schema not found")
	c.Check(e.HTTPStatus(), check.Equals, 404)
}

func (s *ErrorSuite) TestCoerce(c *check.C) {
	var nfe NotFoundError
	err := coerceTransactionError(s.newTransactionError(c, 404, `{}`))
	c.Check(errors.As(err, &nfe), check.Equals, true)

	var rle RateLimitError
	err = coerceTransactionError(s.newTransactionError(c, 429, `{}`))
	c.Check(errors.As(err, &rle), check.Equals, true)

	var se ServerError
	err = coerceTransactionError(s.newTransactionError(c, 503, `{}`))
	c.Check(errors.As(err, &se), check.Equals, true)

	var te *TransactionError
	err = coerceTransactionError(s.newTransactionError(c, 400, `{}`))
	c.Check(errors.As(err, &te), check.Equals, true)
	c.Check(errors.As(err, &nfe), check.Equals, false)
}

func (s *ErrorSuite) TestNotFoundError(c *check.C) {
	c.Check(NotFoundError{What: `dataset "ds1"`}.Error(), check.Equals, `dataset "ds1" not found`)
	c.Check(NotFoundError{Err: errors.New("gone")}.Error(), check.Equals, "gone")
	c.Check(NotFoundError{What: `schema "s1"`, Err: errors.New("gone")}.Error(), check.Equals, `schema "s1" not found: gone`)
	c.Check(NotFoundError{}.HTTPStatus(), check.Equals, 404)
}

func (s *ErrorSuite) TestValidationError(c *check.C) {
	err := ValidationError{Reason: "dataset name must not be empty"}
	c.Check(err.Error(), check.Equals, "invalid request: dataset name must not be empty")
	c.Check(err.HTTPStatus(), check.Equals, 400)
}
