// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"

	"github.com/neep305/adobe-code-cli/sdk/go/aep"
	"github.com/neep305/adobe-code-cli/sdk/go/ims"
)

// NewClient returns an API client for cfg with a token source for the
// configured credential flow attached.
func NewClient(ctx context.Context, cfg *aep.Config) (*aep.Client, error) {
	client, err := aep.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	ts, err := ims.NewTokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client.TokenSource = ts
	return client, nil
}
