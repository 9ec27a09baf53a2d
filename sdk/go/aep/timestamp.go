// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package aep

import "time"

// UnixMillis is a timestamp expressed as milliseconds since the Unix
// epoch, the convention used by the Catalog and Flow Service APIs.
type UnixMillis int64

// Time converts t to a time.Time. The zero value converts to the
// epoch, so callers should check t != 0 before formatting.
func (t UnixMillis) Time() time.Time {
	return time.UnixMilli(int64(t))
}

// String returns t in RFC 3339 form, or "" for the zero value.
func (t UnixMillis) String() string {
	if t == 0 {
		return ""
	}
	return t.Time().UTC().Format(time.RFC3339)
}
