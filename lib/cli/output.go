// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ghodss/yaml"
)

// Render writes obj to w as indented JSON ("json"), YAML ("yaml"), or
// bare resource IDs, one per line ("id").
func Render(w io.Writer, format string, obj interface{}) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(obj)
	case "yaml":
		buf, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = w.Write(buf)
		return err
	case "id":
		for _, id := range IDs(obj) {
			if _, err := fmt.Fprintln(w, id); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (expected json, yaml, or id)", format)
	}
}

// IDs extracts the resource IDs from obj: the "id" (or schema "$id")
// attribute of a single API object, or of each element of a list
// response or slice. It looks at obj's JSON form, so any wire type
// works.
func IDs(obj interface{}) []string {
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	var generic interface{}
	if err := json.Unmarshal(buf, &generic); err != nil {
		return nil
	}
	var ids []string
	collectIDs(&ids, generic)
	return ids
}

func collectIDs(dst *[]string, v interface{}) {
	switch v := v.(type) {
	case []interface{}:
		for _, elem := range v {
			collectIDs(dst, elem)
		}
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok && id != "" {
			*dst = append(*dst, id)
		} else if id, ok := v["$id"].(string); ok && id != "" {
			*dst = append(*dst, id)
		} else if items, ok := v["items"].([]interface{}); ok {
			collectIDs(dst, items)
		}
	}
}
