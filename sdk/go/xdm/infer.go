// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package xdm

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/neep305/adobe-code-cli/sdk/go/aep"
)

// Record is one sample data record.
type Record map[string]interface{}

// InferOptions adjust sample analysis.
type InferOptions struct {
	// EntityName is the name of the entity the samples describe,
	// typically a file basename. Primary key detection prefers a
	// column named "{EntityName}_id".
	EntityName string
}

// FieldStat describes one column of the sample data.
type FieldStat struct {
	// Name is the column name as it appears in the samples.
	Name string `json:"name"`
	// Type is the dominant XDM type among the column's non-null
	// values.
	Type string `json:"type"`
	// Format is the detected string format ("email", "uri",
	// "date", "date-time"), if any.
	Format string `json:"format,omitempty"`
	// Nulls counts records where the column is null or absent.
	Nulls int `json:"nulls"`
	// Unique counts distinct string and integer values.
	Unique int `json:"unique"`
	// Samples holds up to five example values, rendered as text.
	Samples []string `json:"samples,omitempty"`
	// Key reports whether the column name follows an identifier
	// convention ("id", "*_id", "*Id").
	Key bool `json:"key,omitempty"`
	// Field is the schema definition generated for the column.
	Field *aep.SchemaField `json:"field,omitempty"`
}

// Inferred is the result of analyzing sample records.
type Inferred struct {
	// Records is the number of samples analyzed.
	Records int `json:"records"`
	// Fields holds per-column statistics and generated
	// definitions, sorted by column name.
	Fields []FieldStat `json:"fields"`
	// PrimaryKey is the best primary key candidate, or empty when
	// no column is both id-named and unique across the samples.
	PrimaryKey string `json:"primaryKey,omitempty"`
	// ForeignKeys lists id-named columns other than the primary
	// key.
	ForeignKeys []string `json:"foreignKeys,omitempty"`
	// Identities suggests Identity Service namespaces for columns
	// that look like identity values.
	Identities []IdentitySuggestion `json:"identities,omitempty"`
}

// IdentitySuggestion proposes an identity namespace for a column.
type IdentitySuggestion struct {
	Field     string `json:"field"`
	Namespace string `json:"namespace"`
	Primary   bool   `json:"primary,omitempty"`
}

const maxSampleValues = 5

// Infer analyzes sample records and proposes a schema definition,
// key candidates, and identity fields for each column.
func Infer(records []Record, opts InferOptions) (*Inferred, error) {
	if len(records) == 0 {
		return nil, aep.ValidationError{Reason: "sample data is empty"}
	}
	seen := map[string]bool{}
	for _, rec := range records {
		for name := range rec {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	inf := &Inferred{Records: len(records)}
	for _, name := range names {
		values := make([]interface{}, 0, len(records))
		for _, rec := range records {
			values = append(values, rec[name])
		}
		inf.Fields = append(inf.Fields, analyzeColumn(name, values))
	}
	inf.detectKeys(opts.EntityName)
	inf.suggestIdentities()
	return inf, nil
}

// Builder returns a SchemaBuilder preloaded with the inferred field
// definitions.
func (inf *Inferred) Builder(title string) *SchemaBuilder {
	b := &SchemaBuilder{Title: title}
	for _, f := range inf.Fields {
		b.AddField(f.Name, f.Field)
	}
	return b
}

func analyzeColumn(name string, values []interface{}) FieldStat {
	stat := FieldStat{
		Name:  name,
		Field: analyzeField(name, values),
		Key:   idLike(name),
	}
	unique := map[interface{}]bool{}
	typeCount := map[string]int{}
	var typeOrder []string
	for _, v := range values {
		if v == nil {
			stat.Nulls++
			continue
		}
		t := inferType(v)
		if typeCount[t] == 0 {
			typeOrder = append(typeOrder, t)
		}
		typeCount[t]++
		if len(stat.Samples) < maxSampleValues {
			stat.Samples = append(stat.Samples, formatValue(v))
		}
		switch n := v.(type) {
		case string, int64:
			unique[v] = true
		case json.Number:
			if _, err := n.Int64(); err == nil {
				unique[v] = true
			}
		}
	}
	// Dominant type wins; ties go to the type seen first.
	for _, t := range typeOrder {
		if typeCount[t] > typeCount[stat.Type] {
			stat.Type = t
		}
	}
	if stat.Type == "" {
		stat.Type = "string"
	}
	stat.Unique = len(unique)
	stat.Format = stat.Field.Format
	return stat
}

// analyzeField generates a schema definition for one column. The
// type and format come from the first non-null value; numeric ranges
// span all of them.
func analyzeField(name string, values []interface{}) *aep.SchemaField {
	field := &aep.SchemaField{
		Title:       fieldTitle(name),
		Description: "Field: " + name,
		Type:        "string",
	}
	var nonNull []interface{}
	for _, v := range values {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}
	if len(nonNull) == 0 {
		return field
	}
	sample := nonNull[0]
	field.Type = inferType(sample)
	switch field.Type {
	case "string":
		if s, ok := sample.(string); ok {
			field.Format = detectFormat(name, s)
		}
	case "array":
		if list, ok := sample.([]interface{}); ok && len(list) > 0 {
			field.Items = &aep.SchemaField{
				Title:       "Item",
				Description: "Array item",
				Type:        inferType(list[0]),
			}
		}
	case "object":
		if obj, ok := sample.(map[string]interface{}); ok {
			field.Properties = map[string]*aep.SchemaField{}
			for key, value := range obj {
				field.Properties[key] = analyzeField(key, []interface{}{value})
			}
		}
	case "integer", "number":
		if min, max, ok := numericRange(nonNull); ok {
			field.Minimum, field.Maximum = &min, &max
		}
	}
	return field
}

// inferType maps a decoded sample value to its XDM type.
func inferType(v interface{}) string {
	switch n := v.(type) {
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "number"
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case string:
		return "string"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	default:
		return "string"
	}
}

// detectFormat guesses a string format from the column name and a
// sample value.
func detectFormat(name, value string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email") || strings.Contains(value, "@"):
		return "email"
	case strings.Contains(lower, "url") || strings.Contains(lower, "uri") ||
		strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://"):
		return "uri"
	case strings.Contains(lower, "date") || strings.Contains(lower, "time") || strings.Contains(lower, "timestamp"):
		if strings.ContainsAny(value, "T ") {
			return "date-time"
		}
		return "date"
	}
	return ""
}

// numericRange returns the smallest and largest numeric values.
func numericRange(values []interface{}) (min, max float64, ok bool) {
	for _, v := range values {
		f, isNum := asFloat(v)
		if !isNum {
			continue
		}
		if !ok || f < min {
			min = f
		}
		if !ok || f > max {
			max = f
		}
		ok = true
	}
	return
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// fieldTitle renders a column name as a display title, e.g.
// "date_of_birth" becomes "Date Of Birth".
func fieldTitle(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		for j := 1; j < len(r); j++ {
			r[j] = unicode.ToLower(r[j])
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// formatValue renders a sample value for display.
func formatValue(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		if buf, err := json.Marshal(v); err == nil {
			return string(buf)
		}
	}
	return fmt.Sprintf("%v", v)
}

// idLike reports whether a column name follows an identifier naming
// convention.
func idLike(name string) bool {
	return name == "id" ||
		strings.HasSuffix(name, "_id") ||
		strings.HasSuffix(name, "_ID") ||
		strings.HasSuffix(name, "Id")
}

// detectKeys picks primary and foreign key candidates. A primary key
// must be id-named and unique across the samples; among candidates
// an exact "{entity}_id" match beats "id", which beats any id-named
// column mentioning the entity.
func (inf *Inferred) detectKeys(entity string) {
	stem := strings.TrimRight(entity, "s")
	best := 0
	for _, f := range inf.Fields {
		if !f.Key {
			continue
		}
		inf.ForeignKeys = append(inf.ForeignKeys, f.Name)
		if f.Nulls > 0 || f.Unique != inf.Records {
			continue
		}
		score := 0
		switch {
		case entity != "" && f.Name == entity+"_id":
			score = 3
		case f.Name == "id":
			score = 2
		case stem != "" && strings.Contains(f.Name, stem):
			score = 1
		}
		if score > best {
			best = score
			inf.PrimaryKey = f.Name
		}
	}
	if inf.PrimaryKey == "" {
		return
	}
	fks := inf.ForeignKeys[:0]
	for _, name := range inf.ForeignKeys {
		if name != inf.PrimaryKey {
			fks = append(fks, name)
		}
	}
	inf.ForeignKeys = fks
}

// suggestIdentities proposes Identity Service namespaces: email
// columns map to Email, phone columns to Phone, and a string-typed
// primary key to CRM_ID. The first email column, if any, is marked
// as the primary identity.
func (inf *Inferred) suggestIdentities() {
	primary := -1
	for _, f := range inf.Fields {
		var ns string
		switch {
		case f.Format == "email":
			ns = NamespaceEmail
		case strings.Contains(strings.ToLower(f.Name), "phone"):
			ns = NamespacePhone
		case f.Name == inf.PrimaryKey && f.Type == "string":
			ns = NamespaceCRMID
		default:
			continue
		}
		if ns == NamespaceEmail && primary < 0 {
			primary = len(inf.Identities)
		}
		inf.Identities = append(inf.Identities, IdentitySuggestion{Field: f.Name, Namespace: ns})
	}
	if primary < 0 && len(inf.Identities) > 0 {
		primary = 0
	}
	if primary >= 0 {
		inf.Identities[primary].Primary = true
	}
}

// ReadSamples loads sample records from a JSON or CSV file,
// dispatching on the file extension.
func ReadSamples(path string) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, aep.NotFoundError{What: fmt.Sprintf("sample file %q", path)}
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ReadJSONSamples(f)
	case ".csv":
		return ReadCSVSamples(f)
	default:
		return nil, aep.ValidationError{Reason: fmt.Sprintf("unsupported sample format %q (expected .json or .csv)", ext)}
	}
}

// ReadJSONSamples decodes sample records from a JSON array of
// objects, or from a single JSON object.
func ReadJSONSamples(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("error parsing sample data: %w", err)
	}
	switch data := raw.(type) {
	case map[string]interface{}:
		return []Record{data}, nil
	case []interface{}:
		records := make([]Record, 0, len(data))
		for _, el := range data {
			rec, ok := el.(map[string]interface{})
			if !ok {
				return nil, aep.ValidationError{Reason: "sample data must be a JSON object or an array of objects"}
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, aep.ValidationError{Reason: "sample data must be a JSON object or an array of objects"}
	}
}

// nullTokens are cell values treated as null in CSV samples.
var nullTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"null": true,
	"NULL": true,
	"None": true,
}

// ReadCSVSamples decodes sample records from CSV with a header row.
// Cells are coerced to typed values: recognized null tokens become
// null, numeric text becomes a number, true/false become booleans,
// and everything else stays a string.
func ReadCSVSamples(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, aep.ValidationError{Reason: "sample data is empty"}
	} else if err != nil {
		return nil, fmt.Errorf("error parsing sample data: %w", err)
	}
	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("error parsing sample data: %w", err)
		}
		rec := Record{}
		for i, col := range header {
			rec[col] = coerceCell(row[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

// coerceCell converts CSV text to a typed sample value. Integers are
// tried before booleans so "1" stays numeric.
func coerceCell(s string) interface{} {
	if nullTokens[s] {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true", "True", "TRUE":
		return true
	case "false", "False", "FALSE":
		return false
	}
	return s
}
