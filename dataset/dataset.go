// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package dataset holds the generic tabular model that artifact files are
// loaded into: an ordered column list and records that map column names to
// values. Values are nil, string, float64 or bool.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceColumn is the bookkeeping column that carries the Data_Source label.
const SourceColumn = "Data_Source"

// Format is the on-disk encoding of an artifact file.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// Record is a single row of a dataset.
type Record map[string]interface{}

// Dataset is the content of one artifact file.
type Dataset struct {
	Source  string
	Path    string
	Columns []string
	Records []Record
}

// New creates an empty dataset for the given label and origin.
func New(source, path string) *Dataset {
	return &Dataset{Source: source, Path: path}
}

// AddColumn appends name to the column list unless it is already known.
func (ds *Dataset) AddColumn(name string) {
	if ds.HasColumn(name) {
		return
	}
	ds.Columns = append(ds.Columns, name)
}

// HasColumn reports whether the dataset's schema contains name.
func (ds *Dataset) HasColumn(name string) bool {
	for _, column := range ds.Columns {
		if column == name {
			return true
		}
	}
	return false
}

// Append adds a record. Columns unknown to the dataset are added in the
// order given by keys.
func (ds *Dataset) Append(keys []string, record Record) {
	for _, key := range keys {
		ds.AddColumn(key)
	}
	ds.Records = append(ds.Records, record)
}

// Len returns the number of records.
func (ds *Dataset) Len() int {
	return len(ds.Records)
}

// IsNull reports whether v counts as a missing value.
func IsNull(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return v != v // NaN
	}
	return false
}

// FormatValue renders a value the way it appears in exported tables.
func FormatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
