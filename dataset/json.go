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

package dataset

import (
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/forensictimeline/goflatten"
)

const childrenKey = "__children"

// ReadJSON parses memory analysis plugin output. Three layouts are accepted:
// the table layout {"columns": [...], "rows": [[...]]}, a list of records
// (nested "__children" records follow their parent) and a column oriented
// object {"column": [values...]}.
func ReadJSON(source, path string, r io.Reader) (*Dataset, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: could not read", path)
	}
	if !gjson.ValidBytes(b) {
		return nil, errors.Errorf("%s: invalid json", path)
	}

	ds := New(source, path)
	doc := gjson.ParseBytes(b)
	switch {
	case doc.IsArray():
		err = readRecords(ds, doc)
	case doc.Get("columns").IsArray() && doc.Get("rows").IsArray():
		err = readTable(ds, doc.Get("columns"), doc.Get("rows"))
	case doc.IsObject():
		err = readColumns(ds, doc)
	default:
		err = errors.New("unsupported json document")
	}
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return ds, nil
}

func readTable(ds *Dataset, columns, rows gjson.Result) error {
	var header []string
	for _, column := range columns.Array() {
		header = append(header, column.String())
	}
	header = uniqueColumns(header)
	ds.Columns = header

	var err error
	rows.ForEach(func(_, row gjson.Result) bool {
		if !row.IsArray() {
			err = errors.Errorf("row %d is not a list", ds.Len()+1)
			return false
		}
		values := row.Array()
		record := make(Record, len(header))
		for i, column := range header {
			if i < len(values) {
				record[column] = cell(values[i])
			} else {
				record[column] = nil
			}
		}
		ds.Records = append(ds.Records, record)
		return true
	})
	return err
}

func readRecords(ds *Dataset, list gjson.Result) error {
	var err error
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			err = errors.Errorf("record %d is not an object", ds.Len()+1)
			return false
		}
		appendRecord(ds, item)
		return true
	})
	return err
}

func appendRecord(ds *Dataset, item gjson.Result) {
	var keys []string
	record := Record{}
	var children []gjson.Result
	item.ForEach(func(key, value gjson.Result) bool {
		if key.String() == childrenKey {
			if value.IsArray() {
				children = value.Array()
			}
			return true
		}
		for _, field := range goflatten.FlattenKey(key.String(), value) {
			keys = append(keys, field.Key)
			record[field.Key] = field.Value
		}
		return true
	})
	ds.Append(keys, record)

	for _, child := range children {
		if child.IsObject() {
			appendRecord(ds, child)
		}
	}
}

func readColumns(ds *Dataset, doc gjson.Result) error {
	var err error
	length := -1
	values := map[string][]gjson.Result{}
	doc.ForEach(func(key, column gjson.Result) bool {
		if !column.IsArray() {
			err = errors.Errorf("column %s is not a list", key.String())
			return false
		}
		cells := column.Array()
		if length >= 0 && len(cells) != length {
			err = errors.Errorf("column %s has %d values, expected %d", key.String(), len(cells), length)
			return false
		}
		length = len(cells)
		ds.AddColumn(key.String())
		values[key.String()] = cells
		return true
	})
	if err != nil {
		return err
	}

	for i := 0; i < length; i++ {
		record := make(Record, len(ds.Columns))
		for _, column := range ds.Columns {
			record[column] = cell(values[column][i])
		}
		ds.Records = append(ds.Records, record)
	}
	return nil
}

// cell converts a table cell; nested values are kept as raw json.
func cell(value gjson.Result) interface{} {
	if value.IsObject() || value.IsArray() {
		return value.Raw
	}
	return goflatten.Scalar(value)
}
