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
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const bom = "\ufeff"

// ReadCSV parses a CSV document whose first row is the header.
func ReadCSV(source, path string, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Errorf("%s: empty csv file", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: could not read header", path)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}
	columns := uniqueColumns(header)

	ds := New(source, path)
	ds.Columns = columns

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: could not read row %d", path, ds.Len()+1)
		}
		if len(row) == 1 && row[0] == "" {
			continue
		}

		record := make(Record, len(columns))
		for i, column := range columns {
			if i >= len(row) || row[i] == "" {
				record[column] = nil
				continue
			}
			record[column] = row[i]
		}
		ds.Records = append(ds.Records, record)
	}
	return ds, nil
}

// uniqueColumns renames repeated header names to name.1, name.2, ... and
// names blank headers by position.
func uniqueColumns(header []string) []string {
	seen := map[string]int{}
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for {
			if _, ok := seen[candidate]; !ok {
				break
			}
			seen[name]++
			candidate = fmt.Sprintf("%s.%d", name, seen[name])
		}
		seen[candidate] = 0
		columns[i] = candidate
	}
	return columns
}
