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

package store

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/forensicanalysis/forensictimeline/dataset"
	"github.com/forensicanalysis/forensictimeline/goflatten"
	"github.com/forensicanalysis/forensictimeline/timeline"
)

// Entry converts a merged row into a timeline entry element. Carried
// columns are nested below "fields"; dotted column names become objects.
func Entry(row timeline.Row) (Element, error) {
	element := map[string]interface{}{
		"type":          EntryType,
		"artifact_type": string(row.ArtifactType),
		"description":   row.Description,
		"data_source":   dataset.FormatValue(row.Fields[dataset.SourceColumn]),
	}
	if row.Timeline != nil {
		element["timeline"] = row.Timeline.UTC().Format(time.RFC3339Nano)
	}

	fields := map[string]interface{}{}
	for column, value := range row.Fields {
		if column == dataset.SourceColumn || dataset.IsNull(value) {
			continue
		}
		fields[column] = value
	}
	if len(fields) > 0 {
		nested, err := goflatten.Unflatten(fields)
		if err != nil {
			return nil, err
		}
		element["fields"] = nested
	}
	return sonic.Marshal(element)
}

// InsertTimeline stores every row of table as a timeline entry.
func (store *Store) InsertTimeline(table *timeline.Table) ([]string, error) {
	elements := make([]Element, 0, table.Len())
	for _, row := range table.Rows {
		element, err := Entry(row)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}
	return store.InsertBatch(elements)
}
