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

// Package timeline normalizes classified datasets and merges them into a
// single table ordered by time.
package timeline

import (
	"time"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensictimeline/classifier"
	"github.com/forensicanalysis/forensictimeline/dataset"
)

// Names of the normalized columns that lead every merged table.
const (
	TimelineColumn     = "Timeline (UTC)"
	ArtifactTypeColumn = "ArtifactType"
	DescriptionColumn  = "Description"
)

// OriginalSuffix is appended to source columns whose name is taken by a
// column the merger produces.
const OriginalSuffix = " (original)"

// NormalizedColumns in output order.
var NormalizedColumns = []string{TimelineColumn, ArtifactTypeColumn, DescriptionColumn}

// DefaultExclude lists source columns that are not carried into the merged
// table. Their content is either represented by a normalized or composite
// column or is tool bookkeeping.
var DefaultExclude = []string{
	"LastWriteTimestamp", "TimeCreated", "HivePath", "SourceFile", "MapDescription",
	"Description", "EventRecordId", "ChunkNumber", "ExtraDataOffset", "PluginDetailFile",
	"Keywords", "Comment",
	"PayloadData1", "PayloadData2", "PayloadData3", "PayloadData4", "PayloadData5", "PayloadData6",
	"ProcessId", "ThreadId", "ExecutableInfo", "UserId", "UserName", "Computer", "RemoteHost",
}

// ErrNothingToMerge is returned when no dataset is available.
var ErrNothingToMerge = errors.New("nothing to merge")

// Row is one normalized record.
type Row struct {
	// Timeline is nil when the dataset has no time column or the value could
	// not be parsed.
	Timeline     *time.Time
	ArtifactType classifier.ArtifactType
	Description  string
	// Fields holds the carried source, composite and Data_Source values keyed
	// by their output column name.
	Fields dataset.Record
}

// Value returns the value of an output column, nil if absent.
func (r Row) Value(column string) interface{} {
	switch column {
	case TimelineColumn:
		if r.Timeline == nil {
			return nil
		}
		return *r.Timeline
	case ArtifactTypeColumn:
		return string(r.ArtifactType)
	case DescriptionColumn:
		return r.Description
	}
	return r.Fields[column]
}

// Record returns the row as a flat record over columns.
func (r Row) Record(columns []string) dataset.Record {
	record := make(dataset.Record, len(columns))
	for _, column := range columns {
		record[column] = r.Value(column)
	}
	return record
}

// Table is the merged timeline.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Part is a single dataset after normalization.
type Part struct {
	Dataset        *dataset.Dataset
	Classification classifier.Classification
	// Columns are the carried output columns of this dataset in order.
	Columns []string
	Rows    []Row
	// Unparsed counts rows whose time value could not be parsed.
	Unparsed int
}
