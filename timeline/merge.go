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

package timeline

import (
	"sort"
	"strings"

	"github.com/forensicanalysis/forensictimeline/classifier"
	"github.com/forensicanalysis/forensictimeline/dataset"
)

// Merger normalizes datasets with a rule table and combines them.
type Merger struct {
	rules   *classifier.RuleSet
	exclude map[string]bool
}

// Option configures a Merger.
type Option func(*Merger)

// WithExclude replaces the list of source columns left out of the merged
// table.
func WithExclude(columns ...string) Option {
	return func(m *Merger) {
		m.exclude = map[string]bool{}
		for _, column := range columns {
			m.exclude[column] = true
		}
	}
}

// New creates a Merger. A nil rule table selects classifier.Default.
func New(rules *classifier.RuleSet, opts ...Option) *Merger {
	if rules == nil {
		rules = classifier.Default()
	}
	m := &Merger{rules: rules}
	WithExclude(DefaultExclude...)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rules returns the rule table in use.
func (m *Merger) Rules() *classifier.RuleSet {
	return m.rules
}

// Merge normalizes every dataset and combines the results.
func (m *Merger) Merge(datasets []*dataset.Dataset) (*Table, error) {
	parts := make([]*Part, 0, len(datasets))
	for _, ds := range datasets {
		parts = append(parts, m.Normalize(ds))
	}
	return m.Combine(parts)
}

// Normalize classifies ds and derives the normalized values, composite
// columns and Data_Source for each record.
func (m *Merger) Normalize(ds *dataset.Dataset) *Part {
	c := m.rules.Classify(ds.Columns)
	part := &Part{Dataset: ds, Classification: c}

	reserved := map[string]bool{dataset.SourceColumn: true}
	for _, column := range NormalizedColumns {
		reserved[column] = true
	}
	for _, composite := range c.Composites {
		reserved[composite.Name] = true
	}

	type carried struct{ source, output string }
	var columns []carried
	for _, column := range ds.Columns {
		if m.exclude[column] {
			continue
		}
		output := column
		if reserved[column] {
			output = column + OriginalSuffix
		}
		columns = append(columns, carried{column, output})
		part.Columns = append(part.Columns, output)
	}
	for _, composite := range c.Composites {
		part.Columns = append(part.Columns, composite.Name)
	}
	part.Columns = append(part.Columns, dataset.SourceColumn)

	part.Rows = make([]Row, 0, ds.Len())
	for _, record := range ds.Records {
		row := Row{
			ArtifactType: c.ArtifactType,
			Description:  m.describe(c, ds.Columns, record),
			Fields:       make(dataset.Record, len(part.Columns)),
		}
		if c.TimeColumn != "" {
			if t, ok := ParseTime(record[c.TimeColumn]); ok {
				row.Timeline = &t
			} else if !dataset.IsNull(record[c.TimeColumn]) {
				part.Unparsed++
			}
		}
		for _, column := range columns {
			if v, ok := record[column.source]; ok && v != nil {
				row.Fields[column.output] = v
			}
		}
		for _, composite := range c.Composites {
			if v := m.pairs(composite.Members, record); v != "" {
				row.Fields[composite.Name] = v
			}
		}
		row.Fields[dataset.SourceColumn] = ds.Source
		part.Rows = append(part.Rows, row)
	}
	return part
}

// Combine unions the schemas of parts, concatenates their rows in order and
// sorts them by time with rows without time first.
func (m *Merger) Combine(parts []*Part) (*Table, error) {
	if len(parts) == 0 {
		return nil, ErrNothingToMerge
	}

	table := &Table{Columns: append([]string{}, NormalizedColumns...)}
	seen := map[string]bool{}
	for _, column := range NormalizedColumns {
		seen[column] = true
	}
	size := 0
	for _, part := range parts {
		for _, column := range part.Columns {
			if !seen[column] {
				seen[column] = true
				table.Columns = append(table.Columns, column)
			}
		}
		size += len(part.Rows)
	}

	table.Rows = make([]Row, 0, size)
	for _, part := range parts {
		table.Rows = append(table.Rows, part.Rows...)
	}
	Sort(table.Rows)
	return table, nil
}

// Sort orders rows ascending by Timeline. Rows without time come first and
// rows with equal time keep their relative order.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Timeline, rows[j].Timeline
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
}

func (m *Merger) describe(c classifier.Classification, columns []string, record dataset.Record) string {
	switch {
	case c.Synthesized():
		var keys []string
		for _, column := range columns {
			if !m.rules.IsBookkeeping(column) {
				keys = append(keys, column)
			}
		}
		return m.pairs(keys, record)
	case c.JoinDescription:
		var values []string
		for _, column := range c.DescriptionColumns {
			if v := record[column]; !dataset.IsNull(v) {
				values = append(values, dataset.FormatValue(v))
			}
		}
		return strings.Join(values, m.rules.Description.Separator)
	default:
		return dataset.FormatValue(record[c.DescriptionColumns[0]])
	}
}

// pairs renders the non-null values of keys as "key: value" joined by the
// description separator.
func (m *Merger) pairs(keys []string, record dataset.Record) string {
	var parts []string
	for _, key := range keys {
		v := record[key]
		if dataset.IsNull(v) {
			continue
		}
		parts = append(parts, key+": "+dataset.FormatValue(v))
	}
	return strings.Join(parts, m.rules.Description.Separator)
}
