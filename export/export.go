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

// Package export writes merged timelines to disk.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/forensictimeline/dataset"
	"github.com/forensicanalysis/forensictimeline/goflatten"
	"github.com/forensicanalysis/forensictimeline/timeline"
)

// Prefix of every file written by an export.
const Prefix = "forensic_analysis_"

// StampLayout formats the run time in output file names.
const StampLayout = "20060102_150405"

// WriteCSV writes the table with a header row. Times are RFC 3339 in UTC
// and missing values are empty cells.
func WriteCSV(w io.Writer, table *timeline.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return errors.Wrap(err, "could not write header")
	}

	line := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, column := range table.Columns {
			line[i] = dataset.FormatValue(row.Value(column))
		}
		if err := cw.Write(line); err != nil {
			return errors.Wrap(err, "could not write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "could not write csv")
}

// WriteJSONL writes one JSON object per row. Missing values are omitted,
// except for the normalized columns, and dotted column names are nested.
func WriteJSONL(w io.Writer, table *timeline.Table) error {
	bw := bufio.NewWriter(w)
	for _, row := range table.Rows {
		flat := map[string]interface{}{}
		for _, column := range table.Columns {
			if v := row.Value(column); v != nil {
				flat[column] = v
			}
		}
		delete(flat, timeline.TimelineColumn)

		object, err := goflatten.Unflatten(flat)
		if err != nil {
			return errors.Wrap(err, "could not unflatten row")
		}
		object[timeline.TimelineColumn] = nil
		if row.Timeline != nil {
			object[timeline.TimelineColumn] = row.Timeline.UTC().Format(time.RFC3339Nano)
		}
		object[timeline.ArtifactTypeColumn] = string(row.ArtifactType)
		object[timeline.DescriptionColumn] = row.Description

		b, err := sonic.Marshal(object)
		if err != nil {
			return errors.Wrap(err, "could not encode row")
		}
		if _, err := bw.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Path returns the output path for a run started at now with the given
// extension, e.g. forensic_analysis_20240101_120000.csv.
func Path(dir string, now time.Time, ext string) string {
	return filepath.Join(dir, Prefix+now.Format(StampLayout)+ext)
}

// Create creates filePath on fs. If the file exists, _1, _2, ... is added
// before the extension until the name is free.
func Create(fs afero.Fs, filePath string) (string, afero.File, error) {
	err := fs.MkdirAll(filepath.Dir(filePath), 0755)
	if err != nil {
		return "", nil, err
	}

	i := 1
	ext := filepath.Ext(filePath)
	storePath := filePath
	base := storePath[:len(storePath)-len(ext)]

	exists, err := afero.Exists(fs, storePath)
	if err != nil {
		return "", nil, err
	}
	for exists {
		storePath = fmt.Sprintf("%s_%d%s", base, i, ext)
		i++
		exists, err = afero.Exists(fs, storePath)
		if err != nil {
			return "", nil, err
		}
	}

	file, err := fs.Create(storePath)
	return storePath, file, err
}

// File writes table to a new file below dir using write, e.g. WriteCSV.
func File(fs afero.Fs, dir string, now time.Time, ext string, table *timeline.Table, write func(io.Writer, *timeline.Table) error) (string, error) {
	path, f, err := Create(fs, Path(dir, now, ext))
	if err != nil {
		return "", errors.Wrap(err, "could not create output")
	}
	if err := write(f, table); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "could not write %s", path)
	}
	return path, errors.Wrapf(f.Close(), "could not close %s", path)
}
