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
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrUnknownFormat is returned for files that are neither csv nor json.
var ErrUnknownFormat = errors.New("unknown file format")

// FormatOf derives the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".json":
		return JSON, nil
	}
	return "", errors.Wrap(ErrUnknownFormat, path)
}

// Load reads the artifact file at path from fs. An empty format is derived
// from the file extension.
func Load(fs afero.Fs, path, source string, format Format) (*Dataset, error) {
	if format == "" {
		var err error
		format, err = FormatOf(path)
		if err != nil {
			return nil, err
		}
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open artifact")
	}
	defer f.Close()

	switch format {
	case CSV:
		return ReadCSV(source, path, f)
	case JSON:
		return ReadJSON(source, path, f)
	}
	return nil, errors.Wrap(ErrUnknownFormat, string(format))
}
