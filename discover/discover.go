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

// Package discover finds artifact files in an input directory by the naming
// conventions of the tools that produce them.
package discover

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/forensictimeline/dataset"
)

// NamePlaceholder in a label is replaced by the cleaned file stem.
const NamePlaceholder = "{name}"

// SourcePattern assigns Label to files matching Pattern. An empty Format is
// derived from the file extension.
type SourcePattern struct {
	Pattern string         `json:"pattern"`
	Label   string         `json:"label"`
	Format  dataset.Format `json:"format,omitempty"`
}

// Source is a discovered artifact file.
type Source struct {
	Path   string
	Label  string
	Format dataset.Format
}

// DefaultPatterns are evaluated in order, the first match per file wins.
var DefaultPatterns = []SourcePattern{
	{Pattern: "**/*EvtxECmd*.csv", Label: "EVTX", Format: dataset.CSV},
	{Pattern: "**/evtx_output_*.csv", Label: "EVTX", Format: dataset.CSV},
	{Pattern: "**/*RECmd*.csv", Label: "Registry", Format: dataset.CSV},
	{Pattern: "**/registry_output_*.csv", Label: "Registry", Format: dataset.CSV},
	{Pattern: "**/vol_*.json", Label: "Memory_" + NamePlaceholder, Format: dataset.JSON},
	{Pattern: "**/*.json", Label: "Memory_" + NamePlaceholder, Format: dataset.JSON},
	{Pattern: "**/*.csv", Label: NamePlaceholder, Format: dataset.CSV},
}

// DefaultIgnore keeps merged timelines of earlier runs out of the input.
var DefaultIgnore = []string{"**/forensic_analysis_*"}

var stamp = regexp.MustCompile(`_\d{8}_\d{6}$`)

// Name returns the stem of path without a "vol_" prefix and without a
// trailing _YYYYMMDD_HHMMSS stamp.
func Name(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimPrefix(name, "vol_")
	return stamp.ReplaceAllString(name, "")
}

// Sources lists the artifact files below dir, sorted by path.
func Sources(fs afero.Fs, dir string, patterns []SourcePattern, ignore []string) ([]Source, error) {
	fsys := afero.NewIOFS(afero.NewBasePathFs(fs, dir))

	ignored := map[string]bool{}
	for _, pattern := range ignore {
		matches, err := fsdoublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ignore pattern %s", pattern)
		}
		for _, match := range matches {
			ignored[match] = true
		}
	}

	matched := map[string]SourcePattern{}
	for _, pattern := range patterns {
		matches, err := fsdoublestar.Glob(fsys, pattern.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %s", pattern.Pattern)
		}
		for _, match := range matches {
			if _, ok := matched[match]; ok || ignored[match] {
				continue
			}
			matched[match] = pattern
		}
	}

	var sources []Source
	for match, pattern := range matched {
		path := filepath.Join(dir, filepath.FromSlash(match))
		info, err := fs.Stat(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not stat artifact")
		}
		if info.IsDir() {
			continue
		}

		format := pattern.Format
		if format == "" {
			if format, err = dataset.FormatOf(path); err != nil {
				continue
			}
		}
		sources = append(sources, Source{
			Path:   path,
			Label:  strings.ReplaceAll(pattern.Label, NamePlaceholder, Name(path)),
			Format: format,
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}
