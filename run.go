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

package forensictimeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensictimeline/dataset"
	"github.com/forensicanalysis/forensictimeline/discover"
	"github.com/forensicanalysis/forensictimeline/export"
	"github.com/forensicanalysis/forensictimeline/internal/logger"
	"github.com/forensicanalysis/forensictimeline/store"
	"github.com/forensicanalysis/forensictimeline/timeline"
)

// StoreExt is the file extension of audit stores.
const StoreExt = ".forensictimeline"

// ErrNothingToMerge is returned when no dataset could be loaded.
var ErrNothingToMerge = timeline.ErrNothingToMerge

// Report describes how one input file was handled.
type Report struct {
	Path         string
	Label        string
	Rows         int
	Columns      int
	ArtifactType string
	TimeColumn   string
	// Unparsed counts time values that could not be read.
	Unparsed int
	Err      error
}

// Result summarizes a merge run.
type Result struct {
	RunID       string
	RuleVersion string
	Started     time.Time
	Output      string
	JSONL       string
	Store       string
	Rows        int
	Columns     int
	Datasets    []Report
}

// Failed returns the reports of files that could not be loaded.
func (r *Result) Failed() []Report {
	var failed []Report
	for _, report := range r.Datasets {
		if report.Err != nil {
			failed = append(failed, report)
		}
	}
	return failed
}

type runSummary struct {
	Type        string
	RunID       string
	RuleVersion string
	Started     string
	Output      string
	JSONL       string
	Rows        int
	Columns     int
	Datasets    []datasetSummary
}

type datasetSummary struct {
	Path         string
	Label        string
	Sheet        string
	Rows         int
	Columns      int
	ArtifactType string
	TimeColumn   string
	Unparsed     int
	Error        string
}

// Run discovers, loads, classifies and merges the files in the input
// directory and writes the merged timeline. Files that cannot be loaded are
// skipped and reported. If no file can be loaded ErrNothingToMerge is
// returned and nothing is written.
func Run(ctx context.Context, config Config) (*Result, error) { // nolint:funlen,gocyclo
	if err := config.complete(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:       uuid.New().String(),
		RuleVersion: config.Rules.Version,
		Started:     config.Now().UTC(),
	}
	log := logger.GetLogger().With().Str("run", result.RunID).Logger()

	sources, err := discover.Sources(config.Fs, config.InputDir, config.Patterns, config.Ignore)
	if err != nil {
		return nil, errors.Wrap(err, "discovery failed")
	}
	log.Info().Int("files", len(sources)).Str("dir", config.InputDir).Msg("discovered input files")
	if len(sources) == 0 {
		return result, ErrNothingToMerge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merger := timeline.New(config.Rules, timeline.WithExclude(config.Exclude...))
	loaded := load(config, merger, sources)

	var parts []*timeline.Part
	for i, l := range loaded {
		report := Report{Path: sources[i].Path, Label: sources[i].Label, Err: l.err}
		if l.err != nil {
			log.Error().Err(l.err).Str("path", report.Path).Msg("could not load dataset, skipping")
			result.Datasets = append(result.Datasets, report)
			continue
		}

		c := l.part.Classification
		report.Rows = l.part.Dataset.Len()
		report.Columns = len(l.part.Dataset.Columns)
		report.ArtifactType = string(c.ArtifactType)
		report.TimeColumn = c.TimeColumn
		report.Unparsed = l.part.Unparsed
		result.Datasets = append(result.Datasets, report)

		event := log.Debug()
		if c.TimeColumn == "" {
			event = log.Warn()
		}
		event.Str("path", report.Path).
			Str("source", report.Label).
			Str("artifact_type", report.ArtifactType).
			Str("time_column", c.TimeColumn).
			Int("rows", report.Rows).
			Msg("classified dataset")
		if report.Unparsed > 0 {
			log.Warn().Str("path", report.Path).Int("values", report.Unparsed).Msg("unparsable time values")
		}
		parts = append(parts, l.part)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := merger.Combine(parts)
	if err != nil {
		return result, err
	}
	result.Rows = table.Len()
	result.Columns = len(table.Columns)

	result.Output, err = export.File(config.Fs, config.OutputDir, result.Started, ".csv", table, export.WriteCSV)
	if err != nil {
		return result, err
	}
	log.Info().Str("path", result.Output).Int("rows", result.Rows).Msg("wrote timeline")

	if config.JSONL {
		result.JSONL, err = export.File(config.Fs, config.OutputDir, result.Started, ".jsonl", table, export.WriteJSONL)
		if err != nil {
			return result, err
		}
	}

	if config.Store {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		path := export.Path(config.OutputDir, result.Started, StoreExt)
		if result.Store, err = writeStore(path, result, parts, table); err != nil {
			return result, err
		}
		log.Info().Str("path", result.Store).Msg("wrote audit store")
	}
	return result, nil
}

type loadResult struct {
	part *timeline.Part
	err  error
}

// load reads and normalizes the sources on a bounded pool of workers. The
// results keep the order of sources.
func load(config Config, merger *timeline.Merger, sources []discover.Source) []loadResult {
	results := make([]loadResult, len(sources))
	var wg sync.WaitGroup

	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	semaphore := make(chan struct{}, workers)

	for i, source := range sources {
		wg.Add(1)
		go func(i int, source discover.Source) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			ds, err := dataset.Load(config.Fs, source.Path, source.Label, source.Format)
			if err != nil {
				results[i] = loadResult{err: err}
				return
			}
			results[i] = loadResult{part: merger.Normalize(ds)}
		}(i, source)
	}
	wg.Wait()
	return results
}

// writeStore creates the audit store next to the outputs. An incomplete
// store is removed.
func writeStore(path string, result *Result, parts []*timeline.Part, table *timeline.Table) (string, error) {
	base := path[:len(path)-len(filepath.Ext(path))]
	for i := 1; ; i++ {
		s, err := store.New(path)
		if err == store.ErrStoreExists {
			path = fmt.Sprintf("%s_%d%s", base, i, StoreExt)
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "could not create audit store")
		}
		if err := fillStore(s, result, parts, table); err != nil {
			s.Close()
			if rmErr := os.Remove(path); rmErr != nil {
				log := logger.GetLogger()
				log.Warn().Err(rmErr).Str("path", path).Msg("could not remove incomplete audit store")
			}
			return "", err
		}
		return path, errors.Wrap(s.Close(), "could not close audit store")
	}
}

func fillStore(s *store.Store, result *Result, parts []*timeline.Part, table *timeline.Table) error {
	sheets := map[string]string{}
	for _, part := range parts {
		if len(part.Dataset.Columns) == 0 {
			continue
		}
		name, err := s.AddSheet(part.Dataset.Source, part.Dataset.Columns, part.Dataset.Records)
		if err != nil {
			return err
		}
		sheets[part.Dataset.Path] = name
	}

	if _, err := s.InsertTimeline(table); err != nil {
		return errors.Wrap(err, "could not store timeline")
	}

	summary := runSummary{
		Type:        store.RunType,
		RunID:       result.RunID,
		RuleVersion: result.RuleVersion,
		Started:     result.Started.Format(time.RFC3339),
		Output:      result.Output,
		JSONL:       result.JSONL,
		Rows:        result.Rows,
		Columns:     result.Columns,
	}
	for _, report := range result.Datasets {
		ds := datasetSummary{
			Path:         report.Path,
			Label:        report.Label,
			Sheet:        sheets[report.Path],
			Rows:         report.Rows,
			Columns:      report.Columns,
			ArtifactType: report.ArtifactType,
			TimeColumn:   report.TimeColumn,
			Unparsed:     report.Unparsed,
		}
		if report.Err != nil {
			ds.Error = report.Err.Error()
		}
		summary.Datasets = append(summary.Datasets, ds)
	}
	_, err := s.InsertStruct(summary)
	return errors.Wrap(err, "could not store run summary")
}
