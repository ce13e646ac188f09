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
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensictimeline/classifier"
	"github.com/forensicanalysis/forensictimeline/dataset"
	"github.com/forensicanalysis/forensictimeline/store"
	"github.com/forensicanalysis/forensictimeline/timeline"
)

var inputFiles = map[string]string{
	"EvtxECmd_Output.csv": "TimeCreated,EventID,Message\n" +
		"2024-01-01 10:00:00.0000000,4624,Logon\n" +
		"2024-01-03 00:00:00,4634,Logoff\n",
	"RECmd_Batch.csv": "LastWriteTimestamp,KeyPath,ValueName\n" +
		"2024-01-02 00:00:00,HKLM\\Run,X\n",
	"vol_pslist.json": `[{"PID": 4, "ImageFileName": "System", "CreateTime": null, "__children": [
		{"PID": 88, "ImageFileName": "Registry", "CreateTime": "2024-01-01T05:00:00+00:00", "__children": []}
	]}]`,
	"broken.json": `{"rows": `,
}

var now = func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) }

func writeInput(t *testing.T, fs afero.Fs, dir string) {
	for name, content := range inputFiles {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name), []byte(content), 0644))
	}
}

func readCSV(t *testing.T, fs afero.Fs, path string) [][]string {
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return lines
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/in")

	result, err := Run(context.Background(), Config{Fs: fs, InputDir: "/in", Workers: 2, JSONL: true, Now: now})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, classifier.RuleVersion, result.RuleVersion)
	assert.Equal(t, "/in/forensic_analysis_20240304_050607.csv", result.Output)
	assert.Equal(t, "/in/forensic_analysis_20240304_050607.jsonl", result.JSONL)
	assert.Equal(t, 5, result.Rows)
	assert.Equal(t, 11, result.Columns)

	require.Len(t, result.Datasets, 4)
	assert.Equal(t, Report{
		Path: "/in/EvtxECmd_Output.csv", Label: "EVTX", Rows: 2, Columns: 3,
		ArtifactType: "EventLog", TimeColumn: "TimeCreated",
	}, result.Datasets[0])
	assert.Equal(t, "Registry", result.Datasets[1].ArtifactType)
	assert.Equal(t, "/in/broken.json", result.Datasets[2].Path)
	assert.Error(t, result.Datasets[2].Err)
	assert.Equal(t, "Memory_pslist", result.Datasets[3].Label)
	assert.Equal(t, 2, result.Datasets[3].Rows)
	require.Len(t, result.Failed(), 1)

	lines := readCSV(t, fs, result.Output)
	require.Len(t, lines, 6)
	assert.Equal(t, []string{
		"Timeline (UTC)", "ArtifactType", "Description",
		"EventID", "Message", "Data_Source", "KeyPath", "ValueName", "PID", "ImageFileName", "CreateTime",
	}, lines[0])
	assert.Equal(t, []string{"", "MemoryProcess", "PID: 4 | ImageFileName: System", "", "", "Memory_pslist", "", "", "4", "System", ""}, lines[1])
	assert.Equal(t, "2024-01-01T05:00:00Z", lines[2][0])
	assert.Equal(t, []string{"2024-01-01T10:00:00Z", "EventLog", "Logon", "4624", "Logon", "EVTX", "", "", "", "", ""}, lines[3])
	assert.Equal(t, []string{"2024-01-02T00:00:00Z", "Registry", `LastWriteTimestamp: 2024-01-02 00:00:00 | KeyPath: HKLM\Run | ValueName: X`}, lines[4][:3])
	assert.Equal(t, "Logoff", lines[5][2])

	// Outputs of earlier runs are not merged again and not overwritten.
	result, err = Run(context.Background(), Config{Fs: fs, InputDir: "/in", Now: now})
	require.NoError(t, err)
	assert.Equal(t, "/in/forensic_analysis_20240304_050607_1.csv", result.Output)
	assert.Equal(t, 5, result.Rows)
	assert.Empty(t, result.JSONL)
}

func TestRunNothingToMerge(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"empty", nil},
		{"only broken", map[string]string{"broken.json": "{", "notes.txt": "hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll("/in", 0755))
			for name, content := range tt.files {
				require.NoError(t, afero.WriteFile(fs, filepath.Join("/in", name), []byte(content), 0644))
			}

			_, err := Run(context.Background(), Config{Fs: fs, InputDir: "/in", OutputDir: "/out", Now: now})
			assert.Equal(t, ErrNothingToMerge, err)

			exists, err := afero.DirExists(fs, "/out")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestRunConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/in")
	require.NoError(t, afero.WriteFile(fs, "/rules.json", []byte(`{"types": []}`), 0644))

	result, err := Run(context.Background(), Config{
		Fs: fs, InputDir: "/in", OutputDir: "/out", RulesFile: "/rules.json",
		Exclude: []string{"Message"}, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "/out/forensic_analysis_20240304_050607.csv", result.Output)
	for _, report := range result.Datasets {
		if report.Err == nil {
			assert.Equal(t, "Unknown", report.ArtifactType)
		}
	}

	lines := readCSV(t, fs, result.Output)
	assert.Contains(t, lines[0], "TimeCreated")
	assert.NotContains(t, lines[0], "Message")

	_, err = Run(context.Background(), Config{Fs: fs, InputDir: "/in", RulesFile: "/missing.json"})
	assert.Error(t, err)

	_, err = Run(context.Background(), Config{Fs: fs})
	assert.Error(t, err)
}

func TestRunCanceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/in")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Config{Fs: fs, InputDir: "/in", Now: now})
	assert.Equal(t, context.Canceled, err)
}

func TestRunStore(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	writeInput(t, fs, dir)

	result, err := Run(context.Background(), Config{Fs: fs, InputDir: dir, Store: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "forensic_analysis_20240304_050607.forensictimeline"), result.Store)
	_, err = os.Stat(result.Store)
	require.NoError(t, err)

	s, err := store.Open(result.Store)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"evtx", "memory_pslist", "registry"}, s.Sheets())
	columns, records, err := s.Sheet("evtx")
	require.NoError(t, err)
	assert.Equal(t, []string{"TimeCreated", "EventID", "Message"}, columns)
	assert.Len(t, records, 2)

	entries, err := s.Select([]map[string]string{{"type": store.EntryType}})
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	runs, err := s.Select([]map[string]string{{"type": store.RunType}})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	flaws, err := s.Validate()
	require.NoError(t, err)
	assert.Empty(t, flaws)
}

func TestRunStoreCaseColumns(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	files := map[string]string{
		"EvtxECmd_Output.csv": "TimeCreated,EventID,Message\n2024-01-01 10:00:00,4624,Logon\n",
		"vol_pslist.json":     `[{"Name": "a", "name": "b", "CreateTime": "2024-01-01T05:00:00+00:00"}]`,
		"vol_empty.json":      `[]`,
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name), []byte(content), 0644))
	}

	result, err := Run(context.Background(), Config{Fs: fs, InputDir: dir, Store: true, Now: now})
	require.NoError(t, err)
	assert.Empty(t, result.Failed())

	s, err := store.Open(result.Store)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"evtx", "memory_pslist"}, s.Sheets())
	columns, records, err := s.Sheet("memory_pslist")
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "name.1", "CreateTime"}, columns)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0]["name.1"])
}

func TestWriteStoreIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forensic_analysis_20240304_050607"+StoreExt)

	table := &timeline.Table{
		Columns: timeline.NormalizedColumns,
		Rows:    []timeline.Row{{Description: "no source", Fields: dataset.Record{}}},
	}
	got, err := writeStore(path, &Result{RunID: "run"}, nil, table)
	assert.Error(t, err)
	assert.Empty(t, got)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestConfigExclude(t *testing.T) {
	tests := []struct {
		name    string
		exclude []string
		want    []string
	}{
		{"default", nil, timeline.DefaultExclude},
		{"keep all", []string{}, []string{}},
		{"custom", []string{"Message"}, []string{"Message"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{Fs: afero.NewMemMapFs(), InputDir: "/in", Exclude: tt.exclude}
			require.NoError(t, config.complete())
			assert.Equal(t, tt.want, config.Exclude)
		})
	}
}

func TestRunExcludeNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/EvtxECmd_Output.csv", []byte("TimeCreated,PayloadData1,Message\n2024-01-01 10:00:00,x,Logon\n"), 0644))

	result, err := Run(context.Background(), Config{Fs: fs, InputDir: "/in", Exclude: []string{}, Now: now})
	require.NoError(t, err)
	assert.Contains(t, readCSV(t, fs, result.Output)[0], "PayloadData1")

	result, err = Run(context.Background(), Config{Fs: fs, InputDir: "/in", Now: now})
	require.NoError(t, err)
	assert.NotContains(t, readCSV(t, fs, result.Output)[0], "PayloadData1")
}
