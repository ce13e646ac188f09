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
	"path/filepath"
	"testing"
	"time"

	"crawshaw.io/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/forensictimeline/classifier"
	"github.com/forensicanalysis/forensictimeline/dataset"
	"github.com/forensicanalysis/forensictimeline/timeline"
)

func setup(t *testing.T) (*Store, string) {
	url := filepath.Join(t.TempDir(), "case", "audit.forensictimeline")
	store, err := New(url)
	require.NoError(t, err)
	return store, url
}

func TestNew(t *testing.T) {
	store, url := setup(t)
	require.NoError(t, store.Close())

	_, err := New(url)
	assert.Equal(t, ErrStoreExists, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.forensictimeline"))
	assert.Equal(t, ErrStoreNotExists, err)

	store, err = Open(url)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestOpenWrongFormat(t *testing.T) {
	url := filepath.Join(t.TempDir(), "other.db")
	conn, err := sqlite.OpenConn(url, 0)
	require.NoError(t, err)
	stmt, err := conn.Prepare("CREATE TABLE foo (bar TEXT)")
	require.NoError(t, err)
	_, err = stmt.Step()
	require.NoError(t, err)
	require.NoError(t, stmt.Finalize())
	require.NoError(t, conn.Close())

	_, err = Open(url)
	assert.Error(t, err)
}

func TestStore_Insert(t *testing.T) {
	store, _ := setup(t)
	defer store.Close()

	tests := []struct {
		name    string
		element string
		wantErr bool
	}{
		{"Insert", `{"type": "note", "text": "foo"}`, false},
		{"Insert with id", `{"id": "note--1", "type": "note", "text": "bar"}`, false},
		{"Insert entry", `{"type": "timeline-entry", "artifact_type": "EventLog", "description": "Logon", "data_source": "EVTX", "timeline": "2024-01-01T00:00:00Z"}`, false},
		{"Missing type", `{"text": "foo"}`, true},
		{"Invalid json", `{"type": `, true},
		{"Invalid entry", `{"type": "timeline-entry", "artifact_type": "Prefetch", "description": "x", "data_source": "EVTX"}`, true},
		{"Entry without source", `{"type": "timeline-entry", "artifact_type": "Unknown", "description": "x"}`, true},
		{"Entry with bad time", `{"type": "timeline-entry", "artifact_type": "Unknown", "description": "x", "data_source": "a", "timeline": "yesterday"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := store.Insert(Element(tt.element))
			if (err != nil) != tt.wantErr {
				t.Errorf("Insert() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			element, err := store.Get(id)
			require.NoError(t, err)
			assert.Equal(t, id, gjson.GetBytes(element, "id").String())
			assert.Contains(t, id, gjson.GetBytes(element, "type").String()+"--")
		})
	}

	elements, err := store.All()
	require.NoError(t, err)
	assert.Len(t, elements, 3)

	_, err = store.Get("note--missing")
	assert.Error(t, err)
}

func TestStore_SelectSearch(t *testing.T) {
	store, _ := setup(t)
	defer store.Close()

	_, err := store.InsertBatch([]Element{
		Element(`{"type": "note", "text": "powershell started", "host": "ws01"}`),
		Element(`{"type": "note", "text": "cmd started", "host": "ws02"}`),
		Element(`{"type": "other", "text": "C:/Windows/System32/cmd.exe"}`),
	})
	require.NoError(t, err)

	elements, err := store.Select([]map[string]string{{"type": "note", "host": "ws0%"}})
	require.NoError(t, err)
	assert.Len(t, elements, 2)

	elements, err = store.Select([]map[string]string{{"host": "ws01"}, {"type": "other"}})
	require.NoError(t, err)
	assert.Len(t, elements, 2)

	elements, err = store.Search("powershell")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "ws01", gjson.GetBytes(elements[0], "host").String())

	elements, err = store.Search(`"C:/Windows/System32/cmd.exe"`)
	require.NoError(t, err)
	assert.Len(t, elements, 1)
}

func TestStore_InsertBatchRollback(t *testing.T) {
	store, _ := setup(t)
	defer store.Close()

	_, err := store.InsertBatch([]Element{
		Element(`{"type": "note"}`),
		Element(`{"text": "no type"}`),
	})
	assert.Error(t, err)

	elements, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, elements)
}

type summary struct {
	Type        string
	RunID       string
	RowCount    int
	OutputPaths []string
	Datasets    []report
	Empty       string
}

type report struct {
	Path         string
	ArtifactType string
}

func TestStore_InsertStruct(t *testing.T) {
	store, _ := setup(t)
	defer store.Close()

	id, err := store.InsertStruct(summary{
		Type:        RunType,
		RunID:       "b7e3",
		RowCount:    0,
		OutputPaths: []string{"/out/forensic_analysis_20240101_000000.csv"},
		Datasets:    []report{{Path: "/in/a.csv", ArtifactType: "EventLog"}},
	})
	require.NoError(t, err)
	assert.Contains(t, id, "run--")

	element, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "b7e3", gjson.GetBytes(element, "run_id").String())
	assert.True(t, gjson.GetBytes(element, "row_count").Exists())
	assert.Equal(t, "/in/a.csv", gjson.GetBytes(element, "datasets.0.path").String())
	assert.Equal(t, "EventLog", gjson.GetBytes(element, "datasets.0.artifact_type").String())
	assert.False(t, gjson.GetBytes(element, "empty").Exists())
}

func TestStore_AddSheet(t *testing.T) {
	store, url := setup(t)

	columns := []string{"TimeCreated", "Event ID", `Quoted "Name"`}
	records := []dataset.Record{
		{"TimeCreated": "2024-01-01 00:00:00", "Event ID": float64(4624), `Quoted "Name"`: nil},
		{"TimeCreated": "2024-01-02 00:00:00", "Event ID": "4634"},
	}

	name, err := store.AddSheet("EVTX", columns, records)
	require.NoError(t, err)
	assert.Equal(t, "evtx", name)

	name, err = store.AddSheet("EVTX", columns[:1], records)
	require.NoError(t, err)
	assert.Equal(t, "evtx_1", name)

	name, err = store.AddSheet("elements", columns[:1], records)
	require.NoError(t, err)
	assert.Equal(t, "sheet_elements", name)

	_, err = store.AddSheet("empty", nil, nil)
	assert.Error(t, err)

	require.NoError(t, store.Close())

	store, err = Open(url)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, []string{"evtx", "evtx_1", "sheet_elements"}, store.Sheets())

	gotColumns, gotRecords, err := store.Sheet("evtx")
	require.NoError(t, err)
	assert.Equal(t, columns, gotColumns)
	assert.Equal(t, []dataset.Record{
		{"TimeCreated": "2024-01-01 00:00:00", "Event ID": "4624", `Quoted "Name"`: nil},
		{"TimeCreated": "2024-01-02 00:00:00", "Event ID": "4634", `Quoted "Name"`: nil},
	}, gotRecords)

	_, _, err = store.Sheet("missing")
	assert.Error(t, err)
}

func TestStore_AddSheetCaseFold(t *testing.T) {
	store, url := setup(t)

	columns := []string{"Name", "name", "NAME", "Name.1"}
	records := []dataset.Record{{"Name": "a", "name": "b", "NAME": "c", "Name.1": "d"}}

	name, err := store.AddSheet("Memory_pslist", columns, records)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(url)
	require.NoError(t, err)
	defer store.Close()

	gotColumns, gotRecords, err := store.Sheet(name)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "name.1", "NAME.2", "Name.1.1"}, gotColumns)
	assert.Equal(t, []dataset.Record{{"Name": "a", "name.1": "b", "NAME.2": "c", "Name.1.1": "d"}}, gotRecords)
}

func Test_uniqueFold(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    []string
	}{
		{"distinct", []string{"PID", "Name"}, []string{"PID", "Name"}},
		{"case", []string{"Name", "name"}, []string{"Name", "name.1"}},
		{"taken suffix", []string{"a", "A.1", "A"}, []string{"a", "A.1", "A.2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uniqueFold(tt.columns))
		})
	}
}

func TestStore_InsertTimeline(t *testing.T) {
	store, _ := setup(t)
	defer store.Close()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := &timeline.Table{
		Columns: append(append([]string{}, timeline.NormalizedColumns...), "EventID", "Process.Name", dataset.SourceColumn),
		Rows: []timeline.Row{
			{ArtifactType: classifier.Unknown, Description: "Host: ws01", Fields: dataset.Record{dataset.SourceColumn: "hosts"}},
			{
				Timeline: &ts, ArtifactType: classifier.EventLog, Description: "Logon",
				Fields: dataset.Record{"EventID": "4624", "Process.Name": "lsass.exe", dataset.SourceColumn: "EVTX"},
			},
		},
	}

	ids, err := store.InsertTimeline(table)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	element, err := store.Get(ids[1])
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", gjson.GetBytes(element, "timeline").String())
	assert.Equal(t, "EVTX", gjson.GetBytes(element, "data_source").String())
	assert.Equal(t, "lsass.exe", gjson.GetBytes(element, "fields.Process.Name").String())
	assert.False(t, gjson.GetBytes(element, "fields.Data_Source").Exists())

	element, err = store.Get(ids[0])
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(element, "timeline").Exists())
	assert.False(t, gjson.GetBytes(element, "fields").Exists())

	elements, err := store.Search(`"lsass.exe"`)
	require.NoError(t, err)
	assert.Len(t, elements, 1)

	flaws, err := store.Validate()
	require.NoError(t, err)
	assert.Empty(t, flaws)
}

func TestStore_Validate(t *testing.T) {
	store, _ := setup(t)
	defer store.Close()

	_, err := store.Insert(Element(`{"type": "run"}`))
	require.NoError(t, err)
	_, err = store.Insert(Element(`{"type": "run"}`))
	require.NoError(t, err)

	flaws, err := store.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{"store contains 2 runs"}, flaws)
}

func TestLower(t *testing.T) {
	got := lower(map[string]interface{}{
		"RunID":    "x",
		"RowCount": 3,
		"Empty":    "",
		"Nested":   []interface{}{map[string]interface{}{"ArtifactType": "Unknown"}},
	})
	assert.Equal(t, map[string]interface{}{
		"run_id":    "x",
		"row_count": 3,
		"nested":    []interface{}{map[string]interface{}{"artifact_type": "Unknown"}},
	}, got)
}
