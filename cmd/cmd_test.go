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

package cmd

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/forensictimeline"
	"github.com/forensicanalysis/forensictimeline/classifier"
)

func stdout(f func()) []byte {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	outC := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r) // nolint
		outC <- buf.Bytes()
	}()

	f()

	w.Close()
	os.Stdout = old
	return <-outC
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	require.NoError(t, cmd.ParseFlags(args))
	var err error
	output := stdout(func() {
		err = cmd.RunE(cmd, cmd.Flags().Args())
	})
	return string(output), err
}

func setup(t *testing.T) string {
	dir := t.TempDir()
	files := map[string]string{
		"EvtxECmd_Output.csv": "TimeCreated,EventID,Message\n2024-01-01 10:00:00,4624,Logon\n",
		"RECmd_Batch.csv":     "LastWriteTimestamp,KeyPath,ValueName\n2024-01-02 00:00:00,HKLM\\Run,X\n",
	}
	for name, content := range files {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func setupStore(t *testing.T) string {
	dir := setup(t)
	result, err := forensictimeline.Run(context.Background(), forensictimeline.Config{InputDir: dir, Store: true})
	require.NoError(t, err)
	return result.Store
}

func Test_mergeCommand(t *testing.T) {
	dir := setup(t)
	out := filepath.Join(t.TempDir(), "out")

	output, err := run(t, Merge(), dir, "--output", out, "--jsonl", "--exclude", "EventID", "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "merged 2 rows into "+out)
	assert.Contains(t, output, "EVTX")

	matches, err := filepath.Glob(filepath.Join(out, "forensic_analysis_*"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	for _, match := range matches {
		if filepath.Ext(match) != ".csv" {
			continue
		}
		b, err := ioutil.ReadFile(match)
		require.NoError(t, err)
		header := strings.SplitN(string(b), "\n", 2)[0]
		assert.Equal(t, "Timeline (UTC),ArtifactType,Description,Message,Data_Source,KeyPath,ValueName", header)
	}

	_, err = run(t, Merge(), t.TempDir())
	assert.Equal(t, forensictimeline.ErrNothingToMerge, err)
}

func Test_classifyCommand(t *testing.T) {
	dir := setup(t)

	output, err := run(t, Classify(), filepath.Join(dir, "RECmd_Batch.csv"))
	require.NoError(t, err)
	result := gjson.Parse(output)
	assert.Equal(t, "Registry", result.Get("artifact_type").String())
	assert.Equal(t, "LastWriteTimestamp", result.Get("time_column").String())
	assert.True(t, result.Get("synthesized_description").Bool())
	assert.Equal(t, int64(1), result.Get("rows").Int())
	assert.Equal(t, classifier.RuleVersion, result.Get("rule_version").String())

	_, err = run(t, Classify(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func Test_rulesCommand(t *testing.T) {
	output, err := run(t, Rules())
	require.NoError(t, err)

	rules, err := classifier.Parse([]byte(output))
	require.NoError(t, err)
	assert.Equal(t, classifier.Default(), rules)

	rulesFile := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, ioutil.WriteFile(rulesFile, []byte(`{"version": "custom"}`), 0644))
	output, err = run(t, Rules(), "--rules", rulesFile)
	require.NoError(t, err)
	assert.Equal(t, "custom", gjson.Get(output, "version").String())
}

func Test_searchCommand(t *testing.T) {
	storePath := setupStore(t)

	output, err := run(t, Search(), "Logon", storePath)
	require.NoError(t, err)
	results := gjson.Parse(output).Array()
	require.Len(t, results, 1)
	assert.Equal(t, "EventLog", results[0].Get("artifact_type").String())

	output, err = run(t, Search(), "nothinglikethis", storePath)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", output)

	_, err = run(t, Search(), "Logon", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func Test_elementCommands(t *testing.T) {
	storePath := setupStore(t)

	output, err := run(t, allCommand(), storePath)
	require.NoError(t, err)
	assert.Len(t, gjson.Parse(output).Array(), 3)

	output, err = run(t, selectCommand(), "run", storePath)
	require.NoError(t, err)
	runs := gjson.Parse(output).Array()
	require.Len(t, runs, 1)
	assert.Equal(t, int64(2), runs[0].Get("rows").Int())

	id := runs[0].Get("id").String()
	output, err = run(t, getCommand(), id, storePath)
	require.NoError(t, err)
	assert.Equal(t, id, gjson.Get(output, "id").String())
}

func Test_validateCommand(t *testing.T) {
	storePath := setupStore(t)

	output, err := run(t, Validate(), storePath)
	require.NoError(t, err)
	assert.Empty(t, output)

	assert.Error(t, requireOneStore(nil, nil))
	assert.Error(t, requireOneStore(nil, []string{filepath.Join(t.TempDir(), "missing")}))
}
