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

// Package forensictimeline merges the output of forensic analysis tools into
// one chronological timeline.
//
// Input
//
// The input directory holds CSV and JSON files written by analysis tools:
//     - EvtxECmd event log exports (*EvtxECmd*.csv, evtx_output_*.csv)
//     - RECmd registry exports (*RECmd*.csv, registry_output_*.csv)
//     - Volatility plugin output (vol_<plugin>.json or any other .json file)
//     - any other CSV file, labeled by its file name
//
// Each file is loaded as a dataset tagged with a Data_Source label.
//
// Output
//
// Every dataset is classified by its column names into a time column, a
// description and an artifact type. The merged table starts with the
// columns "Timeline (UTC)", "ArtifactType" and "Description" followed by the
// union of all other columns and is sorted by time, rows without a time
// first. It is written as forensic_analysis_<YYYYMMDD_HHMMSS>.csv and
// optionally as JSON lines and as a SQLite audit store that keeps every
// source dataset unmodified.
package forensictimeline
