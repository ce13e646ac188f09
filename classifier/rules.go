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

// Package classifier decides from a dataset's column names which column
// supplies the time, which supplies the description and which artifact type
// the dataset represents. The decision is driven by an ordered, versioned
// rule table so the same schema always yields the same classification.
package classifier

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/forensictimeline/dataset"
)

// RuleVersion identifies the built-in rule table.
const RuleVersion = "2"

// ArtifactType is the closed set of labels a timeline row can carry.
type ArtifactType string

const (
	EventLog      ArtifactType = "EventLog"
	Registry      ArtifactType = "Registry"
	MemoryProcess ArtifactType = "MemoryProcess"
	MemoryFile    ArtifactType = "MemoryFile"
	MemoryHive    ArtifactType = "MemoryHive"
	Unknown       ArtifactType = "Unknown"
)

// ArtifactTypes lists every known label.
var ArtifactTypes = []ArtifactType{EventLog, Registry, MemoryProcess, MemoryFile, MemoryHive, Unknown}

func (t ArtifactType) valid() bool {
	for _, known := range ArtifactTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TimeRule selects the first column whose name contains one of Keywords.
type TimeRule struct {
	Keywords []string `json:"keywords"`
}

// DescriptionRule selects the first column whose name contains one of
// Keywords. Separator joins synthesized key: value pairs.
type DescriptionRule struct {
	Keywords  []string `json:"keywords"`
	Separator string   `json:"separator"`
}

// TypeRule assigns Label when every column in Requires is present.
// Description optionally names the columns that describe this artifact type;
// with Join all present ones are concatenated, otherwise the first present
// one is used.
type TypeRule struct {
	Label       ArtifactType `json:"label"`
	Requires    []string     `json:"requires"`
	Description []string     `json:"description,omitempty"`
	Join        bool         `json:"join,omitempty"`
}

// CompositeRule builds column Name out of Members when all of them are
// present.
type CompositeRule struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// RuleSet is the complete, ordered rule table.
type RuleSet struct {
	Version     string          `json:"version"`
	Time        TimeRule        `json:"time"`
	Description DescriptionRule `json:"description"`
	Types       []TypeRule      `json:"types"`
	Composites  []CompositeRule `json:"composites"`
	Bookkeeping []string        `json:"bookkeeping"`
}

// Default returns the built-in rule table.
func Default() *RuleSet {
	return &RuleSet{
		Version: RuleVersion,
		Time: TimeRule{
			Keywords: []string{"time", "date", "created", "modified", "accessed"},
		},
		Description: DescriptionRule{
			Keywords:  []string{"message", "description", "details", "data", "value", "path"},
			Separator: " | ",
		},
		Types: []TypeRule{
			{Label: EventLog, Requires: []string{"TimeCreated"}, Description: []string{"MapDescription", "Message"}},
			{Label: Registry, Requires: []string{"LastWriteTimestamp"}, Description: []string{"Description", "Comment"}, Join: true},
			{Label: Registry, Requires: []string{"KeyPath", "ValueName"}, Description: []string{"Description", "Comment"}, Join: true},
			{Label: MemoryProcess, Requires: []string{"start_time", "process_name"}},
			{Label: MemoryProcess, Requires: []string{"CreateTime", "ImageFileName"}},
			{Label: MemoryProcess, Requires: []string{"Start", "Name", "PID"}},
			{Label: MemoryFile, Requires: []string{"Offset(P)", "Access", "Name"}},
			{Label: MemoryHive, Requires: []string{"Virtual", "Physical", "Name"}},
		},
		Composites: []CompositeRule{
			{Name: "UserInfo", Members: []string{"UserId", "UserName", "Computer", "RemoteHost"}},
			{Name: "ProcessDetails", Members: []string{"ProcessId", "ThreadId", "ExecutableInfo"}},
		},
		Bookkeeping: []string{dataset.SourceColumn},
	}
}

// Validate rejects rule tables that cannot classify anything.
func (rs *RuleSet) Validate() error {
	if len(rs.Time.Keywords) == 0 {
		return errors.New("time rule needs keywords")
	}
	if len(rs.Description.Keywords) == 0 {
		return errors.New("description rule needs keywords")
	}
	for i, rule := range rs.Types {
		if !rule.Label.valid() {
			return fmt.Errorf("type rule %d: unknown label %q", i, rule.Label)
		}
		if len(rule.Requires) == 0 {
			return fmt.Errorf("type rule %d (%s): no required columns", i, rule.Label)
		}
	}
	names := map[string]bool{}
	for i, rule := range rs.Composites {
		if rule.Name == "" || len(rule.Members) == 0 {
			return fmt.Errorf("composite rule %d: needs a name and members", i)
		}
		if names[rule.Name] {
			return fmt.Errorf("composite rule %d: duplicate name %q", i, rule.Name)
		}
		names[rule.Name] = true
	}
	for _, keywords := range [][]string{rs.Time.Keywords, rs.Description.Keywords} {
		for _, keyword := range keywords {
			if strings.TrimSpace(keyword) == "" {
				return errors.New("empty keyword")
			}
		}
	}
	return nil
}

// Parse decodes a JSON rule table. Sections missing from the document are
// taken from Default.
func Parse(b []byte) (*RuleSet, error) {
	rs := &RuleSet{}
	if err := sonic.Unmarshal(b, rs); err != nil {
		return nil, errors.Wrap(err, "could not decode rules")
	}
	rs.fill(Default())
	if err := rs.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid rules")
	}
	return rs, nil
}

func (rs *RuleSet) fill(defaults *RuleSet) {
	if rs.Version == "" {
		rs.Version = defaults.Version
	}
	if rs.Time.Keywords == nil {
		rs.Time.Keywords = defaults.Time.Keywords
	}
	if rs.Description.Keywords == nil {
		rs.Description.Keywords = defaults.Description.Keywords
	}
	if rs.Description.Separator == "" {
		rs.Description.Separator = defaults.Description.Separator
	}
	if rs.Types == nil {
		rs.Types = defaults.Types
	}
	if rs.Composites == nil {
		rs.Composites = defaults.Composites
	}
	if rs.Bookkeeping == nil {
		rs.Bookkeeping = defaults.Bookkeeping
	}
}

// Load reads a JSON rule table from fs.
func Load(fs afero.Fs, path string) (*RuleSet, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read rules")
	}
	return Parse(b)
}

// Marshal encodes the rule table as indented JSON.
func (rs *RuleSet) Marshal() ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(rs, "", "  ")
}
