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
	"runtime"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/forensictimeline/classifier"
	"github.com/forensicanalysis/forensictimeline/discover"
	"github.com/forensicanalysis/forensictimeline/timeline"
)

// Config controls a merge run. Zero fields are taken from DefaultConfig.
type Config struct {
	Fs        afero.Fs `json:"-"`
	InputDir  string   `json:"input_dir"`
	OutputDir string   `json:"output_dir"`

	// RulesFile is read when Rules is nil.
	RulesFile string                   `json:"rules_file,omitempty"`
	Rules     *classifier.RuleSet      `json:"-"`
	Patterns  []discover.SourcePattern `json:"patterns"`
	Ignore    []string                 `json:"ignore"`
	// Exclude lists source columns left out of the output. Nil selects
	// timeline.DefaultExclude, an empty non-nil slice keeps every column.
	Exclude []string `json:"exclude"`

	Workers int  `json:"workers"`
	JSONL   bool `json:"jsonl"`
	// Store writes the SQLite audit store. It is created on the operating
	// system's file system regardless of Fs.
	Store bool `json:"store"`

	Now func() time.Time `json:"-"`
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Fs:       afero.NewOsFs(),
		Patterns: discover.DefaultPatterns,
		Ignore:   discover.DefaultIgnore,
		Exclude:  timeline.DefaultExclude,
		Workers:  runtime.NumCPU(),
		Now:      time.Now,
	}
}

func (c *Config) complete() error {
	defaults := DefaultConfig()
	if c.Fs != nil {
		defaults.Fs = nil
	}
	keepAll := c.Exclude != nil && len(c.Exclude) == 0
	if err := mergo.Merge(c, defaults); err != nil {
		return errors.Wrap(err, "could not apply defaults")
	}
	if keepAll {
		c.Exclude = []string{}
	}
	if c.InputDir == "" {
		return errors.New("input directory required")
	}
	if c.OutputDir == "" {
		c.OutputDir = c.InputDir
	}
	if c.Rules == nil {
		if c.RulesFile == "" {
			c.Rules = classifier.Default()
			return nil
		}
		rules, err := classifier.Load(c.Fs, c.RulesFile)
		if err != nil {
			return err
		}
		c.Rules = rules
	}
	return nil
}
