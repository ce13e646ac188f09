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
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensictimeline/classifier"
	"github.com/forensicanalysis/forensictimeline/dataset"
	"github.com/forensicanalysis/forensictimeline/discover"
)

type classification struct {
	Path               string                     `json:"path"`
	Label              string                     `json:"label"`
	Rows               int                        `json:"rows"`
	Columns            []string                   `json:"columns"`
	RuleVersion        string                     `json:"rule_version"`
	ArtifactType       classifier.ArtifactType    `json:"artifact_type"`
	TimeColumn         string                     `json:"time_column"`
	DescriptionColumns []string                   `json:"description_columns"`
	Synthesized        bool                       `json:"synthesized_description"`
	Composites         []classifier.CompositeRule `json:"composites"`
}

func loadRules(fs afero.Fs, path string) (*classifier.RuleSet, error) {
	if path == "" {
		return classifier.Default(), nil
	}
	return classifier.Load(fs, path)
}

// Classify prints how a single artifact file would be classified.
func Classify() *cobra.Command {
	var rulesFile string
	classifyCommand := &cobra.Command{
		Use:   "classify <file>",
		Short: "Show the classification of an artifact file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			rules, err := loadRules(fs, rulesFile)
			if err != nil {
				return err
			}
			ds, err := dataset.Load(fs, args[0], discover.Name(args[0]), "")
			if err != nil {
				return err
			}

			c := rules.Classify(ds.Columns)
			b, err := sonic.ConfigStd.MarshalIndent(classification{
				Path:               ds.Path,
				Label:              ds.Source,
				Rows:               ds.Len(),
				Columns:            ds.Columns,
				RuleVersion:        c.RuleVersion,
				ArtifactType:       c.ArtifactType,
				TimeColumn:         c.TimeColumn,
				DescriptionColumns: c.DescriptionColumns,
				Synthesized:        c.Synthesized(),
				Composites:         c.Composites,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", b)
			return nil
		},
	}
	classifyCommand.Flags().StringVar(&rulesFile, "rules", "", "classification rules file (json)")
	return classifyCommand
}

// Rules prints the classification rules, e.g. as a template for --rules.
func Rules() *cobra.Command {
	var rulesFile string
	rulesCommand := &cobra.Command{
		Use:   "rules",
		Short: "Print the classification rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := loadRules(afero.NewOsFs(), rulesFile)
			if err != nil {
				return err
			}
			b, err := rules.Marshal()
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", b)
			return nil
		},
	}
	rulesCommand.Flags().StringVar(&rulesFile, "rules", "", "classification rules file (json)")
	return rulesCommand
}
