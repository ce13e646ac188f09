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
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensictimeline"
	"github.com/forensicanalysis/forensictimeline/timeline"
)

// Merge merges the artifact files of an input directory.
func Merge() *cobra.Command {
	var config forensictimeline.Config
	var exclude []string
	mergeCommand := &cobra.Command{
		Use:   "merge <input-dir>",
		Short: "Merge all artifact files of a directory into one timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Fs = afero.NewOsFs()
			config.InputDir = args[0]
			config.Exclude = append(append([]string{}, timeline.DefaultExclude...), exclude...)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			result, err := forensictimeline.Run(ctx, config)
			if err != nil {
				return err
			}

			for _, report := range result.Datasets {
				if report.Err != nil {
					fmt.Printf("skipped  %s: %s\n", report.Path, report.Err)
					continue
				}
				fmt.Printf("%-8s %s (%s, %d rows)\n", report.Label, report.Path, report.ArtifactType, report.Rows)
			}
			fmt.Printf("merged %d rows into %s\n", result.Rows, result.Output)
			for _, path := range []string{result.JSONL, result.Store} {
				if path != "" {
					fmt.Printf("wrote %s\n", path)
				}
			}
			return nil
		},
	}
	flags := mergeCommand.Flags()
	flags.StringVarP(&config.OutputDir, "output", "o", "", "output directory (default: input directory)")
	flags.StringVar(&config.RulesFile, "rules", "", "classification rules file (json)")
	flags.StringArrayVar(&exclude, "exclude", nil, "additional column to leave out of the timeline")
	flags.BoolVar(&config.Store, "store", false, "write an audit store")
	flags.BoolVar(&config.JSONL, "jsonl", false, "write the timeline as json lines")
	flags.IntVar(&config.Workers, "workers", runtime.NumCPU(), "number of files loaded in parallel")
	return mergeCommand
}
