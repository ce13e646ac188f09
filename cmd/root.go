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

// Package cmd implements the forensictimeline command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensictimeline/internal/logger"
	"github.com/forensicanalysis/forensictimeline/store"
)

// Root returns the forensictimeline command with all subcommands.
func Root() *cobra.Command {
	var debug bool
	var logLevel string
	rootCmd := &cobra.Command{
		Use:          "forensictimeline",
		Short:        "Merge forensic tool output into one timeline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Debug: debug, Level: logLevel})
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(Merge(), Classify(), Rules(), Search(), Validate(), Element())
	return rootCmd
}

// Element groups the commands that read single elements from an audit store.
func Element() *cobra.Command {
	elementCommand := &cobra.Command{
		Use:   "element",
		Short: "Read elements of an audit store",
	}
	elementCommand.AddCommand(getCommand(), selectCommand(), allCommand())
	return elementCommand
}

// Validate checks an audit store.
func Validate() *cobra.Command {
	var noFail bool
	validateCommand := &cobra.Command{
		Use:   "validate <store>",
		Short: "Validate all elements of an audit store",
		Args:  requireOneStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			flaws, err := s.Validate()
			if err != nil {
				return err
			}
			if len(flaws) == 0 {
				return nil
			}
			for i, v := range flaws {
				flaws[i] = strings.ReplaceAll(v, "\"", "\\\"")
			}
			fmt.Printf("[\"%s\"]\n", strings.Join(flaws, "\", \""))
			if noFail {
				return nil
			}
			return fmt.Errorf("%d flaws found", len(flaws))
		},
	}
	validateCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCommand
}

func requireOneStore(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one store")
	}
	return requireFile(args[0])
}

func requireFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, path)
	}
	return nil
}
