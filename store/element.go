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
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

// Element is a single JSON entry in the store.
type Element []byte

// Element types written by the merge pipeline.
const (
	EntryType = "timeline-entry"
	RunType   = "run"
)

const entrySchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "timeline-entry",
  "type": "object",
  "required": ["id", "type", "artifact_type", "description", "data_source"],
  "properties": {
    "id": {"type": "string", "pattern": "^timeline-entry--"},
    "type": {"const": "timeline-entry"},
    "timeline": {"type": "string", "format": "date-time"},
    "artifact_type": {"enum": ["EventLog", "Registry", "MemoryProcess", "MemoryFile", "MemoryHive", "Unknown"]},
    "description": {"type": "string"},
    "data_source": {"type": "string", "minLength": 1},
    "fields": {"type": "object"}
  }
}`

func entrySchema() (*jsonschema.Schema, error) {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(entrySchemaJSON), schema); err != nil {
		return nil, errors.Wrap(err, "could not load timeline entry schema")
	}
	return schema, nil
}

/* ################################
#   Validate
################################ */

// Validate checks every element of the store and returns the flaws found.
func (store *Store) Validate() (flaws []string, err error) {
	elements, err := store.All()
	if err != nil {
		return nil, err
	}

	flaws = []string{}
	runs := 0
	for _, element := range elements {
		id := gjson.GetBytes(element, "id").String()
		elementFlaws, err := store.validateElement(element)
		if err != nil {
			return nil, err
		}
		for _, flaw := range elementFlaws {
			flaws = append(flaws, fmt.Sprintf("%s: %s", id, flaw))
		}
		if gjson.GetBytes(element, discriminator).String() == RunType {
			runs++
		}
	}
	if runs > 1 {
		flaws = append(flaws, fmt.Sprintf("store contains %d runs", runs))
	}

	for _, sheet := range store.Sheets() {
		if len(store.sheets.columns(sheet)) == 0 {
			flaws = append(flaws, fmt.Sprintf("sheet %s has no columns", sheet))
		}
	}
	return flaws, nil
}

func (store *Store) validateElement(element Element) (flaws []string, err error) {
	if !gjson.ValidBytes(element) {
		return []string{"element is not valid json"}, nil
	}
	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() {
		return []string{"element needs to have a type"}, nil
	}
	if elementType.String() != EntryType {
		return nil, nil // no schema for element
	}

	errs, err := store.schema.ValidateBytes(context.Background(), element)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate element: %s", verr.Error()))
	}
	return flaws, nil
}
