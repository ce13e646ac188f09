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
	"fmt"
	"sort"
	"strings"
	"sync"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
	"github.com/stoewer/go-strcase"

	"github.com/forensicanalysis/forensictimeline/dataset"
)

type sheetMap struct {
	sync.RWMutex
	sheets map[string][]string
}

func newSheetMap() *sheetMap {
	return &sheetMap{sheets: map[string][]string{}}
}

func (sm *sheetMap) add(name string, columns []string) {
	sm.Lock()
	sm.sheets[name] = columns
	sm.Unlock()
}

func (sm *sheetMap) addColumn(name, column string) {
	sm.Lock()
	sm.sheets[name] = append(sm.sheets[name], column)
	sm.Unlock()
}

func (sm *sheetMap) exists(name string) bool {
	sm.RLock()
	defer sm.RUnlock()
	_, ok := sm.sheets[name]
	return ok
}

func (sm *sheetMap) columns(name string) []string {
	sm.RLock()
	defer sm.RUnlock()
	return sm.sheets[name]
}

func (sm *sheetMap) names() []string {
	sm.RLock()
	defer sm.RUnlock()
	var names []string
	for name := range sm.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddSheet stores a source dataset unmodified as its own table. The table
// name is the snake_case label, suffixed with _<n> if it is taken. Column
// names that only differ by case get a .<n> suffix; values are kept.
func (store *Store) AddSheet(label string, columns []string, records []dataset.Record) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if len(columns) == 0 {
		return "", errors.Errorf("sheet %s has no columns", label)
	}

	name := store.sheetName(label)
	sheetColumns := uniqueFold(columns)
	var defs []string
	var params []string
	for _, column := range sheetColumns {
		defs = append(defs, quote(column)+" TEXT")
		params = append(params, "?")
	}

	err := store.transaction(func() error {
		if err := store.exec(fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", "))); err != nil {
			return errors.Wrapf(err, "could not create sheet %s", name)
		}
		query := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quote(name), strings.Join(params, ", ")) // #nosec
		stmt, err := store.cursor.Prepare(query)
		if err != nil {
			return errors.Wrapf(err, "could not prepare statement %s", query)
		}
		defer stmt.Finalize()
		for _, record := range records {
			for i, column := range columns {
				if v := record[column]; v != nil {
					stmt.BindText(i+1, dataset.FormatValue(v))
				} else {
					stmt.BindNull(i + 1)
				}
			}
			if _, err := stmt.Step(); err != nil {
				return errors.Wrapf(err, "could not insert into sheet %s", name)
			}
			if err := stmt.Reset(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	store.sheets.add(name, sheetColumns)
	return name, nil
}

// uniqueFold renames columns that only differ by case from an earlier
// column to name.1, name.2, ... as SQLite column names ignore case.
func uniqueFold(columns []string) []string {
	seen := map[string]bool{}
	unique := make([]string, len(columns))
	for i, column := range columns {
		candidate := column
		for n := 1; seen[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s.%d", column, n)
		}
		seen[strings.ToLower(candidate)] = true
		unique[i] = candidate
	}
	return unique
}

// Sheets lists the sheet tables in the store.
func (store *Store) Sheets() []string {
	return store.sheets.names()
}

// Sheet returns the columns and rows of a sheet.
func (store *Store) Sheet(name string) (columns []string, records []dataset.Record, err error) {
	if !store.sheets.exists(name) {
		return nil, nil, errors.Errorf("sheet %s does not exist", name)
	}
	columns = store.sheets.columns(name)

	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare(fmt.Sprintf("SELECT * FROM %s", quote(name))) // #nosec
	if err != nil {
		return nil, nil, err
	}
	defer stmt.Finalize()
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, nil, err
		} else if !hasRow {
			break
		}
		record := dataset.Record{}
		for i, column := range columns {
			if stmt.ColumnType(i) == sqlite.SQLITE_NULL {
				record[column] = nil
				continue
			}
			record[column] = stmt.ColumnText(i)
		}
		records = append(records, record)
	}
	return columns, records, nil
}

func (store *Store) sheetName(label string) string {
	base := strcase.SnakeCase(label)
	if base == "" {
		base = "sheet"
	}
	if !isSheetTable(base) {
		base = "sheet_" + base
	}

	name := base
	for i := 1; store.sheets.exists(name) || strings.EqualFold(name, "elements"); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

func isSheetTable(name string) bool {
	if strings.HasPrefix(name, "sqlite") || strings.HasPrefix(name, "_") {
		return false
	}
	if name == "elements" || strings.HasPrefix(name, "elements_") {
		return false
	}
	return true
}

func (store *Store) setupSheets() error {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return err
	}

	var names []string
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return err
		} else if !hasRow {
			break
		}
		if name := stmt.GetText("name"); isSheetTable(name) {
			names = append(names, name)
		}
	}
	if err := stmt.Finalize(); err != nil {
		return err
	}

	for _, name := range names {
		pragmaStmt, err := store.cursor.Prepare(fmt.Sprintf("PRAGMA table_info (%s)", quote(name)))
		if err != nil {
			return err
		}
		store.sheets.add(name, nil)
		for {
			if pragmaHasRow, err := pragmaStmt.Step(); err != nil {
				return err
			} else if !pragmaHasRow {
				break
			}
			store.sheets.addColumn(name, pragmaStmt.GetText("name"))
		}
		if err := pragmaStmt.Finalize(); err != nil {
			return err
		}
	}
	return nil
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
