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

// Package store keeps an audit copy of a merge run in a single SQLite file:
// every source dataset unmodified as its own table ("sheet"), the merged
// timeline as searchable JSON elements and a summary of the run.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crawshaw.io/sqlite"
	"github.com/bytedance/sonic"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

const storeVersion = 1
const applicationID = 1718906996
const discriminator = "type"

// Store is an open audit store.
type Store struct {
	cursor *sqlite.Conn
	sheets *sheetMap
	schema *jsonschema.Schema
	mu     sync.Mutex
}

var ErrStoreExists = errors.New("store already exists")
var ErrStoreNotExists = errors.New("store does not exist")

// New creates a new store at url.
func New(url string) (*Store, error) {
	return open(url, true)
}

// Open opens an existing store.
func Open(url string) (*Store, error) {
	return open(url, false)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	_, err = stmt.Step()
	if err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	_, err = stmt.Step()
	if err != nil {
		return err
	}
	return stmt.Finalize()
}

func open(url string, create bool) (*Store, error) { // nolint:gocyclo,funlen
	if url != ":memory:" {
		exists := true
		_, err := os.Stat(url)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, ErrStoreExists
		}
		if !create && !exists {
			return nil, ErrStoreNotExists
		}

		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
		}
	}

	schema, err := entrySchema()
	if err != nil {
		return nil, err
	}
	store := &Store{sheets: newSheetMap(), schema: schema}

	store.cursor, err = sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, errors.Wrap(err, "could not open store")
	}

	if create {
		if err := store.init(); err != nil {
			store.cursor.Close()
			return nil, err
		}
		return store, nil
	}

	if err := store.check(); err != nil {
		store.cursor.Close()
		return nil, err
	}
	if err := store.setupSheets(); err != nil {
		store.cursor.Close()
		return nil, err
	}
	return store, nil
}

func (store *Store) init() error {
	if err := setPragma(store.cursor, "application_id", applicationID); err != nil {
		return err
	}
	if err := setPragma(store.cursor, "user_version", storeVersion); err != nil {
		return err
	}
	return store.exec("CREATE VIRTUAL TABLE `elements` " +
		"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.'\")")
}

func (store *Store) check() error {
	id, err := pragma(store.cursor, "application_id")
	if err != nil {
		return err
	}
	if id != applicationID {
		return fmt.Errorf("wrong file format (application_id is %d, requires %d)", id, applicationID)
	}

	version, err := pragma(store.cursor, "user_version")
	if err != nil {
		return err
	}
	if version != storeVersion {
		return fmt.Errorf("wrong file format (user_version is %d, requires %d)", version, storeVersion)
	}
	return nil
}

/* ################################
#   API
################################ */

// Insert adds a single element. Elements without an id get one of the form
// <type>--<uuid>. Timeline entries are validated before they are stored.
func (store *Store) Insert(element Element) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.insert(element)
}

func (store *Store) insert(element Element) (string, error) {
	if !gjson.ValidBytes(element) {
		return "", errors.New("element is not valid json")
	}
	elementType := gjson.GetBytes(element, discriminator)
	if elementType.Type != gjson.String || elementType.Str == "" {
		return "", errors.New("element requires type")
	}

	id := gjson.GetBytes(element, "id").String()
	if id == "" {
		m := map[string]interface{}{}
		if err := sonic.Unmarshal(element, &m); err != nil {
			return "", err
		}
		id = elementType.Str + "--" + uuid.New().String()
		m["id"] = id

		var err error
		element, err = sonic.Marshal(m)
		if err != nil {
			return "", err
		}
	}

	flaws, err := store.validateElement(element)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return "", fmt.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	query := "INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)"
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return "", errors.Wrapf(err, "could not prepare statement %s", query)
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err = stmt.Step(); err != nil {
		return "", errors.Wrapf(err, "could not exec statement %s", query)
	}
	return id, stmt.Reset()
}

// InsertBatch adds a set of elements in one transaction.
func (store *Store) InsertBatch(elements []Element) (ids []string, err error) {
	if len(elements) == 0 {
		return nil, nil
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	err = store.transaction(func() error {
		for _, element := range elements {
			id, err := store.insert(element)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// InsertStruct converts a Go struct to an element with snake_case keys and
// inserts it.
func (store *Store) InsertStruct(element interface{}) (string, error) {
	m := structs.Map(element)
	b, err := sonic.Marshal(lower(m))
	if err != nil {
		return "", err
	}
	return store.Insert(b)
}

// Get retrieves a single element.
func (store *Store) Get(id string) (Element, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id=?")
	if err != nil {
		return nil, err
	}
	stmt.BindText(1, id)

	elements, err := store.rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		return elements[0], nil
	}
	return nil, errors.New("element does not exist")
}

// Select retrieves all elements matching any of the conditions. The fields
// of one condition must all match; values are LIKE patterns.
func (store *Store) Select(conditions []map[string]string) ([]Element, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var ors []string
	var values []string
	for _, condition := range conditions {
		var ands []string
		for key, value := range condition {
			ands = append(ands, fmt.Sprintf("json_extract(json, '$.%s') LIKE ?", strings.ReplaceAll(key, "'", "''")))
			values = append(values, value)
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}

	query := "SELECT json FROM `elements`"
	if len(ors) > 0 {
		query += " WHERE " + strings.Join(ors, " OR ") // #nosec
	}

	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		stmt.BindText(i+1, value)
	}
	return store.rowsToElements(stmt)
}

// Search runs a full text query over all elements.
func (store *Store) Search(q string) ([]Element, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare("SELECT json FROM elements WHERE elements = $query ORDER BY rank")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return store.rowsToElements(stmt)
}

// All returns every element.
func (store *Store) All() ([]Element, error) {
	return store.Select(nil)
}

// Close closes the database.
func (store *Store) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.cursor.Close()
}

/* ################################
#   Intern
################################ */

func (store *Store) rowsToElements(stmt *sqlite.Stmt) (elements []Element, err error) {
	elements = []Element{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, err
		} else if !hasRow {
			break
		}
		elements = append(elements, Element(stmt.GetText("json")))
	}
	return elements, stmt.Finalize()
}

func (store *Store) transaction(fn func() error) error {
	if err := store.exec("BEGIN"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = store.exec("ROLLBACK")
		return err
	}
	return store.exec("COMMIT")
}

func (store *Store) exec(query string) error {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Step()
	if err != nil {
		return err
	}

	return stmt.Finalize()
}
