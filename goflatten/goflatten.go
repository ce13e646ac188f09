// Copyright (c) 2019 Nguyễn Quốc Đính
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
// Author(s): Nguyễn Quốc Đính, Jonas Plum
//
// This code was adapted from
// https://github.com/nqd/flat/blob/master/flat.go

// Package goflatten flattens nested JSON documents into dotted column names
// in document order, and turns flat rows back into nested objects.
package goflatten

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/imdario/mergo"
	"github.com/tidwall/gjson"
)

// Delimiter joins the path segments of a flattened key.
const Delimiter = "."

// Field is one flattened key and its scalar value.
type Field struct {
	Key   string
	Value interface{}
}

// Flatten returns the scalar leaves of value keyed by their dotted path.
// Object keys keep the order of the document. Empty objects and arrays are
// kept as their raw JSON so no key disappears.
func Flatten(value gjson.Result) []Field {
	return flatten("", value, nil)
}

// FlattenKey flattens value below key; a scalar value yields one field named
// key.
func FlattenKey(key string, value gjson.Result) []Field {
	return flatten(key, value, nil)
}

func flatten(prefix string, value gjson.Result, fields []Field) []Field {
	if !value.IsObject() && !value.IsArray() {
		return append(fields, Field{Key: prefix, Value: Scalar(value)})
	}

	empty := true
	i := 0
	value.ForEach(func(key, child gjson.Result) bool {
		empty = false
		name := key.String()
		if value.IsArray() {
			name = strconv.Itoa(i)
		}
		i++
		if prefix != "" {
			name = prefix + Delimiter + name
		}
		fields = flatten(name, child, fields)
		return true
	})
	if empty && prefix != "" {
		fields = append(fields, Field{Key: prefix, Value: value.Raw})
	}
	return fields
}

// Scalar converts a gjson leaf into a Go value.
func Scalar(value gjson.Result) interface{} {
	switch value.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return value.Num
	case gjson.String:
		return value.Str
	default:
		return value.Raw
	}
}

// Unflatten nests dotted keys again, so {"a.b": 1} becomes {"a": {"b": 1}}.
// Maps whose keys are 0..n-1 become lists. A key is left as is when one of
// its prefixes is a key of its own, e.g. "Name.1" next to "Name".
func Unflatten(flat map[string]interface{}) (nested map[string]interface{}, err error) {
	nested = make(map[string]interface{})

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var temp map[string]interface{}
		if shadowed(flat, k) {
			temp = map[string]interface{}{k: flat[k]}
		} else {
			temp = uf(k, flat[k]).(map[string]interface{})
		}
		err = mergo.Merge(&nested, temp)
		if err != nil {
			return nil, err
		}
	}

	walk(reflect.ValueOf(nested))

	return nested, nil
}

func shadowed(flat map[string]interface{}, key string) bool {
	for i := strings.Index(key, Delimiter); i >= 0; {
		if _, ok := flat[key[:i]]; ok {
			return true
		}
		next := strings.Index(key[i+1:], Delimiter)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return false
}

func uf(k string, v interface{}) (n interface{}) {
	n = v

	keys := strings.Split(k, Delimiter)

	for i := len(keys) - 1; i >= 0; i-- {
		temp := make(map[string]interface{})
		temp[keys[i]] = n
		n = temp
	}

	return
}

func walk(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			element := v.Index(i)
			element.Set(walk(element))
		}
		return v
	case reflect.Map:
		mapKeys := v.MapKeys()

		isList := len(mapKeys) > 0
		list := make([]interface{}, len(mapKeys))
		for _, k := range mapKeys {
			j, err := strconv.Atoi(k.String())
			if err != nil || j < 0 || j > len(mapKeys)-1 || list[j] != nil {
				isList = false
				break
			}
			list[j] = v.MapIndex(k).Interface()
		}

		for _, k := range mapKeys {
			v.SetMapIndex(k, walk(v.MapIndex(k)))
		}
		if isList {
			for _, k := range mapKeys {
				j, _ := strconv.Atoi(k.String())
				list[j] = v.MapIndex(k).Interface()
			}
			return reflect.ValueOf(list)
		}
		return v
	default:
		return v
	}
}
