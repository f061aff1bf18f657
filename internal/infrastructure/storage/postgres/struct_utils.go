package postgres

import (
	"reflect"
	"slices"
	"sync"
)

// Columns lists the "db" tags of T in field order, descending into
// embedded structs such as entity.BaseDocument. Call it once per table at
// package init; the result is the SELECT column list.
func Columns[T any]() []string {
	var zero T
	var cols []string
	for _, f := range fieldsOf(reflect.TypeOf(zero)) {
		cols = append(cols, f.column)
	}
	return cols
}

type field struct {
	index  []int
	column string
}

var fieldCache sync.Map // reflect.Type -> []field

// fieldsOf returns the tagged fields of t, flattened through embedded
// structs. Results are cached per type.
func fieldsOf(t reflect.Type) []field {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}

	var out []field
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.Anonymous {
				for _, inner := range fieldsOf(sf.Type) {
					out = append(out, field{index: append([]int{i}, inner.index...), column: inner.column})
				}
				continue
			}
			tag := sf.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			out = append(out, field{index: []int{i}, column: tag})
		}
	}

	fieldCache.Store(t, out)
	return out
}

// StructToMap converts a struct to column/value pairs using "db" tags.
// When only is non-empty, columns outside it are left out.
func StructToMap(v any, only ...string) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	fields := fieldsOf(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		if len(only) > 0 && !slices.Contains(only, f.column) {
			continue
		}
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}

// without returns cols minus the excluded names.
func without(cols []string, excluded ...string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !slices.Contains(excluded, c) {
			out = append(out, c)
		}
	}
	return out
}
