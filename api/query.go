package api

import (
	"fmt"
	"net/url"
	"reflect"
	"time"
)

// Query serializes filters into a query string. Nil and empty values are skipped.
type Query struct {
	values url.Values
}

func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// Add appends key=value. Slices add one pair per element.
func (q *Query) Add(key string, value any) *Query {
	if isEmpty(value) {
		return q
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			q.Add(key, rv.Index(i).Interface())
		}
		return q
	}
	q.values.Add(key, format(rv.Interface()))
	return q
}

// Build returns "?k=v&..." with keys sorted, or an empty string.
func (q *Query) Build() string {
	if len(q.values) == 0 {
		return ""
	}
	return "?" + q.values.Encode()
}

// QueryFrom builds a query string from a filter map.
func QueryFrom(params map[string]any) string {
	q := NewQuery()
	for k, v := range params {
		q.Add(k, v)
	}
	return q.Build()
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return isEmpty(rv.Elem().Interface())
	case reflect.String:
		return rv.Len() == 0
	case reflect.Slice, reflect.Map:
		return rv.IsNil() || rv.Len() == 0
	}
	return false
}

func format(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}
