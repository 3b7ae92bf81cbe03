package plugin

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldValues returns the string values of the named fields of a payload
// struct. A name matches the Go field name or its msgpack tag. Fields that
// are missing or not textual yield an empty string.
func FieldValues(data any, fields []string) []string {
	values := make([]string, len(fields))
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return values
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return values
	}

	t := v.Type()
	for i, name := range fields {
		f, ok := lookupField(t, name)
		if !ok {
			continue
		}
		values[i] = textOf(v.FieldByIndex(f.Index))
	}
	return values
}

func lookupField(t reflect.Type, name string) (reflect.StructField, bool) {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return f, true
	}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("msgpack"), ",")
		if tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func textOf(v reflect.Value) string {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return ""
	}
	if v.CanInterface() {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return ""
}
