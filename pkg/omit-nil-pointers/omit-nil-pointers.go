package omitnilpointers

import (
	"reflect"
)

// OmitNilPointers returns a copy of fields without nil values and nil
// pointers. Pointers are replaced by the values they point to, so the
// result can be passed straight to HSET.
func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		v := reflect.ValueOf(value)
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				break
			}
			v = v.Elem()
		}

		if v.Kind() == reflect.Pointer {
			continue
		}

		omitted[key] = v.Interface()
	}

	return omitted
}
