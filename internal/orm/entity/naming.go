package entity

import "reflect"

// ToSnakeCase converts a Go identifier to snake_case ("CustomerID" -> "customer_id")
func ToSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			// Underscore at a camelCase boundary, or at the end of an acronym
			// ("HTTPServer" -> "http_server").
			if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
				result = append(result, '_')
			} else if prev >= 'A' && prev <= 'Z' && i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// EntityTag names the entity of a struct type built at run time. It is set
// on the struct's fields since such types have no Go name.
const EntityTag = "entity"

// TypeName returns the name of an entity type
func TypeName(t reflect.Type) string {
	t = indirect(t)
	if t == nil {
		return ""
	}
	if name := t.Name(); name != "" || t.Kind() != reflect.Struct {
		return name
	}
	for i := 0; i < t.NumField(); i++ {
		if name, ok := t.Field(i).Tag.Lookup(EntityTag); ok {
			return name
		}
	}
	return ""
}
