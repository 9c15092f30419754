package automation

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var templateToken = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate replaces every {{key}} in template with data[key].
// Unknown keys are left untouched, slices are joined with " - ".
func Interpolate(template string, data map[string]any) string {
	if template == "" || !strings.Contains(template, "{{") {
		return template
	}
	return templateToken.ReplaceAllStringFunc(template, func(token string) string {
		key := token[2 : len(token)-2]
		value, ok := data[key]
		if !ok {
			return token
		}
		return stringify(value)
	})
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, " - ")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = stringify(rv.Index(i).Interface())
		}
		return strings.Join(parts, " - ")
	}
	return fmt.Sprint(value)
}
