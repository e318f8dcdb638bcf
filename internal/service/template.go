package service

import (
	"fmt"
	"sort"
	"strings"
)

// RenderTemplate replaces every {key} in template with the string form of
// variables[key]. Placeholders without a variable are left as written.
// All substitutions happen in one pass, so a value that itself contains a
// placeholder is never expanded.
func RenderTemplate(template string, variables map[string]interface{}) string {
	if len(variables) == 0 || template == "" {
		return template
	}
	keys := make([]string, 0, len(variables))
	for key := range variables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, "{"+key+"}", stringify(variables[key]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
