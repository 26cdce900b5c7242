// Package resolver substitutes {{ path }} placeholders in step configuration
// using the values accumulated in the execution context.
package resolver

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// placeholderPattern matches {{ dotted.path }} occurrences. Unmatched braces
// fall outside the pattern and pass through as plain text.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Resolve walks an arbitrary JSON-like value and replaces every placeholder in
// every string with its value from the context. Maps and slices are resolved
// recursively; other value types are returned unchanged. Placeholders whose
// path has no value in the context are left verbatim.
func Resolve(value any, context map[string]any) any {
	switch typed := value.(type) {
	case string:
		return resolveString(typed, context)
	case map[string]any:
		resolved := make(map[string]any, len(typed))
		for key, item := range typed {
			resolved[key] = Resolve(item, context)
		}

		return resolved
	case []any:
		resolved := make([]any, len(typed))
		for i, item := range typed {
			resolved[i] = Resolve(item, context)
		}

		return resolved
	default:
		return value
	}
}

// ResolveConfig resolves a step configuration map. A nil config resolves to an
// empty map so handlers never see nil.
func ResolveConfig(config map[string]any, context map[string]any) map[string]any {
	resolved := make(map[string]any, len(config))
	for key, item := range config {
		resolved[key] = Resolve(item, context)
	}

	return resolved
}

func resolveString(input string, context map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])

		value, found := lookupPath(context, path)
		if !found {
			return match
		}

		return stringify(value)
	})
}

// lookupPath walks a dot-separated key chain through nested maps. It reports
// false as soon as any segment is missing or the current value is not a map.
func lookupPath(context map[string]any, path string) (any, bool) {
	var current any = context

	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		value, exists := node[key]
		if !exists {
			return nil, false
		}

		current = value
	}

	return current, true
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
}
