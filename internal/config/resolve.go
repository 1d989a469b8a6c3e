package config

import "strings"

// Resolve looks up a dotted path (e.g. "components.llm.default_provider")
// against tree's raw view and type-asserts the result into T. Any missing
// segment, non-map intermediate, or type mismatch at the leaf yields
// defaultValue rather than an error — callers that need to distinguish
// "absent" from "present but zero" should walk Raw() directly.
func Resolve[T any](tree *ConfigTree, path string, defaultValue T) T {
	if tree == nil || path == "" {
		return defaultValue
	}

	var cur any = map[string]any(tree.raw)
	for _, segment := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return defaultValue
		}
		next, ok := m[segment]
		if !ok {
			return defaultValue
		}
		cur = next
	}

	v, ok := cur.(T)
	if !ok {
		return defaultValue
	}
	return v
}
