package config

import (
	"os"
	"regexp"
)

// envRefPattern matches ${NAME} placeholders in raw config text.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// findEnvRefs returns the distinct variable names referenced via ${NAME} in
// data, in first-seen order.
func findEnvRefs(data []byte) []string {
	matches := envRefPattern.FindAllSubmatch(data, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		name := string(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// expandEnvInValue walks a decoded YAML value tree (as produced by
// yaml.Unmarshal into `any`) and replaces ${NAME} placeholders in every
// string leaf with the corresponding environment variable's value.
// References to unset variables are left untouched (warned about
// separately by warnUnresolvedEnvRefs).
func expandEnvInValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = expandEnvInValue(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = expandEnvInValue(sub)
		}
		return out
	default:
		return v
	}
}

// expandString replaces every ${NAME} occurrence in s with the value of the
// named environment variable, leaving unresolved references as-is.
func expandString(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRefPattern.FindStringSubmatch(ref)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ref
	})
}
