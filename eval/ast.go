package eval

import "strings"

// node is whatever encoding/json.Unmarshal produced for one AST position:
// nil, bool, float64, string, []any, or map[string]any (symbols only).
type node = any

// symbolName reports whether n is a symbol literal {"#": name} and, if so,
// returns name. A symbol object must have exactly one key, "#", with a
// string value; anything else is not a symbol.
func symbolName(n node) (string, bool) {
	m, ok := n.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	name, ok := m["#"].(string)
	return name, ok
}

// variableName reports whether n is a variable reference "$name" and, if
// so, returns name (without the leading $).
func variableName(n node) (string, bool) {
	s, ok := n.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return "", false
	}
	return s[1:], true
}

// colonCount returns the number of ':' characters in selector.
func colonCount(selector string) int {
	return strings.Count(selector, ":")
}

// isAssignmentSelector reports whether s is a legal assignment target
// name-with-colon: exactly one trailing colon and no colon anywhere else.
func isAssignmentSelector(s string) (name string, ok bool) {
	if !strings.HasSuffix(s, ":") {
		return "", false
	}
	if colonCount(s) != 1 {
		return "", false
	}
	return s[:len(s)-1], true
}

// argNamesOf extracts an ordered list of argument names from a block
// literal's first element, which must be an array of plain strings.
func argNamesOf(n node) ([]string, bool) {
	arr, ok := n.([]any)
	if !ok {
		return nil, false
	}
	names := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		names[i] = s
	}
	return names, true
}
