package image

import (
	"fmt"
	"log/slog"

	"github.com/sonlang/son/value"
)

// LoadBaseEnvironment applies a key->Value mapping (typically the body of
// GET /base-environment, or the base_environment table's rows) on top of
// root, per §4.8's three rules:
//   - key "Bridge" is skipped here: the Bridge is a host object Bootstrap
//     already installed, not something a stored blob can override.
//   - a value shaped {methods: {selector: {argNames, body}, ...}, ...}
//     becomes a fresh ClassTable with each entry installed as a method.
//   - any other value is bound as-is, decoded via value.FromJSONAny.
//
// Not required to be live-updated (§4.8): callers that want to observe a
// changed blob must call this again against a freshly bootstrapped root.
func LoadBaseEnvironment(root *value.Environment, blob map[string]any, log *slog.Logger) error {
	classCount, boundCount := 0, 0
	for key, raw := range blob {
		if key == "Bridge" {
			continue
		}
		if shape, ok := raw.(map[string]any); ok {
			if methods, ok := shape["methods"].(map[string]any); ok {
				class, err := classFromMethods(key, methods)
				if err != nil {
					return fmt.Errorf("base environment key %q: %w", key, err)
				}
				root.Set(key, value.FromClassTable(class))
				classCount++
				continue
			}
		}
		root.Set(key, value.FromJSONAny(raw))
		boundCount++
	}
	if log != nil {
		log.Info("base environment loaded", "tag", "image", "classes", classCount, "bindings", boundCount)
	}
	return nil
}

// classFromMethods builds one ClassTable from a {selector: {argNames,
// body}} map, as found inside a base-environment class entry.
func classFromMethods(className string, methods map[string]any) (*value.Environment, error) {
	class := newClass(className)
	for selector, entry := range methods {
		shape, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("method %q: malformed entry", selector)
		}
		argNames, err := stringSlice(shape["argNames"])
		if err != nil {
			return nil, fmt.Errorf("method %q: %w", selector, err)
		}
		class.DefineMethod(selector, argNames, shape["body"])
	}
	return class, nil
}

func stringSlice(v any) ([]string, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("argNames must be an array")
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("argNames must be an array of strings")
		}
		out[i] = s
	}
	return out, nil
}
