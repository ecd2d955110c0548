// Package template compiles the small value-extraction expressions binary sensor
// configurations carry in their value_template field. A compiled Transform is a pure
// function from raw payload to derived payload with no hidden host context; everything it
// needs is bound at compile time.
//
// Only the two forms this platform actually meets in the wild are supported: the identity
// expression `{{ value }}` and JSON field extraction via `{{ value_json.some.dotted.path }}`.
// Anything else is rejected at configuration time so that message handling never has to
// guess what an expression means.
package template

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedExpression is the error returned by Compile for expressions outside the
	// supported subset.
	ErrUnsupportedExpression = errors.New("unsupported template expression")
	// ErrNoSuchField is the error returned by a json-extracting Transform when the payload
	// does not contain the configured field.
	ErrNoSuchField = errors.New("payload has no such field")
	// ErrNotAnObject is the error returned by a json-extracting Transform when an
	// intermediate path segment resolves to something other than a json object.
	ErrNotAnObject = errors.New("path segment is not an object")
)

// Transform converts a raw MQTT payload to the derived payload used for state comparison.
type Transform func(payload []byte) ([]byte, error)

// Passthrough is the Transform that returns the payload unchanged.
func Passthrough(payload []byte) ([]byte, error) {
	return payload, nil
}

// Compile parses the provided expression into a Transform. The empty expression and
// `{{ value }}` compile to Passthrough. `{{ value_json.<path> }}` compiles to a Transform
// that parses the payload as json and renders the field at the dotted path. All other
// expressions return ErrUnsupportedExpression.
func Compile(expr string) (Transform, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Passthrough, nil
	}

	inner, ok := strings.CutPrefix(trimmed, "{{")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExpression, expr)
	}

	inner, ok = strings.CutSuffix(inner, "}}")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExpression, expr)
	}

	inner = strings.TrimSpace(inner)

	if inner == "value" {
		return Passthrough, nil
	}

	if path, ok := strings.CutPrefix(inner, "value_json."); ok && path != "" {
		return JSONField(strings.Split(path, ".")...), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedExpression, expr)
}

// JSONField returns a Transform that parses the payload as a json object and renders the
// scalar found by walking the provided path segments.
func JSONField(path ...string) Transform {
	return func(payload []byte) ([]byte, error) {
		var doc any
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}

		current := doc
		for i, segment := range path {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrNotAnObject, strings.Join(path[:i], "."))
			}

			current, ok = obj[segment]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrNoSuchField, strings.Join(path[:i+1], "."))
			}
		}

		return renderScalar(current)
	}
}

// renderScalar renders an extracted json value the way Home Assistant templates do: strings
// verbatim, booleans in Python spelling, and numbers without a trailing ".0" when integral.
func renderScalar(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case bool:
		if t {
			return []byte("True"), nil
		}
		return []byte("False"), nil
	case float64:
		if t == float64(int64(t)) {
			return strconv.AppendInt(nil, int64(t), 10), nil
		}
		return strconv.AppendFloat(nil, t, 'g', -1, 64), nil
	case nil:
		return []byte("None"), nil
	default:
		// Objects and arrays; render as compact json.
		return json.Marshal(t)
	}
}
