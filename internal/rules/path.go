// Package rules interprets the declarative parts of the catalogs: dotted
// field paths, arithmetic rule values, all/any conditions and effects.
//
// Nothing in this package panics or returns an error on malformed authored
// data. A bad rule does not match, a bad effect does nothing, and a bad
// expression falls back to its literal text.
package rules

import "strings"

// Document is the nested view of a character the rules operate on.
type Document = map[string]any

// AlwaysField is a pseudo-field that always resolves to true.
const AlwaysField = "always"

// Get walks path through nested maps. The second result is false when any
// segment is missing or an intermediate value is not a map.
func Get(root Document, path string) (any, bool) {
	if path == AlwaysField {
		return true, true
	}
	if root == nil || path == "" {
		return nil, false
	}
	var cur any = root
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set assigns value at path, creating or replacing intermediate maps.
func Set(root Document, path string, value any) {
	if root == nil || path == "" {
		return
	}
	keys := strings.Split(path, ".")
	cur := root
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}
