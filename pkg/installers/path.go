package installers

import (
	"strings"
)

// FieldPath is a parsed key-traversal expression used to locate nested
// references inside a decoded JSON row. Expressions separate tokens with
// "->" or "."; both spellings occur in recipes. A lookup distinguishes a
// missing path from a present-but-null value.
type FieldPath struct {
	tokens []string
}

// ParseFieldPath parses a traversal expression into its token sequence.
func ParseFieldPath(expr string) FieldPath {
	expr = strings.ReplaceAll(expr, "->", ".")
	var tokens []string
	for _, t := range strings.Split(expr, ".") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return FieldPath{tokens: tokens}
}

// String renders the path in dot notation.
func (p FieldPath) String() string {
	return strings.Join(p.tokens, ".")
}

// Get evaluates the path against a decoded JSON value. The second return
// distinguishes "path absent" from "value is null".
func (p FieldPath) Get(root any) (any, bool) {
	if len(p.tokens) == 0 {
		return nil, false
	}

	cur := root
	for _, tok := range p.tokens {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[tok]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set replaces the value at the path. It reports false when any intermediate
// key is absent or not an object; Set never creates missing containers.
func (p FieldPath) Set(root any, value any) bool {
	if len(p.tokens) == 0 {
		return false
	}

	cur := root
	for _, tok := range p.tokens[:len(p.tokens)-1] {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = m[tok]
		if !ok {
			return false
		}
	}

	m, ok := cur.(map[string]any)
	if !ok {
		return false
	}
	last := p.tokens[len(p.tokens)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	m[last] = value
	return true
}
