// Package pathtree implements the nested-document primitive shared by the
// schema and locale-store layers: an insertion-ordered mapping from segment
// names to either string leaves or child trees, addressed by dot-joined
// key paths (e.g. "common.greeting").
//
// Numeric-looking segments ("0", "42") are ordinary segment names — there
// is no array concept in this data model.
package pathtree

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins key path segments.
const Separator = "."

// Tree is a nested translation document. Keys preserve insertion order so
// that serialized output is stable under version control.
type Tree struct {
	keys []string
	vals map[string]any // string leaf or *Tree child
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{vals: make(map[string]any)}
}

// SplitPath splits a dot-joined key path into its segments.
// Returns an error if the path is empty or contains an empty segment.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty key path")
	}
	segs := strings.Split(path, Separator)
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("key path %q has an empty segment", path)
		}
	}
	return segs, nil
}

// JoinPath joins segments into a dot-joined key path.
func JoinPath(segs []string) string {
	return strings.Join(segs, Separator)
}

// Set writes a leaf value at path, creating intermediate subtrees as
// needed. An intermediate that currently holds a string leaf is replaced
// with a fresh subtree (last writer wins on type conflict).
func (t *Tree) Set(path, value string) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	node := t
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node.vals[seg].(*Tree)
		if !ok {
			child = New()
			node.put(seg, child)
		}
		node = child
	}
	node.put(segs[len(segs)-1], value)
	return nil
}

// put stores a value under key, appending to the key order only when the
// key is new.
func (t *Tree) put(key string, v any) {
	if _, exists := t.vals[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.vals[key] = v
}

// Get returns the string leaf at path. The second return is false when any
// segment is missing or the path does not end at a string leaf.
func (t *Tree) Get(path string) (string, bool) {
	v, ok := t.lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetNode returns the subtree at path, or nil if the path is absent or
// ends at a leaf.
func (t *Tree) GetNode(path string) *Tree {
	v, ok := t.lookup(path)
	if !ok {
		return nil
	}
	child, _ := v.(*Tree)
	return child
}

func (t *Tree) lookup(path string) (any, bool) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	node := t
	for i, seg := range segs {
		v, ok := node.vals[seg]
		if !ok {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		node, ok = v.(*Tree)
		if !ok {
			return nil, false
		}
	}
	return nil, false
}

// Delete removes the entry at path. Subtrees left empty by the removal are
// collapsed transitively upward. Returns true if something was removed.
func (t *Tree) Delete(path string) bool {
	segs, err := SplitPath(path)
	if err != nil {
		return false
	}
	return t.delete(segs)
}

func (t *Tree) delete(segs []string) bool {
	seg := segs[0]
	v, ok := t.vals[seg]
	if !ok {
		return false
	}
	if len(segs) == 1 {
		t.remove(seg)
		return true
	}
	child, ok := v.(*Tree)
	if !ok {
		return false
	}
	removed := child.delete(segs[1:])
	if removed && child.Len() == 0 {
		t.remove(seg)
	}
	return removed
}

func (t *Tree) remove(key string) {
	delete(t.vals, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Prune removes every string leaf whose path is not in valid, collapsing
// subtrees that become empty. Returns the number of removed leaves.
func (t *Tree) Prune(valid map[string]bool) int {
	return t.prune(nil, valid)
}

func (t *Tree) prune(prefix []string, valid map[string]bool) int {
	removed := 0
	// Iterate over a copy: remove() edits t.keys in place.
	keys := append([]string(nil), t.keys...)
	for _, key := range keys {
		path := append(prefix, key)
		switch v := t.vals[key].(type) {
		case *Tree:
			removed += v.prune(path, valid)
			if v.Len() == 0 {
				t.remove(key)
			}
		case string:
			if !valid[JoinPath(path)] {
				t.remove(key)
				removed++
			}
		}
	}
	return removed
}

// Leaves returns the dot-joined paths of all string leaves in document
// order.
func (t *Tree) Leaves() []string {
	var out []string
	t.walk(nil, func(path []string, _ string) {
		out = append(out, JoinPath(path))
	})
	return out
}

// Walk visits every string leaf in document order.
func (t *Tree) Walk(fn func(path string, value string)) {
	t.walk(nil, func(path []string, value string) {
		fn(JoinPath(path), value)
	})
}

func (t *Tree) walk(prefix []string, fn func(path []string, value string)) {
	for _, key := range t.keys {
		path := append(prefix, key)
		switch v := t.vals[key].(type) {
		case *Tree:
			v.walk(path, fn)
		case string:
			fn(path, v)
		}
	}
}

// Len returns the number of direct entries in this node.
func (t *Tree) Len() int {
	return len(t.keys)
}

// Keys returns the direct child names in document order.
func (t *Tree) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Parse decodes a JSON object into a tree, preserving the key order of the
// input. Values must be strings or nested objects.
func Parse(data []byte) (*Tree, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected top-level object, got %v", tok)
	}

	t, err := parseObject(dec)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// parseObject consumes object members up to the matching closing brace.
// The opening brace has already been read.
func parseObject(dec *json.Decoder) (*Tree, error) {
	t := New()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", kt)
		}

		vt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch v := vt.(type) {
		case string:
			t.put(key, v)
		case json.Delim:
			if v != '{' {
				return nil, fmt.Errorf("key %q: unsupported value %v", key, v)
			}
			child, err := parseObject(dec)
			if err != nil {
				return nil, err
			}
			t.put(key, child)
		default:
			return nil, fmt.Errorf("key %q: expected string or object, got %v", key, vt)
		}
	}
	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return t, nil
}

// Marshal encodes the tree as pretty-printed JSON with 4-space indentation
// and insertion key order, ending with a newline.
func (t *Tree) Marshal() []byte {
	var b strings.Builder
	t.marshal(&b, 0)
	b.WriteByte('\n')
	return []byte(b.String())
}

func (t *Tree) marshal(b *strings.Builder, depth int) {
	if t.Len() == 0 {
		b.WriteString("{}")
		return
	}
	indent := strings.Repeat("    ", depth+1)
	b.WriteString("{\n")
	for i, key := range t.keys {
		b.WriteString(indent)
		b.WriteString(strconv.Quote(key))
		b.WriteString(": ")
		switch v := t.vals[key].(type) {
		case *Tree:
			v.marshal(b, depth+1)
		case string:
			b.WriteString(strconv.Quote(v))
		}
		if i < t.Len()-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("    ", depth))
	b.WriteByte('}')
}
