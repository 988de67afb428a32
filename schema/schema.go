// Package schema derives the authoritative key schema from a set of
// extracted key paths and round-trips it through a declaration artifact.
//
// The artifact is a TypeScript-style declaration with one exported
// top-level interface, nested blocks per path segment, and every leaf
// declared as a string. It is emitted with stable ordering and fixed
// indentation so it stays diffable under version control:
//
//	export interface TranslationKeys {
//	    common: {
//	        greeting: string;
//	    };
//	}
//
// Parse recovers the flattened key set from that text by tracking brace
// nesting with an explicit stack of enclosing segment names; it is the
// exact left inverse of Serialize composed with Derive.
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"keysync/pathtree"
)

// RootName is the exported name of the top-level declaration.
const RootName = "TranslationKeys"

// leafMarker is the value stored at schema leaves. The schema records that
// a key exists and is a string, never a runtime value.
const leafMarker = "string"

// RoundTripError reports a parsed-back key set that disagrees with the
// derived set. This is a correctness bug in the codec, surfaced loudly
// rather than silently resolved.
type RoundTripError struct {
	Missing []string // in the derived set, lost by parse
	Extra   []string // produced by parse, never derived
}

func (e *RoundTripError) Error() string {
	return fmt.Sprintf("schema round-trip mismatch: %d keys lost, %d keys invented",
		len(e.Missing), len(e.Extra))
}

// Derive builds the schema tree for a set of key paths. Input order does
// not matter; the tree is built from the sorted set so serialization is
// deterministic.
func Derive(keys []string) (*pathtree.Tree, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	t := pathtree.New()
	for _, key := range sorted {
		if err := t.Set(key, leafMarker); err != nil {
			return nil, fmt.Errorf("deriving schema: %w", err)
		}
	}
	return t, nil
}

// Flatten returns the leaf key paths of a schema tree in document order.
func Flatten(t *pathtree.Tree) []string {
	return t.Leaves()
}

// identRe matches segment names that may be emitted bare. Anything else
// (dashes, leading digits, pure numbers) is quoted.
var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Serialize emits the declaration artifact for a schema tree.
func Serialize(t *pathtree.Tree) []byte {
	var b strings.Builder
	b.WriteString("export interface " + RootName + " {\n")
	serializeNode(&b, t, 1)
	b.WriteString("}\n")
	return []byte(b.String())
}

func serializeNode(b *strings.Builder, t *pathtree.Tree, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, key := range t.Keys() {
		b.WriteString(indent)
		b.WriteString(declName(key))
		if child := t.GetNode(key); child != nil {
			b.WriteString(": {\n")
			serializeNode(b, child, depth+1)
			b.WriteString(indent)
			b.WriteString("};\n")
		} else {
			b.WriteString(": string;\n")
		}
	}
}

func declName(seg string) string {
	if identRe.MatchString(seg) {
		return seg
	}
	return strconv.Quote(seg)
}

// Line patterns for Parse. Names are either bare identifiers or quoted
// strings; quoted names keep numeric or dashed segments intact as ordinary
// segments rather than folding them onto the parent path.
var (
	blockOpenRe = regexp.MustCompile(`^\s*(?:"((?:[^"\\]|\\.)*)"|([A-Za-z_$][A-Za-z0-9_$]*))\s*:\s*\{\s*$`)
	leafRe      = regexp.MustCompile(`^\s*(?:"((?:[^"\\]|\\.)*)"|([A-Za-z_$][A-Za-z0-9_$]*))\s*:\s*string\s*;\s*$`)
	blockEndRe  = regexp.MustCompile(`^\s*\}\s*;?\s*$`)
	rootOpenRe  = regexp.MustCompile(`^\s*export\s+interface\s+[A-Za-z_$][A-Za-z0-9_$]*\s*\{\s*$`)
)

// Parse recovers the flattened key path set from serialized declaration
// text. It is a small line-oriented state machine: block-open lines push a
// segment onto the stack, block-close lines pop it, leaf lines emit the
// stack joined with the leaf name.
func Parse(data []byte) ([]string, error) {
	var (
		stack  []string
		keys   []string
		inRoot bool
	)

	for n, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case !inRoot:
			if rootOpenRe.MatchString(line) {
				inRoot = true
				continue
			}
			return nil, fmt.Errorf("line %d: expected interface declaration, got %q", n+1, strings.TrimSpace(line))
		case blockOpenRe.MatchString(line):
			stack = append(stack, matchedName(blockOpenRe, line))
		case leafRe.MatchString(line):
			segs := append(append([]string(nil), stack...), matchedName(leafRe, line))
			keys = append(keys, pathtree.JoinPath(segs))
		case blockEndRe.MatchString(line):
			if len(stack) == 0 {
				// Closing the top-level interface.
				inRoot = false
				continue
			}
			stack = stack[:len(stack)-1]
		default:
			return nil, fmt.Errorf("line %d: unrecognized declaration %q", n+1, strings.TrimSpace(line))
		}
	}
	if inRoot || len(stack) > 0 {
		return nil, fmt.Errorf("unbalanced braces in schema artifact")
	}
	return keys, nil
}

// matchedName returns the name captured by a line pattern, unquoting the
// quoted form.
func matchedName(re *regexp.Regexp, line string) string {
	m := re.FindStringSubmatch(line)
	if m[2] != "" {
		return m[2]
	}
	if s, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
		return s
	}
	return m[1]
}

// Verify checks the round-trip law parse(serialize(derive(S))) == S and
// returns a RoundTripError on any disagreement.
func Verify(keys []string) error {
	t, err := Derive(keys)
	if err != nil {
		return err
	}
	parsed, err := Parse(Serialize(t))
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	got := make(map[string]bool, len(parsed))
	for _, k := range parsed {
		got[k] = true
	}

	var rte RoundTripError
	for k := range want {
		if !got[k] {
			rte.Missing = append(rte.Missing, k)
		}
	}
	for k := range got {
		if !want[k] {
			rte.Extra = append(rte.Extra, k)
		}
	}
	if len(rte.Missing) > 0 || len(rte.Extra) > 0 {
		sort.Strings(rte.Missing)
		sort.Strings(rte.Extra)
		return &rte
	}
	return nil
}
