package codebridge

import (
	"sort"
	"strings"
)

// Defines is the include/definition table: code fragments (functions,
// variables, structures) injected ahead of every compilation, so edits
// are visible to the next evaluation without reopening the session.
//
// Keys are derived from the definition text itself: the first line,
// whitespace-normalized, cut at the first '{' or '='. This is an
// accepted heuristic, not a guaranteed-unique identifier; two different
// definitions that normalize to the same key collide, and the later
// define wins.
type Defines struct {
	byKey map[string]string
}

// NewDefines returns an empty definition table.
func NewDefines() *Defines {
	return &Defines{byKey: make(map[string]string)}
}

// DefineLine stores a one-line definition, terminated with a semicolon.
// The key extends to the first '{' or '=' in the normalized line.
func (d *Defines) DefineLine(line string) string {
	key := lineKey(line)
	d.byKey[key] = strings.TrimSpace(line) + ";"
	return key
}

// DefineBlock stores a multiline function, struct, or class definition.
// The key is the whitespace-normalized header line.
func (d *Defines) DefineBlock(header, body string) string {
	key := normalize(header)
	d.byKey[key] = header + " {\n" + body + ";\n};\n"
	return key
}

// Get returns the fragment stored under key.
func (d *Defines) Get(key string) (string, bool) {
	v, ok := d.byKey[key]
	return v, ok
}

// Keys returns all definition keys, sorted.
func (d *Defines) Keys() []string {
	keys := make([]string, 0, len(d.byKey))
	for k := range d.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of stored definitions.
func (d *Defines) Len() int {
	return len(d.byKey)
}

// Clear removes every definition.
func (d *Defines) Clear() {
	d.byKey = make(map[string]string)
}

// Render concatenates all fragments in key order, ready to paste ahead
// of compiled source.
func (d *Defines) Render() string {
	var b strings.Builder
	for _, k := range d.Keys() {
		b.WriteString(d.byKey[k])
		b.WriteByte('\n')
	}
	return b.String()
}

func lineKey(line string) string {
	key := normalize(line)
	if i := strings.IndexByte(key, '{'); i >= 0 {
		key = key[:i]
	}
	if i := strings.IndexByte(key, '='); i >= 0 {
		key = key[:i]
	}
	return strings.TrimSpace(key)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
