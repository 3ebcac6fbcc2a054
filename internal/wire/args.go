// Package wire implements the line-oriented protocol spoken on the Dropbox
// daemon's command and hook sockets.
//
// A message is a name line, zero or more argument lines, and a literal "done"
// line. An argument line is a key followed by one or more tab-separated values.
// Every token is escaped with Sanitize before it is written and unescaped with
// Desanitize after it is read.
package wire

import "slices"

// Args is an ordered mapping from argument name to a non-empty list of values.
// Keys are unique; setting an existing key replaces its values but keeps its
// position. The zero value is not usable; call NewArgs. A nil *Args behaves as
// an empty table for all read methods.
type Args struct {
	keys   []string
	values map[string][]string
}

// NewArgs creates an empty argument table.
func NewArgs() *Args {
	return &Args{values: make(map[string][]string)}
}

// ArgsFromMap builds a table from m with keys in sorted order.
// Entries with no values are skipped.
func ArgsFromMap(m map[string][]string) *Args {
	a := NewArgs()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		a.Set(k, m[k]...)
	}
	return a
}

// Set replaces the values for key. Calling Set with no values removes the key,
// since a key must always carry at least one value.
func (a *Args) Set(key string, values ...string) *Args {
	if len(values) == 0 {
		a.Delete(key)
		return a
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = slices.Clone(values)
	return a
}

// Add appends values to key, creating it if needed.
func (a *Args) Add(key string, values ...string) *Args {
	if len(values) == 0 {
		return a
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = append(a.values[key], values...)
	return a
}

// Delete removes key from the table.
func (a *Args) Delete(key string) {
	if a == nil {
		return
	}
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	a.keys = slices.DeleteFunc(a.keys, func(k string) bool { return k == key })
}

// Get returns a copy of the values for key, or nil.
func (a *Args) Get(key string) []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.values[key])
}

// First returns the first value for key, or "" if the key is absent.
func (a *Args) First(key string) string {
	if a == nil {
		return ""
	}
	if vs := a.values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether key is present.
func (a *Args) Has(key string) bool {
	if a == nil {
		return false
	}
	_, ok := a.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (a *Args) Keys() []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.keys)
}

// Len returns the number of keys.
func (a *Args) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Map returns a copy of the table as a plain map.
func (a *Args) Map() map[string][]string {
	m := make(map[string][]string, a.Len())
	if a == nil {
		return m
	}
	for _, k := range a.keys {
		m[k] = slices.Clone(a.values[k])
	}
	return m
}

// Clone returns a deep copy.
func (a *Args) Clone() *Args {
	c := NewArgs()
	if a == nil {
		return c
	}
	for _, k := range a.keys {
		c.Set(k, a.values[k]...)
	}
	return c
}

// Equal reports whether a and b hold the same keys with the same value lists.
// Key order is ignored.
func (a *Args) Equal(b *Args) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	for k, vs := range a.values {
		if !slices.Equal(vs, b.values[k]) {
			return false
		}
	}
	return true
}
