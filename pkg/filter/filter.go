/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package filter restricts which files of a depot manifest are downloaded.

A filter list is read from a newline separated file. Each entry is compiled,
case-insensitively, as a regular expression; an entry that does not compile is
kept as a literal file name instead. Entries prefixed with "glob:" are matched
as shell globs with '/' as the separator.
*/
package filter

import (
	"os"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// GlobPrefix marks an entry that is matched as a glob.
const GlobPrefix = "glob:"

// Kind is the variant of a filter entry.
type Kind int

const (
	// Literal entries match a file name exactly.
	Literal Kind = iota
	// Pattern entries match when the regular expression finds a match anywhere in the name.
	Pattern
	// Glob entries match the whole name against a glob.
	Glob
)

func (k Kind) String() string {
	switch k {
	case Pattern:
		return "regex"
	case Glob:
		return "glob"
	default:
		return "literal"
	}
}

// Entry is a single resolved filter entry.
type Entry struct {
	Kind  Kind
	Value string

	re *regexp.Regexp
	g  glob.Glob
}

// Match reports whether name is selected by this entry.
func (e Entry) Match(name string) bool {
	name = Normalize(name)
	switch e.Kind {
	case Pattern:
		return e.re.MatchString(name)
	case Glob:
		return e.g.Match(name)
	default:
		return Normalize(e.Value) == name
	}
}

// NewLiteral returns an entry matching exactly name.
func NewLiteral(name string) Entry {
	return Entry{Kind: Literal, Value: name}
}

// ParseEntry resolves the variant of a single entry. Pattern compilation is
// attempted first; on failure the entry is a literal.
func ParseEntry(s string) Entry {
	if strings.HasPrefix(s, GlobPrefix) {
		v := strings.TrimPrefix(s, GlobPrefix)
		g, err := glob.Compile(Normalize(v), '/')
		if err != nil {
			return NewLiteral(v)
		}
		return Entry{Kind: Glob, Value: v, g: g}
	}
	re, err := regexp.Compile("(?i)" + s)
	if err != nil {
		return NewLiteral(s)
	}
	return Entry{Kind: Pattern, Value: s, re: re}
}

// List is an ordered set of entries. A nil List selects every file.
type List []Entry

// Parse resolves every non-empty line of data.
func Parse(data string) List {
	lines := strings.FieldsFunc(data, func(r rune) bool { return r == '\n' || r == '\r' })
	l := make(List, 0, len(lines))
	for _, line := range lines {
		l = append(l, ParseEntry(line))
	}
	return l
}

// Load reads and parses a file list from disk.
func Load(path string) (List, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load filelist %s", path)
	}
	return Parse(string(b)), nil
}

// Literals returns a list that selects exactly the named files.
func Literals(names ...string) List {
	l := make(List, 0, len(names))
	for _, n := range names {
		l = append(l, NewLiteral(n))
	}
	return l
}

// Active reports whether the list restricts anything.
func (l List) Active() bool {
	return l != nil
}

// Match reports whether name is selected. An inactive list selects everything.
func (l List) Match(name string) bool {
	if !l.Active() {
		return true
	}
	for _, e := range l {
		if e.Match(name) {
			return true
		}
	}
	return false
}

// Normalize converts Windows separators to forward slashes.
func Normalize(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
