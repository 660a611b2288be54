package provider

import (
	"fmt"
	"strings"
	"unicode"
)

// Pair is one `name: expression` entry of a binding string.
type Pair struct {
	Name string
	Expr string
}

// ParseBindings splits a binding string into its entries. Commas and
// colons only separate entries at the top level: inside quotes or any
// kind of bracket they belong to the expression. An entry without a colon
// has an empty expression. Names may be quoted.
func ParseBindings(src string) ([]Pair, error) {
	var (
		pairs []Pair
		start int
		depth []rune
		quote rune
		esc   bool
	)
	for i, r := range src {
		switch {
		case quote != 0:
			switch {
			case esc:
				esc = false
			case r == '\\' && quote != '`':
				esc = true
			case r == quote:
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth = append(depth, closer(r))
		case r == ')' || r == ']' || r == '}':
			if len(depth) == 0 || depth[len(depth)-1] != r {
				return nil, fmt.Errorf("unbalanced %q at offset %d in %q", r, i, src)
			}
			depth = depth[:len(depth)-1]
		case r == ',' && len(depth) == 0:
			p, err := parsePair(src[start:i])
			if err != nil {
				return nil, err
			}
			if p != nil {
				pairs = append(pairs, *p)
			}
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string in %q", src)
	}
	if len(depth) > 0 {
		return nil, fmt.Errorf("missing %q in %q", depth[len(depth)-1], src)
	}
	p, err := parsePair(src[start:])
	if err != nil {
		return nil, err
	}
	if p != nil {
		pairs = append(pairs, *p)
	}
	return pairs, nil
}

func closer(r rune) rune {
	switch r {
	case '(':
		return ')'
	case '[':
		return ']'
	}
	return '}'
}

// parsePair splits one entry at its first top-level colon.
func parsePair(entry string) (*Pair, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, nil
	}
	name, expr := entry, ""
	if i := topLevelColon(entry); i >= 0 {
		name = strings.TrimSpace(entry[:i])
		expr = strings.TrimSpace(entry[i+1:])
	}
	if len(name) >= 2 && (name[0] == '"' || name[0] == '\'') && name[len(name)-1] == name[0] {
		name = name[1 : len(name)-1]
	}
	if name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return nil, fmt.Errorf("invalid binding name in %q", entry)
	}
	return &Pair{Name: name, Expr: expr}, nil
}

func topLevelColon(s string) int {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ':':
			return i
		case r == '(' || r == '[' || r == '{':
			return -1
		}
	}
	return -1
}

// contextPrefix replaces the leading $ of context names, which risor
// identifiers cannot contain.
const contextPrefix = "ctx_"

// rewriteContextNames turns $name references outside string literals into
// identifiers risor accepts.
func rewriteContextNames(expr string) string {
	if !strings.Contains(expr, "$") {
		return expr
	}
	var (
		b     strings.Builder
		quote rune
		esc   bool
	)
	for _, r := range expr {
		switch {
		case quote != 0:
			switch {
			case esc:
				esc = false
			case r == '\\' && quote != '`':
				esc = true
			case r == quote:
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == '$':
			b.WriteString(contextPrefix)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// globalName maps a context property name to the identifier it is
// exposed as.
func globalName(name string) string {
	if strings.HasPrefix(name, "$") {
		return contextPrefix + name[1:]
	}
	return name
}

// isIdentifier reports whether s can be used as a risor global.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
