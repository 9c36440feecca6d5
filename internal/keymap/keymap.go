// Package keymap parses the keybinding string grammar used by host bindings,
// plugin manifests, and user overrides.
//
// Grammar: single characters ("j", "?", "<"), special keys in angle brackets
// (<Space>, <Tab>, <Enter>, <Esc>, <Up>, <Down>, <Left>, <Right>), modifier
// prefixes inside brackets (<C-…>, <A-…>, <S-…>, combinable), and sequences
// of at most two elements ("dd", "g g", <C-d><C-d>). Spaces between elements
// are ignored; the space key itself is written <Space>.
package keymap

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxSequenceLen is the element limit of a binding sequence.
const MaxSequenceLen = 2

// Key is a single element of a binding: a base key plus modifiers. Base is
// either a single character or one of the special key names.
type Key struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Base  string
}

// Sequence is an ordered list of one or two keys.
type Sequence []Key

var specialKeys = map[string]string{
	"space": "Space",
	"tab":   "Tab",
	"enter": "Enter",
	"esc":   "Esc",
	"up":    "Up",
	"down":  "Down",
	"left":  "Left",
	"right": "Right",
}

// IsSpecial reports whether base is a special key name (canonical form).
func IsSpecial(base string) bool {
	_, ok := specialKeys[strings.ToLower(base)]
	return ok
}

// Parse parses a binding string into its sequence. The empty string is an
// error; callers representing "no binding" must not call Parse.
func Parse(s string) (Sequence, error) {
	if s == "" {
		return nil, fmt.Errorf("empty keybinding")
	}
	var seq Sequence
	rest := s
	for rest != "" {
		// Spaces separate elements.
		if rest[0] == ' ' {
			rest = rest[1:]
			continue
		}
		key, n, err := parseElement(rest)
		if err != nil {
			return nil, err
		}
		seq = append(seq, key)
		rest = rest[n:]
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("empty keybinding")
	}
	if len(seq) > MaxSequenceLen {
		return nil, fmt.Errorf("keybinding %q has %d elements, maximum is %d", s, len(seq), MaxSequenceLen)
	}
	return seq, nil
}

// parseElement consumes one element from the front of s and returns it with
// the number of bytes consumed.
func parseElement(s string) (Key, int, error) {
	if s[0] == '<' {
		if end := strings.IndexByte(s, '>'); end > 0 {
			key, err := parseBracket(s[1:end])
			if err != nil {
				return Key{}, 0, err
			}
			return key, end + 1, nil
		}
		// A lone "<" with no closing bracket is the literal character.
	}
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && n <= 1 {
		return Key{}, 0, fmt.Errorf("invalid character in keybinding %q", s)
	}
	return Key{Base: string(r)}, n, nil
}

// parseBracket parses the inside of <…>: zero or more modifier prefixes
// followed by a base key.
func parseBracket(body string) (Key, error) {
	if body == "" {
		return Key{}, fmt.Errorf("empty <> in keybinding")
	}
	var key Key
	rest := body
	for len(rest) >= 2 && rest[1] == '-' {
		switch rest[0] {
		case 'C', 'c':
			if key.Ctrl {
				return Key{}, fmt.Errorf("duplicate modifier in <%s>", body)
			}
			key.Ctrl = true
		case 'A', 'a':
			if key.Alt {
				return Key{}, fmt.Errorf("duplicate modifier in <%s>", body)
			}
			key.Alt = true
		case 'S', 's':
			if key.Shift {
				return Key{}, fmt.Errorf("duplicate modifier in <%s>", body)
			}
			key.Shift = true
		default:
			return Key{}, fmt.Errorf("unknown modifier %q in <%s>", string(rest[0]), body)
		}
		rest = rest[2:]
	}
	if rest == "" {
		return Key{}, fmt.Errorf("missing key after modifiers in <%s>", body)
	}
	if name, ok := specialKeys[strings.ToLower(rest)]; ok {
		key.Base = name
		return key, nil
	}
	if utf8.RuneCountInString(rest) != 1 {
		return Key{}, fmt.Errorf("unknown key %q in <%s>", rest, body)
	}
	key.Base = rest
	return key, nil
}

// String renders the canonical form of a key. Unmodified single characters
// are bare; everything else is bracketed with modifiers in C-A-S order. A
// shift-modified letter collapses to its bare uppercase form.
func (k Key) String() string {
	if !k.Ctrl && !k.Alt && !IsSpecial(k.Base) {
		if k.Shift {
			upper := strings.ToUpper(k.Base)
			if upper != k.Base {
				return upper
			}
		} else {
			return k.Base
		}
	}
	var b strings.Builder
	b.WriteByte('<')
	if k.Ctrl {
		b.WriteString("C-")
	}
	if k.Alt {
		b.WriteString("A-")
	}
	if k.Shift {
		b.WriteString("S-")
	}
	b.WriteString(k.Base)
	b.WriteByte('>')
	return b.String()
}

// String renders the canonical form of the sequence: elements concatenated
// without separators.
func (s Sequence) String() string {
	var b strings.Builder
	for _, k := range s {
		b.WriteString(k.String())
	}
	return b.String()
}

// Canonicalize parses s and returns its canonical rendering. Two bindings
// are the same key iff their canonical forms are equal.
func Canonicalize(s string) (string, error) {
	seq, err := Parse(s)
	if err != nil {
		return "", err
	}
	return seq.String(), nil
}

// FromTerminal translates a decoded terminal key name (the bubbletea
// convention: "j", "ctrl+j", "alt+up", "shift+tab", "enter", " ") into the
// canonical element form, or ok=false for keys outside the grammar.
func FromTerminal(name string) (string, bool) {
	if name == " " {
		return Key{Base: "Space"}.String(), true
	}
	var key Key
	parts := strings.Split(name, "+")
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "ctrl":
			key.Ctrl = true
		case "alt":
			key.Alt = true
		case "shift":
			key.Shift = true
		default:
			return "", false
		}
	}
	base := parts[len(parts)-1]
	if canonical, ok := specialKeys[base]; ok {
		key.Base = canonical
	} else if utf8.RuneCountInString(base) == 1 {
		key.Base = base
	} else {
		return "", false
	}
	return key.String(), true
}
