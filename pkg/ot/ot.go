// Package ot models the edit operations delivered to a document: an ordered
// list of retain, insert and delete components walked over the document
// from its start.
//
// The JSON form is the flat array used by collaborative editors:
//
//	[5, "hello", -3]
//
// retains 5 characters, inserts "hello" and deletes the next 3. Lengths
// count runes. Text after the last component is retained.
package ot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/grovetools/editsync/errors"
)

// MaxLength bounds the count of a single retain or delete component.
const MaxLength = math.MaxInt32

// Component is one edit instruction. Exactly one of the fields is set.
type Component struct {
	Retain int
	Insert string
	Delete int
}

// Retain skips n characters.
func Retain(n int) Component { return Component{Retain: n} }

// Insert inserts s at the current position.
func Insert(s string) Component { return Component{Insert: s} }

// Delete removes the next n characters.
func Delete(n int) Component { return Component{Delete: n} }

// IsRetain reports whether c retains characters.
func (c Component) IsRetain() bool { return c.Retain > 0 }

// IsInsert reports whether c inserts text.
func (c Component) IsInsert() bool { return c.Insert != "" }

// IsDelete reports whether c deletes characters.
func (c Component) IsDelete() bool { return c.Delete > 0 }

// MarshalJSON encodes retain as n, delete as -n and insert as a string.
func (c Component) MarshalJSON() ([]byte, error) {
	switch {
	case c.IsInsert():
		return json.Marshal(c.Insert)
	case c.IsDelete():
		return json.Marshal(-c.Delete)
	default:
		return json.Marshal(c.Retain)
	}
}

func (c Component) String() string {
	switch {
	case c.IsInsert():
		return fmt.Sprintf("insert(%q)", c.Insert)
	case c.IsDelete():
		return fmt.Sprintf("delete(%d)", c.Delete)
	default:
		return fmt.Sprintf("retain(%d)", c.Retain)
	}
}

// Operation is an ordered list of components for one document.
type Operation []Component

// UnmarshalJSON decodes the flat array form. Nested arrays are flattened
// and zero retains or empty inserts are dropped.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidOperation, "operation must be a JSON array")
	}

	out := make(Operation, 0, len(raw))
	if err := decodeComponents(raw, &out); err != nil {
		return err
	}
	*o = out
	return nil
}

func decodeComponents(raw []json.RawMessage, out *Operation) error {
	for _, item := range raw {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 {
			continue
		}

		switch trimmed[0] {
		case '[':
			var nested []json.RawMessage
			if err := json.Unmarshal(trimmed, &nested); err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidOperation, "malformed nested component list")
			}
			if err := decodeComponents(nested, out); err != nil {
				return err
			}
		case '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidOperation, "malformed insert component")
			}
			if s != "" {
				*out = append(*out, Insert(s))
			}
		default:
			var n json.Number
			if err := json.Unmarshal(trimmed, &n); err != nil {
				return errors.New(errors.ErrCodeInvalidOperation,
					fmt.Sprintf("component must be a string or an integer, got %s", trimmed))
			}
			v, err := n.Int64()
			if err != nil {
				return errors.New(errors.ErrCodeInvalidOperation,
					fmt.Sprintf("component %s is not an integer", n))
			}
			if v > MaxLength || v < -MaxLength {
				return errors.New(errors.ErrCodeInvalidOperation,
					fmt.Sprintf("component %s is out of range", n))
			}
			switch {
			case v > 0:
				*out = append(*out, Retain(int(v)))
			case v < 0:
				*out = append(*out, Delete(int(-v)))
			}
		}
	}
	return nil
}

// BaseLength is the minimum document length the operation walks over. It
// saturates at math.MaxInt.
func (o Operation) BaseLength() int {
	n := 0
	for _, c := range o {
		step := max(c.Retain, 0) + max(c.Delete, 0)
		if step < 0 || n > math.MaxInt-step {
			return math.MaxInt
		}
		n += step
	}
	return n
}

// IsNoop reports whether applying o leaves every document unchanged.
func (o Operation) IsNoop() bool {
	for _, c := range o {
		if c.IsInsert() || c.IsDelete() {
			return false
		}
	}
	return true
}

func (o Operation) String() string {
	parts := make([]string, len(o))
	for i, c := range o {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Apply returns text with the operation applied.
func (o Operation) Apply(text string) (string, error) {
	for _, c := range o {
		if c.Retain < 0 || c.Delete < 0 {
			return "", errors.New(errors.ErrCodeInvalidOperation,
				fmt.Sprintf("component %s has a negative length", c))
		}
	}
	if base, size := o.BaseLength(), utf8.RuneCountInString(text); base > size {
		return "", errors.New(errors.ErrCodeInvalidOperation,
			fmt.Sprintf("operation spans %d characters but the document has %d", base, size)).
			WithDetail("base_length", base)
	}

	var b strings.Builder
	b.Grow(len(text))
	rest := text
	for _, c := range o {
		switch {
		case c.IsRetain():
			head, tail := splitRunes(rest, c.Retain)
			b.WriteString(head)
			rest = tail
		case c.IsDelete():
			_, rest = splitRunes(rest, c.Delete)
		case c.IsInsert():
			b.WriteString(c.Insert)
		}
	}
	b.WriteString(rest)
	return b.String(), nil
}

// splitRunes splits s after n runes.
func splitRunes(s string, n int) (string, string) {
	i := 0
	for n > 0 && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n--
	}
	return s[:i], s[i:]
}

// Diff returns an operation turning before into after. It finds the common
// prefix and suffix and replaces what lies between them; the trailing retain
// is left implicit.
func Diff(before, after string) Operation {
	a, b := []rune(before), []rune(after)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	var op Operation
	if prefix > 0 {
		op = append(op, Retain(prefix))
	}
	if ins := string(b[prefix : len(b)-suffix]); ins != "" {
		op = append(op, Insert(ins))
	}
	if del := len(a) - prefix - suffix; del > 0 {
		op = append(op, Delete(del))
	}
	return op
}
