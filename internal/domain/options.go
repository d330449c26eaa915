package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Option is one name/value pair of a variant, e.g. Color=Black.
type Option struct {
	Name  string
	Value string
}

// Options is an ordered option map. The set of option names is open, so it is
// kept as pairs instead of a struct and serialized as a JSON object in order.
type Options []Option

var errOptionsNotObject = errors.New("options: expected JSON object")

func OptionsOf(pairs ...string) Options {
	o := Options{}
	for i := 0; i+1 < len(pairs); i += 2 {
		o = o.With(pairs[i], pairs[i+1])
	}
	return o
}

func (o Options) Get(name string) (string, bool) {
	n := canonicalName(name)
	for _, op := range o {
		if strings.EqualFold(canonicalName(op.Name), n) {
			return op.Value, true
		}
	}
	return "", false
}

// With returns a copy with name set to value, keeping the original position
// when the name already exists.
func (o Options) With(name, value string) Options {
	out := make(Options, 0, len(o)+1)
	replaced := false
	for _, op := range o {
		if !replaced && strings.EqualFold(canonicalName(op.Name), canonicalName(name)) {
			out = append(out, Option{Name: op.Name, Value: value})
			replaced = true
			continue
		}
		out = append(out, op)
	}
	if !replaced {
		out = append(out, Option{Name: name, Value: value})
	}
	return out
}

// Canonical trims names and values, collapses inner whitespace in names, drops
// pairs without a name and keeps the first occurrence of a repeated name.
func (o Options) Canonical() Options {
	out := make(Options, 0, len(o))
	seen := map[string]bool{}
	for _, op := range o {
		n := canonicalName(op.Name)
		if n == "" {
			continue
		}
		k := strings.ToLower(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Option{Name: n, Value: strings.TrimSpace(op.Value)})
	}
	return out
}

// Key is an order-independent lookup key for the canonical options.
func (o Options) Key() string {
	c := o.Canonical()
	parts := make([]string, 0, len(c))
	for _, op := range c {
		parts = append(parts, strings.ToLower(op.Name)+"="+strings.ToLower(op.Value))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Matches reports whether every pair of sel is present in o.
func (o Options) Matches(sel Options) bool {
	c := sel.Canonical()
	if len(c) == 0 {
		return false
	}
	for _, op := range c {
		v, ok := o.Get(op.Name)
		if !ok || !strings.EqualFold(strings.TrimSpace(v), op.Value) {
			return false
		}
	}
	return true
}

func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	copy(out, o)
	return out
}

func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, op := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(op.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(op.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Options) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errOptionsNotObject
	}
	out := Options{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := kt.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, Option{Name: name, Value: cast.ToString(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

func canonicalName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
