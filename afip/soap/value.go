package soap

import (
	"strings"

	"github.com/beevik/etree"
)

// Value is a decoded SOAP payload. An element with children becomes a *Record, a leaf
// becomes Text, and a child name repeated under the same parent becomes a List.
// The same field can therefore be a *Record in one response and a List in the next;
// consumers must accept both.
type Value interface {
	isValue()
}

type Text string

type List []Value

// Record keeps fields in document order.
type Record struct {
	keys   []string
	fields map[string]Value
}

func (Text) isValue()    {}
func (List) isValue()    {}
func (*Record) isValue() {}

func NewRecord() *Record {
	return &Record{fields: map[string]Value{}}
}

// Set adds or replaces a field and returns r for chaining.
func (r *Record) Set(key string, v Value) *Record {
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = v
	return r
}

// Get returns nil for a missing field or a nil record.
func (r *Record) Get(key string) Value {
	if r == nil {
		return nil
	}
	return r.fields[key]
}

func (r *Record) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.fields[key]
	return ok
}

func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Decode converts el into a Value. Attributes and namespaces are dropped.
func Decode(el *etree.Element) Value {
	children := el.ChildElements()
	if len(children) == 0 {
		return Text(strings.TrimSpace(el.Text()))
	}

	rec := NewRecord()
	for _, c := range children {
		v := Decode(c)
		switch cur := rec.Get(c.Tag).(type) {
		case nil:
			rec.Set(c.Tag, v)
		case List:
			rec.Set(c.Tag, append(cur, v))
		default:
			rec.Set(c.Tag, List{cur, v})
		}
	}
	return rec
}

// AsList views v as a list: nil is empty, a List is itself, anything else a single entry.
func AsList(v Value) List {
	switch t := v.(type) {
	case nil:
		return List{}
	case List:
		return t
	default:
		return List{t}
	}
}

// TextOf returns the text of a leaf, or "" for anything else.
func TextOf(v Value) string {
	if t, ok := v.(Text); ok {
		return string(t)
	}
	return ""
}

// AsRecord returns v as a record, taking the first entry of a list.
func AsRecord(v Value) (*Record, bool) {
	switch t := v.(type) {
	case *Record:
		return t, t != nil
	case List:
		if len(t) == 0 {
			return nil, false
		}
		return AsRecord(t[0])
	default:
		return nil, false
	}
}

// Child returns the first direct child element with the given local name.
func Child(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == name {
			return c
		}
	}
	return nil
}
