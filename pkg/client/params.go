package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Params is an insertion-ordered set of query parameters. Values are kept as
// strings; Set stringifies booleans and numbers so filters such as is_active
// never hit a type mismatch on the wire. Empty values are omitted.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set stores key=v. A nil or empty-string value deletes the key.
func (p *Params) Set(key string, v any) *Params {
	s, ok := stringify(v)
	if !ok || s == "" {
		p.Del(key)
		return p
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = s
	return p
}

// Del removes key.
func (p *Params) Del(key string) {
	if _, exists := p.values[key]; !exists {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Get returns the value for key.
func (p *Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Encode renders the parameters in insertion order, e.g.
// "page=2&limit=10&sort_by=name%7Casc".
func (p *Params) Encode() string {
	if p == nil || len(p.keys) == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[k]))
	}
	return b.String()
}

// Values converts to url.Values (order is lost).
func (p *Params) Values() url.Values {
	out := url.Values{}
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Set(k, p.values[k])
	}
	return out
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case bool:
		return strconv.FormatBool(t), true
	case *bool:
		if t == nil {
			return "", false
		}
		return strconv.FormatBool(*t), true
	case int:
		return strconv.Itoa(t), true
	case *int:
		if t == nil {
			return "", false
		}
		return strconv.Itoa(*t), true
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", t), true
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}
