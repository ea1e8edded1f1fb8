package http

import "strings"

// Header is a case-insensitive multi-map: each name keeps every value it was
// given, in the order it was added, which is what §4.3's duplicate-header
// rule requires (callers that want "the" value get the first; callers that
// care about repetition use Values). Header also tracks the order names
// were first seen in, so the serializer can emit them in insertion order
// per §4.6 rather than Go's randomized map order.
type Header struct {
	values map[string][]string
	order  []string
}

func NewHeader() Header {
	return Header{values: make(map[string][]string)}
}

func (h *Header) ensure() {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
}

func (h *Header) Add(name, value string) {
	h.ensure()
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.order = append(h.order, key)
	}
	h.values[key] = append(h.values[key], value)
}

func (h *Header) Set(name, value string) {
	h.ensure()
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.order = append(h.order, key)
	}
	h.values[key] = []string{value}
}

func (h Header) Get(name string) string {
	vals := h.values[strings.ToLower(name)]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (h Header) Values(name string) []string {
	return h.values[strings.ToLower(name)]
}

func (h Header) Has(name string) bool {
	_, ok := h.values[strings.ToLower(name)]
	return ok
}

func (h *Header) Del(name string) {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Clear removes every header but keeps the underlying map allocated, for
// reuse by a pooled Request.
func (h *Header) Clear() {
	for k := range h.values {
		delete(h.values, k)
	}
	h.order = h.order[:0]
}

func (h Header) Clone() Header {
	out := Header{
		values: make(map[string][]string, len(h.values)),
		order:  make([]string, len(h.order)),
	}
	copy(out.order, h.order)
	for k, v := range h.values {
		cp := make([]string, len(v))
		copy(cp, v)
		out.values[k] = cp
	}
	return out
}

// Range calls fn for each header name, in the order names were first added,
// with every value recorded for that name.
func (h Header) Range(fn func(name string, values []string)) {
	for _, key := range h.order {
		fn(key, h.values[key])
	}
}
