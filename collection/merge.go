// ABOUTME: Merges a new batch of records into a held collection by entity id
// ABOUTME: Last write wins on id collision; id-less records are appended
package collection

import "github.com/harperreed/crmpulse/models"

// Merge combines existing and incoming records. Records with an id are
// keyed: an incoming record replaces the existing one in place or is added
// after the existing ids. Records without an id come last, existing first.
//
// Incoming id-less records are appended onto the existing slice itself, so
// when existing has spare capacity its backing array is written to. Callers
// that share that array should use MergePure.
func Merge[T models.Keyed](existing, incoming []T) []T {
	merged := newOrderedMap[T](len(existing) + len(incoming))
	for _, r := range existing {
		if r.Key() != "" {
			merged.set(r.Key(), r)
		}
	}

	for _, r := range incoming {
		if r.Key() != "" {
			merged.set(r.Key(), r)
			continue
		}
		existing = append(existing, r)
	}

	out := merged.values()
	for _, r := range existing {
		if r.Key() == "" {
			out = append(out, r)
		}
	}
	return out
}

// MergePure produces the same ordering as Merge without touching the
// inputs' backing arrays.
func MergePure[T models.Keyed](existing, incoming []T) []T {
	merged := newOrderedMap[T](len(existing) + len(incoming))
	var idless []T
	for _, r := range existing {
		if r.Key() == "" {
			idless = append(idless, r)
			continue
		}
		merged.set(r.Key(), r)
	}
	for _, r := range incoming {
		if r.Key() == "" {
			idless = append(idless, r)
			continue
		}
		merged.set(r.Key(), r)
	}
	return append(merged.values(), idless...)
}

type orderedMap[T any] struct {
	index map[string]int
	items []T
}

func newOrderedMap[T any](size int) *orderedMap[T] {
	return &orderedMap[T]{index: make(map[string]int, size), items: make([]T, 0, size)}
}

func (m *orderedMap[T]) set(key string, v T) {
	if i, ok := m.index[key]; ok {
		m.items[i] = v
		return
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, v)
}

func (m *orderedMap[T]) values() []T {
	return m.items
}
