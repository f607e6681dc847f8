package scrape

// Index is an insertion-ordered set of records keyed by their full value.
// It is not safe for concurrent use; callers merge from a single goroutine.
type Index[T comparable] struct {
	seen    map[T]struct{}
	records []T
}

// NewIndex returns an empty Index.
func NewIndex[T comparable]() *Index[T] {
	return &Index[T]{seen: make(map[T]struct{})}
}

// AddIfNew inserts record and reports whether it was not already present.
func (i *Index[T]) AddIfNew(record T) bool {
	if _, ok := i.seen[record]; ok {
		return false
	}
	i.seen[record] = struct{}{}
	i.records = append(i.records, record)
	return true
}

// Merge adds every record and returns how many were new.
func (i *Index[T]) Merge(records []T) int {
	added := 0
	for _, r := range records {
		if i.AddIfNew(r) {
			added++
		}
	}
	return added
}

// Len returns the number of unique records.
func (i *Index[T]) Len() int {
	return len(i.records)
}

// Records returns a copy of the unique records in insertion order.
func (i *Index[T]) Records() []T {
	out := make([]T, len(i.records))
	copy(out, i.records)
	return out
}
