package gestalt

import "sort"

// Precedence bounds for explicit ordering. Lower values run first.
const (
	HighestPrecedence = -1 << 31
	LowestPrecedence  = 1<<31 - 1
)

// Ordered is implemented by extensions, selectors and observers that carry
// an explicit numeric precedence.
type Ordered interface {
	Order() int
}

// PriorityOrdered marks an instance as belonging to the priority tier: it
// runs before every plainly Ordered or unordered instance of its category.
// PriorityOrdered implies Ordered.
type PriorityOrdered interface {
	Ordered
	PriorityOrder()
}

// orderOf extracts the precedence of an arbitrary instance, defaulting to
// LowestPrecedence.
func orderOf(v any) int {
	if o, ok := v.(Ordered); ok {
		return o.Order()
	}
	return LowestPrecedence
}

// OrderComparator compares two instances by precedence. A registry may
// install its own comparator; this is the default.
type OrderComparator func(a, b any) int

func defaultOrderComparator(a, b any) int {
	oa, ob := orderOf(a), orderOf(b)
	switch {
	case oa < ob:
		return -1
	case oa > ob:
		return 1
	}
	return 0
}

// sortByOrder sorts in place by the given comparator, keeping the original
// order for equal elements. Stability matters: discovery order is the
// documented tie-breaker everywhere precedence applies.
func sortByOrder[T any](items []T, cmp OrderComparator) {
	if cmp == nil {
		cmp = defaultOrderComparator
	}
	sort.SliceStable(items, func(i, j int) bool {
		return cmp(items[i], items[j]) < 0
	})
}
