package docs

import "sort"

// Ordered is an operation together with its resolved anchor.
type Ordered struct {
	Operation
	Anchor     Anchor
	Positional bool
	// Input is the operation's index in the caller's list.
	Input int
}

// Order resolves every operation and returns them in application order:
// positional operations grouped by segment key, highest offset first, then
// unordered operations in caller order.
//
// Applying from the highest offset down means each edit only shifts positions
// above itself, so every not-yet-applied operation stays valid in pre-batch
// coordinates. Operations at the same offset keep their caller order.
func Order(r *Resolver, ops []Operation) []Ordered {
	positional := make([]Ordered, 0, len(ops))
	var unordered []Ordered
	for i, op := range ops {
		anchor, ok := r.Resolve(op)
		o := Ordered{Operation: op, Anchor: anchor, Positional: ok, Input: i}
		if ok {
			positional = append(positional, o)
		} else {
			unordered = append(unordered, o)
		}
	}

	sort.SliceStable(positional, func(i, j int) bool {
		a, b := positional[i].Anchor, positional[j].Anchor
		ka, kb := a.Segment.Key(), b.Segment.Key()
		if ka != kb {
			return ka < kb
		}
		if a.EndOfSegment != b.EndOfSegment {
			return a.EndOfSegment
		}
		return a.Offset > b.Offset
	})

	return append(positional, unordered...)
}

// Operations strips the ordering metadata.
func Operations(ordered []Ordered) []Operation {
	out := make([]Operation, len(ordered))
	for i, o := range ordered {
		out[i] = o.Operation
	}
	return out
}
