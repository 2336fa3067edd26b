// Package rotation maintains the bounded working set of tracked instruments.
package rotation

import (
	"slices"
	"time"

	"github.com/newthinker/vanguard/internal/core"
)

// Input is everything a rotation pass depends on.
type Input struct {
	Candidates  []string            // ranked symbols, best first
	Current     []core.TrackedInstrument
	FeedSymbols map[string]struct{} // symbols present in the latest feed
	Capacity    int
	Now         time.Time
}

// Output is the result of a rotation pass.
type Output struct {
	Set     []core.TrackedInstrument
	Added   []string
	Evicted []string // displaced by capacity
	Removed []string // absent from the feed
}

// Changed reports whether the pass altered membership.
func (o Output) Changed() bool {
	return len(o.Added) > 0 || len(o.Evicted) > 0 || len(o.Removed) > 0
}

// Rotate computes the next tracked set. It is pure: the same input always
// yields the same output and Current is never modified.
func Rotate(in Input) Output {
	var out Output
	k := in.Capacity
	if k < 1 {
		k = 1
	}

	set := make([]core.TrackedInstrument, 0, max(k, len(in.Current)))
	for _, m := range in.Current {
		if _, ok := in.FeedSymbols[m.Symbol]; !ok {
			out.Removed = append(out.Removed, m.Symbol)
			continue
		}
		set = append(set, m)
	}

	present := make(map[string]struct{}, len(set))
	for _, m := range set {
		present[m.Symbol] = struct{}{}
	}

	var fresh []string
	for _, sym := range in.Candidates {
		if _, ok := present[sym]; ok {
			continue
		}
		present[sym] = struct{}{}
		fresh = append(fresh, sym)
	}

	switch {
	case len(set) < k:
		for _, sym := range fresh {
			if len(set) == k {
				break
			}
			set = append(set, core.TrackedInstrument{Symbol: sym, AddedAt: in.Now, LastSeen: in.Now})
			out.Added = append(out.Added, sym)
		}
	case len(set) == k && len(fresh) > 0:
		i := oldest(set)
		out.Evicted = append(out.Evicted, set[i].Symbol)
		set[i] = core.TrackedInstrument{Symbol: fresh[0], AddedAt: in.Now, LastSeen: in.Now}
		out.Added = append(out.Added, fresh[0])
	}

	if len(set) > k {
		set, out.Evicted = truncate(set, k, out.Evicted)
	}

	out.Set = set
	return out
}

// oldest returns the index of the member to evict: smallest AddedAt, then
// smallest LastSeen, then lowest index.
func oldest(set []core.TrackedInstrument) int {
	idx := 0
	for i := 1; i < len(set); i++ {
		a, b := set[i], set[idx]
		if a.AddedAt.Before(b.AddedAt) ||
			(a.AddedAt.Equal(b.AddedAt) && a.LastSeen.Before(b.LastSeen)) {
			idx = i
		}
	}
	return idx
}

// truncate keeps the k most recently added members in their original order.
func truncate(set []core.TrackedInstrument, k int, evicted []string) ([]core.TrackedInstrument, []string) {
	order := make([]int, len(set))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return set[b].AddedAt.Compare(set[a].AddedAt)
	})

	keep := make(map[int]bool, k)
	for _, i := range order[:k] {
		keep[i] = true
	}

	kept := make([]core.TrackedInstrument, 0, k)
	for i, m := range set {
		if keep[i] {
			kept = append(kept, m)
			continue
		}
		evicted = append(evicted, m.Symbol)
	}
	return kept, evicted
}
