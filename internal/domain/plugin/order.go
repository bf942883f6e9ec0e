package plugin

import (
	"slices"
	"sort"
)

// Order arranges plugins by their initialization strategies.
//
// Plugins declaring "before *" come first and "after *" last, each group in
// its current relative order. Every other plugin forms the middle group,
// where a plugin naming another plugin's id is moved immediately before or
// after that plugin's current position. Moves are applied in the middle
// group's original order, so a later move may displace an earlier one.
// The input slice is not modified.
func Order(plugins []Plugin) []Plugin {
	if len(plugins) == 0 {
		return nil
	}

	var beforeAll, middle, afterAll []Plugin
	for _, p := range plugins {
		s := strategyOf(p)
		switch {
		case s.IsAll() && s.Relation == RelationBefore:
			beforeAll = append(beforeAll, p)
		case s.IsAll() && s.Relation == RelationAfter:
			afterAll = append(afterAll, p)
		default:
			middle = append(middle, p)
		}
	}

	sorted := slices.Clone(middle)
	for _, p := range middle {
		s := strategyOf(p)
		if s.IsAll() || s.ID == pluginID(p) {
			continue
		}
		if s.Relation != RelationBefore && s.Relation != RelationAfter {
			continue
		}
		sorted = relocate(sorted, p, s)
	}

	ordered := make([]Plugin, 0, len(plugins))
	ordered = append(ordered, beforeAll...)
	ordered = append(ordered, sorted...)
	ordered = append(ordered, afterAll...)
	return ordered
}

// strategyOf returns p's strategy, or Any when the plugin panics.
func strategyOf(p Plugin) (s Strategy) {
	defer func() {
		if recover() != nil {
			s = Any()
		}
	}()
	return p.Strategy()
}

// relocate moves p next to the first plugin whose id is s.ID. The list is
// unchanged when no plugin has that id.
func relocate(list []Plugin, p Plugin, s Strategy) []Plugin {
	target := slices.IndexFunc(list, func(other Plugin) bool {
		return pluginID(other) == s.ID
	})
	if target < 0 {
		return list
	}
	old := slices.Index(list, p)

	list = slices.Delete(list, old, old+1)
	if old < target {
		// removal shifted the target one slot left
		target--
	}
	if s.Relation == RelationAfter {
		target++
	}
	return slices.Insert(list, target, p)
}

// SortByIndex sorts recent by each plugin's position in final. Plugins
// missing from final keep their relative order at the end.
func SortByIndex(recent, final []Plugin) []Plugin {
	index := make(map[Plugin]int, len(final))
	for i, p := range final {
		index[p] = i
	}

	out := slices.Clone(recent)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := index[out[i]]
		pj, jok := index[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		default:
			return false
		}
	})
	return out
}
