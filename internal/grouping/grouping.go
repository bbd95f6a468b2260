// Package grouping partitions bulletins into (client, importance) work units.
package grouping

import (
	"sort"
	"strconv"
	"strings"

	"BulletinDispatch/internal/domain"
)

// Group partitions bulletins by (client, importance), dropping Pending rows.
// Groups are ordered by client key then descending severity; members are
// stable-sorted by bulletin number so identical input yields identical output.
func Group(bulletins []domain.Bulletin) []domain.Group {
	index := map[domain.GroupKey]int{}
	var groups []domain.Group

	for _, b := range bulletins {
		if !b.Importance.Classified() {
			continue
		}
		key := domain.GroupKey{ClientKey: b.ClientKey, Importance: b.Importance}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, domain.Group{Key: key})
		}
		groups[pos].Members = append(groups[pos].Members, b)
	}

	for i := range groups {
		members := groups[i].Members
		sort.SliceStable(members, func(a, b int) bool {
			return lessNumber(members[a].Gazette.BulletinNumber, members[b].Gazette.BulletinNumber)
		})
	}

	sort.SliceStable(groups, func(a, b int) bool {
		ka, kb := groups[a].Key, groups[b].Key
		if ka.ClientKey != kb.ClientKey {
			return ka.ClientKey < kb.ClientKey
		}
		return ka.Importance.Rank() > kb.Importance.Rank()
	})

	return groups
}

// SplitByArtifact breaks each group into one unit per referenced artifact.
// Members generated by different runs carry different artifacts and must
// each be sent with their own attachment. Members without an artifact form
// their own unit.
func SplitByArtifact(groups []domain.Group) []domain.Group {
	var out []domain.Group
	for _, g := range groups {
		order := []string{}
		parts := map[string][]domain.Bulletin{}
		for _, m := range g.Members {
			name := m.ArtifactName()
			if _, ok := parts[name]; !ok {
				order = append(order, name)
			}
			parts[name] = append(parts[name], m)
		}
		for _, name := range order {
			out = append(out, domain.Group{Key: g.Key, Members: parts[name]})
		}
	}
	return out
}

// lessNumber compares bulletin numbers numerically when both parse, and
// lexically otherwise.
func lessNumber(a, b string) bool {
	na, errA := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	nb, errB := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
