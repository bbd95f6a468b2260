package grouping

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BulletinDispatch/internal/domain"
)

func bulletin(id int64, client string, imp domain.Importance, number string) domain.Bulletin {
	return domain.Bulletin{
		ID:         id,
		ClientKey:  client,
		Importance: imp,
		Gazette:    domain.Gazette{BulletinNumber: number},
	}
}

func TestGroupPartitionExcludesPending(t *testing.T) {
	t.Parallel()

	input := []domain.Bulletin{
		bulletin(1, "ACME", domain.ImportanceHigh, "100"),
		bulletin(2, "ACME", domain.ImportanceMedium, "101"),
		bulletin(3, "BETA", domain.ImportancePending, "102"),
		bulletin(4, "ACME", domain.ImportanceHigh, "99"),
		bulletin(5, "BETA", domain.ImportanceLow, "7"),
	}

	groups := Group(input)
	require.Len(t, groups, 3)

	seen := map[int64]int{}
	for _, g := range groups {
		for _, m := range g.Members {
			seen[m.ID]++
			assert.Equal(t, g.Key.ClientKey, m.ClientKey)
			assert.Equal(t, g.Key.Importance, m.Importance)
		}
	}
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 4: 1, 5: 1}, seen)
}

func TestGroupOrdering(t *testing.T) {
	t.Parallel()

	input := []domain.Bulletin{
		bulletin(1, "BETA", domain.ImportanceLow, "20"),
		bulletin(2, "ACME", domain.ImportanceLow, "10"),
		bulletin(3, "ACME", domain.ImportanceHigh, "100"),
		bulletin(4, "ACME", domain.ImportanceHigh, "9"),
		bulletin(5, "ACME", domain.ImportanceHigh, "abc"),
	}

	groups := Group(input)

	var keys []domain.GroupKey
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	want := []domain.GroupKey{
		{ClientKey: "ACME", Importance: domain.ImportanceHigh},
		{ClientKey: "ACME", Importance: domain.ImportanceLow},
		{ClientKey: "BETA", Importance: domain.ImportanceLow},
	}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("group keys mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"9", "100", "abc"}, groups[0].Numbers())
}

func TestGroupDeterministic(t *testing.T) {
	t.Parallel()

	input := []domain.Bulletin{
		bulletin(1, "ACME", domain.ImportanceMedium, "5"),
		bulletin(2, "ACME", domain.ImportanceMedium, "5"),
		bulletin(3, "ZED", domain.ImportanceHigh, "1"),
	}

	first := Group(input)
	second := Group(input)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("grouping not deterministic:\n%s", diff)
	}
	assert.Equal(t, []int64{1, 2}, first[0].IDs())
}

func TestGroupEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Group(nil))
	assert.Empty(t, Group([]domain.Bulletin{bulletin(1, "A", domain.ImportancePending, "1")}))
}

func TestSplitByArtifact(t *testing.T) {
	t.Parallel()

	a := bulletin(1, "ACME", domain.ImportanceHigh, "1")
	a.Artifact = &domain.Artifact{Name: "one.pdf"}
	b := bulletin(2, "ACME", domain.ImportanceHigh, "2")
	b.Artifact = &domain.Artifact{Name: "two.pdf"}
	c := bulletin(3, "ACME", domain.ImportanceHigh, "3")
	c.Artifact = &domain.Artifact{Name: "one.pdf"}

	units := SplitByArtifact(Group([]domain.Bulletin{a, b, c}))
	require.Len(t, units, 2)
	assert.Equal(t, []int64{1, 3}, units[0].IDs())
	assert.Equal(t, "one.pdf", units[0].Artifact().Name)
	assert.Equal(t, []int64{2}, units[1].IDs())
	assert.Equal(t, "two.pdf", units[1].Artifact().Name)
}
