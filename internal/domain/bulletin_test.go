package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAdvance(t *testing.T) {
	t.Parallel()

	stages := []Stage{StagePending, StageClassified, StageGenerated, StageSent}
	allowed := map[[2]Stage]bool{
		{StageClassified, StageGenerated}: true,
		{StageGenerated, StageSent}:       true,
	}
	for _, from := range stages {
		for _, to := range stages {
			assert.Equal(t, allowed[[2]Stage{from, to}], CanAdvance(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StagePending, Bulletin{Importance: ImportancePending}.Stage())
	assert.Equal(t, StagePending, Bulletin{Importance: Importance("Urgent")}.Stage())
	assert.Equal(t, StageClassified, Bulletin{Importance: ImportanceLow}.Stage())
	assert.Equal(t, StageGenerated, Bulletin{Importance: ImportanceLow, Generated: true}.Stage())
	assert.Equal(t, StageSent, Bulletin{Importance: ImportanceLow, Generated: true, Sent: true}.Stage())
}

func TestGroupCheckAdvance(t *testing.T) {
	t.Parallel()

	group := Group{
		Key: GroupKey{ClientKey: "ACME", Importance: ImportanceHigh},
		Members: []Bulletin{
			{ID: 1, Importance: ImportanceHigh},
			{ID: 2, Importance: ImportanceHigh},
		},
	}
	require.NoError(t, group.CheckAdvance(StageGenerated))

	err := group.CheckAdvance(StageSent)
	require.True(t, errors.Is(err, ErrStaleGroup))
	assert.Contains(t, err.Error(), "bulletin 1")

	group.Members[1].Generated = true
	err = group.CheckAdvance(StageGenerated)
	require.ErrorIs(t, err, ErrStaleGroup)
	assert.Contains(t, err.Error(), "bulletin 2 is generated")
}

func TestParseImportance(t *testing.T) {
	t.Parallel()

	imp, err := ParseImportance(" high ")
	require.NoError(t, err)
	assert.Equal(t, ImportanceHigh, imp)

	_, err = ParseImportance("Critical")
	assert.Error(t, err)
}
