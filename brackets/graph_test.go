package brackets

import (
	"testing"

	"github.com/pickemslab/bracket-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qualifierSlot(id int, round models.RoundKind, g1 string, p1 int, g2 string, p2 int) models.BracketSlot {
	return models.BracketSlot{
		ID:    id,
		Round: round,
		Source: models.SlotSource{
			Qualifiers: &[2]models.GroupQualifier{
				{Group: g1, Position: p1},
				{Group: g2, Position: p2},
			},
		},
	}
}

func winnerOfSlot(id int, round models.RoundKind, slotA, slotB int) models.BracketSlot {
	return models.BracketSlot{
		ID:    id,
		Round: round,
		Source: models.SlotSource{
			WinnerOf: &models.WinnerOfRef{SlotA: slotA, SlotB: slotB},
		},
	}
}

// Minimal three-slot bracket: two quarterfinals feeding one semifinal.
func newTestBracket(t *testing.T) *Graph {
	t.Helper()
	g, err := New([]models.BracketSlot{
		qualifierSlot(1, models.Quarterfinals, "A", 1, "B", 2),
		qualifierSlot(2, models.Quarterfinals, "C", 1, "D", 2),
		winnerOfSlot(3, models.Semifinals, 1, 2),
	})
	require.NoError(t, err)
	return g
}

// Group standings used by the test bracket: A1=10, B2=11, C1=12, D2=13.
func testLookup(group string, position int) (int, error) {
	table := map[string]int{"A1": 10, "B2": 11, "C1": 12, "D2": 13}
	return table[group+string(rune('0'+position))], nil
}

func TestNewRejectsInvalidTopology(t *testing.T) {
	tests := []struct {
		name  string
		slots []models.BracketSlot
	}{
		{
			name: "duplicate slot id",
			slots: []models.BracketSlot{
				qualifierSlot(1, models.Quarterfinals, "A", 1, "B", 2),
				qualifierSlot(1, models.Quarterfinals, "C", 1, "D", 2),
			},
		},
		{
			name: "unknown round",
			slots: []models.BracketSlot{
				qualifierSlot(1, "R128", "A", 1, "B", 2),
			},
		},
		{
			name: "no source",
			slots: []models.BracketSlot{
				{ID: 1, Round: models.Quarterfinals},
			},
		},
		{
			name: "both source kinds",
			slots: []models.BracketSlot{
				qualifierSlot(1, models.Quarterfinals, "A", 1, "B", 2),
				qualifierSlot(2, models.Quarterfinals, "C", 1, "D", 2),
				{
					ID:    3,
					Round: models.Semifinals,
					Source: models.SlotSource{
						Qualifiers: &[2]models.GroupQualifier{{Group: "A", Position: 1}, {Group: "B", Position: 2}},
						WinnerOf:   &models.WinnerOfRef{SlotA: 1, SlotB: 2},
					},
				},
			},
		},
		{
			name: "same slot on both sides",
			slots: []models.BracketSlot{
				qualifierSlot(1, models.Quarterfinals, "A", 1, "B", 2),
				winnerOfSlot(3, models.Semifinals, 1, 1),
			},
		},
		{
			name: "reference to missing slot",
			slots: []models.BracketSlot{
				qualifierSlot(1, models.Quarterfinals, "A", 1, "B", 2),
				winnerOfSlot(3, models.Semifinals, 1, 99),
			},
		},
		{
			name: "source not in previous round",
			slots: []models.BracketSlot{
				qualifierSlot(1, models.RoundOf16, "A", 1, "B", 2),
				qualifierSlot(2, models.Quarterfinals, "C", 1, "D", 2),
				winnerOfSlot(3, models.Semifinals, 1, 2),
			},
		},
		{
			name: "slot feeding two later slots",
			slots: []models.BracketSlot{
				qualifierSlot(1, models.Quarterfinals, "A", 1, "B", 2),
				qualifierSlot(2, models.Quarterfinals, "C", 1, "D", 2),
				winnerOfSlot(3, models.Semifinals, 1, 2),
				winnerOfSlot(4, models.Semifinals, 1, 2),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.slots)
			assert.Error(t, err)
			assert.Nil(t, g)
		})
	}
}

func TestResolvePropagatesWinners(t *testing.T) {
	g := newTestBracket(t)

	// Slot 3 waits until both quarterfinals have winners.
	_, err := g.Contenders(3, testLookup)
	require.ErrorIs(t, err, ErrUnresolvedDependency)
	assert.False(t, g.Playable(3, testLookup))

	unlocked, loser, err := g.Resolve(1, 10, testLookup)
	require.NoError(t, err)
	assert.Equal(t, 11, loser)
	assert.Empty(t, unlocked, "semifinal still waits on slot 2")

	unlocked, loser, err = g.Resolve(2, 13, testLookup)
	require.NoError(t, err)
	assert.Equal(t, 12, loser)
	assert.Equal(t, []int{3}, unlocked)

	contenders, err := g.Contenders(3, testLookup)
	require.NoError(t, err)
	assert.Equal(t, [2]int{10, 13}, contenders)
	assert.True(t, g.Playable(3, testLookup))
}

func TestResolveOrderIndependent(t *testing.T) {
	g := newTestBracket(t)

	unlocked, _, err := g.Resolve(2, 12, testLookup)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	unlocked, _, err = g.Resolve(1, 11, testLookup)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, unlocked)

	contenders, err := g.Contenders(3, testLookup)
	require.NoError(t, err)
	assert.Equal(t, [2]int{11, 12}, contenders)
}

func TestResolveOnlyOnce(t *testing.T) {
	g := newTestBracket(t)

	_, _, err := g.Resolve(1, 10, testLookup)
	require.NoError(t, err)

	_, _, err = g.Resolve(1, 11, testLookup)
	assert.ErrorIs(t, err, ErrSlotAlreadyResolved)

	winner, ok := g.Winner(1)
	require.True(t, ok)
	assert.Equal(t, 10, winner, "failed re-resolution must not touch the recorded result")
}

func TestResolveRejectsNonContender(t *testing.T) {
	g := newTestBracket(t)

	_, _, err := g.Resolve(1, 999, testLookup)
	assert.ErrorIs(t, err, ErrWinnerNotInSlot)

	_, ok := g.Winner(1)
	assert.False(t, ok)
}

func TestResolveUnknownSlot(t *testing.T) {
	g := newTestBracket(t)

	_, _, err := g.Resolve(42, 10, testLookup)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestResolveDependentBeforeSources(t *testing.T) {
	g := newTestBracket(t)

	_, _, err := g.Resolve(3, 10, testLookup)
	assert.ErrorIs(t, err, ErrUnresolvedDependency)
}

func TestSlotsOrderedByRoundThenID(t *testing.T) {
	g, err := New([]models.BracketSlot{
		winnerOfSlot(7, models.Semifinals, 2, 9),
		qualifierSlot(9, models.Quarterfinals, "A", 1, "B", 2),
		qualifierSlot(2, models.Quarterfinals, "C", 1, "D", 2),
	})
	require.NoError(t, err)

	var ids []int
	for _, slot := range g.Slots() {
		ids = append(ids, slot.ID)
	}
	assert.Equal(t, []int{2, 9, 7}, ids)
	assert.Equal(t, []int{2, 9}, g.SlotIDsForRound(models.Quarterfinals))
}
