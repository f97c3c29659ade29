package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pickemslab/bracket-engine/models"
)

var (
	ErrSlotNotFound         = errors.New("bracket slot not found")
	ErrSlotAlreadyResolved  = errors.New("bracket slot already has a result")
	ErrUnresolvedDependency = errors.New("bracket slot depends on unresolved slots")
	ErrWinnerNotInSlot      = errors.New("winner is not a contender in this slot")
)

// QualifierLookup resolves a group-stage placement to a team ID.
type QualifierLookup func(group string, position int) (int, error)

var roundOrder = map[models.RoundKind]int{
	models.RoundOf32:     1,
	models.RoundOf16:     2,
	models.Quarterfinals: 3,
	models.Semifinals:    4,
	models.Final:         5,
}

// Graph is the knockout bracket as a DAG over slot identifiers. Slots are
// loaded once at construction and their sources never mutate; results are the
// only state that changes. The zero value is not usable, construct with New.
type Graph struct {
	slots      map[int]models.BracketSlot
	dependents map[int][]int
	results    map[int]int
}

// New validates the slot table and builds the dependency index. A WinnerOf
// source must reference two distinct existing slots strictly in the previous
// round, and every slot may feed at most one later slot, which keeps the
// graph an acyclic binary tree up to the final.
func New(slots []models.BracketSlot) (*Graph, error) {
	g := &Graph{
		slots:      make(map[int]models.BracketSlot, len(slots)),
		dependents: make(map[int][]int),
		results:    make(map[int]int),
	}

	for _, slot := range slots {
		if _, exists := g.slots[slot.ID]; exists {
			return nil, fmt.Errorf("duplicate slot id %d", slot.ID)
		}
		if _, known := roundOrder[slot.Round]; !known {
			return nil, fmt.Errorf("slot %d has unknown round %q", slot.ID, slot.Round)
		}
		hasQualifiers := slot.Source.Qualifiers != nil
		hasWinnerOf := slot.Source.WinnerOf != nil
		if hasQualifiers == hasWinnerOf {
			return nil, fmt.Errorf("slot %d must have exactly one source kind", slot.ID)
		}
		g.slots[slot.ID] = slot
	}

	feeds := make(map[int]int)
	for _, slot := range g.slots {
		ref := slot.Source.WinnerOf
		if ref == nil {
			continue
		}
		if ref.SlotA == ref.SlotB {
			return nil, fmt.Errorf("slot %d references slot %d on both sides", slot.ID, ref.SlotA)
		}
		for _, sourceID := range []int{ref.SlotA, ref.SlotB} {
			source, ok := g.slots[sourceID]
			if !ok {
				return nil, fmt.Errorf("slot %d references missing slot %d", slot.ID, sourceID)
			}
			if roundOrder[source.Round] != roundOrder[slot.Round]-1 {
				return nil, fmt.Errorf("slot %d (%s) must be fed from the previous round, got slot %d (%s)",
					slot.ID, slot.Round, sourceID, source.Round)
			}
			if prev, taken := feeds[sourceID]; taken {
				return nil, fmt.Errorf("slot %d already feeds slot %d, cannot also feed slot %d", sourceID, prev, slot.ID)
			}
			feeds[sourceID] = slot.ID
			g.dependents[sourceID] = append(g.dependents[sourceID], slot.ID)
		}
	}

	return g, nil
}

// SetResult loads an already recorded result into the graph. Used when
// rebuilding graph state from the store.
func (g *Graph) SetResult(slotID, winnerTeamID int) error {
	if _, ok := g.slots[slotID]; !ok {
		return fmt.Errorf("%w: %d", ErrSlotNotFound, slotID)
	}
	g.results[slotID] = winnerTeamID
	return nil
}

// Winner returns the recorded winner for a slot, if any.
func (g *Graph) Winner(slotID int) (int, bool) {
	winner, ok := g.results[slotID]
	return winner, ok
}

// Slot returns the slot definition.
func (g *Graph) Slot(slotID int) (models.BracketSlot, bool) {
	slot, ok := g.slots[slotID]
	return slot, ok
}

// Slots returns all slots ordered by round, then ID.
func (g *Graph) Slots() []models.BracketSlot {
	out := make([]models.BracketSlot, 0, len(g.slots))
	for _, slot := range g.slots {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if roundOrder[out[i].Round] != roundOrder[out[j].Round] {
			return roundOrder[out[i].Round] < roundOrder[out[j].Round]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SlotIDsForRound returns the IDs of every slot in the given round, ordered.
func (g *Graph) SlotIDsForRound(round models.RoundKind) []int {
	ids := make([]int, 0)
	for id, slot := range g.slots {
		if slot.Round == round {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Contenders returns the two team IDs that can occupy a slot. For a
// first-round slot these come from the qualifier lookup; for later slots both
// source slots must already be resolved, otherwise ErrUnresolvedDependency.
func (g *Graph) Contenders(slotID int, lookup QualifierLookup) ([2]int, error) {
	var teams [2]int

	slot, ok := g.slots[slotID]
	if !ok {
		return teams, fmt.Errorf("%w: %d", ErrSlotNotFound, slotID)
	}

	if quals := slot.Source.Qualifiers; quals != nil {
		for i, q := range quals {
			teamID, err := lookup(q.Group, q.Position)
			if err != nil {
				return teams, fmt.Errorf("resolving qualifier %s%d for slot %d: %w", q.Group, q.Position, slotID, err)
			}
			teams[i] = teamID
		}
		return teams, nil
	}

	ref := slot.Source.WinnerOf
	for i, sourceID := range []int{ref.SlotA, ref.SlotB} {
		winner, resolved := g.results[sourceID]
		if !resolved {
			return teams, fmt.Errorf("%w: slot %d waits on slot %d", ErrUnresolvedDependency, slotID, sourceID)
		}
		teams[i] = winner
	}
	return teams, nil
}

// Playable reports whether both contenders of a slot are determined and the
// slot itself has no result yet.
func (g *Graph) Playable(slotID int, lookup QualifierLookup) bool {
	if _, resolved := g.results[slotID]; resolved {
		return false
	}
	_, err := g.Contenders(slotID, lookup)
	return err == nil
}

// Resolve records the winner for a slot and returns the IDs of dependent
// slots whose contender set became fully known, plus the losing team ID.
// A slot resolves at most once; a second call fails without touching the
// recorded result.
func (g *Graph) Resolve(slotID, winnerTeamID int, lookup QualifierLookup) (unlocked []int, loserTeamID int, err error) {
	if _, ok := g.slots[slotID]; !ok {
		return nil, 0, fmt.Errorf("%w: %d", ErrSlotNotFound, slotID)
	}
	if _, resolved := g.results[slotID]; resolved {
		return nil, 0, fmt.Errorf("%w: %d", ErrSlotAlreadyResolved, slotID)
	}

	contenders, err := g.Contenders(slotID, lookup)
	if err != nil {
		return nil, 0, err
	}

	switch winnerTeamID {
	case contenders[0]:
		loserTeamID = contenders[1]
	case contenders[1]:
		loserTeamID = contenders[0]
	default:
		return nil, 0, fmt.Errorf("%w: team %d in slot %d (contenders %d, %d)",
			ErrWinnerNotInSlot, winnerTeamID, slotID, contenders[0], contenders[1])
	}

	g.results[slotID] = winnerTeamID

	for _, depID := range g.dependents[slotID] {
		if g.Playable(depID, lookup) {
			unlocked = append(unlocked, depID)
		}
	}
	sort.Ints(unlocked)
	return unlocked, loserTeamID, nil
}
