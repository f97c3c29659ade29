package models

import "time"

// RoundKind identifies the knockout round a slot belongs to.
type RoundKind string

const (
	RoundOf32     RoundKind = "R32"
	RoundOf16     RoundKind = "R16"
	Quarterfinals RoundKind = "QF"
	Semifinals    RoundKind = "SF"
	Final         RoundKind = "F"
)

// StageFor maps a knockout round to the stage that governs it. Predictions
// for a slot lock when this stage closes.
func (r RoundKind) StageFor() StageName {
	return StageName(r)
}

// RoundFor returns the knockout round a stage governs, if any. Group and
// pre-tournament stages own no bracket slots.
func (s StageName) RoundFor() (RoundKind, bool) {
	switch s {
	case StageRoundOf32, StageRoundOf16, StageQuarterfinals, StageSemifinals, StageFinal:
		return RoundKind(s), true
	}
	return "", false
}

// GroupQualifier identifies a team by its final group-stage placement.
type GroupQualifier struct {
	Group    string `json:"group"`
	Position int    `json:"position"`
}

// WinnerOfRef feeds a slot from the winners of two slots in the previous
// round.
type WinnerOfRef struct {
	SlotA int `json:"slot_a"`
	SlotB int `json:"slot_b"`
}

// SlotSource is a tagged union over slot identifiers, not live object
// references: exactly one of Qualifiers or WinnerOf is set. First-round slots
// are fed by a pair of group qualifiers, every later slot by the winners of
// two slots strictly in the previous round.
type SlotSource struct {
	Qualifiers *[2]GroupQualifier `json:"qualifiers,omitempty"`
	WinnerOf   *WinnerOfRef       `json:"winner_of,omitempty"`
}

// BracketSlot is a single knockout match position, identified independently
// of which teams end up occupying it. Source never mutates after setup.
type BracketSlot struct {
	ID     int        `json:"id" db:"id"`
	Round  RoundKind  `json:"round" db:"round"`
	Source SlotSource `json:"source" db:"-"`
}

// KnockoutResult records the real winner of a slot. At most one result exists
// per slot; corrections are appended as a new authoritative row, never an
// update in place.
type KnockoutResult struct {
	ID           int       `json:"id" db:"id"`
	SlotID       int       `json:"slot_id" db:"slot_id"`
	WinnerTeamID int       `json:"winner_team_id" db:"winner_team_id"`
	Correction   bool      `json:"correction,omitempty" db:"correction"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
