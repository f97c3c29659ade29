package models

import "time"

// StageName represents tournament stages, matching the ENUM in the DB.
type StageName string

const (
	StagePreGroup      StageName = "PRE_GROUP_STAGE"
	StageGroup         StageName = "GROUP"
	StageRoundOf32     StageName = "R32"
	StageRoundOf16     StageName = "R16"
	StageQuarterfinals StageName = "QF"
	StageSemifinals    StageName = "SF"
	StageFinal         StageName = "F"
)

// Stage is one phase of the tournament. Order is unique and strictly
// increasing across the registry; exactly one stage is current at a time.
type Stage struct {
	Name             StageName         `json:"name" db:"name"`
	Order            int               `json:"order" db:"stage_order"`
	PenaltyPerChange int               `json:"penalty_per_change" db:"penalty_per_change"`
	ScoringWeight    map[RoundKind]int `json:"scoring_weight" db:"-"`
}

// WeightFor returns the configured points for a round, or 0 when the
// stage/round combination is unconfigured. An unknown combination is not an
// error, it degrades to zero points.
func (s Stage) WeightFor(round RoundKind) int {
	if s.ScoringWeight == nil {
		return 0
	}
	return s.ScoringWeight[round]
}

// TournamentState is the per-tournament mutable engine state. It is passed
// into registry calls explicitly instead of living in a package variable, so
// the engine holds no hidden process-global state.
type TournamentState struct {
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	CurrentStage StageName `json:"current_stage" db:"current_stage"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
