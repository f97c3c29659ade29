package models

import "time"

// Prediction is a user's editable draft pick for a slot's winner. One draft
// exists per (user, slot); it stays editable until the stage governing the
// slot closes.
type Prediction struct {
	UserID                int       `json:"user_id" db:"user_id"`
	SlotID                int       `json:"slot_id" db:"slot_id"`
	PredictedWinnerTeamID int       `json:"predicted_winner_team_id" db:"predicted_winner_team_id"`
	IsCommitted           bool      `json:"is_committed" db:"is_committed"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// CommittedPrediction is the immutable snapshot of a draft taken at stage
// close. Round is denormalized from the slot at commit time so scoring is a
// pure function of the snapshot, the result and the stage. PointsAwarded
// stays nil until the slot's real result exists.
type CommittedPrediction struct {
	ID                    int       `json:"id" db:"id"`
	UserID                int       `json:"user_id" db:"user_id"`
	SlotID                int       `json:"slot_id" db:"slot_id"`
	Round                 RoundKind `json:"round" db:"round"`
	PredictedWinnerTeamID int       `json:"predicted_winner_team_id" db:"predicted_winner_team_id"`
	CommittedAtStage      StageName `json:"committed_at_stage" db:"committed_at_stage"`
	PointsAwarded         *int      `json:"points_awarded,omitempty" db:"points_awarded"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// PenaltyEntry is a ledger row charged when a user changed an already
// committed pick before the next stage closed. Penalties are kept out of
// points_awarded so raw scoring stays auditable.
type PenaltyEntry struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	SlotID    int       `json:"slot_id" db:"slot_id"`
	Stage     StageName `json:"stage" db:"stage"`
	Amount    int       `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
