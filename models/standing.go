package models

// LeaderboardRow is a user's aggregate score for one tournament: raw awarded
// points and the penalty ledger kept apart, so scoring stays auditable.
type LeaderboardRow struct {
	UserID    int `json:"user_id" db:"user_id"`
	Points    int `json:"points" db:"points"`
	Penalties int `json:"penalties" db:"penalties"`
	Total     int `json:"total" db:"-"`
}
