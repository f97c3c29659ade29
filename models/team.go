package models

// Team is managed externally; the engine never creates or deletes teams and
// only flips IsEliminated during bracket resolution.
type Team struct {
	ID            int    `json:"id" db:"id"`
	Name          string `json:"name" db:"name"`
	GroupLetter   string `json:"group_letter" db:"group_letter"`
	GroupPosition int    `json:"group_position" db:"group_position"`
	GoalsFor      int    `json:"goals_for" db:"goals_for"`
	GoalsAgainst  int    `json:"goals_against" db:"goals_against"`
	IsEliminated  bool   `json:"is_eliminated" db:"is_eliminated"`
}
