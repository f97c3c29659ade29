package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pickemslab/bracket-engine/models"
)

var ErrTournamentStateNotFound = errors.New("tournament state not found")

// TournamentStateRepository persists the per-tournament "current stage"
// pointer. The engine owns the lifecycle; the row is seeded once at setup.
type TournamentStateRepository interface {
	Get(ctx context.Context, tournamentID int) (*models.TournamentState, error)
	UpdateCurrentStage(ctx context.Context, exec SQLExecutor, tournamentID int, stage models.StageName) error
}

type postgresTournamentStateRepository struct {
	db *sql.DB
}

func NewPostgresTournamentStateRepository(db *sql.DB) TournamentStateRepository {
	return &postgresTournamentStateRepository{db: db}
}

func (r *postgresTournamentStateRepository) Get(ctx context.Context, tournamentID int) (*models.TournamentState, error) {
	query := `
		SELECT tournament_id, current_stage, updated_at
		FROM tournament_states
		WHERE tournament_id = $1`

	state := &models.TournamentState{}
	err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(
		&state.TournamentID,
		&state.CurrentStage,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentStateNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament state %d: %w", tournamentID, err)
	}
	return state, nil
}

func (r *postgresTournamentStateRepository) UpdateCurrentStage(ctx context.Context, exec SQLExecutor, tournamentID int, stage models.StageName) error {
	query := `
		UPDATE tournament_states
		SET current_stage = $1, updated_at = NOW()
		WHERE tournament_id = $2`

	result, err := exec.ExecContext(ctx, query, stage, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to update current stage for tournament %d: %w", tournamentID, err)
	}
	return checkAffectedRows(result, ErrTournamentStateNotFound)
}
