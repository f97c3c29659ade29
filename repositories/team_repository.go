package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pickemslab/bracket-engine/models"
)

var ErrTeamNotFound = errors.New("team not found")

// TeamRepository is the engine's narrow view of externally managed teams.
// The only mutation the engine performs is the elimination flag.
type TeamRepository interface {
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByGroupPosition(ctx context.Context, tournamentID int, group string, position int) (*models.Team, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error)
	MarkEliminated(ctx context.Context, exec SQLExecutor, teamID int, eliminated bool) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `id, name, group_letter, group_position, goals_for, goals_against, is_eliminated`

func scanTeam(row *sql.Row) (*models.Team, error) {
	team := &models.Team{}
	err := row.Scan(
		&team.ID,
		&team.Name,
		&team.GroupLetter,
		&team.GroupPosition,
		&team.GoalsFor,
		&team.GoalsAgainst,
		&team.IsEliminated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	return team, nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return scanTeam(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTeamRepository) GetByGroupPosition(ctx context.Context, tournamentID int, group string, position int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE tournament_id = $1 AND group_letter = $2 AND group_position = $3`
	return scanTeam(r.db.QueryRowContext(ctx, query, tournamentID, group, position))
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE tournament_id = $1 ORDER BY group_letter, group_position`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		var team models.Team
		if scanErr := rows.Scan(
			&team.ID,
			&team.Name,
			&team.GroupLetter,
			&team.GroupPosition,
			&team.GoalsFor,
			&team.GoalsAgainst,
			&team.IsEliminated,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, &team)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during team rows iteration: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) MarkEliminated(ctx context.Context, exec SQLExecutor, teamID int, eliminated bool) error {
	query := `UPDATE teams SET is_eliminated = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, eliminated, teamID)
	if err != nil {
		return fmt.Errorf("MarkEliminated: failed to execute query for team %d: %w", teamID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}
