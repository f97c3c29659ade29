package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pickemslab/bracket-engine/models"
)

var (
	ErrPredictionNotFound        = errors.New("prediction not found")
	ErrCommittedPredictionExists = errors.New("prediction already committed for this user, slot and stage")
)

// PredictionRepository is the engine's prediction store adapter. Drafts are
// user-editable rows; history rows are immutable snapshots taken at stage
// close, plus the penalty ledger charged for late changes.
type PredictionRepository interface {
	GetDraft(ctx context.Context, userID, slotID int) (*models.Prediction, error)
	ListDraftsBySlots(ctx context.Context, slotIDs []int) ([]models.Prediction, error)
	MarkDraftsCommitted(ctx context.Context, exec SQLExecutor, slotIDs []int) error
	SaveHistory(ctx context.Context, exec SQLExecutor, snapshot *models.CommittedPrediction) error
	GetPriorCommitted(ctx context.Context, userID, slotID int) (*models.CommittedPrediction, error)
	ListCommittedBySlot(ctx context.Context, slotID int) ([]models.CommittedPrediction, error)
	UpdatePoints(ctx context.Context, exec SQLExecutor, snapshotID int, points int) error
	AppendPenalty(ctx context.Context, exec SQLExecutor, entry *models.PenaltyEntry) error
	ListPenaltiesByUser(ctx context.Context, userID int) ([]models.PenaltyEntry, error)
	Leaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardRow, error)
}

type postgresPredictionRepository struct {
	db *sql.DB
}

func NewPostgresPredictionRepository(db *sql.DB) PredictionRepository {
	return &postgresPredictionRepository{db: db}
}

func (r *postgresPredictionRepository) GetDraft(ctx context.Context, userID, slotID int) (*models.Prediction, error) {
	query := `
		SELECT user_id, slot_id, predicted_winner_team_id, is_committed, updated_at
		FROM prediction_drafts
		WHERE user_id = $1 AND slot_id = $2`

	draft := &models.Prediction{}
	err := r.db.QueryRowContext(ctx, query, userID, slotID).Scan(
		&draft.UserID,
		&draft.SlotID,
		&draft.PredictedWinnerTeamID,
		&draft.IsCommitted,
		&draft.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("failed to scan prediction draft (user %d, slot %d): %w", userID, slotID, err)
	}
	return draft, nil
}

func (r *postgresPredictionRepository) ListDraftsBySlots(ctx context.Context, slotIDs []int) ([]models.Prediction, error) {
	query := `
		SELECT user_id, slot_id, predicted_winner_team_id, is_committed, updated_at
		FROM prediction_drafts
		WHERE slot_id = ANY($1)
		ORDER BY user_id, slot_id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(slotIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]models.Prediction, 0)
	for rows.Next() {
		var draft models.Prediction
		if scanErr := rows.Scan(
			&draft.UserID,
			&draft.SlotID,
			&draft.PredictedWinnerTeamID,
			&draft.IsCommitted,
			&draft.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan prediction draft row: %w", scanErr)
		}
		drafts = append(drafts, draft)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during prediction draft rows iteration: %w", err)
	}
	return drafts, nil
}

// MarkDraftsCommitted freezes every draft on the given slots. Frozen drafts
// are kept read-only rather than deleted, so users can still see their final
// pick next to the committed snapshot.
func (r *postgresPredictionRepository) MarkDraftsCommitted(ctx context.Context, exec SQLExecutor, slotIDs []int) error {
	query := `UPDATE prediction_drafts SET is_committed = TRUE WHERE slot_id = ANY($1)`
	if _, err := exec.ExecContext(ctx, query, pq.Array(slotIDs)); err != nil {
		return fmt.Errorf("failed to mark drafts committed: %w", err)
	}
	return nil
}

func (r *postgresPredictionRepository) SaveHistory(ctx context.Context, exec SQLExecutor, snapshot *models.CommittedPrediction) error {
	query := `
		INSERT INTO prediction_history
			(user_id, slot_id, round, predicted_winner_team_id, committed_at_stage)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		snapshot.UserID,
		snapshot.SlotID,
		snapshot.Round,
		snapshot.PredictedWinnerTeamID,
		snapshot.CommittedAtStage,
	).Scan(&snapshot.ID, &snapshot.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "prediction_history_user_slot_stage_key" {
			return ErrCommittedPredictionExists
		}
		return fmt.Errorf("failed to save prediction snapshot (user %d, slot %d): %w", snapshot.UserID, snapshot.SlotID, err)
	}
	return nil
}

// GetPriorCommitted returns the user's most recent committed snapshot for a
// slot, or ErrPredictionNotFound when the user never committed one.
func (r *postgresPredictionRepository) GetPriorCommitted(ctx context.Context, userID, slotID int) (*models.CommittedPrediction, error) {
	query := `
		SELECT id, user_id, slot_id, round, predicted_winner_team_id, committed_at_stage, points_awarded, created_at
		FROM prediction_history
		WHERE user_id = $1 AND slot_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	snapshot := &models.CommittedPrediction{}
	err := r.db.QueryRowContext(ctx, query, userID, slotID).Scan(
		&snapshot.ID,
		&snapshot.UserID,
		&snapshot.SlotID,
		&snapshot.Round,
		&snapshot.PredictedWinnerTeamID,
		&snapshot.CommittedAtStage,
		&snapshot.PointsAwarded,
		&snapshot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("failed to scan committed prediction (user %d, slot %d): %w", userID, slotID, err)
	}
	return snapshot, nil
}

func (r *postgresPredictionRepository) ListCommittedBySlot(ctx context.Context, slotID int) ([]models.CommittedPrediction, error) {
	query := `
		SELECT id, user_id, slot_id, round, predicted_winner_team_id, committed_at_stage, points_awarded, created_at
		FROM prediction_history
		WHERE slot_id = $1
		ORDER BY user_id, created_at`

	rows, err := r.db.QueryContext(ctx, query, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query committed predictions for slot %d: %w", slotID, err)
	}
	defer rows.Close()

	snapshots := make([]models.CommittedPrediction, 0)
	for rows.Next() {
		var snapshot models.CommittedPrediction
		if scanErr := rows.Scan(
			&snapshot.ID,
			&snapshot.UserID,
			&snapshot.SlotID,
			&snapshot.Round,
			&snapshot.PredictedWinnerTeamID,
			&snapshot.CommittedAtStage,
			&snapshot.PointsAwarded,
			&snapshot.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan committed prediction row: %w", scanErr)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during committed prediction rows iteration: %w", err)
	}
	return snapshots, nil
}

func (r *postgresPredictionRepository) UpdatePoints(ctx context.Context, exec SQLExecutor, snapshotID int, points int) error {
	query := `UPDATE prediction_history SET points_awarded = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, points, snapshotID)
	if err != nil {
		return fmt.Errorf("UpdatePoints: failed to execute query for snapshot %d: %w", snapshotID, err)
	}
	return checkAffectedRows(result, ErrPredictionNotFound)
}

func (r *postgresPredictionRepository) AppendPenalty(ctx context.Context, exec SQLExecutor, entry *models.PenaltyEntry) error {
	query := `
		INSERT INTO penalty_ledger (user_id, slot_id, stage, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		entry.UserID,
		entry.SlotID,
		entry.Stage,
		entry.Amount,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append penalty (user %d, slot %d): %w", entry.UserID, entry.SlotID, err)
	}
	return nil
}

func (r *postgresPredictionRepository) ListPenaltiesByUser(ctx context.Context, userID int) ([]models.PenaltyEntry, error) {
	query := `
		SELECT id, user_id, slot_id, stage, amount, created_at
		FROM penalty_ledger
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query penalties for user %d: %w", userID, err)
	}
	defer rows.Close()

	entries := make([]models.PenaltyEntry, 0)
	for rows.Next() {
		var entry models.PenaltyEntry
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.SlotID,
			&entry.Stage,
			&entry.Amount,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan penalty row: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during penalty rows iteration: %w", err)
	}
	return entries, nil
}

// Leaderboard sums awarded points minus charged penalties per user across one
// tournament's slots.
func (r *postgresPredictionRepository) Leaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardRow, error) {
	query := `
		SELECT u.user_id,
		       COALESCE(p.points, 0)    AS points,
		       COALESCE(pen.penalty, 0) AS penalty
		FROM (
			SELECT DISTINCT user_id FROM prediction_history ph
			JOIN bracket_slots bs ON bs.id = ph.slot_id
			WHERE bs.tournament_id = $1
		) u
		LEFT JOIN (
			SELECT ph.user_id, SUM(ph.points_awarded) AS points
			FROM prediction_history ph
			JOIN bracket_slots bs ON bs.id = ph.slot_id
			WHERE bs.tournament_id = $1 AND ph.points_awarded IS NOT NULL
			GROUP BY ph.user_id
		) p ON p.user_id = u.user_id
		LEFT JOIN (
			SELECT pl.user_id, SUM(pl.amount) AS penalty
			FROM penalty_ledger pl
			JOIN bracket_slots bs ON bs.id = pl.slot_id
			WHERE bs.tournament_id = $1
			GROUP BY pl.user_id
		) pen ON pen.user_id = u.user_id
		ORDER BY COALESCE(p.points, 0) - COALESCE(pen.penalty, 0) DESC, u.user_id`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	board := make([]models.LeaderboardRow, 0)
	for rows.Next() {
		var row models.LeaderboardRow
		if scanErr := rows.Scan(&row.UserID, &row.Points, &row.Penalties); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		row.Total = row.Points - row.Penalties
		board = append(board, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return board, nil
}
