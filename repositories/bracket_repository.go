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
	ErrBracketSlotNotFound    = errors.New("bracket slot not found")
	ErrKnockoutResultNotFound = errors.New("knockout result not found")
	ErrKnockoutResultConflict = errors.New("knockout result already recorded for slot")
	ErrKnockoutResultInvalid  = errors.New("knockout result references invalid slot or team")
)

// BracketRepository reads the slot table written once at tournament setup and
// appends knockout results. Results are append-only; a correction is a new
// row flagged as such, so the audit trail survives.
type BracketRepository interface {
	ListSlots(ctx context.Context, tournamentID int) ([]models.BracketSlot, error)
	GetSlot(ctx context.Context, tournamentID, slotID int) (*models.BracketSlot, error)
	GetResult(ctx context.Context, slotID int) (*models.KnockoutResult, error)
	ListResults(ctx context.Context, tournamentID int) ([]models.KnockoutResult, error)
	CreateResult(ctx context.Context, exec SQLExecutor, result *models.KnockoutResult) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

// Slot sources are stored flattened: either both qualifier pairs or both
// source slot references are non-NULL, enforced by a table CHECK constraint.
func scanSlotSource(slot *models.BracketSlot,
	qual1Group, qual2Group *string, qual1Pos, qual2Pos, sourceA, sourceB *int) error {

	switch {
	case qual1Group != nil && qual1Pos != nil && qual2Group != nil && qual2Pos != nil:
		slot.Source.Qualifiers = &[2]models.GroupQualifier{
			{Group: *qual1Group, Position: *qual1Pos},
			{Group: *qual2Group, Position: *qual2Pos},
		}
	case sourceA != nil && sourceB != nil:
		slot.Source.WinnerOf = &models.WinnerOfRef{SlotA: *sourceA, SlotB: *sourceB}
	default:
		return fmt.Errorf("slot %d has inconsistent source columns", slot.ID)
	}
	return nil
}

func (r *postgresBracketRepository) ListSlots(ctx context.Context, tournamentID int) ([]models.BracketSlot, error) {
	query := `
		SELECT id, round, qual1_group, qual1_position, qual2_group, qual2_position, source_slot_a, source_slot_b
		FROM bracket_slots
		WHERE tournament_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bracket slots for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	slots := make([]models.BracketSlot, 0)
	for rows.Next() {
		var slot models.BracketSlot
		var qual1Group, qual2Group *string
		var qual1Pos, qual2Pos, sourceA, sourceB *int

		if scanErr := rows.Scan(
			&slot.ID,
			&slot.Round,
			&qual1Group, &qual1Pos,
			&qual2Group, &qual2Pos,
			&sourceA, &sourceB,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket slot row: %w", scanErr)
		}
		if err := scanSlotSource(&slot, qual1Group, qual2Group, qual1Pos, qual2Pos, sourceA, sourceB); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during bracket slot rows iteration: %w", err)
	}
	return slots, nil
}

func (r *postgresBracketRepository) GetSlot(ctx context.Context, tournamentID, slotID int) (*models.BracketSlot, error) {
	query := `
		SELECT id, round, qual1_group, qual1_position, qual2_group, qual2_position, source_slot_a, source_slot_b
		FROM bracket_slots
		WHERE tournament_id = $1 AND id = $2`

	slot := &models.BracketSlot{}
	var qual1Group, qual2Group *string
	var qual1Pos, qual2Pos, sourceA, sourceB *int

	err := r.db.QueryRowContext(ctx, query, tournamentID, slotID).Scan(
		&slot.ID,
		&slot.Round,
		&qual1Group, &qual1Pos,
		&qual2Group, &qual2Pos,
		&sourceA, &sourceB,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketSlotNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket slot %d: %w", slotID, err)
	}
	if err := scanSlotSource(slot, qual1Group, qual2Group, qual1Pos, qual2Pos, sourceA, sourceB); err != nil {
		return nil, err
	}
	return slot, nil
}

// GetResult returns the authoritative result for a slot: the latest row, so
// an appended correction shadows the original without destroying it.
func (r *postgresBracketRepository) GetResult(ctx context.Context, slotID int) (*models.KnockoutResult, error) {
	query := `
		SELECT id, slot_id, winner_team_id, correction, created_at
		FROM knockout_results
		WHERE slot_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	result := &models.KnockoutResult{}
	err := r.db.QueryRowContext(ctx, query, slotID).Scan(
		&result.ID,
		&result.SlotID,
		&result.WinnerTeamID,
		&result.Correction,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKnockoutResultNotFound
		}
		return nil, fmt.Errorf("failed to scan knockout result for slot %d: %w", slotID, err)
	}
	return result, nil
}

func (r *postgresBracketRepository) ListResults(ctx context.Context, tournamentID int) ([]models.KnockoutResult, error) {
	query := `
		SELECT DISTINCT ON (kr.slot_id) kr.id, kr.slot_id, kr.winner_team_id, kr.correction, kr.created_at
		FROM knockout_results kr
		JOIN bracket_slots bs ON bs.id = kr.slot_id
		WHERE bs.tournament_id = $1
		ORDER BY kr.slot_id, kr.created_at DESC, kr.id DESC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query knockout results for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	results := make([]models.KnockoutResult, 0)
	for rows.Next() {
		var result models.KnockoutResult
		if scanErr := rows.Scan(
			&result.ID,
			&result.SlotID,
			&result.WinnerTeamID,
			&result.Correction,
			&result.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan knockout result row: %w", scanErr)
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during knockout result rows iteration: %w", err)
	}
	return results, nil
}

func (r *postgresBracketRepository) CreateResult(ctx context.Context, exec SQLExecutor, result *models.KnockoutResult) error {
	query := `
		INSERT INTO knockout_results (slot_id, winner_team_id, correction)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		result.SlotID,
		result.WinnerTeamID,
		result.Correction,
	).Scan(&result.ID, &result.CreatedAt)

	return r.handleResultError(err)
}

func (r *postgresBracketRepository) handleResultError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "knockout_results_slot_id_original_key":
			// Partial unique index on (slot_id) WHERE NOT correction.
			return ErrKnockoutResultConflict
		case "knockout_results_slot_id_fkey", "knockout_results_winner_team_id_fkey":
			return ErrKnockoutResultInvalid
		}
	}
	return err
}
