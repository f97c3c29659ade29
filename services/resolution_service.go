package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pickemslab/bracket-engine/brackets"
	"github.com/pickemslab/bracket-engine/models"
	"github.com/pickemslab/bracket-engine/repositories"
)

// CorrectionPolicy decides what happens when a result arrives for an already
// resolved slot. The original system's intent is ambiguous, so this is
// configuration, not a hardcoded guess.
type CorrectionPolicy string

const (
	// CorrectionReject refuses the second write. Default.
	CorrectionReject CorrectionPolicy = "reject"
	// CorrectionAppend records the correction as a new authoritative row,
	// preserving the original for the audit trail.
	CorrectionAppend CorrectionPolicy = "append"
)

// ResolutionConfig is the per-tournament engine configuration.
type ResolutionConfig struct {
	TournamentID     int
	CorrectionPolicy CorrectionPolicy
}

// SlotResolution is the delta returned by ResolveSlot.
type SlotResolution struct {
	Result           models.KnockoutResult        `json:"result"`
	UnlockedSlots    []int                        `json:"unlocked_slots"`
	EliminatedTeamID int                          `json:"eliminated_team_id"`
	Scored           []models.CommittedPrediction `json:"scored"`
}

// StageClosure is the delta returned by CloseStage.
type StageClosure struct {
	ClosedStage    models.StageName      `json:"closed_stage"`
	NextStage      models.StageName      `json:"next_stage"`
	LockedSlots    []int                 `json:"locked_slots"`
	CommittedCount int                   `json:"committed_count"`
	Penalties      []models.PenaltyEntry `json:"penalties"`
}

// ResolutionService advances the tournament: it records slot winners,
// propagates them through the bracket, locks predictions at stage close and
// applies late-change penalties. Writes are serialized by an exclusive lock
// shared with the read services; every multi-write operation runs in one SQL
// transaction, so partial state never persists.
type ResolutionService interface {
	ResolveSlot(ctx context.Context, slotID, winnerTeamID int) (*SlotResolution, error)
	CloseStage(ctx context.Context, stage models.StageName) (*StageClosure, error)
	CloseCurrentStage(ctx context.Context) (*StageClosure, error)
}

type resolutionService struct {
	db             *sql.DB
	cfg            ResolutionConfig
	registry       *StageRegistry
	scoring        ScoringService
	stateRepo      repositories.TournamentStateRepository
	bracketRepo    repositories.BracketRepository
	teamRepo       repositories.TeamRepository
	predictionRepo repositories.PredictionRepository
	hub            *brackets.Hub
	snapshots      *SnapshotPublisher
	mu             *sync.RWMutex
	logger         *slog.Logger
}

func NewResolutionService(
	db *sql.DB,
	cfg ResolutionConfig,
	registry *StageRegistry,
	scoring ScoringService,
	stateRepo repositories.TournamentStateRepository,
	bracketRepo repositories.BracketRepository,
	teamRepo repositories.TeamRepository,
	predictionRepo repositories.PredictionRepository,
	hub *brackets.Hub,
	snapshots *SnapshotPublisher,
	mu *sync.RWMutex,
	logger *slog.Logger,
) ResolutionService {
	if cfg.CorrectionPolicy == "" {
		cfg.CorrectionPolicy = CorrectionReject
	}
	return &resolutionService{
		db:             db,
		cfg:            cfg,
		registry:       registry,
		scoring:        scoring,
		stateRepo:      stateRepo,
		bracketRepo:    bracketRepo,
		teamRepo:       teamRepo,
		predictionRepo: predictionRepo,
		hub:            hub,
		snapshots:      snapshots,
		mu:             mu,
		logger:         logger,
	}
}

// loadGraph rebuilds the in-memory bracket graph from the store.
func (s *resolutionService) loadGraph(ctx context.Context) (*brackets.Graph, error) {
	slots, err := s.bracketRepo.ListSlots(ctx, s.cfg.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bracket slots: %w", err)
	}
	graph, err := brackets.New(slots)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentState, err)
	}

	results, err := s.bracketRepo.ListResults(ctx, s.cfg.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load knockout results: %w", err)
	}
	for _, result := range results {
		if err := graph.SetResult(result.SlotID, result.WinnerTeamID); err != nil {
			return nil, fmt.Errorf("%w: result for unknown slot %d", ErrInconsistentState, result.SlotID)
		}
	}
	return graph, nil
}

func (s *resolutionService) qualifierLookup(ctx context.Context) brackets.QualifierLookup {
	return func(group string, position int) (int, error) {
		team, err := s.teamRepo.GetByGroupPosition(ctx, s.cfg.TournamentID, group, position)
		if err != nil {
			return 0, err
		}
		return team.ID, nil
	}
}

func (s *resolutionService) ResolveSlot(ctx context.Context, slotID, winnerTeamID int) (*SlotResolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := s.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	if _, resolved := graph.Winner(slotID); resolved {
		if s.cfg.CorrectionPolicy != CorrectionAppend {
			return nil, fmt.Errorf("%w: slot %d", ErrCorrectionRejected, slotID)
		}
		return s.correctSlot(ctx, graph, slotID, winnerTeamID)
	}

	winner, err := s.teamRepo.GetByID(ctx, winnerTeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load winner team %d: %w", winnerTeamID, err)
	}
	if winner.IsEliminated {
		// Contract violation by the caller, not a user error. Never corrected
		// silently.
		return nil, fmt.Errorf("%w: team %d (%s) is already eliminated but was submitted as winner of slot %d",
			ErrInconsistentState, winner.ID, winner.Name, slotID)
	}

	unlocked, loserTeamID, err := graph.Resolve(slotID, winnerTeamID, s.qualifierLookup(ctx))
	if err != nil {
		return nil, err
	}

	resolution := &SlotResolution{
		Result: models.KnockoutResult{
			SlotID:       slotID,
			WinnerTeamID: winnerTeamID,
		},
		UnlockedSlots:    unlocked,
		EliminatedTeamID: loserTeamID,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		}
	}()

	if txErr = s.bracketRepo.CreateResult(ctx, tx, &resolution.Result); txErr != nil {
		return nil, txErr
	}
	if txErr = s.teamRepo.MarkEliminated(ctx, tx, loserTeamID, true); txErr != nil {
		return nil, txErr
	}
	if resolution.Scored, txErr = s.scoreSlot(ctx, tx, graph, slotID, &resolution.Result); txErr != nil {
		return nil, txErr
	}
	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit slot resolution: %w", txErr)
	}

	s.logger.Info("slot resolved",
		slog.Int("tournament_id", s.cfg.TournamentID),
		slog.Int("slot_id", slotID),
		slog.Int("winner_team_id", winnerTeamID),
		slog.Int("unlocked", len(unlocked)),
	)
	s.publish(ctx, brackets.EventSlotResolved, resolution)
	return resolution, nil
}

// correctSlot appends a new authoritative result for an already resolved
// slot. Allowed only while no dependent slot has been resolved; beyond that
// point the bracket has built on the original outcome and a correction would
// require manual intervention.
func (s *resolutionService) correctSlot(ctx context.Context, graph *brackets.Graph, slotID, winnerTeamID int) (*SlotResolution, error) {
	priorWinner, _ := graph.Winner(slotID)
	if priorWinner == winnerTeamID {
		return nil, fmt.Errorf("%w: slot %d already has winner %d", ErrCorrectionRejected, slotID, winnerTeamID)
	}

	lookup := s.qualifierLookup(ctx)
	contenders, err := graph.Contenders(slotID, lookup)
	if err != nil {
		return nil, err
	}
	if winnerTeamID != contenders[0] && winnerTeamID != contenders[1] {
		return nil, fmt.Errorf("%w: team %d in slot %d", brackets.ErrWinnerNotInSlot, winnerTeamID, slotID)
	}

	slot, _ := graph.Slot(slotID)
	for _, dep := range graph.Slots() {
		ref := dep.Source.WinnerOf
		if ref == nil || (ref.SlotA != slot.ID && ref.SlotB != slot.ID) {
			continue
		}
		if _, resolved := graph.Winner(dep.ID); resolved {
			return nil, fmt.Errorf("%w: cannot correct slot %d, dependent slot %d already resolved",
				ErrInconsistentState, slotID, dep.ID)
		}
	}

	resolution := &SlotResolution{
		Result: models.KnockoutResult{
			SlotID:       slotID,
			WinnerTeamID: winnerTeamID,
			Correction:   true,
		},
		EliminatedTeamID: priorWinner,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		}
	}()

	if txErr = s.bracketRepo.CreateResult(ctx, tx, &resolution.Result); txErr != nil {
		return nil, txErr
	}
	if txErr = s.teamRepo.MarkEliminated(ctx, tx, priorWinner, true); txErr != nil {
		return nil, txErr
	}
	if txErr = s.teamRepo.MarkEliminated(ctx, tx, winnerTeamID, false); txErr != nil {
		return nil, txErr
	}
	if txErr = graph.SetResult(slotID, winnerTeamID); txErr != nil {
		return nil, txErr
	}
	if resolution.Scored, txErr = s.scoreSlot(ctx, tx, graph, slotID, &resolution.Result); txErr != nil {
		return nil, txErr
	}
	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit slot correction: %w", txErr)
	}

	s.logger.Warn("slot result corrected",
		slog.Int("tournament_id", s.cfg.TournamentID),
		slog.Int("slot_id", slotID),
		slog.Int("prior_winner_team_id", priorWinner),
		slog.Int("winner_team_id", winnerTeamID),
	)
	s.publish(ctx, brackets.EventSlotResolved, resolution)
	return resolution, nil
}

// scoreSlot awards points to every committed prediction for the slot, now
// that its real result exists. The governing stage comes from the slot's
// round; an unknown stage degrades to zero points rather than failing.
func (s *resolutionService) scoreSlot(ctx context.Context, tx repositories.SQLExecutor, graph *brackets.Graph, slotID int, result *models.KnockoutResult) ([]models.CommittedPrediction, error) {
	committed, err := s.predictionRepo.ListCommittedBySlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list committed predictions for slot %d: %w", slotID, err)
	}

	scored := make([]models.CommittedPrediction, 0, len(committed))
	for _, snapshot := range committed {
		stage := s.registry.StageByName(snapshot.Round.StageFor())
		points, err := s.scoring.Score(snapshot, result, stage)
		if err != nil {
			return nil, err
		}
		if err := s.predictionRepo.UpdatePoints(ctx, tx, snapshot.ID, points); err != nil {
			return nil, err
		}
		snapshot.PointsAwarded = &points
		scored = append(scored, snapshot)
	}
	return scored, nil
}

func (s *resolutionService) CloseCurrentStage(ctx context.Context) (*StageClosure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.stateRepo.Get(ctx, s.cfg.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament state: %w", err)
	}
	return s.closeStageLocked(ctx, state.CurrentStage)
}

// CloseStage runs the stage transition protocol: snapshot every draft on the
// closing stage's slots into history, charge one penalty per changed pick,
// advance the registry and report the slots now closed for editing. The
// whole transition is one transaction; on any failure nothing persists.
// Closing a stage that already closed fails with ErrStageAlreadyClosed
// before any mutation.
func (s *resolutionService) CloseStage(ctx context.Context, stageName models.StageName) (*StageClosure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeStageLocked(ctx, stageName)
}

func (s *resolutionService) closeStageLocked(ctx context.Context, stageName models.StageName) (*StageClosure, error) {
	state, err := s.stateRepo.Get(ctx, s.cfg.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament state: %w", err)
	}

	current, err := s.registry.Current(state)
	if err != nil {
		return nil, err
	}
	closing := s.registry.StageByName(stageName)
	if _, known := s.registry.index[stageName]; !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stageName)
	}
	if closing.Order < current.Order {
		return nil, fmt.Errorf("%w: %q closed when %q became current", ErrStageAlreadyClosed, stageName, current.Name)
	}
	if closing.Order > current.Order {
		return nil, fmt.Errorf("%w: %q is current, cannot close %q yet", ErrStageNotCurrent, current.Name, stageName)
	}

	closure := &StageClosure{
		ClosedStage: closing.Name,
		LockedSlots: []int{},
		Penalties:   []models.PenaltyEntry{},
	}

	graph, err := s.loadGraph(ctx)
	if err != nil {
		return nil, err
	}
	if round, knockout := closing.Name.RoundFor(); knockout {
		closure.LockedSlots = graph.SlotIDsForRound(round)
	}

	var drafts []models.Prediction
	if len(closure.LockedSlots) > 0 {
		if drafts, err = s.predictionRepo.ListDraftsBySlots(ctx, closure.LockedSlots); err != nil {
			return nil, fmt.Errorf("failed to list drafts for stage %q: %w", stageName, err)
		}
	}

	// Prior commitments are read up front so the penalty comparison does not
	// see this closure's own snapshots.
	type priorKey struct{ userID, slotID int }
	priors := make(map[priorKey]*models.CommittedPrediction)
	for _, draft := range drafts {
		if draft.IsCommitted {
			continue
		}
		prior, err := s.predictionRepo.GetPriorCommitted(ctx, draft.UserID, draft.SlotID)
		if err != nil {
			if errors.Is(err, repositories.ErrPredictionNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load prior commitment (user %d, slot %d): %w", draft.UserID, draft.SlotID, err)
		}
		priors[priorKey{draft.UserID, draft.SlotID}] = prior
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		}
	}()

	for _, draft := range drafts {
		if draft.IsCommitted {
			continue
		}
		slot, ok := graph.Slot(draft.SlotID)
		if !ok {
			txErr = fmt.Errorf("%w: draft references unknown slot %d", ErrInconsistentState, draft.SlotID)
			return nil, txErr
		}

		snapshot := models.CommittedPrediction{
			UserID:                draft.UserID,
			SlotID:                draft.SlotID,
			Round:                 slot.Round,
			PredictedWinnerTeamID: draft.PredictedWinnerTeamID,
			CommittedAtStage:      closing.Name,
		}
		if txErr = s.predictionRepo.SaveHistory(ctx, tx, &snapshot); txErr != nil {
			return nil, txErr
		}
		closure.CommittedCount++

		// One penalty per (user, slot) closure, however many times the user
		// edited the draft in between.
		prior := priors[priorKey{draft.UserID, draft.SlotID}]
		if prior != nil && prior.PredictedWinnerTeamID != draft.PredictedWinnerTeamID && closing.PenaltyPerChange > 0 {
			entry := models.PenaltyEntry{
				UserID: draft.UserID,
				SlotID: draft.SlotID,
				Stage:  closing.Name,
				Amount: closing.PenaltyPerChange,
			}
			if txErr = s.predictionRepo.AppendPenalty(ctx, tx, &entry); txErr != nil {
				return nil, txErr
			}
			closure.Penalties = append(closure.Penalties, entry)
		}
	}

	if len(closure.LockedSlots) > 0 {
		if txErr = s.predictionRepo.MarkDraftsCommitted(ctx, tx, closure.LockedSlots); txErr != nil {
			return nil, txErr
		}
	}

	next, advErr := s.registry.Advance(state)
	if advErr != nil {
		txErr = advErr
		return nil, txErr
	}
	closure.NextStage = next.Name
	if txErr = s.stateRepo.UpdateCurrentStage(ctx, tx, s.cfg.TournamentID, next.Name); txErr != nil {
		return nil, txErr
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit stage closure: %w", txErr)
	}

	s.logger.Info("stage closed",
		slog.Int("tournament_id", s.cfg.TournamentID),
		slog.String("closed_stage", string(closure.ClosedStage)),
		slog.String("next_stage", string(closure.NextStage)),
		slog.Int("committed", closure.CommittedCount),
		slog.Int("penalties", len(closure.Penalties)),
	)
	s.publish(ctx, brackets.EventStageClosed, closure)
	return closure, nil
}

// publish pushes the delta to websocket watchers and the snapshot store.
// Both are best-effort: the mutation is already committed.
func (s *resolutionService) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.hub != nil {
		s.hub.BroadcastEvent(brackets.Event{
			Type:         eventType,
			Payload:      payload,
			TournamentID: s.cfg.TournamentID,
		})
	}
	if s.snapshots != nil {
		view, err := fetchBracketView(ctx, s.cfg.TournamentID, s.stateRepo, s.bracketRepo, s.teamRepo)
		if err != nil {
			s.logger.Error("failed to build bracket snapshot", slog.Any("error", err))
			return
		}
		if err := s.snapshots.Publish(ctx, view, eventType); err != nil {
			s.logger.Error("failed to publish bracket snapshot", slog.Any("error", err))
		}
	}
}
