package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/pickemslab/bracket-engine/models"
	"github.com/pickemslab/bracket-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// BracketView is the full tournament read model served to the CRUD layer and
// published as an immutable snapshot after every mutation.
type BracketView struct {
	TournamentID int                     `json:"tournament_id"`
	CurrentStage models.StageName        `json:"current_stage"`
	Slots        []models.BracketSlot    `json:"slots"`
	Results      []models.KnockoutResult `json:"results"`
	Teams        []*models.Team          `json:"teams"`
}

type BracketService interface {
	FullBracket(ctx context.Context, tournamentID int) (*BracketView, error)
	Leaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardRow, error)
	PenaltiesForUser(ctx context.Context, userID int) ([]models.PenaltyEntry, error)
}

type bracketService struct {
	stateRepo      repositories.TournamentStateRepository
	bracketRepo    repositories.BracketRepository
	teamRepo       repositories.TeamRepository
	predictionRepo repositories.PredictionRepository
	mu             *sync.RWMutex
}

func NewBracketService(
	stateRepo repositories.TournamentStateRepository,
	bracketRepo repositories.BracketRepository,
	teamRepo repositories.TeamRepository,
	predictionRepo repositories.PredictionRepository,
	mu *sync.RWMutex,
) BracketService {
	return &bracketService{
		stateRepo:      stateRepo,
		bracketRepo:    bracketRepo,
		teamRepo:       teamRepo,
		predictionRepo: predictionRepo,
		mu:             mu,
	}
}

// fetchBracketView loads the four legs of the view in parallel. Shared with
// the resolution engine's snapshot path, which already holds the write lock
// and must not re-acquire it.
func fetchBracketView(
	ctx context.Context,
	tournamentID int,
	stateRepo repositories.TournamentStateRepository,
	bracketRepo repositories.BracketRepository,
	teamRepo repositories.TeamRepository,
) (*BracketView, error) {
	view := &BracketView{TournamentID: tournamentID}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		state, err := stateRepo.Get(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to fetch tournament state: %w", err)
		}
		view.CurrentStage = state.CurrentStage
		return nil
	})

	g.Go(func() error {
		slots, err := bracketRepo.ListSlots(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to fetch bracket slots: %w", err)
		}
		view.Slots = slots
		return nil
	})

	g.Go(func() error {
		results, err := bracketRepo.ListResults(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to fetch knockout results: %w", err)
		}
		view.Results = results
		return nil
	})

	g.Go(func() error {
		teams, err := teamRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to fetch teams: %w", err)
		}
		view.Teams = teams
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *bracketService) FullBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fetchBracketView(ctx, tournamentID, s.stateRepo, s.bracketRepo, s.teamRepo)
}

func (s *bracketService) Leaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board, err := s.predictionRepo.Leaderboard(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard for tournament %d: %w", tournamentID, err)
	}
	return board, nil
}

func (s *bracketService) PenaltiesForUser(ctx context.Context, userID int) ([]models.PenaltyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.predictionRepo.ListPenaltiesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties for user %d: %w", userID, err)
	}
	return entries, nil
}
