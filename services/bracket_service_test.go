package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pickemslab/bracket-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullBracketAssemblesAllLegs(t *testing.T) {
	stateRepo := &fakeStateRepo{
		state: &models.TournamentState{TournamentID: 1, CurrentStage: models.StageSemifinals},
	}
	teamRepo := newFakeTeamRepo(
		&models.Team{ID: 10, Name: "Team A1"},
		&models.Team{ID: 11, Name: "Team B2"},
	)
	bracketRepo := newFakeBracketRepo(
		makeQualifierSlot(1, models.Quarterfinals, "A", 1, "B", 2),
	)
	bracketRepo.results = []models.KnockoutResult{{ID: 1, SlotID: 1, WinnerTeamID: 10}}

	svc := NewBracketService(stateRepo, bracketRepo, teamRepo, newFakePredictionRepo(), &sync.RWMutex{})

	view, err := svc.FullBracket(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TournamentID)
	assert.Equal(t, models.StageSemifinals, view.CurrentStage)
	assert.Len(t, view.Slots, 1)
	assert.Len(t, view.Results, 1)
	assert.Len(t, view.Teams, 2)
}

func TestFullBracketSurfacesStoreErrors(t *testing.T) {
	stateRepo := &fakeStateRepo{getErr: errors.New("connection refused")}
	svc := NewBracketService(stateRepo, newFakeBracketRepo(), newFakeTeamRepo(), newFakePredictionRepo(), &sync.RWMutex{})

	_, err := svc.FullBracket(context.Background(), 1)
	assert.Error(t, err, "the full view is not fail-open, unlike the stage endpoint")
}

func TestLeaderboardSubtractsPenalties(t *testing.T) {
	predictionRepo := newFakePredictionRepo()
	thirty := 30
	predictionRepo.history = []models.CommittedPrediction{
		{ID: 1, UserID: 7, SlotID: 1, PointsAwarded: &thirty},
	}
	predictionRepo.penalties = []models.PenaltyEntry{
		{ID: 2, UserID: 7, SlotID: 1, Amount: 5},
	}

	svc := NewBracketService(
		&fakeStateRepo{state: &models.TournamentState{TournamentID: 1, CurrentStage: models.StageQuarterfinals}},
		newFakeBracketRepo(),
		newFakeTeamRepo(),
		predictionRepo,
		&sync.RWMutex{},
	)

	board, err := svc.Leaderboard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 7, board[0].UserID)
	assert.Equal(t, 30, board[0].Points)
	assert.Equal(t, 5, board[0].Penalties)
	assert.Equal(t, 25, board[0].Total)
}
