package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/pickemslab/bracket-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStageRegistryValidation(t *testing.T) {
	_, err := NewStageRegistry(nil)
	assert.Error(t, err)

	_, err = NewStageRegistry([]models.Stage{
		{Name: models.StageGroup, Order: 1},
		{Name: models.StageGroup, Order: 2},
	})
	assert.Error(t, err, "duplicate name")

	_, err = NewStageRegistry([]models.Stage{
		{Name: models.StageGroup, Order: 1},
		{Name: models.StageRoundOf32, Order: 1},
	})
	assert.Error(t, err, "duplicate order")
}

func TestDefaultStageRegistryOrdering(t *testing.T) {
	registry := DefaultStageRegistry()

	state := &models.TournamentState{TournamentID: 1, CurrentStage: models.StagePreGroup}
	seen := []models.StageName{models.StagePreGroup}
	prevOrder := -1

	for {
		current, err := registry.Current(state)
		require.NoError(t, err)
		assert.Greater(t, current.Order, prevOrder, "stage order must strictly increase")
		prevOrder = current.Order

		next, err := registry.Advance(state)
		if err != nil {
			assert.ErrorIs(t, err, ErrNoFurtherStage)
			break
		}
		seen = append(seen, next.Name)
	}

	assert.Equal(t, []models.StageName{
		models.StagePreGroup,
		models.StageGroup,
		models.StageRoundOf32,
		models.StageRoundOf16,
		models.StageQuarterfinals,
		models.StageSemifinals,
		models.StageFinal,
		"COMPLETED",
	}, seen)
}

func TestAdvanceAtTerminalStageMutatesNothing(t *testing.T) {
	registry := DefaultStageRegistry()
	state := &models.TournamentState{TournamentID: 1, CurrentStage: "COMPLETED"}

	_, err := registry.Advance(state)
	assert.ErrorIs(t, err, ErrNoFurtherStage)
	assert.Equal(t, models.StageName("COMPLETED"), state.CurrentStage)
}

func TestAdvanceUnknownStage(t *testing.T) {
	registry := DefaultStageRegistry()
	state := &models.TournamentState{TournamentID: 1, CurrentStage: "THIRD_PLACE_PLAYOFF"}

	_, err := registry.Advance(state)
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestPenaltyForUnknownStageIsZero(t *testing.T) {
	registry := DefaultStageRegistry()
	assert.Equal(t, 5, registry.PenaltyFor(models.StageQuarterfinals))
	assert.Equal(t, 0, registry.PenaltyFor("THIRD_PLACE_PLAYOFF"))
}

func TestCurrentStageInfoHappyPath(t *testing.T) {
	stateRepo := &fakeStateRepo{
		state: &models.TournamentState{TournamentID: 1, CurrentStage: models.StageQuarterfinals},
	}
	svc := NewStageService(DefaultStageRegistry(), stateRepo, &sync.RWMutex{}, discardLogger())

	info := svc.CurrentStageInfo(context.Background(), 1)
	assert.Equal(t, models.StageQuarterfinals, info.CurrentStage)
	assert.Equal(t, 5, info.PenaltyPerChange)
	assert.False(t, info.Degraded)
}

func TestCurrentStageInfoFailsOpenOnStoreError(t *testing.T) {
	stateRepo := &fakeStateRepo{getErr: errors.New("connection refused")}
	svc := NewStageService(DefaultStageRegistry(), stateRepo, &sync.RWMutex{}, discardLogger())

	info := svc.CurrentStageInfo(context.Background(), 1)
	assert.Equal(t, models.StagePreGroup, info.CurrentStage)
	assert.Equal(t, 0, info.PenaltyPerChange)
	assert.True(t, info.Degraded)
	assert.NotEmpty(t, info.Error)
}

func TestCurrentStageInfoFailsOpenOnUnknownStoredStage(t *testing.T) {
	stateRepo := &fakeStateRepo{
		state: &models.TournamentState{TournamentID: 1, CurrentStage: "LEGACY_STAGE"},
	}
	svc := NewStageService(DefaultStageRegistry(), stateRepo, &sync.RWMutex{}, discardLogger())

	info := svc.CurrentStageInfo(context.Background(), 1)
	assert.True(t, info.Degraded)
	assert.Equal(t, models.StagePreGroup, info.CurrentStage)
}
