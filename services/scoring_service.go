package services

import (
	"fmt"

	"github.com/pickemslab/bracket-engine/models"
)

// ScoringService computes points for committed predictions. Score is a pure
// function of its inputs: the committed snapshot carries its round, so no
// lookups happen here.
type ScoringService interface {
	Score(prediction models.CommittedPrediction, result *models.KnockoutResult, stage models.Stage) (int, error)
}

type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

// Score awards stage.ScoringWeight[prediction.Round] on an exact winner
// match, 0 otherwise. No partial credit. An unconfigured stage/round pair is
// not an error and degrades to zero points; a missing result is a caller bug.
func (s *scoringService) Score(prediction models.CommittedPrediction, result *models.KnockoutResult, stage models.Stage) (int, error) {
	if result == nil {
		return 0, fmt.Errorf("%w: slot %d has no result yet", ErrResultNotAvailable, prediction.SlotID)
	}
	if result.SlotID != prediction.SlotID {
		return 0, fmt.Errorf("%w: result is for slot %d, prediction for slot %d",
			ErrResultNotAvailable, result.SlotID, prediction.SlotID)
	}

	if prediction.PredictedWinnerTeamID != result.WinnerTeamID {
		return 0, nil
	}
	return stage.WeightFor(prediction.Round), nil
}
