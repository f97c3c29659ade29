package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pickemslab/bracket-engine/models"
	"github.com/pickemslab/bracket-engine/repositories"
)

// StageRegistry is the ordered catalog of tournament stages. It is immutable
// after construction; the mutable "which stage is current" pointer lives on
// models.TournamentState and is passed into every call.
type StageRegistry struct {
	stages []models.Stage
	index  map[models.StageName]int
}

func NewStageRegistry(stages []models.Stage) (*StageRegistry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage registry requires at least one stage")
	}

	ordered := make([]models.Stage, len(stages))
	copy(ordered, stages)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	index := make(map[models.StageName]int, len(ordered))
	for i, stage := range ordered {
		if _, dup := index[stage.Name]; dup {
			return nil, fmt.Errorf("duplicate stage name %q in registry", stage.Name)
		}
		if i > 0 && ordered[i-1].Order == stage.Order {
			return nil, fmt.Errorf("duplicate stage order %d in registry", stage.Order)
		}
		index[stage.Name] = i
	}

	return &StageRegistry{stages: ordered, index: index}, nil
}

// DefaultStageRegistry seeds a 32-qualifier knockout tournament. COMPLETED is
// the terminal marker stage closing the final advances into; advancing past
// it fails with ErrNoFurtherStage.
func DefaultStageRegistry() *StageRegistry {
	registry, err := NewStageRegistry([]models.Stage{
		{Name: models.StagePreGroup, Order: 0, PenaltyPerChange: 0},
		{Name: models.StageGroup, Order: 1, PenaltyPerChange: 0},
		{Name: models.StageRoundOf32, Order: 2, PenaltyPerChange: 2, ScoringWeight: map[models.RoundKind]int{models.RoundOf32: 10}},
		{Name: models.StageRoundOf16, Order: 3, PenaltyPerChange: 5, ScoringWeight: map[models.RoundKind]int{models.RoundOf16: 20}},
		{Name: models.StageQuarterfinals, Order: 4, PenaltyPerChange: 5, ScoringWeight: map[models.RoundKind]int{models.Quarterfinals: 30}},
		{Name: models.StageSemifinals, Order: 5, PenaltyPerChange: 10, ScoringWeight: map[models.RoundKind]int{models.Semifinals: 50}},
		{Name: models.StageFinal, Order: 6, PenaltyPerChange: 10, ScoringWeight: map[models.RoundKind]int{models.Final: 80}},
		{Name: "COMPLETED", Order: 7, PenaltyPerChange: 0},
	})
	if err != nil {
		panic(err)
	}
	return registry
}

// Current returns the stage the tournament is in.
func (r *StageRegistry) Current(state *models.TournamentState) (models.Stage, error) {
	i, ok := r.index[state.CurrentStage]
	if !ok {
		return models.Stage{}, fmt.Errorf("%w: %q", ErrUnknownStage, state.CurrentStage)
	}
	return r.stages[i], nil
}

// Advance moves the state to the next stage in order and returns it. At the
// terminal stage it fails with ErrNoFurtherStage and mutates nothing. Callers
// must ensure the closing stage's matches are fully resolved first; the
// registry does not infer readiness.
func (r *StageRegistry) Advance(state *models.TournamentState) (models.Stage, error) {
	i, ok := r.index[state.CurrentStage]
	if !ok {
		return models.Stage{}, fmt.Errorf("%w: %q", ErrUnknownStage, state.CurrentStage)
	}
	if i == len(r.stages)-1 {
		return models.Stage{}, fmt.Errorf("%w: already at %q", ErrNoFurtherStage, state.CurrentStage)
	}
	next := r.stages[i+1]
	state.CurrentStage = next.Name
	return next, nil
}

// PenaltyFor returns the late-change penalty for a stage, 0 when the stage is
// unknown. The zero default matches the defensive behavior at the
// configuration read boundary.
func (r *StageRegistry) PenaltyFor(name models.StageName) int {
	if i, ok := r.index[name]; ok {
		return r.stages[i].PenaltyPerChange
	}
	return 0
}

// StageByName returns the stage, or a zero stage when unknown. The zero stage
// carries no scoring weights, so scoring against it degrades to zero points.
func (r *StageRegistry) StageByName(name models.StageName) models.Stage {
	if i, ok := r.index[name]; ok {
		return r.stages[i]
	}
	return models.Stage{Name: name}
}

// StageInfo is the read API payload for the CRUD layer. Degraded is set when
// the store was unreachable and the safe default was substituted.
type StageInfo struct {
	CurrentStage     models.StageName `json:"current_stage"`
	PenaltyPerChange int              `json:"penalty_per_change"`
	Degraded         bool             `json:"degraded,omitempty"`
	Error            string           `json:"error,omitempty"`
}

type StageService interface {
	CurrentStageInfo(ctx context.Context, tournamentID int) StageInfo
}

type stageService struct {
	registry  *StageRegistry
	stateRepo repositories.TournamentStateRepository
	mu        *sync.RWMutex
	logger    *slog.Logger
}

func NewStageService(
	registry *StageRegistry,
	stateRepo repositories.TournamentStateRepository,
	mu *sync.RWMutex,
	logger *slog.Logger,
) StageService {
	return &stageService{
		registry:  registry,
		stateRepo: stateRepo,
		mu:        mu,
		logger:    logger,
	}
}

// CurrentStageInfo never fails: it feeds a non-critical display, so a store
// error substitutes the pre-tournament default with an annotation. This is
// the single place in the engine that swallows an error, and it is a named
// fallback path, not a blanket recover.
func (s *stageService) CurrentStageInfo(ctx context.Context, tournamentID int) StageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.stateRepo.Get(ctx, tournamentID)
	if err != nil {
		return s.fallbackStageInfo(tournamentID, "stage store unreachable", err)
	}

	stage, err := s.registry.Current(state)
	if err != nil {
		return s.fallbackStageInfo(tournamentID, "stored stage not in registry", err)
	}

	return StageInfo{
		CurrentStage:     stage.Name,
		PenaltyPerChange: stage.PenaltyPerChange,
	}
}

func (s *stageService) fallbackStageInfo(tournamentID int, reason string, err error) StageInfo {
	s.logger.Warn("serving fail-open stage default",
		slog.Int("tournament_id", tournamentID),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
	return StageInfo{
		CurrentStage:     models.StagePreGroup,
		PenaltyPerChange: 0,
		Degraded:         true,
		Error:            reason,
	}
}
