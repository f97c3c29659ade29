package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pickemslab/bracket-engine/models"
	"github.com/pickemslab/bracket-engine/repositories"
)

// In-memory repository fakes. Transaction handles are accepted and ignored;
// atomicity is the SQL layer's concern, exercised separately through sqlmock
// begin/commit/rollback expectations.

type fakeStateRepo struct {
	state   *models.TournamentState
	getErr  error
	updates []models.StageName
}

func (f *fakeStateRepo) Get(ctx context.Context, tournamentID int) (*models.TournamentState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.state == nil {
		return nil, repositories.ErrTournamentStateNotFound
	}
	copied := *f.state
	return &copied, nil
}

func (f *fakeStateRepo) UpdateCurrentStage(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, stage models.StageName) error {
	f.state.CurrentStage = stage
	f.updates = append(f.updates, stage)
	return nil
}

type fakeTeamRepo struct {
	teams map[int]*models.Team
}

func newFakeTeamRepo(teams ...*models.Team) *fakeTeamRepo {
	repo := &fakeTeamRepo{teams: make(map[int]*models.Team)}
	for _, team := range teams {
		repo.teams[team.ID] = team
	}
	return repo
}

func (f *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *team
	return &copied, nil
}

func (f *fakeTeamRepo) GetByGroupPosition(ctx context.Context, tournamentID int, group string, position int) (*models.Team, error) {
	for _, team := range f.teams {
		if team.GroupLetter == group && team.GroupPosition == position {
			copied := *team
			return &copied, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (f *fakeTeamRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	out := make([]*models.Team, 0, len(f.teams))
	for _, team := range f.teams {
		copied := *team
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeTeamRepo) MarkEliminated(ctx context.Context, exec repositories.SQLExecutor, teamID int, eliminated bool) error {
	team, ok := f.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.IsEliminated = eliminated
	return nil
}

type fakeBracketRepo struct {
	slots   []models.BracketSlot
	results []models.KnockoutResult
	nextID  int
}

func newFakeBracketRepo(slots ...models.BracketSlot) *fakeBracketRepo {
	return &fakeBracketRepo{slots: slots, nextID: 1}
}

func (f *fakeBracketRepo) ListSlots(ctx context.Context, tournamentID int) ([]models.BracketSlot, error) {
	return append([]models.BracketSlot(nil), f.slots...), nil
}

func (f *fakeBracketRepo) GetSlot(ctx context.Context, tournamentID, slotID int) (*models.BracketSlot, error) {
	for _, slot := range f.slots {
		if slot.ID == slotID {
			copied := slot
			return &copied, nil
		}
	}
	return nil, repositories.ErrBracketSlotNotFound
}

func (f *fakeBracketRepo) GetResult(ctx context.Context, slotID int) (*models.KnockoutResult, error) {
	for i := len(f.results) - 1; i >= 0; i-- {
		if f.results[i].SlotID == slotID {
			copied := f.results[i]
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no result for slot %d", slotID)
}

// ListResults mirrors the store's latest-row-per-slot semantics.
func (f *fakeBracketRepo) ListResults(ctx context.Context, tournamentID int) ([]models.KnockoutResult, error) {
	latest := make(map[int]models.KnockoutResult)
	for _, result := range f.results {
		latest[result.SlotID] = result
	}
	out := make([]models.KnockoutResult, 0, len(latest))
	for _, result := range latest {
		out = append(out, result)
	}
	return out, nil
}

func (f *fakeBracketRepo) CreateResult(ctx context.Context, exec repositories.SQLExecutor, result *models.KnockoutResult) error {
	result.ID = f.nextID
	f.nextID++
	result.CreatedAt = time.Now()
	f.results = append(f.results, *result)
	return nil
}

type fakePredictionRepo struct {
	drafts    []models.Prediction
	history   []models.CommittedPrediction
	penalties []models.PenaltyEntry
	nextID    int
}

func newFakePredictionRepo() *fakePredictionRepo {
	return &fakePredictionRepo{nextID: 1}
}

func (f *fakePredictionRepo) GetDraft(ctx context.Context, userID, slotID int) (*models.Prediction, error) {
	for i := range f.drafts {
		if f.drafts[i].UserID == userID && f.drafts[i].SlotID == slotID {
			copied := f.drafts[i]
			return &copied, nil
		}
	}
	return nil, repositories.ErrPredictionNotFound
}

func (f *fakePredictionRepo) ListDraftsBySlots(ctx context.Context, slotIDs []int) ([]models.Prediction, error) {
	wanted := make(map[int]bool, len(slotIDs))
	for _, id := range slotIDs {
		wanted[id] = true
	}
	var out []models.Prediction
	for _, draft := range f.drafts {
		if wanted[draft.SlotID] {
			out = append(out, draft)
		}
	}
	return out, nil
}

func (f *fakePredictionRepo) MarkDraftsCommitted(ctx context.Context, exec repositories.SQLExecutor, slotIDs []int) error {
	wanted := make(map[int]bool, len(slotIDs))
	for _, id := range slotIDs {
		wanted[id] = true
	}
	for i := range f.drafts {
		if wanted[f.drafts[i].SlotID] {
			f.drafts[i].IsCommitted = true
		}
	}
	return nil
}

func (f *fakePredictionRepo) SaveHistory(ctx context.Context, exec repositories.SQLExecutor, snapshot *models.CommittedPrediction) error {
	snapshot.ID = f.nextID
	f.nextID++
	snapshot.CreatedAt = time.Now()
	f.history = append(f.history, *snapshot)
	return nil
}

func (f *fakePredictionRepo) GetPriorCommitted(ctx context.Context, userID, slotID int) (*models.CommittedPrediction, error) {
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].UserID == userID && f.history[i].SlotID == slotID {
			copied := f.history[i]
			return &copied, nil
		}
	}
	return nil, repositories.ErrPredictionNotFound
}

func (f *fakePredictionRepo) ListCommittedBySlot(ctx context.Context, slotID int) ([]models.CommittedPrediction, error) {
	var out []models.CommittedPrediction
	for _, snapshot := range f.history {
		if snapshot.SlotID == slotID {
			out = append(out, snapshot)
		}
	}
	return out, nil
}

func (f *fakePredictionRepo) UpdatePoints(ctx context.Context, exec repositories.SQLExecutor, snapshotID int, points int) error {
	for i := range f.history {
		if f.history[i].ID == snapshotID {
			awarded := points
			f.history[i].PointsAwarded = &awarded
			return nil
		}
	}
	return repositories.ErrPredictionNotFound
}

func (f *fakePredictionRepo) AppendPenalty(ctx context.Context, exec repositories.SQLExecutor, entry *models.PenaltyEntry) error {
	entry.ID = f.nextID
	f.nextID++
	entry.CreatedAt = time.Now()
	f.penalties = append(f.penalties, *entry)
	return nil
}

func (f *fakePredictionRepo) ListPenaltiesByUser(ctx context.Context, userID int) ([]models.PenaltyEntry, error) {
	var out []models.PenaltyEntry
	for _, entry := range f.penalties {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakePredictionRepo) Leaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardRow, error) {
	totals := make(map[int]*models.LeaderboardRow)
	row := func(userID int) *models.LeaderboardRow {
		if totals[userID] == nil {
			totals[userID] = &models.LeaderboardRow{UserID: userID}
		}
		return totals[userID]
	}
	for _, snapshot := range f.history {
		if snapshot.PointsAwarded != nil {
			row(snapshot.UserID).Points += *snapshot.PointsAwarded
		}
	}
	for _, entry := range f.penalties {
		row(entry.UserID).Penalties += entry.Amount
	}
	var out []models.LeaderboardRow
	for _, r := range totals {
		r.Total = r.Points - r.Penalties
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakePredictionRepo) pointsFor(userID, slotID int) *int {
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].UserID == userID && f.history[i].SlotID == slotID {
			return f.history[i].PointsAwarded
		}
	}
	return nil
}
